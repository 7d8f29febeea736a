// Package hierarchy builds the supertype/subtype adjacency of a class
// group. The graph is derived data: it is rebuilt fresh for each
// analysis and must never outlive mutations of the group it came from.
package hierarchy

import "github.com/bytecut/bytecut/pkg/model"

// Graph holds the two derived multimaps. Super edges keep every
// declared supertype and interface name, including platform types
// outside the group; sub edges exist only where the target class is
// present in the group, since subtypes of invisible classes cannot be
// known.
type Graph struct {
	supers map[string][]string
	subs   map[string][]string
}

// Build derives the hierarchy graph for a group. Direct
// self-references are dropped so frontier walks cannot loop on them.
func Build(group *model.ClassGroup) *Graph {
	g := &Graph{
		supers: make(map[string][]string, group.Len()),
		subs:   make(map[string][]string),
	}
	for _, c := range group.Classes() {
		seen := make(map[string]bool)
		addSuper := func(name string) {
			if name == "" || name == c.Name || seen[name] {
				return
			}
			seen[name] = true
			g.supers[c.Name] = append(g.supers[c.Name], name)
			if group.Lookup(name) != nil {
				g.subs[name] = append(g.subs[name], c.Name)
			}
		}
		addSuper(c.SuperName)
		for _, iface := range c.Interfaces {
			addSuper(iface)
		}
	}
	return g
}

// Supers returns the declared supertype and interface names of the
// class with the given internal name. Names may reference platform
// types not in the group.
func (g *Graph) Supers(name string) []string {
	return g.supers[name]
}

// Subs returns the group-present classes that declare the given name
// as a supertype or interface.
func (g *Graph) Subs(name string) []string {
	return g.subs[name]
}
