// Package platform answers whether a type outside the analyzed group
// declares a given method. The analyzer uses this to avoid deleting
// overrides of library-declared methods that stay invocable through
// library-typed references.
package platform

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Oracle reports whether the platform type with the given internal
// name, or any of its transitive platform supertypes, declares a
// method matching name and descriptor exactly.
//
// Implementations fail closed: a type that cannot be resolved is
// treated as not declaring the method. This biases classification
// toward the group's own usage-set evidence; see the analyzer package
// for the correctness caveat that policy carries.
type Oracle interface {
	Declares(typeName, method, desc string) bool
}

//go:embed index.yaml
var bundledIndex []byte

// indexFile is the on-disk shape of a platform stub index.
type indexFile struct {
	Types map[string]indexType `yaml:"types"`
}

type indexType struct {
	Supers  []string `yaml:"supers"`
	Methods []string `yaml:"methods"`
}

type stubType struct {
	supers  []string
	methods map[string]struct{} // key: name + descriptor
}

// StaticIndex is an Oracle backed by a bundled stub index of common
// platform-library signatures, decoupled from any host runtime's
// introspection facilities. Extra entries can be merged from user
// files.
type StaticIndex struct {
	types map[string]*stubType
}

// NewStaticIndex returns an index seeded with the bundled platform
// stubs.
func NewStaticIndex() *StaticIndex {
	idx := &StaticIndex{types: make(map[string]*stubType)}
	// The bundled index is part of the build; failing to parse it is
	// a defect, not an input condition.
	if err := idx.merge(bundledIndex); err != nil {
		panic(fmt.Sprintf("platform: bundled index: %v", err))
	}
	return idx
}

// LoadFile merges additional stub entries from a YAML file. Methods of
// a type already present are unioned; supers are appended.
func (s *StaticIndex) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("platform: read index %s: %w", path, err)
	}
	if err := s.merge(data); err != nil {
		return fmt.Errorf("platform: index %s: %w", path, err)
	}
	return nil
}

func (s *StaticIndex) merge(data []byte) error {
	var f indexFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for name, t := range f.Types {
		st := s.types[name]
		if st == nil {
			st = &stubType{methods: make(map[string]struct{})}
			s.types[name] = st
		}
		st.supers = append(st.supers, t.Supers...)
		for _, m := range t.Methods {
			if !strings.Contains(m, "(") {
				return fmt.Errorf("type %s: method entry %q lacks a descriptor", name, m)
			}
			st.methods[m] = struct{}{}
		}
	}
	return nil
}

// Declares walks the platform hierarchy from typeName, checking each
// resolvable type for an exact (name, descriptor) match. Unresolvable
// types terminate their branch silently.
func (s *StaticIndex) Declares(typeName, method, desc string) bool {
	key := method + desc
	visited := make(map[string]bool)
	frontier := []string{typeName}
	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]
		if visited[name] {
			continue
		}
		visited[name] = true

		t, ok := s.types[name]
		if !ok {
			continue
		}
		if _, ok := t.methods[key]; ok {
			return true
		}
		frontier = append(frontier, t.supers...)
	}
	return false
}

// Len returns the number of indexed types.
func (s *StaticIndex) Len() int {
	return len(s.types)
}
