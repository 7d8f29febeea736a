// Package duplicates groups static methods by a structural identity
// key to surface behaviorally-identical bodies for a downstream
// merge/redirect step. The pass only partitions; it rewrites nothing.
package duplicates

import (
	"fmt"
	"sort"

	"github.com/bytecut/bytecut/pkg/model"
	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// lineRangeNone is the sentinel for bodies without line markers.
const lineRangeNone = "*"

// Member is one method inside a duplicate group. ExactHash is an
// order-sensitive fingerprint-sequence hash, letting consumers tell
// exact-sequence duplicates apart from matches the set-collapse
// equates.
type Member struct {
	Ref       string `json:"ref"`
	ExactHash string `json:"exact_hash"`
}

// Group is one cell of the structural partition. Members keep group
// declaration order.
type Group struct {
	Key     string   `json:"key"`
	Members []Member `json:"members"`
}

// Analysis is the grouper's output: the full partition of static,
// non-initializer methods, plus the clusters (groups with more than
// one member) a merge step would act on.
type Analysis struct {
	Groups   []Group `json:"groups"`
	Clusters []Group `json:"clusters"`
	Summary  Summary `json:"summary"`
}

// Summary aggregates the partition.
type Summary struct {
	MethodsGrouped  int `json:"methods_grouped"`
	TotalGroups     int `json:"total_groups"`
	DuplicateGroups int `json:"duplicate_groups"`
	DuplicateCount  int `json:"duplicate_count"`
}

// Pass implements transform.Pass. The group itself is left untouched;
// the clusters are retained for the report.
type Pass struct {
	last *Analysis
}

// New creates the grouping pass.
func New() *Pass { return &Pass{} }

// Name implements transform.Pass.
func (p *Pass) Name() string { return "duplicate-groups" }

// Transform partitions the group's static methods.
func (p *Pass) Transform(group *model.ClassGroup) error {
	p.last = GroupStatics(group)
	return nil
}

// Result returns the most recent analysis, or nil.
func (p *Pass) Result() *Analysis {
	return p.last
}

// GroupStatics partitions every static, non-initializer method of the
// group by its structural identity key. Two methods share a group iff
// their keys are equal; every eligible method lands in exactly one
// group.
func GroupStatics(group *model.ClassGroup) *Analysis {
	analysis := &Analysis{}
	byKey := make(map[string]int)

	for _, c := range group.Classes() {
		for _, m := range c.Methods {
			if !m.IsStatic() || m.Name == model.StaticInitName {
				continue
			}
			key := identityKey(m)
			member := Member{Ref: m.Ref(), ExactHash: exactHash(m)}

			idx, ok := byKey[key]
			if !ok {
				idx = len(analysis.Groups)
				byKey[key] = idx
				analysis.Groups = append(analysis.Groups, Group{Key: key})
			}
			analysis.Groups[idx].Members = append(analysis.Groups[idx].Members, member)
			analysis.Summary.MethodsGrouped++
		}
	}

	analysis.Summary.TotalGroups = len(analysis.Groups)
	for _, g := range analysis.Groups {
		if len(g.Members) > 1 {
			analysis.Clusters = append(analysis.Clusters, g)
			analysis.Summary.DuplicateGroups++
			analysis.Summary.DuplicateCount += len(g.Members)
		}
	}
	return analysis
}

// identityKey builds returnDescriptor + "." + lineRange + "." +
// structuralHash for one method body.
func identityKey(m *model.MethodEntry) string {
	return fmt.Sprintf("%s.%s.%016x", m.ReturnDesc(), lineRange(m), structuralHash(m))
}

// lineRange is the inclusive span from the first to the last line
// marker in body order, or the wildcard sentinel without markers.
func lineRange(m *model.MethodEntry) string {
	first, last := -1, -1
	for _, insn := range m.Instructions {
		if ln, ok := insn.(model.LineInsn); ok {
			if first < 0 {
				first = int(ln.Line)
			}
			last = int(ln.Line)
		}
	}
	if first < 0 {
		return lineRangeNone
	}
	return fmt.Sprintf("%d-%d", first, last)
}

// structuralHash hashes the set of per-instruction fingerprints:
// ordering and repeat counts collapse away. That looseness is the
// intended equivalence; it trades precision for a cheap,
// order-insensitive match.
func structuralHash(m *model.MethodEntry) uint64 {
	set := make(map[string]struct{})
	for _, insn := range m.Instructions {
		if fp, ok := fingerprint(insn); ok {
			set[fp] = struct{}{}
		}
	}
	fps := make([]string, 0, len(set))
	for fp := range set {
		fps = append(fps, fp)
	}
	sort.Strings(fps)

	h := xxhash.New()
	for _, fp := range fps {
		h.WriteString(fp)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// exactHash hashes the fingerprint sequence in body order, duplicates
// included.
func exactHash(m *model.MethodEntry) string {
	h := blake3.New()
	for _, insn := range m.Instructions {
		if fp, ok := fingerprint(insn); ok {
			h.WriteString(fp)
			h.Write([]byte{0})
		}
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:8])
}

// fingerprint maps one instruction to its structural token. Line
// markers contribute nothing.
func fingerprint(insn model.Instruction) (string, bool) {
	switch i := insn.(type) {
	case model.FieldInsn:
		return fmt.Sprintf("%s.%s:%d", i.Owner, i.Name, i.Op), true
	case model.InvokeInsn:
		return fmt.Sprintf("%d:%s.%s", i.Op, i.Owner, i.Name), true
	case model.OpInsn:
		return fmt.Sprintf("%d", i.Op), true
	default:
		return "", false
	}
}
