// Package deadmethods is the transformation pass that deletes methods
// the reachability analyzer classified unused.
package deadmethods

import (
	"github.com/bytecut/bytecut/pkg/analyzer/reach"
	"github.com/bytecut/bytecut/pkg/model"
)

// Result reports one elimination run.
type Result struct {
	Removed  []reach.Verdict `json:"removed"`
	Analysis *reach.Analysis `json:"analysis,omitempty"`
}

// Count returns the number of removed methods.
func (r *Result) Count() int {
	return len(r.Removed)
}

// Pass deletes unused methods in place. Classification happens against
// a usage-set snapshot taken before any deletion, so removal order
// cannot influence the verdicts of other methods within one run.
type Pass struct {
	analyzer *reach.Analyzer
	last     *Result
}

// New creates the pass around a configured reachability analyzer.
func New(analyzer *reach.Analyzer) *Pass {
	return &Pass{analyzer: analyzer}
}

// Name implements transform.Pass.
func (p *Pass) Name() string { return "dead-methods" }

// Transform classifies every method and removes the unused ones from
// their owning classes.
func (p *Pass) Transform(group *model.ClassGroup) error {
	analysis := p.analyzer.Classify(group)

	result := &Result{Analysis: analysis}
	for _, v := range analysis.Verdicts {
		if v.Used {
			continue
		}
		owner := group.Lookup(v.Class)
		if owner == nil || !owner.RemoveMethod(v.Ref) {
			// The verdicts come from the same group snapshot;
			// a miss here means the model invariant broke.
			panic("deadmethods: classified method vanished: " + v.Ref)
		}
		result.Removed = append(result.Removed, v)
	}
	p.last = result
	return nil
}

// Result returns the report of the most recent Transform, or nil.
func (p *Pass) Result() *Result {
	return p.last
}
