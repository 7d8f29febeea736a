// Package transform sequences transformation passes over a single
// mutable class group. Passes run strictly one at a time; the pipeline
// is the only thing that touches the group between passes, so no
// locking discipline is needed.
package transform

import (
	"fmt"

	"github.com/bytecut/bytecut/pkg/model"
)

// Pass is one transformation over the class group. Transform mutates
// the group in place; returning an error aborts the whole pipeline.
type Pass interface {
	Name() string
	Transform(group *model.ClassGroup) error
}

// Observer is notified after each pass completes. Used for verbose
// reporting; a nil observer is ignored.
type Observer func(pass string)

// Pipeline runs passes in a fixed order over one group instance.
type Pipeline struct {
	passes   []Pass
	observer Observer
}

// New builds a pipeline from the given passes, run in argument order.
func New(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

// WithObserver installs a completion callback and returns the
// pipeline.
func (p *Pipeline) WithObserver(obs Observer) *Pipeline {
	p.observer = obs
	return p
}

// Run invokes every pass in order on the same group. Each pass runs to
// completion before the next begins; the first error aborts the rest.
func (p *Pipeline) Run(group *model.ClassGroup) error {
	for _, pass := range p.passes {
		if err := pass.Transform(group); err != nil {
			return fmt.Errorf("transform: pass %s: %w", pass.Name(), err)
		}
		if p.observer != nil {
			p.observer(pass.Name())
		}
	}
	return nil
}
