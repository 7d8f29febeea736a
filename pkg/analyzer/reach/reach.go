// Package reach classifies every declared method of a class group as
// used or unused. The classification is a conservative mark phase: it
// errs toward retention whenever descriptor matching or the platform
// oracle cannot prove a method dead, because a false deletion corrupts
// the program while false retention only wastes space.
package reach

import (
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bytecut/bytecut/pkg/analyzer/hierarchy"
	"github.com/bytecut/bytecut/pkg/model"
	"github.com/bytecut/bytecut/pkg/platform"
	"github.com/sourcegraph/conc/pool"
)

// Reason explains why a method was classified used.
type Reason string

const (
	// ReasonImplicit marks constructors and static initializers,
	// invoked implicitly by the runtime loader/allocator.
	ReasonImplicit Reason = "implicit"
	// ReasonDirect marks methods whose own reference string appears
	// as an invocation target.
	ReasonDirect Reason = "direct call"
	// ReasonPlatformOverride marks overrides of platform-declared
	// methods, invocable polymorphically through library-typed
	// references.
	ReasonPlatformOverride Reason = "platform override"
	// ReasonSuperCall marks methods reached through a call site whose
	// static owner is an ancestor type.
	ReasonSuperCall Reason = "call via supertype"
	// ReasonSubCall marks methods reached through a call site whose
	// static owner is a descendant type.
	ReasonSubCall Reason = "call via subtype"
	// ReasonKept marks methods retained by a configured keep rule.
	ReasonKept Reason = "keep rule"
)

// Verdict is the classification of one method.
type Verdict struct {
	Ref    string `json:"ref"`
	Class  string `json:"class"`
	Name   string `json:"name"`
	Desc   string `json:"desc"`
	Used   bool   `json:"used"`
	Reason Reason `json:"reason,omitempty"`
}

// Analysis is the result of one classification run over a group
// snapshot.
type Analysis struct {
	Verdicts []Verdict `json:"verdicts"`
	Summary  Summary   `json:"summary"`

	used *roaring.Bitmap
	ids  map[string]uint32
}

// Summary aggregates the classification.
type Summary struct {
	TotalClasses  int `json:"total_classes"`
	TotalMethods  int `json:"total_methods"`
	UsedMethods   int `json:"used_methods"`
	UnusedMethods int `json:"unused_methods"`
	UsageSetSize  int `json:"usage_set_size"`
}

// Used reports the classification of a method by reference string.
// Unknown references report false.
func (a *Analysis) Used(ref string) bool {
	id, ok := a.ids[ref]
	if !ok {
		return false
	}
	return a.used.Contains(id)
}

// UnusedRefs returns the reference strings classified unused, in
// verdict order.
func (a *Analysis) UnusedRefs() []string {
	var out []string
	for _, v := range a.Verdicts {
		if !v.Used {
			out = append(out, v.Ref)
		}
	}
	return out
}

// KeepFunc decides whether a method is pinned by external keep rules.
// A nil KeepFunc pins nothing.
type KeepFunc func(m *model.MethodEntry) bool

// Analyzer computes used/unused classifications.
type Analyzer struct {
	oracle  platform.Oracle
	keep    KeepFunc
	workers int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithKeepFunc installs a keep-rule matcher; matched methods classify
// used unconditionally.
func WithKeepFunc(keep KeepFunc) Option {
	return func(a *Analyzer) { a.keep = keep }
}

// WithWorkers sets the scan fan-out for the usage-set computation.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// New creates an analyzer backed by the given platform oracle.
func New(oracle platform.Oracle, opts ...Option) *Analyzer {
	a := &Analyzer{oracle: oracle, workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Classify scans the group once for invocation targets, then walks
// every declared method through the classification rules. The usage
// set is a snapshot: later mutation of the group does not affect the
// returned analysis.
func (a *Analyzer) Classify(group *model.ClassGroup) *Analysis {
	graph := hierarchy.Build(group)
	usage := a.scanUsage(group)

	analysis := &Analysis{
		used: roaring.New(),
		ids:  make(map[string]uint32, group.MethodCount()),
	}
	analysis.Summary.TotalClasses = group.Len()
	analysis.Summary.UsageSetSize = len(usage)

	var nextID uint32
	for _, c := range group.Classes() {
		for _, m := range c.Methods {
			id := nextID
			nextID++
			analysis.ids[m.Ref()] = id

			used, reason := a.classify(group, graph, usage, c, m)
			if used {
				analysis.used.Add(id)
			}
			analysis.Verdicts = append(analysis.Verdicts, Verdict{
				Ref:    m.Ref(),
				Class:  c.Name,
				Name:   m.Name,
				Desc:   m.Desc,
				Used:   used,
				Reason: reason,
			})
		}
	}

	analysis.Summary.TotalMethods = int(nextID)
	analysis.Summary.UsedMethods = int(analysis.used.GetCardinality())
	analysis.Summary.UnusedMethods = analysis.Summary.TotalMethods - analysis.Summary.UsedMethods
	return analysis
}

// scanUsage collects the reference string of every invocation target
// in the group, verbatim: the static call-site owner is used as-is,
// with no dispatch resolution. Classes are scanned in parallel and the
// partial sets merged before classification begins; no partial reads
// escape this function.
func (a *Analyzer) scanUsage(group *model.ClassGroup) map[string]struct{} {
	merged := make(map[string]struct{})
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(a.workers)
	for _, c := range group.Classes() {
		p.Go(func() {
			local := make(map[string]struct{})
			for _, m := range c.Methods {
				for _, insn := range m.Instructions {
					if inv, ok := insn.(model.InvokeInsn); ok {
						local[inv.Ref()] = struct{}{}
					}
				}
			}
			mu.Lock()
			for ref := range local {
				merged[ref] = struct{}{}
			}
			mu.Unlock()
		})
	}
	p.Wait()
	return merged
}

// classify applies the classification rules to one method.
func (a *Analyzer) classify(group *model.ClassGroup, graph *hierarchy.Graph, usage map[string]struct{}, c *model.ClassEntry, m *model.MethodEntry) (bool, Reason) {
	if m.IsInitializer() {
		return true, ReasonImplicit
	}
	if a.keep != nil && a.keep(m) {
		return true, ReasonKept
	}
	if _, ok := usage[m.Ref()]; ok {
		return true, ReasonDirect
	}

	sig := m.Name + m.Desc

	// Ancestor search: breadth-expand the supers frontier one level
	// at a time. A platform type declaring the signature means the
	// method may override a library contract; an ancestor's reference
	// in the usage set means a supertype-owned call site can dispatch
	// here.
	visited := map[string]bool{c.Name: true}
	frontier := append([]string(nil), graph.Supers(c.Name)...)
	for len(frontier) > 0 {
		var next []string
		for _, ancestor := range frontier {
			if visited[ancestor] {
				continue
			}
			visited[ancestor] = true

			if group.Lookup(ancestor) == nil {
				if a.oracle.Declares(ancestor, m.Name, m.Desc) {
					return true, ReasonPlatformOverride
				}
			}
			if _, ok := usage[ancestor+"."+sig]; ok {
				return true, ReasonSuperCall
			}
			if group.Lookup(ancestor) != nil {
				next = append(next, graph.Supers(ancestor)...)
			}
		}
		frontier = next
	}

	// Descendant search: symmetric expansion over subs. Covers a
	// subclass override invoked through a call site whose static
	// owner is the subclass while the body lives here, and the
	// interface-owned call sites of Scenario D. Sub edges only exist
	// for group-present classes, so no oracle consultation applies.
	visited = map[string]bool{c.Name: true}
	frontier = append([]string(nil), graph.Subs(c.Name)...)
	for len(frontier) > 0 {
		var next []string
		for _, desc := range frontier {
			if visited[desc] {
				continue
			}
			visited[desc] = true

			if _, ok := usage[desc+"."+sig]; ok {
				return true, ReasonSubCall
			}
			next = append(next, graph.Subs(desc)...)
		}
		frontier = next
	}

	return false, ""
}
