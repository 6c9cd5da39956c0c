// Package passes contains the IR transformation passes and the scheduler that
// drives them: memory-to-register promotion, value-numbering CSE, and dead
// code elimination at function and module level.
package passes

import (
	"github.com/tliron/commonlog"

	"ember/internal/analysis"
	"ember/internal/ir"
)

var log = commonlog.GetLogger("ember.passes")

// AnalysisKind names a cacheable analysis a pass can depend on.
type AnalysisKind int

const (
	NeedPostOrder AnalysisKind = iota + 1
	NeedDomTree
	NeedDomFronts
	NeedEscape
)

// Analyses is the per-function analysis cache. The scheduler pre-computes a
// pass's declared dependencies before running it; the getters also compute
// lazily so that a pass can reach for an undeclared analysis without a stale
// read.
type Analyses struct {
	cx *ir.Context
	fn ir.Function

	po      *analysis.PostOrder
	dt      *analysis.DomTree
	df      analysis.DomFronts
	escaped *analysis.ReferredSymbols
}

func newAnalyses(cx *ir.Context, fn ir.Function) *Analyses {
	return &Analyses{cx: cx, fn: fn}
}

// PostOrder returns the cached CFG post-order.
func (a *Analyses) PostOrder() *analysis.PostOrder {
	if a.po == nil {
		a.po = analysis.ComputePostOrder(a.cx, a.fn)
	}
	return a.po
}

// DomTree returns the cached dominator tree.
func (a *Analyses) DomTree() *analysis.DomTree {
	if a.dt == nil {
		a.dt = analysis.ComputeDomTree(a.cx, a.fn, a.PostOrder())
	}
	return a.dt
}

// DomFronts returns the cached dominance frontiers.
func (a *Analyses) DomFronts() analysis.DomFronts {
	if a.df == nil {
		a.df = analysis.ComputeDomFronts(a.cx, a.fn, a.DomTree())
	}
	return a.df
}

// Escaped returns the cached escape analysis result.
func (a *Analyses) Escaped() analysis.ReferredSymbols {
	if a.escaped == nil {
		e := analysis.EscapedSymbols(a.cx, a.fn)
		a.escaped = &e
	}
	return *a.escaped
}

func (a *Analyses) ensure(kind AnalysisKind) {
	switch kind {
	case NeedPostOrder:
		a.PostOrder()
	case NeedDomTree:
		a.DomTree()
	case NeedDomFronts:
		a.DomFronts()
	case NeedEscape:
		a.Escaped()
	}
}

// invalidate drops every cached result. Invalidation is deliberately coarse:
// any modification discards everything for the function rather than tracking
// fine-grained dependencies.
func (a *Analyses) invalidate() {
	a.po = nil
	a.dt = nil
	a.df = nil
	a.escaped = nil
}

// Pass is one function-level transformation: a name, a human-readable
// description, the analyses it depends on, and the transform itself. Run
// reports whether it modified the IR.
type Pass struct {
	Name        string
	Description string
	Needs       []AnalysisKind
	Run         func(cx *ir.Context, fn ir.Function, a *Analyses) (bool, error)
}

// maxPipelineIters caps fixed-point iteration of the whole pass sequence.
const maxPipelineIters = 16

// Pipeline schedules a sequence of passes over functions and modules, caching
// analyses between passes and invalidating them when a pass reports changes.
type Pipeline struct {
	cx     *ir.Context
	passes []Pass
	cache  map[ir.Function]*Analyses
}

// NewPipeline creates a pipeline with the default pass sequence: promotion to
// SSA registers, then common-subexpression elimination, then dead code
// elimination.
func NewPipeline(cx *ir.Context) *Pipeline {
	p := &Pipeline{cx: cx, cache: make(map[ir.Function]*Analyses)}
	p.Add(Mem2RegPass)
	p.Add(CSEPass)
	p.Add(DCEPass)
	return p
}

// NewEmptyPipeline creates a pipeline with no passes.
func NewEmptyPipeline(cx *ir.Context) *Pipeline {
	return &Pipeline{cx: cx, cache: make(map[ir.Function]*Analyses)}
}

// Add appends a pass to the sequence.
func (p *Pipeline) Add(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Passes returns the scheduled sequence.
func (p *Pipeline) Passes() []Pass { return p.passes }

func (p *Pipeline) analysesFor(fn ir.Function) *Analyses {
	a, ok := p.cache[fn]
	if !ok {
		a = newAnalyses(p.cx, fn)
		p.cache[fn] = a
	}
	return a
}

// RunFunction iterates the pass sequence over fn until no pass reports a
// modification or the iteration cap is hit. It reports whether anything
// changed at all.
func (p *Pipeline) RunFunction(fn ir.Function) (bool, error) {
	anyChange := false
	for iter := 0; iter < maxPipelineIters; iter++ {
		changed := false
		for _, pass := range p.passes {
			a := p.analysesFor(fn)
			for _, kind := range pass.Needs {
				a.ensure(kind)
			}
			modified, err := pass.Run(p.cx, fn, a)
			if err != nil {
				return anyChange, err
			}
			if modified {
				a.invalidate()
				changed = true
				anyChange = true
				log.Debugf("%s: modified %s", pass.Name, p.cx.Func(fn).Name)
			} else {
				log.Debugf("%s: no change in %s", pass.Name, p.cx.Func(fn).Name)
			}
		}
		if !changed {
			break
		}
	}
	return anyChange, nil
}

// RunModule runs the function pipeline over every function of m, then prunes
// unreachable functions and globals. It reports whether anything changed.
func (p *Pipeline) RunModule(m ir.Module) (bool, error) {
	anyChange := false
	// Snapshot: global DCE below edits the module's function list.
	fns := append([]ir.Function(nil), p.cx.Mod(m).Functions...)
	for _, fn := range fns {
		changed, err := p.RunFunction(fn)
		if err != nil {
			return anyChange, err
		}
		anyChange = anyChange || changed
	}
	changed, err := GlobalDCE(p.cx, m)
	if err != nil {
		return anyChange, err
	}
	if changed {
		log.Infof("global-dce: pruned unreachable definitions in %s", p.cx.Mod(m).Name)
	}
	return anyChange || changed, nil
}
