package passes

import (
	"github.com/oleiade/lane"

	"ember/internal/analysis"
	"ember/internal/ir"
)

// DCEPass removes unreachable blocks, unused SSA values, provably dead
// memory writes to non-escaping locals, and locals nothing refers to anymore.
var DCEPass = Pass{
	Name:        "dce",
	Description: "worklist dead-code elimination",
	Needs:       []AnalysisKind{NeedEscape},
	Run:         runDCE,
}

func runDCE(cx *ir.Context, fn ir.Function, a *Analyses) (bool, error) {
	pruned := pruneUnreachable(cx, fn)

	s := newDCEState(cx, fn, a.Escaped())
	s.seed()
	s.drain()
	if err := s.sweep(); err != nil {
		return false, err
	}

	locals := removeDeadLocals(cx, fn)
	return pruned || len(s.cemetery) > 0 || locals, nil
}

// pruneUnreachable drops blocks the entry cannot reach. Their instructions
// would otherwise pin uses and keep live-looking values alive.
func pruneUnreachable(cx *ir.Context, fn ir.Function) bool {
	entry := cx.EntryBlock(fn)
	reached := map[ir.Block]struct{}{entry: {}}
	stack := []ir.Block{entry}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, succ := range cx.Succs(b) {
			if _, ok := reached[succ]; !ok {
				reached[succ] = struct{}{}
				stack = append(stack, succ)
			}
		}
	}

	var dead []ir.Block
	for _, b := range cx.Func(fn).Blocks {
		if _, ok := reached[b]; !ok {
			dead = append(dead, b)
		}
	}
	for _, b := range dead {
		cx.RemoveBlock(fn, b)
	}
	return len(dead) > 0
}

type dceState struct {
	cx       *ir.Context
	fn       ir.Function
	entry    ir.Block
	uses     map[ir.Value]int
	cemetery map[ir.Value]struct{}
	queue    *lane.Queue

	// Memory-write removal is gated on every involved analysis being exact.
	memOK      bool
	escaped    analysis.SymbolSet
	loadCounts map[analysis.Symbol]int
	stores     map[analysis.Symbol][]ir.Value
}

func newDCEState(cx *ir.Context, fn ir.Function, escaped analysis.ReferredSymbols) *dceState {
	s := &dceState{
		cx:       cx,
		fn:       fn,
		entry:    cx.EntryBlock(fn),
		uses:     make(map[ir.Value]int),
		cemetery: make(map[ir.Value]struct{}),
		queue:    lane.NewQueue(),
	}

	for _, b := range cx.Func(fn).Blocks {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			for _, op := range in.Operands() {
				s.uses[op]++
			}
		}
	}

	escSet, escKnown := escaped.Known()
	loads, loadsKnown := analysis.CountSymbolLoads(cx, fn).Known()
	stores, storesKnown := analysis.CollectSymbolStores(cx, fn).Known()
	if escKnown && loadsKnown && storesKnown {
		s.memOK = true
		s.escaped = escSet
		s.loadCounts = loads
		s.stores = stores
	}
	return s
}

// seed enqueues every value that already has no uses plus every memory write;
// the writes are re-examined as loads die off.
func (s *dceState) seed() {
	for _, b := range s.cx.Func(s.fn).Blocks {
		for _, av := range s.cx.Block(b).Args {
			if s.uses[av] == 0 {
				s.queue.Enqueue(av)
			}
		}
		for _, iv := range s.cx.Block(b).Insns {
			in, _ := s.cx.InsnOf(iv)
			if s.uses[iv] == 0 || in.IsMemoryWrite() {
				s.queue.Enqueue(iv)
			}
		}
	}
}

func (s *dceState) drain() {
	for !s.queue.Empty() {
		v := s.queue.Dequeue().(ir.Value)
		if _, gone := s.cemetery[v]; gone {
			continue
		}
		if s.dead(v) {
			s.bury(v)
		}
	}
}

func (s *dceState) dead(v ir.Value) bool {
	if in, ok := s.cx.InsnOf(v); ok {
		if in.IsMemoryWrite() {
			return s.deadWrite(in)
		}
		if in.HasSideEffect() || in.Ty == nil {
			return false
		}
		return s.uses[v] == 0
	}
	if ad, ok := s.cx.ArgOf(v); ok {
		// Entry-block arguments are the function signature; they stay.
		return ad.Block != s.entry && s.uses[v] == 0
	}
	return false
}

// deadWrite reports whether a store, mem_copy or mem_clear can go: every
// symbol it targets must be a non-escaping local with no loads left.
func (s *dceState) deadWrite(in *ir.InsnData) bool {
	if !s.memOK {
		return false
	}
	dst, ok := in.MemoryDst()
	if !ok {
		return false
	}
	syms, known := analysis.PointerSymbols(s.cx, dst).Known()
	if !known {
		return false
	}
	for sym := range syms {
		if !sym.IsLocal() || s.escaped.Contains(sym) || s.loadCounts[sym] > 0 {
			return false
		}
	}
	return true
}

func (s *dceState) bury(v ir.Value) {
	s.cemetery[v] = struct{}{}

	if in, ok := s.cx.InsnOf(v); ok {
		for _, op := range in.Operands() {
			s.release(op)
		}
		s.retireRead(in)
		return
	}

	// A dead block argument releases the actual passed along every
	// incoming edge.
	ad, _ := s.cx.ArgOf(v)
	for _, pred := range s.cx.Block(ad.Block).Preds {
		tv, ok := s.cx.Terminator(pred)
		if !ok {
			continue
		}
		tin, _ := s.cx.InsnOf(tv)
		for _, tgt := range []*ir.BranchTarget{&tin.Dest, &tin.True, &tin.False} {
			if tgt.Block == ad.Block && ad.Index < len(tgt.Args) {
				s.release(tgt.Args[ad.Index])
			}
		}
	}
}

func (s *dceState) release(op ir.Value) {
	if _, ok := s.cx.ConstOf(op); ok {
		return
	}
	s.uses[op]--
	if s.uses[op] == 0 {
		s.queue.Enqueue(op)
	}
}

// retireRead drops a buried load's (or mem_copy's source) contribution to the
// symbol load counts; writes to a symbol whose last load just died get
// another look.
func (s *dceState) retireRead(in *ir.InsnData) {
	if !s.memOK {
		return
	}
	var src ir.Value
	switch in.Op {
	case ir.OpLoad:
		src = in.Args[0]
	case ir.OpMemCopy:
		src = in.Args[1]
	default:
		return
	}
	syms, ok := analysis.PointerSymbols(s.cx, src).Known()
	if !ok {
		return
	}
	for sym := range syms {
		s.loadCounts[sym]--
		if s.loadCounts[sym] == 0 {
			for _, w := range s.stores[sym] {
				s.queue.Enqueue(w)
			}
		}
	}
}

// sweep detaches everything in the cemetery from the IR: block arguments
// first, highest index per block first so the surviving indices stay valid,
// then the instructions. A failed argument removal means a predecessor edge
// lost index correspondence, which is corrupt IR, not a recoverable state.
func (s *dceState) sweep() error {
	deadArgs := make(map[ir.Block][]int)
	for v := range s.cemetery {
		if ad, ok := s.cx.ArgOf(v); ok {
			deadArgs[ad.Block] = append(deadArgs[ad.Block], ad.Index)
		}
	}
	for b, idxs := range deadArgs {
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				if idxs[j] > idxs[i] {
					idxs[i], idxs[j] = idxs[j], idxs[i]
				}
			}
		}
		for _, idx := range idxs {
			if err := s.cx.RemoveBlockArg(b, idx); err != nil {
				return err
			}
		}
	}

	for v := range s.cemetery {
		if _, ok := s.cx.InsnOf(v); ok {
			s.cx.RemoveInsn(v)
		}
	}
	return nil
}

// removeDeadLocals drops locals no surviving get_local refers to.
func removeDeadLocals(cx *ir.Context, fn ir.Function) bool {
	refs := make(map[ir.LocalVar]int)
	for _, b := range cx.Func(fn).Blocks {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			if in.Op == ir.OpGetLocal {
				refs[in.Local]++
			}
		}
	}

	var dead []ir.LocalVar
	for _, l := range cx.Func(fn).Locals {
		if refs[l] == 0 {
			dead = append(dead, l)
		}
	}
	for _, l := range dead {
		cx.RemoveLocal(fn, l)
	}
	return len(dead) > 0
}
