package passes

import (
	"fmt"

	"github.com/oleiade/lane"

	"ember/internal/analysis"
	"ember/internal/ir"
)

// Mem2RegPass promotes loads and stores of safe locals and globals into direct
// SSA value flow.
var Mem2RegPass = Pass{
	Name:        "mem2reg",
	Description: "promote memory accesses of safe symbols to SSA values",
	Needs:       []AnalysisKind{NeedPostOrder, NeedDomTree, NeedDomFronts},
	Run:         runMem2Reg,
}

func runMem2Reg(cx *ir.Context, fn ir.Function, a *Analyses) (bool, error) {
	replace := make(map[ir.Value]ir.Value)
	var deleted []ir.Value

	foldImmutableGlobalLoads(cx, fn, replace, &deleted)

	promo := promotableLocals(cx, fn)
	inserted := false
	if len(promo) > 0 {
		liveIn := computeLiveIn(cx, fn, a.PostOrder(), promo)
		argLocal := placePhis(cx, fn, a, promo, liveIn)
		inserted = len(argLocal) > 0
		if err := renameUses(cx, fn, a.DomTree(), promo, argLocal, replace, &deleted); err != nil {
			return false, err
		}
	}

	changed := cx.ReplaceValues(fn, replace)
	for _, v := range deleted {
		cx.RemoveInsn(v)
	}
	return changed || inserted || len(deleted) > 0, nil
}

// foldImmutableGlobalLoads replaces every load of a non-mutable global of
// register type directly with its statically known initializer.
func foldImmutableGlobalLoads(cx *ir.Context, fn ir.Function, replace map[ir.Value]ir.Value, deleted *[]ir.Value) {
	for _, b := range cx.Func(fn).Blocks {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			if in.Op != ir.OpLoad {
				continue
			}
			src, ok := cx.InsnOf(in.Args[0])
			if !ok || src.Op != ir.OpGetGlobal {
				continue
			}
			gd := cx.Global(src.Global)
			if gd.Mutable || gd.Initializer == nil || !ir.IsRegisterType(gd.Ty) {
				continue
			}
			replace[iv] = cx.NewConstantValue(*gd.Initializer)
			*deleted = append(*deleted, iv)
		}
	}
}

// promotableLocals applies the eligibility filter: a local qualifies when its
// type is a small scalar and its address is only ever consumed directly by a
// load, or as the destination of a store. Any other use of the address — a
// call argument, a comparison, a cast, an aggregate index — silently
// disqualifies it.
func promotableLocals(cx *ir.Context, fn ir.Function) map[ir.LocalVar]bool {
	promo := make(map[ir.LocalVar]bool)
	for _, l := range cx.Func(fn).Locals {
		if ir.IsRegisterType(cx.Local(l).Ty) {
			promo[l] = true
		}
	}
	for _, b := range cx.Func(fn).Blocks {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			for slot, op := range in.Operands() {
				src, ok := cx.InsnOf(op)
				if !ok || src.Op != ir.OpGetLocal {
					continue
				}
				loadSrc := in.Op == ir.OpLoad && slot == 0
				storeDst := in.Op == ir.OpStore && slot == 1
				if !loadSrc && !storeDst {
					delete(promo, src.Local)
				}
			}
		}
	}
	return promo
}

// localOfPtr resolves a pointer operand to the promotable local it directly
// addresses, if any. Eligible locals are only ever addressed by a bare
// get_local, so no chain walking is needed here.
func localOfPtr(cx *ir.Context, ptr ir.Value, promo map[ir.LocalVar]bool) (ir.LocalVar, bool) {
	in, ok := cx.InsnOf(ptr)
	if !ok || in.Op != ir.OpGetLocal || !promo[in.Local] {
		return 0, false
	}
	return in.Local, true
}

type localSet map[ir.LocalVar]bool

// computeLiveIn runs the backward liveness fixed point over the promotable
// locals: a load makes its symbol live upstream, a store kills it. Iterating
// in post-order converges quickly for a backward problem.
func computeLiveIn(cx *ir.Context, fn ir.Function, po *analysis.PostOrder, promo map[ir.LocalVar]bool) map[ir.Block]localSet {
	liveIn := make(map[ir.Block]localSet)
	for _, b := range cx.Func(fn).Blocks {
		liveIn[b] = make(localSet)
	}

	for changed := true; changed; {
		changed = false
		for _, b := range po.Order {
			live := make(localSet)
			for _, s := range cx.Succs(b) {
				for l := range liveIn[s] {
					live[l] = true
				}
			}
			insns := cx.Block(b).Insns
			for i := len(insns) - 1; i >= 0; i-- {
				in, _ := cx.InsnOf(insns[i])
				switch in.Op {
				case ir.OpLoad:
					if l, ok := localOfPtr(cx, in.Args[0], promo); ok {
						live[l] = true
					}
				case ir.OpStore:
					if l, ok := localOfPtr(cx, in.Args[1], promo); ok {
						delete(live, l)
					}
				}
			}
			if !sameLocalSet(live, liveIn[b]) {
				liveIn[b] = live
				changed = true
			}
		}
	}
	return liveIn
}

func sameLocalSet(a, b localSet) bool {
	if len(a) != len(b) {
		return false
	}
	for l := range a {
		if !b[l] {
			return false
		}
	}
	return true
}

// placePhis inserts block arguments at the iterated dominance frontier of
// every store, pruned by liveness. It returns the mapping from each inserted
// argument value to the local it carries.
func placePhis(cx *ir.Context, fn ir.Function, a *Analyses, promo map[ir.LocalVar]bool, liveIn map[ir.Block]localSet) map[ir.Value]ir.LocalVar {
	type item struct {
		local ir.LocalVar
		block ir.Block
	}
	df := a.DomFronts()
	q := lane.NewQueue()

	// Seed with every store site, in reverse post-order for convergence.
	for _, b := range a.PostOrder().Reverse() {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			if in.Op != ir.OpStore {
				continue
			}
			if l, ok := localOfPtr(cx, in.Args[1], promo); ok {
				q.Enqueue(item{local: l, block: b})
			}
		}
	}

	placed := make(map[ir.LocalVar]map[ir.Block]bool)
	argLocal := make(map[ir.Value]ir.LocalVar)
	nphi := 0

	for !q.Empty() {
		it := q.Dequeue().(item)
		for _, front := range df[it.block] {
			if !liveIn[front][it.local] {
				continue
			}
			if placed[it.local][front] {
				continue
			}
			if placed[it.local] == nil {
				placed[it.local] = make(map[ir.Block]bool)
			}
			placed[it.local][front] = true

			ld := cx.Local(it.local)
			name := fmt.Sprintf("%s.%d", ld.Name, nphi)
			nphi++
			arg := cx.AddBlockArg(front, name, ld.Ty)
			argLocal[arg] = it.local

			// The new argument is itself a definition of the local.
			q.Enqueue(item{local: it.local, block: front})
		}
	}
	return argLocal
}

// renameUses walks the dominator tree once, carrying a stack of the currently
// visible SSA value per local. The walk keeps its own explicit frame stack:
// dominator trees of generated code can be too deep for native recursion.
func renameUses(cx *ir.Context, fn ir.Function, dt *analysis.DomTree, promo map[ir.LocalVar]bool,
	argLocal map[ir.Value]ir.LocalVar, replace map[ir.Value]ir.Value, deleted *[]ir.Value) error {

	stacks := make(map[ir.LocalVar][]ir.Value)
	top := func(l ir.LocalVar) ir.Value {
		if s := stacks[l]; len(s) != 0 {
			return s[len(s)-1]
		}
		return cx.NewConstantValue(initializerOf(cx, l))
	}

	type frame struct {
		block  ir.Block
		child  int
		pushed map[ir.LocalVar]int
	}
	stack := []frame{{block: dt.Entry}}
	enter := func(f *frame) error {
		f.pushed = make(map[ir.LocalVar]int)
		bd := cx.Block(f.block)

		// Phi arguments of this block shadow whatever was visible above.
		for _, arg := range bd.Args {
			if l, ok := argLocal[arg]; ok {
				stacks[l] = append(stacks[l], arg)
				f.pushed[l]++
			}
		}

		for _, iv := range bd.Insns {
			in, _ := cx.InsnOf(iv)
			switch in.Op {
			case ir.OpLoad:
				if l, ok := localOfPtr(cx, in.Args[0], promo); ok {
					replace[iv] = top(l)
					*deleted = append(*deleted, iv)
				}
			case ir.OpStore:
				if l, ok := localOfPtr(cx, in.Args[1], promo); ok {
					stacks[l] = append(stacks[l], in.Args[0])
					f.pushed[l]++
					*deleted = append(*deleted, iv)
				}
			}
		}

		// Feed the phi arguments of every successor edge with the values
		// visible at the end of this block.
		tv, ok := cx.Terminator(f.block)
		if !ok {
			return ir.Errorf("mem2reg", "block %q has no terminator", bd.Label)
		}
		tin, _ := cx.InsnOf(tv)
		for _, tgt := range []*ir.BranchTarget{&tin.Dest, &tin.True, &tin.False} {
			if !tgt.Block.Valid() {
				continue
			}
			for _, arg := range cx.Block(tgt.Block).Args {
				if l, ok := argLocal[arg]; ok {
					tgt.Args = append(tgt.Args, top(l))
				}
			}
		}
		return nil
	}

	if err := enter(&stack[0]); err != nil {
		return err
	}
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		children := dt.Children[f.block]
		if f.child < len(children) {
			c := children[f.child]
			f.child++
			stack = append(stack, frame{block: c})
			if err := enter(&stack[len(stack)-1]); err != nil {
				return err
			}
			continue
		}
		for l, n := range f.pushed {
			stacks[l] = stacks[l][:len(stacks[l])-n]
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// initializerOf yields the local's static initializer, defaulting to the
// zero value of its type when none was declared.
func initializerOf(cx *ir.Context, l ir.LocalVar) ir.Constant {
	ld := cx.Local(l)
	if ld.Initializer != nil {
		return *ld.Initializer
	}
	switch ty := ld.Ty.(type) {
	case *ir.BoolType:
		return ir.BoolConst(false)
	case *ir.IntType:
		return ir.UintConst(ty.Bits, 0)
	default:
		return ir.UnitConst()
	}
}
