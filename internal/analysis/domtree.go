package analysis

import (
	"sort"

	"ember/internal/ir"
)

// DomTree records, for each reachable block, its immediate dominator, and the
// inverse child relation for O(children) enumeration.
type DomTree struct {
	Entry    ir.Block
	Idom     map[ir.Block]ir.Block // entry block has no entry here
	Children map[ir.Block][]ir.Block
	po       *PostOrder
}

// ComputeDomTree builds the dominator tree with the Cooper–Harvey–Kennedy
// iterative algorithm over the reverse post-order.
func ComputeDomTree(cx *ir.Context, fn ir.Function, po *PostOrder) *DomTree {
	rpo := po.Reverse()
	dt := &DomTree{
		Entry:    cx.EntryBlock(fn),
		Idom:     make(map[ir.Block]ir.Block, len(rpo)),
		Children: make(map[ir.Block][]ir.Block),
		po:       po,
	}
	if len(rpo) == 0 {
		return dt
	}

	// The entry block transiently dominates itself so that intersect has a
	// fixed point to climb to.
	idom := map[ir.Block]ir.Block{dt.Entry: dt.Entry}

	intersect := func(a, b ir.Block) ir.Block {
		for a != b {
			ai, _ := po.Index(a)
			bi, _ := po.Index(b)
			for ai < bi {
				a = idom[a]
				ai, _ = po.Index(a)
			}
			for bi < ai {
				b = idom[b]
				bi, _ = po.Index(b)
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom ir.Block
			for _, p := range cx.Block(b).Preds {
				if _, ok := idom[p]; !ok {
					continue
				}
				if !newIdom.Valid() {
					newIdom = p
				} else {
					newIdom = intersect(newIdom, p)
				}
			}
			if !newIdom.Valid() {
				continue
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	for b, d := range idom {
		if b == dt.Entry {
			continue
		}
		dt.Idom[b] = d
		dt.Children[d] = append(dt.Children[d], b)
	}

	// idom is a map, so child lists come out in random order; put them in
	// reverse post-order so tree walks are reproducible run to run.
	for _, kids := range dt.Children {
		sort.Slice(kids, func(i, j int) bool {
			ki, _ := po.Index(kids[i])
			kj, _ := po.Index(kids[j])
			return ki > kj
		})
	}
	return dt
}

// Dominates reports whether block a dominates block b. Every block dominates
// itself.
func (dt *DomTree) Dominates(a, b ir.Block) bool {
	for {
		if a == b {
			return true
		}
		d, ok := dt.Idom[b]
		if !ok {
			return false
		}
		b = d
	}
}

// ValueDominates reports whether the definition of a dominates the definition
// of b, at instruction granularity: within a single block, position in program
// order decides, and a block argument is defined before every instruction of
// its block. Constants have no definition site and dominate everything;
// nothing but a constant dominates a constant.
func ValueDominates(cx *ir.Context, dt *DomTree, a, b ir.Value) bool {
	ablk, apos, aok := defSite(cx, a)
	if !aok {
		return true // constant
	}
	bblk, bpos, bok := defSite(cx, b)
	if !bok {
		return false
	}
	if ablk == bblk {
		return apos < bpos
	}
	return dt.Dominates(ablk, bblk)
}

// defSite locates the defining block and intra-block position of v. Block
// arguments sit at position -1. Constants have no site.
func defSite(cx *ir.Context, v ir.Value) (ir.Block, int, bool) {
	vd := cx.Value(v)
	switch vd.Kind {
	case ir.ValueArgument:
		return vd.Arg.Block, -1, true
	case ir.ValueInstruction:
		b := vd.Insn.Block
		for i, iv := range cx.Block(b).Insns {
			if iv == v {
				return b, i, true
			}
		}
		return b, len(cx.Block(b).Insns), true
	}
	return 0, 0, false
}
