package analysis

import (
	"ember/internal/ir"
)

// DomFronts maps each block to its dominance frontier: the join points where
// the block's dominance influence just stops, which is exactly where phi
// arguments must be placed for definitions made in it.
type DomFronts map[ir.Block][]ir.Block

// ComputeDomFronts derives the dominance frontiers from the dominator tree
// (Cytron's construction): only join blocks appear in frontiers, contributed
// by each predecessor's idom chain up to the join's own immediate dominator.
func ComputeDomFronts(cx *ir.Context, fn ir.Function, dt *DomTree) DomFronts {
	df := make(DomFronts)
	for _, b := range cx.Func(fn).Blocks {
		preds := cx.Block(b).Preds
		if len(preds) < 2 {
			continue
		}
		idom, ok := dt.Idom[b]
		if !ok {
			continue // unreachable join
		}
		for _, p := range preds {
			runner := p
			for runner != idom {
				if !df.contains(runner, b) {
					df[runner] = append(df[runner], b)
				}
				d, ok := dt.Idom[runner]
				if !ok {
					break // unreachable predecessor
				}
				runner = d
			}
		}
	}
	return df
}

func (df DomFronts) contains(b, front ir.Block) bool {
	for _, f := range df[b] {
		if f == front {
			return true
		}
	}
	return false
}
