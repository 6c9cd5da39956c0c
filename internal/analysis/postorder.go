// Package analysis provides the reusable graph and alias analyses the
// optimization passes are built on: CFG traversal orders, the dominator tree
// and its frontiers, and the conservative symbol/escape analyses. Analyses
// only read the Context; transforms own all mutation.
package analysis

import (
	"ember/internal/ir"
)

// PostOrder is a depth-first post-order of the blocks reachable from the
// function's entry block. Its reversal seeds fixed-point iteration with fast
// convergence.
type PostOrder struct {
	Order []ir.Block // post-order
	pos   map[ir.Block]int
}

// ComputePostOrder traverses fn's CFG from the entry block. The walk uses an
// explicit stack: block graphs of generated contract code can be deep enough
// to make native recursion a hazard.
func ComputePostOrder(cx *ir.Context, fn ir.Function) *PostOrder {
	type frame struct {
		block ir.Block
		succs []ir.Block
		next  int
	}
	po := &PostOrder{pos: make(map[ir.Block]int)}
	visited := map[ir.Block]bool{}

	entry := cx.EntryBlock(fn)
	visited[entry] = true
	stack := []frame{{block: entry, succs: cx.Succs(entry)}}

	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.next < len(f.succs) {
			s := f.succs[f.next]
			f.next++
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{block: s, succs: cx.Succs(s)})
			}
			continue
		}
		po.pos[f.block] = len(po.Order)
		po.Order = append(po.Order, f.block)
		stack = stack[:len(stack)-1]
	}
	return po
}

// Reverse returns the blocks in reverse post-order: each block before its
// successors, back edges aside.
func (po *PostOrder) Reverse() []ir.Block {
	out := make([]ir.Block, len(po.Order))
	for i, b := range po.Order {
		out[len(out)-1-i] = b
	}
	return out
}

// Contains reports whether b was reached from the entry block.
func (po *PostOrder) Contains(b ir.Block) bool {
	_, ok := po.pos[b]
	return ok
}

// Index returns b's post-order number.
func (po *PostOrder) Index(b ir.Block) (int, bool) {
	i, ok := po.pos[b]
	return i, ok
}
