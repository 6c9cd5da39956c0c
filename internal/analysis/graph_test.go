package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"ember/internal/ir"
)

// diamond builds entry -> {left, right} -> join, returning the blocks in that
// order.
func diamond(cx *ir.Context) (ir.Function, []ir.Block) {
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	cond := cx.AddFunctionArg(fn, "c", &ir.BoolType{})

	entry := cx.EntryBlock(fn)
	left := cx.CreateBlock(fn, "left")
	right := cx.CreateBlock(fn, "right")
	join := cx.CreateBlock(fn, "join")

	b := cx.BuildAt(entry)
	b.CondBr(cond, ir.BranchTarget{Block: left}, ir.BranchTarget{Block: right})
	cx.BuildAt(left).Br(join)
	cx.BuildAt(right).Br(join)
	cx.BuildAt(join).Ret()

	return fn, []ir.Block{entry, left, right, join}
}

func TestPostOrderDiamond(t *testing.T) {
	cx := ir.NewContext()
	fn, blocks := diamond(cx)
	entry, join := blocks[0], blocks[3]

	po := ComputePostOrder(cx, fn)
	assert.Len(t, po.Order, 4, "All four blocks are reachable")
	assert.Equal(t, entry, po.Order[len(po.Order)-1], "Entry comes last in post order")
	assert.Equal(t, join, po.Order[0], "Join comes first in post order")

	rpo := po.Reverse()
	assert.Equal(t, entry, rpo[0], "Entry comes first in reverse post order")

	for _, b := range blocks {
		assert.True(t, po.Contains(b))
	}
}

func TestPostOrderSkipsUnreachable(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	entry := cx.EntryBlock(fn)
	orphan := cx.CreateBlock(fn, "orphan")

	cx.BuildAt(entry).Ret()
	cx.BuildAt(orphan).Ret()

	po := ComputePostOrder(cx, fn)
	assert.Len(t, po.Order, 1)
	assert.False(t, po.Contains(orphan), "Unreachable blocks stay out of the order")
}

func TestDomTreeDiamond(t *testing.T) {
	cx := ir.NewContext()
	fn, blocks := diamond(cx)
	entry, left, right, join := blocks[0], blocks[1], blocks[2], blocks[3]

	po := ComputePostOrder(cx, fn)
	dt := ComputeDomTree(cx, fn, po)

	assert.Equal(t, entry, dt.Idom[left])
	assert.Equal(t, entry, dt.Idom[right])
	assert.Equal(t, entry, dt.Idom[join], "Join is dominated by entry, not by either arm")

	assert.True(t, dt.Dominates(entry, join))
	assert.True(t, dt.Dominates(join, join), "Dominance is reflexive")
	assert.False(t, dt.Dominates(left, join))
	assert.False(t, dt.Dominates(left, right))
}

func TestDomTreeLoop(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	cond := cx.AddFunctionArg(fn, "c", &ir.BoolType{})

	entry := cx.EntryBlock(fn)
	header := cx.CreateBlock(fn, "header")
	body := cx.CreateBlock(fn, "body")
	exit := cx.CreateBlock(fn, "exit")

	cx.BuildAt(entry).Br(header)
	cx.BuildAt(header).CondBr(cond, ir.BranchTarget{Block: body}, ir.BranchTarget{Block: exit})
	cx.BuildAt(body).Br(header)
	cx.BuildAt(exit).Ret()

	po := ComputePostOrder(cx, fn)
	dt := ComputeDomTree(cx, fn, po)

	assert.Equal(t, entry, dt.Idom[header])
	assert.Equal(t, header, dt.Idom[body])
	assert.Equal(t, header, dt.Idom[exit])
	assert.True(t, dt.Dominates(header, body))
	assert.False(t, dt.Dominates(body, header), "The back edge does not make the body dominate")
}

func TestDomFrontsDiamond(t *testing.T) {
	cx := ir.NewContext()
	fn, blocks := diamond(cx)
	entry, left, right, join := blocks[0], blocks[1], blocks[2], blocks[3]

	po := ComputePostOrder(cx, fn)
	dt := ComputeDomTree(cx, fn, po)
	df := ComputeDomFronts(cx, fn, dt)

	assert.Equal(t, []ir.Block{join}, df[left])
	assert.Equal(t, []ir.Block{join}, df[right])
	assert.Empty(t, df[entry], "The entry dominates everything, its frontier is empty")
	assert.Empty(t, df[join])
}

func TestDomFrontsLoopHeader(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	cond := cx.AddFunctionArg(fn, "c", &ir.BoolType{})

	entry := cx.EntryBlock(fn)
	header := cx.CreateBlock(fn, "header")
	body := cx.CreateBlock(fn, "body")
	exit := cx.CreateBlock(fn, "exit")

	cx.BuildAt(entry).Br(header)
	cx.BuildAt(header).CondBr(cond, ir.BranchTarget{Block: body}, ir.BranchTarget{Block: exit})
	cx.BuildAt(body).Br(header)
	cx.BuildAt(exit).Ret()

	po := ComputePostOrder(cx, fn)
	dt := ComputeDomTree(cx, fn, po)
	df := ComputeDomFronts(cx, fn, dt)

	assert.Contains(t, df[body], header, "A back edge puts the header in the body's frontier")
	assert.Contains(t, df[header], header, "The header is in its own frontier")
}

func TestValueDominates(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	a := cx.AddFunctionArg(fn, "a", &ir.IntType{Bits: 64})

	entry := cx.EntryBlock(fn)
	next := cx.CreateBlock(fn, "next")

	b := cx.BuildAt(entry)
	v0 := b.Binary(ir.BinAdd, a, a)
	v1 := b.Binary(ir.BinMul, v0, a)
	b.Br(next)
	cx.BuildAt(next).Ret()

	po := ComputePostOrder(cx, fn)
	dt := ComputeDomTree(cx, fn, po)

	assert.True(t, ValueDominates(cx, dt, v0, v1), "Earlier instruction dominates a later one in the same block")
	assert.False(t, ValueDominates(cx, dt, v1, v0))
	assert.True(t, ValueDominates(cx, dt, a, v0), "Block arguments dominate the block body")

	c := cx.NewConstantValue(ir.UintConst(64, 7))
	assert.True(t, ValueDominates(cx, dt, c, v0), "Constants dominate everything")
	assert.False(t, ValueDominates(cx, dt, v0, c), "Nothing dominates a constant")
}

func TestDomTreeChildOrderFollowsReversePostOrder(t *testing.T) {
	cx := ir.NewContext()
	fn, blocks := diamond(cx)
	entry := blocks[0]

	po := ComputePostOrder(cx, fn)
	dt := ComputeDomTree(cx, fn, po)

	kids := dt.Children[entry]
	assert.Len(t, kids, 3)
	for i := 1; i < len(kids); i++ {
		prev, _ := po.Index(kids[i-1])
		cur, _ := po.Index(kids[i])
		assert.Greater(t, prev, cur)
	}

	again := ComputeDomTree(cx, fn, ComputePostOrder(cx, fn))
	assert.Equal(t, dt.Children, again.Children, "Two computations list children identically")
}
