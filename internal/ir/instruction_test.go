package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstructionClassification(t *testing.T) {
	cx := NewContext()
	m := cx.CreateModule("m")
	u64 := &IntType{Bits: 64}

	callee := cx.CreateFunction(m, "callee", &UnitType{})
	cx.BuildAt(cx.EntryBlock(callee)).Ret()

	fn := cx.CreateFunction(m, "f", &UnitType{})
	x := cx.NewLocal(fn, "x", u64, nil)

	b := cx.BuildAt(cx.EntryBlock(fn))
	ptr := b.GetLocal(x)
	st := b.Store(b.ConstUint(64, 1), ptr)
	ld := b.Load(ptr)
	call := b.Call(callee)
	ret := b.Ret()
	_ = ld

	stIn, _ := cx.InsnOf(st)
	assert.True(t, stIn.IsMemoryWrite())
	assert.False(t, stIn.HasSideEffect(), "Memory writes are handled by the alias analysis, not the side-effect bit")
	dst, ok := stIn.MemoryDst()
	assert.True(t, ok)
	assert.Equal(t, ptr, dst)

	callIn, _ := cx.InsnOf(call)
	assert.True(t, callIn.HasSideEffect())
	assert.True(t, callIn.Unobservable())
	assert.False(t, callIn.IsMemoryWrite())

	retIn, _ := cx.InsnOf(ret)
	assert.True(t, retIn.IsTerminator())
	assert.True(t, retIn.HasSideEffect())

	ptrIn, _ := cx.InsnOf(ptr)
	assert.False(t, ptrIn.HasSideEffect())
	assert.False(t, ptrIn.Unobservable())
}

func TestOperandsIncludeBranchTargetArgs(t *testing.T) {
	cx := NewContext()
	m := cx.CreateModule("m")
	u64 := &IntType{Bits: 64}

	fn := cx.CreateFunction(m, "f", &UnitType{})
	cond := cx.AddFunctionArg(fn, "c", &BoolType{})
	a := cx.AddFunctionArg(fn, "a", u64)

	entry := cx.EntryBlock(fn)
	join := cx.CreateBlock(fn, "join")
	cx.AddBlockArg(join, "r", u64)

	b := cx.BuildAt(entry)
	one := b.ConstUint(64, 1)
	cbr := b.CondBr(cond,
		BranchTarget{Block: join, Args: []Value{a}},
		BranchTarget{Block: join, Args: []Value{one}})
	cx.BuildAt(join).Ret()

	in, _ := cx.InsnOf(cbr)
	assert.ElementsMatch(t, []Value{cond, a, one}, in.Operands())
	assert.Equal(t, []Block{join}, in.Successors())
}

func TestRemoveBlockArg(t *testing.T) {
	cx := NewContext()
	m := cx.CreateModule("m")
	u64 := &IntType{Bits: 64}

	fn := cx.CreateFunction(m, "f", &UnitType{})
	a := cx.AddFunctionArg(fn, "a", u64)

	entry := cx.EntryBlock(fn)
	next := cx.CreateBlock(fn, "next")
	p := cx.AddBlockArg(next, "p", u64)
	q := cx.AddBlockArg(next, "q", u64)

	b := cx.BuildAt(entry)
	b.Br(next, a, b.ConstUint(64, 2))
	cx.BuildAt(next).Ret(q)

	err := cx.RemoveBlockArg(next, 0)
	assert.NoError(t, err)

	nd := cx.Block(next)
	assert.Equal(t, []Value{q}, nd.Args)
	qd, _ := cx.ArgOf(q)
	assert.Equal(t, 0, qd.Index, "Surviving arguments are renumbered")

	term, _ := cx.Terminator(entry)
	tin, _ := cx.InsnOf(term)
	assert.Len(t, tin.Dest.Args, 1, "The matching actual argument is trimmed")

	assert.Error(t, cx.RemoveBlockArg(next, 5))
	_ = p
}

func TestReplaceValuesResolvesChains(t *testing.T) {
	cx := NewContext()
	m := cx.CreateModule("m")
	u64 := &IntType{Bits: 64}

	fn := cx.CreateFunction(m, "f", u64)
	a := cx.AddFunctionArg(fn, "a", u64)

	b := cx.BuildAt(cx.EntryBlock(fn))
	v0 := b.Binary(BinAdd, a, a)
	v1 := b.Binary(BinAdd, a, a)
	v2 := b.Binary(BinAdd, a, a)
	use := b.Binary(BinMul, v2, v2)
	b.Ret(use)

	// v2 -> v1 -> v0: substitution chains resolve to their end.
	changed := cx.ReplaceValues(fn, map[Value]Value{v2: v1, v1: v0})
	assert.True(t, changed)
	in, _ := cx.InsnOf(use)
	assert.Equal(t, []Value{v0, v0}, in.Args)

	changed = cx.ReplaceValues(fn, map[Value]Value{v2: v1, v1: v0})
	assert.False(t, changed, "Replacing already-rewritten uses reports no change")
}

func TestRemoveBlockFixesPredLists(t *testing.T) {
	cx := NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &UnitType{})
	cond := cx.AddFunctionArg(fn, "c", &BoolType{})

	entry := cx.EntryBlock(fn)
	side := cx.CreateBlock(fn, "side")
	out := cx.CreateBlock(fn, "out")

	cx.BuildAt(entry).CondBr(cond, BranchTarget{Block: side}, BranchTarget{Block: out})
	cx.BuildAt(side).Br(out)
	cx.BuildAt(out).Ret()

	assert.ElementsMatch(t, []Block{entry, side}, cx.Block(out).Preds)
	cx.RemoveBlock(fn, side)
	assert.Equal(t, []Block{entry}, cx.Block(out).Preds)
	assert.Len(t, cx.Func(fn).Blocks, 2)
}
