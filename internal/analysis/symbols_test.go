package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"ember/internal/ir"
)

var u64 = &ir.IntType{Bits: 64}

func TestPointerSymbolsTracesAddressChains(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	x := cx.NewLocal(fn, "x", &ir.ArrayType{Elem: u64, Len: 4}, nil)
	g := cx.NewGlobal(m, "g", u64, nil, true)

	b := cx.BuildAt(cx.EntryBlock(fn))
	px := b.GetLocal(x)
	pg := b.GetGlobal(g)
	elem := b.GetElemPtr(px, u64, b.ConstUint(64, 2))
	cast := b.CastPtr(elem, &ir.IntType{Bits: 8})
	wild := b.IntToPtr(b.ConstUint(64, 64), u64)
	b.Ret()

	syms, ok := PointerSymbols(cx, px).Known()
	assert.True(t, ok)
	assert.True(t, syms.Contains(LocalSymbol(x)))

	syms, ok = PointerSymbols(cx, pg).Known()
	assert.True(t, ok)
	assert.True(t, syms.Contains(GlobalSymbol(g)))

	syms, ok = PointerSymbols(cx, cast).Known()
	assert.True(t, ok, "get_elem_ptr and cast_ptr chains stay traceable")
	assert.True(t, syms.Contains(LocalSymbol(x)))

	assert.True(t, PointerSymbols(cx, wild).IsIncomplete(), "int_to_ptr loses the symbol")
}

func TestEscapedSymbolsCallArgument(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	sink := cx.CreateFunction(m, "sink", &ir.UnitType{})
	cx.AddFunctionArg(sink, "p", &ir.PointerType{Pointee: u64})
	cx.BuildAt(cx.EntryBlock(sink)).Ret()

	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	x := cx.NewLocal(fn, "x", u64, nil)
	y := cx.NewLocal(fn, "y", u64, nil)

	b := cx.BuildAt(cx.EntryBlock(fn))
	px := b.GetLocal(x)
	py := b.GetLocal(y)
	b.Call(sink, px)
	b.Store(b.ConstUint(64, 1), py)
	b.Ret()

	syms, ok := EscapedSymbols(cx, fn).Known()
	assert.True(t, ok)
	assert.True(t, syms.Contains(LocalSymbol(x)), "Pointer passed to a call escapes")
	assert.False(t, syms.Contains(LocalSymbol(y)), "Storing through a pointer does not escape it")
}

func TestEscapedSymbolsStoredPointer(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	x := cx.NewLocal(fn, "x", u64, nil)
	slot := cx.NewLocal(fn, "slot", &ir.PointerType{Pointee: u64}, nil)

	b := cx.BuildAt(cx.EntryBlock(fn))
	px := b.GetLocal(x)
	pslot := b.GetLocal(slot)
	b.Store(px, pslot)
	b.Ret()

	syms, ok := EscapedSymbols(cx, fn).Known()
	assert.True(t, ok)
	assert.True(t, syms.Contains(LocalSymbol(x)), "A pointer written to memory escapes")
	assert.False(t, syms.Contains(LocalSymbol(slot)))
}

func TestCountSymbolLoads(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	x := cx.NewLocal(fn, "x", u64, nil)

	b := cx.BuildAt(cx.EntryBlock(fn))
	b.Load(b.GetLocal(x))
	b.Load(b.GetLocal(x))
	b.Ret()

	counts, ok := CountSymbolLoads(cx, fn).Known()
	assert.True(t, ok)
	assert.Equal(t, 2, counts[LocalSymbol(x)])
}

func TestCountSymbolLoadsUnknownThroughIntToPtr(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})

	b := cx.BuildAt(cx.EntryBlock(fn))
	wild := b.IntToPtr(b.ConstUint(64, 64), u64)
	b.Load(wild)
	b.Ret()

	_, ok := CountSymbolLoads(cx, fn).Known()
	assert.False(t, ok, "A load through an untraceable pointer poisons the counts")
}

func TestCollectSymbolStores(t *testing.T) {
	cx := ir.NewContext()
	m := cx.CreateModule("m")
	fn := cx.CreateFunction(m, "f", &ir.UnitType{})
	x := cx.NewLocal(fn, "x", u64, nil)
	y := cx.NewLocal(fn, "y", u64, nil)

	b := cx.BuildAt(cx.EntryBlock(fn))
	st := b.Store(b.ConstUint(64, 1), b.GetLocal(x))
	mc := b.MemCopy(b.GetLocal(y), b.GetLocal(x))
	b.Ret()

	stores, ok := CollectSymbolStores(cx, fn).Known()
	assert.True(t, ok)
	assert.Equal(t, []ir.Value{st}, stores[LocalSymbol(x)])
	assert.Equal(t, []ir.Value{mc}, stores[LocalSymbol(y)], "mem_copy writes its destination")
}

func TestReferredSymbolsIncompletenessIsContagious(t *testing.T) {
	ss := make(SymbolSet)
	ss.Add(LocalSymbol(1))

	merged := CompleteSymbols(ss).union(IncompleteSymbols())
	assert.True(t, merged.IsIncomplete())
	_, ok := merged.Known()
	assert.False(t, ok, "An incomplete set never reads as an empty one")
}
