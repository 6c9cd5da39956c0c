package analysis

import (
	"ember/internal/ir"
)

// Symbol names one storage location: a function local or a module global.
type Symbol struct {
	Local  ir.LocalVar
	Global ir.GlobalVar
}

// LocalSymbol wraps a local variable as a Symbol.
func LocalSymbol(l ir.LocalVar) Symbol { return Symbol{Local: l} }

// GlobalSymbol wraps a global variable as a Symbol.
func GlobalSymbol(g ir.GlobalVar) Symbol { return Symbol{Global: g} }

// IsLocal reports whether the symbol names a local.
func (s Symbol) IsLocal() bool { return s.Local.Valid() }

// Type returns the symbol's storage type.
func (s Symbol) Type(cx *ir.Context) ir.Type {
	if s.IsLocal() {
		return cx.Local(s.Local).Ty
	}
	return cx.Global(s.Global).Ty
}

// Initializer returns the symbol's static initializer, if any.
func (s Symbol) Initializer(cx *ir.Context) *ir.Constant {
	if s.IsLocal() {
		return cx.Local(s.Local).Initializer
	}
	return cx.Global(s.Global).Initializer
}

// Name returns the symbol's declared name.
func (s Symbol) Name(cx *ir.Context) string {
	if s.IsLocal() {
		return cx.Local(s.Local).Name
	}
	return cx.Global(s.Global).Name
}

// SymbolSet is a set of symbols.
type SymbolSet map[Symbol]struct{}

// Add inserts s.
func (ss SymbolSet) Add(s Symbol) { ss[s] = struct{}{} }

// Contains reports membership.
func (ss SymbolSet) Contains(s Symbol) bool {
	_, ok := ss[s]
	return ok
}

// ReferredSymbols is the result of tracing which storage symbols a pointer (or
// a whole function's escaping pointers) may address. It is deliberately a
// two-variant type: either the set is exact, or precision was lost and every
// symbol must be treated as included. Consumers must branch through Known and
// take the conservative path on !ok — there is no way to read an Incomplete
// result as an empty set.
type ReferredSymbols struct {
	incomplete bool
	syms       SymbolSet
}

// CompleteSymbols wraps an exact symbol set.
func CompleteSymbols(ss SymbolSet) ReferredSymbols {
	if ss == nil {
		ss = make(SymbolSet)
	}
	return ReferredSymbols{syms: ss}
}

// IncompleteSymbols is the precision-lost sentinel.
func IncompleteSymbols() ReferredSymbols {
	return ReferredSymbols{incomplete: true}
}

// Known returns the exact set, or ok=false when the result is incomplete.
func (rs ReferredSymbols) Known() (SymbolSet, bool) {
	if rs.incomplete {
		return nil, false
	}
	return rs.syms, true
}

// IsIncomplete reports whether precision was lost.
func (rs ReferredSymbols) IsIncomplete() bool { return rs.incomplete }

// union merges two results; incompleteness is contagious.
func (rs ReferredSymbols) union(o ReferredSymbols) ReferredSymbols {
	if rs.incomplete || o.incomplete {
		return IncompleteSymbols()
	}
	merged := make(SymbolSet, len(rs.syms)+len(o.syms))
	for s := range rs.syms {
		merged.Add(s)
	}
	for s := range o.syms {
		merged.Add(s)
	}
	return CompleteSymbols(merged)
}

// PointerSymbols traces the symbol a pointer value ultimately addresses,
// through get_elem_ptr and cast_ptr chains back to get_local / get_global.
// Pointers of any other provenance (int_to_ptr, call results, loaded pointers,
// block arguments) lose precision.
func PointerSymbols(cx *ir.Context, ptr ir.Value) ReferredSymbols {
	in, ok := cx.InsnOf(ptr)
	if !ok {
		return IncompleteSymbols()
	}
	switch in.Op {
	case ir.OpGetLocal:
		ss := make(SymbolSet, 1)
		ss.Add(LocalSymbol(in.Local))
		return CompleteSymbols(ss)
	case ir.OpGetGlobal:
		ss := make(SymbolSet, 1)
		ss.Add(GlobalSymbol(in.Global))
		return CompleteSymbols(ss)
	case ir.OpGetElemPtr, ir.OpCastPtr:
		return PointerSymbols(cx, in.Args[0])
	default:
		return IncompleteSymbols()
	}
}

// EscapedSymbols computes the set of symbols whose address is handed to
// something this analysis cannot see through: passed to a call, written to
// memory as a plain value, reinterpreted by a cast, fed to inline asm,
// returned, or passed along a CFG edge. A store *through* a pointer does not
// escape it; a store *of* a pointer does.
func EscapedSymbols(cx *ir.Context, fn ir.Function) ReferredSymbols {
	escaped := CompleteSymbols(nil)
	escape := func(v ir.Value) {
		if _, ok := ir.Pointee(cx.TypeOf(v)); !ok {
			return
		}
		escaped = escaped.union(PointerSymbols(cx, v))
	}

	for _, b := range cx.Func(fn).Blocks {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			switch in.Op {
			case ir.OpStore:
				escape(in.Args[0]) // the stored value, not the destination
			case ir.OpCall, ir.OpAsm, ir.OpRet:
				for _, a := range in.Args {
					escape(a)
				}
			case ir.OpCastPtr, ir.OpIntToPtr:
				escape(in.Args[0])
			case ir.OpBranch, ir.OpCondBranch:
				for _, a := range in.Operands() {
					escape(a)
				}
			}
		}
	}
	return escaped
}

// SymbolLoads counts, per symbol, how many loads read it. Unknown when some
// load reads through an untraceable pointer.
type SymbolLoads struct {
	unknown bool
	counts  map[Symbol]int
}

// Known returns the per-symbol load counts, or ok=false.
func (sl SymbolLoads) Known() (map[Symbol]int, bool) {
	if sl.unknown {
		return nil, false
	}
	return sl.counts, true
}

// SymbolStores lists, per symbol, the memory-write instructions targeting it.
// Unknown when some write goes through an untraceable pointer.
type SymbolStores struct {
	unknown bool
	stores  map[Symbol][]ir.Value
}

// Known returns the per-symbol store lists, or ok=false.
func (ss SymbolStores) Known() (map[Symbol][]ir.Value, bool) {
	if ss.unknown {
		return nil, false
	}
	return ss.stores, true
}

// CountSymbolLoads computes SymbolLoads for fn. mem_copy reads its source
// symbol, so it counts as a load of it.
func CountSymbolLoads(cx *ir.Context, fn ir.Function) SymbolLoads {
	counts := make(map[Symbol]int)
	for _, b := range cx.Func(fn).Blocks {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			var src ir.Value
			switch in.Op {
			case ir.OpLoad:
				src = in.Args[0]
			case ir.OpMemCopy:
				src = in.Args[1]
			default:
				continue
			}
			syms, ok := PointerSymbols(cx, src).Known()
			if !ok {
				return SymbolLoads{unknown: true}
			}
			for s := range syms {
				counts[s]++
			}
		}
	}
	return SymbolLoads{counts: counts}
}

// CollectSymbolStores computes SymbolStores for fn.
func CollectSymbolStores(cx *ir.Context, fn ir.Function) SymbolStores {
	stores := make(map[Symbol][]ir.Value)
	for _, b := range cx.Func(fn).Blocks {
		for _, iv := range cx.Block(b).Insns {
			in, _ := cx.InsnOf(iv)
			dst, ok := in.MemoryDst()
			if !ok {
				continue
			}
			syms, known := PointerSymbols(cx, dst).Known()
			if !known {
				return SymbolStores{unknown: true}
			}
			for s := range syms {
				stores[s] = append(stores[s], iv)
			}
		}
	}
	return SymbolStores{stores: stores}
}
