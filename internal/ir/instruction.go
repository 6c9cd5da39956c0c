package ir

// InsnOp tags an instruction with its operation.
type InsnOp uint8

const (
	OpBinary InsnOp = iota + 1
	OpUnary
	OpCmp
	OpLoad
	OpStore
	OpGetLocal
	OpGetGlobal
	OpGetElemPtr
	OpCastPtr
	OpIntToPtr
	OpMemCopy
	OpMemClear
	OpCall
	OpAsm
	OpBranch
	OpCondBranch
	OpRet
)

// BinaryKind selects the operation of an OpBinary instruction.
type BinaryKind uint8

const (
	BinAdd BinaryKind = iota + 1
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
)

// UnaryKind selects the operation of an OpUnary instruction.
type UnaryKind uint8

const (
	UnNot UnaryKind = iota + 1
)

// CmpKind selects the predicate of an OpCmp instruction.
type CmpKind uint8

const (
	CmpEq CmpKind = iota + 1
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// BranchTarget is one outgoing CFG edge: the successor block plus the actual
// values passed to its block arguments, positionally.
type BranchTarget struct {
	Block Block
	Args  []Value
}

// InsnData is the content of an instruction value. Op decides which fields are
// meaningful; Args carries the plain operand values:
//
//	OpBinary, OpCmp        Args[0], Args[1]
//	OpUnary                Args[0]
//	OpLoad                 Args[0] = source pointer
//	OpStore                Args[0] = stored value, Args[1] = destination pointer
//	OpGetElemPtr           Args[0] = base pointer, Args[1:] = indices
//	OpCastPtr, OpIntToPtr  Args[0]
//	OpMemCopy              Args[0] = destination pointer, Args[1] = source pointer
//	OpMemClear             Args[0] = destination pointer
//	OpCall                 Args = call arguments
//	OpAsm                  Args = asm operands
//	OpCondBranch           Args[0] = condition
//	OpRet                  Args[0] = returned value, or empty
//
// Branch edges live in Dest (OpBranch) and True/False (OpCondBranch); their
// Args slices are operands too and participate in use counting and
// substitution like any other operand slot.
type InsnData struct {
	Op    InsnOp
	Block Block // owning block
	Ty    Type  // result type, nil when the instruction produces no value

	Args []Value

	Binary BinaryKind // OpBinary
	Unary  UnaryKind  // OpUnary
	Cmp    CmpKind    // OpCmp

	Local  LocalVar  // OpGetLocal
	Global GlobalVar // OpGetGlobal
	Callee Function  // OpCall
	Asm    string    // OpAsm template text

	Dest  BranchTarget // OpBranch
	True  BranchTarget // OpCondBranch
	False BranchTarget // OpCondBranch
}

// IsTerminator reports whether the instruction ends its block.
func (in *InsnData) IsTerminator() bool {
	switch in.Op {
	case OpBranch, OpCondBranch, OpRet:
		return true
	}
	return false
}

// IsMemoryWrite reports whether the instruction writes through a pointer.
// These never produce a usable value.
func (in *InsnData) IsMemoryWrite() bool {
	switch in.Op {
	case OpStore, OpMemCopy, OpMemClear:
		return true
	}
	return false
}

// MemoryDst returns the destination pointer of a memory-write instruction.
func (in *InsnData) MemoryDst() (Value, bool) {
	switch in.Op {
	case OpStore:
		return in.Args[1], true
	case OpMemCopy, OpMemClear:
		return in.Args[0], true
	}
	return 0, false
}

// HasSideEffect reports whether removing the instruction could change
// observable behavior even when its result is unused. Memory writes are
// deliberately excluded: their removal is legal under the conditions the
// dead-code pass checks separately.
func (in *InsnData) HasSideEffect() bool {
	switch in.Op {
	case OpCall, OpAsm:
		return true
	}
	return in.IsTerminator()
}

// Unobservable reports whether the instruction's result cannot be proven equal
// to any other computation: calls, loads, asm and control flow get fresh value
// numbers and never join a congruence class.
func (in *InsnData) Unobservable() bool {
	switch in.Op {
	case OpCall, OpLoad, OpStore, OpMemCopy, OpMemClear, OpAsm:
		return true
	}
	return in.IsTerminator()
}

// Operands returns every operand slot value, including the actual arguments
// carried on branch edges.
func (in *InsnData) Operands() []Value {
	ops := make([]Value, 0, len(in.Args)+len(in.Dest.Args)+len(in.True.Args)+len(in.False.Args))
	ops = append(ops, in.Args...)
	ops = append(ops, in.Dest.Args...)
	ops = append(ops, in.True.Args...)
	ops = append(ops, in.False.Args...)
	return ops
}

// mapOperands rewrites every operand slot in place through f.
func (in *InsnData) mapOperands(f func(Value) Value) bool {
	changed := false
	rewrite := func(slots []Value) {
		for i, v := range slots {
			if w := f(v); w != v {
				slots[i] = w
				changed = true
			}
		}
	}
	rewrite(in.Args)
	rewrite(in.Dest.Args)
	rewrite(in.True.Args)
	rewrite(in.False.Args)
	return changed
}

// Successors returns the blocks this instruction can branch to.
func (in *InsnData) Successors() []Block {
	switch in.Op {
	case OpBranch:
		return []Block{in.Dest.Block}
	case OpCondBranch:
		return []Block{in.True.Block, in.False.Block}
	}
	return nil
}

// Target returns the branch edge leading to succ, so that callers can append
// or trim its actual arguments.
func (in *InsnData) Target(succ Block) (*BranchTarget, bool) {
	switch in.Op {
	case OpBranch:
		if in.Dest.Block == succ {
			return &in.Dest, true
		}
	case OpCondBranch:
		// A conditional branch may name the same successor on both edges;
		// callers that need both must inspect True and False directly.
		if in.True.Block == succ {
			return &in.True, true
		}
		if in.False.Block == succ {
			return &in.False, true
		}
	}
	return nil, false
}

// Terminator returns the block's terminating instruction value.
func (cx *Context) Terminator(b Block) (Value, bool) {
	bd := cx.Block(b)
	if n := len(bd.Insns); n > 0 {
		if in, ok := cx.InsnOf(bd.Insns[n-1]); ok && in.IsTerminator() {
			return bd.Insns[n-1], true
		}
	}
	return 0, false
}

// Succs returns the successor blocks of b, derived from its terminator.
func (cx *Context) Succs(b Block) []Block {
	t, ok := cx.Terminator(b)
	if !ok {
		return nil
	}
	in, _ := cx.InsnOf(t)
	return in.Successors()
}

// RemoveInsn unlinks the instruction value v from its owning block. The value
// content stays in the arena but becomes unreachable.
func (cx *Context) RemoveInsn(v Value) {
	in, ok := cx.InsnOf(v)
	if !ok {
		return
	}
	bd := cx.Block(in.Block)
	for i, w := range bd.Insns {
		if w == v {
			bd.Insns = append(bd.Insns[:i], bd.Insns[i+1:]...)
			return
		}
	}
}

// RemoveBlockArg drops argument idx of block b, shifting later arguments down
// and trimming the matching actual-argument slot on every predecessor edge.
func (cx *Context) RemoveBlockArg(b Block, idx int) error {
	bd := cx.Block(b)
	if idx < 0 || idx >= len(bd.Args) {
		return &IrError{Detail: "block argument index out of range"}
	}
	bd.Args = append(bd.Args[:idx], bd.Args[idx+1:]...)
	for i := idx; i < len(bd.Args); i++ {
		if ad, ok := cx.ArgOf(bd.Args[i]); ok {
			ad.Index = i
		}
	}
	for _, pred := range bd.Preds {
		t, ok := cx.Terminator(pred)
		if !ok {
			return &IrError{Detail: "predecessor without terminator"}
		}
		in, _ := cx.InsnOf(t)
		trimmed := false
		for _, tgt := range []*BranchTarget{&in.Dest, &in.True, &in.False} {
			if tgt.Block == b && idx < len(tgt.Args) {
				tgt.Args = append(tgt.Args[:idx], tgt.Args[idx+1:]...)
				trimmed = true
			}
		}
		if !trimmed {
			return &IrError{Detail: "predecessor edge missing actual argument"}
		}
	}
	return nil
}

// ReplaceValues applies the substitution repl to every operand slot of every
// instruction in fn, resolving chains (a→b, b→c becomes a→c). Reports whether
// any slot actually changed.
func (cx *Context) ReplaceValues(fn Function, repl map[Value]Value) bool {
	if len(repl) == 0 {
		return false
	}
	resolve := func(v Value) Value {
		w, ok := repl[v]
		for ok {
			v = w
			w, ok = repl[v]
		}
		return v
	}
	changed := false
	fd := cx.Func(fn)
	for _, b := range fd.Blocks {
		for _, iv := range cx.Block(b).Insns {
			if in, ok := cx.InsnOf(iv); ok {
				if in.mapOperands(resolve) {
					changed = true
				}
			}
		}
	}
	return changed
}

// RemoveLocal unlinks a local symbol from its function.
func (cx *Context) RemoveLocal(fn Function, l LocalVar) {
	fd := cx.Func(fn)
	for i, m := range fd.Locals {
		if m == l {
			fd.Locals = append(fd.Locals[:i], fd.Locals[i+1:]...)
			return
		}
	}
}

// RemoveBlock unlinks a block from its function and removes it from the
// predecessor lists of its successors.
func (cx *Context) RemoveBlock(fn Function, b Block) {
	for _, s := range cx.Succs(b) {
		cx.removePred(s, b)
	}
	fd := cx.Func(fn)
	for i, c := range fd.Blocks {
		if c == b {
			fd.Blocks = append(fd.Blocks[:i], fd.Blocks[i+1:]...)
			return
		}
	}
}

func (cx *Context) addPred(b Block, pred Block) {
	bd := cx.Block(b)
	for _, p := range bd.Preds {
		if p == pred {
			return
		}
	}
	bd.Preds = append(bd.Preds, pred)
}

func (cx *Context) removePred(b Block, pred Block) {
	bd := cx.Block(b)
	for i, p := range bd.Preds {
		if p == pred {
			bd.Preds = append(bd.Preds[:i], bd.Preds[i+1:]...)
			return
		}
	}
}

// RemoveFunction unlinks a function from its module.
func (cx *Context) RemoveFunction(m Module, f Function) {
	md := cx.Mod(m)
	for i, g := range md.Functions {
		if g == f {
			md.Functions = append(md.Functions[:i], md.Functions[i+1:]...)
			return
		}
	}
}

// RemoveGlobal unlinks a global from its module.
func (cx *Context) RemoveGlobal(m Module, g GlobalVar) {
	md := cx.Mod(m)
	for i, h := range md.Globals {
		if h == g {
			md.Globals = append(md.Globals[:i], md.Globals[i+1:]...)
			return
		}
	}
}
