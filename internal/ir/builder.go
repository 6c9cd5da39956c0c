package ir

// Builder appends instructions to the end of a block. It is the interface the
// lowering stage (and tests) use to produce raw IR; the passes mutate the
// resulting graph in place and never need one.
type Builder struct {
	cx  *Context
	blk Block
}

// BuildAt returns a builder positioned at the end of b.
func (cx *Context) BuildAt(b Block) *Builder {
	return &Builder{cx: cx, blk: b}
}

// Block returns the block the builder appends to.
func (bd *Builder) Block() Block { return bd.blk }

// SetBlock repositions the builder.
func (bd *Builder) SetBlock(b Block) { bd.blk = b }

func (bd *Builder) append(in InsnData) Value {
	in.Block = bd.blk
	v := bd.cx.newInsnValue(in)
	blk := bd.cx.Block(bd.blk)
	blk.Insns = append(blk.Insns, v)
	return v
}

// Binary appends a binary arithmetic or bitwise instruction.
func (bd *Builder) Binary(op BinaryKind, x, y Value) Value {
	return bd.append(InsnData{Op: OpBinary, Binary: op, Args: []Value{x, y}, Ty: bd.cx.TypeOf(x)})
}

// Unary appends a unary instruction.
func (bd *Builder) Unary(op UnaryKind, x Value) Value {
	return bd.append(InsnData{Op: OpUnary, Unary: op, Args: []Value{x}, Ty: bd.cx.TypeOf(x)})
}

// Cmp appends a comparison producing a bool.
func (bd *Builder) Cmp(pred CmpKind, x, y Value) Value {
	return bd.append(InsnData{Op: OpCmp, Cmp: pred, Args: []Value{x, y}, Ty: &BoolType{}})
}

// GetLocal appends an instruction producing the address of l.
func (bd *Builder) GetLocal(l LocalVar) Value {
	ty := &PointerType{Pointee: bd.cx.Local(l).Ty}
	return bd.append(InsnData{Op: OpGetLocal, Local: l, Ty: ty})
}

// GetGlobal appends an instruction producing the address of g.
func (bd *Builder) GetGlobal(g GlobalVar) Value {
	ty := &PointerType{Pointee: bd.cx.Global(g).Ty}
	return bd.append(InsnData{Op: OpGetGlobal, Global: g, Ty: ty})
}

// GetElemPtr appends an aggregate-indexing instruction. elemTy is the type of
// the addressed element.
func (bd *Builder) GetElemPtr(base Value, elemTy Type, indices ...Value) Value {
	args := append([]Value{base}, indices...)
	return bd.append(InsnData{Op: OpGetElemPtr, Args: args, Ty: &PointerType{Pointee: elemTy}})
}

// Load appends a load through ptr.
func (bd *Builder) Load(ptr Value) Value {
	var ty Type
	if p, ok := Pointee(bd.cx.TypeOf(ptr)); ok {
		ty = p
	}
	return bd.append(InsnData{Op: OpLoad, Args: []Value{ptr}, Ty: ty})
}

// Store appends a store of v through ptr. The instruction has no result.
func (bd *Builder) Store(v, ptr Value) Value {
	return bd.append(InsnData{Op: OpStore, Args: []Value{v, ptr}})
}

// MemCopy appends a bulk copy from src to dst.
func (bd *Builder) MemCopy(dst, src Value) Value {
	return bd.append(InsnData{Op: OpMemCopy, Args: []Value{dst, src}})
}

// MemClear appends a bulk zeroing of dst.
func (bd *Builder) MemClear(dst Value) Value {
	return bd.append(InsnData{Op: OpMemClear, Args: []Value{dst}})
}

// CastPtr appends a pointer reinterpretation to elemTy.
func (bd *Builder) CastPtr(ptr Value, elemTy Type) Value {
	return bd.append(InsnData{Op: OpCastPtr, Args: []Value{ptr}, Ty: &PointerType{Pointee: elemTy}})
}

// IntToPtr appends an integer-to-pointer conversion. The result aliases
// arbitrary memory as far as the analyses are concerned.
func (bd *Builder) IntToPtr(v Value, elemTy Type) Value {
	return bd.append(InsnData{Op: OpIntToPtr, Args: []Value{v}, Ty: &PointerType{Pointee: elemTy}})
}

// Call appends a call to callee.
func (bd *Builder) Call(callee Function, args ...Value) Value {
	return bd.append(InsnData{Op: OpCall, Callee: callee, Args: args, Ty: bd.cx.Func(callee).ReturnType})
}

// Asm appends an inline-assembly instruction with the given result type,
// which may be nil.
func (bd *Builder) Asm(text string, retTy Type, args ...Value) Value {
	return bd.append(InsnData{Op: OpAsm, Asm: text, Args: args, Ty: retTy})
}

// Br appends an unconditional branch, recording the predecessor edge.
func (bd *Builder) Br(dest Block, args ...Value) Value {
	bd.cx.addPred(dest, bd.blk)
	return bd.append(InsnData{Op: OpBranch, Dest: BranchTarget{Block: dest, Args: args}})
}

// CondBr appends a conditional branch, recording both predecessor edges.
func (bd *Builder) CondBr(cond Value, then BranchTarget, els BranchTarget) Value {
	bd.cx.addPred(then.Block, bd.blk)
	bd.cx.addPred(els.Block, bd.blk)
	return bd.append(InsnData{Op: OpCondBranch, Args: []Value{cond}, True: then, False: els})
}

// Ret appends a return. vs is empty for unit-returning functions.
func (bd *Builder) Ret(vs ...Value) Value {
	return bd.append(InsnData{Op: OpRet, Args: vs})
}

// ConstUint is a convenience for materializing an integer constant value.
func (bd *Builder) ConstUint(bits int, v uint64) Value {
	return bd.cx.NewConstantValue(UintConst(bits, v))
}

// ConstBool is a convenience for materializing a boolean constant value.
func (bd *Builder) ConstBool(v bool) Value {
	return bd.cx.NewConstantValue(BoolConst(v))
}
