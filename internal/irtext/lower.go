package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"ember/internal/ir"
)

// Lower builds IR in cx from a parsed file. Functions and globals may be
// referenced before their definition line; values must be defined before use.
func Lower(cx *ir.Context, file *File) ([]ir.Module, error) {
	var mods []ir.Module
	for _, md := range file.Modules {
		m, err := lowerModule(cx, md)
		if err != nil {
			return nil, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}

// LowerString parses and lowers in one step.
func LowerString(cx *ir.Context, name, source string) ([]ir.Module, error) {
	file, err := ParseString(name, source)
	if err != nil {
		return nil, err
	}
	return Lower(cx, file)
}

type lowerer struct {
	cx      *ir.Context
	globals map[string]ir.GlobalVar
	fns     map[string]ir.Function
}

func lowerModule(cx *ir.Context, md *ModuleDecl) (ir.Module, error) {
	l := &lowerer{
		cx:      cx,
		globals: make(map[string]ir.GlobalVar),
		fns:     make(map[string]ir.Function),
	}
	m := cx.CreateModule(md.Name)

	for _, gd := range md.Globals {
		ty, err := lowerType(gd.Ty)
		if err != nil {
			return 0, err
		}
		var init *ir.Constant
		if gd.Init != nil {
			c, err := lowerConst(gd.Init)
			if err != nil {
				return 0, err
			}
			if !c.Ty.Equal(ty) {
				return 0, fmt.Errorf("global %s: initializer type %s does not match %s", gd.Name, c.Ty, ty)
			}
			init = &c
		}
		if init == nil && !gd.Mutable {
			return 0, fmt.Errorf("global %s: immutable globals need an initializer", gd.Name)
		}
		l.globals[gd.Name] = cx.NewGlobal(m, gd.Name, ty, init, gd.Mutable)
	}

	// Declare every function first so calls can reference ones defined later
	// in the file.
	for _, fd := range md.Funcs {
		if err := l.declareFunction(m, fd); err != nil {
			return 0, err
		}
	}
	for _, fd := range md.Funcs {
		if err := l.lowerBody(fd); err != nil {
			return 0, fmt.Errorf("fn %s: %w", fd.Name, err)
		}
	}
	return m, nil
}

func (l *lowerer) declareFunction(m ir.Module, fd *FuncDecl) error {
	if _, dup := l.fns[fd.Name]; dup {
		return fmt.Errorf("fn %s: redefined", fd.Name)
	}
	ret := ir.Type(&ir.UnitType{})
	if fd.Ret != nil {
		ty, err := lowerType(fd.Ret)
		if err != nil {
			return err
		}
		ret = ty
	}
	fn := l.cx.CreateFunction(m, fd.Name, ret)
	fnData := l.cx.Func(fn)
	for _, flag := range fd.Flags {
		switch flag {
		case "entry":
			fnData.Entry = true
		case "fallback":
			fnData.Fallback = true
		case "config_decoder":
			fnData.ConfigDecoder = true
		}
	}
	for _, p := range fd.Params {
		ty, err := lowerType(p.Ty)
		if err != nil {
			return err
		}
		l.cx.AddFunctionArg(fn, p.Name, ty)
	}
	l.fns[fd.Name] = fn
	return nil
}

// funcLowerer carries the per-function name environments.
type funcLowerer struct {
	*lowerer
	fn     ir.Function
	blocks map[string]ir.Block
	locals map[string]ir.LocalVar
	env    map[string]ir.Value
}

func (l *lowerer) lowerBody(fd *FuncDecl) error {
	fl := &funcLowerer{
		lowerer: l,
		fn:      l.fns[fd.Name],
		blocks:  make(map[string]ir.Block),
		locals:  make(map[string]ir.LocalVar),
		env:     make(map[string]ir.Value),
	}

	for _, ld := range fd.Locals {
		ty, err := lowerType(ld.Ty)
		if err != nil {
			return err
		}
		var init *ir.Constant
		if ld.Init != nil {
			c, err := lowerConst(ld.Init)
			if err != nil {
				return err
			}
			init = &c
		}
		fl.locals[ld.Name] = l.cx.NewLocal(fl.fn, ld.Name, ty, init)
	}

	for _, av := range l.cx.Func(fl.fn).Args {
		ad, _ := l.cx.ArgOf(av)
		fl.env[ad.Name] = av
	}

	// First declare all blocks and their arguments so branches can target
	// blocks defined later.
	if len(fd.Blocks) == 0 {
		return fmt.Errorf("no blocks")
	}
	for i, bd := range fd.Blocks {
		if i == 0 {
			if len(bd.Params) > 0 {
				return fmt.Errorf("entry block %s: arguments belong in the function header", bd.Label)
			}
			entry := l.cx.EntryBlock(fl.fn)
			l.cx.Block(entry).Label = bd.Label
			fl.blocks[bd.Label] = entry
			continue
		}
		b := l.cx.CreateBlock(fl.fn, bd.Label)
		fl.blocks[bd.Label] = b
		for _, p := range bd.Params {
			ty, err := lowerType(p.Ty)
			if err != nil {
				return err
			}
			fl.env[p.Name] = l.cx.AddBlockArg(b, p.Name, ty)
		}
	}

	for _, bd := range fd.Blocks {
		if err := fl.lowerBlock(bd); err != nil {
			return fmt.Errorf("block %s: %w", bd.Label, err)
		}
	}
	return nil
}

func (fl *funcLowerer) lowerBlock(bd *BlockDecl) error {
	b := fl.cx.BuildAt(fl.blocks[bd.Label])
	for _, stmt := range bd.Insns {
		v, err := fl.lowerInsn(b, stmt.Op)
		if err != nil {
			return err
		}
		if stmt.Result != "" {
			if _, dup := fl.env[stmt.Result]; dup {
				return fmt.Errorf("%s: redefined", stmt.Result)
			}
			fl.env[stmt.Result] = v
		}
	}
	return nil
}

func (fl *funcLowerer) lowerInsn(b *ir.Builder, op *OpStmt) (ir.Value, error) {
	switch {
	case op.Binary != nil:
		x, y, err := fl.operand2(op.Binary.X, op.Binary.Y)
		if err != nil {
			return 0, err
		}
		return b.Binary(binaryKinds[op.Binary.Op], x, y), nil
	case op.Unary != nil:
		x, err := fl.operand(op.Unary.X)
		if err != nil {
			return 0, err
		}
		return b.Unary(ir.UnNot, x), nil
	case op.Cmp != nil:
		x, y, err := fl.operand2(op.Cmp.X, op.Cmp.Y)
		if err != nil {
			return 0, err
		}
		return b.Cmp(cmpKinds[op.Cmp.Pred], x, y), nil
	case op.Load != nil:
		ptr, err := fl.operand(op.Load.Ptr)
		if err != nil {
			return 0, err
		}
		return b.Load(ptr), nil
	case op.Store != nil:
		v, ptr, err := fl.operand2(op.Store.Val, op.Store.Ptr)
		if err != nil {
			return 0, err
		}
		return b.Store(v, ptr), nil
	case op.GetLocal != nil:
		l, ok := fl.locals[op.GetLocal.Name]
		if !ok {
			return 0, fmt.Errorf("unknown local %s", op.GetLocal.Name)
		}
		return b.GetLocal(l), nil
	case op.GetGlobal != nil:
		g, ok := fl.globals[op.GetGlobal.Name]
		if !ok {
			return 0, fmt.Errorf("unknown global %s", op.GetGlobal.Name)
		}
		return b.GetGlobal(g), nil
	case op.Gep != nil:
		elem, err := lowerType(op.Gep.Elem)
		if err != nil {
			return 0, err
		}
		base, err := fl.operand(op.Gep.Base)
		if err != nil {
			return 0, err
		}
		indices, err := fl.operands(op.Gep.Indices)
		if err != nil {
			return 0, err
		}
		return b.GetElemPtr(base, elem, indices...), nil
	case op.CastPtr != nil:
		elem, err := lowerType(op.CastPtr.Elem)
		if err != nil {
			return 0, err
		}
		ptr, err := fl.operand(op.CastPtr.Ptr)
		if err != nil {
			return 0, err
		}
		return b.CastPtr(ptr, elem), nil
	case op.IntToPtr != nil:
		elem, err := lowerType(op.IntToPtr.Elem)
		if err != nil {
			return 0, err
		}
		v, err := fl.operand(op.IntToPtr.V)
		if err != nil {
			return 0, err
		}
		return b.IntToPtr(v, elem), nil
	case op.MemCopy != nil:
		dst, src, err := fl.operand2(op.MemCopy.Dst, op.MemCopy.Src)
		if err != nil {
			return 0, err
		}
		return b.MemCopy(dst, src), nil
	case op.MemClear != nil:
		dst, err := fl.operand(op.MemClear.Dst)
		if err != nil {
			return 0, err
		}
		return b.MemClear(dst), nil
	case op.Call != nil:
		callee, ok := fl.fns[op.Call.Callee]
		if !ok {
			return 0, fmt.Errorf("unknown function %s", op.Call.Callee)
		}
		args, err := fl.operands(op.Call.Args)
		if err != nil {
			return 0, err
		}
		return b.Call(callee, args...), nil
	case op.Asm != nil:
		args, err := fl.operands(op.Asm.Args)
		if err != nil {
			return 0, err
		}
		var ret ir.Type
		if op.Asm.Ret != nil {
			if ret, err = lowerType(op.Asm.Ret); err != nil {
				return 0, err
			}
		}
		return b.Asm(op.Asm.Text, ret, args...), nil
	case op.Br != nil:
		dest, args, err := fl.target(op.Br.Dest)
		if err != nil {
			return 0, err
		}
		return b.Br(dest, args...), nil
	case op.Cbr != nil:
		cond, err := fl.operand(op.Cbr.Cond)
		if err != nil {
			return 0, err
		}
		tb, targs, err := fl.target(op.Cbr.True)
		if err != nil {
			return 0, err
		}
		fb, fargs, err := fl.target(op.Cbr.False)
		if err != nil {
			return 0, err
		}
		t := ir.BranchTarget{Block: tb, Args: targs}
		f := ir.BranchTarget{Block: fb, Args: fargs}
		return b.CondBr(cond, t, f), nil
	case op.Ret != nil:
		if op.Ret.Val == nil {
			return b.Ret(), nil
		}
		v, err := fl.operand(op.Ret.Val)
		if err != nil {
			return 0, err
		}
		return b.Ret(v), nil
	}
	return 0, fmt.Errorf("empty instruction")
}

func (fl *funcLowerer) target(t *TargetRef) (ir.Block, []ir.Value, error) {
	b, ok := fl.blocks[t.Label]
	if !ok {
		return 0, nil, fmt.Errorf("unknown block %s", t.Label)
	}
	args, err := fl.operands(t.Args)
	if err != nil {
		return 0, nil, err
	}
	return b, args, nil
}

func (fl *funcLowerer) operand(o *Operand) (ir.Value, error) {
	if o.Const != nil {
		c, err := lowerConst(o.Const)
		if err != nil {
			return 0, err
		}
		return fl.cx.NewConstantValue(c), nil
	}
	v, ok := fl.env[o.Name]
	if !ok {
		return 0, fmt.Errorf("unknown value %s", o.Name)
	}
	return v, nil
}

func (fl *funcLowerer) operand2(a, b *Operand) (ir.Value, ir.Value, error) {
	x, err := fl.operand(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := fl.operand(b)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func (fl *funcLowerer) operands(os []*Operand) ([]ir.Value, error) {
	vs := make([]ir.Value, len(os))
	for i, o := range os {
		v, err := fl.operand(o)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

var binaryKinds = map[string]ir.BinaryKind{
	"add": ir.BinAdd,
	"sub": ir.BinSub,
	"mul": ir.BinMul,
	"div": ir.BinDiv,
	"mod": ir.BinMod,
	"and": ir.BinAnd,
	"or":  ir.BinOr,
	"xor": ir.BinXor,
	"shl": ir.BinShl,
	"shr": ir.BinShr,
}

var cmpKinds = map[string]ir.CmpKind{
	"eq": ir.CmpEq,
	"ne": ir.CmpNe,
	"lt": ir.CmpLt,
	"le": ir.CmpLe,
	"gt": ir.CmpGt,
	"ge": ir.CmpGe,
}

func lowerType(t *TypeRef) (ir.Type, error) {
	switch {
	case t.Ptr != nil:
		pointee, err := lowerType(t.Ptr)
		if err != nil {
			return nil, err
		}
		return &ir.PointerType{Pointee: pointee}, nil
	case t.Array != nil:
		elem, err := lowerType(t.Array.Elem)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayType{Elem: elem, Len: t.Array.Len}, nil
	case t.Struct != nil:
		fields := make([]ir.Type, len(t.Struct.Fields))
		for i, f := range t.Struct.Fields {
			ty, err := lowerType(f)
			if err != nil {
				return nil, err
			}
			fields[i] = ty
		}
		return &ir.StructType{Fields: fields}, nil
	case t.Unit:
		return &ir.UnitType{}, nil
	case t.Name == "bool":
		return &ir.BoolType{}, nil
	case t.Name == "string":
		return &ir.StringType{}, nil
	case strings.HasPrefix(t.Name, "u"):
		bits, err := strconv.Atoi(t.Name[1:])
		if err != nil || bits <= 0 {
			return nil, fmt.Errorf("bad type %s", t.Name)
		}
		return &ir.IntType{Bits: bits}, nil
	}
	return nil, fmt.Errorf("bad type %s", t.Name)
}

func lowerConst(c *ConstLit) (ir.Constant, error) {
	switch {
	case c.Uint != nil:
		if !strings.HasPrefix(c.Uint.Bits, "u") {
			return ir.Constant{}, fmt.Errorf("bad integer suffix %s", c.Uint.Bits)
		}
		bits, err := strconv.Atoi(c.Uint.Bits[1:])
		if err != nil || bits <= 0 {
			return ir.Constant{}, fmt.Errorf("bad integer suffix %s", c.Uint.Bits)
		}
		return ir.UintConst(bits, c.Uint.Value), nil
	case c.True:
		return ir.BoolConst(true), nil
	case c.False:
		return ir.BoolConst(false), nil
	case c.Unit:
		return ir.UnitConst(), nil
	case c.Str != nil:
		return ir.StringConst(*c.Str), nil
	case c.Array != nil:
		if len(c.Array.Elems) == 0 {
			return ir.Constant{}, fmt.Errorf("empty array literal has no type")
		}
		elems, err := lowerConsts(c.Array.Elems)
		if err != nil {
			return ir.Constant{}, err
		}
		ty := &ir.ArrayType{Elem: elems[0].Ty, Len: len(elems)}
		return ir.Constant{Ty: ty, Kind: ir.ConstArray, Elems: elems}, nil
	case c.Struct != nil:
		elems, err := lowerConsts(c.Struct.Elems)
		if err != nil {
			return ir.Constant{}, err
		}
		fields := make([]ir.Type, len(elems))
		for i := range elems {
			fields[i] = elems[i].Ty
		}
		ty := &ir.StructType{Fields: fields}
		return ir.Constant{Ty: ty, Kind: ir.ConstStruct, Elems: elems}, nil
	}
	return ir.Constant{}, fmt.Errorf("empty constant")
}

func lowerConsts(ls []*ConstLit) ([]ir.Constant, error) {
	cs := make([]ir.Constant, len(ls))
	for i, l := range ls {
		c, err := lowerConst(l)
		if err != nil {
			return nil, err
		}
		cs[i] = c
	}
	return cs, nil
}
