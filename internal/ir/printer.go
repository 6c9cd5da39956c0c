package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Printer renders IR in a deterministic, human-readable text form. The output
// doubles as the fixture format for golden tests: irtext parses exactly this
// grammar back into a Context.
type Printer struct {
	cx     *Context
	indent int
	names  map[Value]string
	out    strings.Builder
}

// NewPrinter creates a printer over cx.
func NewPrinter(cx *Context) *Printer {
	return &Printer{cx: cx, names: make(map[Value]string)}
}

// PrintModule renders a whole module.
func PrintModule(cx *Context, m Module) string {
	p := NewPrinter(cx)
	p.printModule(m)
	return p.out.String()
}

// PrintFunction renders a single function.
func PrintFunction(cx *Context, f Function) string {
	p := NewPrinter(cx)
	p.printFunction(f)
	return p.out.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.out.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) printModule(m Module) {
	md := p.cx.Mod(m)
	p.writeLine("module %s {", md.Name)
	p.indent++
	for _, g := range md.Globals {
		gd := p.cx.Global(g)
		line := fmt.Sprintf("global %s: %s", gd.Name, gd.Ty)
		if gd.Initializer != nil {
			line += " = " + gd.Initializer.String()
		}
		if gd.Mutable {
			line += ", mut"
		}
		p.writeIndent()
		p.out.WriteString(line + "\n")
	}
	if len(md.Globals) > 0 && len(md.Functions) > 0 {
		p.out.WriteString("\n")
	}
	for i, f := range md.Functions {
		if i > 0 {
			p.out.WriteString("\n")
		}
		p.printFunction(f)
	}
	p.indent--
	p.writeLine("}")
}

func (p *Printer) printFunction(f Function) {
	fd := p.cx.Func(f)
	p.nameValues(f)

	params := make([]string, len(fd.Args))
	for i, a := range fd.Args {
		ad, _ := p.cx.ArgOf(a)
		params[i] = fmt.Sprintf("%s: %s", ad.Name, ad.Ty)
	}
	header := fmt.Sprintf("fn %s(%s)", fd.Name, strings.Join(params, ", "))
	if fd.ReturnType != nil {
		if _, unit := fd.ReturnType.(*UnitType); !unit {
			header += " -> " + fd.ReturnType.String()
		}
	}
	for _, flag := range p.functionFlags(fd) {
		header += ", " + flag
	}
	p.writeLine("%s {", header)
	p.indent++

	for _, l := range fd.Locals {
		ld := p.cx.Local(l)
		line := fmt.Sprintf("local %s: %s", ld.Name, ld.Ty)
		if ld.Initializer != nil {
			line += " = " + ld.Initializer.String()
		}
		p.writeIndent()
		p.out.WriteString(line + "\n")
	}
	if len(fd.Locals) > 0 {
		p.out.WriteString("\n")
	}

	for i, b := range fd.Blocks {
		if i > 0 {
			p.out.WriteString("\n")
		}
		p.printBlock(f, b, i == 0)
	}

	p.indent--
	p.writeLine("}")
}

func (p *Printer) functionFlags(fd *FunctionData) []string {
	var flags []string
	if fd.Entry {
		flags = append(flags, "entry")
	}
	if fd.Fallback {
		flags = append(flags, "fallback")
	}
	if fd.ConfigDecoder {
		flags = append(flags, "config_decoder")
	}
	return flags
}

func (p *Printer) printBlock(f Function, b Block, isEntry bool) {
	bd := p.cx.Block(b)
	if isEntry {
		// Entry block arguments are the function arguments and are
		// declared in the header, not repeated here.
		p.writeLine("%s:", bd.Label)
	} else {
		params := make([]string, len(bd.Args))
		for i, a := range bd.Args {
			ad, _ := p.cx.ArgOf(a)
			params[i] = fmt.Sprintf("%s: %s", ad.Name, ad.Ty)
		}
		p.writeLine("%s(%s):", bd.Label, strings.Join(params, ", "))
	}
	p.indent++
	for _, iv := range bd.Insns {
		p.printInsn(iv)
	}
	p.indent--
}

func (p *Printer) printInsn(iv Value) {
	in, _ := p.cx.InsnOf(iv)
	text := p.insnText(in)
	if in.Ty != nil {
		p.writeLine("%s = %s", p.names[iv], text)
	} else {
		p.writeLine("%s", text)
	}
}

func (p *Printer) insnText(in *InsnData) string {
	switch in.Op {
	case OpBinary:
		return fmt.Sprintf("%s %s, %s", binaryName(in.Binary), p.operand(in.Args[0]), p.operand(in.Args[1]))
	case OpUnary:
		return fmt.Sprintf("%s %s", unaryName(in.Unary), p.operand(in.Args[0]))
	case OpCmp:
		return fmt.Sprintf("cmp %s %s, %s", cmpName(in.Cmp), p.operand(in.Args[0]), p.operand(in.Args[1]))
	case OpLoad:
		return "load " + p.operand(in.Args[0])
	case OpStore:
		return fmt.Sprintf("store %s, %s", p.operand(in.Args[0]), p.operand(in.Args[1]))
	case OpGetLocal:
		return "get_local " + p.cx.Local(in.Local).Name
	case OpGetGlobal:
		return "get_global " + p.cx.Global(in.Global).Name
	case OpGetElemPtr:
		pointee, _ := Pointee(in.Ty)
		parts := []string{pointee.String(), p.operand(in.Args[0])}
		for _, idx := range in.Args[1:] {
			parts = append(parts, p.operand(idx))
		}
		return "get_elem_ptr " + strings.Join(parts, ", ")
	case OpCastPtr:
		pointee, _ := Pointee(in.Ty)
		return fmt.Sprintf("cast_ptr %s, %s", pointee, p.operand(in.Args[0]))
	case OpIntToPtr:
		pointee, _ := Pointee(in.Ty)
		return fmt.Sprintf("int_to_ptr %s, %s", pointee, p.operand(in.Args[0]))
	case OpMemCopy:
		return fmt.Sprintf("mem_copy %s, %s", p.operand(in.Args[0]), p.operand(in.Args[1]))
	case OpMemClear:
		return "mem_clear " + p.operand(in.Args[0])
	case OpCall:
		return fmt.Sprintf("call %s(%s)", p.cx.Func(in.Callee).Name, p.operands(in.Args))
	case OpAsm:
		text := fmt.Sprintf("asm %s (%s)", strconv.Quote(in.Asm), p.operands(in.Args))
		if in.Ty != nil {
			text += " -> " + in.Ty.String()
		}
		return text
	case OpBranch:
		return "br " + p.target(in.Dest)
	case OpCondBranch:
		return fmt.Sprintf("cbr %s, %s, %s", p.operand(in.Args[0]), p.target(in.True), p.target(in.False))
	case OpRet:
		if len(in.Args) == 0 {
			return "ret"
		}
		return "ret " + p.operand(in.Args[0])
	}
	return "<bad instruction>"
}

func (p *Printer) target(t BranchTarget) string {
	return fmt.Sprintf("%s(%s)", p.cx.Block(t.Block).Label, p.operands(t.Args))
}

func (p *Printer) operands(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = p.operand(v)
	}
	return strings.Join(parts, ", ")
}

func (p *Printer) operand(v Value) string {
	if c, ok := p.cx.ConstOf(v); ok {
		return c.String()
	}
	return p.names[v]
}

// nameValues assigns stable names for the function's values: block arguments
// keep their declared names, instruction results are numbered in program
// order.
func (p *Printer) nameValues(f Function) {
	n := 0
	for _, b := range p.cx.Func(f).Blocks {
		bd := p.cx.Block(b)
		for _, a := range bd.Args {
			ad, _ := p.cx.ArgOf(a)
			p.names[a] = ad.Name
		}
		for _, iv := range bd.Insns {
			if in, ok := p.cx.InsnOf(iv); ok && in.Ty != nil {
				p.names[iv] = fmt.Sprintf("v%d", n)
				n++
			}
		}
	}
}

func binaryName(k BinaryKind) string {
	switch k {
	case BinAdd:
		return "add"
	case BinSub:
		return "sub"
	case BinMul:
		return "mul"
	case BinDiv:
		return "div"
	case BinMod:
		return "mod"
	case BinAnd:
		return "and"
	case BinOr:
		return "or"
	case BinXor:
		return "xor"
	case BinShl:
		return "shl"
	case BinShr:
		return "shr"
	}
	return "<bad binop>"
}

func unaryName(k UnaryKind) string {
	switch k {
	case UnNot:
		return "not"
	}
	return "<bad unop>"
}

func cmpName(k CmpKind) string {
	switch k {
	case CmpEq:
		return "eq"
	case CmpNe:
		return "ne"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	case CmpGt:
		return "gt"
	case CmpGe:
		return "ge"
	}
	return "<bad cmp>"
}
