package ir

// The IR lives in a single arena: every Module, Function, Block, Value, local
// and global is owned by the Context and referenced everywhere else through an
// integer handle. Passes that delete or replace entities never produce dangling
// pointers — a removed handle simply stops being reachable from any live list.
//
// Handles are 1-based so that the zero value of every handle type is invalid.

type (
	Module    int
	Function  int
	Block     int
	Value     int
	LocalVar  int
	GlobalVar int
)

// Valid reports whether the handle refers to an allocated entity.
func (m Module) Valid() bool    { return m > 0 }
func (f Function) Valid() bool  { return f > 0 }
func (b Block) Valid() bool     { return b > 0 }
func (v Value) Valid() bool     { return v > 0 }
func (l LocalVar) Valid() bool  { return l > 0 }
func (g GlobalVar) Valid() bool { return g > 0 }

// Context is the per-compilation arena. One Context is created by the lowering
// stage, mutated in place by the optimization passes, and torn down after the
// backend has consumed the optimized IR.
type Context struct {
	modules   []*ModuleData
	functions []*FunctionData
	blocks    []*BlockData
	values    []*ValueData
	locals    []*LocalData
	globals   []*GlobalData
}

// NewContext creates an empty arena.
func NewContext() *Context {
	return &Context{}
}

// ModuleData is the content a Module handle resolves to.
type ModuleData struct {
	Name      string
	Functions []Function
	Globals   []GlobalVar
}

// FunctionData is the content a Function handle resolves to. Blocks[0] is the
// entry block and has no predecessors.
type FunctionData struct {
	Name          string
	Module        Module
	Blocks        []Block
	Args          []Value // argument values, in declaration order
	Locals        []LocalVar
	ReturnType    Type
	Entry         bool // externally callable contract entry point
	Fallback      bool // fallback handler, a reachability root like Entry
	ConfigDecoder bool // configuration decoding helper, also a root
}

// BlockData is the content a Block handle resolves to.
type BlockData struct {
	Label    string
	Function Function
	Args     []Value // block arguments (the phi mechanism), in order
	Insns    []Value // instruction values, in program order
	Preds    []Block
}

// ValueKind discriminates the three things a Value can resolve to.
type ValueKind uint8

const (
	ValueInstruction ValueKind = iota + 1
	ValueArgument
	ValueConstant
)

// ValueData is the content a Value handle resolves to. Exactly one of Insn,
// Arg and Const is set, according to Kind.
type ValueData struct {
	Kind  ValueKind
	Insn  *InsnData
	Arg   *ArgData
	Const *Constant
}

// ArgData describes a block argument. For the entry block these double as the
// function's formal arguments.
type ArgData struct {
	Block Block
	Index int // position in the owning block's argument list
	Name  string
	Ty    Type
}

// LocalData is a function-local storage symbol.
type LocalData struct {
	Name        string
	Function    Function
	Ty          Type
	Initializer *Constant // may be nil
}

// GlobalData is a module-level storage symbol.
type GlobalData struct {
	Name        string
	Module      Module
	Ty          Type
	Initializer *Constant // required when !Mutable
	Mutable     bool
}

// Mod resolves a module handle.
func (cx *Context) Mod(m Module) *ModuleData { return cx.modules[m-1] }

// Func resolves a function handle.
func (cx *Context) Func(f Function) *FunctionData { return cx.functions[f-1] }

// Block resolves a block handle.
func (cx *Context) Block(b Block) *BlockData { return cx.blocks[b-1] }

// Value resolves a value handle.
func (cx *Context) Value(v Value) *ValueData { return cx.values[v-1] }

// Local resolves a local-variable handle.
func (cx *Context) Local(l LocalVar) *LocalData { return cx.locals[l-1] }

// Global resolves a global-variable handle.
func (cx *Context) Global(g GlobalVar) *GlobalData { return cx.globals[g-1] }

// CreateModule allocates a new empty module.
func (cx *Context) CreateModule(name string) Module {
	cx.modules = append(cx.modules, &ModuleData{Name: name})
	return Module(len(cx.modules))
}

// CreateFunction allocates a function inside m. The entry block is created
// along with it so that formal arguments have a home immediately.
func (cx *Context) CreateFunction(m Module, name string, ret Type) Function {
	cx.functions = append(cx.functions, &FunctionData{
		Name:       name,
		Module:     m,
		ReturnType: ret,
	})
	f := Function(len(cx.functions))
	md := cx.Mod(m)
	md.Functions = append(md.Functions, f)
	cx.CreateBlock(f, "entry")
	return f
}

// CreateBlock appends a new empty block to fn.
func (cx *Context) CreateBlock(fn Function, label string) Block {
	cx.blocks = append(cx.blocks, &BlockData{Label: label, Function: fn})
	b := Block(len(cx.blocks))
	fd := cx.Func(fn)
	fd.Blocks = append(fd.Blocks, b)
	return b
}

// EntryBlock returns the function's entry block.
func (cx *Context) EntryBlock(fn Function) Block {
	return cx.Func(fn).Blocks[0]
}

// AddFunctionArg declares a formal argument on fn. It is represented as an
// argument of the entry block.
func (cx *Context) AddFunctionArg(fn Function, name string, ty Type) Value {
	v := cx.AddBlockArg(cx.EntryBlock(fn), name, ty)
	fd := cx.Func(fn)
	fd.Args = append(fd.Args, v)
	return v
}

// AddBlockArg appends a new argument to b and returns its value.
func (cx *Context) AddBlockArg(b Block, name string, ty Type) Value {
	bd := cx.Block(b)
	cx.values = append(cx.values, &ValueData{
		Kind: ValueArgument,
		Arg:  &ArgData{Block: b, Index: len(bd.Args), Name: name, Ty: ty},
	})
	v := Value(len(cx.values))
	bd.Args = append(bd.Args, v)
	return v
}

// NewLocal declares a local storage symbol on fn.
func (cx *Context) NewLocal(fn Function, name string, ty Type, init *Constant) LocalVar {
	cx.locals = append(cx.locals, &LocalData{Name: name, Function: fn, Ty: ty, Initializer: init})
	l := LocalVar(len(cx.locals))
	fd := cx.Func(fn)
	fd.Locals = append(fd.Locals, l)
	return l
}

// NewGlobal declares a global storage symbol on m.
func (cx *Context) NewGlobal(m Module, name string, ty Type, init *Constant, mutable bool) GlobalVar {
	cx.globals = append(cx.globals, &GlobalData{Name: name, Module: m, Ty: ty, Initializer: init, Mutable: mutable})
	g := GlobalVar(len(cx.globals))
	md := cx.Mod(m)
	md.Globals = append(md.Globals, g)
	return g
}

// NewConstantValue interns c as a standalone constant value. Two calls with
// equal content yield distinct handles; equality of constant content is decided
// by Constant.Equal, not by handle identity.
func (cx *Context) NewConstantValue(c Constant) Value {
	cc := c
	cx.values = append(cx.values, &ValueData{Kind: ValueConstant, Const: &cc})
	return Value(len(cx.values))
}

func (cx *Context) newInsnValue(in InsnData) Value {
	id := in
	cx.values = append(cx.values, &ValueData{Kind: ValueInstruction, Insn: &id})
	return Value(len(cx.values))
}

// InsnOf returns the instruction content of v, if v is an instruction result.
func (cx *Context) InsnOf(v Value) (*InsnData, bool) {
	vd := cx.Value(v)
	if vd.Kind != ValueInstruction {
		return nil, false
	}
	return vd.Insn, true
}

// ConstOf returns the constant content of v, if v is a constant.
func (cx *Context) ConstOf(v Value) (*Constant, bool) {
	vd := cx.Value(v)
	if vd.Kind != ValueConstant {
		return nil, false
	}
	return vd.Const, true
}

// ArgOf returns the block-argument content of v, if v is a block argument.
func (cx *Context) ArgOf(v Value) (*ArgData, bool) {
	vd := cx.Value(v)
	if vd.Kind != ValueArgument {
		return nil, false
	}
	return vd.Arg, true
}

// TypeOf returns the result type of v, or nil for instructions that produce
// no usable value.
func (cx *Context) TypeOf(v Value) Type {
	vd := cx.Value(v)
	switch vd.Kind {
	case ValueInstruction:
		return vd.Insn.Ty
	case ValueArgument:
		return vd.Arg.Ty
	case ValueConstant:
		return vd.Const.Ty
	}
	return nil
}
