package irtext

// The grammar mirrors the printer's output exactly: parsing what PrintModule
// produced yields an equivalent module. Every declaration and instruction
// occupies one line; blank lines separate sections but carry no meaning.

type File struct {
	Modules []*ModuleDecl `parser:"@@*"`
}

type ModuleDecl struct {
	Name    string        `parser:"\"module\" @Ident \"{\" EOL { EOL }"`
	Globals []*GlobalDecl `parser:"@@*"`
	Funcs   []*FuncDecl   `parser:"@@*"`
	Close   string        `parser:"\"}\" { EOL }"`
}

type GlobalDecl struct {
	Name    string    `parser:"\"global\" @Ident \":\""`
	Ty      *TypeRef  `parser:"@@"`
	Init    *ConstLit `parser:"[ \"=\" @@ ]"`
	Mutable bool      `parser:"[ \",\" @\"mut\" ] EOL { EOL }"`
}

type FuncDecl struct {
	Name   string       `parser:"\"fn\" @Ident \"(\""`
	Params []*ParamDecl `parser:"[ @@ { \",\" @@ } ] \")\""`
	Ret    *TypeRef     `parser:"[ \"->\" @@ ]"`
	Flags  []string     `parser:"{ \",\" @(\"entry\" | \"fallback\" | \"config_decoder\") }"`
	Open   string       `parser:"\"{\" EOL { EOL }"`
	Locals []*LocalDecl `parser:"@@*"`
	Blocks []*BlockDecl `parser:"@@ { @@ }"`
	Close  string       `parser:"\"}\" EOL { EOL }"`
}

type ParamDecl struct {
	Name string   `parser:"@Ident \":\""`
	Ty   *TypeRef `parser:"@@"`
}

type LocalDecl struct {
	Name string    `parser:"\"local\" @Ident \":\""`
	Ty   *TypeRef  `parser:"@@"`
	Init *ConstLit `parser:"[ \"=\" @@ ] EOL { EOL }"`
}

// BlockDecl is a label line followed by instructions. The function's first
// block is the entry; its arguments come from the function header and must
// not be repeated on the label.
type BlockDecl struct {
	Label  string       `parser:"@Ident"`
	Params []*ParamDecl `parser:"[ \"(\" [ @@ { \",\" @@ } ] \")\" ] \":\" EOL { EOL }"`
	Insns  []*InsnStmt  `parser:"@@*"`
}

type InsnStmt struct {
	Result string  `parser:"[ @Ident \"=\" ]"`
	Op     *OpStmt `parser:"@@ EOL { EOL }"`
}

type OpStmt struct {
	Binary    *BinaryInsn    `parser:"  @@"`
	Unary     *UnaryInsn     `parser:"| @@"`
	Cmp       *CmpInsn       `parser:"| @@"`
	Load      *LoadInsn      `parser:"| @@"`
	Store     *StoreInsn     `parser:"| @@"`
	GetLocal  *GetLocalInsn  `parser:"| @@"`
	GetGlobal *GetGlobalInsn `parser:"| @@"`
	Gep       *GepInsn       `parser:"| @@"`
	CastPtr   *CastPtrInsn   `parser:"| @@"`
	IntToPtr  *IntToPtrInsn  `parser:"| @@"`
	MemCopy   *MemCopyInsn   `parser:"| @@"`
	MemClear  *MemClearInsn  `parser:"| @@"`
	Call      *CallInsn      `parser:"| @@"`
	Asm       *AsmInsn       `parser:"| @@"`
	Br        *BrInsn        `parser:"| @@"`
	Cbr       *CbrInsn       `parser:"| @@"`
	Ret       *RetInsn       `parser:"| @@"`
}

type BinaryInsn struct {
	Op string   `parser:"@(\"add\" | \"sub\" | \"mul\" | \"div\" | \"mod\" | \"and\" | \"or\" | \"xor\" | \"shl\" | \"shr\")"`
	X  *Operand `parser:"@@ \",\""`
	Y  *Operand `parser:"@@"`
}

type UnaryInsn struct {
	Op string   `parser:"@\"not\""`
	X  *Operand `parser:"@@"`
}

type CmpInsn struct {
	Pred string   `parser:"\"cmp\" @(\"eq\" | \"ne\" | \"lt\" | \"le\" | \"gt\" | \"ge\")"`
	X    *Operand `parser:"@@ \",\""`
	Y    *Operand `parser:"@@"`
}

type LoadInsn struct {
	Ptr *Operand `parser:"\"load\" @@"`
}

type StoreInsn struct {
	Val *Operand `parser:"\"store\" @@ \",\""`
	Ptr *Operand `parser:"@@"`
}

type GetLocalInsn struct {
	Name string `parser:"\"get_local\" @Ident"`
}

type GetGlobalInsn struct {
	Name string `parser:"\"get_global\" @Ident"`
}

type GepInsn struct {
	Elem    *TypeRef   `parser:"\"get_elem_ptr\" @@ \",\""`
	Base    *Operand   `parser:"@@"`
	Indices []*Operand `parser:"{ \",\" @@ }"`
}

type CastPtrInsn struct {
	Elem *TypeRef `parser:"\"cast_ptr\" @@ \",\""`
	Ptr  *Operand `parser:"@@"`
}

type IntToPtrInsn struct {
	Elem *TypeRef `parser:"\"int_to_ptr\" @@ \",\""`
	V    *Operand `parser:"@@"`
}

type MemCopyInsn struct {
	Dst *Operand `parser:"\"mem_copy\" @@ \",\""`
	Src *Operand `parser:"@@"`
}

type MemClearInsn struct {
	Dst *Operand `parser:"\"mem_clear\" @@"`
}

type CallInsn struct {
	Callee string     `parser:"\"call\" @Ident \"(\""`
	Args   []*Operand `parser:"[ @@ { \",\" @@ } ] \")\""`
}

type AsmInsn struct {
	Text string     `parser:"\"asm\" @String \"(\""`
	Args []*Operand `parser:"[ @@ { \",\" @@ } ] \")\""`
	Ret  *TypeRef   `parser:"[ \"->\" @@ ]"`
}

type BrInsn struct {
	Dest *TargetRef `parser:"\"br\" @@"`
}

type CbrInsn struct {
	Cond  *Operand   `parser:"\"cbr\" @@ \",\""`
	True  *TargetRef `parser:"@@ \",\""`
	False *TargetRef `parser:"@@"`
}

type RetInsn struct {
	Kw  string   `parser:"@\"ret\""`
	Val *Operand `parser:"[ @@ ]"`
}

type TargetRef struct {
	Label string     `parser:"@Ident \"(\""`
	Args  []*Operand `parser:"[ @@ { \",\" @@ } ] \")\""`
}

type Operand struct {
	Const *ConstLit `parser:"  @@"`
	Name  string    `parser:"| @Ident"`
}

type TypeRef struct {
	Ptr    *TypeRef       `parser:"  \"ptr\" @@"`
	Array  *ArrayTypeRef  `parser:"| @@"`
	Struct *StructTypeRef `parser:"| @@"`
	Unit   bool           `parser:"| @\"(\" \")\""`
	Name   string         `parser:"| @Ident"`
}

type ArrayTypeRef struct {
	Len  int      `parser:"\"[\" @Integer \"x\""`
	Elem *TypeRef `parser:"@@ \"]\""`
}

type StructTypeRef struct {
	Fields []*TypeRef `parser:"\"{\" [ @@ { \",\" @@ } ] \"}\""`
}

type ConstLit struct {
	Uint   *UintLit   `parser:"  @@"`
	True   bool       `parser:"| @\"true\""`
	False  bool       `parser:"| @\"false\""`
	Unit   bool       `parser:"| @\"unit\""`
	Str    *string    `parser:"| @String"`
	Array  *ArrayLit  `parser:"| @@"`
	Struct *StructLit `parser:"| @@"`
}

type UintLit struct {
	Value uint64 `parser:"@Integer \":\""`
	Bits  string `parser:"@Ident"`
}

type ArrayLit struct {
	Elems []*ConstLit `parser:"\"[\" [ @@ { \",\" @@ } ] \"]\""`
}

type StructLit struct {
	Elems []*ConstLit `parser:"\"{\" [ @@ { \",\" @@ } ] \"}\""`
}
