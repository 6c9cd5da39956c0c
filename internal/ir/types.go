package ir

import (
	"fmt"
	"strings"
)

// Type describes the shape of a value. Types are plain immutable descriptors;
// two types are interchangeable when Equal reports true.
type Type interface {
	String() string
	Equal(Type) bool
}

// UnitType is the empty value type, written `()`.
type UnitType struct{}

// BoolType is the boolean type.
type BoolType struct{}

// IntType is an unsigned integer of the given width. Contract code commonly
// uses u256 for balances and u64 for counters; only widths up to 64 bits fit
// in an SSA register.
type IntType struct {
	Bits int
}

// StringType is an immutable byte-string type.
type StringType struct{}

// PointerType is the address of a value of the pointee type, produced by
// get_local / get_global / get_elem_ptr.
type PointerType struct {
	Pointee Type
}

// ArrayType is a fixed-length homogeneous aggregate.
type ArrayType struct {
	Elem Type
	Len  int
}

// StructType is a heterogeneous aggregate with positional fields.
type StructType struct {
	Fields []Type
}

func (*UnitType) String() string   { return "()" }
func (*BoolType) String() string   { return "bool" }
func (t *IntType) String() string  { return fmt.Sprintf("u%d", t.Bits) }
func (*StringType) String() string { return "string" }

func (t *PointerType) String() string {
	return "ptr " + t.Pointee.String()
}

func (t *ArrayType) String() string {
	return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
}

func (t *StructType) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (*UnitType) Equal(o Type) bool {
	_, ok := o.(*UnitType)
	return ok
}

func (*BoolType) Equal(o Type) bool {
	_, ok := o.(*BoolType)
	return ok
}

func (t *IntType) Equal(o Type) bool {
	u, ok := o.(*IntType)
	return ok && t.Bits == u.Bits
}

func (*StringType) Equal(o Type) bool {
	_, ok := o.(*StringType)
	return ok
}

func (t *PointerType) Equal(o Type) bool {
	u, ok := o.(*PointerType)
	return ok && t.Pointee.Equal(u.Pointee)
}

func (t *ArrayType) Equal(o Type) bool {
	u, ok := o.(*ArrayType)
	return ok && t.Len == u.Len && t.Elem.Equal(u.Elem)
}

func (t *StructType) Equal(o Type) bool {
	u, ok := o.(*StructType)
	if !ok || len(t.Fields) != len(u.Fields) {
		return false
	}
	for i, f := range t.Fields {
		if !f.Equal(u.Fields[i]) {
			return false
		}
	}
	return true
}

// IsRegisterType reports whether t is a small scalar that fits in a single SSA
// register: unit, bool, or an unsigned integer of at most 64 bits. Aggregates
// and wide integers always live in memory.
func IsRegisterType(t Type) bool {
	switch ty := t.(type) {
	case *UnitType, *BoolType:
		return true
	case *IntType:
		return ty.Bits <= 64
	default:
		return false
	}
}

// Pointee returns the pointee type if t is a pointer.
func Pointee(t Type) (Type, bool) {
	p, ok := t.(*PointerType)
	if !ok {
		return nil, false
	}
	return p.Pointee, true
}
