package ir

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// ConstantKind discriminates the payload of a Constant.
type ConstantKind uint8

const (
	ConstUnit ConstantKind = iota + 1
	ConstBool
	ConstUint
	ConstString
	ConstArray
	ConstStruct
)

// Constant is immutable compile-time data. Constants have no identity beyond
// their content: two constant values with equal content are interchangeable,
// which is decided by Equal (and bucketed by Hash), never by handle identity.
type Constant struct {
	Ty    Type
	Kind  ConstantKind
	B     bool       // ConstBool
	U     uint64     // ConstUint
	S     string     // ConstString
	Elems []Constant // ConstArray, ConstStruct
}

// UnitConst returns the unit constant.
func UnitConst() Constant {
	return Constant{Ty: &UnitType{}, Kind: ConstUnit}
}

// BoolConst returns a boolean constant.
func BoolConst(b bool) Constant {
	return Constant{Ty: &BoolType{}, Kind: ConstBool, B: b}
}

// UintConst returns an unsigned-integer constant of the given width.
func UintConst(bits int, v uint64) Constant {
	return Constant{Ty: &IntType{Bits: bits}, Kind: ConstUint, U: v}
}

// StringConst returns a string constant.
func StringConst(s string) Constant {
	return Constant{Ty: &StringType{}, Kind: ConstString, S: s}
}

// Equal reports structural content equality, including type equality.
func (c *Constant) Equal(o *Constant) bool {
	if c.Kind != o.Kind || !c.Ty.Equal(o.Ty) {
		return false
	}
	switch c.Kind {
	case ConstUnit:
		return true
	case ConstBool:
		return c.B == o.B
	case ConstUint:
		return c.U == o.U
	case ConstString:
		return c.S == o.S
	case ConstArray, ConstStruct:
		if len(c.Elems) != len(o.Elems) {
			return false
		}
		for i := range c.Elems {
			if !c.Elems[i].Equal(&o.Elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Hash returns a content hash suitable for bucketing constants before an Equal
// check. Equal constants hash identically; the converse need not hold.
func (c *Constant) Hash() uint64 {
	h := fnv.New64a()
	c.hashInto(h)
	return h.Sum64()
}

func (c *Constant) hashInto(h interface{ Write([]byte) (int, error) }) {
	var b [9]byte
	b[0] = byte(c.Kind)
	switch c.Kind {
	case ConstBool:
		if c.B {
			b[1] = 1
		}
		h.Write(b[:2])
	case ConstUint:
		u := c.U
		for i := 0; i < 8; i++ {
			b[1+i] = byte(u >> (8 * i))
		}
		h.Write(b[:9])
	case ConstString:
		h.Write(b[:1])
		h.Write([]byte(c.S))
	case ConstArray, ConstStruct:
		h.Write(b[:1])
		for i := range c.Elems {
			c.Elems[i].hashInto(h)
		}
	default:
		h.Write(b[:1])
	}
}

// String renders the constant in the textual IR syntax.
func (c *Constant) String() string {
	switch c.Kind {
	case ConstUnit:
		return "unit"
	case ConstBool:
		return strconv.FormatBool(c.B)
	case ConstUint:
		return fmt.Sprintf("%d:%s", c.U, c.Ty)
	case ConstString:
		return strconv.Quote(c.S)
	case ConstArray, ConstStruct:
		parts := make([]string, len(c.Elems))
		for i := range c.Elems {
			parts[i] = c.Elems[i].String()
		}
		open, close := "[", "]"
		if c.Kind == ConstStruct {
			open, close = "{", "}"
		}
		return open + strings.Join(parts, ", ") + close
	}
	return "<bad constant>"
}
