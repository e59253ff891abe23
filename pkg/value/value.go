// Package value defines the tagged-union Value the compiler constructs and
// folds constants over. The VM, string interning, and heap representation
// of String are all external to this package; the compiler only ever
// constructs values of the shapes defined here and hands them to an
// allocator it does not otherwise inspect.
package value

import (
	"math"
	"strconv"
)

// Type is the tag of a Value.
type Type uint8

const (
	TypeNil Type = iota
	TypeBool
	TypeInteger
	TypeNumber
	TypeString
)

// Value is a tagged union over { Nil, Boolean, Integer, Number, String }.
// Integer and Number are kept as distinct tags (rather than folding Integer
// into Number) because the source language distinguishes them, and because
// the constant pool's equality rules apply to Number only.
type Value struct {
	typ Type
	as  struct {
		boolean bool
		integer int64
		number  float64
		str     string
	}
}

func Nil() Value { return Value{typ: TypeNil} }

func Bool(b bool) Value {
	v := Value{typ: TypeBool}
	v.as.boolean = b
	return v
}

func Integer(i int64) Value {
	v := Value{typ: TypeInteger}
	v.as.integer = i
	return v
}

func Number(f float64) Value {
	v := Value{typ: TypeNumber}
	v.as.number = f
	return v
}

func String(s string) Value {
	v := Value{typ: TypeString}
	v.as.str = s
	return v
}

func (v Value) Type() Type { return v.typ }

func (v Value) IsNil() bool     { return v.typ == TypeNil }
func (v Value) IsBool() bool    { return v.typ == TypeBool }
func (v Value) IsInteger() bool { return v.typ == TypeInteger }
func (v Value) IsNumber() bool  { return v.typ == TypeNumber }
func (v Value) IsString() bool  { return v.typ == TypeString }

func (v Value) AsBool() bool      { return v.as.boolean }
func (v Value) AsInteger() int64  { return v.as.integer }
func (v Value) AsNumber() float64 { return v.as.number }
func (v Value) AsString() string  { return v.as.str }

// AsBoolean reports the truthiness of v under the source language's rules:
// only nil and false are falsy.
func (v Value) AsBoolean() bool {
	switch v.typ {
	case TypeNil:
		return false
	case TypeBool:
		return v.as.boolean
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.typ {
	case TypeNil:
		return "nil"
	case TypeBool:
		return strconv.FormatBool(v.as.boolean)
	case TypeInteger:
		return strconv.FormatInt(v.as.integer, 10)
	case TypeNumber:
		return strconv.FormatFloat(v.as.number, 'g', -1, 64)
	case TypeString:
		return v.as.str
	default:
		return "<invalid value>"
	}
}

// toFloat widens an Integer or Number to float64, reporting ok=false for any
// other type.
func toFloat(v Value) (float64, bool) {
	switch v.typ {
	case TypeInteger:
		return float64(v.as.integer), true
	case TypeNumber:
		return v.as.number, true
	default:
		return 0, false
	}
}

// toInt requires an Integer, reporting ok=false otherwise (bitwise operators
// do not coerce floats, matching the source language's integer-only bitwise
// rule).
func toInt(v Value) (int64, bool) {
	if v.typ != TypeInteger {
		return 0, false
	}
	return v.as.integer, true
}

// arith folds an arithmetic op: two Integers stay in the Integer domain via
// intOp, and any Number operand widens both sides to float64 via floatOp.
func arith(a, b Value, intOp func(x, y int64) int64, floatOp func(x, y float64) float64) (Value, bool) {
	if a.typ == TypeInteger && b.typ == TypeInteger {
		return Integer(intOp(a.as.integer, b.as.integer)), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return Value{}, false
	}
	return Number(floatOp(af, bf)), true
}

// Add folds the `+` operator.
func Add(a, b Value) (Value, bool) {
	return arith(a, b, func(x, y int64) int64 { return x + y }, func(x, y float64) float64 { return x + y })
}

// Sub folds the `-` operator.
func Sub(a, b Value) (Value, bool) {
	return arith(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y })
}

// Mul folds the `*` operator.
func Mul(a, b Value) (Value, bool) {
	return arith(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y })
}

// Mod folds the `%` operator, following the floored-division convention:
// the result always has the same sign as the divisor.
func Mod(a, b Value) (Value, bool) {
	return arith(a, b, func(x, y int64) int64 {
		if y == 0 {
			return 0
		}
		m := x % y
		if m != 0 && (m^y) < 0 {
			m += y
		}
		return m
	}, func(x, y float64) float64 {
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return m
	})
}

// IDiv folds the `//` floor-division operator.
func IDiv(a, b Value) (Value, bool) {
	return arith(a, b, func(x, y int64) int64 {
		if y == 0 {
			return 0
		}
		q := x / y
		if (x%y != 0) && ((x < 0) != (y < 0)) {
			q--
		}
		return q
	}, func(x, y float64) float64 { return math.Floor(x / y) })
}

// Div folds the `/` operator, which always produces a Number regardless of
// operand types, matching the source language's float division rule.
func Div(a, b Value) (Value, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return Value{}, false
	}
	return Number(af / bf), true
}

// Pow folds the `^` operator, which (like Div) always produces a Number.
func Pow(a, b Value) (Value, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return Value{}, false
	}
	return Number(math.Pow(af, bf)), true
}

func bitwise(a, b Value, op func(x, y int64) int64) (Value, bool) {
	ai, aok := toInt(a)
	bi, bok := toInt(b)
	if !aok || !bok {
		return Value{}, false
	}
	return Integer(op(ai, bi)), true
}

// BitAnd folds the `&` operator.
func BitAnd(a, b Value) (Value, bool) { return bitwise(a, b, func(x, y int64) int64 { return x & y }) }

// BitOr folds the `|` operator.
func BitOr(a, b Value) (Value, bool) { return bitwise(a, b, func(x, y int64) int64 { return x | y }) }

// BitXor folds the `~` binary operator.
func BitXor(a, b Value) (Value, bool) { return bitwise(a, b, func(x, y int64) int64 { return x ^ y }) }

// ShiftLeft folds the `<<` operator. A negative amount shifts right
// instead, and an amount of 64 or more in either direction yields 0,
// matching Lua's shift semantics.
func ShiftLeft(a, b Value) (Value, bool) {
	return bitwise(a, b, func(x, y int64) int64 {
		if y <= -64 || y >= 64 {
			return 0
		}
		if y >= 0 {
			return int64(uint64(x) << uint(y))
		}
		return int64(uint64(x) >> uint(-y))
	})
}

// ShiftRight folds the `>>` operator (logical, unsigned shift).
func ShiftRight(a, b Value) (Value, bool) {
	return bitwise(a, b, func(x, y int64) int64 {
		if y <= -64 || y >= 64 {
			return 0
		}
		if y >= 0 {
			return int64(uint64(x) >> uint(y))
		}
		return int64(uint64(x) << uint(-y))
	})
}

// Not folds logical negation.
func Not(v Value) Value { return Bool(!v.AsBoolean()) }

// CompareEqual folds the `==` operator. Values of differing types are never
// equal, except Integer and Number compare across their domains numerically
// rather than by tag. Two Numbers compare by true IEEE 754 `==` (NaN is
// never equal to anything, including itself, and +0 equals -0) rather than
// Equal's bit-pattern rule, which exists only for the constant pool's
// dedup-by-identity purposes and deliberately disagrees with IEEE `==` on
// both of those points.
func CompareEqual(a, b Value) Value {
	if a.typ == TypeInteger && b.typ == TypeNumber {
		return Bool(float64(a.as.integer) == b.as.number)
	}
	if a.typ == TypeNumber && b.typ == TypeInteger {
		return Bool(a.as.number == float64(b.as.integer))
	}
	if a.typ == TypeNumber && b.typ == TypeNumber {
		return Bool(a.as.number == b.as.number)
	}
	return Bool(Equal(a, b))
}

// CompareLess folds the `<` operator over Integer/Number/String operands.
func CompareLess(a, b Value) (Value, bool) {
	if a.typ == TypeString && b.typ == TypeString {
		return Bool(a.as.str < b.as.str), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return Value{}, false
	}
	return Bool(af < bf), true
}

// CompareLessEqual folds the `<=` operator over Integer/Number/String
// operands.
func CompareLessEqual(a, b Value) (Value, bool) {
	if a.typ == TypeString && b.typ == TypeString {
		return Bool(a.as.str <= b.as.str), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return Value{}, false
	}
	return Bool(af <= bf), true
}

// Equal is value identity by bit pattern rather than by IEEE 754 `==`: two
// NaN values are Equal (even though NaN != NaN under `==`), while +0 and -0
// are not (even though +0 == -0 under `==`). This is the opposite of
// CompareEqual's rule and gives callers needing bit-identity a stable,
// total equality. The constant pool does not call this: it keys on the bit
// pattern after folding -0 into +0. Runtime `==` must use CompareEqual,
// never this.
func Equal(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeNil:
		return true
	case TypeBool:
		return a.as.boolean == b.as.boolean
	case TypeInteger:
		return a.as.integer == b.as.integer
	case TypeNumber:
		return math.Float64bits(a.as.number) == math.Float64bits(b.as.number)
	case TypeString:
		return a.as.str == b.as.str
	default:
		return false
	}
}
