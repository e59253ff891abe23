package compiler

import (
	"math"

	"github.com/dolthub/swiss"

	cerrors "wisp/pkg/errors"
	"wisp/pkg/value"
)

// constKey is a comparable projection of value.Value suitable as a swiss.Map
// key. Floats are keyed by bit pattern (via math.Float64bits) rather than by
// the float itself, so that two NaN literals collapse to one constant (NaN
// != NaN under IEEE ==, so comparing as floats would never dedup them); -0.0
// is canonicalized to +0.0 before hashing so the two also share one slot, per
// the constant pool's own equality rule rather than runtime `==`.
type constKey struct {
	typ  value.Type
	bits uint64
	str  string
}

func keyOf(v value.Value) constKey {
	switch v.Type() {
	case value.TypeNil:
		return constKey{typ: value.TypeNil}
	case value.TypeBool:
		b := uint64(0)
		if v.AsBool() {
			b = 1
		}
		return constKey{typ: value.TypeBool, bits: b}
	case value.TypeInteger:
		return constKey{typ: value.TypeInteger, bits: uint64(v.AsInteger())}
	case value.TypeNumber:
		f := v.AsNumber()
		if f == 0 {
			f = 0 // canonicalize -0.0 to +0.0 so both share a constant pool slot
		}
		return constKey{typ: value.TypeNumber, bits: math.Float64bits(f)}
	case value.TypeString:
		return constKey{typ: value.TypeString, str: v.AsString()}
	default:
		panic("unreachable value type")
	}
}

// ConstantPool deduplicates constant values by structural equality and
// assigns them 16-bit indices in insertion order.
type ConstantPool struct {
	values []value.Value
	index  *swiss.Map[constKey, int]
}

func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		index: swiss.NewMap[constKey, int](16),
	}
}

// Get interns v, returning its constant index. Fails with a Constants error
// once the pool would need a 16-bit index beyond 65535 entries.
func (p *ConstantPool) Get(v value.Value) (int, error) {
	k := keyOf(v)
	if idx, ok := p.index.Get(k); ok {
		return idx, nil
	}
	if len(p.values) >= 65536 {
		return 0, cerrors.New(cerrors.Constants)
	}
	idx := len(p.values)
	p.values = append(p.values, v)
	p.index.Put(k, idx)
	return idx, nil
}

// Index8 returns idx as an 8-bit constant index when it fits, for opcodes
// that accept a constant operand directly.
func Index8(idx int) (ConstIndex8, bool) {
	if idx < 0 || idx > 255 {
		return 0, false
	}
	return ConstIndex8(idx), true
}

func (p *ConstantPool) Values() []value.Value { return p.values }

func (p *ConstantPool) Len() int { return len(p.values) }
