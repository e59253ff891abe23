package value

import (
	"math"
	"testing"
)

func TestCompareEqualNaNIsNeverEqual(t *testing.T) {
	nan := Number(math.NaN())
	if CompareEqual(nan, nan).AsBool() {
		t.Errorf("expected NaN == NaN to be false under IEEE 754 semantics")
	}
	if CompareEqual(nan, Number(1)).AsBool() {
		t.Errorf("expected NaN == 1.0 to be false")
	}
}

func TestCompareEqualPositiveAndNegativeZero(t *testing.T) {
	pos := Number(0.0)
	neg := Number(math.Copysign(0, -1))
	if !CompareEqual(pos, neg).AsBool() {
		t.Errorf("expected +0.0 == -0.0 to be true under IEEE 754 semantics")
	}
}

func TestCompareEqualIntegerNumberCrossDomain(t *testing.T) {
	if !CompareEqual(Integer(3), Number(3.0)).AsBool() {
		t.Errorf("expected Integer(3) == Number(3.0) to be true")
	}
	if CompareEqual(Integer(3), Number(3.5)).AsBool() {
		t.Errorf("expected Integer(3) == Number(3.5) to be false")
	}
}

// Equal (bit-pattern identity) disagrees with CompareEqual (the `==`
// operator) on both NaN and +0/-0 by design: Equal treats a NaN as equal
// to itself and +0/-0 as distinct, while `==` follows true IEEE 754 float
// comparison.
func TestEqualAndCompareEqualDisagreeOnNaNAndZero(t *testing.T) {
	nan := Number(math.NaN())
	if !Equal(nan, nan) {
		t.Errorf("expected Equal(NaN, NaN) to be true (bit-pattern identity, for constant dedup)")
	}
	if CompareEqual(nan, nan).AsBool() {
		t.Errorf("expected CompareEqual(NaN, NaN) to be false (IEEE 754 `==`)")
	}
	pos, neg := Number(0.0), Number(math.Copysign(0, -1))
	if Equal(pos, neg) {
		t.Errorf("expected Equal(+0, -0) to be false (distinct bit patterns)")
	}
	if !CompareEqual(pos, neg).AsBool() {
		t.Errorf("expected CompareEqual(+0, -0) to be true (IEEE 754 `==`)")
	}
}
