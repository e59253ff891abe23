package compiler

import (
	"math"
	"testing"

	cerrors "wisp/pkg/errors"
	"wisp/pkg/value"
)

func TestConstantPoolDeduplicatesByStructuralEquality(t *testing.T) {
	p := NewConstantPool()

	i1, err := p.Get(value.Integer(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	i2, err := p.Get(value.Integer(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i1 != i2 {
		t.Errorf("expected repeated literal 3 to dedup to the same index, got %d and %d", i1, i2)
	}

	i3, err := p.Get(value.Integer(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if i3 == i1 {
		t.Errorf("expected a distinct literal to get a distinct index")
	}
	if p.Len() != 2 {
		t.Errorf("expected 2 distinct constants, got %d", p.Len())
	}
}

func TestConstantPoolIntegerAndNumberDoNotCollide(t *testing.T) {
	p := NewConstantPool()
	iIdx, _ := p.Get(value.Integer(3))
	fIdx, _ := p.Get(value.Number(3.0))
	if iIdx == fIdx {
		t.Errorf("expected Integer(3) and Number(3.0) to occupy distinct constant slots")
	}
}

func TestConstantPoolNaNEqualsItself(t *testing.T) {
	p := NewConstantPool()
	nan := math.NaN()
	i1, _ := p.Get(value.Number(nan))
	i2, _ := p.Get(value.Number(nan))
	if i1 != i2 {
		t.Errorf("expected two NaN literals to dedup to one constant slot")
	}
}

func TestConstantPoolPositiveAndNegativeZeroCollapseToOneSlot(t *testing.T) {
	p := NewConstantPool()
	posIdx, _ := p.Get(value.Number(0.0))
	negIdx, _ := p.Get(value.Number(math.Copysign(0, -1)))
	if posIdx != negIdx {
		t.Errorf("expected +0.0 and -0.0 to collapse to the same constant slot")
	}
}

func TestConstantPoolOverflow(t *testing.T) {
	p := NewConstantPool()
	for i := 0; i < 65536; i++ {
		if _, err := p.Get(value.Integer(int64(i))); err != nil {
			t.Fatalf("unexpected error at constant %d: %v", i, err)
		}
	}
	_, err := p.Get(value.Integer(100000))
	if err == nil {
		t.Fatalf("expected an error once the constant pool would exceed 65536 entries")
	}
	ce, ok := err.(cerrors.CompileError)
	if !ok || ce.Kind() != cerrors.Constants {
		t.Errorf("expected a Constants error, got %v", err)
	}
}

func TestIndex8(t *testing.T) {
	if _, ok := Index8(255); !ok {
		t.Errorf("expected 255 to fit in 8 bits")
	}
	if _, ok := Index8(256); ok {
		t.Errorf("expected 256 not to fit in 8 bits")
	}
}
