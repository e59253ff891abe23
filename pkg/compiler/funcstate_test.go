package compiler

import (
	"testing"

	cerrors "wisp/pkg/errors"
)

func TestAddUpvalueCeiling(t *testing.T) {
	fs := newTestFuncState(t)
	for i := 0; i < 255; i++ {
		if _, err := fs.addUpvalue("u", UpValueDescriptor{Kind: UpParentLocal, Register: 0}); err != nil {
			t.Fatalf("unexpected error at upvalue %d: %v", i, err)
		}
	}
	_, err := fs.addUpvalue("u", UpValueDescriptor{Kind: UpParentLocal, Register: 0})
	if err == nil {
		t.Fatalf("expected an error on the 256th upvalue")
	}
	if ce := err.(cerrors.CompileError); ce.Kind() != cerrors.UpValues {
		t.Errorf("expected UpValues, got %v", ce.Kind())
	}
}

func TestAddPrototypeCeiling(t *testing.T) {
	fs := newTestFuncState(t)
	proto := &FunctionProto{}
	for i := 0; i < 255; i++ {
		if _, err := fs.addPrototype(proto); err != nil {
			t.Fatalf("unexpected error at prototype %d: %v", i, err)
		}
	}
	_, err := fs.addPrototype(proto)
	if err == nil {
		t.Fatalf("expected an error on the 256th nested prototype")
	}
	if ce := err.(cerrors.CompileError); ce.Kind() != cerrors.Functions {
		t.Errorf("expected Functions, got %v", ce.Kind())
	}
}

func TestTooManyFixedParameters(t *testing.T) {
	params := make([]string, 256)
	for i := range params {
		params[i] = "p"
	}
	_, err := newFuncState(nil, params, false)
	if err == nil {
		t.Fatalf("expected an error for 256 fixed parameters")
	}
	if ce := err.(cerrors.CompileError); ce.Kind() != cerrors.FixedParameters {
		t.Errorf("expected FixedParameters, got %v", ce.Kind())
	}
}

func TestFinishEmitsImplicitReturn(t *testing.T) {
	fs := newTestFuncState(t)
	proto, err := fs.finish()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proto.Opcodes) != 1 {
		t.Fatalf("expected exactly the implicit trailing return, got %d opcodes", len(proto.Opcodes))
	}
	ret, ok := proto.Opcodes[0].(Return)
	if !ok || ret.Start != 0 || ret.Count.IsVariable() || ret.Count.Count() != 0 {
		t.Errorf("expected Return{0, constant(0)}, got %+v", proto.Opcodes[0])
	}
}
