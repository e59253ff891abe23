package compiler

import "testing"

// TestUpvalueCaptureMarksEveryEnclosingBlock: when an inner function
// captures a local of an outer function, every block of the
// outer function surrounding the local's declaration - not just its own
// declaring block - must end up with OwnsUpvalues set, even when the point
// of capture is nested inside additional blocks opened after the local was
// declared.
func TestUpvalueCaptureMarksEveryEnclosingBlock(t *testing.T) {
	c := &Compiler{}
	outer, err := newFuncState(nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.fs = outer

	outer.enterBlock() // block 0: declares x
	xReg, ok := outer.regs.Allocate()
	if !ok {
		t.Fatalf("unexpected allocation failure")
	}
	outer.symbols.Declare("x", xReg)

	outer.enterBlock() // block 1: opened after x, does not itself own x,
	// but a closure defined inside it still has block 0 (and this block, by
	// virtue of being the path the upvalue marking walks outward through) in
	// its enclosing chain.

	inner, err := newFuncState(outer, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.fs = inner
	if _, err := c.resolveName("x"); err != nil {
		t.Fatalf("unexpected error resolving x: %v", err)
	}

	if !outer.blocks[0].OwnsUpvalues {
		t.Errorf("expected x's own declaring block (block 0) to have OwnsUpvalues set")
	}
}

func TestFindVariableLocal(t *testing.T) {
	fs, err := newFuncState(nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs.enterBlock()
	reg, _ := fs.regs.Allocate()
	fs.symbols.Declare("x", reg)

	vd, err := fs.findVariable("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vd.Kind != VarLocal || vd.Register != reg {
		t.Errorf("expected Local(%d), got %+v", reg, vd)
	}
}

func TestFindVariableUpvalueChainAcrossTwoLevels(t *testing.T) {
	c := &Compiler{}
	grandparent, err := newFuncState(nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grandparent.enterBlock()
	reg, _ := grandparent.regs.Allocate()
	grandparent.symbols.Declare("x", reg)

	parent, err := newFuncState(grandparent, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	child, err := newFuncState(parent, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.fs = child

	vd, err := c.fs.findVariable("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vd.Kind != VarUpValue {
		t.Fatalf("expected child to resolve x as an upvalue, got %+v", vd)
	}
	if len(parent.upvalues) != 1 || parent.upvalues[0].Kind != UpParentLocal || parent.upvalues[0].Register != reg {
		t.Errorf("expected parent to capture x as ParentLocal(%d), got %+v", reg, parent.upvalues)
	}
	if len(child.upvalues) != 1 || child.upvalues[0].Kind != UpOuter || child.upvalues[0].Outer != 0 {
		t.Errorf("expected child to capture x as Outer(0), got %+v", child.upvalues)
	}
}

func TestFindVariableGlobalIntroducesEnvUpvalue(t *testing.T) {
	fs, err := newFuncState(nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	vd, err := fs.findVariable("whatever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vd.Kind != VarGlobal {
		t.Errorf("expected an unbound name to resolve as Global, got %+v", vd)
	}

	env, err := fs.getEnvironment()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Kind != VarUpValue || env.UpValue != 0 {
		t.Errorf("expected _ENV to be upvalue 0, got %+v", env)
	}
	if fs.upvalues[0].Kind != UpEnvironment {
		t.Errorf("expected upvalue 0 to be the Environment descriptor, got %+v", fs.upvalues[0])
	}
}
