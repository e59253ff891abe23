package compiler

import (
	"testing"

	cerrors "wisp/pkg/errors"
)

func newTestFuncState(t *testing.T) *funcState {
	t.Helper()
	fs, err := newFuncState(nil, nil, false)
	if err != nil {
		t.Fatalf("unexpected error creating funcState: %v", err)
	}
	return fs
}

func TestJumpOffsetForwardAndBackward(t *testing.T) {
	off, ok := jumpOffset(0, 5)
	if !ok || off != 4 {
		t.Errorf("expected forward offset 4, got %d ok=%v", off, ok)
	}
	off, ok = jumpOffset(5, 0)
	if !ok || off != -6 {
		t.Errorf("expected backward offset -6, got %d ok=%v", off, ok)
	}
}

func TestJumpOffsetOverflow(t *testing.T) {
	if _, ok := jumpOffset(0, 40000); ok {
		t.Errorf("expected an offset beyond i16 range to fail")
	}
}

func TestForwardJumpPatchedAtLabel(t *testing.T) {
	fs := newTestFuncState(t)
	fs.enterBlock()

	label := fs.uniqueJumpLabel()
	if err := fs.jump(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	j, ok := fs.opcodes[0].(Jump)
	if !ok || j.Offset != 0 || !j.CloseUpvalues.IsNone() {
		t.Fatalf("expected a zero-offset placeholder jump before patching, got %+v", fs.opcodes[0])
	}

	fs.emit(Move{Dest: 0, Source: 1}) // filler instruction between jump and target
	if err := fs.jumpTarget(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	patched := fs.opcodes[0].(Jump)
	if patched.Offset != 1 {
		t.Errorf("expected patched offset 1 (skip the filler instruction), got %d", patched.Offset)
	}
}

func TestBackwardJumpResolvesImmediately(t *testing.T) {
	fs := newTestFuncState(t)
	fs.enterBlock()

	label := fs.uniqueJumpLabel()
	if err := fs.jumpTarget(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs.emit(Move{Dest: 0, Source: 1})
	if err := fs.jump(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	j := fs.opcodes[len(fs.opcodes)-1].(Jump)
	if j.Offset != -2 {
		t.Errorf("expected backward offset -2, got %d", j.Offset)
	}
}

func TestDuplicateLabelInSameBlockFails(t *testing.T) {
	fs := newTestFuncState(t)
	fs.enterBlock()

	label := JumpLabel{Kind: JumpNamed, Name: "top"}
	if err := fs.jumpTarget(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := fs.jumpTarget(label)
	if err == nil {
		t.Fatalf("expected an error on duplicate label in the same block")
	}
	if ce := err.(cerrors.CompileError); ce.Kind() != cerrors.DuplicateLabel {
		t.Errorf("expected DuplicateLabel, got %v", ce.Kind())
	}
}

func TestUnresolvedForwardGotoFailsAtFinish(t *testing.T) {
	fs := newTestFuncState(t)
	fs.enterBlock()
	if err := fs.jump(JumpLabel{Kind: JumpNamed, Name: "nowhere"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs.exitBlock()

	_, err := fs.finish()
	if err == nil {
		t.Fatalf("expected GotoInvalid for an unresolved forward goto")
	}
	if ce := err.(cerrors.CompileError); ce.Kind() != cerrors.GotoInvalid {
		t.Errorf("expected GotoInvalid, got %v", ce.Kind())
	}
}

func TestJumpIntoScopeOfNewLocalFails(t *testing.T) {
	fs := newTestFuncState(t)
	fs.enterBlock()

	label := JumpLabel{Kind: JumpNamed, Name: "skip"}
	if err := fs.jump(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A local declared between the jump and the label shifts stackTop up,
	// so the label site's stackTop is now greater than what the jump saw.
	reg, ok := fs.regs.Allocate()
	if !ok {
		t.Fatalf("unexpected allocation failure")
	}
	fs.symbols.Declare("x", reg)

	err := fs.jumpTarget(label)
	if err == nil {
		t.Fatalf("expected JumpLocal for a goto into a new local's scope")
	}
	if ce := err.(cerrors.CompileError); ce.Kind() != cerrors.JumpLocal {
		t.Errorf("expected JumpLocal, got %v", ce.Kind())
	}
}

func TestJumpTargetAtTrailingLabelIgnoresLaterLocals(t *testing.T) {
	fs := newTestFuncState(t)
	fs.enterBlock()
	block := fs.blocks[len(fs.blocks)-1]

	label := JumpLabel{Kind: JumpNamed, Name: "continue"}
	if err := fs.jump(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A local declared between the goto and the trailing label raises the
	// real stack top, but a trailing label is resolved against the block's
	// StackBottom instead, so this must not fail with JumpLocal.
	reg, ok := fs.regs.Allocate()
	if !ok {
		t.Fatalf("unexpected allocation failure")
	}
	fs.symbols.Declare("x", reg)

	if err := fs.jumpTargetAt(label, block.StackBottom); err != nil {
		t.Fatalf("expected trailing label resolution to ignore the later local, got: %v", err)
	}
}

func TestBlockExitReanchorsPendingJumpToEnclosingBlock(t *testing.T) {
	fs := newTestFuncState(t)
	fs.enterBlock() // outer
	fs.enterBlock() // inner

	label := JumpLabel{Kind: JumpNamed, Name: "out"}
	if err := fs.jump(label); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fs.pendingJumps) != 1 || fs.pendingJumps[0].BlockIndex != 1 {
		t.Fatalf("expected one pending jump anchored to the inner block, got %+v", fs.pendingJumps)
	}

	fs.exitBlock() // back to outer block; pending jump should re-anchor

	if len(fs.pendingJumps) != 1 || fs.pendingJumps[0].BlockIndex != 0 {
		t.Fatalf("expected the pending jump to re-anchor to block 0, got %+v", fs.pendingJumps)
	}

	if err := fs.jumpTarget(label); err != nil {
		t.Fatalf("unexpected error resolving re-anchored jump: %v", err)
	}
	if len(fs.pendingJumps) != 0 {
		t.Errorf("expected the pending jump to be resolved")
	}
}
