package compiler

import "testing"

func TestRegisterAllocatorBasicAllocation(t *testing.T) {
	ra := NewRegisterAllocator()

	r0, ok := ra.Allocate()
	if !ok || r0 != 0 {
		t.Fatalf("expected first allocation to be r0, got r%d ok=%v", r0, ok)
	}
	r1, ok := ra.Allocate()
	if !ok || r1 != 1 {
		t.Fatalf("expected second allocation to be r1, got r%d ok=%v", r1, ok)
	}
	if ra.StackTop() != 2 {
		t.Errorf("expected stackTop 2, got %d", ra.StackTop())
	}
	if ra.StackSize() != 2 {
		t.Errorf("expected stackSize 2, got %d", ra.StackSize())
	}
}

func TestRegisterAllocatorFreeReusesLowestSlot(t *testing.T) {
	ra := NewRegisterAllocator()
	r0, _ := ra.Allocate()
	r1, _ := ra.Allocate()
	_, _ = ra.Allocate()

	ra.Free(r0)
	ra.Free(r1)

	reused, ok := ra.Allocate()
	if !ok || reused != r0 {
		t.Fatalf("expected reuse of lowest free slot r0, got r%d", reused)
	}
}

func TestRegisterAllocatorFreeLowersStackTopPastTrailingFrees(t *testing.T) {
	ra := NewRegisterAllocator()
	r0, _ := ra.Allocate()
	r1, _ := ra.Allocate()
	r2, _ := ra.Allocate()
	_ = r0

	ra.Free(r2)
	ra.Free(r1)

	if ra.StackTop() != 1 {
		t.Errorf("expected stackTop to lower past trailing frees to 1, got %d", ra.StackTop())
	}
	if ra.IsAllocated(r1) || ra.IsAllocated(r2) {
		t.Errorf("expected r1 and r2 to no longer be allocated")
	}
}

func TestRegisterAllocatorFreeMiddleDoesNotLowerStackTop(t *testing.T) {
	ra := NewRegisterAllocator()
	r0, _ := ra.Allocate()
	_, _ = ra.Allocate()
	_, _ = ra.Allocate()

	ra.Free(r0)
	if ra.StackTop() != 3 {
		t.Errorf("expected stackTop unchanged at 3 when freeing a non-top slot, got %d", ra.StackTop())
	}
	if ra.IsAllocated(r0) {
		t.Errorf("expected r0 to be free")
	}
}

func TestRegisterAllocatorPush(t *testing.T) {
	ra := NewRegisterAllocator()
	_, _ = ra.Allocate()

	base, ok := ra.Push(3)
	if !ok || base != 1 {
		t.Fatalf("expected push(3) to start at r1, got r%d ok=%v", base, ok)
	}
	if ra.StackTop() != 4 {
		t.Errorf("expected stackTop 4 after push, got %d", ra.StackTop())
	}
	for r := base; r < base+3; r++ {
		if !ra.IsAllocated(r) {
			t.Errorf("expected r%d to be allocated after push", r)
		}
	}
}

func TestRegisterAllocatorPushOverflow(t *testing.T) {
	ra := NewRegisterAllocator()
	if _, ok := ra.Push(maxRegisters); !ok {
		t.Fatalf("expected push of exactly maxRegisters to succeed")
	}
	if _, ok := ra.Push(1); ok {
		t.Errorf("expected a further push to fail once the stack is full")
	}
}

// The 255th live register must succeed and the 256th must fail with no
// silent stackTop wraparound: stackTop is a Register (uint8), so this also
// guards against the ceiling ever needing the unrepresentable value 256.
func TestRegisterAllocatorAllocateOverflow(t *testing.T) {
	ra := NewRegisterAllocator()
	for i := 0; i < maxRegisters; i++ {
		if _, ok := ra.Allocate(); !ok {
			t.Fatalf("unexpected allocation failure at iteration %d", i)
		}
	}
	if ra.StackTop() != maxRegisters {
		t.Fatalf("expected stackTop to read back %d after filling the allocator, got %d", maxRegisters, ra.StackTop())
	}
	if _, ok := ra.Allocate(); ok {
		t.Errorf("expected the 256th allocation to fail")
	}
	if ra.StackTop() != maxRegisters {
		t.Errorf("expected a failed allocation to leave stackTop unchanged at %d, got %d", maxRegisters, ra.StackTop())
	}
}

func TestRegisterAllocatorPopTo(t *testing.T) {
	ra := NewRegisterAllocator()
	_, _ = ra.Push(5)
	ra.PopTo(2)
	if ra.StackTop() != 2 {
		t.Errorf("expected stackTop 2 after popTo(2), got %d", ra.StackTop())
	}
	for r := Register(2); r < 5; r++ {
		if ra.IsAllocated(r) {
			t.Errorf("expected r%d to be freed by popTo", r)
		}
	}
}
