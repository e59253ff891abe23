package compiler

import "fmt"

// Debug flag for register allocation tracing.
const debugRegAlloc = false

// Register is a virtual machine register index. A function may have at
// most 255 live registers at once (stackTop == 255 means exhausted); the
// ceiling is 255, one below the 256 values an 8-bit index can name, so
// that stackTop itself - a count, not an index - never needs the value
// 256, which would not fit in Register's own 8-bit width.
type Register uint8

const maxRegisters = 255

// RegisterAllocator owns one function's contiguous virtual register stack.
// allocate() returns any free slot at or below the current top; push(n)
// reserves n contiguous slots strictly at the top (needed for Call/Return/
// varargs fan-out/LoadNil ranges, which all require a contiguous range);
// free(r) returns r to the free list, lowering stackTop past any trailing
// run of frees; popTo(n) frees every slot at or above n.
type RegisterAllocator struct {
	stackTop  Register
	stackSize Register // high-water mark
	allocated [maxRegisters]bool
}

// NewRegisterAllocator creates an allocator for a fresh function scope.
func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{}
}

// StackTop returns the current top of the register stack (one past the
// highest currently-allocated register, or the point above the final
// trailing free run).
func (ra *RegisterAllocator) StackTop() Register { return ra.stackTop }

// StackSize returns the high-water mark: the number of register slots this
// function requires.
func (ra *RegisterAllocator) StackSize() Register { return ra.stackSize }

// IsAllocated reports whether r is currently live.
func (ra *RegisterAllocator) IsAllocated(r Register) bool { return ra.allocated[r] }

func (ra *RegisterAllocator) bump(top int) {
	if Register(top) > ra.stackSize {
		ra.stackSize = Register(top)
	}
}

// Allocate returns the lowest free slot at or below stackTop, extending
// stackTop if none is free. Reports ok=false if the 255-register ceiling
// would be exceeded.
func (ra *RegisterAllocator) Allocate() (Register, bool) {
	for r := Register(0); r < ra.stackTop; r++ {
		if !ra.allocated[r] {
			ra.allocated[r] = true
			if debugRegAlloc {
				fmt.Printf("[regalloc] reuse r%d\n", r)
			}
			return r, true
		}
	}
	if int(ra.stackTop) >= maxRegisters {
		return 0, false
	}
	r := ra.stackTop
	ra.allocated[r] = true
	ra.stackTop++
	ra.bump(int(ra.stackTop))
	if debugRegAlloc {
		fmt.Printf("[regalloc] new r%d (top=%d)\n", r, ra.stackTop)
	}
	return r, true
}

// Push allocates n contiguous slots strictly at the top of the stack and
// returns the base register. Reports ok=false if it would overflow.
func (ra *RegisterAllocator) Push(n int) (Register, bool) {
	if n == 0 {
		return ra.stackTop, true
	}
	if int(ra.stackTop)+n > maxRegisters {
		return 0, false
	}
	base := ra.stackTop
	for i := 0; i < n; i++ {
		ra.allocated[int(base)+i] = true
	}
	ra.stackTop += Register(n)
	ra.bump(int(ra.stackTop))
	if debugRegAlloc {
		fmt.Printf("[regalloc] push %d -> r%d..r%d (top=%d)\n", n, base, int(base)+n-1, ra.stackTop)
	}
	return base, true
}

// Free marks r as available. If r is the top-most live register, stackTop
// is lowered past r and any further trailing free run below it.
func (ra *RegisterAllocator) Free(r Register) {
	ra.allocated[r] = false
	if debugRegAlloc {
		fmt.Printf("[regalloc] free r%d\n", r)
	}
	for ra.stackTop > 0 && !ra.allocated[ra.stackTop-1] {
		ra.stackTop--
	}
}

// PopTo frees every register at index >= n. All of them are assumed to be
// currently allocated (the caller is responsible for that invariant).
func (ra *RegisterAllocator) PopTo(n Register) {
	for r := ra.stackTop; r > n; r-- {
		ra.allocated[r-1] = false
	}
	ra.stackTop = n
	if debugRegAlloc {
		fmt.Printf("[regalloc] pop to r%d\n", n)
	}
}
