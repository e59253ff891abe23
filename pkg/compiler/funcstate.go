package compiler

import (
	cerrors "wisp/pkg/errors"
)

// funcState is the per-function compilation context: one is pushed whenever
// the compiler descends into a function body (the chunk's own top-level
// function counts as the outermost one) and popped, via finish, back into
// its enclosing funcState's prototype list.
type funcState struct {
	enclosing *funcState

	regs      *RegisterAllocator
	symbols   *SymbolTable
	constants *ConstantPool

	opcodes    []OpCode
	upvalues   []UpValueDescriptor
	upvalNames []string // parallel to upvalues, for resolver lookups
	prototypes []*FunctionProto

	fixedParams uint8
	hasVarArgs  bool

	blocks            []*BlockDescriptor
	uniqueJumpCounter uint64
	jumpTargets       []JumpTarget
	pendingJumps      []PendingJump
}

func newFuncState(enclosing *funcState, params []string, hasVarArgs bool) (*funcState, error) {
	if len(params) > 255 {
		return nil, cerrors.New(cerrors.FixedParameters)
	}
	fs := &funcState{
		enclosing:   enclosing,
		regs:        NewRegisterAllocator(),
		symbols:     NewSymbolTable(),
		constants:   NewConstantPool(),
		fixedParams: uint8(len(params)),
		hasVarArgs:  hasVarArgs,
	}
	if _, ok := fs.regs.Push(len(params)); !ok {
		return nil, cerrors.New(cerrors.Registers)
	}
	for i, name := range params {
		fs.symbols.Declare(name, Register(i))
	}
	return fs, nil
}

func (fs *funcState) emit(op OpCode) int {
	fs.opcodes = append(fs.opcodes, op)
	return len(fs.opcodes) - 1
}

// finish emits the implicit trailing return, frees the function's
// parameter locals, and validates the function's end-of-life invariants:
// the register stack must be perfectly balanced and no goto may remain
// unresolved.
func (fs *funcState) finish() (*FunctionProto, error) {
	fs.emit(Return{Start: 0, Count: ConstantCount(0)})

	for i := fs.symbols.Count() - 1; i >= 0; i-- {
		fs.regs.Free(fs.symbols.At(i).Register)
	}
	fs.symbols.TruncateTo(0)

	if fs.regs.StackTop() != 0 {
		panic("compiler: register leak detected at function finish")
	}
	if len(fs.pendingJumps) != 0 {
		return nil, cerrors.New(cerrors.GotoInvalid)
	}

	return &FunctionProto{
		FixedParams: fs.fixedParams,
		HasVarArgs:  fs.hasVarArgs,
		StackSize:   uint8(fs.regs.StackSize()),
		Constants:   fs.constants.Values(),
		Opcodes:     fs.opcodes,
		Upvalues:    fs.upvalues,
		Prototypes:  fs.prototypes,
	}, nil
}

// addPrototype appends a fully-finished nested prototype and returns its
// index, failing once a function would own more than 255 nested prototypes
// (the Closure opcode addresses prototypes with a single byte index).
func (fs *funcState) addPrototype(proto *FunctionProto) (int, error) {
	if len(fs.prototypes) >= 255 {
		return 0, cerrors.New(cerrors.Functions)
	}
	fs.prototypes = append(fs.prototypes, proto)
	return len(fs.prototypes) - 1, nil
}

// addUpvalue appends a new upvalue descriptor, failing past 255 (an
// upvalue index must fit in a single byte operand).
func (fs *funcState) addUpvalue(name string, desc UpValueDescriptor) (int, error) {
	if len(fs.upvalues) >= 255 {
		return 0, cerrors.New(cerrors.UpValues)
	}
	fs.upvalues = append(fs.upvalues, desc)
	fs.upvalNames = append(fs.upvalNames, name)
	return len(fs.upvalues) - 1, nil
}
