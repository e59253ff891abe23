package compiler

import (
	cerrors "wisp/pkg/errors"
	"wisp/pkg/value"
)

// ExprDescriptor is the compiler's expression layer: a tagged value
// describing where or how a result would be produced, left uncommitted
// until a consumer operation (discharge/test/discard/...) forces it into
// concrete opcodes.
type ExprDescriptor interface{ exprNode() }

type (
	// RegisterExpr's result already lives in a register. IsTemporary means
	// this expression owns the slot and must free it when discarded/moved.
	RegisterExpr struct {
		Register    Register
		IsTemporary bool
	}

	UpValueExpr struct{ Index int }

	ValueExpr struct{ Value value.Value }

	VarArgsExpr struct{}

	NotExpr struct{ Inner ExprDescriptor }

	CallExpr struct {
		Func ExprDescriptor
		Args []ExprDescriptor
	}

	ComparisonExpr struct {
		Left  ExprDescriptor
		Op    ComparisonBinOp
		Right ExprDescriptor
	}

	// ShortCircuitExpr holds its right operand as unlowered expression
	// syntax (rather than an already-compiled ExprDescriptor), compiled only
	// along the taken branch. IsAnd distinguishes `and` from `or`.
	ShortCircuitExpr struct {
		Left       ExprDescriptor
		IsAnd      bool
		RightThunk func(*Compiler) (ExprDescriptor, error)
	}
)

func (RegisterExpr) exprNode()     {}
func (UpValueExpr) exprNode()      {}
func (ValueExpr) exprNode()        {}
func (VarArgsExpr) exprNode()      {}
func (NotExpr) exprNode()          {}
func (CallExpr) exprNode()         {}
func (ComparisonExpr) exprNode()   {}
func (ShortCircuitExpr) exprNode() {}

// DestKind tags an expr_discharge destination.
type DestKind uint8

const (
	DestRegister DestKind = iota
	DestAllocateNew
	DestPushNew
)

type Destination struct {
	Kind     DestKind
	Register Register
}

func ToRegister(r Register) Destination { return Destination{Kind: DestRegister, Register: r} }
func AllocateNew() Destination          { return Destination{Kind: DestAllocateNew} }
func PushNew() Destination              { return Destination{Kind: DestPushNew} }

func (c *Compiler) newDestination(dest Destination) (Register, error) {
	switch dest.Kind {
	case DestRegister:
		return dest.Register, nil
	case DestAllocateNew:
		r, ok := c.fs.regs.Allocate()
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		return r, nil
	case DestPushNew:
		r, ok := c.fs.regs.Push(1)
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		return r, nil
	default:
		panic("unreachable destination kind")
	}
}

// anyRegister ensures expr is in some register, rewriting it in place to a
// temporary RegisterExpr, without caring which register.
func (c *Compiler) anyRegister(expr *ExprDescriptor) (Register, error) {
	if r, ok := (*expr).(RegisterExpr); ok {
		return r.Register, nil
	}
	reg, err := c.discharge(*expr, AllocateNew())
	if err != nil {
		return 0, err
	}
	*expr = RegisterExpr{Register: reg, IsTemporary: true}
	return reg, nil
}

// anyRegisterOrConstant returns a Constant operand when expr is a Value
// whose constant index fits in 8 bits; otherwise it behaves like
// anyRegister.
func (c *Compiler) anyRegisterOrConstant(expr *ExprDescriptor) (Operand, error) {
	if v, ok := (*expr).(ValueExpr); ok {
		idx, err := c.fs.constants.Get(v.Value)
		if err != nil {
			return Operand{}, err
		}
		if c8, ok := Index8(idx); ok {
			return ConstOperand(c8), nil
		}
	}
	reg, err := c.anyRegister(expr)
	if err != nil {
		return Operand{}, err
	}
	return RegOperand(reg), nil
}

// discharge consumes expr, committing it to dest, and returns the resulting
// register. The returned register is always marked allocated; the caller
// must place it into another expression or free it.
func (c *Compiler) discharge(expr ExprDescriptor, dest Destination) (Register, error) {
	switch e := expr.(type) {
	case RegisterExpr:
		if dest.Kind == DestAllocateNew && e.IsTemporary {
			return e.Register, nil
		}
		if e.IsTemporary {
			c.fs.regs.Free(e.Register)
		}
		d, err := c.newDestination(dest)
		if err != nil {
			return 0, err
		}
		if d != e.Register {
			c.fs.emit(Move{Dest: d, Source: e.Register})
		}
		return d, nil

	case UpValueExpr:
		d, err := c.newDestination(dest)
		if err != nil {
			return 0, err
		}
		c.fs.emit(GetUpValue{Source: e.Index, Dest: d})
		return d, nil

	case ValueExpr:
		d, err := c.newDestination(dest)
		if err != nil {
			return 0, err
		}
		switch {
		case e.Value.IsNil():
			c.fs.emit(LoadNil{Dest: d, Count: 1})
		case e.Value.IsBool():
			c.fs.emit(LoadBool{Dest: d, Value: e.Value.AsBool()})
		default:
			idx, err := c.fs.constants.Get(e.Value)
			if err != nil {
				return 0, err
			}
			c.fs.emit(LoadConstant{Dest: d, Constant: idx})
		}
		return d, nil

	case VarArgsExpr:
		d, err := c.newDestination(dest)
		if err != nil {
			return 0, err
		}
		c.fs.emit(VarArgs{Dest: d, Count: ConstantCount(1)})
		return d, nil

	case NotExpr:
		inner := e.Inner
		source, err := c.anyRegister(&inner)
		if err != nil {
			return 0, err
		}
		if err := c.discard(inner); err != nil {
			return 0, err
		}
		d, err := c.newDestination(dest)
		if err != nil {
			return 0, err
		}
		c.fs.emit(Not{Dest: d, Source: source})
		return d, nil

	case CallExpr:
		switch dest.Kind {
		case DestRegister:
			source, err := c.functionCall(e.Func, e.Args, ConstantCount(1))
			if err != nil {
				return 0, err
			}
			if dest.Register != source {
				c.fs.emit(Move{Dest: dest.Register, Source: source})
			}
			return dest.Register, nil
		default:
			source, err := c.functionCall(e.Func, e.Args, ConstantCount(1))
			if err != nil {
				return 0, err
			}
			if _, ok := c.fs.regs.Push(1); !ok {
				return 0, cerrors.New(cerrors.Registers)
			}
			return source, nil
		}

	case ComparisonExpr:
		left, right := e.Left, e.Right
		lrc, err := c.anyRegisterOrConstant(&left)
		if err != nil {
			return 0, err
		}
		rrc, err := c.anyRegisterOrConstant(&right)
		if err != nil {
			return 0, err
		}
		if err := c.discard(left); err != nil {
			return 0, err
		}
		if err := c.discard(right); err != nil {
			return 0, err
		}
		d, err := c.newDestination(dest)
		if err != nil {
			return 0, err
		}
		c.fs.emit(Compare{Op: e.Op, SkipIf: false, Left: lrc, Right: rrc})
		c.fs.emit(Jump{Offset: 1, CloseUpvalues: NoneOpt254()})
		c.fs.emit(LoadBool{Dest: d, Value: false, SkipNext: true})
		c.fs.emit(LoadBool{Dest: d, Value: true})
		return d, nil

	case ShortCircuitExpr:
		left := e.Left
		lr, err := c.anyRegister(&left)
		if err != nil {
			return 0, err
		}
		if err := c.discard(left); err != nil {
			return 0, err
		}
		d, err := c.newDestination(dest)
		if err != nil {
			return 0, err
		}
		if lr == d {
			c.fs.emit(Test{Value: lr, IsTrue: e.IsAnd})
		} else {
			c.fs.emit(TestSet{Dest: d, Value: lr, IsTrue: e.IsAnd})
		}
		skip := c.fs.uniqueJumpLabel()
		if err := c.fs.jump(skip); err != nil {
			return 0, err
		}
		right, err := e.RightThunk(c)
		if err != nil {
			return 0, err
		}
		if _, err := c.discharge(right, ToRegister(d)); err != nil {
			return 0, err
		}
		if err := c.fs.jumpTarget(skip); err != nil {
			return 0, err
		}
		return d, nil

	default:
		panic("unreachable expr descriptor")
	}
}

// pushCount consumes expr, placing it in n contiguous newly-allocated
// registers at the top of the stack. Single-value expressions have the
// remaining n-1 slots filled with Nil.
func (c *Compiler) pushCount(expr ExprDescriptor, n int) (Register, error) {
	if n == 0 {
		panic("pushCount: n must not be zero")
	}
	switch e := expr.(type) {
	case CallExpr:
		count, ok := TryConstantCount(n)
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		d, err := c.functionCall(e.Func, e.Args, count)
		if err != nil {
			return 0, err
		}
		if _, ok := c.fs.regs.Push(n); !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		return d, nil

	case VarArgsExpr:
		d, ok := c.fs.regs.Push(n)
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		count, ok := TryConstantCount(n)
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		c.fs.emit(VarArgs{Dest: d, Count: count})
		return d, nil

	case ValueExpr:
		if e.Value.IsNil() {
			d, ok := c.fs.regs.Push(n)
			if !ok {
				return 0, cerrors.New(cerrors.Registers)
			}
			c.fs.emit(LoadNil{Dest: d, Count: n})
			return d, nil
		}
	}

	d, err := c.discharge(expr, PushNew())
	if err != nil {
		return 0, err
	}
	if n > 1 {
		nils, ok := c.fs.regs.Push(n - 1)
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		c.fs.emit(LoadNil{Dest: nils, Count: n - 1})
	}
	return d, nil
}

// functionCall performs a call, consuming func and args. Return values are
// left at the top of the stack starting at the returned register; this
// method does not mark them allocated.
func (c *Compiler) functionCall(funcExpr ExprDescriptor, args []ExprDescriptor, returns VarCount) (Register, error) {
	topReg, err := c.discharge(funcExpr, PushNew())
	if err != nil {
		return 0, err
	}

	argsLen := len(args)
	var lastArg ExprDescriptor
	if argsLen > 0 {
		lastArg = args[argsLen-1]
		args = args[:argsLen-1]
	}
	for _, a := range args {
		if _, err := c.discharge(a, PushNew()); err != nil {
			return 0, err
		}
	}

	var argCount VarCount
	switch e := lastArg.(type) {
	case CallExpr:
		if _, err := c.functionCall(e.Func, e.Args, VariableCount()); err != nil {
			return 0, err
		}
		argCount = VariableCount()
	case VarArgsExpr:
		c.fs.emit(VarArgs{Dest: Register(int(topReg) + argsLen), Count: VariableCount()})
		argCount = VariableCount()
	case nil:
		cnt, ok := TryConstantCount(argsLen)
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		argCount = cnt
	default:
		if _, err := c.discharge(lastArg, PushNew()); err != nil {
			return 0, err
		}
		cnt, ok := TryConstantCount(argsLen)
		if !ok {
			return 0, cerrors.New(cerrors.Registers)
		}
		argCount = cnt
	}

	c.fs.emit(Call{Func: topReg, Args: argCount, Returns: returns})
	c.fs.regs.PopTo(topReg)
	return topReg, nil
}

// test emits a test that skips the following instruction iff expr's
// boolean value equals skipIf.
func (c *Compiler) test(expr ExprDescriptor, skipIf bool) error {
	genComparison := func(left ExprDescriptor, op ComparisonBinOp, right ExprDescriptor, skipIf bool) error {
		lrc, err := c.anyRegisterOrConstant(&left)
		if err != nil {
			return err
		}
		rrc, err := c.anyRegisterOrConstant(&right)
		if err != nil {
			return err
		}
		if err := c.discard(left); err != nil {
			return err
		}
		if err := c.discard(right); err != nil {
			return err
		}
		c.fs.emit(Compare{Op: op, SkipIf: skipIf, Left: lrc, Right: rrc})
		return nil
	}

	genTest := func(expr ExprDescriptor, isTrue bool) error {
		testReg, err := c.anyRegister(&expr)
		if err != nil {
			return err
		}
		if err := c.discard(expr); err != nil {
			return err
		}
		c.fs.emit(Test{Value: testReg, IsTrue: isTrue})
		return nil
	}

	switch e := expr.(type) {
	case ValueExpr:
		if e.Value.AsBoolean() == skipIf {
			c.fs.emit(Jump{Offset: 1, CloseUpvalues: NoneOpt254()})
		}
		return nil
	case ComparisonExpr:
		return genComparison(e.Left, e.Op, e.Right, skipIf)
	case NotExpr:
		if cmp, ok := e.Inner.(ComparisonExpr); ok {
			return genComparison(cmp.Left, cmp.Op, cmp.Right, !skipIf)
		}
		return genTest(e.Inner, !skipIf)
	default:
		return genTest(expr, skipIf)
	}
}

// discard evaluates expr for any side effects and releases its resources
// without producing a usable value.
func (c *Compiler) discard(expr ExprDescriptor) error {
	switch e := expr.(type) {
	case RegisterExpr:
		if e.IsTemporary {
			c.fs.regs.Free(e.Register)
		}
		return nil

	case NotExpr:
		return c.discard(e.Inner)

	case CallExpr:
		_, err := c.functionCall(e.Func, e.Args, ConstantCount(0))
		return err

	case ComparisonExpr:
		left, right := e.Left, e.Right
		lrc, err := c.anyRegisterOrConstant(&left)
		if err != nil {
			return err
		}
		rrc, err := c.anyRegisterOrConstant(&right)
		if err != nil {
			return err
		}
		if err := c.discard(left); err != nil {
			return err
		}
		if err := c.discard(right); err != nil {
			return err
		}
		c.fs.emit(Compare{Op: e.Op, SkipIf: false, Left: lrc, Right: rrc})
		c.fs.emit(Jump{Offset: 0, CloseUpvalues: NoneOpt254()})
		return nil

	case ShortCircuitExpr:
		left := e.Left
		lr, err := c.anyRegister(&left)
		if err != nil {
			return err
		}
		if err := c.discard(left); err != nil {
			return err
		}
		c.fs.emit(Test{Value: lr, IsTrue: e.IsAnd})
		skip := c.fs.uniqueJumpLabel()
		if err := c.fs.jump(skip); err != nil {
			return err
		}
		right, err := e.RightThunk(c)
		if err != nil {
			return err
		}
		if err := c.discard(right); err != nil {
			return err
		}
		return c.fs.jumpTarget(skip)

	case UpValueExpr, ValueExpr, VarArgsExpr:
		return nil

	default:
		panic("unreachable expr descriptor")
	}
}
