package compiler

import (
	"wisp/pkg/ast"
	cerrors "wisp/pkg/errors"
	"wisp/pkg/value"
)

// compileBlock compiles each statement in sequence. The trailing run of
// label-only statements (if any) is compiled against the block's entry
// stack top rather than its real, higher current top, so a `goto` issued
// before a local declared earlier in this same block can still legally
// target a label at the block's end: that trailing run is logically
// outside the lifetime of locals this block itself declared.
func (c *Compiler) compileBlock(b ast.Block) error {
	trailingFrom := len(b.Statements)
	for trailingFrom > 0 {
		if _, ok := b.Statements[trailingFrom-1].(*ast.LabelStatement); !ok {
			break
		}
		trailingFrom--
	}

	for _, s := range b.Statements[:trailingFrom] {
		if err := c.compileStatement(s); err != nil {
			return err
		}
	}

	if trailingFrom == len(b.Statements) {
		return nil
	}
	bottom := c.fs.blocks[len(c.fs.blocks)-1].StackBottom
	for _, s := range b.Statements[trailingFrom:] {
		label := s.(*ast.LabelStatement)
		if err := c.fs.jumpTargetAt(JumpLabel{Kind: JumpNamed, Name: label.Name}, bottom); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStatement(s ast.Statement) error {
	switch st := s.(type) {
	case *ast.IfStatement:
		return c.compileIf(st)
	case *ast.WhileStatement:
		return c.compileWhile(st)
	case *ast.RepeatStatement:
		return c.compileRepeat(st)
	case *ast.DoStatement:
		c.fs.enterBlock()
		err := c.compileBlock(st.Body)
		c.fs.exitBlock()
		return err
	case *ast.NumericForStatement:
		return c.compileNumericFor(st)
	case *ast.GenericForStatement:
		return c.compileGenericFor(st)
	case *ast.FunctionStatement:
		return c.compileFunctionStatement(st)
	case *ast.LocalFunctionStatement:
		return c.compileLocalFunctionStatement(st)
	case *ast.LocalStatement:
		return c.compileLocalStatement(st)
	case *ast.AssignmentStatement:
		return c.compileAssignmentStatement(st)
	case *ast.FunctionCallStatement:
		call, err := c.compileSuffixedExpression(st.Call)
		if err != nil {
			return err
		}
		return c.discard(call)
	case *ast.LabelStatement:
		return c.fs.jumpTarget(JumpLabel{Kind: JumpNamed, Name: st.Name})
	case *ast.GotoStatement:
		return c.fs.jump(JumpLabel{Kind: JumpNamed, Name: st.Name})
	case *ast.BreakStatement:
		return c.fs.jump(JumpLabel{Kind: JumpBreak})
	case *ast.ReturnStatement:
		return c.compileReturn(st)
	default:
		panic("compiler: unhandled Statement variant")
	}
}

// compileIf lowers an if/elseif*/else chain. Every clause's condition test
// skips the branch to its else-if-false-target; all taken branches jump to
// a shared end label except the chain's final branch, which falls through
// to it.
func (c *Compiler) compileIf(st *ast.IfStatement) error {
	endLabel := c.fs.uniqueJumpLabel()
	for i, clause := range st.Clauses {
		cond, err := c.compileExpression(clause.Cond)
		if err != nil {
			return err
		}
		if err := c.test(cond, true); err != nil {
			return err
		}
		nextLabel := c.fs.uniqueJumpLabel()
		if err := c.fs.jump(nextLabel); err != nil {
			return err
		}

		c.fs.enterBlock()
		if err := c.compileBlock(clause.Body); err != nil {
			return err
		}
		c.fs.exitBlock()

		if i < len(st.Clauses)-1 || st.Else != nil {
			if err := c.fs.jump(endLabel); err != nil {
				return err
			}
		}
		if err := c.fs.jumpTarget(nextLabel); err != nil {
			return err
		}
	}
	if st.Else != nil {
		c.fs.enterBlock()
		if err := c.compileBlock(*st.Else); err != nil {
			return err
		}
		c.fs.exitBlock()
	}
	return c.fs.jumpTarget(endLabel)
}

// compileWhile lowers `while cond do body end`. break and a falsy
// condition both jump to the same post-loop label.
func (c *Compiler) compileWhile(st *ast.WhileStatement) error {
	c.fs.enterBlock()
	startLabel := c.fs.uniqueJumpLabel()
	if err := c.fs.jumpTarget(startLabel); err != nil {
		return err
	}

	cond, err := c.compileExpression(st.Cond)
	if err != nil {
		return err
	}
	if err := c.test(cond, true); err != nil {
		return err
	}
	breakLabel := JumpLabel{Kind: JumpBreak}
	if err := c.fs.jump(breakLabel); err != nil {
		return err
	}

	c.fs.enterBlock()
	if err := c.compileBlock(st.Body); err != nil {
		return err
	}
	c.fs.exitBlock()

	if err := c.fs.jump(startLabel); err != nil {
		return err
	}
	if err := c.fs.jumpTarget(breakLabel); err != nil {
		return err
	}
	c.fs.exitBlock()
	return nil
}

// compileRepeat lowers `repeat body until cond`. cond is compiled inside
// the body's own scope, since until may reference locals the body
// declares.
func (c *Compiler) compileRepeat(st *ast.RepeatStatement) error {
	c.fs.enterBlock()
	startLabel := c.fs.uniqueJumpLabel()
	if err := c.fs.jumpTarget(startLabel); err != nil {
		return err
	}

	c.fs.enterBlock()
	if err := c.compileBlock(st.Body); err != nil {
		return err
	}
	cond, err := c.compileExpression(st.Cond)
	if err != nil {
		return err
	}
	if err := c.test(cond, true); err != nil {
		return err
	}
	if err := c.fs.jump(startLabel); err != nil {
		return err
	}
	c.fs.exitBlock()

	if err := c.fs.jumpTarget(JumpLabel{Kind: JumpBreak}); err != nil {
		return err
	}
	c.fs.exitBlock()
	return nil
}

// compileNumericFor lowers `for name = start, limit[, step] do body end`.
// The control registers (index, limit, step) and the user-visible loop
// variable occupy one contiguous 4-register run; NumericForPrep jumps
// forward to the shared loop test so the first iteration is checked
// exactly like every later one.
func (c *Compiler) compileNumericFor(st *ast.NumericForStatement) error {
	c.fs.enterBlock()
	base, ok := c.fs.regs.Push(4)
	if !ok {
		return cerrors.New(cerrors.Registers)
	}

	startExpr, err := c.compileExpression(st.Start)
	if err != nil {
		return err
	}
	if _, err := c.discharge(startExpr, ToRegister(base)); err != nil {
		return err
	}
	limitExpr, err := c.compileExpression(st.Limit)
	if err != nil {
		return err
	}
	if _, err := c.discharge(limitExpr, ToRegister(base+1)); err != nil {
		return err
	}
	var stepExpr ExprDescriptor
	if st.Step != nil {
		stepExpr, err = c.compileExpression(*st.Step)
		if err != nil {
			return err
		}
	} else {
		stepExpr = ValueExpr{Value: value.Integer(1)}
	}
	if _, err := c.discharge(stepExpr, ToRegister(base+2)); err != nil {
		return err
	}

	prepInst := c.fs.emit(NumericForPrep{Base: base})
	bodyStart := len(c.fs.opcodes)

	c.fs.enterBlock()
	c.fs.symbols.Declare(st.Name, base+3)
	if err := c.compileBlock(st.Body); err != nil {
		return err
	}
	c.fs.exitBlock()
	c.fs.symbols.TruncateTo(c.fs.symbols.Count() - 1)

	loopInst := len(c.fs.opcodes)
	prepOffset, ok := jumpOffset(prepInst, loopInst)
	if !ok {
		return cerrors.New(cerrors.JumpOverflow)
	}
	c.fs.opcodes[prepInst] = NumericForPrep{Base: base, Jump: prepOffset}

	backOffset, ok := jumpOffset(loopInst, bodyStart)
	if !ok {
		return cerrors.New(cerrors.JumpOverflow)
	}
	c.fs.emit(NumericForLoop{Base: base, Jump: backOffset})

	if err := c.fs.jumpTarget(JumpLabel{Kind: JumpBreak}); err != nil {
		return err
	}
	c.fs.regs.PopTo(base)
	c.fs.exitBlock()
	return nil
}

// compileGenericFor lowers `for names in exprs do body end`. exprs is
// adjusted to exactly three control values (iterator, state, initial
// control). The iterator call sits after the body: an initial forward jump
// lands on GenericForCall, and GenericForLoop branches back to the body
// start only while the iterator keeps producing a non-nil first result, so
// the body never runs with exhausted (nil) loop variables.
func (c *Compiler) compileGenericFor(st *ast.GenericForStatement) error {
	loopLabel := c.fs.uniqueJumpLabel()
	base, err := c.compileExprListAdjusted(st.Exprs, 3)
	if err != nil {
		return err
	}

	c.fs.enterBlock()
	c.fs.enterBlock()

	numVars := len(st.Names)
	varsBase, ok := c.fs.regs.Push(numVars)
	if !ok {
		return cerrors.New(cerrors.Registers)
	}
	for i, name := range st.Names {
		c.fs.symbols.Declare(name, varsBase+Register(i))
	}

	if err := c.fs.jump(loopLabel); err != nil {
		return err
	}
	bodyStart := len(c.fs.opcodes)
	if err := c.compileBlock(st.Body); err != nil {
		return err
	}
	c.fs.exitBlock()

	if err := c.fs.jumpTarget(loopLabel); err != nil {
		return err
	}
	c.fs.emit(GenericForCall{Base: base, VarCount: numVars})
	backOffset, ok := jumpOffset(len(c.fs.opcodes), bodyStart)
	if !ok {
		return cerrors.New(cerrors.JumpOverflow)
	}
	c.fs.emit(GenericForLoop{Base: base + 2, Jump: backOffset})

	if err := c.fs.jumpTarget(JumpLabel{Kind: JumpBreak}); err != nil {
		return err
	}
	c.fs.exitBlock()
	c.fs.regs.PopTo(base)
	return nil
}

// compileFunctionStatement handles the plain `function name(...) ... end`
// form. Field chains (function a.b.c() ... end) and method definitions
// (function a:m() ... end) are outside this module's feature scope.
func (c *Compiler) compileFunctionStatement(st *ast.FunctionStatement) error {
	if len(st.Fields) > 0 {
		return cerrors.Unsupported.WithDetail("function name field chains")
	}
	if st.Method != nil {
		return cerrors.Unsupported.WithDetail("method definitions")
	}
	fnExpr, err := c.compileFunctionExpression(st.Func)
	if err != nil {
		return err
	}
	return c.assignName(st.Name, fnExpr)
}

// compileLocalFunctionStatement declares name's register before compiling
// the function body, so the function can refer to itself recursively
// through it as an upvalue.
func (c *Compiler) compileLocalFunctionStatement(st *ast.LocalFunctionStatement) error {
	reg, ok := c.fs.regs.Push(1)
	if !ok {
		return cerrors.New(cerrors.Registers)
	}
	c.fs.symbols.Declare(st.Name, reg)
	fnExpr, err := c.compileFunctionExpression(st.Func)
	if err != nil {
		return err
	}
	_, err = c.discharge(fnExpr, ToRegister(reg))
	return err
}

func (c *Compiler) compileLocalStatement(st *ast.LocalStatement) error {
	base, err := c.compileExprListAdjusted(st.Values, len(st.Names))
	if err != nil {
		return err
	}
	for i, name := range st.Names {
		c.fs.symbols.Declare(name, base+Register(i))
	}
	return nil
}

// compileAssignmentStatement evaluates its right-hand side, adjusted to
// the number of targets, into fresh temporary registers, then writes each
// one into its target in left-to-right order. The form with one target and
// one value skips the staging registers entirely and discharges the value
// straight into its destination.
func (c *Compiler) compileAssignmentStatement(st *ast.AssignmentStatement) error {
	if len(st.Targets) == 1 && len(st.Values) == 1 {
		val, err := c.compileExpression(st.Values[0])
		if err != nil {
			return err
		}
		return c.assignTarget(st.Targets[0], val)
	}

	n := len(st.Targets)
	base, err := c.compileExprListAdjusted(st.Values, n)
	if err != nil {
		return err
	}
	for i, target := range st.Targets {
		val := ExprDescriptor(RegisterExpr{Register: base + Register(i), IsTemporary: true})
		if err := c.assignTarget(target, val); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileReturn(st *ast.ReturnStatement) error {
	n := len(st.Exprs)
	if n == 0 {
		c.fs.emit(Return{Start: 0, Count: ConstantCount(0)})
		return nil
	}

	base := c.fs.regs.StackTop()
	lastIdx := n - 1
	for i := 0; i < lastIdx; i++ {
		expr, err := c.compileExpression(st.Exprs[i])
		if err != nil {
			return err
		}
		if _, err := c.discharge(expr, PushNew()); err != nil {
			return err
		}
	}

	lastExpr, err := c.compileExpression(st.Exprs[lastIdx])
	if err != nil {
		return err
	}
	switch v := lastExpr.(type) {
	case CallExpr:
		if _, err := c.functionCall(v.Func, v.Args, VariableCount()); err != nil {
			return err
		}
		c.fs.emit(Return{Start: base, Count: VariableCount()})
	case VarArgsExpr:
		d, ok := c.fs.regs.Push(1)
		if !ok {
			return cerrors.New(cerrors.Registers)
		}
		c.fs.emit(VarArgs{Dest: d, Count: VariableCount()})
		c.fs.emit(Return{Start: base, Count: VariableCount()})
	default:
		if n == 1 {
			// A single non-call, non-varargs return value can use whatever
			// register it already lives in - no need to relocate it to the
			// stack top first.
			reg, err := c.anyRegister(&lastExpr)
			if err != nil {
				return err
			}
			c.fs.emit(Return{Start: reg, Count: ConstantCount(1)})
		} else {
			if _, err := c.discharge(lastExpr, PushNew()); err != nil {
				return err
			}
			cnt, ok := TryConstantCount(n)
			if !ok {
				return cerrors.New(cerrors.Registers)
			}
			c.fs.emit(Return{Start: base, Count: cnt})
		}
	}

	// The values staged above are dead the instant Return executes; undo
	// the pushes so the compiler's own register bookkeeping stays balanced
	// for the (unreachable, but still structurally present) rest of the
	// enclosing block.
	c.fs.regs.PopTo(base)
	return nil
}

// compileExprListAdjusted compiles exprs and pushes them onto fresh
// registers at the current stack top, adjusted to exactly n values: the
// trailing expression expands (call/varargs) or is nil-padded to fill any
// remaining slots, and any expression beyond the n'th is still compiled
// (for side effects) but discarded. It returns the base register of the n
// freshly pushed values.
func (c *Compiler) compileExprListAdjusted(exprs []ast.Expression, n int) (Register, error) {
	base := c.fs.regs.StackTop()

	if len(exprs) == 0 {
		if n > 0 {
			d, ok := c.fs.regs.Push(n)
			if !ok {
				return 0, cerrors.New(cerrors.Registers)
			}
			c.fs.emit(LoadNil{Dest: d, Count: n})
		}
		return base, nil
	}

	lastIdx := len(exprs) - 1
	for i := 0; i < lastIdx; i++ {
		expr, err := c.compileExpression(exprs[i])
		if err != nil {
			return 0, err
		}
		if i < n {
			if _, err := c.discharge(expr, PushNew()); err != nil {
				return 0, err
			}
		} else {
			if err := c.discard(expr); err != nil {
				return 0, err
			}
		}
	}

	lastExpr, err := c.compileExpression(exprs[lastIdx])
	if err != nil {
		return 0, err
	}
	remaining := n - lastIdx
	switch {
	case remaining <= 0:
		if err := c.discard(lastExpr); err != nil {
			return 0, err
		}
	case remaining == 1:
		if _, err := c.discharge(lastExpr, PushNew()); err != nil {
			return 0, err
		}
	default:
		if _, err := c.pushCount(lastExpr, remaining); err != nil {
			return 0, err
		}
	}
	return base, nil
}
