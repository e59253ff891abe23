// Package compiler translates the syntax tree in wisp/pkg/ast into a
// FunctionProto: bytecode for a register-based virtual machine. There is no
// lexer, parser, garbage-collected value representation, or VM here; those
// are external to this module, which only ever constructs value.Value of
// the shapes value.go defines and hands them to the caller inside a
// FunctionProto.
package compiler

import (
	"wisp/pkg/ast"
	cerrors "wisp/pkg/errors"
	"wisp/pkg/value"
)

// Compiler drives a single top-level compilation. It is not reentrant
// across goroutines: compilation is single-threaded and deterministic.
type Compiler struct {
	fs *funcState
}

// NewCompiler returns a fresh compiler ready to compile one Chunk.
func NewCompiler() *Compiler { return &Compiler{} }

// CompileChunk compiles chunk into its top-level FunctionProto. The chunk
// itself is always a function of zero fixed parameters and implicit
// varargs.
func CompileChunk(chunk *ast.Chunk) (*FunctionProto, error) {
	c := &Compiler{}
	fs, err := newFuncState(nil, nil, true)
	if err != nil {
		return nil, err
	}
	c.fs = fs
	c.fs.enterBlock()
	if err := c.compileBlock(chunk.Body); err != nil {
		return nil, err
	}
	c.fs.exitBlock()
	return c.fs.finish()
}

// compileFunctionExpression compiles fn as a nested prototype of the
// enclosing function and emits a Closure instruction building it.
func (c *Compiler) compileFunctionExpression(fn ast.FunctionExpression) (ExprDescriptor, error) {
	parent := c.fs
	fs, err := newFuncState(parent, fn.Params, fn.HasVarArgs)
	if err != nil {
		return nil, err
	}
	c.fs = fs
	c.fs.enterBlock()
	if err := c.compileBlock(fn.Body); err != nil {
		return nil, err
	}
	c.fs.exitBlock()
	proto, err := c.fs.finish()
	if err != nil {
		return nil, err
	}
	c.fs = parent

	idx, err := c.fs.addPrototype(proto)
	if err != nil {
		return nil, err
	}
	dest, err := c.newDestination(AllocateNew())
	if err != nil {
		return nil, err
	}
	c.fs.emit(Closure{Proto: idx, Dest: dest})
	return RegisterExpr{Register: dest, IsTemporary: true}, nil
}

// compileTableConstructor handles the empty constructor `{}`; a non-empty
// one raises Unsupported, per this module's table feature scope.
func (c *Compiler) compileTableConstructor(t ast.TableConstructorExpression) (ExprDescriptor, error) {
	if len(t.Fields) > 0 {
		return nil, cerrors.Unsupported.WithDetail("non-empty table constructors")
	}
	dest, err := c.newDestination(AllocateNew())
	if err != nil {
		return nil, err
	}
	c.fs.emit(NewTable{Dest: dest})
	return RegisterExpr{Register: dest, IsTemporary: true}, nil
}

func (c *Compiler) compileSimpleExpression(e ast.SimpleExpression) (ExprDescriptor, error) {
	switch v := e.(type) {
	case ast.FloatExpression:
		return ValueExpr{Value: value.Number(v.Value)}, nil
	case ast.IntegerExpression:
		return ValueExpr{Value: value.Integer(v.Value)}, nil
	case ast.StringExpression:
		return ValueExpr{Value: value.String(v.Value)}, nil
	case ast.NilExpression:
		return ValueExpr{Value: value.Nil()}, nil
	case ast.TrueExpression:
		return ValueExpr{Value: value.Bool(true)}, nil
	case ast.FalseExpression:
		return ValueExpr{Value: value.Bool(false)}, nil
	case ast.VarArgsExpression:
		return VarArgsExpr{}, nil
	case ast.TableConstructorExpression:
		return c.compileTableConstructor(v)
	case ast.FunctionExpression:
		return c.compileFunctionExpression(v)
	case ast.SuffixedExpressionHead:
		return c.compileSuffixedExpression(v.Suffixed)
	default:
		panic("compiler: unhandled SimpleExpression variant")
	}
}

// compileUnaryOp only has an opcode for logical Not (per this module's
// opcode set); Neg/Len/BitNot are grammar-valid but have no lowering here
// and raise Unsupported, matching how method calls and concatenation do.
func (c *Compiler) compileUnaryOp(op ast.UnaryOperator, operand ast.Expression) (ExprDescriptor, error) {
	if op != ast.UnNot {
		return nil, cerrors.Unsupported.WithDetail("unary operators other than not")
	}
	inner, err := c.compileExpression(operand)
	if err != nil {
		return nil, err
	}
	if v, ok := inner.(ValueExpr); ok {
		return ValueExpr{Value: value.Not(v.Value)}, nil
	}
	return NotExpr{Inner: inner}, nil
}

func (c *Compiler) compileHeadExpression(h ast.HeadExpression) (ExprDescriptor, error) {
	switch v := h.(type) {
	case ast.UnaryOpExpression:
		return c.compileUnaryOp(v.Op, v.Expr)
	case ast.SimpleExpression:
		return c.compileSimpleExpression(v)
	default:
		panic("compiler: unhandled HeadExpression variant")
	}
}

// compileExpression lowers e's head expression and left-folds the operator
// chain onto it, matching the grammar's left-to-right binary_operator
// production.
func (c *Compiler) compileExpression(e ast.Expression) (ExprDescriptor, error) {
	left, err := c.compileHeadExpression(e.Head)
	if err != nil {
		return nil, err
	}
	for _, tail := range e.Tail {
		left, err = c.compileBinOp(left, tail.Op, tail.Right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (c *Compiler) compileBinOp(left ExprDescriptor, op ast.BinaryOperator, rightSyntax ast.Expression) (ExprDescriptor, error) {
	switch categorizeBinOp(op) {
	case CatConcat:
		return nil, cerrors.Unsupported.WithDetail("string concatenation")

	case CatShortCircuit:
		isAnd := op == ast.OpAnd
		return ShortCircuitExpr{
			Left:  left,
			IsAnd: isAnd,
			RightThunk: func(c *Compiler) (ExprDescriptor, error) {
				return c.compileExpression(rightSyntax)
			},
		}, nil

	case CatComparison:
		right, err := c.compileExpression(rightSyntax)
		if err != nil {
			return nil, err
		}
		cmp, swap, invert := comparisonOpOf(op)
		if swap {
			left, right = right, left
		}
		if lv, ok := left.(ValueExpr); ok {
			if rv, ok := right.(ValueExpr); ok {
				if folded, ok := foldComparison(cmp, invert, lv.Value, rv.Value); ok {
					return ValueExpr{Value: folded}, nil
				}
			}
		}
		var result ExprDescriptor = ComparisonExpr{Left: left, Op: cmp, Right: right}
		if invert {
			result = NotExpr{Inner: result}
		}
		return result, nil

	default: // CatSimple
		right, err := c.compileExpression(rightSyntax)
		if err != nil {
			return nil, err
		}
		simpleOp := simpleOpOf(op)
		if lv, ok := left.(ValueExpr); ok {
			if rv, ok := right.(ValueExpr); ok {
				if folded, ok := foldSimple(simpleOp, lv.Value, rv.Value); ok {
					return ValueExpr{Value: folded}, nil
				}
			}
		}
		lrc, err := c.anyRegisterOrConstant(&left)
		if err != nil {
			return nil, err
		}
		rrc, err := c.anyRegisterOrConstant(&right)
		if err != nil {
			return nil, err
		}
		if err := c.discard(left); err != nil {
			return nil, err
		}
		if err := c.discard(right); err != nil {
			return nil, err
		}
		dest, err := c.newDestination(AllocateNew())
		if err != nil {
			return nil, err
		}
		c.fs.emit(BinOp{Op: simpleOp, Dest: dest, Left: lrc, Right: rrc})
		return RegisterExpr{Register: dest, IsTemporary: true}, nil
	}
}

// resolveName compiles a bare name reference: a local register, an
// upvalue, or (falling through to Global) a lookup on _ENV by name.
func (c *Compiler) resolveName(name string) (ExprDescriptor, error) {
	vd, err := c.fs.findVariable(name)
	if err != nil {
		return nil, err
	}
	switch vd.Kind {
	case VarLocal:
		return RegisterExpr{Register: vd.Register, IsTemporary: false}, nil
	case VarUpValue:
		return UpValueExpr{Index: vd.UpValue}, nil
	default: // VarGlobal
		env, err := c.fs.getEnvironment()
		if err != nil {
			return nil, err
		}
		var envExpr ExprDescriptor
		if env.Kind == VarUpValue {
			envExpr = UpValueExpr{Index: env.UpValue}
		} else {
			envExpr = RegisterExpr{Register: env.Register, IsTemporary: false}
		}
		return c.compileGetIndex(envExpr, ValueExpr{Value: value.String(name)})
	}
}

func (c *Compiler) compilePrimaryExpression(p ast.PrimaryExpression) (ExprDescriptor, error) {
	switch v := p.(type) {
	case ast.NameExpression:
		return c.resolveName(v.Name)
	case ast.ParenExpression:
		inner, err := c.compileExpression(v.Inner)
		if err != nil {
			return nil, err
		}
		return c.truncateToOne(inner)
	default:
		panic("compiler: unhandled PrimaryExpression variant")
	}
}

// truncateToOne forces a potentially multi-valued expression down to
// exactly one value, which is what wrapping an expression in parentheses
// means.
func (c *Compiler) truncateToOne(e ExprDescriptor) (ExprDescriptor, error) {
	switch e.(type) {
	case CallExpr, VarArgsExpr:
		reg, err := c.discharge(e, AllocateNew())
		if err != nil {
			return nil, err
		}
		return RegisterExpr{Register: reg, IsTemporary: true}, nil
	default:
		return e, nil
	}
}

// compileGetIndex reads target[key], where target is already a compiled
// expression (register or upvalue) and key likewise.
func (c *Compiler) compileGetIndex(target, key ExprDescriptor) (ExprDescriptor, error) {
	keyOperand, err := c.anyRegisterOrConstant(&key)
	if err != nil {
		return nil, err
	}
	if uv, ok := target.(UpValueExpr); ok {
		if err := c.discard(key); err != nil {
			return nil, err
		}
		dest, err := c.newDestination(AllocateNew())
		if err != nil {
			return nil, err
		}
		c.fs.emit(GetUpTable{Dest: dest, Table: uv.Index, Key: keyOperand})
		return RegisterExpr{Register: dest, IsTemporary: true}, nil
	}
	baseReg, err := c.anyRegister(&target)
	if err != nil {
		return nil, err
	}
	if err := c.discard(target); err != nil {
		return nil, err
	}
	if err := c.discard(key); err != nil {
		return nil, err
	}
	dest, err := c.newDestination(AllocateNew())
	if err != nil {
		return nil, err
	}
	c.fs.emit(GetTable{Dest: dest, Table: baseReg, Key: keyOperand})
	return RegisterExpr{Register: dest, IsTemporary: true}, nil
}

// setIndex writes target[key] = val, where target is already a compiled
// expression (register or upvalue).
func (c *Compiler) setIndex(target, key, val ExprDescriptor) error {
	valOperand, err := c.anyRegisterOrConstant(&val)
	if err != nil {
		return err
	}
	keyOperand, err := c.anyRegisterOrConstant(&key)
	if err != nil {
		return err
	}
	if uv, ok := target.(UpValueExpr); ok {
		c.fs.emit(SetUpTable{Table: uv.Index, Key: keyOperand, Value: valOperand})
	} else {
		baseReg, err := c.anyRegister(&target)
		if err != nil {
			return err
		}
		c.fs.emit(SetTable{Table: baseReg, Key: keyOperand, Value: valOperand})
		if err := c.discard(target); err != nil {
			return err
		}
	}
	if err := c.discard(key); err != nil {
		return err
	}
	return c.discard(val)
}

// compileSuffixedExpression compiles a primary expression followed by a
// chain of field/index/call suffixes, threading the running value through
// each one. Method-call suffixes are outside this module's feature scope.
func (c *Compiler) compileSuffixedExpression(s ast.SuffixedExpression) (ExprDescriptor, error) {
	cur, err := c.compilePrimaryExpression(s.Primary)
	if err != nil {
		return nil, err
	}
	for _, suf := range s.Suffixes {
		switch sf := suf.(type) {
		case ast.FieldSuffix:
			cur, err = c.compileGetIndex(cur, ValueExpr{Value: value.String(sf.Name)})
		case ast.IndexSuffix:
			var key ExprDescriptor
			key, err = c.compileExpression(sf.Key)
			if err != nil {
				return nil, err
			}
			cur, err = c.compileGetIndex(cur, key)
		case ast.CallSuffix:
			var args []ExprDescriptor
			args, err = c.compileExprList(sf.Args)
			if err != nil {
				return nil, err
			}
			cur = CallExpr{Func: cur, Args: args}
		case ast.MethodCallSuffix:
			return nil, cerrors.Unsupported.WithDetail("method calls")
		default:
			panic("compiler: unhandled Suffix variant")
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// compileExprList compiles each expression in exprs independently. It does
// not truncate the last element to one value: its caller, a call suffix's
// argument list, forwards a trailing call's or varargs' full result set and
// relies on that element still carrying a CallExpr/VarArgsExpr tag.
func (c *Compiler) compileExprList(exprs []ast.Expression) ([]ExprDescriptor, error) {
	out := make([]ExprDescriptor, len(exprs))
	for i, e := range exprs {
		expr, err := c.compileExpression(e)
		if err != nil {
			return nil, err
		}
		out[i] = expr
	}
	return out, nil
}

// assignName writes val into the local register, upvalue, or global
// binding that name resolves to.
func (c *Compiler) assignName(name string, val ExprDescriptor) error {
	vd, err := c.fs.findVariable(name)
	if err != nil {
		return err
	}
	switch vd.Kind {
	case VarLocal:
		_, err := c.discharge(val, ToRegister(vd.Register))
		return err
	case VarUpValue:
		reg, err := c.anyRegister(&val)
		if err != nil {
			return err
		}
		c.fs.emit(SetUpValue{Source: reg, Dest: vd.UpValue})
		return c.discard(val)
	default: // VarGlobal
		env, err := c.fs.getEnvironment()
		if err != nil {
			return err
		}
		var envExpr ExprDescriptor
		if env.Kind == VarUpValue {
			envExpr = UpValueExpr{Index: env.UpValue}
		} else {
			envExpr = RegisterExpr{Register: env.Register, IsTemporary: false}
		}
		return c.setIndex(envExpr, ValueExpr{Value: value.String(name)}, val)
	}
}

// assignTarget writes val into an arbitrary assignment target.
func (c *Compiler) assignTarget(t ast.AssignmentTarget, val ExprDescriptor) error {
	switch tt := t.(type) {
	case ast.NameTarget:
		return c.assignName(tt.Name, val)
	case ast.FieldTarget:
		base, err := c.compileExpression(tt.Target)
		if err != nil {
			return err
		}
		return c.setIndex(base, ValueExpr{Value: value.String(tt.Name)}, val)
	case ast.IndexTarget:
		base, err := c.compileExpression(tt.Target)
		if err != nil {
			return err
		}
		key, err := c.compileExpression(tt.Key)
		if err != nil {
			return err
		}
		return c.setIndex(base, key, val)
	default:
		panic("compiler: unhandled AssignmentTarget variant")
	}
}
