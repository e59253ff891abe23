package compiler

import (
	"wisp/pkg/ast"
	"wisp/pkg/value"
)

// BinOpCategory groups the grammar's infix operators by how they lower:
// Simple operators become a single arithmetic/bitwise opcode, Comparison
// operators become a deferred Compare that is lowered either to a boolean
// materialization or to a conditional skip, depending on its consumer, ShortCircuit
// operators (and/or) never evaluate their right operand unconditionally,
// and Concat is outside this module's supported feature set.
type BinOpCategory uint8

const (
	CatSimple BinOpCategory = iota
	CatComparison
	CatShortCircuit
	CatConcat
)

func categorizeBinOp(op ast.BinaryOperator) BinOpCategory {
	switch op {
	case ast.OpAnd, ast.OpOr:
		return CatShortCircuit
	case ast.OpConcat:
		return CatConcat
	case ast.OpNotEqual, ast.OpEqual, ast.OpLessThan, ast.OpLessEqual, ast.OpGreaterThan, ast.OpGreaterEqual:
		return CatComparison
	default:
		return CatSimple
	}
}

// simpleOpOf maps a Simple-category ast.BinaryOperator onto its opcode.
func simpleOpOf(op ast.BinaryOperator) SimpleBinOp {
	switch op {
	case ast.OpAdd:
		return BinAdd
	case ast.OpSub:
		return BinSub
	case ast.OpMul:
		return BinMul
	case ast.OpMod:
		return BinMod
	case ast.OpPow:
		return BinPow
	case ast.OpDiv:
		return BinDiv
	case ast.OpIDiv:
		return BinIDiv
	case ast.OpBitAnd:
		return BinBitAnd
	case ast.OpBitOr:
		return BinBitOr
	case ast.OpBitXor:
		return BinBitXor
	case ast.OpShiftLeft:
		return BinShiftLeft
	case ast.OpShiftRight:
		return BinShiftRight
	default:
		panic("simpleOpOf: not a Simple-category operator")
	}
}

// comparisonOpOf maps a Comparison-category ast.BinaryOperator onto the
// three-member ComparisonBinOp set the opcode format actually supports.
// NotEqual reuses Equal with an inverted skip_if; GreaterThan/GreaterEqual
// reuse LessThan/LessEqual with their operands swapped (a > b is compiled
// as b < a), so only half of the comparison matrix needs opcodes.
func comparisonOpOf(op ast.BinaryOperator) (cmp ComparisonBinOp, swapOperands, invert bool) {
	switch op {
	case ast.OpEqual:
		return CmpEqual, false, false
	case ast.OpNotEqual:
		return CmpEqual, false, true
	case ast.OpLessThan:
		return CmpLessThan, false, false
	case ast.OpLessEqual:
		return CmpLessEqual, false, false
	case ast.OpGreaterThan:
		return CmpLessThan, true, false
	case ast.OpGreaterEqual:
		return CmpLessEqual, true, false
	default:
		panic("comparisonOpOf: not a Comparison-category operator")
	}
}

// foldSimple folds a Simple binary operator over two constants, reporting
// ok=false when the operands' types make the operator inapplicable (the
// caller falls back to emitting a BinOp instruction in that case).
func foldSimple(op SimpleBinOp, a, b value.Value) (value.Value, bool) {
	switch op {
	case BinAdd:
		return value.Add(a, b)
	case BinSub:
		return value.Sub(a, b)
	case BinMul:
		return value.Mul(a, b)
	case BinMod:
		return value.Mod(a, b)
	case BinPow:
		return value.Pow(a, b)
	case BinDiv:
		return value.Div(a, b)
	case BinIDiv:
		return value.IDiv(a, b)
	case BinBitAnd:
		return value.BitAnd(a, b)
	case BinBitOr:
		return value.BitOr(a, b)
	case BinBitXor:
		return value.BitXor(a, b)
	case BinShiftLeft:
		return value.ShiftLeft(a, b)
	case BinShiftRight:
		return value.ShiftRight(a, b)
	default:
		panic("foldSimple: unhandled SimpleBinOp")
	}
}

// foldComparison folds a Comparison binary operator (already rewritten by
// comparisonOpOf, including any operand swap) over two constants.
func foldComparison(cmp ComparisonBinOp, invert bool, a, b value.Value) (value.Value, bool) {
	var result value.Value
	switch cmp {
	case CmpEqual:
		result = value.CompareEqual(a, b)
	case CmpLessThan:
		r, ok := value.CompareLess(a, b)
		if !ok {
			return value.Value{}, false
		}
		result = r
	case CmpLessEqual:
		r, ok := value.CompareLessEqual(a, b)
		if !ok {
			return value.Value{}, false
		}
		result = r
	default:
		panic("foldComparison: unhandled ComparisonBinOp")
	}
	if invert {
		result = value.Not(result)
	}
	return result, true
}
