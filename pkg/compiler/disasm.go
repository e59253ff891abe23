package compiler

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of proto and (recursively)
// every nested prototype to w, one instruction per line. This is a
// debugging aid for cmd/wispc's "disasm" command; the VM itself has no use
// for it, since it executes the Opcodes slice directly.
func Disassemble(w io.Writer, proto *FunctionProto, name string) {
	fmt.Fprintf(w, "function %s: %d params, varargs=%v, stack=%d\n", name, proto.FixedParams, proto.HasVarArgs, proto.StackSize)
	for i, op := range proto.Opcodes {
		fmt.Fprintf(w, "  %4d  %s\n", i, formatOp(op))
	}
	if len(proto.Constants) > 0 {
		fmt.Fprintln(w, "  constants:")
		for i, c := range proto.Constants {
			fmt.Fprintf(w, "    [%d] %s\n", i, c)
		}
	}
	if len(proto.Upvalues) > 0 {
		fmt.Fprintln(w, "  upvalues:")
		for i, u := range proto.Upvalues {
			fmt.Fprintf(w, "    [%d] %s\n", i, formatUpvalue(u))
		}
	}
	for i, p := range proto.Prototypes {
		Disassemble(w, p, fmt.Sprintf("%s.%d", name, i))
	}
}

func formatUpvalue(u UpValueDescriptor) string {
	switch u.Kind {
	case UpParentLocal:
		return fmt.Sprintf("parent-local r%d", u.Register)
	case UpOuter:
		return fmt.Sprintf("outer[%d]", u.Outer)
	case UpEnvironment:
		return "_ENV"
	default:
		return "?"
	}
}

func formatOperand(o Operand) string {
	if o.IsConstant {
		return fmt.Sprintf("k%d", o.Const)
	}
	return fmt.Sprintf("r%d", o.Reg)
}

func formatVarCount(v VarCount) string {
	if v.IsVariable() {
		return "..."
	}
	return fmt.Sprintf("%d", v.Count())
}

var simpleBinOpNames = map[SimpleBinOp]string{
	BinAdd: "add", BinSub: "sub", BinMul: "mul", BinMod: "mod", BinPow: "pow",
	BinDiv: "div", BinIDiv: "idiv", BinBitAnd: "band", BinBitOr: "bor",
	BinBitXor: "bxor", BinShiftLeft: "shl", BinShiftRight: "shr",
}

var comparisonOpNames = map[ComparisonBinOp]string{
	CmpEqual: "eq", CmpLessThan: "lt", CmpLessEqual: "le",
}

func formatOp(op OpCode) string {
	switch o := op.(type) {
	case Move:
		return fmt.Sprintf("move r%d, r%d", o.Dest, o.Source)
	case LoadNil:
		return fmt.Sprintf("loadnil r%d, %d", o.Dest, o.Count)
	case LoadBool:
		return fmt.Sprintf("loadbool r%d, %v, skip=%v", o.Dest, o.Value, o.SkipNext)
	case LoadConstant:
		return fmt.Sprintf("loadk r%d, k%d", o.Dest, o.Constant)
	case GetUpValue:
		return fmt.Sprintf("getupval r%d, up%d", o.Dest, o.Source)
	case SetUpValue:
		return fmt.Sprintf("setupval up%d, r%d", o.Dest, o.Source)
	case GetTable:
		return fmt.Sprintf("gettable r%d, r%d, %s", o.Dest, o.Table, formatOperand(o.Key))
	case GetUpTable:
		return fmt.Sprintf("getuptable r%d, up%d, %s", o.Dest, o.Table, formatOperand(o.Key))
	case SetTable:
		return fmt.Sprintf("settable r%d, %s, %s", o.Table, formatOperand(o.Key), formatOperand(o.Value))
	case SetUpTable:
		return fmt.Sprintf("setuptable up%d, %s, %s", o.Table, formatOperand(o.Key), formatOperand(o.Value))
	case BinOp:
		return fmt.Sprintf("%s r%d, %s, %s", simpleBinOpNames[o.Op], o.Dest, formatOperand(o.Left), formatOperand(o.Right))
	case Not:
		return fmt.Sprintf("not r%d, r%d", o.Dest, o.Source)
	case Compare:
		return fmt.Sprintf("%s skip_if=%v, %s, %s", comparisonOpNames[o.Op], o.SkipIf, formatOperand(o.Left), formatOperand(o.Right))
	case Test:
		return fmt.Sprintf("test r%d, is_true=%v", o.Value, o.IsTrue)
	case TestSet:
		return fmt.Sprintf("testset r%d, r%d, is_true=%v", o.Dest, o.Value, o.IsTrue)
	case Jump:
		if o.CloseUpvalues.IsNone() {
			return fmt.Sprintf("jump %+d", o.Offset)
		}
		return fmt.Sprintf("jump %+d, close>=r%d", o.Offset, o.CloseUpvalues.Register())
	case Call:
		return fmt.Sprintf("call r%d, args=%s, returns=%s", o.Func, formatVarCount(o.Args), formatVarCount(o.Returns))
	case Return:
		return fmt.Sprintf("return r%d, %s", o.Start, formatVarCount(o.Count))
	case VarArgs:
		return fmt.Sprintf("varargs r%d, %s", o.Dest, formatVarCount(o.Count))
	case NumericForPrep:
		return fmt.Sprintf("forprep r%d, %+d", o.Base, o.Jump)
	case NumericForLoop:
		return fmt.Sprintf("forloop r%d, %+d", o.Base, o.Jump)
	case GenericForCall:
		return fmt.Sprintf("tforcall r%d, %d", o.Base, o.VarCount)
	case GenericForLoop:
		return fmt.Sprintf("tforloop r%d, %+d", o.Base, o.Jump)
	case Closure:
		return fmt.Sprintf("closure r%d, proto%d", o.Dest, o.Proto)
	case NewTable:
		return fmt.Sprintf("newtable r%d", o.Dest)
	default:
		return fmt.Sprintf("<unknown opcode %T>", op)
	}
}
