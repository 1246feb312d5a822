package ir

import (
	"fmt"
	"strings"
)

// opcodeNames renders Opcode values for dumps and diagnostics.
var opcodeNames = map[Opcode]string{
	OpBinaryOp: "binary", OpUnaryOp: "unary", OpCompare: "cmp", OpCast: "cast",
	OpStackAlloc: "alloca", OpLoad: "load", OpStore: "store",
	OpDereference: "deref", OpAddressOf: "addrof",
	OpMemberLoad: "mload", OpMemberStore: "mstore",
	OpArrayLoad: "aload", OpArrayStore: "astore",
	OpComputeAddress: "lea", OpAggregateCopy: "memcpy",
	OpLabel: "label", OpJump: "jmp", OpCondBranch: "br", OpReturn: "ret", OpCall: "call",
	OpFunctionDecl: "func", OpFunctionEnd: "endfunc",
	OpConstructorCall: "ctor", OpDestructorCall: "dtor",
	OpGlobalVariableDecl: "global", OpGlobalLoad: "gload", OpGlobalStore: "gstore",
	OpTryBegin: "try", OpTryEnd: "endtry",
	OpCatchBegin: "catch", OpCatchEnd: "endcatch",
	OpThrow: "throw", OpReThrow: "rethrow",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op%d", op)
}

// FormatValue renders a TypedValue operand in the compact t-number /
// immediate notation the dump format uses.
func FormatValue(v TypedValue) string {
	switch v.Kind {
	case ValueTemp:
		return fmt.Sprintf("t%d", v.Temp)
	case ValueIntLiteral:
		return fmt.Sprintf("%d", v.IntLiteral)
	case ValueFloatLiteral:
		return fmt.Sprintf("%g", v.FloatLiteral)
	case ValueStringLiteral:
		return fmt.Sprintf("str%d", v.StrHandle)
	}
	return "?"
}

// DumpFunction renders fn's instruction stream as stable, line-oriented
// text: a header line, then one instruction per line in emission order. The
// output exists to be diffed — golden tests and the driver's verbose mode
// both rely on two identical IR streams producing byte-identical dumps, the
// same determinism the object writer promises for its bytes.
func DumpFunction(fn *Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "func %s ret=ty%d params=%d hidden=%v\n", fn.MangledName, fn.ReturnType, len(fn.Params), fn.HasHiddenReturnParam)
	for _, in := range fn.Instructions {
		b.WriteString("  ")
		b.WriteString(formatInstruction(in))
		b.WriteByte('\n')
	}
	return b.String()
}

// DumpModule concatenates every function's dump in emission order.
func DumpModule(m *Module) string {
	var b strings.Builder
	for _, fn := range m.Functions {
		b.WriteString(DumpFunction(fn))
	}
	return b.String()
}

func formatInstruction(in Instruction) string {
	switch p := in.Payload.(type) {
	case BinaryOp:
		return fmt.Sprintf("t%d = binary %s, %s", p.Result, FormatValue(p.LHS), FormatValue(p.RHS))
	case UnaryOp:
		return fmt.Sprintf("t%d = unary %s", p.Result, FormatValue(p.Operand))
	case Compare:
		return fmt.Sprintf("t%d = cmp %s, %s", p.Result, FormatValue(p.LHS), FormatValue(p.RHS))
	case Cast:
		return fmt.Sprintf("t%d = cast %s to ty%d", p.Result, FormatValue(p.Operand), p.To)
	case StackAlloc:
		return fmt.Sprintf("t%d = alloca ty%d", p.Result, p.Type)
	case Load:
		return fmt.Sprintf("t%d = load %s", p.Result, FormatValue(p.Address))
	case Store:
		return fmt.Sprintf("store %s, %s", FormatValue(p.Address), FormatValue(p.Value))
	case Dereference:
		return fmt.Sprintf("t%d = deref %s", p.Result, FormatValue(p.Pointer))
	case AddressOf:
		return fmt.Sprintf("t%d = addrof %s", p.Result, FormatValue(p.Operand))
	case MemberLoad:
		return fmt.Sprintf("t%d = mload %s+%d", p.Result, FormatValue(p.Base), p.ByteOffset)
	case MemberStore:
		return fmt.Sprintf("mstore %s+%d, %s", FormatValue(p.Base), p.ByteOffset, FormatValue(p.Value))
	case ArrayLoad:
		return fmt.Sprintf("t%d = aload %s[%s x%d]", p.Result, FormatValue(p.Array), FormatValue(p.Index), p.ElemSize)
	case ArrayStore:
		return fmt.Sprintf("astore %s[%s x%d], %s", FormatValue(p.Array), FormatValue(p.Index), p.ElemSize, FormatValue(p.Value))
	case ComputeAddress:
		var links []string
		for _, l := range p.Chain {
			if l.Kind == ChainMemberOffset {
				links = append(links, fmt.Sprintf("+%d", l.ByteOffset))
			} else {
				links = append(links, fmt.Sprintf("[%s x%d]", FormatValue(l.Index), l.ElemSize))
			}
		}
		return fmt.Sprintf("t%d = lea %s%s", p.Result, FormatValue(p.Base), strings.Join(links, ""))
	case AggregateCopy:
		return fmt.Sprintf("memcpy %s, %s, %d", FormatValue(p.Dst), FormatValue(p.Src), p.Size)
	case Label:
		return p.Name + ":"
	case Jump:
		return "jmp " + p.Target
	case CondBranch:
		return fmt.Sprintf("br %s, %s, %s", FormatValue(p.Cond), p.ThenLabel, p.ElseLabel)
	case Return:
		if p.Void {
			return "ret"
		}
		return "ret " + FormatValue(p.Value)
	case Call:
		var args []string
		for _, a := range p.Args {
			args = append(args, FormatValue(a))
		}
		callee := p.Callee
		if callee == "" {
			callee = "*" + FormatValue(p.Ptr)
		}
		if p.Result >= 0 {
			return fmt.Sprintf("t%d = call %s(%s)", p.Result, callee, strings.Join(args, ", "))
		}
		return fmt.Sprintf("call %s(%s)", callee, strings.Join(args, ", "))
	case ConstructorCall:
		var args []string
		for _, a := range p.Args {
			args = append(args, FormatValue(a))
		}
		return fmt.Sprintf("ctor %s @%s(%s)", p.MangledCtor, FormatValue(p.Target), strings.Join(args, ", "))
	case DestructorCall:
		return fmt.Sprintf("dtor %s @%s", p.MangledDtor, FormatValue(p.TargetAddress))
	case TryBegin:
		return "try -> " + p.LandingPad
	case TryEnd:
		return "endtry"
	case CatchBegin:
		return fmt.Sprintf("catch ty%d -> %s", p.CatchType, p.ContinuationLabel)
	case CatchEnd:
		return "endcatch -> " + p.ContinuationLabel
	case Throw:
		return fmt.Sprintf("throw ty%d %s", p.TypeDescriptor, FormatValue(p.Operand))
	case ReThrow:
		return "rethrow"
	}
	return in.Op.String()
}
