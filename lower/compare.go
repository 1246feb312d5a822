package lower

import (
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
)

func (c *Converter) emitCompare(cx *ctx, p ir.Compare) {
	a := cx.a
	op := c.Strings.String(p.Op)

	if c.isFloatType(p.LHS.Type) {
		c.loadOperandFloat(cx, p.LHS, asm.XMM0)
		c.loadOperandFloat(cx, p.RHS, asm.XMM1)
		a.UcomisdRegReg(asm.XMM0, asm.XMM1)
		a.SetccReg(unorderedCond(op), asm.RAX)
		c.storeResultInt(cx, p.Result, asm.RAX)
		return
	}

	c.loadOperandInt(cx, p.LHS, asm.RAX)
	c.loadOperandInt(cx, p.RHS, asm.RCX)
	a.CmpRegReg(asm.RAX, asm.RCX)
	a.SetccReg(intCond(op, p.LHS.IsSigned), asm.RAX)
	c.storeResultInt(cx, p.Result, asm.RAX)
}

func intCond(op string, signed bool) asm.Cond {
	switch op {
	case "==":
		return asm.CondE
	case "!=":
		return asm.CondNE
	case "<":
		if signed {
			return asm.CondL
		}
		return asm.CondB
	case "<=":
		if signed {
			return asm.CondLE
		}
		return asm.CondBE
	case ">":
		if signed {
			return asm.CondG
		}
		return asm.CondA
	case ">=":
		if signed {
			return asm.CondGE
		}
		return asm.CondAE
	}
	return asm.CondE
}

// unorderedCond maps a comparison operator onto the condition code that
// reads correctly off UCOMISD's unordered-aware flags (the unsigned
// conditions double as the "not-less"/"not-below" forms FP compares need).
func unorderedCond(op string) asm.Cond {
	switch op {
	case "==":
		return asm.CondE
	case "!=":
		return asm.CondNE
	case "<":
		return asm.CondB
	case "<=":
		return asm.CondBE
	case ">":
		return asm.CondA
	case ">=":
		return asm.CondAE
	}
	return asm.CondE
}
