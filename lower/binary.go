package lower

import (
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
)

func (c *Converter) emitBinaryOp(cx *ctx, p ir.BinaryOp) {
	a := cx.a
	op := c.Strings.String(p.Op)

	if c.isFloatType(p.LHS.Type) {
		c.loadOperandFloat(cx, p.LHS, asm.XMM0)
		c.loadOperandFloat(cx, p.RHS, asm.XMM1)
		switch op {
		case "+":
			a.AddsdRegReg(asm.XMM0, asm.XMM1)
		case "-":
			a.SubsdRegReg(asm.XMM0, asm.XMM1)
		case "*":
			a.MulsdRegReg(asm.XMM0, asm.XMM1)
		case "/":
			a.DivsdRegReg(asm.XMM0, asm.XMM1)
		}
		c.storeResultFloat(cx, p.Result, asm.XMM0)
		return
	}

	c.loadOperandInt(cx, p.LHS, asm.RAX)
	c.loadOperandInt(cx, p.RHS, asm.RCX)
	switch op {
	case "+":
		a.AddRegReg(asm.RAX, asm.RCX)
	case "-":
		a.SubRegReg(asm.RAX, asm.RCX)
	case "*":
		a.ImulRegReg(asm.RAX, asm.RCX)
	case "&":
		a.AndRegReg(asm.RAX, asm.RCX)
	case "|":
		a.OrRegReg(asm.RAX, asm.RCX)
	case "^":
		a.XorRegReg(asm.RAX, asm.RCX)
	case "<<":
		a.ShlRegCL(asm.RAX)
	case ">>":
		if p.LHS.IsSigned {
			a.SarRegCL(asm.RAX)
		} else {
			a.ShrRegCL(asm.RAX)
		}
	case "/":
		c.emitDivSetup(cx, p.LHS.IsSigned)
	case "%":
		c.emitDivSetup(cx, p.LHS.IsSigned)
		a.MovRegReg(asm.RAX, asm.RDX)
	}
	c.storeResultInt(cx, p.Result, asm.RAX)
}

// emitDivSetup widens RAX into RDX:RAX and runs the div/idiv appropriate to
// signedness, leaving the quotient in RAX and remainder in RDX.
func (c *Converter) emitDivSetup(cx *ctx, signed bool) {
	a := cx.a
	if signed {
		a.Cdq()
		a.IdivReg(asm.RCX)
		return
	}
	a.MovRegImm32(asm.RDX, 0)
	a.DivReg(asm.RCX)
}

func (c *Converter) emitUnaryOp(cx *ctx, p ir.UnaryOp) {
	a := cx.a
	op := c.Strings.String(p.Op)

	if c.isFloatType(p.Operand.Type) {
		c.loadOperandFloat(cx, p.Operand, asm.XMM0)
		if op == "-" {
			c.loadOperandFloat(cx, ir.TypedValue{Kind: ir.ValueFloatLiteral, FloatLiteral: -1}, asm.XMM1)
			a.MulsdRegReg(asm.XMM0, asm.XMM1)
		}
		c.storeResultFloat(cx, p.Result, asm.XMM0)
		return
	}

	c.loadOperandInt(cx, p.Operand, asm.RAX)
	switch op {
	case "-":
		a.NegReg(asm.RAX)
	case "~":
		a.NotReg(asm.RAX)
	case "!":
		a.MovRegImm32(asm.RCX, 0)
		a.CmpRegReg(asm.RAX, asm.RCX)
		a.SetccReg(asm.CondE, asm.RAX)
	}
	c.storeResultInt(cx, p.Result, asm.RAX)
}
