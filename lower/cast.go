package lower

import (
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
)

// emitCast converts between the operand's and the target's value domains.
// TempVar home slots are always full 64-bit words, so a narrowing integer
// cast needs no truncation here — only a genuine float/integer domain
// change emits code; same-domain casts are a plain move.
func (c *Converter) emitCast(cx *ctx, p ir.Cast) {
	a := cx.a
	fromFloat := c.isFloatType(p.Operand.Type)
	toFloat := c.isFloatType(p.To)

	switch {
	case fromFloat && toFloat:
		c.loadOperandFloat(cx, p.Operand, asm.XMM0)
		c.storeResultFloat(cx, p.Result, asm.XMM0)

	case fromFloat && !toFloat:
		c.loadOperandFloat(cx, p.Operand, asm.XMM0)
		a.Cvttsd2siRegReg(asm.RAX, asm.XMM0)
		c.storeResultInt(cx, p.Result, asm.RAX)

	case !fromFloat && toFloat:
		c.loadOperandInt(cx, p.Operand, asm.RAX)
		a.Cvtsi2sdRegReg(asm.XMM0, asm.RAX)
		c.storeResultFloat(cx, p.Result, asm.XMM0)

	default:
		c.loadOperandInt(cx, p.Operand, asm.RAX)
		c.storeResultInt(cx, p.Result, asm.RAX)
	}
}
