package lower

import (
	"math"

	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
)

// loadOperandInt materializes v's integer/pointer value into dst.
func (c *Converter) loadOperandInt(cx *ctx, v ir.TypedValue, dst asm.Reg) {
	a := cx.a
	switch v.Kind {
	case ir.ValueTemp:
		a.MovRegMem(dst, cx.frame.Mem(v.Temp))
	case ir.ValueIntLiteral:
		a.MovRegImm64(dst, v.IntLiteral)
	case ir.ValueStringLiteral:
		c.loadGlobalAddress(cx, v.StrHandle, dst)
	default:
		a.MovRegImm64(dst, 0)
	}
}

// loadOperandFloat materializes v's scalar floating value into dst.
func (c *Converter) loadOperandFloat(cx *ctx, v ir.TypedValue, dst asm.XMM) {
	a := cx.a
	switch v.Kind {
	case ir.ValueTemp:
		a.MovsdRegMem(dst, cx.frame.Mem(v.Temp))
	case ir.ValueFloatLiteral:
		// SSE has no float-immediate form; the bit pattern is staged
		// through a GPR, spilled to the red zone below RSP, then reloaded
		// as a double. The red zone is always free here since nothing
		// between the spill and the reload can fault or call out.
		bits := int64(math.Float64bits(v.FloatLiteral))
		a.MovRegImm64(asm.RAX, bits)
		scratch := asm.Mem{Base: asm.RSP, Disp: -8}
		a.MovMemReg(scratch, asm.RAX)
		a.MovsdRegMem(dst, scratch)
	default:
	}
}

func (c *Converter) storeResultInt(cx *ctx, tempID int, src asm.Reg) {
	cx.a.MovMemReg(cx.frame.Mem(tempID), src)
}

func (c *Converter) storeResultFloat(cx *ctx, tempID int, src asm.XMM) {
	cx.a.MovsdMemReg(cx.frame.Mem(tempID), src)
}
