package lower

import (
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
)

// emitReturn moves the return value into its ABI-mandated home and jumps to
// the function's single shared exit label, where the epilogue tears down
// the frame (§4.7 step 1's single-exit design keeps destructor-unwind code,
// added by codegen ahead of every OpReturn, from needing its own epilogue).
func (c *Converter) emitReturn(cx *ctx, p ir.Return) {
	a := cx.a
	switch {
	case cx.fn.HasHiddenReturnParam:
		// The constructed value was already written through the hidden
		// pointer by the preceding stores; SysV and Windows both require
		// that pointer to come back in RAX.
		a.MovRegMem(asm.RAX, cx.frame.ParamMem(0))
	case p.Void:
	case c.isFloatType(p.Value.Type):
		c.loadOperandFloat(cx, p.Value, asm.XMM0)
	default:
		c.loadOperandInt(cx, p.Value, asm.RAX)
	}
	a.Jmp(cx.exit)
}
