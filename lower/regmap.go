package lower

import (
	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/asm"
)

// toGPR/toXMM convert an abi.Reg (which enumerates both register files in
// one space, since AssignParams needs a single Class-tagged value) into the
// asm package's split Reg/XMM types.
func toGPR(r abi.Reg) asm.Reg { return asm.Reg(r) }
func toXMM(r abi.Reg) asm.XMM { return asm.XMM(r - abi.XMM0) }

// spillParam stores a register-passed parameter (integer or SSE, per
// loc.Class) to its home slot dst in the prologue; a stack-passed parameter
// needs no spill.
func spillParam(a *asm.Assembler, loc abi.ParamLocation, dst asm.Mem) {
	if !loc.InRegister {
		return // already on the incoming stack; no spill needed
	}
	if loc.Class == abi.ClassSSE {
		a.MovsdMemReg(dst, toXMM(loc.Reg))
		return
	}
	a.MovMemReg(dst, toGPR(loc.Reg))
}
