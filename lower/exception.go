package lower

import (
	"fmt"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/typetab"
)

// itaniumEHSymbols are the libstdc++/libsupc++ runtime entry points the
// ELF/Itanium exception path calls through. The Windows path calls the
// msvcrt equivalent, _CxxThrowException, instead.
const (
	symCxaAllocateException = "__cxa_allocate_exception"
	symCxaThrow             = "__cxa_throw"
	symCxaBeginCatch        = "__cxa_begin_catch"
	symCxaEndCatch          = "__cxa_end_catch"
	symCxaRethrow           = "__cxa_rethrow"
	symCxxThrowException    = "_CxxThrowException"
)

// emitException lowers the six exception opcodes (§4.7 step 7). TryBegin
// pushes a new EHRegion onto cx.openTry and records the code offset the try
// body starts at; TryEnd pops it, records where it ends, and hands it to
// cx.catchTarget so the OpCatchBegin instructions codegen always emits right
// after a TryEnd can attach their RTTI symbol to the region they belong to.
// Convert resolves each region's landing-pad label to a final code offset
// after the whole function is assembled and hands the finished list to
// compiler.assemble, which turns it into a .gcc_except_table (ELF) or
// .pdata/.xdata pair (Windows) — see eh.go.
//
// Unwinding into the landing pad itself still relies on the platform
// personality routine transferring control straight to the OpLabel codegen
// placed at the try's LandingPad name; this converter's job is only to
// describe that transfer in the metadata tables, not to reimplement the
// personality routine's own stack walk.
//
// The Windows side carries a deliberate, documented simplification (see
// DESIGN.md): real MSVC output splits each catch block into its own funclet
// with a parent-frame pointer handed in by __CxxFrameHandler3. This
// converter keeps catch bodies inline in the function body like the
// Itanium path, which is sufficient for straight-line synchronous catch
// but not for a handler that outlives its enclosing frame's unwind.
func (c *Converter) emitException(cx *ctx, inst ir.Instruction) error {
	a := cx.a
	switch inst.Op {
	case ir.OpTryBegin:
		p := inst.Payload.(ir.TryBegin)
		parent := int32(-1)
		if n := len(cx.openTry); n > 0 {
			parent = cx.openTry[n-1].State
		}
		r := &EHRegion{
			TryStart:        int64(len(a.Code)),
			landingPadLabel: c.labelFor(cx, p.LandingPad),
			State:           cx.nextEHState,
			ParentState:     parent,
		}
		cx.nextEHState++
		cx.openTry = append(cx.openTry, r)
		if cx.frame.HasEHState {
			a.MovRegImm32(asm.RAX, r.State)
			a.MovMemReg(cx.frame.EHState(), asm.RAX)
		}
		return nil

	case ir.OpTryEnd:
		n := len(cx.openTry)
		r := cx.openTry[n-1]
		cx.openTry = cx.openTry[:n-1]
		r.TryEnd = int64(len(a.Code))
		cx.ehRegions = append(cx.ehRegions, r)
		cx.catchTarget = r
		if cx.frame.HasEHState {
			a.MovRegImm32(asm.RAX, r.ParentState)
			a.MovMemReg(cx.frame.EHState(), asm.RAX)
		}
		return nil

	case ir.OpCatchBegin:
		p := inst.Payload.(ir.CatchBegin)
		if cx.catchTarget != nil {
			sym := ""
			if p.CatchType != typetab.Void {
				sym = fmt.Sprintf("_ZTI_t%d", p.CatchType)
			}
			cx.catchTarget.Catches = append(cx.catchTarget.Catches, EHCatch{TypeSymbol: sym})
		}
		if c.Target == abi.Windows {
			// Whatever funclet call conventions deliver, the exception
			// object address is already in RAX when control reaches here.
		} else {
			a.CallSymbol(symCxaBeginCatch, c.relocKindFor(true))
		}
		if p.ExceptionVar >= 0 {
			c.storeResultInt(cx, p.ExceptionVar, asm.RAX)
		}
		return nil

	case ir.OpCatchEnd:
		p := inst.Payload.(ir.CatchEnd)
		if c.Target != abi.Windows {
			a.CallSymbol(symCxaEndCatch, c.relocKindFor(true))
		}
		a.Jmp(c.labelFor(cx, p.ContinuationLabel))
		return nil

	case ir.OpThrow:
		p := inst.Payload.(ir.Throw)
		return c.emitThrow(cx, p)

	case ir.OpReThrow:
		if c.Target == abi.Windows {
			a.MovRegImm32(asm.RCX, 0)
			a.CallSymbol(symCxxThrowException, c.relocKindFor(false))
		} else {
			a.CallSymbol(symCxaRethrow, c.relocKindFor(true))
		}
		return nil
	}
	return fmt.Errorf("unhandled exception opcode %d", inst.Op)
}

// byteSizeOf is the same primitive-size table sema.sizeOf uses, duplicated
// here since typetab keeps its layout arithmetic private and the lower
// package only ever needs it for this one allocation-size computation.
func byteSizeOf(types *typetab.Table, t typetab.Index) int64 {
	info := types.Get(t)
	if info.PointerDepth > 0 {
		return 8
	}
	switch info.Base {
	case typetab.KindStruct:
		return types.Struct(info.Struct).Size
	case typetab.KindBool, typetab.KindChar, typetab.KindSChar, typetab.KindUChar, typetab.KindChar8:
		return 1
	case typetab.KindChar16, typetab.KindShort, typetab.KindUShort, typetab.KindWChar:
		return 2
	case typetab.KindChar32, typetab.KindInt, typetab.KindUInt, typetab.KindFloat, typetab.KindEnum:
		return 4
	case typetab.KindLongDouble:
		return 16
	default:
		return 8
	}
}

func (c *Converter) emitThrow(cx *ctx, p ir.Throw) error {
	a := cx.a
	size := int32(byteSizeOf(c.Types, p.TypeDescriptor))
	if size == 0 {
		size = 8
	}
	typeSymbol := fmt.Sprintf("_ZTI_t%d", p.TypeDescriptor)

	if c.Target == abi.Windows {
		// A full ThrowInfo/CatchableTypeArray descriptor needs its own RTTI
		// emission pass; the exception payload is staged on the stack and
		// handed to _CxxThrowException directly instead of going through
		// __cxa_allocate_exception, since msvcrt has no equivalent export.
		a.SubRegImm(asm.RSP, 16)
		c.loadOperandInt(cx, p.Operand, asm.RAX)
		a.MovMemReg(asm.Mem{Base: asm.RSP}, asm.RAX)
		a.LeaRegMem(asm.RCX, asm.Mem{Base: asm.RSP})
		a.LeaRIPRelative(asm.RDX, typeSymbol, c.relocKindFor(false))
		a.CallSymbol(symCxxThrowException, c.relocKindFor(false))
		return nil
	}

	a.MovRegImm32(asm.RDI, size)
	a.CallSymbol(symCxaAllocateException, c.relocKindFor(true))
	a.MovRegReg(asm.RBX, asm.RAX) // callee-saved across the operand evaluation below
	c.loadOperandInt(cx, p.Operand, asm.RCX)
	a.MovMemReg(asm.Mem{Base: asm.RBX}, asm.RCX)

	a.MovRegReg(asm.RDI, asm.RBX)
	a.LeaRIPRelative(asm.RSI, typeSymbol, c.relocKindFor(true))
	a.MovRegImm32(asm.RDX, 0) // no destructor: scalar/trivially-destructible payload
	a.CallSymbol(symCxaThrow, c.relocKindFor(true))
	return nil
}
