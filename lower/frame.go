// Package lower implements §4.7: turning one ir.Function's linear
// instruction stream into x86-64 machine code plus the relocations and
// symbols the object writer needs. There is no register allocator — every
// TempVar gets a fixed home stack slot, and each IR instruction loads its
// operands from their home slots, computes, and stores the result back.
// This matches the spec's "no instruction selector pass" stance: the
// mapping from IR opcode to machine code is a small, direct pattern.
package lower

import (
	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/typetab"
)

// slotWidth is the home-slot size for every TempVar regardless of its
// logical type width; the few wide aggregates the converter handles go
// through StackAlloc's own slot instead of a TempVar home.
const slotWidth = 8

// Frame is the per-function stack layout: a home slot for every TempVar and
// a slot for every StackAlloc'd local. Parameters get no separate storage of
// their own — by convention the code generator reserves TempVar ids
// 0..len(Params)-1 for the incoming parameters in order, so a parameter's
// home slot IS TempSlot[i] and the prologue spill writes directly into it.
// This keeps every operand access uniformly a [rbp+disp] load regardless of
// whether it names a parameter or a computed value.
type Frame struct {
	TempSlot    map[int]int32 // TempVar id -> byte offset from rbp (negative)
	AllocSlot   map[int]int32 // ir.StackAlloc.Slot -> byte offset from rbp (negative)
	Size        int64         // total locals area, already 16-aligned
	ParamLayout abi.Assignment

	// EHStateSlot is [rbp-8], reserved ahead of every TempVar when the
	// function has a try/catch and targets Windows: the FH3 unwind state
	// __CxxFrameHandler3 reads to find which try/catch region a frame is
	// currently in. Zero (meaning unused) when the function has no EH or
	// targets ELF, where the personality routine gets its state from the
	// LSDA's call-site table instead of a frame slot.
	EHStateSlot int32
	HasEHState  bool
}

// BuildFrame walks fn's Temps and StackAlloc instructions to assign stack
// slots (§4.7 step 1), then classifies parameters through abi.AssignParams.
func BuildFrame(target abi.Target, types *typetab.Table, fn *ir.Function) Frame {
	f := Frame{TempSlot: map[int]int32{}, AllocSlot: map[int]int32{}}

	var cursor int32
	alloc := func(size int64) int32 {
		if size <= 0 {
			size = slotWidth
		}
		aligned := (size + 7) &^ 7
		cursor -= int32(aligned)
		return cursor
	}

	if target == abi.Windows && fn.HasEH {
		f.EHStateSlot = alloc(slotWidth)
		f.HasEHState = true
	}

	for _, t := range fn.Temps {
		f.TempSlot[t.ID] = alloc(slotWidth)
	}
	for _, inst := range fn.Instructions {
		if inst.Op == ir.OpStackAlloc {
			sa := inst.Payload.(ir.StackAlloc)
			size := int64(slotWidth)
			if info := types.Get(sa.Type); info.Base == typetab.KindStruct {
				size = types.Struct(info.Struct).Size
			}
			f.AllocSlot[sa.Slot] = alloc(size)
		}
	}

	paramTypes := make([]typetab.Index, len(fn.Params))
	for i, p := range fn.Params {
		paramTypes[i] = p.Type
	}
	f.ParamLayout = abi.AssignParams(target, types, paramTypes, fn.HasHiddenReturnParam)

	f.Size = abi.AlignStackTo16(int64(-cursor))
	return f
}

// Mem returns the [rbp+disp] operand for a TempVar's home slot.
func (f Frame) Mem(tempID int) asm.Mem { return asm.Mem{Base: asm.RBP, Disp: f.TempSlot[tempID]} }

// AllocMem returns the [rbp+disp] operand for a StackAlloc slot.
func (f Frame) AllocMem(slot int) asm.Mem { return asm.Mem{Base: asm.RBP, Disp: f.AllocSlot[slot]} }

// ParamMem returns the [rbp+disp] operand for the i'th parameter's home,
// which is simply its reserved TempVar slot (see Frame's doc comment).
func (f Frame) ParamMem(i int) asm.Mem { return f.Mem(i) }

// EHState returns the [rbp-8] operand __CxxFrameHandler3's FuncInfo.dispUnwindMap
// walk reads to recover the active try/catch state. Only meaningful when
// HasEHState is true.
func (f Frame) EHState() asm.Mem { return asm.Mem{Base: asm.RBP, Disp: f.EHStateSlot} }
