// Package abi implements the System V AMD64 and Microsoft x64 parameter and
// register assignment rules the IR converter needs to lay out call sites and
// function prologues (§4.7 step 2).
package abi

import "github.com/oxhq/flashcpp/typetab"

// Target selects which ABI a function/object is being compiled for.
type Target uint8

const (
	SystemV Target = iota
	Windows
)

// Class distinguishes the two register files a parameter/return value can
// occupy.
type Class uint8

const (
	ClassInteger Class = iota
	ClassSSE
	ClassMemory
)

// Reg is an abstract machine register; the asm package maps these to their
// concrete encodings.
type Reg uint8

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
)

// sysvIntArgs / sysvSSEArgs / winIntArgs / winSSEArgs list the argument
// registers in assignment order per ABI (§4.7 step 2).
var sysvIntArgs = []Reg{RDI, RSI, RDX, RCX, R8, R9}
var sysvSSEArgs = []Reg{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7}
var winIntArgs = []Reg{RCX, RDX, R8, R9}
var winSSEArgs = []Reg{XMM0, XMM1, XMM2, XMM3}

// ShadowSpaceBytes is the Windows x64 caller-reserved space per call.
const ShadowSpaceBytes = 32

// StackAlignment is the required RSP alignment at a call instruction.
const StackAlignment = 16

// ParamLocation is where one parameter lives after assignment: either a
// register or a stack offset relative to the frame.
type ParamLocation struct {
	Class      Class
	Reg        Reg
	InRegister bool
	StackSlot  int64 // byte offset from the argument area base when !InRegister
}

// ClassifyType reports which register class a TypeIndex occupies, per the
// relevant ABI's (simplified, scalar-only — aggregates larger than 16 bytes
// are always ClassMemory, matching both ABIs' "large aggregates passed by
// hidden pointer" rule; the finer SysV eightbyte-merging algorithm for
// small structs is out of scope for this core, which routes every class
// type larger than 16 bytes through the hidden-return/by-reference
// path instead of attempting piecewise register packing) rules.
func ClassifyType(table *typetab.Table, t typetab.Index) Class {
	info := table.Get(t)
	if info.PointerDepth > 0 || info.Ref != typetab.RefNone {
		return ClassInteger
	}
	switch info.Base {
	case typetab.KindFloat, typetab.KindDouble, typetab.KindLongDouble:
		return ClassSSE
	case typetab.KindStruct:
		si := table.Struct(info.Struct)
		if si.Size > 16 {
			return ClassMemory
		}
		return ClassInteger
	default:
		return ClassInteger
	}
}

// Assignment is the complete per-function parameter layout the converter
// needs: one ParamLocation per parameter (in the IR's, post-hidden-return-
// shift, parameter order) plus whether a hidden return pointer occupies the
// first integer slot.
type Assignment struct {
	Params               []ParamLocation
	ReturnInMemory       bool // §3.2/§3.3: class-typed return via hidden param
	ShadowSpace          int64
}

// AssignParams implements §4.7 step 2 for one function: walks the
// (post-hidden-return-shift) parameter type list in order, consuming the
// next available integer or SSE register per ABI, spilling to the stack
// once a class is exhausted. `this` (when present) is always the first
// non-hidden-return integer parameter, which callers achieve simply by
// placing its TypeIndex first in paramTypes — no special-casing needed here.
func AssignParams(target Target, table *typetab.Table, paramTypes []typetab.Index, hasHiddenReturn bool) Assignment {
	intArgs, sseArgs := sysvIntArgs, sysvSSEArgs
	if target == Windows {
		intArgs, sseArgs = winIntArgs, winSSEArgs
	}

	nextInt, nextSSE := 0, 0
	var stackOffset int64
	locs := make([]ParamLocation, 0, len(paramTypes))

	assignOne := func(class Class) ParamLocation {
		if target == Windows {
			// Windows x64 keeps int/float argument position in lockstep:
			// the Nth argument always consumes the Nth slot of whichever
			// register file matches its class, and a register used by one
			// class burns the corresponding slot in the other.
			slot := nextInt
			if slot >= len(intArgs) {
				loc := ParamLocation{Class: class, InRegister: false, StackSlot: stackOffset}
				stackOffset += 8
				nextInt++
				return loc
			}
			nextInt++
			if class == ClassSSE {
				return ParamLocation{Class: class, Reg: sseArgs[slot], InRegister: true}
			}
			return ParamLocation{Class: class, Reg: intArgs[slot], InRegister: true}
		}
		switch class {
		case ClassSSE:
			if nextSSE < len(sseArgs) {
				r := sseArgs[nextSSE]
				nextSSE++
				return ParamLocation{Class: class, Reg: r, InRegister: true}
			}
		default:
			if nextInt < len(intArgs) {
				r := intArgs[nextInt]
				nextInt++
				return ParamLocation{Class: class, Reg: r, InRegister: true}
			}
		}
		loc := ParamLocation{Class: class, InRegister: false, StackSlot: stackOffset}
		stackOffset += 8
		return loc
	}

	for _, pt := range paramTypes {
		class := ClassifyType(table, pt)
		if class == ClassMemory {
			class = ClassInteger // passed by hidden pointer, occupies an integer slot
		}
		locs = append(locs, assignOne(class))
	}

	a := Assignment{Params: locs, ReturnInMemory: hasHiddenReturn}
	if target == Windows {
		a.ShadowSpace = ShadowSpaceBytes
	}
	return a
}

// AlignStackTo16 rounds size up to the next 16-byte boundary, the required
// RSP alignment at every CALL instruction (§4.7 step 1/5).
func AlignStackTo16(size int64) int64 {
	if size%StackAlignment == 0 {
		return size
	}
	return size + (StackAlignment - size%StackAlignment)
}
