package asm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RelocKind names the subset of relocation types the object writer needs to
// translate into the target format's own enum (R_X86_64_* for ELF,
// IMAGE_REL_AMD64_* for COFF).
type RelocKind uint8

const (
	RelPC32  RelocKind = iota // rip-relative 32-bit displacement (calls, rip-relative loads)
	RelPLT32                  // rip-relative through the PLT (ELF external calls)
	RelAbs64                  // absolute 64-bit address (data pointers)
	RelAddr32                 // absolute 32-bit address (COFF ADDR32)
)

// Reloc records one fixup the object writer must apply once section
// addresses are known: offset into the function's code buffer, target
// symbol name, and how many bytes before the relocated field's end the
// addend should be computed from (always 4 for the 32-bit kinds here).
type Reloc struct {
	Offset int64
	Symbol string
	Kind   RelocKind
	Addend int64
}

// LabelID names an intra-function branch target. The converter allocates
// one per IR Label instruction.
type LabelID int

// Assembler accumulates one function's machine code plus its unresolved
// symbol relocations and internal branch fixups. Instructions are emitted
// strictly in order; Finish patches every internal Jcc/Jmp once all labels
// have a known offset.
type Assembler struct {
	Code   []byte
	Relocs []Reloc

	labelOffsets map[LabelID]int
	fixups       []fixup
	nextLabel    LabelID
}

type fixup struct {
	patchAt   int // offset of the 4-byte rel32 field
	from      int // offset immediately after the rel32 field (PC for the jump)
	label     LabelID
}

// NewAssembler returns an empty Assembler ready to receive instructions.
func NewAssembler() *Assembler {
	return &Assembler{labelOffsets: make(map[LabelID]int)}
}

// NewLabel allocates a fresh, unplaced label.
func (a *Assembler) NewLabel() LabelID {
	id := a.nextLabel
	a.nextLabel++
	return id
}

// PlaceLabel records label as pointing at the current end of the code
// buffer — the instruction selection order always calls this exactly where
// the corresponding IR Label opcode falls in the instruction stream.
func (a *Assembler) PlaceLabel(id LabelID) {
	a.labelOffsets[id] = len(a.Code)
}

// LabelOffset returns the code-buffer offset id was placed at. It only
// returns a meaningful value after the instruction stream that places id has
// been emitted; ok is false if id was never placed.
func (a *Assembler) LabelOffset(id LabelID) (int, bool) {
	off, ok := a.labelOffsets[id]
	return off, ok
}

// Finish patches every recorded Jcc/Jmp fixup now that all labels are
// placed. It must run exactly once, after every instruction (including the
// function's final RET) has been emitted.
func (a *Assembler) Finish() error {
	for _, f := range a.fixups {
		target, ok := a.labelOffsets[f.label]
		if !ok {
			return fmt.Errorf("asm: branch to unplaced label %d", f.label)
		}
		rel := int64(target - f.from)
		if rel > math.MaxInt32 || rel < math.MinInt32 {
			return fmt.Errorf("asm: branch displacement %d overflows rel32", rel)
		}
		binary.LittleEndian.PutUint32(a.Code[f.patchAt:], uint32(int32(rel)))
	}
	return nil
}

func (a *Assembler) emit(b ...byte) { a.Code = append(a.Code, b...) }

func (a *Assembler) emitImm32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	a.emit(buf[:]...)
}

func (a *Assembler) emitImm64(v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	a.emit(buf[:]...)
}

// rex builds a REX prefix byte. w selects the 64-bit operand size, r/x/b
// extend the ModRM.reg, SIB.index, and ModRM.rm/SIB.base fields
// respectively.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrmReg(mod byte, reg, rm byte) byte {
	return mod<<6 | (reg&0x7)<<3 | (rm & 0x7)
}
