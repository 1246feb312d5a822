package asm

// Mem is a [base+disp32] memory operand. Every stack slot and parameter
// home location the converter addresses is either [RBP+disp] or
// [RSP+disp], so this is the only addressing mode the encoder needs —
// no SIB-scaled index, no RIP-relative data (data symbols go through a LEA
// and a relocation instead, see LeaRIPRelative).
type Mem struct {
	Base Reg
	Disp int32
}

// modrmMem writes the ModRM(+SIB) bytes for `reg OP [mem]`, always using the
// disp32 form for simplicity (a compiler backend has no reason to hand-tune
// disp8 opcode density).
func (a *Assembler) modrmMem(reg byte, m Mem) {
	base := m.Base.low3()
	if base == 0x4 { // RSP/R12 require a SIB byte
		a.emit(modrmReg(0x2, reg, 0x4), 0x24)
	} else {
		a.emit(modrmReg(0x2, reg, base))
	}
	a.emitImm32(m.Disp)
}

// MovRegReg emits `mov dst, src` (64-bit).
func (a *Assembler) MovRegReg(dst, src Reg) {
	a.emit(rex(true, src.needsExtension(), false, dst.needsExtension()))
	a.emit(0x89, modrmReg(0x3, src.low3(), dst.low3()))
}

// MovRegImm64 emits `movabs dst, imm64`.
func (a *Assembler) MovRegImm64(dst Reg, imm int64) {
	a.emit(rex(true, false, false, dst.needsExtension()))
	a.emit(0xB8 + dst.low3())
	a.emitImm64(imm)
}

// MovRegImm32 emits `mov dst, imm32` (sign-extended into the 64-bit reg).
func (a *Assembler) MovRegImm32(dst Reg, imm int32) {
	a.emit(rex(true, false, false, dst.needsExtension()))
	a.emit(0xC7, modrmReg(0x3, 0, dst.low3()))
	a.emitImm32(imm)
}

// MovRegMem emits `mov dst, [mem]` (load, 64-bit).
func (a *Assembler) MovRegMem(dst Reg, m Mem) {
	a.emit(rex(true, dst.needsExtension(), false, m.Base.needsExtension()))
	a.emit(0x8B)
	a.modrmMem(dst.low3(), m)
}

// MovMemReg emits `mov [mem], src` (store, 64-bit).
func (a *Assembler) MovMemReg(m Mem, src Reg) {
	a.emit(rex(true, src.needsExtension(), false, m.Base.needsExtension()))
	a.emit(0x89)
	a.modrmMem(src.low3(), m)
}

// LeaRegMem emits `lea dst, [mem]`.
func (a *Assembler) LeaRegMem(dst Reg, m Mem) {
	a.emit(rex(true, dst.needsExtension(), false, m.Base.needsExtension()))
	a.emit(0x8D)
	a.modrmMem(dst.low3(), m)
}

// SubRegImm emits `sub dst, imm32`.
func (a *Assembler) SubRegImm(dst Reg, imm int32) {
	a.emit(rex(true, false, false, dst.needsExtension()))
	a.emit(0x81, modrmReg(0x3, 0x5, dst.low3()))
	a.emitImm32(imm)
}

// AddRegImm emits `add dst, imm32`.
func (a *Assembler) AddRegImm(dst Reg, imm int32) {
	a.emit(rex(true, false, false, dst.needsExtension()))
	a.emit(0x81, modrmReg(0x3, 0x0, dst.low3()))
	a.emitImm32(imm)
}

// shiftRegCL emits `op dst, cl` for the D3 /digit shift-group opcodes. The
// shift count always arrives in CL; callers are responsible for moving the
// count there first.
func (a *Assembler) shiftRegCL(digit byte, dst Reg) {
	a.emit(rex(true, false, false, dst.needsExtension()))
	a.emit(0xD3, modrmReg(0x3, digit, dst.low3()))
}

// ShlRegCL emits `shl dst, cl`.
func (a *Assembler) ShlRegCL(dst Reg) { a.shiftRegCL(0x4, dst) }

// ShrRegCL emits `shr dst, cl` (unsigned/logical right shift).
func (a *Assembler) ShrRegCL(dst Reg) { a.shiftRegCL(0x5, dst) }

// SarRegCL emits `sar dst, cl` (signed/arithmetic right shift).
func (a *Assembler) SarRegCL(dst Reg) { a.shiftRegCL(0x7, dst) }

func (a *Assembler) arithRegReg(opcode byte, dst, src Reg) {
	a.emit(rex(true, src.needsExtension(), false, dst.needsExtension()))
	a.emit(opcode, modrmReg(0x3, src.low3(), dst.low3()))
}

// AddRegReg emits `add dst, src`.
func (a *Assembler) AddRegReg(dst, src Reg) { a.arithRegReg(0x01, dst, src) }

// SubRegReg emits `sub dst, src`.
func (a *Assembler) SubRegReg(dst, src Reg) { a.arithRegReg(0x29, dst, src) }

// AndRegReg emits `and dst, src`.
func (a *Assembler) AndRegReg(dst, src Reg) { a.arithRegReg(0x21, dst, src) }

// OrRegReg emits `or dst, src`.
func (a *Assembler) OrRegReg(dst, src Reg) { a.arithRegReg(0x09, dst, src) }

// XorRegReg emits `xor dst, src`.
func (a *Assembler) XorRegReg(dst, src Reg) { a.arithRegReg(0x31, dst, src) }

// CmpRegReg emits `cmp dst, src`.
func (a *Assembler) CmpRegReg(dst, src Reg) { a.arithRegReg(0x39, dst, src) }

// ImulRegReg emits `imul dst, src` (two-operand form, signed).
func (a *Assembler) ImulRegReg(dst, src Reg) {
	a.emit(rex(true, dst.needsExtension(), false, src.needsExtension()))
	a.emit(0x0F, 0xAF, modrmReg(0x3, dst.low3(), src.low3()))
}

// Cdq emits `cqo` (sign-extend RAX into RDX:RAX), the mandatory prologue to
// a signed IDIV.
func (a *Assembler) Cdq() { a.emit(rex(true, false, false, false), 0x99) }

// IdivReg emits `idiv src` (signed RDX:RAX / src -> quotient RAX, remainder
// RDX).
func (a *Assembler) IdivReg(src Reg) {
	a.emit(rex(true, false, false, src.needsExtension()))
	a.emit(0xF7, modrmReg(0x3, 0x7, src.low3()))
}

// DivReg emits `div src` (unsigned RDX:RAX / src).
func (a *Assembler) DivReg(src Reg) {
	a.emit(rex(true, false, false, src.needsExtension()))
	a.emit(0xF7, modrmReg(0x3, 0x6, src.low3()))
}

// NotReg emits `not dst`.
func (a *Assembler) NotReg(dst Reg) {
	a.emit(rex(true, false, false, dst.needsExtension()))
	a.emit(0xF7, modrmReg(0x3, 0x2, dst.low3()))
}

// NegReg emits `neg dst`.
func (a *Assembler) NegReg(dst Reg) {
	a.emit(rex(true, false, false, dst.needsExtension()))
	a.emit(0xF7, modrmReg(0x3, 0x3, dst.low3()))
}

// SetccReg emits `setCC dst8` then zero-extends into the full register via a
// trailing `movzx`, since the converter's TempVars are always addressed at
// full width.
func (a *Assembler) SetccReg(cond Cond, dst Reg) {
	if dst.needsExtension() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x0F, 0x90+condCode[cond], modrmReg(0x3, 0, dst.low3()))
	a.emit(rex(true, dst.needsExtension(), false, dst.needsExtension()))
	a.emit(0x0F, 0xB6, modrmReg(0x3, dst.low3(), dst.low3()))
}

// Push emits `push reg`.
func (a *Assembler) Push(r Reg) {
	if r.needsExtension() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x50 + r.low3())
}

// Pop emits `pop reg`.
func (a *Assembler) Pop(r Reg) {
	if r.needsExtension() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0x58 + r.low3())
}

// Ret emits `ret`.
func (a *Assembler) Ret() { a.emit(0xC3) }

// Jmp emits an unconditional jump to label, always using the rel32 form so
// the fixup list doesn't need to distinguish short/near encodings.
func (a *Assembler) Jmp(label LabelID) {
	a.emit(0xE9)
	a.recordBranchFixup(label)
}

// Jcc emits a conditional jump to label.
func (a *Assembler) Jcc(cond Cond, label LabelID) {
	a.emit(0x0F, 0x80+condCode[cond])
	a.recordBranchFixup(label)
}

func (a *Assembler) recordBranchFixup(label LabelID) {
	patchAt := len(a.Code)
	a.emitImm32(0)
	a.fixups = append(a.fixups, fixup{patchAt: patchAt, from: len(a.Code), label: label})
}

// CallSymbol emits `call rel32` against an external/global symbol, recording
// a relocation the object writer resolves at link-section-layout time.
func (a *Assembler) CallSymbol(symbol string, kind RelocKind) {
	a.emit(0xE8)
	patchAt := len(a.Code)
	a.emitImm32(0)
	a.Relocs = append(a.Relocs, Reloc{Offset: int64(patchAt), Symbol: symbol, Kind: kind, Addend: -4})
}

// CallReg emits `call target` through a register, for indirect calls
// through a function pointer value.
func (a *Assembler) CallReg(target Reg) {
	if target.needsExtension() {
		a.emit(rex(false, false, false, true))
	}
	a.emit(0xFF, modrmReg(0x3, 0x2, target.low3()))
}

// LeaRIPRelative emits `lea dst, [rip+symbol]`, the addressing mode every
// reference to a global or string-literal constant uses.
func (a *Assembler) LeaRIPRelative(dst Reg, symbol string, kind RelocKind) {
	a.emit(rex(true, dst.needsExtension(), false, false))
	a.emit(0x8D, modrmReg(0x0, dst.low3(), 0x5))
	patchAt := len(a.Code)
	a.emitImm32(0)
	a.Relocs = append(a.Relocs, Reloc{Offset: int64(patchAt), Symbol: symbol, Kind: kind, Addend: -4})
}
