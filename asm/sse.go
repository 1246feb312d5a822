package asm

// SSE scalar instructions all share the same shape: a mandatory prefix byte
// selecting single/double precision, the two-byte 0F opcode, and a ModRM
// encoding xmm registers in both the reg and rm fields. REX.R/B extend xmm8-15
// exactly like general-purpose registers.

func (a *Assembler) sseRegReg(prefix, opcode byte, dst, src XMM) {
	a.emit(prefix)
	needRex := dst.needsExtension() || src.needsExtension()
	if needRex {
		a.emit(rex(false, dst.needsExtension(), false, src.needsExtension()))
	}
	a.emit(0x0F, opcode, modrmReg(0x3, dst.low3(), src.low3()))
}

const (
	prefixSS = 0xF3 // single precision
	prefixSD = 0xF2 // double precision
)

// MovssRegReg / MovsdRegReg emit `movss`/`movsd` between two xmm registers.
func (a *Assembler) MovssRegReg(dst, src XMM) { a.sseRegReg(prefixSS, 0x10, dst, src) }
func (a *Assembler) MovsdRegReg(dst, src XMM) { a.sseRegReg(prefixSD, 0x10, dst, src) }

// AddssRegReg / AddsdRegReg emit `addss`/`addsd`.
func (a *Assembler) AddssRegReg(dst, src XMM) { a.sseRegReg(prefixSS, 0x58, dst, src) }
func (a *Assembler) AddsdRegReg(dst, src XMM) { a.sseRegReg(prefixSD, 0x58, dst, src) }

// SubssRegReg / SubsdRegReg emit `subss`/`subsd`.
func (a *Assembler) SubssRegReg(dst, src XMM) { a.sseRegReg(prefixSS, 0x5C, dst, src) }
func (a *Assembler) SubsdRegReg(dst, src XMM) { a.sseRegReg(prefixSD, 0x5C, dst, src) }

// MulssRegReg / MulsdRegReg emit `mulss`/`mulsd`.
func (a *Assembler) MulssRegReg(dst, src XMM) { a.sseRegReg(prefixSS, 0x59, dst, src) }
func (a *Assembler) MulsdRegReg(dst, src XMM) { a.sseRegReg(prefixSD, 0x59, dst, src) }

// DivssRegReg / DivsdRegReg emit `divss`/`divsd`.
func (a *Assembler) DivssRegReg(dst, src XMM) { a.sseRegReg(prefixSS, 0x5E, dst, src) }
func (a *Assembler) DivsdRegReg(dst, src XMM) { a.sseRegReg(prefixSD, 0x5E, dst, src) }

// UcomissRegReg / UcomisdRegReg emit the unordered compare that sets
// EFLAGS for a subsequent SETcc, mirroring CMP's role for integers.
func (a *Assembler) UcomissRegReg(dst, src XMM) { a.sseRegRegNoPrefix(0x2E, dst, src) }
func (a *Assembler) UcomisdRegReg(dst, src XMM) { a.sseRegRegPrefix66(0x2E, dst, src) }

func (a *Assembler) sseRegRegNoPrefix(opcode byte, dst, src XMM) {
	if dst.needsExtension() || src.needsExtension() {
		a.emit(rex(false, dst.needsExtension(), false, src.needsExtension()))
	}
	a.emit(0x0F, opcode, modrmReg(0x3, dst.low3(), src.low3()))
}

func (a *Assembler) sseRegRegPrefix66(opcode byte, dst, src XMM) {
	a.emit(0x66)
	a.sseRegRegNoPrefix(opcode, dst, src)
}

// Cvtsi2sdRegReg / Cvtsi2ssRegReg convert a signed 64-bit integer register
// into a double/float xmm register.
func (a *Assembler) Cvtsi2sdRegReg(dst XMM, src Reg) {
	a.emit(prefixSD, rex(true, dst.needsExtension(), false, src.needsExtension()))
	a.emit(0x0F, 0x2A, modrmReg(0x3, dst.low3(), src.low3()))
}

func (a *Assembler) Cvtsi2ssRegReg(dst XMM, src Reg) {
	a.emit(prefixSS, rex(true, dst.needsExtension(), false, src.needsExtension()))
	a.emit(0x0F, 0x2A, modrmReg(0x3, dst.low3(), src.low3()))
}

// Cvttsd2siRegReg / Cvttss2siRegReg truncate-convert a double/float xmm
// register into a signed 64-bit integer register (the `t` is the
// truncating-toward-zero form C++'s explicit float-to-int conversions need).
func (a *Assembler) Cvttsd2siRegReg(dst Reg, src XMM) {
	a.emit(prefixSD, rex(true, dst.needsExtension(), false, src.needsExtension()))
	a.emit(0x0F, 0x2C, modrmReg(0x3, dst.low3(), src.low3()))
}

func (a *Assembler) Cvttss2siRegReg(dst Reg, src XMM) {
	a.emit(prefixSS, rex(true, dst.needsExtension(), false, src.needsExtension()))
	a.emit(0x0F, 0x2C, modrmReg(0x3, dst.low3(), src.low3()))
}

// MovsdMemReg / MovsdRegMem / MovssMemReg / MovssRegMem move a scalar
// double/float to and from a stack/param home location.
func (a *Assembler) MovsdRegMem(dst XMM, m Mem) { a.sseMemOp(prefixSD, 0x10, dst, m) }
func (a *Assembler) MovsdMemReg(m Mem, src XMM) { a.sseMemOp(prefixSD, 0x11, src, m) }
func (a *Assembler) MovssRegMem(dst XMM, m Mem) { a.sseMemOp(prefixSS, 0x10, dst, m) }
func (a *Assembler) MovssMemReg(m Mem, src XMM) { a.sseMemOp(prefixSS, 0x11, src, m) }

func (a *Assembler) sseMemOp(prefix, opcode byte, reg XMM, m Mem) {
	a.emit(prefix)
	if reg.needsExtension() || m.Base.needsExtension() {
		a.emit(rex(false, reg.needsExtension(), false, m.Base.needsExtension()))
	}
	a.emit(0x0F, opcode)
	a.modrmMem(reg.low3(), m)
}
