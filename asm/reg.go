// Package asm directly encodes the small, fixed x86-64 instruction subset
// the IR-to-machine-code converter needs (§4.7 step 3). There is no
// instruction-selector pass: every IR opcode maps to one of these encoders,
// so the package's surface is a short, closed list of emit functions rather
// than a general assembler.
package asm

// Reg is a general-purpose integer register, numbered per the x86-64
// encoding (0-7 classic, 8-15 requiring a REX.B/R/X extension bit).
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
)

// XMM is an SSE register, numbered 0-15 (only 0-7 used by either ABI's
// argument-passing convention, but CVT/UCOMIS destinations can use any of
// them).
type XMM uint8

const (
	XMM0 XMM = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
)

func (r Reg) needsExtension() bool { return r >= R8 }
func (r Reg) low3() byte           { return byte(r) & 0x7 }
func (x XMM) needsExtension() bool { return x >= 8 }
func (x XMM) low3() byte           { return byte(x) & 0x7 }

// Cond is a condition code for SETcc/Jcc, spelled the way the Intel manual
// names them.
type Cond uint8

const (
	CondE Cond = iota
	CondNE
	CondL
	CondLE
	CondG
	CondGE
	CondB  // unsigned <
	CondBE // unsigned <=
	CondA  // unsigned >
	CondAE // unsigned >=
)

var condCode = map[Cond]byte{
	CondE: 0x4, CondNE: 0x5,
	CondL: 0xC, CondLE: 0xE, CondG: 0xF, CondGE: 0xD,
	CondB: 0x2, CondBE: 0x6, CondA: 0x7, CondAE: 0x3,
}
