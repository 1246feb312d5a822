package lower

import (
	"fmt"

	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/objfile"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// Result is one converted function's machine code plus the symbol and
// relocation records the object writer needs.
type Result struct {
	Symbol objfile.Symbol
	Code   []byte
	Relocs []objfile.Relocation

	// EHRegions lists every try/catch this function lowered, code offsets
	// already resolved to their final positions within Code. Empty when the
	// function has no exception handling. compiler.assemble uses this to
	// build .gcc_except_table (ELF) or .pdata/.xdata (Windows).
	EHRegions []EHRegion
	// PrologueSize and FrameSize feed buildWindowsEH's UNWIND_INFO: how many
	// bytes of push rbp/mov rbp,rsp/sub rsp,imm32 this function's prologue
	// is, and how large its local area is.
	PrologueSize int
	FrameSize    int64
}

// Converter turns ir.Function bodies into machine code (§4.7). One
// Converter is reused across every function in a translation unit; it
// carries no per-function state between Convert calls.
type Converter struct {
	Target  abi.Target
	Types   *typetab.Table
	Strings *strtab.Table
}

type ctx struct {
	a      *asm.Assembler
	frame  Frame
	fn     *ir.Function
	labels map[string]asm.LabelID
	exit   asm.LabelID

	// EH region tracking (§4.7's exception-table pass). openTry is a LIFO
	// stack of the try statements currently being lowered; a nested try
	// always closes (TryEnd and every one of its catches) before the
	// enclosing try's own TryEnd fires, so catchTarget — reassigned at every
	// TryEnd to the region that just closed — always names the right region
	// for the OpCatchBegin/OpCatchEnd pairs that immediately follow it.
	openTry     []*EHRegion
	catchTarget *EHRegion
	ehRegions   []*EHRegion
	nextEHState int32
}

// relocKindFor picks the asm-level relocation kind for a call or RIP-relative
// reference to an external symbol. Windows COFF has no PLT concept, so
// pltStyle only matters on the ELF/Itanium side; both targets otherwise want
// a plain PC-relative rel32, which objRelocType maps to the right
// target-specific relocation number.
func (c *Converter) relocKindFor(pltStyle bool) asm.RelocKind {
	if c.Target == abi.Windows {
		return asm.RelPC32
	}
	if pltStyle {
		return asm.RelPLT32
	}
	return asm.RelPC32
}

// ObjRelocType translates an asm.RelocKind into the target object format's
// own relocation numbering once the function's code buffer offsets are
// final (§4.7 step 6).
func (c *Converter) ObjRelocType(kind asm.RelocKind) objfile.RelocType {
	if c.Target == abi.Windows {
		switch kind {
		case asm.RelAbs64:
			return objfile.RAMD64_ADDR64
		case asm.RelAddr32:
			return objfile.RAMD64_ADDR32
		default:
			return objfile.RAMD64_REL32
		}
	}
	switch kind {
	case asm.RelAbs64:
		return objfile.RX8664_64
	case asm.RelPLT32:
		return objfile.RX8664_PLT32
	default:
		return objfile.RX8664_PC32
	}
}

// Convert lowers fn into Result, panicking never, erroring on malformed IR
// (unplaced label, branch to an unknown target, an opcode that reached this
// function before sema/codegen could have ruled it out).
func (c *Converter) Convert(fn *ir.Function) (Result, error) {
	frame := BuildFrame(c.Target, c.Types, fn)
	a := asm.NewAssembler()
	cx := &ctx{a: a, frame: frame, fn: fn, labels: map[string]asm.LabelID{}, exit: a.NewLabel()}

	c.emitPrologue(cx)
	prologueSize := len(a.Code)

	for _, inst := range fn.Instructions {
		if err := c.emitInstruction(cx, inst); err != nil {
			return Result{}, fmt.Errorf("lower: function %s: %w", fn.MangledName, err)
		}
	}

	a.PlaceLabel(cx.exit)
	c.emitEpilogue(cx)

	if err := a.Finish(); err != nil {
		return Result{}, fmt.Errorf("lower: function %s: %w", fn.MangledName, err)
	}

	relocs := make([]objfile.Relocation, len(a.Relocs))
	for i, r := range a.Relocs {
		relocs[i] = objfile.Relocation{
			Section: ".text",
			Offset:  r.Offset,
			Symbol:  r.Symbol,
			Type:    c.ObjRelocType(r.Kind),
			Addend:  r.Addend,
		}
	}

	ehRegions := make([]EHRegion, len(cx.ehRegions))
	for i, r := range cx.ehRegions {
		if off, ok := a.LabelOffset(r.landingPadLabel); ok {
			r.LandingPad = int64(off)
		}
		ehRegions[i] = *r
	}

	return Result{
		Symbol:       objfile.Symbol{Name: fn.MangledName, Section: ".text", Size: int64(len(a.Code)), Binding: objfile.BindGlobal, Type: objfile.SymFunc},
		Code:         a.Code,
		Relocs:       relocs,
		EHRegions:    ehRegions,
		PrologueSize: prologueSize,
		FrameSize:    frame.Size,
	}, nil
}

func (c *Converter) emitPrologue(cx *ctx) {
	a := cx.a
	a.Push(asm.RBP)
	a.MovRegReg(asm.RBP, asm.RSP)
	if cx.frame.Size > 0 {
		a.SubRegImm(asm.RSP, int32(cx.frame.Size))
	}
	if cx.frame.HasEHState {
		// __CxxFrameHandler3 reads [rbp-8] before this function ever enters
		// a try; -1 is FH3's "no active try/catch" sentinel state.
		a.MovRegImm32(asm.RAX, -1)
		a.MovMemReg(cx.frame.EHState(), asm.RAX)
	}
	for i, loc := range cx.frame.ParamLayout.Params {
		spillParam(a, loc, cx.frame.ParamMem(i))
	}
}

func (c *Converter) emitEpilogue(cx *ctx) {
	a := cx.a
	a.MovRegReg(asm.RSP, asm.RBP)
	a.Pop(asm.RBP)
	a.Ret()
}

func (c *Converter) labelFor(cx *ctx, name string) asm.LabelID {
	if id, ok := cx.labels[name]; ok {
		return id
	}
	id := cx.a.NewLabel()
	cx.labels[name] = id
	return id
}

func (c *Converter) isFloatType(t typetab.Index) bool {
	switch c.Types.Get(t).Base {
	case typetab.KindFloat, typetab.KindDouble, typetab.KindLongDouble:
		return true
	}
	return false
}

func (c *Converter) emitInstruction(cx *ctx, inst ir.Instruction) error {
	a := cx.a
	switch inst.Op {
	case ir.OpLabel:
		p := inst.Payload.(ir.Label)
		a.PlaceLabel(c.labelFor(cx, p.Name))

	case ir.OpJump:
		p := inst.Payload.(ir.Jump)
		a.Jmp(c.labelFor(cx, p.Target))

	case ir.OpCondBranch:
		p := inst.Payload.(ir.CondBranch)
		c.loadOperandInt(cx, p.Cond, asm.RAX)
		a.MovRegImm32(asm.RCX, 0)
		a.CmpRegReg(asm.RAX, asm.RCX)
		a.Jcc(asm.CondNE, c.labelFor(cx, p.ThenLabel))
		a.Jmp(c.labelFor(cx, p.ElseLabel))

	case ir.OpBinaryOp:
		c.emitBinaryOp(cx, inst.Payload.(ir.BinaryOp))

	case ir.OpUnaryOp:
		c.emitUnaryOp(cx, inst.Payload.(ir.UnaryOp))

	case ir.OpCompare:
		c.emitCompare(cx, inst.Payload.(ir.Compare))

	case ir.OpCast:
		c.emitCast(cx, inst.Payload.(ir.Cast))

	case ir.OpStackAlloc:
		p := inst.Payload.(ir.StackAlloc)
		a.LeaRegMem(asm.RAX, cx.frame.AllocMem(p.Slot))
		a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)

	case ir.OpAddressOf:
		p := inst.Payload.(ir.AddressOf)
		a.LeaRegMem(asm.RAX, cx.frame.Mem(p.Operand.Temp))
		a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)

	case ir.OpLoad:
		p := inst.Payload.(ir.Load)
		c.loadOperandInt(cx, p.Address, asm.RAX)
		a.MovRegMem(asm.RAX, asm.Mem{Base: asm.RAX})
		a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)

	case ir.OpStore:
		p := inst.Payload.(ir.Store)
		c.loadOperandInt(cx, p.Address, asm.RAX)
		c.loadOperandInt(cx, p.Value, asm.RCX)
		a.MovMemReg(asm.Mem{Base: asm.RAX}, asm.RCX)

	case ir.OpDereference:
		p := inst.Payload.(ir.Dereference)
		c.loadOperandInt(cx, p.Pointer, asm.RAX)
		a.MovRegMem(asm.RAX, asm.Mem{Base: asm.RAX})
		a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)

	case ir.OpMemberLoad:
		p := inst.Payload.(ir.MemberLoad)
		c.loadOperandInt(cx, p.Base, asm.RAX)
		a.MovRegMem(asm.RAX, asm.Mem{Base: asm.RAX, Disp: int32(p.ByteOffset)})
		a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)

	case ir.OpMemberStore:
		p := inst.Payload.(ir.MemberStore)
		c.loadOperandInt(cx, p.Base, asm.RAX)
		c.loadOperandInt(cx, p.Value, asm.RCX)
		a.MovMemReg(asm.Mem{Base: asm.RAX, Disp: int32(p.ByteOffset)}, asm.RCX)

	case ir.OpArrayLoad:
		p := inst.Payload.(ir.ArrayLoad)
		c.loadOperandInt(cx, p.Array, asm.RAX)
		c.loadOperandInt(cx, p.Index, asm.RCX)
		c.emitScaledIndex(cx, asm.RCX, p.ElemSize)
		a.AddRegReg(asm.RAX, asm.RCX)
		a.MovRegMem(asm.RAX, asm.Mem{Base: asm.RAX})
		a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)

	case ir.OpArrayStore:
		p := inst.Payload.(ir.ArrayStore)
		c.loadOperandInt(cx, p.Array, asm.RAX)
		c.loadOperandInt(cx, p.Index, asm.RCX)
		c.emitScaledIndex(cx, asm.RCX, p.ElemSize)
		a.AddRegReg(asm.RAX, asm.RCX)
		c.loadOperandInt(cx, p.Value, asm.RCX)
		a.MovMemReg(asm.Mem{Base: asm.RAX}, asm.RCX)

	case ir.OpComputeAddress:
		c.emitComputeAddress(cx, inst.Payload.(ir.ComputeAddress))

	case ir.OpAggregateCopy:
		p := inst.Payload.(ir.AggregateCopy)
		c.loadOperandInt(cx, p.Dst, asm.RDI)
		c.loadOperandInt(cx, p.Src, asm.RSI)
		qwords := (p.Size + 7) / 8
		for i := int64(0); i < qwords; i++ {
			disp := int32(i * 8)
			a.MovRegMem(asm.RAX, asm.Mem{Base: asm.RSI, Disp: disp})
			a.MovMemReg(asm.Mem{Base: asm.RDI, Disp: disp}, asm.RAX)
		}

	case ir.OpReturn:
		c.emitReturn(cx, inst.Payload.(ir.Return))

	case ir.OpCall:
		return c.emitCall(cx, inst.Payload.(ir.Call))

	case ir.OpConstructorCall:
		c.emitConstructorCall(cx, inst.Payload.(ir.ConstructorCall))

	case ir.OpDestructorCall:
		c.emitDestructorCall(cx, inst.Payload.(ir.DestructorCall))

	case ir.OpGlobalLoad:
		p := inst.Payload.(ir.GlobalLoad)
		c.loadGlobalAddress(cx, p.Name, asm.RAX)
		a.MovRegMem(asm.RAX, asm.Mem{Base: asm.RAX})
		a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)

	case ir.OpGlobalStore:
		p := inst.Payload.(ir.GlobalStore)
		c.loadGlobalAddress(cx, p.Name, asm.RAX)
		c.loadOperandInt(cx, p.Value, asm.RCX)
		a.MovMemReg(asm.Mem{Base: asm.RAX}, asm.RCX)

	case ir.OpTryBegin, ir.OpTryEnd, ir.OpCatchBegin, ir.OpCatchEnd, ir.OpThrow, ir.OpReThrow:
		return c.emitException(cx, inst)

	case ir.OpFunctionDecl, ir.OpFunctionEnd, ir.OpGlobalVariableDecl:
		// No code: these carry metadata the converter already consumed
		// building the Frame/Result, or that belongs to the module-level
		// global table rather than a function body.

	default:
		return fmt.Errorf("unhandled opcode %d", inst.Op)
	}
	return nil
}

// emitScaledIndex multiplies the register's value by elemSize, loading the
// constant into R10 and using a register-register IMUL. elemSize always
// comes from the type table, so it is a compile-time constant, never a
// runtime value.
func (c *Converter) emitScaledIndex(cx *ctx, reg asm.Reg, elemSize int64) {
	cx.a.MovRegImm32(asm.R10, int32(elemSize))
	cx.a.ImulRegReg(reg, asm.R10)
}

func (c *Converter) emitComputeAddress(cx *ctx, p ir.ComputeAddress) {
	a := cx.a
	c.loadOperandInt(cx, p.Base, asm.RAX)
	for _, link := range p.Chain {
		switch link.Kind {
		case ir.ChainMemberOffset:
			if link.ByteOffset != 0 {
				a.MovRegImm32(asm.RCX, int32(link.ByteOffset))
				a.AddRegReg(asm.RAX, asm.RCX)
			}
		case ir.ChainArrayIndex:
			c.loadOperandInt(cx, link.Index, asm.RCX)
			c.emitScaledIndex(cx, asm.RCX, link.ElemSize)
			a.AddRegReg(asm.RAX, asm.RCX)
		}
	}
	a.MovMemReg(cx.frame.Mem(p.Result), asm.RAX)
}

func (c *Converter) loadGlobalAddress(cx *ctx, name strtab.Handle, dst asm.Reg) {
	cx.a.LeaRIPRelative(dst, c.Strings.String(name), c.relocKindFor(false))
}
