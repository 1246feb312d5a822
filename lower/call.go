package lower

import (
	"github.com/oxhq/flashcpp/abi"
	"github.com/oxhq/flashcpp/asm"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/typetab"
)

// emitCall implements one call site per §4.7 step 5: classify arguments,
// reserve and fill the outgoing stack area, issue the call, then move the
// result out of its return register.
func (c *Converter) emitCall(cx *ctx, p ir.Call) error {
	a := cx.a

	argTypes := make([]typetab.Index, 0, len(p.Args)+1)
	values := make([]ir.TypedValue, 0, len(p.Args)+1)
	if p.UsesReturnSlot {
		argTypes = append(argTypes, p.ResultType)
		values = append(values, p.ReturnSlot)
	}
	for _, arg := range p.Args {
		argTypes = append(argTypes, arg.Type)
		values = append(values, arg)
	}

	assign := abi.AssignParams(c.Target, c.Types, argTypes, p.UsesReturnSlot)

	var stackArgBytes int64
	for _, loc := range assign.Params {
		if !loc.InRegister {
			stackArgBytes += 8
		}
	}
	reserve := abi.AlignStackTo16(stackArgBytes + assign.ShadowSpace)
	if reserve > 0 {
		a.SubRegImm(asm.RSP, int32(reserve))
	}

	for i, loc := range assign.Params {
		v := values[i]
		dstMem := asm.Mem{Base: asm.RSP, Disp: int32(loc.StackSlot)}
		if loc.Class == abi.ClassSSE {
			if loc.InRegister {
				c.loadOperandFloat(cx, v, toXMM(loc.Reg))
			} else {
				c.loadOperandFloat(cx, v, asm.XMM0)
				a.MovsdMemReg(dstMem, asm.XMM0)
			}
			continue
		}
		if loc.InRegister {
			c.loadOperandInt(cx, v, toGPR(loc.Reg))
		} else {
			c.loadOperandInt(cx, v, asm.RAX)
			a.MovMemReg(dstMem, asm.RAX)
		}
	}

	if p.Callee != "" {
		a.CallSymbol(p.Callee, c.relocKindFor(c.Target != abi.Windows))
	} else {
		c.loadOperandInt(cx, p.Ptr, asm.R11)
		a.CallReg(asm.R11)
	}

	if reserve > 0 {
		a.AddRegImm(asm.RSP, int32(reserve))
	}

	if !p.UsesReturnSlot && c.Types.Get(p.ResultType).Base != typetab.KindVoid {
		if c.isFloatType(p.ResultType) {
			c.storeResultFloat(cx, p.Result, asm.XMM0)
		} else {
			c.storeResultInt(cx, p.Result, asm.RAX)
		}
	}
	return nil
}

// emitConstructorCall lowers a constructor invocation to an ordinary call
// against the mangled constructor symbol with the target's address threaded
// through as the implicit `this` argument (§4.7 step 5's object-construction
// calling sequence).
func (c *Converter) emitConstructorCall(cx *ctx, p ir.ConstructorCall) {
	args := append([]ir.TypedValue{p.Target}, p.Args...)
	_ = c.emitCall(cx, ir.Call{
		Callee:     p.MangledCtor,
		Args:       args,
		Result:     -1,
		ResultType: typetab.Index(typetab.KindVoid),
	})
}

// emitDestructorCall lowers a destructor invocation the same way, with the
// object's address as the sole (implicit `this`) argument.
func (c *Converter) emitDestructorCall(cx *ctx, p ir.DestructorCall) {
	_ = c.emitCall(cx, ir.Call{
		Callee:     p.MangledDtor,
		Args:       []ir.TypedValue{p.TargetAddress},
		Result:     -1,
		ResultType: typetab.Index(typetab.KindVoid),
	})
}
