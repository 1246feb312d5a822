package ir

import (
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// Function is one emitted function's IR body plus everything the converter
// needs to lower it (§3.2's "Function record").
type Function struct {
	MangledName          string
	ReturnType           typetab.Index
	Params               []Param
	HasHiddenReturnParam bool
	Conv                 CallingConv
	IsNoreturn           bool

	Temps []TempVar
	Instructions []Instruction

	// HasEH is set when TryBegin/CatchBegin appear in Instructions, so the
	// converter knows to emit LSDA/FH3 metadata for this function.
	HasEH bool
}

// NewTemp allocates a fresh per-function TempVar and returns its id.
func (f *Function) NewTemp(typ typetab.Index, sizeBits int, category ValueCategory) int {
	id := len(f.Temps)
	f.Temps = append(f.Temps, TempVar{ID: id, Type: typ, SizeBits: sizeBits, Category: category})
	return id
}

// Temp returns the TempVar for id.
func (f *Function) Temp(id int) TempVar { return f.Temps[id] }

// Emit appends an instruction to the function body.
func (f *Function) Emit(op Opcode, payload any) {
	if op == OpTryBegin || op == OpCatchBegin {
		f.HasEH = true
	}
	f.Instructions = append(f.Instructions, Instruction{Op: op, Payload: payload})
}

// GlobalVar is a translation-unit-level global declaration. Size is the
// object's byte size regardless of whether InitData is present — a
// zero-initialized global carries no bytes but still reserves Size in .bss
// (§5: zero-initialized globals go to .bss).
type GlobalVar struct {
	Name        strtab.Handle
	MangledName string
	Type        typetab.Index
	Size        int64
	InitData    []byte
	Zero        bool
	IsStatic    bool // internal linkage (anonymous-namespace / file-static)
}

// Module is the translation-unit-level IR: every emitted function plus the
// global declarations (§3.4: "at end-of-translation-unit, the IR converter
// lowers every emitted function").
type Module struct {
	Functions []*Function
	Globals   []GlobalVar
}

// NewFunction appends and returns a new, empty Function.
func (m *Module) NewFunction(decl FunctionDecl) *Function {
	fn := &Function{
		MangledName:          decl.MangledName,
		ReturnType:           decl.ReturnType,
		Params:               decl.Params,
		HasHiddenReturnParam: decl.HasHiddenReturnParam,
		Conv:                 decl.Conv,
		IsNoreturn:           decl.IsNoreturn,
	}
	m.Functions = append(m.Functions, fn)
	return fn
}
