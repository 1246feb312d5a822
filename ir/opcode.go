package ir

import (
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/token"
	"github.com/oxhq/flashcpp/typetab"
)

// Opcode tags an Instruction's payload (§4.6). The minimum set the spec
// names, grouped by category in comments matching the spec's own grouping.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Arithmetic/logic
	OpBinaryOp
	OpUnaryOp
	OpCompare
	OpCast

	// Memory
	OpStackAlloc
	OpLoad
	OpStore
	OpDereference
	OpAddressOf
	OpMemberLoad
	OpMemberStore
	OpArrayLoad
	OpArrayStore
	OpComputeAddress
	OpAggregateCopy

	// Control
	OpLabel
	OpJump
	OpCondBranch
	OpReturn
	OpCall

	// Functions
	OpFunctionDecl
	OpFunctionEnd

	// Objects
	OpConstructorCall
	OpDestructorCall

	// Globals
	OpGlobalVariableDecl
	OpGlobalLoad
	OpGlobalStore

	// Exceptions
	OpTryBegin
	OpTryEnd
	OpCatchBegin
	OpCatchEnd
	OpThrow
	OpReThrow
)

// CastKind mirrors ast.CastKind for the opcode that survives into IR.
type CastKind = uint8

// AddressChainKind distinguishes the two ComputeAddress link kinds.
type AddressChainKind uint8

const (
	ChainArrayIndex AddressChainKind = iota
	ChainMemberOffset
)

// AddressLink is one step of a ComputeAddress chain.
type AddressLink struct {
	Kind        AddressChainKind
	Index       TypedValue // ChainArrayIndex
	ElemSize    int64      // ChainArrayIndex
	ByteOffset  int64      // ChainMemberOffset
	ResultType  typetab.Index
}

// BinaryOp payload.
type BinaryOp struct {
	Op     strtab.Handle
	LHS    TypedValue
	RHS    TypedValue
	Result int // TempVar id
}

type UnaryOp struct {
	Op      strtab.Handle
	Operand TypedValue
	Result  int
}

type Compare struct {
	Op     strtab.Handle
	LHS    TypedValue
	RHS    TypedValue
	Result int
}

type Cast struct {
	Kind    CastKind
	Operand TypedValue
	To      typetab.Index
	Result  int
}

type StackAlloc struct {
	Type   typetab.Index
	Slot   int
	Result int
}

type Load struct {
	Address TypedValue
	Result  int
}

type Store struct {
	Address TypedValue
	Value   TypedValue
}

type Dereference struct {
	Pointer TypedValue
	Result  int
}

type AddressOf struct {
	Operand TypedValue
	Result  int
}

type MemberLoad struct {
	Base       TypedValue
	ByteOffset int64
	MemberType typetab.Index
	Result     int
}

type MemberStore struct {
	Base       TypedValue
	ByteOffset int64
	MemberType typetab.Index
	Value      TypedValue
}

type ArrayLoad struct {
	Array    TypedValue
	Index    TypedValue
	ElemSize int64
	ElemType typetab.Index
	Result   int
}

type ArrayStore struct {
	Array    TypedValue
	Index    TypedValue
	ElemSize int64
	ElemType typetab.Index
	Value    TypedValue
}

type ComputeAddress struct {
	Base   TypedValue
	Chain  []AddressLink
	Result int
}

// AggregateCopy copies an entire struct object from Src to Dst (both
// addresses) a qword at a time, the way a class-typed "store" actually has
// to behave since OpStore's single 8-byte mov only ever moves a scalar or a
// pointer. Size is the struct's byte size (§9's layout size); the lowering
// rounds it up to the nearest qword, which is always within the object's
// own stack slot since frame allocation already rounds every StackAlloc up
// to 8 bytes.
type AggregateCopy struct {
	Dst  TypedValue
	Src  TypedValue
	Size int64
}

type Label struct {
	Name string
}

type Jump struct {
	Target string
}

type CondBranch struct {
	Cond       TypedValue
	ThenLabel  string
	ElseLabel  string
}

type Return struct {
	Value TypedValue
	Void  bool
}

type Call struct {
	Callee         string // mangled name; empty for indirect calls through Ptr
	Ptr            TypedValue
	Args           []TypedValue
	Result         int
	UsesReturnSlot bool
	ReturnSlot     TypedValue
	ResultType     typetab.Index
}

// CallingConv distinguishes the two ABIs a function can target.
type CallingConv uint8

const (
	ConvSystemV CallingConv = iota
	ConvWindows
)

type Param struct {
	Name     strtab.Handle
	Type     typetab.Index
	IsThis   bool
}

type FunctionDecl struct {
	MangledName          string
	ReturnType           typetab.Index
	Params               []Param
	HasHiddenReturnParam bool
	Conv                 CallingConv
	IsNoreturn           bool
}

type FunctionEnd struct{}

type ConstructorCall struct {
	Target           TypedValue
	MangledCtor      string
	Args             []TypedValue
	UseReturnSlot    bool
	ReturnSlotOffset int64
}

type DestructorCall struct {
	TargetAddress TypedValue
	StructType    typetab.Index
	MangledDtor   string
}

type GlobalVariableDecl struct {
	Name         strtab.Handle
	MangledName  string
	Type         typetab.Index
	InitData     []byte
	Zero         bool
	ElementCount int64
}

type GlobalLoad struct {
	Name   strtab.Handle
	Type   typetab.Index
	Result int
}

type GlobalStore struct {
	Name  strtab.Handle
	Type  typetab.Index
	Value TypedValue
}

type TryBegin struct{ LandingPad string }
type TryEnd struct{}

type CatchBegin struct {
	CatchType        typetab.Index
	ContinuationLabel string
	ExceptionVar     int // TempVar id binding the caught value, -1 if unnamed
}

type CatchEnd struct{ ContinuationLabel string }

type Throw struct {
	TypeDescriptor typetab.Index
	Operand        TypedValue
}

type ReThrow struct{}

// Instruction is one IR op: an Opcode, the originating token (for
// diagnostics that survive into codegen/lower failures), and a
// Kind-specific payload.
type Instruction struct {
	Op      Opcode
	Pos     token.Position
	Payload any
}
