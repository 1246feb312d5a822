package codegen

import (
	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// structTypeOf returns the struct type a member-access base value stands
// for: base.Type itself for a `.`-access on an already-struct-typed
// address, or its pointee for a `->`-access through a pointer.
func structTypeOf(types *typetab.Table, base ir.TypedValue, arrow bool) typetab.Index {
	if arrow {
		return types.Dereference(base.Type)
	}
	return base.Type
}

// genAddress evaluates id as an lvalue, returning the TypedValue naming the
// TempVar that holds its address (§4.6's "every lvalue lowers to an address
// plus a type"). Scalars that were never StackAlloc'd get a fresh AddressOf
// instruction computed on demand; anything already address-shaped (structs,
// StackAlloc'd locals) is returned as-is.
func (g *Generator) genAddress(id ast.NodeID) (ir.TypedValue, error) {
	n := g.Arena.Get(id)
	if ref, ok := g.asIdentifier(n); ok {
		v, ok := g.lookupLocal(ref.Name)
		if !ok {
			return ir.TypedValue{}, g.genError(id, "codegen: undeclared identifier %q", g.Strings.String(ref.Name))
		}
		if v.IsAddress {
			return g.typedValue(v.Temp, v.Type), nil
		}
		return g.addressOfTemp(v.Temp, v.Type), nil
	}
	switch n.Kind {

	case ast.KindMemberAccess:
		return g.genMemberAddress(n.Payload.(ast.MemberAccess))

	case ast.KindArraySubscript:
		return g.genArrayAddress(n.Payload.(ast.ArraySubscript))

	case ast.KindUnaryOp:
		u := n.Payload.(ast.UnaryOp)
		if g.Strings.String(u.Op) == "*" {
			return g.genExpr(u.Operand)
		}
	}
	return ir.TypedValue{}, g.genError(id, "codegen: expression is not an lvalue")
}

// addressOfTemp emits an AddressOf instruction taking the address of an
// existing TempVar's home slot (a scalar local's own storage).
func (g *Generator) addressOfTemp(temp int, t typetab.Index) ir.TypedValue {
	ptrT := g.Types.Pointer(t)
	result := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpAddressOf, ir.AddressOf{Operand: g.typedValue(temp, t), Result: result})
	return g.typedValue(result, ptrT)
}

func (g *Generator) genMemberAddress(m ast.MemberAccess) (ir.TypedValue, error) {
	var base ir.TypedValue
	var err error
	if m.Arrow {
		base, err = g.genExpr(m.Base)
	} else {
		base, err = g.genAddress(m.Base)
	}
	if err != nil {
		return ir.TypedValue{}, err
	}
	structT := structTypeOf(g.Types, base, m.Arrow)
	member, ok := findMember(g.Types, structT, m.Member)
	if !ok {
		return ir.TypedValue{}, g.genError(m.Base, "codegen: no member %q", g.Strings.String(m.Member))
	}
	ptrT := g.Types.Pointer(member.Type)
	result := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
		Base:   base,
		Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: member.Offset, ResultType: member.Type}},
		Result: result,
	})
	return g.typedValue(result, ptrT), nil
}

func (g *Generator) genArrayAddress(s ast.ArraySubscript) (ir.TypedValue, error) {
	arr, err := g.genExpr(s.Array)
	if err != nil {
		return ir.TypedValue{}, err
	}
	idx, err := g.genExpr(s.Index)
	if err != nil {
		return ir.TypedValue{}, err
	}
	elemT := g.Types.Dereference(arr.Type)
	elemSize := elemByteSize(g.Types, elemT)
	ptrT := g.Types.Pointer(elemT)
	result := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
	g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
		Base:   arr,
		Chain:  []ir.AddressLink{{Kind: ir.ChainArrayIndex, Index: idx, ElemSize: elemSize, ResultType: elemT}},
		Result: result,
	})
	return g.typedValue(result, ptrT), nil
}

func (g *Generator) genMemberLoad(id ast.NodeID, m ast.MemberAccess) (ir.TypedValue, error) {
	var base ir.TypedValue
	var err error
	if m.Arrow {
		base, err = g.genExpr(m.Base)
	} else {
		base, err = g.genAddress(m.Base)
	}
	if err != nil {
		return ir.TypedValue{}, err
	}
	structT := structTypeOf(g.Types, base, m.Arrow)
	member, ok := findMember(g.Types, structT, m.Member)
	if !ok {
		return ir.TypedValue{}, g.genError(id, "codegen: no member %q", g.Strings.String(m.Member))
	}
	if g.isAggregateType(member.Type) {
		ptrT := g.Types.Pointer(member.Type)
		result := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
		g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
			Base:   base,
			Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: member.Offset, ResultType: member.Type}},
			Result: result,
		})
		return g.typedValue(result, member.Type), nil
	}
	result := g.fn.NewTemp(member.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.fn.Emit(ir.OpMemberLoad, ir.MemberLoad{Base: base, ByteOffset: member.Offset, MemberType: member.Type, Result: result})
	return g.typedValue(result, member.Type), nil
}

func (g *Generator) genArrayLoad(id ast.NodeID, s ast.ArraySubscript) (ir.TypedValue, error) {
	arr, err := g.genExpr(s.Array)
	if err != nil {
		return ir.TypedValue{}, err
	}
	idx, err := g.genExpr(s.Index)
	if err != nil {
		return ir.TypedValue{}, err
	}
	elemT := g.Types.Dereference(arr.Type)
	if g.isAggregateType(elemT) {
		return g.genArrayAddress(s)
	}
	result := g.fn.NewTemp(elemT, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.fn.Emit(ir.OpArrayLoad, ir.ArrayLoad{Array: arr, Index: idx, ElemSize: elemByteSize(g.Types, elemT), ElemType: elemT, Result: result})
	return g.typedValue(result, elemT), nil
}

// emitAggregateCopy copies the struct object v addresses into the struct
// object dst addresses, qword by qword. A class-typed TypedValue's TempVar
// holds the object's address rather than its bytes (the same convention
// genMemberLoad/genArrayLoad use for aggregate results), so a plain Store of
// one into the other would just overwrite the destination's address with the
// source's — this is the copy that convention actually calls for.
func (g *Generator) emitAggregateCopy(dst, src ir.TypedValue, structT typetab.Index) {
	g.fn.Emit(ir.OpAggregateCopy, ir.AggregateCopy{Dst: dst, Src: src, Size: elemByteSize(g.Types, structT)})
}

// assignTo stores v into the lvalue named by id, by dispatching on how the
// lvalue's address was computed — a plain scalar local writes its TempVar
// slot directly (no separate Store needed), an aggregate-typed lvalue gets a
// full memberwise copy, everything else goes through the matching *Store
// opcode over a computed address.
func (g *Generator) assignTo(id ast.NodeID, v ir.TypedValue) (ir.TypedValue, error) {
	n := g.Arena.Get(id)
	if ref, ok := g.asIdentifier(n); ok {
		local, ok := g.lookupLocal(ref.Name)
		if !ok {
			if this, m, found := g.implicitThisMember(ref.Name); found {
				base := g.typedValue(this.Temp, this.Type)
				if g.isAggregateType(m.Type) {
					ptrT := g.Types.Pointer(m.Type)
					addr := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
					g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
						Base:   base,
						Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: m.Offset, ResultType: m.Type}},
						Result: addr,
					})
					g.emitAggregateCopy(g.typedValue(addr, m.Type), v, m.Type)
					return v, nil
				}
				g.fn.Emit(ir.OpMemberStore, ir.MemberStore{Base: base, ByteOffset: m.Offset, MemberType: m.Type, Value: v})
				return v, nil
			}
			if info, found := g.globals[ref.Name]; found {
				g.fn.Emit(ir.OpGlobalStore, ir.GlobalStore{Name: info.Sym, Type: info.Type, Value: v})
				return v, nil
			}
			return ir.TypedValue{}, g.genError(id, "codegen: undeclared identifier %q", g.Strings.String(ref.Name))
		}
		if !local.IsAddress {
			g.storeInto(local.Temp, v)
			return g.typedValue(local.Temp, local.Type), nil
		}
		dst := g.typedValue(local.Temp, local.Type)
		if g.isAggregateType(local.Type) {
			g.emitAggregateCopy(dst, v, local.Type)
			return dst, nil
		}
		g.fn.Emit(ir.OpStore, ir.Store{Address: dst, Value: v})
		return v, nil
	}

	switch n.Kind {
	case ast.KindMemberAccess:
		m := n.Payload.(ast.MemberAccess)
		var base ir.TypedValue
		var err error
		if m.Arrow {
			base, err = g.genExpr(m.Base)
		} else {
			base, err = g.genAddress(m.Base)
		}
		if err != nil {
			return ir.TypedValue{}, err
		}
		structT := structTypeOf(g.Types, base, m.Arrow)
		member, ok := findMember(g.Types, structT, m.Member)
		if !ok {
			return ir.TypedValue{}, g.genError(id, "codegen: no member %q", g.Strings.String(m.Member))
		}
		if g.isAggregateType(member.Type) {
			ptrT := g.Types.Pointer(member.Type)
			addr := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
			g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
				Base:   base,
				Chain:  []ir.AddressLink{{Kind: ir.ChainMemberOffset, ByteOffset: member.Offset, ResultType: member.Type}},
				Result: addr,
			})
			g.emitAggregateCopy(g.typedValue(addr, member.Type), v, member.Type)
			return v, nil
		}
		g.fn.Emit(ir.OpMemberStore, ir.MemberStore{Base: base, ByteOffset: member.Offset, MemberType: member.Type, Value: v})
		return v, nil

	case ast.KindArraySubscript:
		s := n.Payload.(ast.ArraySubscript)
		arr, err := g.genExpr(s.Array)
		if err != nil {
			return ir.TypedValue{}, err
		}
		idx, err := g.genExpr(s.Index)
		if err != nil {
			return ir.TypedValue{}, err
		}
		elemT := g.Types.Dereference(arr.Type)
		elemSize := elemByteSize(g.Types, elemT)
		if g.isAggregateType(elemT) {
			ptrT := g.Types.Pointer(elemT)
			addr := g.fn.NewTemp(ptrT, 64, ir.ValueCategory{Kind: ir.CatPRValue})
			g.fn.Emit(ir.OpComputeAddress, ir.ComputeAddress{
				Base:   arr,
				Chain:  []ir.AddressLink{{Kind: ir.ChainArrayIndex, Index: idx, ElemSize: elemSize, ResultType: elemT}},
				Result: addr,
			})
			g.emitAggregateCopy(g.typedValue(addr, elemT), v, elemT)
			return v, nil
		}
		g.fn.Emit(ir.OpArrayStore, ir.ArrayStore{Array: arr, Index: idx, ElemSize: elemSize, ElemType: elemT, Value: v})
		return v, nil

	case ast.KindUnaryOp:
		u := n.Payload.(ast.UnaryOp)
		if g.Strings.String(u.Op) == "*" {
			ptr, err := g.genExpr(u.Operand)
			if err != nil {
				return ir.TypedValue{}, err
			}
			g.fn.Emit(ir.OpStore, ir.Store{Address: ptr, Value: v})
			return v, nil
		}
	}
	return ir.TypedValue{}, g.genError(id, "codegen: expression is not assignable")
}

// asIdentifier recognizes the two syntax shapes a plain name reference can
// take — an IdentifierRef, or the single-segment QualifiedId the expression
// grammar builds for an unqualified name — and normalizes both to one form.
func (g *Generator) asIdentifier(n ast.Node) (ast.IdentifierRef, bool) {
	switch n.Kind {
	case ast.KindIdentifierRef:
		return n.Payload.(ast.IdentifierRef), true
	case ast.KindQualifiedId:
		q := n.Payload.(ast.QualifiedId)
		if q.Left == ast.None && !q.Global && len(q.TemplateArgs) == 0 {
			return ast.IdentifierRef{Name: q.Segment}, true
		}
	}
	return ast.IdentifierRef{}, false
}

// member is the subset of typetab.Member genAddress/genMemberLoad need.
type member struct {
	Type   typetab.Index
	Offset int64
}

func findMember(types *typetab.Table, structT typetab.Index, name strtab.Handle) (member, bool) {
	info := types.Get(structT)
	if info.Base != typetab.KindStruct {
		return member{}, false
	}
	si := types.Struct(info.Struct)
	for _, m := range si.Members {
		if m.Name == name {
			return member{Type: m.Type, Offset: m.Offset}, true
		}
	}
	return member{}, false
}

// elemByteSize returns an array/pointer element's stride, the same
// primitive/struct size table lower.byteSizeOf and sema's sizeAlignOf2 each
// keep their own copy of.
func elemByteSize(types *typetab.Table, t typetab.Index) int64 {
	info := types.Get(t)
	if info.PointerDepth > 0 {
		return 8
	}
	switch info.Base {
	case typetab.KindStruct:
		return types.Struct(info.Struct).Size
	case typetab.KindBool, typetab.KindChar, typetab.KindSChar, typetab.KindUChar, typetab.KindChar8:
		return 1
	case typetab.KindChar16, typetab.KindShort, typetab.KindUShort, typetab.KindWChar:
		return 2
	case typetab.KindChar32, typetab.KindInt, typetab.KindUInt, typetab.KindFloat, typetab.KindEnum:
		return 4
	case typetab.KindLongDouble:
		return 16
	default:
		return 8
	}
}
