package codegen

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/oxhq/flashcpp/ast"
	"github.com/oxhq/flashcpp/ir"
	"github.com/oxhq/flashcpp/sema"
	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// globalInfo is what identifier resolution needs about a namespace-scope
// variable: its type and the interned symbol name GlobalLoad/GlobalStore
// carry into lower.
type globalInfo struct {
	Type typetab.Index
	Sym  strtab.Handle
}

// registerGlobal records one namespace-scope variable in the module's
// global table, evaluating a constant initializer through the same
// evaluator constexpr contexts use (§4.5). An initializer the evaluator
// can't fold — or one that folds to all zeroes — leaves the global
// zero-filled, which assemble places in .bss instead of .data (§5).
func (g *Generator) registerGlobal(id ast.NodeID, vd ast.VarDecl, namespaces []string) {
	typ := g.resolveSpecOrVoid(vd.TypeSpec)
	if typ == typetab.Void {
		return
	}
	size := elemByteSize(g.Types, typ)
	mangled := globalSymbol(g.Strings, namespaces, vd.Name)

	gv := ir.GlobalVar{
		Name:        vd.Name,
		MangledName: mangled,
		Type:        typ,
		Size:        size,
		IsStatic:    vd.Storage == ast.StorageStatic,
		Zero:        true,
	}
	if vd.Init != ast.None {
		ev := sema.Evaluator{Arena: g.Arena, Strings: g.Strings, Types: g.Types}
		if v, err := ev.Eval(vd.Init); err == nil {
			if data := encodeGlobalInit(g, v, typ, size); !allZero(data) {
				gv.InitData = data
				gv.Zero = false
			}
		}
	}

	g.Module.Globals = append(g.Module.Globals, gv)
	if g.globals == nil {
		g.globals = make(map[strtab.Handle]globalInfo)
	}
	g.globals[vd.Name] = globalInfo{Type: typ, Sym: g.Strings.Intern(mangled)}
}

// globalSymbol mangles a namespace-scope variable's name: the bare
// identifier at global scope (C-compatible, what both manglers agree on for
// extern "C"-shaped data), or the Itanium nested-name form for a variable
// inside namespaces.
func globalSymbol(strs *strtab.Table, namespaces []string, name strtab.Handle) string {
	text := strs.String(name)
	if len(namespaces) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString("_ZN")
	for _, ns := range namespaces {
		fmt.Fprintf(&b, "%d%s", len(ns), ns)
	}
	fmt.Fprintf(&b, "%d%s", len(text), text)
	b.WriteString("E")
	return b.String()
}

// encodeGlobalInit renders a folded constant as the global's little-endian
// image bytes.
func encodeGlobalInit(g *Generator, v sema.Value, typ typetab.Index, size int64) []byte {
	buf := make([]byte, size)
	if g.isFloatType(typ) {
		switch size {
		case 4:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.Flt)))
		default:
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v.Flt))
		}
		return buf
	}
	bits := uint64(v.AsInt64())
	for i := int64(0); i < size && i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	return buf
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// genGlobalLoad reads a scalar global into a fresh temp.
func (g *Generator) genGlobalLoad(id ast.NodeID, info globalInfo) (ir.TypedValue, error) {
	if g.isAggregateType(info.Type) {
		return ir.TypedValue{}, g.genError(id, "codegen: class-typed globals are not yet loadable")
	}
	result := g.fn.NewTemp(info.Type, 64, ir.ValueCategory{Kind: ir.CatLValue})
	g.fn.Emit(ir.OpGlobalLoad, ir.GlobalLoad{Name: info.Sym, Type: info.Type, Result: result})
	return g.typedValue(result, info.Type), nil
}
