package mangle

import (
	"strings"

	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// MSVC implements the (simplified) Microsoft C++ name-mangling scheme COFF
// targets use. Like Itanium, it skips the compression-table machinery (the
// `@0`, `@1`, ... name and argument back-references) for the same reason:
// it is a space optimization over an already-decodable grammar.
type MSVC struct {
	Types   *typetab.Table
	Strings *strtab.Table
}

// Encode renders fn as a `?name@scopes@@<code>...` decorated name. The
// code is `QEAA` (public instance method) whenever fn has at least one
// enclosing scope in Namespaces, and `YA` (cdecl, global) otherwise; a free
// function inside a namespace therefore also gets `QEAA`.
func (m MSVC) Encode(fn FunctionName) string {
	var b strings.Builder
	b.WriteString("?")

	name := fn.Name
	if fn.IsCtor {
		name = "0" // ??0 is the ctor in MSVC mangling
	} else if fn.IsDtor {
		name = "1" // ??1 is the dtor
	}
	b.WriteString(name)
	b.WriteString("@")

	for i := len(fn.Namespaces) - 1; i >= 0; i-- {
		b.WriteString(fn.Namespaces[i])
		b.WriteString("@")
	}
	b.WriteString("@")

	if len(fn.Namespaces) > 0 {
		b.WriteString("QEAA") // public, near, instance-method default
	} else {
		b.WriteString("YA") // cdecl, global
	}

	if fn.IsCtor || fn.IsDtor {
		b.WriteString("X") // ctors/dtors mangle as if void-returning
	} else {
		b.WriteString(m.encodeType(fn.ReturnType))
	}
	if len(fn.Params) == 0 {
		b.WriteString("XZ")
		return b.String()
	}
	for _, p := range fn.Params {
		b.WriteString(m.encodeType(p))
	}
	b.WriteString("@Z")
	return b.String()
}

func (m MSVC) encodeType(t typetab.Index) string {
	info := m.Types.Get(t)

	switch info.Ref {
	case typetab.RefLValue:
		inner := info
		inner.Ref = typetab.RefNone
		return "AEA" + m.encodeBase(inner)
	case typetab.RefRValue:
		inner := info
		inner.Ref = typetab.RefNone
		return "$$QEA" + m.encodeBase(inner)
	}

	if info.PointerDepth > 0 {
		inner := info
		inner.PointerDepth--
		qual := "A" // near pointer, non-const pointee (default)
		if inner.CV&typetab.CVConst != 0 {
			qual = "B"
		}
		return "PE" + qual + m.encodeBase(inner)
	}
	return m.encodeBase(info)
}

func (m MSVC) encodeBase(info typetab.Info) string {
	switch info.Base {
	case typetab.KindVoid:
		return "X"
	case typetab.KindBool:
		return "_N"
	case typetab.KindChar:
		return "D"
	case typetab.KindSChar:
		return "C"
	case typetab.KindUChar:
		return "E"
	case typetab.KindWChar:
		return "_W"
	case typetab.KindShort:
		return "F"
	case typetab.KindUShort:
		return "G"
	case typetab.KindInt:
		return "H"
	case typetab.KindUInt:
		return "I"
	case typetab.KindLong:
		return "J"
	case typetab.KindULong:
		return "K"
	case typetab.KindLongLong:
		return "_J"
	case typetab.KindULongLong:
		return "_K"
	case typetab.KindFloat:
		return "M"
	case typetab.KindDouble:
		return "N"
	case typetab.KindLongDouble:
		return "O"
	case typetab.KindNullptr:
		return "$$T"
	case typetab.KindStruct:
		name := m.Strings.String(m.Types.Struct(info.Struct).Name)
		return "U" + name + "@@"
	case typetab.KindEnum:
		name := m.Strings.String(m.Types.Struct(info.Struct).Name)
		return "W4" + name + "@@"
	default:
		return "H"
	}
}
