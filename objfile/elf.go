// Package objfile assembles the ELF64 (ET_REL, for Linux/SysV targets) and
// PE/COFF (for Windows targets) object files the converter's machine code
// and relocations get packed into (§4.8). It never reorders or re-encodes
// instructions — it only lays out sections, symbols, and relocation records
// around bytes the asm/lower packages already produced.
package objfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SymBinding mirrors ELF's STB_* / COFF's external-vs-static symbol
// visibility.
type SymBinding uint8

const (
	BindLocal SymBinding = iota
	BindGlobal
	BindWeak
)

// SymType distinguishes function symbols from data symbols in the symbol
// table (STT_FUNC/STT_OBJECT on ELF, a non-zero "type" leading digit by
// convention on COFF).
type SymType uint8

const (
	SymNoType SymType = iota
	SymFunc
	SymObject
)

// Section is one named chunk of bytes plus its target flags.
type Section struct {
	Name        string
	Data        []byte
	Executable  bool
	Writable    bool
	NoBits      bool // true for .bss: occupies no file space, only virtual size
	VirtualSize int64
}

// Symbol is a named location: either defined in Section at Offset, or (when
// Section == "") an undefined external reference resolved at link time.
type Symbol struct {
	Name    string
	Section string
	Offset  int64
	Size    int64
	Binding SymBinding
	Type    SymType
}

// RelocType is the target-specific relocation kind. ELF and COFF each
// define a disjoint numeric space; the code that builds an Object translates
// from asm.RelocKind into the target's numbering rather than sharing one enum, since
// the two formats' relocation numbering isn't the same and conflating them
// would hide format-specific bugs.
type RelocType uint32

// ELF relocation types (R_X86_64_*), per the x86-64 psABI.
const (
	RX8664_PC32  RelocType = 2
	RX8664_PLT32 RelocType = 4
	RX8664_64    RelocType = 1
)

// COFF relocation types (IMAGE_REL_AMD64_*).
const (
	RAMD64_ADDR64 RelocType = 1
	RAMD64_ADDR32 RelocType = 3
	RAMD64_REL32  RelocType = 4
)

// Relocation applies Type at Offset within Section, against Symbol, with
// Addend folded into the stored value (ELF Rela) or implied by the
// instruction bytes themselves (COFF, which has no explicit addend field —
// WriteELF64 and WriteCOFF each handle this difference locally).
type Relocation struct {
	Section string
	Offset  int64
	Symbol  string
	Type    RelocType
	Addend  int64
}

// Object is the target-independent description of one compiled translation
// unit that ELF and COFF writers both consume.
type Object struct {
	Sections    []Section
	Symbols     []Symbol
	Relocations []Relocation
}

// elf64Header/elf64SectionHeader/elf64Sym/elf64Rela mirror the on-disk ELF64
// structures field-for-field, written with fixed-width binary.Write calls
// rather than unsafe struct overlay, matching Go's usual avoidance of
// unsafe-pointer tricks for serialization.
type elf64Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64SectionHeader struct {
	NameOff   uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type elf64Sym struct {
	NameOff uint32
	Info    uint8
	Other   uint8
	Shndx   uint16
	Value   uint64
	Size    uint64
}

type elf64Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

const (
	elfSHT_NULL     = 0
	elfSHT_PROGBITS = 1
	elfSHT_SYMTAB   = 2
	elfSHT_STRTAB   = 3
	elfSHT_RELA     = 4
	elfSHT_NOBITS   = 8

	elfSHF_WRITE     = 0x1
	elfSHF_ALLOC     = 0x2
	elfSHF_EXECINSTR = 0x4

	elfSTB_LOCAL  = 0
	elfSTB_GLOBAL = 1
	elfSTB_WEAK   = 2

	elfSTT_NOTYPE = 0
	elfSTT_OBJECT = 1
	elfSTT_FUNC   = 2
)

func elfSymInfo(b SymBinding, t SymType) uint8 {
	bind := uint8(elfSTB_LOCAL)
	switch b {
	case BindGlobal:
		bind = elfSTB_GLOBAL
	case BindWeak:
		bind = elfSTB_WEAK
	}
	typ := uint8(elfSTT_NOTYPE)
	switch t {
	case SymFunc:
		typ = elfSTT_FUNC
	case SymObject:
		typ = elfSTT_OBJECT
	}
	return bind<<4 | typ
}

// strtabBuilder accumulates a null-terminated string table and returns each
// string's offset, matching both ELF's .strtab/.shstrtab and COFF's string
// table layout (the leading NUL entry both formats reserve for "no name").
type strtabBuilder struct {
	buf bytes.Buffer
}

func newStrtabBuilder() *strtabBuilder {
	b := &strtabBuilder{}
	b.buf.WriteByte(0)
	return b
}

func (b *strtabBuilder) add(s string) uint32 {
	off := uint32(b.buf.Len())
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
	return off
}

// WriteELF64 serializes obj as a little-endian x86-64 ET_REL object file.
func WriteELF64(obj *Object) ([]byte, error) {
	const secUndef = 0

	shstrtab := newStrtabBuilder()
	strtab := newStrtabBuilder()

	type builtSection struct {
		hdr  elf64SectionHeader
		data []byte
	}

	var sections []builtSection
	// index 0 is the mandatory null section
	sections = append(sections, builtSection{})

	sectionNameIndex := map[string]int{} // Object section name -> ELF section header index
	for _, s := range obj.Sections {
		nameOff := shstrtab.add(s.Name)
		hdr := elf64SectionHeader{
			NameOff:   nameOff,
			Flags:     elfSHF_ALLOC,
			AddrAlign: 16,
		}
		if s.Executable {
			hdr.Flags |= elfSHF_EXECINSTR
		}
		if s.Writable {
			hdr.Flags |= elfSHF_WRITE
		}
		data := s.Data
		if s.NoBits {
			hdr.Type = elfSHT_NOBITS
			hdr.Size = uint64(s.VirtualSize)
			data = nil
		} else {
			hdr.Type = elfSHT_PROGBITS
			hdr.Size = uint64(len(data))
		}
		sectionNameIndex[s.Name] = len(sections)
		sections = append(sections, builtSection{hdr: hdr, data: data})
	}

	// Symbol table: index 0 is the mandatory null symbol. Local symbols
	// must precede global ones (ELF's sh_info = one-past-last-local rule).
	var localSyms, globalSyms []elf64Sym
	symIndex := map[string]int{}
	addSym := func(sym Symbol) elf64Sym {
		nameOff := strtab.add(sym.Name)
		shndx := uint16(secUndef)
		if sym.Section != "" {
			idx, ok := sectionNameIndex[sym.Section]
			if !ok {
				shndx = secUndef
			} else {
				shndx = uint16(idx)
			}
		}
		return elf64Sym{
			NameOff: nameOff,
			Info:    elfSymInfo(sym.Binding, sym.Type),
			Shndx:   shndx,
			Value:   uint64(sym.Offset),
			Size:    uint64(sym.Size),
		}
	}
	for i, sym := range obj.Symbols {
		es := addSym(sym)
		if sym.Binding == BindLocal {
			localSyms = append(localSyms, es)
			symIndex[sym.Name] = len(localSyms) // placeholder, fixed below after global offset known
		} else {
			globalSyms = append(globalSyms, es)
			symIndex[sym.Name] = -(len(globalSyms)) // negative marks "global slot", resolved below
		}
		_ = i
	}
	numLocal := len(localSyms) + 1 // +1 for the null symbol at index 0
	for name, v := range symIndex {
		if v < 0 {
			symIndex[name] = numLocal + (-v - 1)
		}
	}

	// Relocation sections: one ".rela<name>" per source section that has
	// at least one relocation against it, in the Object's section order.
	relasBySection := map[string][]elf64Rela{}
	for _, r := range obj.Relocations {
		symIdx, ok := symIndex[r.Symbol]
		if !ok {
			return nil, fmt.Errorf("objfile: relocation against unknown symbol %q", r.Symbol)
		}
		relasBySection[r.Section] = append(relasBySection[r.Section], elf64Rela{
			Offset: uint64(r.Offset),
			Info:   uint64(symIdx)<<32 | uint64(r.Type),
			Addend: r.Addend,
		})
	}

	symtabSectionIndex := len(sections)
	sections = append(sections, builtSection{}) // filled in below once we know strtab index

	strtabSectionIndex := len(sections)
	sections = append(sections, builtSection{
		hdr:  elf64SectionHeader{Type: elfSHT_STRTAB, AddrAlign: 1},
		data: strtab.buf.Bytes(),
	})

	// Now that strtab's index is known, finalize the symtab header.
	var symtabData bytes.Buffer
	binary.Write(&symtabData, binary.LittleEndian, elf64Sym{}) // null symbol
	for _, s := range localSyms {
		binary.Write(&symtabData, binary.LittleEndian, s)
	}
	for _, s := range globalSyms {
		binary.Write(&symtabData, binary.LittleEndian, s)
	}
	sections[symtabSectionIndex] = builtSection{
		hdr: elf64SectionHeader{
			Type:      elfSHT_SYMTAB,
			Link:      uint32(strtabSectionIndex),
			Info:      uint32(numLocal),
			AddrAlign: 8,
			EntSize:   24,
		},
		data: symtabData.Bytes(),
	}

	for _, s := range obj.Sections {
		relas, ok := relasBySection[s.Name]
		if !ok {
			continue
		}
		name := s.Name
		srcIdx, ok := sectionNameIndex[name]
		if !ok {
			return nil, fmt.Errorf("objfile: relocation against unknown section %q", name)
		}
		nameOff := shstrtab.add(".rela" + name)
		var buf bytes.Buffer
		for _, r := range relas {
			binary.Write(&buf, binary.LittleEndian, r)
		}
		sections = append(sections, builtSection{
			hdr: elf64SectionHeader{
				NameOff:   nameOff,
				Type:      elfSHT_RELA,
				Link:      uint32(symtabSectionIndex),
				Info:      uint32(srcIdx),
				AddrAlign: 8,
				EntSize:   24,
			},
			data: buf.Bytes(),
		})
	}

	shstrtabIndex := len(sections)
	shstrtabNameOff := shstrtab.add(".shstrtab")
	sections = append(sections, builtSection{
		hdr:  elf64SectionHeader{NameOff: shstrtabNameOff, Type: elfSHT_STRTAB, AddrAlign: 1},
		data: shstrtab.buf.Bytes(),
	})

	// Lay out file offsets: header, then every section's data back to back
	// (NOBITS sections consume no file space), then the section header
	// table itself.
	offset := uint64(binary.Size(elf64Header{}))
	for i := range sections {
		if i == 0 {
			continue
		}
		if sections[i].hdr.Type == elfSHT_NOBITS {
			continue
		}
		if pad := offset % 8; pad != 0 {
			offset += 8 - pad
		}
		sections[i].hdr.Offset = offset
		offset += uint64(len(sections[i].data))
	}
	if pad := offset % 8; pad != 0 {
		offset += 8 - pad
	}
	shoff := offset

	var out bytes.Buffer
	hdr := elf64Header{
		Ident:     [16]byte{0x7F, 'E', 'L', 'F', 2, 1, 1, 0},
		Type:      1, // ET_REL
		Machine:   0x3E, // EM_X86_64
		Version:   1,
		Shoff:     shoff,
		Ehsize:    uint16(binary.Size(elf64Header{})),
		Shentsize: uint16(binary.Size(elf64SectionHeader{})),
		Shnum:     uint16(len(sections)),
		Shstrndx:  uint16(shstrtabIndex),
	}
	binary.Write(&out, binary.LittleEndian, hdr)
	for i, s := range sections {
		if i == 0 || s.hdr.Type == elfSHT_NOBITS {
			continue
		}
		for uint64(out.Len()) < s.hdr.Offset {
			out.WriteByte(0)
		}
		out.Write(s.data)
	}
	for uint64(out.Len()) < shoff {
		out.WriteByte(0)
	}
	for i, s := range sections {
		if i == 0 {
			binary.Write(&out, binary.LittleEndian, elf64SectionHeader{})
			continue
		}
		binary.Write(&out, binary.LittleEndian, s.hdr)
	}
	return out.Bytes(), nil
}
