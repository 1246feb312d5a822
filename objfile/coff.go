package objfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// coffFileHeader/coffSectionHeader/coffSymbol/coffRelocation mirror the
// on-disk COFF structures (Microsoft PE/COFF spec, "object file" variant —
// no optional header, since this is a .obj for the linker, not an .exe/.dll).
type coffFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type coffSectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

type coffSymbol struct {
	Name               [8]byte
	Value              uint32
	SectionNumber      int16
	Type               uint16
	StorageClass       uint8
	NumberOfAuxSymbols uint8
}

type coffRelocation struct {
	VirtualAddress   uint32
	SymbolTableIndex uint32
	Type             uint16
}

const (
	coffMachineAMD64 = 0x8664

	coffIMAGE_SCN_CNT_CODE             = 0x00000020
	coffIMAGE_SCN_CNT_INITIALIZED_DATA = 0x00000040
	coffIMAGE_SCN_CNT_UNINITIALIZED    = 0x00000080
	coffIMAGE_SCN_MEM_EXECUTE          = 0x20000000
	coffIMAGE_SCN_MEM_READ             = 0x40000000
	coffIMAGE_SCN_MEM_WRITE            = 0x80000000
	coffIMAGE_SCN_ALIGN_16BYTES        = 0x00500000

	coffIMAGE_SYM_CLASS_EXTERNAL = 2
	coffIMAGE_SYM_CLASS_STATIC   = 3

	coffIMAGE_SYM_TYPE_NULL = 0
	coffIMAGE_SYM_DTYPE_FUNCTION_SHIFT = 4 // high byte: 0x20 flags "function" for STT_FUNC-equivalent symbols
)

// WriteCOFF serializes obj as a little-endian x86-64 COFF object file
// (IMAGE_FILE_MACHINE_AMD64). Long section and symbol names (more than 8
// bytes) are stored via the COFF string table and a `/offset` back-reference,
// exactly as link.exe expects.
func WriteCOFF(obj *Object) ([]byte, error) {
	strtab := &bytes.Buffer{}
	// COFF's string table begins with its own 4-byte total-size field.
	strtab.Write(make([]byte, 4))

	encodeName := func(name string) [8]byte {
		var out [8]byte
		if len(name) <= 8 {
			copy(out[:], name)
			return out
		}
		off := uint32(strtab.Len())
		strtab.WriteString(name)
		strtab.WriteByte(0)
		s := fmt.Sprintf("/%d", off)
		copy(out[:], s)
		return out
	}

	sectionIndex := map[string]int{} // Object section name -> 1-based COFF section number
	type builtSection struct {
		hdr  coffSectionHeader
		data []byte
		name string
	}
	sections := make([]builtSection, 0, len(obj.Sections))
	for i, s := range obj.Sections {
		var chars uint32
		switch {
		case s.Executable:
			chars = coffIMAGE_SCN_CNT_CODE | coffIMAGE_SCN_MEM_EXECUTE | coffIMAGE_SCN_MEM_READ
		case s.NoBits:
			chars = coffIMAGE_SCN_CNT_UNINITIALIZED | coffIMAGE_SCN_MEM_READ | coffIMAGE_SCN_MEM_WRITE
		case s.Writable:
			chars = coffIMAGE_SCN_CNT_INITIALIZED_DATA | coffIMAGE_SCN_MEM_READ | coffIMAGE_SCN_MEM_WRITE
		default:
			chars = coffIMAGE_SCN_CNT_INITIALIZED_DATA | coffIMAGE_SCN_MEM_READ
		}
		chars |= coffIMAGE_SCN_ALIGN_16BYTES

		data := s.Data
		size := uint32(len(data))
		if s.NoBits {
			size = uint32(s.VirtualSize)
			data = nil
		}
		sections = append(sections, builtSection{
			hdr:  coffSectionHeader{Name: encodeName(s.Name), SizeOfRawData: size, Characteristics: chars},
			data: data,
			name: s.Name,
		})
		sectionIndex[s.Name] = i + 1
	}

	symbols := make([]coffSymbol, 0, len(obj.Symbols))
	symIndex := map[string]int{}
	for i, sym := range obj.Symbols {
		class := uint8(coffIMAGE_SYM_CLASS_STATIC)
		if sym.Binding != BindLocal {
			class = coffIMAGE_SYM_CLASS_EXTERNAL
		}
		secNum := int16(0) // undefined external
		if sym.Section != "" {
			secNum = int16(sectionIndex[sym.Section])
		}
		typ := uint16(coffIMAGE_SYM_TYPE_NULL)
		if sym.Type == SymFunc {
			typ = 2 << coffIMAGE_SYM_DTYPE_FUNCTION_SHIFT
		}
		symbols = append(symbols, coffSymbol{
			Name:          encodeName(sym.Name),
			Value:         uint32(sym.Offset),
			SectionNumber: secNum,
			Type:          typ,
			StorageClass:  class,
		})
		symIndex[sym.Name] = i
	}

	relocsBySection := map[string][]coffRelocation{}
	for _, r := range obj.Relocations {
		idx, ok := symIndex[r.Symbol]
		if !ok {
			return nil, fmt.Errorf("objfile: relocation against unknown symbol %q", r.Symbol)
		}
		relocsBySection[r.Section] = append(relocsBySection[r.Section], coffRelocation{
			VirtualAddress:   uint32(r.Offset),
			SymbolTableIndex: uint32(idx),
			Type:             uint16(r.Type),
		})
	}

	// Layout: file header, section header table, each section's raw data,
	// each section's relocation table, symbol table, string table.
	headerSize := uint32(binary.Size(coffFileHeader{}))
	sectionTableSize := uint32(binary.Size(coffSectionHeader{})) * uint32(len(sections))
	offset := headerSize + sectionTableSize

	for i := range sections {
		if sections[i].hdr.Characteristics&coffIMAGE_SCN_CNT_UNINITIALIZED != 0 {
			continue // .bss carries no raw data in the file
		}
		sections[i].hdr.PointerToRawData = offset
		offset += uint32(len(sections[i].data))
	}
	for _, s := range obj.Sections {
		relocs := relocsBySection[s.Name]
		if len(relocs) == 0 {
			continue
		}
		idx := sectionIndex[s.Name] - 1
		sections[idx].hdr.PointerToRelocations = offset
		sections[idx].hdr.NumberOfRelocations = uint16(len(relocs))
		offset += uint32(binary.Size(coffRelocation{})) * uint32(len(relocs))
	}
	symtabOffset := offset
	offset += uint32(binary.Size(coffSymbol{})) * uint32(len(symbols))

	strtabBytes := strtab.Bytes()
	binary.LittleEndian.PutUint32(strtabBytes, uint32(len(strtabBytes)))

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, coffFileHeader{
		Machine:              coffMachineAMD64,
		NumberOfSections:     uint16(len(sections)),
		PointerToSymbolTable: symtabOffset,
		NumberOfSymbols:      uint32(len(symbols)),
	})
	for _, s := range sections {
		binary.Write(&out, binary.LittleEndian, s.hdr)
	}
	for _, s := range sections {
		if s.hdr.Characteristics&coffIMAGE_SCN_CNT_UNINITIALIZED != 0 {
			continue
		}
		out.Write(s.data)
	}
	for _, s := range obj.Sections {
		relocs := relocsBySection[s.Name]
		for _, r := range relocs {
			binary.Write(&out, binary.LittleEndian, r)
		}
	}
	for _, s := range symbols {
		binary.Write(&out, binary.LittleEndian, s)
	}
	out.Write(strtabBytes)
	return out.Bytes(), nil
}
