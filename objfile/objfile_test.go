package objfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleObject() *Object {
	return &Object{
		Sections: []Section{
			{Name: ".text", Data: []byte{0x55, 0x48, 0x89, 0xE5, 0xC3}, Executable: true},
			{Name: ".data", Data: []byte{0x01, 0x00, 0x00, 0x00}, Writable: true},
			{Name: ".bss", NoBits: true, VirtualSize: 8, Writable: true},
		},
		Symbols: []Symbol{
			{Name: "_Z4mainv", Section: ".text", Offset: 0, Size: 5, Binding: BindGlobal, Type: SymFunc},
			{Name: ".Lhelper", Section: ".text", Offset: 0, Binding: BindLocal, Type: SymFunc},
			{Name: "_Z5printi", Binding: BindGlobal, Type: SymFunc}, // undefined external
		},
		Relocations: []Relocation{
			{Section: ".text", Offset: 1, Symbol: "_Z5printi", Type: RX8664_PLT32, Addend: -4},
		},
	}
}

func TestWriteELF64HasValidMagicAndCounts(t *testing.T) {
	obj := sampleObject()
	data, err := WriteELF64(obj)
	require.NoError(t, err)
	require.True(t, len(data) > int(binary.Size(elf64Header{})))

	assert.Equal(t, byte(0x7F), data[0])
	assert.Equal(t, byte('E'), data[1])
	assert.Equal(t, byte('L'), data[2])
	assert.Equal(t, byte('F'), data[3])
	assert.Equal(t, byte(2), data[4]) // ELFCLASS64

	var hdr elf64Header
	require.NoError(t, binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr))
	assert.Equal(t, uint16(1), hdr.Type) // ET_REL
	assert.Equal(t, uint16(0x3E), hdr.Machine)
	// 3 real sections + null + symtab + strtab + 1 rela + shstrtab
	assert.Equal(t, 8, int(hdr.Shnum))
}

func TestWriteELF64RejectsUnknownRelocationSymbol(t *testing.T) {
	obj := sampleObject()
	obj.Relocations = append(obj.Relocations, Relocation{Section: ".text", Symbol: "nope", Type: RX8664_PC32})
	_, err := WriteELF64(obj)
	assert.Error(t, err)
}

func TestWriteCOFFHasValidMachineAndCounts(t *testing.T) {
	obj := sampleObject()
	data, err := WriteCOFF(obj)
	require.NoError(t, err)

	var hdr coffFileHeader
	require.NoError(t, binary.Read(bytes.NewReader(data), binary.LittleEndian, &hdr))
	assert.Equal(t, uint16(coffMachineAMD64), hdr.Machine)
	assert.Equal(t, uint16(3), hdr.NumberOfSections)
	assert.Equal(t, uint32(3), hdr.NumberOfSymbols)
}

func TestWriteCOFFLongSectionNameUsesStringTable(t *testing.T) {
	obj := &Object{
		Sections: []Section{{Name: ".gcc_except_table", Data: []byte{0x01}}},
	}
	data, err := WriteCOFF(obj)
	require.NoError(t, err)
	assert.True(t, len(data) > 0)
}
