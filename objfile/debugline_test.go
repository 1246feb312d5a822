package objfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugLineBuilderEncodesAdvances(t *testing.T) {
	d := NewDebugLineBuilder(10)
	d.Row(0, 10)
	d.Row(4, 11)
	out := d.Finish(9)

	// Row(0,10): no pc/line delta from start -> just DW_LNS_copy.
	assert.Equal(t, byte(dwLNS_copy), out[0])
	// Row(4,11): advance_pc(4), advance_line(1), copy.
	assert.Equal(t, byte(dwLNS_advance_pc), out[1])
	assert.Equal(t, byte(4), out[2])
	assert.Equal(t, byte(dwLNS_advance_line), out[3])
	assert.Equal(t, byte(1), out[4])
	assert.Equal(t, byte(dwLNS_copy), out[5])
	// end_sequence: advance_pc(5) then the extended opcode triplet.
	assert.Equal(t, byte(dwLNS_advance_pc), out[6])
	assert.Equal(t, byte(5), out[7])
	assert.Equal(t, []byte{0x00, 0x01, dwLNE_end_sequence}, out[8:11])
}

func TestULEB128RoundValues(t *testing.T) {
	assert.Equal(t, []byte{0x00}, uleb128(0))
	assert.Equal(t, []byte{0x7F}, uleb128(127))
	assert.Equal(t, []byte{0x80, 0x01}, uleb128(128))
}

func TestSLEB128NegativeValues(t *testing.T) {
	assert.Equal(t, []byte{0x00}, sleb128(0))
	assert.Equal(t, []byte{0x7F}, sleb128(-1))
}
