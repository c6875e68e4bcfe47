package emc2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Core word layouts
func TestDecodeWord(t *testing.T) {
	tests := []struct {
		name   string
		raw    uint16
		flags  uint8
		opcode uint8
		arg    uint16
		long   bool
	}{
		{"Zero", 0x0000, 0, 0, 0, false},
		{"NormalPush", 0x4301, 2, 3, 1, false},
		{"NormalCall", 0x4e8b, 2, 14, 0x8b, false},
		{"Conditional", 0x2f00, 1, 15, 0, false},
		{"LongJumpZero", 0x8000, 4, 0, 0, true},
		{"LongJumpMax", 0xffff, 4, 0, 0x7fff, true},
		{"FlagsMax", 0x7fff, 3, 0x1f, 0xff, false},
	}
	for _, tc := range tests {
		w := DecodeWord(tc.raw)
		assert.Equal(t, tc.flags, w.Flags, "%s: flags", tc.name)
		assert.Equal(t, tc.opcode, w.Opcode, "%s: opcode", tc.name)
		assert.Equal(t, tc.arg, w.Arg, "%s: arg", tc.name)
		assert.Equal(t, tc.long, w.Long, "%s: long", tc.name)
	}
}

func TestEncodeWordRoundTrip(t *testing.T) {
	for _, raw := range []uint16{0x0000, 0x0001, 0x2300, 0x2f00, 0x4301, 0x4e01, 0x7fff, 0x8000, 0x8123, 0xffff} {
		w := DecodeWord(raw)
		back, err := EncodeWord(w.Opcode, w.Flags, w.Arg)
		require.NoError(t, err, "word 0x%04x", raw)
		assert.Equal(t, raw, back, "word 0x%04x", raw)
	}
}

func TestEncodeWordRanges(t *testing.T) {
	tests := []struct {
		name   string
		opcode uint8
		flags  uint8
		arg    uint16
	}{
		{"LongTargetTooWide", OpJmp, 4, 0x8000},
		{"OpcodeTooWide", 0x20, 0, 0},
		{"FlagsFourNonJmp", OpPush, 4, 0},
		{"FlagsTooWide", OpCall, 5, 0},
		{"ArgTooWide", OpPush, 2, 0x100},
	}
	for _, tc := range tests {
		_, err := EncodeWord(tc.opcode, tc.flags, tc.arg)
		assert.ErrorIs(t, err, ErrMalformedWord, tc.name)
	}
}
