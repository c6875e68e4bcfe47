// Package emc2 implements the FORM/EMC2 container codec, the 16-bit
// instruction word codec and the in-memory program model shared by the
// decompiler and the compiler.
package emc2

import "errors"

var (
	// ErrMalformedContainer is returned for bad magic bytes, size
	// mismatches, missing pad bytes and missing required chunks.
	ErrMalformedContainer = errors.New("malformed container")
	// ErrMalformedWord is returned when a word cannot be encoded within
	// its declared bit ranges.
	ErrMalformedWord = errors.New("malformed word")
	// ErrMalformedText is returned for non-ASCII data, embedded NULs and
	// unterminated strings in the TEXT chunk.
	ErrMalformedText = errors.New("malformed text")
)

// Program is the in-memory form of one conversation script. It is built
// by Decode or by the compiler, consumed once, and never mutated.
type Program struct {
	// Order is the ORDR entry table: word indices into Data.
	Order []uint16
	// Strings is the TEXT string pool. It may be empty even when a TEXT
	// chunk is present; see TextPresent.
	Strings []string
	// Data is the instruction word stream.
	Data []uint16
	// TextPresent records whether the container carries a TEXT chunk.
	// An empty TEXT chunk and a missing one are distinct on the wire.
	TextPresent bool
}
