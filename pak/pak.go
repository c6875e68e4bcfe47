// Package pak reads the game's PAK asset archives.
//
// A PAK file starts with a header of {u32 little-endian offset,
// NUL-terminated ASCII name} pairs, terminated by a zero offset. Chunk
// sizes are derived from the sorted offsets plus an end-of-file
// sentinel.
package pak

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedPak is returned for truncated headers, unsorted offsets
// and size mismatches.
var ErrMalformedPak = errors.New("malformed pak")

// Entry is one named chunk of an archive.
type Entry struct {
	Name string
	Data []byte
}

// Archive is a decoded PAK file. Entries keep the header order.
type Archive struct {
	Entries []Entry
	byName  map[string]int
}

// Decode parses archive bytes.
func Decode(data []byte) (*Archive, error) {
	var (
		offsets []int
		names   []string
	)
	cursor := 0
	for cursor < len(data) {
		if cursor+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated header at offset %d", ErrMalformedPak, cursor)
		}
		offset := int(binary.LittleEndian.Uint32(data[cursor:]))
		cursor += 4
		if offset == 0 {
			break
		}
		offsets = append(offsets, offset)
		end := bytes.IndexByte(data[cursor:], 0)
		if end == -1 {
			return nil, fmt.Errorf("%w: unterminated entry name", ErrMalformedPak)
		}
		name := data[cursor : cursor+end]
		cursor += end + 1
		for _, c := range name {
			if c > 0x7f {
				return nil, fmt.Errorf("%w: non-ASCII entry name", ErrMalformedPak)
			}
		}
		names = append(names, string(name))
	}
	offsets = append(offsets, len(data))
	if cursor != offsets[0] {
		return nil, fmt.Errorf("%w: header size %d does not match first offset %d", ErrMalformedPak, cursor, offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i-1] > offsets[i] {
			return nil, fmt.Errorf("%w: offsets out of order", ErrMalformedPak)
		}
	}

	a := &Archive{byName: make(map[string]int, len(names))}
	for i, name := range names {
		a.byName[name] = i
		a.Entries = append(a.Entries, Entry{
			Name: name,
			Data: data[offsets[i]:offsets[i+1]],
		})
	}
	return a, nil
}

// Chunk returns the named entry's bytes.
func (a *Archive) Chunk(name string) ([]byte, bool) {
	i, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	return a.Entries[i].Data, true
}
