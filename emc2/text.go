package emc2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// decodeText parses a TEXT chunk: a table of big-endian u16 offsets,
// terminated implicitly when the cursor reaches the first offset, then
// NUL-terminated ASCII strings.
func decodeText(b []byte) ([]string, error) {
	offsets := make([]int, 0, 16)
	cursor := 0
	for cursor < len(b) {
		if cursor+2 > len(b) {
			return nil, fmt.Errorf("%w: truncated offset table", ErrMalformedText)
		}
		offsets = append(offsets, int(binary.BigEndian.Uint16(b[cursor:])))
		cursor += 2
		if offsets[0] <= cursor {
			if offsets[0] != cursor {
				return nil, fmt.Errorf("%w: offset table size %d does not match first offset %d", ErrMalformedText, cursor, offsets[0])
			}
			break
		}
	}
	offsets = append(offsets, len(b))
	for i := 1; i < len(offsets); i++ {
		if offsets[i-1] > offsets[i] {
			return nil, fmt.Errorf("%w: offsets out of order", ErrMalformedText)
		}
	}

	strings := make([]string, 0, len(offsets)-1)
	for i := 0; i+1 < len(offsets); i++ {
		raw := b[offsets[i]:offsets[i+1]]
		if len(raw) == 0 || raw[len(raw)-1] != 0 {
			return nil, fmt.Errorf("%w: string %d not NUL-terminated", ErrMalformedText, i)
		}
		raw = raw[:len(raw)-1]
		if err := validateASCII(raw, i); err != nil {
			return nil, err
		}
		strings = append(strings, string(raw))
	}
	return strings, nil
}

// encodeText is the inverse of decodeText. The offset table occupies
// 2*len(strings) bytes; the first offset therefore doubles as the table
// terminator.
func encodeText(strings []string) ([]byte, error) {
	var buf bytes.Buffer
	base := 2 * len(strings)
	offset := base
	for i, s := range strings {
		if err := validateASCII([]byte(s), i); err != nil {
			return nil, err
		}
		if offset > 0xffff {
			return nil, fmt.Errorf("%w: offset of string %d exceeds 16 bits", ErrMalformedText, i)
		}
		var word [2]byte
		binary.BigEndian.PutUint16(word[:], uint16(offset))
		buf.Write(word[:])
		offset += len(s) + 1
	}
	for _, s := range strings {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func validateASCII(raw []byte, index int) error {
	for _, c := range raw {
		if c == 0 {
			return fmt.Errorf("%w: string %d contains an embedded NUL", ErrMalformedText, index)
		}
		if c > 0x7f {
			return fmt.Errorf("%w: string %d contains non-ASCII byte 0x%02x", ErrMalformedText, index, c)
		}
	}
	return nil
}
