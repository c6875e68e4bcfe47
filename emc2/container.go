package emc2

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WordsToBytes serializes a word stream as big-endian bytes.
func WordsToBytes(words []uint16) []byte {
	out := make([]byte, 0, 2*len(words))
	for _, w := range words {
		out = binary.BigEndian.AppendUint16(out, w)
	}
	return out
}

// BytesToWords interprets an even-length byte slice as big-endian words.
func BytesToWords(b []byte) []uint16 {
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return words
}

// Decode parses a FORM/EMC2 container into a Program.
//
// The declared FORM length is header-inclusive and must equal the buffer
// length. Chunks follow as NAME(4) SIZE(u32 be) payload, each odd-sized
// payload followed by one zero pad byte. ORDR and DATA are required,
// TEXT is optional, unknown chunks are tolerated but not kept.
func Decode(b []byte) (*Program, error) {
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("FORM")) {
		return nil, fmt.Errorf("%w: missing FORM header", ErrMalformedContainer)
	}
	total := binary.BigEndian.Uint32(b[4:8])
	if int(total) != len(b) {
		return nil, fmt.Errorf("%w: declared length %d, buffer length %d", ErrMalformedContainer, total, len(b))
	}
	if !bytes.Equal(b[8:12], []byte("EMC2")) {
		return nil, fmt.Errorf("%w: missing EMC2 tag", ErrMalformedContainer)
	}

	var (
		order, data []byte
		text        []byte
		sawOrder    bool
		sawData     bool
		sawText     bool
	)
	cursor := 12
	for cursor < len(b) {
		if cursor+8 > len(b) {
			return nil, fmt.Errorf("%w: truncated chunk header at offset %d", ErrMalformedContainer, cursor)
		}
		name := string(b[cursor : cursor+4])
		size := int(binary.BigEndian.Uint32(b[cursor+4 : cursor+8]))
		cursor += 8
		if cursor+size > len(b) {
			return nil, fmt.Errorf("%w: %s chunk of %d bytes exceeds buffer", ErrMalformedContainer, name, size)
		}
		payload := b[cursor : cursor+size]
		cursor += size
		if size&1 == 1 {
			if cursor >= len(b) || b[cursor] != 0 {
				return nil, fmt.Errorf("%w: %s chunk missing pad byte", ErrMalformedContainer, name)
			}
			cursor++
		}
		switch name {
		case "ORDR":
			order, sawOrder = payload, true
		case "TEXT":
			text, sawText = payload, true
		case "DATA":
			data, sawData = payload, true
		}
	}
	if !sawOrder {
		return nil, fmt.Errorf("%w: missing ORDR chunk", ErrMalformedContainer)
	}
	if !sawData {
		return nil, fmt.Errorf("%w: missing DATA chunk", ErrMalformedContainer)
	}
	if len(order)%2 != 0 {
		return nil, fmt.Errorf("%w: ORDR size %d not a multiple of 2", ErrMalformedContainer, len(order))
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: DATA size %d not a multiple of 2", ErrMalformedContainer, len(data))
	}

	p := &Program{
		Order:       BytesToWords(order),
		Data:        BytesToWords(data),
		TextPresent: sawText,
	}
	if sawText {
		strings, err := decodeText(text)
		if err != nil {
			return nil, err
		}
		p.Strings = strings
	}
	for _, entry := range p.Order {
		if int(entry) >= len(p.Data) {
			return nil, fmt.Errorf("%w: ORDR entry %d outside DATA of %d words", ErrMalformedContainer, entry, len(p.Data))
		}
	}
	return p, nil
}

// Encode serializes a Program back into container bytes. Chunks are
// written in the fixed order ORDR, optional TEXT, DATA.
func Encode(p *Program) ([]byte, error) {
	var payload bytes.Buffer
	payload.WriteString("EMC2")
	writeChunk(&payload, "ORDR", WordsToBytes(p.Order))
	if p.TextPresent {
		text, err := encodeText(p.Strings)
		if err != nil {
			return nil, err
		}
		writeChunk(&payload, "TEXT", text)
	}
	writeChunk(&payload, "DATA", WordsToBytes(p.Data))

	out := make([]byte, 0, 8+payload.Len())
	out = append(out, "FORM"...)
	out = binary.BigEndian.AppendUint32(out, uint32(8+payload.Len()))
	out = append(out, payload.Bytes()...)
	return out, nil
}

func writeChunk(buf *bytes.Buffer, name string, payload []byte) {
	buf.WriteString(name)
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(payload)))
	buf.Write(size[:])
	buf.Write(payload)
	if len(payload)&1 == 1 {
		buf.WriteByte(0)
	}
}
