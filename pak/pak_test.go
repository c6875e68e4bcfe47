package pak

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArchive lays out a PAK header followed by the chunk bytes.
func buildArchive(t *testing.T, entries ...Entry) []byte {
	t.Helper()
	headerSize := 4 // zero-offset terminator
	for _, e := range entries {
		headerSize += 4 + len(e.Name) + 1
	}
	var out []byte
	offset := headerSize
	for _, e := range entries {
		out = binary.LittleEndian.AppendUint32(out, uint32(offset))
		out = append(out, e.Name...)
		out = append(out, 0)
		offset += len(e.Data)
	}
	out = binary.LittleEndian.AppendUint32(out, 0)
	for _, e := range entries {
		out = append(out, e.Data...)
	}
	return out
}

func TestDecode(t *testing.T) {
	raw := buildArchive(t,
		Entry{Name: "ALCHEMY.EMC", Data: []byte("abc")},
		Entry{Name: "BRIDGE.EMC", Data: []byte("de")},
	)
	a, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, a.Entries, 2)
	assert.Equal(t, "ALCHEMY.EMC", a.Entries[0].Name)
	assert.Equal(t, []byte("abc"), a.Entries[0].Data)
	assert.Equal(t, "BRIDGE.EMC", a.Entries[1].Name)
	assert.Equal(t, []byte("de"), a.Entries[1].Data)

	data, ok := a.Chunk("BRIDGE.EMC")
	require.True(t, ok)
	assert.Equal(t, []byte("de"), data)

	_, ok = a.Chunk("MISSING.EMC")
	assert.False(t, ok)
}

// Archives with no entries decode to an empty set, matching a header
// that is nothing but its terminator.
func TestDecodeEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, {0x00, 0x00, 0x00, 0x00}} {
		a, err := Decode(raw)
		require.NoError(t, err)
		assert.Empty(t, a.Entries)
	}
}

func TestDecodeErrors(t *testing.T) {
	good := buildArchive(t, Entry{Name: "A", Data: []byte("x")})

	tests := []struct {
		name string
		raw  []byte
	}{
		{"TruncatedHeader", good[:2]},
		{"NoTerminator", good[:6]},
		{"HeaderSizeMismatch", func() []byte {
			bad := append([]byte(nil), good...)
			bad[0]++ // first offset no longer matches the header size
			return bad
		}()},
	}
	for _, tc := range tests {
		_, err := Decode(tc.raw)
		assert.ErrorIs(t, err, ErrMalformedPak, tc.name)
	}
}
