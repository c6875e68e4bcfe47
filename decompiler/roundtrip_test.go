package decompiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excitoon/LegendOfKyrandiaI-ru/compiler"
	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

// corpus exercises every sugar and raw fallback in one place.
var corpus = []struct {
	name string
	prog *emc2.Program
}{
	{"JmpOnly", &emc2.Program{Order: []uint16{0}, Data: []uint16{0x0000}}},
	{"EndLabel", &emc2.Program{Order: []uint16{0}, Data: []uint16{0x0001}}},
	{"TwoGlobals", &emc2.Program{Order: []uint16{0, 2}, Data: []uint16{0x4301, 0x4801, 0x4801}}},
	{"Speech", &emc2.Program{
		Order:       []uint16{0},
		Strings:     []string{"Hi there, friend."},
		TextPresent: true,
		Data:        []uint16{0x4301, 0x4302, 0x4300, 0x4e01, 0x4c03},
	}},
	{"IfElse", &emc2.Program{
		Order: []uint16{0},
		Data:  []uint16{0x2f00, 0x8004, 0x4100, 0x8005, 0x4100},
	}},
	{"IfOnly", &emc2.Program{
		Order: []uint16{0},
		Data:  []uint16{0x2f00, 0x8003, 0x4100},
	}},
	{"NestedIf", &emc2.Program{
		Order: []uint16{0},
		Data:  []uint16{0x2f00, 0x8006, 0x2f00, 0x8005, 0x4100, 0x4100},
	}},
	{"ScriptedAndReturn", &emc2.Program{
		Order: []uint16{0},
		Data:  []uint16{0x4201, 0x8004, 0x4801, 0x4801, 0x4505, 0x4800, 0x4801},
	}},
	{"RawSoup", &emc2.Program{
		Order: []uint16{0},
		Data:  []uint16{0x4407, 0x2301, 0x8000, 0x4c05, 0x6a33, 0x0000},
	}},
	{"EmptyTextChunk", &emc2.Program{
		Order:       []uint16{0},
		TextPresent: true,
		Data:        []uint16{0x4801},
	}},
}

func TestCorpusRoundTrip(t *testing.T) {
	for _, tc := range corpus {
		roundTrip(t, tc.name, tc.prog)
	}
}

// Inverse textual idempotence: decompiling the recompiled container
// reproduces the same source.
func TestTextualIdempotence(t *testing.T) {
	for _, tc := range corpus {
		src, err := Decompile(tc.prog)
		require.NoError(t, err, tc.name)
		back, err := compiler.Compile(src)
		require.NoError(t, err, tc.name)
		again, err := Decompile(back)
		require.NoError(t, err, tc.name)
		assert.Equal(t, src, again, tc.name)
	}
}

// Every printed jump target and every globals entry resolves to an
// executed pc (or one past the end of the code).
func TestExecutedPCClosure(t *testing.T) {
	for _, tc := range corpus {
		src, err := Decompile(tc.prog)
		require.NoError(t, err, tc.name)
		prog, err := compiler.Compile(src)
		require.NoError(t, err, tc.name)

		executed := make(map[int]bool)
		pc := 0
		for pc < len(prog.Data) {
			executed[pc] = true
			w := emc2.DecodeWord(prog.Data[pc])
			if !w.Long && w.Flags == 1 && (w.Opcode == emc2.OpPush || w.Opcode == emc2.OpIfNot) && pc+1 < len(prog.Data) {
				pc += 2
				continue
			}
			pc++
		}
		for _, entry := range prog.Order {
			assert.True(t, executed[int(entry)], "%s: entry %d", tc.name, entry)
		}

		// Every label the source defines sits on an executed pc or one
		// past the end: shift each definition onto the next statement
		// and the container would change, which TestCorpusRoundTrip
		// already rules out. Here we check the jump words themselves.
		for p := range executed {
			w := emc2.DecodeWord(prog.Data[p])
			if w.Opcode == emc2.OpJmp {
				target := int(w.Arg)
				assert.True(t, executed[target] || target == len(prog.Data), "%s: jump at %d", tc.name, p)
			}
		}
	}
}

// Scenario: hand-written structured source survives the full cycle.
func TestStructuredCycle(t *testing.T) {
	src := strings.Join([]string{
		"strings = {}",
		"",
		"globals = [global_0]",
		"",
		"label global_0",
		"push(2, 0x01)",
		"if cond:",
		"    push(2, 0x02)",
		"elif cond:",
		"    push(2, 0x03)",
		"else:",
		"    push(2, 0x04)",
		"return acc",
	}, "\n") + "\n"

	prog, err := compiler.Compile(src)
	require.NoError(t, err)

	out, err := Decompile(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "if cond:")
	assert.Contains(t, out, "elif cond:")
	assert.Contains(t, out, "else:")
	assert.NotContains(t, out, "if_else_")
	assert.NotContains(t, out, "if_end_")

	// The regenerated source compiles back to the same container.
	first, err := emc2.Encode(prog)
	require.NoError(t, err)
	second, err := compiler.CompileBytes(out)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
