package decompiler

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/excitoon/LegendOfKyrandiaI-ru/compiler"
	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

// roundTrip decompiles a program and checks that compiling the result
// reproduces the original container bytes.
func roundTrip(t *testing.T, name string, p *emc2.Program) string {
	t.Helper()
	src, err := Decompile(p)
	require.NoError(t, err, "[%s] decompile", name)

	want, err := emc2.Encode(p)
	require.NoError(t, err, "[%s] encode original", name)
	got, err := compiler.CompileBytes(src)
	require.NoError(t, err, "[%s] recompile:\n%s", name, src)
	require.Equal(t, want, got, "[%s] round trip mismatch:\n%s", name, src)
	return src
}

func TestEmptyText(t *testing.T) {
	p := &emc2.Program{
		Order: []uint16{0},
		Data:  []uint16{0x0000}, // jmp(0, 0)
	}
	src := roundTrip(t, "EmptyText", p)
	assert.Equal(t, "strings = {}\n\nglobals = [global_0]\n\nlabel global_0\njmp(0, global_0)\n", src)
}

func TestSpeechFold(t *testing.T) {
	p := &emc2.Program{
		Order:       []uint16{0},
		Strings:     []string{"a", "b", "c", "d", "e", "Hello, traveler!"},
		TextPresent: true,
		Data: []uint16{
			0x4301, // push 0x01
			0x4302, // push 0x02
			0x4305, // push 0x05
			0x4e01, // call(2, 1)
			0x4c03, // instr_12(2, 3)
		},
	}
	src := roundTrip(t, "SpeechFold", p)
	assert.Contains(t, src, "speak(0x01, 0x02, s_hello_traveler)")
	assert.Contains(t, src, "s_hello_traveler: 'Hello, traveler!',")
}

func TestIfElse(t *testing.T) {
	p := &emc2.Program{
		Order: []uint16{0},
		Data: []uint16{
			0x2f00, // instr_15(1, 0)
			0x8004, // long jump to else
			0x4100, // then body
			0x8005, // join jump, hidden
			0x4100, // else body
		},
	}
	src := roundTrip(t, "IfElse", p)
	want := strings.Join([]string{
		"strings = {}",
		"",
		"globals = [global_0]",
		"",
		"label global_0",
		"if cond:",
		"    instr_1(2, 0x00)",
		"else:",
		"    instr_1(2, 0x00)",
		"",
	}, "\n")
	assert.Equal(t, want, src)
}

func TestTitleCaption(t *testing.T) {
	p := &emc2.Program{
		Order:       []uint16{0},
		Strings:     []string{"a", "b", "c", "d", "???"},
		TextPresent: true,
		Data: []uint16{
			0x2300, // push16 marker
			0x00b3, // immediate
			0x4304, // push 0x04
			0x4e8b, // call(2, 139)
			0x4c02, // instr_12(2, 2)
		},
	}
	src := roundTrip(t, "TitleCaption", p)
	assert.Contains(t, src, "title(u16(0x00b3), s_title)")
	assert.Contains(t, src, "s_title: '???',")
	assert.NotContains(t, src, "s004")
}

func TestEndOfDataLabel(t *testing.T) {
	p := &emc2.Program{
		Order: []uint16{0},
		Data:  []uint16{0x0001}, // jmp(0, 1) with 1 == len(data)
	}
	src := roundTrip(t, "EndOfData", p)
	assert.Contains(t, src, "jmp(0, label_1)")
	assert.True(t, strings.HasSuffix(src, "label label_1\n"), "terminal label:\n%s", src)
}

func TestReturnFolds(t *testing.T) {
	tests := []struct {
		name string
		data []uint16
		want string
	}{
		{"ReturnVar", []uint16{0x4505, 0x4800, 0x4801}, "return var(0x05)"},
		{"ReturnWithLeave", []uint16{0x4505, 0x4800, 0x4c02, 0x4801}, "leave 0x02\nreturn var(0x05)"},
		{"ReturnAcc", []uint16{0x4801}, "return acc"},
		{"LeaveReturnAcc", []uint16{0x4c01, 0x4801}, "leave 0x01\nreturn acc"},
		{"ReturnBinary", []uint16{0x4505, 0x4301, 0x5108, 0x4800, 0x4801}, "return add(var(0x05), 0x01)"},
	}
	for _, tc := range tests {
		p := &emc2.Program{Order: []uint16{0}, Data: tc.data}
		src := roundTrip(t, tc.name, p)
		assert.Contains(t, src, tc.want, tc.name)
	}
}

func TestScriptedCallFolds(t *testing.T) {
	p := &emc2.Program{
		Order: []uint16{0},
		Data: []uint16{
			0x4201, // instr_2(2, 1) prologue
			0x8004, // long jump to func_4
			0x4801, // instr_8(2, 1)
			0x4801,
			0x4801, // func_4 body
		},
	}
	src := roundTrip(t, "ScriptedCall", p)
	assert.Contains(t, src, "return func_4()")
	assert.Contains(t, src, "label func_4")
}

func TestRawFallbacks(t *testing.T) {
	// Shapes just outside the folding idioms must survive as raw
	// instructions.
	tests := []struct {
		name string
		data []uint16
		want string
	}{
		// Opcode 4 pushes never join expression folds.
		{"Push2", []uint16{0x4407, 0x4800, 0x4801}, "instr_4(2, 0x07)"},
		// Drop count disagrees with the argument count.
		{"DropMismatch", []uint16{0x4301, 0x4e02, 0x4c02}, "call(2, 0x02)"},
		// A conditional whose operand is not a long jump.
		{"OddConditional", []uint16{0x2f00, 0x4301}, "instr_15(1, 0x00)"},
	}
	for _, tc := range tests {
		p := &emc2.Program{Order: []uint16{0}, Data: tc.data}
		src := roundTrip(t, tc.name, p)
		assert.Contains(t, src, tc.want, tc.name)
	}
}

var (
	syntheticDef = regexp.MustCompile(`(?m)^\s*label (label_\d+)\s*$`)
	syntheticRef = regexp.MustCompile(`\blabel_\d+\b`)
)

// Every synthetic label definition must be referenced somewhere else.
func TestNoUnreferencedSyntheticLabels(t *testing.T) {
	programs := []*emc2.Program{
		{Order: []uint16{0}, Data: []uint16{0x0000}},
		{Order: []uint16{0}, Data: []uint16{0x2f00, 0x8004, 0x4100, 0x8005, 0x4100}},
		{Order: []uint16{0}, Data: []uint16{0x0001}},
		{Order: []uint16{0, 3}, Data: []uint16{0x4301, 0x0000, 0x4801, 0x4801}},
	}
	for _, p := range programs {
		src, err := Decompile(p)
		require.NoError(t, err)

		defined := map[string]bool{}
		referenced := map[string]bool{}
		for _, line := range strings.Split(src, "\n") {
			if m := syntheticDef.FindStringSubmatch(line); m != nil {
				defined[m[1]] = true
				continue
			}
			for _, m := range syntheticRef.FindAllString(line, -1) {
				referenced[m] = true
			}
		}
		for name := range defined {
			assert.True(t, referenced[name], "unreferenced synthetic label %s in:\n%s", name, src)
		}
	}
}

// Produced source must always lex cleanly.
func TestProducedSourceLexes(t *testing.T) {
	p := &emc2.Program{
		Order:       []uint16{0},
		Strings:     []string{"It's\ta 'quoted'\nline \\ with\x01junk"},
		TextPresent: true,
		Data:        []uint16{0x4300, 0x4e01, 0x4c01},
	}
	src, err := Decompile(p)
	require.NoError(t, err)
	prog, err := compiler.Compile(src)
	require.NoError(t, err, "source:\n%s", src)
	assert.Equal(t, p.Strings, prog.Strings)
}
