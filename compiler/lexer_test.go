package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexTokens(t *testing.T) {
	toks, err := lex("foo(1, -2, 0x1f): [] {} = bar # trailing comment\nbaz")
	require.NoError(t, err)

	var kinds []tokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.kind)
	}
	assert.Equal(t, []tokenKind{
		tokIdent, tokPunct, tokNumber, tokPunct, tokNumber, tokPunct,
		tokNumber, tokPunct, tokPunct, tokPunct, tokPunct, tokPunct,
		tokPunct, tokPunct, tokIdent, tokIdent, tokEOF,
	}, kinds)

	assert.Equal(t, int64(1), toks[2].num)
	assert.Equal(t, int64(-2), toks[4].num)
	assert.Equal(t, int64(0x1f), toks[6].num)
	assert.Equal(t, "baz", toks[15].text)
	assert.Equal(t, 2, toks[15].line)
}

func TestLexStrings(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"Plain", `'hello'`, "hello"},
		{"Escapes", `'a\\b\'c\nd\re\tf'`, "a\\b'c\nd\re\tf"},
		{"HexEscape", `'\x41\x00\xff'`, "A\x00\xff"},
		{"Empty", `''`, ""},
	}
	for _, tc := range tests {
		toks, err := lex(tc.src)
		require.NoError(t, err, tc.name)
		require.Equal(t, tokString, toks[0].kind, tc.name)
		assert.Equal(t, tc.want, toks[0].str, tc.name)
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		name, src string
	}{
		{"UnterminatedString", `'abc`},
		{"NewlineInString", "'abc\ndef'"},
		{"BadHexEscape", `'\xg1'`},
		{"ShortHexEscape", `'\x4'`},
		{"UnknownEscape", `'\q'`},
		{"StrayChar", `foo $ bar`},
		{"BareMinus", `foo - bar`},
	}
	for _, tc := range tests {
		_, err := lex(tc.src)
		assert.ErrorIs(t, err, ErrLex, tc.name)
	}
}
