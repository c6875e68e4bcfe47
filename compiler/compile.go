// Package compiler turns Kyra source back into an EMC2 program: a
// pragma scan and a structured-control desugar over the raw text, then
// a hand-written lexer and a recursive-descent parser that lowers
// statements to instruction words with label fix-ups.
package compiler

import (
	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

// Compile parses Kyra source into a program.
func Compile(src string) (*emc2.Program, error) {
	pragma := scanPragma(src)
	desugared, err := desugar(src)
	if err != nil {
		return nil, err
	}
	toks, err := lex(desugared)
	if err != nil {
		return nil, err
	}

	p := newParser(toks)
	if err := p.parseStrings(); err != nil {
		return nil, err
	}
	if err := p.parseGlobals(); err != nil {
		return nil, err
	}
	if err := p.parseStatements(); err != nil {
		return nil, err
	}
	order, err := p.resolve()
	if err != nil {
		return nil, err
	}

	prog := &emc2.Program{
		Order:   order,
		Strings: p.strs,
		Data:    p.words,
	}
	if pragma != nil {
		prog.TextPresent = *pragma
	} else {
		prog.TextPresent = len(prog.Strings) > 0
	}
	return prog, nil
}

// CompileBytes compiles source and serializes the container.
func CompileBytes(src string) ([]byte, error) {
	prog, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return emc2.Encode(prog)
}
