package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

type fixup struct {
	index int
	name  string
	long  bool
	line  int
}

type globalRef struct {
	name  string
	num   int64
	isNum bool
	line  int
}

type parser struct {
	toks []token
	pos  int

	keys    map[string]int
	strs    []string
	words   []uint16
	labels  map[string]int
	fixups  []fixup
	globals []globalRef

	sawGlobals bool
	sawEntry   bool

	pendingLeave int
	leaveLine    int
}

func newParser(toks []token) *parser {
	return &parser{
		toks:         toks,
		keys:         make(map[string]int),
		labels:       make(map[string]int),
		pendingLeave: -1,
	}
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) expectPunct(s string) error {
	t := p.next()
	if t.kind != tokPunct || t.text != s {
		return fmt.Errorf("%w: line %d: expected %q, got %s", ErrParse, t.line, s, t)
	}
	return nil
}

func (p *parser) expectIdent() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, fmt.Errorf("%w: line %d: expected identifier, got %s", ErrParse, t.line, t)
	}
	return t, nil
}

func (p *parser) expectNumber() (token, error) {
	t := p.next()
	if t.kind != tokNumber {
		return t, fmt.Errorf("%w: line %d: expected number, got %s", ErrParse, t.line, t)
	}
	return t, nil
}

// emit appends one encoded word.
func (p *parser) emit(opcode, flags uint8, arg uint16, line int) error {
	w, err := emc2.EncodeWord(opcode, flags, arg)
	if err != nil {
		return fmt.Errorf("%w: line %d: %v", ErrRange, line, err)
	}
	p.words = append(p.words, w)
	return nil
}

// emitRaw appends one word verbatim, bypassing the codec. Used for
// push16 immediates, which occupy the full 16 bits.
func (p *parser) emitRaw(w uint16) {
	p.words = append(p.words, w)
}

// emitJumpTarget appends a jump word whose target may be a forward
// label reference.
func (p *parser) emitJumpTarget(flags uint8, t token, long bool) error {
	switch t.kind {
	case tokNumber:
		if long {
			if t.num < 0 || t.num > 0x7fff {
				return fmt.Errorf("%w: line %d: long-jump target %d exceeds 15 bits", ErrRange, t.line, t.num)
			}
			p.emitRaw(0x8000 | uint16(t.num))
			return nil
		}
		if t.num < 0 || t.num > 0xff {
			return fmt.Errorf("%w: line %d: jump target %d exceeds 8 bits", ErrRange, t.line, t.num)
		}
		return p.emit(emc2.OpJmp, flags, uint16(t.num), t.line)
	case tokIdent:
		p.fixups = append(p.fixups, fixup{index: len(p.words), name: t.text, long: long, line: t.line})
		if long {
			p.emitRaw(0x8000)
			return nil
		}
		return p.emit(emc2.OpJmp, flags, 0, t.line)
	}
	return fmt.Errorf("%w: line %d: expected jump target, got %s", ErrParse, t.line, t)
}

func (p *parser) defineLabel(name string, line int) error {
	if _, dup := p.labels[name]; dup {
		return fmt.Errorf("%w: line %d: duplicate label %q", ErrParse, line, name)
	}
	p.labels[name] = len(p.words)
	return nil
}

// parseStrings consumes the mandatory strings declaration. Key order
// defines TEXT indices.
func (p *parser) parseStrings() error {
	t, err := p.expectIdent()
	if err != nil || t.text != "strings" {
		return fmt.Errorf("%w: line %d: source must start with a strings declaration", ErrParse, t.line)
	}
	if err := p.expectPunct("="); err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	for {
		t := p.peek()
		if t.kind == tokPunct && t.text == "}" {
			p.next()
			return nil
		}
		key, err := p.expectIdent()
		if err != nil {
			return err
		}
		if _, dup := p.keys[key.text]; dup {
			return fmt.Errorf("%w: line %d: duplicate string key %q", ErrParse, key.line, key.text)
		}
		if err := p.expectPunct(":"); err != nil {
			return err
		}
		v := p.next()
		if v.kind != tokString {
			return fmt.Errorf("%w: line %d: expected string literal, got %s", ErrParse, v.line, v)
		}
		p.keys[key.text] = len(p.strs)
		p.strs = append(p.strs, v.str)
		if t := p.peek(); t.kind == tokPunct && t.text == "," {
			p.next()
		}
	}
}

// parseGlobals consumes the optional globals declaration ("entries" is
// the legacy alias). Entries are label names or raw word indices.
func (p *parser) parseGlobals() error {
	t := p.peek()
	if t.kind != tokIdent || t.text != "globals" && t.text != "entries" {
		return nil
	}
	if nx := p.peekAt(1); nx.kind != tokPunct || nx.text != "=" {
		return nil
	}
	p.next()
	p.next()
	if err := p.expectPunct("["); err != nil {
		return err
	}
	p.sawGlobals = true
	for {
		t := p.peek()
		if t.kind == tokPunct && t.text == "]" {
			p.next()
			return nil
		}
		switch t.kind {
		case tokIdent:
			p.globals = append(p.globals, globalRef{name: t.text, line: t.line})
		case tokNumber:
			p.globals = append(p.globals, globalRef{num: t.num, isNum: true, line: t.line})
		default:
			return fmt.Errorf("%w: line %d: expected label or number, got %s", ErrParse, t.line, t)
		}
		p.next()
		if t := p.peek(); t.kind == tokPunct && t.text == "," {
			p.next()
		}
	}
}

// parseStatements consumes the statement stream.
func (p *parser) parseStatements() error {
	for {
		t := p.peek()
		if t.kind == tokEOF {
			if p.pendingLeave >= 0 {
				return fmt.Errorf("%w: line %d: leave without a following return", ErrParse, p.leaveLine)
			}
			return nil
		}
		if t.kind != tokIdent {
			return fmt.Errorf("%w: line %d: expected statement, got %s", ErrParse, t.line, t)
		}
		if p.pendingLeave >= 0 && t.text != "return" {
			return fmt.Errorf("%w: line %d: leave must immediately precede return", ErrParse, p.leaveLine)
		}

		// name: label form
		if nx := p.peekAt(1); nx.kind == tokPunct && nx.text == ":" {
			p.next()
			p.next()
			if err := p.defineLabel(t.text, t.line); err != nil {
				return err
			}
			continue
		}

		switch t.text {
		case "label":
			p.next()
			name, err := p.expectIdent()
			if err != nil {
				return err
			}
			if err := p.defineLabel(name.text, name.line); err != nil {
				return err
			}
		case "leave":
			p.next()
			n, err := p.expectNumber()
			if err != nil {
				return err
			}
			if n.num < 0 || n.num > 0xff {
				return fmt.Errorf("%w: line %d: leave count %d exceeds 8 bits", ErrRange, n.line, n.num)
			}
			p.pendingLeave = int(n.num)
			p.leaveLine = n.line
		case "return":
			p.next()
			if err := p.parseReturn(t.line); err != nil {
				return err
			}
		case "entry":
			if p.sawGlobals {
				return fmt.Errorf("%w: line %d: entry() is not allowed alongside a globals declaration", ErrParse, t.line)
			}
			p.next()
			if err := p.parseEntry(t.line); err != nil {
				return err
			}
		default:
			p.next()
			if err := p.parseCallStatement(t); err != nil {
				return err
			}
		}
	}
}

// parseEntry handles the legacy entry(i, off) form. Indices must be
// declared in order.
func (p *parser) parseEntry(line int) error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	index, err := p.expectNumber()
	if err != nil {
		return err
	}
	if int(index.num) != len(p.globals) {
		return fmt.Errorf("%w: line %d: entry index %d out of sequence", ErrParse, index.line, index.num)
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	p.sawEntry = true
	t := p.next()
	switch t.kind {
	case tokNumber:
		p.globals = append(p.globals, globalRef{num: t.num, isNum: true, line: t.line})
	case tokIdent:
		p.globals = append(p.globals, globalRef{name: t.text, line: t.line})
	default:
		return fmt.Errorf("%w: line %d: expected entry offset, got %s", ErrParse, t.line, t)
	}
	return p.expectPunct(")")
}

// resolve patches label fixups and produces the entry table.
func (p *parser) resolve() ([]uint16, error) {
	for _, f := range p.fixups {
		pc, ok := p.labels[f.name]
		if !ok {
			return nil, fmt.Errorf("%w: line %d: unknown label %q", ErrParse, f.line, f.name)
		}
		if f.long {
			if pc > 0x7fff {
				return nil, fmt.Errorf("%w: line %d: label %q at %d exceeds 15 bits", ErrRange, f.line, f.name, pc)
			}
			p.words[f.index] = 0x8000 | uint16(pc)
			continue
		}
		if pc > 0xff {
			return nil, fmt.Errorf("%w: line %d: label %q at %d exceeds 8 bits", ErrRange, f.line, f.name, pc)
		}
		p.words[f.index] |= uint16(pc)
	}

	order := make([]uint16, 0, len(p.globals))
	for _, g := range p.globals {
		pc := int(g.num)
		if !g.isNum {
			resolved, ok := p.labels[g.name]
			if !ok {
				return nil, fmt.Errorf("%w: line %d: unknown label %q", ErrParse, g.line, g.name)
			}
			pc = resolved
		}
		if pc < 0 || pc >= len(p.words) {
			return nil, fmt.Errorf("%w: line %d: entry %d outside code of %d words", ErrRange, g.line, pc, len(p.words))
		}
		order = append(order, uint16(pc))
	}
	return order, nil
}

// isValueExprName reports whether an identifier can begin a value
// expression in argument position.
func (p *parser) isValueExprName(name string) bool {
	switch name {
	case "acc", "u16", "var", "arg", "local":
		return true
	}
	if _, ok := emc2.UnaryID(name); ok {
		return true
	}
	if _, ok := emc2.BinaryID(name); ok {
		return true
	}
	_, ok := p.keys[name]
	return ok
}

// lowerValueExpr lowers one value expression to stack pushes.
func (p *parser) lowerValueExpr() error {
	t := p.next()
	switch t.kind {
	case tokNumber:
		if t.num < -128 || t.num > 255 {
			return fmt.Errorf("%w: line %d: immediate %d does not fit 8 bits", ErrRange, t.line, t.num)
		}
		return p.emit(emc2.OpPush, 2, uint16(t.num)&0xff, t.line)
	case tokIdent:
		switch t.text {
		case "acc":
			return p.emit(emc2.OpStack, 2, 0, t.line)
		case "u16":
			if err := p.expectPunct("("); err != nil {
				return err
			}
			n, err := p.expectNumber()
			if err != nil {
				return err
			}
			if n.num < 0 || n.num > 0xffff {
				return fmt.Errorf("%w: line %d: immediate %d does not fit 16 bits", ErrRange, n.line, n.num)
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
			if err := p.emit(emc2.OpPush, 1, 0, t.line); err != nil {
				return err
			}
			p.emitRaw(uint16(n.num))
			return nil
		case "var", "arg", "local":
			opcode := map[string]uint8{"var": emc2.OpVar, "arg": emc2.OpArg, "local": emc2.OpLocal}[t.text]
			if err := p.expectPunct("("); err != nil {
				return err
			}
			n, err := p.expectNumber()
			if err != nil {
				return err
			}
			if n.num < 0 || n.num > 0xff {
				return fmt.Errorf("%w: line %d: %s index %d does not fit 8 bits", ErrRange, n.line, t.text, n.num)
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
			return p.emit(opcode, 2, uint16(n.num), t.line)
		}
		if id, ok := emc2.UnaryID(t.text); ok {
			if err := p.expectPunct("("); err != nil {
				return err
			}
			if err := p.lowerValueExpr(); err != nil {
				return err
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
			return p.emit(emc2.OpUnary, 2, id, t.line)
		}
		if id, ok := emc2.BinaryID(t.text); ok {
			if err := p.expectPunct("("); err != nil {
				return err
			}
			if err := p.lowerValueExpr(); err != nil {
				return err
			}
			if err := p.expectPunct(","); err != nil {
				return err
			}
			if err := p.lowerValueExpr(); err != nil {
				return err
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
			return p.emit(emc2.OpBinary, 2, id, t.line)
		}
		if index, ok := p.keys[t.text]; ok {
			if index > 0xff {
				return fmt.Errorf("%w: line %d: string index %d does not fit 8 bits", ErrRange, t.line, index)
			}
			return p.emit(emc2.OpPush, 2, uint16(index), t.line)
		}
	}
	return fmt.Errorf("%w: line %d: expected value expression, got %s", ErrParse, t.line, t)
}

// lowerCallArgs lowers a parenthesized argument list, returning the
// argument count.
func (p *parser) lowerCallArgs() (int, error) {
	if err := p.expectPunct("("); err != nil {
		return 0, err
	}
	n := 0
	for {
		t := p.peek()
		if t.kind == tokPunct && t.text == ")" {
			p.next()
			return n, nil
		}
		if n > 0 {
			if err := p.expectPunct(","); err != nil {
				return 0, err
			}
		}
		if err := p.lowerValueExpr(); err != nil {
			return 0, err
		}
		n++
	}
}

// nativeCallID resolves speak/tell/title aliases and call_N names.
func nativeCallID(name string) (uint16, bool, error) {
	if id, ok := emc2.AliasID(name); ok {
		return id, true, nil
	}
	if rest, ok := strings.CutPrefix(name, "call_"); ok {
		id, err := strconv.ParseUint(rest, 10, 16)
		if err != nil || id > 0xff {
			return 0, true, fmt.Errorf("%w: native call id %q does not fit 8 bits", ErrRange, name)
		}
		return uint16(id), true, nil
	}
	return 0, false, nil
}
