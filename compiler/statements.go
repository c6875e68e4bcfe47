package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

// parseCallStatement lowers one call-form statement. The leading
// identifier has already been consumed.
func (p *parser) parseCallStatement(t token) error {
	name := t.text
	switch {
	case name == "push16":
		return p.parsePush16(t.line)
	case name == "ifnot":
		return p.parseIfnot(t.line)
	case name == "jmp":
		return p.parseJmp(t.line)
	case strings.HasPrefix(name, "func_"):
		return p.parseScriptedCall(name, t.line, false)
	case strings.HasPrefix(name, "instr_"):
		n, err := strconv.ParseUint(name[len("instr_"):], 10, 8)
		if err != nil || n > 0x1f {
			return fmt.Errorf("%w: line %d: unknown statement %q", ErrParse, t.line, name)
		}
		return p.parseGenericWord(uint8(n), t.line)
	}
	if id, isNative, err := nativeCallID(name); isNative {
		if err != nil {
			return fmt.Errorf("%w: line %d", err, t.line)
		}
		return p.parseNativeCall(id, t.line, false)
	}
	if opcode, ok := emc2.MnemonicOpcodes[name]; ok {
		return p.parseGenericWord(opcode, t.line)
	}
	return fmt.Errorf("%w: line %d: unknown statement %q", ErrParse, t.line, name)
}

// parsePush16 accepts push16(imm) and push16(1, imm). The immediate
// occupies the whole operand word.
func (p *parser) parsePush16(line int) error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	first, err := p.expectNumber()
	if err != nil {
		return err
	}
	imm := first
	if t := p.peek(); t.kind == tokPunct && t.text == "," {
		p.next()
		if first.num != 1 {
			return fmt.Errorf("%w: line %d: push16 flags must be 1", ErrParse, first.line)
		}
		imm, err = p.expectNumber()
		if err != nil {
			return err
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	if imm.num < 0 || imm.num > 0xffff {
		return fmt.Errorf("%w: line %d: immediate %d does not fit 16 bits", ErrRange, imm.line, imm.num)
	}
	if err := p.emit(emc2.OpPush, 1, 0, line); err != nil {
		return err
	}
	p.emitRaw(uint16(imm.num))
	return nil
}

// parseIfnot lowers ifnot(1, target) to the two-word conditional: the
// marker word and a long-jump operand.
func (p *parser) parseIfnot(line int) error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	flags, err := p.expectNumber()
	if err != nil {
		return err
	}
	if flags.num != 1 {
		return fmt.Errorf("%w: line %d: ifnot flags must be 1", ErrParse, flags.line)
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	if err := p.emit(emc2.OpIfNot, 1, 0, line); err != nil {
		return err
	}
	if err := p.emitJumpTarget(4, p.next(), true); err != nil {
		return err
	}
	return p.expectPunct(")")
}

func (p *parser) parseJmp(line int) error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	flags, err := p.expectNumber()
	if err != nil {
		return err
	}
	if flags.num < 0 || flags.num > 4 {
		return fmt.Errorf("%w: line %d: jmp flags %d out of range", ErrRange, flags.line, flags.num)
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	if err := p.emitJumpTarget(uint8(flags.num), p.next(), flags.num == 4); err != nil {
		return err
	}
	return p.expectPunct(")")
}

// parseGenericWord lowers mnemonic(flags, arg) and instr_N(flags, arg)
// to a single word.
func (p *parser) parseGenericWord(opcode uint8, line int) error {
	if err := p.expectPunct("("); err != nil {
		return err
	}
	flags, err := p.expectNumber()
	if err != nil {
		return err
	}
	if err := p.expectPunct(","); err != nil {
		return err
	}
	arg, err := p.expectNumber()
	if err != nil {
		return err
	}
	if err := p.expectPunct(")"); err != nil {
		return err
	}
	if flags.num < 0 || flags.num > 3 {
		return fmt.Errorf("%w: line %d: flags %d out of range", ErrRange, flags.line, flags.num)
	}
	if arg.num < 0 || arg.num > 0xff {
		return fmt.Errorf("%w: line %d: argument %d does not fit 8 bits", ErrRange, arg.line, arg.num)
	}
	return p.emit(opcode, uint8(flags.num), uint16(arg.num), line)
}

// parseNativeCall lowers call_ID(args) and its aliases: argument
// pushes, the call word, then the drop. In return position the drop
// disappears for zero arguments and a return-address pop follows.
func (p *parser) parseNativeCall(id uint16, line int, coalesce bool) error {
	n, err := p.lowerCallArgs()
	if err != nil {
		return err
	}
	if err := p.emit(emc2.OpCall, 2, id, line); err != nil {
		return err
	}
	if !coalesce || n > 0 {
		if n > 0xff {
			return fmt.Errorf("%w: line %d: %d arguments do not fit 8 bits", ErrRange, line, n)
		}
		if err := p.emit(emc2.OpDrop, 2, uint16(n), line); err != nil {
			return err
		}
	}
	if coalesce {
		return p.emit(emc2.OpRet, 2, 1, line)
	}
	return nil
}

// parseScriptedCall lowers func_E(args): argument pushes, the stackctl
// prologue, a long jump to the entry label, and a drop when arguments
// were pushed.
func (p *parser) parseScriptedCall(name string, line int, coalesce bool) error {
	n, err := p.lowerCallArgs()
	if err != nil {
		return err
	}
	if err := p.emit(emc2.OpStack, 2, 1, line); err != nil {
		return err
	}
	p.fixups = append(p.fixups, fixup{index: len(p.words), name: name, long: true, line: line})
	p.emitRaw(0x8000)
	if n > 0 {
		if n > 0xff {
			return fmt.Errorf("%w: line %d: %d arguments do not fit 8 bits", ErrRange, line, n)
		}
		if err := p.emit(emc2.OpDrop, 2, uint16(n), line); err != nil {
			return err
		}
	}
	if coalesce {
		return p.emit(emc2.OpRet, 2, 1, line)
	}
	return nil
}

// parseReturn lowers the return forms. A bare `return acc` is a lone
// return-address pop; a value return pops the value first; coalesced
// call returns skip the value pop, matching the decompiler's folds.
func (p *parser) parseReturn(line int) error {
	leave := p.pendingLeave
	p.pendingLeave = -1

	t := p.peek()
	if t.kind == tokIdent {
		callish := p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "("
		if t.text == "acc" && !callish {
			p.next()
			if leave >= 0 {
				if err := p.emit(emc2.OpDrop, 2, uint16(leave), line); err != nil {
					return err
				}
			}
			return p.emit(emc2.OpRet, 2, 1, line)
		}
		if callish {
			if id, isNative, err := nativeCallID(t.text); isNative {
				if err != nil {
					return fmt.Errorf("%w: line %d", err, t.line)
				}
				if leave >= 0 {
					return fmt.Errorf("%w: line %d: leave cannot precede a call return", ErrParse, line)
				}
				p.next()
				return p.parseNativeCall(id, line, true)
			}
			if strings.HasPrefix(t.text, "func_") {
				if leave >= 0 {
					return fmt.Errorf("%w: line %d: leave cannot precede a call return", ErrParse, line)
				}
				p.next()
				return p.parseScriptedCall(t.text, line, true)
			}
		}
	}

	if err := p.lowerValueExpr(); err != nil {
		return err
	}
	if t := p.peek(); t.kind == tokPunct && t.text == "," {
		p.next()
		d, err := p.expectIdent()
		if err != nil || d.text != "drop" {
			return fmt.Errorf("%w: line %d: expected drop(N) after return expression", ErrParse, d.line)
		}
		if err := p.expectPunct("("); err != nil {
			return err
		}
		n, err := p.expectNumber()
		if err != nil {
			return err
		}
		if err := p.expectPunct(")"); err != nil {
			return err
		}
		if leave >= 0 {
			return fmt.Errorf("%w: line %d: drop(N) conflicts with a preceding leave", ErrParse, n.line)
		}
		if n.num < 0 || n.num > 0xff {
			return fmt.Errorf("%w: line %d: drop count %d does not fit 8 bits", ErrRange, n.line, n.num)
		}
		leave = int(n.num)
	}
	if err := p.emit(emc2.OpRet, 2, 0, line); err != nil {
		return err
	}
	if leave >= 0 {
		if err := p.emit(emc2.OpDrop, 2, uint16(leave), line); err != nil {
			return err
		}
	}
	return p.emit(emc2.OpRet, 2, 1, line)
}
