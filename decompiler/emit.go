package decompiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

const indentUnit = "    "

type emitter struct {
	d     *decompiler
	lines []string
	refs  map[string]int
}

func newEmitter(d *decompiler) *emitter {
	return &emitter{d: d, refs: make(map[string]int)}
}

func (em *emitter) run() (string, error) {
	em.emitHeader()
	if err := em.emitRange(0, len(em.d.data), 0); err != nil {
		return "", err
	}
	em.printLabels(len(em.d.data), 0)
	em.sweep()
	return strings.Join(em.lines, "\n") + "\n", nil
}

func (em *emitter) line(depth int, s string) {
	em.lines = append(em.lines, strings.Repeat(indentUnit, depth)+s)
}

// ref records a printed jump reference and returns the name unchanged.
func (em *emitter) ref(name string) string {
	em.refs[name]++
	return name
}

// target renders a jump destination: a label name when one exists,
// otherwise the raw word index.
func (em *emitter) target(pc int, long bool) string {
	if name := em.d.preferredName(pc); name != "" {
		return em.ref(name)
	}
	if long {
		return fmt.Sprintf("0x%04x", pc)
	}
	return fmt.Sprintf("0x%02x", pc)
}

func (em *emitter) emitHeader() {
	d := em.d
	if d.prog.TextPresent && len(d.prog.Strings) == 0 {
		em.lines = append(em.lines, "# text: present")
	}
	if len(d.prog.Strings) == 0 {
		em.lines = append(em.lines, "strings = {}")
	} else {
		em.lines = append(em.lines, "strings = {")
		for i, s := range d.prog.Strings {
			em.lines = append(em.lines, fmt.Sprintf("%s%s: '%s',", indentUnit, d.keys[i], escapeString(s)))
		}
		em.lines = append(em.lines, "}")
	}
	em.lines = append(em.lines, "")

	globals := make([]string, len(d.prog.Order))
	for i := range d.prog.Order {
		globals[i] = fmt.Sprintf("global_%d", i)
	}
	em.lines = append(em.lines, fmt.Sprintf("globals = [%s]", strings.Join(globals, ", ")))
	em.lines = append(em.lines, "")
}

func (em *emitter) printLabels(pc, depth int) {
	for _, name := range em.d.names[pc] {
		em.line(depth, "label "+name)
	}
}

// emitRange is pass F over [start, end): labels, structured constructs,
// sugar folds, raw instructions, in that order of preference.
func (em *emitter) emitRange(start, end, depth int) error {
	p := start
	for p < end {
		em.printLabels(p, depth)
		if !em.d.executed[p] || em.d.hidden[p] {
			p++
			continue
		}
		if em.d.structAt[p] {
			np, err := em.emitIf(p, depth, "if")
			if err != nil {
				return err
			}
			p = np
			continue
		}
		if np, ok := em.tryReturn(p, end, depth); ok {
			p = np
			continue
		}
		if np, ok := em.tryCall(p, end, depth); ok {
			p = np
			continue
		}
		p = em.emitRaw(p, depth)
	}
	return nil
}

// emitIf renders a structured conditional marked by pass C. kw is "if"
// or "elif"; the else branch collapses into elif when it consists of
// exactly one nested construct with no other way in.
func (em *emitter) emitIf(p, depth int, kw string) (int, error) {
	d := em.d
	elseTarget := int(d.word(p + 1).Arg)
	join := d.lastExecutedBefore(elseTarget, p+2)
	if join >= p+2 && d.hidden[join] {
		joinTarget := int(d.word(join).Arg)
		em.line(depth, kw+" cond:")
		if err := em.emitRange(p+2, join, depth+1); err != nil {
			return 0, err
		}
		em.printLabels(join, depth+1)
		if em.elifAt(elseTarget, joinTarget) {
			return em.emitIf(elseTarget, depth, "elif")
		}
		em.line(depth, "else:")
		if err := em.emitRange(elseTarget, joinTarget, depth+1); err != nil {
			return 0, err
		}
		return joinTarget, nil
	}
	em.line(depth, kw+" cond:")
	if err := em.emitRange(p+2, elseTarget, depth+1); err != nil {
		return 0, err
	}
	return elseTarget, nil
}

// elifAt reports whether the range [pc, end) is exactly one structured
// construct whose branch label nothing else references, so the whole
// else branch can print as elif.
func (em *emitter) elifAt(pc, end int) bool {
	d := em.d
	if !d.structAt[pc] || d.structExtent(pc) != end || d.refs[pc] != 1 {
		return false
	}
	for _, name := range d.names[pc] {
		if !isSynthetic(name) {
			return false
		}
	}
	return true
}

// clean reports whether a fold may extend over pc within [start, end).
func (em *emitter) clean(pc, start, end int) bool {
	if pc >= end {
		return false
	}
	return pc == start || !em.d.blockedAt(pc)
}

func (em *emitter) isOp(pc int, opcode uint8, flags uint8, arg uint16) bool {
	w := em.d.word(pc)
	return !w.Long && w.Opcode == opcode && w.Flags == flags && w.Arg == arg
}

// tryReturn folds the return idioms: a pure expression followed by the
// pop/return pair, a coalesced scripted or native call, and the bare
// return-acc form with its optional leading drop.
func (em *emitter) tryReturn(p, end, depth int) (int, bool) {
	d := em.d

	stack, q := d.exprWindow(p, end)
	if q > p && em.clean(q, p, end) {
		// return <pure-expr>
		if em.isOp(q, emc2.OpRet, 2, 0) && len(stack) == 1 && stack[0].kind != exprAcc {
			r := q + 1
			leave := -1
			if em.clean(r, p, end) {
				if w := d.word(r); !w.Long && w.Opcode == emc2.OpDrop && w.Flags == 2 {
					leave = int(w.Arg)
					r++
				}
			}
			if em.clean(r, p, end) && em.isOp(r, emc2.OpRet, 2, 1) {
				if leave >= 0 {
					em.line(depth, fmt.Sprintf("leave 0x%02x", leave))
				}
				em.line(depth, "return "+d.renderExpr(stack[0]))
				return r + 1, true
			}
		}
	}
	if em.clean(q, p, end) || q == p {
		// return func_E(args) / return call_ID(args)
		if np, line, ok := em.foldCall(stack, p, q, end, true); ok {
			em.line(depth, line)
			return np, true
		}
	}

	// return acc, optionally preceded by a drop
	if em.isOp(p, emc2.OpRet, 2, 1) {
		em.line(depth, "return acc")
		return p + 1, true
	}
	if w := d.word(p); !w.Long && w.Opcode == emc2.OpDrop && w.Flags == 2 &&
		em.clean(p+1, p, end) && em.isOp(p+1, emc2.OpRet, 2, 1) {
		em.line(depth, fmt.Sprintf("leave 0x%02x", w.Arg))
		em.line(depth, "return acc")
		return p + 2, true
	}
	return p, false
}

// tryCall folds scripted and native call statements.
func (em *emitter) tryCall(p, end, depth int) (int, bool) {
	d := em.d
	stack, q := d.exprWindow(p, end)
	if q > p && !em.clean(q, p, end) {
		return p, false
	}
	if np, line, ok := em.foldCall(stack, p, q, end, false); ok {
		em.line(depth, line)
		return np, true
	}
	return p, false
}

// foldCall matches the call idioms at q after the argument window
// [p, q). With coalesce it additionally requires the trailing
// return-address pop and renders the return form.
//
// A native call always drops its argument count; a scripted call drops
// only when it has arguments; in return position the drop disappears
// for zero arguments. Folds outside these exact shapes fall back to
// raw emission.
func (em *emitter) foldCall(stack []*expr, p, q, end int, coalesce bool) (int, string, bool) {
	d := em.d
	if q >= end {
		return 0, "", false
	}
	w := d.word(q)
	if w.Long {
		return 0, "", false
	}

	var callee string
	var r int
	switch {
	case w.Opcode == emc2.OpStack && w.Flags == 2 && w.Arg == 1:
		// Scripted call: prologue plus long jump to the entry label.
		if !em.clean(q+1, p, end) {
			return 0, "", false
		}
		jump := d.word(q + 1)
		if !jump.Long {
			return 0, "", false
		}
		name := d.funcs[int(jump.Arg)]
		if name == "" {
			return 0, "", false
		}
		callee = name
		r = q + 2
	case w.Opcode == emc2.OpCall && w.Flags == 2:
		if name, ok := emc2.CallAliases[w.Arg]; ok {
			callee = name
		} else {
			callee = fmt.Sprintf("call_%d", w.Arg)
		}
		r = q + 1
	default:
		return 0, "", false
	}
	scripted := w.Opcode == emc2.OpStack

	hasDrop := false
	if em.clean(r, p, end) {
		if dw := d.word(r); !dw.Long && dw.Opcode == emc2.OpDrop && dw.Flags == 2 && int(dw.Arg) == len(stack) {
			if !scripted && !coalesce {
				// Statement-form native calls keep the drop even for
				// zero arguments.
				hasDrop = true
			} else if len(stack) > 0 {
				hasDrop = true
			}
		}
	}
	if hasDrop {
		r++
	}

	if coalesce {
		if !hasDrop && len(stack) != 0 {
			return 0, "", false
		}
		if !em.clean(r, p, end) || !em.isOp(r, emc2.OpRet, 2, 1) {
			return 0, "", false
		}
		if scripted {
			em.ref(callee)
		}
		return r + 1, "return " + callee + "(" + d.renderArgs(stack) + ")", true
	}

	if !scripted && !hasDrop {
		return 0, "", false
	}
	if scripted && !hasDrop && len(stack) != 0 {
		return 0, "", false
	}
	if scripted {
		em.ref(callee)
	}
	return r, callee + "(" + d.renderArgs(stack) + ")", true
}

// emitRaw prints one instruction with no folding.
func (em *emitter) emitRaw(p, depth int) int {
	d := em.d
	w := d.word(p)
	if w.Long {
		em.line(depth, fmt.Sprintf("jmp(4, %s)", em.target(int(w.Arg), true)))
		return p + 1
	}
	switch {
	case w.Opcode == emc2.OpJmp:
		em.line(depth, fmt.Sprintf("jmp(%d, %s)", w.Flags, em.target(int(w.Arg), false)))
		return p + 1
	case w.Opcode == emc2.OpIfNot && w.Flags == 1 && p+1 < len(d.data):
		ow := d.word(p + 1)
		if ow.Long {
			em.line(depth, fmt.Sprintf("ifnot(1, %s)", em.target(int(ow.Arg), true)))
			return p + 2
		}
		em.line(depth, fmt.Sprintf("instr_%d(%d, 0x%02x)", w.Opcode, w.Flags, w.Arg))
		em.line(depth, em.plainWord(ow))
		return p + 2
	case w.Opcode == emc2.OpPush && w.Flags == 1 && p+1 < len(d.data):
		if w.Arg == 0 {
			em.line(depth, fmt.Sprintf("push16(1, 0x%04x)", d.data[p+1]))
			return p + 2
		}
		em.line(depth, fmt.Sprintf("push(1, 0x%02x)", w.Arg))
		em.line(depth, em.plainWord(d.word(p+1)))
		return p + 2
	default:
		em.line(depth, em.plainWord(w))
		return p + 1
	}
}

// plainWord renders any word as a single-word statement. Two-word
// starters stay single here; the caller prints their operand itself.
func (em *emitter) plainWord(w emc2.Word) string {
	if w.Long {
		return fmt.Sprintf("jmp(4, %s)", em.target(int(w.Arg), true))
	}
	if w.Opcode == emc2.OpJmp {
		return fmt.Sprintf("jmp(%d, %s)", w.Flags, em.target(int(w.Arg), false))
	}
	if name, ok := emc2.Mnemonics[w.Opcode]; ok {
		return fmt.Sprintf("%s(%d, 0x%02x)", name, w.Flags, w.Arg)
	}
	return fmt.Sprintf("instr_%d(%d, 0x%02x)", w.Opcode, w.Flags, w.Arg)
}

var syntheticDefRe = regexp.MustCompile(`^\s*label (label_\d+)$`)

// sweep removes synthetic label definitions no printed statement
// references; structural folding frees them.
func (em *emitter) sweep() {
	kept := em.lines[:0]
	for _, line := range em.lines {
		if m := syntheticDefRe.FindStringSubmatch(line); m != nil && em.refs[m[1]] == 0 {
			continue
		}
		kept = append(kept, line)
	}
	em.lines = kept
}

func escapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c > 0x7e {
				fmt.Fprintf(&b, `\x%02x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
