package decompiler

import (
	"fmt"
	"strings"

	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

// discover is pass A: walk the word stream from pc 0 and classify every
// word as executed or as the operand of a two-word instruction. Jump
// targets embedded in conditional operands are collected so pass B can
// label them.
func (d *decompiler) discover() {
	pc := 0
	for pc < len(d.data) {
		d.executed[pc] = true
		d.execList = append(d.execList, pc)
		w := d.word(pc)
		if d.isTwoWordAt(pc, w) {
			d.operand[pc+1] = true
			if w.Opcode == emc2.OpIfNot {
				ow := d.word(pc + 1)
				if ow.Opcode == emc2.OpJmp {
					d.embedded = append(d.embedded, int(ow.Arg))
				}
			}
			pc += 2
			continue
		}
		pc++
	}
}

// buildLabels is pass B: seed the label universe with one global per
// ORDR entry, mint label_N for every jump target, and detect scripted
// function entry points by their push-stackctl prologue.
func (d *decompiler) buildLabels() {
	for i, entry := range d.prog.Order {
		d.addName(int(entry), fmt.Sprintf("global_%d", i))
	}
	for _, pc := range d.execList {
		w := d.word(pc)
		if w.Opcode != emc2.OpJmp {
			continue
		}
		target := int(w.Arg)
		if !d.validTarget(target) {
			continue
		}
		d.refs[target]++
		if len(d.names[target]) == 0 {
			d.addName(target, fmt.Sprintf("label_%d", target))
		}
	}
	for _, target := range d.embedded {
		if !d.validTarget(target) {
			continue
		}
		d.refs[target]++
		if len(d.names[target]) == 0 {
			d.addName(target, fmt.Sprintf("label_%d", target))
		}
	}
	for _, pc := range d.execList {
		w := d.word(pc)
		if w.Long || w.Opcode != emc2.OpStack || w.Flags != 2 || w.Arg != 1 {
			continue
		}
		if pc+1 >= len(d.data) || !d.executed[pc+1] {
			continue
		}
		nw := d.word(pc + 1)
		if !nw.Long {
			continue
		}
		if target := int(nw.Arg); d.validTarget(target) {
			d.addFunc(target)
		}
	}
}

func (d *decompiler) addName(pc int, name string) {
	for _, n := range d.names[pc] {
		if n == name {
			return
		}
	}
	d.names[pc] = append(d.names[pc], name)
}

// addFunc records a func_N name at pc. It takes precedence over a
// synthetic label_N minted for the same pc, but never displaces a
// global.
func (d *decompiler) addFunc(pc int) {
	name := fmt.Sprintf("func_%d", pc)
	d.funcs[pc] = name
	synthetic := fmt.Sprintf("label_%d", pc)
	for i, n := range d.names[pc] {
		if n == name {
			return
		}
		if n == synthetic {
			d.names[pc][i] = name
			return
		}
	}
	d.names[pc] = append(d.names[pc], name)
}

func isSynthetic(name string) bool {
	if !strings.HasPrefix(name, "label_") {
		return false
	}
	for _, c := range name[len("label_"):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(name) > len("label_")
}

// hideStructure is pass C: find the canonical if/if-else jump pattern
// inside [start, end) and mark join jumps as hidden so emission can
// fold the construct back into structured source.
func (d *decompiler) hideStructure(start, end int) {
	pc := start
	for pc < end {
		if !d.executed[pc] {
			pc++
			continue
		}
		w := d.word(pc)
		if d.isTwoWordAt(pc, w) && w.Opcode == emc2.OpIfNot {
			ow := d.word(pc + 1)
			if ow.Long {
				elseTarget := int(ow.Arg)
				if elseTarget > pc+2 && elseTarget <= end {
					join := d.lastExecutedBefore(elseTarget, pc+2)
					if join >= pc+2 {
						jw := d.word(join)
						if jw.Long && int(jw.Arg) > elseTarget && int(jw.Arg) <= end {
							joinTarget := int(jw.Arg)
							d.hidden[join] = true
							d.structAt[pc] = true
							d.hideStructure(pc+2, join)
							d.hideStructure(elseTarget, joinTarget)
							pc = joinTarget
							continue
						}
					}
					d.structAt[pc] = true
					d.hideStructure(pc+2, elseTarget)
					pc = elseTarget
					continue
				}
			}
		}
		if d.isTwoWordAt(pc, w) {
			pc += 2
		} else {
			pc++
		}
	}
}

// structExtent returns the pc one past the construct starting at pc,
// mirroring the decisions hideStructure recorded.
func (d *decompiler) structExtent(pc int) int {
	elseTarget := int(d.word(pc + 1).Arg)
	if join := d.lastExecutedBefore(elseTarget, pc+2); join >= pc+2 && d.hidden[join] {
		return int(d.word(join).Arg)
	}
	return elseTarget
}
