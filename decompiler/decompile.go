// Package decompiler turns an EMC2 program into Kyra source. It is a
// multi-pass analyzer: executed-PC discovery, label recovery, structural
// hiding of if/else jump patterns, text-key inference, sugar folding and
// finally emission. Every fold is chosen so that compiling the produced
// text reproduces the original word stream exactly.
package decompiler

import (
	"errors"
	"fmt"

	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

// ErrInternal reports an invariant violated between passes, such as an
// ORDR entry that does not land on an executed pc. emc2.Decode only
// checks that entries fall inside DATA, so a container it accepted can
// still fail here.
var ErrInternal = errors.New("internal inconsistency")

type decompiler struct {
	prog *emc2.Program
	data []uint16

	// pass A
	executed map[int]bool
	operand  map[int]bool
	embedded []int
	execList []int

	// pass B
	names map[int][]string
	funcs map[int]string
	refs  map[int]int

	// pass C
	hidden   map[int]bool
	structAt map[int]bool

	// pass D
	keys   []string
	strRef map[int]int
}

// Decompile renders a program as Kyra source text.
func Decompile(p *emc2.Program) (string, error) {
	d := &decompiler{
		prog:     p,
		data:     p.Data,
		executed: make(map[int]bool),
		operand:  make(map[int]bool),
		names:    make(map[int][]string),
		funcs:    make(map[int]string),
		refs:     make(map[int]int),
		hidden:   make(map[int]bool),
		structAt: make(map[int]bool),
		strRef:   make(map[int]int),
	}
	d.discover()
	for _, entry := range p.Order {
		if !d.executed[int(entry)] {
			return "", fmt.Errorf("%w: order entry %d is not an executed pc", ErrInternal, entry)
		}
	}
	d.buildLabels()
	d.hideStructure(0, len(d.data))
	d.inferKeys()
	return newEmitter(d).run()
}

// isTwoWordAt reports whether the word at pc consumes the next word as
// an operand: push16 (opcode 3, flags 1) and the structured-conditional
// marker (opcode 15, flags 1).
func (d *decompiler) isTwoWordAt(pc int, w emc2.Word) bool {
	if w.Long || w.Flags != 1 {
		return false
	}
	if w.Opcode != emc2.OpPush && w.Opcode != emc2.OpIfNot {
		return false
	}
	return pc+1 < len(d.data)
}

func (d *decompiler) word(pc int) emc2.Word {
	return emc2.DecodeWord(d.data[pc])
}

// validTarget reports whether pc is a legal jump destination: an
// executed pc or one past the end of the code.
func (d *decompiler) validTarget(pc int) bool {
	return d.executed[pc] || pc == len(d.data)
}

// lastExecutedBefore returns the greatest executed pc in [lo, hi), or
// -1 when the range holds none.
func (d *decompiler) lastExecutedBefore(hi, lo int) int {
	for pc := hi - 1; pc >= lo; pc-- {
		if d.executed[pc] {
			return pc
		}
	}
	return -1
}

// blockedAt reports whether a fold window may not extend over pc: a
// label lands there, the structural pass claimed it, or it is not an
// executed pc at all.
func (d *decompiler) blockedAt(pc int) bool {
	return len(d.names[pc]) > 0 || d.hidden[pc] || d.structAt[pc] || !d.executed[pc]
}

// preferredName returns the name a jump to pc should use: the first
// recorded name, with globals ahead of everything else.
func (d *decompiler) preferredName(pc int) string {
	if ns := d.names[pc]; len(ns) > 0 {
		return ns[0]
	}
	return ""
}
