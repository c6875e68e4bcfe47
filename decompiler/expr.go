package decompiler

import (
	"fmt"
	"strings"

	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

type exprKind int

const (
	exprI8 exprKind = iota
	exprU16
	exprVar
	exprArg
	exprLocal
	exprAcc
	exprUnary
	exprBinary
)

// expr is one reconstructed stack value. The tree is a tagged variant:
// leaves carry the immediate and the pc that pushed them, operators
// carry children.
type expr struct {
	kind  exprKind
	val   uint16
	pc    int
	op    uint16
	left  *expr
	right *expr
}

// exprWindow reconstructs the value stack produced by a contiguous run
// of expression instructions starting at pc. It is a recognizer, not an
// interpreter: the accepted subset is push16, the opcode-3 i8 push,
// var/arg/local loads, acc, and the tabled unary/binary operators.
// Anything else, including a labeled or structurally claimed pc, ends
// the window. Returns the stack and the first unconsumed pc.
func (d *decompiler) exprWindow(pc, end int) ([]*expr, int) {
	var stack []*expr
	p := pc
	for p < end {
		if p > pc && d.blockedAt(p) {
			break
		}
		w := d.word(p)
		if w.Long {
			break
		}
		switch {
		case w.Opcode == emc2.OpPush && w.Flags == 1:
			if w.Arg != 0 || p+1 >= end {
				return stack, p
			}
			stack = append(stack, &expr{kind: exprU16, val: d.data[p+1], pc: p})
			p += 2
		case w.Opcode == emc2.OpPush && w.Flags == 2:
			stack = append(stack, &expr{kind: exprI8, val: w.Arg, pc: p})
			p++
		case w.Opcode == emc2.OpVar && w.Flags == 2:
			stack = append(stack, &expr{kind: exprVar, val: w.Arg, pc: p})
			p++
		case w.Opcode == emc2.OpArg && w.Flags == 2:
			stack = append(stack, &expr{kind: exprArg, val: w.Arg, pc: p})
			p++
		case w.Opcode == emc2.OpLocal && w.Flags == 2:
			stack = append(stack, &expr{kind: exprLocal, val: w.Arg, pc: p})
			p++
		case w.Opcode == emc2.OpStack && w.Flags == 2 && w.Arg == 0:
			stack = append(stack, &expr{kind: exprAcc, pc: p})
			p++
		case w.Opcode == emc2.OpUnary && w.Flags == 2:
			if _, ok := emc2.UnaryNames[w.Arg]; !ok || len(stack) < 1 {
				return stack, p
			}
			child := stack[len(stack)-1]
			stack[len(stack)-1] = &expr{kind: exprUnary, op: w.Arg, pc: p, left: child}
			p++
		case w.Opcode == emc2.OpBinary && w.Flags == 2:
			if _, ok := emc2.BinaryNames[w.Arg]; !ok || len(stack) < 2 {
				return stack, p
			}
			right := stack[len(stack)-1]
			left := stack[len(stack)-2]
			stack = stack[:len(stack)-1]
			stack[len(stack)-1] = &expr{kind: exprBinary, op: w.Arg, pc: p, left: left, right: right}
			p++
		default:
			return stack, p
		}
	}
	return stack, p
}

// renderExpr prints one reconstructed value. An i8 leaf identified as a
// string reference by pass D prints as its text key.
func (d *decompiler) renderExpr(e *expr) string {
	switch e.kind {
	case exprI8:
		if index, ok := d.strRef[e.pc]; ok {
			return d.keys[index]
		}
		return fmt.Sprintf("0x%02x", e.val)
	case exprU16:
		return fmt.Sprintf("u16(0x%04x)", e.val)
	case exprVar:
		return fmt.Sprintf("var(0x%02x)", e.val)
	case exprArg:
		return fmt.Sprintf("arg(0x%02x)", e.val)
	case exprLocal:
		return fmt.Sprintf("local(0x%02x)", e.val)
	case exprAcc:
		return "acc"
	case exprUnary:
		return emc2.UnaryNames[e.op] + "(" + d.renderExpr(e.left) + ")"
	case exprBinary:
		return emc2.BinaryNames[e.op] + "(" + d.renderExpr(e.left) + ", " + d.renderExpr(e.right) + ")"
	}
	return ""
}

func (d *decompiler) renderArgs(stack []*expr) string {
	parts := make([]string, len(stack))
	for i, e := range stack {
		parts[i] = d.renderExpr(e)
	}
	return strings.Join(parts, ", ")
}
