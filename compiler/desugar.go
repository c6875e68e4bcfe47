package compiler

import (
	"fmt"
	"regexp"
	"strings"
)

// scanPragma finds the last `# text: present` / `# text: absent`
// comment. It returns nil when neither occurs, deferring to the
// default (TEXT present iff the strings table is non-empty).
func scanPragma(src string) *bool {
	var result *bool
	for _, line := range strings.Split(src, "\n") {
		switch strings.TrimSpace(line) {
		case "# text: present":
			v := true
			result = &v
		case "# text: absent":
			v := false
			result = &v
		}
	}
	return result
}

var (
	reIf   = regexp.MustCompile(`^if\b[^:]*:$`)
	reElif = regexp.MustCompile(`^elif\b[^:]*:$`)
	reElse = regexp.MustCompile(`^else\s*:$`)
)

type ifFrame struct {
	indent    int
	elseLabel string
	endLabel  string
	sawElse   bool
}

// desugar lowers if/elif/else suites into the canonical conditional
// pattern before lexing. The condition text is ignored: the EMC2
// conditional tests the dynamic top of stack. Suites are built by
// indentation, tabs or multiples of four spaces, never mixed. Fresh
// labels draw from ascending if_else_N / if_end_N counters and resolve
// like any other label.
func desugar(src string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	var out []string
	var stack []ifFrame
	elseN, endN := 0, 0

	for n, raw := range lines {
		stripped := strings.TrimSpace(raw)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			out = append(out, stripped)
			continue
		}
		indent, err := measureIndent(raw, n+1)
		if err != nil {
			if len(stack) == 0 {
				// Indentation only builds suites; outside one it is
				// free-form.
				indent = 0
			} else {
				return "", err
			}
		}

		isElif := reElif.MatchString(stripped)
		isElse := reElse.MatchString(stripped)
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if indent > top.indent {
				break
			}
			if indent == top.indent && (isElif || isElse) && !top.sawElse {
				break
			}
			out = closeFrame(out, top)
			stack = stack[:len(stack)-1]
		}

		switch {
		case reIf.MatchString(stripped):
			elseN++
			endN++
			f := ifFrame{
				indent:    indent,
				elseLabel: fmt.Sprintf("if_else_%d", elseN),
				endLabel:  fmt.Sprintf("if_end_%d", endN),
			}
			out = append(out, "instr_15(1, 0x00)", "jmp(4, "+f.elseLabel+")")
			stack = append(stack, f)
		case isElif:
			if len(stack) == 0 || stack[len(stack)-1].indent != indent || stack[len(stack)-1].sawElse {
				return "", fmt.Errorf("%w: line %d: elif without matching if", ErrParse, n+1)
			}
			top := &stack[len(stack)-1]
			out = append(out, "jmp(4, "+top.endLabel+")", "label "+top.elseLabel)
			elseN++
			top.elseLabel = fmt.Sprintf("if_else_%d", elseN)
			out = append(out, "instr_15(1, 0x00)", "jmp(4, "+top.elseLabel+")")
		case isElse:
			if len(stack) == 0 || stack[len(stack)-1].indent != indent || stack[len(stack)-1].sawElse {
				return "", fmt.Errorf("%w: line %d: else without matching if", ErrParse, n+1)
			}
			top := &stack[len(stack)-1]
			out = append(out, "jmp(4, "+top.endLabel+")", "label "+top.elseLabel)
			top.sawElse = true
		default:
			out = append(out, stripped)
		}
	}
	for len(stack) > 0 {
		out = closeFrame(out, &stack[len(stack)-1])
		stack = stack[:len(stack)-1]
	}
	return strings.Join(out, "\n"), nil
}

// closeFrame places the pending branch labels at the current position.
// Without an else branch the miss label and the end label coincide.
func closeFrame(out []string, f *ifFrame) []string {
	if !f.sawElse {
		out = append(out, "label "+f.elseLabel)
	}
	return append(out, "label "+f.endLabel)
}

// measureIndent converts leading whitespace into a suite depth. Tabs
// count one level each; spaces must come in groups of four; mixing the
// two is an error.
func measureIndent(line string, n int) (int, error) {
	tabs, spaces := 0, 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\t':
			tabs++
		case ' ':
			spaces++
		default:
			i = len(line)
		}
	}
	if tabs > 0 && spaces > 0 {
		return 0, fmt.Errorf("%w: line %d: mixed tabs and spaces in indentation", ErrParse, n)
	}
	if tabs > 0 {
		return tabs, nil
	}
	if spaces%4 != 0 {
		return 0, fmt.Errorf("%w: line %d: indentation not a multiple of four spaces", ErrParse, n)
	}
	return spaces / 4, nil
}
