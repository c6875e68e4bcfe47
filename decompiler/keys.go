package decompiler

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/excitoon/LegendOfKyrandiaI-ru/emc2"
)

type keyKind int

const (
	kindNone keyKind = iota
	kindSpeak
	kindTell
	kindTitle
)

// inferKeys is pass D: find the string indices fed to the speech,
// dialogue and caption primitives and give them readable keys derived
// from the string contents. Unreferenced indices keep their numeric
// sNNN key. Keys are cosmetic; only their order matters to the round
// trip.
func (d *decompiler) inferKeys() {
	d.keys = make([]string, len(d.prog.Strings))
	for i := range d.keys {
		d.keys[i] = fmt.Sprintf("s%03d", i)
	}
	kinds := make([]keyKind, len(d.prog.Strings))

	for i, pc := range d.execList {
		w := d.word(pc)
		if w.Long || w.Opcode != emc2.OpCall || w.Flags != 2 || i+1 >= len(d.execList) {
			continue
		}
		nw := d.word(d.execList[i+1])
		if nw.Long || nw.Opcode != emc2.OpDrop || nw.Flags != 2 {
			continue
		}
		var kind keyKind
		switch {
		case w.Arg == 1 && nw.Arg == 3:
			kind = kindSpeak
		case w.Arg == 52 && nw.Arg == 4:
			kind = kindTell
		case w.Arg == 139 && nw.Arg == 2:
			kind = kindTitle
		default:
			continue
		}

		// The string index is the final i8 push of the argument
		// window, the instruction immediately before the call. A
		// computed last argument disqualifies the idiom rather than
		// walking back to an unrelated push.
		if i == 0 {
			continue
		}
		push := i - 1
		pw := d.word(d.execList[push])
		if pw.Long || pw.Flags != 2 || (pw.Opcode != emc2.OpPush && pw.Opcode != emc2.OpPush2) {
			continue
		}
		if kind == kindTitle {
			// The caption idiom additionally requires a preceding
			// push16(0x00B3).
			if push == 0 {
				continue
			}
			qw := d.word(d.execList[push-1])
			operand := d.execList[push-1] + 1
			if qw.Long || qw.Opcode != emc2.OpPush || qw.Flags != 1 ||
				operand >= len(d.data) || d.data[operand] != 0x00b3 {
				continue
			}
		}
		index := int(d.word(d.execList[push]).Arg)
		if index >= len(d.prog.Strings) {
			continue
		}
		d.strRef[d.execList[push]] = index
		if kinds[index] == kindNone {
			kinds[index] = kind
		}
	}

	used := make(map[string]bool)
	for i, kind := range kinds {
		if kind == kindNone {
			continue
		}
		slug := slugify(d.prog.Strings[i])
		if slug == "" {
			if kind != kindTitle {
				continue
			}
			slug = "s_title"
		}
		name := slug
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", slug, n)
		}
		used[name] = true
		d.keys[i] = name
	}
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "of": true, "to": true, "in": true, "on": true,
	"at": true, "by": true, "for": true, "with": true, "is": true,
	"are": true, "was": true, "were": true, "be": true, "been": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "as": true, "from": true, "into": true, "not": true,
	"no": true, "so": true, "too": true, "you": true, "your": true,
	"me": true, "my": true, "we": true, "us": true, "our": true,
	"he": true, "him": true, "his": true, "she": true, "her": true,
	"they": true, "them": true, "their": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "will": true,
	"would": true, "can": true, "could": true, "shall": true,
	"should": true, "may": true, "might": true, "must": true,
	"am": true, "what": true, "there": true, "here": true,
}

// slugify derives an s_-prefixed key from string contents: NFKD
// normalize, drop apostrophes between word characters, fold to ASCII,
// lower-case, split on non-alphanumerics, drop stop words and
// single-character tokens (restoring them when fewer than three tokens
// would remain), and join up to four tokens. Returns "" when nothing
// usable survives.
func slugify(s string) string {
	decomposed := []rune(norm.NFKD.String(s))

	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i, r := range decomposed {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			cur.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			cur.WriteRune(r + ('a' - 'A'))
		case r == '\'' || r == '’':
			// An apostrophe inside a word joins its halves; anywhere
			// else it separates tokens.
			if !(i > 0 && i+1 < len(decomposed) &&
				isWordRune(decomposed[i-1]) && isWordRune(decomposed[i+1])) {
				flush()
			}
		case unicode.Is(unicode.Mn, r) || r > 0x7f:
			// Combining marks and unmapped runes fold away without
			// splitting the token.
		default:
			flush()
		}
	}
	flush()

	filtered := tokens[:0:0]
	for _, t := range tokens {
		if len(t) > 1 && !stopWords[t] {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) < 3 {
		filtered = tokens
	}
	if len(filtered) == 0 {
		return ""
	}
	if len(filtered) > 4 {
		filtered = filtered[:4]
	}
	return "s_" + strings.Join(filtered, "_")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
