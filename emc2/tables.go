package emc2

// Mnemonics maps the opcodes with a preferred textual name. Everything
// else renders as instr_N.
var Mnemonics = map[uint8]string{
	OpJmp:    "jmp",
	OpPush:   "push",
	OpCall:   "call",
	OpUnary:  "unary",
	OpBinary: "binary",
}

// MnemonicOpcodes is the reverse of Mnemonics, used by the parser.
var MnemonicOpcodes = map[string]uint8{
	"jmp":    OpJmp,
	"push":   OpPush,
	"call":   OpCall,
	"unary":  OpUnary,
	"binary": OpBinary,
}

// UnaryNames maps unary operator ids (the arg of an OpUnary word) to
// their names.
var UnaryNames = map[uint16]string{
	0: "not",
	1: "neg",
	2: "bnot",
}

// BinaryNames maps binary operator ids (the arg of an OpBinary word) to
// their names, in engine order.
var BinaryNames = map[uint16]string{
	0:  "and",
	1:  "or",
	2:  "eq",
	3:  "neq",
	4:  "lt",
	5:  "le",
	6:  "gt",
	7:  "ge",
	8:  "add",
	9:  "sub",
	10: "mul",
	11: "div",
	12: "shr",
	13: "shl",
	14: "band",
	15: "bor",
	16: "mod",
	17: "bxor",
}

// CallAliases maps the native call ids with a dedicated textual alias.
// Other ids render as call_N.
var CallAliases = map[uint16]string{
	1:   "speak",
	52:  "tell",
	139: "title",
}

var (
	unaryIDs  = invert(UnaryNames)
	binaryIDs = invert(BinaryNames)
	aliasIDs  = invert(CallAliases)
)

func invert(m map[uint16]string) map[string]uint16 {
	r := make(map[string]uint16, len(m))
	for id, name := range m {
		r[name] = id
	}
	return r
}

// UnaryID resolves a unary operator name.
func UnaryID(name string) (uint16, bool) {
	id, ok := unaryIDs[name]
	return id, ok
}

// BinaryID resolves a binary operator name.
func BinaryID(name string) (uint16, bool) {
	id, ok := binaryIDs[name]
	return id, ok
}

// AliasID resolves a native-call alias name.
func AliasID(name string) (uint16, bool) {
	id, ok := aliasIDs[name]
	return id, ok
}
