package pascal

import "github.com/wippyai/witbindgen/internal/casing"

// keywords are reserved words of Free Pascal plus the names generated code
// uses for out-parameters.
var keywords = map[string]struct{}{
	"and": {}, "array": {}, "as": {}, "asm": {}, "begin": {}, "bitpacked": {},
	"case": {}, "class": {}, "const": {}, "constref": {}, "constructor": {},
	"destructor": {}, "div": {}, "do": {}, "downto": {}, "else": {}, "end": {},
	"except": {}, "exports": {}, "file": {}, "finalization": {}, "finally": {},
	"for": {}, "function": {}, "goto": {}, "if": {}, "implementation": {},
	"in": {}, "inherited": {}, "initialization": {}, "interface": {}, "is": {},
	"label": {}, "library": {}, "mod": {}, "nil": {}, "not": {}, "object": {},
	"of": {}, "operator": {}, "or": {}, "otherwise": {}, "out": {}, "packed": {},
	"procedure": {}, "program": {}, "property": {}, "raise": {}, "record": {},
	"repeat": {}, "resourcestring": {}, "result": {}, "set": {}, "shl": {},
	"shr": {}, "specialize": {}, "string": {}, "then": {}, "threadvar": {},
	"to": {}, "try": {}, "type": {}, "unit": {}, "until": {}, "uses": {},
	"var": {}, "while": {}, "with": {}, "xor": {},
	"ret": {}, "err": {},
}

// Ident returns a Pascal identifier for a WIT name.
func Ident(name string) string {
	id := casing.Snake(name)
	if _, ok := keywords[id]; ok {
		return id + "_"
	}
	return id
}
