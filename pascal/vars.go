package pascal

import (
	"strings"

	"github.com/wippyai/witbindgen/errors"
)

// varList is the var section of a generated routine, in declaration order.
type varList struct {
	names []string
	types map[string]string
}

func (v *varList) insert(name, typ string) error {
	if v.types == nil {
		v.types = make(map[string]string)
	}
	if _, ok := v.types[name]; ok {
		return errors.AlreadyDefined(errors.PhaseGenerate, "local", name)
	}
	v.types[name] = typ
	v.names = append(v.names, name)
	return nil
}

func (v *varList) empty() bool {
	return len(v.names) == 0
}

func (v *varList) String() string {
	if v.empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("var\n")
	for _, name := range v.names {
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(v.types[name])
		b.WriteString(";\n")
	}
	return b.String()
}
