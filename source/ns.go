package source

import (
	"strconv"

	"github.com/wippyai/witbindgen/errors"
)

// Ns allocates unique identifiers within one scope.
type Ns struct {
	defined map[string]struct{}
	next    int
}

// Insert reserves name, failing if it is already taken.
func (n *Ns) Insert(name string) error {
	if n.defined == nil {
		n.defined = make(map[string]struct{})
	}
	if _, ok := n.defined[name]; ok {
		return errors.AlreadyDefined(errors.PhaseGenerate, "name", name)
	}
	n.defined[name] = struct{}{}
	return nil
}

// Tmp returns name, or name suffixed with a counter if name is taken, and
// reserves the result.
func (n *Ns) Tmp(name string) string {
	if n.defined == nil {
		n.defined = make(map[string]struct{})
	}
	ret := name
	for {
		if _, ok := n.defined[ret]; !ok {
			break
		}
		ret = name + strconv.Itoa(n.next)
		n.next++
	}
	n.defined[ret] = struct{}{}
	return ret
}

// Contains reports whether name is taken.
func (n *Ns) Contains(name string) bool {
	_, ok := n.defined[name]
	return ok
}
