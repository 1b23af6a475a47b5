// Package typegraph answers questions about a resolved WIT graph that every
// backend asks: which types are live, in what order they must be defined,
// and what the world's items are called.
package typegraph

import (
	"go.bytecodealliance.org/wit"
)

// Live is an insertion-ordered set of type definitions in which every type
// appears after the types it refers to.
type Live struct {
	seen  map[*wit.TypeDef]struct{}
	order []*wit.TypeDef
}

// Types returns the live types, dependencies first.
func (l *Live) Types() []*wit.TypeDef {
	return l.order
}

// Contains reports whether t is live.
func (l *Live) Contains(t *wit.TypeDef) bool {
	_, ok := l.seen[t]
	return ok
}

func (l *Live) Len() int {
	return len(l.order)
}

// AddInterface adds the types and function signatures of iface.
func (l *Live) AddInterface(iface *wit.Interface) {
	for _, t := range iface.TypeDefs.All() {
		l.AddTypeDef(t)
	}
	for _, f := range iface.Functions.All() {
		l.AddFunc(f)
	}
}

// AddFunc adds every type f mentions, including the resource a method
// belongs to.
func (l *Live) AddFunc(f *wit.Function) {
	switch k := f.Kind.(type) {
	case *wit.Method:
		l.Add(k.Type)
	case *wit.Static:
		l.Add(k.Type)
	case *wit.Constructor:
		l.Add(k.Type)
	}
	for _, p := range f.Params {
		l.Add(p.Type)
	}
	for _, r := range f.Results {
		l.Add(r.Type)
	}
}

// Add adds t if it is a type definition. Primitives are never live.
func (l *Live) Add(t wit.Type) {
	if td, ok := t.(*wit.TypeDef); ok {
		l.AddTypeDef(td)
	}
}

// AddTypeDef adds t after everything it depends on.
func (l *Live) AddTypeDef(t *wit.TypeDef) {
	if t == nil {
		return
	}
	if l.seen == nil {
		l.seen = make(map[*wit.TypeDef]struct{})
	}
	if _, ok := l.seen[t]; ok {
		return
	}

	switch k := t.Kind.(type) {
	case *wit.Record:
		for _, f := range k.Fields {
			l.Add(f.Type)
		}
	case *wit.Tuple:
		for _, typ := range k.Types {
			l.Add(typ)
		}
	case *wit.Variant:
		for _, c := range k.Cases {
			if c.Type != nil {
				l.Add(c.Type)
			}
		}
	case *wit.Option:
		l.Add(k.Type)
	case *wit.Result:
		if k.OK != nil {
			l.Add(k.OK)
		}
		if k.Err != nil {
			l.Add(k.Err)
		}
	case *wit.List:
		l.Add(k.Type)
	case *wit.Own:
		l.AddTypeDef(k.Type)
	case *wit.Borrow:
		l.AddTypeDef(k.Type)
	case *wit.Future:
		if k.Type != nil {
			l.Add(k.Type)
		}
	case *wit.Stream:
		if k.Type != nil {
			l.Add(k.Type)
		}
	case wit.Type:
		l.Add(k)
	}

	// A type can reach itself only through a cycle, which resolved graphs
	// do not contain, so marking after the walk keeps the order stable.
	l.seen[t] = struct{}{}
	l.order = append(l.order, t)
}

// Dealias follows alias definitions to the type they name.
func Dealias(t *wit.TypeDef) *wit.TypeDef {
	for t != nil {
		target, ok := t.Kind.(*wit.TypeDef)
		if !ok {
			return t
		}
		t = target
	}
	return t
}

// IsPrim reports whether t is built only from primitives, lists, options
// and tuples. Such anonymous types are structurally identical wherever they
// appear.
func IsPrim(t wit.Type) bool {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return true
	}
	switch k := td.Kind.(type) {
	case *wit.List:
		return IsPrim(k.Type)
	case *wit.Option:
		return IsPrim(k.Type)
	case *wit.Tuple:
		for _, typ := range k.Types {
			if !IsPrim(typ) {
				return false
			}
		}
		return true
	case wit.Type:
		return IsPrim(k)
	}
	return false
}

// ImportedTypesUsedByExportedInterfaces returns the live types of every
// interface that exported interfaces of w refer to without exporting it
// themselves.
func ImportedTypesUsedByExportedInterfaces(w *wit.World) *Live {
	var exportTypes Live
	exported := make(map[*wit.Interface]struct{})
	for _, item := range w.Exports.All() {
		if ref, ok := item.(*wit.InterfaceRef); ok {
			exported[ref.Interface] = struct{}{}
			exportTypes.AddInterface(ref.Interface)
		}
	}

	var used []*wit.Interface
	seen := make(map[*wit.Interface]struct{})
	for _, t := range exportTypes.Types() {
		owner, ok := t.Owner.(*wit.Interface)
		if !ok {
			continue
		}
		if _, ok := exported[owner]; ok {
			continue
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		used = append(used, owner)
	}

	var importTypes Live
	for _, iface := range used {
		importTypes.AddInterface(iface)
	}
	return &importTypes
}
