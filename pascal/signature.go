package pascal

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/errors"
)

// returnKind is how a source-level function hands back its result.
type returnKind uint8

const (
	// returnIndirect writes every result through an out-parameter.
	returnIndirect returnKind = iota
	returnVoid
	// returnOptionBool returns is_some and writes the payload to ret.
	returnOptionBool
	// returnResultBool returns not is_err and writes ok to ret, err to err.
	returnResultBool
	// returnType returns the value directly.
	returnType
)

type funcReturn struct {
	kind returnKind
	// typ is the directly returned type for returnType, the payload for
	// returnOptionBool.
	typ wit.Type
	// ok and err are the payloads of returnResultBool, either may be nil.
	ok, err wit.Type
	// retptrs are the types written through out-parameters.
	retptrs []wit.Type
}

type sigParam struct {
	byPointer bool
	name      string
}

// csig is the source-level signature of a function binding.
type csig struct {
	name    string
	decl    string
	params  []sigParam
	ret     funcReturn
	retptrs []string
}

// classifyReturn decides how f returns its result in Pascal.
func classifyReturn(f *wit.Function, flatten bool) (funcReturn, error) {
	switch len(f.Results) {
	case 0:
		return funcReturn{kind: returnVoid}, nil
	case 1:
	default:
		return funcReturn{}, errors.New(errors.PhaseGenerate, errors.KindUnsupported).
			Detail("multi-value return not supported").
			Build()
	}
	var ret funcReturn
	ret.returnSingle(f.Results[0].Type, f.Results[0].Type, flatten)
	return ret, nil
}

func (r *funcReturn) returnSingle(t, orig wit.Type, flatten bool) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		if _, ok := t.(wit.String); ok {
			r.retptrs = append(r.retptrs, orig)
			return
		}
		r.kind = returnType
		r.typ = orig
		return
	}

	switch k := td.Kind.(type) {
	case wit.Type:
		r.returnSingle(k, orig, flatten)
		return
	case *wit.Flags, *wit.Enum, *wit.Own, *wit.Borrow:
		r.kind = returnType
		r.typ = orig
		return
	case *wit.Option:
		if flatten {
			r.kind = returnOptionBool
			r.typ = k.Type
			r.retptrs = append(r.retptrs, k.Type)
			return
		}
	case *wit.Result:
		if flatten {
			r.kind = returnResultBool
			r.ok = k.OK
			r.err = k.Err
			if k.OK != nil {
				r.retptrs = append(r.retptrs, k.OK)
			}
			if k.Err != nil {
				r.retptrs = append(r.retptrs, k.Err)
			}
			return
		}
	}
	r.retptrs = append(r.retptrs, orig)
}

// isArgByPointer reports whether parameters of type t are passed by
// pointer.
func isArgByPointer(t wit.Type) bool {
	switch typ := t.(type) {
	case wit.String:
		return true
	case *wit.TypeDef:
		switch k := typ.Kind.(type) {
		case wit.Type:
			return isArgByPointer(k)
		case *wit.Variant, *wit.Option, *wit.Result, *wit.Tuple, *wit.Record, *wit.List:
			return true
		}
	}
	return false
}

// flattenedOption returns the payload of an option parameter that is
// passed as a nilable pointer.
func flattenedOption(t wit.Type, flatten bool) (wit.Type, bool) {
	if !flatten {
		return nil, false
	}
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil, false
	}
	if opt, ok := td.Kind.(*wit.Option); ok {
		return opt.Type, true
	}
	return nil, false
}

// printSig writes the declaration of f's binding to the header and
// registers it. External declarations are bound to the symbol the user
// implements.
func (ig *ifaceGen) printSig(f *wit.Function, external bool) (*csig, error) {
	g := ig.g
	flatten := !g.opts.NoSigFlattening
	name := g.namer.FuncName(ig.key, f, !ig.inImport)
	if err := g.names.Insert(name); err != nil {
		return nil, err
	}

	ret, err := classifyReturn(f, flatten)
	if err != nil {
		return nil, err
	}
	sig := &csig{name: name, ret: ret}

	var retType string
	switch ret.kind {
	case returnOptionBool, returnResultBool:
		retType = "boolean"
	case returnType:
		if retType, err = g.typeName(ret.typ); err != nil {
			return nil, err
		}
	}

	var params []string
	for _, p := range f.Params {
		byPointer := isArgByPointer(p.Type)
		id := Ident(p.Name)
		printName, printType := id, p.Type
		payload, flat := flattenedOption(p.Type, flatten)
		if flat {
			printName, printType = "maybe_"+id, payload
		}
		tn, err := g.typeName(printType)
		if err != nil {
			return nil, err
		}
		if byPointer {
			tn = "P" + tn
		}
		params = append(params, printName+": "+tn)
		sig.params = append(sig.params, sigParam{byPointer: byPointer && !flat, name: id})
	}

	for i, t := range ret.retptrs {
		var rp string
		switch {
		case ret.kind == returnResultBool:
			if i == 0 && ret.ok != nil {
				rp = "ret"
			} else {
				rp = "err"
			}
		case len(ret.retptrs) == 1:
			rp = "ret"
		default:
			rp = fmt.Sprintf("ret%d", i)
		}
		tn, err := g.typeName(t)
		if err != nil {
			return nil, err
		}
		params = append(params, rp+": P"+tn)
		sig.retptrs = append(sig.retptrs, rp)
	}

	var b strings.Builder
	if retType != "" {
		b.WriteString("function ")
	} else {
		b.WriteString("procedure ")
	}
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(strings.Join(params, "; "))
	b.WriteByte(')')
	if retType != "" {
		b.WriteString(": ")
		b.WriteString(retType)
	}
	sig.decl = b.String()

	writeDocs(&g.src.hFns, f.Docs)
	if external {
		g.src.hFns.Line("%s; external name '%s';", sig.decl, name)
	} else {
		g.src.hFns.Line("%s;", sig.decl)
	}

	iface := ""
	if ig.key != nil {
		iface = ig.key.String()
	}
	g.funcs = append(g.funcs, FuncInfo{
		Interface: iface,
		WitName:   f.Name,
		Name:      name,
		Decl:      sig.decl,
		Export:    !ig.inImport,
	})
	return sig, nil
}

