package pascal

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/abi"
	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/internal/casing"
	"github.com/wippyai/witbindgen/source"
	"github.com/wippyai/witbindgen/typegraph"
)

func intRepr(i abi.Int) string {
	switch i {
	case abi.U8:
		return "byte"
	case abi.U16:
		return "uint16"
	case abi.U64:
		return "uint64"
	}
	return "uint32"
}

// flagsRepr returns the integer a flags value of n members is stored in.
func flagsRepr(t *wit.TypeDef, n int) (abi.Int, error) {
	repr := abi.FlagsReprOf(n)
	switch {
	case repr.Kind != abi.U32:
		return repr.Kind, nil
	case repr.Words == 1:
		return abi.U32, nil
	case repr.Words == 2:
		return abi.U64, nil
	}
	return 0, errors.New(errors.PhaseGenerate, errors.KindUnsupported).
		WitType(typegraph.TypeString(t)).
		Detail("flags with %d members", n).
		Build()
}

func writeDocs(src *source.Source, docs wit.Docs) {
	text := strings.TrimSpace(docs.Contents)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		src.Line("// %s", line)
	}
}

// startType opens a type section declaring name and its pointer types,
// leaving the definition of name open.
func startType(src *source.Source, name string) {
	src.Push("\ntype\n")
	src.Line("  PP%s = ^P%s;", name, name)
	src.Line("  P%s = ^%s;", name, name)
	src.Printf("  %s = ", name)
}

// defineType emits the declaration of a named type.
func (ig *ifaceGen) defineType(t *wit.TypeDef) error {
	g := ig.g
	hdefs := &g.src.hDefs
	name := g.typeNames[t]

	switch k := t.Kind.(type) {
	case *wit.Resource:
		return ig.defineResource(t)

	case *wit.Record:
		writeDocs(hdefs, t.Docs)
		startType(hdefs, name)
		hdefs.Line("record")
		for _, f := range k.Fields {
			typ, err := g.typeName(f.Type)
			if err != nil {
				return err
			}
			writeDocs(hdefs, f.Docs)
			hdefs.Line("    %s: %s;", Ident(f.Name), typ)
		}
		hdefs.Line("  end;")

	case *wit.Flags:
		repr, err := flagsRepr(t, len(k.Flags))
		if err != nil {
			return err
		}
		writeDocs(hdefs, t.Docs)
		startType(hdefs, name)
		hdefs.Line("%s;", intRepr(repr))
		if len(k.Flags) > 0 {
			hdefs.Push("\n")
		}
		ns, err := ig.ownerNamespace(t)
		if err != nil {
			return err
		}
		one := "1"
		if repr == abi.U64 {
			one = "uint64(1)"
		}
		for i, f := range k.Flags {
			writeDocs(hdefs, f.Docs)
			hdefs.Line("const %s_%s_%s = %s shl %d;", casing.Shouty(ns), casing.Shouty(*t.Name), casing.Shouty(f.Name), one, i)
		}

	case *wit.Enum:
		writeDocs(hdefs, t.Docs)
		startType(hdefs, name)
		hdefs.Line("%s;", intRepr(abi.DiscriminantType(len(k.Cases))))
		if len(k.Cases) > 0 {
			hdefs.Push("\n")
		}
		ns, err := ig.ownerNamespace(t)
		if err != nil {
			return err
		}
		for i, c := range k.Cases {
			writeDocs(hdefs, c.Docs)
			hdefs.Line("const %s_%s_%s = %d;", casing.Shouty(ns), casing.Shouty(*t.Name), casing.Shouty(c.Name), i)
		}

	case *wit.Variant:
		ns, err := ig.ownerNamespace(t)
		if err != nil {
			return err
		}
		prefix := casing.Shouty(ns) + "_" + casing.Shouty(*t.Name)
		hdefs.Push("\n")
		for i, c := range k.Cases {
			writeDocs(hdefs, c.Docs)
			hdefs.Line("const %s_%s = %d;", prefix, casing.Shouty(c.Name), i)
		}
		writeDocs(hdefs, t.Docs)
		startType(hdefs, name)
		hdefs.Line("record")
		tag := intRepr(abi.DiscriminantType(len(k.Cases)))
		var cases []wit.Case
		for _, c := range k.Cases {
			if c.Type != nil {
				cases = append(cases, c)
			}
		}
		if len(cases) == 0 {
			hdefs.Line("    tag: %s;", tag)
		} else {
			hdefs.Line("    case tag: %s of", tag)
			for _, c := range cases {
				typ, err := g.typeName(c.Type)
				if err != nil {
					return err
				}
				hdefs.Line("      %s_%s: (%s: %s);", prefix, casing.Shouty(c.Name), Ident(c.Name), typ)
			}
		}
		hdefs.Line("  end;")

	case *wit.Tuple, *wit.Option, *wit.Result, *wit.List:
		writeDocs(hdefs, t.Docs)
		return ig.defineAnonymousType(t)

	case *wit.Own, *wit.Borrow:
		writeDocs(hdefs, t.Docs)
		return ig.defineHandle(t)

	case wit.Type:
		if td, ok := k.(*wit.TypeDef); ok {
			if _, ok := typegraph.Dealias(td).Kind.(*wit.Resource); ok {
				return nil
			}
		}
		target, err := g.typeName(k)
		if err != nil {
			return err
		}
		writeDocs(hdefs, t.Docs)
		startType(hdefs, name)
		hdefs.Line("%s;", target)

	default:
		return errors.Unsupported(errors.PhaseGenerate, typegraph.KindName(t)+" types")
	}
	return nil
}

// defineAnonymousType emits the declaration of a structural type.
func (ig *ifaceGen) defineAnonymousType(t *wit.TypeDef) error {
	g := ig.g
	hdefs := &g.src.hDefs
	name := g.typeNames[t]

	switch k := t.Kind.(type) {
	case *wit.Own, *wit.Borrow:
		return ig.defineHandle(t)

	case *wit.Tuple:
		startType(hdefs, name)
		hdefs.Line("record")
		for i, typ := range k.Types {
			tn, err := g.typeName(typ)
			if err != nil {
				return err
			}
			hdefs.Line("    f%d: %s;", i, tn)
		}
		hdefs.Line("  end;")

	case *wit.Option:
		tn, err := g.typeName(k.Type)
		if err != nil {
			return err
		}
		startType(hdefs, name)
		hdefs.Line("record")
		hdefs.Line("    is_some: Boolean;")
		hdefs.Line("    val: %s;", tn)
		hdefs.Line("  end;")

	case *wit.Result:
		startType(hdefs, name)
		hdefs.Line("record")
		if k.OK == nil && k.Err == nil {
			hdefs.Line("    is_err: Boolean;")
		} else {
			hdefs.Line("    case is_err: Boolean of")
			if k.OK != nil {
				tn, err := g.typeName(k.OK)
				if err != nil {
					return err
				}
				hdefs.Line("      false: (ok: %s);", tn)
			}
			if k.Err != nil {
				tn, err := g.typeName(k.Err)
				if err != nil {
					return err
				}
				hdefs.Line("      true: (err: %s);", tn)
			}
		}
		hdefs.Line("  end;")

	case *wit.List:
		tn, err := g.typeName(k.Type)
		if err != nil {
			return err
		}
		startType(hdefs, name)
		hdefs.Line("record")
		hdefs.Line("    ptr: P%s;", tn)
		hdefs.Line("    len: SizeUInt;")
		hdefs.Line("  end;")

	case wit.Type:
		target, err := g.typeName(k)
		if err != nil {
			return err
		}
		startType(hdefs, name)
		hdefs.Line("%s;", target)

	default:
		return errors.Unsupported(errors.PhaseGenerate, "anonymous "+typegraph.KindName(t)+" types")
	}
	return nil
}

func (ig *ifaceGen) defineHandle(t *wit.TypeDef) error {
	g := ig.g
	res := typegraph.Dealias(handleResource(t))
	info, ok := g.resources[res]
	if !ok {
		return errors.NotFound(errors.PhaseGenerate, "resource", typegraph.TypeString(res))
	}
	target := info.Own
	if _, ok := t.Kind.(*wit.Borrow); ok {
		target = info.Borrow
	}
	startType(&g.src.hDefs, g.typeNames[t])
	g.src.hDefs.Line("%s;", target)
	return nil
}

// defineConstructor emits {prefix}_create for records, tuples and lists.
func (ig *ifaceGen) defineConstructor(t *wit.TypeDef) error {
	g := ig.g
	name := g.typeNames[t]
	fn := prefix(name) + "_create"

	var params []string
	var assigns []string
	switch k := t.Kind.(type) {
	case *wit.Record:
		for _, f := range k.Fields {
			tn, err := g.typeName(f.Type)
			if err != nil {
				return err
			}
			id := Ident(f.Name)
			params = append(params, fmt.Sprintf("const a%s: %s", id, tn))
			assigns = append(assigns, fmt.Sprintf("%s.%s := a%s;", fn, id, id))
		}
	case *wit.Tuple:
		for i, typ := range k.Types {
			tn, err := g.typeName(typ)
			if err != nil {
				return err
			}
			params = append(params, fmt.Sprintf("const a%d: %s", i, tn))
			assigns = append(assigns, fmt.Sprintf("%s.f%d := a%d;", fn, i, i))
		}
	case *wit.List:
		tn, err := g.typeName(k.Type)
		if err != nil {
			return err
		}
		params = []string{"ptr: P" + tn, "len: SizeUInt"}
		assigns = []string{fn + ".ptr := ptr;", fn + ".len := len;"}
	default:
		return nil
	}

	decl := fmt.Sprintf("function %s(%s): %s;", fn, strings.Join(params, "; "), name)
	g.src.hHelpers.Line("%s", decl)
	g.src.cHelpers.Line("\n%s", decl)
	g.src.cHelpers.Line("begin")
	for _, a := range assigns {
		g.src.cHelpers.Line("  %s", a)
	}
	g.src.cHelpers.Line("end;")
	return nil
}

// defineDtor emits {prefix}_free when values of t own heap memory.
func (ig *ifaceGen) defineDtor(t *wit.TypeDef) error {
	g := ig.g
	name := g.typeNames[t]
	pfx := prefix(name)

	var body source.Source
	var vars varList
	body.Indent()

	switch k := t.Kind.(type) {
	case wit.Type:
		g.free(&body, k, "ptr")

	case *wit.Record:
		for _, f := range k.Fields {
			g.free(&body, f.Type, fmt.Sprintf("@(ptr^.%s)", Ident(f.Name)))
		}

	case *wit.Tuple:
		for i, typ := range k.Types {
			g.free(&body, typ, fmt.Sprintf("@(ptr^.f%d)", i))
		}

	case *wit.List:
		tn, err := g.typeName(k.Type)
		if err != nil {
			return err
		}
		var elem source.Source
		elem.Indent()
		elem.Indent()
		elem.Indent()
		g.free(&elem, k.Type, "@list_ptr[i]")

		_ = vars.insert("list_len", "SizeUInt")
		_ = vars.insert("list_ptr", "P"+tn)
		if elem.Len() > 0 {
			_ = vars.insert("i", "SizeUInt")
		}
		body.Line("list_len := ptr^.len;")
		body.Line("if list_len > 0 then")
		body.Line("begin")
		body.Line("  list_ptr := ptr^.ptr;")
		if elem.Len() > 0 {
			body.Line("  for i := 0 to list_len - 1 do")
			body.Line("  begin")
			body.Push(elem.String())
			body.Line("  end;")
		}
		body.Line("  FreeMem(list_ptr);")
		body.Line("end;")

	case *wit.Variant:
		var arms source.Source
		arms.Indent()
		for i, c := range k.Cases {
			if c.Type == nil {
				continue
			}
			var arm source.Source
			arm.Indent()
			arm.Indent()
			g.free(&arm, c.Type, fmt.Sprintf("@(ptr^.%s)", Ident(c.Name)))
			if arm.Len() == 0 {
				continue
			}
			arms.Line("%d:", i)
			arms.Line("begin")
			arms.Push(arm.String())
			arms.Line("end;")
		}
		if arms.Len() > 0 {
			body.Line("case int32(ptr^.tag) of")
			body.Push(arms.String())
			body.Line("end;")
		}

	case *wit.Option:
		var inner source.Source
		inner.Indent()
		inner.Indent()
		g.free(&inner, k.Type, "@(ptr^.val)")
		if inner.Len() > 0 {
			body.Line("if ptr^.is_some then")
			body.Line("begin")
			body.Push(inner.String())
			body.Line("end;")
		}

	case *wit.Result:
		var ok, failed source.Source
		ok.Indent()
		ok.Indent()
		failed.Indent()
		failed.Indent()
		if k.OK != nil {
			g.free(&ok, k.OK, "@(ptr^.ok)")
		}
		if k.Err != nil {
			g.free(&failed, k.Err, "@(ptr^.err)")
		}
		switch {
		case ok.Len() > 0 && failed.Len() > 0:
			body.Line("if not ptr^.is_err then")
			body.Line("begin")
			body.Push(ok.String())
			body.Line("end else begin")
			body.Push(failed.String())
			body.Line("end;")
		case ok.Len() > 0:
			body.Line("if not ptr^.is_err then")
			body.Line("begin")
			body.Push(ok.String())
			body.Line("end;")
		case failed.Len() > 0:
			body.Line("if ptr^.is_err then")
			body.Line("begin")
			body.Push(failed.String())
			body.Line("end;")
		}
	}

	if body.Len() == 0 {
		return nil
	}

	decl := fmt.Sprintf("procedure %s_free(ptr: P%s);", pfx, name)
	g.src.hHelpers.Line("\n%s", decl)
	g.src.cHelpers.Line("\n%s", decl)
	g.src.cHelpers.Push(vars.String())
	g.src.cHelpers.Line("begin")
	g.src.cHelpers.Push(body.String())
	g.src.cHelpers.Line("end;")
	g.dtorFuncs[name] = pfx + "_free"
	return nil
}

// free writes the statement releasing the value of type t at address expr,
// if t owns heap memory.
func (g *Generator) free(src *source.Source, t wit.Type, expr string) {
	switch typ := t.(type) {
	case wit.String:
		g.needsString = true
		src.Line("%s_string_free(%s);", g.worldSnake(), expr)
	case *wit.TypeDef:
		name, ok := g.typeNames[typ]
		if !ok {
			return
		}
		if dtor, ok := g.dtorFuncs[name]; ok {
			src.Line("%s(%s);", dtor, expr)
		}
	}
}
