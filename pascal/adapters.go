package pascal

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/abi"
	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/typegraph"
)

// ifaceGen generates the items of one interface, or of the world itself
// when key is nil, in one direction.
type ifaceGen struct {
	g          *Generator
	key        *typegraph.Key
	iface      *wit.Interface
	inImport   bool
	wasmModule string
}

// routine renders a procedure or function heading without the trailing
// semicolon.
func routine(name string, params []string, result string) string {
	var b strings.Builder
	if result == "" {
		b.WriteString("procedure ")
	} else {
		b.WriteString("function ")
	}
	b.WriteString(name)
	b.WriteByte('(')
	b.WriteString(strings.Join(params, "; "))
	b.WriteByte(')')
	if result != "" {
		b.WriteString(": ")
		b.WriteString(result)
	}
	return b.String()
}

// retAreaType declares a return area of size bytes. Words of int64 keep it
// aligned for any canonical ABI value.
func retAreaType(size int) string {
	return fmt.Sprintf("array[0..%d] of int64", (size+7)/8-1)
}

func coreSignature(f *wit.Function, variant abi.Variant) (*abi.WasmSignature, error) {
	sig := abi.Signature(variant, f)
	if len(sig.Results) > 1 {
		return nil, errors.New(errors.PhaseGenerate, errors.KindUnsupported).
			Detail("multi-value return not supported").
			Build()
	}
	return sig, nil
}

func coreResult(sig *abi.WasmSignature) string {
	if len(sig.Results) == 0 {
		return ""
	}
	return wasmType(sig.Results[0])
}

// writeRoutine appends a routine implementation to the adapters section.
func (g *Generator) writeRoutine(heading string, vars *varList, body string) {
	src := &g.src.cAdapters
	src.Line("\n%s;", heading)
	src.Push(vars.String())
	src.Line("begin")
	src.Push(body)
	src.Line("end;")
}

// importFunc emits the core import of f and the binding that lowers its
// arguments into a call of it.
func (ig *ifaceGen) importFunc(f *wit.Function) error {
	g := ig.g
	core, err := coreSignature(f, abi.GuestImport)
	if err != nil {
		return err
	}

	name := g.namer.FuncName(ig.key, f, false)
	importName := g.names.Tmp("__wasm_import_" + name)
	var coreParams []string
	for i, t := range core.Params {
		coreParams = append(coreParams, fmt.Sprintf("p%d: %s", i, wasmType(t)))
	}
	g.src.cFns.Line("%s; external '%s' name '%s';", routine(importName, coreParams, coreResult(core)), ig.wasmModule, f.Name)

	sig, err := ig.printSig(f, false)
	if err != nil {
		return err
	}

	fb := newFuncBindgen(ig, f, sig, importName)
	flatten := !g.opts.NoSigFlattening
	for _, p := range sig.params {
		if err := fb.locals.Insert(p.name); err != nil {
			return err
		}
	}
	for _, rp := range sig.retptrs {
		if err := fb.locals.Insert(rp); err != nil {
			return err
		}
	}

	for i, p := range sig.params {
		typ := f.Params[i].Type
		if _, ok := flattenedOption(typ, flatten); ok {
			tn, err := g.typeName(typ)
			if err != nil {
				return err
			}
			if err := fb.vars.insert(p.name, tn); err != nil {
				return err
			}
			fb.src.Line("%s.is_some := maybe_%s <> nil;", p.name, p.name)
			fb.src.Line("if maybe_%s <> nil then", p.name)
			fb.src.Line("begin")
			fb.src.Line("  %s.val := maybe_%s^;", p.name, p.name)
			fb.src.Line("end;")
		}
		if p.byPointer {
			fb.params = append(fb.params, p.name+"^")
		} else {
			fb.params = append(fb.params, p.name)
		}
	}

	if err := abi.Call(g.sizes, fb, abi.GuestImport, abi.LowerArgsLiftResults, f); err != nil {
		return err
	}
	if fb.retAreaSize > 0 {
		if err := fb.vars.insert(fb.retArea, retAreaType(fb.retAreaSize)); err != nil {
			return err
		}
	}

	g.writeRoutine(sig.decl, &fb.vars, fb.body())
	return nil
}

// exportFunc emits the core export adapter calling the user's
// implementation of f and, when results own memory, its post-return.
func (ig *ifaceGen) exportFunc(f *wit.Function) error {
	g := ig.g
	core, err := coreSignature(f, abi.GuestExport)
	if err != nil {
		return err
	}
	module := ""
	if ig.key != nil {
		module = ig.key.String()
	}
	exportName := abi.LegacyExportName(module, f.Name)

	sig, err := ig.printSig(f, true)
	if err != nil {
		return err
	}
	adapter := g.names.Tmp("__wasm_export_" + sig.name)

	fb := newFuncBindgen(ig, f, sig, sig.name)
	var params []string
	for _, t := range core.Params {
		arg := fb.locals.Tmp("arg")
		params = append(params, arg+": "+wasmType(t))
		fb.params = append(fb.params, arg)
	}
	if err := abi.Call(g.sizes, fb, abi.GuestExport, abi.LiftArgsLowerResults, f); err != nil {
		return err
	}
	g.writeRoutine(routine(adapter, params, coreResult(core)), &fb.vars, fb.body())
	g.exports = append(g.exports, exportEntry{symbol: adapter, name: exportName})

	if !abi.NeedsPostReturn(f) {
		return nil
	}
	post := g.names.Tmp(adapter + "_post_return")
	pr := newFuncBindgen(ig, f, sig, "")
	if err := pr.locals.Insert("arg0"); err != nil {
		return err
	}
	pr.params = []string{"arg0"}
	if err := abi.PostReturn(g.sizes, pr, f); err != nil {
		return err
	}
	g.writeRoutine(routine(post, []string{"arg0: Pbyte"}, ""), &pr.vars, pr.body())
	g.exports = append(g.exports, exportEntry{symbol: post, name: "cabi_post_" + exportName})
	return nil
}
