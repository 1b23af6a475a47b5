package pascal

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/internal/casing"
	"github.com/wippyai/witbindgen/typegraph"
)

// defineResource registers resource t and emits its handle types and
// intrinsics for the current direction.
func (ig *ifaceGen) defineResource(t *wit.TypeDef) error {
	g := ig.g
	if _, ok := g.resources[t]; ok {
		return errors.AlreadyDefined(errors.PhaseGenerate, "resource", *t.Name)
	}
	ns, err := ig.ownerNamespace(t)
	if err != nil {
		return err
	}
	name := *t.Name
	snake := casing.Snake(name)
	info := &ResourceInfo{
		Own:    ns + "_own_" + snake + "_t",
		Borrow: ns + "_borrow_" + snake + "_t",
		DropFn: "__wasm_import_" + ns + "_" + snake + "_drop",
	}

	module := ig.wasmModule
	if !ig.inImport {
		if ig.key == nil {
			return errors.New(errors.PhaseGenerate, errors.KindUnsupported).
				WitType(name).
				Detail("resource exports from worlds").
				Build()
		}
		info.Direction = Export
		module = "[export]" + ig.key.String()
	}

	hdefs := &g.src.hDefs
	g.src.hHelpers.Line("\nprocedure %s_%s_drop_own(handle: %s);", ns, snake, info.Own)
	g.src.cFns.Line("procedure %s(handle: int32); external '%s' name '[resource-drop]%s';", info.DropFn, module, name)
	g.src.cHelpers.Line("\nprocedure %s_%s_drop_own(handle: %s);", ns, snake, info.Own)
	g.src.cHelpers.Line("begin")
	g.src.cHelpers.Line("  %s(handle.__handle);", info.DropFn)
	g.src.cHelpers.Line("end;")

	writeDocs(hdefs, t.Docs)
	startType(hdefs, info.Own)
	hdefs.Line("record")
	hdefs.Line("    __handle: int32;")
	hdefs.Line("  end;")

	if ig.inImport {
		ig.importResource(info, ns, snake)
	} else {
		ig.exportResource(t, info, ns, snake)
	}

	g.resources[t] = info
	return nil
}

// importResource emits the borrow representation of a host resource.
// Borrows share the own layout under a distinct type.
func (ig *ifaceGen) importResource(info *ResourceInfo, ns, snake string) {
	g := ig.g
	startType(&g.src.hDefs, info.Borrow)
	g.src.hDefs.Line("record")
	g.src.hDefs.Line("    __handle: int32;")
	g.src.hDefs.Line("  end;")

	if g.opts.AutodropBorrows {
		g.src.hHelpers.Line("\nprocedure %s_%s_drop_borrow(handle: %s);", ns, snake, info.Borrow)
		g.src.cHelpers.Line("\nprocedure %s_%s_drop_borrow(handle: %s);", ns, snake, info.Borrow)
		g.src.cHelpers.Line("begin")
		g.src.cHelpers.Line("  %s(handle.__handle);", info.DropFn)
		g.src.cHelpers.Line("end;")
	}

	decl := "function " + ns + "_borrow_" + snake + "(handle: " + info.Own + "): " + info.Borrow + ";"
	g.src.hHelpers.Line("\n%s", decl)
	g.src.cHelpers.Line("\n%s", decl)
	g.src.cHelpers.Line("begin")
	g.src.cHelpers.Line("  %s_borrow_%s.__handle := handle.__handle;", ns, snake)
	g.src.cHelpers.Line("end;")
}

// exportResource emits the user representation of a resource the
// component implements: an opaque record reached through borrows, the
// new/rep intrinsics and the destructor trampoline.
func (ig *ifaceGen) exportResource(t *wit.TypeDef, info *ResourceInfo, ns, snake string) {
	g := ig.g
	hdefs := &g.src.hDefs
	ty := g.typeNames[t]
	module := ig.key.String()
	name := *t.Name
	newFn := "__wasm_import_" + ns + "_" + snake + "_new"
	repFn := "__wasm_import_" + ns + "_" + snake + "_rep"
	dtor := ns + "_" + snake + "_destructor"
	tramp := "__wasm_export_" + ns + "_" + snake + "_dtor"

	startType(hdefs, ty)
	hdefs.Line("record")
	hdefs.Line("  end;")
	hdefs.Line("  %s = P%s;", info.Borrow, ty)

	g.src.hHelpers.Line("\nfunction %s_%s_new(rep: P%s): %s;", ns, snake, ty, info.Own)
	g.src.hHelpers.Line("function %s_%s_rep(handle: %s): P%s;", ns, snake, info.Own, ty)
	g.src.hFns.Line("procedure %s(rep: P%s); external name '%s';", dtor, ty, dtor)

	g.src.cFns.Line("function %s(rep: int32): int32; external '[export]%s' name '[resource-new]%s';", newFn, module, name)
	g.src.cFns.Line("function %s(handle: int32): int32; external '[export]%s' name '[resource-rep]%s';", repFn, module, name)

	g.src.cHelpers.Line("\nfunction %s_%s_new(rep: P%s): %s;", ns, snake, ty, info.Own)
	g.src.cHelpers.Line("begin")
	g.src.cHelpers.Line("  %s_%s_new.__handle := %s(int32(PtrUInt(rep)));", ns, snake, newFn)
	g.src.cHelpers.Line("end;")
	g.src.cHelpers.Line("\nfunction %s_%s_rep(handle: %s): P%s;", ns, snake, info.Own, ty)
	g.src.cHelpers.Line("begin")
	g.src.cHelpers.Line("  %s_%s_rep := P%s(PtrUInt(%s(handle.__handle)));", ns, snake, ty, repFn)
	g.src.cHelpers.Line("end;")

	g.src.cAdapters.Line("\nprocedure %s(arg: P%s);", tramp, ty)
	g.src.cAdapters.Line("begin")
	g.src.cAdapters.Line("  %s(arg);", dtor)
	g.src.cAdapters.Line("end;")
	g.exports = append(g.exports, exportEntry{symbol: tramp, name: module + "#[dtor]" + name})
}

// containsDroppableBorrow reports whether values of t carry borrows of
// imported resources that an export adapter must drop.
func (ig *ifaceGen) containsDroppableBorrow(t wit.Type) bool {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return false
	}
	switch k := td.Kind.(type) {
	case *wit.Borrow:
		if ig.inImport {
			return false
		}
		info, ok := ig.g.resources[typegraph.Dealias(k.Type)]
		return ok && info.Direction == Import
	case *wit.Record:
		for _, f := range k.Fields {
			if ig.containsDroppableBorrow(f.Type) {
				return true
			}
		}
	case *wit.Tuple:
		for _, typ := range k.Types {
			if ig.containsDroppableBorrow(typ) {
				return true
			}
		}
	case *wit.Variant:
		for _, c := range k.Cases {
			if c.Type != nil && ig.containsDroppableBorrow(c.Type) {
				return true
			}
		}
	case *wit.Option:
		return ig.containsDroppableBorrow(k.Type)
	case *wit.Result:
		return (k.OK != nil && ig.containsDroppableBorrow(k.OK)) ||
			(k.Err != nil && ig.containsDroppableBorrow(k.Err))
	case *wit.List:
		return ig.containsDroppableBorrow(k.Type)
	case wit.Type:
		return ig.containsDroppableBorrow(k)
	}
	return false
}
