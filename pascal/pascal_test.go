package pascal

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/abi"
	"github.com/wippyai/witbindgen/bindgen"
	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/objfile"
	"github.com/wippyai/witbindgen/typegraph"
)

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

func anon(kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Kind: kind}
}

func testPkg() *wit.Package {
	return &wit.Package{Name: wit.Ident{Namespace: "test", Package: "pkg"}}
}

func newIface(p *wit.Package, name string, types ...*wit.TypeDef) *wit.Interface {
	i := &wit.Interface{Name: &name, Package: p}
	for _, t := range types {
		t.Owner = i
		i.TypeDefs.Set(*t.Name, t)
	}
	return i
}

func fn(name string, params []wit.Param, results ...wit.Type) *wit.Function {
	f := &wit.Function{Name: name, Kind: &wit.Freestanding{}, Params: params}
	for _, r := range results {
		f.Results = append(f.Results, wit.Param{Type: r})
	}
	return f
}

func addFuncs(i *wit.Interface, fs ...*wit.Function) *wit.Interface {
	for _, f := range fs {
		i.Functions.Set(f.Name, f)
	}
	return i
}

func importing(w *wit.World, ifaces ...*wit.Interface) *wit.World {
	for _, i := range ifaces {
		w.Imports.Set(typegraph.InterfaceID(i), &wit.InterfaceRef{Interface: i})
	}
	return w
}

func exporting(w *wit.World, ifaces ...*wit.Interface) *wit.World {
	for _, i := range ifaces {
		w.Exports.Set(typegraph.InterfaceID(i), &wit.InterfaceRef{Interface: i})
	}
	return w
}

func generate(opts Options, w *wit.World) (*Generator, *bindgen.Files, error) {
	g, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	files := &bindgen.Files{}
	err = bindgen.Generate(g, &wit.Resolve{Worlds: []*wit.World{w}}, w, files)
	return g, files, err
}

type output struct {
	header string
	impl   string
	unit   string
	files  *bindgen.Files
}

func mustGenerate(t *testing.T, opts Options, w *wit.World) output {
	t.Helper()
	_, files, err := generate(opts, w)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	snake := strings.ReplaceAll(w.Name, "-", "_")
	read := func(name string) string {
		data, ok := files.Get(name)
		if !ok {
			t.Fatalf("file %s missing, have %v", name, files.Names())
		}
		return string(data)
	}
	return output{
		header: read(snake + "h.inc"),
		impl:   read(snake + ".inc"),
		unit:   read(snake + ".pas"),
		files:  files,
	}
}

// routineText returns the implementation of the routine whose heading
// starts with heading.
func routineText(t *testing.T, src, heading string) string {
	t.Helper()
	i := strings.Index(src, heading)
	if i < 0 {
		t.Fatalf("routine %q not found in:\n%s", heading, src)
	}
	rest := src[i:]
	j := strings.Index(rest, "\nend;")
	if j < 0 {
		t.Fatalf("routine %q has no end", heading)
	}
	return rest[:j+len("\nend;")]
}

func assertContains(t *testing.T, src string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(src, w) {
			t.Errorf("missing %q in:\n%s", w, src)
		}
	}
}

func TestImport_OptionReturnFlattened(t *testing.T) {
	api := addFuncs(newIface(testPkg(), "api"),
		fn("f", []wit.Param{{Name: "x", Type: wit.U32{}}}, anon(&wit.Option{Type: wit.U32{}})))
	out := mustGenerate(t, Options{NoObjectFile: true}, importing(&wit.World{Name: "w"}, api))

	assertContains(t, out.header, "function test_pkg_api_f(x: uint32; ret: Puint32): boolean;")
	assertContains(t, out.impl,
		"procedure __wasm_import_test_pkg_api_f(p0: int32; p1: Pbyte); external 'test:pkg/api' name 'f';")

	body := routineText(t, out.impl, "function test_pkg_api_f(")
	assertContains(t, body,
		"__wasm_import_test_pkg_api_f(int32(x), ptr);",
		"ret^ := (option).val;",
		"exit((option).is_some);",
		"option.is_some := false;",
		"option.is_some := true;",
		"ret_area: array[0..0] of int64;",
	)
}

func TestImport_OptionReturnIndirectWithoutFlattening(t *testing.T) {
	api := addFuncs(newIface(testPkg(), "api"),
		fn("f", []wit.Param{{Name: "x", Type: wit.U32{}}}, anon(&wit.Option{Type: wit.U32{}})))
	out := mustGenerate(t, Options{NoObjectFile: true, NoSigFlattening: true}, importing(&wit.World{Name: "w"}, api))

	assertContains(t, out.header, "procedure test_pkg_api_f(x: uint32; ret: Pw_option_u32_t);")
	body := routineText(t, out.impl, "procedure test_pkg_api_f(")
	assertContains(t, body, "ret^ := option;")
}

func TestImport_ResultReturnFlattened(t *testing.T) {
	api := addFuncs(newIface(testPkg(), "api"),
		fn("g", nil, anon(&wit.Result{OK: wit.U32{}, Err: wit.String{}})))
	out := mustGenerate(t, Options{NoObjectFile: true}, importing(&wit.World{Name: "w"}, api))

	assertContains(t, out.header,
		"function test_pkg_api_g(ret: Puint32; err: Pw_string_t): boolean;",
		"w_string_t = record",
		"function w_string_create(ptr: Pchar; len: SizeUInt): w_string_t;",
	)
	body := routineText(t, out.impl, "function test_pkg_api_g(")
	assertContains(t, body,
		"if not (res).is_err then",
		"ret^ := (res).ok;",
		"exit(true);",
		"err^ := (res).err;",
		"exit(false);",
		"w_string_create(Pchar(",
	)
}

func TestExport_ResultReturnFlattened(t *testing.T) {
	api := addFuncs(newIface(testPkg(), "api"),
		fn("g", nil, anon(&wit.Result{OK: wit.U32{}, Err: wit.String{}})))
	out := mustGenerate(t, Options{NoObjectFile: true}, exporting(&wit.World{Name: "w"}, api))

	assertContains(t, out.header,
		"function exports_test_pkg_api_g(ret: Puint32; err: Pw_string_t): boolean; external name 'exports_test_pkg_api_g';")
	body := routineText(t, out.impl, "function __wasm_export_exports_test_pkg_api_g(")
	assertContains(t, body,
		"ret.is_err := not exports_test_pkg_api_g(@ok, @err);",
		"ret.err := err;",
		"ret.ok := ok;",
		"Pbyte(@STATIC_RET_AREA)",
	)
	assertContains(t, out.impl,
		"STATIC_RET_AREA: array[0..",
		"procedure __wasm_export_exports_test_pkg_api_g_post_return(arg0: Pbyte);",
		"__wasm_export_exports_test_pkg_api_g name 'test:pkg/api#g'",
		"__wasm_export_exports_test_pkg_api_g_post_return name 'cabi_post_test:pkg/api#g'",
	)
}

func TestExport_BorrowOfExportedResource(t *testing.T) {
	thing := named("thing", &wit.Resource{})
	api := newIface(testPkg(), "api", thing)
	addFuncs(api, fn("touch", []wit.Param{{Name: "t", Type: anon(&wit.Borrow{Type: thing})}}))
	out := mustGenerate(t, Options{NoObjectFile: true, AutodropBorrows: true}, exporting(&wit.World{Name: "w"}, api))

	assertContains(t, out.header,
		"exports_test_pkg_api_borrow_thing_t = Pexports_test_pkg_api_thing_t;",
		"procedure exports_test_pkg_api_touch(t: exports_test_pkg_api_borrow_thing_t); external name 'exports_test_pkg_api_touch';",
		"procedure exports_test_pkg_api_thing_destructor(rep: Pexports_test_pkg_api_thing_t); external name 'exports_test_pkg_api_thing_destructor';",
	)
	body := routineText(t, out.impl, "procedure __wasm_export_exports_test_pkg_api_touch(")
	assertContains(t, body, "exports_test_pkg_api_touch(Pexports_test_pkg_api_thing_t(PtrUInt(arg)));")
	if strings.Contains(body, "_drop(") {
		t.Errorf("borrow of an exported resource is dropped:\n%s", body)
	}
	assertContains(t, out.impl,
		"external '[export]test:pkg/api' name '[resource-new]thing';",
		"external '[export]test:pkg/api' name '[resource-rep]thing';",
		"__wasm_export_exports_test_pkg_api_thing_dtor name 'test:pkg/api#[dtor]thing'",
	)
}

func TestExport_ImportedBorrowAutodrop(t *testing.T) {
	res := named("res", &wit.Resource{})
	host := newIface(testPkg(), "host", res)
	api := addFuncs(newIface(testPkg(), "api"),
		fn("take", []wit.Param{{Name: "r", Type: anon(&wit.Borrow{Type: res})}}))

	tests := []struct {
		autodrop bool
		drops    int
	}{
		{autodrop: true, drops: 1},
		{autodrop: false, drops: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("autodrop=%v", tt.autodrop), func(t *testing.T) {
			w := exporting(importing(&wit.World{Name: "w"}, host), api)
			out := mustGenerate(t, Options{NoObjectFile: true, AutodropBorrows: tt.autodrop}, w)

			assertContains(t, out.header, "procedure exports_test_pkg_api_take(r: test_pkg_host_borrow_res_t);")
			body := routineText(t, out.impl, "procedure __wasm_export_exports_test_pkg_api_take(")
			if got := strings.Count(body, "__wasm_import_test_pkg_host_res_drop("); got != tt.drops {
				t.Errorf("drops = %d, want %d:\n%s", got, tt.drops, body)
			}
			if !tt.autodrop {
				return
			}
			init := strings.Index(body, "borrow := 0;")
			capture := strings.Index(body, "borrow := arg;")
			drop := strings.Index(body, "if borrow <> 0 then")
			if init < 0 || capture < init || drop < capture {
				t.Errorf("borrow init, capture and drop out of order:\n%s", body)
			}
		})
	}
}

func TestAutodrop_RejectsBorrowsInLists(t *testing.T) {
	res := named("res", &wit.Resource{})
	host := newIface(testPkg(), "host", res)
	api := addFuncs(newIface(testPkg(), "api"),
		fn("take-all", []wit.Param{{Name: "rs", Type: anon(&wit.List{Type: anon(&wit.Borrow{Type: res})})}}))
	w := exporting(importing(&wit.World{Name: "w"}, host), api)

	_, _, err := generate(Options{NoObjectFile: true, AutodropBorrows: true}, w)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseGenerate, Kind: errors.KindPolicyConflict}) {
		t.Fatalf("err = %v, want policy conflict", err)
	}
}

func TestMultiValueReturnRejected(t *testing.T) {
	f := &wit.Function{
		Name: "pair",
		Kind: &wit.Freestanding{},
		Results: []wit.Param{
			{Name: "a", Type: wit.U32{}},
			{Name: "b", Type: wit.U32{}},
		},
	}
	api := addFuncs(newIface(testPkg(), "api"), f)

	for _, dir := range []string{"import", "export"} {
		t.Run(dir, func(t *testing.T) {
			w := &wit.World{Name: "w"}
			if dir == "import" {
				importing(w, api)
			} else {
				exporting(w, api)
			}
			_, files, err := generate(Options{NoObjectFile: true}, w)
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseGenerate, Kind: errors.KindUnsupported}) {
				t.Fatalf("err = %v, want unsupported", err)
			}
			var e *errors.Error
			if stderrors.As(err, &e) && (len(e.Path) == 0 || e.Path[len(e.Path)-1] != "pair") {
				t.Errorf("error path = %v", e.Path)
			}
			if files.Len() != 0 {
				t.Errorf("files written before failure: %v", files.Names())
			}
		})
	}
}

func flags(name string, n int) *wit.TypeDef {
	fl := make([]wit.Flag, n)
	for i := range fl {
		fl[i].Name = fmt.Sprintf("f%d", i)
	}
	return named(name, &wit.Flags{Flags: fl})
}

func TestFlags(t *testing.T) {
	tests := []struct {
		name    string
		members int
		repr    string
		last    string
		lower   []string
	}{
		{"small", 3, "byte", "const TEST_PKG_API_PERMS_F2 = 1 shl 2;", []string{"int32(p)"}},
		{"word", 20, "uint32", "const TEST_PKG_API_PERMS_F19 = 1 shl 19;", []string{"int32(p)"}},
		{"two words", 40, "uint64", "const TEST_PKG_API_PERMS_F39 = uint64(1) shl 39;",
			[]string{"flags := p;", "int32(flags and $FFFFFFFF)", "int32(flags shr 32)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := flags("perms", tt.members)
			api := newIface(testPkg(), "api", perms)
			addFuncs(api,
				fn("set-perms", []wit.Param{{Name: "p", Type: perms}}),
				fn("get-perms", nil, perms))
			out := mustGenerate(t, Options{NoObjectFile: true}, importing(&wit.World{Name: "w"}, api))

			assertContains(t, out.header, "test_pkg_api_perms_t = "+tt.repr+";", tt.last)
			body := routineText(t, out.impl, "procedure test_pkg_api_set_perms(")
			assertContains(t, body, tt.lower...)
		})
	}

	t.Run("two words lift", func(t *testing.T) {
		perms := flags("perms", 40)
		api := newIface(testPkg(), "api", perms)
		addFuncs(api, fn("get-perms", nil, perms))
		out := mustGenerate(t, Options{NoObjectFile: true}, importing(&wit.World{Name: "w"}, api))
		body := routineText(t, out.impl, "function test_pkg_api_get_perms(")
		assertContains(t, body, "test_pkg_api_perms_t(uint32(", ") or (test_pkg_api_perms_t(uint32(", ")) shl 32)")
	})

	t.Run("too many", func(t *testing.T) {
		perms := flags("perms", 65)
		api := newIface(testPkg(), "api", perms)
		_, _, err := generate(Options{NoObjectFile: true}, importing(&wit.World{Name: "w"}, api))
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseGenerate, Kind: errors.KindUnsupported}) {
			t.Fatalf("err = %v, want unsupported", err)
		}
	})
}

func TestPurgeImports_KeepsTypesUsedByExports(t *testing.T) {
	shared := named("shared", &wit.Record{Fields: []wit.Field{{Name: "a", Type: wit.U8{}}}})
	other := named("other", &wit.Enum{Cases: []wit.EnumCase{{Name: "x"}}})
	types := newIface(testPkg(), "types", shared)
	unrelated := newIface(testPkg(), "unrelated", other)
	api := addFuncs(newIface(testPkg(), "api"), fn("get", nil, shared))
	w := exporting(importing(&wit.World{Name: "w"}, types, unrelated), api)

	g, _, err := generate(Options{NoObjectFile: true}, w)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if name, ok := g.TypeName(shared); !ok || name != "test_pkg_types_shared_t" {
		t.Errorf("TypeName(shared) = %q, %v", name, ok)
	}
	if _, ok := g.TypeName(other); ok {
		t.Error("type not reachable from exports survived the purge")
	}
}

func TestTypeRegistration(t *testing.T) {
	point := named("point", &wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.S32{}},
		{Name: "y", Type: wit.S32{}},
	}})
	api := newIface(testPkg(), "api", point)
	w := importing(&wit.World{Name: "w"}, api)

	g, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Preprocess(&wit.Resolve{Worlds: []*wit.World{w}}, w); err != nil {
		t.Fatal(err)
	}
	key := typegraph.WorldKey(typegraph.InterfaceID(api), &wit.InterfaceRef{Interface: api})
	ig := g.ifaceGen(&key, true, key.String())

	for range 2 {
		if err := ig.defineInterfaceTypes(api); err != nil {
			t.Fatalf("defineInterfaceTypes: %v", err)
		}
	}
	if got := strings.Count(g.src.hDefs.String(), "test_pkg_api_point_t = record"); got != 1 {
		t.Errorf("point declared %d times", got)
	}

	alreadyDefined := &errors.Error{Phase: errors.PhaseGenerate, Kind: errors.KindAlreadyDefined}
	if err := g.claim(point, "test_pkg_api_point_t"); !stderrors.Is(err, alreadyDefined) {
		t.Errorf("re-registration: err = %v", err)
	}
	impostor := named("point", &wit.Record{})
	if err := g.claim(impostor, "test_pkg_api_point_t"); !stderrors.Is(err, alreadyDefined) {
		t.Errorf("name collision: err = %v", err)
	}
}

func TestPooledPrimitiveTypes(t *testing.T) {
	a := addFuncs(newIface(testPkg(), "a"), fn("f", []wit.Param{{Name: "l", Type: anon(&wit.List{Type: wit.U8{}})}}))
	b := addFuncs(newIface(testPkg(), "b"), fn("g", []wit.Param{{Name: "l", Type: anon(&wit.List{Type: wit.U8{}})}}))
	out := mustGenerate(t, Options{NoObjectFile: true}, importing(&wit.World{Name: "w"}, a, b))

	if got := strings.Count(out.header, "w_list_u8_t = record"); got != 1 {
		t.Errorf("list<u8> declared %d times", got)
	}
	assertContains(t, out.header,
		"procedure test_pkg_a_f(l: Pw_list_u8_t);",
		"procedure test_pkg_b_g(l: Pw_list_u8_t);",
		"function w_list_u8_create(ptr: Pbyte; len: SizeUInt): w_list_u8_t;",
	)
	assertContains(t, out.impl, "Pbyte((l^).ptr), (l^).len")
}

func TestEmit_Conversions(t *testing.T) {
	g, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	fb := newFuncBindgen(g.ifaceGen(nil, true, "$root"), nil, nil, "")

	tests := []struct {
		op   abi.Opcode
		want string
	}{
		{abi.OpU8FromI32, "byte(x)"},
		{abi.OpS8FromI32, "int8(x)"},
		{abi.OpU16FromI32, "uint16(x)"},
		{abi.OpS16FromI32, "int16(x)"},
		{abi.OpU32FromI32, "uint32(x)"},
		{abi.OpS32FromI32, "x"},
		{abi.OpU64FromI64, "uint64(x)"},
		{abi.OpS64FromI64, "x"},
		{abi.OpI32FromU8, "int32(x)"},
		{abi.OpI32FromS16, "int32(x)"},
		{abi.OpI32FromU32, "int32(x)"},
		{abi.OpI64FromU64, "int64(x)"},
		{abi.OpI64FromS64, "x"},
		{abi.OpCharFromI32, "uint32(x)"},
		{abi.OpI32FromChar, "int32(x)"},
		{abi.OpBoolFromI32, "((x) <> 0)"},
		{abi.OpI32FromBool, "int32(ord(x))"},
		{abi.OpCoreF32FromF32, "x"},
		{abi.OpF64FromCoreF64, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got, err := fb.Emit(&abi.Instruction{Opcode: tt.op}, []string{"x"})
			if err != nil {
				t.Fatalf("Emit: %v", err)
			}
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("Emit(%s) = %v, want %q", tt.op, got, tt.want)
			}
		})
	}
}

func TestPerformCast(t *testing.T) {
	tests := []struct {
		cast   abi.Bitcast
		want   string
		helper string
	}{
		{abi.Bitcast{abi.I32ToF32}, "int32_as_single(x)", "int32_as_single"},
		{abi.Bitcast{abi.I64ToF32}, "int32_as_single(int32(x))", "int32_as_single"},
		{abi.Bitcast{abi.F32ToI32}, "single_as_int32(x)", "single_as_int32"},
		{abi.Bitcast{abi.F32ToI64}, "int64(single_as_int32(x))", "single_as_int32"},
		{abi.Bitcast{abi.I64ToF64}, "int64_as_double(x)", "int64_as_double"},
		{abi.Bitcast{abi.F64ToI64}, "double_as_int64(x)", "double_as_int64"},
		{abi.Bitcast{abi.I32ToI64}, "int64(x)", ""},
		{abi.Bitcast{abi.I64ToI32}, "int32(x)", ""},
		{abi.Bitcast{abi.I32ToP}, "Pbyte(PtrUInt(x))", ""},
		{abi.Bitcast{abi.PToI32}, "int32(PtrUInt(x))", ""},
		{abi.Bitcast{abi.PToP64}, "int64(PtrUInt(x))", ""},
		{abi.Bitcast{abi.I32ToL}, "SizeUInt(x)", ""},
		{abi.Bitcast{abi.P64ToI64, abi.I64ToI32}, "int32(x)", ""},
		{nil, "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			g, err := New(Options{})
			if err != nil {
				t.Fatal(err)
			}
			if got := g.performCast("x", tt.cast); got != tt.want {
				t.Errorf("performCast(%v) = %q, want %q", tt.cast, got, tt.want)
			}
			_, used := g.bitcasts[tt.helper]
			if tt.helper != "" && !used {
				t.Errorf("helper %s not recorded", tt.helper)
			}
			if tt.helper == "" && len(g.bitcasts) != 0 {
				t.Errorf("unexpected helpers %v", g.bitcasts)
			}
		})
	}
}

func TestImport_VariantAndListParams(t *testing.T) {
	shape := named("shape", &wit.Variant{Cases: []wit.Case{
		{Name: "circle", Type: wit.F32{}},
		{Name: "square", Type: wit.U64{}},
		{Name: "none"},
	}})
	api := newIface(testPkg(), "api", shape)
	addFuncs(api,
		fn("draw", []wit.Param{{Name: "s", Type: shape}}),
		fn("names", []wit.Param{{Name: "n", Type: anon(&wit.List{Type: wit.String{}})}}, wit.String{}))
	out := mustGenerate(t, Options{NoObjectFile: true}, importing(&wit.World{Name: "w"}, api))

	assertContains(t, out.header,
		"const TEST_PKG_API_SHAPE_CIRCLE = 0;",
		"case tag: byte of",
		"TEST_PKG_API_SHAPE_CIRCLE: (circle: single);",
		"procedure test_pkg_api_draw(s: Ptest_pkg_api_shape_t);",
		"procedure test_pkg_api_names(n: Pw_list_string_t; ret: Pw_string_t);",
	)
	draw := routineText(t, out.impl, "procedure test_pkg_api_draw(")
	assertContains(t, draw,
		"case int32((s^).tag) of",
		"payload := @((s^).circle);",
		"int64(single_as_int32(payload^))",
	)
	assertContains(t, out.impl, "function single_as_int32(a: single): int32;")

	names := routineText(t, out.impl, "procedure test_pkg_api_names(")
	assertContains(t, names, "Pbyte((n^).ptr), (n^).len", "ret^ := w_string_create(Pchar(")
}

func TestExport_ListOfStringsPostReturn(t *testing.T) {
	api := addFuncs(newIface(testPkg(), "api"),
		fn("names", nil, anon(&wit.List{Type: wit.String{}})))
	out := mustGenerate(t, Options{NoObjectFile: true}, exporting(&wit.World{Name: "w"}, api))

	post := routineText(t, out.impl, "procedure __wasm_export_exports_test_pkg_api_names_post_return(")
	assertContains(t, post,
		"if len > 0 then",
		"for i := 0 to len - 1 do",
		"base := ptr + i * 8;",
		"FreeMem(",
	)
}

func TestFinish_Files(t *testing.T) {
	run := fn("run", nil)
	newWorld := func() *wit.World {
		w := &wit.World{Name: "my-world"}
		w.Exports.Set("run", run)
		w.Imports.Set("now", fn("now", nil, wit.U64{}))
		return w
	}

	t.Run("with object", func(t *testing.T) {
		out := mustGenerate(t, Options{TypeEncoder: objfile.StaticEncoder("payload")}, newWorld())
		names := out.files.Names()
		want := []string{"my_worldh.inc", "my_world.inc", "my_world.pas", "my_world_component_type.o"}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Errorf("files = %v, want %v", names, want)
		}
		assertContains(t, out.impl,
			"procedure __component_type_object_force_link_my_world; external name '__component_type_object_force_link_my_world';",
			"procedure __component_type_object_force_link_my_world_public_use_in_this_compilation_unit;",
		)
	})

	t.Run("without object", func(t *testing.T) {
		out := mustGenerate(t, Options{NoObjectFile: true}, newWorld())
		if _, ok := out.files.Get("my_world_component_type.o"); ok {
			t.Error("object file written")
		}
		if strings.Contains(out.impl, "force_link") {
			t.Error("linking symbol referenced without object file")
		}

		assertContains(t, out.unit,
			"unit my_world;",
			"{$PACKRECORDS C}",
			"{$I my_worldh.inc}",
			"{$I my_world.inc}",
			"end.",
		)
		assertContains(t, out.header,
			"{$ifndef __BINDINGS_MY_WORLD_H}",
			"function my_world_now(): uint64;",
			"procedure exports_my_world_run(); external name 'exports_my_world_run';",
			"{$endif}",
		)
		assertContains(t, out.impl,
			"function cabi_realloc(ptr: Pointer; old_size: SizeUInt; align: SizeUInt; new_size: SizeUInt): Pointer;",
			"function __wasm_import_my_world_now(): int64; external '$root' name 'now';",
			"exports\n  cabi_realloc name 'cabi_realloc',\n  __wasm_export_exports_my_world_run name 'run';",
		)
	})

	t.Run("no helpers", func(t *testing.T) {
		out := mustGenerate(t, Options{NoObjectFile: true, NoHelpers: true}, newWorld())
		if strings.Contains(out.header, "// Helper Functions") {
			t.Error("helpers declared with NoHelpers")
		}
	})
}

func TestStringEncoding(t *testing.T) {
	api := addFuncs(newIface(testPkg(), "api"), fn("greet", []wit.Param{{Name: "name", Type: wit.String{}}}))

	out := mustGenerate(t, Options{NoObjectFile: true, StringEncoding: UTF16}, importing(&wit.World{Name: "w"}, api))
	assertContains(t, out.header,
		"ptr: Pwidechar;",
		"function w_string_len(const s: Pwidechar): SizeUInt;",
	)
	assertContains(t, out.impl, "ret^.len := w_string_len(s);", "ret^.len * 2")

	if _, _, err := generate(Options{StringEncoding: CompactUTF16}, &wit.World{Name: "w"}); err == nil {
		t.Error("compact UTF-16 accepted")
	}
}

func TestRenames(t *testing.T) {
	api := addFuncs(newIface(testPkg(), "api"), fn("f", nil))
	opts := Options{
		NoObjectFile: true,
		RenameWorld:  "other",
		Renames: []Rename{
			{From: "test:pkg/api", To: "my_api"},
			{From: "test:pkg/missing", To: "unused"},
		},
	}
	_, files, err := generate(opts, importing(&wit.World{Name: "w"}, api))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	header, ok := files.Get("otherh.inc")
	if !ok {
		t.Fatalf("files = %v", files.Names())
	}
	assertContains(t, string(header), "procedure my_api_f();")
}

func TestIdent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"name", "name"},
		{"type", "type_"},
		{"end", "end_"},
		{"ret", "ret_"},
		{"err", "err_"},
		{"my-field", "my_field"},
		{"Begin", "begin_"},
	}
	for _, tt := range tests {
		if got := Ident(tt.in); got != tt.want {
			t.Errorf("Ident(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
