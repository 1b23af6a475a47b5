package typegraph

import (
	stderrors "errors"
	"slices"
	"testing"

	"github.com/coreos/go-semver/semver"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/errors"
)

func named(name string, kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Name: &name, Kind: kind}
}

func anon(kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Kind: kind}
}

func pkg(ns, name, version string) *wit.Package {
	p := &wit.Package{Name: wit.Ident{Namespace: ns, Package: name}}
	if version != "" {
		p.Name.Version = semver.New(version)
	}
	return p
}

func iface(p *wit.Package, name string) *wit.Interface {
	return &wit.Interface{Name: &name, Package: p}
}

func TestLive_DependenciesFirst(t *testing.T) {
	point := named("point", &wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.U32{}},
	}})
	list := anon(&wit.List{Type: point})
	opt := anon(&wit.Option{Type: list})
	res := named("file", &wit.Resource{})
	own := anon(&wit.Own{Type: res})

	var l Live
	l.AddFunc(&wit.Function{
		Name:    "f",
		Kind:    &wit.Freestanding{},
		Params:  []wit.Param{{Name: "a", Type: opt}, {Name: "b", Type: own}},
		Results: []wit.Param{{Type: wit.String{}}},
	})
	l.Add(opt)

	want := []*wit.TypeDef{point, list, opt, res, own}
	if !slices.Equal(l.Types(), want) {
		t.Fatalf("Types() has %d entries in the wrong order", l.Len())
	}
	for _, td := range want {
		if !l.Contains(td) {
			t.Errorf("Contains(%s) = false", TypeString(td))
		}
	}
}

func TestLive_MethodResource(t *testing.T) {
	res := named("blob", &wit.Resource{})
	var l Live
	l.AddFunc(&wit.Function{Name: "[method]blob.size", Kind: &wit.Method{Type: res}})
	if !l.Contains(res) {
		t.Error("method receiver resource should be live")
	}
}

func TestDealias(t *testing.T) {
	res := named("r", &wit.Resource{})
	a1 := named("a1", res)
	a2 := named("a2", a1)

	if got := Dealias(a2); got != res {
		t.Errorf("Dealias(a2) = %v, want resource", TypeString(got))
	}
	if got := Dealias(res); got != res {
		t.Error("Dealias of a non-alias should be identity")
	}
	if Dealias(nil) != nil {
		t.Error("Dealias(nil) should be nil")
	}
}

func TestIsPrim(t *testing.T) {
	rec := named("r", &wit.Record{})
	tests := []struct {
		typ  wit.Type
		name string
		want bool
	}{
		{name: "u8", typ: wit.U8{}, want: true},
		{name: "string", typ: wit.String{}, want: true},
		{name: "list<u8>", typ: anon(&wit.List{Type: wit.U8{}}), want: true},
		{name: "option<string>", typ: anon(&wit.Option{Type: wit.String{}}), want: true},
		{name: "tuple<u8,u32>", typ: anon(&wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U32{}}}), want: true},
		{name: "tuple<u8,r>", typ: anon(&wit.Tuple{Types: []wit.Type{wit.U8{}, rec}}), want: false},
		{name: "list<r>", typ: anon(&wit.List{Type: rec}), want: false},
		{name: "result", typ: anon(&wit.Result{OK: wit.U8{}}), want: false},
		{name: "record", typ: rec, want: false},
		{name: "alias of list", typ: named("bytes", anon(&wit.List{Type: wit.U8{}})), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPrim(tt.typ); got != tt.want {
				t.Errorf("IsPrim() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	res := named("fd", &wit.Resource{})
	tests := []struct {
		typ  wit.Type
		name string
		want string
	}{
		{name: "char", typ: wit.Char{}, want: "char32"},
		{name: "named", typ: named("HttpRequest", &wit.Record{}), want: "http_request"},
		{name: "list", typ: anon(&wit.List{Type: wit.U8{}}), want: "list_u8"},
		{name: "option", typ: anon(&wit.Option{Type: wit.String{}}), want: "option_string"},
		{name: "tuple", typ: anon(&wit.Tuple{Types: []wit.Type{wit.U8{}, wit.U32{}}}), want: "tuple2_u8_u32"},
		{name: "result void", typ: anon(&wit.Result{}), want: "result_void_void"},
		{name: "result err", typ: anon(&wit.Result{Err: wit.String{}}), want: "result_void_string"},
		{name: "own", typ: anon(&wit.Own{Type: res}), want: "own_fd"},
		{name: "borrow", typ: anon(&wit.Borrow{Type: res}), want: "borrow_fd"},
		{name: "nested", typ: anon(&wit.List{Type: anon(&wit.Option{Type: wit.S16{}})}), want: "list_option_s16"},
		{name: "anonymous alias", typ: anon(wit.F64{}), want: "f64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.typ)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncode_Unsupported(t *testing.T) {
	for _, kind := range []wit.TypeDefKind{&wit.Record{}, &wit.Flags{}, &wit.Enum{}, &wit.Variant{}, &wit.Resource{}} {
		_, err := Encode(anon(kind))
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseGenerate, Kind: errors.KindUnsupported}) {
			t.Errorf("Encode(anonymous %s) error = %v, want unsupported", kindName(kind), err)
		}
	}
}

func TestKey(t *testing.T) {
	p := pkg("wasi", "io", "0.2.0")
	streams := iface(p, "streams")

	k := WorldKey("wasi:io/streams@0.2.0", &wit.InterfaceRef{Interface: streams})
	if !k.IsInterface() {
		t.Error("package-qualified key should be an interface key")
	}
	if k.String() != "wasi:io/streams@0.2.0" {
		t.Errorf("String() = %q", k.String())
	}

	local := WorldKey("my-host", &wit.InterfaceRef{Interface: &wit.Interface{}})
	if local.IsInterface() {
		t.Error("inline interface should use its world-local name")
	}
	if local.String() != "my-host" {
		t.Errorf("String() = %q", local.String())
	}
}

func TestNamer_InterfaceIdentifier(t *testing.T) {
	v1 := pkg("my-org", "http-types", "1.0.0")
	v2 := pkg("my-org", "http-types", "2.0.0-rc.1")
	single := pkg("wasi", "cli", "0.2.0")
	resolve := &wit.Resolve{Packages: []*wit.Package{v1, v2, single}}

	handlerV2 := iface(v2, "handler")
	env := iface(single, "environment")
	keyV2 := Key{Name: InterfaceID(handlerV2), Interface: handlerV2}
	keyEnv := Key{Name: InterfaceID(env), Interface: env}
	keyLocal := Key{Name: "Local-Thing"}

	n := NewNamer(resolve, "my-world")
	tests := []struct {
		name   string
		key    Key
		export bool
		want   string
	}{
		{name: "world-local", key: keyLocal, want: "local_thing"},
		{name: "world-local export", key: keyLocal, export: true, want: "local_thing"},
		{name: "interface", key: keyEnv, want: "wasi_cli_environment"},
		{name: "interface export", key: keyEnv, export: true, want: "exports_wasi_cli_environment"},
		{name: "multi-version", key: keyV2, want: "my_org_http_types_2_0_0_rc_1_handler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.InterfaceIdentifier(tt.key, tt.export); got != tt.want {
				t.Errorf("InterfaceIdentifier() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("rename", func(t *testing.T) {
		n.Rename(keyEnv, "env")
		if got := n.InterfaceIdentifier(keyEnv, false); got != "env" {
			t.Errorf("import = %q, want env", got)
		}
		if got := n.InterfaceIdentifier(keyEnv, true); got != "exports_env" {
			t.Errorf("export = %q, want exports_env", got)
		}
	})
}

func TestNamer_FuncName(t *testing.T) {
	p := pkg("wasi", "cli", "")
	env := iface(p, "environment")
	k := Key{Name: InterfaceID(env), Interface: env}
	n := NewNamer(nil, "TheWorld")

	f := &wit.Function{Name: "[method]blob.get-size"}
	if got := n.FuncName(&k, f, false); got != "wasi_cli_environment_method_blob_get_size" {
		t.Errorf("FuncName() = %q", got)
	}
	g := &wit.Function{Name: "run"}
	if got := n.FuncName(nil, g, true); got != "exports_the_world_run" {
		t.Errorf("FuncName() = %q", got)
	}
	if got := n.FuncName(nil, g, false); got != "the_world_run" {
		t.Errorf("FuncName() = %q", got)
	}
}

func TestImportedTypesUsedByExportedInterfaces(t *testing.T) {
	p := pkg("test", "pkg", "")
	types := iface(p, "types")
	unrelated := iface(p, "unrelated")
	api := iface(p, "api")

	shared := named("shared", &wit.Record{Fields: []wit.Field{{Name: "a", Type: wit.U8{}}}})
	shared.Owner = types
	other := named("other", &wit.Enum{Cases: []wit.EnumCase{{Name: "x"}}})
	other.Owner = unrelated
	types.TypeDefs.Set("shared", shared)
	unrelated.TypeDefs.Set("other", other)
	api.Functions.Set("get", &wit.Function{
		Name:    "get",
		Kind:    &wit.Freestanding{},
		Results: []wit.Param{{Type: shared}},
	})

	w := &wit.World{Name: "w"}
	w.Imports.Set(InterfaceID(types), &wit.InterfaceRef{Interface: types})
	w.Imports.Set(InterfaceID(unrelated), &wit.InterfaceRef{Interface: unrelated})
	w.Exports.Set(InterfaceID(api), &wit.InterfaceRef{Interface: api})

	used := ImportedTypesUsedByExportedInterfaces(w)
	if !used.Contains(shared) {
		t.Error("type used by an exported interface should be kept")
	}
	if used.Contains(other) {
		t.Error("type of an unrelated import should not be kept")
	}
}
