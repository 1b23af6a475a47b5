package bindgen

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/typegraph"
)

type recorder struct {
	calls  []string
	failAt string
}

func (r *recorder) record(call string) error {
	r.calls = append(r.calls, call)
	if call == r.failAt {
		return stderrors.New("boom")
	}
	return nil
}

func (r *recorder) Preprocess(_ *wit.Resolve, w *wit.World) error {
	return r.record("preprocess " + w.Name)
}

func (r *recorder) ImportInterface(key typegraph.Key, _ *wit.Interface, _ *Files) error {
	return r.record("import " + key.String())
}

func (r *recorder) ImportTypes(types []*wit.TypeDef, _ *Files) error {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = *t.Name
	}
	return r.record("types " + strings.Join(names, ","))
}

func (r *recorder) ImportFuncs(funcs []*wit.Function, _ *Files) error {
	return r.record("import funcs " + funcNames(funcs))
}

func (r *recorder) PreExportInterface(_ *Files) error {
	return r.record("pre-export")
}

func (r *recorder) ExportFuncs(funcs []*wit.Function, _ *Files) error {
	return r.record("export funcs " + funcNames(funcs))
}

func (r *recorder) ExportInterface(key typegraph.Key, _ *wit.Interface, _ *Files) error {
	return r.record("export " + key.String())
}

func (r *recorder) Finish(files *Files) error {
	files.Push("out.txt", []byte("done"))
	return r.record("finish")
}

func funcNames(funcs []*wit.Function) string {
	names := make([]string, len(funcs))
	for i, f := range funcs {
		names[i] = f.Name
	}
	return strings.Join(names, ",")
}

func testWorld() *wit.World {
	pkg := &wit.Package{Name: wit.Ident{Namespace: "test", Package: "pkg"}}
	ifaceName := func(name string) *wit.Interface {
		return &wit.Interface{Name: &name, Package: pkg}
	}
	a, b := ifaceName("a"), ifaceName("b")
	tname := "color"

	w := &wit.World{Name: "w"}
	w.Imports.Set("test:pkg/a", &wit.InterfaceRef{Interface: a})
	w.Imports.Set("color", &wit.TypeDef{Name: &tname, Kind: &wit.Enum{}})
	w.Imports.Set("now", &wit.Function{Name: "now", Kind: &wit.Freestanding{}})
	w.Exports.Set("test:pkg/b", &wit.InterfaceRef{Interface: b})
	w.Exports.Set("run", &wit.Function{Name: "run", Kind: &wit.Freestanding{}})
	return w
}

func TestGenerate_Order(t *testing.T) {
	r := &recorder{}
	files := &Files{}
	w := testWorld()
	if err := Generate(r, &wit.Resolve{Worlds: []*wit.World{w}}, w, files); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := []string{
		"preprocess w",
		"import test:pkg/a",
		"types color",
		"import funcs now",
		"pre-export",
		"export funcs run",
		"export test:pkg/b",
		"finish",
	}
	if strings.Join(r.calls, "\n") != strings.Join(want, "\n") {
		t.Errorf("calls:\n%s\nwant:\n%s", strings.Join(r.calls, "\n"), strings.Join(want, "\n"))
	}
	if files.Len() != 1 {
		t.Errorf("files = %v", files.Names())
	}
}

func TestGenerate_StopsAtFirstError(t *testing.T) {
	r := &recorder{failAt: "pre-export"}
	files := &Files{}
	w := testWorld()
	err := Generate(r, &wit.Resolve{Worlds: []*wit.World{w}}, w, files)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("err = %v", err)
	}
	if last := r.calls[len(r.calls)-1]; last != "pre-export" {
		t.Errorf("last call = %q", last)
	}
	if files.Len() != 0 {
		t.Errorf("files = %v", files.Names())
	}
}

func TestFiles(t *testing.T) {
	var f Files
	f.Push("b.inc", []byte("1"))
	f.Push("a.inc", []byte("2"))
	f.Push("b.inc", []byte("3"))

	if got := strings.Join(f.Names(), ","); got != "b.inc,a.inc" {
		t.Errorf("Names() = %s", got)
	}
	if data, ok := f.Get("b.inc"); !ok || string(data) != "3" {
		t.Errorf("Get(b.inc) = %q, %v", data, ok)
	}
	if _, ok := f.Get("c.inc"); ok {
		t.Error("Get(c.inc) found a file")
	}

	var order []string
	for name := range f.All() {
		order = append(order, name)
		break
	}
	if len(order) != 1 || order[0] != "b.inc" {
		t.Errorf("All() = %v", order)
	}

	dir := filepath.Join(t.TempDir(), "out")
	if err := f.WriteTo(dir); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a.inc"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2" {
		t.Errorf("a.inc = %q", data)
	}
}
