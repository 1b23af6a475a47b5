package objfile

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func TestLinkingSymbol(t *testing.T) {
	tests := []struct {
		world string
		want  string
	}{
		{"my-world", "__component_type_object_force_link_my_world"},
		{"simple", "__component_type_object_force_link_simple"},
		{"HTTPProxy", "__component_type_object_force_link_http_proxy"},
	}
	for _, tt := range tests {
		t.Run(tt.world, func(t *testing.T) {
			if got := LinkingSymbol(tt.world); got != tt.want {
				t.Errorf("LinkingSymbol(%q) = %q, want %q", tt.world, got, tt.want)
			}
		})
	}
}

func TestObject_Sections(t *testing.T) {
	p := Payload{
		World:  "my-world",
		Symbol: LinkingSymbol("my-world"),
		Suffix: "-extra",
		Data:   []byte{0x00, 0x61, 0x73, 0x6d, 0x0d, 0x00, 0x01, 0x00},
	}

	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCustomSections(true))
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, Object(p))
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}

	sections := map[string][]byte{}
	for _, s := range compiled.CustomSections() {
		sections[s.Name()] = s.Data()
	}
	data, ok := sections["component-type:my-world-extra"]
	if !ok {
		t.Fatalf("component-type section missing, have %v", sections)
	}
	if string(data) != string(p.Data) {
		t.Errorf("payload = %x, want %x", data, p.Data)
	}

	linking, ok := sections["linking"]
	if !ok {
		t.Fatal("linking section missing")
	}
	// version, subsection id, size, count, kind, flags, index, name
	if linking[0] != linkingVersion || linking[1] != subsecSymbolTable {
		t.Errorf("linking header = %x", linking[:2])
	}
	name := string(linking[len(linking)-len(p.Symbol):])
	if name != p.Symbol {
		t.Errorf("symbol = %q, want %q", name, p.Symbol)
	}
}

func TestStaticEncoder(t *testing.T) {
	if _, err := StaticEncoder(nil).EncodeWorld(nil, nil); err == nil {
		t.Error("empty payload accepted")
	}
	data, err := StaticEncoder("abc").EncodeWorld(nil, nil)
	if err != nil || string(data) != "abc" {
		t.Errorf("EncodeWorld = %q, %v", data, err)
	}
}
