package wasmbin

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func TestWriterLEB(t *testing.T) {
	tests := []struct {
		name string
		want []byte
		v    uint32
	}{
		{"zero", []byte{0x00}, 0},
		{"one byte", []byte{0x7f}, 127},
		{"two bytes", []byte{0x80, 0x01}, 128},
		{"max", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			w.WriteU32(tt.v)
			if !bytes.Equal(w.Bytes(), tt.want) {
				t.Errorf("WriteU32(%d) = %x, want %x", tt.v, w.Bytes(), tt.want)
			}
		})
	}
}

func TestWriterS32(t *testing.T) {
	tests := []struct {
		want []byte
		v    int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x40}, -64},
	}

	for _, tt := range tests {
		w := NewWriter()
		w.WriteS32(tt.v)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("WriteS32(%d) = %x, want %x", tt.v, w.Bytes(), tt.want)
		}
	}
}

func TestCustomSection(t *testing.T) {
	w := NewWriter()
	w.WriteCustomSection("ab", []byte{1, 2})
	want := []byte{SectionCustom, 5, 2, 'a', 'b', 1, 2}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteCustomSection = %x, want %x", w.Bytes(), want)
	}
}

func TestModuleEncode_Compiles(t *testing.T) {
	m := &Module{
		Types:    []FuncType{{}},
		Funcs:    []uint32{0},
		Memories: []uint32{1},
		Exports: []Export{
			{Name: "memory", Kind: KindMemory, Index: 0},
			{Name: "noop", Kind: KindFunc, Index: 0},
		},
		Bodies:  []Body{{}},
		Customs: []CustomSection{{Name: "note", Data: []byte("hi")}},
	}

	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCustomSections(true))
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, m.Encode())
	if err != nil {
		t.Fatalf("CompileModule: %v", err)
	}

	sections := compiled.CustomSections()
	if len(sections) != 1 || sections[0].Name() != "note" || string(sections[0].Data()) != "hi" {
		t.Errorf("custom sections = %v", sections)
	}
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		t.Error("memory export missing")
	}
	if _, ok := compiled.ExportedFunctions()["noop"]; !ok {
		t.Error("function export missing")
	}
}
