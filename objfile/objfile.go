// Package objfile writes the relocatable wasm object carrying a world's
// component-type metadata. Linking the object into the core module keeps
// the custom section, and the generated code references its symbol so the
// linker cannot drop it.
package objfile

import (
	"os"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/internal/casing"
	"github.com/wippyai/witbindgen/internal/wasmbin"
)

// TypeEncoder produces the binary component-type payload of a world.
type TypeEncoder interface {
	EncodeWorld(resolve *wit.Resolve, world *wit.World) ([]byte, error)
}

// StaticEncoder returns a payload prepared by an external tool.
type StaticEncoder []byte

// EncodeWorld implements TypeEncoder.
func (s StaticEncoder) EncodeWorld(*wit.Resolve, *wit.World) ([]byte, error) {
	if len(s) == 0 {
		return nil, errors.InvalidInput(errors.PhaseEncode, "empty component type payload")
	}
	return s, nil
}

// ReadEncoder loads the payload from path.
func ReadEncoder(path string) (StaticEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read component type payload "+path, err)
	}
	return StaticEncoder(data), nil
}

// Payload describes the object to write.
type Payload struct {
	// World is the WIT name of the world the section describes.
	World string
	// Symbol is the function the object defines for the generated code
	// to reference.
	Symbol string
	// Suffix is appended to the section name.
	Suffix string
	Data   []byte
}

// SectionName returns the name of the custom section holding the payload.
func (p Payload) SectionName() string {
	return "component-type:" + p.World + p.Suffix
}

// LinkingSymbol returns the symbol defined by the object of world.
func LinkingSymbol(world string) string {
	return "__component_type_object_force_link_" + casing.Snake(world)
}

const (
	linkingVersion      = 2
	subsecSymbolTable   = 8
	symtabFunction      = 0
	symbolBindingGlobal = 0
)

// Object encodes p as a relocatable object: one empty function exported
// through the linking symbol table, then the component-type section.
func Object(p Payload) []byte {
	symtab := wasmbin.NewWriter()
	symtab.WriteU32(1)
	symtab.Byte(symtabFunction)
	symtab.WriteU32(symbolBindingGlobal)
	symtab.WriteU32(0)
	symtab.WriteName(p.Symbol)

	linking := wasmbin.NewWriter()
	linking.WriteU32(linkingVersion)
	linking.Byte(subsecSymbolTable)
	linking.WriteU32(uint32(symtab.Len()))
	linking.WriteBytes(symtab.Bytes())

	m := &wasmbin.Module{
		Types:  []wasmbin.FuncType{{}},
		Funcs:  []uint32{0},
		Bodies: []wasmbin.Body{{}},
		Customs: []wasmbin.CustomSection{
			{Name: "linking", Data: linking.Bytes()},
			{Name: p.SectionName(), Data: p.Data},
		},
	}
	out := m.Encode()
	Logger().Debug("encoded component type object",
		zap.String("section", p.SectionName()),
		zap.String("symbol", p.Symbol),
		zap.Int("bytes", len(out)))
	return out
}
