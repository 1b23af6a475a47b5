// Package wasmbin encodes the small core modules the generator produces: the
// component-type object file and the scratch memory module used by the
// reference evaluator.
package wasmbin

// Binary format constants
const (
	Magic   uint32 = 0x6D736100 // \0asm
	Version uint32 = 0x01
)

// Section IDs, in the order they must appear
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionExport   byte = 7
	SectionCode     byte = 10
)

// Value types
const (
	ValI32 byte = 0x7F
	ValI64 byte = 0x7E
	ValF32 byte = 0x7D
	ValF64 byte = 0x7C
)

// External kinds
const (
	KindFunc   byte = 0x00
	KindMemory byte = 0x02
)

const (
	funcTypeByte byte = 0x60
	opEnd        byte = 0x0B
)

// FuncType is a core function signature
type FuncType struct {
	Params  []byte
	Results []byte
}

// Export is an exported item
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Body is a function body; Code excludes the trailing end opcode.
type Body struct {
	Locals []byte
	Code   []byte
}

// CustomSection is a named custom section placed after the code section
type CustomSection struct {
	Name string
	Data []byte
}

// Module is a minimal core module description
type Module struct {
	Types    []FuncType
	Funcs    []uint32
	Memories []uint32 // minimum page counts
	Exports  []Export
	Bodies   []Body
	Customs  []CustomSection
}

// Encode encodes the module to WebAssembly binary format
func (m *Module) Encode() []byte {
	w := NewWriter()

	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)

	if len(m.Types) > 0 {
		sec := NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(funcTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		w.WriteSection(SectionType, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		sec := NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		w.WriteSection(SectionFunction, sec.Bytes())
	}

	if len(m.Memories) > 0 {
		sec := NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, min := range m.Memories {
			sec.Byte(0x00) // no maximum
			sec.WriteU32(min)
		}
		w.WriteSection(SectionMemory, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		sec := NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Index)
		}
		w.WriteSection(SectionExport, sec.Bytes())
	}

	if len(m.Bodies) > 0 {
		sec := NewWriter()
		sec.WriteU32(uint32(len(m.Bodies)))
		for _, b := range m.Bodies {
			body := NewWriter()
			body.WriteU32(uint32(len(b.Locals)))
			for _, l := range b.Locals {
				body.WriteU32(1)
				body.Byte(l)
			}
			body.WriteBytes(b.Code)
			body.Byte(opEnd)
			sec.WriteU32(uint32(body.Len()))
			sec.WriteBytes(body.Bytes())
		}
		w.WriteSection(SectionCode, sec.Bytes())
	}

	for _, c := range m.Customs {
		w.WriteCustomSection(c.Name, c.Data)
	}

	return w.Bytes()
}

func writeValTypes(w *Writer, types []byte) {
	w.WriteU32(uint32(len(types)))
	w.WriteBytes(types)
}
