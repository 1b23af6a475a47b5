package abi

import "go.bytecodealliance.org/wit"

// Int is the integer representation of a discriminant or enum tag.
type Int uint8

const (
	U8 Int = iota
	U16
	U32
	U64
)

func (i Int) size() int {
	switch i {
	case U8:
		return 1
	case U16:
		return 2
	case U32:
		return 4
	default:
		return 8
	}
}

// WasmType returns the flattened core type of the representation.
func (i Int) WasmType() WasmType {
	if i == U64 {
		return I64
	}
	return I32
}

// DiscriminantType returns the tag representation for n cases.
func DiscriminantType(n int) Int {
	switch {
	case n <= 1<<8:
		return U8
	case n <= 1<<16:
		return U16
	default:
		return U32
	}
}

// FlagsRepr is the storage of a flags type: one U8 or U16, or Words 32-bit
// words when Kind is U32.
type FlagsRepr struct {
	Kind  Int
	Words int
}

// Count returns the number of flattened i32 values.
func (r FlagsRepr) Count() int {
	if r.Kind == U32 {
		return r.Words
	}
	return 1
}

// FlagsReprOf returns the storage representation for n flags.
func FlagsReprOf(n int) FlagsRepr {
	switch {
	case n == 0:
		return FlagsRepr{Kind: U32}
	case n <= 8:
		return FlagsRepr{Kind: U8, Words: 1}
	case n <= 16:
		return FlagsRepr{Kind: U16, Words: 1}
	default:
		return FlagsRepr{Kind: U32, Words: (n + 31) / 32}
	}
}

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align int) int {
	return (offset + align - 1) / align * align
}

// ElementInfo is the wasm32 size and alignment of a type.
type ElementInfo struct {
	Size  int
	Align int
}

// Sizes computes wasm32 layouts. Results for type definitions are cached.
type Sizes struct {
	cache map[*wit.TypeDef]ElementInfo
}

func NewSizes() *Sizes {
	return &Sizes{cache: make(map[*wit.TypeDef]ElementInfo)}
}

func (s *Sizes) Size(t wit.Type) int {
	return s.Info(t).Size
}

func (s *Sizes) Align(t wit.Type) int {
	return s.Info(t).Align
}

func (s *Sizes) Info(t wit.Type) ElementInfo {
	switch typ := t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		return ElementInfo{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return ElementInfo{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return ElementInfo{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return ElementInfo{Size: 8, Align: 8}
	case wit.String:
		return ElementInfo{Size: 8, Align: 4}
	case *wit.TypeDef:
		return s.typeDef(typ)
	default:
		return ElementInfo{Size: 0, Align: 1}
	}
}

func (s *Sizes) typeDef(t *wit.TypeDef) ElementInfo {
	if info, ok := s.cache[t]; ok {
		return info
	}

	var info ElementInfo
	switch kind := t.Kind.(type) {
	case *wit.Record:
		types := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			types[i] = f.Type
		}
		info = s.Record(types)
	case *wit.Tuple:
		info = s.Record(kind.Types)
	case *wit.List:
		info = ElementInfo{Size: 8, Align: 4}
	case *wit.Flags:
		repr := FlagsReprOf(len(kind.Flags))
		switch repr.Kind {
		case U8:
			info = ElementInfo{Size: 1, Align: 1}
		case U16:
			info = ElementInfo{Size: 2, Align: 2}
		default:
			info = ElementInfo{Size: 4 * repr.Words, Align: 4}
		}
	case *wit.Enum:
		n := DiscriminantType(len(kind.Cases)).size()
		info = ElementInfo{Size: n, Align: n}
	case *wit.Variant:
		info = s.variant(DiscriminantType(len(kind.Cases)), VariantCases(kind))
	case *wit.Option:
		info = s.variant(U8, []wit.Type{nil, kind.Type})
	case *wit.Result:
		info = s.variant(U8, []wit.Type{kind.OK, kind.Err})
	case *wit.Own, *wit.Borrow, *wit.Resource, *wit.Future, *wit.Stream:
		info = ElementInfo{Size: 4, Align: 4}
	case wit.Type:
		info = s.Info(kind)
	default:
		info = ElementInfo{Size: 0, Align: 1}
	}

	s.cache[t] = info
	return info
}

// Record lays out types in sequence.
func (s *Sizes) Record(types []wit.Type) ElementInfo {
	size, align := 0, 1
	for _, t := range types {
		info := s.Info(t)
		size = AlignTo(size, info.Align) + info.Size
		align = max(align, info.Align)
	}
	return ElementInfo{Size: AlignTo(size, align), Align: align}
}

// FieldOffsets returns the offset of each type laid out as a record.
func (s *Sizes) FieldOffsets(types []wit.Type) []int {
	offsets := make([]int, len(types))
	offset := 0
	for i, t := range types {
		info := s.Info(t)
		offset = AlignTo(offset, info.Align)
		offsets[i] = offset
		offset += info.Size
	}
	return offsets
}

func (s *Sizes) variant(tag Int, cases []wit.Type) ElementInfo {
	caseSize, caseAlign := 0, 1
	for _, c := range cases {
		if c == nil {
			continue
		}
		info := s.Info(c)
		caseSize = max(caseSize, info.Size)
		caseAlign = max(caseAlign, info.Align)
	}
	align := max(caseAlign, tag.size())
	size := AlignTo(tag.size(), caseAlign) + caseSize
	return ElementInfo{Size: AlignTo(size, align), Align: align}
}

// PayloadOffset returns the offset of a variant payload from the start of
// the variant. A nil entry in cases is a case without payload.
func (s *Sizes) PayloadOffset(tag Int, cases []wit.Type) int {
	caseAlign := 1
	for _, c := range cases {
		if c != nil {
			caseAlign = max(caseAlign, s.Align(c))
		}
	}
	return AlignTo(tag.size(), caseAlign)
}

// VariantCases returns the payload types of a variant, nil for empty cases.
func VariantCases(v *wit.Variant) []wit.Type {
	cases := make([]wit.Type, len(v.Cases))
	for i, c := range v.Cases {
		cases[i] = c.Type
	}
	return cases
}
