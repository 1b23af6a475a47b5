package abi

import (
	"go.bytecodealliance.org/wit"
)

const (
	// MaxFlatParams is the flattened parameter count above which parameters
	// are passed through memory.
	MaxFlatParams = 16
	// MaxFlatResults is the flattened result count above which results are
	// returned through memory.
	MaxFlatResults = 1
)

// Flatten returns the core wasm types a value of t occupies.
func Flatten(t wit.Type) []WasmType {
	return pushFlat(t, nil)
}

func pushFlat(t wit.Type, out []WasmType) []WasmType {
	switch typ := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return append(out, I32)
	case wit.U64, wit.S64:
		return append(out, I64)
	case wit.F32:
		return append(out, F32)
	case wit.F64:
		return append(out, F64)
	case wit.String:
		return append(out, Pointer, Length)
	case *wit.TypeDef:
		return pushFlatTypeDef(typ, out)
	}
	return out
}

func pushFlatTypeDef(t *wit.TypeDef, out []WasmType) []WasmType {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		for _, f := range kind.Fields {
			out = pushFlat(f.Type, out)
		}
		return out
	case *wit.Tuple:
		for _, typ := range kind.Types {
			out = pushFlat(typ, out)
		}
		return out
	case *wit.Flags:
		for range FlagsReprOf(len(kind.Flags)).Count() {
			out = append(out, I32)
		}
		return out
	case *wit.Enum, *wit.Own, *wit.Borrow, *wit.Resource, *wit.Future, *wit.Stream:
		return append(out, I32)
	case *wit.List:
		return append(out, Pointer, Length)
	case *wit.Variant:
		return pushFlatVariant(DiscriminantType(len(kind.Cases)), VariantCases(kind), out)
	case *wit.Option:
		return pushFlatVariant(U8, []wit.Type{nil, kind.Type}, out)
	case *wit.Result:
		return pushFlatVariant(U8, []wit.Type{kind.OK, kind.Err}, out)
	case wit.Type:
		return pushFlat(kind, out)
	}
	return out
}

func pushFlatVariant(tag Int, cases []wit.Type, out []WasmType) []WasmType {
	out = append(out, tag.WasmType())
	start := len(out)
	for _, c := range cases {
		if c == nil {
			continue
		}
		for i, typ := range Flatten(c) {
			if start+i < len(out) {
				out[start+i] = Join(out[start+i], typ)
			} else {
				out = append(out, typ)
			}
		}
	}
	return out
}

// Variant selects which side of a component boundary the guest is on.
type Variant uint8

const (
	// GuestImport is a guest calling a function its host provides.
	GuestImport Variant = iota
	// GuestExport is a host calling a function the guest provides.
	GuestExport
)

func (v Variant) String() string {
	if v == GuestExport {
		return "guest-export"
	}
	return "guest-import"
}

// LiftLower selects the direction of an adapter.
type LiftLower uint8

const (
	// LowerArgsLiftResults adapts a source-level call into a core call.
	LowerArgsLiftResults LiftLower = iota
	// LiftArgsLowerResults adapts a core call into a source-level call.
	LiftArgsLowerResults
)

// WasmSignature is the core wasm signature of a component function.
type WasmSignature struct {
	Params         []WasmType
	Results        []WasmType
	IndirectParams bool
	Retptr         bool
}

// Signature computes the core signature of f for the given side.
func Signature(variant Variant, f *wit.Function) *WasmSignature {
	sig := &WasmSignature{}
	for _, p := range f.Params {
		sig.Params = pushFlat(p.Type, sig.Params)
	}
	if len(sig.Params) > MaxFlatParams {
		sig.Params = []WasmType{Pointer}
		sig.IndirectParams = true
	}

	for _, r := range f.Results {
		sig.Results = pushFlat(r.Type, sig.Results)
	}
	if len(sig.Results) > MaxFlatResults {
		sig.Retptr = true
		sig.Results = nil
		switch variant {
		case GuestImport:
			sig.Params = append(sig.Params, Pointer)
		case GuestExport:
			sig.Results = []WasmType{Pointer}
		}
	}
	return sig
}

// ResultTypes returns the result types of f in order.
func ResultTypes(f *wit.Function) []wit.Type {
	types := make([]wit.Type, len(f.Results))
	for i, r := range f.Results {
		types[i] = r.Type
	}
	return types
}

// ParamTypes returns the parameter types of f in order.
func ParamTypes(f *wit.Function) []wit.Type {
	types := make([]wit.Type, len(f.Params))
	for i, p := range f.Params {
		types[i] = p.Type
	}
	return types
}

// LegacyExportName is the core export name of an exported function.
// Functions exported at world level have an empty module.
func LegacyExportName(module, name string) string {
	if module == "" {
		return name
	}
	return module + "#" + name
}

// NeedsPostReturn reports whether an export returning f's results must be
// followed by a cleanup call freeing memory it handed to the caller.
func NeedsPostReturn(f *wit.Function) bool {
	for _, r := range f.Results {
		if needsPostReturn(r.Type) {
			return true
		}
	}
	return false
}

func needsPostReturn(t wit.Type) bool {
	switch typ := t.(type) {
	case wit.String:
		return true
	case *wit.TypeDef:
		switch kind := typ.Kind.(type) {
		case *wit.List:
			return true
		case *wit.Record:
			for _, f := range kind.Fields {
				if needsPostReturn(f.Type) {
					return true
				}
			}
		case *wit.Tuple:
			for _, typ := range kind.Types {
				if needsPostReturn(typ) {
					return true
				}
			}
		case *wit.Variant:
			for _, c := range kind.Cases {
				if c.Type != nil && needsPostReturn(c.Type) {
					return true
				}
			}
		case *wit.Option:
			return needsPostReturn(kind.Type)
		case *wit.Result:
			return (kind.OK != nil && needsPostReturn(kind.OK)) ||
				(kind.Err != nil && needsPostReturn(kind.Err))
		case *wit.Own, *wit.Borrow, *wit.Resource, *wit.Flags, *wit.Enum, *wit.Future, *wit.Stream:
			return false
		case wit.Type:
			return needsPostReturn(kind)
		}
	}
	return false
}

// AllBitsValid reports whether every bit pattern of t's memory image is a
// valid value, so lists of t can be copied without per-element conversion.
func AllBitsValid(t wit.Type) bool {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.U64, wit.S64, wit.F32, wit.F64:
		return true
	case *wit.TypeDef:
		switch kind := typ.Kind.(type) {
		case *wit.Own, *wit.Borrow:
			return true
		case *wit.Record:
			for _, f := range kind.Fields {
				if !AllBitsValid(f.Type) {
					return false
				}
			}
			return true
		case *wit.Tuple:
			for _, typ := range kind.Types {
				if !AllBitsValid(typ) {
					return false
				}
			}
			return true
		case *wit.List, *wit.Variant, *wit.Enum, *wit.Option, *wit.Result,
			*wit.Flags, *wit.Resource, *wit.Future, *wit.Stream:
			return false
		case wit.Type:
			return AllBitsValid(kind)
		}
	}
	return false
}
