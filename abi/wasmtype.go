package abi

import "fmt"

// WasmType is a core wasm value type as seen by the canonical ABI. Pointer
// and Length are i32 on wasm32 but are kept distinct so backends can render
// them with their own types.
type WasmType uint8

const (
	I32 WasmType = iota
	I64
	F32
	F64
	Pointer
	PointerOrI64
	Length
)

var wasmTypeNames = [...]string{
	I32:          "i32",
	I64:          "i64",
	F32:          "f32",
	F64:          "f64",
	Pointer:      "pointer",
	PointerOrI64: "pointer_or_i64",
	Length:       "length",
}

func (t WasmType) String() string {
	if int(t) < len(wasmTypeNames) {
		return wasmTypeNames[t]
	}
	return fmt.Sprintf("WasmType(%d)", uint8(t))
}

// Join returns the type able to hold both a and b in one flattened slot.
func Join(a, b WasmType) WasmType {
	if a == b {
		return a
	}
	is32 := func(t WasmType) bool { return t == I32 || t == F32 }
	is64 := func(t WasmType) bool { return t == I64 || t == F64 }

	switch {
	case is32(a) && is32(b):
		return I32
	case a == Length && is32(b), is32(a) && b == Length:
		return Length
	case a == Length && is64(b), is64(a) && b == Length:
		return I64
	case a == Pointer && (is32(b) || b == Length), (is32(a) || a == Length) && b == Pointer:
		return Pointer
	case a == Pointer && is64(b), is64(a) && b == Pointer:
		return PointerOrI64
	case a == PointerOrI64 || b == PointerOrI64:
		return PointerOrI64
	default:
		return I64
	}
}

// BitcastOp is a single reinterpretation step between two core types.
type BitcastOp uint8

const (
	F32ToI32 BitcastOp = iota
	F64ToI64
	I32ToI64
	F32ToI64
	I32ToF32
	I64ToF64
	I64ToI32
	I64ToF32
	P64ToI64
	I64ToP64
	P64ToP
	PToP64
	I32ToP
	PToI32
	PToL
	LToP
	I32ToL
	LToI32
	I64ToL
	LToI64
)

var bitcastNames = [...]string{
	F32ToI32: "f32_to_i32",
	F64ToI64: "f64_to_i64",
	I32ToI64: "i32_to_i64",
	F32ToI64: "f32_to_i64",
	I32ToF32: "i32_to_f32",
	I64ToF64: "i64_to_f64",
	I64ToI32: "i64_to_i32",
	I64ToF32: "i64_to_f32",
	P64ToI64: "p64_to_i64",
	I64ToP64: "i64_to_p64",
	P64ToP:   "p64_to_p",
	PToP64:   "p_to_p64",
	I32ToP:   "i32_to_p",
	PToI32:   "p_to_i32",
	PToL:     "p_to_l",
	LToP:     "l_to_p",
	I32ToL:   "i32_to_l",
	LToI32:   "l_to_i32",
	I64ToL:   "i64_to_l",
	LToI64:   "l_to_i64",
}

func (op BitcastOp) String() string {
	if int(op) < len(bitcastNames) {
		return bitcastNames[op]
	}
	return fmt.Sprintf("BitcastOp(%d)", uint8(op))
}

// Bitcast is a sequence of reinterpretation steps applied left to right.
// An empty Bitcast leaves the operand unchanged.
type Bitcast []BitcastOp

// IsNone reports whether the cast leaves its operand unchanged.
func (b Bitcast) IsNone() bool {
	return len(b) == 0
}

// Cast returns the bitcast converting a value of core type from into to.
// It panics on pairs that Join never produces.
func Cast(from, to WasmType) Bitcast {
	if from == to {
		return nil
	}
	switch {
	case from == I32 && to == I64:
		return Bitcast{I32ToI64}
	case from == F32 && to == I32:
		return Bitcast{F32ToI32}
	case from == F64 && to == I64:
		return Bitcast{F64ToI64}
	case from == I64 && to == I32:
		return Bitcast{I64ToI32}
	case from == I32 && to == F32:
		return Bitcast{I32ToF32}
	case from == I64 && to == F64:
		return Bitcast{I64ToF64}
	case from == F32 && to == I64:
		return Bitcast{F32ToI64}
	case from == I64 && to == F32:
		return Bitcast{I64ToF32}

	case from == I64 && to == PointerOrI64:
		return Bitcast{I64ToP64}
	case from == Pointer && to == PointerOrI64:
		return Bitcast{PToP64}
	case to == PointerOrI64:
		return append(Cast(from, I64), I64ToP64)
	case from == PointerOrI64 && to == I64:
		return Bitcast{P64ToI64}
	case from == PointerOrI64 && to == Pointer:
		return Bitcast{P64ToP}
	case from == PointerOrI64:
		return append(Bitcast{P64ToI64}, Cast(I64, to)...)

	case from == I32 && to == Pointer:
		return Bitcast{I32ToP}
	case from == Pointer && to == I32:
		return Bitcast{PToI32}
	case from == I32 && to == Length:
		return Bitcast{I32ToL}
	case from == Length && to == I32:
		return Bitcast{LToI32}
	case from == I64 && to == Length:
		return Bitcast{I64ToL}
	case from == Length && to == I64:
		return Bitcast{LToI64}
	case from == Pointer && to == Length:
		return Bitcast{PToL}
	case from == Length && to == Pointer:
		return Bitcast{LToP}

	case from == F32 && (to == Pointer || to == Length):
		return append(Bitcast{F32ToI32}, Cast(I32, to)...)
	case (from == Pointer || from == Length) && to == F32:
		return append(Cast(from, I32), I32ToF32)
	}
	panic(fmt.Sprintf("abi: no bitcast from %s to %s", from, to))
}
