// Package eval runs canonical-ABI instruction streams over concrete values.
//
// An instruction stream produced by abi.Generator is first recorded into a
// Program: every operand becomes a register and every nested block keeps
// its own step list. A Machine then executes the Program against a wazero
// linear memory, choosing variant arms and list iterations at run time.
//
// Component values are represented as:
//
//	bool, uint8, int8, uint16, int16, uint32, int32, uint64, int64   integers
//	float32, float64, Char, string                                    scalars
//	Record, Tuple, List                                               aggregates
//	Variant (also option and result), Enum, Flags, Handle             the rest
//
// Core values are uint32 (i32, pointer, length), uint64 (i64), float32 and
// float64.
//
// Lowering an import call and lifting it again through the matching export
// adapter is the reference for what generated bindings must do:
//
//	imp, _ := eval.Compile(sizes, abi.GuestImport, abi.LowerArgsLiftResults, f)
//	exp, _ := eval.Compile(sizes, abi.GuestExport, abi.LiftArgsLowerResults, f)
//	m.Env.CallWasm = eval.Link(m, exp, post)
//	results, err := m.Run(ctx, imp, args...)
package eval
