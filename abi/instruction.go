package abi

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

// Opcode identifies a canonical-ABI instruction.
type Opcode uint8

const (
	OpGetArg Opcode = iota
	OpI32Const
	OpBitcasts
	OpConstZero

	OpI32Load
	OpI32Load8U
	OpI32Load8S
	OpI32Load16U
	OpI32Load16S
	OpI64Load
	OpF32Load
	OpF64Load
	OpPointerLoad
	OpLengthLoad

	OpI32Store
	OpI32Store8
	OpI32Store16
	OpI64Store
	OpF32Store
	OpF64Store
	OpPointerStore
	OpLengthStore

	OpI32FromChar
	OpI64FromU64
	OpI64FromS64
	OpI32FromU32
	OpI32FromS32
	OpI32FromU16
	OpI32FromS16
	OpI32FromU8
	OpI32FromS8
	OpCoreF32FromF32
	OpCoreF64FromF64

	OpS8FromI32
	OpU8FromI32
	OpS16FromI32
	OpU16FromI32
	OpS32FromI32
	OpU32FromI32
	OpS64FromI64
	OpU64FromI64
	OpCharFromI32
	OpF32FromCoreF32
	OpF64FromCoreF64

	OpBoolFromI32
	OpI32FromBool

	OpListCanonLower
	OpStringLower
	OpListLower
	OpListCanonLift
	OpStringLift
	OpListLift
	OpIterElem
	OpIterBasePointer

	OpRecordLower
	OpRecordLift
	OpHandleLower
	OpHandleLift
	OpTupleLower
	OpTupleLift
	OpFlagsLower
	OpFlagsLift
	OpVariantPayloadName
	OpVariantLower
	OpVariantLift
	OpEnumLower
	OpEnumLift
	OpOptionLower
	OpOptionLift
	OpResultLower
	OpResultLift

	OpCallWasm
	OpCallInterface
	OpReturn
	OpMalloc
	OpGuestDeallocate
	OpGuestDeallocateString
	OpGuestDeallocateList
	OpGuestDeallocateVariant
)

var opcodeNames = [...]string{
	OpGetArg:                 "get_arg",
	OpI32Const:               "i32.const",
	OpBitcasts:               "bitcasts",
	OpConstZero:              "const_zero",
	OpI32Load:                "i32.load",
	OpI32Load8U:              "i32.load8_u",
	OpI32Load8S:              "i32.load8_s",
	OpI32Load16U:             "i32.load16_u",
	OpI32Load16S:             "i32.load16_s",
	OpI64Load:                "i64.load",
	OpF32Load:                "f32.load",
	OpF64Load:                "f64.load",
	OpPointerLoad:            "pointer.load",
	OpLengthLoad:             "length.load",
	OpI32Store:               "i32.store",
	OpI32Store8:              "i32.store8",
	OpI32Store16:             "i32.store16",
	OpI64Store:               "i64.store",
	OpF32Store:               "f32.store",
	OpF64Store:               "f64.store",
	OpPointerStore:           "pointer.store",
	OpLengthStore:            "length.store",
	OpI32FromChar:            "i32_from_char",
	OpI64FromU64:             "i64_from_u64",
	OpI64FromS64:             "i64_from_s64",
	OpI32FromU32:             "i32_from_u32",
	OpI32FromS32:             "i32_from_s32",
	OpI32FromU16:             "i32_from_u16",
	OpI32FromS16:             "i32_from_s16",
	OpI32FromU8:              "i32_from_u8",
	OpI32FromS8:              "i32_from_s8",
	OpCoreF32FromF32:         "core_f32_from_f32",
	OpCoreF64FromF64:         "core_f64_from_f64",
	OpS8FromI32:              "s8_from_i32",
	OpU8FromI32:              "u8_from_i32",
	OpS16FromI32:             "s16_from_i32",
	OpU16FromI32:             "u16_from_i32",
	OpS32FromI32:             "s32_from_i32",
	OpU32FromI32:             "u32_from_i32",
	OpS64FromI64:             "s64_from_i64",
	OpU64FromI64:             "u64_from_i64",
	OpCharFromI32:            "char_from_i32",
	OpF32FromCoreF32:         "f32_from_core_f32",
	OpF64FromCoreF64:         "f64_from_core_f64",
	OpBoolFromI32:            "bool_from_i32",
	OpI32FromBool:            "i32_from_bool",
	OpListCanonLower:         "list_canon_lower",
	OpStringLower:            "string_lower",
	OpListLower:              "list_lower",
	OpListCanonLift:          "list_canon_lift",
	OpStringLift:             "string_lift",
	OpListLift:               "list_lift",
	OpIterElem:               "iter_elem",
	OpIterBasePointer:        "iter_base_pointer",
	OpRecordLower:            "record_lower",
	OpRecordLift:             "record_lift",
	OpHandleLower:            "handle_lower",
	OpHandleLift:             "handle_lift",
	OpTupleLower:             "tuple_lower",
	OpTupleLift:              "tuple_lift",
	OpFlagsLower:             "flags_lower",
	OpFlagsLift:              "flags_lift",
	OpVariantPayloadName:     "variant_payload_name",
	OpVariantLower:           "variant_lower",
	OpVariantLift:            "variant_lift",
	OpEnumLower:              "enum_lower",
	OpEnumLift:               "enum_lift",
	OpOptionLower:            "option_lower",
	OpOptionLift:             "option_lift",
	OpResultLower:            "result_lower",
	OpResultLift:             "result_lift",
	OpCallWasm:               "call_wasm",
	OpCallInterface:          "call_interface",
	OpReturn:                 "return",
	OpMalloc:                 "malloc",
	OpGuestDeallocate:        "guest_deallocate",
	OpGuestDeallocateString:  "guest_deallocate_string",
	OpGuestDeallocateList:    "guest_deallocate_list",
	OpGuestDeallocateVariant: "guest_deallocate_variant",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Instruction is one step of an adapter. Imm carries the opcode-specific
// immediate, one of the *Imm types below or nil.
type Instruction struct {
	Imm    any
	Opcode Opcode
}

// ArgImm is the immediate of OpGetArg.
type ArgImm struct {
	Nth int
}

// I32Imm is the immediate of OpI32Const.
type I32Imm struct {
	Value int32
}

// ConstZeroImm is the immediate of OpConstZero.
type ConstZeroImm struct {
	Types []WasmType
}

// BitcastsImm is the immediate of OpBitcasts, one cast per operand.
type BitcastsImm struct {
	Casts []Bitcast
}

// MemoryImm is the immediate of loads and stores.
type MemoryImm struct {
	Offset int
}

// ReallocImm is the immediate of OpStringLower. An empty Realloc means the
// callee does not take ownership of the lowered buffer.
type ReallocImm struct {
	Realloc string
}

// ListImm is the immediate of list instructions. Type is nil for strings.
type ListImm struct {
	Element wit.Type
	Type    *wit.TypeDef
	Realloc string
}

// TypeDefImm is the immediate of record, tuple, handle, flags, enum and
// lifting variant, option and result instructions.
type TypeDefImm struct {
	Type *wit.TypeDef
}

// VariantLowerImm is the immediate of lowering variant, option and result
// instructions. Results is empty when lowering into memory.
type VariantLowerImm struct {
	Type    *wit.TypeDef
	Results []WasmType
}

// CallWasmImm is the immediate of OpCallWasm.
type CallWasmImm struct {
	Sig  *WasmSignature
	Name string
}

// FuncImm is the immediate of OpCallInterface.
type FuncImm struct {
	Func *wit.Function
}

// ReturnImm is the immediate of OpReturn.
type ReturnImm struct {
	Func *wit.Function
	Amt  int
}

// MallocImm is the immediate of OpMalloc.
type MallocImm struct {
	Realloc string
	Size    int
	Align   int
}

// DeallocImm is the immediate of OpGuestDeallocate.
type DeallocImm struct {
	Size  int
	Align int
}

// DeallocListImm is the immediate of OpGuestDeallocateList.
type DeallocListImm struct {
	Element wit.Type
}

// DeallocVariantImm is the immediate of OpGuestDeallocateVariant.
type DeallocVariantImm struct {
	Blocks int
}

// Blocks returns the number of finished blocks the instruction consumes.
func (inst *Instruction) Blocks() int {
	switch inst.Opcode {
	case OpListLower, OpListLift, OpGuestDeallocateList:
		return 1
	case OpOptionLower, OpOptionLift, OpResultLower, OpResultLift:
		return 2
	case OpVariantLower, OpVariantLift:
		return len(inst.TypeDef().Kind.(*wit.Variant).Cases)
	case OpGuestDeallocateVariant:
		return inst.Imm.(DeallocVariantImm).Blocks
	}
	return 0
}

// TypeDef returns the type definition carried by the immediate, or nil.
func (inst *Instruction) TypeDef() *wit.TypeDef {
	switch imm := inst.Imm.(type) {
	case TypeDefImm:
		return imm.Type
	case VariantLowerImm:
		return imm.Type
	case ListImm:
		return imm.Type
	}
	return nil
}

// OperandsLen returns the number of operands the instruction pops.
func (inst *Instruction) OperandsLen() int {
	switch inst.Opcode {
	case OpGetArg, OpI32Const, OpConstZero, OpVariantPayloadName,
		OpIterElem, OpIterBasePointer, OpMalloc:
		return 0
	case OpBitcasts:
		return len(inst.Imm.(BitcastsImm).Casts)
	case OpI32Store, OpI32Store8, OpI32Store16, OpI64Store, OpF32Store, OpF64Store,
		OpPointerStore, OpLengthStore,
		OpListCanonLift, OpStringLift, OpListLift,
		OpGuestDeallocateString, OpGuestDeallocateList:
		return 2
	case OpRecordLift:
		return len(inst.TypeDef().Kind.(*wit.Record).Fields)
	case OpTupleLift:
		return len(inst.TypeDef().Kind.(*wit.Tuple).Types)
	case OpFlagsLift:
		return FlagsReprOf(len(inst.TypeDef().Kind.(*wit.Flags).Flags)).Count()
	case OpCallWasm:
		return len(inst.Imm.(CallWasmImm).Sig.Params)
	case OpCallInterface:
		return len(inst.Imm.(FuncImm).Func.Params)
	case OpReturn:
		return inst.Imm.(ReturnImm).Amt
	}
	return 1
}

// ResultsLen returns the number of operands the instruction pushes.
func (inst *Instruction) ResultsLen() int {
	switch inst.Opcode {
	case OpBitcasts:
		return len(inst.Imm.(BitcastsImm).Casts)
	case OpConstZero:
		return len(inst.Imm.(ConstZeroImm).Types)
	case OpI32Store, OpI32Store8, OpI32Store16, OpI64Store, OpF32Store, OpF64Store,
		OpPointerStore, OpLengthStore,
		OpReturn, OpGuestDeallocate, OpGuestDeallocateString,
		OpGuestDeallocateList, OpGuestDeallocateVariant:
		return 0
	case OpListCanonLower, OpStringLower, OpListLower:
		return 2
	case OpRecordLower:
		return len(inst.TypeDef().Kind.(*wit.Record).Fields)
	case OpTupleLower:
		return len(inst.TypeDef().Kind.(*wit.Tuple).Types)
	case OpFlagsLower:
		return FlagsReprOf(len(inst.TypeDef().Kind.(*wit.Flags).Flags)).Count()
	case OpVariantLower, OpOptionLower, OpResultLower:
		return len(inst.Imm.(VariantLowerImm).Results)
	case OpCallWasm:
		return len(inst.Imm.(CallWasmImm).Sig.Results)
	case OpCallInterface:
		return len(inst.Imm.(FuncImm).Func.Results)
	}
	return 1
}

func (inst *Instruction) String() string {
	if inst.Imm == nil {
		return inst.Opcode.String()
	}
	return fmt.Sprintf("%s %+v", inst.Opcode, inst.Imm)
}
