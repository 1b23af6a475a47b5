package pascal

import (
	"fmt"
	"strconv"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/abi"
	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/source"
	"github.com/wippyai/witbindgen/typegraph"
)

var _ abi.Bindgen[string] = (*funcBindgen)(nil)

type block struct {
	text    string
	results []string
}

type droppableBorrow struct {
	name   string
	dropFn string
}

// funcBindgen renders the instruction stream of one adapter as Pascal
// statements. Operands are Pascal expressions.
type funcBindgen struct {
	ig     *ifaceGen
	f      *wit.Function
	sig    *csig
	callee string

	locals source.Ns
	vars   varList
	src    *source.Source
	saved  []*source.Source
	blocks []block

	payloads  []string
	params    []string
	iterBases []string
	retStore  int

	retArea      string
	retAreaSize  int
	retAreaAlign int

	borrows     []droppableBorrow
	borrowInits source.Source
}

func newFuncBindgen(ig *ifaceGen, f *wit.Function, sig *csig, callee string) *funcBindgen {
	fb := &funcBindgen{ig: ig, f: f, sig: sig, callee: callee, src: &source.Source{}}
	fb.src.Indent()
	fb.borrowInits.Indent()
	return fb
}

// body returns the statements of the adapter.
func (fb *funcBindgen) body() string {
	return fb.borrowInits.String() + fb.src.String()
}

func (fb *funcBindgen) typeName(t wit.Type) (string, error) {
	return fb.ig.g.typeName(t)
}

func (fb *funcBindgen) local(prefix, typ string) (string, error) {
	name := fb.locals.Tmp(prefix)
	if err := fb.vars.insert(name, typ); err != nil {
		return "", err
	}
	return name, nil
}

func (fb *funcBindgen) splice(text string) {
	fb.src.Indent()
	fb.src.Push(text)
	fb.src.Dedent()
}

func (fb *funcBindgen) popBlocks(n int) ([]block, error) {
	if n > len(fb.blocks) {
		return nil, errors.InvalidState(errors.PhaseGenerate, "need %d blocks, have %d", n, len(fb.blocks))
	}
	out := append([]block(nil), fb.blocks[len(fb.blocks)-n:]...)
	fb.blocks = fb.blocks[:len(fb.blocks)-n]
	return out, nil
}

func (fb *funcBindgen) popPayloads(n int) ([]string, error) {
	if n > len(fb.payloads) {
		return nil, errors.InvalidState(errors.PhaseGenerate, "need %d payloads, have %d", n, len(fb.payloads))
	}
	out := append([]string(nil), fb.payloads[len(fb.payloads)-n:]...)
	fb.payloads = fb.payloads[:len(fb.payloads)-n]
	return out, nil
}

func (fb *funcBindgen) popIterBase() string {
	if len(fb.iterBases) == 0 {
		return "base"
	}
	base := fb.iterBases[len(fb.iterBases)-1]
	fb.iterBases = fb.iterBases[:len(fb.iterBases)-1]
	return base
}

func (fb *funcBindgen) autodrop() bool {
	return !fb.ig.inImport && fb.ig.g.opts.AutodropBorrows
}

func (fb *funcBindgen) assertNoDroppableBorrows(context string, t wit.Type) error {
	if fb.autodrop() && fb.ig.containsDroppableBorrow(t) {
		return errors.PolicyConflict(errors.PhaseGenerate, typegraph.TypeString(t),
			fmt.Sprintf("Unable to autodrop borrows in `%s` values, please disable autodrop", context))
	}
	return nil
}

// PushBlock implements abi.Bindgen.
func (fb *funcBindgen) PushBlock() {
	fb.saved = append(fb.saved, fb.src)
	fb.src = &source.Source{}
}

// FinishBlock implements abi.Bindgen.
func (fb *funcBindgen) FinishBlock(operands []string) {
	text := fb.src.String()
	fb.src = fb.saved[len(fb.saved)-1]
	fb.saved = fb.saved[:len(fb.saved)-1]
	fb.blocks = append(fb.blocks, block{text: text, results: operands})
}

// ReturnPointer implements abi.Bindgen. Imports use a stack area sized to
// the adapter, exports a static area that outlives the call until
// post-return.
func (fb *funcBindgen) ReturnPointer(size, align int) string {
	ptr := fb.locals.Tmp("ptr")
	_ = fb.vars.insert(ptr, "Pbyte")
	if fb.ig.inImport {
		if fb.retArea == "" {
			fb.retArea = fb.locals.Tmp("ret_area")
		}
		fb.retAreaSize = max(fb.retAreaSize, size)
		fb.retAreaAlign = max(fb.retAreaAlign, align)
		fb.src.Line("%s := Pbyte(@%s);", ptr, fb.retArea)
	} else {
		g := fb.ig.g
		g.retAreaSize = max(g.retAreaSize, size)
		g.retAreaAlign = max(g.retAreaAlign, align)
		fb.src.Line("%s := Pbyte(@STATIC_RET_AREA);", ptr)
	}
	return ptr
}

// IsListCanonical implements abi.Bindgen. Generated records share the
// canonical layout, so only element types needing per-value conversion
// are excluded.
func (fb *funcBindgen) IsListCanonical(element wit.Type) bool {
	return abi.AllBitsValid(element)
}

func wasmType(t abi.WasmType) string {
	switch t {
	case abi.I64, abi.PointerOrI64:
		return "int64"
	case abi.F32:
		return "single"
	case abi.F64:
		return "double"
	case abi.Pointer:
		return "Pbyte"
	case abi.Length:
		return "SizeUInt"
	}
	return "int32"
}

func load(ty string, operands []string, offset int) string {
	return fmt.Sprintf("P%s(%s + %d)^", ty, operands[0], offset)
}

func (fb *funcBindgen) store(ty string, operands []string, offset int, cast bool) {
	val := operands[0]
	if cast {
		val = ty + "(" + val + ")"
	}
	fb.src.Line("P%s(%s + %d)^ := %s;", ty, operands[1], offset, val)
}

// Emit implements abi.Bindgen.
func (fb *funcBindgen) Emit(inst *abi.Instruction, operands []string) ([]string, error) {
	op0 := ""
	if len(operands) > 0 {
		op0 = operands[0]
	}
	wrap := func(f string) []string { return []string{fmt.Sprintf(f, op0)} }

	switch inst.Opcode {
	case abi.OpGetArg:
		nth := inst.Imm.(abi.ArgImm).Nth
		if nth >= len(fb.params) {
			return nil, errors.InvalidState(errors.PhaseGenerate, "argument %d of %d", nth, len(fb.params))
		}
		return []string{fb.params[nth]}, nil
	case abi.OpI32Const:
		return []string{strconv.Itoa(int(inst.Imm.(abi.I32Imm).Value))}, nil
	case abi.OpConstZero:
		var out []string
		for _, t := range inst.Imm.(abi.ConstZeroImm).Types {
			if t == abi.Pointer {
				out = append(out, "nil")
			} else {
				out = append(out, "0")
			}
		}
		return out, nil
	case abi.OpBitcasts:
		casts := inst.Imm.(abi.BitcastsImm).Casts
		out := make([]string, len(operands))
		for i, op := range operands {
			out[i] = fb.ig.g.performCast(op, casts[i])
		}
		return out, nil

	case abi.OpU8FromI32:
		return wrap("byte(%s)"), nil
	case abi.OpS8FromI32:
		return wrap("int8(%s)"), nil
	case abi.OpU16FromI32:
		return wrap("uint16(%s)"), nil
	case abi.OpS16FromI32:
		return wrap("int16(%s)"), nil
	case abi.OpU32FromI32, abi.OpCharFromI32:
		return wrap("uint32(%s)"), nil
	case abi.OpU64FromI64:
		return wrap("uint64(%s)"), nil
	case abi.OpS32FromI32, abi.OpS64FromI64, abi.OpI32FromS32, abi.OpI64FromS64,
		abi.OpCoreF32FromF32, abi.OpCoreF64FromF64, abi.OpF32FromCoreF32, abi.OpF64FromCoreF64:
		return []string{op0}, nil
	case abi.OpI32FromU8, abi.OpI32FromS8, abi.OpI32FromU16, abi.OpI32FromS16,
		abi.OpI32FromU32, abi.OpI32FromChar:
		return wrap("int32(%s)"), nil
	case abi.OpI64FromU64:
		return wrap("int64(%s)"), nil
	case abi.OpBoolFromI32:
		return wrap("((%s) <> 0)"), nil
	case abi.OpI32FromBool:
		return wrap("int32(ord(%s))"), nil

	case abi.OpRecordLower:
		rec := inst.TypeDef().Kind.(*wit.Record)
		out := make([]string, len(rec.Fields))
		for i, f := range rec.Fields {
			out[i] = fmt.Sprintf("(%s).%s", op0, Ident(f.Name))
		}
		return out, nil
	case abi.OpTupleLower:
		tup := inst.TypeDef().Kind.(*wit.Tuple)
		out := make([]string, len(tup.Types))
		for i := range tup.Types {
			out[i] = fmt.Sprintf("(%s).f%d", op0, i)
		}
		return out, nil
	case abi.OpRecordLift, abi.OpTupleLift:
		name, err := fb.typeName(inst.TypeDef())
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%s_create(%s)", prefix(name), strings.Join(operands, ", "))}, nil

	case abi.OpHandleLower:
		return wrap("(%s).__handle"), nil
	case abi.OpHandleLift:
		return fb.handleLift(inst.TypeDef(), op0)

	case abi.OpFlagsLower:
		return fb.flagsLower(inst.TypeDef(), op0)
	case abi.OpFlagsLift:
		return fb.flagsLift(inst.TypeDef(), operands)
	case abi.OpEnumLower:
		return wrap("int32(%s)"), nil
	case abi.OpEnumLift:
		name, err := fb.typeName(inst.TypeDef())
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%s(%s)", name, op0)}, nil

	case abi.OpVariantPayloadName:
		name := fb.locals.Tmp("payload")
		fb.payloads = append(fb.payloads, name)
		return []string{name + "^"}, nil
	case abi.OpVariantLower:
		return fb.variantLower(inst.Imm.(abi.VariantLowerImm), op0)
	case abi.OpVariantLift:
		return fb.variantLift(inst.TypeDef(), op0)
	case abi.OpOptionLower:
		return fb.optionLower(inst.Imm.(abi.VariantLowerImm), op0)
	case abi.OpOptionLift:
		return fb.optionLift(inst.TypeDef(), op0)
	case abi.OpResultLower:
		return fb.resultLower(inst.Imm.(abi.VariantLowerImm), op0)
	case abi.OpResultLift:
		return fb.resultLift(inst.TypeDef(), op0)

	case abi.OpListCanonLower, abi.OpStringLower:
		return []string{fmt.Sprintf("Pbyte((%s).ptr)", op0), fmt.Sprintf("(%s).len", op0)}, nil
	case abi.OpListLower:
		// Generated element records share the canonical layout, so the
		// buffer is handed over as is.
		if _, err := fb.popBlocks(1); err != nil {
			return nil, err
		}
		fb.popIterBase()
		return []string{fmt.Sprintf("Pbyte((%s).ptr)", op0), fmt.Sprintf("(%s).len", op0)}, nil
	case abi.OpListCanonLift, abi.OpListLift:
		imm := inst.Imm.(abi.ListImm)
		if inst.Opcode == abi.OpListLift {
			if _, err := fb.popBlocks(1); err != nil {
				return nil, err
			}
			fb.popIterBase()
		}
		if err := fb.assertNoDroppableBorrows("list", imm.Type); err != nil {
			return nil, err
		}
		list, err := fb.typeName(imm.Type)
		if err != nil {
			return nil, err
		}
		elem, err := fb.typeName(imm.Element)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%s_create(P%s(%s), %s)", prefix(list), elem, operands[0], operands[1])}, nil
	case abi.OpStringLift:
		g := fb.ig.g
		g.needsString = true
		return []string{fmt.Sprintf("%s_create(P%s(%s), %s)", prefix(g.stringType()), g.charType(), operands[0], operands[1])}, nil
	case abi.OpIterElem:
		return []string{"e"}, nil
	case abi.OpIterBasePointer:
		base := fb.locals.Tmp("base")
		fb.iterBases = append(fb.iterBases, base)
		return []string{base}, nil

	case abi.OpCallWasm:
		return fb.callWasm(inst.Imm.(abi.CallWasmImm), operands)
	case abi.OpCallInterface:
		return fb.callInterface(operands)
	case abi.OpReturn:
		if fb.ig.inImport {
			return nil, fb.importReturn(operands)
		}
		return nil, fb.exportReturn(inst.Imm.(abi.ReturnImm).Amt, operands)

	case abi.OpI32Load:
		return []string{load("int32", operands, offset(inst))}, nil
	case abi.OpI64Load:
		return []string{load("int64", operands, offset(inst))}, nil
	case abi.OpF32Load:
		return []string{load("single", operands, offset(inst))}, nil
	case abi.OpF64Load:
		return []string{load("double", operands, offset(inst))}, nil
	case abi.OpPointerLoad:
		return []string{load("Pbyte", operands, offset(inst))}, nil
	case abi.OpLengthLoad:
		return []string{load("SizeUInt", operands, offset(inst))}, nil
	case abi.OpI32Load8U:
		return []string{"int32(" + load("byte", operands, offset(inst)) + ")"}, nil
	case abi.OpI32Load8S:
		return []string{"int32(" + load("int8", operands, offset(inst)) + ")"}, nil
	case abi.OpI32Load16U:
		return []string{"int32(" + load("uint16", operands, offset(inst)) + ")"}, nil
	case abi.OpI32Load16S:
		return []string{"int32(" + load("int16", operands, offset(inst)) + ")"}, nil

	case abi.OpI32Store:
		fb.store("int32", operands, offset(inst), false)
	case abi.OpI32Store8:
		fb.store("int8", operands, offset(inst), true)
	case abi.OpI32Store16:
		fb.store("int16", operands, offset(inst), true)
	case abi.OpI64Store:
		fb.store("int64", operands, offset(inst), false)
	case abi.OpF32Store:
		fb.store("single", operands, offset(inst), false)
	case abi.OpF64Store:
		fb.store("double", operands, offset(inst), false)
	case abi.OpPointerStore:
		fb.store("Pbyte", operands, offset(inst), false)
	case abi.OpLengthStore:
		fb.store("SizeUInt", operands, offset(inst), false)

	case abi.OpMalloc:
		imm := inst.Imm.(abi.MallocImm)
		ptr, err := fb.local("ptr", "Pbyte")
		if err != nil {
			return nil, err
		}
		fb.src.Line("%s := Pbyte(%s(nil, 0, %d, %d));", ptr, imm.Realloc, imm.Align, imm.Size)
		return []string{ptr}, nil
	case abi.OpGuestDeallocate:
		fb.src.Line("FreeMem(%s);", op0)
	case abi.OpGuestDeallocateString:
		fb.src.Line("if (%s) > 0 then", operands[1])
		fb.src.Line("begin")
		fb.src.Line("  FreeMem(%s);", operands[0])
		fb.src.Line("end;")
	case abi.OpGuestDeallocateVariant:
		return nil, fb.deallocVariant(inst.Imm.(abi.DeallocVariantImm).Blocks, op0)
	case abi.OpGuestDeallocateList:
		return nil, fb.deallocList(inst.Imm.(abi.DeallocListImm).Element, operands)

	default:
		return nil, errors.Unsupported(errors.PhaseGenerate, "instruction "+inst.Opcode.String())
	}
	return nil, nil
}

func offset(inst *abi.Instruction) int {
	return inst.Imm.(abi.MemoryImm).Offset
}

func (fb *funcBindgen) handleLift(t *wit.TypeDef, op string) ([]string, error) {
	g := fb.ig.g
	res := typegraph.Dealias(handleResource(t))
	info, ok := g.resources[res]
	if !ok {
		return nil, errors.NotFound(errors.PhaseGenerate, "resource", typegraph.TypeString(res))
	}
	_, borrow := t.Kind.(*wit.Borrow)

	if borrow && info.Direction == Export {
		name, err := fb.typeName(res)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("P%s(PtrUInt(%s))", name, op)}, nil
	}

	name, err := fb.typeName(t)
	if err != nil {
		return nil, err
	}
	handle, err := fb.local("handle", name)
	if err != nil {
		return nil, err
	}
	fb.src.Line("%s.__handle := %s;", handle, op)

	if borrow && fb.autodrop() {
		b, err := fb.local("borrow", "int32")
		if err != nil {
			return nil, err
		}
		fb.borrowInits.Line("%s := 0;", b)
		fb.src.Line("%s := %s;", b, op)
		fb.borrows = append(fb.borrows, droppableBorrow{name: b, dropFn: info.DropFn})
	}
	return []string{handle}, nil
}

func (fb *funcBindgen) flagsLower(t *wit.TypeDef, op string) ([]string, error) {
	repr, err := flagsRepr(t, len(t.Kind.(*wit.Flags).Flags))
	if err != nil {
		return nil, err
	}
	if repr != abi.U64 {
		return []string{fmt.Sprintf("int32(%s)", op)}, nil
	}
	name, err := fb.typeName(t)
	if err != nil {
		return nil, err
	}
	tmp, err := fb.local("flags", name)
	if err != nil {
		return nil, err
	}
	fb.src.Line("%s := %s;", tmp, op)
	return []string{
		fmt.Sprintf("int32(%s and $FFFFFFFF)", tmp),
		fmt.Sprintf("int32(%s shr 32)", tmp),
	}, nil
}

func (fb *funcBindgen) flagsLift(t *wit.TypeDef, operands []string) ([]string, error) {
	repr, err := flagsRepr(t, len(t.Kind.(*wit.Flags).Flags))
	if err != nil {
		return nil, err
	}
	name, err := fb.typeName(t)
	if err != nil {
		return nil, err
	}
	if repr != abi.U64 {
		return []string{fmt.Sprintf("%s(%s)", name, operands[0])}, nil
	}
	return []string{fmt.Sprintf("%s(uint32(%s)) or (%s(uint32(%s)) shl 32)", name, operands[0], name, operands[1])}, nil
}

// resultVars declares one local per flat result of a lowered variant.
func (fb *funcBindgen) resultVars(prefix string, types []abi.WasmType) ([]string, error) {
	out := make([]string, len(types))
	for i, t := range types {
		name, err := fb.local(prefix, wasmType(t))
		if err != nil {
			return nil, err
		}
		out[i] = name
	}
	return out, nil
}

// arm writes the body of one lowered case: the payload binding, the block
// and the assignments of its results.
func (fb *funcBindgen) arm(payload, payloadType, addr string, b block, results []string) error {
	fb.src.Line("begin")
	fb.src.Indent()
	if payloadType != "" {
		if err := fb.vars.insert(payload, "P"+payloadType); err != nil {
			return err
		}
		fb.src.Line("%s := @(%s);", payload, addr)
	}
	fb.src.Push(b.text)
	for i, r := range results {
		if i < len(b.results) {
			fb.src.Line("%s := %s;", r, b.results[i])
		}
	}
	fb.src.Dedent()
	return nil
}

func (fb *funcBindgen) variantLower(imm abi.VariantLowerImm, op string) ([]string, error) {
	v := imm.Type.Kind.(*wit.Variant)
	blocks, err := fb.popBlocks(len(v.Cases))
	if err != nil {
		return nil, err
	}
	payloads, err := fb.popPayloads(len(v.Cases))
	if err != nil {
		return nil, err
	}
	results, err := fb.resultVars("variant", imm.Results)
	if err != nil {
		return nil, err
	}

	fb.src.Line("case int32((%s).tag) of", op)
	fb.src.Indent()
	for i, c := range v.Cases {
		fb.src.Line("%d:", i)
		payloadType := ""
		if c.Type != nil {
			if payloadType, err = fb.typeName(c.Type); err != nil {
				return nil, err
			}
		}
		if err := fb.arm(payloads[i], payloadType, fmt.Sprintf("(%s).%s", op, Ident(c.Name)), blocks[i], results); err != nil {
			return nil, err
		}
		fb.src.Line("end;")
	}
	fb.src.Dedent()
	fb.src.Line("end;")
	return results, nil
}

func (fb *funcBindgen) variantLift(t *wit.TypeDef, op string) ([]string, error) {
	v := t.Kind.(*wit.Variant)
	blocks, err := fb.popBlocks(len(v.Cases))
	if err != nil {
		return nil, err
	}
	name, err := fb.typeName(t)
	if err != nil {
		return nil, err
	}
	result, err := fb.local("variant", name)
	if err != nil {
		return nil, err
	}

	fb.src.Line("%s.tag := %s(%s);", result, intRepr(abi.DiscriminantType(len(v.Cases))), op)
	fb.src.Line("case int32(%s.tag) of", result)
	fb.src.Indent()
	for i, c := range v.Cases {
		fb.src.Line("%d:", i)
		fb.src.Line("begin")
		fb.splice(blocks[i].text)
		if c.Type != nil && len(blocks[i].results) == 1 {
			fb.src.Line("  %s.%s := %s;", result, Ident(c.Name), blocks[i].results[0])
		}
		fb.src.Line("end;")
	}
	fb.src.Dedent()
	fb.src.Line("end;")
	return []string{result}, nil
}

func (fb *funcBindgen) optionLower(imm abi.VariantLowerImm, op string) ([]string, error) {
	opt := imm.Type.Kind.(*wit.Option)
	blocks, err := fb.popBlocks(2)
	if err != nil {
		return nil, err
	}
	payloads, err := fb.popPayloads(2)
	if err != nil {
		return nil, err
	}
	results, err := fb.resultVars("option", imm.Results)
	if err != nil {
		return nil, err
	}
	payloadType, err := fb.typeName(opt.Type)
	if err != nil {
		return nil, err
	}

	fb.src.Line("if (%s).is_some then", op)
	if err := fb.arm(payloads[1], payloadType, fmt.Sprintf("(%s).val", op), blocks[1], results); err != nil {
		return nil, err
	}
	fb.src.Line("end")
	fb.src.Line("else")
	if err := fb.arm(payloads[0], "", "", blocks[0], results); err != nil {
		return nil, err
	}
	fb.src.Line("end;")
	return results, nil
}

func (fb *funcBindgen) optionLift(t *wit.TypeDef, op string) ([]string, error) {
	blocks, err := fb.popBlocks(2)
	if err != nil {
		return nil, err
	}
	name, err := fb.typeName(t)
	if err != nil {
		return nil, err
	}
	result, err := fb.local("option", name)
	if err != nil {
		return nil, err
	}
	none, some := blocks[0], blocks[1]

	fb.src.Line("case %s of", op)
	fb.src.Indent()
	fb.src.Line("0:")
	fb.src.Line("begin")
	fb.src.Line("  %s.is_some := false;", result)
	fb.splice(none.text)
	fb.src.Line("end;")
	fb.src.Line("1:")
	fb.src.Line("begin")
	fb.src.Line("  %s.is_some := true;", result)
	fb.splice(some.text)
	if len(some.results) == 1 {
		fb.src.Line("  %s.val := %s;", result, some.results[0])
	}
	fb.src.Line("end;")
	fb.src.Dedent()
	fb.src.Line("end;")
	return []string{result}, nil
}

func (fb *funcBindgen) resultLower(imm abi.VariantLowerImm, op string) ([]string, error) {
	res := imm.Type.Kind.(*wit.Result)
	blocks, err := fb.popBlocks(2)
	if err != nil {
		return nil, err
	}
	payloads, err := fb.popPayloads(2)
	if err != nil {
		return nil, err
	}
	results, err := fb.resultVars("res", imm.Results)
	if err != nil {
		return nil, err
	}
	okType, errType := "", ""
	if res.OK != nil {
		if okType, err = fb.typeName(res.OK); err != nil {
			return nil, err
		}
	}
	if res.Err != nil {
		if errType, err = fb.typeName(res.Err); err != nil {
			return nil, err
		}
	}

	fb.src.Line("if (%s).is_err then", op)
	if err := fb.arm(payloads[1], errType, fmt.Sprintf("(%s).err", op), blocks[1], results); err != nil {
		return nil, err
	}
	fb.src.Line("end")
	fb.src.Line("else")
	if err := fb.arm(payloads[0], okType, fmt.Sprintf("(%s).ok", op), blocks[0], results); err != nil {
		return nil, err
	}
	fb.src.Line("end;")
	return results, nil
}

func (fb *funcBindgen) resultLift(t *wit.TypeDef, op string) ([]string, error) {
	blocks, err := fb.popBlocks(2)
	if err != nil {
		return nil, err
	}
	name, err := fb.typeName(t)
	if err != nil {
		return nil, err
	}
	result, err := fb.local("res", name)
	if err != nil {
		return nil, err
	}
	ok, failed := blocks[0], blocks[1]

	fb.src.Line("case %s of", op)
	fb.src.Indent()
	fb.src.Line("0:")
	fb.src.Line("begin")
	fb.src.Line("  %s.is_err := false;", result)
	fb.splice(ok.text)
	if len(ok.results) == 1 {
		fb.src.Line("  %s.ok := %s;", result, ok.results[0])
	}
	fb.src.Line("end;")
	fb.src.Line("1:")
	fb.src.Line("begin")
	fb.src.Line("  %s.is_err := true;", result)
	fb.splice(failed.text)
	if len(failed.results) == 1 {
		fb.src.Line("  %s.err := %s;", result, failed.results[0])
	}
	fb.src.Line("end;")
	fb.src.Dedent()
	fb.src.Line("end;")
	return []string{result}, nil
}

func (fb *funcBindgen) callWasm(imm abi.CallWasmImm, operands []string) ([]string, error) {
	call := fmt.Sprintf("%s(%s);", fb.callee, strings.Join(operands, ", "))
	switch len(imm.Sig.Results) {
	case 0:
		fb.src.Line("%s", call)
		return nil, nil
	case 1:
		ret, err := fb.local("ret", wasmType(imm.Sig.Results[0]))
		if err != nil {
			return nil, err
		}
		fb.src.Line("%s := %s", ret, call)
		return []string{ret}, nil
	}
	return nil, errors.Unsupported(errors.PhaseGenerate, "multi-value return")
}

// callInterface calls the user implementation of an export with the
// source-level convention and rebuilds the WIT result from it.
func (fb *funcBindgen) callInterface(operands []string) ([]string, error) {
	flatten := !fb.ig.g.opts.NoSigFlattening
	var args []string
	for i, op := range operands {
		p := fb.f.Params[i]
		if fb.sig.params[i].byPointer {
			tn, err := fb.typeName(p.Type)
			if err != nil {
				return nil, err
			}
			arg, err := fb.local("arg", tn)
			if err != nil {
				return nil, err
			}
			fb.src.Line("%s := %s;", arg, op)
			args = append(args, "@"+arg)
			continue
		}
		if payload, ok := flattenedOption(p.Type, flatten); ok {
			tn, err := fb.typeName(payload)
			if err != nil {
				return nil, err
			}
			maybe, err := fb.local("maybe", "P"+tn)
			if err != nil {
				return nil, err
			}
			fb.src.Line("if (%s).is_some then %s := @((%s).val) else %s := nil;", op, maybe, op, maybe)
			args = append(args, maybe)
			continue
		}
		args = append(args, op)
	}

	call := func() string {
		return fmt.Sprintf("%s(%s)", fb.sig.name, strings.Join(args, ", "))
	}

	ret := fb.sig.ret
	switch ret.kind {
	case returnVoid:
		fb.src.Line("%s;", call())
		return nil, nil

	case returnIndirect:
		var out []string
		for _, t := range ret.retptrs {
			tn, err := fb.typeName(t)
			if err != nil {
				return nil, err
			}
			r, err := fb.local("ret", tn)
			if err != nil {
				return nil, err
			}
			args = append(args, "@"+r)
			out = append(out, r)
		}
		fb.src.Line("%s;", call())
		return out, nil

	case returnType:
		tn, err := fb.typeName(fb.f.Results[0].Type)
		if err != nil {
			return nil, err
		}
		r, err := fb.local("ret", tn)
		if err != nil {
			return nil, err
		}
		fb.src.Line("%s := %s;", r, call())
		return []string{r}, nil

	case returnOptionBool:
		tn, err := fb.typeName(fb.f.Results[0].Type)
		if err != nil {
			return nil, err
		}
		r, err := fb.local("ret", tn)
		if err != nil {
			return nil, err
		}
		args = append(args, "@"+r+".val")
		fb.src.Line("%s.is_some := %s;", r, call())
		return []string{r}, nil

	case returnResultBool:
		tn, err := fb.typeName(fb.f.Results[0].Type)
		if err != nil {
			return nil, err
		}
		r, err := fb.local("ret", tn)
		if err != nil {
			return nil, err
		}
		var okVar, errVar string
		if ret.ok != nil {
			otn, err := fb.typeName(ret.ok)
			if err != nil {
				return nil, err
			}
			if okVar, err = fb.local("ok", otn); err != nil {
				return nil, err
			}
			args = append(args, "@"+okVar)
		}
		if ret.err != nil {
			etn, err := fb.typeName(ret.err)
			if err != nil {
				return nil, err
			}
			if errVar, err = fb.local("err", etn); err != nil {
				return nil, err
			}
			args = append(args, "@"+errVar)
		}
		fb.src.Line("%s.is_err := not %s;", r, call())
		if errVar != "" {
			fb.src.Line("if %s.is_err then", r)
			fb.src.Line("begin")
			fb.src.Line("  %s.err := %s;", r, errVar)
			fb.src.Line("end;")
		}
		if okVar != "" {
			fb.src.Line("if not %s.is_err then", r)
			fb.src.Line("begin")
			fb.src.Line("  %s.ok := %s;", r, okVar)
			fb.src.Line("end;")
		}
		return []string{r}, nil
	}
	return nil, errors.InvalidState(errors.PhaseGenerate, "unknown return kind %d", ret.kind)
}

func (fb *funcBindgen) storeInRetptr(op string) error {
	if fb.retStore >= len(fb.sig.retptrs) {
		return errors.InvalidState(errors.PhaseGenerate, "%s: more results than out-parameters", fb.f.Name)
	}
	fb.src.Line("%s^ := %s;", fb.sig.retptrs[fb.retStore], op)
	fb.retStore++
	return nil
}

// importReturn hands the lifted results back through the source-level
// convention of an import binding.
func (fb *funcBindgen) importReturn(operands []string) error {
	ret := fb.sig.ret
	switch ret.kind {
	case returnIndirect:
		for _, op := range operands {
			if err := fb.storeInRetptr(op); err != nil {
				return err
			}
		}
	case returnVoid:
	case returnType:
		fb.src.Line("exit(%s);", operands[0])
	case returnOptionBool:
		if err := fb.storeInRetptr("(" + operands[0] + ").val"); err != nil {
			return err
		}
		fb.src.Line("exit((%s).is_some);", operands[0])
	case returnResultBool:
		op := operands[0]
		fb.src.Line("if not (%s).is_err then", op)
		fb.src.Line("begin")
		fb.src.Indent()
		if ret.ok != nil {
			if err := fb.storeInRetptr("(" + op + ").ok"); err != nil {
				return err
			}
		}
		fb.src.Line("exit(true);")
		fb.src.Dedent()
		fb.src.Line("end")
		fb.src.Line("else")
		fb.src.Line("begin")
		fb.src.Indent()
		if ret.err != nil {
			if err := fb.storeInRetptr("(" + op + ").err"); err != nil {
				return err
			}
		}
		fb.src.Line("exit(false);")
		fb.src.Dedent()
		fb.src.Line("end;")
	}
	return nil
}

// exportReturn drops captured borrows and returns the core result.
func (fb *funcBindgen) exportReturn(amt int, operands []string) error {
	for _, r := range fb.f.Results {
		if err := fb.assertNoDroppableBorrows("return", r.Type); err != nil {
			return err
		}
	}
	for _, b := range fb.borrows {
		fb.src.Line("if %s <> 0 then", b.name)
		fb.src.Line("begin")
		fb.src.Line("  %s(%s);", b.dropFn, b.name)
		fb.src.Line("end;")
	}
	if amt > 1 {
		return errors.Unsupported(errors.PhaseGenerate, "multi-value return")
	}
	if amt == 1 {
		fb.src.Line("exit(%s);", operands[0])
	}
	return nil
}

func (fb *funcBindgen) deallocVariant(n int, tag string) error {
	blocks, err := fb.popBlocks(n)
	if err != nil {
		return err
	}
	var arms source.Source
	for i, b := range blocks {
		if b.text == "" {
			continue
		}
		arms.Line("%d:", i)
		arms.Line("begin")
		arms.Indent()
		arms.Push(b.text)
		arms.Dedent()
		arms.Line("end;")
	}
	if arms.Len() == 0 {
		return nil
	}
	fb.src.Line("case int32(%s) of", tag)
	fb.splice(arms.String())
	fb.src.Line("end;")
	return nil
}

func (fb *funcBindgen) deallocList(element wit.Type, operands []string) error {
	blocks, err := fb.popBlocks(1)
	if err != nil {
		return err
	}
	body := blocks[0].text
	base := fb.popIterBase()

	n, err := fb.local("len", "SizeUInt")
	if err != nil {
		return err
	}
	ptr, err := fb.local("ptr", "Pbyte")
	if err != nil {
		return err
	}
	fb.src.Line("%s := %s;", n, operands[1])
	fb.src.Line("if %s > 0 then", n)
	fb.src.Line("begin")
	fb.src.Indent()
	fb.src.Line("%s := %s;", ptr, operands[0])
	if body != "" {
		i, err := fb.local("i", "SizeUInt")
		if err != nil {
			return err
		}
		if err := fb.vars.insert(base, "Pbyte"); err != nil {
			return err
		}
		fb.src.Line("for %s := 0 to %s - 1 do", i, n)
		fb.src.Line("begin")
		fb.src.Line("  %s := %s + %s * %d;", base, ptr, i, fb.ig.g.sizes.Size(element))
		fb.splice(body)
		fb.src.Line("end;")
	}
	fb.src.Line("FreeMem(%s);", ptr)
	fb.src.Dedent()
	fb.src.Line("end;")
	return nil
}
