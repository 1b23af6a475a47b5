package abi

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/errors"
)

// Bindgen consumes the instruction stream of a Generator. Operands are
// whatever the consumer computes with: source text for code generators,
// concrete values for evaluators.
type Bindgen[Op any] interface {
	// Emit executes inst over operands and returns exactly
	// inst.ResultsLen() results.
	Emit(inst *Instruction, operands []Op) ([]Op, error)
	// PushBlock opens a nested block.
	PushBlock()
	// FinishBlock closes the innermost block; operands are its results.
	FinishBlock(operands []Op)
	// ReturnPointer returns scratch memory of the given size and alignment.
	ReturnPointer(size, align int) Op
	// IsListCanonical reports whether lists of element share their
	// in-memory representation with the canonical ABI.
	IsListCanonical(element wit.Type) bool
}

// Generator drives a Bindgen with the canonical-ABI lift and lower
// algorithm. The first error stops generation; later steps are skipped.
type Generator[Op any] struct {
	bindgen   Bindgen[Op]
	sizes     *Sizes
	err       error
	stack     []Op
	variant   Variant
	liftLower LiftLower
}

func NewGenerator[Op any](sizes *Sizes, b Bindgen[Op]) *Generator[Op] {
	return &Generator[Op]{bindgen: b, sizes: sizes}
}

// Call emits the adapter for f.
func Call[Op any](sizes *Sizes, b Bindgen[Op], variant Variant, liftLower LiftLower, f *wit.Function) error {
	return NewGenerator(sizes, b).Call(variant, liftLower, f)
}

// PostReturn emits the cleanup for an exported f's results.
func PostReturn[Op any](sizes *Sizes, b Bindgen[Op], f *wit.Function) error {
	return NewGenerator(sizes, b).PostReturn(f)
}

// Deallocate emits the cleanup of a value of type t stored at addr.
func Deallocate[Op any](sizes *Sizes, b Bindgen[Op], t wit.Type, addr Op) error {
	return NewGenerator(sizes, b).Deallocate(t, addr)
}

// Call emits the adapter for f in the given direction.
func (g *Generator[Op]) Call(variant Variant, liftLower LiftLower, f *wit.Function) error {
	g.variant = variant
	g.liftLower = liftLower
	sig := Signature(variant, f)

	switch liftLower {
	case LowerArgsLiftResults:
		g.lowerArgsLiftResults(f, sig)
	case LiftArgsLowerResults:
		g.liftArgsLowerResults(f, sig)
	}

	if g.err == nil && len(g.stack) != 0 {
		g.fail(errors.InvalidState(errors.PhaseGenerate, "%d operands left on the stack after %s", len(g.stack), f.Name))
	}
	return g.err
}

func (g *Generator[Op]) lowerArgsLiftResults(f *wit.Function, sig *WasmSignature) {
	if !sig.IndirectParams {
		for i, p := range f.Params {
			g.emit(&Instruction{Opcode: OpGetArg, Imm: ArgImm{Nth: i}})
			g.lower(p.Type)
		}
	} else {
		info := g.sizes.Record(ParamTypes(f))
		var ptr Op
		switch g.variant {
		case GuestImport:
			ptr = g.bindgen.ReturnPointer(info.Size, info.Align)
		case GuestExport:
			g.emit(&Instruction{Opcode: OpMalloc, Imm: MallocImm{Realloc: "cabi_realloc", Size: info.Size, Align: info.Align}})
			ptr = g.pop()
		}
		offsets := g.sizes.FieldOffsets(ParamTypes(f))
		for i, p := range f.Params {
			g.emit(&Instruction{Opcode: OpGetArg, Imm: ArgImm{Nth: i}})
			g.writeToMemory(p.Type, ptr, offsets[i])
		}
		g.push(ptr)
	}

	var retptr Op
	if g.variant == GuestImport && sig.Retptr {
		info := g.sizes.Record(ResultTypes(f))
		retptr = g.bindgen.ReturnPointer(info.Size, info.Align)
		g.push(retptr)
	}

	if g.err == nil && len(g.stack) != len(sig.Params) {
		g.fail(errors.InvalidState(errors.PhaseGenerate, "%s: %d operands for %d core params", f.Name, len(g.stack), len(sig.Params)))
	}
	g.emit(&Instruction{Opcode: OpCallWasm, Imm: CallWasmImm{Name: f.Name, Sig: sig}})

	if !sig.Retptr {
		for _, r := range f.Results {
			g.lift(r.Type)
		}
	} else {
		if g.variant == GuestExport {
			retptr = g.pop()
		}
		g.readFieldsFromMemory(ResultTypes(f), retptr, 0)
	}

	g.emit(&Instruction{Opcode: OpReturn, Imm: ReturnImm{Func: f, Amt: len(f.Results)}})
}

func (g *Generator[Op]) liftArgsLowerResults(f *wit.Function, sig *WasmSignature) {
	var params Op
	if !sig.IndirectParams {
		nth := 0
		for _, p := range f.Params {
			for range Flatten(p.Type) {
				g.emit(&Instruction{Opcode: OpGetArg, Imm: ArgImm{Nth: nth}})
				nth++
			}
			g.lift(p.Type)
		}
	} else {
		g.emit(&Instruction{Opcode: OpGetArg, Imm: ArgImm{Nth: 0}})
		params = g.pop()
		g.readFieldsFromMemory(ParamTypes(f), params, 0)
	}

	g.emit(&Instruction{Opcode: OpCallInterface, Imm: FuncImm{Func: f}})

	// The caller allocated the parameter block; lifted values may still
	// refer to it until the call returns.
	if sig.IndirectParams && g.variant == GuestExport {
		info := g.sizes.Record(ParamTypes(f))
		g.push(params)
		g.emit(&Instruction{Opcode: OpGuestDeallocate, Imm: DeallocImm{Size: info.Size, Align: info.Align}})
	}

	if !sig.Retptr {
		for _, r := range f.Results {
			g.lower(r.Type)
		}
	} else {
		switch g.variant {
		case GuestImport:
			g.emit(&Instruction{Opcode: OpGetArg, Imm: ArgImm{Nth: len(sig.Params) - 1}})
			ptr := g.pop()
			g.writeFieldsToMemory(ResultTypes(f), ptr, 0)
		case GuestExport:
			info := g.sizes.Record(ResultTypes(f))
			ptr := g.bindgen.ReturnPointer(info.Size, info.Align)
			g.writeFieldsToMemory(ResultTypes(f), ptr, 0)
			g.push(ptr)
		}
	}

	g.emit(&Instruction{Opcode: OpReturn, Imm: ReturnImm{Func: f, Amt: len(sig.Results)}})
}

// PostReturn emits the cleanup run after an exported f's results were
// read by the caller. Its single argument is the return pointer.
func (g *Generator[Op]) PostReturn(f *wit.Function) error {
	sig := Signature(GuestExport, f)
	if !sig.Retptr {
		return errors.InvalidState(errors.PhaseGenerate, "post-return for %s without a return pointer", f.Name)
	}

	g.emit(&Instruction{Opcode: OpGetArg, Imm: ArgImm{Nth: 0}})
	addr := g.pop()
	types := ResultTypes(f)
	for i, off := range g.sizes.FieldOffsets(types) {
		g.deallocate(types[i], addr, off)
	}
	g.emit(&Instruction{Opcode: OpReturn, Imm: ReturnImm{Func: f, Amt: 0}})
	return g.err
}

// Deallocate emits the cleanup of a value of type t stored at addr.
func (g *Generator[Op]) Deallocate(t wit.Type, addr Op) error {
	g.deallocate(t, addr, 0)
	return g.err
}

func (g *Generator[Op]) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

func (g *Generator[Op]) push(ops ...Op) {
	g.stack = append(g.stack, ops...)
}

func (g *Generator[Op]) pop() Op {
	var zero Op
	if len(g.stack) == 0 {
		g.fail(errors.InvalidState(errors.PhaseGenerate, "operand stack underflow"))
		return zero
	}
	op := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	return op
}

func (g *Generator[Op]) drain(n int) []Op {
	if n > len(g.stack) {
		g.fail(errors.InvalidState(errors.PhaseGenerate, "operand stack underflow: need %d, have %d", n, len(g.stack)))
		n = len(g.stack)
	}
	ops := make([]Op, n)
	copy(ops, g.stack[len(g.stack)-n:])
	g.stack = g.stack[:len(g.stack)-n]
	return ops
}

func (g *Generator[Op]) emit(inst *Instruction) {
	if g.err != nil {
		return
	}
	n := inst.OperandsLen()
	if n > len(g.stack) {
		g.fail(errors.InvalidState(errors.PhaseGenerate, "%s needs %d operands, stack has %d", inst.Opcode, n, len(g.stack)))
		return
	}
	operands := g.drain(n)
	results, err := g.bindgen.Emit(inst, operands)
	if err != nil {
		g.fail(err)
		return
	}
	if len(results) != inst.ResultsLen() {
		g.fail(errors.InvalidState(errors.PhaseGenerate, "%s produced %d results, want %d", inst.Opcode, len(results), inst.ResultsLen()))
		return
	}
	g.push(results...)
}

func (g *Generator[Op]) pushBlock() {
	if g.err != nil {
		return
	}
	g.bindgen.PushBlock()
}

func (g *Generator[Op]) finishBlock(n int) {
	if g.err != nil {
		return
	}
	g.bindgen.FinishBlock(g.drain(n))
}

// listRealloc is empty when lowering arguments of an import call: the
// callee only borrows them.
func (g *Generator[Op]) listRealloc() string {
	if g.variant == GuestImport && g.liftLower == LowerArgsLiftResults {
		return ""
	}
	return "cabi_realloc"
}

func (g *Generator[Op]) unsupported(t *wit.TypeDef) {
	g.fail(errors.New(errors.PhaseGenerate, errors.KindUnsupported).
		WitType(kindName(t)).
		Detail("async and bare resource types are not implemented").
		Build())
}

func (g *Generator[Op]) lower(t wit.Type) {
	if g.err != nil {
		return
	}
	switch typ := t.(type) {
	case wit.Bool:
		g.emit(&Instruction{Opcode: OpI32FromBool})
	case wit.S8:
		g.emit(&Instruction{Opcode: OpI32FromS8})
	case wit.U8:
		g.emit(&Instruction{Opcode: OpI32FromU8})
	case wit.S16:
		g.emit(&Instruction{Opcode: OpI32FromS16})
	case wit.U16:
		g.emit(&Instruction{Opcode: OpI32FromU16})
	case wit.S32:
		g.emit(&Instruction{Opcode: OpI32FromS32})
	case wit.U32:
		g.emit(&Instruction{Opcode: OpI32FromU32})
	case wit.S64:
		g.emit(&Instruction{Opcode: OpI64FromS64})
	case wit.U64:
		g.emit(&Instruction{Opcode: OpI64FromU64})
	case wit.Char:
		g.emit(&Instruction{Opcode: OpI32FromChar})
	case wit.F32:
		g.emit(&Instruction{Opcode: OpCoreF32FromF32})
	case wit.F64:
		g.emit(&Instruction{Opcode: OpCoreF64FromF64})
	case wit.String:
		g.emit(&Instruction{Opcode: OpStringLower, Imm: ReallocImm{Realloc: g.listRealloc()}})
	case *wit.TypeDef:
		g.lowerTypeDef(typ)
	}
}

func (g *Generator[Op]) lowerTypeDef(t *wit.TypeDef) {
	switch kind := t.Kind.(type) {
	case *wit.List:
		realloc := g.listRealloc()
		if g.bindgen.IsListCanonical(kind.Type) {
			g.emit(&Instruction{Opcode: OpListCanonLower, Imm: ListImm{Element: kind.Type, Type: t, Realloc: realloc}})
			return
		}
		g.pushBlock()
		g.emit(&Instruction{Opcode: OpIterElem, Imm: ListImm{Element: kind.Type, Type: t}})
		g.emit(&Instruction{Opcode: OpIterBasePointer})
		addr := g.pop()
		g.writeToMemory(kind.Type, addr, 0)
		g.finishBlock(0)
		g.emit(&Instruction{Opcode: OpListLower, Imm: ListImm{Element: kind.Type, Type: t, Realloc: realloc}})
	case *wit.Own, *wit.Borrow:
		g.emit(&Instruction{Opcode: OpHandleLower, Imm: TypeDefImm{Type: t}})
	case *wit.Record:
		g.emit(&Instruction{Opcode: OpRecordLower, Imm: TypeDefImm{Type: t}})
		values := g.drain(len(kind.Fields))
		for i, f := range kind.Fields {
			if i < len(values) {
				g.push(values[i])
			}
			g.lower(f.Type)
		}
	case *wit.Tuple:
		g.emit(&Instruction{Opcode: OpTupleLower, Imm: TypeDefImm{Type: t}})
		values := g.drain(len(kind.Types))
		for i, typ := range kind.Types {
			if i < len(values) {
				g.push(values[i])
			}
			g.lower(typ)
		}
	case *wit.Flags:
		g.emit(&Instruction{Opcode: OpFlagsLower, Imm: TypeDefImm{Type: t}})
	case *wit.Enum:
		g.emit(&Instruction{Opcode: OpEnumLower, Imm: TypeDefImm{Type: t}})
	case *wit.Variant:
		results := g.lowerVariantArms(t, VariantCases(kind))
		g.emit(&Instruction{Opcode: OpVariantLower, Imm: VariantLowerImm{Type: t, Results: results}})
	case *wit.Option:
		results := g.lowerVariantArms(t, []wit.Type{nil, kind.Type})
		g.emit(&Instruction{Opcode: OpOptionLower, Imm: VariantLowerImm{Type: t, Results: results}})
	case *wit.Result:
		results := g.lowerVariantArms(t, []wit.Type{kind.OK, kind.Err})
		g.emit(&Instruction{Opcode: OpResultLower, Imm: VariantLowerImm{Type: t, Results: results}})
	case wit.Type:
		g.lower(kind)
	default:
		g.unsupported(t)
	}
}

// lowerVariantArms emits one block per case. Each block pushes the
// discriminant and the case payload cast to the joined flat types, padded
// with zeros.
func (g *Generator[Op]) lowerVariantArms(t wit.Type, cases []wit.Type) []WasmType {
	results := Flatten(t)
	for i, c := range cases {
		g.pushBlock()
		g.emit(&Instruction{Opcode: OpVariantPayloadName})
		payload := g.pop()
		g.emit(&Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: int32(i)}})
		pushed := 1
		if c != nil {
			g.push(payload)
			g.lower(c)

			flat := Flatten(c)
			pushed += len(flat)
			casts := make([]Bitcast, len(flat))
			needed := false
			for j, actual := range flat {
				casts[j] = Cast(actual, results[j+1])
				needed = needed || !casts[j].IsNone()
			}
			if needed {
				g.emit(&Instruction{Opcode: OpBitcasts, Imm: BitcastsImm{Casts: casts}})
			}
		}
		if pushed < len(results) {
			g.emit(&Instruction{Opcode: OpConstZero, Imm: ConstZeroImm{Types: results[pushed:]}})
		}
		g.finishBlock(len(results))
	}
	return results
}

func (g *Generator[Op]) lift(t wit.Type) {
	if g.err != nil {
		return
	}
	switch typ := t.(type) {
	case wit.Bool:
		g.emit(&Instruction{Opcode: OpBoolFromI32})
	case wit.S8:
		g.emit(&Instruction{Opcode: OpS8FromI32})
	case wit.U8:
		g.emit(&Instruction{Opcode: OpU8FromI32})
	case wit.S16:
		g.emit(&Instruction{Opcode: OpS16FromI32})
	case wit.U16:
		g.emit(&Instruction{Opcode: OpU16FromI32})
	case wit.S32:
		g.emit(&Instruction{Opcode: OpS32FromI32})
	case wit.U32:
		g.emit(&Instruction{Opcode: OpU32FromI32})
	case wit.S64:
		g.emit(&Instruction{Opcode: OpS64FromI64})
	case wit.U64:
		g.emit(&Instruction{Opcode: OpU64FromI64})
	case wit.Char:
		g.emit(&Instruction{Opcode: OpCharFromI32})
	case wit.F32:
		g.emit(&Instruction{Opcode: OpF32FromCoreF32})
	case wit.F64:
		g.emit(&Instruction{Opcode: OpF64FromCoreF64})
	case wit.String:
		g.emit(&Instruction{Opcode: OpStringLift})
	case *wit.TypeDef:
		g.liftTypeDef(typ)
	}
}

func (g *Generator[Op]) liftTypeDef(t *wit.TypeDef) {
	switch kind := t.Kind.(type) {
	case *wit.List:
		if g.bindgen.IsListCanonical(kind.Type) {
			g.emit(&Instruction{Opcode: OpListCanonLift, Imm: ListImm{Element: kind.Type, Type: t}})
			return
		}
		g.pushBlock()
		g.emit(&Instruction{Opcode: OpIterBasePointer})
		addr := g.pop()
		g.readFromMemory(kind.Type, addr, 0)
		g.finishBlock(1)
		g.emit(&Instruction{Opcode: OpListLift, Imm: ListImm{Element: kind.Type, Type: t}})
	case *wit.Own, *wit.Borrow:
		g.emit(&Instruction{Opcode: OpHandleLift, Imm: TypeDefImm{Type: t}})
	case *wit.Record:
		fields := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i] = f.Type
		}
		g.liftFields(t, fields)
		g.emit(&Instruction{Opcode: OpRecordLift, Imm: TypeDefImm{Type: t}})
	case *wit.Tuple:
		g.liftFields(t, kind.Types)
		g.emit(&Instruction{Opcode: OpTupleLift, Imm: TypeDefImm{Type: t}})
	case *wit.Flags:
		g.emit(&Instruction{Opcode: OpFlagsLift, Imm: TypeDefImm{Type: t}})
	case *wit.Enum:
		g.emit(&Instruction{Opcode: OpEnumLift, Imm: TypeDefImm{Type: t}})
	case *wit.Variant:
		g.liftVariantArms(t, VariantCases(kind))
		g.emit(&Instruction{Opcode: OpVariantLift, Imm: TypeDefImm{Type: t}})
	case *wit.Option:
		g.liftVariantArms(t, []wit.Type{nil, kind.Type})
		g.emit(&Instruction{Opcode: OpOptionLift, Imm: TypeDefImm{Type: t}})
	case *wit.Result:
		g.liftVariantArms(t, []wit.Type{kind.OK, kind.Err})
		g.emit(&Instruction{Opcode: OpResultLift, Imm: TypeDefImm{Type: t}})
	case wit.Type:
		g.lift(kind)
	default:
		g.unsupported(t)
	}
}

// liftFields lifts each field from its share of the flattened operands.
func (g *Generator[Op]) liftFields(t wit.Type, fields []wit.Type) {
	args := g.drain(len(Flatten(t)))
	for _, f := range fields {
		n := len(Flatten(f))
		if n > len(args) {
			n = len(args)
		}
		g.push(args[:n]...)
		args = args[n:]
		g.lift(f)
	}
}

// liftVariantArms leaves the discriminant on the stack and emits one block
// per case lifting the payload from the joined flat operands.
func (g *Generator[Op]) liftVariantArms(t wit.Type, cases []wit.Type) {
	params := Flatten(t)
	inputs := g.drain(len(params) - 1)
	for _, c := range cases {
		g.pushBlock()
		if c != nil {
			flat := Flatten(c)
			if len(flat) <= len(inputs) {
				g.push(inputs[:len(flat)]...)
			}
			casts := make([]Bitcast, len(flat))
			needed := false
			for j, actual := range flat {
				casts[j] = Cast(params[j+1], actual)
				needed = needed || !casts[j].IsNone()
			}
			if needed {
				g.emit(&Instruction{Opcode: OpBitcasts, Imm: BitcastsImm{Casts: casts}})
			}
			g.lift(c)
			g.finishBlock(1)
		} else {
			g.finishBlock(0)
		}
	}
}

func (g *Generator[Op]) storeIntRepr(offset int, repr Int) {
	op := OpI32Store8
	switch repr {
	case U16:
		op = OpI32Store16
	case U32:
		op = OpI32Store
	case U64:
		op = OpI64Store
	}
	g.emit(&Instruction{Opcode: op, Imm: MemoryImm{Offset: offset}})
}

func (g *Generator[Op]) loadIntRepr(offset int, repr Int) {
	op := OpI32Load8U
	switch repr {
	case U16:
		op = OpI32Load16U
	case U32:
		op = OpI32Load
	case U64:
		op = OpI64Load
	}
	g.emit(&Instruction{Opcode: op, Imm: MemoryImm{Offset: offset}})
}

func (g *Generator[Op]) lowerAndStore(t wit.Type, addr Op, op Opcode, offset int) {
	g.lower(t)
	g.push(addr)
	g.emit(&Instruction{Opcode: op, Imm: MemoryImm{Offset: offset}})
}

func (g *Generator[Op]) writeToMemory(t wit.Type, addr Op, offset int) {
	if g.err != nil {
		return
	}
	switch typ := t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		g.lowerAndStore(t, addr, OpI32Store8, offset)
	case wit.U16, wit.S16:
		g.lowerAndStore(t, addr, OpI32Store16, offset)
	case wit.U32, wit.S32, wit.Char:
		g.lowerAndStore(t, addr, OpI32Store, offset)
	case wit.U64, wit.S64:
		g.lowerAndStore(t, addr, OpI64Store, offset)
	case wit.F32:
		g.lowerAndStore(t, addr, OpF32Store, offset)
	case wit.F64:
		g.lowerAndStore(t, addr, OpF64Store, offset)
	case wit.String:
		g.writeListToMemory(t, addr, offset)
	case *wit.TypeDef:
		g.writeTypeDefToMemory(typ, addr, offset)
	}
}

func (g *Generator[Op]) writeTypeDefToMemory(t *wit.TypeDef, addr Op, offset int) {
	switch kind := t.Kind.(type) {
	case *wit.List:
		g.writeListToMemory(t, addr, offset)
	case *wit.Own, *wit.Borrow:
		g.lowerAndStore(t, addr, OpI32Store, offset)
	case *wit.Record:
		g.emit(&Instruction{Opcode: OpRecordLower, Imm: TypeDefImm{Type: t}})
		fields := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i] = f.Type
		}
		g.writeFieldsToMemory(fields, addr, offset)
	case *wit.Tuple:
		g.emit(&Instruction{Opcode: OpTupleLower, Imm: TypeDefImm{Type: t}})
		g.writeFieldsToMemory(kind.Types, addr, offset)
	case *wit.Flags:
		g.lower(t)
		repr := FlagsReprOf(len(kind.Flags))
		if repr.Kind != U32 {
			g.push(addr)
			g.storeIntRepr(offset, repr.Kind)
			return
		}
		for i := repr.Words - 1; i >= 0; i-- {
			g.push(addr)
			g.emit(&Instruction{Opcode: OpI32Store, Imm: MemoryImm{Offset: offset + 4*i}})
		}
	case *wit.Enum:
		g.lower(t)
		g.push(addr)
		g.storeIntRepr(offset, DiscriminantType(len(kind.Cases)))
	case *wit.Variant:
		g.writeVariantArmsToMemory(offset, addr, DiscriminantType(len(kind.Cases)), VariantCases(kind))
		g.emit(&Instruction{Opcode: OpVariantLower, Imm: VariantLowerImm{Type: t}})
	case *wit.Option:
		g.writeVariantArmsToMemory(offset, addr, U8, []wit.Type{nil, kind.Type})
		g.emit(&Instruction{Opcode: OpOptionLower, Imm: VariantLowerImm{Type: t}})
	case *wit.Result:
		g.writeVariantArmsToMemory(offset, addr, U8, []wit.Type{kind.OK, kind.Err})
		g.emit(&Instruction{Opcode: OpResultLower, Imm: VariantLowerImm{Type: t}})
	case wit.Type:
		g.writeToMemory(kind, addr, offset)
	default:
		g.unsupported(t)
	}
}

func (g *Generator[Op]) writeVariantArmsToMemory(offset int, addr Op, tag Int, cases []wit.Type) {
	payloadOffset := offset + g.sizes.PayloadOffset(tag, cases)
	for i, c := range cases {
		g.pushBlock()
		g.emit(&Instruction{Opcode: OpVariantPayloadName})
		payload := g.pop()
		g.emit(&Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: int32(i)}})
		g.push(addr)
		g.storeIntRepr(offset, tag)
		if c != nil {
			g.push(payload)
			g.writeToMemory(c, addr, payloadOffset)
		}
		g.finishBlock(0)
	}
}

// writeListToMemory stores the pointer at offset and the length one
// pointer width above it.
func (g *Generator[Op]) writeListToMemory(t wit.Type, addr Op, offset int) {
	g.lower(t)
	g.push(addr)
	g.emit(&Instruction{Opcode: OpLengthStore, Imm: MemoryImm{Offset: offset + 4}})
	g.push(addr)
	g.emit(&Instruction{Opcode: OpPointerStore, Imm: MemoryImm{Offset: offset}})
}

func (g *Generator[Op]) writeFieldsToMemory(types []wit.Type, addr Op, offset int) {
	fields := g.drain(len(types))
	for i, off := range g.sizes.FieldOffsets(types) {
		if i < len(fields) {
			g.push(fields[i])
		}
		g.writeToMemory(types[i], addr, offset+off)
	}
}

func (g *Generator[Op]) loadAndLift(t wit.Type, addr Op, op Opcode, offset int) {
	g.push(addr)
	g.emit(&Instruction{Opcode: op, Imm: MemoryImm{Offset: offset}})
	g.lift(t)
}

func (g *Generator[Op]) readFromMemory(t wit.Type, addr Op, offset int) {
	if g.err != nil {
		return
	}
	switch typ := t.(type) {
	case wit.Bool, wit.U8:
		g.loadAndLift(t, addr, OpI32Load8U, offset)
	case wit.S8:
		g.loadAndLift(t, addr, OpI32Load8S, offset)
	case wit.U16:
		g.loadAndLift(t, addr, OpI32Load16U, offset)
	case wit.S16:
		g.loadAndLift(t, addr, OpI32Load16S, offset)
	case wit.U32, wit.S32, wit.Char:
		g.loadAndLift(t, addr, OpI32Load, offset)
	case wit.U64, wit.S64:
		g.loadAndLift(t, addr, OpI64Load, offset)
	case wit.F32:
		g.loadAndLift(t, addr, OpF32Load, offset)
	case wit.F64:
		g.loadAndLift(t, addr, OpF64Load, offset)
	case wit.String:
		g.readListFromMemory(t, addr, offset)
	case *wit.TypeDef:
		g.readTypeDefFromMemory(typ, addr, offset)
	}
}

func (g *Generator[Op]) readTypeDefFromMemory(t *wit.TypeDef, addr Op, offset int) {
	switch kind := t.Kind.(type) {
	case *wit.List:
		g.readListFromMemory(t, addr, offset)
	case *wit.Own, *wit.Borrow:
		g.loadAndLift(t, addr, OpI32Load, offset)
	case *wit.Record:
		fields := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i] = f.Type
		}
		g.readFieldsFromMemory(fields, addr, offset)
		g.emit(&Instruction{Opcode: OpRecordLift, Imm: TypeDefImm{Type: t}})
	case *wit.Tuple:
		g.readFieldsFromMemory(kind.Types, addr, offset)
		g.emit(&Instruction{Opcode: OpTupleLift, Imm: TypeDefImm{Type: t}})
	case *wit.Flags:
		repr := FlagsReprOf(len(kind.Flags))
		if repr.Kind != U32 {
			g.push(addr)
			g.loadIntRepr(offset, repr.Kind)
		} else {
			for i := range repr.Words {
				g.push(addr)
				g.emit(&Instruction{Opcode: OpI32Load, Imm: MemoryImm{Offset: offset + 4*i}})
			}
		}
		g.lift(t)
	case *wit.Enum:
		g.push(addr)
		g.loadIntRepr(offset, DiscriminantType(len(kind.Cases)))
		g.lift(t)
	case *wit.Variant:
		g.readVariantArmsFromMemory(offset, addr, DiscriminantType(len(kind.Cases)), VariantCases(kind))
		g.emit(&Instruction{Opcode: OpVariantLift, Imm: TypeDefImm{Type: t}})
	case *wit.Option:
		g.readVariantArmsFromMemory(offset, addr, U8, []wit.Type{nil, kind.Type})
		g.emit(&Instruction{Opcode: OpOptionLift, Imm: TypeDefImm{Type: t}})
	case *wit.Result:
		g.readVariantArmsFromMemory(offset, addr, U8, []wit.Type{kind.OK, kind.Err})
		g.emit(&Instruction{Opcode: OpResultLift, Imm: TypeDefImm{Type: t}})
	case wit.Type:
		g.readFromMemory(kind, addr, offset)
	default:
		g.unsupported(t)
	}
}

func (g *Generator[Op]) readVariantArmsFromMemory(offset int, addr Op, tag Int, cases []wit.Type) {
	g.push(addr)
	g.loadIntRepr(offset, tag)
	payloadOffset := offset + g.sizes.PayloadOffset(tag, cases)
	for _, c := range cases {
		g.pushBlock()
		if c != nil {
			g.readFromMemory(c, addr, payloadOffset)
			g.finishBlock(1)
		} else {
			g.finishBlock(0)
		}
	}
}

func (g *Generator[Op]) readListFromMemory(t wit.Type, addr Op, offset int) {
	g.push(addr)
	g.emit(&Instruction{Opcode: OpPointerLoad, Imm: MemoryImm{Offset: offset}})
	g.push(addr)
	g.emit(&Instruction{Opcode: OpLengthLoad, Imm: MemoryImm{Offset: offset + 4}})
	g.lift(t)
}

func (g *Generator[Op]) readFieldsFromMemory(types []wit.Type, addr Op, offset int) {
	for i, off := range g.sizes.FieldOffsets(types) {
		g.readFromMemory(types[i], addr, offset+off)
	}
}

func (g *Generator[Op]) deallocate(t wit.Type, addr Op, offset int) {
	if g.err != nil || !needsPostReturn(t) {
		return
	}
	switch typ := t.(type) {
	case wit.String:
		g.push(addr)
		g.emit(&Instruction{Opcode: OpPointerLoad, Imm: MemoryImm{Offset: offset}})
		g.push(addr)
		g.emit(&Instruction{Opcode: OpLengthLoad, Imm: MemoryImm{Offset: offset + 4}})
		g.emit(&Instruction{Opcode: OpGuestDeallocateString})
	case *wit.TypeDef:
		g.deallocateTypeDef(typ, addr, offset)
	}
}

func (g *Generator[Op]) deallocateTypeDef(t *wit.TypeDef, addr Op, offset int) {
	switch kind := t.Kind.(type) {
	case *wit.List:
		g.push(addr)
		g.emit(&Instruction{Opcode: OpPointerLoad, Imm: MemoryImm{Offset: offset}})
		g.push(addr)
		g.emit(&Instruction{Opcode: OpLengthLoad, Imm: MemoryImm{Offset: offset + 4}})

		g.pushBlock()
		g.emit(&Instruction{Opcode: OpIterBasePointer})
		elem := g.pop()
		g.deallocate(kind.Type, elem, 0)
		g.finishBlock(0)

		g.emit(&Instruction{Opcode: OpGuestDeallocateList, Imm: DeallocListImm{Element: kind.Type}})
	case *wit.Record:
		fields := make([]wit.Type, len(kind.Fields))
		for i, f := range kind.Fields {
			fields[i] = f.Type
		}
		g.deallocateFields(fields, addr, offset)
	case *wit.Tuple:
		g.deallocateFields(kind.Types, addr, offset)
	case *wit.Variant:
		g.deallocateVariant(offset, addr, DiscriminantType(len(kind.Cases)), VariantCases(kind))
	case *wit.Option:
		g.deallocateVariant(offset, addr, U8, []wit.Type{nil, kind.Type})
	case *wit.Result:
		g.deallocateVariant(offset, addr, U8, []wit.Type{kind.OK, kind.Err})
	case wit.Type:
		g.deallocate(kind, addr, offset)
	}
}

func (g *Generator[Op]) deallocateVariant(offset int, addr Op, tag Int, cases []wit.Type) {
	g.push(addr)
	g.loadIntRepr(offset, tag)
	payloadOffset := offset + g.sizes.PayloadOffset(tag, cases)
	for _, c := range cases {
		g.pushBlock()
		if c != nil {
			g.deallocate(c, addr, payloadOffset)
		}
		g.finishBlock(0)
	}
	g.emit(&Instruction{Opcode: OpGuestDeallocateVariant, Imm: DeallocVariantImm{Blocks: len(cases)}})
}

func (g *Generator[Op]) deallocateFields(types []wit.Type, addr Op, offset int) {
	for i, off := range g.sizes.FieldOffsets(types) {
		g.deallocate(types[i], addr, offset+off)
	}
}

func kindName(t *wit.TypeDef) string {
	switch t.Kind.(type) {
	case *wit.Future:
		return "future"
	case *wit.Stream:
		return "stream"
	case *wit.Resource:
		return "resource"
	}
	if t.Name != nil {
		return *t.Name
	}
	return "unknown"
}
