package eval

import (
	"context"
	"fmt"
	"math"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/witbindgen/abi"
	"github.com/wippyai/witbindgen/errors"
)

// Env supplies the calls a program makes.
type Env struct {
	// CallWasm serves OpCallWasm with core arguments and results.
	CallWasm func(ctx context.Context, name string, args []any) ([]any, error)
	// CallInterface serves OpCallInterface with component values.
	CallInterface func(ctx context.Context, f *wit.Function, args []any) ([]any, error)
}

// Machine executes programs over one linear memory.
type Machine struct {
	Env        Env
	mem        *Memory
	alloc      *Allocator
	sizes      *abi.Sizes
	deferred   []func(context.Context) error
	static     uint32
	staticSize int
	depth      int
	encoding   Encoding
}

func NewMachine(mem *Memory, alloc *Allocator, sizes *abi.Sizes, enc Encoding) *Machine {
	return &Machine{mem: mem, alloc: alloc, sizes: sizes, encoding: enc}
}

// frame is the state of one program run.
type frame struct {
	ctx      context.Context
	m        *Machine
	prog     *Program
	payload  any
	iterElem any
	regs     []any
	args     []any
	results  []any
	temps    []uint32
	iterBase uint32
}

// Run executes p with args and returns the operands of its Return.
// Memory lowered for borrowed arguments and import return areas is freed
// before Run returns.
func (m *Machine) Run(ctx context.Context, p *Program, args ...any) ([]any, error) {
	f := &frame{ctx: ctx, m: m, prog: p, regs: make([]any, p.regs), args: args}
	defer f.freeTemps()
	m.depth++
	defer func() { m.depth-- }()

	for i, reg := range p.inputs {
		if i >= len(args) {
			return nil, errors.InvalidInput(errors.PhaseEval, fmt.Sprintf("program takes %d inputs, got %d", len(p.inputs), len(args)))
		}
		f.regs[reg] = args[i]
	}
	for _, area := range p.areas {
		var ptr uint32
		var err error
		if p.static {
			ptr, err = m.staticArea(area.size, area.align)
		} else {
			ptr, err = f.allocTemp(uint32(area.size), uint32(area.align))
		}
		if err != nil {
			return nil, err
		}
		f.regs[area.reg] = ptr
	}

	if _, err := f.run(p.body); err != nil {
		return nil, err
	}
	if m.depth == 1 {
		if err := m.runDeferred(ctx); err != nil {
			return nil, err
		}
	}
	return f.results, nil
}

// runDeferred runs cleanups registered by nested calls once the outermost
// program has lifted its results.
func (m *Machine) runDeferred(ctx context.Context) error {
	for len(m.deferred) > 0 {
		fn := m.deferred[0]
		m.deferred = m.deferred[1:]
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// staticArea returns scratch memory that outlives a run, like the static
// return area of generated export adapters. It is not tracked as live.
func (m *Machine) staticArea(size, align int) (uint32, error) {
	if size <= m.staticSize && m.static%uint32(max(align, 1)) == 0 {
		return m.static, nil
	}
	ptr, err := m.alloc.Alloc(uint32(max(size, 8)), 8)
	if err != nil {
		return 0, err
	}
	delete(m.alloc.live, ptr)
	m.static, m.staticSize = ptr, max(size, 8)
	return ptr, nil
}

func (f *frame) allocTemp(size, align uint32) (uint32, error) {
	ptr, err := f.m.alloc.Alloc(size, align)
	if err != nil {
		return 0, err
	}
	f.temps = append(f.temps, ptr)
	return ptr, nil
}

func (f *frame) freeTemps() {
	for _, ptr := range f.temps {
		f.m.alloc.Free(ptr, 0, 0)
	}
	f.temps = nil
}

// allocList allocates size bytes for a lowered string or list. Empty
// buffers get the alignment as a dangling pointer and no allocation.
func (f *frame) allocList(size, align uint32, realloc string) (uint32, error) {
	if size == 0 {
		return align, nil
	}
	if realloc == "" {
		return f.allocTemp(size, align)
	}
	return f.m.alloc.Alloc(size, align)
}

func (f *frame) run(b *block) ([]any, error) {
	for i := range b.steps {
		if err := f.exec(&b.steps[i]); err != nil {
			return nil, err
		}
	}
	out := make([]any, len(b.results))
	for i, reg := range b.results {
		out[i] = f.regs[reg]
	}
	return out, nil
}

func (f *frame) exec(s *step) error {
	ops := make([]any, len(s.args))
	for i, reg := range s.args {
		ops[i] = f.regs[reg]
	}
	results, err := f.eval(s, ops)
	if err != nil {
		return err
	}
	if len(results) != len(s.results) {
		return errors.InvalidState(errors.PhaseEval, "%s produced %d results, want %d", s.inst.Opcode, len(results), len(s.results))
	}
	for i, reg := range s.results {
		f.regs[reg] = results[i]
	}
	return nil
}

func mismatch(s *step, want string, v any) error {
	return errors.TypeMismatch(errors.PhaseEval, []string{s.inst.Opcode.String()}, want, v)
}

func operand[T any](s *step, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, mismatch(s, fmt.Sprintf("%T", zero), v)
	}
	return t, nil
}

func one(v any) []any { return []any{v} }

func (f *frame) eval(s *step, ops []any) ([]any, error) {
	inst := s.inst
	switch inst.Opcode {
	case abi.OpGetArg:
		n := inst.Imm.(abi.ArgImm).Nth
		if n >= len(f.args) {
			return nil, errors.InvalidInput(errors.PhaseEval, fmt.Sprintf("argument %d of %d", n, len(f.args)))
		}
		return one(f.args[n]), nil
	case abi.OpI32Const:
		return one(uint32(inst.Imm.(abi.I32Imm).Value)), nil
	case abi.OpConstZero:
		types := inst.Imm.(abi.ConstZeroImm).Types
		out := make([]any, len(types))
		for i, t := range types {
			out[i] = zeroOf(t)
		}
		return out, nil
	case abi.OpBitcasts:
		casts := inst.Imm.(abi.BitcastsImm).Casts
		out := make([]any, len(ops))
		for i, op := range ops {
			v, err := applyBitcast(s, op, casts[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case abi.OpI32Load, abi.OpI32Load8U, abi.OpI32Load8S, abi.OpI32Load16U, abi.OpI32Load16S,
		abi.OpI64Load, abi.OpF32Load, abi.OpF64Load, abi.OpPointerLoad, abi.OpLengthLoad:
		return f.load(s, ops)
	case abi.OpI32Store, abi.OpI32Store8, abi.OpI32Store16, abi.OpI64Store,
		abi.OpF32Store, abi.OpF64Store, abi.OpPointerStore, abi.OpLengthStore:
		return nil, f.store(s, ops)
	}

	if out, ok, err := convert(s, ops); ok {
		return out, err
	}

	switch inst.Opcode {
	case abi.OpStringLower:
		return f.stringLower(s, ops[0], inst.Imm.(abi.ReallocImm).Realloc)
	case abi.OpStringLift:
		return f.stringLift(s, ops)
	case abi.OpListLower:
		return f.listLower(s, ops[0])
	case abi.OpListLift:
		return f.listLift(s, ops)
	case abi.OpIterElem:
		return one(f.iterElem), nil
	case abi.OpIterBasePointer:
		return one(f.iterBase), nil
	case abi.OpListCanonLower, abi.OpListCanonLift:
		return nil, errors.Unsupported(errors.PhaseEval, "canonical list instructions are not recorded")

	case abi.OpRecordLower:
		n := len(inst.TypeDef().Kind.(*wit.Record).Fields)
		return aggregate[Record](s, ops[0], n)
	case abi.OpRecordLift:
		return one(Record(append([]any(nil), ops...))), nil
	case abi.OpTupleLower:
		n := len(inst.TypeDef().Kind.(*wit.Tuple).Types)
		return aggregate[Tuple](s, ops[0], n)
	case abi.OpTupleLift:
		return one(Tuple(append([]any(nil), ops...))), nil

	case abi.OpHandleLower:
		h, err := operand[Handle](s, ops[0])
		return one(uint32(h)), err
	case abi.OpHandleLift:
		v, err := operand[uint32](s, ops[0])
		return one(Handle(v)), err

	case abi.OpFlagsLower:
		return flagsLower(s, ops[0])
	case abi.OpFlagsLift:
		return flagsLift(s, ops)

	case abi.OpEnumLower:
		e, err := operand[Enum](s, ops[0])
		return one(uint32(e)), err
	case abi.OpEnumLift:
		v, err := operand[uint32](s, ops[0])
		if err != nil {
			return nil, err
		}
		n := len(inst.TypeDef().Kind.(*wit.Enum).Cases)
		if int(v) >= n {
			return nil, errors.InvalidDiscriminant(errors.PhaseEval, []string{typeName(inst.TypeDef())}, v, uint32(n-1))
		}
		return one(Enum(v)), nil

	case abi.OpVariantPayloadName:
		return one(f.payload), nil
	case abi.OpVariantLower, abi.OpOptionLower, abi.OpResultLower:
		return f.variantLower(s, ops[0])
	case abi.OpVariantLift, abi.OpOptionLift, abi.OpResultLift:
		return f.variantLift(s, ops[0])

	case abi.OpCallWasm:
		imm := inst.Imm.(abi.CallWasmImm)
		if f.m.Env.CallWasm == nil {
			return nil, errors.NotFound(errors.PhaseEval, "core function", imm.Name)
		}
		Logger().Debug("call wasm", zap.String("name", imm.Name), zap.Int("args", len(ops)))
		return f.m.Env.CallWasm(f.ctx, imm.Name, ops)
	case abi.OpCallInterface:
		fn := inst.Imm.(abi.FuncImm).Func
		if f.m.Env.CallInterface == nil {
			return nil, errors.NotFound(errors.PhaseEval, "interface function", fn.Name)
		}
		return f.m.Env.CallInterface(f.ctx, fn, ops)
	case abi.OpReturn:
		f.results = ops
		return nil, nil

	case abi.OpMalloc:
		imm := inst.Imm.(abi.MallocImm)
		ptr, err := f.m.alloc.Alloc(uint32(imm.Size), uint32(imm.Align))
		return one(ptr), err
	case abi.OpGuestDeallocate:
		imm := inst.Imm.(abi.DeallocImm)
		ptr, err := operand[uint32](s, ops[0])
		if err == nil {
			f.m.alloc.Free(ptr, uint32(imm.Size), uint32(imm.Align))
		}
		return nil, err
	case abi.OpGuestDeallocateString:
		ptr, err := operand[uint32](s, ops[0])
		if err != nil {
			return nil, err
		}
		n, err := operand[uint32](s, ops[1])
		if err == nil && n > 0 {
			f.m.alloc.Free(ptr, f.m.encoding.byteLen(n), f.m.encoding.align())
		}
		return nil, err
	case abi.OpGuestDeallocateList:
		return nil, f.deallocList(s, ops)
	case abi.OpGuestDeallocateVariant:
		disc, err := operand[uint32](s, ops[0])
		if err != nil {
			return nil, err
		}
		if int(disc) >= len(s.blocks) {
			return nil, errors.InvalidDiscriminant(errors.PhaseEval, nil, disc, uint32(len(s.blocks)-1))
		}
		_, err = f.run(s.blocks[disc])
		return nil, err
	}
	return nil, errors.Unsupported(errors.PhaseEval, "instruction "+inst.Opcode.String())
}

func typeName(t *wit.TypeDef) string {
	if t != nil && t.Name != nil {
		return *t.Name
	}
	return "anonymous"
}

func zeroOf(t abi.WasmType) any {
	switch t {
	case abi.I64, abi.PointerOrI64:
		return uint64(0)
	case abi.F32:
		return float32(0)
	case abi.F64:
		return float64(0)
	}
	return uint32(0)
}

func applyBitcast(s *step, v any, cast abi.Bitcast) (any, error) {
	for _, op := range cast {
		switch op {
		case abi.F32ToI32, abi.F32ToI64:
			x, err := operand[float32](s, v)
			if err != nil {
				return nil, err
			}
			if op == abi.F32ToI32 {
				v = math.Float32bits(x)
			} else {
				v = uint64(math.Float32bits(x))
			}
		case abi.F64ToI64:
			x, err := operand[float64](s, v)
			if err != nil {
				return nil, err
			}
			v = math.Float64bits(x)
		case abi.I32ToF32:
			x, err := operand[uint32](s, v)
			if err != nil {
				return nil, err
			}
			v = math.Float32frombits(x)
		case abi.I32ToI64, abi.PToP64, abi.LToI64:
			x, err := operand[uint32](s, v)
			if err != nil {
				return nil, err
			}
			v = uint64(x)
		case abi.I64ToF64, abi.I64ToF32, abi.I64ToI32, abi.P64ToP, abi.I64ToL:
			x, err := operand[uint64](s, v)
			if err != nil {
				return nil, err
			}
			switch op {
			case abi.I64ToF64:
				v = math.Float64frombits(x)
			case abi.I64ToF32:
				v = math.Float32frombits(uint32(x))
			default:
				v = uint32(x)
			}
		case abi.P64ToI64, abi.I64ToP64:
			if _, err := operand[uint64](s, v); err != nil {
				return nil, err
			}
		default:
			if _, err := operand[uint32](s, v); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// convert handles the scalar lowering and lifting opcodes. ok is false for
// any other opcode.
func convert(s *step, ops []any) ([]any, bool, error) {
	op := s.inst.Opcode
	switch op {
	case abi.OpI32FromBool:
		b, err := operand[bool](s, ops[0])
		if b {
			return one(uint32(1)), true, err
		}
		return one(uint32(0)), true, err
	case abi.OpI32FromU8:
		v, err := operand[uint8](s, ops[0])
		return one(uint32(v)), true, err
	case abi.OpI32FromS8:
		v, err := operand[int8](s, ops[0])
		return one(uint32(int32(v))), true, err
	case abi.OpI32FromU16:
		v, err := operand[uint16](s, ops[0])
		return one(uint32(v)), true, err
	case abi.OpI32FromS16:
		v, err := operand[int16](s, ops[0])
		return one(uint32(int32(v))), true, err
	case abi.OpI32FromU32:
		v, err := operand[uint32](s, ops[0])
		return one(v), true, err
	case abi.OpI32FromS32:
		v, err := operand[int32](s, ops[0])
		return one(uint32(v)), true, err
	case abi.OpI64FromU64:
		v, err := operand[uint64](s, ops[0])
		return one(v), true, err
	case abi.OpI64FromS64:
		v, err := operand[int64](s, ops[0])
		return one(uint64(v)), true, err
	case abi.OpI32FromChar:
		v, err := operand[Char](s, ops[0])
		return one(uint32(v)), true, err
	case abi.OpCoreF32FromF32, abi.OpF32FromCoreF32:
		v, err := operand[float32](s, ops[0])
		return one(v), true, err
	case abi.OpCoreF64FromF64, abi.OpF64FromCoreF64:
		v, err := operand[float64](s, ops[0])
		return one(v), true, err
	}

	switch op {
	case abi.OpBoolFromI32, abi.OpU8FromI32, abi.OpS8FromI32, abi.OpU16FromI32, abi.OpS16FromI32,
		abi.OpU32FromI32, abi.OpS32FromI32, abi.OpCharFromI32:
	case abi.OpU64FromI64:
		v, err := operand[uint64](s, ops[0])
		return one(v), true, err
	case abi.OpS64FromI64:
		v, err := operand[uint64](s, ops[0])
		return one(int64(v)), true, err
	default:
		return nil, false, nil
	}

	v, err := operand[uint32](s, ops[0])
	if err != nil {
		return nil, true, err
	}
	switch op {
	case abi.OpBoolFromI32:
		return one(v != 0), true, nil
	case abi.OpU8FromI32:
		return one(uint8(v)), true, nil
	case abi.OpS8FromI32:
		return one(int8(v)), true, nil
	case abi.OpU16FromI32:
		return one(uint16(v)), true, nil
	case abi.OpS16FromI32:
		return one(int16(v)), true, nil
	case abi.OpU32FromI32:
		return one(v), true, nil
	case abi.OpS32FromI32:
		return one(int32(v)), true, nil
	default:
		if v >= 0x110000 || (v >= 0xD800 && v < 0xE000) {
			return nil, true, errors.New(errors.PhaseEval, errors.KindInvalidData).
				WitType("char").Value(v).Detail("invalid unicode scalar value %#x", v).Build()
		}
		return one(Char(v)), true, nil
	}
}

func (f *frame) load(s *step, ops []any) ([]any, error) {
	base, err := operand[uint32](s, ops[0])
	if err != nil {
		return nil, err
	}
	addr := base + uint32(s.inst.Imm.(abi.MemoryImm).Offset)
	mem := f.m.mem
	switch s.inst.Opcode {
	case abi.OpI32Load8U, abi.OpI32Load8S:
		b, err := mem.ReadU8(addr)
		if s.inst.Opcode == abi.OpI32Load8S {
			return one(uint32(int32(int8(b)))), err
		}
		return one(uint32(b)), err
	case abi.OpI32Load16U, abi.OpI32Load16S:
		h, err := mem.ReadU16(addr)
		if s.inst.Opcode == abi.OpI32Load16S {
			return one(uint32(int32(int16(h)))), err
		}
		return one(uint32(h)), err
	case abi.OpI64Load:
		v, err := mem.ReadU64(addr)
		return one(v), err
	case abi.OpF32Load:
		v, err := mem.ReadU32(addr)
		return one(math.Float32frombits(v)), err
	case abi.OpF64Load:
		v, err := mem.ReadU64(addr)
		return one(math.Float64frombits(v)), err
	default:
		v, err := mem.ReadU32(addr)
		return one(v), err
	}
}

func (f *frame) store(s *step, ops []any) error {
	base, err := operand[uint32](s, ops[1])
	if err != nil {
		return err
	}
	addr := base + uint32(s.inst.Imm.(abi.MemoryImm).Offset)
	mem := f.m.mem
	switch s.inst.Opcode {
	case abi.OpI64Store:
		v, err := operand[uint64](s, ops[0])
		if err != nil {
			return err
		}
		return mem.WriteU64(addr, v)
	case abi.OpF32Store:
		v, err := operand[float32](s, ops[0])
		if err != nil {
			return err
		}
		return mem.WriteU32(addr, math.Float32bits(v))
	case abi.OpF64Store:
		v, err := operand[float64](s, ops[0])
		if err != nil {
			return err
		}
		return mem.WriteU64(addr, math.Float64bits(v))
	}

	v, err := operand[uint32](s, ops[0])
	if err != nil {
		return err
	}
	switch s.inst.Opcode {
	case abi.OpI32Store8:
		return mem.WriteU8(addr, uint8(v))
	case abi.OpI32Store16:
		return mem.WriteU16(addr, uint16(v))
	default:
		return mem.WriteU32(addr, v)
	}
}

func aggregate[T ~[]any](s *step, v any, n int) ([]any, error) {
	agg, err := operand[T](s, v)
	if err != nil {
		return nil, err
	}
	if len(agg) != n {
		return nil, errors.New(errors.PhaseEval, errors.KindTypeMismatch).
			Path(s.inst.Opcode.String()).WitType(typeName(s.inst.TypeDef())).
			Detail("%d values for %d fields", len(agg), n).Build()
	}
	return append([]any(nil), agg...), nil
}

func flagsLower(s *step, v any) ([]any, error) {
	flags, err := operand[Flags](s, v)
	if err != nil {
		return nil, err
	}
	switch n := s.inst.ResultsLen(); n {
	case 0:
		return nil, nil
	case 1:
		return one(uint32(flags)), nil
	case 2:
		return []any{uint32(flags), uint32(flags >> 32)}, nil
	default:
		return nil, errors.Unsupported(errors.PhaseEval, fmt.Sprintf("flags with %d words", n))
	}
}

func flagsLift(s *step, ops []any) ([]any, error) {
	if len(ops) > 2 {
		return nil, errors.Unsupported(errors.PhaseEval, fmt.Sprintf("flags with %d words", len(ops)))
	}
	var flags Flags
	for i, op := range ops {
		w, err := operand[uint32](s, op)
		if err != nil {
			return nil, err
		}
		flags |= Flags(w) << (32 * i)
	}
	return one(flags), nil
}

func (f *frame) stringLower(s *step, v any, realloc string) ([]any, error) {
	str, err := operand[string](s, v)
	if err != nil {
		return nil, err
	}
	data, units, err := f.m.encoding.encodeString(str)
	if err != nil {
		return nil, err
	}
	ptr, err := f.allocList(uint32(len(data)), f.m.encoding.align(), realloc)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := f.m.mem.Write(ptr, data); err != nil {
			return nil, err
		}
	}
	return []any{ptr, units}, nil
}

func (f *frame) stringLift(s *step, ops []any) ([]any, error) {
	ptr, err := operand[uint32](s, ops[0])
	if err != nil {
		return nil, err
	}
	n, err := operand[uint32](s, ops[1])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return one(""), nil
	}
	data, err := f.m.mem.Read(ptr, f.m.encoding.byteLen(n))
	if err != nil {
		return nil, err
	}
	str, err := f.m.encoding.decodeString(data)
	return one(str), err
}

func (f *frame) listLower(s *step, v any) ([]any, error) {
	list, err := operand[List](s, v)
	if err != nil {
		return nil, err
	}
	imm := s.inst.Imm.(abi.ListImm)
	info := f.m.sizes.Info(imm.Element)
	ptr, err := f.allocList(uint32(len(list)*info.Size), uint32(info.Align), imm.Realloc)
	if err != nil {
		return nil, err
	}

	elem, base := f.iterElem, f.iterBase
	defer func() { f.iterElem, f.iterBase = elem, base }()
	for i, e := range list {
		f.iterElem = e
		f.iterBase = ptr + uint32(i*info.Size)
		if _, err := f.run(s.blocks[0]); err != nil {
			return nil, err
		}
	}
	return []any{ptr, uint32(len(list))}, nil
}

func (f *frame) listLift(s *step, ops []any) ([]any, error) {
	ptr, err := operand[uint32](s, ops[0])
	if err != nil {
		return nil, err
	}
	n, err := operand[uint32](s, ops[1])
	if err != nil {
		return nil, err
	}
	size := uint32(f.m.sizes.Size(s.inst.Imm.(abi.ListImm).Element))

	base := f.iterBase
	defer func() { f.iterBase = base }()
	list := make(List, 0, n)
	for i := range n {
		f.iterBase = ptr + i*size
		res, err := f.run(s.blocks[0])
		if err != nil {
			return nil, err
		}
		list = append(list, res[0])
	}
	return one(list), nil
}

func (f *frame) deallocList(s *step, ops []any) error {
	ptr, err := operand[uint32](s, ops[0])
	if err != nil {
		return err
	}
	n, err := operand[uint32](s, ops[1])
	if err != nil {
		return err
	}
	info := f.m.sizes.Info(s.inst.Imm.(abi.DeallocListImm).Element)

	base := f.iterBase
	defer func() { f.iterBase = base }()
	for i := range n {
		f.iterBase = ptr + i*uint32(info.Size)
		if _, err := f.run(s.blocks[0]); err != nil {
			return err
		}
	}
	if n > 0 {
		f.m.alloc.Free(ptr, n*uint32(info.Size), uint32(info.Align))
	}
	return nil
}

func (f *frame) variantLower(s *step, v any) ([]any, error) {
	val, err := operand[Variant](s, v)
	if err != nil {
		return nil, err
	}
	if int(val.Case) >= len(s.blocks) {
		return nil, errors.InvalidDiscriminant(errors.PhaseEval, []string{typeName(s.inst.TypeDef())}, val.Case, uint32(len(s.blocks)-1))
	}
	saved := f.payload
	defer func() { f.payload = saved }()
	f.payload = val.Payload
	return f.run(s.blocks[val.Case])
}

func (f *frame) variantLift(s *step, v any) ([]any, error) {
	disc, err := operand[uint32](s, v)
	if err != nil {
		return nil, err
	}
	if int(disc) >= len(s.blocks) {
		return nil, errors.InvalidDiscriminant(errors.PhaseEval, []string{typeName(s.inst.TypeDef())}, disc, uint32(len(s.blocks)-1))
	}
	res, err := f.run(s.blocks[disc])
	if err != nil {
		return nil, err
	}
	out := Variant{Case: disc}
	if len(res) == 1 {
		out.Payload = res[0]
	}
	return one(out), nil
}

// Link returns a CallWasm function that serves the core calls of the
// import program imp by running the export program exp on m, copying
// results through memory when imp passes a return pointer. post, when
// non-nil, runs on the export's return area after the outermost program
// finishes.
func Link(m *Machine, imp, exp, post *Program) func(ctx context.Context, name string, args []any) ([]any, error) {
	return func(ctx context.Context, name string, args []any) ([]any, error) {
		if imp.Sig == nil || !imp.Sig.Retptr {
			return m.Run(ctx, exp, args...)
		}
		if len(args) == 0 {
			return nil, errors.InvalidInput(errors.PhaseEval, "missing return pointer")
		}
		dst, ok := args[len(args)-1].(uint32)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseEval, []string{name}, "pointer", args[len(args)-1])
		}
		res, err := m.Run(ctx, exp, args[:len(args)-1]...)
		if err != nil {
			return nil, err
		}
		if len(res) != 1 {
			return nil, errors.InvalidState(errors.PhaseEval, "%s returned %d values, want a pointer", name, len(res))
		}
		src, ok := res[0].(uint32)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseEval, []string{name}, "pointer", res[0])
		}
		info := m.sizes.Record(abi.ResultTypes(exp.Func))
		data, err := m.mem.Read(src, uint32(info.Size))
		if err != nil {
			return nil, err
		}
		if err := m.mem.Write(dst, append([]byte(nil), data...)); err != nil {
			return nil, err
		}
		if post != nil {
			m.deferred = append(m.deferred, func(ctx context.Context) error {
				_, err := m.Run(ctx, post, src)
				return err
			})
		}
		return nil, nil
	}
}
