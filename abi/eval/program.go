package eval

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/abi"
	"github.com/wippyai/witbindgen/errors"
)

type step struct {
	inst    *abi.Instruction
	args    []int
	results []int
	blocks  []*block
}

type block struct {
	steps   []step
	results []int
}

type retArea struct {
	reg   int
	size  int
	align int
}

// Program is a recorded instruction stream.
type Program struct {
	Func    *wit.Function
	Sig     *abi.WasmSignature
	body    *block
	areas   []retArea
	inputs  []int
	regs    int
	Variant abi.Variant
	static  bool
}

// Compile records the adapter for f.
func Compile(sizes *abi.Sizes, variant abi.Variant, liftLower abi.LiftLower, f *wit.Function) (*Program, error) {
	r := newRecorder(variant)
	if err := abi.Call(sizes, r, variant, liftLower, f); err != nil {
		return nil, err
	}
	return r.program(f, abi.Signature(variant, f))
}

// CompilePostReturn records the post-return cleanup of an exported f.
func CompilePostReturn(sizes *abi.Sizes, f *wit.Function) (*Program, error) {
	r := newRecorder(abi.GuestExport)
	if err := abi.PostReturn(sizes, r, f); err != nil {
		return nil, err
	}
	return r.program(f, nil)
}

// CompileDeallocate records the cleanup of a value of type t. The program
// takes the value's address as its only argument.
func CompileDeallocate(sizes *abi.Sizes, t wit.Type) (*Program, error) {
	r := newRecorder(abi.GuestExport)
	addr := r.reg()
	r.inputs = append(r.inputs, addr)
	if err := abi.Deallocate(sizes, r, t, addr); err != nil {
		return nil, err
	}
	return r.program(nil, nil)
}

// recorder implements abi.Bindgen over register numbers.
type recorder struct {
	open     []*block
	finished []*block
	areas    []retArea
	inputs   []int
	regs     int
	variant  abi.Variant
}

func newRecorder(variant abi.Variant) *recorder {
	return &recorder{open: []*block{{}}, variant: variant}
}

func (r *recorder) reg() int {
	r.regs++
	return r.regs - 1
}

func (r *recorder) Emit(inst *abi.Instruction, operands []int) ([]int, error) {
	s := step{inst: inst, args: operands}
	if n := inst.Blocks(); n > 0 {
		if n > len(r.finished) {
			return nil, errors.InvalidState(errors.PhaseEval, "%s needs %d blocks, have %d", inst.Opcode, n, len(r.finished))
		}
		s.blocks = append([]*block(nil), r.finished[len(r.finished)-n:]...)
		r.finished = r.finished[:len(r.finished)-n]
	}
	s.results = make([]int, inst.ResultsLen())
	for i := range s.results {
		s.results[i] = r.reg()
	}
	cur := r.open[len(r.open)-1]
	cur.steps = append(cur.steps, s)
	return s.results, nil
}

func (r *recorder) PushBlock() {
	r.open = append(r.open, &block{})
}

func (r *recorder) FinishBlock(operands []int) {
	b := r.open[len(r.open)-1]
	r.open = r.open[:len(r.open)-1]
	b.results = operands
	r.finished = append(r.finished, b)
}

func (r *recorder) ReturnPointer(size, align int) int {
	reg := r.reg()
	r.areas = append(r.areas, retArea{reg: reg, size: size, align: align})
	return reg
}

// IsListCanonical is false so every list element goes through a block.
func (r *recorder) IsListCanonical(wit.Type) bool {
	return false
}

func (r *recorder) program(f *wit.Function, sig *abi.WasmSignature) (*Program, error) {
	if len(r.open) != 1 || len(r.finished) != 0 {
		return nil, errors.InvalidState(errors.PhaseEval, "unbalanced blocks: %d open, %d unclaimed", len(r.open)-1, len(r.finished))
	}
	return &Program{
		Func:    f,
		Sig:     sig,
		body:    r.open[0],
		areas:   r.areas,
		inputs:  r.inputs,
		regs:    r.regs,
		Variant: r.variant,
		static:  r.variant == abi.GuestExport,
	}, nil
}

// Steps returns the number of recorded instructions, nested blocks included.
func (p *Program) Steps() int {
	return countSteps(p.body)
}

func countSteps(b *block) int {
	n := len(b.steps)
	for _, s := range b.steps {
		for _, nested := range s.blocks {
			n += countSteps(nested)
		}
	}
	return n
}
