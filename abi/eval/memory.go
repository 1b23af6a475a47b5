package eval

import (
	"context"
	"fmt"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	witbindgen "github.com/wippyai/witbindgen"
	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/internal/wasmbin"
)

const pageSize = 65536

// Memory is a wazero linear memory exported by an otherwise empty module.
type Memory struct {
	rt  wazero.Runtime
	mem api.Memory
}

// NewMemory instantiates a module exporting a memory of the given pages.
func NewMemory(ctx context.Context, pages uint32) (*Memory, error) {
	bin := (&wasmbin.Module{
		Memories: []uint32{pages},
		Exports:  []wasmbin.Export{{Name: "memory", Kind: wasmbin.KindMemory, Index: 0}},
	}).Encode()

	rt := wazero.NewRuntime(ctx)
	mod, err := rt.Instantiate(ctx, bin)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseEval, errors.KindInvalidState, err, "instantiate memory module")
	}
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseEval, "memory export", "memory")
	}
	return &Memory{rt: rt, mem: mem}, nil
}

// Close releases the runtime backing the memory.
func (m *Memory) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}

func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// Grow adds pages and returns the previous size in pages.
func (m *Memory) Grow(pages uint32) (uint32, bool) {
	return m.mem.Grow(pages)
}

func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseEval, nil, offset, length)
	}
	return data, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEval, nil, offset, uint32(len(data)))
	}
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseEval, nil, offset, 1)
	}
	return v, nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseEval, nil, offset, 2)
	}
	return v, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseEval, nil, offset, 4)
	}
	return v, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseEval, nil, offset, 8)
	}
	return v, nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseEval, nil, offset, 1)
	}
	return nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEval, nil, offset, 2)
	}
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEval, nil, offset, 4)
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEval, nil, offset, 8)
	}
	return nil
}

// Allocator is a bump allocator over a Memory that tracks live blocks.
// Freed blocks are not reused, so stale pointers never alias new data.
type Allocator struct {
	mem  *Memory
	live map[uint32]uint32
	next uint32
}

func NewAllocator(mem *Memory) *Allocator {
	// Address 0 stays unused so a null pointer is never a valid block.
	return &Allocator{mem: mem, live: make(map[uint32]uint32), next: 8}
}

func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	ptr := (a.next + align - 1) &^ (align - 1)
	end := uint64(ptr) + uint64(size)
	if end > uint64(a.mem.Size()) {
		need := (end - uint64(a.mem.Size()) + pageSize - 1) / pageSize
		if _, ok := a.mem.Grow(uint32(need)); !ok {
			return 0, errors.AllocationFailed(errors.PhaseEval, size, align)
		}
	}
	a.next = uint32(end)
	a.live[ptr] = size
	Logger().Debug("alloc", zap.Uint32("ptr", ptr), zap.Uint32("size", size))
	return ptr, nil
}

func (a *Allocator) Free(ptr, size, align uint32) {
	delete(a.live, ptr)
}

// Live returns the number of blocks allocated and not yet freed.
func (a *Allocator) Live() int {
	return len(a.live)
}

// LiveBlocks describes the live blocks, for test failure messages.
func (a *Allocator) LiveBlocks() []string {
	ptrs := make([]uint32, 0, len(a.live))
	for p := range a.live {
		ptrs = append(ptrs, p)
	}
	sort.Slice(ptrs, func(i, j int) bool { return ptrs[i] < ptrs[j] })
	out := make([]string, len(ptrs))
	for i, p := range ptrs {
		out[i] = fmt.Sprintf("%d+%d", p, a.live[p])
	}
	return out
}

var (
	_ witbindgen.Memory      = (*Memory)(nil)
	_ witbindgen.MemorySizer = (*Memory)(nil)
	_ witbindgen.Allocator   = (*Allocator)(nil)
)
