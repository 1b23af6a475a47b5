package eval

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/witbindgen/errors"
)

func TestTable(t *testing.T) {
	tbl := NewTable()
	a := tbl.New(1, 100)
	b := tbl.New(1, 200)
	if a != 1 || b != 2 {
		t.Fatalf("handles = %d, %d, want 1, 2", a, b)
	}

	rep, err := tbl.Rep(b, 1)
	if err != nil || rep != 200 {
		t.Errorf("Rep(b) = %d, %v, want 200", rep, err)
	}
	if _, err := tbl.Rep(b, 2); err == nil {
		t.Error("Rep with wrong type should fail")
	}

	if err := tbl.Borrow(a, 1); err != nil {
		t.Fatalf("Borrow() error = %v", err)
	}
	if _, err := tbl.Drop(a, 1); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEval, Kind: errors.KindInvalidState}) {
		t.Errorf("Drop() with borrow error = %v, want invalid state", err)
	}
	if err := tbl.EndBorrow(a, 1); err != nil {
		t.Fatalf("EndBorrow() error = %v", err)
	}
	if err := tbl.EndBorrow(a, 1); err == nil {
		t.Error("EndBorrow() without borrow should fail")
	}

	rep, err = tbl.Drop(a, 1)
	if err != nil || rep != 100 {
		t.Errorf("Drop(a) = %d, %v, want 100", rep, err)
	}
	if _, err := tbl.Drop(a, 1); err == nil {
		t.Error("double drop should fail")
	}
	if got := tbl.Drops(1); got != 1 {
		t.Errorf("Drops(1) = %d, want 1", got)
	}
	if got := tbl.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}

	if c := tbl.New(1, 300); c != a {
		t.Errorf("freed slot not reused: got %d, want %d", c, a)
	}
}

func TestTable_Intrinsics(t *testing.T) {
	tbl := NewTable()
	call := tbl.Intrinsics(map[string]uint32{"blob": 7})

	res, ok, err := call("[resource-new]blob", []any{uint32(42)})
	if !ok || err != nil {
		t.Fatalf("resource-new: ok=%v err=%v", ok, err)
	}
	h := res[0].(uint32)

	res, ok, err = call("[resource-rep]blob", []any{h})
	if !ok || err != nil || res[0] != uint32(42) {
		t.Errorf("resource-rep = %v, %v, %v", res, ok, err)
	}

	if _, ok, err = call("[resource-drop]blob", []any{h}); !ok || err != nil {
		t.Errorf("resource-drop: ok=%v err=%v", ok, err)
	}
	if tbl.Drops(7) != 1 {
		t.Errorf("Drops(7) = %d, want 1", tbl.Drops(7))
	}

	for _, name := range []string{"plain", "[resource-new]other", "[method]blob.get"} {
		if _, ok, _ := call(name, []any{uint32(1)}); ok {
			t.Errorf("%q should not be served", name)
		}
	}
	if _, ok, err := call("[resource-rep]blob", []any{"x"}); !ok || err == nil {
		t.Errorf("bad argument: ok=%v err=%v", ok, err)
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	mem, err := NewMemory(ctx, 1)
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	defer mem.Close(ctx)

	if mem.Size() != 65536 {
		t.Errorf("Size() = %d, want 65536", mem.Size())
	}
	if err := mem.WriteU64(16, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if v, err := mem.ReadU16(16); err != nil || v != 0x0708 {
		t.Errorf("ReadU16() = %#x, %v", v, err)
	}
	_, err = mem.ReadU32(mem.Size() - 2)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEval, Kind: errors.KindOutOfBounds}) {
		t.Errorf("ReadU32() past end error = %v, want out of bounds", err)
	}

	alloc := NewAllocator(mem)
	p1, err := alloc.Alloc(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := alloc.Alloc(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	if p2%8 != 0 || p2 < p1+3 {
		t.Errorf("Alloc(8, 8) = %d after %d", p2, p1)
	}
	big, err := alloc.Alloc(70000, 4)
	if err != nil {
		t.Fatalf("Alloc() across pages error = %v", err)
	}
	if mem.Size() < big+70000 {
		t.Errorf("memory not grown: size %d, block end %d", mem.Size(), big+70000)
	}
	if alloc.Live() != 3 {
		t.Errorf("Live() = %d, want 3", alloc.Live())
	}
	alloc.Free(p1, 3, 1)
	if alloc.Live() != 2 {
		t.Errorf("Live() after Free = %d, want 2", alloc.Live())
	}
}
