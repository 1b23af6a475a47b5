package eval

import (
	"strings"
	"sync"

	"github.com/wippyai/witbindgen/errors"
)

// Table is a resource handle table. Handles start at 1 and freed slots are
// reused.
type Table struct {
	entries  []entry
	freeList []Handle
	drops    map[uint32]int
	mu       sync.Mutex
}

type entry struct {
	typeID      uint32
	rep         uint32
	borrowCount uint32
	valid       bool
}

func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 4),
		drops:    make(map[uint32]int),
	}
}

// New stores rep and returns its handle.
func (t *Table) New(typeID, rep uint32) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := entry{typeID: typeID, rep: rep, valid: true}
	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h
	}
	t.entries = append(t.entries, e)
	return Handle(len(t.entries))
}

func (t *Table) lookup(h Handle, typeID uint32) (*entry, error) {
	if h == 0 || int(h) > len(t.entries) {
		return nil, errors.New(errors.PhaseEval, errors.KindNotFound).Value(h).Detail("unknown handle %d", h).Build()
	}
	e := &t.entries[h-1]
	if !e.valid || e.typeID != typeID {
		return nil, errors.New(errors.PhaseEval, errors.KindNotFound).Value(h).Detail("handle %d is not a live resource of type %d", h, typeID).Build()
	}
	return e, nil
}

// Rep returns the representation behind h.
func (t *Table) Rep(h Handle, typeID uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookup(h, typeID)
	if err != nil {
		return 0, err
	}
	return e.rep, nil
}

// Borrow marks h as lent out until EndBorrow.
func (t *Table) Borrow(h Handle, typeID uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookup(h, typeID)
	if err != nil {
		return err
	}
	e.borrowCount++
	return nil
}

func (t *Table) EndBorrow(h Handle, typeID uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookup(h, typeID)
	if err != nil {
		return err
	}
	if e.borrowCount == 0 {
		return errors.InvalidState(errors.PhaseEval, "handle %d has no outstanding borrow", h)
	}
	e.borrowCount--
	return nil
}

// Drop removes h and returns its representation. Dropping a handle with
// outstanding borrows fails.
func (t *Table) Drop(h Handle, typeID uint32) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, err := t.lookup(h, typeID)
	if err != nil {
		return 0, err
	}
	if e.borrowCount > 0 {
		return 0, errors.InvalidState(errors.PhaseEval, "cannot drop handle %d with %d outstanding borrows", h, e.borrowCount)
	}
	rep := e.rep
	*e = entry{}
	t.freeList = append(t.freeList, h)
	t.drops[typeID]++
	return rep, nil
}

// Drops returns how many handles of typeID were dropped.
func (t *Table) Drops(typeID uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drops[typeID]
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries) - len(t.freeList)
}

// Intrinsics serves the resource intrinsics of core imports named
// "[resource-new]{name}", "[resource-rep]{name}" and "[resource-drop]{name}"
// out of t, mapping each resource name to a type ID. ok is false for other
// names.
func (t *Table) Intrinsics(types map[string]uint32) func(name string, args []any) ([]any, bool, error) {
	return func(name string, args []any) ([]any, bool, error) {
		op, res, found := strings.Cut(strings.TrimPrefix(name, "["), "]")
		if !found || !strings.HasPrefix(name, "[") {
			return nil, false, nil
		}
		typeID, known := types[res]
		if !known || len(args) != 1 {
			return nil, false, nil
		}
		arg, ok := args[0].(uint32)
		if !ok {
			return nil, true, errors.TypeMismatch(errors.PhaseEval, []string{name}, "i32", args[0])
		}
		switch op {
		case "resource-new":
			return []any{uint32(t.New(typeID, arg))}, true, nil
		case "resource-rep":
			rep, err := t.Rep(Handle(arg), typeID)
			return []any{rep}, true, err
		case "resource-drop":
			_, err := t.Drop(Handle(arg), typeID)
			return nil, true, err
		}
		return nil, false, nil
	}
}
