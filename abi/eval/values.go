package eval

// Char is a Unicode scalar value.
type Char rune

// Record holds field values in declaration order.
type Record []any

// Tuple holds element values in order.
type Tuple []any

// List holds element values.
type List []any

// Variant is a case index with an optional payload. Options use case 0 for
// none and 1 for some; results use 0 for ok and 1 for err.
type Variant struct {
	Payload any
	Case    uint32
}

// Enum is a case index.
type Enum uint32

// Flags is a bit set; bit i is the i-th declared flag.
type Flags uint64

// Handle is a resource handle index.
type Handle uint32

func None() Variant { return Variant{Case: 0} }

func Some(v any) Variant { return Variant{Case: 1, Payload: v} }

func Ok(v any) Variant { return Variant{Case: 0, Payload: v} }

func Err(v any) Variant { return Variant{Case: 1, Payload: v} }
