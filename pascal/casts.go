package pascal

import (
	"fmt"
	"sort"

	"github.com/wippyai/witbindgen/abi"
)

// castHelpers reinterpret bits between integer and float types through a
// variant record.
var castHelpers = map[string][2]string{
	"int32_as_single": {"int32", "single"},
	"single_as_int32": {"single", "int32"},
	"int64_as_double": {"int64", "double"},
	"double_as_int64": {"double", "int64"},
}

func (g *Generator) useHelper(name string) string {
	g.bitcasts[name] = struct{}{}
	return name
}

// performCast renders cast applied to op as a Pascal expression.
func (g *Generator) performCast(op string, cast abi.Bitcast) string {
	for _, step := range cast {
		op = g.castStep(op, step)
	}
	return op
}

func (g *Generator) castStep(op string, step abi.BitcastOp) string {
	switch step {
	case abi.I32ToF32:
		return fmt.Sprintf("%s(%s)", g.useHelper("int32_as_single"), op)
	case abi.I64ToF32:
		return fmt.Sprintf("%s(int32(%s))", g.useHelper("int32_as_single"), op)
	case abi.F32ToI32:
		return fmt.Sprintf("%s(%s)", g.useHelper("single_as_int32"), op)
	case abi.F32ToI64:
		return fmt.Sprintf("int64(%s(%s))", g.useHelper("single_as_int32"), op)
	case abi.I64ToF64:
		return fmt.Sprintf("%s(%s)", g.useHelper("int64_as_double"), op)
	case abi.F64ToI64:
		return fmt.Sprintf("%s(%s)", g.useHelper("double_as_int64"), op)
	case abi.I32ToI64, abi.LToI64:
		return fmt.Sprintf("int64(%s)", op)
	case abi.PToP64:
		return fmt.Sprintf("int64(PtrUInt(%s))", op)
	case abi.I64ToI32, abi.LToI32:
		return fmt.Sprintf("int32(%s)", op)
	case abi.I64ToL, abi.I32ToL:
		return fmt.Sprintf("SizeUInt(%s)", op)
	case abi.I64ToP64, abi.P64ToI64:
		return op
	case abi.P64ToP, abi.I32ToP, abi.LToP:
		return fmt.Sprintf("Pbyte(PtrUInt(%s))", op)
	case abi.PToI32:
		return fmt.Sprintf("int32(PtrUInt(%s))", op)
	case abi.PToL:
		return fmt.Sprintf("SizeUInt(PtrUInt(%s))", op)
	}
	return op
}

// writeCastHelpers emits the helpers used by any adapter.
func (g *Generator) writeCastHelpers() {
	names := make([]string, 0, len(g.bitcasts))
	for name := range g.bitcasts {
		names = append(names, name)
	}
	sort.Strings(names)

	src := &g.src.cDefs
	for _, name := range names {
		types := castHelpers[name]
		from, to := types[0], types[1]
		src.Line("\nfunction %s(a: %s): %s;", name, from, to)
		src.Line("var")
		src.Line("  u: record")
		src.Line("    case boolean of")
		src.Line("      false: (a: %s);", from)
		src.Line("      true: (b: %s);", to)
		src.Line("  end;")
		src.Line("begin")
		src.Line("  u.a := a;")
		src.Line("  %s := u.b;", name)
		src.Line("end;")
	}
}
