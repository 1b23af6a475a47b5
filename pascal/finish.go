package pascal

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/witbindgen/bindgen"
	"github.com/wippyai/witbindgen/objfile"
	"github.com/wippyai/witbindgen/source"
)

// Finish assembles the sections into the unit, its includes and the
// component-type object.
func (g *Generator) Finish(files *bindgen.Files) error {
	snake := g.worldSnake()

	var object []byte
	if !g.opts.NoObjectFile {
		var err error
		if object, err = g.componentTypeObject(); err != nil {
			return err
		}
	}
	if object != nil {
		sym := objfile.LinkingSymbol(g.namer.World())
		g.src.cFns.Line("\nprocedure %s; external name '%s';", sym, sym)
		g.src.cHelpers.Line("\nprocedure %s_public_use_in_this_compilation_unit;", sym)
		g.src.cHelpers.Line("begin")
		g.src.cHelpers.Line("  %s;", sym)
		g.src.cHelpers.Line("end;")
	}

	if g.needsString {
		g.writeStringHelpers()
	}
	g.writeCastHelpers()

	files.Push(snake+"h.inc", []byte(g.header(snake)))
	files.Push(snake+".inc", []byte(g.implementation()))
	files.Push(snake+".pas", []byte(unit(snake)))
	if object != nil {
		files.Push(snake+"_component_type.o", object)
	}

	Logger().Debug("generated world",
		zap.String("world", g.namer.World()),
		zap.Int("functions", len(g.funcs)),
		zap.Int("exports", len(g.exports)))
	return nil
}

func (g *Generator) componentTypeObject() ([]byte, error) {
	if g.opts.TypeEncoder == nil {
		Logger().Warn("no component type encoder configured, skipping object file",
			zap.String("world", g.world.Name))
		return nil, nil
	}
	data, err := g.opts.TypeEncoder.EncodeWorld(g.resolve, g.world)
	if err != nil {
		return nil, err
	}
	return objfile.Object(objfile.Payload{
		World:  g.world.Name,
		Symbol: objfile.LinkingSymbol(g.namer.World()),
		Suffix: g.opts.TypeSectionSuffix,
		Data:   data,
	}), nil
}

func (g *Generator) header(snake string) string {
	guard := "__BINDINGS_" + strings.ToUpper(snake) + "_H"
	var h source.Source
	h.Line("// Generated by witbindgen. DO NOT EDIT.")
	h.Line("{$ifndef %s}", guard)
	h.Line("{$define %s}", guard)
	if g.needsString {
		str := g.stringType()
		startType(&h, str)
		h.Line("record")
		h.Line("    ptr: P%s;", g.charType())
		h.Line("    len: SizeUInt;")
		h.Line("  end;")
	}
	h.Append(&g.src.hDefs)
	h.Append(&g.src.hFns)
	if !g.opts.NoHelpers {
		h.Line("\n// Helper Functions")
		h.Append(&g.src.hHelpers)
	}
	h.Line("\n{$endif}")
	return h.String()
}

func (g *Generator) implementation() string {
	var c source.Source
	c.Line("// Generated by witbindgen. DO NOT EDIT.")
	writeRealloc(&c)
	c.Append(&g.src.cDefs)
	c.Append(&g.src.cFns)
	c.Line("\n// Helper Functions")
	c.Append(&g.src.cHelpers)
	c.Line("\n// Component Adapters")
	if g.retAreaSize > 0 {
		c.Line("\nvar")
		c.Line("  STATIC_RET_AREA: %s;", retAreaType(g.retAreaSize))
	}
	c.Append(&g.src.cAdapters)

	c.Line("\nexports")
	c.Indent()
	c.Printf("cabi_realloc name 'cabi_realloc'")
	for _, e := range g.exports {
		c.Push(",\n")
		c.Printf("%s name '%s'", e.symbol, e.name)
	}
	c.Line(";")
	return c.String()
}

func unit(snake string) string {
	var u source.Source
	u.Line("// Generated by witbindgen. DO NOT EDIT.")
	u.Line("unit %s;", snake)
	u.Line("")
	u.Line("{$PACKRECORDS C}")
	u.Line("")
	u.Line("interface")
	u.Line("")
	u.Line("  {$I %sh.inc}", snake)
	u.Line("")
	u.Line("implementation")
	u.Line("")
	u.Line("  {$I %s.inc}", snake)
	u.Line("")
	u.Line("end.")
	return u.String()
}

func writeRealloc(src *source.Source) {
	src.Line("\nfunction cabi_realloc(ptr: Pointer; old_size: SizeUInt; align: SizeUInt; new_size: SizeUInt): Pointer;")
	src.Line("begin")
	src.Line("  if new_size = 0 then")
	src.Line("  begin")
	src.Line("    cabi_realloc := Pointer(align);")
	src.Line("    exit;")
	src.Line("  end;")
	src.Line("  ReallocMem(ptr, new_size);")
	src.Line("  cabi_realloc := ptr;")
	src.Line("end;")
}

// writeStringHelpers emits the world string constructors. Strings are
// measured in code units of the configured encoding.
func (g *Generator) writeStringHelpers() {
	str := g.stringType()
	pfx := prefix(str)
	ch := g.charType()
	unitSize := 1
	strlen := "strlen(s)"
	if g.opts.StringEncoding == UTF16 {
		unitSize = 2
		strlen = pfx + "_len(s)"
	}

	decls := []string{
		fmt.Sprintf("function %s_create(ptr: P%s; len: SizeUInt): %s;", pfx, ch, str),
		fmt.Sprintf("procedure %s_set(ret: P%s; const s: P%s);", pfx, str, ch),
		fmt.Sprintf("procedure %s_dup(ret: P%s; const s: P%s);", pfx, str, ch),
		fmt.Sprintf("procedure %s_free(ret: P%s);", pfx, str),
	}
	if g.opts.StringEncoding == UTF16 {
		decls = append(decls, fmt.Sprintf("function %s_len(const s: Pwidechar): SizeUInt;", pfx))
	}
	for _, d := range decls {
		g.src.hHelpers.Line("\n%s", d)
	}

	c := &g.src.cHelpers
	if g.opts.StringEncoding == UTF16 {
		c.Line("\n%s", decls[4])
		c.Line("var")
		c.Line("  n: SizeUInt;")
		c.Line("begin")
		c.Line("  n := 0;")
		c.Line("  while s[n] <> #0 do")
		c.Line("    Inc(n);")
		c.Line("  %s_len := n;", pfx)
		c.Line("end;")
	}

	c.Line("\n%s", decls[0])
	c.Line("begin")
	c.Line("  %s_create.ptr := ptr;", pfx)
	c.Line("  %s_create.len := len;", pfx)
	c.Line("end;")

	c.Line("\n%s", decls[1])
	c.Line("begin")
	c.Line("  ret^.ptr := P%s(s);", ch)
	c.Line("  ret^.len := %s;", strlen)
	c.Line("end;")

	c.Line("\n%s", decls[2])
	c.Line("begin")
	c.Line("  ret^.len := %s;", strlen)
	c.Line("  ret^.ptr := P%s(cabi_realloc(nil, 0, %d, ret^.len * %d));", ch, unitSize, unitSize)
	c.Line("  Move(s^, ret^.ptr^, ret^.len * %d);", unitSize)
	c.Line("end;")

	c.Line("\n%s", decls[3])
	c.Line("begin")
	c.Line("  if ret^.len > 0 then")
	c.Line("    FreeMem(ret^.ptr);")
	c.Line("  ret^.ptr := nil;")
	c.Line("  ret^.len := 0;")
	c.Line("end;")
}
