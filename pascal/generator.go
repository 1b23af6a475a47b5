package pascal

import (
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/witbindgen/abi"
	"github.com/wippyai/witbindgen/bindgen"
	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/internal/casing"
	"github.com/wippyai/witbindgen/source"
	"github.com/wippyai/witbindgen/typegraph"
)

var _ bindgen.WorldGenerator = (*Generator)(nil)

// sections are the buffers the output files are assembled from. The h
// sections go to the declarations include, the c sections to the
// implementation include.
type sections struct {
	hDefs     source.Source
	hFns      source.Source
	hHelpers  source.Source
	cDefs     source.Source
	cFns      source.Source
	cHelpers  source.Source
	cAdapters source.Source
}

// Direction tells whether a resource is provided by the host or by the
// generated component.
type Direction uint8

const (
	Import Direction = iota
	Export
)

func (d Direction) String() string {
	if d == Export {
		return "export"
	}
	return "import"
}

// ResourceInfo describes the Pascal representation of one resource.
type ResourceInfo struct {
	Own       string
	Borrow    string
	DropFn    string
	Direction Direction
}

// FuncInfo describes one generated function binding.
type FuncInfo struct {
	Interface string
	WitName   string
	Name      string
	Decl      string
	Export    bool
}

type exportEntry struct {
	symbol string
	name   string
}

// Generator emits Free Pascal bindings for one world. A Generator is used
// for a single pass and is not safe for concurrent use.
type Generator struct {
	opts    Options
	resolve *wit.Resolve
	world   *wit.World
	namer   *typegraph.Namer
	sizes   *abi.Sizes
	src     sections

	names     source.Ns
	typeNames map[*wit.TypeDef]string
	// owners records which identity first claimed a non-pooled name.
	owners    map[string]*wit.TypeDef
	primNames map[string]struct{}
	dtorFuncs map[string]string
	resources map[*wit.TypeDef]*ResourceInfo

	needsString  bool
	bitcasts     map[string]struct{}
	retAreaSize  int
	retAreaAlign int
	exports      []exportEntry
	funcs        []FuncInfo
}

// New returns a Generator configured by opts.
func New(opts Options) (*Generator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		opts:      opts,
		sizes:     abi.NewSizes(),
		typeNames: make(map[*wit.TypeDef]string),
		owners:    make(map[string]*wit.TypeDef),
		primNames: make(map[string]struct{}),
		dtorFuncs: make(map[string]string),
		resources: make(map[*wit.TypeDef]*ResourceInfo),
		bitcasts:  make(map[string]struct{}),
	}, nil
}

// Functions returns the function bindings generated so far.
func (g *Generator) Functions() []FuncInfo {
	return g.funcs
}

// TypeName returns the Pascal name registered for t.
func (g *Generator) TypeName(t *wit.TypeDef) (string, bool) {
	name, ok := g.typeNames[t]
	return name, ok
}

// Resource returns the representation registered for resource t.
func (g *Generator) Resource(t *wit.TypeDef) (*ResourceInfo, bool) {
	info, ok := g.resources[typegraph.Dealias(t)]
	return info, ok
}

func (g *Generator) worldSnake() string {
	return casing.Snake(g.namer.World())
}

// Preprocess records the world and applies renames.
func (g *Generator) Preprocess(resolve *wit.Resolve, world *wit.World) error {
	g.resolve = resolve
	g.world = world
	name := world.Name
	if g.opts.RenameWorld != "" {
		name = g.opts.RenameWorld
	}
	g.namer = typegraph.NewNamer(resolve, name)

	keys := make(map[string]typegraph.Key)
	for n, item := range world.Imports.All() {
		k := typegraph.WorldKey(n, item)
		keys[k.String()] = k
	}
	for n, item := range world.Exports.All() {
		k := typegraph.WorldKey(n, item)
		keys[k.String()] = k
	}
	for _, r := range g.opts.Renames {
		k, ok := keys[r.From]
		if !ok {
			Logger().Warn("rename did not match any interfaces", zap.String("from", r.From))
			continue
		}
		g.namer.Rename(k, r.To)
	}

	Logger().Debug("generating world", zap.String("world", name))
	return nil
}

func (g *Generator) ifaceGen(key *typegraph.Key, inImport bool, module string) *ifaceGen {
	ig := &ifaceGen{g: g, key: key, inImport: inImport, wasmModule: module}
	if key != nil {
		ig.iface = key.Interface
	}
	return ig
}

// ImportInterface generates types and adapters for an imported interface.
func (g *Generator) ImportInterface(key typegraph.Key, iface *wit.Interface, _ *bindgen.Files) error {
	module := key.String()
	Logger().Debug("importing interface", zap.String("interface", module))

	ig := g.ifaceGen(&key, true, module)
	if err := ig.defineInterfaceTypes(iface); err != nil {
		return err
	}
	first := true
	for _, f := range iface.Functions.All() {
		if first {
			g.src.hFns.Line("\n// Imported Functions from `%s`", module)
			g.src.cFns.Line("\n// Imported Functions from `%s`", module)
			first = false
		}
		if err := ig.importFunc(f); err != nil {
			return errors.WithPath(err, module, f.Name)
		}
	}
	return nil
}

// ImportTypes generates the types a world imports directly.
func (g *Generator) ImportTypes(types []*wit.TypeDef, _ *bindgen.Files) error {
	ig := g.ifaceGen(nil, true, "$root")
	var live typegraph.Live
	for _, t := range types {
		live.AddTypeDef(t)
	}
	return ig.defineLiveTypes(&live)
}

// ImportFuncs generates adapters for functions a world imports directly.
func (g *Generator) ImportFuncs(funcs []*wit.Function, _ *bindgen.Files) error {
	ig := g.ifaceGen(nil, true, "$root")
	if err := ig.defineFunctionTypes(funcs); err != nil {
		return err
	}
	for i, f := range funcs {
		if i == 0 {
			g.src.hFns.Line("\n// Imported Functions from `%s`", g.world.Name)
			g.src.cFns.Line("\n// Imported Functions from `%s`", g.world.Name)
		}
		if err := ig.importFunc(f); err != nil {
			return errors.WithPath(err, f.Name)
		}
	}
	return nil
}

// PreExportInterface purges import registrations that exports must
// redefine under their own names.
func (g *Generator) PreExportInterface(_ *bindgen.Files) error {
	g.purgeImports()
	return nil
}

// ExportFuncs generates adapters for functions a world exports directly.
func (g *Generator) ExportFuncs(funcs []*wit.Function, _ *bindgen.Files) error {
	ig := g.ifaceGen(nil, false, "")
	if err := ig.defineFunctionTypes(funcs); err != nil {
		return err
	}
	for i, f := range funcs {
		if i == 0 {
			g.src.hFns.Line("\n// Exported Functions from `%s`", g.world.Name)
		}
		if err := ig.exportFunc(f); err != nil {
			return errors.WithPath(err, f.Name)
		}
	}
	return nil
}

// ExportInterface generates types and adapters for an exported interface.
func (g *Generator) ExportInterface(key typegraph.Key, iface *wit.Interface, _ *bindgen.Files) error {
	module := key.String()
	Logger().Debug("exporting interface", zap.String("interface", module))

	ig := g.ifaceGen(&key, false, "")
	if err := ig.defineInterfaceTypes(iface); err != nil {
		return err
	}
	first := true
	for _, f := range iface.Functions.All() {
		if first {
			g.src.hFns.Line("\n// Exported Functions from `%s`", module)
			first = false
		}
		if err := ig.exportFunc(f); err != nil {
			return errors.WithPath(err, module, f.Name)
		}
	}
	return nil
}
