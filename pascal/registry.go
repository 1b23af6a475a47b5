package pascal

import (
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/internal/casing"
	"github.com/wippyai/witbindgen/typegraph"
)

// typeName returns the Pascal spelling of t. Type definitions must have
// been registered by defineLiveTypes.
func (g *Generator) typeName(t wit.Type) (string, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return "boolean", nil
	case wit.Char:
		return "uint32", nil
	case wit.U8:
		return "byte", nil
	case wit.S8:
		return "int8", nil
	case wit.U16:
		return "uint16", nil
	case wit.S16:
		return "int16", nil
	case wit.U32:
		return "uint32", nil
	case wit.S32:
		return "int32", nil
	case wit.U64:
		return "uint64", nil
	case wit.S64:
		return "int64", nil
	case wit.F32:
		return "single", nil
	case wit.F64:
		return "double", nil
	case wit.String:
		g.needsString = true
		return g.stringType(), nil
	case *wit.TypeDef:
		if name, ok := g.typeNames[typ]; ok {
			return name, nil
		}
		return "", errors.New(errors.PhaseGenerate, errors.KindInvalidState).
			WitType(typegraph.TypeString(typ)).
			Detail("type has no registered name").
			Build()
	}
	return "", errors.Unsupported(errors.PhaseGenerate, "type "+typegraph.TypeString(t))
}

func (g *Generator) stringType() string {
	return g.worldSnake() + "_string_t"
}

func (g *Generator) charType() string {
	if g.opts.StringEncoding == UTF16 {
		return "widechar"
	}
	return "char"
}

// prefix strips the "_t" suffix from a registered type name.
func prefix(name string) string {
	return strings.TrimSuffix(name, "_t")
}

// claim registers name for t. Distinct identities may not share a
// non-pooled name.
func (g *Generator) claim(t *wit.TypeDef, name string) error {
	if prev, ok := g.owners[name]; ok && prev != t {
		return errors.New(errors.PhaseGenerate, errors.KindAlreadyDefined).
			WitType(typegraph.TypeString(t)).
			Detail("type name %q is already used by another type", name).
			Build()
	}
	if _, ok := g.typeNames[t]; ok {
		return errors.AlreadyDefined(errors.PhaseGenerate, "type", name)
	}
	g.owners[name] = t
	g.typeNames[t] = name
	return nil
}

// purgeImports forgets import registrations that exported interfaces do
// not reach, so that an interface both imported and exported gets its own
// export bindings. World-owned types and types reachable from world-level
// exported functions keep their names.
func (g *Generator) purgeImports() {
	keep := typegraph.ImportedTypesUsedByExportedInterfaces(g.world)
	var worldLive typegraph.Live
	for _, item := range g.world.Exports.All() {
		if f, ok := item.(*wit.Function); ok {
			worldLive.AddFunc(f)
		}
	}
	retained := func(t *wit.TypeDef) bool {
		if _, ok := t.Owner.(*wit.World); ok {
			return true
		}
		return keep.Contains(t) || worldLive.Contains(t)
	}

	purged := 0
	for t := range g.typeNames {
		if !retained(t) {
			delete(g.typeNames, t)
			purged++
		}
	}
	for t := range g.resources {
		if !retained(t) {
			delete(g.resources, t)
		}
	}
	Logger().Debug("purged import types", zap.Int("purged", purged), zap.Int("retained", len(g.typeNames)))
}

func (ig *ifaceGen) defineInterfaceTypes(iface *wit.Interface) error {
	var live typegraph.Live
	live.AddInterface(iface)
	return ig.defineLiveTypes(&live)
}

func (ig *ifaceGen) defineFunctionTypes(funcs []*wit.Function) error {
	var live typegraph.Live
	for _, f := range funcs {
		live.AddFunc(f)
	}
	return ig.defineLiveTypes(&live)
}

// defineLiveTypes names and defines every type of live that has no name
// yet, in dependency order.
func (ig *ifaceGen) defineLiveTypes(live *typegraph.Live) error {
	g := ig.g
	for _, t := range live.Types() {
		if _, ok := g.typeNames[t]; ok {
			continue
		}
		encoded, err := typegraph.Encode(t)
		if err != nil {
			return err
		}

		if t.Name != nil {
			ns, err := ig.ownerNamespace(t)
			if err != nil {
				return err
			}
			if err := g.claim(t, ns+"_"+encoded+"_t"); err != nil {
				return err
			}
			if err := ig.defineType(t); err != nil {
				return err
			}
		} else {
			if name, ok := g.handleName(t); ok {
				g.typeNames[t] = name
				continue
			}
			if typegraph.IsPrim(t) {
				name := g.worldSnake() + "_" + encoded + "_t"
				g.typeNames[t] = name
				if _, ok := g.primNames[name]; ok {
					continue
				}
				g.primNames[name] = struct{}{}
			} else {
				ns, err := ig.ownerNamespace(t)
				if err != nil {
					return err
				}
				if err := g.claim(t, ns+"_"+encoded+"_t"); err != nil {
					return err
				}
			}

			if err := ig.defineAnonymousType(t); err != nil {
				return err
			}
		}

		if err := ig.defineConstructor(t); err != nil {
			return err
		}
		if err := ig.defineDtor(t); err != nil {
			return err
		}
	}
	return nil
}

// handleName returns the registered own or borrow type of an anonymous
// handle to a resource that is not an alias.
func (g *Generator) handleName(t *wit.TypeDef) (string, bool) {
	res := handleResource(t)
	if res == nil || typegraph.Dealias(res) != res {
		return "", false
	}
	info, ok := g.resources[res]
	if !ok {
		return "", false
	}
	if _, ok := t.Kind.(*wit.Borrow); ok {
		return info.Borrow, true
	}
	return info.Own, true
}

// handleResource returns the resource an own or borrow handle refers to.
func handleResource(t *wit.TypeDef) *wit.TypeDef {
	switch k := t.Kind.(type) {
	case *wit.Own:
		return k.Type
	case *wit.Borrow:
		return k.Type
	}
	return nil
}

// ownerNamespace returns the identifier prefix for types owned by t's
// owner, as seen from the interface being generated.
func (ig *ifaceGen) ownerNamespace(t *wit.TypeDef) (string, error) {
	g := ig.g
	switch owner := t.Owner.(type) {
	case *wit.Interface:
		if ig.key == nil || ig.key.Interface != owner {
			return "", errors.New(errors.PhaseGenerate, errors.KindInvalidState).
				WitType(typegraph.TypeString(t)).
				Detail("type is owned by interface %s which is not being generated", typegraph.InterfaceID(owner)).
				Build()
		}
		return g.namer.InterfaceIdentifier(*ig.key, !ig.inImport), nil
	case *wit.World:
		return casing.Snake(g.namer.World()), nil
	}
	if ig.key != nil {
		return g.namer.InterfaceIdentifier(*ig.key, !ig.inImport), nil
	}
	return casing.Snake(g.namer.World()), nil
}
