package typegraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-semver/semver"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/internal/casing"
)

// Key names an item of a world: either a plain name or an interface that
// is referenced through its package.
type Key struct {
	Interface *wit.Interface
	Name      string
}

// WorldKey returns the key of the world item stored under name.
func WorldKey(name string, item wit.WorldItem) Key {
	k := Key{Name: name}
	if ref, ok := item.(*wit.InterfaceRef); ok {
		k.Interface = ref.Interface
	}
	return k
}

// IsInterface reports whether the key refers to an interface by its
// package-qualified identifier rather than by a world-local name.
func (k Key) IsInterface() bool {
	if k.Interface == nil || k.Interface.Name == nil || k.Interface.Package == nil {
		return false
	}
	return k.Name == InterfaceID(k.Interface)
}

// String returns the name the key has in the component: the world-local
// name or the full interface identifier.
func (k Key) String() string {
	if k.IsInterface() {
		return InterfaceID(k.Interface)
	}
	return k.Name
}

// InterfaceID returns "ns:pkg/name@version" for a named interface.
func InterfaceID(iface *wit.Interface) string {
	if iface == nil || iface.Name == nil {
		return ""
	}
	if iface.Package == nil {
		return *iface.Name
	}
	id := iface.Package.Name
	var b strings.Builder
	b.WriteString(id.Namespace)
	b.WriteByte(':')
	b.WriteString(id.Package)
	b.WriteByte('/')
	b.WriteString(*iface.Name)
	if id.Version != nil {
		b.WriteByte('@')
		b.WriteString(id.Version.String())
	}
	return b.String()
}

// Namer derives identifiers for the items of one world.
type Namer struct {
	resolve *wit.Resolve
	renames map[Key]string
	world   string
}

// NewNamer returns a Namer for a world whose effective name is world.
func NewNamer(resolve *wit.Resolve, world string) *Namer {
	return &Namer{
		resolve: resolve,
		renames: make(map[Key]string),
		world:   world,
	}
}

// World returns the effective world name.
func (n *Namer) World() string {
	return n.world
}

// Rename replaces the identifier of the interface under k.
func (n *Namer) Rename(k Key, to string) {
	n.renames[k] = to
}

// InterfaceIdentifier returns the snake-case prefix for items of the
// interface under k. Exported interfaces are prefixed with "exports_".
func (n *Namer) InterfaceIdentifier(k Key, export bool) string {
	if rename, ok := n.renames[k]; ok {
		if export && k.IsInterface() {
			return "exports_" + rename
		}
		return rename
	}
	if !k.IsInterface() {
		return casing.Snake(k.Name)
	}

	var b strings.Builder
	if export {
		b.WriteString("exports_")
	}
	pkg := k.Interface.Package
	b.WriteString(casing.Snake(pkg.Name.Namespace))
	b.WriteByte('_')
	b.WriteString(casing.Snake(pkg.Name.Package))
	b.WriteByte('_')
	if v := pkg.Name.Version; v != nil && n.hasOtherVersions(pkg) {
		b.WriteString(versionIdent(v))
		b.WriteByte('_')
	}
	b.WriteString(casing.Snake(*k.Interface.Name))
	return b.String()
}

func (n *Namer) hasOtherVersions(pkg *wit.Package) bool {
	if n.resolve == nil {
		return false
	}
	for _, p := range n.resolve.Packages {
		if p.Name.Namespace != pkg.Name.Namespace || p.Name.Package != pkg.Name.Package {
			continue
		}
		if !sameVersion(p.Name.Version, pkg.Name.Version) {
			return true
		}
	}
	return false
}

func sameVersion(a, b *semver.Version) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func versionIdent(v *semver.Version) string {
	return strings.NewReplacer(".", "_", "-", "_", "+", "_").Replace(v.String())
}

// FuncName returns the identifier of f. A nil key places f at world level.
func (n *Namer) FuncName(k *Key, f *wit.Function, export bool) string {
	var b strings.Builder
	if k != nil {
		b.WriteString(n.InterfaceIdentifier(*k, export))
	} else {
		if export {
			b.WriteString("exports_")
		}
		b.WriteString(casing.Snake(n.world))
	}
	b.WriteByte('_')
	b.WriteString(strings.ReplaceAll(casing.Snake(f.Name), ".", "_"))
	return b.String()
}

// Encode returns the structural name of t: primitives by their WIT
// keyword, named types by their snake-case name and anonymous types by
// their shape, such as "tuple2_u8_u32" or "result_void_string".
func Encode(t wit.Type) (string, error) {
	var b strings.Builder
	if err := encode(t, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func encode(t wit.Type, b *strings.Builder) error {
	switch typ := t.(type) {
	case wit.Bool:
		b.WriteString("bool")
	case wit.Char:
		b.WriteString("char32")
	case wit.U8:
		b.WriteString("u8")
	case wit.S8:
		b.WriteString("s8")
	case wit.U16:
		b.WriteString("u16")
	case wit.S16:
		b.WriteString("s16")
	case wit.U32:
		b.WriteString("u32")
	case wit.S32:
		b.WriteString("s32")
	case wit.U64:
		b.WriteString("u64")
	case wit.S64:
		b.WriteString("s64")
	case wit.F32:
		b.WriteString("f32")
	case wit.F64:
		b.WriteString("f64")
	case wit.String:
		b.WriteString("string")
	case *wit.TypeDef:
		return encodeTypeDef(typ, b)
	default:
		return errors.Unsupported(errors.PhaseGenerate, fmt.Sprintf("type %T", t))
	}
	return nil
}

func encodeTypeDef(t *wit.TypeDef, b *strings.Builder) error {
	if t.Name != nil {
		b.WriteString(casing.Snake(*t.Name))
		return nil
	}
	switch k := t.Kind.(type) {
	case *wit.Tuple:
		b.WriteString("tuple")
		b.WriteString(strconv.Itoa(len(k.Types)))
		for _, typ := range k.Types {
			b.WriteByte('_')
			if err := encode(typ, b); err != nil {
				return err
			}
		}
	case *wit.Option:
		b.WriteString("option_")
		return encode(k.Type, b)
	case *wit.Result:
		b.WriteString("result_")
		if err := encodeOrVoid(k.OK, b); err != nil {
			return err
		}
		b.WriteByte('_')
		return encodeOrVoid(k.Err, b)
	case *wit.List:
		b.WriteString("list_")
		return encode(k.Type, b)
	case *wit.Own:
		b.WriteString("own_")
		return encodeTypeDef(k.Type, b)
	case *wit.Borrow:
		b.WriteString("borrow_")
		return encodeTypeDef(k.Type, b)
	case wit.Type:
		return encode(k, b)
	default:
		return errors.New(errors.PhaseGenerate, errors.KindUnsupported).
			WitType(TypeString(t)).
			Detail("anonymous %s has no structural name", kindName(t.Kind)).
			Build()
	}
	return nil
}

func encodeOrVoid(t wit.Type, b *strings.Builder) error {
	if t == nil {
		b.WriteString("void")
		return nil
	}
	return encode(t, b)
}

// TypeString returns a short WIT rendering of t for diagnostics.
func TypeString(t wit.Type) string {
	if t == nil {
		return "<nil>"
	}
	if td, ok := t.(*wit.TypeDef); ok {
		if td.Name != nil {
			return *td.Name
		}
		return kindName(td.Kind)
	}
	var b strings.Builder
	if err := encode(t, &b); err != nil {
		return fmt.Sprintf("%T", t)
	}
	return b.String()
}

func kindName(k wit.TypeDefKind) string {
	switch k.(type) {
	case *wit.Record:
		return "record"
	case *wit.Resource:
		return "resource"
	case *wit.Flags:
		return "flags"
	case *wit.Enum:
		return "enum"
	case *wit.Variant:
		return "variant"
	case *wit.Tuple:
		return "tuple"
	case *wit.Option:
		return "option"
	case *wit.Result:
		return "result"
	case *wit.List:
		return "list"
	case *wit.Own:
		return "own"
	case *wit.Borrow:
		return "borrow"
	case *wit.Future:
		return "future"
	case *wit.Stream:
		return "stream"
	}
	return "type"
}

// KindName returns the WIT keyword of the type's shape.
func KindName(t *wit.TypeDef) string {
	return kindName(t.Kind)
}
