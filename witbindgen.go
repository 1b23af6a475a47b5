package witbindgen

import (
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/witbindgen/bindgen"
	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/pascal"
)

// Backend selects the target language.
type Backend uint8

const (
	BackendPascal Backend = iota
)

func (b Backend) String() string {
	switch b {
	case BackendPascal:
		return "pascal"
	}
	return "unknown"
}

// ParseBackend parses a backend name.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "", "pascal", "fpc", "freepascal":
		return BackendPascal, nil
	}
	return 0, errors.InvalidInput(errors.PhaseParse, "unknown backend "+s)
}

// Config selects what to generate and how.
type Config struct {
	Backend Backend
	// World names the world to generate, either by its plain name or as
	// "ns:pkg/world". Empty selects the only world of the resolve.
	World  string
	Pascal pascal.Options
}

// NewGenerator returns the world generator of the configured backend.
func (c Config) NewGenerator() (bindgen.WorldGenerator, error) {
	switch c.Backend {
	case BackendPascal:
		return pascal.New(c.Pascal)
	}
	return nil, errors.Unsupported(errors.PhaseGenerate, "backend "+c.Backend.String())
}

// Generate produces the bindings of the configured world.
func Generate(resolve *wit.Resolve, cfg Config) (*bindgen.Files, error) {
	world, err := FindWorld(resolve, cfg.World)
	if err != nil {
		return nil, err
	}
	g, err := cfg.NewGenerator()
	if err != nil {
		return nil, err
	}
	files := &bindgen.Files{}
	if err := bindgen.Generate(g, resolve, world, files); err != nil {
		return nil, err
	}
	return files, nil
}

// WorldID returns "ns:pkg/world@version", or the plain name of a world
// without a package.
func WorldID(w *wit.World) string {
	if w.Package == nil {
		return w.Name
	}
	id := w.Package.Name
	s := id.Namespace + ":" + id.Package + "/" + w.Name
	if id.Version != nil {
		s += "@" + id.Version.String()
	}
	return s
}

// FindWorld looks up a world by name or package-qualified identifier.
func FindWorld(resolve *wit.Resolve, name string) (*wit.World, error) {
	if resolve == nil || len(resolve.Worlds) == 0 {
		return nil, errors.NotFound(errors.PhaseLoad, "world", name)
	}
	if name == "" {
		if len(resolve.Worlds) == 1 {
			return resolve.Worlds[0], nil
		}
		ids := make([]string, len(resolve.Worlds))
		for i, w := range resolve.Worlds {
			ids[i] = WorldID(w)
		}
		return nil, errors.InvalidInput(errors.PhaseLoad,
			"multiple worlds, select one of: "+strings.Join(ids, ", "))
	}

	var found *wit.World
	for _, w := range resolve.Worlds {
		id := WorldID(w)
		unversioned, _, _ := strings.Cut(id, "@")
		if name != id && name != unversioned && name != w.Name {
			continue
		}
		if found != nil {
			return nil, errors.InvalidInput(errors.PhaseLoad, "world name "+name+" is ambiguous")
		}
		found = w
	}
	if found == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "world", name)
	}
	return found, nil
}
