// Package bindgen drives a language backend over the items of a world.
package bindgen

import (
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/witbindgen/typegraph"
)

// WorldGenerator is implemented by language backends. Generate calls the
// methods in a fixed order: Preprocess, ImportInterface for each imported
// interface, ImportTypes, ImportFuncs, PreExportInterface, ExportFuncs,
// ExportInterface for each exported interface and finally Finish.
type WorldGenerator interface {
	Preprocess(resolve *wit.Resolve, world *wit.World) error
	ImportInterface(key typegraph.Key, iface *wit.Interface, files *Files) error
	ImportTypes(types []*wit.TypeDef, files *Files) error
	ImportFuncs(funcs []*wit.Function, files *Files) error
	PreExportInterface(files *Files) error
	ExportFuncs(funcs []*wit.Function, files *Files) error
	ExportInterface(key typegraph.Key, iface *wit.Interface, files *Files) error
	Finish(files *Files) error
}

// Generate runs g over world and collects its output in files. The first
// error aborts generation.
func Generate(g WorldGenerator, resolve *wit.Resolve, world *wit.World, files *Files) error {
	log := Logger().With(zap.String("world", world.Name))
	if err := g.Preprocess(resolve, world); err != nil {
		return err
	}

	var (
		types []*wit.TypeDef
		funcs []*wit.Function
	)
	for name, item := range world.Imports.All() {
		switch it := item.(type) {
		case *wit.InterfaceRef:
			log.Debug("import interface", zap.String("name", name))
			if err := g.ImportInterface(typegraph.WorldKey(name, item), it.Interface, files); err != nil {
				return err
			}
		case *wit.TypeDef:
			types = append(types, it)
		case *wit.Function:
			funcs = append(funcs, it)
		}
	}
	if len(types) > 0 {
		if err := g.ImportTypes(types, files); err != nil {
			return err
		}
	}
	if len(funcs) > 0 {
		if err := g.ImportFuncs(funcs, files); err != nil {
			return err
		}
	}

	if err := g.PreExportInterface(files); err != nil {
		return err
	}

	funcs = nil
	var ifaces []typegraph.Key
	for name, item := range world.Exports.All() {
		switch it := item.(type) {
		case *wit.InterfaceRef:
			ifaces = append(ifaces, typegraph.WorldKey(name, item))
		case *wit.Function:
			funcs = append(funcs, it)
		}
	}
	if len(funcs) > 0 {
		if err := g.ExportFuncs(funcs, files); err != nil {
			return err
		}
	}
	for _, key := range ifaces {
		log.Debug("export interface", zap.String("name", key.String()))
		if err := g.ExportInterface(key, key.Interface, files); err != nil {
			return err
		}
	}

	return g.Finish(files)
}
