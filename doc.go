// Package witbindgen generates guest bindings for WebAssembly Component
// Model worlds.
//
// The input is a resolved WIT graph as produced by wasm-tools and loaded
// with wit.LoadJSON. The output is source code implementing the canonical
// ABI for one world: every imported function gets a binding that lowers its
// arguments into a raw wasm import call and lifts the results, and every
// exported function gets a wasm export that lifts the host's arguments,
// calls the user's implementation and lowers its results.
//
// # Packages
//
//	witbindgen/          Backend selection and world lookup
//	├── bindgen/         WorldGenerator interface and world driver
//	├── pascal/          Free Pascal backend
//	├── abi/             Canonical ABI instruction stream, sizes, flattening
//	│   └── eval/        Reference executor over wazero linear memory
//	├── typegraph/       Live-type analysis and identifier derivation
//	├── objfile/         Component-type object file writer
//	├── source/          Indented text builders and name scopes
//	├── errors/          Structured error types
//	└── cmd/witgen/      Command line front end
//
// # Quick Start
//
//	resolve, err := wit.LoadJSON("world.wit.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	files, err := witbindgen.Generate(resolve, witbindgen.Config{
//	    Backend: witbindgen.BackendPascal,
//	    World:   "example:demo/app",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := files.WriteTo("out"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// All errors are *errors.Error values carrying the phase, kind and the path
// of the WIT item that failed:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) && e.Kind == errors.KindUnsupported {
//	    fmt.Println("unsupported:", e.Detail)
//	}
package witbindgen
