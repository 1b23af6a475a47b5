package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/witbindgen"
	"github.com/wippyai/witbindgen/bindgen"
	"github.com/wippyai/witbindgen/objfile"
	"github.com/wippyai/witbindgen/pascal"
)

// renameFlags collects repeated -rename K=V flags.
type renameFlags []pascal.Rename

func (r *renameFlags) String() string {
	parts := make([]string, len(*r))
	for i, rn := range *r {
		parts[i] = rn.From + "=" + rn.To
	}
	return strings.Join(parts, ",")
}

func (r *renameFlags) Set(s string) error {
	rn, err := pascal.ParseRename(s)
	if err != nil {
		return err
	}
	*r = append(*r, rn)
	return nil
}

func main() {
	var (
		renames       renameFlags
		worldName     = flag.String("world", "", "World to generate (name or ns:pkg/world)")
		outDir        = flag.String("out", ".", "Output directory")
		backend       = flag.String("backend", "pascal", "Target language")
		encoding      = flag.String("string-encoding", "utf8", "String encoding (utf8, utf16)")
		renameWorld   = flag.String("rename-world", "", "Override the world name used in identifiers and file names")
		noHelpers     = flag.Bool("no-helpers", false, "Keep helper functions out of the declarations include")
		noFlatten     = flag.Bool("no-sig-flattening", false, "Return options and results through a single out-parameter")
		noObject      = flag.Bool("no-object-file", false, "Skip the component-type object file")
		autodrop      = flag.Bool("autodrop-borrows", false, "Drop imported borrows received by exports before they return")
		sectionSuffix = flag.String("type-section-suffix", "", "Suffix of the component-type custom section")
		componentType = flag.String("component-type", "", "File with the encoded component type to embed in the object file")
		verbose       = flag.Bool("v", false, "Verbose logging")
		interactive   = flag.Bool("i", false, "Browse the generated bindings in a TUI")
	)
	flag.Var(&renames, "rename", "Rename an interface identifier, K=V (repeatable)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: witgen [flags] <resolve.wit.json | ->")
		fmt.Fprintln(os.Stderr, "       witgen -world my:pkg/app -out gen app.wit.json")
		fmt.Fprintln(os.Stderr, "       witgen -i app.wit.json  (browse bindings)")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := newLogger(*verbose)
	defer func() { _ = log.Sync() }()
	pascal.SetLogger(log.Named("pascal"))
	bindgen.SetLogger(log.Named("bindgen"))
	objfile.SetLogger(log.Named("objfile"))

	b, err := witbindgen.ParseBackend(*backend)
	if err != nil {
		fatal(err)
	}
	enc, err := pascal.ParseStringEncoding(*encoding)
	if err != nil {
		fatal(err)
	}
	cfg := witbindgen.Config{
		Backend: b,
		World:   *worldName,
		Pascal: pascal.Options{
			RenameWorld:       *renameWorld,
			TypeSectionSuffix: *sectionSuffix,
			Renames:           renames,
			StringEncoding:    enc,
			NoHelpers:         *noHelpers,
			NoSigFlattening:   *noFlatten,
			NoObjectFile:      *noObject,
			AutodropBorrows:   *autodrop,
		},
	}
	if *componentType != "" {
		typeEnc, err := objfile.ReadEncoder(*componentType)
		if err != nil {
			fatal(err)
		}
		cfg.Pascal.TypeEncoder = typeEnc
	}

	if err := run(flag.Arg(0), *outDir, cfg, *interactive); err != nil {
		fatal(err)
	}
}

func run(input, outDir string, cfg witbindgen.Config, interactive bool) error {
	resolve, err := loadResolve(input)
	if err != nil {
		return err
	}

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		return runBrowser(resolve, cfg)
	}

	files, err := witbindgen.Generate(resolve, cfg)
	if err != nil {
		return err
	}
	if err := files.WriteTo(outDir); err != nil {
		return err
	}
	for name := range files.All() {
		fmt.Printf("Generated %s\n", name)
	}
	return nil
}

func loadResolve(input string) (*wit.Resolve, error) {
	if input == "-" {
		resolve, err := wit.DecodeJSON(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("decode stdin: %w", err)
		}
		return resolve, nil
	}
	resolve, err := wit.LoadJSON(input)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", input, err)
	}
	return resolve, nil
}

func newLogger(verbose bool) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		log, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
