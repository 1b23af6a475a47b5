package bindgen

import (
	"iter"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/wippyai/witbindgen/errors"
)

// Files collects generated files in the order they were pushed.
type Files struct {
	names    []string
	contents map[string][]byte
}

// Push adds a file, replacing the contents of an existing one.
func (f *Files) Push(name string, contents []byte) {
	if f.contents == nil {
		f.contents = make(map[string][]byte)
	}
	if _, ok := f.contents[name]; !ok {
		f.names = append(f.names, name)
	}
	f.contents[name] = contents
}

// Get returns the contents of the named file.
func (f *Files) Get(name string) ([]byte, bool) {
	data, ok := f.contents[name]
	return data, ok
}

// Names returns the file names in push order.
func (f *Files) Names() []string {
	return append([]string(nil), f.names...)
}

// Len returns the number of files.
func (f *Files) Len() int {
	return len(f.names)
}

// All iterates over the files in push order.
func (f *Files) All() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		for _, name := range f.names {
			if !yield(name, f.contents[name]) {
				return
			}
		}
	}
}

// WriteTo writes every file into dir, creating it if needed.
func (f *Files) WriteTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.PhaseGenerate, errors.KindInvalidState, err, "create output directory")
	}
	for name, data := range f.All() {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrap(errors.PhaseGenerate, errors.KindInvalidState, err, "write "+name)
		}
		Logger().Debug("wrote file", zap.String("path", path), zap.Int("bytes", len(data)))
	}
	return nil
}
