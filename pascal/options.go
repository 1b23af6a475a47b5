package pascal

import (
	"strings"

	"github.com/wippyai/witbindgen/errors"
	"github.com/wippyai/witbindgen/objfile"
)

// StringEncoding selects the in-memory encoding of strings.
type StringEncoding uint8

const (
	UTF8 StringEncoding = iota
	UTF16
	CompactUTF16
)

func (e StringEncoding) String() string {
	switch e {
	case UTF16:
		return "utf16"
	case CompactUTF16:
		return "compact-utf16"
	default:
		return "utf8"
	}
}

// ParseStringEncoding parses "utf8", "utf16" or "compact-utf16".
func ParseStringEncoding(s string) (StringEncoding, error) {
	switch strings.ToLower(s) {
	case "", "utf8", "utf-8":
		return UTF8, nil
	case "utf16", "utf-16":
		return UTF16, nil
	case "compact-utf16", "compact-utf-16", "latin1+utf16":
		return CompactUTF16, nil
	}
	return UTF8, errors.InvalidInput(errors.PhaseParse, "unknown string encoding "+s)
}

// Rename gives the interface named From the identifier To.
type Rename struct {
	From string
	To   string
}

// ParseRename parses "from=to".
func ParseRename(s string) (Rename, error) {
	from, to, ok := strings.Cut(s, "=")
	if !ok || from == "" || to == "" {
		return Rename{}, errors.InvalidInput(errors.PhaseParse, "rename "+s+" is not of the form K=V")
	}
	return Rename{From: from, To: to}, nil
}

// Options configures generation.
type Options struct {
	// TypeEncoder produces the component-type payload embedded in the
	// object file. Without one the object file is skipped.
	TypeEncoder objfile.TypeEncoder

	// RenameWorld overrides the world name used for identifiers and files.
	RenameWorld string

	// TypeSectionSuffix is appended to the component-type section name.
	TypeSectionSuffix string

	// Renames replace interface identifiers.
	Renames []Rename

	StringEncoding StringEncoding

	// NoHelpers keeps helper functions out of the declarations include.
	NoHelpers bool

	// NoSigFlattening passes options and results through a single
	// out-parameter instead of boolean returns.
	NoSigFlattening bool

	// NoObjectFile skips the component-type object file.
	NoObjectFile bool

	// AutodropBorrows drops borrows of imported resources received by
	// exported functions before they return.
	AutodropBorrows bool
}

// Validate reports options the generator cannot honor.
func (o *Options) Validate() error {
	if o.StringEncoding == CompactUTF16 {
		return errors.Unsupported(errors.PhaseGenerate, "compact UTF-16 string encoding")
	}
	if o.StringEncoding > CompactUTF16 {
		return errors.InvalidInput(errors.PhaseGenerate, "unknown string encoding")
	}
	return nil
}
