package eval

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/witbindgen/errors"
)

// Encoding selects how strings are laid out in linear memory.
type Encoding uint8

const (
	UTF8 Encoding = iota
	UTF16
)

func (e Encoding) align() uint32 {
	if e == UTF16 {
		return 2
	}
	return 1
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeString returns the memory image of s and its length in code units.
func (e Encoding) encodeString(s string) ([]byte, uint32, error) {
	if e == UTF8 {
		if !utf8.ValidString(s) {
			return nil, 0, errors.InvalidData(errors.PhaseEval, nil, "string is not valid UTF-8")
		}
		return []byte(s), uint32(len(s)), nil
	}
	b, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, 0, errors.Wrap(errors.PhaseEval, errors.KindInvalidData, err, "encode utf-16")
	}
	return b, uint32(len(b) / 2), nil
}

// byteLen returns the byte length of n code units.
func (e Encoding) byteLen(n uint32) uint32 {
	if e == UTF16 {
		return n * 2
	}
	return n
}

func (e Encoding) decodeString(b []byte) (string, error) {
	if e == UTF8 {
		if !utf8.Valid(b) {
			return "", errors.InvalidData(errors.PhaseEval, nil, "string is not valid UTF-8")
		}
		return string(b), nil
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(errors.PhaseEval, errors.KindInvalidData, err, "decode utf-16")
	}
	return string(out), nil
}
