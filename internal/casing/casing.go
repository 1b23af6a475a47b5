// Package casing converts WIT identifiers to snake_case and SHOUTY_SNAKE_CASE.
//
// Word boundaries follow the conventions used by every canonical-ABI binding
// generator, so generated symbol names link against bindings produced by
// other tools: non-alphanumeric characters separate words, a lowercase to
// uppercase transition starts a word, and a run of capitals ends one
// character before a following lowercase letter ("HTTPServer" is
// "http_server"). Digits never start or end a word.
package casing

import (
	"strings"
	"unicode"
)

type mode int

const (
	modeBoundary mode = iota
	modeLower
	modeUpper
)

// Snake returns s in snake_case.
func Snake(s string) string {
	return join(s, "_", unicode.ToLower)
}

// Shouty returns s in SHOUTY_SNAKE_CASE.
func Shouty(s string) string {
	return join(s, "_", unicode.ToUpper)
}

// Words splits s into words.
func Words(s string) []string {
	var words []string
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words = append(words, splitWord(field)...)
	}
	return words
}

func join(s, sep string, conv func(rune) rune) string {
	words := Words(s)
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(strings.Map(conv, w))
	}
	return b.String()
}

func splitWord(word string) []string {
	runes := []rune(word)
	var out []string
	start := 0
	m := modeBoundary

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		next := m
		switch {
		case unicode.IsLower(c):
			next = modeLower
		case unicode.IsUpper(c):
			next = modeUpper
		}

		if i+1 >= len(runes) {
			break
		}
		n := runes[i+1]

		switch {
		case next == modeLower && unicode.IsUpper(n):
			out = append(out, string(runes[start:i+1]))
			start = i + 1
			m = modeBoundary
		case m == modeUpper && unicode.IsUpper(c) && unicode.IsLower(n):
			out = append(out, string(runes[start:i]))
			start = i
			m = next
		default:
			m = next
		}
	}

	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}
