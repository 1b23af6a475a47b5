// Package source provides the text builders used to emit generated code.
package source

import (
	"fmt"
	"strings"
)

const indentUnit = "  "

// Source accumulates generated text. Indentation is applied at the start of
// every non-empty line, so fragments may be pushed in arbitrary pieces.
type Source struct {
	b          strings.Builder
	indent     int
	continuing bool
}

// Push appends s, indenting each line that starts a new output line.
func (s *Source) Push(str string) {
	lines := strings.Split(str, "\n")
	for i, line := range lines {
		last := i == len(lines)-1
		if last && line == "" {
			break
		}
		if !s.continuing {
			if line != "" {
				for j := 0; j < s.indent; j++ {
					s.b.WriteString(indentUnit)
				}
			}
			s.continuing = true
		}
		s.b.WriteString(line)
		if !last {
			s.newline()
		}
	}
}

// Printf appends formatted text.
func (s *Source) Printf(format string, args ...any) {
	s.Push(fmt.Sprintf(format, args...))
}

// Line appends formatted text followed by a newline.
func (s *Source) Line(format string, args ...any) {
	s.Push(fmt.Sprintf(format, args...))
	s.newline()
}

// Append copies the contents of other verbatim.
func (s *Source) Append(other *Source) {
	s.b.WriteString(other.String())
	s.continuing = other.continuing
}

// Indent increases the indentation level.
func (s *Source) Indent() {
	s.indent++
}

// Dedent decreases the indentation level.
func (s *Source) Dedent() {
	if s.indent > 0 {
		s.indent--
	}
}

// Block runs fn with the indentation level raised by one.
func (s *Source) Block(fn func()) {
	s.Indent()
	defer s.Dedent()
	fn()
}

// Level returns the current indentation level.
func (s *Source) Level() int {
	return s.indent
}

// Len returns the number of bytes written.
func (s *Source) Len() int {
	return s.b.Len()
}

// String returns the accumulated text.
func (s *Source) String() string {
	return s.b.String()
}

// Reset discards the accumulated text and indentation.
func (s *Source) Reset() {
	s.b.Reset()
	s.indent = 0
	s.continuing = false
}

func (s *Source) newline() {
	s.continuing = false
	s.b.WriteByte('\n')
}
