package source

import (
	"errors"
	"testing"

	witerrors "github.com/wippyai/witbindgen/errors"
)

func TestSource_Push(t *testing.T) {
	tests := []struct {
		name   string
		pushes []string
		want   string
	}{
		{"simple append", []string{"x", "y", "z ", " a ", "\na"}, "xyz  a \na"},
		{"trailing newline", []string{"a\n", "b\n"}, "a\nb\n"},
		{"empty lines are not indented", []string{"\n"}, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Source
			for _, p := range tt.pushes {
				s.Push(p)
			}
			if got := s.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSource_Block(t *testing.T) {
	var s Source
	s.Line("begin")
	s.Block(func() {
		s.Line("x := 1;")
		s.Push("if x = 1 then\n")
		s.Block(func() {
			s.Line("y := 2;")
		})
		s.Line("")
	})
	s.Line("end;")

	want := "begin\n  x := 1;\n  if x = 1 then\n    y := 2;\n\nend;\n"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if s.Level() != 0 {
		t.Errorf("Level() = %d, want 0", s.Level())
	}
}

func TestSource_PartialLines(t *testing.T) {
	var s Source
	s.Indent()
	s.Push("a := ")
	s.Push("b;\n")
	s.Dedent()
	s.Dedent()
	if got := s.String(); got != "  a := b;\n" {
		t.Errorf("String() = %q", got)
	}
}

func TestNs(t *testing.T) {
	var ns Ns
	if got := ns.Tmp("ret"); got != "ret" {
		t.Errorf("Tmp = %q, want ret", got)
	}
	if got := ns.Tmp("ret"); got != "ret0" {
		t.Errorf("Tmp = %q, want ret0", got)
	}
	if got := ns.Tmp("ptr"); got != "ptr" {
		t.Errorf("Tmp = %q, want ptr", got)
	}
	if got := ns.Tmp("ptr"); got != "ptr1" {
		t.Errorf("Tmp = %q, want ptr1", got)
	}

	if err := ns.Insert("arg"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := ns.Insert("arg")
	if !errors.Is(err, &witerrors.Error{Phase: witerrors.PhaseGenerate, Kind: witerrors.KindAlreadyDefined}) {
		t.Errorf("Insert duplicate = %v, want already defined", err)
	}
	if !ns.Contains("arg") || ns.Contains("nope") {
		t.Error("Contains mismatch")
	}
}
