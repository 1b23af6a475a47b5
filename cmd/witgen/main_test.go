package main

import "testing"

func TestRenameFlags(t *testing.T) {
	var r renameFlags
	for _, s := range []string{"a:b/c=c", "d:e/f=my_f"} {
		if err := r.Set(s); err != nil {
			t.Fatalf("Set(%q): %v", s, err)
		}
	}
	if got := r.String(); got != "a:b/c=c,d:e/f=my_f" {
		t.Errorf("String() = %q", got)
	}
	if err := r.Set("missing-value"); err == nil {
		t.Error("Set accepted a rename without '='")
	}
	if len(r) != 2 {
		t.Errorf("len = %d", len(r))
	}
}
