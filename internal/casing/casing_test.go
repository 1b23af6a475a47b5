package casing

import "testing"

func TestSnake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo", "foo"},
		{"foo-bar", "foo_bar"},
		{"fooBar", "foo_bar"},
		{"FooBar", "foo_bar"},
		{"HTTPServer", "http_server"},
		{"get-HTTP-response", "get_http_response"},
		{"[method]blob.write", "method_blob_write"},
		{"tuple2", "tuple2"},
		{"u8-list", "u8_list"},
		{"a--b", "a_b"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Snake(tt.in); got != tt.want {
				t.Errorf("Snake(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestShouty(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"read", "READ"},
		{"read-write", "READ_WRITE"},
		{"wasi_io_streams", "WASI_IO_STREAMS"},
		{"myFlag", "MY_FLAG"},
	}

	for _, tt := range tests {
		if got := Shouty(tt.in); got != tt.want {
			t.Errorf("Shouty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWords(t *testing.T) {
	got := Words("XMLHttpRequest-v2")
	want := []string{"XML", "Http", "Request", "v2"}
	if len(got) != len(want) {
		t.Fatalf("Words() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Words()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
