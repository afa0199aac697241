//go:build !windows

package bridge

import "testing"

func TestJoinPath(t *testing.T) {
	tests := []struct {
		elems []string
		want  string
	}{
		{[]string{"a", "b"}, "a/b"},
		{[]string{"/root", "scaffold", "maps"}, "/root/scaffold/maps"},
		{[]string{"a", "/abs", "c"}, "/abs/c"},
		{[]string{"a", "", "b"}, "a/b"},
		{nil, ""},
	}

	for _, tt := range tests {
		if got := JoinPath(tt.elems...); got != tt.want {
			t.Errorf("JoinPath(%q) = %q, want %q", tt.elems, got, tt.want)
		}
	}
}

func TestDirName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/a/b/c.txt", "/a/b"},
		{"/a", "/"},
		{"/", ""},
		{"file", ""},
		{"a/b/", "a"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := DirName(tt.in); got != tt.want {
			t.Errorf("DirName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelativePath(t *testing.T) {
	tests := []struct {
		from, to, want string
	}{
		{"/a/b", "/a/b/c", "c"},
		{"/a/b", "/a/d", "../d"},
		{"/a", "/a", ""},
		{"rel", "/abs", "/abs"},
	}

	for _, tt := range tests {
		if got := RelativePath(tt.from, tt.to); got != tt.want {
			t.Errorf("RelativePath(%q, %q) = %q, want %q", tt.from, tt.to, got, tt.want)
		}
	}
}
