package bridge

import (
	"path/filepath"
	"strings"
)

// JoinPath joins elements in order. An absolute element replaces
// everything before it.
func JoinPath(elems ...string) string {
	out := ""
	for _, e := range elems {
		if e == "" {
			continue
		}
		if filepath.IsAbs(e) || out == "" {
			out = e
			continue
		}
		out = filepath.Join(out, e)
	}
	if out == "" {
		return ""
	}
	return filepath.Clean(out)
}

// RelativePath returns to expressed relative to from. When no relative
// path exists, for example between an absolute and a relative path, to is
// returned unchanged.
func RelativePath(from, to string) string {
	rel, err := filepath.Rel(from, to)
	if err != nil {
		return to
	}
	if rel == "." {
		return ""
	}
	return rel
}

// DirName returns the parent of p, or "" when p has none.
func DirName(p string) string {
	p = strings.TrimRight(p, string(filepath.Separator))
	if p == "" || !strings.ContainsRune(p, filepath.Separator) {
		return ""
	}
	dir := filepath.Dir(p)
	if dir == p {
		return ""
	}
	return dir
}

// Separator returns the platform path separator.
func Separator() string {
	return string(filepath.Separator)
}
