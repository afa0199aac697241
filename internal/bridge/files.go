package bridge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Files implements the filesystem operations of the native API.
type Files struct {
	fs afero.Fs
}

// NewFiles creates a Files over fs. A nil fs uses the OS filesystem.
func NewFiles(fs afero.Fs) *Files {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Files{fs: fs}
}

// Exists reports whether path exists.
func (f *Files) Exists(path string) bool {
	ok, err := afero.Exists(f.fs, path)
	return err == nil && ok
}

// Mkdir creates a single directory. The parent must already exist.
func (f *Files) Mkdir(path string) error {
	if err := f.fs.Mkdir(path, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}
	return nil
}

// WriteFile creates or truncates path and writes data to it.
func (f *Files) WriteFile(path string, data []byte) error {
	if err := afero.WriteFile(f.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// List returns the files under dir in name order. Directories are
// descended into only when recursive is set. Symbolic links to
// directories are never followed.
func (f *Files) List(dir string, recursive bool) ([]string, error) {
	var out []string
	if err := f.list(&out, dir, recursive); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Files) list(out *[]string, dir string, recursive bool) error {
	entries, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			if recursive {
				if err := f.list(out, path, recursive); err != nil {
					return err
				}
			}
		case entry.Mode()&os.ModeSymlink != 0:
			info, err := f.fs.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			*out = append(*out, path)
		default:
			*out = append(*out, path)
		}
	}
	return nil
}
