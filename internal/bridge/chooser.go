package bridge

import (
	"context"
	"path/filepath"
)

// Chooser asks the user for paths. ok is false when the user cancels.
type Chooser interface {
	PickDirectory(ctx context.Context, title string) (path string, ok bool, err error)
	SaveFile(ctx context.Context, title, suggested string) (path string, ok bool, err error)
}

// StaticChooser answers without asking, for headless hosts. An empty
// field behaves like a cancelled dialog.
type StaticChooser struct {
	// Directory is returned by PickDirectory.
	Directory string
	// SaveDir receives files saved through SaveFile.
	SaveDir string
}

// PickDirectory returns c.Directory.
func (c StaticChooser) PickDirectory(context.Context, string) (string, bool, error) {
	if c.Directory == "" {
		return "", false, nil
	}
	return c.Directory, true, nil
}

// SaveFile returns the suggested name inside c.SaveDir.
func (c StaticChooser) SaveFile(_ context.Context, _ string, suggested string) (string, bool, error) {
	if c.SaveDir == "" || suggested == "" {
		return "", false, nil
	}
	return filepath.Join(c.SaveDir, filepath.Base(suggested)), true, nil
}
