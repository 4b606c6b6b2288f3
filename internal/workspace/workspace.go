// Package workspace manages the scratch directory owned by one adapter
// family. Generated driver scripts and intermediate artifacts live here;
// teardown removes only files with known extensions.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPurgeExts are the artifact types an adapter may leave behind.
// Anything else in the directory is not ours to delete.
var DefaultPurgeExts = []string{".py", ".sh", ".txt", ".srt", ".wav", ".mp3", ".mp4", ".jpg", ".png"}

// Workspace is a per-adapter-family scratch directory. The zero value is not
// usable; construct with New.
type Workspace struct {
	dir string
}

// New returns a workspace rooted at root/family. If root is empty the system
// temp directory is used, namespaced under "clipforge". The directory is not
// created until Acquire.
func New(root, family string) *Workspace {
	if root == "" {
		root = filepath.Join(os.TempDir(), "clipforge")
	}
	return &Workspace{dir: filepath.Join(root, family)}
}

// Acquire creates the directory tree if absent and returns its path.
// Idempotent.
func (w *Workspace) Acquire() (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("workspace unavailable at %s: %w", w.dir, err)
	}
	return w.dir, nil
}

// Dir returns the workspace path without creating it.
func (w *Workspace) Dir() string { return w.dir }

// Join returns a path inside the workspace.
func (w *Workspace) Join(name string) string { return filepath.Join(w.dir, name) }

// Purge removes regular files in the workspace whose extension matches one
// of exts (or DefaultPurgeExts when none are given). Files with unexpected
// extensions and subdirectories are left in place. Best-effort: the first
// removal error is returned after attempting the rest.
func (w *Workspace) Purge(exts ...string) error {
	if len(exts) == 0 {
		exts = DefaultPurgeExts
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !contains(exts, ext) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir, e.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
