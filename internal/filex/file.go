// Package filex holds small filesystem helpers used at startup.
package filex

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// EnsureDir creates dir (relative paths resolve against the working
// directory) and returns its absolute path. An existing non-directory at
// that path is an error.
func EnsureDir(fs afero.Fs, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if fi, err := fs.Stat(abs); err == nil && !fi.IsDir() {
		return "", fmt.Errorf("mkdir %s: not a directory", abs)
	}

	if err := fs.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	return abs, nil
}
