package catalog

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindRoot walks from start up through parent directories until it finds the
// directory holding the manifest sentinel, and returns the manifest path.
// Invocation location never matters: any directory inside the project works.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ManifestFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &ManifestError{
				Path: ManifestFile,
				Err:  fmt.Errorf("not found in %s or any parent directory", start),
			}
		}
		dir = parent
	}
}
