package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Persist stores and loads node blobs as files in a directory. Nodes
// are content-addressed, so an existing file never needs rewriting.
type Persist struct {
	basepath string
}

// NewPersistForPath returns a Persist that loads and stores nodes as
// files in the directory at the given path.
func NewPersistForPath(path string) Persist {
	return Persist{path}
}

// Load loads the bytes persisted in the named file.
func (p Persist) Load(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.basepath, name))
}

// Store persists the given bytes in a file of the given name, if it
// doesn't exist already.
func (p Persist) Store(ctx context.Context, name string, value []byte) error {
	path := filepath.Join(p.basepath, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return os.WriteFile(path, value, 0o644)
}
