package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFile = ".rarebird.lock"

// lockDir takes an advisory lock on dir so two runs never write artifacts
// into it at once.
func lockDir(dir string) (*flock.Flock, error) {
	if dir == "" {
		dir = "."
	}
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("another run is already writing to %s", dir)
	}
	return lock, nil
}
