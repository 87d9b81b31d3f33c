// Package artifact resolves the most recently written export artifact.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoArtifact is returned when nothing matches the pattern. It is an empty
// state rather than a failure.
var ErrNoArtifact = errors.New("no data files found")

// Latest returns the path matching pattern with the newest modification time.
// When two files share a modification time the lexicographically greatest
// name wins.
func Latest(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}

	var (
		newest   string
		newestAt int64
	)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		at := info.ModTime().UnixNano()
		if newest == "" || at > newestAt || (at == newestAt && path > newest) {
			newest = path
			newestAt = at
		}
	}
	if newest == "" {
		return "", ErrNoArtifact
	}
	return newest, nil
}

// ReadLatest resolves the newest artifact and reads it.
func ReadLatest(pattern string) (string, []byte, error) {
	path, err := Latest(pattern)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, err
	}
	return path, data, nil
}

// Pattern is the glob for JSON artifacts written with prefix into dir.
func Pattern(dir, prefix string) string {
	return filepath.Join(dir, prefix+"_*.json")
}
