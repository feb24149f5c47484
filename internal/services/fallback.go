package services

import (
	"errors"
	"io/fs"
	"os"
	"tgmed/internal/structures"
)

// FallbackDocument provides the static recommendation text served before
// a generated one arrives.
type FallbackDocument interface {
	Load() (string, error)
}

type FileFallback struct {
	path string
}

func NewFileFallback(conf *structures.Config) FallbackDocument {
	return &FileFallback{path: conf.Recommendations.FallbackPath}
}

// Load returns "" without error when no path is configured or the file is
// missing.
func (f *FileFallback) Load() (string, error) {
	if f.path == "" {
		return "", nil
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
