// Package artifacts provides read access to trained model artifacts on the
// local filesystem or behind an HTTP endpoint.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/okian/flightrisk/internal/config"
	"github.com/okian/flightrisk/pkg/metrics"
)

// Source opens artifacts by their slash-separated relative path.
type Source interface {
	// Open returns the artifact content. Returns ErrNotFound if the artifact
	// does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Describe returns a human readable location of an artifact for logs and errors.
	Describe(name string) string
}

// New builds the source selected by configuration.
func New(cfg config.Artifacts) (Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		return NewFileSource(cfg.Root), nil
	case config.SourceHTTP:
		s, err := NewHTTPSource(cfg.BaseURL,
			WithTimeout(cfg.Timeout),
			WithBackoff(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
			WithBreaker(uint32(max(cfg.BreakerFailures, 1)), cfg.BreakerTimeout), //nolint:gosec // bounded by max
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidSetup, cfg.Source)
	}
}

// cleanName rejects absolute paths and parent traversal.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return clean, nil
}

// FileSource reads artifacts below a root directory.
type FileSource struct {
	root string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{root: dir}
}

// Describe returns the filesystem path of an artifact.
func (s *FileSource) Describe(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens an artifact file.
func (s *FileSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.Describe(clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.RecordArtifactFetch(config.SourceFile, "not_found")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.Describe(clean))
		}
		metrics.RecordArtifactFetch(config.SourceFile, "error")
		return nil, err
	}
	metrics.RecordArtifactFetch(config.SourceFile, "ok")
	return f, nil
}
