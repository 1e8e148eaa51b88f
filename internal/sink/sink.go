// Package sink delivers finished export artifacts.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tomkat-cr/abstractgo/internal/export"
)

// Sink stores an artifact and reports where it went.
type Sink interface {
	Put(ctx context.Context, art export.Artifact) (string, error)
}

// Kind names a sink implementation in configuration.
type Kind string

const (
	KindLocal Kind = "local"
	KindMinIO Kind = "minio"
)

// New builds the sink named by kind. An empty kind means local.
func New(kind Kind, dir string, mc MinIOConfig) (Sink, error) {
	switch kind {
	case KindLocal, "":
		return Local{Dir: dir}, nil
	case KindMinIO:
		return NewMinIO(mc)
	}
	return nil, fmt.Errorf("unknown sink %q", kind)
}

// Local writes artifacts into a directory, creating it if needed.
type Local struct {
	Dir string
}

// Put writes the artifact atomically via a temporary file.
func (l Local) Put(ctx context.Context, art export.Artifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	final := filepath.Join(dir, filepath.Base(art.Name))
	tmp, err := os.CreateTemp(dir, ".export-*.part")
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(art.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return final, nil
}
