package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore accepts a finished recording artifact and returns a location
// it can be retrieved from later.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// FSStore keeps artifacts on the local filesystem under one directory.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "recording"
	}
	location := filepath.Join(s.dir, uuid.New().String()+"-"+name)

	f, err := os.Create(location)
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(location)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return location, nil
}
