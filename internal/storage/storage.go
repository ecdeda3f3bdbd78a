// Package storage persists installed instrument assets on the local file system.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/leandrodaf/midibridge/sdk/contracts"
)

// FileStorage writes each asset to <root>/<id>.
type FileStorage struct {
	root string
}

// NewFileStorage creates the root directory if needed.
func NewFileStorage(root string) (*FileStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating asset directory %s: %v", contracts.ErrIOFailure, root, err)
	}
	return &FileStorage{root: root}, nil
}

// Root returns the asset directory.
func (s *FileStorage) Root() string {
	return s.root
}

// Path returns where the asset for id is stored.
func (s *FileStorage) Path(id string) string {
	return filepath.Join(s.root, sanitize(id))
}

// WriteAsset stores data atomically: a temp file in the same directory is
// synced and renamed over the final path.
func (s *FileStorage) WriteAsset(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrCancelled, err)
	}

	tmp, err := os.CreateTemp(s.root, ".partial-*")
	if err != nil {
		return classify(err, "creating temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return classify(err, "writing "+id)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return classify(err, "syncing "+id)
	}
	if err := tmp.Close(); err != nil {
		return classify(err, "closing "+id)
	}
	if err := os.Rename(tmpName, s.Path(id)); err != nil {
		return classify(err, "renaming "+id)
	}
	return nil
}

// Has reports whether an asset for id is present.
func (s *FileStorage) Has(id string) bool {
	info, err := os.Stat(s.Path(id))
	return err == nil && info.Mode().IsRegular()
}

func classify(err error, op string) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %s: %v", contracts.ErrInsufficientSpace, op, err)
	}
	return fmt.Errorf("%w: %s: %v", contracts.ErrIOFailure, op, err)
}

// sanitize maps an identifier to a single path element.
func sanitize(id string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	id = r.Replace(id)
	if id == "" || id == "." {
		return "_"
	}
	return id
}
