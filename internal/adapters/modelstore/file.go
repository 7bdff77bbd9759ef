// Package modelstore provides domain.ModelStore implementations: a local
// file and an HTTP artifact server.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"solar_price/internal/domain"
)

type FileStore struct{ path string }

func NewFile(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, domain.ErrNotFound)
	}
	return b, err
}

// Select picks the store for the configured locations: a URL wins over a
// path; neither yields nil and the placeholder model is used.
func Select(path, url, key string) (domain.ModelStore, error) {
	switch {
	case url != "":
		s, err := NewHTTP(url, key, 2)
		if err != nil {
			return nil, err
		}
		return s, nil
	case path != "":
		return NewFile(path), nil
	}
	return nil, nil
}
