// Package storage keeps uploaded document bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrBlobNotFound is returned when no blob exists under a key.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrInvalidKey is returned for keys that would escape the store root.
	ErrInvalidKey = errors.New("invalid blob key")
)

// BlobStore stores opaque file contents by key.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// LocalBlobStore writes blobs below a root directory on local disk.
type LocalBlobStore struct {
	root string
}

// NewLocalBlobStore creates the root directory if needed.
func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	if root == "" {
		return nil, errors.New("blob root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalBlobStore{root: root}, nil
}

// DocumentKey builds the key for a grievance document: {grievanceID}/{documentID}_{name}.
func DocumentKey(grievanceID, documentID, fileName string) string {
	return grievanceID + "/" + documentID + "_" + SanitizeFileName(fileName)
}

// SanitizeFileName strips directories and characters unsafe in a path segment.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// Put writes r to key, replacing any previous blob. The write is abandoned if ctx ends.
func (s *LocalBlobStore) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	written, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("commit blob: %w", err)
	}
	return written, nil
}

// Open returns a reader for key.
func (s *LocalBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *LocalBlobStore) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || filepath.IsAbs(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
