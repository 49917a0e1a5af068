package docstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrTooLarge is returned when an upload exceeds the size ceiling.
	ErrTooLarge = errors.New("file exceeds maximum upload size")

	// ErrNotFound is returned when a stored name resolves to nothing.
	ErrNotFound = errors.New("stored file not found")
)

// Store keeps uploaded identity documents on local disk under one directory,
// addressed by generated collision-resistant names.
type Store struct {
	dir      string
	maxBytes int64
}

// New creates the upload directory when missing. maxBytes caps individual
// uploads; non-positive values fall back to 10 MiB.
func New(dir string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save writes the upload under a generated name and returns that name.
// Oversized uploads are rejected with ErrTooLarge and leave nothing behind.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	name := genName(originalName)
	dst := filepath.Join(s.dir, name)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		f.Close()
		os.Remove(dst)
		return "", err
	}
	if n > s.maxBytes {
		f.Close()
		os.Remove(dst)
		return "", ErrTooLarge
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return name, nil
}

// Delete removes a stored file. A file already absent is not an error.
func (s *Store) Delete(storedName string) error {
	if err := validName(storedName); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, storedName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Open resolves a stored name to its file for serving.
func (s *Store) Open(storedName string) (*os.File, error) {
	if err := validName(storedName); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, storedName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// MaxBytes reports the upload ceiling.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// genName builds a timestamp-plus-random name keeping the original extension,
// so repeated uploads of the same file never collide.
func genName(originalName string) string {
	ext := filepath.Ext(originalName)
	return fmt.Sprintf("%d-%09d%s", time.Now().UnixMilli(), rand.Int63n(1_000_000_000), ext)
}

// validName bars path traversal through stored names.
func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return ErrNotFound
	}
	return nil
}
