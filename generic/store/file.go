package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/warp/hrstore/generic"
)

// =============================================================================
// FILE BACKEND - One JSON document on local disk
// =============================================================================

// File stores the artifact as a single file. Writes go to a temp file in
// the same directory, are synced, then renamed over the target, so a reader
// sees either the old or the new document, never a mix.
//
// The revision is the SHA-256 of the content. Before replacing the file,
// Write hashes what is on disk and refuses to continue if it is not what
// this process last saw.
type File struct {
	path string
	perm fs.FileMode
}

// NewFile returns a backend for path. The file is not created; seed it first.
func NewFile(path string) *File {
	return &File{path: path, perm: 0o600}
}

// Path returns the artifact location.
func (f *File) Path() string { return f.path }

func (f *File) Read(_ context.Context) ([]byte, generic.Revision, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%s: %w", f.path, generic.ErrNotInitialized)
		}
		return nil, "", fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, revisionOf(data), nil
}

func (f *File) Write(ctx context.Context, data []byte, expect generic.Revision) (generic.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	current, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if expect != "" {
			return "", fmt.Errorf("%s removed by another writer: %w", f.path, generic.ErrConcurrentModification)
		}
	case err != nil:
		return "", fmt.Errorf("read %s: %w", f.path, err)
	case revisionOf(current) != expect:
		return "", fmt.Errorf("%s changed on disk: %w", f.path, generic.ErrConcurrentModification)
	}

	if err := writeAtomic(f.path, data, f.perm); err != nil {
		return "", err
	}
	return revisionOf(data), nil
}

// Seed writes an initial artifact, replacing any existing file.
func (f *File) Seed(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	return writeAtomic(f.path, data, f.perm)
}

func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func revisionOf(data []byte) generic.Revision {
	sum := sha256.Sum256(data)
	return generic.Revision(hex.EncodeToString(sum[:]))
}
