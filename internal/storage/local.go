package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"

	"github.com/spf13/afero"
)

// Local stores files on a filesystem rooted at a directory.
type Local struct {
	fs afero.Fs
}

var _ Storage = (*Local)(nil)

// NewLocal stores files under dir on the host filesystem.
func NewLocal(dir string) (*Local, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return NewLocalFs(afero.NewBasePathFs(osFs, dir)), nil
}

// NewLocalFs wraps an arbitrary afero filesystem.
func NewLocalFs(fsys afero.Fs) *Local {
	return &Local{fs: fsys}
}

func (l *Local) Save(_ context.Context, key string, r io.Reader, _ string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(key); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteReader(l.fs, key, r)
}

func (l *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := l.fs.Open(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (l *Local) Delete(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
