// Package filesvc stores uploaded files and generated exports.
package filesvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/siwesng/slims/core"
)

// MediaURLPrefix is where the API serves stored files from.
const MediaURLPrefix = "/media/"

type localStorage struct {
	root string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(conf *core.Config) *localStorage {
	return &localStorage{root: conf.Media.Root}
}

func (s *localStorage) Save(_ context.Context, path string, content io.Reader) (string, error) {
	fp := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media dir")
	}
	f, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	defer func() { _ = f.Close() }()
	if _, err = io.Copy(f, content); err != nil {
		return "", errors.Wrap(err, "writing media file")
	}
	return MediaURLPrefix + path, nil
}

func (s *localStorage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, errors.Wrap(err, "opening media file")
	}
	return f, nil
}

func (s *localStorage) Delete(_ context.Context, path string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting media file")
	}
	return nil
}

func (s *localStorage) DeleteOlderThan(_ context.Context, prefix string, cutoff time.Time) error {
	root := filepath.Join(s.root, filepath.FromSlash(prefix))
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !info.ModTime().Before(cutoff) {
			return nil
		}
		return os.Remove(path)
	})
	if err != nil && !os.IsNotExist(errors.Cause(err)) && !strings.Contains(err.Error(), "no such file") {
		return errors.Wrap(err, "cleaning media files")
	}
	return nil
}
