package blobsvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
)

// LocalStore keeps files under dir; they are served under baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ core.BlobStore = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// resolve maps a handle to a path within dir, refusing handles that escape it.
func (s *LocalStore) resolve(handle string) (string, error) {
	clean := path.Clean("/" + handle)[1:]
	if clean == "" || clean != handle {
		return "", errors.Errorf("invalid file handle %q", handle)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) Put(ctx context.Context, up core.BlobUpload) (core.Blob, error) {
	if err := ctx.Err(); err != nil {
		return core.Blob{}, err
	}
	key := objectKey("", up.Filename, time.Now())
	fpath, err := s.resolve(key)
	if err != nil {
		return core.Blob{}, err
	}
	if err = os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return core.Blob{}, errors.Wrap(err, "creating file dir")
	}

	f, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return core.Blob{}, errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(f, up.Content); err != nil {
		_ = f.Close()
		_ = os.Remove(fpath)
		return core.Blob{}, errors.Wrap(err, "writing file")
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(fpath)
		return core.Blob{}, errors.Wrap(err, "closing file")
	}
	return core.Blob{URL: s.baseURL + "/" + key, Handle: key}, nil
}

// Delete is idempotent: deleting a missing file succeeds.
func (s *LocalStore) Delete(_ context.Context, handle string) error {
	fpath, err := s.resolve(handle)
	if err != nil {
		return err
	}
	if err = os.Remove(fpath); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
