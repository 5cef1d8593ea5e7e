// Package blobsvc stores uploaded files on local disk or in S3.
package blobsvc

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
)

// New returns the BlobStore configured by conf.Uploads.Backend.
func New(ctx context.Context, conf *core.Config) (core.BlobStore, error) {
	switch conf.Uploads.Backend {
	case "", "local":
		return NewLocalStore(conf.Uploads.Dir, conf.Uploads.BaseURL)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    conf.Uploads.S3Bucket,
			Region:    conf.Uploads.S3Region,
			Prefix:    conf.Uploads.S3Prefix,
			PublicURL: conf.Uploads.S3PublicURL,
		})
	}
	return nil, errors.Errorf("unknown uploads backend %q", conf.Uploads.Backend)
}

// objectKey names a stored file: <yyyy/mm>/<uuid><ext>, optionally under prefix.
func objectKey(prefix, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	key := path.Join(now.UTC().Format("2006/01"), uuid.New().String()+ext)
	if prefix != "" {
		key = path.Join(prefix, key)
	}
	return key
}
