package core

import (
	"context"
	"io"
)

type (
	// Blob references a file persisted by a BlobStore.
	Blob struct {
		URL    string // public URL of the file
		Handle string // opaque id used to delete the file
	}

	// BlobUpload describes a file to persist.
	BlobUpload struct {
		Filename    string
		ContentType string
		Size        int64
		Content     io.Reader
	}

	// BlobStore is the external storage for uploaded files.
	BlobStore interface {
		Put(ctx context.Context, upload BlobUpload) (Blob, error)
		Delete(ctx context.Context, handle string) error
	}
)
