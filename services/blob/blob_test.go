package blobsvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/paperdesk/core"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:5000/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	blob, err := store.Put(ctx, core.BlobUpload{Filename: "Thesis.PDF", Content: strings.NewReader("%PDF-1.4")})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(blob.Handle, ".pdf"))
	assert.Equal(t, "http://localhost:5000/uploads/"+blob.Handle, blob.URL)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(blob.Handle)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, blob.Handle))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(blob.Handle)))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(ctx, blob.Handle), "deleting twice")

	tests := []struct {
		name   string
		handle string
	}{
		{name: "empty", handle: ""},
		{name: "parent dir", handle: "../secret.txt"},
		{name: "absolute", handle: "/etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.Delete(ctx, tt.handle))
		})
	}
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
	body    string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, in)
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3Store(t *testing.T) {
	client := new(fakeS3)
	store := NewS3StoreWithClient(client, S3Options{Bucket: "papers", Region: "eu-west-1", Prefix: "research-portal"})
	ctx := context.Background()

	blob, err := store.Put(ctx, core.BlobUpload{
		Filename: "paper.docx", ContentType: "application/zip", Size: 4, Content: strings.NewReader("PK.."),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(blob.Handle, "research-portal/"))
	assert.Equal(t, "https://papers.s3.eu-west-1.amazonaws.com/"+blob.Handle, blob.URL)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "papers", aws.ToString(client.puts[0].Bucket))
	assert.Equal(t, "application/zip", aws.ToString(client.puts[0].ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(client.puts[0].ContentLength))
	assert.Equal(t, "PK..", client.body)

	require.NoError(t, store.Delete(ctx, blob.Handle))
	require.Len(t, client.deletes, 1)
	assert.Equal(t, blob.Handle, aws.ToString(client.deletes[0].Key))

	client.err = errors.New("access denied")
	_, err = store.Put(ctx, core.BlobUpload{Filename: "x.pdf", Content: strings.NewReader("x")})
	assert.EqualError(t, err, "putting S3 object: access denied")
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := &fakeS3{}
	store := Instrument(NewS3StoreWithClient(client, S3Options{Bucket: "b", PublicURL: "https://cdn.test/"}), reg)
	ctx := context.Background()

	blob, err := store.Put(ctx, core.BlobUpload{Filename: "a.txt", Content: strings.NewReader("a")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(blob.URL, "https://cdn.test/"))

	client.err = errors.New("boom")
	assert.Error(t, store.Delete(ctx, blob.Handle))

	ops := store.(*instrumentedStore).ops
	assert.Equal(t, float64(1), promtest.ToFloat64(ops.WithLabelValues("put", "ok")))
	assert.Equal(t, float64(1), promtest.ToFloat64(ops.WithLabelValues("delete", "error")))
}
