package blobsvc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/trezcool/paperdesk/core"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket    string
	Region    string
	Prefix    string
	PublicURL string // defaults to the virtual-hosted bucket URL
}

type S3Store struct {
	client S3API
	opts   S3Options
}

var _ core.BlobStore = (*S3Store)(nil)

// NewS3Store builds a client from the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("missing S3 bucket")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg), opts), nil
}

func NewS3StoreWithClient(client S3API, opts S3Options) *S3Store {
	if opts.PublicURL == "" {
		opts.PublicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	return &S3Store{client: client, opts: opts}
}

func (s *S3Store) Put(ctx context.Context, up core.BlobUpload) (core.Blob, error) {
	key := objectKey(s.opts.Prefix, up.Filename, time.Now())
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        up.Content,
		ContentType: aws.String(up.ContentType),
	}
	if up.Size > 0 {
		in.ContentLength = aws.Int64(up.Size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return core.Blob{}, errors.Wrap(err, "putting S3 object")
	}
	return core.Blob{URL: s.opts.PublicURL + "/" + key, Handle: key}, nil
}

func (s *S3Store) Delete(ctx context.Context, handle string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(handle),
	})
	return errors.Wrap(err, "deleting S3 object")
}
