package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/openeduvoice/slidevoice/internal/config"
)

// objectAPI is the part of the S3 client a Bucket uses.
type objectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Bucket stores project files as objects under prefix. MinIO and other
// S3-compatible servers are reached through cfg.Endpoint with path-style
// addressing.
type Bucket struct {
	api    objectAPI
	name   string
	prefix string
}

// NewBucket builds a Bucket for cfg. prefix is joined with cfg.Prefix, so
// each project gets its own folder.
func NewBucket(ctx context.Context, cfg config.S3Config, prefix string) (*Bucket, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Bucket{api: client, name: cfg.Bucket, prefix: path.Join(cfg.Prefix, prefix)}, nil
}

// Ping fails when the bucket is missing or the credentials are rejected.
func (b *Bucket) Ping(ctx context.Context) error {
	_, err := b.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.name)})
	return err
}

func (b *Bucket) Save(ctx context.Context, key string, data []byte, contentType string) error {
	return b.Put(ctx, key, bytes.NewReader(data), contentType)
}

// Put streams r into the object for key.
func (b *Bucket) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	_, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(b.object(key)),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", b.name, b.object(key), err)
	}
	return nil
}

func (b *Bucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(b.object(key)),
	})
	if notFound(err) {
		return nil, fmt.Errorf("get s3://%s/%s: %w", b.name, b.object(key), fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", b.name, b.object(key), err)
	}
	return out.Body, nil
}

// Exists reports false for missing objects and for any lookup error.
func (b *Bucket) Exists(ctx context.Context, key string) bool {
	_, err := b.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(b.object(key)),
	})
	return err == nil
}

func (b *Bucket) Type() string { return "s3" }

func (b *Bucket) object(key string) string {
	if b.prefix == "" || b.prefix == "." {
		return key
	}
	return b.prefix + "/" + key
}

// notFound matches the HEAD ("NotFound") and GET ("NoSuchKey") error codes.
func notFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}
