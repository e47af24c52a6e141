package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/IvanBrykalov/lodcache/cache"
)

// S3Client is the subset of *s3.Client used by S3.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads objects named prefix/Key(id) from an S3 bucket.
type S3 struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 wraps an existing client.
func NewS3(client S3Client, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// NewS3FromEnv builds a client from the default AWS configuration chain
// (environment, shared config, instance role).
func NewS3FromEnv(ctx context.Context, bucket, prefix, region string) (*S3, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("datasource: load aws config: %w", err)
	}
	return NewS3(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (s *S3) key(id cache.ID) string { return path.Join(s.prefix, Key(id)) }

func (s *S3) Read(ctx context.Context, id cache.ID) ([]byte, error) {
	key := s.key(id)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.ContentLength != nil && *resp.ContentLength >= 0 {
		buf := make([]byte, *resp.ContentLength)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return io.ReadAll(resp.Body)
}
