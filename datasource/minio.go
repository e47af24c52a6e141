package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/IvanBrykalov/lodcache/cache"
)

// Minio reads objects named prefix/Key(id) from a MinIO or other
// S3-compatible bucket.
type Minio struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinio wraps an existing client.
func NewMinio(client *minio.Client, bucket, prefix string) *Minio {
	return &Minio{client: client, bucket: bucket, prefix: prefix}
}

// DialMinio creates a client with static credentials.
func DialMinio(endpoint, accessKey, secretKey string, secure bool, bucket, prefix string) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("datasource: minio client: %w", err)
	}
	return NewMinio(client, bucket, prefix), nil
}

func (m *Minio) key(id cache.ID) string { return path.Join(m.prefix, Key(id)) }

func (m *Minio) Read(ctx context.Context, id cache.ID) ([]byte, error) {
	key := m.key(id)
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.mapErr(err, key)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.mapErr(err, key)
	}
	return data, nil
}

// Put uploads data for id.
func (m *Minio) Put(ctx context.Context, id cache.ID, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.key(id), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (m *Minio) mapErr(err error, key string) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, m.bucket, key)
	}
	return err
}
