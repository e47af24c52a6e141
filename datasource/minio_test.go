package datasource

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinio_Integration requires a running MinIO instance at
// LODCACHE_MINIO_ENDPOINT (default localhost:9000). Skipped otherwise.
func TestMinio_Integration(t *testing.T) {
	endpoint := os.Getenv("LODCACHE_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	const bucket = "test-lodcache"

	src, err := DialMinio(endpoint, "minioadmin", "minioadmin", false, bucket, "bricks")
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}
	ctx := context.Background()
	if _, err := src.client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	exists, err := src.client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, src.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	require.NoError(t, src.Put(ctx, 42, []byte("hello minio")))
	got, err := src.Read(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello minio"), got)

	_, err = src.Read(ctx, 43)
	assert.ErrorIs(t, err, ErrNotFound)
}
