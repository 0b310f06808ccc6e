package minio

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/hupe1980/embedpack/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// TestMinioStore_Integration requires a running MinIO instance.
func TestMinioStore_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Dial(ctx, Config{
		Endpoint:     envOr("MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:    envOr("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey:    envOr("MINIO_SECRET_KEY", "minioadmin"),
		Bucket:       "test-embedpack",
		Prefix:       fmt.Sprintf("run-%d/", time.Now().UnixNano()),
		CreateBucket: true,
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "manifest.json", data))

	blob, err := store.Open(ctx, "manifest.json")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data)+4)
	n, err := blob.ReadAt(ctx, buf, 0)
	assert.ErrorIs(t, err, io.EOF)
	require.Equal(t, len(data), n)
	require.Equal(t, data, buf[:n])

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	wb, err := store.Create(ctx, "tokens.npy")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed data"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"manifest.json", "tokens.npy"}, names)

	got, err := blobstore.ReadFile(ctx, store, "tokens.npy")
	require.NoError(t, err)
	assert.Equal(t, "streamed data", string(got))

	for _, name := range names {
		require.NoError(t, store.Delete(ctx, name))
	}
	_, err = store.Open(ctx, "tokens.npy")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
