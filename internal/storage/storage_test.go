package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmart/docsmart-backend/internal/config"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	})
	require.NoError(t, err)
	return store
}

func TestUploadDownload(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	url, err := store.Upload(ctx, "processed-pdfs", "public/job1/out.pdf", []byte("pdf bytes"), "application/pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	data, err := store.Download(ctx, "processed-pdfs", "public/job1/out.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), data)
}

func TestOpenStreamsContent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Upload(ctx, "raw-inputs", "public/job2/raw/a.pdf", []byte("abc"), "application/pdf")
	require.NoError(t, err)

	rc, err := store.Open(ctx, "raw-inputs", "public/job2/raw/a.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestOpenMissingReturnsNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.Open(context.Background(), "processed-pdfs", "public/missing/out.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Upload(ctx, "processed-pdfs", "public/job3/out.pdf", []byte("x"), "application/pdf")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "processed-pdfs", "public/job3/out.pdf"))
	require.NoError(t, store.Delete(ctx, "processed-pdfs", "public/job3/out.pdf"))

	_, err = store.Open(ctx, "processed-pdfs", "public/job3/out.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePrefixRemovesAllArtifacts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.Upload(ctx, "raw-inputs", "public/job4/raw/a.pdf", []byte("a"), "application/pdf")
	require.NoError(t, err)
	_, err = store.Upload(ctx, "raw-inputs", "public/job4/raw/b.pdf", []byte("b"), "application/pdf")
	require.NoError(t, err)
	_, err = store.Upload(ctx, "raw-inputs", "public/other/raw/c.pdf", []byte("c"), "application/pdf")
	require.NoError(t, err)

	require.NoError(t, store.DeletePrefix(ctx, "raw-inputs", "public/job4/"))

	_, err = store.Open(ctx, "raw-inputs", "public/job4/raw/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Open(ctx, "raw-inputs", "public/job4/raw/b.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	// Neighbors survive.
	data, err := store.Download(ctx, "raw-inputs", "public/other/raw/c.pdf")
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))
}

func TestPublicURL(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, config.StorageConfig{
		Type:          "local",
		LocalPath:     t.TempDir(),
		PublicBaseURL: "https://cdn.docsmart.io/",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"https://cdn.docsmart.io/processed-pdfs/public/j/out.pdf",
		store.PublicURL("processed-pdfs", "public/j/out.pdf"))
}

func TestUnknownStorageType(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
