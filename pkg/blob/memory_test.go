package blob_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/blob"
)

func TestMemoryStore_PutGet(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tenant-a", "docs/report.txt", []byte("hello"), "text/plain"))

	data, err := store.Get(ctx, "tenant-a", "docs/report.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestMemoryStore_NamespaceIsolation(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tenant-a", "file.txt", []byte("secret"), "text/plain"))

	_, err := store.Get(ctx, "tenant-b", "file.txt")
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
}

func TestMemoryStore_PathTraversalRejected(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("")
	ctx := context.Background()

	err := store.Put(ctx, "tenant-a", "../tenant-b/file.txt", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, blob.ErrInvalidPath)

	_, err = store.Get(ctx, "tenant-a", "../tenant-b/file.txt")
	assert.ErrorIs(t, err, blob.ErrInvalidPath)
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tenant-a", "file.txt", []byte("x"), "text/plain"))
	require.NoError(t, store.Delete(ctx, "tenant-a", "file.txt"))

	err := store.Delete(ctx, "tenant-a", "file.txt")
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
}

func TestMemoryStore_Copy(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tenant-a", "src.txt", []byte("payload"), "text/plain"))
	require.NoError(t, store.Copy(ctx, "tenant-a", "src.txt", "dst.txt"))

	data, err := store.Get(ctx, "tenant-a", "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	err = store.Copy(ctx, "tenant-a", "missing.txt", "other.txt")
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
}

func TestMemoryStore_List(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tenant-a", "images/a.png", []byte("aa"), "image/png"))
	require.NoError(t, store.Put(ctx, "tenant-a", "images/b.png", []byte("bbb"), "image/png"))
	require.NoError(t, store.Put(ctx, "tenant-a", "docs/c.pdf", []byte("c"), "application/pdf"))
	require.NoError(t, store.Put(ctx, "tenant-b", "images/d.png", []byte("d"), "image/png"))

	all, err := store.List(ctx, "tenant-a", blob.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	images, err := store.List(ctx, "tenant-a", blob.ListFilter{Prefix: "images/"})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "images/a.png", images[0].Path)
	assert.Equal(t, int64(2), images[0].Size)

	limited, err := store.List(ctx, "tenant-a", blob.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryStore_SignedURL(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("https://cdn.example.com")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "tenant-a", "file.txt", []byte("x"), "text/plain"))

	url, err := store.SignedURL(ctx, "tenant-a", "file.txt", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "https://cdn.example.com/tenant-a/file.txt")
	assert.Contains(t, url, "expires=")

	_, err = store.SignedURL(ctx, "tenant-a", "missing.txt", time.Hour)
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
}
