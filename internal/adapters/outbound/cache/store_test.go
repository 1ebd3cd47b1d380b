package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openkraft/issuegate/internal/adapters/outbound/cache"
	"github.com/openkraft/issuegate/internal/domain"
)

var build = domain.BuildRef{Job: "folder/app", Number: 7}

func TestStore_PutAndGet(t *testing.T) {
	store := cache.New(t.TempDir())
	key := domain.ContentKey{Build: build, Fingerprint: "abc123"}

	require.NoError(t, store.Put(context.Background(), key, []byte("package a;")))

	data, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "package a;", string(data))
}

func TestStore_PutOverwrites(t *testing.T) {
	store := cache.New(t.TempDir())
	key := domain.ContentKey{Build: build, Fingerprint: "abc123"}

	require.NoError(t, store.Put(context.Background(), key, []byte("old")))
	require.NoError(t, store.Put(context.Background(), key, []byte("new")))

	data, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestStore_ZeroLengthContent(t *testing.T) {
	store := cache.NewWithFs(afero.NewMemMapFs(), "/data")
	key := domain.ContentKey{Build: build, Fingerprint: "empty"}

	require.NoError(t, store.Put(context.Background(), key, nil))

	data, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStore_GetMissing(t *testing.T) {
	store := cache.New(t.TempDir())

	_, err := store.Get(context.Background(), domain.ContentKey{Build: build, Fingerprint: "missing"})
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
}

func TestStore_KeysOfDifferentBuildsDoNotCollide(t *testing.T) {
	store := cache.NewWithFs(afero.NewMemMapFs(), "/data")
	first := domain.ContentKey{Build: domain.BuildRef{Job: "app", Number: 1}, Fingerprint: "fp"}
	second := domain.ContentKey{Build: domain.BuildRef{Job: "app", Number: 2}, Fingerprint: "fp"}

	require.NoError(t, store.Put(context.Background(), first, []byte("one")))
	require.NoError(t, store.Put(context.Background(), second, []byte("two")))

	data, err := store.Get(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestStore_JobNamesAreEscaped(t *testing.T) {
	dir := t.TempDir()
	store := cache.New(dir)

	require.NoError(t, store.Put(context.Background(), domain.ContentKey{Build: build, Fingerprint: "fp"}, []byte("x")))

	_, err := os.Stat(filepath.Join(dir, "folder%2Fapp", "7", "fp"))
	assert.NoError(t, err)
}

func TestStore_DeleteBuild(t *testing.T) {
	store := cache.New(t.TempDir())
	key := domain.ContentKey{Build: build, Fingerprint: "fp"}
	require.NoError(t, store.Put(context.Background(), key, []byte("x")))

	require.NoError(t, store.DeleteBuild(context.Background(), build))

	_, err := store.Get(context.Background(), key)
	assert.ErrorIs(t, err, domain.ErrContentNotFound)
	assert.NoError(t, store.DeleteBuild(context.Background(), build), "deleting twice is fine")
}

func TestStore_CancelledContext(t *testing.T) {
	store := cache.New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Put(ctx, domain.ContentKey{Build: build, Fingerprint: "fp"}, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
