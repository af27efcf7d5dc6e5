package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainlibrary "github.com/thekakkun/mpd-tracker/internal/domain/library"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_ItemByPath_Miss(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.ItemByPath(context.Background(), "nope.mp3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Put_ThenItemByPath_Hit(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put("artist/album/track.flac", "artist/album"))

	it, ok, err := store.ItemByPath(context.Background(), "artist/album/track.flac")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "artist/album/track.flac", it.Path())
	assert.Equal(t, "artist/album", it.AlbumID())
	assert.Equal(t, 0, it.Get(domainlibrary.AttrPlayCount, 0))
}

func TestItem_SetAndStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put("track.flac", "album-1"))

	ctx := context.Background()
	it, ok, err := store.ItemByPath(ctx, "track.flac")
	require.NoError(t, err)
	require.True(t, ok)

	now := time.Now().Truncate(time.Second)
	it.Set(domainlibrary.AttrPlayCount, 3)
	it.Set(domainlibrary.AttrLastPlayed, now)
	require.NoError(t, it.Store(ctx))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.ItemByPath(ctx, "track.flac")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Get(domainlibrary.AttrPlayCount, 0))

	gotLastPlayed, ok := got.Get(domainlibrary.AttrLastPlayed, time.Time{}).(time.Time)
	require.True(t, ok)
	assert.True(t, now.Equal(gotLastPlayed), "last played timestamp should survive a reopen")
}

func TestStore_AlbumOf(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put("a1.flac", "album-a"))
	require.NoError(t, store.Put("a2.flac", "album-a"))

	it, _, err := store.ItemByPath(ctx, "a1.flac")
	require.NoError(t, err)

	alb, err := store.AlbumOf(ctx, it)
	require.NoError(t, err)
	require.NotNil(t, alb)
	assert.Equal(t, "album-a", alb.ID())

	members, err := alb.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestStore_AlbumOf_NoAlbumID_ReturnsNil(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put("solo.flac", ""))

	ctx := context.Background()
	it, _, err := store.ItemByPath(ctx, "solo.flac")
	require.NoError(t, err)

	alb, err := store.AlbumOf(ctx, it)
	require.NoError(t, err)
	assert.Nil(t, alb)
}

func TestStore_RandomPaths_ItemMode(t *testing.T) {
	store := openTestStore(t)
	for _, p := range []string{"a.flac", "b.flac", "c.flac"} {
		require.NoError(t, store.Put(p, AlbumIDForPath(p)))
	}

	paths, err := store.RandomPaths(context.Background(), 2, "", false)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestStore_RandomPaths_AlbumMode(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put("album-a/1.flac", "album-a"))
	require.NoError(t, store.Put("album-a/2.flac", "album-a"))
	require.NoError(t, store.Put("album-b/1.flac", "album-b"))

	paths, err := store.RandomPaths(context.Background(), 5, "", true)
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestStore_RandomPaths_QueryFilter(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put("rock/song.flac", "rock"))
	require.NoError(t, store.Put("jazz/song.flac", "jazz"))

	paths, err := store.RandomPaths(context.Background(), 5, "rock", false)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "rock/song.flac", paths[0])
}

func TestAlbumIDForPath(t *testing.T) {
	assert.Equal(t, "artist/album", AlbumIDForPath("artist/album/track.flac"))
}
