// Package library is the concrete library.Client adapter: a bbolt-backed
// keyed store for per-item and per-album flexible attributes, plus random
// sampling for the Auto-Queue Loop. Populating the store (importing the
// music collection's paths and album groupings) is the external library's
// own responsibility — exactly as the original beets-backed implementation
// never administered beets' library either, only read and wrote flexible
// attributes against it.
package library

import (
	"context"
	"encoding/json"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.etcd.io/bbolt"

	domainlibrary "github.com/thekakkun/mpd-tracker/internal/domain/library"
)

var (
	bucketItems  = []byte("items")
	bucketAlbums = []byte("albums")
)

// itemRecord is the persisted shape of one library item. Flexible
// attributes are modeled as concrete fields rather than an open map: this
// adapter only ever stores the three attribute keys the Verdict Sink uses,
// so there is no benefit to a schemaless encoding and
// real benefit (type safety across a JSON round trip) to a fixed one.
type itemRecord struct {
	Path       string    `json:"path"`
	AlbumID    string    `json:"album_id"`
	PlayCount  int       `json:"play_count"`
	SkipCount  int       `json:"skip_count"`
	LastPlayed time.Time `json:"last_played"`
}

// albumRecord is the persisted shape of one album: its member item paths
// (for the last-played rollup's Items walk) plus its own flexible
// attributes.
type albumRecord struct {
	ID         string    `json:"id"`
	ItemPaths  []string  `json:"item_paths"`
	LastPlayed time.Time `json:"last_played"`
}

// Store is a bbolt-backed library.Client.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and
// ensures its buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "library: open")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketItems); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketAlbums); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "library: init buckets")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying bbolt file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put registers or replaces an item's record, creating its album's record
// if the album doesn't already exist (an empty albumID means the item has
// no album, and no album record is written). This is the store's only path for
// library population — there is no import/scan pipeline here, by design
// (see package doc).
func (s *Store) Put(path, albumID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		items := tx.Bucket(bucketItems)
		rec := itemRecord{Path: path, AlbumID: albumID}
		if existing := items.Get([]byte(path)); existing != nil {
			if err := json.Unmarshal(existing, &rec); err != nil {
				return errors.Wrapf(err, "library: decoding existing item %q", path)
			}
			rec.AlbumID = albumID
		}
		if err := putItemRecord(tx, rec); err != nil {
			return err
		}
		if albumID == "" {
			return nil
		}

		albums := tx.Bucket(bucketAlbums)
		var album albumRecord
		if raw := albums.Get([]byte(albumID)); raw != nil {
			if err := json.Unmarshal(raw, &album); err != nil {
				return errors.Wrapf(err, "library: decoding existing album %q", albumID)
			}
		} else {
			album = albumRecord{ID: albumID}
		}
		if !containsString(album.ItemPaths, path) {
			album.ItemPaths = append(album.ItemPaths, path)
		}
		return putAlbumRecord(tx, album)
	})
}

// ItemByPath resolves a library-relative path to an item handle.
func (s *Store) ItemByPath(ctx context.Context, path string) (domainlibrary.Item, bool, error) {
	var rec itemRecord
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketItems).Get([]byte(path))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "library: reading item %q", path)
	}
	if !found {
		return nil, false, nil
	}
	return &item{store: s, rec: rec}, true, nil
}

// AlbumOf navigates from an item to its containing album.
func (s *Store) AlbumOf(ctx context.Context, it domainlibrary.Item) (domainlibrary.Album, error) {
	albumID := it.AlbumID()
	if albumID == "" {
		return nil, nil
	}

	var rec albumRecord
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketAlbums).Get([]byte(albumID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "library: reading album %q", albumID)
	}
	if !found {
		return nil, nil
	}
	return &album{store: s, rec: rec}, nil
}

// RandomPaths returns up to n item paths (or, in album mode, album
// directory paths — the album ID doubles as its directory, the library's
// natural grouping for a filesystem-sourced collection) matching query as
// a plain substring filter.
func (s *Store) RandomPaths(ctx context.Context, n int, query string, album bool) ([]string, error) {
	var candidates []string
	bucket := bucketItems
	if album {
		bucket = bucketAlbums
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			key := string(k)
			if query == "" || strings.Contains(key, query) {
				candidates = append(candidates, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "library: sampling candidates")
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n], nil
}

func putItemRecord(tx *bbolt.Tx, rec itemRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "library: encoding item %q", rec.Path)
	}
	return tx.Bucket(bucketItems).Put([]byte(rec.Path), raw)
}

func putAlbumRecord(tx *bbolt.Tx, rec albumRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "library: encoding album %q", rec.ID)
	}
	return tx.Bucket(bucketAlbums).Put([]byte(rec.ID), raw)
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// item is a mutable handle on one bbolt-backed item record.
type item struct {
	store *Store
	rec   itemRecord
}

func (i *item) Path() string    { return i.rec.Path }
func (i *item) AlbumID() string { return i.rec.AlbumID }

func (i *item) Get(key string, def any) any {
	switch key {
	case domainlibrary.AttrPlayCount:
		return i.rec.PlayCount
	case domainlibrary.AttrSkipCount:
		return i.rec.SkipCount
	case domainlibrary.AttrLastPlayed:
		if i.rec.LastPlayed.IsZero() {
			return def
		}
		return i.rec.LastPlayed
	default:
		return def
	}
}

func (i *item) Set(key string, value any) {
	switch key {
	case domainlibrary.AttrPlayCount:
		if v, ok := value.(int); ok {
			i.rec.PlayCount = v
		}
	case domainlibrary.AttrSkipCount:
		if v, ok := value.(int); ok {
			i.rec.SkipCount = v
		}
	case domainlibrary.AttrLastPlayed:
		if v, ok := value.(time.Time); ok {
			i.rec.LastPlayed = v
		}
	}
}

func (i *item) Store(ctx context.Context) error {
	return i.store.db.Update(func(tx *bbolt.Tx) error {
		return putItemRecord(tx, i.rec)
	})
}

// album is a mutable handle on one bbolt-backed album record.
type album struct {
	store *Store
	rec   albumRecord
}

func (a *album) ID() string { return a.rec.ID }

func (a *album) Items(ctx context.Context) ([]domainlibrary.Item, error) {
	items := make([]domainlibrary.Item, 0, len(a.rec.ItemPaths))
	for _, path := range a.rec.ItemPaths {
		it, ok, err := a.store.ItemByPath(ctx, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (a *album) Get(key string, def any) any {
	if key == domainlibrary.AttrLastPlayed {
		if a.rec.LastPlayed.IsZero() {
			return def
		}
		return a.rec.LastPlayed
	}
	return def
}

func (a *album) Set(key string, value any) {
	if key == domainlibrary.AttrLastPlayed {
		if v, ok := value.(time.Time); ok {
			a.rec.LastPlayed = v
		}
	}
}

func (a *album) Store(ctx context.Context) error {
	return a.store.db.Update(func(tx *bbolt.Tx) error {
		return putAlbumRecord(tx, a.rec)
	})
}

// AlbumIDForPath derives the convention this adapter uses to group items
// into albums when importing: the item's containing directory.
func AlbumIDForPath(path string) string {
	return filepath.Dir(path)
}
