// Package verdict applies a terminated Song Session's outcome to the
// external library: incrementing play/skip counters and maintaining the
// item and album last-played timestamps.
package verdict

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/thekakkun/mpd-tracker/internal/app/outcome"
	"github.com/thekakkun/mpd-tracker/internal/domain/library"
	"github.com/thekakkun/mpd-tracker/internal/pkg/clock"
)

// Sink writes a classified verdict for a song path to the library.
type Sink struct {
	client library.Client
	clock  clock.Clock
}

// New creates a Verdict Sink over the given library client.
func New(client library.Client, clk clock.Clock) *Sink {
	return &Sink{client: client, clock: clk}
}

// Apply writes the effect of v for the song at path. A library miss (the
// path isn't known to the library) is logged and treated as a no-op, not
// an error — the tracker keeps running regardless of library coverage.
func (s *Sink) Apply(ctx context.Context, path string, v outcome.Verdict) error {
	if v == outcome.Neither {
		return nil
	}

	item, ok, err := s.client.ItemByPath(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "verdict: resolving item for %q", path)
	}
	if !ok {
		zlog.Debug().Msgf("verdict: library miss, skipping: path=%s verdict=%s", path, v)
		return nil
	}

	switch v {
	case outcome.Played:
		return s.applyPlayed(ctx, item)
	case outcome.Skipped:
		return s.applySkipped(ctx, item)
	default:
		return nil
	}
}

func (s *Sink) applyPlayed(ctx context.Context, item library.Item) error {
	playCount, _ := item.Get(library.AttrPlayCount, 0).(int)
	playCount++
	now := s.clock.Now()

	item.Set(library.AttrPlayCount, playCount)
	item.Set(library.AttrLastPlayed, now)
	if err := item.Store(ctx); err != nil {
		return errors.Wrapf(err, "verdict: storing item %q", item.Path())
	}
	zlog.Info().Msgf("played: path=%s play_count=%d last_played=%s", item.Path(), playCount, now.Format(time.RFC3339))

	return s.rollupAlbumLastPlayed(ctx, item)
}

// rollupAlbumLastPlayed sets the containing album's last-played attribute
// to the oldest of its member items' last-played timestamps, but only once
// every member item has one: an album counts as "played" only after every
// track in it has been heard at least once.
func (s *Sink) rollupAlbumLastPlayed(ctx context.Context, item library.Item) error {
	album, err := s.client.AlbumOf(ctx, item)
	if err != nil {
		return errors.Wrapf(err, "verdict: resolving album for %q", item.Path())
	}
	if album == nil {
		return nil
	}

	members, err := album.Items(ctx)
	if err != nil {
		return errors.Wrapf(err, "verdict: listing album items for %q", album.ID())
	}

	var oldest time.Time
	for _, member := range members {
		lp, ok := member.Get(library.AttrLastPlayed, nil).(time.Time)
		if !ok || lp.IsZero() {
			return nil
		}
		if oldest.IsZero() || lp.Before(oldest) {
			oldest = lp
		}
	}

	album.Set(library.AttrLastPlayed, oldest)
	if err := album.Store(ctx); err != nil {
		return errors.Wrapf(err, "verdict: storing album %q", album.ID())
	}
	zlog.Info().Msgf("album last played: album=%s last_played=%s", album.ID(), oldest.Format(time.RFC3339))
	return nil
}

func (s *Sink) applySkipped(ctx context.Context, item library.Item) error {
	skipCount, _ := item.Get(library.AttrSkipCount, 0).(int)
	skipCount++

	item.Set(library.AttrSkipCount, skipCount)
	if err := item.Store(ctx); err != nil {
		return errors.Wrapf(err, "verdict: storing item %q", item.Path())
	}
	zlog.Info().Msgf("skipped: path=%s skip_count=%d", item.Path(), skipCount)
	return nil
}
