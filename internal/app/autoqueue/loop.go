// Package autoqueue implements the Auto-Queue Loop: keeps MPD's playlist
// topped up to a target depth by drawing random items (or albums) from the
// external library, running independently of the Tracker Loop on whatever
// MPD client it is given (the dj entry point dials its own connection).
package autoqueue

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/thekakkun/mpd-tracker/internal/domain/library"
	"github.com/thekakkun/mpd-tracker/internal/mpdport"
)

// ErrConnectionFailed wraps a fatal MPD connection failure.
var ErrConnectionFailed = errors.New("autoqueue: mpd connection failed")

// Config holds auto-queue behavior.
type Config struct {
	TargetDepth int
	Album       bool
}

// Loop keeps MPD's upcoming queue topped up from the external library.
type Loop struct {
	client  mpdport.Client
	library library.Client
	cfg     Config
}

// New creates an Auto-Queue Loop.
func New(client mpdport.Client, lib library.Client, cfg Config) *Loop {
	return &Loop{client: client, library: lib, cfg: cfg}
}

// Run drives the loop until ctx is cancelled, returning nil on clean
// cancellation and a wrapped ErrConnectionFailed on unrecoverable MPD
// failure.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := l.client.SetRandom(ctx, false); err != nil {
			return errors.Mark(errors.Wrap(err, "autoqueue: disabling random"), ErrConnectionFailed)
		}

		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if _, err := l.client.Idle(ctx, "playlist", "player"); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Mark(errors.Wrap(err, "autoqueue: idle"), ErrConnectionFailed)
		}
	}
}

// tick runs one fill cycle: compute the unique identities already upcoming
// in the queue, then pull enough random library items to reach the target
// depth.
func (l *Loop) tick(ctx context.Context) error {
	status, err := l.client.Status(ctx)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "autoqueue: status"), ErrConnectionFailed)
	}
	if status.PlaylistLength == 0 {
		zlog.Debug().Msg("autoqueue: playlist empty, skipping fill")
		return nil
	}

	playlist, err := l.client.Playlist(ctx)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "autoqueue: playlist"), ErrConnectionFailed)
	}

	upcoming := upcomingPaths(playlist, status.Song)
	uniqueIDs := l.uniqueIdentities(ctx, upcoming)

	need := l.cfg.TargetDepth - len(uniqueIDs)
	if need <= 0 {
		return nil
	}

	paths, err := l.library.RandomPaths(ctx, need, "", l.cfg.Album)
	if err != nil {
		return errors.Wrapf(err, "autoqueue: sampling %d random paths", need)
	}

	for _, p := range paths {
		if err := l.client.Add(ctx, p); err != nil {
			zlog.Warn().Msgf("autoqueue: add failed: path=%s error=%v", p, err)
			continue
		}
	}
	return nil
}

// uniqueIdentities maps upcoming playlist paths to item or album identities
// (depending on album mode), counting each identity once. A library miss
// for a path is logged and contributes no identity.
func (l *Loop) uniqueIdentities(ctx context.Context, upcoming []string) map[string]struct{} {
	ids := make(map[string]struct{}, len(upcoming))
	for _, path := range upcoming {
		item, ok, err := l.library.ItemByPath(ctx, path)
		if err != nil {
			zlog.Warn().Msgf("autoqueue: library lookup failed: path=%s error=%v", path, err)
			continue
		}
		if !ok {
			zlog.Debug().Msgf("autoqueue: library miss: path=%s", path)
			continue
		}

		if !l.cfg.Album {
			ids[item.Path()] = struct{}{}
			continue
		}

		album, err := l.library.AlbumOf(ctx, item)
		if err != nil {
			zlog.Warn().Msgf("autoqueue: album lookup failed: path=%s error=%v", path, err)
			continue
		}
		if album == nil {
			continue
		}
		ids[album.ID()] = struct{}{}
	}
	return ids
}

// upcomingPaths returns playlist entries from the current song index to the
// end, stripping MPD's "file: " prefix where present.
func upcomingPaths(playlist []string, fromIndex int) []string {
	if fromIndex < 0 || fromIndex >= len(playlist) {
		return nil
	}
	out := make([]string, 0, len(playlist)-fromIndex)
	for _, entry := range playlist[fromIndex:] {
		out = append(out, strings.TrimPrefix(entry, "file: "))
	}
	return out
}
