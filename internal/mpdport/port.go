// Package mpdport defines the MPD client capability set the Tracker Loop
// and Auto-Queue Loop depend on (§6). It models MPD's string-keyed,
// inconsistently-present status/song maps as two tagged record types with
// required and optional fields kept separate, rejecting or clamping
// unexpected values at this boundary instead of letting optionality leak
// into the state machine.
//
// The wire protocol itself is out of scope here — internal/infra/mpd
// supplies the concrete adapter, backed by github.com/fhs/gompd/v2.
package mpdport

import (
	"context"
	"time"

	"github.com/thekakkun/mpd-tracker/internal/domain/playstate"
)

// Status is MPD's "status" reply, narrowed to the fields the tracker and
// auto-queue need.
type Status struct {
	State playstate.State

	// Elapsed is nil when MPD's reply lacks an "elapsed" field (NoElapsed,
	// §7) — typically because no song is loaded.
	Elapsed *time.Duration

	Song           int // 0-based queue position of the current song
	SongID         string
	PlaylistLength int
}

// CurrentSong is MPD's "currentsong" reply, narrowed to the fields needed
// to build a song.Descriptor. Present is false when MPD reports no current
// song at all (empty reply, no "file" key).
type CurrentSong struct {
	Present bool
	File    string
	SongID  string
	Tags    map[string]string

	// Duration is nil when the song has no known duration (NoDuration,
	// §7).
	Duration *time.Duration
}

// Client is the MPD capability set required by the Tracker Loop and
// Auto-Queue Loop (§6).
type Client interface {
	Status(ctx context.Context) (Status, error)
	CurrentSong(ctx context.Context) (CurrentSong, error)

	// Playlist returns the ordered queue entries as music-directory-relative
	// paths.
	Playlist(ctx context.Context) ([]string, error)

	// Idle blocks until one of the given subsystems changes, then returns
	// the set of subsystems that did. It returns early with ctx.Err() if ctx
	// is cancelled while waiting.
	Idle(ctx context.Context, subsystems ...string) ([]string, error)

	SetRandom(ctx context.Context, on bool) error
	Add(ctx context.Context, uri string) error

	Close() error
}
