// Package classifier disambiguates MPD's edge-triggered "something
// changed" idle notifications into one of the seven playback events the Song
// Session understands. MPD's player idle notification never carries the
// transition type, only the resulting status — proximity of "now" to the
// song's expected natural end time is the only signal available to tell a
// user-triggered replay from the queue naturally advancing, and a manual
// stop from a playlist running out.
package classifier

import (
	"time"

	"github.com/thekakkun/mpd-tracker/internal/domain/playstate"
)

// Event is one of the seven playback events the Song Session drives on.
type Event int

const (
	Unknown Event = iota
	EventPlay
	EventPause
	EventSeek
	EventReplay
	EventNewSong
	EventStop
	EventPlaylistEnd
)

// String returns the string representation of the event.
func (e Event) String() string {
	switch e {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventSeek:
		return "seek"
	case EventReplay:
		return "replay"
	case EventNewSong:
		return "new_song"
	case EventStop:
		return "stop"
	case EventPlaylistEnd:
		return "playlist_end"
	default:
		return "unknown"
	}
}

// DefaultTolerance is the wall-clock slack used to decide "near expected
// end", chosen to absorb network round-trip time and MPD's 1-second
// elapsed-time granularity.
const DefaultTolerance = time.Second

// Snapshot is the tagged-record input to Classify: the minimal, validated
// state needed to disambiguate one idle notification. SongChanged must be
// computed by the caller via song.Descriptor.Equal, never from queue
// position alone.
type Snapshot struct {
	PrevState   playstate.State
	NewState    playstate.State
	SongChanged bool

	// Now is the wall-clock instant this snapshot was observed, read
	// through a single clock.Clock so that Replay/Seek and Stop/PlaylistEnd
	// comparisons never mix monotonic and wall-clock sources.
	Now time.Time

	// ExpectedEnd is the wall-clock time the current song would end at if
	// left alone. HasExpectedEnd is false when the song's duration is
	// unknown (NoDuration, §7) — in that case Replay/PlaylistEnd detection
	// is disabled and those transitions collapse to Seek/Stop.
	ExpectedEnd    time.Time
	HasExpectedEnd bool
}

// Classify emits exactly one Event for a (prev, new) state transition,
// given a tolerance for "near expected end" comparisons.
func Classify(s Snapshot, tolerance time.Duration) Event {
	nearEnd := s.HasExpectedEnd && withinTolerance(s.Now, s.ExpectedEnd, tolerance)

	switch {
	case s.NewState == playstate.Stop:
		if nearEnd {
			return EventPlaylistEnd
		}
		return EventStop

	case s.SongChanged && (s.NewState == playstate.Play || s.NewState == playstate.Pause):
		return EventNewSong

	case s.PrevState == playstate.Play && s.NewState == playstate.Pause:
		return EventPause

	case s.PrevState == playstate.Pause && s.NewState == playstate.Play:
		if s.SongChanged {
			return EventNewSong
		}
		return EventPlay

	case s.PrevState == playstate.Play && s.NewState == playstate.Play:
		if s.SongChanged {
			return EventNewSong
		}
		if nearEnd {
			return EventReplay
		}
		return EventSeek

	default:
		return Unknown
	}
}

func withinTolerance(now, expected time.Time, tolerance time.Duration) bool {
	diff := now.Sub(expected)
	if diff < 0 {
		diff = -diff
	}
	return diff < tolerance
}
