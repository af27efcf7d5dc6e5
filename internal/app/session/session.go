// Package session implements the Song Session state machine: one
// observation period for one song, from the moment the Tracker Loop
// identifies a song (or attaches mid-song) to the moment a classified event
// terminates it.
package session

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/thekakkun/mpd-tracker/internal/app/classifier"
	"github.com/thekakkun/mpd-tracker/internal/app/outcome"
	"github.com/thekakkun/mpd-tracker/internal/domain/coverage"
	"github.com/thekakkun/mpd-tracker/internal/domain/playstate"
	"github.com/thekakkun/mpd-tracker/internal/domain/song"
	"github.com/thekakkun/mpd-tracker/internal/pkg/clock"
)

// State is one of the Song Session's four lifecycle states.
type State int

const (
	Queued State = iota
	Playing
	Paused
	Terminated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrAlreadyTerminated is returned when an event is applied to a session
// that has already terminated.
var ErrAlreadyTerminated = errors.New("session: already terminated")

// Session owns one song's Coverage Log plus the play-from triple needed to
// reconstruct elapsed-time math between idle notifications.
type Session struct {
	ID    string
	Song  song.Descriptor
	State State

	coverage   *coverage.Log
	thresholds outcome.Thresholds

	playFromPos  float64
	playFromWall time.Time
	expectedEnd  time.Time
	hasExpected  bool

	// voided is set by a Stop transition: the session terminated, but its
	// coverage was deliberately cleared and must never be scored.
	voided bool

	clock clock.Clock
}

// New creates a Song Session in the Queued state for a song that has not
// started playing yet.
func New(s song.Descriptor, th outcome.Thresholds, clk clock.Clock) *Session {
	var dur float64
	if s.HasDuration {
		dur = s.Duration.Seconds()
	}
	return &Session{
		ID:         uuid.NewString(),
		Song:       s,
		State:      Queued,
		coverage:   coverage.NewLog(dur),
		thresholds: th,
		clock:      clk,
	}
}

// Attach creates a Session for a song the tracker discovers already
// underway (process start, or reconnect mid-song), given the real MPD
// player state at attach time. Per the attach-mid-song rule, whatever
// played before attaching is assumed to have happened: if elapsed > 0 the
// Coverage Log is seeded with (0, elapsed) — a deliberate optimistic bias
// that applies only to this case.
//
// The session only enters Playing when state is Play. Anything else
// (Pause, or the unreachable-in-practice Stop) lands it in Paused with
// play_from_pos frozen at elapsed: play_from_wall/expected_end stay
// unarmed until a genuine EventPlay resume is later applied.
func Attach(s song.Descriptor, th outcome.Thresholds, elapsed float64, state playstate.State, clk clock.Clock) *Session {
	sess := New(s, th, clk)
	if elapsed > 0 {
		_ = sess.coverage.Add(0, elapsed)
	}

	if state == playstate.Play {
		sess.startPlayingFrom(elapsed)
	} else {
		sess.playFromPos = elapsed
		sess.State = Paused
	}

	return sess
}

func (s *Session) startPlayingFrom(elapsed float64) {
	now := s.clock.Now()
	s.playFromPos = elapsed
	s.playFromWall = now
	s.State = Playing

	if s.Song.HasDuration {
		s.expectedEnd = now.Add(s.Song.Duration - durationFromSeconds(elapsed))
		s.hasExpected = true
	} else {
		s.hasExpected = false
	}
}

func durationFromSeconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// ExpectedEnd returns the wall-clock time the song would naturally end at,
// and whether that value is meaningful (it isn't when duration is
// unknown).
func (s *Session) ExpectedEnd() (time.Time, bool) {
	return s.expectedEnd, s.hasExpected
}

// IsTerminated reports whether the session has ended.
func (s *Session) IsTerminated() bool {
	return s.State == Terminated
}

// TotalCovered returns the current coverage measure. Only meaningful once
// the session has terminated without being voided.
func (s *Session) TotalCovered() float64 {
	return s.coverage.TotalCovered()
}

// Voided reports whether a Stop event cleared this session's coverage,
// meaning it must always score as "neither".
func (s *Session) Voided() bool {
	return s.voided
}

// Thresholds returns the Outcome Classifier thresholds this session was
// constructed with.
func (s *Session) Thresholds() outcome.Thresholds {
	return s.thresholds
}

// ExpectedElapsed returns play_from_pos, used as the NoElapsed fallback
// when a status reply lacks its own elapsed field: per the no-forward-
// progress policy, a missing reading freezes the position rather than
// extrapolating it from the wall clock.
func (s *Session) ExpectedElapsed() float64 {
	return s.playFromPos
}

// Apply drives one classified event against the current state, per §4.3.
// newElapsed is the elapsed-seconds value from the status snapshot that
// produced the event (ignored by events that don't need it).
func (s *Session) Apply(evt classifier.Event, newElapsed float64) error {
	if s.State == Terminated {
		return ErrAlreadyTerminated
	}

	now := s.clock.Now()

	switch {
	case s.State == Queued && evt == classifier.EventPlay:
		s.startPlayingFrom(newElapsed)

	case s.State == Playing && evt == classifier.EventPause:
		s.appendRun(newElapsed)
		s.State = Paused

	case s.State == Paused && evt == classifier.EventPlay:
		s.startPlayingFrom(newElapsed)

	case s.State == Playing && evt == classifier.EventSeek:
		s.appendElapsedRun(now)
		s.startPlayingFrom(newElapsed)

	case s.State == Playing && evt == classifier.EventReplay:
		s.appendToDuration()
		s.terminate(false)

	case s.State == Playing && evt == classifier.EventNewSong:
		s.appendElapsedRun(now)
		s.terminate(false)

	case s.State == Paused && evt == classifier.EventNewSong:
		s.terminate(false)

	case s.State == Playing && evt == classifier.EventStop:
		s.appendElapsedRun(now)
		s.terminate(true)

	case s.State == Paused && evt == classifier.EventStop:
		s.terminate(true)

	case s.State == Playing && evt == classifier.EventPlaylistEnd:
		s.appendToDuration()
		s.terminate(false)

	case s.State == Paused && evt == classifier.EventPlaylistEnd:
		s.terminate(false)

	default:
		zlog.Warn().Msgf("session: unhandled transition: state=%s event=%s song=%s", s.State, evt, s.Song.DisplayName())
	}

	return nil
}

// appendRun appends (play_from_pos, newElapsed) — the run as reported
// directly by MPD, used when the event itself carries a trustworthy
// position (Pause).
func (s *Session) appendRun(newElapsed float64) {
	if err := s.coverage.Add(s.playFromPos, newElapsed); err != nil {
		zlog.Debug().Msgf("session: dropped interval: %v", err)
	}
}

// appendElapsedRun appends (play_from_pos, play_from_pos + (now -
// play_from_wall)) — used when we must reconstruct the position from wall
// clock elapsed time because the triggering event (Seek, NewSong, Stop)
// arrives too late to read MPD's own elapsed value for the PREVIOUS run.
func (s *Session) appendElapsedRun(now time.Time) {
	end := s.playFromPos + now.Sub(s.playFromWall).Seconds()
	if err := s.coverage.Add(s.playFromPos, end); err != nil {
		zlog.Debug().Msgf("session: dropped interval: %v", err)
	}
}

// appendToDuration credits the run to the end of the song — used by Replay
// and PlaylistEnd, both of which mean the song was allowed to play out.
func (s *Session) appendToDuration() {
	if !s.Song.HasDuration {
		return
	}
	if err := s.coverage.Add(s.playFromPos, s.Song.Duration.Seconds()); err != nil {
		zlog.Debug().Msgf("session: dropped interval: %v", err)
	}
}

func (s *Session) terminate(void bool) {
	s.State = Terminated
	if void {
		s.coverage.Clear()
		s.voided = true
	}
}
