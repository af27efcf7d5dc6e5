// Package tracker implements the Tracker Loop: the single consumer that
// turns MPD idle notifications into classified events, drives one Song
// Session at a time, and hands terminated sessions' outcomes to the
// Verdict Sink.
package tracker

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/thekakkun/mpd-tracker/internal/app/classifier"
	"github.com/thekakkun/mpd-tracker/internal/app/outcome"
	"github.com/thekakkun/mpd-tracker/internal/app/session"
	"github.com/thekakkun/mpd-tracker/internal/app/verdict"
	"github.com/thekakkun/mpd-tracker/internal/domain/playstate"
	"github.com/thekakkun/mpd-tracker/internal/domain/song"
	"github.com/thekakkun/mpd-tracker/internal/mpdport"
	"github.com/thekakkun/mpd-tracker/internal/pkg/clock"
)

// ErrConnectionFailed wraps a fatal MPD connection failure.
var ErrConnectionFailed = errors.New("tracker: mpd connection failed")

// Loop owns the per-song Session lifecycle over one MPD connection.
type Loop struct {
	client mpdport.Client
	sink   *verdict.Sink
	cfg    outcome.Config
	tol    time.Duration
	clock  clock.Clock

	// noElapsedLogged guards the "log once per occurrence" policy for
	// NoElapsed so a run of consecutive status replies missing elapsed
	// doesn't spam the log.
	noElapsedLogged bool
}

// New creates a Tracker Loop.
func New(client mpdport.Client, sink *verdict.Sink, cfg outcome.Config, tolerance time.Duration, clk clock.Clock) *Loop {
	return &Loop{client: client, sink: sink, cfg: cfg, tol: tolerance, clock: clk}
}

// Run drives the loop until ctx is cancelled. It returns nil on clean
// cancellation and a wrapped ErrConnectionFailed on unrecoverable MPD
// failure.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := l.waitForPlayback(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := l.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// waitForPlayback blocks until MPD reports a state other than Stop.
func (l *Loop) waitForPlayback(ctx context.Context) error {
	for {
		status, err := l.client.Status(ctx)
		if err != nil {
			return errors.Mark(errors.Wrap(err, "tracker: status during wait"), ErrConnectionFailed)
		}
		if status.State != playstate.Stop {
			return nil
		}
		if _, err := l.client.Idle(ctx, "player"); err != nil {
			return errors.Mark(errors.Wrap(err, "tracker: idle during wait"), ErrConnectionFailed)
		}
	}
}

// runSession constructs a Session for the currently-playing song (attaching
// mid-song if needed) and drives it until termination, applying the
// resulting verdict.
func (l *Loop) runSession(ctx context.Context) error {
	status, err := l.client.Status(ctx)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "tracker: status at session start"), ErrConnectionFailed)
	}
	cur, err := l.client.CurrentSong(ctx)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "tracker: currentsong at session start"), ErrConnectionFailed)
	}
	if !cur.Present {
		return nil
	}

	desc := toDescriptor(cur)
	th := outcome.ComputeThresholds(l.cfg, desc.Duration, desc.HasDuration)
	elapsed := l.elapsedSeconds(status, 0)

	sess := session.Attach(desc, th, elapsed, status.State, l.clock)
	prevState := status.State
	prevSong := desc

	for {
		status, cur, err := l.fetchCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zlog.Warn().Msgf("tracker: transient mpd error, soft-terminating session: path=%s error=%v", prevSong.File, err)
			l.applyVerdict(ctx, prevSong.File, outcome.Neither)
			return nil
		}

		newElapsed := l.elapsedSeconds(status, sess.ExpectedElapsed())
		songChanged := !cur.Present || !toDescriptor(cur).Equal(prevSong)

		snap := classifier.Snapshot{
			PrevState:   prevState,
			NewState:    status.State,
			SongChanged: songChanged,
		}
		if end, ok := sess.ExpectedEnd(); ok {
			snap.Now = l.clock.Now()
			snap.ExpectedEnd = end
			snap.HasExpectedEnd = true
		}

		evt := classifier.Classify(snap, l.tol)
		if err := sess.Apply(evt, newElapsed); err != nil {
			return errors.Wrap(err, "tracker: applying event to session")
		}

		if sess.IsTerminated() {
			v := outcome.Neither
			if !sess.Voided() {
				v = outcome.Classify(sess.TotalCovered(), sess.Thresholds())
			}
			l.applyVerdict(ctx, prevSong.File, v)
			return nil
		}

		prevState = status.State
		if cur.Present {
			prevSong = toDescriptor(cur)
		}
	}
}

// fetchCycle performs one idle-notification-then-snapshot round trip,
// retrying once on failure (TransientMPDError, §7) before giving up.
func (l *Loop) fetchCycle(ctx context.Context) (mpdport.Status, mpdport.CurrentSong, error) {
	status, cur, err := l.fetchOnce(ctx)
	if err == nil {
		return status, cur, nil
	}
	if ctx.Err() != nil {
		return mpdport.Status{}, mpdport.CurrentSong{}, ctx.Err()
	}

	zlog.Debug().Msgf("tracker: transient mpd error, retrying: %v", err)
	return l.fetchOnce(ctx)
}

func (l *Loop) fetchOnce(ctx context.Context) (mpdport.Status, mpdport.CurrentSong, error) {
	if _, err := l.client.Idle(ctx, "player"); err != nil {
		return mpdport.Status{}, mpdport.CurrentSong{}, errors.Wrap(err, "tracker: idle")
	}
	status, err := l.client.Status(ctx)
	if err != nil {
		return mpdport.Status{}, mpdport.CurrentSong{}, errors.Wrap(err, "tracker: status")
	}
	cur, err := l.client.CurrentSong(ctx)
	if err != nil {
		return mpdport.Status{}, mpdport.CurrentSong{}, errors.Wrap(err, "tracker: currentsong")
	}
	return status, cur, nil
}

// applyVerdict hands a verdict to the sink. Errors are logged but never
// propagate: the tracker must keep observing subsequent songs regardless of
// library availability.
func (l *Loop) applyVerdict(ctx context.Context, path string, v outcome.Verdict) {
	if err := l.sink.Apply(ctx, path, v); err != nil {
		zlog.Warn().Msgf("tracker: verdict application failed: path=%s verdict=%s error=%v", path, v, err)
	}
}

// elapsedSeconds implements the NoElapsed policy: when status lacks an
// elapsed reading, treat it as no forward progress from fallback (the
// session's own play_from_pos) and log once.
func (l *Loop) elapsedSeconds(status mpdport.Status, fallback float64) float64 {
	if status.Elapsed == nil {
		if !l.noElapsedLogged {
			zlog.Warn().Msg("tracker: status missing elapsed, assuming no forward progress")
			l.noElapsedLogged = true
		}
		return fallback
	}
	l.noElapsedLogged = false
	return status.Elapsed.Seconds()
}

func toDescriptor(cur mpdport.CurrentSong) song.Descriptor {
	d := song.Descriptor{
		File:    cur.File,
		QueueID: cur.SongID,
		Tags:    cur.Tags,
	}
	if cur.Duration != nil {
		d.Duration = *cur.Duration
		d.HasDuration = true
	}
	return d
}
