// Package mpd adapts github.com/fhs/gompd/v2 to the mpdport.Client
// capability set: a command connection for status/currentsong/playlist/
// add/random, plus a dedicated watcher connection for idle notifications
// (MPD's idle command occupies the connection it runs on, so sharing one
// connection between commands and idling requires the two to be
// serialised by the caller; this adapter keeps them on separate
// connections instead, per the design's "separate connections" fallback).
package mpd

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fhs/gompd/v2/mpd"

	"github.com/thekakkun/mpd-tracker/internal/domain/playstate"
	"github.com/thekakkun/mpd-tracker/internal/mpdport"
)

// Config holds MPD connection parameters.
type Config struct {
	Host     string
	Port     int
	Password string
}

// Client is an mpdport.Client backed by a live MPD connection. The idle
// watcher is created lazily on first use, scoped to the subsystem set the
// caller subscribes to — one Client is expected to always Idle on the same
// subsystem set (the Tracker Loop uses "player"; the Auto-Queue Loop uses
// "playlist","player"), matching gompd's watcher-per-subsystem-set model.
type Client struct {
	conn *mpd.Client
	addr string
	cfg  Config

	watcher     *mpd.Watcher
	watcherSubs string
}

// Dial connects to MPD's command connection. The idle watcher connects
// lazily on first Idle call.
func Dial(cfg Config) (*Client, error) {
	addr := cfg.Host + ":" + strconv.Itoa(cfg.Port)

	conn, err := mpd.DialAuthenticated("tcp", addr, cfg.Password)
	if err != nil {
		return nil, errors.Wrap(err, "mpd: connect")
	}

	return &Client{conn: conn, addr: addr, cfg: cfg}, nil
}

// Close disconnects both the command connection and the watcher.
func (c *Client) Close() error {
	var watchErr error
	if c.watcher != nil {
		watchErr = c.watcher.Close()
	}
	connErr := c.conn.Close()
	if connErr != nil {
		return errors.Wrap(connErr, "mpd: close command connection")
	}
	if watchErr != nil {
		return errors.Wrap(watchErr, "mpd: close watcher")
	}
	return nil
}

// Status fetches MPD's current status.
func (c *Client) Status(ctx context.Context) (mpdport.Status, error) {
	attrs, err := c.conn.Status()
	if err != nil {
		return mpdport.Status{}, errors.Wrap(err, "mpd: status")
	}
	return toStatus(attrs), nil
}

// CurrentSong fetches the currently-loaded song.
func (c *Client) CurrentSong(ctx context.Context) (mpdport.CurrentSong, error) {
	attrs, err := c.conn.CurrentSong()
	if err != nil {
		return mpdport.CurrentSong{}, errors.Wrap(err, "mpd: currentsong")
	}
	return toCurrentSong(attrs), nil
}

// Playlist returns the ordered queue as music-directory-relative paths.
func (c *Client) Playlist(ctx context.Context) ([]string, error) {
	attrs, err := c.conn.PlaylistInfo(-1, -1)
	if err != nil {
		return nil, errors.Wrap(err, "mpd: playlistinfo")
	}
	paths := make([]string, 0, len(attrs))
	for _, a := range attrs {
		paths = append(paths, a["file"])
	}
	return paths, nil
}

// Idle blocks until one of the given subsystems changes. It returns early
// with ctx.Err() if ctx is cancelled first.
//
// gompd's Watcher subscribes to a fixed subsystem set for its whole
// lifetime, so the watcher is created lazily on first use and reused as long
// as the caller keeps requesting the same subsystem set (true of both the
// Tracker Loop and the Auto-Queue Loop, which each Idle on one fixed set for
// their entire run).
func (c *Client) Idle(ctx context.Context, subsystems ...string) ([]string, error) {
	key := strings.Join(subsystems, ",")
	if c.watcher == nil || c.watcherSubs != key {
		if c.watcher != nil {
			_ = c.watcher.Close()
		}
		w, err := mpd.NewWatcher("tcp", c.addr, c.cfg.Password, subsystems...)
		if err != nil {
			return nil, errors.Wrap(err, "mpd: connect watcher")
		}
		c.watcher = w
		c.watcherSubs = key
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case subsystem := <-c.watcher.Event:
		return []string{subsystem}, nil
	case err := <-c.watcher.Error:
		return nil, errors.Wrap(err, "mpd: watcher error")
	}
}

// SetRandom enables or disables MPD's random mode.
func (c *Client) SetRandom(ctx context.Context, on bool) error {
	if err := c.conn.Random(on); err != nil {
		return errors.Wrap(err, "mpd: random")
	}
	return nil
}

// Add appends a music-directory-relative URI to the queue.
func (c *Client) Add(ctx context.Context, uri string) error {
	if err := c.conn.Add(uri); err != nil {
		return errors.Wrapf(err, "mpd: add %q", uri)
	}
	return nil
}

func toStatus(attrs mpd.Attrs) mpdport.Status {
	var s mpdport.Status
	s.State, _ = playstate.Parse(attrs["state"])

	if elapsedStr, ok := attrs["elapsed"]; ok {
		if secs, err := strconv.ParseFloat(elapsedStr, 64); err == nil {
			d := time.Duration(secs * float64(time.Second))
			s.Elapsed = &d
		}
	}

	s.Song, _ = strconv.Atoi(attrs["song"])
	s.SongID = attrs["songid"]
	s.PlaylistLength, _ = strconv.Atoi(attrs["playlistlength"])

	return s
}

func toCurrentSong(attrs mpd.Attrs) mpdport.CurrentSong {
	file, present := attrs["file"]
	if !present {
		return mpdport.CurrentSong{Present: false}
	}

	cs := mpdport.CurrentSong{
		Present: true,
		File:    file,
		SongID:  attrs["id"],
		Tags:    make(map[string]string, len(attrs)),
	}
	for k, v := range attrs {
		switch k {
		case "file", "id", "duration", "time", "pos":
			continue
		default:
			cs.Tags[k] = v
		}
	}

	if durStr, ok := attrs["duration"]; ok {
		if secs, err := strconv.ParseFloat(durStr, 64); err == nil {
			d := time.Duration(secs * float64(time.Second))
			cs.Duration = &d
		}
	}

	return cs
}
