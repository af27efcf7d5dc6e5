package mpd

import (
	"testing"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thekakkun/mpd-tracker/internal/domain/playstate"
)

func TestToStatus_PlayingWithElapsed(t *testing.T) {
	got := toStatus(mpd.Attrs{
		"state":          "play",
		"elapsed":        "12.345",
		"song":           "3",
		"songid":         "42",
		"playlistlength": "10",
	})
	assert.Equal(t, playstate.Play, got.State)
	assert.NotNil(t, got.Elapsed)
	assert.InDelta(t, 12.345, got.Elapsed.Seconds(), 0.001)
	assert.Equal(t, 3, got.Song)
	assert.Equal(t, "42", got.SongID)
	assert.Equal(t, 10, got.PlaylistLength)
}

func TestToStatus_MissingElapsed(t *testing.T) {
	got := toStatus(mpd.Attrs{"state": "stop"})
	assert.Equal(t, playstate.Stop, got.State)
	assert.Nil(t, got.Elapsed)
}

func TestToCurrentSong_Absent(t *testing.T) {
	got := toCurrentSong(mpd.Attrs{})
	assert.False(t, got.Present)
}

func TestToCurrentSong_Present(t *testing.T) {
	attrs := mpd.Attrs{
		"file":     "music/track.flac",
		"id":       "7",
		"duration": "245.6",
		"time":     "245",
		"pos":      "3",
		"Artist":   "Test Artist",
		"Album":    "Test Album",
	}
	got := toCurrentSong(attrs)

	assert.True(t, got.Present)
	assert.Equal(t, "music/track.flac", got.File)
	assert.Equal(t, "7", got.SongID)
	require.NotNil(t, got.Duration)
	assert.InDelta(t, 245.6, got.Duration.Seconds(), 0.001)

	assert.Equal(t, "Test Artist", got.Tags["Artist"])
	assert.Equal(t, "Test Album", got.Tags["Album"])
	_, hasFile := got.Tags["file"]
	assert.False(t, hasFile)
	_, hasDuration := got.Tags["duration"]
	assert.False(t, hasDuration)
	_, hasPos := got.Tags["pos"]
	assert.False(t, hasPos)
}

func TestToCurrentSong_NoDuration(t *testing.T) {
	got := toCurrentSong(mpd.Attrs{"file": "music/untagged.mp3"})
	assert.True(t, got.Present)
	assert.Nil(t, got.Duration)
}
