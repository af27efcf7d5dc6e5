package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thekakkun/mpd-tracker/internal/domain/playstate"
)

func TestClassify_Table(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		snap Snapshot
		want Event
	}{
		{
			name: "play to pause is Pause",
			snap: Snapshot{PrevState: playstate.Play, NewState: playstate.Pause},
			want: EventPause,
		},
		{
			name: "pause to play same song is Play",
			snap: Snapshot{PrevState: playstate.Pause, NewState: playstate.Play, SongChanged: false},
			want: EventPlay,
		},
		{
			name: "pause to play new song is NewSong",
			snap: Snapshot{PrevState: playstate.Pause, NewState: playstate.Play, SongChanged: true},
			want: EventNewSong,
		},
		{
			name: "play to play same song far from end is Seek",
			snap: Snapshot{
				PrevState: playstate.Play, NewState: playstate.Play, SongChanged: false,
				Now: base, ExpectedEnd: base.Add(30 * time.Second), HasExpectedEnd: true,
			},
			want: EventSeek,
		},
		{
			name: "play to play same song near end is Replay",
			snap: Snapshot{
				PrevState: playstate.Play, NewState: playstate.Play, SongChanged: false,
				Now: base, ExpectedEnd: base.Add(500 * time.Millisecond), HasExpectedEnd: true,
			},
			want: EventReplay,
		},
		{
			name: "play to play new song is NewSong regardless of timing",
			snap: Snapshot{
				PrevState: playstate.Play, NewState: playstate.Play, SongChanged: true,
				Now: base, ExpectedEnd: base, HasExpectedEnd: true,
			},
			want: EventNewSong,
		},
		{
			name: "any to stop far from end is Stop",
			snap: Snapshot{
				PrevState: playstate.Play, NewState: playstate.Stop,
				Now: base, ExpectedEnd: base.Add(10 * time.Second), HasExpectedEnd: true,
			},
			want: EventStop,
		},
		{
			name: "any to stop near end is PlaylistEnd",
			snap: Snapshot{
				PrevState: playstate.Play, NewState: playstate.Stop,
				Now: base, ExpectedEnd: base.Add(900 * time.Millisecond), HasExpectedEnd: true,
			},
			want: EventPlaylistEnd,
		},
		{
			name: "stop with no expected end is Stop",
			snap: Snapshot{PrevState: playstate.Pause, NewState: playstate.Stop, HasExpectedEnd: false},
			want: EventStop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.snap, DefaultTolerance)
			assert.Equal(t, tt.want, got)
		})
	}
}

// For all prev=Play,new=Play,song unchanged: Replay iff |now-expected_end| < 1s, else Seek.
func TestClassify_ReplayVsSeek_Property(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := []time.Duration{
		0, 100 * time.Millisecond, 999 * time.Millisecond,
		time.Second, 1100 * time.Millisecond, 5 * time.Second, -5 * time.Second,
	}

	for _, off := range offsets {
		snap := Snapshot{
			PrevState: playstate.Play, NewState: playstate.Play, SongChanged: false,
			Now: base, ExpectedEnd: base.Add(off), HasExpectedEnd: true,
		}
		got := Classify(snap, time.Second)

		absOff := off
		if absOff < 0 {
			absOff = -absOff
		}
		if absOff < time.Second {
			assert.Equalf(t, EventReplay, got, "offset=%v", off)
		} else {
			assert.Equalf(t, EventSeek, got, "offset=%v", off)
		}
	}
}

// For all transitions to Stop: PlaylistEnd iff |now-expected_end| < 1s, else Stop.
func TestClassify_StopVsPlaylistEnd_Property(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	offsets := []time.Duration{0, 500 * time.Millisecond, 999 * time.Millisecond, time.Second, 2 * time.Second}
	prevStates := []playstate.State{playstate.Play, playstate.Pause}

	for _, prev := range prevStates {
		for _, off := range offsets {
			snap := Snapshot{
				PrevState: prev, NewState: playstate.Stop,
				Now: base, ExpectedEnd: base.Add(off), HasExpectedEnd: true,
			}
			got := Classify(snap, time.Second)
			if off < time.Second {
				assert.Equalf(t, EventPlaylistEnd, got, "prev=%v offset=%v", prev, off)
			} else {
				assert.Equalf(t, EventStop, got, "prev=%v offset=%v", prev, off)
			}
		}
	}
}

// For all prev.song != new.song with new.state in {Play, Pause}: NewSong.
func TestClassify_NewSong_Property(t *testing.T) {
	for _, prev := range []playstate.State{playstate.Play, playstate.Pause} {
		for _, new := range []playstate.State{playstate.Play, playstate.Pause} {
			snap := Snapshot{PrevState: prev, NewState: new, SongChanged: true}
			assert.Equal(t, EventNewSong, Classify(snap, time.Second))
		}
	}
}
