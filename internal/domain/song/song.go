// Package song provides the Song descriptor domain entity.
package song

import (
	"sort"
	"time"
)

// Descriptor is an opaque identity token derived from an MPD "currentsong"
// reply. Equality of two descriptors means "same song instance in the
// queue" — comparing only queue position is unsafe because MPD can replace
// the queue mid-play, so Equal compares the full track record instead.
type Descriptor struct {
	File        string
	QueueID     string // MPD "Id" (songid), identifies this queue slot
	Duration    time.Duration
	HasDuration bool
	Tags        map[string]string
}

// Equal reports whether two descriptors refer to the same song instance.
func (d Descriptor) Equal(other Descriptor) bool {
	if d.File != other.File || d.QueueID != other.QueueID {
		return false
	}
	return tagsEqual(d.Tags, other.Tags)
}

func tagsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// SortedTagKeys returns the tag keys in sorted order, useful for
// deterministic logging.
func (d Descriptor) SortedTagKeys() []string {
	keys := make([]string, 0, len(d.Tags))
	for k := range d.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DisplayName returns a human-readable "artist - title" label, falling back
// to the file path when tags are absent. Used only for logging.
func (d Descriptor) DisplayName() string {
	artist := d.Tags["artist"]
	title := d.Tags["title"]
	switch {
	case artist != "" && title != "":
		return artist + " - " + title
	case title != "":
		return title
	default:
		return d.File
	}
}
