// Package queue provides the playback queue entity and its construction.
package queue

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

var (
	// ErrEmptySource is returned when a queue is built from an empty listing.
	ErrEmptySource = errors.New("empty source listing")
	// ErrInvalidSelection is returned when the clicked index is outside the listing.
	ErrInvalidSelection = errors.New("invalid selection")
)

// Entry is a track in the queue together with its position in the listing it
// was copied from.
type Entry struct {
	Track         catalog.Track
	OriginalIndex int
}

// State is a complete playback queue. It is replaced wholesale, never edited
// in place.
type State struct {
	Entries      []Entry
	CurrentIndex int    // -1 when Entries is empty
	Origin       Source // nil when no queue has been built
	Generation   uint64 // Set by the holder on commit
}

// Empty returns the initial state: no entries, no current track, no origin.
func Empty() State {
	return State{CurrentIndex: -1}
}

// Validate checks the current index against the entries.
func (s State) Validate() error {
	if len(s.Entries) == 0 {
		if s.CurrentIndex != -1 {
			return errors.Wrapf(ErrInvalidSelection, "current index %d set on empty queue", s.CurrentIndex)
		}
		return nil
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Entries) {
		return errors.Wrapf(ErrInvalidSelection, "current index %d out of range [0,%d)", s.CurrentIndex, len(s.Entries))
	}
	return nil
}

// Len returns the number of entries.
func (s State) Len() int {
	return len(s.Entries)
}

// IsEmpty returns true if the queue has no entries.
func (s State) IsEmpty() bool {
	return len(s.Entries) == 0
}

// Current returns the current entry, or nil if there is no active track.
func (s State) Current() *Entry {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Entries) {
		return nil
	}
	e := s.Entries[s.CurrentIndex]
	return &e
}

// Upcoming returns the entries after the current one.
func (s State) Upcoming() []Entry {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Entries)-1 {
		return nil
	}
	return s.Entries[s.CurrentIndex+1:]
}

// Position returns a "#4 of 12" style label for the current entry, based on
// its position in the original listing.
func (s State) Position() string {
	cur := s.Current()
	if cur == nil {
		return ""
	}
	return fmt.Sprintf("#%d of %d", cur.OriginalIndex+1, len(s.Entries))
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	c := s
	if s.Entries != nil {
		c.Entries = make([]Entry, len(s.Entries))
		for i, e := range s.Entries {
			c.Entries[i] = Entry{Track: e.Track.Clone(), OriginalIndex: e.OriginalIndex}
		}
	}
	return c
}

// Recreate builds a new queue from the listing the user is viewing.
// The listing is copied in order; the clicked track becomes current.
// Later changes to listing do not affect the returned state.
func Recreate(listing []catalog.Track, clickedIndex int, origin Source) (State, error) {
	if len(listing) == 0 {
		return State{}, ErrEmptySource
	}
	if clickedIndex < 0 || clickedIndex >= len(listing) {
		return State{}, errors.Wrapf(ErrInvalidSelection, "index %d out of range [0,%d)", clickedIndex, len(listing))
	}

	entries := make([]Entry, len(listing))
	for i, t := range listing {
		entries[i] = Entry{Track: t.Clone(), OriginalIndex: i}
	}

	return State{
		Entries:      entries,
		CurrentIndex: clickedIndex,
		Origin:       origin,
	}, nil
}

// Tracks returns the tracks of the queue in order.
func (s State) Tracks() []catalog.Track {
	tracks := make([]catalog.Track, len(s.Entries))
	for i, e := range s.Entries {
		tracks[i] = e.Track
	}
	return tracks
}
