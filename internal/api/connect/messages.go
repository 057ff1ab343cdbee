package connect

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/swingdeck/internal/app/playback"
	"github.com/osa030/swingdeck/internal/domain/catalog"
	"github.com/osa030/swingdeck/internal/domain/queue"
)

// LoadPageRequest asks for one page of a resource listing.
// Zero values fall back to the server's configured defaults.
type LoadPageRequest struct {
	Resource  string `json:"resource"`
	Key       *int   `json:"key,omitempty"` // nil means the first page
	PageSize  int    `json:"page_size,omitempty"`
	SortBy    string `json:"sort_by,omitempty"`
	SortOrder string `json:"sort_order,omitempty"`
}

// LoadPageResponse is one loaded page. Only the slice matching Resource is set.
type LoadPageResponse struct {
	Resource string           `json:"resource"`
	Key      int              `json:"key"`
	Artists  []catalog.Artist `json:"artists,omitempty"`
	Albums   []catalog.Album  `json:"albums,omitempty"`
	Tracks   []catalog.Track  `json:"tracks,omitempty"`
	PrevKey  *int             `json:"prev_key,omitempty"`
	NextKey  *int             `json:"next_key,omitempty"`
}

// Len returns the number of items on the page.
func (r *LoadPageResponse) Len() int {
	return len(r.Artists) + len(r.Albums) + len(r.Tracks)
}

// ArtistInfoRequest asks for an artist's page.
type ArtistInfoRequest struct {
	ArtistHash string `json:"artist_hash"`
}

// ArtistInfoResponse is an artist with their tracks and discography.
type ArtistInfoResponse struct {
	Artist      catalog.Artist      `json:"artist"`
	Tracks      []catalog.Track     `json:"tracks"`
	Discography catalog.Discography `json:"discography"`
}

// SourceMessage is the wire form of a queue origin.
type SourceMessage struct {
	Kind  string `json:"kind"`
	ID    string `json:"id,omitempty"`   // artist/album hash, playlist id or folder path
	Name  string `json:"name,omitempty"` // display name
	Query string `json:"query,omitempty"`
	Label string `json:"label,omitempty"` // set by the server
}

// EntryMessage is one queue entry.
type EntryMessage struct {
	Track         catalog.Track `json:"track"`
	OriginalIndex int           `json:"original_index"`
}

// QueueStateMessage is the wire form of a committed queue.
type QueueStateMessage struct {
	Generation   uint64         `json:"generation"`
	Entries      []EntryMessage `json:"entries"`
	CurrentIndex int            `json:"current_index"`
	Origin       *SourceMessage `json:"origin,omitempty"`
	Position     string         `json:"position,omitempty"`
}

// RecreateRequest rebuilds the queue from the listing the user is viewing.
type RecreateRequest struct {
	Tracks       []catalog.Track `json:"tracks"`
	ClickedIndex int             `json:"clicked_index"`
	Origin       *SourceMessage  `json:"origin,omitempty"`
}

// ControlRequest runs a player command: play, pause, resume, stop, next or previous.
type ControlRequest struct {
	Command string `json:"command"`
}

// PlayerStatusRequest asks for the player's status.
type PlayerStatusRequest struct{}

// PlayerStatusMessage is the wire form of playback.Status.
type PlayerStatusMessage struct {
	State       string         `json:"state"`
	Generation  uint64         `json:"generation"`
	Index       int            `json:"index"`
	Track       *catalog.Track `json:"track,omitempty"`
	ElapsedMs   int64          `json:"elapsed_ms"`
	RemainingMs int64          `json:"remaining_ms"`
	QueueLen    int            `json:"queue_len"`
	Played      int            `json:"played"`
}

// CurrentRequest asks for the committed queue.
type CurrentRequest struct{}

// WatchRequest subscribes to committed queues.
type WatchRequest struct{}

// QueueEvent is one message of the Watch stream.
type QueueEvent struct {
	SequenceNo uint64            `json:"sequence_no"`
	Initial    bool              `json:"initial,omitempty"`
	State      QueueStateMessage `json:"state"`
}

func toSourceMessage(s queue.Source) *SourceMessage {
	if s == nil {
		return nil
	}
	m := &SourceMessage{Kind: s.Kind().String(), Label: s.Label()}
	switch src := s.(type) {
	case queue.ArtistSource:
		m.ID, m.Name = src.ArtistHash, src.Name
	case queue.AlbumSource:
		m.ID, m.Name = src.AlbumHash, src.Name
	case queue.FolderSource:
		m.ID, m.Name = src.Path, src.Name
	case queue.PlaylistSource:
		m.ID, m.Name = src.PlaylistID, src.Name
	case queue.SearchSource:
		m.Query = src.Query
	}
	return m
}

func fromSourceMessage(m *SourceMessage) (queue.Source, error) {
	if m == nil {
		return nil, nil
	}
	switch m.Kind {
	case "", "none":
		return nil, nil
	case "artist":
		return queue.ArtistSource{ArtistHash: m.ID, Name: m.Name}, nil
	case "album":
		return queue.AlbumSource{AlbumHash: m.ID, Name: m.Name}, nil
	case "folder":
		return queue.FolderSource{Path: m.ID, Name: m.Name}, nil
	case "playlist":
		return queue.PlaylistSource{PlaylistID: m.ID, Name: m.Name}, nil
	case "search":
		return queue.SearchSource{Query: m.Query}, nil
	case "favorites":
		return queue.FavoritesSource{}, nil
	default:
		return nil, errors.Newf("unknown source kind: %q", m.Kind)
	}
}

func toQueueStateMessage(s queue.State) QueueStateMessage {
	entries := make([]EntryMessage, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = EntryMessage{Track: e.Track, OriginalIndex: e.OriginalIndex}
	}
	m := QueueStateMessage{
		Generation:   s.Generation,
		Entries:      entries,
		CurrentIndex: s.CurrentIndex,
		Origin:       toSourceMessage(s.Origin),
	}
	if !s.IsEmpty() {
		m.Position = s.Position()
	}
	return m
}

func toPlayerStatusMessage(s playback.Status) *PlayerStatusMessage {
	m := &PlayerStatusMessage{
		State:       s.State.String(),
		Generation:  s.Generation,
		Index:       s.Index,
		ElapsedMs:   s.Elapsed.Milliseconds(),
		RemainingMs: s.Remaining.Milliseconds(),
		QueueLen:    s.QueueLen,
		Played:      s.Played,
	}
	if s.Entry != nil {
		track := s.Entry.Track
		m.Track = &track
	}
	return m
}

// Current returns the entry at CurrentIndex, or nil for an empty queue.
func (m QueueStateMessage) Current() *EntryMessage {
	if m.CurrentIndex < 0 || m.CurrentIndex >= len(m.Entries) {
		return nil
	}
	return &m.Entries[m.CurrentIndex]
}
