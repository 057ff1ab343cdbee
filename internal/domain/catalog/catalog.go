// Package catalog provides the remote library entities (artists, albums, tracks).
package catalog

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Item is anything listed by the remote catalog.
// Hash is the only identity key; list position never identifies an item.
type Item interface {
	Hash() string
}

// ArtistRef is a lightweight artist reference embedded in tracks and albums.
type ArtistRef struct {
	ArtistHash string `json:"artisthash"`
	Name       string `json:"name"`
}

// Artist represents an artist entry in the library.
type Artist struct {
	ArtistHash string        `json:"artisthash"` // Stable hash assigned by the server
	Name       string        `json:"name"`       // Artist name
	Image      string        `json:"image"`      // Image file name (resolved by the image loader)
	TrackCount int           `json:"trackcount"` // Number of tracks
	AlbumCount int           `json:"albumcount"` // Number of albums
	Duration   time.Duration `json:"duration"`   // Total duration
	Color      string        `json:"color"`      // Accent color
}

// Hash returns the artist hash.
func (a Artist) Hash() string { return a.ArtistHash }

// Album represents an album entry in the library.
type Album struct {
	AlbumHash    string      `json:"albumhash"`
	Title        string      `json:"title"`
	AlbumArtists []ArtistRef `json:"albumartists"`
	Date         int64       `json:"date"` // Release date (unix seconds)
	Image        string      `json:"image"`
}

// Hash returns the album hash.
func (a Album) Hash() string { return a.AlbumHash }

// Track represents a playable track in the library.
type Track struct {
	TrackHash  string        `json:"trackhash"`
	Title      string        `json:"title"`
	Album      string        `json:"album"`
	AlbumHash  string        `json:"albumhash"`
	Artists    []ArtistRef   `json:"artists"`
	Duration   time.Duration `json:"duration"`
	Filepath   string        `json:"filepath"`
	Folder     string        `json:"folder"`
	Image      string        `json:"image"`
	Bitrate    int           `json:"bitrate"`
	IsFavorite bool          `json:"is_favorite"`
}

// Hash returns the track hash.
func (t Track) Hash() string { return t.TrackHash }

// ArtistNames returns the artist names joined for display.
func (t Track) ArtistNames() string {
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// Clone returns a deep copy of the track.
func (t Track) Clone() Track {
	c := t
	if t.Artists != nil {
		c.Artists = make([]ArtistRef, len(t.Artists))
		copy(c.Artists, t.Artists)
	}
	return c
}

// ResourceType identifies a paginated listing on the remote catalog.
type ResourceType string

const (
	ResourceArtists ResourceType = "artists"
	ResourceAlbums  ResourceType = "albums"
	ResourceTracks  ResourceType = "tracks"
)

// ParseResourceType parses a resource type name.
func ParseResourceType(s string) (ResourceType, error) {
	switch ResourceType(strings.ToLower(strings.TrimSpace(s))) {
	case ResourceArtists:
		return ResourceArtists, nil
	case ResourceAlbums:
		return ResourceAlbums, nil
	case ResourceTracks:
		return ResourceTracks, nil
	default:
		return "", errors.Newf("unknown resource type: %q", s)
	}
}

// SortOrder represents the listing sort direction.
type SortOrder int

const (
	SortAsc  SortOrder = iota // Ascending
	SortDesc                  // Descending
)

// String returns the string representation of the sort order.
func (o SortOrder) String() string {
	switch o {
	case SortAsc:
		return "asc"
	case SortDesc:
		return "desc"
	default:
		return "unknown"
	}
}

// Reverse returns the wire value expected by the server (0 = ascending, 1 = descending).
func (o SortOrder) Reverse() int {
	if o == SortDesc {
		return 1
	}
	return 0
}

// ParseSortOrder parses "asc" or "desc" (case-insensitive). Empty means ascending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "":
		return SortAsc, nil
	case "desc":
		return SortDesc, nil
	default:
		return SortAsc, errors.Newf("invalid sort order: %q", s)
	}
}

// Query is a single page request sent to the remote catalog.
type Query struct {
	Resource   ResourceType
	StartIndex int // Offset of the first item
	Limit      int // Page size
	SortBy     string
	SortOrder  SortOrder
}

// AlbumGroup names one section of an artist's discography.
type AlbumGroup string

const (
	GroupAlbums        AlbumGroup = "albums"
	GroupSinglesAndEPs AlbumGroup = "singles_and_eps"
	GroupCompilations  AlbumGroup = "compilations"
	GroupAppearances   AlbumGroup = "appearances"
)

// ParseAlbumGroup parses an album group name. "singles" and "eps" are
// accepted for GroupSinglesAndEPs.
func ParseAlbumGroup(s string) (AlbumGroup, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "albums", "album":
		return GroupAlbums, nil
	case "singles_and_eps", "singles", "eps":
		return GroupSinglesAndEPs, nil
	case "compilations", "compilation":
		return GroupCompilations, nil
	case "appearances", "appears_on":
		return GroupAppearances, nil
	default:
		return "", errors.Newf("unknown album group: %q", s)
	}
}

// Discography is an artist's albums split by how the artist relates to them.
type Discography struct {
	Albums        []Album `json:"albums"`
	SinglesAndEPs []Album `json:"singles_and_eps"`
	Compilations  []Album `json:"compilations"`
	Appearances   []Album `json:"appearances"`
}

// Group returns the albums of group g.
func (d Discography) Group(g AlbumGroup) []Album {
	switch g {
	case GroupAlbums:
		return d.Albums
	case GroupSinglesAndEPs:
		return d.SinglesAndEPs
	case GroupCompilations:
		return d.Compilations
	case GroupAppearances:
		return d.Appearances
	}
	return nil
}

// Len returns the number of albums across all groups.
func (d Discography) Len() int {
	return len(d.Albums) + len(d.SinglesAndEPs) + len(d.Compilations) + len(d.Appearances)
}

// ArtistInfo is everything shown on an artist's page: the artist, their
// tracks in server order, and their discography.
type ArtistInfo struct {
	Artist      Artist      `json:"artist"`
	Tracks      []Track     `json:"tracks"`
	Discography Discography `json:"discography"`
}
