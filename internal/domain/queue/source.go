package queue

import "fmt"

// SourceKind identifies the browsing context that produced a queue.
type SourceKind int

const (
	SourceNone      SourceKind = iota // No queue has been built yet
	SourceArtist                      // An artist's tracks
	SourceAlbum                       // An album's tracks
	SourceFolder                      // A folder's contents
	SourcePlaylist                    // A playlist
	SourceSearch                      // Search results
	SourceFavorites                   // Favorite tracks
)

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceNone:
		return "none"
	case SourceArtist:
		return "artist"
	case SourceAlbum:
		return "album"
	case SourceFolder:
		return "folder"
	case SourcePlaylist:
		return "playlist"
	case SourceSearch:
		return "search"
	case SourceFavorites:
		return "favorites"
	default:
		return "unknown"
	}
}

// Source describes where a queue came from. It is display metadata only and
// never drives queue contents. The set of implementations is closed.
type Source interface {
	Kind() SourceKind
	Label() string
	isSource()
}

// ArtistSource is the origin for queues built while viewing an artist.
type ArtistSource struct {
	ArtistHash string
	Name       string
}

// AlbumSource is the origin for queues built while viewing an album.
type AlbumSource struct {
	AlbumHash string
	Name      string
}

// FolderSource is the origin for queues built while viewing a folder.
type FolderSource struct {
	Path string
	Name string
}

// PlaylistSource is the origin for queues built while viewing a playlist.
type PlaylistSource struct {
	PlaylistID string
	Name       string
}

// SearchSource is the origin for queues built from search results.
type SearchSource struct {
	Query string
}

// FavoritesSource is the origin for queues built from favorite tracks.
type FavoritesSource struct{}

func (ArtistSource) Kind() SourceKind    { return SourceArtist }
func (AlbumSource) Kind() SourceKind     { return SourceAlbum }
func (FolderSource) Kind() SourceKind    { return SourceFolder }
func (PlaylistSource) Kind() SourceKind  { return SourcePlaylist }
func (SearchSource) Kind() SourceKind    { return SourceSearch }
func (FavoritesSource) Kind() SourceKind { return SourceFavorites }

func (s ArtistSource) Label() string   { return s.Name }
func (s AlbumSource) Label() string    { return s.Name }
func (s FolderSource) Label() string   { return s.Name }
func (s PlaylistSource) Label() string { return s.Name }
func (s SearchSource) Label() string   { return fmt.Sprintf("Search: %s", s.Query) }
func (FavoritesSource) Label() string  { return "Favorites" }

func (ArtistSource) isSource()    {}
func (AlbumSource) isSource()     {}
func (FolderSource) isSource()    {}
func (PlaylistSource) isSource()  {}
func (SearchSource) isSource()    {}
func (FavoritesSource) isSource() {}

// KindOf returns the kind of s, or SourceNone when s is nil.
func KindOf(s Source) SourceKind {
	if s == nil {
		return SourceNone
	}
	return s.Kind()
}
