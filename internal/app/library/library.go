// Package library binds a remote catalog client to paging sources.
package library

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/app/paging"
	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// Client fetches single pages from a remote music library.
// Implementations own their base URL and credentials.
type Client interface {
	Artists(ctx context.Context, q catalog.Query) ([]catalog.Artist, error)
	Albums(ctx context.Context, q catalog.Query) ([]catalog.Album, error)
	Tracks(ctx context.Context, q catalog.Query) ([]catalog.Track, error)
	ArtistInfo(ctx context.Context, artistHash string) (*catalog.ArtistInfo, error)
}

// ErrMissingArtistHash is returned when artist info is requested without a hash.
var ErrMissingArtistHash = errors.New("artist hash is required")

// Library holds one paging source per resource type.
type Library struct {
	Artists *paging.Source[catalog.Artist]
	Albums  *paging.Source[catalog.Album]
	Tracks  *paging.Source[catalog.Track]

	client Client
}

// New creates a Library backed by client.
func New(client Client) *Library {
	return &Library{
		Artists: paging.NewSource(catalog.ResourceArtists, client.Artists),
		Albums:  paging.NewSource(catalog.ResourceAlbums, client.Albums),
		Tracks:  paging.NewSource(catalog.ResourceTracks, client.Tracks),
		client:  client,
	}
}

// ArtistInfo fetches an artist's page. Failures can be classified with
// paging.KindOf. As with page loads, nothing is returned once ctx is done.
func (l *Library) ArtistInfo(ctx context.Context, artistHash string) (*catalog.ArtistInfo, error) {
	artistHash = strings.TrimSpace(artistHash)
	if artistHash == "" {
		return nil, ErrMissingArtistHash
	}

	info, err := l.client.ArtistInfo(ctx, artistHash)
	if err != nil {
		zlog.Debug().Msgf("artist info failed: artist=%s kind=%s err=%v", artistHash, paging.KindOf(err), err)
		return nil, errors.Wrapf(err, "artist %s", artistHash)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return info, nil
}
