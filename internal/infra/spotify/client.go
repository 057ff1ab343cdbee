// Package spotify provides a catalog client backed by the user's Spotify library.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// maxPageLimit is the largest page the Spotify library endpoints return.
const maxPageLimit = 50

// Scopes lists the authorization scopes the catalog client needs.
var Scopes = []string{
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserTopRead,
}

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	RefreshToken string `mapstructure:"refresh_token" validate:"required"`
	Market       string `mapstructure:"market" default:"JP" validate:"len=2"`
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Create token from refresh token
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	// Get HTTP client with auto-refresh capability
	httpClient := auth.Client(ctx, token)

	return newClient(spotify.New(httpClient), cfg.Market), nil
}

func newClient(client *spotify.Client, market string) *Client {
	if market == "" {
		market = "JP"
	}
	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Artists retrieves one page of the user's top artists.
// Sorting is decided by Spotify; q.SortBy and q.SortOrder are ignored.
func (c *Client) Artists(ctx context.Context, q catalog.Query) ([]catalog.Artist, error) {
	return collect(ctx, c, q, func(limit, offset int) ([]catalog.Artist, error) {
		page, err := c.client.CurrentUsersTopArtists(ctx, spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			return nil, err
		}
		artists := make([]catalog.Artist, 0, len(page.Artists))
		for _, a := range page.Artists {
			artists = append(artists, catalog.Artist{
				ArtistHash: string(a.ID),
				Name:       a.Name,
				Image:      firstImage(a.Images),
			})
		}
		return artists, nil
	})
}

// Albums retrieves one page of the user's saved albums.
func (c *Client) Albums(ctx context.Context, q catalog.Query) ([]catalog.Album, error) {
	return collect(ctx, c, q, func(limit, offset int) ([]catalog.Album, error) {
		page, err := c.client.CurrentUsersAlbums(ctx,
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return nil, err
		}
		albums := make([]catalog.Album, 0, len(page.Albums))
		for _, a := range page.Albums {
			albums = append(albums, convertAlbum(&a.SimpleAlbum))
		}
		return albums, nil
	})
}

// Tracks retrieves one page of the user's saved tracks.
func (c *Client) Tracks(ctx context.Context, q catalog.Query) ([]catalog.Track, error) {
	return collect(ctx, c, q, func(limit, offset int) ([]catalog.Track, error) {
		page, err := c.client.CurrentUsersTracks(ctx,
			spotify.Limit(limit),
			spotify.Offset(offset),
			spotify.Market(c.market),
		)
		if err != nil {
			return nil, err
		}
		tracks := make([]catalog.Track, 0, len(page.Tracks))
		for _, t := range page.Tracks {
			tracks = append(tracks, convertTrack(&t.FullTrack))
		}
		return tracks, nil
	})
}

// ArtistInfo retrieves an artist with their top tracks in the configured
// market and their discography grouped by Spotify's album_group.
func (c *Client) ArtistInfo(ctx context.Context, artistHash string) (*catalog.ArtistInfo, error) {
	id := spotify.ID(artistHash)

	var artist *spotify.FullArtist
	var top []spotify.FullTrack
	var albums *spotify.SimpleAlbumPage
	err := c.retry(ctx, func() error {
		var err error
		if artist, err = c.client.GetArtist(ctx, id); err != nil {
			return err
		}
		if top, err = c.client.GetArtistsTopTracks(ctx, id, c.market); err != nil {
			return err
		}
		albums, err = c.client.GetArtistAlbums(ctx, id, []spotify.AlbumType{
			spotify.AlbumTypeAlbum,
			spotify.AlbumTypeSingle,
			spotify.AlbumTypeCompilation,
			spotify.AlbumTypeAppearsOn,
		}, spotify.Limit(maxPageLimit), spotify.Market(c.market))
		return err
	})
	if err != nil {
		return nil, convertError(err)
	}

	info := &catalog.ArtistInfo{
		Artist: catalog.Artist{
			ArtistHash: string(artist.ID),
			Name:       artist.Name,
			Image:      firstImage(artist.Images),
			TrackCount: len(top),
		},
		Tracks: make([]catalog.Track, 0, len(top)),
	}
	for i := range top {
		track := convertTrack(&top[i])
		track.IsFavorite = false
		info.Tracks = append(info.Tracks, track)
	}

	d := &info.Discography
	for i := range albums.Albums {
		a := &albums.Albums[i]
		album := convertAlbum(a)
		switch a.AlbumGroup {
		case "single":
			d.SinglesAndEPs = append(d.SinglesAndEPs, album)
		case "compilation":
			d.Compilations = append(d.Compilations, album)
		case "appears_on":
			d.Appearances = append(d.Appearances, album)
		default:
			d.Albums = append(d.Albums, album)
		}
	}
	info.Artist.AlbumCount = len(d.Albums)

	zlog.Debug().Msgf("spotify artist %s: tracks=%d albums=%d", artistHash, len(info.Tracks), d.Len())
	return info, nil
}

// collect fills a page of q.Limit items starting at q.StartIndex, issuing
// as many requests as the Spotify per-request limit requires.
// A short response ends the listing.
func collect[T any](ctx context.Context, c *Client, q catalog.Query, get func(limit, offset int) ([]T, error)) ([]T, error) {
	items := make([]T, 0, q.Limit)
	offset := q.StartIndex

	for len(items) < q.Limit {
		limit := min(q.Limit-len(items), maxPageLimit)

		var batch []T
		err := c.retry(ctx, func() error {
			b, err := get(limit, offset)
			if err != nil {
				return err
			}
			batch = b
			return nil
		})
		if err != nil {
			return nil, convertError(err)
		}

		items = append(items, batch...)
		if len(batch) < limit {
			break
		}
		offset += len(batch)
	}

	zlog.Debug().Msgf("spotify %s: start=%d limit=%d items=%d", q.Resource, q.StartIndex, q.Limit, len(items))
	return items, nil
}

func convertAlbum(a *spotify.SimpleAlbum) catalog.Album {
	var date int64
	if a.ReleaseDate != "" {
		date = a.ReleaseDateTime().Unix()
	}
	return catalog.Album{
		AlbumHash:    string(a.ID),
		Title:        a.Name,
		AlbumArtists: convertArtists(a.Artists),
		Date:         date,
		Image:        firstImage(a.Images),
	}
}

// convertTrack converts a saved Spotify track to a catalog track.
// Filepath carries the Spotify URI so players can hand it to a Spotify client.
func convertTrack(t *spotify.FullTrack) catalog.Track {
	return catalog.Track{
		TrackHash:  string(t.ID),
		Title:      t.Name,
		Album:      t.Album.Name,
		AlbumHash:  string(t.Album.ID),
		Artists:    convertArtists(t.Artists),
		Duration:   time.Duration(t.Duration) * time.Millisecond,
		Filepath:   string(t.URI),
		Image:      firstImage(t.Album.Images),
		IsFavorite: true,
	}
}

func convertArtists(artists []spotify.SimpleArtist) []catalog.ArtistRef {
	refs := make([]catalog.ArtistRef, len(artists))
	for i, a := range artists {
		refs[i] = catalog.ArtistRef{ArtistHash: string(a.ID), Name: a.Name}
	}
	return refs
}

func firstImage(images []spotify.Image) string {
	if len(images) > 0 {
		return images[0].URL
	}
	return ""
}

// convertError maps Spotify API errors onto catalog rejections.
// Anything else (network, auth transport, context) is returned as is.
func convertError(err error) error {
	var se spotify.Error
	if errors.As(err, &se) {
		return errors.WithStack(&catalog.RemoteError{Status: se.Status, Message: se.Message})
	}
	var pse *spotify.Error
	if errors.As(err, &pse) {
		return errors.WithStack(&catalog.RemoteError{Status: pse.Status, Message: pse.Message})
	}
	return errors.Wrap(err, "spotify request failed")
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
