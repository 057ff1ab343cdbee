// Package swing provides a client for the Swing Music server API.
package swing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// resourcePaths maps resource types to listing endpoints (relative to the base URL).
var resourcePaths = map[catalog.ResourceType]string{
	catalog.ResourceArtists: "getall/artists",
	catalog.ResourceAlbums:  "getall/albums",
	catalog.ResourceTracks:  "favorites/tracks",
}

// Client is a Swing Music API client.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	infoLimit   int
}

// Config represents Swing Music client configuration.
type Config struct {
	BaseURL     string        `mapstructure:"base_url" validate:"required,url"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"-"`
	TimeoutSec  int           `mapstructure:"timeout_sec" default:"10" validate:"gte=1,lte=120"`
	RateLimit   float64       `mapstructure:"rate_limit" default:"10" validate:"gt=0"` // Requests per second
	InfoLimit   int           `mapstructure:"info_limit" default:"50" validate:"gte=1"`  // Tracks and albums per group on an artist page
}

// errorResponse is the body of a rejected request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"msg"`
}

type artistRefDTO struct {
	ArtistHash string `json:"artisthash"`
	Name       string `json:"name"`
}

type artistDTO struct {
	ArtistHash string `json:"artisthash"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	TrackCount int    `json:"trackcount"`
	AlbumCount int    `json:"albumcount"`
	Duration   int    `json:"duration"` // seconds
	Color      string `json:"color"`
}

type albumDTO struct {
	AlbumHash    string         `json:"albumhash"`
	Title        string         `json:"title"`
	AlbumArtists []artistRefDTO `json:"albumartists"`
	Date         int64          `json:"date"`
	Image        string         `json:"image"`
}

type trackDTO struct {
	TrackHash  string         `json:"trackhash"`
	Title      string         `json:"title"`
	Album      string         `json:"album"`
	AlbumHash  string         `json:"albumhash"`
	Artists    []artistRefDTO `json:"artists"`
	Duration   int            `json:"duration"` // seconds
	Filepath   string         `json:"filepath"`
	Folder     string         `json:"folder"`
	Image      string         `json:"image"`
	Bitrate    int            `json:"bitrate"`
	IsFavorite bool           `json:"is_favorite"`
}

// listResponse is the envelope of every listing endpoint.
type listResponse[T any] struct {
	Items []T `json:"items"`
}

type artistInfoResponse struct {
	Artist artistDTO  `json:"artist"`
	Tracks []trackDTO `json:"tracks"`
}

type discographyDTO struct {
	Albums        []albumDTO `json:"albums"`
	SinglesAndEPs []albumDTO `json:"singles_and_eps"`
	Compilations  []albumDTO `json:"compilations"`
	Appearances   []albumDTO `json:"appearances"`
}

// New creates a new Swing Music client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("swing base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "invalid swing base URL")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	infoLimit := cfg.InfoLimit
	if infoLimit <= 0 {
		infoLimit = 50
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/") + "/",
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(limit, 1),
		infoLimit:   infoLimit,
	}, nil
}

// Artists retrieves one page of artists.
func (c *Client) Artists(ctx context.Context, q catalog.Query) ([]catalog.Artist, error) {
	q.Resource = catalog.ResourceArtists
	dtos, err := fetch[artistDTO](ctx, c, q)
	if err != nil {
		return nil, err
	}
	artists := make([]catalog.Artist, 0, len(dtos))
	for _, d := range dtos {
		artists = append(artists, d.toArtist())
	}
	return artists, nil
}

// Albums retrieves one page of albums.
func (c *Client) Albums(ctx context.Context, q catalog.Query) ([]catalog.Album, error) {
	q.Resource = catalog.ResourceAlbums
	dtos, err := fetch[albumDTO](ctx, c, q)
	if err != nil {
		return nil, err
	}
	return convertAlbums(dtos), nil
}

// Tracks retrieves one page of favorite tracks.
func (c *Client) Tracks(ctx context.Context, q catalog.Query) ([]catalog.Track, error) {
	q.Resource = catalog.ResourceTracks
	dtos, err := fetch[trackDTO](ctx, c, q)
	if err != nil {
		return nil, err
	}
	return convertTracks(dtos), nil
}

// ArtistInfo retrieves an artist's page: the artist with their tracks, then
// their discography. Both requests must succeed.
func (c *Client) ArtistInfo(ctx context.Context, artistHash string) (*catalog.ArtistInfo, error) {
	path := "artist/" + url.PathEscape(artistHash)
	limit := url.Values{}
	limit.Set("limit", strconv.Itoa(c.infoLimit))

	body, err := c.get(ctx, path, limit)
	if err != nil {
		return nil, err
	}
	var info artistInfoResponse
	if err := decodeObject(body, &info, "artist"); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if info.Artist.ArtistHash == "" {
		return nil, errors.Wrapf(catalog.ErrMalformedResponse, "decode %s: artist without hash", path)
	}

	albumsPath := path + "/albums"
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.infoLimit))
	params.Set("all", "true")
	body, err = c.get(ctx, albumsPath, params)
	if err != nil {
		return nil, err
	}
	var disc discographyDTO
	if err := decodeObject(body, &disc, "albums"); err != nil {
		return nil, errors.Wrapf(err, "decode %s", albumsPath)
	}

	zlog.Debug().Msgf("fetched artist %s: tracks=%d albums=%d", artistHash, len(info.Tracks), len(disc.Albums))

	return &catalog.ArtistInfo{
		Artist: info.Artist.toArtist(),
		Tracks: convertTracks(info.Tracks),
		Discography: catalog.Discography{
			Albums:        convertAlbums(disc.Albums),
			SinglesAndEPs: convertAlbums(disc.SinglesAndEPs),
			Compilations:  convertAlbums(disc.Compilations),
			Appearances:   convertAlbums(disc.Appearances),
		},
	}, nil
}

// fetch performs one listing request and decodes its items. The "total"
// member is not read; an empty page ends the listing.
// Transport failures are returned wrapped; non-2xx statuses become
// *catalog.RemoteError and undecodable bodies catalog.ErrMalformedResponse.
func fetch[T any](ctx context.Context, c *Client, q catalog.Query) ([]T, error) {
	path, ok := resourcePaths[q.Resource]
	if !ok {
		return nil, errors.Newf("unsupported resource type: %s", q.Resource)
	}

	params := url.Values{}
	params.Set("start", strconv.Itoa(q.StartIndex))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.SortBy != "" {
		params.Set("sortby", q.SortBy)
	}
	params.Set("reverse", strconv.Itoa(q.SortOrder.Reverse()))

	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	var response listResponse[T]
	if err := decodeObject(body, &response, "items"); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	zlog.Debug().Msgf("fetched %s: start=%d limit=%d items=%d", path, q.StartIndex, q.Limit, len(response.Items))

	if response.Items == nil {
		return []T{}, nil
	}
	return response.Items, nil
}

// get sends a GET request for path and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(resp.StatusCode, body)
	}
	return body, nil
}

// decodeObject decodes a JSON object body into out. A body that is not an
// object, or lacks one of the required members, is malformed. A required
// member sent as null is accepted.
func decodeObject(body []byte, out any, required ...string) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errors.Wrapf(catalog.ErrMalformedResponse, "%v", err)
	}
	for _, name := range required {
		if _, ok := envelope[name]; !ok {
			return errors.Wrapf(catalog.ErrMalformedResponse, "missing %q", name)
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(catalog.ErrMalformedResponse, "%v", err)
	}
	return nil
}

// remoteError builds a rejection error from a non-2xx response.
func remoteError(status int, body []byte) error {
	re := &catalog.RemoteError{Status: status}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		re.Message = er.Message
		if re.Message == "" {
			re.Message = er.Error
		}
	}
	return re
}

func (d artistDTO) toArtist() catalog.Artist {
	return catalog.Artist{
		ArtistHash: d.ArtistHash,
		Name:       d.Name,
		Image:      d.Image,
		TrackCount: d.TrackCount,
		AlbumCount: d.AlbumCount,
		Duration:   time.Duration(d.Duration) * time.Second,
		Color:      d.Color,
	}
}

func convertAlbums(dtos []albumDTO) []catalog.Album {
	albums := make([]catalog.Album, 0, len(dtos))
	for _, d := range dtos {
		albums = append(albums, catalog.Album{
			AlbumHash:    d.AlbumHash,
			Title:        d.Title,
			AlbumArtists: convertArtistRefs(d.AlbumArtists),
			Date:         d.Date,
			Image:        d.Image,
		})
	}
	return albums
}

func convertTracks(dtos []trackDTO) []catalog.Track {
	tracks := make([]catalog.Track, 0, len(dtos))
	for _, d := range dtos {
		tracks = append(tracks, catalog.Track{
			TrackHash:  d.TrackHash,
			Title:      d.Title,
			Album:      d.Album,
			AlbumHash:  d.AlbumHash,
			Artists:    convertArtistRefs(d.Artists),
			Duration:   time.Duration(d.Duration) * time.Second,
			Filepath:   d.Filepath,
			Folder:     d.Folder,
			Image:      d.Image,
			Bitrate:    d.Bitrate,
			IsFavorite: d.IsFavorite,
		})
	}
	return tracks
}

func convertArtistRefs(refs []artistRefDTO) []catalog.ArtistRef {
	out := make([]catalog.ArtistRef, len(refs))
	for i, r := range refs {
		out[i] = catalog.ArtistRef{ArtistHash: r.ArtistHash, Name: r.Name}
	}
	return out
}
