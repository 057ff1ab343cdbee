package swing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/swingdeck/internal/app/paging"
	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// newArtistServer serves total artists from /getall/artists by start/limit.
func newArtistServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getall/artists", r.URL.Path)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		items := make([]map[string]any, 0)
		for i := start; i < start+limit && i < total; i++ {
			items = append(items, map[string]any{
				"artisthash": fmt.Sprintf("hash-%d", i),
				"name":       fmt.Sprintf("Artist %d", i),
				"trackcount": 3,
				"duration":   600,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "total": total})
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(Config{BaseURL: baseURL, AccessToken: "test-token"})
	require.NoError(t, err)
	return client
}

func TestClient_Artists_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getall/artists", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "50", r.URL.Query().Get("start"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "name", r.URL.Query().Get("sortby"))
		assert.Equal(t, "1", r.URL.Query().Get("reverse"))

		fmt.Fprint(w, `{"items": [{"artisthash": "a1", "name": "Artist 1", "image": "a1.webp", "trackcount": 12, "albumcount": 2, "duration": 3600, "color": "#fff"}], "total": 999}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	artists, err := client.Artists(context.Background(), catalog.Query{
		StartIndex: 50,
		Limit:      25,
		SortBy:     "name",
		SortOrder:  catalog.SortDesc,
	})
	require.NoError(t, err)
	require.Len(t, artists, 1)

	assert.Equal(t, catalog.Artist{
		ArtistHash: "a1",
		Name:       "Artist 1",
		Image:      "a1.webp",
		TrackCount: 12,
		AlbumCount: 2,
		Duration:   time.Hour,
		Color:      "#fff",
	}, artists[0])
}

func TestClient_Tracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/favorites/tracks", r.URL.Path)
		fmt.Fprint(w, `{"items": [
			{"trackhash": "t1", "title": "Song", "album": "Album", "albumhash": "al1",
			 "artists": [{"artisthash": "a1", "name": "A"}, {"artisthash": "a2", "name": "B"}],
			 "duration": 215, "filepath": "/music/song.flac", "folder": "/music", "bitrate": 1411, "is_favorite": true}
		]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/")
	tracks, err := client.Tracks(context.Background(), catalog.Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	tr := tracks[0]
	assert.Equal(t, "t1", tr.Hash())
	assert.Equal(t, "A, B", tr.ArtistNames())
	assert.Equal(t, 215*time.Second, tr.Duration)
	assert.Equal(t, "/music/song.flac", tr.Filepath)
	assert.True(t, tr.IsFavorite)
}

func TestClient_Albums(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getall/albums", r.URL.Path)
		fmt.Fprint(w, `{"items": [{"albumhash": "al1", "title": "Album", "albumartists": [{"artisthash": "a1", "name": "A"}], "date": 1600000000}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	albums, err := client.Albums(context.Background(), catalog.Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, "al1", albums[0].Hash())
	assert.Equal(t, []catalog.ArtistRef{{ArtistHash: "a1", Name: "A"}}, albums[0].AlbumArtists)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantRejected bool
		wantStatus   int
		wantMessage  string
	}{
		{name: "unauthorized", status: 401, body: `{"msg": "Token has expired"}`, wantRejected: true, wantStatus: 401, wantMessage: "Token has expired"},
		{name: "server error", status: 500, body: `{"error": "boom"}`, wantRejected: true, wantStatus: 500, wantMessage: "boom"},
		{name: "non-json error", status: 502, body: `bad gateway`, wantRejected: true, wantStatus: 502},
		{name: "malformed body", status: 200, body: `{"items": "nope"}`, wantRejected: true},
		{name: "null body", status: 200, body: `null`, wantRejected: true},
		{name: "empty object", status: 200, body: `{}`, wantRejected: true},
		{name: "error object with 200", status: 200, body: `{"error": "maintenance"}`, wantRejected: true},
		{name: "array body", status: 200, body: `[]`, wantRejected: true},
		{name: "null items", status: 200, body: `{"items": null}`, wantRejected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			artists, err := client.Artists(context.Background(), catalog.Query{Limit: 10})

			if !tt.wantRejected {
				require.NoError(t, err)
				assert.NotNil(t, artists)
				assert.Empty(t, artists)
				return
			}

			require.Error(t, err)
			assert.True(t, catalog.IsRejected(err))
			var re *catalog.RemoteError
			if tt.wantStatus != 0 {
				require.True(t, errors.As(err, &re))
				assert.Equal(t, tt.wantStatus, re.Status)
				assert.Equal(t, tt.wantMessage, re.Message)
			} else {
				assert.True(t, errors.Is(err, catalog.ErrMalformedResponse))
			}
		})
	}
}

func TestClient_ArtistInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))

		switch r.URL.Path {
		case "/artist/a1":
			fmt.Fprint(w, `{"artist": {"artisthash": "a1", "name": "Artist 1", "trackcount": 2},
				"tracks": [{"trackhash": "t1", "title": "One"}, {"trackhash": "t2", "title": "Two"}]}`)
		case "/artist/a1/albums":
			assert.Equal(t, "true", r.URL.Query().Get("all"))
			fmt.Fprint(w, `{"artistname": "Artist 1",
				"albums": [{"albumhash": "al1", "title": "LP"}],
				"singles_and_eps": [{"albumhash": "s1"}, {"albumhash": "s2"}],
				"compilations": [],
				"appearances": [{"albumhash": "x1"}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	info, err := newTestClient(t, server.URL).ArtistInfo(context.Background(), "a1")
	require.NoError(t, err)

	assert.Equal(t, "Artist 1", info.Artist.Name)
	require.Len(t, info.Tracks, 2)
	assert.Equal(t, "t2", info.Tracks[1].Hash())
	assert.Equal(t, "al1", info.Discography.Albums[0].Hash())
	assert.Len(t, info.Discography.SinglesAndEPs, 2)
	assert.Empty(t, info.Discography.Compilations)
	assert.Equal(t, "x1", info.Discography.Appearances[0].Hash())
}

func TestClient_ArtistInfoErrors(t *testing.T) {
	tests := []struct {
		name       string
		infoStatus int
		infoBody   string
		albumsBody string
	}{
		{name: "artist not found", infoStatus: 404, infoBody: `{"error": "Artist not found"}`},
		{name: "missing artist", infoStatus: 200, infoBody: `{"tracks": []}`},
		{name: "artist without hash", infoStatus: 200, infoBody: `{"artist": null, "tracks": []}`},
		{name: "malformed discography", infoStatus: 200, infoBody: `{"artist": {"artisthash": "a1"}, "tracks": []}`, albumsBody: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/artist/a1/albums" {
					fmt.Fprint(w, tt.albumsBody)
					return
				}
				w.WriteHeader(tt.infoStatus)
				fmt.Fprint(w, tt.infoBody)
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).ArtistInfo(context.Background(), "a1")
			require.Error(t, err)
			assert.True(t, catalog.IsRejected(err))
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, url)
	_, err := client.Artists(context.Background(), catalog.Query{Limit: 10})
	require.Error(t, err)
	assert.False(t, catalog.IsRejected(err))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := New(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Artists(context.Background(), catalog.Query{Limit: 10})
	require.Error(t, err)
	assert.False(t, catalog.IsRejected(err))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

// The following exercise the paging source end to end over HTTP.

func TestPaging_FirstPageOfArtists(t *testing.T) {
	server := newArtistServer(t, 25)
	defer server.Close()

	src := paging.NewSource(catalog.ResourceArtists, newTestClient(t, server.URL).Artists)
	page, err := src.Load(context.Background(), nil, paging.Params{PageSize: 25, SortBy: "name", SortOrder: catalog.SortAsc})
	require.NoError(t, err)

	assert.Len(t, page.Items, 25)
	assert.Nil(t, page.PrevKey)
	require.NotNil(t, page.NextKey)
	assert.Equal(t, paging.Key(1), *page.NextKey)
}

func TestPaging_PastTheEnd(t *testing.T) {
	server := newArtistServer(t, 70)
	defer server.Close()

	src := paging.NewSource(catalog.ResourceArtists, newTestClient(t, server.URL).Artists)
	page, err := src.Load(context.Background(), paging.KeyOf(3), paging.Params{PageSize: 25, SortBy: "name"})
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	require.NotNil(t, page.PrevKey)
	assert.Equal(t, paging.Key(2), *page.PrevKey)
	assert.Nil(t, page.NextKey)
}

func TestPaging_NonListingBodyIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": "maintenance"}`)
	}))
	defer server.Close()

	src := paging.NewSource(catalog.ResourceArtists, newTestClient(t, server.URL).Artists)
	page, err := src.Load(context.Background(), nil, paging.Params{PageSize: 25})
	assert.Nil(t, page)
	assert.True(t, paging.IsRemoteRejected(err))
}

func TestPaging_ErrorKindsOverHTTP(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer rejecting.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	downURL := down.URL
	down.Close()

	params := paging.Params{PageSize: 25, SortBy: "name"}

	_, err := paging.NewSource(catalog.ResourceArtists, newTestClient(t, rejecting.URL).Artists).
		Load(context.Background(), paging.KeyOf(1), params)
	assert.True(t, paging.IsRemoteRejected(err))

	_, err = paging.NewSource(catalog.ResourceArtists, newTestClient(t, downURL).Artists).
		Load(context.Background(), paging.KeyOf(1), params)
	assert.True(t, paging.IsTransport(err))
}
