package connect

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/swingdeck/internal/app/library"
	"github.com/osa030/swingdeck/internal/app/notification"
	"github.com/osa030/swingdeck/internal/app/paging"
	"github.com/osa030/swingdeck/internal/app/playback"
	"github.com/osa030/swingdeck/internal/domain/catalog"
	"github.com/osa030/swingdeck/internal/domain/queue"
)

// fakeLibrary serves numbered items and can be told to fail.
type fakeLibrary struct {
	mu    sync.Mutex
	total int
	err   error
	last  catalog.Query
}

func servePage[T any](f *fakeLibrary, q catalog.Query, build func(i int) T) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	items := []T{}
	for i := q.StartIndex; i < q.StartIndex+q.Limit && i < f.total; i++ {
		items = append(items, build(i))
	}
	return items, nil
}

func (f *fakeLibrary) Artists(_ context.Context, q catalog.Query) ([]catalog.Artist, error) {
	return servePage(f, q, func(i int) catalog.Artist {
		return catalog.Artist{ArtistHash: fmt.Sprintf("a%d", i), Name: fmt.Sprintf("Artist %d", i)}
	})
}

func (f *fakeLibrary) Albums(_ context.Context, q catalog.Query) ([]catalog.Album, error) {
	return servePage(f, q, func(i int) catalog.Album {
		return catalog.Album{AlbumHash: fmt.Sprintf("al%d", i)}
	})
}

func (f *fakeLibrary) Tracks(_ context.Context, q catalog.Query) ([]catalog.Track, error) {
	return servePage(f, q, func(i int) catalog.Track {
		return catalog.Track{TrackHash: fmt.Sprintf("t%d", i), Title: fmt.Sprintf("Track %d", i)}
	})
}

func (f *fakeLibrary) ArtistInfo(_ context.Context, artistHash string) (*catalog.ArtistInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.ArtistInfo{
		Artist: catalog.Artist{ArtistHash: artistHash, Name: "Artist " + artistHash},
		Tracks: []catalog.Track{{TrackHash: artistHash + "-t0"}, {TrackHash: artistHash + "-t1"}},
		Discography: catalog.Discography{
			Albums:        []catalog.Album{{AlbumHash: artistHash + "-lp"}},
			SinglesAndEPs: []catalog.Album{{AlbumHash: artistHash + "-ep"}},
		},
	}, nil
}

func (f *fakeLibrary) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeLibrary) lastQuery() catalog.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type testEnv struct {
	server        *httptest.Server
	lib           *fakeLibrary
	holder        *playback.Holder
	notifications *notification.Manager
	browse        *BrowseClient
	queue         *QueueClient
	service       *QueueService
}

func newTestEnv(t *testing.T, token string, clientToken string) *testEnv {
	t.Helper()

	lib := &fakeLibrary{total: 60}
	notifications := notification.NewManager()
	player := playback.NewController(playback.ControllerConfig{})
	holder := playback.NewHolder(player, notifications)

	browseService := NewBrowseService(library.New(lib), paging.Params{PageSize: 25, SortBy: "name"})
	queueService := NewQueueService(holder, notifications, player)

	auth := connect.WithInterceptors(NewTokenAuthInterceptor(token))
	mux := http.NewServeMux()
	mux.Handle(browseService.Handler(auth))
	mux.Handle(queueService.Handler(auth))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		queueService.Close()
		server.Close()
		player.Close()
	})

	clientAuth := connect.WithInterceptors(NewTokenClientInterceptor(clientToken))
	return &testEnv{
		server:        server,
		lib:           lib,
		holder:        holder,
		notifications: notifications,
		browse:        NewBrowseClient(server.Client(), server.URL, clientAuth),
		queue:         NewQueueClient(server.Client(), server.URL, clientAuth),
		service:       queueService,
	}
}

func TestBrowseService_FirstPage(t *testing.T) {
	env := newTestEnv(t, "", "")

	resp, err := env.browse.LoadPage(context.Background(), &LoadPageRequest{Resource: "artists"})
	require.NoError(t, err)

	assert.Equal(t, "artists", resp.Resource)
	assert.Equal(t, 0, resp.Key)
	assert.Len(t, resp.Artists, 25)
	assert.Nil(t, resp.PrevKey)
	require.NotNil(t, resp.NextKey)
	assert.Equal(t, 1, *resp.NextKey)

	q := env.lib.lastQuery()
	assert.Equal(t, 0, q.StartIndex)
	assert.Equal(t, 25, q.Limit)
	assert.Equal(t, "name", q.SortBy)
}

func TestBrowseService_RequestOverridesDefaults(t *testing.T) {
	env := newTestEnv(t, "", "")

	key := 2
	resp, err := env.browse.LoadPage(context.Background(), &LoadPageRequest{
		Resource:  "tracks",
		Key:       &key,
		PageSize:  10,
		SortBy:    "title",
		SortOrder: "desc",
	})
	require.NoError(t, err)

	assert.Len(t, resp.Tracks, 10)
	assert.Equal(t, "t20", resp.Tracks[0].TrackHash)
	require.NotNil(t, resp.PrevKey)
	assert.Equal(t, 1, *resp.PrevKey)

	assert.Equal(t, catalog.Query{
		Resource:   catalog.ResourceTracks,
		StartIndex: 20,
		Limit:      10,
		SortBy:     "title",
		SortOrder:  catalog.SortDesc,
	}, env.lib.lastQuery())
}

func TestBrowseService_PastTheEnd(t *testing.T) {
	env := newTestEnv(t, "", "")

	key := 3
	resp, err := env.browse.LoadPage(context.Background(), &LoadPageRequest{Resource: "albums", Key: &key})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Len())
	require.NotNil(t, resp.PrevKey)
	assert.Equal(t, 2, *resp.PrevKey)
	assert.Nil(t, resp.NextKey)
}

func TestBrowseService_Errors(t *testing.T) {
	negative := -1
	huge := math.MaxInt

	tests := []struct {
		name     string
		req      *LoadPageRequest
		fail     error
		wantCode connect.Code
		wantKind string
	}{
		{
			name:     "unknown resource",
			req:      &LoadPageRequest{Resource: "playlists"},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "bad sort order",
			req:      &LoadPageRequest{Resource: "artists", SortOrder: "sideways"},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "negative key",
			req:      &LoadPageRequest{Resource: "artists", Key: &negative},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "key too large",
			req:      &LoadPageRequest{Resource: "tracks", Key: &huge},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name:     "transport failure",
			req:      &LoadPageRequest{Resource: "artists"},
			fail:     errors.New("connection refused"),
			wantCode: connect.CodeUnavailable,
			wantKind: "transport",
		},
		{
			name:     "remote rejection",
			req:      &LoadPageRequest{Resource: "tracks"},
			fail:     &catalog.RemoteError{Status: 401, Message: "expired"},
			wantCode: connect.CodeFailedPrecondition,
			wantKind: "remote_rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", "")
			env.lib.setErr(tt.fail)

			_, err := env.browse.LoadPage(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))

			if tt.wantKind != "" {
				var cerr *connect.Error
				require.True(t, errors.As(err, &cerr))
				assert.Equal(t, tt.wantKind, cerr.Meta().Get(LoadErrorKindHeader))
			}
		})
	}
}

func TestBrowseService_ArtistInfo(t *testing.T) {
	env := newTestEnv(t, "", "")

	info, err := env.browse.ArtistInfo(context.Background(), "a7")
	require.NoError(t, err)

	assert.Equal(t, "Artist a7", info.Artist.Name)
	require.Len(t, info.Tracks, 2)
	assert.Equal(t, "a7-t1", info.Tracks[1].TrackHash)
	assert.Equal(t, "a7-lp", info.Discography.Group(catalog.GroupAlbums)[0].AlbumHash)
	assert.Equal(t, "a7-ep", info.Discography.Group(catalog.GroupSinglesAndEPs)[0].AlbumHash)
	assert.Empty(t, info.Discography.Appearances)
}

func TestBrowseService_ArtistInfoErrors(t *testing.T) {
	tests := []struct {
		name     string
		hash     string
		fail     error
		wantCode connect.Code
		wantKind string
	}{
		{name: "missing hash", hash: " ", wantCode: connect.CodeInvalidArgument},
		{name: "transport failure", hash: "a1", fail: errors.New("connection reset"), wantCode: connect.CodeUnavailable, wantKind: "transport"},
		{name: "not found", hash: "a1", fail: &catalog.RemoteError{Status: 404}, wantCode: connect.CodeFailedPrecondition, wantKind: "remote_rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", "")
			env.lib.setErr(tt.fail)

			_, err := env.browse.ArtistInfo(context.Background(), tt.hash)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))

			var cerr *connect.Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.wantKind, cerr.Meta().Get(LoadErrorKindHeader))
		})
	}
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name        string
		serverToken string
		clientToken string
		wantErr     bool
	}{
		{name: "no token configured", serverToken: "", clientToken: "", wantErr: false},
		{name: "matching token", serverToken: "secret", clientToken: "secret", wantErr: false},
		{name: "missing token", serverToken: "secret", clientToken: "", wantErr: true},
		{name: "wrong token", serverToken: "secret", clientToken: "guess", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.serverToken, tt.clientToken)

			_, err := env.queue.Current(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAuth_Stream(t *testing.T) {
	env := newTestEnv(t, "secret", "")

	stream, err := env.queue.Watch(context.Background())
	if err != nil {
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		return
	}
	defer stream.Close()

	assert.False(t, stream.Receive())
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(stream.Err()))
}

func TestQueueService_RecreateAndCurrent(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx := context.Background()

	initial, err := env.queue.Current(ctx)
	require.NoError(t, err)
	assert.Empty(t, initial.Entries)
	assert.Equal(t, -1, initial.CurrentIndex)
	assert.Nil(t, initial.Origin)
	assert.Nil(t, initial.Current())

	listing := []catalog.Track{{TrackHash: "a"}, {TrackHash: "b"}, {TrackHash: "c"}}
	state, err := env.queue.Recreate(ctx, &RecreateRequest{
		Tracks:       listing,
		ClickedIndex: 1,
		Origin:       &SourceMessage{Kind: "album", ID: "al1", Name: "Blue"},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), state.Generation)
	assert.Equal(t, 1, state.CurrentIndex)
	require.Len(t, state.Entries, 3)
	for i, e := range state.Entries {
		assert.Equal(t, i, e.OriginalIndex)
		assert.Equal(t, listing[i].TrackHash, e.Track.TrackHash)
	}
	assert.Equal(t, "b", state.Current().Track.TrackHash)
	require.NotNil(t, state.Origin)
	assert.Equal(t, "album", state.Origin.Kind)
	assert.Equal(t, "Blue", state.Origin.Label)

	current, err := env.queue.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, current)
}

func TestQueueService_RecreateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		req  *RecreateRequest
	}{
		{name: "empty listing", req: &RecreateRequest{ClickedIndex: 0}},
		{name: "index out of range", req: &RecreateRequest{Tracks: []catalog.Track{{TrackHash: "a"}}, ClickedIndex: 1}},
		{name: "negative index", req: &RecreateRequest{Tracks: []catalog.Track{{TrackHash: "a"}}, ClickedIndex: -1}},
		{name: "unknown origin", req: &RecreateRequest{
			Tracks: []catalog.Track{{TrackHash: "a"}},
			Origin: &SourceMessage{Kind: "radio"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", "")
			ctx := context.Background()

			_, err := env.queue.Recreate(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

			current, err := env.queue.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), current.Generation)
			assert.Empty(t, current.Entries)
		})
	}
}

func TestQueueService_Watch(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.holder.Select([]catalog.Track{{TrackHash: "x"}}, 0, nil)
	require.NoError(t, err)

	stream, err := env.queue.Watch(ctx)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), "initial event: %v", stream.Err())
	first := stream.Msg()
	assert.True(t, first.Initial)
	assert.Equal(t, uint64(1), first.State.Generation)
	assert.Equal(t, "x", first.State.Current().Track.TrackHash)

	_, err = env.queue.Recreate(ctx, &RecreateRequest{
		Tracks:       []catalog.Track{{TrackHash: "y"}, {TrackHash: "z"}},
		ClickedIndex: 1,
		Origin:       &SourceMessage{Kind: "search", Query: "jazz"},
	})
	require.NoError(t, err)

	require.True(t, stream.Receive(), "commit event: %v", stream.Err())
	next := stream.Msg()
	assert.False(t, next.Initial)
	assert.Greater(t, next.SequenceNo, first.SequenceNo)
	assert.Equal(t, uint64(2), next.State.Generation)
	assert.Equal(t, "z", next.State.Current().Track.TrackHash)
	assert.Equal(t, "Search: jazz", next.State.Origin.Label)

	// End the server side before the deferred Close drains the stream.
	cancel()
}

func TestQueueService_Control(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx := context.Background()

	idle, err := env.queue.PlayerStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "idle", idle.State)
	assert.Nil(t, idle.Track)

	_, err = env.queue.Control(ctx, "next")
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = env.queue.Recreate(ctx, &RecreateRequest{
		Tracks:       []catalog.Track{{TrackHash: "a", Duration: time.Minute}, {TrackHash: "b", Duration: time.Minute}},
		ClickedIndex: 0,
	})
	require.NoError(t, err)

	status, err := env.queue.Control(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, "playing", status.State)
	assert.Equal(t, 1, status.Index)
	assert.Equal(t, "b", status.Track.TrackHash)

	status, err = env.queue.Control(ctx, "pause")
	require.NoError(t, err)
	assert.Equal(t, "paused", status.State)

	_, err = env.queue.Control(ctx, "shuffle")
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	// The committed queue is untouched by player commands.
	current, err := env.queue.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, current.CurrentIndex)
}

func TestQueueService_ControlWithoutPlayer(t *testing.T) {
	service := NewQueueService(playback.NewHolder(), notification.NewManager(), nil)

	_, err := service.Control(context.Background(), connect.NewRequest(&ControlRequest{Command: "play"}))
	assert.Equal(t, connect.CodeUnimplemented, connect.CodeOf(err))
	_, err = service.PlayerStatus(context.Background(), connect.NewRequest(&PlayerStatusRequest{}))
	assert.Equal(t, connect.CodeUnimplemented, connect.CodeOf(err))
}

// Commits racing with watchers that disconnect must never write to a
// stream whose handler has returned. Run with -race.
func TestQueueService_CommitWhileWatchersLeave(t *testing.T) {
	env := newTestEnv(t, "", "")
	listing := []catalog.Track{{TrackHash: "a"}, {TrackHash: "b"}}

	stop := make(chan struct{})
	var committer sync.WaitGroup
	committer.Add(1)
	go func() {
		defer committer.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = env.holder.Select(listing, i%2, nil)
		}
	}()

	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		stream, err := env.queue.Watch(ctx)
		require.NoError(t, err)
		require.True(t, stream.Receive(), "initial event: %v", stream.Err())
		stream.Receive()
		cancel()
		_ = stream.Close()
	}

	close(stop)
	committer.Wait()

	assert.Eventually(t, func() bool { return env.notifications.SubscriberCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestQueueStreamAdapter_SendAfterClose(t *testing.T) {
	// A nil stream would panic if written to.
	adapter := &queueStreamAdapter{}
	adapter.close()

	err := adapter.Send(notification.Notification{State: queue.State{Generation: 3}})
	assert.ErrorIs(t, err, errStreamClosed)
	assert.Equal(t, uint64(0), adapter.sent)
}

func TestQueueService_CloseEndsWatch(t *testing.T) {
	env := newTestEnv(t, "", "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := env.queue.Watch(ctx)
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive())
	env.service.Close()

	assert.False(t, stream.Receive())
	assert.NoError(t, stream.Err())
}
