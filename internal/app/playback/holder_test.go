package playback

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/swingdeck/internal/domain/catalog"
	"github.com/osa030/swingdeck/internal/domain/queue"
)

// recordingPlayer records committed states.
type recordingPlayer struct {
	mu     sync.Mutex
	states []queue.State
}

func (p *recordingPlayer) OnQueueCommitted(state queue.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
}

func (p *recordingPlayer) committed() []queue.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.State, len(p.states))
	copy(out, p.states)
	return out
}

func tracks(hashes ...string) []catalog.Track {
	out := make([]catalog.Track, len(hashes))
	for i, h := range hashes {
		out[i] = catalog.Track{TrackHash: h, Title: "Song " + h}
	}
	return out
}

func TestHolder_InitialState(t *testing.T) {
	h := NewHolder()

	s := h.Current()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, -1, s.CurrentIndex)
	assert.Nil(t, s.Origin)
	assert.Nil(t, s.Current())
	assert.Equal(t, uint64(0), h.Generation())
}

func TestHolder_Select(t *testing.T) {
	player := &recordingPlayer{}
	h := NewHolder(player)
	origin := queue.AlbumSource{AlbumHash: "alb", Name: "Album"}

	committed, err := h.Select(tracks("A", "B", "C", "D", "E"), 2, origin)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), committed.Generation)
	assert.Equal(t, 2, committed.CurrentIndex)
	assert.Equal(t, origin, committed.Origin)

	cur := h.Current()
	assert.Equal(t, committed, cur)
	assert.Equal(t, "C", cur.Current().Track.TrackHash)

	states := player.committed()
	require.Len(t, states, 1)
	assert.Equal(t, committed, states[0])
}

func TestHolder_SelectFailureCommitsNothing(t *testing.T) {
	player := &recordingPlayer{}
	h := NewHolder(player)

	first, err := h.Select(tracks("A", "B"), 0, queue.FavoritesSource{})
	require.NoError(t, err)

	_, err = h.Select(tracks("X", "Y"), 5, queue.FavoritesSource{})
	assert.ErrorIs(t, err, queue.ErrInvalidSelection)

	_, err = h.Select(nil, 0, queue.FavoritesSource{})
	assert.ErrorIs(t, err, queue.ErrEmptySource)

	assert.Equal(t, first, h.Current())
	assert.Len(t, player.committed(), 1)
}

func TestHolder_CommitRejectsInvalidState(t *testing.T) {
	h := NewHolder()

	_, err := h.Commit(queue.State{Entries: []queue.Entry{{Track: catalog.Track{TrackHash: "A"}}}, CurrentIndex: 3})
	assert.ErrorIs(t, err, queue.ErrInvalidSelection)
	assert.True(t, h.Current().IsEmpty())
	assert.Equal(t, uint64(0), h.Generation())
}

func TestHolder_ReadersGetCopies(t *testing.T) {
	h := NewHolder()
	_, err := h.Select(tracks("A", "B"), 0, nil)
	require.NoError(t, err)

	s := h.Current()
	s.Entries[0].Track.Title = "mutated"
	s.CurrentIndex = 1

	again := h.Current()
	assert.Equal(t, "Song A", again.Entries[0].Track.Title)
	assert.Equal(t, 0, again.CurrentIndex)
}

func TestHolder_LastCommitWins(t *testing.T) {
	player := &recordingPlayer{}
	h := NewHolder(player)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			listing := tracks(fmt.Sprintf("t%d-a", i), fmt.Sprintf("t%d-b", i))
			_, err := h.Select(listing, i%2, queue.SearchSource{Query: fmt.Sprint(i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	states := player.committed()
	require.Len(t, states, n)

	// Players observe commits in generation order and the holder keeps the last.
	for i, s := range states {
		assert.Equal(t, uint64(i+1), s.Generation)
	}
	assert.Equal(t, states[n-1], h.Current())
	assert.Equal(t, uint64(n), h.Generation())
}

func TestHolder_ConcurrentReadersSeeCompleteStates(t *testing.T) {
	h := NewHolder()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				s := h.Current()
				if !assert.NoError(t, s.Validate()) {
					return
				}
				if s.Origin != nil {
					// Each listing is tagged with its own size.
					assert.Equal(t, fmt.Sprint(s.Len()), s.Origin.(queue.SearchSource).Query)
				}
			}
		}()
	}

	for i := 1; i <= 200; i++ {
		hashes := make([]string, i%7+1)
		for j := range hashes {
			hashes[j] = fmt.Sprintf("%d-%d", i, j)
		}
		_, err := h.Select(tracks(hashes...), len(hashes)-1, queue.SearchSource{Query: fmt.Sprint(len(hashes))})
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}

func TestHolder_AddPlayer(t *testing.T) {
	h := NewHolder()
	var got []uint64
	h.AddPlayer(PlayerFunc(func(s queue.State) { got = append(got, s.Generation) }))

	_, err := h.Select(tracks("A"), 0, nil)
	require.NoError(t, err)
	_, err = h.Select(tracks("B"), 0, nil)
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2}, got)
}
