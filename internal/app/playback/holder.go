// Package playback holds the process-wide playback queue and informs the
// playback collaborators of every change.
package playback

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/domain/catalog"
	"github.com/osa030/swingdeck/internal/domain/queue"
)

// Player is notified after every commit and is responsible for starting
// playback at the committed current index.
type Player interface {
	OnQueueCommitted(state queue.State)
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(state queue.State)

// OnQueueCommitted calls f(state).
func (f PlayerFunc) OnQueueCommitted(state queue.State) { f(state) }

// Holder is the single mutable cell holding the current queue.
// Readers never take a lock and always see a complete state. Writers are
// serialised, so the last commit wins and players see commits in order.
type Holder struct {
	current atomic.Pointer[queue.State]

	mu         sync.Mutex // serialises commits and player notification
	generation uint64
	players    []Player
}

// NewHolder creates a holder with the empty initial state.
func NewHolder(players ...Player) *Holder {
	h := &Holder{players: players}
	empty := queue.Empty()
	h.current.Store(&empty)
	return h
}

// AddPlayer registers a player for subsequent commits.
func (h *Holder) AddPlayer(p Player) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players = append(h.players, p)
}

// Current returns a copy of the current state.
func (h *Holder) Current() queue.State {
	return h.current.Load().Clone()
}

// Generation returns the generation of the current state (0 before the first commit).
func (h *Holder) Generation() uint64 {
	return h.current.Load().Generation
}

// Commit replaces the current state in one step and notifies the players.
// An invalid state is rejected and nothing is committed.
func (h *Holder) Commit(state queue.State) (queue.State, error) {
	if err := state.Validate(); err != nil {
		return queue.State{}, errors.Wrap(err, "refusing to commit queue")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.generation++
	committed := state.Clone()
	committed.Generation = h.generation
	h.current.Store(&committed)

	zlog.Debug().Msgf("queue committed: generation=%d entries=%d current=%d origin=%s",
		committed.Generation, committed.Len(), committed.CurrentIndex, queue.KindOf(committed.Origin))

	for _, p := range h.players {
		p.OnQueueCommitted(committed.Clone())
	}

	return committed.Clone(), nil
}

// Select rebuilds the queue from the listing the user is viewing and commits
// it. If the listing or index is invalid nothing is committed.
func (h *Holder) Select(listing []catalog.Track, clickedIndex int, origin queue.Source) (queue.State, error) {
	state, err := queue.Recreate(listing, clickedIndex, origin)
	if err != nil {
		return queue.State{}, err
	}
	return h.Commit(state)
}
