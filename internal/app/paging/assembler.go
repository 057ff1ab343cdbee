package paging

import (
	"sort"
	"sync"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// Assembler collects loaded pages in whatever order they arrive and exposes
// them as one list in key order. Items are deduplicated by hash, so a listing
// that shifted between page loads does not show the same item twice.
type Assembler[T catalog.Item] struct {
	mu    sync.RWMutex
	pages map[Key]*Page[T]
}

// NewAssembler creates an empty assembler.
func NewAssembler[T catalog.Item]() *Assembler[T] {
	return &Assembler[T]{
		pages: make(map[Key]*Page[T]),
	}
}

// Accept stores a page, replacing any page previously stored under its key.
func (a *Assembler[T]) Accept(p *Page[T]) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages[p.Key] = p
}

// Loaded reports whether page k has been accepted.
func (a *Assembler[T]) Loaded(k Key) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.pages[k]
	return ok
}

// Reset drops all pages.
func (a *Assembler[T]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages = make(map[Key]*Page[T])
}

// Items returns the items of the contiguous run of pages starting at the
// lowest loaded key, in key order.
func (a *Assembler[T]) Items() []T {
	a.mu.RLock()
	defer a.mu.RUnlock()

	run := a.runLocked()
	seen := make(map[string]struct{})
	items := make([]T, 0)
	for _, p := range run {
		for _, it := range p.Items {
			h := it.Hash()
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			items = append(items, it)
		}
	}
	return items
}

// FirstKey returns the first key of the contiguous run, or nil if nothing is loaded.
func (a *Assembler[T]) FirstKey() *Key {
	a.mu.RLock()
	defer a.mu.RUnlock()
	run := a.runLocked()
	if len(run) == 0 {
		return nil
	}
	k := run[0].Key
	return &k
}

// PrevKey returns the key to load before the run, or nil when the run
// starts at page 0 or nothing is loaded.
func (a *Assembler[T]) PrevKey() *Key {
	a.mu.RLock()
	defer a.mu.RUnlock()
	run := a.runLocked()
	if len(run) == 0 {
		return nil
	}
	return run[0].PrevKey
}

// NextKey returns the key to load after the run. It is page 0 when nothing
// is loaded and nil once the listing is exhausted.
func (a *Assembler[T]) NextKey() *Key {
	a.mu.RLock()
	defer a.mu.RUnlock()
	run := a.runLocked()
	if len(run) == 0 {
		return KeyOf(0)
	}
	return run[len(run)-1].NextKey
}

// Exhausted reports whether the run ends with an empty page.
func (a *Assembler[T]) Exhausted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	run := a.runLocked()
	return len(run) > 0 && run[len(run)-1].NextKey == nil
}

// runLocked returns the pages of the contiguous run in key order.
// Must be called with a.mu held.
func (a *Assembler[T]) runLocked() []*Page[T] {
	if len(a.pages) == 0 {
		return nil
	}
	keys := make([]Key, 0, len(a.pages))
	for k := range a.pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	run := []*Page[T]{a.pages[keys[0]]}
	for i := 1; i < len(keys); i++ {
		prev := run[len(run)-1]
		if keys[i] != prev.Key+1 || prev.NextKey == nil {
			break
		}
		run = append(run, a.pages[keys[i]])
	}
	return run
}
