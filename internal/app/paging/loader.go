package paging

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// call tracks one in-flight load.
type call struct {
	id     uint64
	cancel context.CancelFunc
}

// Loader drives a Source on behalf of one displayed list and feeds an
// Assembler. A newer load of a key cancels the older one, and a cancelled
// load never reaches the assembler.
type Loader[T catalog.Item] struct {
	source    *Source[T]
	assembler *Assembler[T]
	params    Params

	mu       sync.Mutex
	inflight map[Key]*call
	seq      uint64
}

// NewLoader creates a new Loader with its own assembler.
func NewLoader[T catalog.Item](source *Source[T], params Params) *Loader[T] {
	return &Loader[T]{
		source:    source,
		assembler: NewAssembler[T](),
		params:    params,
		inflight:  make(map[Key]*call),
	}
}

// Assembler returns the assembler fed by this loader.
func (l *Loader[T]) Assembler() *Assembler[T] {
	return l.assembler
}

// Params returns the listing parameters used for every load.
func (l *Loader[T]) Params() Params {
	return l.params
}

// Load loads page key and hands it to the assembler. Any earlier in-flight
// load of the same key is cancelled; if it still completes, its page is
// dropped and it fails with ErrSuperseded. A failed load leaves already
// accepted pages untouched.
func (l *Loader[T]) Load(ctx context.Context, key Key) (*Page[T], error) {
	ctx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	if prev, ok := l.inflight[key]; ok {
		prev.cancel()
	}
	l.seq++
	c := &call{id: l.seq, cancel: cancel}
	l.inflight[key] = c
	l.mu.Unlock()

	defer l.finish(key, c)

	page, err := l.source.Load(ctx, &key, l.params)

	l.mu.Lock()
	current := l.inflight[key] == c
	if current && err == nil {
		l.assembler.Accept(page)
	}
	l.mu.Unlock()

	switch {
	case !current && err != nil:
		return nil, &LoadError{Kind: KindTransport, Key: key, Err: errors.Wrapf(ErrSuperseded, "%v", err)}
	case !current:
		return nil, &LoadError{Kind: KindTransport, Key: key, Err: ErrSuperseded}
	case err != nil:
		return nil, err
	}
	return page, nil
}

// finish releases the call's resources and forgets it if it is still current.
func (l *Loader[T]) finish(key Key, c *call) {
	c.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.inflight[key]; ok && cur.id == c.id {
		delete(l.inflight, key)
	}
}

// LoadNext loads the page after the assembled run. It returns nil, nil
// when the listing is exhausted.
func (l *Loader[T]) LoadNext(ctx context.Context) (*Page[T], error) {
	next := l.assembler.NextKey()
	if next == nil {
		return nil, nil
	}
	return l.Load(ctx, *next)
}

// LoadAround loads the anchor page together with one page behind and one
// page ahead, concurrently. Neighbours already loaded are not reloaded.
func (l *Loader[T]) LoadAround(ctx context.Context, anchor Key) error {
	keys := []Key{anchor}
	if anchor > 0 && !l.assembler.Loaded(anchor-1) {
		keys = append(keys, anchor-1)
	}
	if !l.assembler.Loaded(anchor + 1) {
		keys = append(keys, anchor+1)
	}

	errs := make([]error, len(keys))
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		go func(i int, k Key) {
			defer wg.Done()
			_, errs[i] = l.Load(ctx, k)
		}(i, k)
	}
	wg.Wait()

	var combined error
	for _, err := range errs {
		combined = errors.CombineErrors(combined, err)
	}
	return combined
}

// Refresh drops all pages and reloads around the anchor position
// (page 0 when no anchor is known).
func (l *Loader[T]) Refresh(ctx context.Context, anchorPosition *int) error {
	anchor := Key(0)
	if k := RefreshKey(anchorPosition, l.params.PageSize); k != nil {
		anchor = *k
	}
	zlog.Debug().Msgf("refreshing listing: resource=%s anchor=%d", l.source.Resource(), anchor)

	l.assembler.Reset()
	return l.LoadAround(ctx, anchor)
}
