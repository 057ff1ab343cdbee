// Package paging turns "load page N" requests into validated pages with
// prev/next cursors, and helps callers assemble them in key order.
package paging

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// Key is a page sequence number. Page 0 is the first page.
type Key int

// KeyOf returns a pointer to k.
func KeyOf(k int) *Key {
	key := Key(k)
	return &key
}

// Offset returns the index of the first item on page k.
func Offset(k Key, pageSize int) int {
	return int(k) * pageSize
}

// Page is one loaded page with its cursors.
// PrevKey is nil only on page 0; NextKey is nil only when Items is empty.
type Page[T catalog.Item] struct {
	Key     Key
	Items   []T
	PrevKey *Key
	NextKey *Key
}

// NewPage maps a fetched item list onto a page with cursors.
// An empty page marks the end of the listing; no total count is consulted.
func NewPage[T catalog.Item](key Key, items []T) *Page[T] {
	if items == nil {
		items = []T{}
	}
	p := &Page[T]{Key: key, Items: items}
	if key > 0 {
		p.PrevKey = KeyOf(int(key) - 1)
	}
	if len(items) > 0 {
		p.NextKey = KeyOf(int(key) + 1)
	}
	return p
}

// Params are the per-call listing parameters.
type Params struct {
	PageSize  int
	SortBy    string
	SortOrder catalog.SortOrder
}

// FetchFunc retrieves one page of items from the remote catalog.
type FetchFunc[T catalog.Item] func(ctx context.Context, q catalog.Query) ([]T, error)

// Source loads pages of a single resource type. It holds no mutable state,
// so concurrent loads for different keys need no coordination.
type Source[T catalog.Item] struct {
	resource catalog.ResourceType
	fetch    FetchFunc[T]
}

// NewSource creates a new Source.
func NewSource[T catalog.Item](resource catalog.ResourceType, fetch FetchFunc[T]) *Source[T] {
	return &Source[T]{
		resource: resource,
		fetch:    fetch,
	}
}

// Resource returns the resource type served by the source.
func (s *Source[T]) Resource() catalog.ResourceType {
	return s.resource
}

// Load fetches page key (nil means page 0). The offset is forwarded to the
// remote catalog unclamped; an empty result is exhaustion, not an error.
// Fetch failures are returned as *LoadError. No retry is attempted.
// If ctx is cancelled, no page is returned even if the fetch completed.
func (s *Source[T]) Load(ctx context.Context, key *Key, params Params) (*Page[T], error) {
	k := Key(0)
	if key != nil {
		k = *key
	}
	if k < 0 {
		return nil, errors.Newf("invalid page key: %d", k)
	}
	if params.PageSize <= 0 {
		return nil, errors.Newf("invalid page size: %d", params.PageSize)
	}
	// The last index of the page must fit in an int.
	if int(k) > (math.MaxInt-params.PageSize)/params.PageSize {
		return nil, errors.Newf("page key %d out of range for page size %d", k, params.PageSize)
	}

	q := catalog.Query{
		Resource:   s.resource,
		StartIndex: Offset(k, params.PageSize),
		Limit:      params.PageSize,
		SortBy:     params.SortBy,
		SortOrder:  params.SortOrder,
	}

	zlog.Debug().Msgf("loading page: resource=%s key=%d start=%d limit=%d", s.resource, k, q.StartIndex, q.Limit)

	items, err := s.fetch(ctx, q)
	if err != nil {
		le := classify(k, err)
		zlog.Debug().Msgf("page load failed: resource=%s key=%d kind=%s err=%v", s.resource, k, le.Kind, err)
		return nil, le
	}
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Kind: KindTransport, Key: k, Err: err}
	}

	return NewPage(k, items), nil
}

// RefreshKey returns the page containing the anchor position, or nil when no
// anchor is known (refresh from the first page).
func RefreshKey(anchorPosition *int, pageSize int) *Key {
	if anchorPosition == nil || *anchorPosition < 0 || pageSize <= 0 {
		return nil
	}
	return KeyOf(*anchorPosition / pageSize)
}
