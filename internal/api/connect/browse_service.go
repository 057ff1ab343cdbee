package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/app/library"
	"github.com/osa030/swingdeck/internal/app/paging"
	"github.com/osa030/swingdeck/internal/domain/catalog"
)

const (
	// BrowseServiceName is the fully-qualified name of the BrowseService.
	BrowseServiceName = "swingdeck.v1.BrowseService"
	// BrowseServiceLoadPageProcedure is the path of the LoadPage RPC.
	BrowseServiceLoadPageProcedure = "/" + BrowseServiceName + "/LoadPage"
	// BrowseServiceArtistInfoProcedure is the path of the ArtistInfo RPC.
	BrowseServiceArtistInfoProcedure = "/" + BrowseServiceName + "/ArtistInfo"

	// LoadErrorKindHeader carries the paging.ErrorKind of a failed load.
	LoadErrorKindHeader = "X-Load-Error-Kind"
)

// BrowseService implements the BrowseService RPC.
type BrowseService struct {
	library  *library.Library
	defaults paging.Params
}

// NewBrowseService creates a new BrowseService. defaults fill in request
// fields left empty by the caller.
func NewBrowseService(lib *library.Library, defaults paging.Params) *BrowseService {
	return &BrowseService{
		library:  lib,
		defaults: defaults,
	}
}

// Handler returns the service path and its HTTP handler.
func (s *BrowseService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	mux := http.NewServeMux()
	mux.Handle(BrowseServiceLoadPageProcedure, connect.NewUnaryHandler(BrowseServiceLoadPageProcedure, s.LoadPage, opts...))
	mux.Handle(BrowseServiceArtistInfoProcedure, connect.NewUnaryHandler(BrowseServiceArtistInfoProcedure, s.ArtistInfo, opts...))
	return "/" + BrowseServiceName + "/", mux
}

// LoadPage loads one page of the requested resource.
func (s *BrowseService) LoadPage(
	ctx context.Context,
	req *connect.Request[LoadPageRequest],
) (*connect.Response[LoadPageResponse], error) {
	resource, err := catalog.ParseResourceType(req.Msg.Resource)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	params, err := s.params(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	var key *paging.Key
	if req.Msg.Key != nil {
		key = paging.KeyOf(*req.Msg.Key)
	}

	resp := &LoadPageResponse{Resource: string(resource)}
	switch resource {
	case catalog.ResourceArtists:
		page, err := s.library.Artists.Load(ctx, key, params)
		if err != nil {
			return nil, loadError(err)
		}
		resp.Artists = page.Items
		fillCursors(resp, page.Key, page.PrevKey, page.NextKey)
	case catalog.ResourceAlbums:
		page, err := s.library.Albums.Load(ctx, key, params)
		if err != nil {
			return nil, loadError(err)
		}
		resp.Albums = page.Items
		fillCursors(resp, page.Key, page.PrevKey, page.NextKey)
	case catalog.ResourceTracks:
		page, err := s.library.Tracks.Load(ctx, key, params)
		if err != nil {
			return nil, loadError(err)
		}
		resp.Tracks = page.Items
		fillCursors(resp, page.Key, page.PrevKey, page.NextKey)
	}

	return connect.NewResponse(resp), nil
}

// ArtistInfo loads an artist's tracks and discography.
func (s *BrowseService) ArtistInfo(
	ctx context.Context,
	req *connect.Request[ArtistInfoRequest],
) (*connect.Response[ArtistInfoResponse], error) {
	info, err := s.library.ArtistInfo(ctx, req.Msg.ArtistHash)
	if err != nil {
		if errors.Is(err, library.ErrMissingArtistHash) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		kind := paging.KindOf(err)
		zlog.Warn().Msgf("artist info failed: artist=%s kind=%s: %v", req.Msg.ArtistHash, kind, err)
		return nil, kindError(kind, err)
	}

	tracks := info.Tracks
	if tracks == nil {
		tracks = []catalog.Track{}
	}
	return connect.NewResponse(&ArtistInfoResponse{
		Artist:      info.Artist,
		Tracks:      tracks,
		Discography: info.Discography,
	}), nil
}

func (s *BrowseService) params(msg *LoadPageRequest) (paging.Params, error) {
	params := s.defaults
	if msg.PageSize != 0 {
		params.PageSize = msg.PageSize
	}
	if msg.SortBy != "" {
		params.SortBy = msg.SortBy
	}
	if msg.SortOrder != "" {
		order, err := catalog.ParseSortOrder(msg.SortOrder)
		if err != nil {
			return paging.Params{}, err
		}
		params.SortOrder = order
	}
	if params.PageSize <= 0 {
		return paging.Params{}, errors.Newf("invalid page size: %d", params.PageSize)
	}
	return params, nil
}

func fillCursors(resp *LoadPageResponse, key paging.Key, prev, next *paging.Key) {
	resp.Key = int(key)
	if prev != nil {
		p := int(*prev)
		resp.PrevKey = &p
	}
	if next != nil {
		n := int(*next)
		resp.NextKey = &n
	}
}

// loadError maps a failed load onto a Connect error. Transport failures are
// retryable (Unavailable); rejections need external action (FailedPrecondition).
func loadError(err error) error {
	le, ok := paging.AsLoadError(err)
	if !ok {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	zlog.Warn().Msgf("page load failed: key=%d kind=%s: %v", le.Key, le.Kind, le.Err)
	return kindError(le.Kind, err)
}

// kindError wraps err in a Connect error whose code and meta header carry kind.
func kindError(kind paging.ErrorKind, err error) *connect.Error {
	code := connect.CodeUnavailable
	if kind == paging.KindRemoteRejected {
		code = connect.CodeFailedPrecondition
	}
	cerr := connect.NewError(code, err)
	cerr.Meta().Set(LoadErrorKindHeader, kind.String())
	return cerr
}
