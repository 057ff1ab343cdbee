package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// BrowseClient is a client for the BrowseService.
type BrowseClient struct {
	loadPage   *connect.Client[LoadPageRequest, LoadPageResponse]
	artistInfo *connect.Client[ArtistInfoRequest, ArtistInfoResponse]
}

// NewBrowseClient creates a BrowseClient for the server at baseURL.
func NewBrowseClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BrowseClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &BrowseClient{
		loadPage:   connect.NewClient[LoadPageRequest, LoadPageResponse](httpClient, baseURL+BrowseServiceLoadPageProcedure, opts...),
		artistInfo: connect.NewClient[ArtistInfoRequest, ArtistInfoResponse](httpClient, baseURL+BrowseServiceArtistInfoProcedure, opts...),
	}
}

// LoadPage calls swingdeck.v1.BrowseService.LoadPage.
func (c *BrowseClient) LoadPage(ctx context.Context, req *LoadPageRequest) (*LoadPageResponse, error) {
	resp, err := c.loadPage.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ArtistInfo calls swingdeck.v1.BrowseService.ArtistInfo.
func (c *BrowseClient) ArtistInfo(ctx context.Context, artistHash string) (*ArtistInfoResponse, error) {
	resp, err := c.artistInfo.CallUnary(ctx, connect.NewRequest(&ArtistInfoRequest{ArtistHash: artistHash}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// QueueClient is a client for the QueueService.
type QueueClient struct {
	recreate *connect.Client[RecreateRequest, QueueStateMessage]
	current  *connect.Client[CurrentRequest, QueueStateMessage]
	watch    *connect.Client[WatchRequest, QueueEvent]
	control  *connect.Client[ControlRequest, PlayerStatusMessage]
	status   *connect.Client[PlayerStatusRequest, PlayerStatusMessage]
}

// NewQueueClient creates a QueueClient for the server at baseURL.
func NewQueueClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *QueueClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &QueueClient{
		recreate: connect.NewClient[RecreateRequest, QueueStateMessage](httpClient, baseURL+QueueServiceRecreateProcedure, opts...),
		current:  connect.NewClient[CurrentRequest, QueueStateMessage](httpClient, baseURL+QueueServiceCurrentProcedure, opts...),
		watch:    connect.NewClient[WatchRequest, QueueEvent](httpClient, baseURL+QueueServiceWatchProcedure, opts...),
		control:  connect.NewClient[ControlRequest, PlayerStatusMessage](httpClient, baseURL+QueueServiceControlProcedure, opts...),
		status:   connect.NewClient[PlayerStatusRequest, PlayerStatusMessage](httpClient, baseURL+QueueServicePlayerStatusProcedure, opts...),
	}
}

// Recreate calls swingdeck.v1.QueueService.Recreate.
func (c *QueueClient) Recreate(ctx context.Context, req *RecreateRequest) (*QueueStateMessage, error) {
	resp, err := c.recreate.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Current calls swingdeck.v1.QueueService.Current.
func (c *QueueClient) Current(ctx context.Context) (*QueueStateMessage, error) {
	resp, err := c.current.CallUnary(ctx, connect.NewRequest(&CurrentRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Watch calls swingdeck.v1.QueueService.Watch. The caller must close the stream.
func (c *QueueClient) Watch(ctx context.Context) (*connect.ServerStreamForClient[QueueEvent], error) {
	return c.watch.CallServerStream(ctx, connect.NewRequest(&WatchRequest{}))
}

// Control calls swingdeck.v1.QueueService.Control.
func (c *QueueClient) Control(ctx context.Context, command string) (*PlayerStatusMessage, error) {
	resp, err := c.control.CallUnary(ctx, connect.NewRequest(&ControlRequest{Command: command}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// PlayerStatus calls swingdeck.v1.QueueService.PlayerStatus.
func (c *QueueClient) PlayerStatus(ctx context.Context) (*PlayerStatusMessage, error) {
	resp, err := c.status.CallUnary(ctx, connect.NewRequest(&PlayerStatusRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
