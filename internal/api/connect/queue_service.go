package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/app/notification"
	"github.com/osa030/swingdeck/internal/app/playback"
	"github.com/osa030/swingdeck/internal/domain/queue"
)

const (
	// QueueServiceName is the fully-qualified name of the QueueService.
	QueueServiceName = "swingdeck.v1.QueueService"
	// QueueServiceRecreateProcedure is the path of the Recreate RPC.
	QueueServiceRecreateProcedure = "/" + QueueServiceName + "/Recreate"
	// QueueServiceCurrentProcedure is the path of the Current RPC.
	QueueServiceCurrentProcedure = "/" + QueueServiceName + "/Current"
	// QueueServiceWatchProcedure is the path of the Watch RPC.
	QueueServiceWatchProcedure = "/" + QueueServiceName + "/Watch"
	// QueueServiceControlProcedure is the path of the Control RPC.
	QueueServiceControlProcedure = "/" + QueueServiceName + "/Control"
	// QueueServicePlayerStatusProcedure is the path of the PlayerStatus RPC.
	QueueServicePlayerStatusProcedure = "/" + QueueServiceName + "/PlayerStatus"
)

// QueueService implements the QueueService RPC.
type QueueService struct {
	holder        *playback.Holder
	notifications *notification.Manager
	player        *playback.Controller
	done          chan struct{}
	closeOnce     sync.Once
}

// NewQueueService creates a new QueueService. player may be nil, in which
// case the player RPCs are unimplemented.
func NewQueueService(holder *playback.Holder, notifications *notification.Manager, player *playback.Controller) *QueueService {
	return &QueueService{
		holder:        holder,
		notifications: notifications,
		player:        player,
		done:          make(chan struct{}),
	}
}

// Handler returns the service path and its HTTP handler.
func (s *QueueService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(QueueServiceRecreateProcedure, connect.NewUnaryHandler(QueueServiceRecreateProcedure, s.Recreate, opts...))
	mux.Handle(QueueServiceCurrentProcedure, connect.NewUnaryHandler(QueueServiceCurrentProcedure, s.Current, opts...))
	mux.Handle(QueueServiceWatchProcedure, connect.NewServerStreamHandler(QueueServiceWatchProcedure, s.Watch, opts...))
	mux.Handle(QueueServiceControlProcedure, connect.NewUnaryHandler(QueueServiceControlProcedure, s.Control, opts...))
	mux.Handle(QueueServicePlayerStatusProcedure, connect.NewUnaryHandler(QueueServicePlayerStatusProcedure, s.PlayerStatus, opts...))
	return "/" + QueueServiceName + "/", mux
}

// Close ends all open Watch streams.
func (s *QueueService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Recreate rebuilds the queue from the listing and commits it.
func (s *QueueService) Recreate(
	ctx context.Context,
	req *connect.Request[RecreateRequest],
) (*connect.Response[QueueStateMessage], error) {
	origin, err := fromSourceMessage(req.Msg.Origin)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	state, err := s.holder.Select(req.Msg.Tracks, req.Msg.ClickedIndex, origin)
	if err != nil {
		if errors.Is(err, queue.ErrEmptySource) || errors.Is(err, queue.ErrInvalidSelection) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	zlog.Info().Msgf("queue recreated: generation=%d %s origin=%s", state.Generation, state.Position(), queue.KindOf(state.Origin))

	msg := toQueueStateMessage(state)
	return connect.NewResponse(&msg), nil
}

// Current returns the committed queue.
func (s *QueueService) Current(
	ctx context.Context,
	req *connect.Request[CurrentRequest],
) (*connect.Response[QueueStateMessage], error) {
	msg := toQueueStateMessage(s.holder.Current())
	return connect.NewResponse(&msg), nil
}

// Control runs a player command and returns the resulting status.
func (s *QueueService) Control(
	ctx context.Context,
	req *connect.Request[ControlRequest],
) (*connect.Response[PlayerStatusMessage], error) {
	if s.player == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("no player configured"))
	}

	if err := s.player.Do(req.Msg.Command); err != nil {
		switch {
		case errors.Is(err, playback.ErrUnknownCmd):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		default:
			return nil, connect.NewError(connect.CodeFailedPrecondition, err)
		}
	}

	zlog.Info().Msgf("player command: %s", req.Msg.Command)
	return connect.NewResponse(toPlayerStatusMessage(s.player.Status())), nil
}

// PlayerStatus returns what the player is doing.
func (s *QueueService) PlayerStatus(
	ctx context.Context,
	req *connect.Request[PlayerStatusRequest],
) (*connect.Response[PlayerStatusMessage], error) {
	if s.player == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("no player configured"))
	}
	return connect.NewResponse(toPlayerStatusMessage(s.player.Status())), nil
}

// Watch streams the current queue followed by every later commit.
func (s *QueueService) Watch(
	ctx context.Context,
	req *connect.Request[WatchRequest],
	stream *connect.ServerStream[QueueEvent],
) error {
	adapter := &queueStreamAdapter{stream: stream}

	// Hold the adapter until the initial state is out, so a concurrent
	// commit is delivered after it (or dropped if already included).
	adapter.mu.Lock()
	subscriptionID := s.notifications.Subscribe(adapter)
	// The stream must not be written once the handler returns.
	defer adapter.close()
	defer s.notifications.Unsubscribe(subscriptionID)

	current := s.holder.Current()
	adapter.sent = current.Generation
	err := stream.Send(&QueueEvent{
		SequenceNo: s.notifications.NextSequenceNo(),
		Initial:    true,
		State:      toQueueStateMessage(current),
	})
	adapter.mu.Unlock()
	if err != nil {
		return err
	}

	zlog.Debug().Msgf("queue watcher subscribed: id=%s generation=%d", subscriptionID, current.Generation)

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return nil
}

// queueStreamAdapter adapts connect.ServerStream to notification.Stream.
type queueStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[QueueEvent]
	sent   uint64 // Highest generation delivered
	closed bool
}

// errStreamClosed is returned by Send after the Watch handler has returned.
var errStreamClosed = errors.New("watch stream closed")

func (a *queueStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

func (a *queueStreamAdapter) Send(n notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errStreamClosed
	}
	if n.State.Generation <= a.sent {
		return nil
	}
	if err := a.stream.Send(&QueueEvent{
		SequenceNo: n.SequenceNo,
		State:      toQueueStateMessage(n.State),
	}); err != nil {
		return err
	}
	a.sent = n.State.Generation
	return nil
}
