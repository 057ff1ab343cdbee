package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/swingdeck/internal/domain/queue"
)

// Errors
var (
	ErrNoTrack    = errors.New("no track playing")
	ErrNotPlaying = errors.New("not playing")
	ErrNotPaused  = errors.New("not paused")
	ErrEndOfQueue = errors.New("end of queue")
	ErrEmptyQueue = errors.New("queue is empty")
	ErrUnknownCmd = errors.New("unknown playback command")
)

const (
	// restartCutoff is how far into a track Previous restarts it instead of
	// stepping back.
	restartCutoff  = 3 * time.Second
	defaultHistory = 100
)

// ControllerConfig holds controller configuration.
type ControllerConfig struct {
	GapCorrection time.Duration // Added to every track's end timer to absorb client drift
	HistorySize   int           // Played entries kept; 0 means 100
	TickInterval  time.Duration // Timer resolution; 0 means 100ms
}

// Status is a snapshot of the controller.
type Status struct {
	State      State
	Generation uint64
	Index      int          // -1 when nothing is loaded
	Entry      *queue.Entry // nil when nothing is loaded
	Elapsed    time.Duration
	Remaining  time.Duration
	QueueLen   int
	Played     int
}

// Controller plays committed queues. It is a Player: every commit replaces
// what it plays and starts the committed current entry. It never changes the
// committed queue; its position moves on its own as tracks end or the user
// skips, and it keeps a history of played entries.
type Controller struct {
	mu sync.Mutex

	entries    []queue.Entry
	index      int
	generation uint64
	played     []queue.Entry

	state         State
	startTime     time.Time
	pausedAt      *time.Time
	pausedElapsed time.Duration

	timerCancel func()
	playID      uint64 // Identifies the current start; stale timers compare against it

	config  ControllerConfig
	eventCh chan Event
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewController creates a new playback controller.
func NewController(config ControllerConfig) *Controller {
	if config.HistorySize <= 0 {
		config.HistorySize = defaultHistory
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		index:   -1,
		state:   StateIdle,
		config:  config,
		eventCh: make(chan Event, 32),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Events returns the event channel. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// OnQueueCommitted loads the committed queue and starts its current entry.
// An empty queue stops playback.
func (c *Controller) OnQueueCommitted(state queue.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return
	}
	if cur := c.currentLocked(); cur != nil && c.state != StateIdle {
		c.stopTimerLocked()
		c.archiveLocked(*cur)
		c.sendEventLocked(EventTrackSkipped, cur)
	}

	c.entries = state.Entries
	c.generation = state.Generation
	c.index = state.CurrentIndex

	if state.IsEmpty() {
		c.stopLocked()
		c.sendEventLocked(EventStateChanged, nil)
		return
	}
	c.startLocked()
}

// Next skips to the following entry. On the last entry it returns
// ErrEndOfQueue and the entry keeps playing.
func (c *Controller) Next() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.currentLocked()
	if cur == nil {
		return ErrNoTrack
	}
	if c.index+1 >= len(c.entries) {
		return ErrEndOfQueue
	}

	c.stopTimerLocked()
	c.archiveLocked(*cur)
	c.sendEventLocked(EventTrackSkipped, cur)

	c.index++
	c.startLocked()
	return nil
}

// Previous restarts the current entry once it has played for a few seconds,
// and otherwise steps back one entry. On the first entry it always restarts.
func (c *Controller) Previous() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.currentLocked()
	if cur == nil {
		return ErrNoTrack
	}

	c.stopTimerLocked()
	if c.index > 0 && c.elapsedLocked() < restartCutoff {
		c.sendEventLocked(EventTrackSkipped, cur)
		c.index--
	}
	c.startLocked()
	return nil
}

// Pause pauses the current playback.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentLocked() == nil {
		return ErrNoTrack
	}
	if c.state != StatePlaying {
		return ErrNotPlaying
	}

	c.stopTimerLocked()
	now := toWallTime(time.Now())
	c.pausedAt = &now
	c.state = StatePaused

	c.sendEventLocked(EventStateChanged, c.currentLocked())
	return nil
}

// Resume resumes paused playback.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumeLocked()
}

func (c *Controller) resumeLocked() error {
	if c.currentLocked() == nil {
		return ErrNoTrack
	}
	if c.state != StatePaused {
		return ErrNotPaused
	}

	if c.pausedAt != nil {
		c.pausedElapsed += toWallTime(time.Now()).Sub(*c.pausedAt)
	}
	c.pausedAt = nil
	c.state = StatePlaying

	if d := c.currentLocked().Track.Duration; d > 0 {
		remaining := d + c.config.GapCorrection - c.elapsedLocked()
		if remaining <= 0 {
			c.onTrackEndLocked()
			return nil
		}
		c.startTrackTimerLocked(remaining)
	}

	c.sendEventLocked(EventStateChanged, c.currentLocked())
	return nil
}

// Stop stops playback and keeps the loaded queue. Play restarts the
// current entry.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return nil
	}
	c.stopLocked()
	c.sendEventLocked(EventStateChanged, c.currentLocked())
	return nil
}

// Play starts the current entry when idle and resumes when paused.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StatePlaying:
		return nil
	case StatePaused:
		return c.resumeLocked()
	}
	if len(c.entries) == 0 {
		return ErrEmptyQueue
	}
	if c.index < 0 || c.index >= len(c.entries) {
		// Finished queue: start over.
		c.index = 0
	}
	c.startLocked()
	return nil
}

// Do runs a named command: play, pause, resume, stop, next or previous.
func (c *Controller) Do(command string) error {
	switch command {
	case "play":
		return c.Play()
	case "pause":
		return c.Pause()
	case "resume":
		return c.Resume()
	case "stop":
		return c.Stop()
	case "next":
		return c.Next()
	case "previous", "prev":
		return c.Previous()
	default:
		return errors.Wrapf(ErrUnknownCmd, "%q", command)
	}
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:      c.state,
		Generation: c.generation,
		Index:      -1,
		QueueLen:   len(c.entries),
		Played:     len(c.played),
	}
	if cur := c.currentLocked(); cur != nil {
		s.Index = c.index
		s.Entry = cur
		if c.state != StateIdle {
			s.Elapsed = c.elapsedLocked()
			if d := cur.Track.Duration; d > s.Elapsed {
				s.Remaining = d - s.Elapsed
			}
		}
	}
	return s
}

// History returns a copy of the played entries, oldest first.
func (c *Controller) History() []queue.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]queue.Entry, len(c.played))
	copy(out, c.played)
	return out
}

// Close stops playback and closes the event channel.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return
	}
	c.stopLocked()
	c.cancel()
	close(c.eventCh)
}

func (c *Controller) currentLocked() *queue.Entry {
	if c.index < 0 || c.index >= len(c.entries) {
		return nil
	}
	e := c.entries[c.index]
	return &e
}

// startLocked plays the entry at c.index from its beginning.
func (c *Controller) startLocked() {
	c.stopTimerLocked()
	cur := c.currentLocked()

	c.state = StatePlaying
	c.startTime = toWallTime(time.Now())
	c.pausedAt = nil
	c.pausedElapsed = 0

	// Unknown durations play until skipped.
	if d := cur.Track.Duration; d > 0 {
		c.startTrackTimerLocked(d + c.config.GapCorrection)
	}

	zlog.Debug().Msgf("playback: started %d/%d: track=%s duration=%v generation=%d",
		c.index+1, len(c.entries), cur.Track.Title, cur.Track.Duration, c.generation)
	c.sendEventLocked(EventTrackStarted, cur)
}

func (c *Controller) stopLocked() {
	c.stopTimerLocked()
	c.state = StateIdle
	c.pausedAt = nil
	c.pausedElapsed = 0
	c.startTime = time.Time{}
}

func (c *Controller) stopTimerLocked() {
	c.playID++
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	end := toWallTime(time.Now())
	if c.pausedAt != nil {
		end = *c.pausedAt
	}
	return end.Sub(c.startTime) - c.pausedElapsed
}

func (c *Controller) archiveLocked(e queue.Entry) {
	c.played = append(c.played, e)
	if over := len(c.played) - c.config.HistorySize; over > 0 {
		c.played = append([]queue.Entry(nil), c.played[over:]...)
	}
}

// onTrackEndLocked advances after the current entry played to its end.
func (c *Controller) onTrackEndLocked() {
	cur := c.currentLocked()
	if cur == nil {
		return
	}
	c.stopTimerLocked()
	c.archiveLocked(*cur)
	c.sendEventLocked(EventTrackEnded, cur)

	if c.index+1 >= len(c.entries) {
		zlog.Debug().Msgf("playback: queue finished: generation=%d", c.generation)
		c.index = len(c.entries)
		c.stopLocked()
		c.sendEventLocked(EventQueueEnded, nil)
		return
	}
	c.index++
	c.startLocked()
}

// sendEventLocked sends an event without blocking.
func (c *Controller) sendEventLocked(t EventType, entry *queue.Entry) {
	if c.ctx.Err() != nil {
		return
	}
	e := Event{Type: t, Entry: entry, Index: -1, Generation: c.generation, State: c.state}
	if entry != nil {
		e.Index = c.index
	}
	select {
	case c.eventCh <- e:
	default:
		zlog.Warn().Msgf("playback: event dropped: %s", t)
	}
}

// startTrackTimerLocked arms the end-of-track timer for the current start.
func (c *Controller) startTrackTimerLocked(d time.Duration) {
	id := c.playID
	c.timerCancel = c.startWallClockTimer(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.playID != id || c.state != StatePlaying {
			return
		}
		c.onTrackEndLocked()
	})
}

// startWallClockTimer calls callback once duration has passed on the wall
// clock. It returns a cancel function.
func (c *Controller) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(c.ctx)
	endTime := toWallTime(time.Now()).Add(duration)

	go func() {
		ticker := time.NewTicker(c.config.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime strips the monotonic clock reading so differences follow the
// wall clock.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
