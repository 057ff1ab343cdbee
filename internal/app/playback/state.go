package playback

import "github.com/osa030/swingdeck/internal/domain/queue"

// State represents the controller's playback state.
type State int

const (
	StateIdle    State = iota // Nothing playing (no queue, stopped or finished)
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted EventType = iota // Track started playing
	EventTrackEnded                    // Track played to its end
	EventTrackSkipped                  // Track was left by Next, Previous or a new queue
	EventStateChanged                  // Paused, resumed or stopped
	EventQueueEnded                    // Last entry finished
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueEnded:
		return "queue_ended"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	Entry      *queue.Entry // Entry the event is about (nil for some events)
	Index      int          // Queue position of Entry, -1 if none
	Generation uint64       // Queue generation being played
	State      State        // Playback state after the event
}
