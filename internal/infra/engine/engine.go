// Package engine defines the audio engine surface consumed by the playback
// session and provides the MPD-backed implementation.
package engine

import (
	"context"
	"time"

	"github.com/soundtide/soundtide-backend/internal/domain/track"
)

// State is the engine's own playback state.
type State string

const (
	StateNone      State = "none"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
)

// Capability identifies a remote-control action the engine should expose to
// the OS media surface (lock screen, headset buttons).
type Capability string

const (
	CapabilityPlay           Capability = "play"
	CapabilityPause          Capability = "pause"
	CapabilitySkipToNext     Capability = "skip-to-next"
	CapabilitySkipToPrevious Capability = "skip-to-previous"
	CapabilitySeekTo         Capability = "seek-to"
)

// SetupOptions configures the one-time engine setup.
type SetupOptions struct {
	Capabilities        []Capability
	CompactCapabilities []Capability
	// StopOnAppKilled stops playback and clears the media notification when
	// the hosting process dies, instead of continuing in the background.
	StopOnAppKilled  bool
	ProgressInterval time.Duration
}

// DefaultSetupOptions returns the setup used by the playback session.
func DefaultSetupOptions() SetupOptions {
	return SetupOptions{
		Capabilities: []Capability{
			CapabilityPlay,
			CapabilityPause,
			CapabilitySkipToNext,
			CapabilitySkipToPrevious,
			CapabilitySeekTo,
		},
		CompactCapabilities: []Capability{
			CapabilityPlay,
			CapabilityPause,
			CapabilitySkipToNext,
			CapabilitySkipToPrevious,
		},
		StopOnAppKilled:  true,
		ProgressInterval: 2 * time.Second,
	}
}

// EventKind classifies engine notifications.
type EventKind string

const (
	// EventTrackChanged fires when the active queue entry changes, including
	// when the queue empties.
	EventTrackChanged EventKind = "track-changed"
	// EventStateChanged fires when the play/pause/buffer state changes.
	EventStateChanged EventKind = "state-changed"
)

// Event is a notification emitted by the engine watcher.
type Event struct {
	Kind EventKind
}

// Client is the capability surface the playback session requires from an
// audio engine. The MPD implementation below is the production engine; tests
// substitute their own.
type Client interface {
	// Setup performs one-time engine initialization. Repeated calls after the
	// first are no-ops returning the first call's result.
	Setup(opts SetupOptions) error

	Reset() error
	Add(t track.Track) error
	Play() error
	Pause() error

	State() (State, error)
	// ActiveTrackIndex returns the queue index of the current track. ok is
	// false when the queue is empty or nothing is active.
	ActiveTrackIndex() (index int, ok bool, err error)
	TrackAt(index int) (track.Track, error)
	// Progress returns the current position and duration in seconds.
	Progress() (position, duration float64, err error)

	SeekTo(seconds float64) error
	SkipToNext() error
	SkipToPrevious() error

	// Watch emits events until ctx is cancelled.
	Watch(ctx context.Context) (<-chan Event, error)
}
