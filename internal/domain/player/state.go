// Package player provides the playback session manager: the single source of
// truth for "what is playing" across every UI surface, backed by one shared
// audio engine.
package player

import "github.com/soundtide/soundtide-backend/internal/domain/track"

// Status is the session's view of the engine.
type Status string

const (
	// StatusIdle means no track is loaded.
	StatusIdle Status = "idle"
	// StatusLoaded means a track is current but paused.
	StatusLoaded    Status = "loaded"
	StatusPlaying   Status = "playing"
	StatusBuffering Status = "buffering"
)

// Snapshot is an immutable view of the session pushed to UI observers.
type Snapshot struct {
	Track     *track.Track `json:"track"`
	Status    Status       `json:"status"`
	IsPlaying bool         `json:"isPlaying"`
	Position  float64      `json:"position"`
	Duration  float64      `json:"duration"`
}

// isPlayingStatus treats buffering as playing so transport controls don't
// flicker while the engine fills its buffer.
func isPlayingStatus(s Status) bool {
	return s == StatusPlaying || s == StatusBuffering
}
