package player

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soundtide/soundtide-backend/internal/domain/track"
	"github.com/soundtide/soundtide-backend/internal/infra/api"
	"github.com/soundtide/soundtide-backend/internal/infra/engine"
)

// Session owns the single-track playback queue and mediates every control
// action against the audio engine. Engine failures are terminal to the
// attempted operation only: no Session method propagates them, because a
// playback control must never take a UI surface down with it.
type Session struct {
	engine engine.Client
	api    *api.Client

	mu       sync.RWMutex
	current  *track.Track
	status   Status
	position float64
	duration float64

	subMu       sync.Mutex
	subscribers []func(Snapshot)
}

// NewSession creates a playback session over the given engine and catalog
// API client.
func NewSession(eng engine.Client, apiClient *api.Client) *Session {
	return &Session{
		engine: eng,
		api:    apiClient,
		status: StatusIdle,
	}
}

// Start performs the one-time engine setup, synchronizes with whatever the
// engine is already playing, and begins consuming engine events and progress
// updates until ctx is cancelled.
//
// A setup failure leaves the session degraded but alive: controls become
// no-ops that log, matching the rest of the failure policy.
func (s *Session) Start(ctx context.Context) {
	opts := engine.DefaultSetupOptions()
	if err := s.engine.Setup(opts); err != nil {
		log.Error().Err(err).Msg("Engine setup failed, playback controls degraded")
	}

	// One-time reconciliation: a track may already be active from before
	// this session mounted.
	s.reconcileTrack()
	s.refreshPlayback()
	s.notify()

	events, err := s.engine.Watch(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Engine watch unavailable, track changes will not sync")
	} else {
		go func() {
			for ev := range events {
				s.HandleEngineEvent(ev)
			}
		}()
	}

	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.refreshProgress() {
					s.notify()
				}
			}
		}
	}()
}

// HandleEngineEvent feeds one engine notification through the same reducer
// the mount-time synchronization uses.
func (s *Session) HandleEngineEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventTrackChanged:
		s.reconcileTrack()
		s.refreshPlayback()
	case engine.EventStateChanged:
		s.refreshPlayback()
	}
	s.notify()
}

// Play replaces the queue with the given track and starts playback. A track
// without a playable URL is refused with a diagnostic and the engine is left
// untouched. The play-count increment is detached; callers must not assume
// it completes, or that it is ordered relative to playback start.
func (s *Session) Play(t track.Track) {
	if !t.Playable() {
		log.Error().Str("id", t.ID).Str("title", t.Title).Msg("Track has no playable URL, refusing to play")
		return
	}

	log.Info().Str("id", t.ID).Str("title", t.Title).Msg("Play")

	if err := s.engine.Reset(); err != nil {
		log.Error().Err(err).Msg("Queue reset failed")
		return
	}
	if err := s.engine.Add(t); err != nil {
		log.Error().Err(err).Msg("Queue add failed")
		return
	}
	if err := s.engine.Play(); err != nil {
		log.Error().Err(err).Msg("Play failed")
		return
	}

	go s.incrementPlayCount(t.ID)
}

// TogglePlayPause pauses a playing engine and resumes a paused one.
func (s *Session) TogglePlayPause() {
	st, err := s.engine.State()
	if err != nil {
		log.Error().Err(err).Msg("State read failed, ignoring toggle")
		return
	}

	if st == engine.StatePlaying || st == engine.StateBuffering {
		if err := s.engine.Pause(); err != nil {
			log.Error().Err(err).Msg("Pause failed")
			return
		}
	} else {
		if err := s.engine.Play(); err != nil {
			log.Error().Err(err).Msg("Resume failed")
			return
		}
	}

	s.refreshPlayback()
	s.notify()
}

// SkipToNext delegates to the engine. With the single-track queue this is
// usually a no-op; failures are ignored.
func (s *Session) SkipToNext() {
	if err := s.engine.SkipToNext(); err != nil {
		log.Debug().Err(err).Msg("SkipToNext ignored")
	}
}

// SkipToPrevious delegates to the engine; failures are ignored.
func (s *Session) SkipToPrevious() {
	if err := s.engine.SkipToPrevious(); err != nil {
		log.Debug().Err(err).Msg("SkipToPrevious ignored")
	}
}

// SeekTo seeks within the current track.
func (s *Session) SeekTo(seconds float64) {
	if err := s.engine.SeekTo(seconds); err != nil {
		log.Error().Err(err).Float64("seconds", seconds).Msg("Seek failed")
		return
	}
	if s.refreshProgress() {
		s.notify()
	}
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Status:    s.status,
		IsPlaying: isPlayingStatus(s.status),
		Position:  s.position,
		Duration:  s.duration,
	}
	if s.current != nil {
		t := *s.current
		snap.Track = &t
	}
	return snap
}

// Subscribe registers an observer called with a fresh snapshot after every
// state change. Observers must not block.
func (s *Session) Subscribe(fn func(Snapshot)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// reconcileTrack is the single reducer for "which track is current". Both
// the mount-time read and every engine track-change event pass through here.
func (s *Session) reconcileTrack() {
	idx, ok, err := s.engine.ActiveTrackIndex()
	if err != nil {
		log.Error().Err(err).Msg("Active track read failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		s.current = nil
		s.status = StatusIdle
		s.position = 0
		s.duration = 0
		return
	}

	t, err := s.engine.TrackAt(idx)
	if err != nil {
		log.Error().Err(err).Int("index", idx).Msg("Track fetch failed")
		return
	}
	s.current = &t
}

// refreshPlayback maps the engine state onto the session status.
func (s *Session) refreshPlayback() {
	st, err := s.engine.State()
	if err != nil {
		log.Error().Err(err).Msg("State read failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch st {
	case engine.StatePlaying:
		s.status = StatusPlaying
	case engine.StateBuffering:
		s.status = StatusBuffering
	case engine.StatePaused:
		if s.current != nil {
			s.status = StatusLoaded
		} else {
			s.status = StatusIdle
		}
	default:
		s.status = StatusIdle
	}
}

// refreshProgress polls position/duration. Returns whether anything moved.
func (s *Session) refreshProgress() bool {
	position, duration, err := s.engine.Progress()
	if err != nil {
		log.Debug().Err(err).Msg("Progress read failed")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if position == s.position && duration == s.duration {
		return false
	}
	s.position = position
	s.duration = duration
	return true
}

// incrementPlayCount is the detached best-effort side effect of Play. The
// result is discarded except for logging; it is never retried and never
// rolls back playback.
func (s *Session) incrementPlayCount(songID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.api.IncrementPlayCount(ctx, songID); err != nil {
		log.Warn().Err(err).Str("id", songID).Msg("Play count increment failed")
		return
	}
	log.Debug().Str("id", songID).Msg("Play count incremented")
}

func (s *Session) notify() {
	snap := s.Snapshot()

	s.subMu.Lock()
	subs := make([]func(Snapshot), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
