package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/soundtide/soundtide-backend/internal/domain/track"
)

// MPD is the MPD-backed engine client. It wraps gompd with reconnection
// logic and keeps a sidecar metadata map for the track fields MPD cannot
// store (liked flag, like count, artwork URL, catalog id).
type MPD struct {
	mu       sync.RWMutex
	client   *mpd.Client
	host     string
	port     int
	password string

	// meta holds full track view models by queue position. MPD only knows
	// the media URL, so everything else rides here.
	meta map[int]track.Track

	setupOnce sync.Once
	setupErr  error
	opts      SetupOptions
}

// NewMPD creates an MPD engine client. No connection is made until Setup.
func NewMPD(host string, port int, password string) *MPD {
	return &MPD{
		host:     host,
		port:     port,
		password: password,
		meta:     make(map[int]track.Track),
	}
}

// Setup connects to MPD and applies queue options. It runs exactly once per
// process; later calls return the first result.
func (e *MPD) Setup(opts SetupOptions) error {
	e.setupOnce.Do(func() {
		e.opts = opts
		e.mu.Lock()
		defer e.mu.Unlock()

		if e.client == nil {
			if err := e.connectLocked(); err != nil {
				e.setupErr = err
				return
			}
		}

		// Single-track replace-on-play model: no repeat, no shuffle, keep
		// consumed entries so skip-previous still works.
		if err := e.client.Repeat(false); err != nil {
			e.setupErr = err
			return
		}
		if err := e.client.Random(false); err != nil {
			e.setupErr = err
			return
		}
		if err := e.client.Consume(false); err != nil {
			e.setupErr = err
			return
		}

		log.Info().
			Int("capabilities", len(opts.Capabilities)).
			Dur("progress_interval", opts.ProgressInterval).
			Msg("Engine setup complete")
	})
	return e.setupErr
}

func (e *MPD) connectLocked() error {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	log.Info().Str("addr", addr).Msg("Connecting to engine")

	client, err := mpd.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to engine: %w", err)
	}

	if e.password != "" {
		if err := client.Command("password %s", e.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("engine authentication failed: %w", err)
		}
	}

	e.client = client
	return nil
}

func (e *MPD) ensureConnected() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return e.connectLocked()
	}
	if err := e.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("Engine connection lost, reconnecting...")
		e.client.Close()
		e.client = nil
		return e.connectLocked()
	}
	return nil
}

// Close closes the MPD connection.
func (e *MPD) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// Ping checks that the engine is reachable, connecting if necessary.
func (e *MPD) Ping() error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Ping()
}

// Reset clears the queue and the sidecar metadata.
func (e *MPD) Reset() error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.Clear(); err != nil {
		return err
	}
	e.meta = make(map[int]track.Track)
	return nil
}

// Add appends a track to the queue, retaining its full view model.
func (e *MPD) Add(t track.Track) error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	status, err := e.client.Status()
	if err != nil {
		return err
	}
	pos, _ := strconv.Atoi(status["playlistlength"])

	if err := e.client.Add(t.SongURL); err != nil {
		return err
	}
	e.meta[pos] = t
	return nil
}

// Play starts or resumes playback.
func (e *MPD) Play() error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Play(-1)
}

// Pause pauses playback.
func (e *MPD) Pause() error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Pause(true)
}

// State returns the engine playback state.
func (e *MPD) State() (State, error) {
	if err := e.ensureConnected(); err != nil {
		return StateNone, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	status, err := e.client.Status()
	if err != nil {
		return StateNone, err
	}
	return stateFromStatus(status), nil
}

// ActiveTrackIndex returns the queue position of the current track.
func (e *MPD) ActiveTrackIndex() (int, bool, error) {
	if err := e.ensureConnected(); err != nil {
		return 0, false, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	status, err := e.client.Status()
	if err != nil {
		return 0, false, err
	}

	length, _ := strconv.Atoi(status["playlistlength"])
	if length == 0 {
		return 0, false, nil
	}
	idx, err := strconv.Atoi(status["song"])
	if err != nil {
		return 0, false, nil
	}
	return idx, true, nil
}

// TrackAt returns the track at the given queue position. Sidecar metadata
// wins; MPD tags fill in when a track was queued by another client.
func (e *MPD) TrackAt(index int) (track.Track, error) {
	if err := e.ensureConnected(); err != nil {
		return track.Track{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if t, ok := e.meta[index]; ok {
		return t, nil
	}

	items, err := e.client.PlaylistInfo(index, -1)
	if err != nil {
		return track.Track{}, err
	}
	if len(items) == 0 {
		return track.Track{}, fmt.Errorf("no track at index %d", index)
	}
	return trackFromAttrs(items[0]), nil
}

// Progress returns the elapsed position and duration in seconds.
func (e *MPD) Progress() (float64, float64, error) {
	if err := e.ensureConnected(); err != nil {
		return 0, 0, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	status, err := e.client.Status()
	if err != nil {
		return 0, 0, err
	}

	position, _ := strconv.ParseFloat(status["elapsed"], 64)
	duration, _ := strconv.ParseFloat(status["duration"], 64)
	return position, duration, nil
}

// SeekTo seeks within the current track.
func (e *MPD) SeekTo(seconds float64) error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	status, err := e.client.Status()
	if err != nil {
		return err
	}
	pos, err := strconv.Atoi(status["song"])
	if err != nil {
		return fmt.Errorf("no track playing")
	}
	return e.client.Seek(pos, int(seconds))
}

// SkipToNext advances the queue.
func (e *MPD) SkipToNext() error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Next()
}

// SkipToPrevious rewinds the queue.
func (e *MPD) SkipToPrevious() error {
	if err := e.ensureConnected(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.client.Previous()
}

// Watch converts MPD subsystem notifications into engine events until ctx is
// cancelled.
func (e *MPD) Watch(ctx context.Context) (<-chan Event, error) {
	addr := fmt.Sprintf("%s:%d", e.host, e.port)

	watcher, err := mpd.NewWatcher("tcp", addr, e.password, "player", "playlist")
	if err != nil {
		return nil, fmt.Errorf("failed to create engine watcher: %w", err)
	}

	ch := make(chan Event, 10)

	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case subsystem, ok := <-watcher.Event:
				if !ok {
					return
				}
				switch subsystem {
				case "playlist":
					ch <- Event{Kind: EventTrackChanged}
				case "player":
					// A player change can be a new track or a state flip;
					// emit both so the session reconciles everything.
					ch <- Event{Kind: EventTrackChanged}
					ch <- Event{Kind: EventStateChanged}
				}
			case err := <-watcher.Error:
				log.Error().Err(err).Msg("Engine watcher error")
				time.Sleep(time.Second)
			}
		}
	}()

	return ch, nil
}

// stateFromStatus maps MPD status attributes to an engine state.
func stateFromStatus(status map[string]string) State {
	length, _ := strconv.Atoi(status["playlistlength"])
	switch status["state"] {
	case "play":
		return StatePlaying
	case "pause":
		return StatePaused
	default:
		if length > 0 {
			return StatePaused
		}
		return StateNone
	}
}

// trackFromAttrs builds a track view model from raw MPD tags for queue
// entries added outside this client.
func trackFromAttrs(attrs map[string]string) track.Track {
	t := track.Track{
		SongURL:    attrs["file"],
		Title:      attrs["Title"],
		ArtistName: attrs["Artist"],
	}
	if t.Title == "" {
		t.Title = attrs["file"]
	}
	if d, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		t.DurationSec = d
	}
	return t
}
