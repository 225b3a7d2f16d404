// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/soundtide/soundtide-backend/internal/domain/player"
	"github.com/soundtide/soundtide-backend/internal/domain/track"
	"github.com/soundtide/soundtide-backend/internal/domain/upload"
)

// broadcastWindow collapses bursts of engine events into one push.
const broadcastWindow = 50 * time.Millisecond

// submitTimeout bounds a whole upload submission, including the binary
// transfers.
const submitTimeout = 15 * time.Minute

// Server handles Socket.io connections and events.
type Server struct {
	io        *socket.Server
	session   *player.Session
	uploads   *upload.Coordinator
	limiter   *ConnectionLimiter
	debouncer *BroadcastDebouncer
	mu        sync.RWMutex
	clients   map[string]*socket.Socket
}

// NewServer creates a new Socket.io server bridging the playback session and
// the upload coordinator to connected clients.
func NewServer(session *player.Session, uploads *upload.Coordinator, maxExternal int) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	server := socket.NewServer(nil, opts)

	s := &Server{
		io:      server,
		session: session,
		uploads: uploads,
		limiter: NewConnectionLimiter(maxExternal),
		clients: make(map[string]*socket.Socket),
	}
	s.debouncer = NewBroadcastDebouncer(broadcastWindow, s.BroadcastState)

	// Every session change schedules a debounced pushState; upload progress
	// goes out immediately so the bar does not stutter.
	session.Subscribe(func(player.Snapshot) {
		s.debouncer.Trigger()
	})
	uploads.Subscribe(func(p upload.Progress) {
		s.io.Emit("pushUploadProgress", p)
	})

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers all Socket.io event handlers.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())

		log.Info().Str("id", clientID).Msg("Client connected")

		if evicted := s.limiter.Register(clientID, client.Handshake().Address); evicted != "" {
			log.Warn().Str("id", evicted).Msg("Evicting oldest external client")
			s.mu.RLock()
			old := s.clients[evicted]
			s.mu.RUnlock()
			if old != nil {
				old.Disconnect(true)
			}
		}

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushState(client)
			s.pushUploadState(client)
		}()

		// Handle disconnect
		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Release(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		// Playback events
		client.On("getState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getState")
			s.pushState(client)
		})

		client.On("play", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("play")

			var t track.Track
			if !decodeArg(args, &t) {
				log.Error().Str("id", clientID).Msg("play payload is not a track")
				return
			}
			s.session.Play(t)
		})

		client.On("togglePlayPause", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("togglePlayPause")
			s.session.TogglePlayPause()
		})

		client.On("next", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("next")
			s.session.SkipToNext()
		})

		client.On("prev", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("prev")
			s.session.SkipToPrevious()
		})

		client.On("seek", func(args ...any) {
			if pos, ok := floatArg(args); ok {
				log.Debug().Str("id", clientID).Float64("pos", pos).Msg("seek")
				s.session.SeekTo(pos)
			}
		})

		client.On("toggleLike", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("toggleLike")
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := s.session.ToggleLike(ctx); err != nil {
					client.Emit("pushLikeError", map[string]any{"message": err.Error()})
				}
			}()
		})

		// Upload events
		client.On("getUploadState", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getUploadState")
			s.pushUploadState(client)
		})

		client.On("getUploadQuota", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("getUploadQuota")
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				quota, err := s.uploads.CheckQuota(ctx)
				if err != nil {
					s.pushUploadError(client, err)
					return
				}
				client.Emit("pushUploadQuota", quota)
			}()
		})

		client.On("uploadSetFile", func(args ...any) {
			log.Debug().Str("id", clientID).Interface("data", args).Msg("uploadSetFile")
			var f upload.File
			if !decodeArg(args, &f) {
				return
			}
			// Selection re-runs the quota gate, which hits the API.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := s.uploads.SelectFile(ctx, f); err != nil {
					s.pushUploadError(client, err)
					return
				}
				s.broadcastUploadState()
			}()
		})

		client.On("uploadSetTitle", func(args ...any) {
			if title, ok := stringArg(args); ok {
				s.uploads.SetTitle(title)
				s.broadcastUploadState()
			}
		})

		client.On("uploadSetDescription", func(args ...any) {
			if desc, ok := stringArg(args); ok {
				s.uploads.SetDescription(desc)
				s.broadcastUploadState()
			}
		})

		client.On("uploadSetCover", func(args ...any) {
			var img *upload.Image
			if len(args) > 0 && args[0] != nil {
				img = &upload.Image{}
				if !decodeArg(args, img) {
					return
				}
			}
			s.uploads.SetCoverImage(img)
			s.broadcastUploadState()
		})

		client.On("uploadToggleMood", func(args ...any) {
			if tag, ok := stringArg(args); ok {
				log.Debug().Str("id", clientID).Str("tag", tag).Msg("uploadToggleMood")
				s.uploads.ToggleMood(tag)
				s.broadcastUploadState()
			}
		})

		client.On("uploadSetClip", func(args ...any) {
			var clip struct {
				Start    *float64 `json:"start"`
				Duration *float64 `json:"duration"`
			}
			if !decodeArg(args, &clip) {
				return
			}
			if clip.Start != nil {
				s.uploads.SetShortsStart(*clip.Start)
			}
			if clip.Duration != nil {
				s.uploads.SetShortsDuration(*clip.Duration)
			}
			s.broadcastUploadState()
		})

		client.On("uploadSetStep", func(args ...any) {
			if step, ok := floatArg(args); ok {
				s.uploads.SetStep(int(step))
				s.broadcastUploadState()
			}
		})

		client.On("uploadAdvance", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("uploadAdvance")
			if err := s.uploads.Advance(); err != nil {
				s.pushUploadError(client, err)
				return
			}
			s.broadcastUploadState()
		})

		client.On("uploadSubmit", func(args ...any) {
			log.Info().Str("id", clientID).Msg("uploadSubmit")
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
				defer cancel()

				created, err := s.uploads.Submit(ctx)
				if err != nil {
					s.pushUploadError(client, err)
					s.broadcastUploadState()
					return
				}
				s.io.Emit("pushUploadComplete", created)
				s.broadcastUploadState()
			}()
		})

		client.On("uploadReset", func(args ...any) {
			log.Debug().Str("id", clientID).Msg("uploadReset")
			s.uploads.Reset()
			s.broadcastUploadState()
		})
	})
}

// decodeArg unpacks the first event argument into v via a JSON round-trip.
func decodeArg(args []any, v any) bool {
	if len(args) == 0 {
		return false
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

// floatArg accepts either a bare number or a {value: n} envelope.
func floatArg(args []any) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	if f, ok := args[0].(float64); ok {
		return f, true
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		if f, ok := m["value"].(float64); ok {
			return f, true
		}
	}
	return 0, false
}

// stringArg accepts either a bare string or a {value: s} envelope.
func stringArg(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	if s, ok := args[0].(string); ok {
		return s, true
	}
	if m, ok := args[0].(map[string]interface{}); ok {
		if s, ok := m["value"].(string); ok {
			return s, true
		}
	}
	return "", false
}

// uploadState is the per-client wizard snapshot.
type uploadState struct {
	Draft     upload.Draft    `json:"draft"`
	Uploading bool            `json:"uploading"`
	Progress  upload.Progress `json:"progress"`
}

func (s *Server) currentUploadState() uploadState {
	return uploadState{
		Draft:     s.uploads.Draft(),
		Uploading: s.uploads.Uploading(),
		Progress:  s.uploads.Progress(),
	}
}

// pushState sends the current playback snapshot to a client.
func (s *Server) pushState(client *socket.Socket) {
	client.Emit("pushState", s.session.Snapshot())
}

// pushUploadState sends the current upload wizard state to a client.
func (s *Server) pushUploadState(client *socket.Socket) {
	client.Emit("pushUploadState", s.currentUploadState())
}

func (s *Server) pushUploadError(client *socket.Socket, err error) {
	log.Error().Err(err).Msg("Upload operation failed")
	client.Emit("pushUploadError", map[string]any{"message": err.Error()})
}

// broadcastUploadState sends the wizard state to all connected clients so a
// second screen stays in sync.
func (s *Server) broadcastUploadState() {
	s.io.Emit("pushUploadState", s.currentUploadState())
}

// BroadcastState sends the playback snapshot to all connected clients.
func (s *Server) BroadcastState() {
	snap := s.session.Snapshot()
	s.io.Emit("pushState", snap)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(snap)
		s.mu.RLock()
		clientCount := len(s.clients)
		s.mu.RUnlock()
		log.Debug().RawJSON("state", data).Int("clients", clientCount).Msg("Broadcast state")
	}
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops the debouncer and closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	s.io.Close(nil)
	return nil
}
