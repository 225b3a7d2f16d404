package player

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/soundtide/soundtide-backend/internal/domain/track"
	"github.com/soundtide/soundtide-backend/internal/infra/engine"
)

func loadCurrent(s *Session, eng *MockEngine, t track.Track) {
	eng.Queue = []track.Track{t}
	eng.ActiveIndex = 0
	eng.HasActive = true
	eng.EngineState = engine.StatePlaying
	s.HandleEngineEvent(engine.Event{Kind: engine.EventTrackChanged})
}

func TestToggleLikeNothingPlaying(t *testing.T) {
	eng := NewMockEngine()
	s := newTestSession(t, eng, discardAPI)

	if err := s.ToggleLike(context.Background()); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("err = %v, want ErrNothingPlaying", err)
	}
}

func TestToggleLikeReconcilesWithServerCount(t *testing.T) {
	eng := NewMockEngine()
	s := newTestSession(t, eng, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/likes" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"liked":true,"likeCount":12}`))
	})

	loadCurrent(s, eng, track.Track{ID: "s1", Title: "A", SongURL: "https://x/a.mp3", Liked: false, LikeCount: 3})

	if err := s.ToggleLike(context.Background()); err != nil {
		t.Fatalf("ToggleLike returned error: %v", err)
	}

	snap := s.Snapshot()
	if !snap.Track.Liked {
		t.Error("expected liked after toggle")
	}
	if snap.Track.LikeCount != 12 {
		t.Errorf("like count = %d, want server's 12", snap.Track.LikeCount)
	}
}

func TestToggleLikeRollsBackOnFailure(t *testing.T) {
	eng := NewMockEngine()
	s := newTestSession(t, eng, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("db down"))
	})

	loadCurrent(s, eng, track.Track{ID: "s1", Title: "A", SongURL: "https://x/a.mp3", Liked: true, LikeCount: 7})

	err := s.ToggleLike(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	snap := s.Snapshot()
	if !snap.Track.Liked {
		t.Error("liked flag not rolled back")
	}
	if snap.Track.LikeCount != 7 {
		t.Errorf("like count = %d, want rolled-back 7", snap.Track.LikeCount)
	}
}

func TestToggleLikeSkipsRollbackWhenTrackReplaced(t *testing.T) {
	release := make(chan struct{})
	eng := NewMockEngine()
	s := newTestSession(t, eng, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusInternalServerError)
	})

	loadCurrent(s, eng, track.Track{ID: "s1", Title: "A", SongURL: "https://x/a.mp3", Liked: false, LikeCount: 1})

	done := make(chan error, 1)
	go func() {
		done <- s.ToggleLike(context.Background())
	}()

	// Replace the current track while the like request is in flight.
	s.Play(track.Track{ID: "s2", Title: "B", SongURL: "https://x/b.mp3", Liked: false, LikeCount: 0})
	s.HandleEngineEvent(engine.Event{Kind: engine.EventTrackChanged})
	close(release)

	if err := <-done; err == nil {
		t.Fatal("expected error")
	}

	snap := s.Snapshot()
	if snap.Track == nil || snap.Track.ID != "s2" {
		t.Fatalf("current track = %+v, want s2", snap.Track)
	}
	if snap.Track.Liked || snap.Track.LikeCount != 0 {
		t.Errorf("rollback leaked onto the wrong track: %+v", snap.Track)
	}
}
