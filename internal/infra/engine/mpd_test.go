package engine

import (
	"testing"
)

func TestStateFromStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   map[string]string
		expected State
	}{
		{"playing", map[string]string{"state": "play", "playlistlength": "1"}, StatePlaying},
		{"paused", map[string]string{"state": "pause", "playlistlength": "1"}, StatePaused},
		{"stopped with queued track", map[string]string{"state": "stop", "playlistlength": "1"}, StatePaused},
		{"stopped empty queue", map[string]string{"state": "stop", "playlistlength": "0"}, StateNone},
		{"missing fields", map[string]string{}, StateNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stateFromStatus(tt.status); got != tt.expected {
				t.Errorf("stateFromStatus(%v) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestTrackFromAttrs(t *testing.T) {
	tests := []struct {
		name       string
		attrs      map[string]string
		wantTitle  string
		wantArtist string
		wantURL    string
	}{
		{
			"tagged file",
			map[string]string{"file": "https://cdn/a.mp3", "Title": "A", "Artist": "Someone", "duration": "181.4"},
			"A", "Someone", "https://cdn/a.mp3",
		},
		{
			"untagged file falls back to URL",
			map[string]string{"file": "https://cdn/b.mp3"},
			"https://cdn/b.mp3", "", "https://cdn/b.mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := trackFromAttrs(tt.attrs)
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.ArtistName != tt.wantArtist {
				t.Errorf("ArtistName = %q, want %q", got.ArtistName, tt.wantArtist)
			}
			if got.SongURL != tt.wantURL {
				t.Errorf("SongURL = %q, want %q", got.SongURL, tt.wantURL)
			}
		})
	}
}

func TestDefaultSetupOptions(t *testing.T) {
	opts := DefaultSetupOptions()

	if len(opts.Capabilities) != 5 {
		t.Errorf("expected 5 capabilities, got %d", len(opts.Capabilities))
	}
	if opts.ProgressInterval.Seconds() != 2 {
		t.Errorf("expected 2s progress interval, got %v", opts.ProgressInterval)
	}
	if !opts.StopOnAppKilled {
		t.Error("expected StopOnAppKilled to default to true")
	}
}
