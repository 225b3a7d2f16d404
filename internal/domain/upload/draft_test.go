package upload

import (
	"errors"
	"fmt"
	"testing"
)

func TestToggleMoodCap(t *testing.T) {
	d := NewDraft()

	for i := 0; i < 7; i++ {
		d.ToggleMood(fmt.Sprintf("tag-%d", i))
	}

	if len(d.Moods) != MaxMoodTags {
		t.Errorf("mood count = %d, want cap of %d", len(d.Moods), MaxMoodTags)
	}
	if d.HasMood("tag-5") || d.HasMood("tag-6") {
		t.Error("tags beyond the cap must be rejected")
	}
}

func TestToggleMoodRemovalAlwaysPermitted(t *testing.T) {
	d := NewDraft()
	for i := 0; i < MaxMoodTags; i++ {
		d.ToggleMood(fmt.Sprintf("tag-%d", i))
	}

	// Removing at the cap works.
	d.ToggleMood("tag-2")
	if d.HasMood("tag-2") {
		t.Error("toggling a present tag must remove it")
	}
	if len(d.Moods) != MaxMoodTags-1 {
		t.Errorf("mood count = %d after removal", len(d.Moods))
	}

	// And there is room again.
	d.ToggleMood("tag-new")
	if !d.HasMood("tag-new") {
		t.Error("expected room for a new tag after removal")
	}
}

func TestToggleMoodReAddIsNotDuplicate(t *testing.T) {
	d := NewDraft()
	d.ToggleMood("Chill")
	d.ToggleMood("Chill")
	d.ToggleMood("Chill")

	if len(d.Moods) != 1 {
		t.Errorf("mood count = %d, want set semantics", len(d.Moods))
	}
}

func TestAdvanceFromDetailsRequiresTitle(t *testing.T) {
	d := NewDraft()
	d.File = &File{URI: "file:///tmp/track.mp3", Name: "track.mp3"}

	if err := d.AdvanceFrom(StepDetails); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("err = %v, want ErrTitleRequired", err)
	}

	d.Title = "   "
	if err := d.AdvanceFrom(StepDetails); !errors.Is(err, ErrTitleRequired) {
		t.Errorf("whitespace title: err = %v, want ErrTitleRequired", err)
	}

	d.Title = "Midnight City"
	if err := d.AdvanceFrom(StepDetails); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAdvanceFromAudioRequiresFile(t *testing.T) {
	d := NewDraft()
	if err := d.AdvanceFrom(StepAudio); !errors.Is(err, ErrNoFile) {
		t.Errorf("err = %v, want ErrNoFile", err)
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"track.mp3", "track"},
		{"my song.final.wav", "my song.final"},
		{"noext", "noext"},
		{"日本語タイトル.flac", "日本語タイトル"},
	}
	for _, tt := range tests {
		if got := TitleFromFilename(tt.in); got != tt.want {
			t.Errorf("TitleFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	d := NewDraft()
	d.File = &File{Name: "a.mp3"}
	d.Title = "A"
	d.ToggleMood("Chill")
	d.ShortsStart = 10
	d.Step = StepPreview

	d.Reset()

	if d.File != nil || d.Title != "" || len(d.Moods) != 0 {
		t.Errorf("reset incomplete: %+v", d)
	}
	if d.ShortsStart != DefaultShortsStart || d.ShortsDuration != DefaultShortsDuration {
		t.Errorf("preview defaults not restored: %+v", d)
	}
	if d.Step != StepAudio {
		t.Errorf("step = %d, want %d", d.Step, StepAudio)
	}
}
