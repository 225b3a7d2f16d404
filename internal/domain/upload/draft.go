// Package upload provides the multi-step upload coordinator: the in-memory
// draft, the monthly quota gate, and the staged submission pipeline against
// the catalog API.
package upload

import (
	"path/filepath"
	"strings"
)

const (
	// MaxMoodTags caps the mood-tag set on a draft.
	MaxMoodTags = 5

	// Preview-clip defaults in seconds.
	DefaultShortsStart    = 30
	DefaultShortsDuration = 30

	// Wizard steps, 1-indexed for progress display.
	StepAudio   = 1
	StepDetails = 2
	StepPreview = 3
)

// File is a picked local audio file.
type File struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

// Image is a picked local cover image.
type Image struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
}

// Draft is the work-in-progress submission. It lives only in memory for the
// lifetime of one upload flow and is owned exclusively by it.
type Draft struct {
	File           *File    `json:"file"`
	CoverImage     *Image   `json:"coverImage"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Moods          []string `json:"moods"`
	ShortsStart    float64  `json:"shortsStart"`
	ShortsDuration float64  `json:"shortsDuration"`
	Step           int      `json:"currentStep"`
}

// NewDraft returns an empty draft with default preview-clip settings.
func NewDraft() Draft {
	return Draft{
		ShortsStart:    DefaultShortsStart,
		ShortsDuration: DefaultShortsDuration,
		Step:           StepAudio,
	}
}

// Reset restores the draft to its initial empty state.
func (d *Draft) Reset() {
	*d = NewDraft()
}

// HasMood reports whether the tag is currently selected.
func (d *Draft) HasMood(tag string) bool {
	for _, m := range d.Moods {
		if m == tag {
			return true
		}
	}
	return false
}

// ToggleMood adds the tag if absent and under the cap, removes it if
// present, and otherwise does nothing. Removal is always permitted.
func (d *Draft) ToggleMood(tag string) {
	for i, m := range d.Moods {
		if m == tag {
			d.Moods = append(d.Moods[:i], d.Moods[i+1:]...)
			return
		}
	}
	if len(d.Moods) < MaxMoodTags {
		d.Moods = append(d.Moods, tag)
	}
}

// AdvanceFrom validates that the draft may leave the given step.
func (d *Draft) AdvanceFrom(step int) error {
	switch step {
	case StepAudio:
		if d.File == nil {
			return ErrNoFile
		}
	case StepDetails:
		if strings.TrimSpace(d.Title) == "" {
			return ErrTitleRequired
		}
	}
	return nil
}

// TitleFromFilename derives the default track title from a picked filename,
// stripped of its extension.
func TitleFromFilename(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
