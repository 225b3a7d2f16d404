package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soundtide/soundtide-backend/internal/domain/track"
	"github.com/soundtide/soundtide-backend/internal/infra/api"
)

var (
	// ErrNoFile means submission (or advancing past step 1) was attempted
	// without a selected audio file.
	ErrNoFile = errors.New("no audio file selected")

	// ErrTitleRequired blocks advancing past the details step.
	ErrTitleRequired = errors.New("title is required")

	// ErrMissingToken is fatal to a submission: the user must log in again.
	ErrMissingToken = errors.New("missing auth token, please log in again")

	// ErrUploadInProgress guards against re-entrant submission and against
	// starting a second flow while one is in flight.
	ErrUploadInProgress = errors.New("an upload is already in progress")

	// ErrQuotaExceeded refuses file selection once the monthly allowance is
	// used up.
	ErrQuotaExceeded = errors.New("monthly upload limit reached")
)

const (
	defaultAudioType = "audio/mpeg"
	defaultImageType = "image/jpeg"
)

// Progress is the pipeline's user-facing progress report.
type Progress struct {
	Fraction  float64 `json:"fraction"`
	Label     string  `json:"label"`
	Uploading bool    `json:"uploading"`
}

// FileOpener resolves a picked file URI to a byte stream and its size.
type FileOpener func(uri string) (io.ReadCloser, int64, error)

// Coordinator gates, collects and atomically submits a new track. It owns
// exactly one draft; concurrent flows are refused rather than undefined.
type Coordinator struct {
	api  *api.Client
	open FileOpener
	now  func() time.Time

	mu        sync.Mutex
	draft     Draft
	uploading bool
	progress  Progress

	subMu       sync.Mutex
	subscribers []func(Progress)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFileOpener replaces the local-file opener (used by tests).
func WithFileOpener(open FileOpener) Option {
	return func(c *Coordinator) {
		c.open = open
	}
}

// WithClock replaces the quota clock (used by tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates an upload coordinator with an empty draft.
func NewCoordinator(apiClient *api.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		api:   apiClient,
		open:  openLocalFile,
		now:   time.Now,
		draft: NewDraft(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// openLocalFile is the production FileOpener.
func openLocalFile(uri string) (io.ReadCloser, int64, error) {
	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Draft returns a copy of the current draft.
func (c *Coordinator) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	d.Moods = append([]string(nil), c.draft.Moods...)
	return d
}

// Uploading reports whether a submission is in flight.
func (c *Coordinator) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

// Progress returns the current pipeline progress.
func (c *Coordinator) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Subscribe registers a progress observer. Observers must not block.
func (c *Coordinator) Subscribe(fn func(Progress)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// SetFile selects the audio file and seeds the title from its name. Refused
// while a submission is in flight.
func (c *Coordinator) SetFile(f File) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploading {
		return ErrUploadInProgress
	}
	c.draft.File = &f
	c.draft.Title = TitleFromFilename(f.Name)
	return nil
}

// SelectFile runs the quota gate and then accepts the audio file. The quota
// is recomputed on every selection, never cached.
func (c *Coordinator) SelectFile(ctx context.Context, f File) error {
	quota, err := c.CheckQuota(ctx)
	if err != nil {
		return err
	}
	if quota.Blocked() {
		return fmt.Errorf("%w (%d/%d this month)", ErrQuotaExceeded, quota.Usage, quota.Limit)
	}
	return c.SetFile(f)
}

// SetTitle sets the track title.
func (c *Coordinator) SetTitle(title string) {
	c.mutate(func(d *Draft) { d.Title = title })
}

// SetDescription sets the free-text description.
func (c *Coordinator) SetDescription(desc string) {
	c.mutate(func(d *Draft) { d.Description = desc })
}

// SetCoverImage sets or clears the optional cover image.
func (c *Coordinator) SetCoverImage(img *Image) {
	c.mutate(func(d *Draft) { d.CoverImage = img })
}

// ToggleMood toggles a mood tag, respecting the five-tag cap.
func (c *Coordinator) ToggleMood(tag string) {
	c.mutate(func(d *Draft) { d.ToggleMood(tag) })
}

// SetShortsStart sets the preview-clip start offset in seconds.
func (c *Coordinator) SetShortsStart(seconds float64) {
	c.mutate(func(d *Draft) { d.ShortsStart = seconds })
}

// SetShortsDuration sets the preview-clip duration in seconds.
func (c *Coordinator) SetShortsDuration(seconds float64) {
	c.mutate(func(d *Draft) { d.ShortsDuration = seconds })
}

// SetStep records the wizard step for progress display.
func (c *Coordinator) SetStep(step int) {
	c.mutate(func(d *Draft) { d.Step = step })
}

// Advance validates the current step and moves to the next one.
func (c *Coordinator) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploading {
		return ErrUploadInProgress
	}
	if err := c.draft.AdvanceFrom(c.draft.Step); err != nil {
		return err
	}
	if c.draft.Step < StepPreview {
		c.draft.Step++
	}
	return nil
}

// Reset discards the draft, e.g. on explicit cancellation.
func (c *Coordinator) Reset() {
	c.mutate(func(d *Draft) { d.Reset() })
}

func (c *Coordinator) mutate(fn func(*Draft)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploading {
		return
	}
	fn(&c.draft)
}

// Submit runs the staged submission pipeline. Stages execute strictly in
// order; each depends on an identifier minted by the previous one. On any
// fatal failure the draft is left intact for retry and only the uploading
// flag and progress are cleared. On success the draft resets to defaults.
//
// The remote side may retain orphaned objects from completed-but-not-
// finalized stages; that is accepted and not remediated here.
func (c *Coordinator) Submit(ctx context.Context) (*track.Track, error) {
	c.mu.Lock()
	if c.uploading {
		c.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	if c.draft.File == nil {
		c.mu.Unlock()
		return nil, ErrNoFile
	}
	if !c.api.HasToken() {
		c.mu.Unlock()
		return nil, ErrMissingToken
	}
	d := c.draft
	moods := append([]string(nil), c.draft.Moods...)
	c.uploading = true
	c.mu.Unlock()

	logger := log.With().Str("upload", uuid.NewString()).Logger()

	var succeeded bool
	defer func() {
		c.mu.Lock()
		c.uploading = false
		c.progress = Progress{}
		if succeeded {
			c.draft.Reset()
		}
		c.mu.Unlock()
		c.pushProgress(Progress{})
	}()

	c.setProgress(0.05, "Initializing...")

	audioType := d.File.MIMEType
	if audioType == "" {
		audioType = defaultAudioType
	}

	// Stage 1: audio upload slot.
	c.setProgress(0.05, "Preparing audio...")
	audioSlot, err := c.api.SignedURL(ctx, api.SignedURLRequest{
		Filename:    d.File.Name,
		ContentType: audioType,
		Kind:        "audio",
	})
	if err != nil {
		logger.Error().Err(err).Msg("Audio slot request failed")
		return nil, fmt.Errorf("signed URL request failed: %w", err)
	}
	c.setProgress(0.2, "Preparing audio...")

	// Stage 2: audio binary transfer.
	c.setProgress(0.2, "Uploading audio...")
	body, size, err := c.open(d.File.URI)
	if err != nil {
		logger.Error().Err(err).Msg("Audio file unreadable")
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	err = c.api.PutObject(ctx, audioSlot.UploadURL, body, size, audioType)
	body.Close()
	if err != nil {
		logger.Error().Err(err).Msg("Audio transfer failed")
		return nil, fmt.Errorf("audio upload failed: %w", err)
	}
	c.setProgress(0.6, "Uploading audio...")

	// Stages 3 and 4: artwork, only when a cover was picked. A refused slot
	// is tolerated and the track ships without artwork; a failed transfer
	// after a granted slot is fatal like any other PUT.
	var artworkPath, artworkBucket *string
	if d.CoverImage != nil {
		c.setProgress(0.6, "Uploading artwork...")

		imageType := d.CoverImage.MIMEType
		if imageType == "" {
			imageType = defaultImageType
		}
		imageName := d.CoverImage.Name
		if imageName == "" {
			imageName = "cover.jpg"
		}

		imageSlot, err := c.api.SignedURL(ctx, api.SignedURLRequest{
			Filename:    imageName,
			ContentType: imageType,
			Kind:        "artwork",
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Artwork slot refused, continuing without artwork")
		} else {
			imageBody, imageSize, err := c.open(d.CoverImage.URI)
			if err != nil {
				logger.Error().Err(err).Msg("Cover image unreadable")
				return nil, fmt.Errorf("opening cover image: %w", err)
			}
			err = c.api.PutObject(ctx, imageSlot.UploadURL, imageBody, imageSize, imageType)
			imageBody.Close()
			if err != nil {
				logger.Error().Err(err).Msg("Artwork transfer failed")
				return nil, fmt.Errorf("artwork upload failed: %w", err)
			}
			artworkPath = &imageSlot.FilePath
			artworkBucket = &imageSlot.Bucket
		}
		c.setProgress(0.8, "Uploading artwork...")
	}

	// Stage 5: finalize into a durable track record.
	c.setProgress(0.9, "Finalizing...")
	title := d.Title
	if strings.TrimSpace(title) == "" {
		title = d.File.Name
	}

	var created track.Track
	err = c.api.CompleteUpload(ctx, api.CompleteUploadRequest{
		UploadID:       audioSlot.UploadID,
		FilePath:       audioSlot.FilePath,
		Title:          title,
		Visibility:     "public",
		ContentType:    audioType,
		ArtworkPath:    artworkPath,
		ArtworkBucket:  artworkBucket,
		Tags:           moods,
		ShortsStart:    d.ShortsStart,
		ShortsDuration: d.ShortsDuration,
	}, &created)
	if err != nil {
		logger.Error().Err(err).Msg("Finalize failed")
		return nil, fmt.Errorf("finalize failed: %w", err)
	}

	c.setProgress(1.0, "Done!")
	succeeded = true
	logger.Info().Str("id", created.ID).Str("title", title).Msg("Upload complete")
	return &created, nil
}

func (c *Coordinator) setProgress(fraction float64, label string) {
	p := Progress{Fraction: fraction, Label: label, Uploading: true}
	c.mu.Lock()
	c.progress = p
	c.mu.Unlock()
	c.pushProgress(p)
}

func (c *Coordinator) pushProgress(p Progress) {
	c.subMu.Lock()
	subs := make([]func(Progress), len(c.subscribers))
	copy(subs, c.subscribers)
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
}
