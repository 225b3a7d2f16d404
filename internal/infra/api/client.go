// Package api provides the client for the Soundtide catalog API: signed
// upload slots, upload finalization, play-count increments, like toggles and
// the monthly upload-quota queries. It also carries the raw binary transfer
// to signed storage URLs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds every JSON API request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the attempt budget for retryable requests
	// (signed-url slots and finalize). Network errors and 5xx retry; 4xx
	// never does.
	DefaultMaxAttempts = 3

	// DefaultBackoff is the base of the linear retry backoff.
	DefaultBackoff = 250 * time.Millisecond
)

// StatusError is a non-2xx API response. Body carries the server's error
// text verbatim so it can be surfaced to the user unchanged.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the catalog API with a bearer token.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	putClient   *http.Client
	maxAttempts int
	backoff     time.Duration
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client for JSON requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPutClient sets a custom HTTP client for binary PUT transfers.
func WithPutClient(hc *http.Client) Option {
	return func(c *Client) {
		c.putClient = hc
	}
}

// WithRetry overrides the attempt budget and backoff for retryable requests.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = maxAttempts
		c.backoff = backoff
	}
}

// NewClient creates a catalog API client. An empty token is permitted; calls
// that require auth will fail at submission time instead.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		putClient: &http.Client{
			Timeout: DefaultPutTimeout,
		},
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HasToken reports whether a bearer token is available.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// SignedURLRequest asks for an upload slot.
type SignedURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Kind        string `json:"kind"` // "audio" or "artwork"
}

// SignedURLResponse is a granted upload slot.
type SignedURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	UploadID  string `json:"uploadId"`
	FilePath  string `json:"filePath"`
	Bucket    string `json:"bucket"`
}

// SignedURL requests a signed upload slot. Retried on network errors and 5xx.
func (c *Client) SignedURL(ctx context.Context, req SignedURLRequest) (*SignedURLResponse, error) {
	var resp SignedURLResponse
	if err := c.postJSON(ctx, "/api/storage/signed-url", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteUploadRequest finalizes a transferred upload into a track record.
type CompleteUploadRequest struct {
	UploadID       string   `json:"uploadId"`
	FilePath       string   `json:"filePath"`
	Title          string   `json:"title"`
	Visibility     string   `json:"visibility"`
	ContentType    string   `json:"content_type"`
	ArtworkPath    *string  `json:"artwork_path"`
	ArtworkBucket  *string  `json:"artwork_bucket"`
	Tags           []string `json:"tags"`
	ShortsStart    float64  `json:"shorts_start"`
	ShortsDuration float64  `json:"shorts_duration"`
}

// CompleteUpload finalizes an upload. Retried on network errors and 5xx; a
// 4xx body is surfaced verbatim through StatusError.
func (c *Client) CompleteUpload(ctx context.Context, req CompleteUploadRequest, out any) error {
	return c.postJSON(ctx, "/api/storage/complete-upload", req, out, true)
}

// IncrementPlayCount bumps a track's play counter. Best-effort by contract:
// callers detach it and discard everything but the log line.
func (c *Client) IncrementPlayCount(ctx context.Context, songID string) error {
	body := map[string]string{"songId": songID}
	return c.postJSON(ctx, "/api/increment-play-count", body, nil, false)
}

// LikeResponse is the server's authoritative like state after a toggle.
type LikeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

// ToggleLike flips the caller's like on a track.
func (c *Client) ToggleLike(ctx context.Context, songID string) (*LikeResponse, error) {
	body := map[string]string{"songId": songID}
	var resp LikeResponse
	if err := c.postJSON(ctx, "/api/likes", body, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlanID returns the caller's subscription plan identifier.
func (c *Client) PlanID(ctx context.Context) (string, error) {
	var resp struct {
		PlanID string `json:"plan_id"`
	}
	if err := c.getJSON(ctx, "/api/profile", nil, &resp); err != nil {
		return "", err
	}
	if resp.PlanID == "" {
		return "free", nil
	}
	return resp.PlanID, nil
}

// OwnTrackCountSince counts the caller's own tracks created at or after the
// given instant. Used by the upload quota gate.
func (c *Client) OwnTrackCountSince(ctx context.Context, since time.Time) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	q := url.Values{"since": {since.Format(time.RFC3339)}}
	if err := c.getJSON(ctx, "/api/songs/count", q, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any, retryable bool) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, c.baseURL+path, payload, out, retryable)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, u, nil, out, false)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload []byte, out any, retryable bool) error {
	attempts := 1
	if retryable {
		attempts = c.maxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			}
			log.Debug().Str("url", url).Int("attempt", attempt).Msg("Retrying API request")
		}

		err := c.doJSONOnce(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < 500 {
			// Client errors are final.
			return err
		}
	}
	return lastErr
}

func (c *Client) doJSONOnce(ctx context.Context, method, url string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
