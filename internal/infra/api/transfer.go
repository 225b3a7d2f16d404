package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPutTimeout bounds a binary transfer. Uploads can be large, so this
// is deliberately much longer than the JSON request timeout.
const DefaultPutTimeout = 10 * time.Minute

// PutObject streams body to a signed upload URL with a raw binary PUT.
// Success is solely a 2xx status; the transfer is never retried because the
// body reader may not be rewindable.
func (c *Client) PutObject(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if size > 0 {
		req.ContentLength = size
	}

	resp, err := c.putClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error during upload PUT: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	return nil
}
