package player

import (
	"context"
	"errors"
	"fmt"
)

// ErrNothingPlaying is returned by ToggleLike when no track is current.
var ErrNothingPlaying = errors.New("nothing is playing")

// ToggleLike flips the liked flag on the current track optimistically:
// snapshot the prior state, apply the new one, call the API, and restore the
// snapshot if the call fails. Unlike the engine controls this does return an
// error, because a failed like must surface a user-visible alert.
func (s *Session) ToggleLike(ctx context.Context) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNothingPlaying
	}
	songID := s.current.ID
	prevLiked := s.current.Liked
	prevCount := s.current.LikeCount

	s.current.Liked = !prevLiked
	if prevLiked {
		s.current.LikeCount = prevCount - 1
	} else {
		s.current.LikeCount = prevCount + 1
	}
	s.mu.Unlock()
	s.notify()

	resp, err := s.api.ToggleLike(ctx, songID)
	if err != nil {
		// Roll back, but only if the same track is still current; a rapid
		// Play() may have replaced it while the request was in flight.
		s.mu.Lock()
		if s.current != nil && s.current.ID == songID {
			s.current.Liked = prevLiked
			s.current.LikeCount = prevCount
		}
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("failed to update like status: %w", err)
	}

	// Reconcile with the server's authoritative count.
	s.mu.Lock()
	if s.current != nil && s.current.ID == songID {
		s.current.Liked = resp.Liked
		s.current.LikeCount = resp.LikeCount
	}
	s.mu.Unlock()
	s.notify()
	return nil
}
