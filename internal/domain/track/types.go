// Package track defines the playable track view model shared by the playback
// session and the upload surface. Instances are built from catalog API rows
// and handed to the player; the finalize endpoint returns one for a newly
// created upload.
package track

// Track is a single playable unit.
type Track struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	ArtistName     string  `json:"artist_name"`
	ArtistID       string  `json:"artist_id,omitempty"`
	SongURL        string  `json:"song_url"`
	CoverImageURL  string  `json:"cover_image_url,omitempty"`
	DurationSec    float64 `json:"duration_seconds,omitempty"`
	PlayCount      int     `json:"play_count"`
	LikeCount      int     `json:"like_count"`
	Liked          bool    `json:"liked"`
	ShortsStart    float64 `json:"shorts_start,omitempty"`
	ShortsDuration float64 `json:"shorts_duration,omitempty"`
}

// Playable reports whether the track carries a usable media URL.
func (t Track) Playable() bool {
	return t.SongURL != ""
}
