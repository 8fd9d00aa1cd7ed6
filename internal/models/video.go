package models

// Video is an immutable catalog entry. The catalog is supplied externally
// (seeded by migration); the core never creates or mutates videos.
type Video struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}
