package types

import (
	"encoding/json"
)

// Post is one article discovered on a listing page. Link is the dedup key.
type Post struct {
	Link       string  `json:"link"        bson:"link"`
	Title      string  `json:"title"       bson:"title"`
	Date       string  `json:"date"        bson:"date"`
	CoverImage *string `json:"cover_image" bson:"cover_image"`

	// ContentImages is the sorted candidate list extracted from the article.
	ContentImages []string `json:"content_images" bson:"content_images"`

	// DownloadedImages lists the local paths actually written.
	DownloadedImages []string `json:"downloaded_images" bson:"downloaded_images"`

	// Downloaded is true iff DownloadedImages is non-empty.
	Downloaded bool `json:"downloaded" bson:"downloaded"`
}

// UnmarshalJSON accepts the legacy "image" key for the cover image.
func (p *Post) UnmarshalJSON(data []byte) error {
	type plain Post
	aux := struct {
		*plain
		LegacyImage *string `json:"image"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.CoverImage == nil && aux.LegacyImage != nil {
		p.CoverImage = aux.LegacyImage
	}
	return nil
}

// MarkDownloads records the candidate list and the paths that were saved.
func (p *Post) MarkDownloads(candidates, saved []string) {
	if candidates == nil {
		candidates = []string{}
	}
	if saved == nil {
		saved = []string{}
	}
	p.ContentImages = candidates
	p.DownloadedImages = saved
	p.Downloaded = len(saved) > 0
}

// Store is the persisted crawl state: a watermark and the processed posts.
type Store struct {
	LastPost *string `json:"last_post" bson:"last_post"`
	Posts    []Post  `json:"posts"     bson:"posts"`
}

// NewStore returns the empty document written on first run.
func NewStore() *Store {
	return &Store{Posts: []Post{}}
}

// Normalize replaces nil slices left by older or hand-edited documents.
func (s *Store) Normalize() {
	if s.Posts == nil {
		s.Posts = []Post{}
	}
	for i := range s.Posts {
		if s.Posts[i].ContentImages == nil {
			s.Posts[i].ContentImages = []string{}
		}
		if s.Posts[i].DownloadedImages == nil {
			s.Posts[i].DownloadedImages = []string{}
		}
	}
}

// KnownLinks returns every link recorded in posts plus the watermark.
func (s *Store) KnownLinks() map[string]struct{} {
	known := make(map[string]struct{}, len(s.Posts)+1)
	for _, p := range s.Posts {
		known[p.Link] = struct{}{}
	}
	if s.LastPost != nil {
		known[*s.LastPost] = struct{}{}
	}
	return known
}

// Append records a processed batch. The first post of the batch becomes the
// new watermark, so callers must pass the batch in discovery order.
func (s *Store) Append(batch []Post) {
	if len(batch) == 0 {
		return
	}
	last := batch[0].Link
	s.LastPost = &last
	s.Posts = append(s.Posts, batch...)
}

// DownloadedCount returns how many stored posts have at least one saved image.
func (s *Store) DownloadedCount() int {
	n := 0
	for _, p := range s.Posts {
		if p.Downloaded {
			n++
		}
	}
	return n
}
