package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestStoreKnownLinks(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.KnownLinks())

	s.LastPost = strPtr("https://example.com/watermark")
	s.Posts = append(s.Posts, Post{Link: "https://example.com/a"})

	known := s.KnownLinks()
	assert.Len(t, known, 2)
	assert.Contains(t, known, "https://example.com/a")
	assert.Contains(t, known, "https://example.com/watermark")
	assert.NotContains(t, known, "https://example.com/b")
}

func TestStoreAppend(t *testing.T) {
	s := NewStore()
	s.Append(nil)
	assert.Nil(t, s.LastPost, "empty batch must not move the watermark")

	s.Append([]Post{{Link: "A"}, {Link: "B"}})
	require.NotNil(t, s.LastPost)
	assert.Equal(t, "A", *s.LastPost)
	assert.Len(t, s.Posts, 2)

	s.Append([]Post{{Link: "C"}})
	assert.Equal(t, "C", *s.LastPost)
	assert.Equal(t, []string{"A", "B", "C"}, []string{s.Posts[0].Link, s.Posts[1].Link, s.Posts[2].Link})
}

func TestMarkDownloads(t *testing.T) {
	var p Post
	p.MarkDownloads([]string{"https://example.com/a.jpg"}, nil)
	assert.False(t, p.Downloaded)
	assert.NotNil(t, p.DownloadedImages)
	assert.Empty(t, p.DownloadedImages)

	p.MarkDownloads([]string{"https://example.com/a.jpg"}, []string{"out/a.jpg"})
	assert.True(t, p.Downloaded)
	assert.Equal(t, []string{"out/a.jpg"}, p.DownloadedImages)
}

func TestPostLegacyImageKey(t *testing.T) {
	raw := `{"link":"L","title":"T","date":"2024.01.01","image":"https://example.com/c.jpg","downloaded":false}`

	var p Post
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.NotNil(t, p.CoverImage)
	assert.Equal(t, "https://example.com/c.jpg", *p.CoverImage)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"cover_image":"https://example.com/c.jpg"`)
	assert.NotContains(t, string(out), `"image":`)
}

func TestStoreNormalize(t *testing.T) {
	var s Store
	require.NoError(t, json.Unmarshal([]byte(`{"last_post":null,"posts":[{"link":"L"}]}`), &s))
	s.Normalize()
	assert.NotNil(t, s.Posts[0].ContentImages)
	assert.NotNil(t, s.Posts[0].DownloadedImages)
}

func TestResult(t *testing.T) {
	ok := Ok(3)
	assert.True(t, ok.IsOK())
	assert.Equal(t, 3, ok.Value)

	failed := Failed[int](errors.New("boom"))
	assert.False(t, failed.IsOK())
	assert.EqualError(t, failed.Err, "boom")
}

func TestFetchErrorUnwrap(t *testing.T) {
	err := &FetchError{URL: "https://example.com", StatusCode: 404, Err: ErrBadStatus}
	assert.ErrorIs(t, err, ErrBadStatus)
	assert.Contains(t, err.Error(), "status 404")
}
