package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/storage"
	"github.com/IshaanNene/imgharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeSite serves a paginated notice listing, article pages and images.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[int][]string // page -> article ids, in listing order
	images  map[string][]string
	failing map[int]bool

	listingHits atomic.Int32
	srv         *httptest.Server
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	s := &fakeSite{
		pages:   make(map[int][]string),
		images:  make(map[string][]string),
		failing: make(map[int]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/notice/", s.serveListing)
	mux.HandleFunc("/article/", s.serveArticle)
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprintf(w, "bytes of %s", r.URL.Path)
	})
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *fakeSite) setPage(page int, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page] = ids
}

func (s *fakeSite) setImages(id string, names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if names == nil {
		names = []string{}
	}
	s.images[id] = names
}

func (s *fakeSite) setFailing(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[page] = true
}

func (s *fakeSite) link(id string) string {
	return s.srv.URL + "/article/" + id
}

func (s *fakeSite) serveListing(w http.ResponseWriter, r *http.Request) {
	s.listingHits.Add(1)
	page, _ := strconv.Atoi(r.URL.Query().Get("p"))

	s.mu.Lock()
	ids := s.pages[page]
	failing := s.failing[page]
	s.mu.Unlock()

	if failing {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString(`<html><body><ul>`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<li class="p_notice-container_list_item"><a href="/article/%s">`+
			`<img class="lazyload" src="/img/cover-%s.jpg">`+
			`<p class="m_information-item-box_wrap_date">2024.01.01</p>`+
			`<p class="m_information-item-box_title">Notice %s</p></a></li>`, id, id, id)
	}
	b.WriteString(`</ul></body></html>`)
	w.Write([]byte(b.String()))
}

func (s *fakeSite) serveArticle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/article/")

	s.mu.Lock()
	imgs, ok := s.images[id]
	s.mu.Unlock()

	if !ok {
		w.Write([]byte(`<html><body><div>no main region</div></body></html>`))
		return
	}
	var b strings.Builder
	b.WriteString(`<html><body><main>`)
	for _, img := range imgs {
		fmt.Fprintf(&b, `<img src="/img/%s">`, img)
	}
	b.WriteString(`</main></body></html>`)
	w.Write([]byte(b.String()))
}

type harness struct {
	cfg     *config.Config
	fetcher *fetcher.HTTPFetcher
	store   *storage.JSONStore
	metrics *observability.Metrics
	engine  *Engine
}

func newHarness(t *testing.T, site *fakeSite, mode string, maxPages int) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = site.srv.URL
	cfg.Engine.Mode = mode
	cfg.Engine.MaxPages = maxPages
	cfg.Engine.PageDelay = 0
	cfg.Engine.ImageDelay = 0
	cfg.Storage.Path = filepath.Join(dir, "data.json")
	cfg.Storage.DownloadDir = filepath.Join(dir, "images")
	require.NoError(t, config.Validate(cfg))

	f, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	store := storage.NewJSONStore(cfg.Storage.Path, testLogger)
	metrics := observability.NewMetrics(testLogger)

	e, err := New(cfg, f, f, store, metrics, testLogger)
	require.NoError(t, err)
	return &harness{cfg: cfg, fetcher: f, store: store, metrics: metrics, engine: e}
}

func (h *harness) load(t *testing.T) *types.Store {
	t.Helper()
	st, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return st
}

func links(posts []types.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Link
	}
	return out
}

func TestRunFirstPassParallel(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a", "b")
	site.setImages("a", "a1.jpg")
	site.setImages("b", "b2.gif", "b1.png")

	h := newHarness(t, site, config.ModeParallel, 3)
	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 3, summary.PagesScanned)
	assert.Equal(t, 2, summary.NewPosts)
	assert.Equal(t, 3, summary.ImagesFound)
	assert.Equal(t, 3, summary.ImagesSaved)
	assert.Equal(t, 0, summary.ImagesFailed)
	assert.Equal(t, site.link("a"), summary.LastPost)

	st := h.load(t)
	require.NotNil(t, st.LastPost)
	assert.Equal(t, site.link("a"), *st.LastPost)
	assert.Equal(t, []string{site.link("a"), site.link("b")}, links(st.Posts))

	b := st.Posts[1]
	assert.Equal(t, "Notice b", b.Title)
	require.NotNil(t, b.CoverImage)
	assert.Equal(t, site.srv.URL+"/img/cover-b.jpg", *b.CoverImage)
	assert.Equal(t, []string{site.srv.URL + "/img/b1.png", site.srv.URL + "/img/b2.gif"}, b.ContentImages)
	assert.True(t, b.Downloaded)

	dir := filepath.Join(h.cfg.Storage.DownloadDir, "Notice b")
	assert.Equal(t, []string{filepath.Join(dir, "b1.png"), filepath.Join(dir, "b2.gif")}, b.DownloadedImages)
	raw, err := os.ReadFile(filepath.Join(dir, "b1.png"))
	require.NoError(t, err)
	assert.Equal(t, "bytes of /img/b1.png", string(raw))
}

func TestRunSecondPassFindsNothing(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a", "b")
	site.setImages("a", "a1.jpg")
	site.setImages("b", "b1.png")

	h := newHarness(t, site, config.ModeParallel, 2)
	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	before, err := os.ReadFile(h.cfg.Storage.Path)
	require.NoError(t, err)

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.NewPosts)
	assert.Empty(t, summary.LastPost)

	after, err := os.ReadFile(h.cfg.Storage.Path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRunIncrementalPass(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a", "b")
	site.setImages("a", "a1.jpg")
	site.setImages("b", "b1.png")
	site.setImages("c", "c1.webp")

	h := newHarness(t, site, config.ModeParallel, 2)
	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	site.setPage(1, "c", "a")
	site.setPage(2, "b")

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NewPosts)

	st := h.load(t)
	assert.Equal(t, site.link("c"), *st.LastPost)
	assert.Equal(t, []string{site.link("a"), site.link("b"), site.link("c")}, links(st.Posts))
}

func TestRunParallelSkipsFailedPage(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a")
	site.setPage(2, "b")
	site.setPage(3, "c", "a")
	site.setFailing(2)
	for _, id := range []string{"a", "b", "c"} {
		site.setImages(id, id+".jpg")
	}

	h := newHarness(t, site, config.ModeParallel, 3)
	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NewPosts)

	st := h.load(t)
	assert.Equal(t, []string{site.link("a"), site.link("c")}, links(st.Posts))
	assert.Equal(t, site.link("a"), *st.LastPost)
}

func TestRunSequentialStopsAtEmptyPage(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a", "b")
	site.setPage(2, "c")
	for _, id := range []string{"a", "b", "c"} {
		site.setImages(id, id+".jpg")
	}

	h := newHarness(t, site, config.ModeSequential, 0)
	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.PagesScanned)
	assert.Equal(t, 3, summary.NewPosts)
	assert.Equal(t, int32(3), site.listingHits.Load())

	st := h.load(t)
	assert.Equal(t, []string{site.link("a"), site.link("b"), site.link("c")}, links(st.Posts))
}

func TestRunSequentialStopsAtLastPost(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a", "b")
	site.setPage(2, "c")
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		site.setImages(id, id+".jpg")
	}

	h := newHarness(t, site, config.ModeSequential, 0)
	_, err := h.engine.Run(context.Background())
	require.NoError(t, err)

	site.setPage(1, "e", "d", "a")
	site.setPage(2, "b", "c")
	site.listingHits.Store(0)

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PagesScanned)
	assert.Equal(t, int32(1), site.listingHits.Load())

	st := h.load(t)
	assert.Equal(t, site.link("e"), *st.LastPost)
	assert.Equal(t, []string{site.link("a"), site.link("b"), site.link("c"), site.link("e"), site.link("d")}, links(st.Posts))
}

func TestRunSequentialRespectsMaxPages(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a")
	site.setPage(2, "b")
	site.setPage(3, "c")

	h := newHarness(t, site, config.ModeSequential, 2)
	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PagesScanned)
	assert.Equal(t, int32(2), site.listingHits.Load())
	assert.Equal(t, 2, summary.NewPosts)
}

func TestRunRecordsPostWithoutImages(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "plain", "nomain")
	site.setImages("plain")

	h := newHarness(t, site, config.ModeParallel, 1)
	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NewPosts)
	assert.Equal(t, 0, summary.ImagesFound)

	st := h.load(t)
	require.Len(t, st.Posts, 2)
	for _, p := range st.Posts {
		assert.False(t, p.Downloaded)
		assert.NotNil(t, p.ContentImages)
		assert.Empty(t, p.ContentImages)
		assert.Empty(t, p.DownloadedImages)
	}
}

// cancellingFetcher cancels the run once a given URL is requested.
type cancellingFetcher struct {
	fetcher.PageFetcher
	trigger string
	cancel  context.CancelFunc
}

func (f *cancellingFetcher) FetchPage(ctx context.Context, rawURL string, timeout time.Duration) (*types.Response, error) {
	if rawURL == f.trigger {
		f.cancel()
	}
	return f.PageFetcher.FetchPage(ctx, rawURL, timeout)
}

func TestRunInterruptedSavesNothing(t *testing.T) {
	site := newFakeSite(t)
	site.setPage(1, "a", "b", "c")
	for _, id := range []string{"a", "b", "c"} {
		site.setImages(id, id+".jpg")
	}

	h := newHarness(t, site, config.ModeSequential, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pages := &cancellingFetcher{PageFetcher: h.fetcher, trigger: site.link("a"), cancel: cancel}
	e, err := New(h.cfg, pages, h.fetcher, h.store, h.metrics, testLogger)
	require.NoError(t, err)

	_, err = e.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	raw, err := os.ReadFile(h.cfg.Storage.Path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_post": null, "posts": []}`, string(raw))

	summary, err := h.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.NewPosts)
	assert.Equal(t, 3, summary.ImagesSaved)
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator(map[string]struct{}{"https://x.test/a": {}})

	assert.False(t, d.Add("https://x.test/a"))
	assert.True(t, d.Add("https://x.test/b"))
	assert.False(t, d.Add("https://x.test/b"))
	assert.True(t, d.Add("https://x.test/a/"))
}
