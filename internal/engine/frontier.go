package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/parser"
	"github.com/IshaanNene/imgharvest/internal/taskgroup"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// Frontier walks the paginated listing and returns posts not yet in the store.
type Frontier struct {
	site    config.SiteConfig
	engine  config.EngineConfig
	timeout time.Duration
	fetcher fetcher.PageFetcher
	parser  parser.ListingParser
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewFrontier creates a Frontier for cfg.Site.
func NewFrontier(cfg *config.Config, f fetcher.PageFetcher, p parser.ListingParser, metrics *observability.Metrics, logger *slog.Logger) *Frontier {
	return &Frontier{
		site:    cfg.Site,
		engine:  cfg.Engine,
		timeout: cfg.Fetcher.ListingTimeout,
		fetcher: f,
		parser:  p,
		metrics: metrics,
		logger:  logger.With("component", "frontier"),
	}
}

// Discover returns the new posts in discovery order (page number, then
// position on the page) together with the number of listing pages requested.
// Links already in store and repeats within the batch are dropped.
func (f *Frontier) Discover(ctx context.Context, store *types.Store) ([]types.Post, int) {
	dedup := NewDeduplicator(store.KnownLinks())

	var (
		batch []types.Post
		pages int
	)
	if f.engine.Mode == config.ModeSequential {
		batch, pages = f.discoverSequential(ctx, store.LastPost, dedup)
	} else {
		batch, pages = f.discoverParallel(ctx, dedup)
	}

	f.metrics.PostsDiscovered.Add(float64(len(batch)))
	f.logger.Info("discovery complete", "mode", f.engine.Mode, "pages", pages, "new_posts", len(batch))
	return batch, pages
}

// discoverSequential fetches pages one at a time and stops at the first empty
// or failed page, at the page holding lastPost, or after max_pages.
func (f *Frontier) discoverSequential(ctx context.Context, lastPost *string, dedup *Deduplicator) ([]types.Post, int) {
	pacer := taskgroup.NewPacer(f.engine.PageDelay)
	batch := []types.Post{}

	page := 1
	for ; f.engine.MaxPages == 0 || page <= f.engine.MaxPages; page++ {
		if err := pacer.Wait(ctx); err != nil {
			f.logger.Warn("discovery interrupted", "page", page, "error", err)
			return batch, page - 1
		}

		r := f.fetchPage(ctx, page)
		if !r.IsOK() || len(r.Value) == 0 {
			f.logger.Debug("listing exhausted", "page", page)
			return batch, page
		}

		for _, post := range r.Value {
			if lastPost != nil && post.Link == *lastPost {
				f.logger.Debug("reached last processed post", "page", page, "link", post.Link)
				return batch, page
			}
			if dedup.Add(post.Link) {
				batch = append(batch, post)
			}
		}
	}
	return batch, page - 1
}

// discoverParallel fetches pages 1..max_pages concurrently. Failed pages are
// excluded; the rest are merged back in page order.
func (f *Frontier) discoverParallel(ctx context.Context, dedup *Deduplicator) ([]types.Post, int) {
	results := taskgroup.RunAll(ctx, f.engine.PageWorkers, f.engine.MaxPages,
		func(ctx context.Context, i int) types.Result[[]types.Post] {
			return f.fetchPage(ctx, i+1)
		})

	batch := []types.Post{}
	for _, r := range results {
		if !r.IsOK() {
			continue
		}
		for _, post := range r.Value {
			if dedup.Add(post.Link) {
				batch = append(batch, post)
			}
		}
	}
	return batch, len(results)
}

func (f *Frontier) fetchPage(ctx context.Context, page int) types.Result[[]types.Post] {
	pageURL := f.site.ListingURL(page)

	resp, err := f.fetcher.FetchPage(ctx, pageURL, f.timeout)
	if err != nil {
		f.metrics.PagesFailed.Inc()
		f.logger.Warn("listing fetch failed", "page", page, "url", pageURL, "error", err)
		return types.Failed[[]types.Post](err)
	}

	posts, err := f.parser.ParsePosts(resp)
	if err != nil {
		f.metrics.PagesFailed.Inc()
		f.logger.Warn("listing parse failed", "page", page, "url", pageURL, "error", err)
		return types.Failed[[]types.Post](err)
	}

	f.metrics.PagesFetched.Inc()
	f.logger.Debug("listing page parsed", "page", page, "posts", len(posts))
	return types.Ok(posts)
}
