package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/fetcher"
	"github.com/IshaanNene/imgharvest/internal/media"
	"github.com/IshaanNene/imgharvest/internal/observability"
	"github.com/IshaanNene/imgharvest/internal/parser"
	"github.com/IshaanNene/imgharvest/internal/storage"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// Summary describes one crawl pass.
type Summary struct {
	RunID        string        `json:"run_id"`
	PagesScanned int           `json:"pages_scanned"`
	NewPosts     int           `json:"new_posts"`
	ImagesFound  int           `json:"images_found"`
	ImagesSaved  int           `json:"images_saved"`
	ImagesFailed int           `json:"images_failed"`
	LastPost     string        `json:"last_post,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Engine runs incremental crawl passes against one listing site.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	pages     fetcher.PageFetcher
	images    fetcher.StreamFetcher
	store     storage.StateStore
	listing   parser.ListingParser
	extractor *parser.ImageExtractor
	metrics   *observability.Metrics
}

// New creates an Engine. The fetchers and store are owned by the caller.
func New(cfg *config.Config, pages fetcher.PageFetcher, images fetcher.StreamFetcher, store storage.StateStore, metrics *observability.Metrics, logger *slog.Logger) (*Engine, error) {
	listing, err := parser.NewListingParser(cfg.Site, logger)
	if err != nil {
		return nil, fmt.Errorf("listing parser: %w", err)
	}
	extractor, err := parser.NewImageExtractor(cfg.Site.BaseURL, cfg.Site.ContentSelector, logger)
	if err != nil {
		return nil, fmt.Errorf("image extractor: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
		pages:     pages,
		images:    images,
		store:     store,
		listing:   listing,
		extractor: extractor,
		metrics:   metrics,
	}, nil
}

// Run performs one crawl pass: discover new posts, download their content
// images and append them to the store. Page, article and image failures are
// logged and skipped. Store failures are returned, and so is cancellation of
// ctx, in which case nothing from the pass is persisted.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}
	logger := e.logger.With("run_id", summary.RunID)

	logger.Info("run starting",
		"base_url", e.cfg.Site.BaseURL,
		"mode", e.cfg.Engine.Mode,
		"max_pages", e.cfg.Engine.MaxPages,
		"fetcher", e.pages.Type(),
		"storage", e.store.Name(),
	)

	state, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	frontier := NewFrontier(e.cfg, e.pages, e.listing, e.metrics, logger)
	batch, pages := frontier.Discover(ctx, state)
	summary.PagesScanned = pages
	summary.NewPosts = len(batch)
	if err := ctx.Err(); err != nil {
		return summary, e.interrupted(logger, err)
	}

	if len(batch) == 0 {
		logger.Info("no new articles found")
		e.finish(summary, start)
		return summary, nil
	}

	downloader := media.NewDownloader(e.cfg, e.images, e.metrics, logger)
	for i := range batch {
		if ctx.Err() != nil {
			break
		}
		post := &batch[i]
		logger.Info("processing article", "index", i+1, "of", len(batch), "title", post.Title, "link", post.Link)

		urls := e.extractImages(ctx, logger, post.Link)
		saved := downloader.DownloadPost(ctx, *post, urls)
		post.MarkDownloads(urls, saved)

		summary.ImagesFound += len(urls)
		summary.ImagesSaved += len(saved)
		summary.ImagesFailed += len(urls) - len(saved)
	}

	// An interrupted pass would record unvisited posts as known.
	if err := ctx.Err(); err != nil {
		return summary, e.interrupted(logger, err)
	}

	state.Append(batch)
	if err := e.store.Save(ctx, state); err != nil {
		return summary, fmt.Errorf("save state: %w", err)
	}
	summary.LastPost = *state.LastPost

	e.finish(summary, start)
	logger.Info("run complete",
		"new_posts", summary.NewPosts,
		"images_saved", summary.ImagesSaved,
		"images_failed", summary.ImagesFailed,
		"elapsed", summary.Elapsed,
	)
	return summary, nil
}

// extractImages fetches the article and returns its candidate image URLs.
// Any failure yields an empty list.
func (e *Engine) extractImages(ctx context.Context, logger *slog.Logger, link string) []string {
	resp, err := e.pages.FetchPage(ctx, link, e.cfg.Fetcher.ArticleTimeout)
	if err != nil {
		e.metrics.ArticlesFailed.Inc()
		logger.Warn("article fetch failed", "url", link, "error", err)
		return []string{}
	}

	urls, err := e.extractor.ExtractImages(resp)
	if err != nil {
		e.metrics.ArticlesFailed.Inc()
		if errors.Is(err, types.ErrNoContentRegion) {
			logger.Warn("article has no content region", "url", link)
		} else {
			logger.Warn("article parse failed", "url", link, "error", err)
		}
		return []string{}
	}

	e.metrics.ImagesFound.Add(float64(len(urls)))
	if len(urls) == 0 {
		logger.Info("no images found", "url", link)
	}
	return urls
}

func (e *Engine) interrupted(logger *slog.Logger, err error) error {
	logger.Warn("run interrupted, state not saved", "error", err)
	return fmt.Errorf("run interrupted: %w", err)
}

func (e *Engine) finish(summary *Summary, start time.Time) {
	summary.Elapsed = time.Since(start)
	e.metrics.LastRunTimestamp.SetToCurrentTime()
}
