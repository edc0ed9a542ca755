package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// PageFetcher retrieves whole HTML documents (listing and article pages).
type PageFetcher interface {
	// FetchPage GETs rawURL and returns the decoded body. The request is
	// abandoned once timeout elapses.
	FetchPage(ctx context.Context, rawURL string, timeout time.Duration) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// StreamFetcher retrieves binary payloads without buffering them whole.
type StreamFetcher interface {
	// Stream GETs rawURL and returns its body. The caller must close it;
	// timeout bounds the whole transfer, not just the headers.
	Stream(ctx context.Context, rawURL string, timeout time.Duration) (io.ReadCloser, error)
}

// New returns the page fetcher selected by cfg.Type together with the HTTP
// fetcher used for image streams. Callers close both.
func New(cfg *config.Config, logger *slog.Logger) (PageFetcher, *HTTPFetcher, error) {
	httpFetcher, err := NewHTTPFetcher(&cfg.Fetcher, logger)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Fetcher.Type {
	case "http":
		return httpFetcher, httpFetcher, nil
	case "browser":
		bf, err := NewBrowserFetcher(&cfg.Fetcher, cfg.Engine.PageWorkers, logger)
		if err != nil {
			httpFetcher.Close()
			return nil, nil, err
		}
		return bf, httpFetcher, nil
	default:
		httpFetcher.Close()
		return nil, nil, fmt.Errorf("unsupported fetcher type: %s", cfg.Fetcher.Type)
	}
}
