package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if !strings.Contains(cfg.Site.ListingPath, "%d") {
		return fmt.Errorf("site.listing_path must contain %%d for the page number, got %q", cfg.Site.ListingPath)
	}
	if cfg.Site.Selectors.Type != "css" && cfg.Site.Selectors.Type != "xpath" {
		return fmt.Errorf("site.selectors.type must be 'css' or 'xpath', got %q", cfg.Site.Selectors.Type)
	}
	if cfg.Site.Selectors.Item == "" || cfg.Site.Selectors.Link == "" {
		return fmt.Errorf("site.selectors.item and site.selectors.link are required")
	}
	if cfg.Site.ContentSelector == "" {
		return fmt.Errorf("site.content_selector is required")
	}

	switch cfg.Engine.Mode {
	case ModeSequential:
		if cfg.Engine.MaxPages < 0 {
			return fmt.Errorf("engine.max_pages must be >= 0 in sequential mode, got %d", cfg.Engine.MaxPages)
		}
	case ModeParallel:
		if cfg.Engine.MaxPages < 1 {
			return fmt.Errorf("engine.max_pages must be >= 1 in parallel mode, got %d", cfg.Engine.MaxPages)
		}
	default:
		return fmt.Errorf("engine.mode must be %q or %q, got %q", ModeSequential, ModeParallel, cfg.Engine.Mode)
	}
	if cfg.Engine.PageWorkers < 1 || cfg.Engine.PageWorkers > 1000 {
		return fmt.Errorf("engine.page_workers must be 1-1000, got %d", cfg.Engine.PageWorkers)
	}
	if cfg.Engine.ImageWorkers < 1 || cfg.Engine.ImageWorkers > 1000 {
		return fmt.Errorf("engine.image_workers must be 1-1000, got %d", cfg.Engine.ImageWorkers)
	}
	if cfg.Engine.PageDelay < 0 || cfg.Engine.ImageDelay < 0 {
		return fmt.Errorf("engine.page_delay and engine.image_delay must be >= 0")
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.ListingTimeout <= 0 || cfg.Fetcher.ArticleTimeout <= 0 || cfg.Fetcher.ImageTimeout <= 0 {
		return fmt.Errorf("fetcher timeouts must be > 0")
	}
	if cfg.Fetcher.ChunkSize <= 0 {
		return fmt.Errorf("fetcher.chunk_size must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	switch cfg.Storage.Type {
	case "json":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for json storage")
		}
	case "mongodb":
		if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Key == "" {
			return fmt.Errorf("storage.mongo.uri and storage.mongo.key are required for mongodb storage")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: json, mongodb)", cfg.Storage.Type)
	}
	if cfg.Storage.DownloadDir == "" {
		return fmt.Errorf("storage.download_dir is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a crawl base.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ListingURL returns the absolute URL of listing page n (1-based).
func (s SiteConfig) ListingURL(page int) string {
	return strings.TrimRight(s.BaseURL, "/") + fmt.Sprintf(s.ListingPath, page)
}
