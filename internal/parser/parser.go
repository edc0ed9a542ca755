package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// ListingParser extracts post records from one listing page.
type ListingParser interface {
	// ParsePosts returns the posts on the page in document order.
	ParsePosts(resp *types.Response) ([]types.Post, error)
}

// NewListingParser returns the parser selected by site.selectors.type.
func NewListingParser(site config.SiteConfig, logger *slog.Logger) (ListingParser, error) {
	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}

	switch site.Selectors.Type {
	case "", "css":
		return NewCSSListingParser(base, site.Selectors, logger), nil
	case "xpath":
		return NewXPathListingParser(base, site.Selectors, logger), nil
	default:
		return nil, fmt.Errorf("unsupported selector type: %s", site.Selectors.Type)
	}
}

// resolve turns href into an absolute URL against base. Empty or
// unparsable references yield "".
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
