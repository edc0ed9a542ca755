package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/imgharvest/internal/types"
)

// imagePattern matches the path of a qualifying content image.
var imagePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// ImageExtractor collects content-image URLs from an article page.
type ImageExtractor struct {
	base            *url.URL
	contentSelector string
	logger          *slog.Logger
}

// NewImageExtractor creates an extractor that only looks inside the first
// element matching contentSelector.
func NewImageExtractor(baseURL, contentSelector string, logger *slog.Logger) (*ImageExtractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	return &ImageExtractor{
		base:            base,
		contentSelector: contentSelector,
		logger:          logger.With("component", "image_extractor"),
	}, nil
}

// ExtractImages returns the sorted, deduplicated absolute URLs of every
// qualifying src/srcset candidate on img and source tags in the content region.
func (x *ImageExtractor) ExtractImages(resp *types.Response) ([]string, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL, Err: err}
	}

	region := doc.Find(x.contentSelector).First()
	if region.Length() == 0 {
		return nil, &types.ParseError{URL: resp.URL, Selector: x.contentSelector, Err: types.ErrNoContentRegion}
	}

	found := make(map[string]struct{})
	region.Find("img, source").Each(func(_ int, tag *goquery.Selection) {
		if src, ok := tag.Attr("src"); ok {
			x.add(found, src)
		}
		if srcset, ok := tag.Attr("srcset"); ok {
			for _, entry := range strings.Split(srcset, ",") {
				fields := strings.Fields(entry)
				if len(fields) == 0 {
					continue
				}
				x.add(found, fields[0])
			}
		}
	})

	images := make([]string, 0, len(found))
	for u := range found {
		images = append(images, u)
	}
	sort.Strings(images)

	x.logger.Debug("content images extracted", "url", resp.URL, "count", len(images))
	return images, nil
}

// add strips the query string, applies the extension filter and records
// the absolute form of candidate.
func (x *ImageExtractor) add(found map[string]struct{}, candidate string) {
	candidate, _, _ = strings.Cut(strings.TrimSpace(candidate), "?")
	if !imagePattern.MatchString(candidate) {
		return
	}
	if abs := resolve(x.base, candidate); abs != "" {
		found[abs] = struct{}{}
	}
}
