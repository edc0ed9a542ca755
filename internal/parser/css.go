package parser

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// CSSListingParser extracts posts using CSS selectors via goquery.
type CSSListingParser struct {
	base   *url.URL
	sel    config.ListingSelector
	logger *slog.Logger
}

// NewCSSListingParser creates a new CSS selector listing parser.
func NewCSSListingParser(base *url.URL, sel config.ListingSelector, logger *slog.Logger) *CSSListingParser {
	return &CSSListingParser{
		base:   base,
		sel:    sel,
		logger: logger.With("component", "css_listing_parser"),
	}
}

// ParsePosts implements ListingParser.
func (p *CSSListingParser) ParsePosts(resp *types.Response) ([]types.Post, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL, Selector: p.sel.Item, Err: err}
	}

	posts := make([]types.Post, 0)
	doc.Find(p.sel.Item).Each(func(i int, item *goquery.Selection) {
		href := attrOrText(item.Find(p.sel.Link).First(), p.sel.LinkAttr)
		link := resolve(p.base, href)
		if link == "" {
			p.logger.Debug("listing item without link", "url", resp.URL, "index", i)
			return
		}

		post := types.Post{
			Link:  link,
			Title: firstText(item, p.sel.Title),
			Date:  firstText(item, p.sel.Date),
		}
		if p.sel.Cover != "" {
			cover := item.Find(p.sel.Cover).First()
			if cover.Length() > 0 {
				post.CoverImage = optional(resolve(p.base, attrOrText(cover, p.sel.CoverAttr)))
			}
		}
		posts = append(posts, post)
	})

	return posts, nil
}

func firstText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(item.Find(selector).First().Text())
}

func attrOrText(sel *goquery.Selection, attr string) string {
	if sel.Length() == 0 {
		return ""
	}
	if attr == "" || attr == "text" {
		return strings.TrimSpace(sel.Text())
	}
	val, _ := sel.Attr(attr)
	return val
}
