package parser

import (
	"bytes"
	"log/slog"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

// XPathListingParser extracts posts using XPath expressions. Field
// expressions are evaluated relative to each item node (e.g. ".//a").
type XPathListingParser struct {
	base   *url.URL
	sel    config.ListingSelector
	logger *slog.Logger
}

// NewXPathListingParser creates a new XPath listing parser.
func NewXPathListingParser(base *url.URL, sel config.ListingSelector, logger *slog.Logger) *XPathListingParser {
	return &XPathListingParser{
		base:   base,
		sel:    sel,
		logger: logger.With("component", "xpath_listing_parser"),
	}
}

// ParsePosts implements ListingParser.
func (p *XPathListingParser) ParsePosts(resp *types.Response) ([]types.Post, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL, Err: err}
	}

	items, err := htmlquery.QueryAll(doc, p.sel.Item)
	if err != nil {
		return nil, &types.ParseError{URL: resp.URL, Selector: p.sel.Item, Err: err}
	}

	posts := make([]types.Post, 0, len(items))
	for i, item := range items {
		linkNode, err := p.query(item, p.sel.Link)
		if err != nil {
			return nil, &types.ParseError{URL: resp.URL, Selector: p.sel.Link, Err: err}
		}
		link := resolve(p.base, nodeValue(linkNode, p.sel.LinkAttr))
		if link == "" {
			p.logger.Debug("listing item without link", "url", resp.URL, "index", i)
			continue
		}

		post := types.Post{Link: link}
		if n, err := p.query(item, p.sel.Title); err == nil {
			post.Title = nodeValue(n, "")
		}
		if n, err := p.query(item, p.sel.Date); err == nil {
			post.Date = nodeValue(n, "")
		}
		if n, err := p.query(item, p.sel.Cover); err == nil && n != nil {
			post.CoverImage = optional(resolve(p.base, nodeValue(n, p.sel.CoverAttr)))
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func (p *XPathListingParser) query(item *html.Node, expr string) (*html.Node, error) {
	if expr == "" {
		return nil, nil
	}
	return htmlquery.Query(item, expr)
}

func nodeValue(n *html.Node, attr string) string {
	if n == nil {
		return ""
	}
	if attr == "" || attr == "text" {
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
	return htmlquery.SelectAttr(n, attr)
}
