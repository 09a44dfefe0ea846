// Package search implements the bounded, cancellable web-search
// pipeline: fetch the search engine's rendered result page, extract the
// result anchors, and load each linked page's readable text as the
// snippet. Cancellation is checked cooperatively between external
// calls; a cancelled run returns the results accumulated so far, which
// is a valid, non-error outcome.
package search

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/quincekit/quince/internal/session"
)

// resultPageURL is the query template for the search engine.
const resultPageURL = "https://www.bing.com/search?q=%s"

// anchorSelector locates result anchors on the rendered result page.
const anchorSelector = "#b_results h2 a"

// PageFetcher is the page-loading service the pipeline depends on.
// The production implementation is *fetch.Fetcher.
type PageFetcher interface {
	// HTML returns the raw HTML of a page.
	HTML(ctx context.Context, url string) (string, error)

	// Text returns a page's extracted readable text.
	Text(ctx context.Context, url string) (string, error)
}

// Pipeline runs internet searches against the result page.
type Pipeline struct {
	fetcher PageFetcher
	logger  *slog.Logger
}

// NewPipeline creates a search pipeline over the given fetcher.
func NewPipeline(fetcher PageFetcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher: fetcher,
		logger:  logger.With("component", "search"),
	}
}

// Run executes a search and returns up to count results in the result
// page's anchor order.
//
// Cancellation truncates but never reorders: the token is checked
// after the result page load and again after every snippet fetch, and
// a signalled token returns the list accumulated so far with a nil
// error. A single failed snippet fetch drops that entry only; the rest
// of the search proceeds.
func (p *Pipeline) Run(ctx context.Context, query string, count int) ([]session.SearchItem, error) {
	items := []session.SearchItem{}

	pageURL := strings.Replace(resultPageURL, "%s", url.QueryEscape(query), 1)
	body, err := p.fetcher.HTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return items, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	anchors := doc.Find(anchorSelector)
	n := anchors.Length()
	if count < n {
		n = count
	}

	for i := 0; i < n; i++ {
		a := anchors.Eq(i)
		link, ok := a.Attr("href")
		if !ok || link == "" {
			continue
		}

		item := session.SearchItem{
			Title:       strings.TrimSpace(a.Text()),
			Link:        link,
			DisplayLink: hostOf(link),
		}

		snippet, err := p.fetcher.Text(ctx, link)
		if err != nil {
			// A failed page load drops this entry, not the search.
			if ctx.Err() != nil {
				return items, nil
			}
			p.logger.Warn("snippet fetch failed", "url", link, "error", err)
		} else {
			item.Snippet = snippet
			items = append(items, item)
		}

		if ctx.Err() != nil {
			return items, nil
		}
	}

	p.logger.Debug("search complete", "query", query, "results", len(items))
	return items, nil
}

// hostOf returns the host portion of a link, or the link itself when
// it does not parse.
func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return link
	}
	return u.Host
}
