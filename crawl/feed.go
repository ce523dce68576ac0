package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/gaurav-prasanna/blogbook/core"
	"github.com/gaurav-prasanna/blogbook/core/extract"
)

// feedLinkSelector finds feeds advertised by an HTML page.
const feedLinkSelector = `link[rel="alternate"][type="application/rss+xml"], link[rel="alternate"][type="application/atom+xml"]`

// FeedCrawler reads any blog that publishes an RSS or Atom feed. The start
// URL may be the feed itself or a page advertising one. Items are yielded in
// feed order, which is newest first for blogs.
type FeedCrawler struct {
	fetcher core.Fetcher
	opts    Options
}

// Crawl implements core.Crawler. The page kind is ignored: a feed is always
// a listing.
func (c *FeedCrawler) Crawl(ctx context.Context, startURL string, _ core.PageKind) (core.PostStream, error) {
	r := newRun(c.fetcher, extract.Generic, c.opts)

	feed, err := c.load(ctx, startURL)
	if err != nil {
		return nil, err
	}
	r.logger.Info("feed read", "title", feed.Title, "items", len(feed.Items))

	items := feed.Items
	seen := NewQueue()
	return core.NewFuncStream(func(ctx context.Context) (core.PostRecord, error) {
		for len(items) > 0 {
			item := items[0]
			items = items[1:]

			link := strings.TrimSpace(item.Link)
			if link == "" {
				r.logger.Warn("skipping feed item without link", "title", item.Title)
				continue
			}
			if !seen.Add(link) {
				continue
			}
			return c.post(ctx, r, item, link)
		}
		return core.PostRecord{}, io.EOF
	}, true), nil
}

// load parses startURL as a feed, or as a page linking to one.
func (c *FeedCrawler) load(ctx context.Context, startURL string) (*gofeed.Feed, error) {
	result, err := c.fetcher.Fetch(ctx, startURL)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	parser := gofeed.NewParser()
	feed, err := parser.ParseString(result.HTML)
	if err == nil {
		return feed, nil
	}

	alt := discoverFeed(startURL, result.HTML)
	if alt == "" {
		return nil, fmt.Errorf("%w: %s is neither a feed nor links to one: %w", core.ErrMalformedSource, startURL, err)
	}
	result, err = c.fetcher.Fetch(ctx, alt)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	feed, err = parser.ParseString(result.HTML)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing feed %s: %w", core.ErrMalformedSource, alt, err)
	}
	return feed, nil
}

// post turns one item into a record. Items without full content are read
// from their page.
func (c *FeedCrawler) post(ctx context.Context, r *run, item *gofeed.Item, link string) (core.PostRecord, error) {
	post := core.PostRecord{
		Title:     strings.TrimSpace(item.Title),
		Body:      r.extractor.Sanitize(item.Content),
		SourceURL: link,
		ID:        core.NewID(link),
	}
	if strings.TrimSpace(item.Content) == "" {
		page, err := r.page(ctx, link)
		switch {
		case err == nil:
			post.Body = page.Post.Body
			if post.Title == "" {
				post.Title = page.Post.Title
			}
		case errors.Is(err, errPageLimit):
			r.logger.Warn("page limit reached, stopping crawl", "max_pages", r.maxPages)
			return core.PostRecord{}, io.EOF
		case item.Description != "":
			r.logger.Debug("item page unavailable, using description", "url", link, "error", err)
			post.Body = r.extractor.Sanitize(item.Description)
		default:
			return core.PostRecord{}, err
		}
	}
	if post.Title == "" {
		post.Title = extract.UntitledPost
	}
	return post, nil
}

// discoverFeed returns the first feed advertised by an HTML page.
func discoverFeed(pageURL, html string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, ok := doc.Find(feedLinkSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
