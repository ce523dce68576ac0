package crawl

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/gaurav-prasanna/blogbook/core"
	"github.com/gaurav-prasanna/blogbook/core/extract"
)

// BloggerCrawler reads Blogger (blogspot) blogs.
//
// A post URL is walked through its "older post" links, newest first. Any
// other URL is treated as a listing: every listing page is read first, then
// the posts are fetched oldest first.
type BloggerCrawler struct {
	fetcher core.Fetcher
	opts    Options
}

// Crawl implements core.Crawler. An empty kind decides from the URL: Blogger
// post permalinks end in ".html".
func (c *BloggerCrawler) Crawl(ctx context.Context, startURL string, kind core.PageKind) (core.PostStream, error) {
	r := newRun(c.fetcher, extract.Blogger, c.opts)
	if kind == "" {
		kind = core.ListingPage
		if u, err := url.Parse(startURL); err == nil && strings.HasSuffix(u.Path, ".html") {
			kind = core.SinglePost
		}
	}
	if kind == core.SinglePost {
		return r.olderChain(startURL), nil
	}
	return c.listing(ctx, r, startURL)
}

// listing collects post links from every listing page, following older
// links, and returns a stream fetching the posts lazily, oldest first.
func (c *BloggerCrawler) listing(ctx context.Context, r *run, startURL string) (core.PostStream, error) {
	pages := NewQueue()
	pages.Add(startURL)
	posts := NewQueue()

	for pages.HasNext() {
		page, err := r.page(ctx, pages.Next())
		if errors.Is(err, errPageLimit) {
			r.logger.Warn("page limit reached while reading listing", "max_pages", r.maxPages)
			break
		}
		if err != nil {
			return nil, err
		}
		for _, link := range page.PostLinks {
			posts.Add(link)
		}
		if page.Older != "" && !pages.Add(page.Older) {
			r.logger.Warn("listing older link loops back", "url", page.Older)
		}
	}
	r.logger.Info("listing read", "pages", pages.Len(), "posts", posts.Len())

	// Listings run newest to oldest.
	posts.Reverse()

	return core.NewFuncStream(func(ctx context.Context) (core.PostRecord, error) {
		if !posts.HasNext() {
			return core.PostRecord{}, io.EOF
		}
		page, err := r.page(ctx, posts.Next())
		if errors.Is(err, errPageLimit) {
			r.logger.Warn("page limit reached, stopping crawl", "max_pages", r.maxPages)
			return core.PostRecord{}, io.EOF
		}
		if err != nil {
			return core.PostRecord{}, err
		}
		return page.Post, nil
	}, false), nil
}
