package crawl

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gaurav-prasanna/blogbook/core"
	"github.com/gaurav-prasanna/blogbook/core/extract"
)

// WordPressCrawler reads WordPress blogs by following rel=prev and rel=next
// links between posts. Posts are always yielded newest first.
type WordPressCrawler struct {
	fetcher core.Fetcher
	opts    Options
}

// Crawl implements core.Crawler. An empty kind treats the blog root as a
// listing page and anything else as a post.
func (c *WordPressCrawler) Crawl(ctx context.Context, startURL string, kind core.PageKind) (core.PostStream, error) {
	r := newRun(c.fetcher, extract.WordPress, c.opts)
	if kind == "" {
		detected, err := DetectPageKind(startURL)
		if err != nil {
			return nil, err
		}
		kind = detected
	}
	if kind == core.SinglePost {
		return r.olderChain(startURL), nil
	}
	return c.fromListing(ctx, r, startURL)
}

// fromListing guesses a starting post from the listing, collects every newer
// post, then continues through the older chain.
func (c *WordPressCrawler) fromListing(ctx context.Context, r *run, startURL string) (core.PostStream, error) {
	r.logger.Warn("listing detection on WordPress is experimental; pass a single post link for better results")

	list, err := r.page(ctx, startURL)
	if err != nil {
		return nil, err
	}
	if len(list.PostLinks) == 0 {
		return nil, fmt.Errorf("%w: no post links on %s", core.ErrMalformedSource, startURL)
	}

	guess := list.PostLinks[0]
	first, err := r.page(ctx, guess)
	if err != nil {
		return nil, err
	}
	seen := NewQueue()
	seen.Add(guess)

	var newer []core.PostRecord
	for next := first.Newer; next != "" && seen.Add(next); {
		page, err := r.page(ctx, next)
		if errors.Is(err, errPageLimit) {
			r.logger.Warn("page limit reached while reading newer posts", "max_pages", r.maxPages)
			break
		}
		if err != nil {
			return nil, err
		}
		newer = append(newer, page.Post)
		next = page.Newer
	}
	slices.Reverse(newer)

	return r.chain(append(newer, first.Post), first.Older, seen), nil
}
