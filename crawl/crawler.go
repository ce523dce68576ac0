// Package crawl walks blog post chains and yields their posts as a stream.
// Each platform crawler fetches pages through a core.Fetcher and reads them
// with an extract.Extractor configured for that platform, keeping crawling
// logic separate from the packaging pipeline.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gaurav-prasanna/blogbook/core"
	"github.com/gaurav-prasanna/blogbook/core/extract"
)

// errPageLimit ends a crawl early once Options.MaxPages pages were fetched.
var errPageLimit = errors.New("page limit reached")

// Options configures a crawler.
type Options struct {
	// MaxPages caps the pages fetched by one crawl, listing pages included.
	// Zero means unlimited.
	MaxPages int
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// New returns the crawler for platform.
func New(platform Platform, fetcher core.Fetcher, opts Options) (core.Crawler, error) {
	opts.defaults()
	switch platform {
	case Blogger:
		return &BloggerCrawler{fetcher: fetcher, opts: opts}, nil
	case WordPress:
		return &WordPressCrawler{fetcher: fetcher, opts: opts}, nil
	case Feed:
		return &FeedCrawler{fetcher: fetcher, opts: opts}, nil
	}
	return nil, fmt.Errorf("%w: no crawler for platform %q", core.ErrConfiguration, platform)
}

// run holds the state of one crawl.
type run struct {
	fetcher   core.Fetcher
	extractor *extract.Extractor
	logger    *slog.Logger
	maxPages  int
	pages     int
}

func newRun(fetcher core.Fetcher, sel extract.Selectors, opts Options) *run {
	return &run{
		fetcher:   fetcher,
		extractor: extract.New(sel, opts.Logger),
		logger:    opts.Logger,
		maxPages:  opts.MaxPages,
	}
}

// page fetches and extracts one page.
func (r *run) page(ctx context.Context, url string) (*extract.Page, error) {
	if r.maxPages > 0 && r.pages >= r.maxPages {
		return nil, errPageLimit
	}
	r.pages++

	result, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	if result.URL != "" {
		url = result.URL
	}
	return r.extractor.Extract(url, result.HTML)
}

// chain yields pending first, then follows older links starting at next.
// seen must already hold the URLs of pending.
func (r *run) chain(pending []core.PostRecord, next string, seen *Queue) core.PostStream {
	if next != "" && !seen.Add(next) {
		next = ""
	}
	return core.NewFuncStream(func(ctx context.Context) (core.PostRecord, error) {
		if len(pending) > 0 {
			post := pending[0]
			pending = pending[1:]
			return post, nil
		}
		if next == "" {
			return core.PostRecord{}, io.EOF
		}

		url := next
		next = ""
		page, err := r.page(ctx, url)
		if errors.Is(err, errPageLimit) {
			r.logger.Warn("page limit reached, stopping crawl", "max_pages", r.maxPages)
			return core.PostRecord{}, io.EOF
		}
		if err != nil {
			return core.PostRecord{}, err
		}

		if page.Older != "" {
			if seen.Add(page.Older) {
				next = page.Older
			} else {
				r.logger.Warn("older link loops back, stopping crawl", "url", page.Older)
			}
		}
		return page.Post, nil
	}, true)
}

// olderChain walks older links from start, newest post first.
func (r *run) olderChain(start string) core.PostStream {
	return r.chain(nil, start, NewQueue())
}
