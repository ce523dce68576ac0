// Package core defines the pipeline types and interfaces for BlogBook.
// Each collaborator of the packaging pipeline is a clean, testable interface.
package core

import (
	"context"
	"io"
)

// FetchResult holds the raw HTML and response metadata from a page fetch.
type FetchResult struct {
	URL        string
	StatusCode int
	HTML       string
}

// ResourceData is the payload of a fetched binary resource.
type ResourceData struct {
	Content   []byte
	MediaType string
}

// PostRecord is one blog post as produced by a crawler.
// Body is an HTML fragment; ID is derived from the post's canonical URL.
type PostRecord struct {
	Title     string
	Body      string
	SourceURL string
	ID        string
}

// PageKind tells a crawler how to interpret its start URL.
type PageKind string

const (
	SinglePost  PageKind = "single-post"
	ListingPage PageKind = "listing-page"
)

// Fetcher retrieves raw HTML from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// ResourceFetcher retrieves the bytes and media type behind a locator.
// A locator is either a remote URL or a data: URI.
type ResourceFetcher interface {
	FetchResource(ctx context.Context, locator string) (*ResourceData, error)
}

// PostStream is a single-consumer, forward-only sequence of posts.
// Next returns io.EOF once the sequence is exhausted.
type PostStream interface {
	Next(ctx context.Context) (PostRecord, error)
	// NewestFirst reports whether posts arrive newest to oldest.
	NewestFirst() bool
}

// Crawler walks a blog starting at startURL and yields its posts.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, kind PageKind) (PostStream, error)
}

// SliceStream serves an eagerly materialized list of posts as a PostStream.
type SliceStream struct {
	posts       []PostRecord
	idx         int
	newestFirst bool
}

// NewSliceStream wraps posts. newestFirst describes the order of posts.
func NewSliceStream(posts []PostRecord, newestFirst bool) *SliceStream {
	return &SliceStream{posts: posts, newestFirst: newestFirst}
}

// Next returns the next post, or io.EOF.
func (s *SliceStream) Next(ctx context.Context) (PostRecord, error) {
	if err := ctx.Err(); err != nil {
		return PostRecord{}, err
	}
	if s.idx >= len(s.posts) {
		return PostRecord{}, io.EOF
	}
	p := s.posts[s.idx]
	s.idx++
	return p, nil
}

// NewestFirst reports the order the posts were supplied in.
func (s *SliceStream) NewestFirst() bool {
	return s.newestFirst
}

// FuncStream adapts a generator function to a PostStream.
type FuncStream struct {
	next        func(ctx context.Context) (PostRecord, error)
	newestFirst bool
	done        bool
}

// NewFuncStream creates a stream that calls next until it returns an error.
// Once next returns any error (including io.EOF) the stream stays exhausted.
func NewFuncStream(next func(ctx context.Context) (PostRecord, error), newestFirst bool) *FuncStream {
	return &FuncStream{next: next, newestFirst: newestFirst}
}

// Next returns the next post produced by the generator.
func (s *FuncStream) Next(ctx context.Context) (PostRecord, error) {
	if s.done {
		return PostRecord{}, io.EOF
	}
	p, err := s.next(ctx)
	if err != nil {
		s.done = true
		return PostRecord{}, err
	}
	return p, nil
}

// NewestFirst reports the order the generator produces posts in.
func (s *FuncStream) NewestFirst() bool {
	return s.newestFirst
}
