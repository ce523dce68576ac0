// Package resource is the per-run registry of binary assets referenced by
// chapters. Each locator is fetched at most once and maps to one stable id.
package resource

import (
	"context"
	"fmt"
	"sync"

	"github.com/gaurav-prasanna/blogbook/core"
	"golang.org/x/sync/singleflight"
)

// Resource is one bundled asset. Content is nil once handed out by Take.
type Resource struct {
	Locator   string
	ID        string
	MediaType string
	Content   []byte
}

// Store maps locators to resources in insertion order.
// It is safe for concurrent use.
type Store struct {
	fetcher core.ResourceFetcher
	group   singleflight.Group

	mu    sync.Mutex
	byLoc map[string]*entry
	byID  map[string]*entry
	order []*entry
}

type entry struct {
	Resource
	taken bool
}

// NewStore creates an empty Store backed by fetcher.
func NewStore(fetcher core.ResourceFetcher) *Store {
	return &Store{
		fetcher: fetcher,
		byLoc:   make(map[string]*entry),
		byID:    make(map[string]*entry),
	}
}

// Resolve returns the id for locator, fetching it on first use.
// Concurrent calls for the same locator share one fetch. A failed fetch
// leaves the store unchanged so the locator can be retried.
func (s *Store) Resolve(ctx context.Context, locator string) (string, error) {
	if r, ok := s.Lookup(locator); ok {
		return r.ID, nil
	}

	v, err, _ := s.group.Do(locator, func() (any, error) {
		// Another caller may have finished between Lookup and Do.
		if r, ok := s.Lookup(locator); ok {
			return r.ID, nil
		}
		data, err := s.fetcher.FetchResource(ctx, locator)
		if err != nil {
			return "", fmt.Errorf("resolving resource %s: %w", shorten(locator), err)
		}
		return s.insert(locator, data), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Store) insert(locator string, data *core.ResourceData) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.byLoc[locator]; ok {
		return r.ID
	}
	r := &entry{Resource: Resource{
		Locator:   locator,
		ID:        core.NewID(locator),
		MediaType: data.MediaType,
		Content:   data.Content,
	}}
	s.byLoc[locator] = r
	s.byID[r.ID] = r
	s.order = append(s.order, r)
	return r.ID
}

// Lookup returns the resource registered for locator without any I/O.
// The returned value carries metadata only.
func (s *Store) Lookup(locator string) (Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byLoc[locator]
	if !ok {
		return Resource{}, false
	}
	return Resource{Locator: r.Locator, ID: r.ID, MediaType: r.MediaType}, true
}

// Take hands the content of id to the caller exactly once and releases it
// from the store. The locator to id mapping is kept.
func (s *Store) Take(id string) (Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok || r.taken {
		return Resource{}, false
	}
	out := r.Resource
	r.Content = nil
	r.taken = true
	return out, true
}

// All returns resource metadata in insertion order, without content.
func (s *Store) All() []Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Resource, len(s.order))
	for i, r := range s.order {
		out[i] = Resource{Locator: r.Locator, ID: r.ID, MediaType: r.MediaType}
	}
	return out
}

// shorten keeps data: URIs readable in error messages.
func shorten(locator string) string {
	const max = 80
	if len(locator) <= max {
		return locator
	}
	return locator[:max] + "..."
}
