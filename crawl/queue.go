// Package crawl — FIFO queue with deduplication.
// Keeps a visited set so chain walks stop on cycles and listings never
// yield the same post twice.
package crawl

import "slices"

// Queue is a FIFO queue of URLs, deduplicated on their normalized form.
type Queue struct {
	items   []string
	visited map[string]bool
	idx     int // current read position
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		visited: make(map[string]bool),
	}
}

// Add enqueues a URL if it hasn't been seen before and reports whether it
// was added.
func (q *Queue) Add(url string) bool {
	key := NormalizeURL(url)
	if q.visited[key] {
		return false
	}
	q.visited[key] = true
	q.items = append(q.items, url)
	return true
}

// HasNext returns true if there are unprocessed URLs.
func (q *Queue) HasNext() bool {
	return q.idx < len(q.items)
}

// Next returns the next unprocessed URL and advances the pointer.
func (q *Queue) Next() string {
	url := q.items[q.idx]
	q.idx++
	return url
}

// Len returns the total number of unique URLs seen.
func (q *Queue) Len() int {
	return len(q.visited)
}

// Reverse flips the order of the URLs not yet returned by Next.
func (q *Queue) Reverse() {
	slices.Reverse(q.items[q.idx:])
}
