// Package cache is a content-addressed on-disk cache of fetched page text.
// Keys are hashed with md5 so any URL maps to a flat file name. A short
// lived in-memory layer avoids re-reading files within one run.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gaurav-prasanna/blogbook/core"
	gocache "github.com/patrickmn/go-cache"
)

const (
	memoryTTL     = 10 * time.Minute
	memoryCleanup = 15 * time.Minute
)

// Cache stores page bodies under Dir.
type Cache struct {
	dir    string
	memory *gocache.Cache
}

// New creates a Cache rooted at dir, creating the directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{
		dir:    dir,
		memory: gocache.New(memoryTTL, memoryCleanup),
	}, nil
}

// Get returns the cached text for key.
func (c *Cache) Get(key string) (string, bool) {
	hashed := core.HashKey(key)
	if v, found := c.memory.Get(hashed); found {
		return v.(string), true
	}
	data, err := os.ReadFile(c.path(hashed))
	if err != nil {
		return "", false
	}
	text := string(data)
	c.memory.Set(hashed, text, gocache.DefaultExpiration)
	return text, true
}

// Set stores text under key. The file is written through a temp file so a
// crash never leaves a truncated entry behind.
func (c *Cache) Set(key, text string) error {
	hashed := core.HashKey(key)
	tmp, err := os.CreateTemp(c.dir, hashed+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(hashed)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("committing cache file: %w", err)
	}
	c.memory.Set(hashed, text, gocache.DefaultExpiration)
	return nil
}

// Delete removes key from both layers. Missing entries are not an error.
func (c *Cache) Delete(key string) error {
	hashed := core.HashKey(key)
	c.memory.Delete(hashed)
	if err := os.Remove(c.path(hashed)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

func (c *Cache) path(hashed string) string {
	return filepath.Join(c.dir, hashed)
}

// Fetcher consults the cache before delegating page fetches.
type Fetcher struct {
	next   core.Fetcher
	cache  *Cache
	logger *slog.Logger
}

// NewFetcher wraps next with cache lookups. A nil logger uses slog.Default.
func NewFetcher(next core.Fetcher, c *Cache, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{next: next, cache: c, logger: logger}
}

// Fetch returns the cached page when present, otherwise fetches and stores it.
// A blank cached page is dropped and fetched again. A failure to write the
// cache is logged and does not fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*core.FetchResult, error) {
	if text, ok := f.cache.Get(url); ok {
		if strings.TrimSpace(text) != "" {
			f.logger.Debug("page from cache", "url", url)
			return &core.FetchResult{URL: url, StatusCode: 200, HTML: text}, nil
		}
		if err := f.cache.Delete(url); err != nil {
			f.logger.Warn("dropping blank cache entry failed", "url", url, "err", err)
		}
	}

	result, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Set(url, result.HTML); err != nil {
		f.logger.Warn("caching page failed", "url", url, "err", err)
	}
	return result, nil
}
