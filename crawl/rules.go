// Package crawl — URL rules.
// Provides helpers to normalize start URLs and pick a crawler for them.
package crawl

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/gaurav-prasanna/blogbook/core"
)

// Platform names a blog engine with a dedicated crawler.
type Platform string

const (
	Blogger   Platform = "blogger"
	WordPress Platform = "wordpress"
	Feed      Platform = "feed"
)

// Platforms lists the accepted platform names.
var Platforms = []Platform{Blogger, WordPress, Feed}

// feedExtensions mark URLs that point straight at a syndication feed.
var feedExtensions = map[string]bool{
	".xml": true, ".rss": true, ".atom": true,
}

// ParsePlatform validates a user-supplied platform name.
func ParsePlatform(name string) (Platform, error) {
	for _, p := range Platforms {
		if strings.EqualFold(name, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown platform %q (want blogger, wordpress or feed)", core.ErrConfiguration, name)
}

// DetectPlatform guesses the platform from the URL alone.
// Feed URLs win over host names so a WordPress feed is read as a feed.
func DetectPlatform(rawURL string) (Platform, error) {
	if isFeedURL(rawURL) {
		return Feed, nil
	}
	switch {
	case strings.Contains(rawURL, "blogspot"):
		return Blogger, nil
	case strings.Contains(rawURL, "wordpress"):
		return WordPress, nil
	}
	return "", fmt.Errorf("%w: cannot detect platform of %s; pass --platform", core.ErrConfiguration, rawURL)
}

func isFeedURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(strings.TrimSuffix(parsed.Path, "/"))
	return feedExtensions[path.Ext(p)] || strings.HasSuffix(p, "/feed") || strings.HasSuffix(p, "/feeds/posts/default")
}

// DetectPageKind reports a listing page for the blog root and a single post
// for anything else.
func DetectPageKind(rawURL string) (core.PageKind, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %q: %w", core.ErrConfiguration, rawURL, err)
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return core.ListingPage, nil
	}
	return core.SinglePost, nil
}

// ParsePageKind validates a user-supplied page kind.
func ParsePageKind(name string) (core.PageKind, error) {
	switch k := core.PageKind(strings.ToLower(name)); k {
	case core.SinglePost, core.ListingPage:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown page type %q (want single-post or listing-page)", core.ErrConfiguration, name)
}

// NormalizeStartURL trims the input and assumes http when no scheme is given.
func NormalizeStartURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", core.ErrConfiguration)
	}
	if !strings.HasPrefix(raw, "http") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid url %q", core.ErrConfiguration, raw)
	}
	return raw, nil
}

// NormalizeURL strips fragments and trailing slashes for deduplication.
func NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Remove fragment.
	parsed.Fragment = ""

	// Remove trailing slash (but keep root "/").
	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String()
}
