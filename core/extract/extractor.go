// Package extract turns a fetched blog page into a post record.
// It isolates the post from a full HTML page by:
//  1. Reading title, body and permalink with platform-specific selectors
//  2. Removing noise elements (scripts, forms, share widgets, related posts)
//  3. Sanitising the body fragment
//
// Pages without a recognisable body fall back to readability extraction.
package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/gaurav-prasanna/blogbook/core"
)

// UntitledPost is used when a page has no recognisable title.
const UntitledPost = "Untitled"

// Selectors locate the parts of a post page. Empty selectors are skipped.
type Selectors struct {
	Title string
	Body  string
	// Permalink is an anchor whose href identifies the post. When absent the
	// canonical link, then the page URL, is used.
	Permalink string
	Older     string
	Newer     string
	// PostLinks finds post anchors on a listing page.
	PostLinks string
	// Noise is removed from the body before sanitising.
	Noise []string
}

// Blogger selectors match the default Blogger templates.
var Blogger = Selectors{
	Title:     ".post-title",
	Body:      ".entry-content",
	Permalink: ".timestamp-link",
	Older:     "a.blog-pager-older-link",
	Newer:     "a.blog-pager-newer-link",
	PostLinks: ".post-title a",
}

// WordPress selectors match WordPress.com and most self-hosted themes.
var WordPress = Selectors{
	Title:     ".entry-title",
	Body:      ".entry-content",
	Older:     "a[rel=prev]",
	Newer:     "a[rel=next]",
	PostLinks: ".entry-title a",
	Noise:     []string{".sharedaddy", ".jp-relatedposts"},
}

// Generic has no body selector, so the body always comes from readability.
var Generic = Selectors{
	Title: "article h1, h1",
}

// noiseSelectors are removed from every body.
// These contribute no meaningful content to the chapter.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"form", "button", "input", "select", "textarea",
}

// Page is everything extracted from one fetched page.
type Page struct {
	Post core.PostRecord
	// Older and Newer are absolute links to neighbouring posts, if any.
	Older string
	Newer string
	// PostLinks are absolute post links found on a listing page, in page order.
	PostLinks []string
}

// Extractor reads post pages using one set of selectors.
type Extractor struct {
	sel    Selectors
	policy *bluemonday.Policy
	logger *slog.Logger
}

// New creates an Extractor. A nil logger uses slog.Default.
func New(sel Selectors, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &Extractor{sel: sel, policy: policy, logger: logger}
}

// Extract parses a page fetched from pageURL.
// Missing fields degrade to defaults; only an unusable pageURL is an error.
func (e *Extractor) Extract(pageURL, html string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("%w: page url %q", core.ErrMalformedSource, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", core.ErrMalformedSource, pageURL, err)
	}

	page := &Page{
		Older: e.link(doc, e.sel.Older, base),
		Newer: e.link(doc, e.sel.Newer, base),
	}
	if e.sel.PostLinks != "" {
		doc.Find(e.sel.PostLinks).Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if link := resolveURL(href, base); link != "" {
				page.PostLinks = append(page.PostLinks, link)
			}
		})
	}

	page.Post = core.PostRecord{
		Title:     e.title(doc),
		Body:      e.body(doc, html, base),
		SourceURL: base.String(),
		ID:        core.NewID(e.canonical(doc, base)),
	}
	return page, nil
}

// Sanitize cleans an HTML fragment obtained elsewhere, such as feed content,
// with the same policy applied to extracted bodies.
func (e *Extractor) Sanitize(fragment string) string {
	return e.policy.Sanitize(fragment)
}

func (e *Extractor) title(doc *goquery.Document) string {
	if e.sel.Title != "" {
		if t := strings.TrimSpace(doc.Find(e.sel.Title).First().Text()); t != "" {
			return t
		}
	}
	return UntitledPost
}

func (e *Extractor) body(doc *goquery.Document, raw string, base *url.URL) string {
	var content *goquery.Selection
	if e.sel.Body != "" {
		if sel := doc.Find(e.sel.Body); sel.Length() > 0 {
			content = sel.First()
		}
	}
	if content == nil {
		e.logger.Debug("body selector missed, using readability", "url", base.String())
		return e.readable(raw, base)
	}

	for _, sel := range noiseSelectors {
		content.Find(sel).Remove()
	}
	for _, sel := range e.sel.Noise {
		content.Find(sel).Remove()
	}

	fragment, err := content.Html()
	if err != nil {
		e.logger.Debug("serializing body failed", "url", base.String(), "error", err)
		return ""
	}
	return e.policy.Sanitize(fragment)
}

func (e *Extractor) readable(raw string, base *url.URL) string {
	article, err := readability.FromReader(strings.NewReader(raw), base)
	if err != nil {
		e.logger.Debug("readability extraction failed", "url", base.String(), "error", err)
		return ""
	}
	return e.policy.Sanitize(article.Content)
}

// canonical returns the URL that identifies the post.
func (e *Extractor) canonical(doc *goquery.Document, base *url.URL) string {
	if link := e.link(doc, e.sel.Permalink, base); link != "" {
		return link
	}
	if link := e.link(doc, `link[rel="canonical"]`, base); link != "" {
		return link
	}
	e.logger.Debug("no permalink found, using page url", "url", base.String(), "error", core.ErrMalformedSource)
	return base.String()
}

// link returns the absolute href of the first element matching selector.
func (e *Extractor) link(doc *goquery.Document, selector string, base *url.URL) string {
	if selector == "" {
		return ""
	}
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	return resolveURL(href, base)
}

// resolveURL resolves a potentially relative URL against a base.
func resolveURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	// Skip mailto, javascript, etc.
	if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "tel:") || strings.HasPrefix(href, "#") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	// Strip fragments.
	resolved.Fragment = ""
	return resolved.String()
}
