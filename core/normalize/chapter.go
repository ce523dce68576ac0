package normalize

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"text/template"

	"github.com/PuerkitoBio/goquery"
	"github.com/gaurav-prasanna/blogbook/core"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// Resolver maps an asset locator to a local resource id, fetching it on
// first use. *resource.Store implements it.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (string, error)
}

// Chapter is a packaging-ready post.
type Chapter struct {
	ID string
	// Title is escaped for embedding in XHTML text.
	Title string
	// Content is a complete XHTML document referencing only local resources.
	Content []byte
	// Resources lists the resource ids used, in first-reference order.
	Resources []string
}

// Config configures a ChapterNormalizer.
type Config struct {
	// Workers bounds concurrent resource fetches within one chapter. Default: 4.
	Workers int
	Logger  *slog.Logger
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// ChapterNormalizer turns PostRecords into Chapters.
type ChapterNormalizer struct {
	config Config
}

// NewChapterNormalizer creates a ChapterNormalizer.
func NewChapterNormalizer(cfg Config) *ChapterNormalizer {
	cfg.defaults()
	return &ChapterNormalizer{config: cfg}
}

var titleEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;")

// EscapeTitle escapes the only two characters that are unsafe in XHTML text.
// Characters XML does not allow at all are dropped first.
func EscapeTitle(title string) string {
	return titleEscaper.Replace(stripInvalidXML(title))
}

// stripInvalidXML removes runes outside the XML 1.0 Char production.
func stripInvalidXML(s string) string {
	if strings.IndexFunc(s, invalidXMLChar) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if invalidXMLChar(r) {
			return -1
		}
		return r
	}, s)
}

func invalidXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return false
	case r < 0x20:
		return true
	case r >= 0xD800 && r <= 0xDFFF:
		return true
	case r == 0xFFFE, r == 0xFFFF:
		return true
	}
	return r > 0x10FFFF
}

// unsafeSelectors are elements whose content cannot be embedded as XHTML
// or that would pull remote content into the book.
var unsafeSelectors = "script, style, noscript, iframe, object, embed, source[srcset]"

// rawTextRenames maps elements the HTML serializer writes as unescaped raw
// text to plain containers that get escaped like any other text.
var rawTextRenames = map[string]atom.Atom{
	"xmp":       atom.Pre,
	"plaintext": atom.Pre,
	"noembed":   atom.Div,
	"noframes":  atom.Div,
}

// xmlName matches attribute names that are valid without a namespace binding.
var xmlName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

var chapterTemplate = template.Must(template.New("chapter").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
<title>{{.Title}}</title>
</head>
<body>
<div>
<h1>{{.Title}}</h1>
<div><p><a href="{{.SourceURL}}">Link to original</a></p></div>
<div>{{.Body}}</div>
</div>
</body>
</html>
`))

// Normalize escapes the title, rewrites every image to a resource id from
// store and wraps the body in the chapter envelope.
func (n *ChapterNormalizer) Normalize(ctx context.Context, post core.PostRecord, store Resolver) (*Chapter, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(post.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing body of %s: %w", post.SourceURL, err)
	}
	doc.Find(unsafeSelectors).Remove()

	base, _ := url.Parse(post.SourceURL)
	imgs, locators := collectImages(doc, base)

	ids, err := n.resolveAll(ctx, locators, store)
	if err != nil {
		return nil, fmt.Errorf("normalizing %s: %w", post.SourceURL, err)
	}

	for _, img := range imgs {
		img.sel.SetAttr("src", "./"+ids[img.locator])
		img.sel.RemoveAttr("srcset")
	}
	makeXMLSafe(doc.Selection)

	body, err := doc.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("serializing body of %s: %w", post.SourceURL, err)
	}

	title := EscapeTitle(post.Title)
	var buf bytes.Buffer
	err = chapterTemplate.Execute(&buf, struct {
		Title, SourceURL, Body string
	}{
		Title:     title,
		SourceURL: html.EscapeString(post.SourceURL),
		Body:      body,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering chapter %s: %w", post.ID, err)
	}

	resources := make([]string, len(locators))
	for i, loc := range locators {
		resources[i] = ids[loc]
	}

	n.config.Logger.Debug("chapter normalized", "id", post.ID, "images", len(imgs), "resources", len(resources))
	return &Chapter{
		ID:        post.ID,
		Title:     title,
		Content:   buf.Bytes(),
		Resources: resources,
	}, nil
}

type imageRef struct {
	sel     *goquery.Selection
	locator string
}

// collectImages returns every usable <img> in document order plus the
// distinct locators in first-reference order. Images without a usable
// src are removed.
func collectImages(doc *goquery.Document, base *url.URL) ([]imageRef, []string) {
	var (
		refs     []imageRef
		locators []string
		seen     = make(map[string]bool)
	)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		loc := absoluteLocator(strings.TrimSpace(s.AttrOr("src", "")), base)
		if loc == "" {
			s.Remove()
			return
		}
		refs = append(refs, imageRef{sel: s, locator: loc})
		if !seen[loc] {
			seen[loc] = true
			locators = append(locators, loc)
		}
	})
	return refs, locators
}

// absoluteLocator resolves src against the page URL. data: URIs pass through.
func absoluteLocator(src string, base *url.URL) string {
	if src == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(src), "data:") {
		return src
	}
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// resolveAll resolves distinct locators with at most Workers fetches in flight.
func (n *ChapterNormalizer) resolveAll(ctx context.Context, locators []string, store Resolver) (map[string]string, error) {
	results := make([]string, len(locators))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.config.Workers)
	for i, loc := range locators {
		g.Go(func() error {
			id, err := store.Resolve(gctx, loc)
			if err != nil {
				return err
			}
			results[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(locators))
	for i, loc := range locators {
		ids[loc] = results[i]
	}
	return ids, nil
}

// makeXMLSafe drops comments and attributes that cannot be written as XML,
// such as namespaced SVG attributes, xmlns overrides or framework bindings
// like "@click". Elements with prefixed names (Word's <o:p>) are replaced by
// their children, raw-text elements like <xmp> become ordinary containers,
// and characters XML forbids are removed from text and attribute values.
func makeXMLSafe(sel *goquery.Selection) {
	var comments, prefixed []*html.Node
	for _, root := range sel.Nodes {
		walk(root, func(node *html.Node) {
			switch node.Type {
			case html.CommentNode:
				comments = append(comments, node)
			case html.TextNode:
				node.Data = stripInvalidXML(node.Data)
			case html.ElementNode:
				if !xmlName.MatchString(node.Data) {
					prefixed = append(prefixed, node)
				}
				if a, ok := rawTextRenames[node.Data]; ok {
					node.DataAtom = a
					node.Data = a.String()
				}
				kept := node.Attr[:0]
				for _, a := range node.Attr {
					if a.Namespace == "" && a.Key != "xmlns" && xmlName.MatchString(a.Key) {
						a.Val = stripInvalidXML(a.Val)
						kept = append(kept, a)
					}
				}
				node.Attr = kept
			}
		})
	}
	for _, c := range comments {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
	}
	for _, node := range prefixed {
		unwrap(node)
	}
}

func unwrap(node *html.Node) {
	parent := node.Parent
	if parent == nil {
		return
	}
	for c := node.FirstChild; c != nil; c = node.FirstChild {
		node.RemoveChild(c)
		parent.InsertBefore(c, node)
	}
	parent.RemoveChild(node)
}

func walk(node *html.Node, fn func(*html.Node)) {
	fn(node)
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
