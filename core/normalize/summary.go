package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gaurav-prasanna/blogbook/core"
)

// Summary is the structural overview of one post printed by
// `preview --format json`. It is derived from the Markdown rendering and
// infers nothing beyond headings, links and images.
type Summary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Words    int       `json:"words"`
	Images   []string  `json:"images,omitempty"`
	Headings []Heading `json:"headings,omitempty"`
	Links    []Link    `json:"links,omitempty"`
	Markdown string    `json:"markdown"`
}

// Heading is a Markdown heading.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is a Markdown link.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Summarize renders post as Markdown and records its structure.
func (n *MarkdownNormalizer) Summarize(post core.PostRecord) (*Summary, error) {
	markdown, err := n.Normalize(post.Body)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", post.SourceURL, err)
	}
	markdown = strings.TrimSpace(markdown)

	s := &Summary{
		ID:       post.ID,
		Title:    post.Title,
		URL:      post.SourceURL,
		Headings: extractHeadings(markdown),
		Markdown: markdown,
	}
	for _, m := range linkRegex.FindAllStringSubmatch(markdown, -1) {
		if m[1] == "!" {
			s.Images = append(s.Images, m[3])
			continue
		}
		s.Links = append(s.Links, Link{Text: m[2], Href: m[3]})
	}
	s.Words = len(strings.Fields(stripMarkdown(markdown)))
	return s, nil
}

// --- Markdown parsing helpers ---

var headingRegex = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

func extractHeadings(md string) []Heading {
	matches := headingRegex.FindAllStringSubmatch(md, -1)
	headings := make([]Heading, 0, len(matches))
	for _, m := range matches {
		headings = append(headings, Heading{
			Level: len(m[1]),
			Text:  strings.TrimSpace(m[2]),
		})
	}
	return headings
}

// linkRegex matches Markdown links [text](url) and images ![alt](src).
var linkRegex = regexp.MustCompile(`(!?)\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)

var (
	emphasisRegex   = regexp.MustCompile(`\*{1,3}([^*]+)\*{1,3}`)
	inlineCodeRegex = regexp.MustCompile("`([^`]+)`")
)

// stripMarkdown removes common Markdown formatting to produce plain text.
func stripMarkdown(md string) string {
	text := md
	// Remove headings markers.
	text = headingRegex.ReplaceAllString(text, "$2")
	// Remove bold/italic.
	text = emphasisRegex.ReplaceAllString(text, "$1")
	// Remove links and images, keep text.
	text = linkRegex.ReplaceAllString(text, "$2")
	// Remove code block fences.
	text = strings.ReplaceAll(text, "```", "")
	// Remove inline code.
	text = inlineCodeRegex.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
