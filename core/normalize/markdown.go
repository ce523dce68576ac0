// Package normalize turns extracted posts into packaging-ready chapters.
// ChapterNormalizer produces XHTML chapters with bundled images for the
// EPUB; MarkdownNormalizer renders posts as Markdown for previews.
package normalize

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gaurav-prasanna/blogbook/core"
)

// MarkdownNormalizer converts HTML to Markdown using html-to-markdown.
type MarkdownNormalizer struct{}

// NewMarkdown creates a MarkdownNormalizer.
func NewMarkdown() *MarkdownNormalizer {
	return &MarkdownNormalizer{}
}

// Normalize converts a cleaned HTML fragment into Markdown.
func (n *MarkdownNormalizer) Normalize(html string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	return markdown, nil
}

// Post renders a whole post: title heading, source line, then the body.
func (n *MarkdownNormalizer) Post(post core.PostRecord) (string, error) {
	body, err := n.Normalize(post.Body)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", post.SourceURL, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", post.Title)
	fmt.Fprintf(&b, "Source: <%s>\n\n", post.SourceURL)
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	return b.String(), nil
}
