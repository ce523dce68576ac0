// Package cmd — preview command.
// Crawls like convert but prints each post as Markdown instead of packaging.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gaurav-prasanna/blogbook/config"
	"github.com/gaurav-prasanna/blogbook/core"
	"github.com/gaurav-prasanna/blogbook/core/normalize"
	"github.com/gaurav-prasanna/blogbook/crawl"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	previewPlatform string
	previewPageType string
	previewLimit    int
	previewFormat   string
)

var previewCmd = &cobra.Command{
	Use:   "preview <url>",
	Short: "Print the posts a conversion would include, as Markdown",
	Long: `Preview walks the blog exactly like convert and prints every post as
Markdown, in crawl order. Use it to check the selectors and the post chain
before building a book. With --format json each post is printed as one JSON
object per line, listing its headings, links and images.

Examples:
  blogbook preview myblog.blogspot.com --limit 3
  blogbook preview https://notes.wordpress.com/ --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	f := previewCmd.Flags()
	addCrawlFlags(f, &previewPlatform, &previewPageType)
	f.IntVar(&previewLimit, "limit", 0, "Stop after this many posts (0 for all)")
	f.StringVar(&previewFormat, "format", "markdown", "Output format: markdown or json")
}

// addCrawlFlags registers the flags shared by convert and preview.
func addCrawlFlags(f *pflag.FlagSet, platform, pageType *string) {
	f.StringVar(platform, "platform", "", "Blog platform: blogger, wordpress or feed (default: guessed from URL)")
	f.StringVar(pageType, "page-type", "", "Start URL kind: single-post or listing-page (default: decided by the crawler)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	return preview(ctx, settings, previewOptions{
		URL:      args[0],
		Platform: previewPlatform,
		PageType: previewPageType,
		Limit:    previewLimit,
		Format:   previewFormat,
	}, cmd.OutOrStdout(), logger)
}

type previewOptions struct {
	URL      string
	Platform string
	PageType string
	Limit    int
	Format   string
}

func preview(ctx context.Context, cfg *config.Config, opts previewOptions, w io.Writer, logger *slog.Logger) error {
	startURL, platform, kind, err := resolveTarget(opts.URL, opts.Platform, opts.PageType)
	if err != nil {
		return err
	}
	if opts.Format != "markdown" && opts.Format != "json" && opts.Format != "" {
		return fmt.Errorf("%w: unknown format %q (want markdown or json)", core.ErrConfiguration, opts.Format)
	}
	_, pages, err := newFetchers(cfg, logger)
	if err != nil {
		return err
	}
	crawler, err := crawl.New(platform, pages, crawl.Options{MaxPages: cfg.MaxPages, Logger: logger})
	if err != nil {
		return err
	}
	stream, err := crawler.Crawl(ctx, startURL, kind)
	if err != nil {
		return fmt.Errorf("crawling %s: %w", startURL, err)
	}

	md := normalize.NewMarkdown()
	enc := json.NewEncoder(w)
	for n := 0; opts.Limit <= 0 || n < opts.Limit; n++ {
		post, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if opts.Format == "json" {
			summary, err := md.Summarize(post)
			if err != nil {
				return err
			}
			if err := enc.Encode(summary); err != nil {
				return fmt.Errorf("writing summary: %w", err)
			}
			continue
		}

		text, err := md.Post(post)
		if err != nil {
			return err
		}
		if n > 0 {
			fmt.Fprint(w, "\n---\n\n")
		}
		fmt.Fprint(w, text)
	}
	return nil
}
