// Package cmd — convert command.
// This is the main command that orchestrates the pipeline:
// crawl → extract → normalize → assemble → commit.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gaurav-prasanna/blogbook/config"
	"github.com/gaurav-prasanna/blogbook/core"
	"github.com/gaurav-prasanna/blogbook/core/cache"
	"github.com/gaurav-prasanna/blogbook/core/epub"
	"github.com/gaurav-prasanna/blogbook/core/fetch"
	"github.com/gaurav-prasanna/blogbook/core/normalize"
	"github.com/gaurav-prasanna/blogbook/core/output"
	"github.com/gaurav-prasanna/blogbook/crawl"
	"github.com/spf13/cobra"
)

// convertOptions are the per-run choices of the convert command.
type convertOptions struct {
	URL      string
	Output   string
	Title    string
	Creator  string
	Language string
	Platform string
	PageType string
	// Reverse is auto, true or false.
	Reverse string
}

var convertFlags convertOptions

var convertCmd = &cobra.Command{
	Use:   "convert <url>",
	Short: "Convert a blog into an EPUB file",
	Long: `Convert walks the blog starting at the given post or listing page, bundles
every post and its images, and writes an EPUB 3 file.

Without --platform the platform is guessed from the URL ("blogspot",
"wordpress" or a feed address). Without --page-type the crawler decides
whether the URL is a single post or a listing.

Examples:
  blogbook convert myblog.blogspot.com --title "My Blog" --creator "Jane"
  blogbook convert https://notes.wordpress.com/2022/01/02/hello/ -o notes.epub
  blogbook convert https://example.org/feed --platform feed --reverse true`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()
	f.StringVarP(&convertFlags.Output, "output", "o", "", "Output file or directory (default output.epub)")
	f.StringVar(&convertFlags.Title, "title", "", "Book title (default Title)")
	f.StringVar(&convertFlags.Creator, "creator", "", "Book author (default Creator)")
	f.StringVar(&convertFlags.Language, "language", "", "Book language (default en)")
	addCrawlFlags(f, &convertFlags.Platform, &convertFlags.PageType)
	f.StringVar(&convertFlags.Reverse, "reverse", "auto", "Reverse chapter order: auto, true or false")
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts := convertFlags
	opts.URL = args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	path, err := convert(ctx, settings, opts, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Output ready at %s\n", path)
	return nil
}

// convert runs the whole pipeline and returns the path of the finished book.
// Every configuration problem is reported before the first request.
func convert(ctx context.Context, cfg *config.Config, opts convertOptions, logger *slog.Logger) (string, error) {
	startURL, platform, kind, err := resolveTarget(opts.URL, opts.Platform, opts.PageType)
	if err != nil {
		return "", err
	}
	reverse, err := parseReverse(opts.Reverse)
	if err != nil {
		return "", err
	}
	book := epub.Options{
		Title:    firstNonEmpty(opts.Title, cfg.Title),
		Creator:  firstNonEmpty(opts.Creator, cfg.Creator),
		Language: firstNonEmpty(opts.Language, cfg.Language),
	}

	resources, pages, err := newFetchers(cfg, logger)
	if err != nil {
		return "", err
	}
	crawler, err := crawl.New(platform, pages, crawl.Options{MaxPages: cfg.MaxPages, Logger: logger})
	if err != nil {
		return "", err
	}

	logger.Info("crawling", "url", startURL, "platform", platform, "page_type", kind)
	stream, err := crawler.Crawl(ctx, startURL, kind)
	if err != nil {
		return "", fmt.Errorf("crawling %s: %w", startURL, err)
	}
	book.ChapterOrderReversed = stream.NewestFirst()
	if reverse != nil {
		book.ChapterOrderReversed = *reverse
	}

	file, err := output.Create(output.ResolvePath(firstNonEmpty(opts.Output, cfg.Output), startURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPackaging, err)
	}
	book.Output = file

	normalizer := normalize.NewChapterNormalizer(normalize.Config{Workers: cfg.Workers, Logger: logger})
	assembler := epub.NewAssembler(normalizer, resources, logger)
	if err := assembler.Assemble(ctx, stream, book); err != nil {
		file.Abort()
		return "", err
	}
	if err := file.Commit(); err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrPackaging, err)
	}
	return file.Path(), nil
}

// resolveTarget normalizes the start URL and settles platform and page type.
// An empty page type is left for the crawler to decide.
func resolveTarget(rawURL, platformName, pageType string) (string, crawl.Platform, core.PageKind, error) {
	startURL, err := crawl.NormalizeStartURL(rawURL)
	if err != nil {
		return "", "", "", err
	}

	var platform crawl.Platform
	if platformName != "" {
		platform, err = crawl.ParsePlatform(platformName)
	} else {
		platform, err = crawl.DetectPlatform(startURL)
	}
	if err != nil {
		return "", "", "", err
	}

	var kind core.PageKind
	if pageType != "" {
		if kind, err = crawl.ParsePageKind(pageType); err != nil {
			return "", "", "", err
		}
	}
	return startURL, platform, kind, nil
}

// newFetchers builds the resource fetcher and the, possibly cached, page
// fetcher.
func newFetchers(cfg *config.Config, logger *slog.Logger) (*fetch.HTTPFetcher, core.Fetcher, error) {
	fetcher := fetch.New(fetch.Config{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		RateLimit: cfg.Fetch.RateLimit,
		Burst:     cfg.Fetch.Burst,
		Logger:    logger,
	})
	if cfg.NoCache {
		return fetcher, fetcher, nil
	}
	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}
	return fetcher, cache.NewFetcher(fetcher, c, logger), nil
}

// parseReverse returns nil for auto.
func parseReverse(s string) (*bool, error) {
	if s == "" || strings.EqualFold(s, "auto") {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("%w: --reverse must be auto, true or false, got %q", core.ErrConfiguration, s)
	}
	return &b, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
