// Package epub assembles normalized posts into an EPUB 3 container.
//
// The Assembler drains a post stream one post at a time and streams each
// chapter, followed by the images it introduced, straight into the zip
// archive. Only the navigation document and the package document wait for
// the end of the stream, since both need the complete chapter list.
package epub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/gaurav-prasanna/blogbook/core"
	"github.com/gaurav-prasanna/blogbook/core/normalize"
	"github.com/gaurav-prasanna/blogbook/core/resource"
)

const defaultLanguage = "en"

// Normalizer converts one post into a chapter, registering its images in store.
type Normalizer interface {
	Normalize(ctx context.Context, post core.PostRecord, store normalize.Resolver) (*normalize.Chapter, error)
}

// Options describes one book.
type Options struct {
	Title      string
	Creator    string
	Language   string // Default: "en".
	Identifier string // Default: DefaultIdentifier(Title, Creator).
	Modified   time.Time
	// ChapterOrderReversed flips the reading order after the stream is
	// drained. Set it when the stream delivers posts newest first.
	ChapterOrderReversed bool
	// Output receives the archive. If it implements Sync, it is synced
	// before Assemble returns.
	Output io.Writer
}

func (o *Options) defaults() {
	if o.Language == "" {
		o.Language = defaultLanguage
	}
	if o.Identifier == "" {
		o.Identifier = DefaultIdentifier(o.Title, o.Creator)
	}
	if o.Modified.IsZero() {
		o.Modified = time.Now().UTC().Truncate(time.Second)
	}
}

var nonWord = regexp.MustCompile(`\W`)

// DefaultIdentifier derives a book identifier from title and creator,
// e.g. "My Blog", "Jane" becomes "My.Blog.Jane".
func DefaultIdentifier(title, creator string) string {
	return nonWord.ReplaceAllString(title+"."+creator, ".")
}

// Assembler builds EPUB archives.
type Assembler struct {
	normalizer Normalizer
	fetcher    core.ResourceFetcher
	logger     *slog.Logger
}

// NewAssembler creates an Assembler. Images are fetched through fetcher.
// A nil logger uses slog.Default.
func NewAssembler(normalizer Normalizer, fetcher core.ResourceFetcher, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{normalizer: normalizer, fetcher: fetcher, logger: logger}
}

// Assemble drains stream and writes a complete EPUB to opts.Output.
// It returns only after the archive is finalized and the sink flushed.
// On error the output is incomplete and must be discarded by the caller.
func (a *Assembler) Assemble(ctx context.Context, stream core.PostStream, opts Options) error {
	if opts.Output == nil {
		return fmt.Errorf("%w: no output sink", core.ErrPackaging)
	}
	opts.defaults()

	arc := newArchive(opts.Output, opts.Modified)
	if err := arc.writeStored(MimeTypeFile, []byte(MimeType)); err != nil {
		return packagingError(err)
	}
	if err := arc.write(ContainerFile, []byte(containerXML)); err != nil {
		return packagingError(err)
	}

	// The store lives for this run only; the normalizer borrows it per chapter.
	store := resource.NewStore(a.fetcher)

	var (
		chapters  []NavEntry
		resources []ManifestItem
		seen      = make(map[string]bool)
	)
	for {
		post, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading posts: %w", err)
		}
		if post.ID == "" {
			post.ID = core.NewID(post.SourceURL)
		}
		if seen[post.ID] {
			a.logger.Warn("skipping duplicate post", "id", post.ID, "url", post.SourceURL)
			continue
		}
		seen[post.ID] = true

		ch, err := a.normalizer.Normalize(ctx, post, store)
		if err != nil {
			return err
		}
		if err := arc.write(ch.ID+ChapterExt, ch.Content); err != nil {
			return packagingError(err)
		}
		chapters = append(chapters, NavEntry{ID: ch.ID, Title: ch.Title})
		a.logger.Debug("chapter written", "id", ch.ID, "url", post.SourceURL)

		// Resources first referenced by this chapter follow it; ones seen in
		// earlier chapters were already taken.
		for _, id := range ch.Resources {
			r, ok := store.Take(id)
			if !ok {
				continue
			}
			if err := arc.write(r.ID, r.Content); err != nil {
				return packagingError(err)
			}
			resources = append(resources, ManifestItem{ID: r.ID, Href: r.ID, MediaType: r.MediaType})
			a.logger.Debug("resource written", "id", r.ID, "media_type", r.MediaType, "bytes", len(r.Content))
		}
	}

	// A normalizer that resolved images without listing them in
	// Chapter.Resources leaves content behind; package it after the chapters.
	for _, left := range store.All() {
		r, ok := store.Take(left.ID)
		if !ok {
			continue
		}
		a.logger.Warn("resource not listed by its chapter", "id", r.ID, "url", r.Locator)
		if err := arc.write(r.ID, r.Content); err != nil {
			return packagingError(err)
		}
		resources = append(resources, ManifestItem{ID: r.ID, Href: r.ID, MediaType: r.MediaType})
	}

	if opts.ChapterOrderReversed {
		slices.Reverse(chapters)
	}

	nav, err := BuildNav(chapters)
	if err != nil {
		return packagingError(err)
	}
	if err := arc.write(NavHref, nav); err != nil {
		return packagingError(err)
	}

	manifest, spine := buildLists(chapters, resources)
	opf, err := buildPackage(Metadata{
		Identifier: opts.Identifier,
		Title:      opts.Title,
		Creator:    opts.Creator,
		Language:   opts.Language,
		Modified:   opts.Modified,
	}, manifest, spine)
	if err != nil {
		return packagingError(err)
	}
	if err := arc.write(PackageFile, opf); err != nil {
		return packagingError(err)
	}

	if err := arc.close(); err != nil {
		return packagingError(err)
	}
	if s, ok := opts.Output.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return packagingError(fmt.Errorf("syncing output: %w", err))
		}
	}

	a.logger.Info("epub assembled", "chapters", len(chapters), "resources", len(resources))
	return nil
}

// buildLists returns the manifest (navigation, chapters, resources) and the
// spine (navigation, chapters) for the final chapter order.
func buildLists(chapters []NavEntry, resources []ManifestItem) ([]ManifestItem, []SpineItem) {
	manifest := make([]ManifestItem, 0, 1+len(chapters)+len(resources))
	spine := make([]SpineItem, 0, 1+len(chapters))

	manifest = append(manifest, ManifestItem{ID: NavID, Href: NavHref, MediaType: MediaTypeXHTML, Properties: "nav"})
	spine = append(spine, SpineItem{IDRef: NavID})
	for _, ch := range chapters {
		manifest = append(manifest, ManifestItem{ID: ch.ID, Href: ch.ID + ChapterExt, MediaType: MediaTypeXHTML})
		spine = append(spine, SpineItem{IDRef: ch.ID})
	}
	manifest = append(manifest, resources...)
	return manifest, spine
}

func packagingError(err error) error {
	return fmt.Errorf("%w: %w", core.ErrPackaging, err)
}
