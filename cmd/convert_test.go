package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gaurav-prasanna/blogbook/config"
	"github.com/gaurav-prasanna/blogbook/core"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// gif is a 1x1 transparent GIF.
var gif = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00\x00\x02\x02D\x01\x00;")

type blogServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newBlogServer(t *testing.T) *blogServer {
	t.Helper()
	s := &blogServer{hits: make(map[string]int)}
	page := func(title, older, body string) string {
		link := ""
		if older != "" {
			link = fmt.Sprintf(`<a class="blog-pager-older-link" href="%s">Older</a>`, older)
		}
		return fmt.Sprintf(`<html><body><h3 class="post-title">%s</h3><div class="entry-content">%s</div>%s</body></html>`, title, body, link)
	}
	pages := map[string]string{
		"/2023/02/b.html": page("Second & Last", "/2023/01/a.html", `<p>bee</p><img src="/img/x.gif">`),
		"/2023/01/a.html": page("First", "", `<p>ay</p><img src="/img/x.gif">`),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		if r.URL.Path == "/img/x.gif" {
			w.Header().Set("Content-Type", "image/gif")
			w.Write(gif)
			return
		}
		html, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, html)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *blogServer) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

type opfSpine struct {
	Title    string `xml:"metadata>title"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

func readPackage(t *testing.T, path string) opfSpine {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != "package.opf" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		var pkg opfSpine
		if err := xml.NewDecoder(rc).Decode(&pkg); err != nil {
			t.Fatal(err)
		}
		return pkg
	}
	t.Fatal("package.opf missing")
	return opfSpine{}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.NoCache = true
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func TestConvert_BloggerChain(t *testing.T) {
	srv := newBlogServer(t)
	out := filepath.Join(t.TempDir(), "walks")

	path, err := convert(context.Background(), testConfig(t), convertOptions{
		URL:      srv.URL + "/2023/02/b.html",
		Output:   out,
		Title:    "Walks",
		Platform: "blogger",
	}, quiet)
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if path != out+".epub" {
		t.Errorf("path = %q, want .epub appended", path)
	}

	pkg := readPackage(t, path)
	a := core.NewID(srv.URL + "/2023/01/a.html")
	b := core.NewID(srv.URL + "/2023/02/b.html")
	var spine []string
	for _, s := range pkg.Spine {
		spine = append(spine, s.IDRef)
	}
	if strings.Join(spine, ",") != "htmltoc,"+a+","+b {
		t.Errorf("spine = %v, want nav, oldest, newest", spine)
	}
	if pkg.Title != "Walks" {
		t.Errorf("title = %q", pkg.Title)
	}

	images := 0
	for _, m := range pkg.Manifest {
		if m.MediaType == "image/gif" {
			images++
		}
	}
	if images != 1 {
		t.Errorf("image manifest entries = %d, want 1", images)
	}
	if n := srv.hitsFor("/img/x.gif"); n != 1 {
		t.Errorf("image downloaded %d times, want 1", n)
	}
}

func TestConvert_ReverseOverride(t *testing.T) {
	srv := newBlogServer(t)
	path, err := convert(context.Background(), testConfig(t), convertOptions{
		URL:      srv.URL + "/2023/02/b.html",
		Output:   filepath.Join(t.TempDir(), "book.epub"),
		Platform: "blogger",
		Reverse:  "false",
	}, quiet)
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	pkg := readPackage(t, path)
	if got := pkg.Spine[1].IDRef; got != core.NewID(srv.URL+"/2023/02/b.html") {
		t.Errorf("first chapter = %s, want newest post when not reversed", got)
	}
}

func TestConvert_UsesPageCache(t *testing.T) {
	srv := newBlogServer(t)
	cfg := testConfig(t)
	cfg.NoCache = false
	dir := t.TempDir()

	for i := range 2 {
		_, err := convert(context.Background(), cfg, convertOptions{
			URL:      srv.URL + "/2023/02/b.html",
			Output:   filepath.Join(dir, fmt.Sprintf("run%d.epub", i)),
			Platform: "blogger",
		}, quiet)
		if err != nil {
			t.Fatalf("run %d: convert() error = %v", i, err)
		}
	}
	if n := srv.hitsFor("/2023/02/b.html"); n != 1 {
		t.Errorf("page downloaded %d times across runs, want 1", n)
	}
}

func TestConvert_ConfigurationErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		opts convertOptions
	}{
		{"undetectable platform", convertOptions{URL: "https://example.org/post"}},
		{"unknown platform", convertOptions{URL: "https://example.org/post", Platform: "medium"}},
		{"bad page type", convertOptions{URL: "walks.blogspot.com", PageType: "archive"}},
		{"bad reverse", convertOptions{URL: "walks.blogspot.com", Reverse: "sometimes"}},
		{"empty url", convertOptions{URL: " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Output = filepath.Join(dir, "out.epub")
			_, err := convert(context.Background(), testConfig(t), tt.opts, quiet)
			if !errors.Is(err, core.ErrConfiguration) {
				t.Fatalf("convert() error = %v, want ErrConfiguration", err)
			}
		})
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("output written despite configuration errors: %v", entries)
	}
}

func TestConvert_FetchFailureLeavesNoFile(t *testing.T) {
	srv := newBlogServer(t)
	dir := t.TempDir()
	_, err := convert(context.Background(), testConfig(t), convertOptions{
		URL:      srv.URL + "/2023/03/missing.html",
		Output:   filepath.Join(dir, "book.epub"),
		Platform: "blogger",
	}, quiet)
	if !errors.Is(err, core.ErrFetch) {
		t.Fatalf("convert() error = %v, want ErrFetch", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("partial output left behind: %v", entries)
	}
}

func TestPreview(t *testing.T) {
	srv := newBlogServer(t)
	var buf bytes.Buffer
	opts := previewOptions{URL: srv.URL + "/2023/02/b.html", Platform: "blogger"}
	err := preview(context.Background(), testConfig(t), opts, &buf, quiet)
	if err != nil {
		t.Fatalf("preview() error = %v", err)
	}
	out := buf.String()
	second, first := strings.Index(out, "# Second & Last"), strings.Index(out, "# First")
	if second < 0 || first < 0 || second > first {
		t.Errorf("preview out of crawl order:\n%s", out)
	}
	if !strings.Contains(out, "\n---\n") {
		t.Errorf("posts not separated:\n%s", out)
	}

	buf.Reset()
	opts.Limit = 1
	if err := preview(context.Background(), testConfig(t), opts, &buf, quiet); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "# First") {
		t.Errorf("limit ignored:\n%s", buf.String())
	}
}

func TestPreview_JSON(t *testing.T) {
	srv := newBlogServer(t)
	var buf bytes.Buffer
	opts := previewOptions{URL: srv.URL + "/2023/02/b.html", Platform: "blogger", Format: "json"}
	if err := preview(context.Background(), testConfig(t), opts, &buf, quiet); err != nil {
		t.Fatalf("preview() error = %v", err)
	}

	dec := json.NewDecoder(&buf)
	var titles []string
	for dec.More() {
		var s struct {
			Title  string   `json:"title"`
			URL    string   `json:"url"`
			Images []string `json:"images"`
		}
		if err := dec.Decode(&s); err != nil {
			t.Fatal(err)
		}
		if len(s.Images) != 1 || !strings.HasSuffix(s.Images[0], "/img/x.gif") {
			t.Errorf("%s images = %v", s.URL, s.Images)
		}
		titles = append(titles, s.Title)
	}
	if strings.Join(titles, "|") != "Second & Last|First" {
		t.Errorf("titles = %v", titles)
	}

	opts.Format = "pdf"
	if err := preview(context.Background(), testConfig(t), opts, &buf, quiet); !errors.Is(err, core.ErrConfiguration) {
		t.Errorf("unknown format error = %v, want ErrConfiguration", err)
	}
}

func TestParseReverse(t *testing.T) {
	for _, s := range []string{"", "auto", "AUTO"} {
		if got, err := parseReverse(s); err != nil || got != nil {
			t.Errorf("parseReverse(%q) = %v, %v; want auto", s, got, err)
		}
	}
	if got, err := parseReverse("true"); err != nil || got == nil || !*got {
		t.Errorf("parseReverse(true) = %v, %v", got, err)
	}
}
