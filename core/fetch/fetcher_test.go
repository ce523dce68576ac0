package fetch

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gaurav-prasanna/blogbook/core"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent"})
	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if result.HTML != "<html><body>hi</body></html>" {
		t.Errorf("HTML = %q", result.HTML)
	}
}

func TestFetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, core.ErrFetch) {
		t.Fatalf("Fetch() error = %v, want ErrFetch", err)
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), 100))
	}))
	defer srv.Close()

	if _, err := New(Config{MaxBytes: 10}).Fetch(context.Background(), srv.URL); !errors.Is(err, core.ErrFetch) {
		t.Errorf("Fetch() over limit error = %v, want ErrFetch", err)
	}
	result, err := New(Config{MaxBytes: 100}).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() at limit error = %v", err)
	}
	if len(result.HTML) != 100 {
		t.Errorf("len(HTML) = %d, want 100", len(result.HTML))
	}
}

func TestFetchResource_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(bytes.Repeat([]byte{0x89}, 100))
	}))
	defer srv.Close()

	res, err := New(Config{MaxBytes: 10}).FetchResource(context.Background(), srv.URL+"/big.png")
	if !errors.Is(err, core.ErrFetch) {
		t.Fatalf("FetchResource() error = %v, want ErrFetch", err)
	}
	if res != nil {
		t.Errorf("FetchResource() returned %d bytes of a truncated image", len(res.Content))
	}
}

func TestFetchResource_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		w.Write([]byte("jpegdata"))
	}))
	defer srv.Close()

	res, err := New(Config{}).FetchResource(context.Background(), srv.URL+"/a.jpg")
	if err != nil {
		t.Fatalf("FetchResource() error = %v", err)
	}
	if res.MediaType != "image/jpeg" {
		t.Errorf("MediaType = %q, want image/jpeg", res.MediaType)
	}
	if string(res.Content) != "jpegdata" {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestFetchResource_DataURIDoesNotTouchNetwork(t *testing.T) {
	f := New(Config{Client: &http.Client{Transport: failingTransport{t}}})
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	res, err := f.FetchResource(context.Background(), uri)
	if err != nil {
		t.Fatalf("FetchResource() error = %v", err)
	}
	if res.MediaType != "image/png" {
		t.Errorf("MediaType = %q, want image/png", res.MediaType)
	}
	if !bytes.Equal(res.Content, pngHeader) {
		t.Errorf("Content mismatch")
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	f := New(Config{RateLimit: 0.001, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, "http://127.0.0.1:1/")
	if !errors.Is(err, core.ErrFetch) {
		t.Errorf("Fetch() error = %v, want ErrFetch", err)
	}
}

type failingTransport struct{ t *testing.T }

func (ft failingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ft.t.Errorf("unexpected network request to %s", r.URL)
	return nil, errors.New("network disabled")
}
