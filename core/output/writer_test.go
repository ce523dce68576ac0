package output

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureEPUBExtension(t *testing.T) {
	tests := []struct{ in, want string }{
		{"book.epub", "book.epub"},
		{"book", "book.epub"},
		{"book.zip", "book.zip.epub"},
		{"dir/out", "dir/out.epub"},
	}
	for _, tt := range tests {
		if got := EnsureEPUBExtension(tt.in); got != tt.want {
			t.Errorf("EnsureEPUBExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name, path, url, want string
	}{
		{"empty", "", "http://walks.blogspot.com/", DefaultName},
		{"file", "walks", "http://walks.blogspot.com/", "walks.epub"},
		{"directory", dir, "http://walks.blogspot.com/2023/05/morning.html", filepath.Join(dir, "walks_blogspot_com_2023_05_morning.epub")},
		{"directory root url", dir, "http://walks.blogspot.com/", filepath.Join(dir, "walks_blogspot_com.epub")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.path, tt.url); got != tt.want {
				t.Errorf("ResolvePath(%q, %q) = %q, want %q", tt.path, tt.url, got, tt.want)
			}
		})
	}
}

func TestFile_Commit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "book.epub")
	f, err := Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.Write([]byte("archive")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("output visible before Commit")
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := f.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "archive" {
		t.Fatalf("ReadFile() = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}

	f.Abort()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Abort after Commit removed the output: %v", err)
	}
	if err := f.Commit(); err == nil {
		t.Error("second Commit() succeeded")
	}
}

func TestFile_Abort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.epub")
	f, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("partial"))
	f.Abort()

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Abort left files: %v", entries)
	}
}
