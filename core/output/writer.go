// Package output handles file naming and writing for BlogBook outputs.
// The archive is written to a temporary file beside the target and only
// renamed into place once it is complete, so a failed run never leaves a
// truncated book behind.
package output

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultName is used when no output path is given.
	DefaultName = "output.epub"
	// Extension is enforced on every output path.
	Extension = ".epub"
)

// EnsureEPUBExtension appends ".epub" unless path already ends with it.
func EnsureEPUBExtension(path string) string {
	if strings.HasSuffix(path, Extension) {
		return path
	}
	return path + Extension
}

// ResolvePath picks the output file for a run.
// An empty path yields DefaultName. An existing directory receives a file
// named after the blog URL (e.g., walks_blogspot_com.epub).
func ResolvePath(path, rawURL string) string {
	if path == "" {
		return DefaultName
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, filenameFromURL(rawURL)+Extension)
	}
	return EnsureEPUBExtension(path)
}

// File is an output file that becomes visible only on Commit.
type File struct {
	tmp  *os.File
	path string
	done bool
}

// Create opens a temporary file in the directory of path, creating the
// directory if needed.
func Create(path string) (*File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	return &File{tmp: tmp, path: path}, nil
}

// Path returns the final location of the file.
func (f *File) Path() string { return f.path }

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) {
	return f.tmp.Write(p)
}

// Sync flushes the temporary file to stable storage.
func (f *File) Sync() error {
	return f.tmp.Sync()
}

// Commit closes the file and moves it to its final path.
func (f *File) Commit() error {
	if f.done {
		return errors.New("output file already closed")
	}
	f.done = true
	if err := f.tmp.Close(); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("closing %s: %w", f.tmp.Name(), err)
	}
	if err := os.Chmod(f.tmp.Name(), 0644); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("moving output to %s: %w", f.path, err)
	}
	return nil
}

// Abort discards the file. It is a no-op after Commit.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.tmp.Close()
	os.Remove(f.tmp.Name())
}

// filenameFromURL converts a URL into a flat filename.
// Example: https://walks.blogspot.com/2023/05 → walks_blogspot_com_2023_05
func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		// Fallback: sanitize the raw string.
		return sanitize(rawURL)
	}

	parts := []string{sanitize(parsed.Host)}
	path := strings.Trim(parsed.Path, "/")
	if path != "" {
		for _, seg := range strings.Split(path, "/") {
			parts = append(parts, sanitize(strings.TrimSuffix(seg, ".html")))
		}
	}
	return strings.Join(parts, "_")
}

// sanitize replaces non-alphanumeric characters with underscores.
func sanitize(s string) string {
	var b strings.Builder
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
