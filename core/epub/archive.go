package epub

import (
	"fmt"
	"hash/crc32"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// archive serializes entry writes into one zip stream. Entries are
// compressed at the best deflate level except for stored entries.
type archive struct {
	mu       sync.Mutex
	zw       *zip.Writer
	modified time.Time
	names    map[string]bool
	closed   bool
}

func newArchive(w io.Writer, modified time.Time) *archive {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &archive{
		zw:       zw,
		modified: modified,
		names:    make(map[string]bool),
	}
}

// writeStored writes an uncompressed entry with no data descriptor and no
// extra fields, as required for the leading mimetype entry.
func (a *archive) writeStored(name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.claim(name); err != nil {
		return err
	}

	size := uint64(len(data))
	w, err := a.zw.CreateRaw(&zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   size,
		UncompressedSize64: size,
	})
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}
	return nil
}

// write adds a deflated entry.
func (a *archive) write(name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.claim(name); err != nil {
		return err
	}

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: a.modified,
	})
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}
	return nil
}

// claim rejects writes after close and duplicate entry names.
// Callers hold a.mu.
func (a *archive) claim(name string) error {
	if a.closed {
		return fmt.Errorf("writing entry %s: archive closed", name)
	}
	if a.names[name] {
		return fmt.Errorf("duplicate entry %s", name)
	}
	a.names[name] = true
	return nil
}

// close writes the central directory and flushes the zip stream.
func (a *archive) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}
