package core

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
)

// Error classes shared by the pipeline. Wrap them with fmt.Errorf and
// test with errors.Is.
var (
	// ErrFetch marks a network or decode failure retrieving a page or resource.
	ErrFetch = errors.New("fetch failed")
	// ErrMalformedSource marks a document missing an expected element.
	// Extraction degrades to defaults where it can and returns it otherwise.
	ErrMalformedSource = errors.New("malformed source")
	// ErrPackaging marks an I/O failure writing the output archive.
	ErrPackaging = errors.New("packaging failed")
	// ErrConfiguration marks an unresolvable platform or page type.
	ErrConfiguration = errors.New("configuration error")
)

// HashKey returns the hex md5 digest of key.
func HashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// NewID derives a stable identifier from seed. The "id-" prefix keeps
// the value a valid XML id.
func NewID(seed string) string {
	return "id-" + HashKey(seed)
}
