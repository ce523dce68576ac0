package fetch

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gaurav-prasanna/blogbook/core"
)

// IsDataURI reports whether locator is an embedded data: URI.
func IsDataURI(locator string) bool {
	return len(locator) >= 5 && strings.EqualFold(locator[:5], "data:")
}

// DecodeDataURI decodes "data:[<mediatype>][;base64],<data>".
// A missing media type is sniffed from the decoded bytes.
func DecodeDataURI(locator string) (*core.ResourceData, error) {
	if !IsDataURI(locator) {
		return nil, fmt.Errorf("%w: not a data URI", core.ErrFetch)
	}
	header, payload, ok := strings.Cut(locator[5:], ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI has no payload separator", core.ErrFetch)
	}

	isBase64 := false
	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		isBase64 = true
		header = header[:len(header)-len(";base64")]
	}

	var content []byte
	if isBase64 {
		var err error
		content, err = decodeBase64(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding base64 data URI: %w", core.ErrFetch, err)
		}
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding data URI: %w", core.ErrFetch, err)
		}
		content = []byte(unescaped)
	}

	return &core.ResourceData{
		Content:   content,
		MediaType: mediaTypeOf(header, content),
	}, nil
}

// decodeBase64 accepts padded and unpadded payloads, ignoring whitespace.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// mediaTypeOf returns the bare media type from a declared value, or sniffs
// it from content when nothing usable was declared.
func mediaTypeOf(declared string, content []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "" {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(content))
	return mt
}
