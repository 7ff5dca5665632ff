// Package blob implements the size-constrained local cache for binary
// attachments (images, audio recordings).
//
// Blobs are stored in the key/value substrate as self-describing data URLs
// (MIME type plus base64 payload) wrapped in a small JSON record. A fixed
// global quota is enforced by evicting the oldest records first; a single
// record that cannot fit even after evicting everything degrades to a
// transient in-memory reference instead of failing the write.
package blob

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrNotDataURL is returned when decoding input that is not a data URL.
var ErrNotDataURL = errors.New("blob: not a data URL")

const (
	dataURLScheme    = "data:"
	dataURLSeparator = ";base64,"
)

// EncodeDataURL wraps raw bytes in a self-describing data URL.
func EncodeDataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var b strings.Builder
	b.Grow(len(dataURLScheme) + len(mimeType) + len(dataURLSeparator) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString(dataURLScheme)
	b.WriteString(mimeType)
	b.WriteString(dataURLSeparator)
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// DecodeDataURL is the inverse of [EncodeDataURL].
//
// DecodeDataURL(EncodeDataURL(b, m)) returns (b, m, nil) for every byte
// payload and MIME type.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, dataURLScheme)
	if !ok {
		return nil, "", ErrNotDataURL
	}
	mimeType, payload, ok := strings.Cut(rest, dataURLSeparator)
	if !ok {
		return nil, "", ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("blob: malformed data URL payload: %w", err)
	}
	return data, mimeType, nil
}
