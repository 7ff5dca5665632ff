package blob

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"

	// Registered raster decoders for image.Decode.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Compressor reduces the byte footprint of an attachment before encoding.
//
// Implementations must never fail the caller's write: when the input cannot
// be processed, return it unchanged with its original MIME type.
type Compressor interface {
	// Compress returns the (possibly) transformed bytes and the resulting
	// MIME type.
	Compress(data []byte, mimeType string) ([]byte, string, error)
}

// ImageCompressor bounds raster images to MaxDimension on their longer side
// and re-encodes them as JPEG at a fixed quality. Audio and any other
// non-image payloads pass through unchanged.
type ImageCompressor struct {
	// MaxDimension is the limit for the longer side, in pixels.
	MaxDimension int
	// Quality is the JPEG quality, 1-100.
	Quality int
}

// Compress implements [Compressor]. Decode or encode failures fall back to
// the original bytes, never an error.
func (c *ImageCompressor) Compress(data []byte, mimeType string) ([]byte, string, error) {
	if !strings.HasPrefix(mimeType, "image/") {
		return data, mimeType, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug("Image decode failed, storing original", "mimeType", mimeType, "err", err)
		return data, mimeType, nil
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if longer := max(w, h); c.MaxDimension > 0 && longer > c.MaxDimension {
		scale := float64(c.MaxDimension) / float64(longer)
		nw := max(int(float64(w)*scale+0.5), 1)
		nh := max(int(float64(h)*scale+0.5), 1)
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.Quality}); err != nil {
		slog.Debug("JPEG encode failed, storing original", "mimeType", mimeType, "err", err)
		return data, mimeType, nil
	}
	return buf.Bytes(), "image/jpeg", nil
}

// NopCompressor is the identity [Compressor], used in tests and when
// compression is disabled.
type NopCompressor struct{}

// Compress implements [Compressor].
func (NopCompressor) Compress(data []byte, mimeType string) ([]byte, string, error) {
	return data, mimeType, nil
}
