// Package imageprep normalizes uploaded photos into payloads the image-edit
// provider accepts.
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"

	// Registered decoders for client uploads.
	_ "image/gif"
	_ "image/jpeg"

	_ "github.com/gen2brain/webp"
	"golang.org/x/image/draw"

	"github.com/SyncraLabs/aura/internal/domain"
)

const (
	DefaultMaxEdge  = 1536
	DefaultMaxBytes = 3900 * 1024
	// DefaultMaxPixels rejects canvases the decoder would have to allocate
	// in full before anything can be checked.
	DefaultMaxPixels = 0x3FFF * 0x3FFF

	// shrinkFactor is applied per pass when a PNG at the current edge is still too large.
	shrinkFactor = 0.85
	minEdge      = 256
)

// Options bounds the prepared payload.
type Options struct {
	MaxEdge   int
	MaxBytes  int
	MaxPixels int64
}

func (o Options) withDefaults() Options {
	if o.MaxEdge <= 0 {
		o.MaxEdge = DefaultMaxEdge
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// Prepared is a provider-compliant image.
type Prepared struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Resized     bool
}

// Preprocessor converts arbitrary still images into compliant payloads.
type Preprocessor struct {
	opts Options
}

func New(opts Options) *Preprocessor {
	return &Preprocessor{opts: opts.withDefaults()}
}

// Prepare returns JPEG, PNG and WebP data untouched when it is already within
// both limits. Anything else is decoded, fitted inside MaxEdge×MaxEdge and
// encoded as PNG, shrinking further until the encoded size fits MaxBytes.
// Images whose header claims more than MaxPixels are rejected before decoding.
func (p *Preprocessor) Prepare(data []byte) (*Prepared, error) {
	if len(data) == 0 {
		return nil, invalid(fmt.Errorf("empty upload"))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, invalid(err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, invalid(fmt.Errorf("zero dimensions"))
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > p.opts.MaxPixels {
		return nil, invalid(fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, p.opts.MaxPixels))
	}
	if passthroughFormat(format) && longEdge(cfg.Width, cfg.Height) <= p.opts.MaxEdge && len(data) <= p.opts.MaxBytes {
		return &Prepared{
			Data:        data,
			ContentType: contentTypeFor(format, data),
			Width:       cfg.Width,
			Height:      cfg.Height,
		}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, invalid(err)
	}

	edge := p.opts.MaxEdge
	if le := longEdge(cfg.Width, cfg.Height); le < edge {
		edge = le
	}
	for {
		w, h := FitInside(cfg.Width, cfg.Height, edge)
		encoded, err := encodePNG(resize(src, w, h))
		if err != nil {
			return nil, fmt.Errorf("imageprep: encode png: %w", err)
		}
		if len(encoded) <= p.opts.MaxBytes {
			return &Prepared{Data: encoded, ContentType: "image/png", Width: w, Height: h, Resized: true}, nil
		}
		next := int(float64(edge) * shrinkFactor)
		if next < minEdge {
			return nil, invalid(fmt.Errorf("cannot fit %dx%d under %d bytes", cfg.Width, cfg.Height, p.opts.MaxBytes))
		}
		edge = next
	}
}

// FitInside scales (w, h) so the long edge is at most maxEdge, keeping the
// aspect ratio. Dimensions already inside are returned unchanged.
func FitInside(w, h, maxEdge int) (int, int) {
	if w <= maxEdge && h <= maxEdge {
		return w, h
	}
	if w >= h {
		nh := int(float64(h)*float64(maxEdge)/float64(w) + 0.5)
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := int(float64(w)*float64(maxEdge)/float64(h) + 0.5)
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}

func resize(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// passthroughFormat reports whether the edit endpoint accepts format as is.
func passthroughFormat(format string) bool {
	switch format {
	case "jpeg", "png", "webp":
		return true
	}
	return false
}

func contentTypeFor(format string, data []byte) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	}
	return http.DetectContentType(data)
}

func longEdge(w, h int) int {
	if w > h {
		return w
	}
	return h
}

func invalid(err error) error {
	return domain.NewError(domain.KindInvalidImage, "The uploaded file could not be read as an image.", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err))
}
