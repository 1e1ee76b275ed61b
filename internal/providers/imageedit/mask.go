package imageedit

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// TransparentMask returns a w×h PNG whose every pixel has zero alpha, which
// marks the whole image as editable.
func TransparentMask(w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("imageedit: invalid mask size %dx%d", w, h)
	}
	// NewNRGBA zero-fills, so every pixel is already (0,0,0,0).
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imageedit: encode mask: %w", err)
	}
	return buf.Bytes(), nil
}
