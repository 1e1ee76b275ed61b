package imageprep

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"math/rand"
	"testing"

	"github.com/SyncraLabs/aura/internal/domain"
)

func solidJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPrepareReturnsCompliantInputUnchanged(t *testing.T) {
	src := solidJPEG(t, 1200, 800)
	p := New(Options{})

	got, err := p.Prepare(src)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !bytes.Equal(got.Data, src) {
		t.Fatal("compliant input was re-encoded")
	}
	if got.Resized {
		t.Fatal("Resized = true for compliant input")
	}
	if got.ContentType != "image/jpeg" {
		t.Fatalf("ContentType = %q, want image/jpeg", got.ContentType)
	}
	if got.Width != 1200 || got.Height != 800 {
		t.Fatalf("dimensions = %dx%d, want 1200x800", got.Width, got.Height)
	}
}

func TestPrepareFitsLongEdge(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		wantW int
		wantH int
	}{
		{name: "landscape", w: 3000, h: 2000, wantW: 1536, wantH: 1024},
		{name: "portrait", w: 2000, h: 3000, wantW: 1024, wantH: 1536},
		{name: "square", w: 1600, h: 1600, wantW: 1536, wantH: 1536},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := New(Options{}).Prepare(solidJPEG(t, tc.w, tc.h))
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			if got.Width != tc.wantW || got.Height != tc.wantH {
				t.Fatalf("dimensions = %dx%d, want %dx%d", got.Width, got.Height, tc.wantW, tc.wantH)
			}
			if got.ContentType != "image/png" || !got.Resized {
				t.Fatalf("ContentType = %q Resized = %v", got.ContentType, got.Resized)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(got.Data))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if format != "png" || cfg.Width != tc.wantW || cfg.Height != tc.wantH {
				t.Fatalf("output = %s %dx%d", format, cfg.Width, cfg.Height)
			}
			assertAspect(t, tc.w, tc.h, cfg.Width, cfg.Height)
		})
	}
}

func TestPrepareShrinksUntilUnderByteCeiling(t *testing.T) {
	src := noisePNG(t, 800, 600)
	limit := 400 * 1024
	if len(src) <= limit {
		t.Fatalf("fixture too small: %d bytes", len(src))
	}

	got, err := New(Options{MaxBytes: limit}).Prepare(src)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(got.Data) > limit {
		t.Fatalf("output %d bytes exceeds %d", len(got.Data), limit)
	}
	if got.Width >= 800 {
		t.Fatalf("width = %d, expected downscale", got.Width)
	}
	assertAspect(t, 800, 600, got.Width, got.Height)
}

func TestPrepareRejectsUndecodableInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "text", data: []byte("definitely not an image")},
		{name: "truncated png header", data: []byte{0x89, 'P', 'N', 'G', '\r', '\n'}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(Options{}).Prepare(tc.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrInvalidImage) {
				t.Fatalf("err = %v, want ErrInvalidImage", err)
			}
			if domain.KindOf(err) != domain.KindInvalidImage {
				t.Fatalf("kind = %q, want InvalidImage", domain.KindOf(err))
			}
		})
	}
}

func TestFitInside(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{6000, 4000, 1536, 1536, 1024},
		{4000, 6000, 1536, 1024, 1536},
		{1000, 10, 500, 500, 5},
		{10000, 1, 1536, 1536, 1},
		{800, 600, 1536, 800, 600},
	}
	for _, tc := range tests {
		w, h := FitInside(tc.w, tc.h, tc.max)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("FitInside(%d, %d, %d) = %dx%d, want %dx%d", tc.w, tc.h, tc.max, w, h, tc.wantW, tc.wantH)
		}
	}
}

func assertAspect(t *testing.T, srcW, srcH, gotW, gotH int) {
	t.Helper()
	want := float64(srcW) / float64(srcH)
	got := float64(gotW) / float64(gotH)
	// One pixel of rounding on the short edge.
	tolerance := want / float64(min(gotW, gotH))
	if math.Abs(want-got) > tolerance+1e-9 {
		t.Fatalf("aspect ratio %.4f, want %.4f (±%.4f)", got, want, tolerance)
	}
}

// pngHeader returns a PNG that declares w×h but carries no pixel data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(kind string, body []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(body)))
		crc := crc32.NewIEEE()
		crc.Write([]byte(kind))
		crc.Write(body)
		buf.WriteString(kind)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc.Sum32())
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestPrepareRejectsOversizedCanvasBeforeDecoding(t *testing.T) {
	_, err := New(Options{}).Prepare(pngHeader(40000, 40000))
	if err == nil {
		t.Fatal("expected error for 40000x40000 canvas")
	}
	if domain.KindOf(err) != domain.KindInvalidImage {
		t.Fatalf("kind = %q, want InvalidImage", domain.KindOf(err))
	}
}

func TestPrepareHonorsMaxPixels(t *testing.T) {
	src := solidJPEG(t, 400, 300)

	if _, err := New(Options{MaxPixels: 400 * 300}).Prepare(src); err != nil {
		t.Fatalf("image at the limit rejected: %v", err)
	}
	_, err := New(Options{MaxPixels: 400*300 - 1}).Prepare(src)
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestPrepareConvertsGIFToPNG(t *testing.T) {
	palette := color.Palette{color.Black, color.White}
	img := image.NewPaletted(image.Rect(0, 0, 64, 48), palette)
	img.SetColorIndex(10, 10, 1)
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	got, err := New(Options{}).Prepare(buf.Bytes())
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got.ContentType != "image/png" {
		t.Fatalf("content type = %q, want image/png", got.ContentType)
	}
	if bytes.Equal(got.Data, buf.Bytes()) {
		t.Fatal("gif passed through unchanged")
	}
	if got.Width != 64 || got.Height != 48 {
		t.Fatalf("dimensions = %dx%d, want 64x48", got.Width, got.Height)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(got.Data))
	if err != nil || format != "png" || cfg.Width != 64 {
		t.Fatalf("output is not a 64px png: format=%q err=%v", format, err)
	}
}
