package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PageSettings controls how pages are rewritten before they go into an EPUB.
type PageSettings struct {
	MaxWidth  int // 0 keeps the original width
	MaxHeight int // 0 keeps the original height
	Grayscale bool
	Quality   int
}

// PageProcessor normalizes page images for e-readers
type PageProcessor struct {
	settings PageSettings
}

func NewPageProcessor(settings PageSettings) *PageProcessor {
	if settings.Quality <= 0 || settings.Quality > 100 {
		settings.Quality = 90
	}
	return &PageProcessor{settings: settings}
}

// epubNative lists the raster formats every EPUB reader must support.
var epubNative = map[string]bool{"jpeg": true, "png": true, "gif": true}

// Process returns the page ready for an EPUB and its file extension. Pages
// that already fit and use a native format are returned untouched.
func (p *PageProcessor) Process(input io.Reader) ([]byte, string, error) {
	raw, err := io.ReadAll(input)
	if err != nil {
		return nil, "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image header: %w", err)
	}
	width, height := p.calculateDimensions(cfg.Width, cfg.Height)
	resize := width != cfg.Width || height != cfg.Height
	if epubNative[format] && !resize && !p.settings.Grayscale {
		return raw, extensionFor(format), nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	var processed image.Image = img
	if resize {
		processed = p.resize(img, width, height)
	}
	if p.settings.Grayscale {
		processed = p.toGrayscale(processed)
	}

	out, err := p.encode(processed)
	if err != nil {
		return nil, "", err
	}
	return out, ".jpg", nil
}

// calculateDimensions calculates the new dimensions while maintaining aspect ratio
func (p *PageProcessor) calculateDimensions(width, height int) (int, int) {
	scale := 1.0
	if p.settings.MaxWidth > 0 && width > p.settings.MaxWidth {
		scale = float64(p.settings.MaxWidth) / float64(width)
	}
	if p.settings.MaxHeight > 0 && height > p.settings.MaxHeight {
		scale = min(scale, float64(p.settings.MaxHeight)/float64(height))
	}
	if scale == 1.0 {
		return width, height
	}
	return max(1, int(float64(width)*scale)), max(1, int(float64(height)*scale))
}

// resize resizes an image using high-quality interpolation
func (p *PageProcessor) resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func (p *PageProcessor) toGrayscale(img image.Image) image.Image {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

func (p *PageProcessor) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.settings.Quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func extensionFor(format string) string {
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}
