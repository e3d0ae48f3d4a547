package integrations

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestPNG encodes a small solid colour page.
func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// writeChapter creates dir with the given number of PNG pages.
func writeChapter(t *testing.T, dir string, pages int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	page := createTestPNG(t, 4, 6)
	for i := 1; i <= pages; i++ {
		name := filepath.Join(dir, fmt.Sprintf("%03d.png", i))
		require.NoError(t, os.WriteFile(name, page, 0644))
	}
}
