package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/c360studio/wardmap/feature"
)

const (
	pngSignatureLen = 8
	inchesPerMetre  = 1 / 0.0254
)

// WriteFile renders m, crops it when opts.Tight is set, and saves it to path.
func WriteFile(path string, m Map, opts Options) error {
	img, err := Render(m, opts)
	if err != nil {
		return err
	}
	return save(path, img, opts)
}

// WritePointsFile renders a points overview and saves it to path.
func WritePointsFile(path string, boundaries, points *feature.Collection, opts Options) error {
	img, err := RenderPoints(boundaries, points, opts)
	if err != nil {
		return err
	}
	return save(path, img, opts)
}

func save(path string, img image.Image, opts Options) error {
	if opts.Tight {
		img = TightCrop(img, int(math.Round(opts.TightPadInches*opts.dpi())))
	}
	return Save(path, img, opts.DPI)
}

// Save writes img as a PNG whose pHYs chunk records dpi. An existing file
// is overwritten.
func Save(path string, img image.Image, dpi int) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data, err := withPhys(buf.Bytes(), dpi)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// withPhys inserts a pHYs chunk after IHDR.
func withPhys(data []byte, dpi int) ([]byte, error) {
	if len(data) < pngSignatureLen+8 {
		return nil, fmt.Errorf("png too short")
	}
	ihdrLen := binary.BigEndian.Uint32(data[pngSignatureLen:])
	if string(data[pngSignatureLen+4:pngSignatureLen+8]) != "IHDR" {
		return nil, fmt.Errorf("png does not start with IHDR")
	}
	at := pngSignatureLen + 12 + int(ihdrLen)
	if at > len(data) {
		return nil, fmt.Errorf("truncated IHDR")
	}

	ppm := uint32(math.Round(float64(dpi) * inchesPerMetre))
	chunk := make([]byte, 0, 21)
	chunk = binary.BigEndian.AppendUint32(chunk, 9)
	chunk = append(chunk, "pHYs"...)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = append(chunk, 1) // unit: metre
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:at]...)
	out = append(out, chunk...)
	out = append(out, data[at:]...)
	return out, nil
}

// TightCrop trims white margins from img, keeping pad pixels of margin
// around the drawn content. An all-white image is returned unchanged.
func TightCrop(img image.Image, pad int) image.Image {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if isBackground(img, x, y) {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return img
	}

	content := image.Rect(minX, minY, maxX+1, maxY+1)
	crop := content.Inset(-pad).Intersect(b)
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), img, crop.Min, draw.Src)
	return out
}

func isBackground(img image.Image, x, y int) bool {
	if rgba, ok := img.(*image.RGBA); ok {
		i := rgba.PixOffset(x, y)
		return rgba.Pix[i] == 0xff && rgba.Pix[i+1] == 0xff && rgba.Pix[i+2] == 0xff
	}
	r, g, b, _ := img.At(x, y).RGBA()
	return r == 0xffff && g == 0xffff && b == 0xffff
}
