// Package imaging decodes uploaded image blobs into in-memory pixel arrays.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Channels is the number of bytes per pixel in a PixelArray.
const Channels = 3

// DefaultMaxPixels bounds width*height when the caller passes no limit.
const DefaultMaxPixels = 25_000_000

var (
	ErrEmptyImage    = errors.New("image data is empty")
	ErrImageTooLarge = errors.New("image dimensions exceed the pixel limit")
)

// PixelArray is a decoded image stored as 8-bit BGR, row-major, no padding.
type PixelArray struct {
	Width  int
	Height int
	Format string
	Pix    []byte
}

// Decode parses data in any registered format and converts it to BGR.
// The header is checked against maxPixels before any frame is allocated;
// a non-positive maxPixels means DefaultMaxPixels.
func Decode(data []byte, maxPixels int64) (*PixelArray, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decode image: zero-sized %s image", format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %s is %dx%d, limit %d", ErrImageTooLarge, format, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("decode image: zero-sized %s image", format)
	}

	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)

	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*Channels)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		out := pix[y*w*Channels : (y+1)*w*Channels]
		for x := 0; x < w; x++ {
			out[x*3+0] = row[x*4+2]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+0]
		}
	}

	return &PixelArray{Width: w, Height: h, Format: format, Pix: pix}, nil
}

// Image converts the pixel array back to an opaque image.Image.
func (p *PixelArray) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i, j := 0, 0; i < len(p.Pix); i, j = i+Channels, j+4 {
		img.Pix[j+0] = p.Pix[i+2]
		img.Pix[j+1] = p.Pix[i+1]
		img.Pix[j+2] = p.Pix[i+0]
		img.Pix[j+3] = 0xff
	}
	return img
}

// EncodePNG re-encodes the pixel array losslessly for transports that need
// a container format.
func (p *PixelArray) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image()); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
