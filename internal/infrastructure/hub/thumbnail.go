package hub

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

const thumbnailQuality = 70

// Thumbnail уменьшает JPEG до ширины width с сохранением пропорций.
// Кадры уже нужной ширины только перекодируются.
func Thumbnail(data []byte, width int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	b := src.Bounds()
	if width <= 0 || b.Dx() == 0 {
		return nil, fmt.Errorf("invalid thumbnail width %d for %dx%d frame", width, b.Dx(), b.Dy())
	}
	if b.Dx() < width {
		width = b.Dx()
	}
	height := b.Dy() * width / b.Dx()
	if height == 0 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL оформляет JPEG для встраивания в JSON.
func DataURL(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}
