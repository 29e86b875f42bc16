// Package raster holds the output canvas tiles are composited onto.
package raster

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Canvas is an RGBA image initialized to transparent black.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas allocates a width x height canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Image returns the underlying image.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// Place copies img onto the canvas with its top-left corner at (x, y).
// Calls for non-overlapping regions may run concurrently.
func (c *Canvas) Place(img image.Image, x, y int) {
	b := img.Bounds()
	dst := image.Rect(x, y, x+b.Dx(), y+b.Dy())
	draw.Draw(c.img, dst, img, b.Min, draw.Src)
}

// Save encodes the canvas to path. The format follows the extension:
// .png, .tif/.tiff or .bmp.
func (c *Canvas) Save(path string) error {
	if _, err := Extension(strings.TrimPrefix(filepath.Ext(path), ".")); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := Encode(f, c.img, filepath.Ext(path)); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes img in the format named by ext.
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}
}

// Extension returns the file extension for a configured format name.
func Extension(format string) (string, error) {
	switch strings.ToLower(format) {
	case "png", "":
		return ".png", nil
	case "tif", "tiff":
		return ".tiff", nil
	case "bmp":
		return ".bmp", nil
	default:
		return "", fmt.Errorf("unsupported image format %q", format)
	}
}
