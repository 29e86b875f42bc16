// Package mosaic composites per-tile heightfields into one world raster.
package mosaic

import (
	"math"

	"github.com/Faultbox/heightgen/internal/terrain"
)

// TileBytes is the size of one rendered tile: 128x128 RGB.
const TileBytes = terrain.TileResolution * terrain.TileResolution * 3

// Range is a height interval. The zero value is not empty; use EmptyRange.
type Range struct {
	Min float32
	Max float32
}

// EmptyRange returns the identity element for Fold.
func EmptyRange() Range {
	return Range{Min: math.MaxFloat32, Max: -math.MaxFloat32}
}

// Fold widens r to include o.
func (r Range) Fold(o Range) Range {
	return Range{Min: min(r.Min, o.Min), Max: max(r.Max, o.Max)}
}

// Empty reports whether nothing was folded in.
func (r Range) Empty() bool {
	return r.Min == math.MaxFloat32 && r.Max == -math.MaxFloat32
}

// Degenerate reports whether normalization over r would divide by zero.
func (r Range) Degenerate() bool {
	return r.Max <= r.Min
}

// Policy controls sea level clamping.
type Policy struct {
	ClampAboveSea bool // Floor negative heights at 0 and force the range minimum to 0
	ClampBelowSea bool // Cap positive heights at 0 and force the range maximum to 0
}

// Apply overrides the discovered extremes. It runs after the reduction.
func (p Policy) Apply(r Range) Range {
	if p.ClampAboveSea {
		r.Min = 0
	}
	if p.ClampBelowSea {
		r.Max = 0
	}
	return r
}

// ClampSample applies the policy to a single height.
func (p Policy) ClampSample(v float32) float32 {
	if p.ClampAboveSea && v < 0 {
		v = 0
	}
	if p.ClampBelowSea && v > 0 {
		v = 0
	}
	return v
}

// Normalize maps v into 0..255 over r, rounding to nearest. A degenerate
// range maps everything to 0.
func Normalize(v float32, r Range) uint8 {
	if r.Degenerate() {
		return 0
	}
	n := math.Round(255 * (float64(v) - float64(r.Min)) / (float64(r.Max) - float64(r.Min)))
	switch {
	case n <= 0 || math.IsNaN(n):
		return 0
	case n >= 255:
		return 255
	default:
		return uint8(n)
	}
}

// RenderTile converts a heightfield into 128x128 grayscale RGB bytes,
// row-major, three identical channels per pixel.
func RenderTile(h *terrain.Heightfield, r Range, p Policy) []byte {
	out := make([]byte, TileBytes)
	for i, v := range h.Heights {
		b := Normalize(p.ClampSample(v), r)
		out[i*3] = b
		out[i*3+1] = b
		out[i*3+2] = b
	}
	return out
}

// RenderAreaTile colors each cell of an attribute field by its area id, so
// neighbouring areas are easy to tell apart. Area 0 stays black.
func RenderAreaTile(a *terrain.AttributeField) []byte {
	out := make([]byte, TileBytes)
	for i, id := range a.Areas {
		if id == 0 {
			continue
		}
		// Knuth multiplicative hash spreads consecutive ids across the palette.
		h := id * 2654435761
		out[i*3] = byte(h >> 24)
		out[i*3+1] = byte(h >> 16)
		out[i*3+2] = byte(h >> 8)
	}
	return out
}
