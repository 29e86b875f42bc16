// Package terrain rebuilds regular heightfields from decoded ADT sub-chunks.
package terrain

import (
	"math"

	"github.com/Faultbox/heightgen/pkg/formats"
)

// Tile grid dimensions.
const (
	TileResolution = 128 // Samples per side of a tile heightfield
	BlockSize      = 8   // Samples per side contributed by one sub-chunk

	outerRowLength = 9
	innerRowLength = 8
	vertexRows     = 17
)

// Heightfield is a regular 128x128 grid of absolute heights, row-major.
type Heightfield struct {
	Heights   [TileResolution * TileResolution]float32
	MinHeight float32
	MaxHeight float32
	Valid     bool // False when no sub-chunk carried heights; the range is then a sentinel
}

// At returns the sample at column x, row y.
func (h *Heightfield) At(x, y int) float32 {
	return h.Heights[y*TileResolution+x]
}

// AttributeField is a regular 128x128 grid of per-sub-chunk area ids.
type AttributeField struct {
	Areas [TileResolution * TileResolution]uint32
}

// At returns the area id at column x, row y.
func (a *AttributeField) At(x, y int) uint32 {
	return a.Areas[y*TileResolution+x]
}

// OuterIndex returns the index into a sub-chunk's 145 heights of sample v on
// outer row r. Outer rows hold 9 samples and alternate with 8-sample inner
// rows, so outer row r starts after r outer and r inner rows.
func OuterIndex(r, v int) int {
	return r*(outerRowLength+innerRowLength) + v
}

// Reconstruct assembles the 256 sub-chunks of t into one heightfield and one
// attribute field. Only the first 8 samples of the first 8 outer rows are
// used; the ninth column and every inner row are dropped. That matches the
// existing heightmap exports sample for sample.
func Reconstruct(t *formats.Terrain) (*Heightfield, *AttributeField) {
	hf := &Heightfield{
		MinHeight: t.MinHeight,
		MaxHeight: t.MaxHeight,
		Valid:     t.HasHeights(),
	}
	if !hf.Valid {
		hf.MinHeight = math.MaxFloat32
		hf.MaxHeight = -math.MaxFloat32
	}
	af := &AttributeField{}

	for c := range t.Chunks {
		chunk := &t.Chunks[c]
		cx := c % formats.SubChunksPerSide
		cy := c / formats.SubChunksPerSide

		vertex := 0
		for row := 0; row < vertexRows; row++ {
			if row%2 == 1 {
				vertex += innerRowLength
				continue
			}
			r := row / 2
			for v := 0; v < outerRowLength; v++ {
				if r < BlockSize && v < BlockSize {
					i := (cy*BlockSize+r)*TileResolution + cx*BlockSize + v
					hf.Heights[i] = chunk.Heights[vertex]
					af.Areas[i] = chunk.AreaID
				}
				vertex++
			}
		}
	}

	return hf, af
}
