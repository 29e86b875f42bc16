package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// ADT layout constants.
const (
	SubChunksPerSide = 16
	SubChunkCount    = SubChunksPerSide * SubChunksPerSide
	VertexCount      = 9*9 + 8*8 // Outer plus inner vertices of a sub-chunk

	subChunkHeaderSize = 128
	positionOffset     = 104
)

// HeaderLayout selects how the fixed MCNK header is read.
type HeaderLayout int

const (
	// LayoutLegacy reads only the position triplet.
	LayoutLegacy HeaderLayout = iota
	// LayoutExtended reads the full header, including the area id.
	LayoutExtended
)

// String returns the layout name used in config files.
func (l HeaderLayout) String() string {
	switch l {
	case LayoutLegacy:
		return "legacy"
	case LayoutExtended:
		return "extended"
	default:
		return fmt.Sprintf("HeaderLayout(%d)", int(l))
	}
}

// ParseHeaderLayout converts a layout name back into a HeaderLayout.
func ParseHeaderLayout(name string) (HeaderLayout, error) {
	switch name {
	case "legacy":
		return LayoutLegacy, nil
	case "extended", "":
		return LayoutExtended, nil
	default:
		return 0, fmt.Errorf("unknown header layout %q", name)
	}
}

// SubChunkHeader is the full 128-byte MCNK header.
type SubChunkHeader struct {
	Flags          uint32
	IndexX         uint32
	IndexY         uint32
	Layers         uint32
	DoodadRefs     uint32
	OfsHeight      uint32
	OfsNormal      uint32
	OfsLayer       uint32
	OfsRefs        uint32
	OfsAlpha       uint32
	SizeAlpha      uint32
	OfsShadow      uint32
	SizeShadow     uint32
	AreaID         uint32
	MapObjRefs     uint32
	Holes          uint16
	_              uint16
	LowQualityTex  [16]byte
	NoEffectDoodad [8]byte
	OfsSndEmitters uint32
	SndEmitters    uint32
	OfsLiquid      uint32
	SizeLiquid     uint32
	Position       [3]float32
	OfsMCCV        uint32
	OfsMCLV        uint32
	_              uint32
}

// SubChunk is one of the 256 cells of a terrain tile.
type SubChunk struct {
	Position   [3]float32
	AreaID     uint32
	Header     *SubChunkHeader // Only set for LayoutExtended
	Heights    [VertexCount]float32
	HasHeights bool
	MinHeight  float32
	MaxHeight  float32
}

// Terrain is a decoded root ADT.
type Terrain struct {
	Chunks    [SubChunkCount]SubChunk
	MinHeight float32 // math.MaxFloat32 when no sub-chunk has heights
	MaxHeight float32 // -math.MaxFloat32 when no sub-chunk has heights
	Populated int     // Sub-chunks carrying an MCVT record
}

// HasHeights reports whether any sub-chunk contributed height samples.
func (t *Terrain) HasHeights() bool {
	return t.Populated > 0
}

// ParseTerrain parses a root ADT from raw bytes.
func ParseTerrain(data []byte, layout HeaderLayout) (*Terrain, error) {
	return ReadTerrain(bytes.NewReader(data), int64(len(data)), layout)
}

// ParseTerrainFile parses a root ADT from disk.
func ParseTerrainFile(path string, layout HeaderLayout) (*Terrain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ADT file: %w", err)
	}
	return ParseTerrain(data, layout)
}

// ReadTerrain enumerates the MCNK records of a root ADT in file order. The
// n-th MCNK becomes sub-chunk n regardless of its own index fields. Anything
// other than exactly 256 well-formed sub-chunks fails the whole tile; a framing
// error after the last one only ends the scan.
func ReadTerrain(r io.ReaderAt, size int64, layout HeaderLayout) (*Terrain, error) {
	t := &Terrain{
		MinHeight: math.MaxFloat32,
		MaxHeight: -math.MaxFloat32,
	}

	n := 0
	sc := NewScanner(r, 0, size)
	for sc.Next() {
		rec := sc.Record()
		if rec.ID != TagMCNK {
			continue
		}
		if n >= SubChunkCount {
			return nil, formatErrorf(rec.Offset, rec.ID, "more than %d sub-chunks", SubChunkCount)
		}

		chunk := &t.Chunks[n]
		if err := readSubChunk(rec, layout, chunk); err != nil {
			return nil, fmt.Errorf("sub-chunk %d: %w", n, err)
		}
		if chunk.HasHeights {
			t.Populated++
			t.MinHeight = min(t.MinHeight, chunk.MinHeight)
			t.MaxHeight = max(t.MaxHeight, chunk.MaxHeight)
		}
		n++
	}

	if err := sc.Err(); err != nil && n < SubChunkCount {
		return nil, err
	}
	if n != SubChunkCount {
		return nil, formatErrorf(size, TagMCNK, "found %d sub-chunks, want %d", n, SubChunkCount)
	}
	return t, nil
}

func readSubChunk(rec Record, layout HeaderLayout, chunk *SubChunk) error {
	if rec.Size < subChunkHeaderSize {
		return formatErrorf(rec.Offset, rec.ID, "size %d is smaller than the %d byte header", rec.Size, subChunkHeaderSize)
	}

	switch layout {
	case LayoutLegacy:
		pos := io.NewSectionReader(rec.Payload, positionOffset, 12)
		if err := binary.Read(pos, binary.LittleEndian, &chunk.Position); err != nil {
			return formatErrorf(rec.Offset, rec.ID, "reading position: %v", err)
		}
	case LayoutExtended:
		hdr := new(SubChunkHeader)
		if err := binary.Read(io.NewSectionReader(rec.Payload, 0, subChunkHeaderSize), binary.LittleEndian, hdr); err != nil {
			return formatErrorf(rec.Offset, rec.ID, "reading header: %v", err)
		}
		chunk.Header = hdr
		chunk.Position = hdr.Position
		chunk.AreaID = hdr.AreaID
	default:
		return fmt.Errorf("unsupported header layout %s", layout)
	}

	chunk.MinHeight = math.MaxFloat32
	chunk.MaxHeight = -math.MaxFloat32

	// A broken nested record ends the nested scan but keeps what was read.
	sub := NewScanner(rec.Payload, subChunkHeaderSize, rec.Payload.Size())
	for sub.Next() {
		nested := sub.Record()
		if nested.ID != TagMCVT || chunk.HasHeights {
			continue
		}
		if err := readVertexHeights(nested, chunk); err != nil {
			return err
		}
	}
	return nil
}

func readVertexHeights(rec Record, chunk *SubChunk) error {
	if rec.Size < VertexCount*4 {
		return formatErrorf(rec.Offset, rec.ID, "size %d, need %d bytes of heights", rec.Size, VertexCount*4)
	}

	var raw [VertexCount]float32
	if err := binary.Read(rec.Payload, binary.LittleEndian, &raw); err != nil {
		return formatErrorf(rec.Offset, rec.ID, "reading heights: %v", err)
	}

	z := chunk.Position[2]
	for i, h := range raw {
		h += z
		chunk.Heights[i] = h
		chunk.MinHeight = min(chunk.MinHeight, h)
		chunk.MaxHeight = max(chunk.MaxHeight, h)
	}
	chunk.HasHeights = true
	return nil
}
