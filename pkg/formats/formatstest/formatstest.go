// Package formatstest builds synthetic WDT and ADT files for tests.
package formatstest

import (
	"bytes"
	"encoding/binary"

	"github.com/Faultbox/heightgen/pkg/formats"
)

// Chunk encodes a single tag-length-value record.
func Chunk(tag formats.Tag, payload []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(tag))
	binary.Write(buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// WDT builds a root container with an MVER and a MAID table. Terrain ids are
// taken from terrain[y*64+x]; a nil slice produces an empty table.
func WDT(terrain []uint32) []byte {
	table := new(bytes.Buffer)
	for i := 0; i < formats.TileCount; i++ {
		var ref formats.TileReference
		if i < len(terrain) {
			ref.Terrain = terrain[i]
			if ref.Terrain != 0 {
				ref.Minimap = ref.Terrain + 1
			}
		}
		binary.Write(table, binary.LittleEndian, ref)
	}

	buf := new(bytes.Buffer)
	buf.Write(Chunk(formats.TagMVER, le32(18)))
	buf.Write(Chunk(formats.Tag(0x4d504844), make([]byte, 32))) // MPHD, skipped
	buf.Write(Chunk(formats.TagMAID, table.Bytes()))
	return buf.Bytes()
}

// SubChunk describes one synthetic MCNK record.
type SubChunk struct {
	Position [3]float32
	AreaID   uint32
	Heights  []float32 // Relative heights; nil omits the MCVT record
}

// ADT builds a root ADT from up to 256 sub-chunks. Missing entries are filled
// with sub-chunks that carry no heights.
func ADT(chunks []SubChunk) []byte {
	buf := new(bytes.Buffer)
	buf.Write(Chunk(formats.TagMVER, le32(18)))
	buf.Write(Chunk(formats.Tag(0x4d484452), make([]byte, 64))) // MHDR, skipped

	for i := 0; i < formats.SubChunkCount; i++ {
		var sc SubChunk
		if i < len(chunks) {
			sc = chunks[i]
		}
		buf.Write(Chunk(formats.TagMCNK, MCNK(i, sc)))
	}
	return buf.Bytes()
}

// MCNK encodes the payload of a sub-chunk record with the full header.
func MCNK(index int, sc SubChunk) []byte {
	hdr := formats.SubChunkHeader{
		IndexX:   uint32(index % formats.SubChunksPerSide),
		IndexY:   uint32(index / formats.SubChunksPerSide),
		AreaID:   sc.AreaID,
		Position: sc.Position,
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, hdr)
	if sc.Heights != nil {
		heights := new(bytes.Buffer)
		binary.Write(heights, binary.LittleEndian, sc.Heights)
		buf.Write(Chunk(formats.TagMCVT, heights.Bytes()))
	}
	buf.Write(Chunk(formats.Tag(0x4d434e52), make([]byte, 448))) // MCNR, skipped
	return buf.Bytes()
}

// FlatHeights returns 145 relative heights all equal to v.
func FlatHeights(v float32) []float32 {
	h := make([]float32, formats.VertexCount)
	for i := range h {
		h[i] = v
	}
	return h
}

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}
