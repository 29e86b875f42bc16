package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/willf/bitset"
)

// WDT layout constants.
const (
	MapSize         = 64                // Tiles per side of a world
	TileCount       = MapSize * MapSize // Records in a tile table
	tileRecordSize  = 8 * 4             // Eight uint32 ids
	tileTableLength = TileCount * tileRecordSize
)

// WDT format errors.
var (
	ErrNoTileTable = errors.New("WDT has no MAID tile table")
)

// TileReference holds the asset ids of one world tile. Zero means absent.
type TileReference struct {
	Terrain          uint32 // Root ADT
	Object0          uint32 // _obj0 ADT
	Object1          uint32 // _obj1 ADT
	Texture0         uint32 // _tex0 ADT
	LOD              uint32 // _lod ADT
	MapTexture       uint32 // Diffuse texture
	MapTextureNormal uint32 // Normal texture
	Minimap          uint32 // Minimap texture
}

// HasTerrain reports whether the tile references a terrain asset.
func (r TileReference) HasTerrain() bool {
	return r.Terrain != 0
}

// TileIndex is the fixed 64x64 tile table of a world, row-major with x fastest.
type TileIndex struct {
	Version uint32 // From MVER, zero when the chunk is absent
	Tiles   [TileCount]TileReference
}

// Get returns the reference at (x, y), or nil if out of range.
func (w *TileIndex) Get(x, y int) *TileReference {
	if x < 0 || y < 0 || x >= MapSize || y >= MapSize {
		return nil
	}
	return &w.Tiles[y*MapSize+x]
}

// Present returns the set of cells (y*64+x) that reference a terrain asset.
func (w *TileIndex) Present() *bitset.BitSet {
	set := bitset.New(TileCount)
	for i, ref := range w.Tiles {
		if ref.HasTerrain() {
			set.Set(uint(i))
		}
	}
	return set
}

// ParseTileIndex parses a WDT file from raw bytes.
func ParseTileIndex(data []byte) (*TileIndex, error) {
	return ReadTileIndex(bytes.NewReader(data), int64(len(data)))
}

// ParseTileIndexFile parses a WDT file from disk.
func ParseTileIndexFile(path string) (*TileIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading WDT file: %w", err)
	}
	return ParseTileIndex(data)
}

// ReadTileIndex scans the top-level chunks of a WDT for the MAID tile table.
// Unknown chunks are skipped. A framing error after the table was read only
// ends the scan.
func ReadTileIndex(r io.ReaderAt, size int64) (*TileIndex, error) {
	var (
		index    TileIndex
		hasTable bool
	)

	sc := NewScanner(r, 0, size)
	for sc.Next() {
		rec := sc.Record()
		switch rec.ID {
		case TagMVER:
			if rec.Size >= 4 {
				if err := binary.Read(rec.Payload, binary.LittleEndian, &index.Version); err != nil {
					return nil, formatErrorf(rec.Offset, rec.ID, "reading MVER: %v", err)
				}
			}
		case TagMAID:
			if err := readTileTable(rec, &index); err != nil {
				return nil, err
			}
			hasTable = true
		}
	}

	if err := sc.Err(); err != nil && !hasTable {
		return nil, err
	}
	if !hasTable {
		return nil, ErrNoTileTable
	}
	return &index, nil
}

func readTileTable(rec Record, index *TileIndex) error {
	if rec.Size%tileRecordSize != 0 {
		return formatErrorf(rec.Offset, rec.ID, "size %d is not a multiple of %d", rec.Size, tileRecordSize)
	}
	if rec.Size != tileTableLength {
		return formatErrorf(rec.Offset, rec.ID, "holds %d records, want %d", rec.Size/tileRecordSize, TileCount)
	}

	if err := binary.Read(rec.Payload, binary.LittleEndian, &index.Tiles); err != nil {
		return formatErrorf(rec.Offset, rec.ID, "reading tile records: %v", err)
	}
	return nil
}
