package formats

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Tag is a four byte chunk identifier stored as a little-endian uint32.
type Tag uint32

// Known chunk tags.
const (
	TagMVER Tag = 0x4d564552 // Container version
	TagMAID Tag = 0x4d414944 // WDT map tile table
	TagMCNK Tag = 0x4d434e4b // ADT terrain sub-tile
	TagMCVT Tag = 0x4d435654 // ADT vertex heights
)

// String returns the four letter code, most significant byte first ("MCNK").
func (t Tag) String() string {
	b := [4]byte{byte(t >> 24), byte(t >> 16), byte(t >> 8), byte(t)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(t))
		}
	}
	return string(b[:])
}

// chunkHeaderSize is the tag plus the length field.
const chunkHeaderSize = 8

// Record is one tag-length-value record. Payload is a view into the source,
// nothing is copied until the caller reads it.
type Record struct {
	ID      Tag
	Size    uint32
	Offset  int64 // Offset of the record header within the scanned region
	Payload *io.SectionReader
}

// Scanner walks a sequence of chunk records in a region of a random-access
// source. It mirrors bufio.Scanner: call Next until it returns false, then
// check Err.
type Scanner struct {
	src   io.ReaderAt
	start int64
	end   int64
	pos   int64
	rec   Record
	err   error
}

// NewScanner returns a scanner over src[start:end].
func NewScanner(src io.ReaderAt, start, end int64) *Scanner {
	return &Scanner{src: src, start: start, end: end, pos: start}
}

// Sub returns a scanner over the payload of rec, starting at payload offset 0
// with the payload length as its end bound.
func Sub(rec Record) *Scanner {
	return NewScanner(rec.Payload, 0, rec.Payload.Size())
}

// Next advances to the next record. It returns false when the region is
// exhausted or a framing error was found.
func (s *Scanner) Next() bool {
	if s.err != nil || s.pos >= s.end {
		return false
	}

	remaining := s.end - s.pos
	if remaining < chunkHeaderSize {
		s.err = formatErrorf(s.pos-s.start, 0, "%d trailing bytes, need %d for a chunk header", remaining, chunkHeaderSize)
		return false
	}

	var hdr [chunkHeaderSize]byte
	if _, err := s.src.ReadAt(hdr[:], s.pos); err != nil {
		s.err = formatErrorf(s.pos-s.start, 0, "reading chunk header: %v", err)
		return false
	}

	id := Tag(binary.LittleEndian.Uint32(hdr[0:4]))
	size := binary.LittleEndian.Uint32(hdr[4:8])
	payloadStart := s.pos + chunkHeaderSize

	// Lengths are signed on disk; a negative one shows up here as a huge size.
	if int64(size) > s.end-payloadStart {
		s.err = formatErrorf(s.pos-s.start, id, "declared size %d exceeds %d remaining bytes", size, s.end-payloadStart)
		return false
	}

	s.rec = Record{
		ID:      id,
		Size:    size,
		Offset:  s.pos - s.start,
		Payload: io.NewSectionReader(s.src, payloadStart, int64(size)),
	}
	s.pos = payloadStart + int64(size)
	return true
}

// Record returns the record produced by the last successful Next.
func (s *Scanner) Record() Record {
	return s.rec
}

// Err returns the framing error that stopped the scan, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Reset rewinds the scanner to the start of its region.
func (s *Scanner) Reset() {
	s.pos = s.start
	s.rec = Record{}
	s.err = nil
}
