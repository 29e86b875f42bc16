// Package blobstore reads game assets from a directory keyed by numeric file id.
//
// A blob with id 782779 is looked up as "782779" in the store root, or in a
// two-hex-digit shard directory ("bb/782779", the low byte of the id). Each
// name may carry a compression suffix: ".gz", ".zlib" or ".zst".
package blobstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrNotFound is returned when no blob exists for an id.
var ErrNotFound = errors.New("blob not found")

// Compression identifies how a blob is stored on disk.
type Compression uint8

// Supported encodings, in lookup order.
const (
	None Compression = iota
	Gzip
	Zlib
	Zstd
)

var suffixes = []struct {
	ext string
	enc Compression
}{
	{"", None},
	{".gz", Gzip},
	{".zlib", Zlib},
	{".zst", Zstd},
}

// Store is an opened blob directory.
type Store struct {
	root string
	zstd *zstd.Decoder
}

// Entry describes where a blob lives.
type Entry struct {
	ID          uint32
	Path        string
	Compression Compression
}

// Open opens a blob directory for reading.
func Open(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening store: %s is not a directory", root)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Store{root: root, zstd: dec}, nil
}

// Root returns the store directory.
func (s *Store) Root() string {
	return s.root
}

// Close releases the decoder.
func (s *Store) Close() error {
	if s.zstd != nil {
		s.zstd.Close()
		s.zstd = nil
	}
	return nil
}

// Lookup finds the on-disk entry for id.
func (s *Store) Lookup(id uint32) (Entry, bool) {
	name := strconv.FormatUint(uint64(id), 10)
	dirs := []string{s.root, filepath.Join(s.root, fmt.Sprintf("%02x", id&0xff))}

	for _, dir := range dirs {
		for _, sfx := range suffixes {
			path := filepath.Join(dir, name+sfx.ext)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return Entry{ID: id, Path: path, Compression: sfx.enc}, true
			}
		}
	}
	return Entry{}, false
}

// Contains checks if a blob exists.
func (s *Store) Contains(id uint32) bool {
	_, ok := s.Lookup(id)
	return ok
}

// Read reads and decompresses a blob.
func (s *Store) Read(id uint32) ([]byte, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: id 0", ErrNotFound)
	}

	entry, ok := s.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	raw, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("reading blob %d: %w", id, err)
	}

	data, err := s.decode(entry.Compression, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding blob %d: %w", id, err)
	}
	return data, nil
}

func (s *Store) decode(enc Compression, raw []byte) ([]byte, error) {
	switch enc {
	case None:
		return raw, nil
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case Zlib:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case Zstd:
		if s.zstd == nil {
			return nil, errors.New("store is closed")
		}
		return s.zstd.DecodeAll(raw, nil)
	default:
		return nil, fmt.Errorf("unknown compression %d", enc)
	}
}
