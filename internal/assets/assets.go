// Package assets resolves numeric file ids to raw asset bytes.
package assets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Faultbox/heightgen/pkg/blobstore"
)

// ErrMissingAsset is returned when no source can resolve an id.
var ErrMissingAsset = errors.New("asset not found")

// Resolver turns a file id into the asset's bytes.
type Resolver interface {
	Load(id uint32) ([]byte, error)
}

// Source is a single place assets can be read from.
type Source interface {
	Contains(id uint32) bool
	Read(id uint32) ([]byte, error)
	Close() error
}

// Manager handles asset loading from blob stores.
type Manager struct {
	sources []Source
	cache   *ristretto.Cache[uint32, []byte]
	mu      sync.RWMutex
}

// NewManager creates a manager whose byte cache holds up to maxCostBytes.
// A non-positive size disables caching.
func NewManager(maxCostBytes int64) (*Manager, error) {
	m := &Manager{}
	if maxCostBytes <= 0 {
		return m, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config[uint32, []byte]{
		NumCounters: 1 << 16,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating asset cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// AddStore opens a blob directory and adds it to the manager.
// Sources are searched in reverse order (last added = highest priority).
func (m *Manager) AddStore(root string) error {
	store, err := blobstore.Open(root)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", root, err)
	}
	m.AddSource(store)
	return nil
}

// AddSource adds an already opened source.
func (m *Manager) AddSource(src Source) {
	m.mu.Lock()
	m.sources = append(m.sources, src)
	m.mu.Unlock()
}

// Contains reports whether any source holds id.
func (m *Manager) Contains(id uint32) bool {
	if id == 0 {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, src := range m.sources {
		if src.Contains(id) {
			return true
		}
	}
	return false
}

// Load loads an asset from the sources.
func (m *Manager) Load(id uint32) ([]byte, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: id 0", ErrMissingAsset)
	}

	if m.cache != nil {
		if data, ok := m.cache.Get(id); ok {
			return data, nil
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.sources) - 1; i >= 0; i-- {
		src := m.sources[i]
		if !src.Contains(id) {
			continue
		}
		data, err := src.Read(id)
		if err != nil {
			return nil, fmt.Errorf("loading asset %d: %w", id, err)
		}
		if m.cache != nil {
			m.cache.Set(id, data, int64(len(data)))
		}
		return data, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrMissingAsset, id)
}

// Close closes all sources and drops the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, src := range m.sources {
		src.Close()
	}
	m.sources = nil
	if m.cache != nil {
		m.cache.Close()
		m.cache = nil
	}
}

// MapResolver serves assets from memory. Useful for tests and tools that
// already hold the bytes.
type MapResolver map[uint32][]byte

// Load implements Resolver.
func (r MapResolver) Load(id uint32) ([]byte, error) {
	data, ok := r[id]
	if !ok || id == 0 {
		return nil, fmt.Errorf("%w: %d", ErrMissingAsset, id)
	}
	return data, nil
}
