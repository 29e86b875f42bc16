package mosaic

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/willf/bitset"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/heightgen/internal/assets"
	"github.com/Faultbox/heightgen/internal/terrain"
	"github.com/Faultbox/heightgen/pkg/formats"
)

const heightfieldCost = terrain.TileResolution * terrain.TileResolution * 4

// Canvas receives rendered tiles. Tiles never overlap, so Place may be called
// from several goroutines at once.
type Canvas interface {
	Place(img image.Image, x, y int)
}

// Options configures a Builder.
type Options struct {
	Policy
	Layout     formats.HeaderLayout
	Workers    int   // Concurrent tile decodes per phase; <= 0 means 1
	CacheBytes int64 // Heightfields kept between phases; <= 0 decodes twice
	Progress   func(x, y int)
}

// TileError records why a single tile was left out of the mosaic.
type TileError struct {
	X, Y int
	ID   uint32
	Err  error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile (%d,%d) asset %d: %v", e.X, e.Y, e.ID, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// Report summarizes a mosaic build. Cell bits are y*64+x.
type Report struct {
	Discovered Range // Raw extremes over every loaded tile
	Range      Range // Discovered with the clamp policy applied
	Present    *bitset.BitSet
	Loaded     *bitset.BitSet
	Rendered   *bitset.BitSet
	Errors     error // Every TileError, combined with multierr

	mu sync.Mutex
}

// Failed returns the number of tiles that were skipped because of an error.
func (r *Report) Failed() int {
	return len(multierr.Errors(r.Errors))
}

func (r *Report) addError(err error) {
	r.mu.Lock()
	r.Errors = multierr.Append(r.Errors, err)
	r.mu.Unlock()
}

// Builder runs the two mosaic phases over a tile index.
type Builder struct {
	resolver assets.Resolver
	log      *zap.Logger
	opts     Options
	cache    *ristretto.Cache[uint32, *terrain.Heightfield]
}

// NewBuilder creates a builder reading tiles through resolver.
func NewBuilder(resolver assets.Resolver, log *zap.Logger, opts Options) (*Builder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	b := &Builder{resolver: resolver, log: log, opts: opts}
	if opts.CacheBytes > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[uint32, *terrain.Heightfield]{
			NumCounters: formats.TileCount * 10,
			MaxCost:     opts.CacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("creating heightfield cache: %w", err)
		}
		b.cache = cache
	}
	return b, nil
}

// Close releases the heightfield cache.
func (b *Builder) Close() {
	if b.cache != nil {
		b.cache.Close()
		b.cache = nil
	}
}

// LoadTile resolves, decodes and reconstructs one terrain asset.
func (b *Builder) LoadTile(id uint32) (*terrain.Heightfield, *terrain.AttributeField, error) {
	data, err := b.resolver.Load(id)
	if err != nil {
		return nil, nil, err
	}
	t, err := formats.ParseTerrain(data, b.opts.Layout)
	if err != nil {
		return nil, nil, err
	}
	hf, af := terrain.Reconstruct(t)
	return hf, af, nil
}

func (b *Builder) heightfield(id uint32) (*terrain.Heightfield, error) {
	if b.cache != nil {
		if hf, ok := b.cache.Get(id); ok {
			return hf, nil
		}
	}
	hf, _, err := b.LoadTile(id)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		b.cache.Set(id, hf, heightfieldCost)
	}
	return hf, nil
}

// Build runs Discover and then Render.
func (b *Builder) Build(ctx context.Context, index *formats.TileIndex, canvas Canvas) (*Report, error) {
	report, err := b.Discover(ctx, index)
	if err != nil {
		return nil, err
	}
	if err := b.Render(ctx, index, report, canvas); err != nil {
		return nil, err
	}
	return report, nil
}

// Discover decodes every present tile and reduces their height ranges into
// one global range. Tiles that fail are recorded and left out.
func (b *Builder) Discover(ctx context.Context, index *formats.TileIndex) (*Report, error) {
	report := &Report{
		Discovered: EmptyRange(),
		Present:    index.Present(),
		Loaded:     bitset.New(formats.TileCount),
		Rendered:   bitset.New(formats.TileCount),
	}

	var mu sync.Mutex
	err := b.forEach(ctx, report.Present, func(cell uint) {
		x, y := int(cell%formats.MapSize), int(cell/formats.MapSize)
		id := index.Tiles[cell].Terrain

		hf, err := b.heightfield(id)
		if err != nil {
			b.skip(report, x, y, id, err)
			return
		}
		// A tile without heights still renders its zero samples but stays
		// out of the reduction.
		if !hf.Valid {
			b.log.Debug("tile has no height data", zap.Int("x", x), zap.Int("y", y), zap.Uint32("id", id))
		}

		mu.Lock()
		if hf.Valid {
			report.Discovered = report.Discovered.Fold(Range{Min: hf.MinHeight, Max: hf.MaxHeight})
		}
		report.Loaded.Set(cell)
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		b.cache.Wait()
	}
	report.Range = b.opts.Policy.Apply(report.Discovered)

	b.log.Info("discovered height range",
		zap.Uint("present", report.Present.Count()),
		zap.Uint("loaded", report.Loaded.Count()),
		zap.Float32("min", report.Range.Min),
		zap.Float32("max", report.Range.Max),
	)
	return report, nil
}

// Render normalizes every tile loaded by Discover against report.Range and
// places it on canvas at (128x, 128y). The range must be final.
func (b *Builder) Render(ctx context.Context, index *formats.TileIndex, report *Report, canvas Canvas) error {
	if report.Range.Degenerate() {
		b.log.Warn("degenerate height range, tiles render black",
			zap.Float32("min", report.Range.Min), zap.Float32("max", report.Range.Max))
	}

	var mu sync.Mutex
	return b.forEach(ctx, report.Loaded, func(cell uint) {
		x, y := int(cell%formats.MapSize), int(cell/formats.MapSize)
		id := index.Tiles[cell].Terrain
		defer b.progress(x, y)

		hf, err := b.heightfield(id)
		if err != nil {
			b.skip(report, x, y, id, err)
			return
		}

		rgb := RenderTile(hf, report.Range, b.opts.Policy)
		canvas.Place(TileImage(rgb), x*terrain.TileResolution, y*terrain.TileResolution)

		mu.Lock()
		report.Rendered.Set(cell)
		mu.Unlock()
	})
}

func (b *Builder) skip(report *Report, x, y int, id uint32, err error) {
	tileErr := &TileError{X: x, Y: y, ID: id, Err: err}
	report.addError(tileErr)

	fields := []zap.Field{zap.Int("x", x), zap.Int("y", y), zap.Uint32("id", id), zap.Error(err)}
	if errors.Is(err, assets.ErrMissingAsset) {
		b.log.Debug("terrain asset missing", fields...)
		return
	}
	b.log.Warn("skipping tile", fields...)
}

func (b *Builder) progress(x, y int) {
	if b.opts.Progress != nil {
		b.opts.Progress(x, y)
	}
}

// forEach runs fn for every set bit on a bounded pool of goroutines.
func (b *Builder) forEach(ctx context.Context, cells *bitset.BitSet, fn func(cell uint)) error {
	var g errgroup.Group
	g.SetLimit(b.opts.Workers)

	for cell, ok := cells.NextSet(0); ok; cell, ok = cells.NextSet(cell + 1) {
		if err := ctx.Err(); err != nil {
			break
		}
		cell := cell
		g.Go(func() error {
			fn(cell)
			return nil
		})
	}

	_ = g.Wait() // tile failures are recorded in the report, never returned
	return ctx.Err()
}

// TileImage wraps rendered RGB bytes as an opaque RGBA image.
func TileImage(rgb []byte) *image.RGBA {
	size := terrain.TileResolution
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < size*size; i++ {
		img.Pix[i*4] = rgb[i*3]
		img.Pix[i*4+1] = rgb[i*3+1]
		img.Pix[i*4+2] = rgb[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img
}
