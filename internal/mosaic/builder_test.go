package mosaic

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Faultbox/heightgen/internal/assets"
	"github.com/Faultbox/heightgen/internal/raster"
	"github.com/Faultbox/heightgen/internal/terrain"
	"github.com/Faultbox/heightgen/pkg/formats"
	"github.com/Faultbox/heightgen/pkg/formats/formatstest"
)

// world is a synthetic set of tiles keyed by cell (y*64+x).
type world struct {
	terrain  []uint32
	resolver assets.MapResolver
}

func newWorld() *world {
	return &world{terrain: make([]uint32, formats.TileCount), resolver: assets.MapResolver{}}
}

func (w *world) add(x, y int, id uint32, data []byte) {
	w.terrain[y*formats.MapSize+x] = id
	if data != nil {
		w.resolver[id] = data
	}
}

func (w *world) index(t *testing.T) *formats.TileIndex {
	t.Helper()
	index, err := formats.ParseTileIndex(formatstest.WDT(w.terrain))
	if err != nil {
		t.Fatalf("ParseTileIndex failed: %v", err)
	}
	return index
}

type recordingCanvas struct {
	mu     sync.Mutex
	placed map[image.Point]image.Image
}

func (c *recordingCanvas) Place(img image.Image, x, y int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.placed == nil {
		c.placed = make(map[image.Point]image.Image)
	}
	c.placed[image.Pt(x, y)] = img
}

func newTestBuilder(t *testing.T, r assets.Resolver, opts Options) *Builder {
	t.Helper()
	b, err := NewBuilder(r, nil, opts)
	if err != nil {
		t.Fatalf("NewBuilder failed: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestBuild_SingleSubChunkWorld(t *testing.T) {
	heights := make([]float32, formats.VertexCount)
	for i := range heights {
		heights[i] = float32(i)
	}
	w := newWorld()
	w.add(1, 1, 500, formatstest.ADT([]formatstest.SubChunk{
		{Position: [3]float32{0, 0, 100}, AreaID: 3, Heights: heights},
	}))

	b := newTestBuilder(t, w.resolver, Options{Workers: 2, Layout: formats.LayoutExtended})

	hf, _, err := b.LoadTile(500)
	if err != nil {
		t.Fatalf("LoadTile failed: %v", err)
	}
	for row := 0; row < terrain.BlockSize; row++ {
		for col := 0; col < terrain.BlockSize; col++ {
			want := float32(100 + terrain.OuterIndex(row, col))
			if got := hf.At(col, row); got != want {
				t.Errorf("height (%d,%d): expected %f, got %f", col, row, want, got)
			}
		}
	}

	canvas := raster.NewCanvas(3*terrain.TileResolution, 3*terrain.TileResolution)
	report, err := b.Build(context.Background(), w.index(t), canvas)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if diff := cmp.Diff(Range{Min: 100, Max: 244}, report.Range); diff != "" {
		t.Errorf("range mismatch (-want +got):\n%s", diff)
	}
	if report.Rendered.Count() != 1 || !report.Rendered.Test(1*formats.MapSize+1) {
		t.Errorf("expected only cell (1,1) rendered")
	}

	img := canvas.Image()
	tile := image.Rect(128, 128, 256, 256)
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			px := img.RGBAAt(x, y)
			if !image.Pt(x, y).In(tile) {
				if px.A != 0 {
					t.Fatalf("(%d,%d) outside the tile should be background, got %v", x, y, px)
				}
				continue
			}
			if px.A != 0xff {
				t.Fatalf("(%d,%d) inside the tile should be opaque, got %v", x, y, px)
			}

			col, row := x-128, y-128
			var want uint8
			if col < terrain.BlockSize && row < terrain.BlockSize {
				want = uint8(math.Round(255 * float64(terrain.OuterIndex(row, col)) / 144))
			}
			if px.R != want || px.G != want || px.B != want {
				t.Fatalf("(%d,%d): expected gray %d, got %v", col, row, want, px)
			}
		}
	}
}

func TestDiscover_MatchesReferenceReduction(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 2024} {
		for _, cacheBytes := range []int64{0, 64 << 20} {
			rng := rand.New(rand.NewSource(seed))
			w := newWorld()

			tiles := 1 + rng.Intn(12)
			for i := 0; i < tiles; i++ {
				chunks := make([]formatstest.SubChunk, formats.SubChunkCount)
				for c := range chunks {
					if rng.Intn(4) == 0 {
						continue // no MCVT
					}
					z := float32(rng.NormFloat64() * 300)
					h := make([]float32, formats.VertexCount)
					for j := range h {
						h[j] = float32(rng.NormFloat64() * 40)
					}
					chunks[c] = formatstest.SubChunk{Position: [3]float32{0, 0, z}, Heights: h}
				}
				id := uint32(1000 + i)
				w.add(rng.Intn(formats.MapSize), rng.Intn(formats.MapSize), id, formatstest.ADT(chunks))
			}

			// Cells may collide, so reduce over what the index actually keeps.
			want := EmptyRange()
			index := w.index(t)
			for _, ref := range index.Tiles {
				if !ref.HasTerrain() {
					continue
				}
				tr, err := formats.ParseTerrain(w.resolver[ref.Terrain], formats.LayoutExtended)
				if err != nil {
					t.Fatalf("ParseTerrain failed: %v", err)
				}
				for _, c := range tr.Chunks {
					if !c.HasHeights {
						continue
					}
					for _, h := range c.Heights {
						want = want.Fold(Range{Min: h, Max: h})
					}
				}
			}

			b := newTestBuilder(t, w.resolver, Options{Workers: 4, CacheBytes: cacheBytes})
			report, err := b.Discover(context.Background(), index)
			if err != nil {
				t.Fatalf("seed %d: Discover failed: %v", seed, err)
			}
			if report.Discovered != want {
				t.Errorf("seed %d cache %d: expected %+v, got %+v", seed, cacheBytes, want, report.Discovered)
			}
			if report.Range != want {
				t.Errorf("seed %d: no policy should leave the range alone", seed)
			}
		}
	}
}

func TestBuild_SkipsBrokenTiles(t *testing.T) {
	good := formatstest.ADT([]formatstest.SubChunk{{Heights: formatstest.FlatHeights(10)}, {Heights: formatstest.FlatHeights(20)}})
	broken := good[:len(good)-100]

	w := newWorld()
	w.add(0, 0, 1, good)
	w.add(1, 0, 2, broken)
	w.add(2, 0, 3, nil) // referenced but not in storage
	w.add(3, 0, 4, formatstest.ADT(nil))

	b := newTestBuilder(t, w.resolver, Options{Workers: 3})
	canvas := &recordingCanvas{}
	report, err := b.Build(context.Background(), w.index(t), canvas)
	if err != nil {
		t.Fatalf("tile failures must not abort the mosaic: %v", err)
	}

	if report.Present.Count() != 4 {
		t.Errorf("expected 4 present tiles, got %d", report.Present.Count())
	}
	if report.Failed() != 2 {
		t.Errorf("expected 2 failed tiles, got %d: %v", report.Failed(), report.Errors)
	}
	if !errors.Is(report.Errors, assets.ErrMissingAsset) {
		t.Error("expected a missing asset error in the report")
	}
	if !errors.Is(report.Errors, formats.ErrFormat) {
		t.Error("expected a format error in the report")
	}

	var tileErr *TileError
	if !errors.As(report.Errors, &tileErr) {
		t.Fatal("expected TileError in the report")
	}

	if len(canvas.placed) != 2 {
		t.Fatalf("expected two placed tiles, got %d", len(canvas.placed))
	}
	if _, ok := canvas.placed[image.Pt(0, 0)]; !ok {
		t.Error("expected the good tile at (0,0)")
	}
	if _, ok := canvas.placed[image.Pt(3*terrain.TileResolution, 0)]; !ok {
		t.Error("expected the tile without heights at (3,0)")
	}
	if !report.Loaded.Test(3) || !report.Rendered.Test(3) {
		t.Error("a tile without heights should still be rendered")
	}
	if report.Range != (Range{Min: 10, Max: 20}) {
		t.Errorf("unexpected range %+v", report.Range)
	}
}

func TestBuild_TileWithoutHeightsRendersZeros(t *testing.T) {
	w := newWorld()
	w.add(0, 0, 1, formatstest.ADT([]formatstest.SubChunk{
		{Heights: formatstest.FlatHeights(-100)},
		{Heights: formatstest.FlatHeights(100)},
	}))
	w.add(1, 0, 2, formatstest.ADT(nil))

	b := newTestBuilder(t, w.resolver, Options{Workers: 2})
	canvas := raster.NewCanvas(2*terrain.TileResolution, terrain.TileResolution)
	report, err := b.Build(context.Background(), w.index(t), canvas)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if report.Range != (Range{Min: -100, Max: 100}) {
		t.Errorf("a tile without heights must not widen the range, got %+v", report.Range)
	}
	if report.Rendered.Count() != 2 || report.Failed() != 0 {
		t.Errorf("expected 2 rendered and 0 failed, got %d and %d", report.Rendered.Count(), report.Failed())
	}

	// Zero on -100..100 normalizes to round(127.5).
	want := color.RGBA{128, 128, 128, 0xff}
	for _, pt := range []image.Point{{128, 0}, {178, 50}, {255, 127}} {
		if got := canvas.Image().RGBAAt(pt.X, pt.Y); got != want {
			t.Errorf("pixel %v: expected %v, got %v", pt, want, got)
		}
	}
}

func TestBuild_DegenerateRange(t *testing.T) {
	w := newWorld()
	w.add(0, 0, 9, formatstest.ADT([]formatstest.SubChunk{{Position: [3]float32{0, 0, 5}, Heights: formatstest.FlatHeights(0)}}))

	b := newTestBuilder(t, w.resolver, Options{})
	canvas := raster.NewCanvas(128, 128)
	report, err := b.Build(context.Background(), w.index(t), canvas)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !report.Range.Degenerate() {
		t.Fatalf("expected degenerate range, got %+v", report.Range)
	}

	pix := canvas.Image().Pix
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != 0 || pix[i+1] != 0 || pix[i+2] != 0 || pix[i+3] != 0xff {
			t.Fatalf("pixel %d: expected opaque black, got %v", i/4, pix[i:i+4])
		}
	}
}

func TestBuild_ClampPolicies(t *testing.T) {
	w := newWorld()
	w.add(0, 0, 1, formatstest.ADT([]formatstest.SubChunk{
		{Heights: formatstest.FlatHeights(-40)},
		{Heights: formatstest.FlatHeights(60)},
	}))

	tests := []struct {
		name   string
		policy Policy
		want   Range
	}{
		{"none", Policy{}, Range{-40, 60}},
		{"above sea", Policy{ClampAboveSea: true}, Range{0, 60}},
		{"below sea", Policy{ClampBelowSea: true}, Range{-40, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBuilder(t, w.resolver, Options{Policy: tc.policy})
			canvas := raster.NewCanvas(128, 128)
			report, err := b.Build(context.Background(), w.index(t), canvas)
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			if report.Discovered != (Range{-40, 60}) {
				t.Errorf("policy must not change discovery, got %+v", report.Discovered)
			}
			if report.Range != tc.want {
				t.Errorf("expected %+v, got %+v", tc.want, report.Range)
			}

			// Every policy maps sub-chunk 0 (-40) to black and sub-chunk 1 (+60) to white.
			img := canvas.Image()
			if first, second := img.RGBAAt(0, 0).R, img.RGBAAt(8, 0).R; first != 0 || second != 255 {
				t.Errorf("expected 0/255, got %d/%d", first, second)
			}
		})
	}
}

func TestBuild_Progress(t *testing.T) {
	w := newWorld()
	for i := 0; i < 5; i++ {
		w.add(i, i, uint32(i+1), formatstest.ADT([]formatstest.SubChunk{{Heights: formatstest.FlatHeights(float32(i))}}))
	}

	var mu sync.Mutex
	seen := map[[2]int]bool{}
	b := newTestBuilder(t, w.resolver, Options{Workers: 4, CacheBytes: 16 << 20, Progress: func(x, y int) {
		mu.Lock()
		seen[[2]int{x, y}] = true
		mu.Unlock()
	}})

	if _, err := b.Build(context.Background(), w.index(t), &recordingCanvas{}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(seen) != 5 {
		t.Errorf("expected progress for 5 tiles, got %d", len(seen))
	}
}

func TestBuild_Canceled(t *testing.T) {
	w := newWorld()
	w.add(0, 0, 1, formatstest.ADT(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := newTestBuilder(t, w.resolver, Options{})
	if _, err := b.Build(ctx, w.index(t), &recordingCanvas{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
