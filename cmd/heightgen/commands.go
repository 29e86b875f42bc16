package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/heightgen/internal/config"
	"github.com/Faultbox/heightgen/internal/logger"
	"github.com/Faultbox/heightgen/internal/mosaic"
	"github.com/Faultbox/heightgen/internal/raster"
	"github.com/Faultbox/heightgen/internal/terrain"
	"github.com/Faultbox/heightgen/pkg/formats"
)

const mosaicResolution = formats.MapSize * terrain.TileResolution

func cmdHeight(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: heightgen height <wdt-id>...", 1)
	}

	// Ids may be given as separate arguments or comma separated.
	var ids []uint32
	for _, arg := range c.Args().Slice() {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	ext, err := raster.Extension(e.cfg.Render.Format)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		path := filepath.Join(e.cfg.Render.OutputDir, fmt.Sprintf("%d_height%s", id, ext))
		logger.Info("building heightmap", zap.Uint32("wdt", id), zap.String("path", path))
		if err := buildWorld(c, e, id, path); err != nil {
			logger.Error("world failed", zap.Uint32("wdt", id), zap.Error(err))
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d worlds failed", failed, len(ids))
	}
	return nil
}

func buildWorld(c *cli.Context, e *env, id uint32, path string) error {
	index, err := e.loadIndex(id)
	if err != nil {
		return err
	}

	log := logger.Named("mosaic").With(zap.Uint32("wdt", id))
	opts := mosaic.Options{
		Policy: mosaic.Policy{
			ClampAboveSea: e.cfg.Render.ClampAboveSea,
			ClampBelowSea: e.cfg.Render.ClampBelowSea,
		},
		Layout:     e.cfg.Layout(),
		Workers:    e.cfg.Render.Workers,
		CacheBytes: int64(e.cfg.Cache.HeightfieldMB) << 20,
	}

	// Progress only ticks during rendering; the bar is created once the
	// number of loaded tiles is known, before any render goroutine starts.
	var bar *progressbar.ProgressBar
	opts.Progress = func(int, int) {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	builder, err := mosaic.NewBuilder(e.assets, log, opts)
	if err != nil {
		return err
	}
	defer builder.Close()

	report, err := builder.Discover(c.Context, index)
	if err != nil {
		return err
	}
	if !c.Bool("quiet") {
		bar = progressbar.NewOptions(int(report.Loaded.Count()),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(fmt.Sprintf("rendering %d", id)),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
		)
	}

	canvas := raster.NewCanvas(mosaicResolution, mosaicResolution)
	if err := builder.Render(c.Context, index, report, canvas); err != nil {
		return err
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	if err := canvas.Save(path); err != nil {
		return err
	}

	log.Info("heightmap written",
		zap.String("path", path),
		zap.Float32("min", report.Range.Min),
		zap.Float32("max", report.Range.Max),
		zap.Uint("rendered", report.Rendered.Count()),
		zap.Int("failed", report.Failed()),
	)
	if report.Failed() > 0 {
		logger.Warn("tiles left out of the heightmap", zap.Uint32("wdt", id), zap.Error(report.Errors))
	}
	return nil
}

func cmdTiles(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: heightgen tiles <wdt-id>", 1)
	}
	id, err := parseID(c.Args().Get(0))
	if err != nil {
		return err
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	index, err := e.loadIndex(id)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "WDT:     %d (version %d)\n", id, index.Version)
	fmt.Fprintf(w, "Tiles:   %d\n", index.Present().Count())
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-7s %-10s %-10s %s\n", "x,y", "terrain", "minimap", "stored")

	missing := 0
	for y := 0; y < formats.MapSize; y++ {
		for x := 0; x < formats.MapSize; x++ {
			ref := index.Get(x, y)
			if !ref.HasTerrain() {
				continue
			}
			stored := e.assets.Contains(ref.Terrain)
			if !stored {
				missing++
			}
			fmt.Fprintf(w, "  %-7s %-10d %-10d %v\n", fmt.Sprintf("%d,%d", x, y), ref.Terrain, ref.Minimap, stored)
		}
	}

	if missing > 0 {
		logger.Sugar.Warnf("%d terrain assets of WDT %d are not in any store", missing, id)
	}
	return nil
}

func cmdTile(c *cli.Context) error {
	if c.NArg() < 3 {
		return cli.Exit("Usage: heightgen tile <wdt-id> <x> <y>", 1)
	}
	id, err := parseID(c.Args().Get(0))
	if err != nil {
		return err
	}
	x, err := parseCell(c.Args().Get(1))
	if err != nil {
		return err
	}
	y, err := parseCell(c.Args().Get(2))
	if err != nil {
		return err
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	index, err := e.loadIndex(id)
	if err != nil {
		return err
	}
	ref := index.Get(x, y)
	if !ref.HasTerrain() {
		return fmt.Errorf("tile %d,%d of WDT %d has no terrain", x, y, id)
	}

	builder, err := mosaic.NewBuilder(e.assets, logger.Named("tile"), mosaic.Options{Layout: e.cfg.Layout()})
	if err != nil {
		return err
	}
	defer builder.Close()

	hf, af, err := builder.LoadTile(ref.Terrain)
	if err != nil {
		return fmt.Errorf("tile %d,%d (asset %d): %w", x, y, ref.Terrain, err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Tile:    %d,%d (asset %d)\n", x, y, ref.Terrain)
	if !hf.Valid {
		fmt.Fprintln(w, "Heights: none")
		return errors.New("tile carries no height data")
	}
	fmt.Fprintf(w, "Heights: %.2f .. %.2f\n", hf.MinHeight, hf.MaxHeight)

	ext, err := raster.Extension(e.cfg.Render.Format)
	if err != nil {
		return err
	}
	base := filepath.Join(e.cfg.Render.OutputDir, fmt.Sprintf("%d_%d_%d", id, x, y))

	// A single tile is normalized against its own range.
	heights := raster.NewCanvas(terrain.TileResolution, terrain.TileResolution)
	heights.Place(mosaic.TileImage(mosaic.RenderTile(hf, mosaic.Range{Min: hf.MinHeight, Max: hf.MaxHeight}, mosaic.Policy{})), 0, 0)
	if err := heights.Save(base + "_height" + ext); err != nil {
		return err
	}

	areas := raster.NewCanvas(terrain.TileResolution, terrain.TileResolution)
	areas.Place(mosaic.TileImage(mosaic.RenderAreaTile(af)), 0, 0)
	if err := areas.Save(base + "_area" + ext); err != nil {
		return err
	}

	fmt.Fprintf(w, "Written: %s_height%s, %s_area%s\n", base, ext, base, ext)
	return nil
}

func cmdConfig(c *cli.Context) error {
	cfg, err := config.Load(overridesFrom(c))
	if err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if _, err := c.App.Writer.Write(data); err != nil {
		return err
	}

	if c.Bool("save") {
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Saved to %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	}
	return nil
}
