package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/heightgen/internal/assets"
	"github.com/Faultbox/heightgen/internal/config"
	"github.com/Faultbox/heightgen/internal/logger"
	"github.com/Faultbox/heightgen/pkg/formats"
)

// env is what every command needs: config, logging and an asset manager.
type env struct {
	cfg    *config.Config
	assets *assets.Manager
}

func overridesFrom(c *cli.Context) config.Overrides {
	return config.Overrides{
		ConfigPath:    c.String("config"),
		Debug:         c.Bool("debug"),
		StorePaths:    c.StringSlice("store"),
		LogFile:       c.String("log-file"),
		ClampAboveSea: c.Bool("clamp-above-sea"),
		ClampBelowSea: c.Bool("clamp-below-sea"),
		HeaderLayout:  c.String("layout"),
		Workers:       c.Int("workers"),
		OutputDir:     c.String("out"),
		Format:        c.String("format"),
	}
}

func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load(overridesFrom(c))
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	mgr, err := assets.NewManager(int64(cfg.Cache.AssetMB) << 20)
	if err != nil {
		return nil, err
	}
	for _, path := range cfg.Data.StorePaths {
		if err := mgr.AddStore(path); err != nil {
			mgr.Close()
			return nil, err
		}
		logger.Debug("added blob store", zap.String("path", path))
	}

	return &env{cfg: cfg, assets: mgr}, nil
}

func (e *env) Close() {
	e.assets.Close()
	logger.Sync()
}

// loadIndex resolves and parses a WDT. Failure here is fatal for the world.
func (e *env) loadIndex(id uint32) (*formats.TileIndex, error) {
	data, err := e.assets.Load(id)
	if err != nil {
		return nil, fmt.Errorf("loading WDT %d: %w", id, err)
	}
	index, err := formats.ParseTileIndex(data)
	if err != nil {
		return nil, fmt.Errorf("parsing WDT %d: %w", id, err)
	}
	return index, nil
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return uint32(v), nil
}

func parseCell(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v >= formats.MapSize {
		return 0, fmt.Errorf("invalid tile coordinate %q, want 0..%d", s, formats.MapSize-1)
	}
	return v, nil
}
