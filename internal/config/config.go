// Package config handles heightgen configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/heightgen/internal/raster"
	"github.com/Faultbox/heightgen/pkg/formats"
)

// Config holds all settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Render  RenderConfig  `yaml:"render"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds asset storage locations.
type DataConfig struct {
	StorePaths []string `yaml:"store_paths"` // Blob directories, later entries win
}

// RenderConfig holds mosaic settings.
type RenderConfig struct {
	ClampAboveSea bool   `yaml:"clamp_above_sea"`
	ClampBelowSea bool   `yaml:"clamp_below_sea"`
	HeaderLayout  string `yaml:"header_layout"` // "legacy" or "extended"
	Workers       int    `yaml:"workers"`
	OutputDir     string `yaml:"output_dir"`
	Format        string `yaml:"format"` // png, tiff or bmp
}

// CacheConfig holds in-memory cache budgets.
type CacheConfig struct {
	AssetMB       int `yaml:"asset_mb"`
	HeightfieldMB int `yaml:"heightfield_mb"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			StorePaths: []string{"data"},
		},
		Render: RenderConfig{
			HeaderLayout: "extended",
			Workers:      4,
			OutputDir:    "Output",
			Format:       "png",
		},
		Cache: CacheConfig{
			AssetMB:       64,
			HeightfieldMB: 512,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks values that can only be wrong, not merely unusual.
func (c *Config) Validate() error {
	if _, err := formats.ParseHeaderLayout(c.Render.HeaderLayout); err != nil {
		return fmt.Errorf("render.header_layout: %w", err)
	}
	if _, err := raster.Extension(c.Render.Format); err != nil {
		return fmt.Errorf("render.format: %w", err)
	}
	if c.Render.ClampAboveSea && c.Render.ClampBelowSea {
		return fmt.Errorf("render.clamp_above_sea and render.clamp_below_sea are mutually exclusive")
	}
	if c.Render.Workers < 1 {
		return fmt.Errorf("render.workers must be at least 1, got %d", c.Render.Workers)
	}
	if c.Cache.AssetMB < 0 || c.Cache.HeightfieldMB < 0 {
		return fmt.Errorf("cache sizes must not be negative")
	}
	return nil
}

// Layout returns the parsed header layout. Call Validate first.
func (c *Config) Layout() formats.HeaderLayout {
	layout, _ := formats.ParseHeaderLayout(c.Render.HeaderLayout)
	return layout
}
