package config

// Overrides carries command-line values. Zero values leave the config alone.
type Overrides struct {
	ConfigPath    string
	Debug         bool
	StorePaths    []string
	ClampAboveSea bool
	ClampBelowSea bool
	HeaderLayout  string
	Workers       int
	OutputDir     string
	Format        string
	LogFile       string
}

// apply applies CLI overrides to the config.
func (o Overrides) apply(cfg *Config) {
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if len(o.StorePaths) > 0 {
		cfg.Data.StorePaths = o.StorePaths
	}
	if o.ClampAboveSea {
		cfg.Render.ClampAboveSea = true
	}
	if o.ClampBelowSea {
		cfg.Render.ClampBelowSea = true
	}
	if o.HeaderLayout != "" {
		cfg.Render.HeaderLayout = o.HeaderLayout
	}
	if o.Workers > 0 {
		cfg.Render.Workers = o.Workers
	}
	if o.OutputDir != "" {
		cfg.Render.OutputDir = o.OutputDir
	}
	if o.Format != "" {
		cfg.Render.Format = o.Format
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
}
