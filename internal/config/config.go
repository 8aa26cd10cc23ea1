// Package config handles treebake configuration loading and management.
package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config holds all bake settings.
type Config struct {
	Build   BuildConfig   `yaml:"build" toml:"build"`
	Atlas   AtlasConfig   `yaml:"atlas" toml:"atlas"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Watch   WatchConfig   `yaml:"watch" toml:"watch"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// BuildConfig holds mesh build settings.
type BuildConfig struct {
	Quality          float32 `yaml:"quality" toml:"quality"`
	PreviewQuality   float32 `yaml:"preview_quality" toml:"preview_quality"`
	Seed             uint64  `yaml:"seed" toml:"seed"`
	AmbientOcclusion bool    `yaml:"ambient_occlusion" toml:"ambient_occlusion"`
	Weld             bool    `yaml:"weld" toml:"weld"`
	Optimize         bool    `yaml:"optimize" toml:"optimize"`
}

// AtlasConfig holds material atlas settings.
type AtlasConfig struct {
	Size    int `yaml:"size" toml:"size"`
	Padding int `yaml:"padding" toml:"padding"`
	// Compositor is "cpu" or "gpu".
	Compositor string   `yaml:"compositor" toml:"compositor"`
	Shaders    []string `yaml:"shaders" toml:"shaders"` // Optimized shaders known to the host
}

// OutputConfig holds output file settings.
type OutputConfig struct {
	Dir  string `yaml:"dir" toml:"dir"`
	Name string `yaml:"name" toml:"name"` // Defaults to the tree name
}

// WatchConfig holds settings of the watch command.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" toml:"debounce"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Quality:          1,
			PreviewQuality:   0.25,
			Seed:             0,
			AmbientOcclusion: true,
			Weld:             true,
			Optimize:         true,
		},
		Atlas: AtlasConfig{
			Size:       1024,
			Padding:    32,
			Compositor: "cpu",
		},
		Output: OutputConfig{
			Dir: "out",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var errs error
	if c.Build.Quality < 0 || c.Build.Quality > 1 {
		errs = multierr.Append(errs, fmt.Errorf("build.quality %v outside [0,1]", c.Build.Quality))
	}
	if c.Build.PreviewQuality < 0 || c.Build.PreviewQuality > 1 {
		errs = multierr.Append(errs, fmt.Errorf("build.preview_quality %v outside [0,1]", c.Build.PreviewQuality))
	}
	if c.Atlas.Size <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("atlas.size must be positive, got %d", c.Atlas.Size))
	}
	if c.Atlas.Padding < 0 || 2*c.Atlas.Padding >= c.Atlas.Size {
		errs = multierr.Append(errs, fmt.Errorf("atlas.padding %d does not fit atlas size %d", c.Atlas.Padding, c.Atlas.Size))
	}
	switch c.Atlas.Compositor {
	case "cpu", "gpu":
	default:
		errs = multierr.Append(errs, fmt.Errorf("atlas.compositor must be cpu or gpu, got %q", c.Atlas.Compositor))
	}
	if c.Watch.Debounce < 0 {
		errs = multierr.Append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	return errs
}
