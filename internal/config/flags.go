package config

import "flag"

// Flags are the command-line overrides shared by the treebake commands.
// Zero values leave the config untouched.
type Flags struct {
	Config     string
	Debug      bool
	Quality    float64
	Seed       uint64
	Output     string
	AtlasSize  int
	GPU        bool
	NoAO       bool
	NoWeld     bool
	NoOptimize bool
}

// Register adds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.Float64Var(&f.Quality, "quality", 0, "Build quality in (0,1]")
	fs.Uint64Var(&f.Seed, "seed", 0, "Build seed")
	fs.StringVar(&f.Output, "o", "", "Output directory")
	fs.IntVar(&f.AtlasSize, "atlas", 0, "Atlas size in pixels")
	fs.BoolVar(&f.GPU, "gpu", false, "Composite atlases on the GPU")
	fs.BoolVar(&f.NoAO, "no-ao", false, "Skip ambient occlusion")
	fs.BoolVar(&f.NoWeld, "no-weld", false, "Skip welding branches to their parents")
	fs.BoolVar(&f.NoOptimize, "no-optimize", false, "Keep source materials")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Quality > 0 {
		cfg.Build.Quality = float32(f.Quality)
	}
	if f.Seed != 0 {
		cfg.Build.Seed = f.Seed
	}
	if f.Output != "" {
		cfg.Output.Dir = f.Output
	}
	if f.AtlasSize > 0 {
		cfg.Atlas.Size = f.AtlasSize
	}
	if f.GPU {
		cfg.Atlas.Compositor = "gpu"
	}
	if f.NoAO {
		cfg.Build.AmbientOcclusion = false
	}
	if f.NoWeld {
		cfg.Build.Weld = false
	}
	if f.NoOptimize {
		cfg.Build.Optimize = false
	}
}
