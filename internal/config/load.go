package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileName is the project-local config file.
const FileName = "arbor.yaml"

// EnvConfig names an environment variable holding a config path. It is used
// when no -config flag is given.
const EnvConfig = "ARBOR_CONFIG"

// projectNames are searched in every directory from the working directory up.
var projectNames = []string{FileName, "arbor.toml"}

// Load loads configuration with priority: defaults < file < flags.
// A relative output.dir in a project file is resolved against the file's
// directory so bakes from a subdirectory land in the same place.
func Load(f *Flags) (*Config, error) {
	cfg := Default()

	// Explicit path takes priority
	configPath := ""
	if f != nil {
		configPath = f.Config
	}
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	project := true
	if configPath == "" {
		configPath, project = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
		if project && cfg.Output.Dir != "" && !filepath.IsAbs(cfg.Output.Dir) {
			cfg.Output.Dir = filepath.Join(filepath.Dir(configPath), cfg.Output.Dir)
		}
	}

	f.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// findConfigFile walks from the working directory to the filesystem root
// looking for a project file, then falls back to the user config. project
// is false for the user config.
func findConfigFile() (path string, project bool) {
	if dir, err := os.Getwd(); err == nil {
		for {
			for _, name := range projectNames {
				p := filepath.Join(dir, name)
				if _, err := os.Stat(p); err == nil {
					return p, true
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	user := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(user); err == nil {
		return user, false
	}
	return "", false
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Arbor")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Arbor")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "arbor")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "arbor")
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// loadFromFile merges a YAML or TOML file into cfg. Unknown keys are errors
// so a misspelt setting does not silently keep its default.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isTOML(path) {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
