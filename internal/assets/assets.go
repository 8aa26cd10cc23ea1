// Package assets writes the combined atlas textures and their import
// settings.
package assets

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/arbor/internal/atlas"
	"github.com/Faultbox/arbor/internal/logger"
)

// ImportSettings is the sidecar written next to every texture so the host
// imports it with the right colour space and alpha handling.
type ImportSettings struct {
	Channel             string `yaml:"channel"`
	SRGB                bool   `yaml:"srgb"`
	AlphaIsTransparency bool   `yaml:"alpha_is_transparency"`
	Wrap                string `yaml:"wrap"`
	Mipmaps             bool   `yaml:"mipmaps"`
}

// SettingsFor returns the import settings of a channel. Only diffuse holds
// colour; the other channels are data and stay linear.
func SettingsFor(ch atlas.Channel) ImportSettings {
	s := ImportSettings{
		Channel: ch.String(),
		Wrap:    "clamp",
		Mipmaps: true,
	}
	if ch == atlas.ChannelDiffuse {
		s.SRGB = true
		s.AlphaIsTransparency = true
	}
	return s
}

// Writer stores combined textures as <dir>/<name>_<channel>.png.
type Writer struct {
	Dir  string
	Name string
}

var _ atlas.Store = (*Writer)(nil)

// NewWriter creates a writer for the atlas textures of one tree.
func NewWriter(dir, name string) *Writer {
	return &Writer{Dir: dir, Name: name}
}

// Path returns the texture path of ch.
func (w *Writer) Path(ch atlas.Channel) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s.png", w.Name, ch))
}

// SidecarPath returns the import settings path of ch.
func (w *Writer) SidecarPath(ch atlas.Channel) string {
	return w.Path(ch) + ".yaml"
}

// Has reports whether the texture of ch exists on disk.
func (w *Writer) Has(ch atlas.Channel) bool {
	_, err := os.Stat(w.Path(ch))
	return err == nil
}

// Save writes img as PNG followed by its import settings.
func (w *Writer) Save(ch atlas.Channel, img image.Image) error {
	if img == nil {
		return fmt.Errorf("no %s texture to save", ch)
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	path := w.Path(ch)
	if err := writePNG(path, img); err != nil {
		return err
	}

	data, err := yaml.Marshal(SettingsFor(ch))
	if err != nil {
		return fmt.Errorf("marshaling import settings: %w", err)
	}
	if err := os.WriteFile(w.SidecarPath(ch), data, 0644); err != nil {
		return fmt.Errorf("writing import settings: %w", err)
	}

	logger.Debug("atlas texture saved", zap.String("channel", ch.String()), zap.String("path", path))
	return nil
}

// writePNG writes through a temporary file so a failed encode never leaves
// a truncated texture behind.
func writePNG(path string, img image.Image) (err error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding PNG: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

// ReadSettings reads the import settings written for ch.
func (w *Writer) ReadSettings(ch atlas.Channel) (ImportSettings, error) {
	var s ImportSettings
	data, err := os.ReadFile(w.SidecarPath(ch))
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing import settings: %w", err)
	}
	return s, nil
}

// Remove deletes every texture and sidecar of the writer.
func (w *Writer) Remove() error {
	var errs []error
	for ch := atlas.Channel(0); ch < atlas.ChannelCount; ch++ {
		for _, p := range []string{w.Path(ch), w.SidecarPath(ch)} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
