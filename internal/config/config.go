// Package config reads the optional settings file and batch job files, both
// TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	stamper "github.com/jungcome7/pdf-stamper"
)

// File is the settings file, by default ~/.pdf-stamper/config.toml. Zero
// values keep the built-in defaults.
type File struct {
	Surface      Surface   `toml:"surface"`
	Placement    Placement `toml:"placement"`
	MaxStamps    int       `toml:"max_stamps"`
	PreviewScale float64   `toml:"preview_scale"`
	OutputPrefix string    `toml:"output_prefix"`
	Verbose      bool      `toml:"verbose"`
}

// Surface sets the editing surface size.
type Surface struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// Placement sets where new stamps land.
type Placement struct {
	Footprint float64 `toml:"footprint"`
	Margin    float64 `toml:"margin"`
}

// DefaultPath returns ~/.pdf-stamper/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pdf-stamper", "config.toml"), nil
}

// Load reads the settings file at path. A missing file yields the zero
// File.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, err
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return f, nil
}

// Save writes f to path, creating the directory if needed.
func Save(path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Options converts the set fields into engine options.
func (f File) Options() []stamper.Option {
	var opts []stamper.Option
	if f.Surface.Width > 0 || f.Surface.Height > 0 {
		w, h := f.Surface.Width, f.Surface.Height
		if w <= 0 {
			w = stamper.DefaultSurfaceWidth
		}
		if h <= 0 {
			h = stamper.DefaultSurfaceHeight
		}
		opts = append(opts, stamper.WithSurfaceSize(w, h))
	}
	if f.Placement.Footprint > 0 {
		opts = append(opts, stamper.WithFootprint(f.Placement.Footprint))
	}
	if f.Placement.Margin > 0 {
		opts = append(opts, stamper.WithMargin(f.Placement.Margin))
	}
	if f.MaxStamps > 0 {
		opts = append(opts, stamper.WithMaxStamps(f.MaxStamps))
	}
	if f.PreviewScale > 0 {
		opts = append(opts, stamper.WithPreviewScale(f.PreviewScale))
	}
	if f.OutputPrefix != "" {
		opts = append(opts, stamper.WithOutputPrefix(f.OutputPrefix))
	}
	return opts
}
