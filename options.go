package stamper

import (
	"fmt"
	"math"

	"github.com/jungcome7/pdf-stamper/coords"
)

// Default editing surface dimensions: a 500pt wide surface with A4 proportions
// (height = width * sqrt(2), rounded to two decimals).
const (
	DefaultSurfaceWidth  = 500.0
	DefaultMaxStamps     = 5
	DefaultFootprint     = 0.1
	DefaultMargin        = 0.05
	DefaultOutputPrefix  = "stamped_"
	DefaultPreviewScale  = 1.0
	maxPreviewScaleLimit = 8.0
)

// DefaultSurfaceHeight is DefaultSurfaceWidth scaled to the A4 aspect ratio.
var DefaultSurfaceHeight = math.Round(DefaultSurfaceWidth*math.Sqrt2*100) / 100

// Config holds the tunables shared by the store, the synchronization engine
// and the compositor.
type Config struct {
	SurfaceWidth  float64 // editing surface width in surface units
	SurfaceHeight float64 // editing surface height in surface units
	Footprint     float64 // max stamp size on add, as a fraction of each surface axis
	Margin        float64 // distance from the bottom-right corner, as a fraction of the shorter axis
	MaxStamps     int     // capacity of the stamp definition library
	PreviewScale  float64 // raster scale for page previews
	OutputPrefix  string  // prefix of the default export file name
	Logger        Logger
}

// Option is a functional option for configuring a session via NewConfig.
type Option func(*Config)

// WithSurfaceSize sets the fixed editing surface dimensions.
func WithSurfaceSize(width, height float64) Option {
	return func(c *Config) {
		c.SurfaceWidth = width
		c.SurfaceHeight = height
	}
}

// WithFootprint sets the maximum stamp footprint used when a stamp is first placed.
func WithFootprint(fraction float64) Option {
	return func(c *Config) {
		c.Footprint = fraction
	}
}

// WithMargin sets the bottom-right placement margin.
func WithMargin(fraction float64) Option {
	return func(c *Config) {
		c.Margin = fraction
	}
}

// WithMaxStamps sets the stamp library capacity.
func WithMaxStamps(n int) Option {
	return func(c *Config) {
		c.MaxStamps = n
	}
}

// WithPreviewScale sets the raster scale used for page previews.
func WithPreviewScale(scale float64) Option {
	return func(c *Config) {
		c.PreviewScale = scale
	}
}

// WithOutputPrefix sets the prefix of generated output file names.
func WithOutputPrefix(prefix string) Option {
	return func(c *Config) {
		c.OutputPrefix = prefix
	}
}

// WithLogger sets the logger. A nil logger silences output.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		SurfaceWidth:  DefaultSurfaceWidth,
		SurfaceHeight: DefaultSurfaceHeight,
		Footprint:     DefaultFootprint,
		Margin:        DefaultMargin,
		MaxStamps:     DefaultMaxStamps,
		PreviewScale:  DefaultPreviewScale,
		OutputPrefix:  DefaultOutputPrefix,
		Logger:        NopLogger{},
	}
}

// NewConfig creates a configuration using functional options.
//
// Example:
//
//	cfg := stamper.NewConfig(
//	    stamper.WithSurfaceSize(600, 848.53),
//	    stamper.WithMaxStamps(5),
//	)
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = NopLogger{}
	}
	return cfg
}

// Surface returns the editing surface size.
func (c Config) Surface() coords.Size {
	return coords.Size{W: c.SurfaceWidth, H: c.SurfaceHeight}
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	switch {
	case c.SurfaceWidth <= 0 || c.SurfaceHeight <= 0:
		return fmt.Errorf("%w: surface size %gx%g", ErrInvalidParam, c.SurfaceWidth, c.SurfaceHeight)
	case c.Footprint <= 0 || c.Footprint > 1:
		return fmt.Errorf("%w: footprint %g", ErrInvalidParam, c.Footprint)
	case c.Margin < 0 || c.Margin >= 0.5:
		return fmt.Errorf("%w: margin %g", ErrInvalidParam, c.Margin)
	case c.MaxStamps <= 0:
		return fmt.Errorf("%w: max stamps %d", ErrInvalidParam, c.MaxStamps)
	case c.PreviewScale <= 0 || c.PreviewScale > maxPreviewScaleLimit:
		return fmt.Errorf("%w: preview scale %g", ErrInvalidParam, c.PreviewScale)
	}
	return nil
}
