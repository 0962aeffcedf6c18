// Package config holds gainmaptool settings loaded from YAML.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/vearutop/gainmap"
	"github.com/vearutop/gainmap/internal/canvas"
)

/* Example config file ...

encode:
  gamma: 1.0
  offsetsdr: 0.015625
  offsethdr: 0.015625
  format: unorm8
  lanewidth: 4
  workers: 0

decode:
  displayboost: 4.0
  outputgamut: bt709

output:
  quality: 95
  scale: 0.5
  mode: fill
  interpolation: lanczos3
  background: "#202020"
  size: base

*/

// EncodeConfig mirrors gainmap.EncodeOptions with scalar fields.
type EncodeConfig struct {
	Gamma     float32
	OffsetSDR float32
	OffsetHDR float32
	Format    string
	LaneWidth int
	Workers   int
}

// DecodeConfig mirrors gainmap.DecodeOptions.
type DecodeConfig struct {
	DisplayBoost float32
	OutputGamut  string
	Workers      int
}

// OutputConfig controls how images are placed and written.
type OutputConfig struct {
	Quality       int
	Scale         float64
	Mode          string
	Interpolation string
	Background    string
	Size          string // "base" or "alt", the rendition that sizes the canvas

	// Values we derive
	CanvasOptions canvas.Options `yaml:"-"`
	Target        canvas.Target  `yaml:"-"`
}

// Configuration is the full tool configuration.
type Configuration struct {
	Encode EncodeConfig
	Decode DecodeConfig
	Output OutputConfig

	format gainmap.PixelFormat
	gamut  gainmap.ColorGamut
}

// NewConfiguration returns the defaults.
func NewConfiguration() Configuration {
	return Configuration{
		Encode: EncodeConfig{
			Gamma:     1,
			OffsetSDR: 1.0 / 64,
			OffsetHDR: 1.0 / 64,
			Format:    "unorm8",
			LaneWidth: 4,
		},
		Output: OutputConfig{
			Quality:       95,
			Scale:         1,
			Mode:          "fit",
			Interpolation: "lanczos3",
			Background:    "#000000",
			Size:          "base",
		},
	}
}

// LoadConfiguration reads a YAML file on top of the defaults.
func LoadConfiguration(filename string) (Configuration, error) {
	c := NewConfiguration()

	contents, err := os.ReadFile(filename)
	if err != nil {
		return c, errors.Wrapf(err, "read %q", filename)
	}
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, errors.Wrapf(err, "parse %q", filename)
	}

	return c, c.FinalizeConfiguration()
}

// FinalizeConfiguration does sanity checks and derives typed values.
func (c *Configuration) FinalizeConfiguration() error {
	if !(c.Encode.Gamma > 0) {
		return errors.Errorf("encode gamma %v must be positive", c.Encode.Gamma)
	}
	if !(c.Encode.OffsetSDR > 0) || !(c.Encode.OffsetHDR > 0) {
		return errors.Errorf("encode offsets %v, %v must be positive", c.Encode.OffsetSDR, c.Encode.OffsetHDR)
	}
	if c.Encode.LaneWidth < 0 {
		return errors.Errorf("lane width %d is negative", c.Encode.LaneWidth)
	}

	switch c.Encode.Format {
	case "", "unorm8":
		c.format = gainmap.FormatUnorm8
	case "unorm16":
		c.format = gainmap.FormatUnorm16
	case "float16":
		c.format = gainmap.FormatFloat16
	case "float32":
		c.format = gainmap.FormatFloat32
	default:
		return errors.Errorf("no gain map format named %q", c.Encode.Format)
	}

	switch c.Decode.OutputGamut {
	case "":
		c.gamut = gainmap.GamutUnspecified
	case "bt709", "srgb":
		c.gamut = gainmap.GamutBT709
	case "p3", "displayp3":
		c.gamut = gainmap.GamutDisplayP3
	case "bt2100", "bt2020":
		c.gamut = gainmap.GamutBT2100
	case "adobergb":
		c.gamut = gainmap.GamutAdobeRGB
	default:
		return errors.Errorf("no gamut named %q", c.Decode.OutputGamut)
	}
	if c.Decode.DisplayBoost < 0 {
		return errors.Errorf("display boost %v is negative", c.Decode.DisplayBoost)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return errors.Errorf("quality %d out of range [1, 100]", c.Output.Quality)
	}
	if c.Output.Scale == 0 {
		c.Output.Scale = 1
	}
	if c.Output.Scale < canvas.MinScale || c.Output.Scale > canvas.MaxScale {
		return errors.Errorf("scale %v out of range [%v, %v]", c.Output.Scale, canvas.MinScale, canvas.MaxScale)
	}

	mode, err := canvas.ParseMode(c.Output.Mode)
	if err != nil {
		return err
	}
	interp, err := canvas.ParseInterpolation(c.Output.Interpolation)
	if err != nil {
		return err
	}
	bg, err := canvas.ParseBackground(c.Output.Background)
	if err != nil {
		return err
	}
	c.Output.CanvasOptions = canvas.Options{Mode: mode, Interpolation: interp, Background: bg}
	if c.Output.Target, err = canvas.ParseTarget(c.Output.Size); err != nil {
		return err
	}

	return nil
}

// EncodeOptions applies the encode section to gainmap options.
func (c *Configuration) EncodeOptions(o *gainmap.EncodeOptions) {
	for i := 0; i < 3; i++ {
		o.Gamma[i] = c.Encode.Gamma
		o.OffsetSDR[i] = c.Encode.OffsetSDR
		o.OffsetHDR[i] = c.Encode.OffsetHDR
	}
	o.Format = c.format
	if c.Encode.LaneWidth > 0 {
		o.LaneWidth = c.Encode.LaneWidth
	}
	o.Workers = c.Encode.Workers
}

// DecodeOptions applies the decode section to gainmap options.
func (c *Configuration) DecodeOptions(o *gainmap.DecodeOptions) {
	o.DisplayBoost = c.Decode.DisplayBoost
	o.OutputGamut = c.gamut
	o.Workers = c.Decode.Workers
}
