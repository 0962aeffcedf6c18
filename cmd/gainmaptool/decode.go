package main

import (
	"flag"
	"os"
	"time"

	"github.com/mdouchement/hdr/tmo"
	"github.com/pkg/errors"

	"github.com/vearutop/gainmap"
	"github.com/vearutop/gainmap/internal/imageio"
)

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	basePath := fs.String("base", "", "SDR base image")
	gainmapPath := fs.String("gainmap", "", "gain map image")
	metaPath := fs.String("meta", "", "metadata bundle (json or cbor)")
	outPath := fs.String("out", "", "write the linear HDR result (.hdr)")
	previewPath := fs.String("preview", "", "write a Reinhard tone-mapped preview")
	displayPath := fs.String("out-display", "", "write the sRGB-encoded result clipped to [0, 1]")
	configPath := fs.String("config", "", "YAML configuration")
	fs.Float64("display-boost", 0, "display headroom in linear scale, 0 for full strength")
	fs.String("gamut", "", "output gamut: bt709, p3, bt2100, adobergb")
	fs.Int("workers", 0, "parallelism, 0 for all CPUs")
	fs.Int("q", 95, "JPEG quality")
	verbose := fs.Bool("v", false, "verbose output")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *gainmapPath == "" || *metaPath == "" {
		return errors.New("missing required arguments")
	}
	if *outPath == "" && *previewPath == "" && *displayPath == "" {
		return errors.New("missing -out, -preview or -out-display")
	}

	cfg, err := loadConfig(fs, *configPath)
	if err != nil {
		return err
	}
	logger := newLogger(*verbose)

	meta, err := readMetadata(*metaPath)
	if err != nil {
		return err
	}
	logger.Printf("metadata:\n%s\n", meta)

	baseImg, err := imageio.Load(*basePath)
	if err != nil {
		return err
	}
	gmImg, err := imageio.Load(*gainmapPath)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := gainmap.Decode(gainmap.FromImage(baseImg), gainmap.FromImage(gmImg), meta, cfg.DecodeOptions)
	if err != nil {
		return errors.Wrap(err, "decode")
	}
	logger.Printf("decoded %dx%d in %s, weight %v\n", out.Width, out.Height, time.Since(start),
		meta.Weight(cfg.Decode.DisplayBoost))

	opt := imageio.Options{Quality: cfg.Output.Quality}
	if *outPath != "" {
		if err := imageio.Save(*outPath, out.HDR(), opt); err != nil {
			return err
		}
	}
	if *previewPath != "" {
		preview := tmo.NewDefaultReinhard05(out.HDR()).Perform()
		if err := imageio.Save(*previewPath, preview, opt); err != nil {
			return err
		}
	}
	if *displayPath != "" {
		display, err := gainmap.ToDisplay(out, gainmap.Precision16)
		if err != nil {
			return err
		}
		if err := imageio.Save(*displayPath, display.ToImage(), opt); err != nil {
			return err
		}
	}
	return nil
}
