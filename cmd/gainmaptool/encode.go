package main

import (
	"flag"
	"image"
	"os"
	"time"

	"github.com/mdouchement/hdr"
	"github.com/pkg/errors"

	"github.com/vearutop/gainmap"
	"github.com/vearutop/gainmap/internal/canvas"
	"github.com/vearutop/gainmap/internal/config"
	"github.com/vearutop/gainmap/internal/imageio"
)

func runEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	basePath := fs.String("base", "", "SDR base image, a solid -bg canvas when omitted")
	altPath := fs.String("alt", "", "HDR alternate image (exr, hdr, or display-encoded)")
	outBase := fs.String("out-base", "", "write the base image as placed on the canvas")
	outGainmap := fs.String("out-gainmap", "", "write the gain map image")
	outMeta := fs.String("out-meta", "", "write the metadata bundle (json or cbor)")
	configPath := fs.String("config", "", "YAML configuration")
	fs.Float64("gamma", 1, "gain map gamma")
	fs.Float64("offset", 1.0/64, "SDR and HDR offset")
	fs.String("format", "unorm8", "gain map format: unorm8, unorm16, float16, float32")
	fs.Int("workers", 0, "parallelism, 0 for all CPUs")
	fs.Int("q", 95, "JPEG quality")
	fs.Float64("scale", 1, "output scale in [0.1, 1]")
	fs.String("mode", "fit", "scale mode: fit or fill")
	fs.String("interp", "lanczos3", "resampling kernel")
	fs.String("bg", "#000000", "canvas background")
	fs.String("size", "base", "rendition that sizes the canvas: base or alt")
	verbose := fs.Bool("v", false, "verbose output")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *altPath == "" || *outGainmap == "" || *outMeta == "" {
		return errors.New("missing required arguments")
	}

	cfg, err := loadConfig(fs, *configPath)
	if err != nil {
		return err
	}
	logger := newLogger(*verbose)

	var baseImg image.Image
	if *basePath != "" {
		if baseImg, err = imageio.Load(*basePath); err != nil {
			return err
		}
	}
	altImg, err := imageio.Load(*altPath)
	if err != nil {
		return err
	}

	sdr, alt, err := placeRenditions(baseImg, altImg, cfg)
	if err != nil {
		return err
	}
	logger.Printf("canvas %dx%d, %s, sized from %s\n", sdr.Width, sdr.Height, cfg.Output.CanvasOptions.Mode, cfg.Output.Target)

	start := time.Now()
	res, err := gainmap.Encode(sdr, alt, cfg.EncodeOptions)
	if err != nil {
		return errors.Wrap(err, "encode")
	}
	logger.Printf("encoded in %s, content boost min %v max %v, hdr capacity %v\n",
		time.Since(start), res.Meta.MinContentBoost, res.Meta.MaxContentBoost, res.Meta.HDRCapacityMax)

	opt := imageio.Options{Quality: cfg.Output.Quality}
	if *outBase != "" {
		if err := imageio.Save(*outBase, sdr.ToImage(), opt); err != nil {
			return err
		}
	}
	if err := imageio.Save(*outGainmap, res.Gainmap.ToImage(), opt); err != nil {
		return err
	}
	return writeMetadata(*outMeta, res.Meta)
}

// placeRenditions renders both images onto a canvas sized from the configured target.
// A nil base becomes a solid background canvas sized from the alternate, so the
// alternate is carried by the gain map alone.
func placeRenditions(base, alt image.Image, cfg config.Configuration) (*gainmap.Image, *gainmap.Image, error) {
	b := alt.Bounds()
	if base != nil && cfg.Output.Target == canvas.TargetBase {
		b = base.Bounds()
	}
	cw, ch, err := canvas.Size(b.Dx(), b.Dy(), cfg.Output.Scale)
	if err != nil {
		return nil, nil, err
	}
	opt := cfg.Output.CanvasOptions

	var sdr *gainmap.Image
	if base != nil {
		sdr = gainmap.FromImage(canvas.Render(base, cw, ch, opt))
	} else {
		sdr = gainmap.FromImage(canvas.Solid(cw, ch, opt))
	}

	var placed image.Image
	if hm, ok := alt.(hdr.Image); ok {
		placed = canvas.RenderHDR(hm, cw, ch, opt)
	} else {
		placed = canvas.Render(alt, cw, ch, opt)
	}
	return sdr, gainmap.FromImage(placed), nil
}
