package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/vearutop/gainmap"
	"github.com/vearutop/gainmap/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(os.Args[2:])
	case "decode":
		err = runDecode(os.Args[2:])
	case "rebase":
		err = runRebase(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gainmaptool <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  encode  [-base sdr.png] -alt hdr.exr -out-base b.jpg -out-gainmap g.jpg -out-meta m.json")
	fmt.Fprintln(os.Stderr, "          [-config c.yaml] [-gamma 1] [-offset 0.015625] [-format unorm8] [-q 95]")
	fmt.Fprintln(os.Stderr, "          [-scale 1] [-mode fit|fill] [-interp lanczos3] [-bg #000000] [-size base|alt] [-v]")
	fmt.Fprintln(os.Stderr, "  decode  -base b.jpg -gainmap g.jpg -meta m.json -out hdr.hdr [-display-boost 0]")
	fmt.Fprintln(os.Stderr, "          [-gamut bt709] [-preview p.png] [-out-display d.png] [-config c.yaml] [-v]")
	fmt.Fprintln(os.Stderr, "  rebase  -base old.jpg -new-base new.jpg -gainmap g.jpg -meta m.json")
	fmt.Fprintln(os.Stderr, "          -out-gainmap g2.jpg -out-meta m2.json [-q 95] [-v]")
	fmt.Fprintln(os.Stderr, "  inspect -meta m.json [-gainmap g.jpg]")
	fmt.Fprintln(os.Stderr, "Metadata files ending in .cbor are written and read as CBOR, others as JSON.")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func newLogger(verbose bool) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "", log.Ldate|log.Ltime)
}

// loadConfig reads the optional YAML file and applies flags the user set explicitly.
func loadConfig(fs *flag.FlagSet, path string) (config.Configuration, error) {
	cfg := config.NewConfiguration()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfiguration(path); err != nil {
			return cfg, err
		}
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "gamma":
			err = parseFloat32(v, &cfg.Encode.Gamma)
		case "offset":
			if err = parseFloat32(v, &cfg.Encode.OffsetSDR); err == nil {
				cfg.Encode.OffsetHDR = cfg.Encode.OffsetSDR
			}
		case "format":
			cfg.Encode.Format = v
		case "workers":
			cfg.Encode.Workers, err = strconv.Atoi(v)
			cfg.Decode.Workers = cfg.Encode.Workers
		case "display-boost":
			err = parseFloat32(v, &cfg.Decode.DisplayBoost)
		case "gamut":
			cfg.Decode.OutputGamut = v
		case "q":
			cfg.Output.Quality, err = strconv.Atoi(v)
		case "scale":
			cfg.Output.Scale, err = strconv.ParseFloat(v, 64)
		case "mode":
			cfg.Output.Mode = v
		case "interp":
			cfg.Output.Interpolation = v
		case "bg":
			cfg.Output.Background = v
		case "size":
			cfg.Output.Size = v
		}
		if err != nil {
			err = errors.Wrapf(err, "flag -%s", f.Name)
		}
	})
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.FinalizeConfiguration()
}

func parseFloat32(s string, dst *float32) error {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*dst = float32(v)
	return nil
}

func isCBOR(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cbor")
}

func writeMetadata(path string, meta *gainmap.GainmapMetadata) error {
	bundle, err := gainmap.NewMetadataBundle(meta)
	if err != nil {
		return err
	}
	var payload []byte
	if isCBOR(path) {
		payload, err = gainmap.MarshalBundleCBOR(bundle)
	} else {
		payload, err = gainmap.MarshalBundle(bundle)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(path), payload, 0o644)
}

func readMetadata(path string) (*gainmap.GainmapMetadata, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var bundle *gainmap.MetadataBundle
	if isCBOR(path) {
		bundle, err = gainmap.UnmarshalBundleCBOR(data)
	} else {
		bundle, err = gainmap.UnmarshalBundle(data)
	}
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return bundle.GainmapMetadata()
}
