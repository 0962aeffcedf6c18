package main

import (
	"flag"
	"os"

	"github.com/pkg/errors"

	"github.com/vearutop/gainmap"
	"github.com/vearutop/gainmap/internal/imageio"
)

func runRebase(args []string) error {
	fs := flag.NewFlagSet("rebase", flag.ContinueOnError)
	basePath := fs.String("base", "", "SDR base the gain map was made for")
	newBasePath := fs.String("new-base", "", "replacement SDR base")
	gainmapPath := fs.String("gainmap", "", "gain map image")
	metaPath := fs.String("meta", "", "metadata bundle (json or cbor)")
	outGainmap := fs.String("out-gainmap", "", "write the rebased gain map")
	outMeta := fs.String("out-meta", "", "write the rebased metadata bundle")
	q := fs.Int("q", 95, "JPEG quality")
	verbose := fs.Bool("v", false, "verbose output")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *newBasePath == "" || *gainmapPath == "" || *metaPath == "" ||
		*outGainmap == "" || *outMeta == "" {
		return errors.New("missing required arguments")
	}
	logger := newLogger(*verbose)

	meta, err := readMetadata(*metaPath)
	if err != nil {
		return err
	}
	oldBase, err := imageio.Load(*basePath)
	if err != nil {
		return err
	}
	newBase, err := imageio.Load(*newBasePath)
	if err != nil {
		return err
	}
	gm, err := imageio.Load(*gainmapPath)
	if err != nil {
		return err
	}

	res, err := gainmap.Rebase(gainmap.FromImage(oldBase), gainmap.FromImage(newBase), gainmap.FromImage(gm), meta)
	if err != nil {
		return errors.Wrap(err, "rebase")
	}
	logger.Printf("rebased, content boost min %v max %v\n", res.Meta.MinContentBoost, res.Meta.MaxContentBoost)

	if err := imageio.Save(*outGainmap, res.Gainmap.ToImage(), imageio.Options{Quality: *q}); err != nil {
		return err
	}
	return writeMetadata(*outMeta, res.Meta)
}
