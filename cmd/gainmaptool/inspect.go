package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/codahale/hdrhistogram"
	"github.com/pkg/errors"

	"github.com/vearutop/gainmap"
	"github.com/vearutop/gainmap/internal/imageio"
)

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	metaPath := fs.String("meta", "", "metadata bundle (json or cbor)")
	gainmapPath := fs.String("gainmap", "", "gain map image to summarize")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *metaPath == "" {
		return errors.New("missing required arguments")
	}

	meta, err := readMetadata(*metaPath)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, meta)
	if iso, err := gainmap.MarshalISO(meta); err == nil {
		fmt.Fprintf(os.Stdout, "iso 21496-1 payload: %d bytes\n", len(iso))
	}

	if *gainmapPath == "" {
		return nil
	}
	img, err := imageio.Load(*gainmapPath)
	if err != nil {
		return err
	}
	return printGainStats(os.Stdout, gainmap.FromImage(img), meta)
}

// printGainStats reports per-channel percentiles of the linear boost encoded in gm.
// Boosts are recorded in thousandths.
func printGainStats(w io.Writer, gm *gainmap.Image, meta *gainmap.GainmapMetadata) error {
	hist := [3]*hdrhistogram.Histogram{}
	for c := range hist {
		hist[c] = hdrhistogram.New(1, int64(meta.MaxContentBoost[c]*1000)+1000, 3)
	}

	for y := 0; y < gm.Height; y++ {
		for x := 0; x < gm.Width; x++ {
			px := gm.At(x, y)
			for c := 0; c < 3; c++ {
				boost := meta.Boost(c, px[c])
				if err := hist[c].RecordValue(max(1, int64(boost*1000+0.5))); err != nil {
					return errors.Wrap(err, "record boost")
				}
			}
		}
	}

	fmt.Fprintf(w, "gain map %dx%d %s\n", gm.Width, gm.Height, gm.Format)
	for c, name := range []string{"R", "G", "B"} {
		h := hist[c]
		fmt.Fprintf(w, "%s boost p1 %.3f p50 %.3f p99 %.3f mean %.3f\n", name,
			float64(h.ValueAtQuantile(1))/1000,
			float64(h.ValueAtQuantile(50))/1000,
			float64(h.ValueAtQuantile(99))/1000,
			h.Mean()/1000)
	}
	return nil
}
