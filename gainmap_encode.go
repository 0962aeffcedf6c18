package gainmap

import (
	"math"

	"github.com/pkg/errors"
)

// EncodeResult is the output of Encode.
type EncodeResult struct {
	Gainmap *Image
	Meta    *GainmapMetadata
	Boost   Boost
}

// EncodeGainMap log-normalizes a linear gain buffer into a gain map image:
//
//	logRecovery = (log2(gain) - log2(minBoost)) / (log2(maxBoost) - log2(minBoost))
//	sample      = clamp(logRecovery, 0, 1) ^ gamma
//
// A channel whose log range collapses emits 0. The result is RGBA with opaque alpha,
// stored in format (FormatUnorm8 when unknown).
func EncodeGainMap(gain *Image, minBoost, maxBoost, gamma [3]float32, format PixelFormat) (*Image, error) {
	return encodeGainMap(gain, minBoost, maxBoost, gamma, format, 0)
}

func encodeGainMap(gain *Image, minBoost, maxBoost, gamma [3]float32, format PixelFormat, workers int) (*Image, error) {
	if err := gain.Validate(); err != nil {
		return nil, err
	}
	if format == FormatUnknown {
		format = FormatUnorm8
	}

	var logMin, logRange [3]float32
	for c := 0; c < 3; c++ {
		if gamma[c] <= 0 || !isFinite(gamma[c]) {
			return nil, errors.Wrapf(ErrInvalidMetadata, "gamma[%d] = %v", c, gamma[c])
		}
		logMin[c] = log2f(minBoost[c])
		logRange[c] = log2f(maxBoost[c]) - logMin[c]
		if !isFinite(logRange[c]) || !isFinite(logMin[c]) {
			// Non-positive or infinite bounds cannot normalize anything.
			logRange[c] = 0
		}
	}

	out := NewImage(gain.Width, gain.Height, 4, format)
	out.Transfer = TransferLinear
	out.Gamut = gain.Gamut

	forEachBand(gain.Height, defaultChunkRows, workers, func(_, y0, y1 int) {
		row := make([]float32, gain.Width*4)
		for y := y0; y < y1; y++ {
			gain.loadRow(y, 0, gain.Width, row)
			for i := 0; i < len(row); i += 4 {
				for c := 0; c < 3; c++ {
					row[i+c] = encodeGainSample(row[i+c], logMin[c], logRange[c], gamma[c])
				}
				row[i+3] = 1
			}
			out.storeRow(y, 0, gain.Width, row)
		}
	})
	return out, nil
}

// Encode derives a gain map and its metadata from a base (SDR) image and an
// alternate (HDR) rendition of the same scene.
//
// Images tagged TransferSRGB are linearized first, TransferLinear images are copied as is.
func Encode(sdr, hdr *Image, opts ...func(o *EncodeOptions)) (*EncodeResult, error) {
	opt := EncodeOptions{
		Gamma:     [3]float32{defaultGamma, defaultGamma, defaultGamma},
		OffsetSDR: [3]float32{defaultOffset, defaultOffset, defaultOffset},
		OffsetHDR: [3]float32{defaultOffset, defaultOffset, defaultOffset},
		Format:    FormatUnorm8,
		LaneWidth: defaultLaneWidth,
	}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}

	if err := sdr.Validate(); err != nil {
		return nil, errors.Wrap(err, "base image")
	}
	if err := hdr.Validate(); err != nil {
		return nil, errors.Wrap(err, "alternate image")
	}
	if !sdr.sameSize(hdr) {
		return nil, dimensionMismatch("base and alternate", sdr, hdr)
	}
	for c := 0; c < 3; c++ {
		if !(opt.OffsetSDR[c] > 0) || !(opt.OffsetHDR[c] > 0) {
			return nil, errors.Wrapf(ErrInvalidMetadata, "offsets must be positive, channel %d: %v, %v",
				c, opt.OffsetSDR[c], opt.OffsetHDR[c])
		}
	}

	sdrLin, err := linearize(sdr)
	if err != nil {
		return nil, err
	}
	hdrLin, err := linearize(hdr)
	if err != nil {
		return nil, err
	}
	sanitizeLinear(sdrLin, 1, opt.Workers)
	sanitizeLinear(hdrLin, PQMax, opt.Workers)

	gain, err := pixelLinearRecovery(sdrLin, hdrLin, opt.OffsetSDR, opt.OffsetHDR, opt.Workers)
	if err != nil {
		return nil, err
	}

	boost, err := ReduceBoost(gain, WithWorkers(opt.Workers), WithLaneWidth(opt.LaneWidth))
	if err != nil {
		return nil, err
	}
	// An empty image leaves the reduction seeds in place.
	boost = boost.Bounded()

	gm, err := encodeGainMap(gain, boost.Min, boost.Max, opt.Gamma, opt.Format, opt.Workers)
	if err != nil {
		return nil, err
	}

	meta := &GainmapMetadata{
		Version:           metadataVersion,
		MinContentBoost:   boost.Min,
		MaxContentBoost:   boost.Max,
		Gamma:             opt.Gamma,
		OffsetSDR:         opt.OffsetSDR,
		OffsetHDR:         opt.OffsetHDR,
		HDRCapacityMin:    defaultHDRCapacity,
		HDRCapacityMax:    boost.HDRCapacityMax(),
		UseBaseColorSpace: true,
	}

	return &EncodeResult{Gainmap: gm, Meta: meta, Boost: boost}, nil
}

// linearize returns a float32 linear-light copy of m.
func linearize(m *Image) (*Image, error) {
	if m.Transfer == TransferLinear {
		return transferImage(m, Precision32Float, TransferLinear, func(v float32) float32 { return v })
	}
	return ToLinear(m, Precision32Float)
}

// sanitizeLinear replaces +Inf with ceiling, NaN and -Inf with 0.
// The alternate is capped at PQMax, the base at SDR white.
func sanitizeLinear(m *Image, ceiling float32, workers int) {
	if m.Format != FormatFloat32 {
		return
	}
	forEachBand(m.Height, defaultChunkRows, workers, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := m.Pix32[y*m.Stride : y*m.Stride+m.Width*m.Channels]
			for i, v := range row {
				switch {
				case math.IsNaN(float64(v)):
					row[i] = 0
				case math.IsInf(float64(v), 1):
					row[i] = ceiling
				case math.IsInf(float64(v), -1):
					row[i] = 0
				}
			}
		}
	})
}
