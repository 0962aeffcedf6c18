package gainmap

import "github.com/pkg/errors"

// ApplyGainMap reconstructs the alternate (HDR) rendition from a linear base image:
//
//	logBoost = |sample|^(1/gamma) * (log2(maxBoost) - log2(minBoost)) + log2(minBoost)
//	hdr      = 2^(logBoost * weight) * (sdr + offsetSDR) - offsetHDR
//
// weight is 1 unless DecodeOptions.DisplayBoost limits the headroom.
// The map is applied in the base gamut, or in the gain map's gamut when the metadata
// clears UseBaseColorSpace and the gain map carries one. The result is float32 RGBA
// in linear light, alpha is taken from the base image.
func ApplyGainMap(sdr, gainmap *Image, meta *GainmapMetadata, opts ...func(o *DecodeOptions)) (*Image, error) {
	var opt DecodeOptions
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if err := sdr.Validate(); err != nil {
		return nil, errors.Wrap(err, "base image")
	}
	if err := gainmap.Validate(); err != nil {
		return nil, errors.Wrap(err, "gain map")
	}
	if !sdr.sameSize(gainmap) {
		return nil, dimensionMismatch("base and gain map", sdr, gainmap)
	}

	if !meta.UseBaseColorSpace && gainmap.Gamut != GamutUnspecified && gainmap.Gamut != sdr.Gamut {
		var err error
		if sdr, err = ConvertGamut(sdr, gainmap.Gamut); err != nil {
			return nil, errors.Wrap(err, "base image to gain map gamut")
		}
	}

	weight := meta.Weight(opt.DisplayBoost)
	var logMin, logRange, invGamma [3]float32
	for c := 0; c < 3; c++ {
		logMin[c] = log2f(meta.MinContentBoost[c])
		logRange[c] = log2f(meta.MaxContentBoost[c]) - logMin[c]
		invGamma[c] = 1 / meta.Gamma[c]
	}

	out := NewImage(sdr.Width, sdr.Height, 4, FormatFloat32)
	out.Transfer = TransferLinear
	out.Gamut = sdr.Gamut

	forEachBand(sdr.Height, defaultChunkRows, opt.Workers, func(_, y0, y1 int) {
		base := make([]float32, sdr.Width*4)
		gain := make([]float32, sdr.Width*4)
		for y := y0; y < y1; y++ {
			sdr.loadRow(y, 0, sdr.Width, base)
			gainmap.loadRow(y, 0, sdr.Width, gain)
			for i := 0; i < len(base); i += 4 {
				for c := 0; c < 3; c++ {
					factor := exp2f(decodeLogBoost(gain[i+c], logMin[c], logRange[c], invGamma[c]) * weight)
					base[i+c] = factor*(base[i+c]+meta.OffsetSDR[c]) - meta.OffsetHDR[c]
				}
			}
			out.storeRow(y, 0, sdr.Width, base)
		}
	})

	if opt.OutputGamut != GamutUnspecified && opt.OutputGamut != out.Gamut {
		return ConvertGamut(out, opt.OutputGamut)
	}
	return out, nil
}

// Decode linearizes a display-encoded base image when needed and applies the gain map.
func Decode(sdr, gainmap *Image, meta *GainmapMetadata, opts ...func(o *DecodeOptions)) (*Image, error) {
	if err := sdr.Validate(); err != nil {
		return nil, errors.Wrap(err, "base image")
	}
	base := sdr
	if sdr.Transfer != TransferLinear {
		var err error
		if base, err = ToLinear(sdr, Precision32Float); err != nil {
			return nil, err
		}
	}
	return ApplyGainMap(base, gainmap, meta, opts...)
}
