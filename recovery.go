package gainmap

// PixelLinearRecovery computes the per-channel linear gain ratio
//
//	gain = (max(h, 0) + offsetHDR) / (max(s, 0) + offsetSDR)
//
// from linear-light sdr and hdr images. The result is a float32 RGBA image of
// the input size with alpha taken from sdr.
func PixelLinearRecovery(sdr, hdr *Image, offsetSDR, offsetHDR [3]float32) (*Image, error) {
	return pixelLinearRecovery(sdr, hdr, offsetSDR, offsetHDR, 0)
}

func pixelLinearRecovery(sdr, hdr *Image, offsetSDR, offsetHDR [3]float32, workers int) (*Image, error) {
	if err := sdr.Validate(); err != nil {
		return nil, err
	}
	if err := hdr.Validate(); err != nil {
		return nil, err
	}
	if !sdr.sameSize(hdr) {
		return nil, dimensionMismatch("sdr and hdr", sdr, hdr)
	}

	out := NewImage(sdr.Width, sdr.Height, 4, FormatFloat32)
	out.Transfer = TransferLinear
	out.Gamut = sdr.Gamut

	forEachBand(sdr.Height, defaultChunkRows, workers, func(_, y0, y1 int) {
		s := make([]float32, sdr.Width*4)
		h := make([]float32, sdr.Width*4)
		for y := y0; y < y1; y++ {
			sdr.loadRow(y, 0, sdr.Width, s)
			hdr.loadRow(y, 0, hdr.Width, h)
			for i := 0; i < len(s); i += 4 {
				for c := 0; c < 3; c++ {
					s[i+c] = (max(h[i+c], 0) + offsetHDR[c]) / (max(s[i+c], 0) + offsetSDR[c])
				}
			}
			out.storeRow(y, 0, sdr.Width, s)
		}
	})
	return out, nil
}
