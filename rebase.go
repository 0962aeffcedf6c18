package gainmap

import "github.com/pkg/errors"

// Rebase re-derives the gain map for a new base image so that the HDR rendition
// reconstructed from the old base is preserved. Gamma, offsets and the gain map
// format are kept from the existing map unless opts override them.
func Rebase(oldSDR, newSDR, gainmap *Image, meta *GainmapMetadata, opts ...func(o *EncodeOptions)) (*EncodeResult, error) {
	if err := oldSDR.Validate(); err != nil {
		return nil, errors.Wrap(err, "old base image")
	}
	if err := newSDR.Validate(); err != nil {
		return nil, errors.Wrap(err, "new base image")
	}
	if !oldSDR.sameSize(newSDR) {
		return nil, dimensionMismatch("old and new base", oldSDR, newSDR)
	}
	hdr, err := Decode(oldSDR, gainmap, meta)
	if err != nil {
		return nil, err
	}
	keep := func(o *EncodeOptions) {
		o.Gamma = meta.Gamma
		o.OffsetSDR = meta.OffsetSDR
		o.OffsetHDR = meta.OffsetHDR
		o.Format = gainmap.Format
	}
	return Encode(newSDR, hdr, append([]func(o *EncodeOptions){keep}, opts...)...)
}
