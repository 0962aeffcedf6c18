package gainmap

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// NewGainmapMetadata returns metadata for a flat map: unit boosts and gamma,
// default offsets, and the smallest non-integral capacity range.
func NewGainmapMetadata() *GainmapMetadata {
	m := &GainmapMetadata{
		Version:           metadataVersion,
		HDRCapacityMin:    defaultHDRCapacity,
		HDRCapacityMax:    defaultHDRCapacity + CapacityEpsilon,
		UseBaseColorSpace: true,
	}
	for c := 0; c < 3; c++ {
		m.MinContentBoost[c] = 1
		m.MaxContentBoost[c] = 1
		m.Gamma[c] = defaultGamma
		m.OffsetSDR[c] = defaultOffset
		m.OffsetHDR[c] = defaultOffset
	}
	return m
}

// Validate checks the structural invariants a decoder relies on.
func (m *GainmapMetadata) Validate() error {
	if m == nil {
		return errors.Wrap(ErrInvalidMetadata, "metadata missing")
	}
	for c := 0; c < 3; c++ {
		if !isFinite(m.MinContentBoost[c]) || !isFinite(m.MaxContentBoost[c]) ||
			!isFinite(m.Gamma[c]) || !isFinite(m.OffsetSDR[c]) || !isFinite(m.OffsetHDR[c]) {
			return errors.Wrapf(ErrInvalidMetadata, "channel %d has non-finite values", c)
		}
		if m.MinContentBoost[c] <= 0 {
			return errors.Wrapf(ErrInvalidMetadata, "min content boost[%d] = %v is not positive", c, m.MinContentBoost[c])
		}
		if m.MaxContentBoost[c] < m.MinContentBoost[c] {
			return errors.Wrapf(ErrInvalidMetadata, "max content boost[%d] = %v < min %v",
				c, m.MaxContentBoost[c], m.MinContentBoost[c])
		}
		if m.Gamma[c] <= 0 {
			return errors.Wrapf(ErrInvalidMetadata, "gamma[%d] = %v is not positive", c, m.Gamma[c])
		}
	}
	if !isFinite(m.HDRCapacityMin) || !isFinite(m.HDRCapacityMax) {
		return errors.Wrap(ErrInvalidMetadata, "non-finite hdr capacity")
	}
	if m.HDRCapacityMax <= m.HDRCapacityMin {
		return errors.Wrapf(ErrInvalidMetadata, "hdr capacity max %v <= min %v", m.HDRCapacityMax, m.HDRCapacityMin)
	}
	return nil
}

// Weight returns the fraction of the gain map applied on a display with the given
// headroom (linear scale). Zero or negative displayBoost means full strength.
func (m *GainmapMetadata) Weight(displayBoost float32) float32 {
	if displayBoost <= 0 {
		return 1
	}
	logMin := log2f(max(m.HDRCapacityMin, 1e-6))
	logMax := log2f(max(m.HDRCapacityMax, 1e-6))
	if logMax <= logMin {
		return 1
	}
	return clamp01((log2f(displayBoost) - logMin) / (logMax - logMin))
}

// Boost returns the linear boost a gain map sample of channel c encodes at full strength.
func (m *GainmapMetadata) Boost(c int, sample float32) float32 {
	logMin := log2f(m.MinContentBoost[c])
	return exp2f(decodeLogBoost(sample, logMin, log2f(m.MaxContentBoost[c])-logMin, 1/m.Gamma[c]))
}

// AllChannelsIdentical reports whether the per-channel fields hold the same value
// in every channel, so the map can be stored as a single channel.
func (m *GainmapMetadata) AllChannelsIdentical() bool {
	for i := 1; i < 3; i++ {
		if m.MinContentBoost[0] != m.MinContentBoost[i] ||
			m.MaxContentBoost[0] != m.MaxContentBoost[i] ||
			m.Gamma[0] != m.Gamma[i] ||
			m.OffsetSDR[0] != m.OffsetSDR[i] ||
			m.OffsetHDR[0] != m.OffsetHDR[i] {
			return false
		}
	}
	return true
}

func (m *GainmapMetadata) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "version: %s\n", m.Version)
	fmt.Fprintf(&b, "min content boost: %v\n", m.MinContentBoost)
	fmt.Fprintf(&b, "max content boost: %v\n", m.MaxContentBoost)
	fmt.Fprintf(&b, "gamma: %v\n", m.Gamma)
	fmt.Fprintf(&b, "offset sdr: %v\n", m.OffsetSDR)
	fmt.Fprintf(&b, "offset hdr: %v\n", m.OffsetHDR)
	fmt.Fprintf(&b, "hdr capacity: [%v, %v]\n", m.HDRCapacityMin, m.HDRCapacityMax)
	fmt.Fprintf(&b, "use base color space: %v", m.UseBaseColorSpace)
	return b.String()
}
