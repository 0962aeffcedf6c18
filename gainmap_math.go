package gainmap

// encodeGainSample normalizes a linear gain into the [0, 1] map domain:
// the log2 gain is placed within [logMin, logMin+logRange], clamped and raised to gamma.
// A collapsed range or a NaN gain encodes as 0.
func encodeGainSample(gain, logMin, logRange, gamma float32) float32 {
	if logRange == 0 {
		return 0
	}
	v := (log2f(gain) - logMin) / logRange
	if v != v {
		return 0
	}
	v = clamp01(v)
	if gamma != 1 {
		v = powf(v, gamma)
	}
	return v
}

// decodeLogBoost maps a gain map sample back to its log2 boost.
func decodeLogBoost(sample, logMin, logRange, invGamma float32) float32 {
	if sample < 0 {
		sample = -sample
	}
	if invGamma != 1 {
		sample = powf(sample, invGamma)
	}
	return sample*logRange + logMin
}
