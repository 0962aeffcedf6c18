package gainmap

import "math"

func log2f(v float32) float32 { return float32(math.Log2(float64(v))) }
func exp2f(v float32) float32 { return float32(math.Exp2(float64(v))) }

func powf(v, e float32) float32 { return float32(math.Pow(float64(v), float64(e))) }

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// SRGBToLinear is the sRGB EOTF for a normalized display value.
func SRGBToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return powf((v+0.055)/1.055, 2.4)
}

// LinearToSRGB is the sRGB OETF, the inverse of SRGBToLinear.
func LinearToSRGB(v float32) float32 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*powf(v, 1.0/2.4) - 0.055
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func max3(a, b, c float32) float32 {
	if a >= b && a >= c {
		return a
	}
	if b >= a && b >= c {
		return b
	}
	return c
}
