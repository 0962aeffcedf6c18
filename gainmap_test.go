package gainmap

import (
	"math"
	"math/rand"
	"testing"

	"github.com/mdouchement/hdrtool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearImage(w, h int, fn func(x, y int) [3]float32) *Image {
	m := NewImage(w, h, 3, FormatFloat32)
	m.Transfer = TransferLinear
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := fn(x, y)
			copy(m.Pix32[y*m.Stride+x*3:], v[:])
		}
	}
	return m
}

func flat(v float32) func(x, y int) [3]float32 {
	return func(int, int) [3]float32 { return [3]float32{v, v, v} }
}

func unitMeta(minBoost, maxBoost float32) *GainmapMetadata {
	m := NewGainmapMetadata()
	for c := 0; c < 3; c++ {
		m.MinContentBoost[c] = minBoost
		m.MaxContentBoost[c] = maxBoost
	}
	m.HDRCapacityMax = Boost{Max: m.MaxContentBoost}.HDRCapacityMax()
	return m
}

func TestPixelLinearRecovery(t *testing.T) {
	sdr := linearImage(2, 1, func(x, _ int) [3]float32 { return [3]float32{0.5, 0, -1} })
	hdr := linearImage(2, 1, func(x, _ int) [3]float32 { return [3]float32{1, 0.25, -3} })
	off := [3]float32{1.0 / 64, 1.0 / 64, 1.0 / 64}

	gain, err := PixelLinearRecovery(sdr, hdr, off, off)
	require.NoError(t, err)
	assert.Equal(t, 4, gain.Channels)
	assert.Equal(t, FormatFloat32, gain.Format)

	px := gain.At(1, 0)
	assert.InDelta(t, 1.015625/0.515625, px[0], 1e-6)
	assert.InDelta(t, 0.265625/0.015625, px[1], 1e-5)
	assert.InDelta(t, 1, px[2], 1e-6, "negative inputs clamp to zero")
	assert.Equal(t, float32(1), px[3])
}

func TestPixelLinearRecoveryDimensionMismatch(t *testing.T) {
	_, err := PixelLinearRecovery(linearImage(2, 2, flat(0.5)), linearImage(2, 3, flat(0.5)), [3]float32{1, 1, 1}, [3]float32{1, 1, 1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEncodeGainMapClamping(t *testing.T) {
	gain := linearImage(4, 1, func(x, _ int) [3]float32 {
		return [][3]float32{{0.001, 1, 1}, {1000, 2, 4}, {1, 1.5, 3}, {float32(math.NaN()), 0, 2}}[x]
	})
	gm, err := EncodeGainMap(gain, [3]float32{1, 1, 2}, [3]float32{2, 2, 4}, [3]float32{1, 2, 0.5}, FormatFloat32)
	require.NoError(t, err)

	for x := 0; x < 4; x++ {
		px := gm.At(x, 0)
		for c := 0; c < 3; c++ {
			assert.GreaterOrEqual(t, px[c], float32(0))
			assert.LessOrEqual(t, px[c], float32(1))
		}
		assert.Equal(t, float32(1), px[3], "alpha is opaque")
	}
	assert.Equal(t, float32(0), gm.At(0, 0)[0])
	assert.Equal(t, float32(1), gm.At(1, 0)[0])
	assert.Equal(t, float32(0), gm.At(3, 0)[0], "NaN encodes as 0")
	assert.InDelta(t, math.Pow(math.Log2(1.5), 2), gm.At(2, 0)[1], 1e-6)
}

func TestEncodeGainMapRejectsGamma(t *testing.T) {
	_, err := EncodeGainMap(linearImage(1, 1, flat(1)), [3]float32{1, 1, 1}, [3]float32{2, 2, 2}, [3]float32{1, 0, 1}, FormatUnorm8)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestEncodeFlatGray(t *testing.T) {
	img := linearImage(8, 8, flat(0.5))
	res, err := Encode(img, img)
	require.NoError(t, err)

	for c := 0; c < 3; c++ {
		assert.InDelta(t, res.Meta.MinContentBoost[c], res.Meta.MaxContentBoost[c], 1e-6)
		assert.InDelta(t, 1, res.Meta.MaxContentBoost[c], 1e-6)
	}
	for _, v := range res.Gainmap.Pix8 {
		if v != 0 && v != 255 {
			t.Fatalf("unexpected gain map sample %d", v)
		}
	}
	assert.Equal(t, uint8(0), res.Gainmap.Pix8[0])
	assert.NoError(t, res.Meta.Validate())

	out, err := Decode(img, res.Gainmap, res.Meta)
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			px := out.At(x, y)
			for c := 0; c < 3; c++ {
				assert.False(t, math.IsNaN(float64(px[c])))
				assert.InDelta(t, 0.5, px[c], 1e-5)
			}
		}
	}
}

func TestConcreteScenario(t *testing.T) {
	sdr := linearImage(1, 1, flat(0.5))
	hdr := linearImage(1, 1, flat(1))
	off := [3]float32{0.015625, 0.015625, 0.015625}

	gain, err := PixelLinearRecovery(sdr, hdr, off, off)
	require.NoError(t, err)
	assert.InDelta(t, 1.9697, gain.At(0, 0)[0], 1e-4)

	meta := unitMeta(1, 2)
	for _, f := range []PixelFormat{FormatFloat32, FormatUnorm16, FormatUnorm8} {
		gm, err := EncodeGainMap(gain, meta.MinContentBoost, meta.MaxContentBoost, meta.Gamma, f)
		require.NoError(t, err)
		assert.InDelta(t, 0.978, gm.At(0, 0)[0], 2e-3, "format %s", f)

		out, err := ApplyGainMap(sdr, gm, meta)
		require.NoError(t, err)
		for c := 0; c < 3; c++ {
			assert.InDelta(t, 1, out.At(0, 0)[c], 3e-3, "format %s", f)
		}
	}
}

func TestRoundTripBound(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	const w, h = 31, 17
	sdrVals := make([][3]float32, w*h)
	hdrVals := make([][3]float32, w*h)
	for i := range sdrVals {
		for c := 0; c < 3; c++ {
			sdrVals[i][c] = rnd.Float32()
			hdrVals[i][c] = rnd.Float32()
		}
	}
	sdr := linearImage(w, h, func(x, y int) [3]float32 { return sdrVals[y*w+x] })
	hdr := linearImage(w, h, func(x, y int) [3]float32 { return hdrVals[y*w+x] })

	for _, tc := range []struct {
		format PixelFormat
		levels float64
	}{
		{FormatUnorm8, 255},
		{FormatUnorm16, 65535},
		{FormatFloat16, 2048},
		{FormatFloat32, 1 << 23},
	} {
		t.Run(tc.format.String(), func(t *testing.T) {
			res, err := Encode(sdr, hdr, func(o *EncodeOptions) { o.Format = tc.format })
			require.NoError(t, err)
			out, err := Decode(sdr, res.Gainmap, res.Meta)
			require.NoError(t, err)

			for c := 0; c < 3; c++ {
				logRange := math.Log2(float64(res.Meta.MaxContentBoost[c] / res.Meta.MinContentBoost[c]))
				// Half a quantization step of the normalized log gain.
				step := math.Exp2(logRange/(2*tc.levels)) - 1
				for y := 0; y < h; y++ {
					for x := 0; x < w; x++ {
						want := float64(hdrVals[y*w+x][c])
						bound := (want+1.0/64)*step + 1e-5
						assert.InDelta(t, want, out.At(x, y)[c], bound, "pixel %d,%d channel %d", x, y, c)
					}
				}
			}
		})
	}
}

func TestRoundTripNarrowRangeWithin8BitStep(t *testing.T) {
	// Within a modest boost range an 8-bit map reproduces h to about one code value.
	rnd := rand.New(rand.NewSource(7))
	sdr := linearImage(16, 16, func(int, int) [3]float32 {
		v := 0.2 + 0.3*rnd.Float32()
		return [3]float32{v, v, v}
	})
	hdr := linearImage(16, 16, func(x, y int) [3]float32 {
		v := sdr.At(x, y)[0] * (1 + rnd.Float32())
		return [3]float32{v, v, v}
	})

	res, err := Encode(sdr, hdr)
	require.NoError(t, err)
	out, err := Decode(sdr, res.Gainmap, res.Meta)
	require.NoError(t, err)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			assert.InDelta(t, hdr.At(x, y)[0], out.At(x, y)[0], 1.0/255)
		}
	}
}

func TestEncodeSanitizesNonFiniteHDR(t *testing.T) {
	sdr := linearImage(3, 1, flat(0.5))
	hdr := linearImage(3, 1, func(x, _ int) [3]float32 {
		return [][3]float32{
			{float32(math.Inf(1)), 1, 1},
			{float32(math.NaN()), 1, 1},
			{float32(math.Inf(-1)), 1, 1},
		}[x]
	})
	res, err := Encode(sdr, hdr)
	require.NoError(t, err)
	require.NoError(t, res.Meta.Validate())
	assert.InDelta(t, (PQMax+1.0/64)/(0.5+1.0/64), res.Meta.MaxContentBoost[0], 1e-3)
	assert.InDelta(t, (1.0/64)/(0.5+1.0/64), res.Meta.MinContentBoost[0], 1e-6)
	assert.Equal(t, float32(1), hdr.At(0, 0)[1], "input buffers are not modified")
	assert.True(t, math.IsInf(float64(hdr.At(0, 0)[0]), 1))
}

func TestEncodeSanitizesNonFiniteSDR(t *testing.T) {
	sdr := linearImage(2, 1, func(x, _ int) [3]float32 {
		return [][3]float32{
			{float32(math.Inf(1)), float32(math.NaN()), 0.5},
			{0.5, 0.5, 0.5},
		}[x]
	})
	hdr := linearImage(2, 1, flat(1))

	res, err := Encode(sdr, hdr)
	require.NoError(t, err)
	require.NoError(t, res.Meta.Validate())

	half := float32((1 + 1.0/64) / (0.5 + 1.0/64))
	assert.InDelta(t, 1, res.Meta.MinContentBoost[0], 1e-6, "+Inf base is SDR white")
	assert.InDelta(t, half, res.Meta.MaxContentBoost[0], 1e-5)
	assert.InDelta(t, 65, res.Meta.MaxContentBoost[1], 1e-3, "NaN base is black")
	assert.Equal(t, []uint8{0, 255}, []uint8{res.Gainmap.Pix8[0], res.Gainmap.Pix8[4]},
		"other pixels keep their gain")
}

func TestEncodeEmptyImage(t *testing.T) {
	for _, size := range [][2]int{{0, 0}, {4, 0}, {0, 4}} {
		img := NewImage(size[0], size[1], 3, FormatFloat32)
		img.Transfer = TransferLinear

		res, err := Encode(img, img)
		require.NoError(t, err, "%v", size)
		require.NoError(t, res.Meta.Validate(), "%v", size)
		assert.Equal(t, [3]float32{1, 1, 1}, res.Meta.MinContentBoost)
		assert.Equal(t, [3]float32{1, 1, 1}, res.Meta.MaxContentBoost)

		_, err = NewMetadataBundle(res.Meta)
		assert.NoError(t, err)
	}
}

func TestEncodeErrors(t *testing.T) {
	img := linearImage(2, 2, flat(0.5))

	_, err := Encode(img, linearImage(3, 2, flat(0.5)))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Encode(img, img, func(o *EncodeOptions) { o.OffsetSDR[1] = 0 })
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	bad := &Image{Width: 2, Height: 2, Channels: 2, Format: FormatUnorm8, Stride: 4, Pix8: make([]uint8, 8)}
	_, err = Encode(bad, img)
	assert.ErrorIs(t, err, ErrUnsupportedPixelLayout)
}

func TestEncodeMetadata(t *testing.T) {
	sdr := linearImage(4, 4, flat(0.25))
	hdr := linearImage(4, 4, func(x, _ int) [3]float32 { return [3]float32{0.25 * float32(x+1), 0.25, 0.5} })

	res, err := Encode(sdr, hdr, func(o *EncodeOptions) {
		o.Gamma = [3]float32{1, 2, 1}
		o.LaneWidth = 1
		o.Workers = 2
	})
	require.NoError(t, err)

	m := res.Meta
	assert.Equal(t, "1.0", m.Version)
	assert.True(t, m.UseBaseColorSpace)
	assert.Equal(t, float32(1), m.HDRCapacityMin)
	assert.Equal(t, res.Boost.HDRCapacityMax(), m.HDRCapacityMax)
	assert.Equal(t, [3]float32{1, 2, 1}, m.Gamma)
	assert.InDelta(t, (1+1.0/64)/(0.25+1.0/64), m.MaxContentBoost[0], 1e-5)
	assert.InDelta(t, 1, m.MinContentBoost[0], 1e-6)
	assert.InDelta(t, 1, m.MaxContentBoost[1], 1e-6)
	assert.False(t, m.AllChannelsIdentical())
}

func TestDecodeDisplayBoostWeight(t *testing.T) {
	sdr := linearImage(1, 1, flat(0.5))
	hdr := linearImage(1, 1, flat(1))
	res, err := Encode(sdr, hdr, func(o *EncodeOptions) { o.Format = FormatFloat32 })
	require.NoError(t, err)

	// Capacity range [1, ~1.97]: no headroom gives the base, full headroom gives the HDR.
	none, err := ApplyGainMap(sdr, res.Gainmap, res.Meta, func(o *DecodeOptions) { o.DisplayBoost = 1 })
	require.NoError(t, err)
	assert.InDelta(t, 0.5, none.At(0, 0)[0], 1e-5)

	full, err := ApplyGainMap(sdr, res.Gainmap, res.Meta, func(o *DecodeOptions) { o.DisplayBoost = 8 })
	require.NoError(t, err)
	assert.InDelta(t, 1, full.At(0, 0)[0], 1e-4)

	half, err := ApplyGainMap(sdr, res.Gainmap, res.Meta, func(o *DecodeOptions) {
		o.DisplayBoost = float32(math.Sqrt(float64(res.Meta.HDRCapacityMax)))
	})
	require.NoError(t, err)
	v := half.At(0, 0)[0]
	assert.Greater(t, v, float32(0.5))
	assert.Less(t, v, float32(1))
}

func TestDecodeOutputGamut(t *testing.T) {
	sdr := linearImage(1, 1, func(int, int) [3]float32 { return [3]float32{0.5, 0.2, 0.1} })
	gm := NewImage(1, 1, 3, FormatUnorm8)
	meta := unitMeta(1, 2)

	ref, err := ApplyGainMap(sdr, gm, meta)
	require.NoError(t, err)
	p3, err := ApplyGainMap(sdr, gm, meta, func(o *DecodeOptions) { o.OutputGamut = GamutDisplayP3 })
	require.NoError(t, err)
	assert.Equal(t, GamutDisplayP3, p3.Gamut)

	want, err := ConvertGamut(ref, GamutDisplayP3)
	require.NoError(t, err)
	assert.Equal(t, want.Pix32, p3.Pix32)
}

func TestDecodeGainMapColorSpace(t *testing.T) {
	sdr := linearImage(1, 1, func(int, int) [3]float32 { return [3]float32{0.5, 0.2, 0.1} })
	gm := NewImage(1, 1, 3, FormatUnorm8)
	gm.Gamut = GamutDisplayP3
	copy(gm.Pix8, []uint8{255, 255, 255})
	meta := unitMeta(1, 2)

	out, err := ApplyGainMap(sdr, gm, meta)
	require.NoError(t, err)
	assert.Equal(t, GamutBT709, out.Gamut, "base color space by default")

	meta.UseBaseColorSpace = false
	out, err = ApplyGainMap(sdr, gm, meta)
	require.NoError(t, err)
	assert.Equal(t, GamutDisplayP3, out.Gamut)

	base, err := ConvertGamut(sdr, GamutDisplayP3)
	require.NoError(t, err)
	for c := 0; c < 3; c++ {
		want := 2*(base.Pix32[c]+meta.OffsetSDR[c]) - meta.OffsetHDR[c]
		assert.InDelta(t, want, out.Pix32[c], 1e-5, "channel %d", c)
	}

	gm.Gamut = GamutUnspecified
	out, err = ApplyGainMap(sdr, gm, meta)
	require.NoError(t, err)
	assert.Equal(t, GamutBT709, out.Gamut, "untagged gain map keeps the base gamut")
}

func TestDecodeErrors(t *testing.T) {
	sdr := linearImage(2, 2, flat(0.5))
	gm := NewImage(2, 2, 3, FormatUnorm8)

	_, err := ApplyGainMap(sdr, NewImage(2, 1, 3, FormatUnorm8), unitMeta(1, 2))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	bad := unitMeta(1, 2)
	bad.MaxContentBoost[2] = 0.5
	_, err = ApplyGainMap(sdr, gm, bad)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestDecodeKeepsBaseAlpha(t *testing.T) {
	sdr := NewImage(1, 1, 4, FormatUnorm8)
	copy(sdr.Pix8, []uint8{128, 128, 128, 51})
	gm := NewImage(1, 1, 4, FormatUnorm8)

	out, err := Decode(sdr, gm, unitMeta(1, 2))
	require.NoError(t, err)
	assert.InDelta(t, 0.2, out.At(0, 0)[3], 1e-6)
	assert.Equal(t, TransferLinear, out.Transfer)
}

func TestRebase(t *testing.T) {
	oldBase := linearImage(8, 8, func(x, y int) [3]float32 { return [3]float32{0.3, 0.4, float32(x) / 16} })
	newBase := linearImage(8, 8, func(x, y int) [3]float32 { return [3]float32{0.35, 0.3, 0.2} })
	hdr := linearImage(8, 8, func(x, y int) [3]float32 { return [3]float32{0.9, 0.5, float32(y) / 8} })

	res, err := Encode(oldBase, hdr, func(o *EncodeOptions) { o.Format = FormatFloat32 })
	require.NoError(t, err)

	rebased, err := Rebase(oldBase, newBase, res.Gainmap, res.Meta)
	require.NoError(t, err)
	assert.Equal(t, FormatFloat32, rebased.Gainmap.Format)

	out, err := Decode(newBase, rebased.Gainmap, rebased.Meta)
	require.NoError(t, err)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			for c := 0; c < 3; c++ {
				assert.InDelta(t, hdr.At(x, y)[c], out.At(x, y)[c], 1e-4)
			}
		}
	}

	_, err = Rebase(oldBase, linearImage(4, 4, flat(0.5)), res.Gainmap, res.Meta)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReconstructionSSIM(t *testing.T) {
	const size = 64
	hdr := linearImage(size, size, func(x, y int) [3]float32 {
		r := float32(math.Hypot(float64(x-size/2), float64(y-size/2))) / size
		return [3]float32{4 * (1 - r), 2 * float32(x) / size, 0.1 + float32(y)/size}
	})
	sdr := linearImage(size, size, func(x, y int) [3]float32 {
		px := hdr.At(x, y)
		return [3]float32{px[0] / (1 + px[0]), px[1] / (1 + px[1]), px[2] / (1 + px[2])}
	})

	res, err := Encode(sdr, hdr, func(o *EncodeOptions) { o.Format = FormatUnorm16 })
	require.NoError(t, err)
	out, err := Decode(sdr, res.Gainmap, res.Meta)
	require.NoError(t, err)

	ssim := hdrtool.HDRSSIM(hdr.HDR(), out.HDR())
	assert.Greater(t, ssim, 0.99)
}

func BenchmarkEncode(b *testing.B) {
	sdr := linearImage(512, 512, func(x, y int) [3]float32 { return [3]float32{float32(x) / 512, float32(y) / 512, 0.5} })
	hdr := linearImage(512, 512, func(x, y int) [3]float32 { return [3]float32{float32(x) / 128, float32(y) / 256, 0.5} })
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(sdr, hdr); err != nil {
			b.Fatal(err)
		}
	}
}

func TestEncodeBufferLayouts(t *testing.T) {
	// Multiples of 1/64 are exact in every float layout.
	sdrFn := func(x, y int) [3]float32 { return [3]float32{float32(x) / 64, float32(y) / 64, 0.25} }
	hdrFn := func(x, y int) [3]float32 { return [3]float32{float32(x+y) / 32, 0.5, float32(x) / 16} }
	tight := func(fn func(x, y int) [3]float32) *Image { return linearImage(9, 5, fn) }

	want, err := Encode(tight(sdrFn), tight(hdrFn))
	require.NoError(t, err)

	strided := func(fn func(x, y int) [3]float32) *Image {
		m := &Image{Width: 9, Height: 5, Channels: 4, Format: FormatFloat32, Stride: 9*4 + 5, Transfer: TransferLinear, Gamut: GamutBT709}
		m.Pix32 = make([]float32, m.Stride*5)
		for i := range m.Pix32 {
			m.Pix32[i] = -7 // padding must be ignored
		}
		for y := 0; y < 5; y++ {
			for x := 0; x < 9; x++ {
				v := fn(x, y)
				m.Set(x, y, [4]float32{v[0], v[1], v[2], 1})
			}
		}
		return m
	}
	half := func(fn func(x, y int) [3]float32) *Image {
		m := NewImage(9, 5, 3, FormatFloat16)
		m.Transfer = TransferLinear
		for y := 0; y < 5; y++ {
			for x := 0; x < 9; x++ {
				v := fn(x, y)
				m.Set(x, y, [4]float32{v[0], v[1], v[2], 1})
			}
		}
		return m
	}

	for name, build := range map[string]func(func(x, y int) [3]float32) *Image{"strided": strided, "float16": half} {
		got, err := Encode(build(sdrFn), build(hdrFn))
		require.NoError(t, err, name)
		assert.Equal(t, want.Meta, got.Meta, name)
		assert.Equal(t, want.Gainmap.Pix8, got.Gainmap.Pix8, name)
	}
}
