package gainmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSRGBTransferInverse(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		v := float32(i) / 1000
		assert.InDelta(t, v, LinearToSRGB(SRGBToLinear(v)), 1e-5, "v=%v", v)
		assert.InDelta(t, v, SRGBToLinear(LinearToSRGB(v)), 1e-5, "v=%v", v)
	}
}

func TestSRGBTransferKnownValues(t *testing.T) {
	assert.Equal(t, float32(0), SRGBToLinear(0))
	assert.InDelta(t, 1, SRGBToLinear(1), 1e-6)
	assert.InDelta(t, 0.04045/12.92, SRGBToLinear(0.04045), 1e-7)
	assert.InDelta(t, 0.21404, SRGBToLinear(0.5), 1e-4)
}

func TestToLinearToDisplayRoundTrip(t *testing.T) {
	src := NewImage(16, 4, 4, FormatUnorm8)
	for i := range src.Pix8 {
		src.Pix8[i] = uint8(i * 7)
	}

	lin, err := ToLinear(src, Precision32Float)
	require.NoError(t, err)
	assert.Equal(t, TransferLinear, lin.Transfer)
	assert.Equal(t, FormatFloat32, lin.Format)

	back, err := ToDisplay(lin, Precision8)
	require.NoError(t, err)
	assert.Equal(t, TransferSRGB, back.Transfer)
	assert.Equal(t, src.Pix8, back.Pix8)
}

func TestToLinearKeepsAlpha(t *testing.T) {
	src := NewImage(2, 1, 4, FormatUnorm16)
	copy(src.Pix16, []uint16{65535, 32768, 0, 1234, 0, 0, 0, 65535})

	lin, err := ToLinear(src, Precision16)
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), lin.Pix16[3])
	assert.Equal(t, uint16(65535), lin.Pix16[7])
	assert.Equal(t, uint16(65535), lin.Pix16[0])
}

func TestConvertGamutRoundTrip(t *testing.T) {
	src := NewImage(3, 1, 3, FormatFloat32)
	src.Transfer = TransferLinear
	copy(src.Pix32, []float32{1, 0, 0, 0.2, 0.5, 0.8, 1, 1, 1})

	for _, g := range []ColorGamut{GamutDisplayP3, GamutAdobeRGB, GamutBT2100} {
		p, err := ConvertGamut(src, g)
		require.NoError(t, err)
		assert.Equal(t, g, p.Gamut)

		back, err := ConvertGamut(p, GamutBT709)
		require.NoError(t, err)
		for i, v := range src.Pix32 {
			assert.InDelta(t, v, back.Pix32[i], 1e-3, "gamut %d sample %d", g, i)
		}
		// White stays white: all gamuts share the D65 white point.
		assert.InDelta(t, 1, p.Pix32[6], 1e-3)
		assert.InDelta(t, 1, p.Pix32[7], 1e-3)
		assert.InDelta(t, 1, p.Pix32[8], 1e-3)
	}
}

func TestConvertGamutNeedsLinear(t *testing.T) {
	src := NewImage(1, 1, 3, FormatUnorm8)
	_, err := ConvertGamut(src, GamutDisplayP3)
	assert.ErrorIs(t, err, ErrUnsupportedPixelLayout)
}
