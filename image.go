package gainmap

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Image is a caller-owned pixel buffer with 3 (RGB) or 4 (RGBA) interleaved channels.
//
// Exactly one of Pix8, Pix16 or Pix32 backs the pixels, as selected by Format.
// Stride is counted in elements and may exceed Width*Channels.
type Image struct {
	Width    int
	Height   int
	Channels int
	Format   PixelFormat
	Stride   int

	Pix8  []uint8
	Pix16 []uint16
	Pix32 []float32

	Transfer ColorTransfer
	Gamut    ColorGamut
}

// NewImage allocates a tightly packed image.
func NewImage(width, height, channels int, format PixelFormat) *Image {
	m := &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Format:   format,
		Stride:   width * channels,
		Gamut:    GamutBT709,
	}
	n := m.Stride * height
	if n < 0 {
		n = 0
	}
	switch format {
	case FormatUnorm8:
		m.Pix8 = make([]uint8, n)
	case FormatUnorm16, FormatFloat16:
		m.Pix16 = make([]uint16, n)
	case FormatFloat32:
		m.Pix32 = make([]float32, n)
	}
	return m
}

// Validate checks the buffer layout.
func (m *Image) Validate() error {
	if m == nil {
		return errors.Wrap(ErrUnsupportedPixelLayout, "nil image")
	}
	if m.Channels != 3 && m.Channels != 4 {
		return errors.Wrapf(ErrUnsupportedPixelLayout, "%d channels", m.Channels)
	}
	if m.Width < 0 || m.Height < 0 {
		return errors.Wrapf(ErrUnsupportedPixelLayout, "negative size %dx%d", m.Width, m.Height)
	}
	if m.Stride < m.Width*m.Channels {
		return errors.Wrapf(ErrUnsupportedPixelLayout, "stride %d < %d", m.Stride, m.Width*m.Channels)
	}
	need := 0
	if m.Width > 0 && m.Height > 0 {
		need = (m.Height-1)*m.Stride + m.Width*m.Channels
	}
	var have int
	switch m.Format {
	case FormatUnorm8:
		have = len(m.Pix8)
	case FormatUnorm16, FormatFloat16:
		have = len(m.Pix16)
	case FormatFloat32:
		have = len(m.Pix32)
	default:
		return errors.Wrapf(ErrUnsupportedPixelLayout, "format %s", m.Format)
	}
	if have < need {
		return errors.Wrapf(ErrUnsupportedPixelLayout, "buffer holds %d elements, %d needed", have, need)
	}
	return nil
}

// HasAlpha reports whether the image stores an alpha channel.
func (m *Image) HasAlpha() bool { return m.Channels == 4 }

func (m *Image) sameSize(o *Image) bool {
	return m.Width == o.Width && m.Height == o.Height
}

// At returns the normalized RGBA value at (x, y). Alpha is 1 for RGB images.
func (m *Image) At(x, y int) [4]float32 {
	var px [4]float32
	m.loadRow(y, x, x+1, px[:])
	return px
}

// Set stores an RGBA value at (x, y), alpha is dropped for RGB images.
func (m *Image) Set(x, y int, px [4]float32) {
	m.storeRow(y, x, x+1, px[:])
}

// loadRow decodes pixels [x0, x1) of row y into dst as interleaved RGBA float32.
func (m *Image) loadRow(y, x0, x1 int, dst []float32) {
	ch := m.Channels
	base := y*m.Stride + x0*ch
	n := x1 - x0
	for i := 0; i < n; i++ {
		s := base + i*ch
		d := dst[i*4 : i*4+4]
		switch m.Format {
		case FormatUnorm8:
			p := m.Pix8[s : s+ch]
			d[0], d[1], d[2] = float32(p[0])/255, float32(p[1])/255, float32(p[2])/255
			if ch == 4 {
				d[3] = float32(p[3]) / 255
			} else {
				d[3] = 1
			}
		case FormatUnorm16:
			p := m.Pix16[s : s+ch]
			d[0], d[1], d[2] = float32(p[0])/65535, float32(p[1])/65535, float32(p[2])/65535
			if ch == 4 {
				d[3] = float32(p[3]) / 65535
			} else {
				d[3] = 1
			}
		case FormatFloat16:
			p := m.Pix16[s : s+ch]
			d[0] = float16.Frombits(p[0]).Float32()
			d[1] = float16.Frombits(p[1]).Float32()
			d[2] = float16.Frombits(p[2]).Float32()
			if ch == 4 {
				d[3] = float16.Frombits(p[3]).Float32()
			} else {
				d[3] = 1
			}
		case FormatFloat32:
			p := m.Pix32[s : s+ch]
			d[0], d[1], d[2] = p[0], p[1], p[2]
			if ch == 4 {
				d[3] = p[3]
			} else {
				d[3] = 1
			}
		}
	}
}

// storeRow encodes interleaved RGBA float32 src into pixels [x0, x1) of row y.
// Normalized formats are clamped to [0, 1] and rounded.
func (m *Image) storeRow(y, x0, x1 int, src []float32) {
	ch := m.Channels
	base := y*m.Stride + x0*ch
	n := x1 - x0
	for i := 0; i < n; i++ {
		s := src[i*4 : i*4+4]
		d := base + i*ch
		switch m.Format {
		case FormatUnorm8:
			p := m.Pix8[d : d+ch]
			for c := 0; c < ch; c++ {
				p[c] = toUnorm8(s[c])
			}
		case FormatUnorm16:
			p := m.Pix16[d : d+ch]
			for c := 0; c < ch; c++ {
				p[c] = toUnorm16(s[c])
			}
		case FormatFloat16:
			p := m.Pix16[d : d+ch]
			for c := 0; c < ch; c++ {
				p[c] = float16.Fromfloat32(s[c]).Bits()
			}
		case FormatFloat32:
			copy(m.Pix32[d:d+ch], s[:ch])
		}
	}
}

func toUnorm8(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func toUnorm16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 65535
	}
	return uint16(v*65535 + 0.5)
}
