package gainmap

import (
	"image"
	"image/color"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/hdrcolor"
)

// FromImage copies a decoded image into a pixel buffer.
//
// HDR images (hdr.Image) become linear float32 RGB. 16-bit color models become
// FormatUnorm16, everything else FormatUnorm8, both tagged TransferSRGB.
// Images with an alpha channel keep it.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if hm, ok := src.(hdr.Image); ok {
		m := NewImage(w, h, 3, FormatFloat32)
		m.Transfer = TransferLinear
		for y := 0; y < h; y++ {
			row := m.Pix32[y*m.Stride:]
			for x := 0; x < w; x++ {
				r, g, bl, _ := hm.HDRAt(b.Min.X+x, b.Min.Y+y).HDRRGBA()
				row[x*3], row[x*3+1], row[x*3+2] = float32(r), float32(g), float32(bl)
			}
		}
		return m
	}

	channels := 3
	if !opaque(src) {
		channels = 4
	}

	switch src.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		m := NewImage(w, h, channels, FormatUnorm16)
		px := make([]float32, 4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				px[0], px[1], px[2], px[3] = float32(c.R)/65535, float32(c.G)/65535, float32(c.B)/65535, float32(c.A)/65535
				m.storeRow(y, x, x+1, px)
			}
		}
		return m
	}

	m := NewImage(w, h, channels, FormatUnorm8)
	if nrgba, ok := src.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			s := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
			d := m.Pix8[y*m.Stride : y*m.Stride+w*channels]
			for x := 0; x < w; x++ {
				copy(d[x*channels:x*channels+channels], s[x*4:x*4+channels])
			}
		}
		return m
	}
	for y := 0; y < h; y++ {
		d := m.Pix8[y*m.Stride:]
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			d[x*channels], d[x*channels+1], d[x*channels+2] = c.R, c.G, c.B
			if channels == 4 {
				d[x*channels+3] = c.A
			}
		}
	}
	return m
}

func opaque(m image.Image) bool {
	if o, ok := m.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// ToImage returns a standard image holding the buffer's values as they are, clamped to [0, 1].
// 8-bit buffers become *image.NRGBA, others *image.NRGBA64.
func (m *Image) ToImage() image.Image {
	rect := image.Rect(0, 0, m.Width, m.Height)
	row := make([]float32, m.Width*4)

	if m.Format == FormatUnorm8 {
		out := image.NewNRGBA(rect)
		for y := 0; y < m.Height; y++ {
			m.loadRow(y, 0, m.Width, row)
			d := out.Pix[y*out.Stride:]
			for i, v := range row {
				d[i] = toUnorm8(v)
			}
		}
		return out
	}

	out := image.NewNRGBA64(rect)
	for y := 0; y < m.Height; y++ {
		m.loadRow(y, 0, m.Width, row)
		d := out.Pix[y*out.Stride:]
		for i, v := range row {
			u := toUnorm16(v)
			d[i*2], d[i*2+1] = uint8(u>>8), uint8(u)
		}
	}
	return out
}

// HDR returns the color channels as an unbounded float image. Values are copied
// without any transfer function, so callers pass linear buffers.
func (m *Image) HDR() *hdr.RGB {
	out := hdr.NewRGB(image.Rect(0, 0, m.Width, m.Height))
	row := make([]float32, m.Width*4)
	for y := 0; y < m.Height; y++ {
		m.loadRow(y, 0, m.Width, row)
		for x := 0; x < m.Width; x++ {
			out.SetRGB(x, y, hdrcolor.RGB{R: float64(row[x*4]), G: float64(row[x*4+1]), B: float64(row[x*4+2])})
		}
	}
	return out
}
