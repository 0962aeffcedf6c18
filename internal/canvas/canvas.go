// Package canvas brings base and alternate renditions to a common output size.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Mode selects how a source is placed on the canvas.
type Mode int

const (
	// ModeFit scales the source to fit inside the canvas, padding with the background.
	ModeFit Mode = iota
	// ModeFill scales the source to cover the canvas, cropping the overflow.
	ModeFill
)

// ParseMode parses "fit" or "fill".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "fit":
		return ModeFit, nil
	case "fill":
		return ModeFill, nil
	default:
		return ModeFit, errors.Errorf("unknown scale mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModeFill {
		return "fill"
	}
	return "fit"
}

// Target selects which rendition sizes the canvas.
type Target int

const (
	// TargetBase sizes the canvas from the base image, or the alternate when there is no base.
	TargetBase Target = iota
	// TargetAlternate sizes the canvas from the alternate image.
	TargetAlternate
)

// ParseTarget parses "base" or "alt".
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(s) {
	case "", "base":
		return TargetBase, nil
	case "alt", "alternate":
		return TargetAlternate, nil
	default:
		return TargetBase, errors.Errorf("unknown canvas size target %q", s)
	}
}

func (t Target) String() string {
	if t == TargetAlternate {
		return "alt"
	}
	return "base"
}

// Interpolation selects the resampling kernel.
type Interpolation int

const (
	InterpolationNearest Interpolation = iota
	InterpolationBilinear
	InterpolationBicubic
	InterpolationMitchellNetravali
	InterpolationLanczos2
	InterpolationLanczos3
)

// ParseInterpolation parses an interpolation name such as "lanczos3".
func ParseInterpolation(s string) (Interpolation, error) {
	switch strings.ToLower(s) {
	case "nearest":
		return InterpolationNearest, nil
	case "bilinear":
		return InterpolationBilinear, nil
	case "bicubic":
		return InterpolationBicubic, nil
	case "mitchell":
		return InterpolationMitchellNetravali, nil
	case "lanczos2":
		return InterpolationLanczos2, nil
	case "", "lanczos3":
		return InterpolationLanczos3, nil
	default:
		return InterpolationLanczos3, errors.Errorf("unknown interpolation %q", s)
	}
}

func (i Interpolation) kernel() resize.InterpolationFunction {
	switch i {
	case InterpolationNearest:
		return resize.NearestNeighbor
	case InterpolationBilinear:
		return resize.Bilinear
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationMitchellNetravali:
		return resize.MitchellNetravali
	case InterpolationLanczos2:
		return resize.Lanczos2
	default:
		return resize.Lanczos3
	}
}

// Options controls Render.
type Options struct {
	Mode          Mode
	Interpolation Interpolation
	Background    color.Color // defaults to opaque black
}

// MinScale and MaxScale bound the output scale factor.
const (
	MinScale = 0.1
	MaxScale = 1.0
)

// Size returns the canvas size for a source of w x h pixels scaled by scale.
func Size(w, h int, scale float64) (int, int, error) {
	if w <= 0 || h <= 0 {
		return 0, 0, errors.Errorf("invalid source size %dx%d", w, h)
	}
	if !(scale >= MinScale && scale <= MaxScale) {
		return 0, 0, errors.Errorf("scale %v out of range [%v, %v]", scale, MinScale, MaxScale)
	}
	cw := max(1, int(math.Round(float64(w)*scale)))
	ch := max(1, int(math.Round(float64(h)*scale)))
	return cw, ch, nil
}

// ParseBackground parses a #rrggbb hex color.
func ParseBackground(s string) (color.Color, error) {
	if s == "" {
		return color.NRGBA{A: 0xff}, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, errors.Wrapf(err, "background %q", s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// placement returns the scaled size of a w x h source and its offset on a cw x ch canvas.
func placement(w, h, cw, ch int, mode Mode) (sw, sh int, off image.Point) {
	sx := float64(cw) / float64(w)
	sy := float64(ch) / float64(h)
	s := math.Min(sx, sy)
	if mode == ModeFill {
		s = math.Max(sx, sy)
	}
	sw = max(1, int(math.Round(float64(w)*s)))
	sh = max(1, int(math.Round(float64(h)*s)))
	return sw, sh, image.Pt((cw-sw)/2, (ch-sh)/2)
}

// Solid returns a cw x ch canvas filled with the background.
func Solid(cw, ch int, opt Options) *image.NRGBA64 {
	bg := opt.Background
	if bg == nil {
		bg = color.NRGBA{A: 0xff}
	}
	dst := image.NewNRGBA64(image.Rect(0, 0, cw, ch))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return dst
}

// Render places src on a cw x ch canvas filled with the background.
func Render(src image.Image, cw, ch int, opt Options) *image.NRGBA64 {
	dst := Solid(cw, ch, opt)

	b := src.Bounds()
	sw, sh, off := placement(b.Dx(), b.Dy(), cw, ch, opt.Mode)
	scaled := src
	if sw != b.Dx() || sh != b.Dy() {
		scaled = resize.Resize(uint(sw), uint(sh), src, opt.Interpolation.kernel())
	}
	sb := scaled.Bounds()
	draw.Draw(dst, image.Rectangle{Min: off, Max: off.Add(sb.Size())}, scaled, sb.Min, draw.Over)
	return dst
}

// RenderHDR is Render for unbounded linear images. Samples are normalized by the
// image peak and sRGB-encoded before resampling, then restored.
func RenderHDR(src hdr.Image, cw, ch int, opt Options) *hdr.RGB {
	b := src.Bounds()
	peak := 1.0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.HDRAt(x, y).HDRRGBA()
			peak = math.Max(peak, math.Max(r, math.Max(g, bl)))
		}
	}

	enc := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.HDRAt(x, y).HDRRGBA()
			enc.SetNRGBA64(x-b.Min.X, y-b.Min.Y, color.NRGBA64{
				R: encodeUnit(r / peak),
				G: encodeUnit(g / peak),
				B: encodeUnit(bl / peak),
				A: 0xffff,
			})
		}
	}

	placed := Render(enc, cw, ch, Options{Mode: opt.Mode, Interpolation: opt.Interpolation, Background: hdrBackground(opt.Background, peak)})

	out := hdr.NewRGB(image.Rect(0, 0, cw, ch))
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			c := placed.NRGBA64At(x, y)
			out.SetRGB(x, y, hdrcolor.RGB{
				R: decodeUnit(c.R) * peak,
				G: decodeUnit(c.G) * peak,
				B: decodeUnit(c.B) * peak,
			})
		}
	}
	return out
}

// hdrBackground maps an SDR background, taken at diffuse white, to the
// peak-normalized encoding used by RenderHDR.
func hdrBackground(bg color.Color, peak float64) color.Color {
	if bg == nil {
		return nil
	}
	c, ok := colorful.MakeColor(bg)
	if !ok {
		return bg
	}
	r, g, b := c.LinearRgb()
	return color.NRGBA64{R: encodeUnit(r / peak), G: encodeUnit(g / peak), B: encodeUnit(b / peak), A: 0xffff}
}

func encodeUnit(v float64) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	var s float64
	if v <= 0.0031308 {
		s = 12.92 * v
	} else {
		s = 1.055*math.Pow(v, 1/2.4) - 0.055
	}
	return uint16(s*0xffff + 0.5)
}

func decodeUnit(u uint16) float64 {
	s := float64(u) / 0xffff
	if s <= 0.04045 {
		return s / 12.92
	}
	return math.Pow((s+0.055)/1.055, 2.4)
}
