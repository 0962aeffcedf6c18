package gainmap

import "github.com/pkg/errors"

type rgb struct {
	r, g, b float32
}

// ToLinear applies the sRGB EOTF to the color channels of src and returns a new
// image stored with precision p. Alpha is copied unchanged.
func ToLinear(src *Image, p Precision) (*Image, error) {
	return transferImage(src, p, TransferLinear, SRGBToLinear)
}

// ToDisplay applies the sRGB OETF to the color channels of src, the inverse of ToLinear.
func ToDisplay(src *Image, p Precision) (*Image, error) {
	return transferImage(src, p, TransferSRGB, LinearToSRGB)
}

func transferImage(src *Image, p Precision, to ColorTransfer, fn func(float32) float32) (*Image, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	dst := NewImage(src.Width, src.Height, src.Channels, p.Format())
	dst.Gamut = src.Gamut
	dst.Transfer = to

	forEachBand(src.Height, defaultChunkRows, 0, func(_, y0, y1 int) {
		row := make([]float32, src.Width*4)
		for y := y0; y < y1; y++ {
			src.loadRow(y, 0, src.Width, row)
			for i := 0; i < len(row); i += 4 {
				row[i] = fn(row[i])
				row[i+1] = fn(row[i+1])
				row[i+2] = fn(row[i+2])
			}
			dst.storeRow(y, 0, src.Width, row)
		}
	})
	return dst, nil
}

// ConvertGamut converts linear RGB between color gamuts through D65 XYZ.
// The result is a float32 image tagged with the target gamut.
func ConvertGamut(src *Image, to ColorGamut) (*Image, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.Transfer != TransferLinear {
		return nil, errors.Wrap(ErrUnsupportedPixelLayout, "gamut conversion needs linear input")
	}
	from := src.Gamut
	dst := NewImage(src.Width, src.Height, src.Channels, FormatFloat32)
	dst.Transfer = TransferLinear
	dst.Gamut = to

	forEachBand(src.Height, defaultChunkRows, 0, func(_, y0, y1 int) {
		row := make([]float32, src.Width*4)
		for y := y0; y < y1; y++ {
			src.loadRow(y, 0, src.Width, row)
			if from != to {
				for i := 0; i < len(row); i += 4 {
					v := convertLinearGamut(rgb{r: row[i], g: row[i+1], b: row[i+2]}, from, to)
					row[i], row[i+1], row[i+2] = v.r, v.g, v.b
				}
			}
			dst.storeRow(y, 0, src.Width, row)
		}
	})
	return dst, nil
}

func convertLinearGamut(v rgb, from, to ColorGamut) rgb {
	if from == to || from == GamutUnspecified || to == GamutUnspecified {
		return v
	}
	x, y, z := rgbToXYZ(v, from)
	return xyzToRGB(x, y, z, to)
}

func rgbToXYZ(v rgb, from ColorGamut) (float32, float32, float32) {
	switch from {
	case GamutDisplayP3:
		return 0.48657095*v.r + 0.2656677*v.g + 0.19821729*v.b,
			0.22897457*v.r + 0.69173855*v.g + 0.07928691*v.b,
			0.04511338*v.g + 1.0439444*v.b
	case GamutAdobeRGB:
		return 0.5767309*v.r + 0.185554*v.g + 0.1881852*v.b,
			0.2973769*v.r + 0.6273491*v.g + 0.0752741*v.b,
			0.0270343*v.r + 0.0706872*v.g + 0.9911085*v.b
	case GamutBT2100:
		return 0.636958*v.r + 0.144617*v.g + 0.168881*v.b,
			0.2627*v.r + 0.677998*v.g + 0.059302*v.b,
			0.028073*v.g + 1.060985*v.b
	default:
		return 0.4123908*v.r + 0.35758433*v.g + 0.1804808*v.b,
			0.212639*v.r + 0.71516865*v.g + 0.07219232*v.b,
			0.019330818*v.r + 0.11919478*v.g + 0.95053214*v.b
	}
}

func xyzToRGB(x, y, z float32, to ColorGamut) rgb {
	switch to {
	case GamutDisplayP3:
		return rgb{
			r: 2.493497*x - 0.9313836*y - 0.4027108*z,
			g: -0.829489*x + 1.7626641*y + 0.023624685*z,
			b: 0.03584583*x - 0.07617239*y + 0.9568845*z,
		}
	case GamutAdobeRGB:
		return rgb{
			r: 2.041369*x - 0.5649464*y - 0.3446944*z,
			g: -0.969266*x + 1.8760108*y + 0.041556*z,
			b: 0.0134474*x - 0.1183897*y + 1.0154096*z,
		}
	case GamutBT2100:
		return rgb{
			r: 1.716651*x - 0.355671*y - 0.253366*z,
			g: -0.666684*x + 1.616481*y + 0.015769*z,
			b: 0.01764*x - 0.042771*y + 0.942103*z,
		}
	default:
		return rgb{
			r: 3.24097*x - 1.5373832*y - 0.49861076*z,
			g: -0.96924365*x + 1.8759675*y + 0.041555058*z,
			b: 0.05563008*x - 0.20397696*y + 1.0569715*z,
		}
	}
}
