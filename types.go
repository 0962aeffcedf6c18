package gainmap

// ColorGamut identifies a supported color gamut.
type ColorGamut int

const (
	GamutUnspecified ColorGamut = iota
	GamutBT709
	GamutDisplayP3
	GamutBT2100
	GamutAdobeRGB
)

// ColorTransfer identifies how pixel values are encoded.
type ColorTransfer int

const (
	// TransferSRGB marks display-encoded values that still need the sRGB EOTF.
	TransferSRGB ColorTransfer = iota
	// TransferLinear marks linear-light values.
	TransferLinear
)

// PixelFormat is the numeric representation of a channel sample.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	// FormatUnorm8 stores 8-bit normalized samples in Image.Pix8.
	FormatUnorm8
	// FormatUnorm16 stores 16-bit normalized samples in Image.Pix16.
	FormatUnorm16
	// FormatFloat16 stores IEEE 754 half-float bit patterns in Image.Pix16.
	FormatFloat16
	// FormatFloat32 stores samples in Image.Pix32.
	FormatFloat32
)

func (f PixelFormat) String() string {
	switch f {
	case FormatUnorm8:
		return "unorm8"
	case FormatUnorm16:
		return "unorm16"
	case FormatFloat16:
		return "float16"
	case FormatFloat32:
		return "float32"
	default:
		return "unknown"
	}
}

// Precision selects the storage width of a transform's output buffer.
// It never changes the transform formula.
type Precision int

const (
	Precision8 Precision = iota
	Precision16
	Precision16Float
	Precision32Float
)

// Format returns the pixel format used to store values of precision p.
func (p Precision) Format() PixelFormat {
	switch p {
	case Precision8:
		return FormatUnorm8
	case Precision16:
		return FormatUnorm16
	case Precision16Float:
		return FormatFloat16
	default:
		return FormatFloat32
	}
}

// GainmapMetadata describes how a gain map expands its base image.
// Boosts and capacities are in linear scale.
type GainmapMetadata struct {
	Version           string     `json:"version,omitempty"`
	MaxContentBoost   [3]float32 `json:"max_content_boost"`
	MinContentBoost   [3]float32 `json:"min_content_boost"`
	Gamma             [3]float32 `json:"gamma"`
	OffsetSDR         [3]float32 `json:"offset_sdr"`
	OffsetHDR         [3]float32 `json:"offset_hdr"`
	HDRCapacityMin    float32    `json:"hdr_capacity_min"`
	HDRCapacityMax    float32    `json:"hdr_capacity_max"`
	UseBaseColorSpace bool       `json:"use_base_color_space"`
}

// EncodeOptions controls gain map generation.
type EncodeOptions struct {
	Gamma     [3]float32  // gain map gamma, default 1
	OffsetSDR [3]float32  // default 1/64
	OffsetHDR [3]float32  // default 1/64
	Format    PixelFormat // gain map storage, default FormatUnorm8
	Workers   int         // parallelism, default GOMAXPROCS
	LaneWidth int         // boost reduction lane width in pixels, default 4
}

// DecodeOptions controls gain map application.
type DecodeOptions struct {
	// DisplayBoost is the display headroom in linear scale, 0 applies the map at full strength.
	DisplayBoost float32
	// OutputGamut converts the reconstructed image when set and different from the gamut the map was applied in.
	OutputGamut ColorGamut
	Workers     int
}
