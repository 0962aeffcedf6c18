package gainmap

import "github.com/pkg/errors"

var (
	// ErrInvalidMetadata is returned when gain map metadata breaks a structural invariant.
	ErrInvalidMetadata = errors.New("invalid gain map metadata")

	// ErrDimensionMismatch is returned when paired images differ in width or height.
	ErrDimensionMismatch = errors.New("image dimensions mismatch")

	// ErrUnsupportedPixelLayout is returned for unknown channel counts, formats or broken strides.
	ErrUnsupportedPixelLayout = errors.New("unsupported pixel layout")
)

func dimensionMismatch(what string, a, b *Image) error {
	return errors.Wrapf(ErrDimensionMismatch, "%s: %dx%d vs %dx%d", what, a.Width, a.Height, b.Width, b.Height)
}
