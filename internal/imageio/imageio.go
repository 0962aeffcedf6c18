// Package imageio reads and writes the image files gainmaptool works with.
package imageio

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register webp decoder
)

// DefaultQuality is the JPEG quality used when Options.Quality is zero.
const DefaultQuality = 95

// Options controls encoding in Save.
type Options struct {
	// Quality is the JPEG quality in [1, 100].
	Quality int
}

// Decode reads an image and reports its format name. OpenEXR and Radiance HDR
// streams yield linear hdr.Image values, JPEGs are rotated upright.
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", errors.Wrap(err, "read image")
	}
	if len(data) >= 4 && bytes.Equal(data[:4], []byte{0x76, 0x2f, 0x31, 0x01}) {
		m, err := DecodeEXR(bytes.NewReader(data))
		return m, "exr", err
	}
	if bytes.HasPrefix(data, []byte("#?")) {
		m, err := rgbe.Decode(bytes.NewReader(data))
		return m, "hdr", errors.Wrap(err, "decode radiance hdr")
	}

	m, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	if format == "jpeg" {
		m = orient(m, exifOrientation(data))
	}
	return m, format, nil
}

// Load decodes the image file at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// Encode writes m in the given format: jpeg, png, tiff, bmp or hdr.
func Encode(w io.Writer, m image.Image, format string, opt Options) error {
	switch format {
	case "jpeg", "jpg":
		q := opt.Quality
		if q <= 0 {
			q = DefaultQuality
		}
		return jpeg.Encode(w, m, &jpeg.Options{Quality: min(q, 100)})
	case "png":
		return png.Encode(w, m)
	case "tiff", "tif":
		return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case "bmp":
		return bmp.Encode(w, m)
	case "hdr":
		hm, ok := m.(hdr.Image)
		if !ok {
			return errors.New("radiance hdr output needs an hdr image")
		}
		return rgbe.Encode(w, hm)
	default:
		return errors.Errorf("unsupported output format %q", format)
	}
}

// Save encodes m into path, picking the format from the file extension.
func Save(path string, m image.Image, opt Options) (err error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := Encode(f, m, format, opt); err != nil {
		return errors.Wrap(err, path)
	}
	return nil
}
