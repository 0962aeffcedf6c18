package imageio

import (
	"bytes"
	"encoding/binary"
	"image"
	"io"
	"math"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

const exrMagic = 20000630

const (
	exrCompressionNone = 0
	exrCompressionZips = 2
	exrCompressionZip  = 3
)

const (
	exrPixelUint  = 0
	exrPixelHalf  = 1
	exrPixelFloat = 2
)

// maxEXRPixels bounds the data window so a crafted header cannot force huge allocations.
const maxEXRPixels = 1 << 26

// Version flags this decoder refuses.
const (
	exrFlagTiled     = 0x200
	exrFlagDeep      = 0x800
	exrFlagMultipart = 0x1000
)

type exrChannel struct {
	name      string
	pixelType int32
	xSampling int32
	ySampling int32
	plane     int // 0..2 for R, G, B; 3 for Y; -1 ignored
}

func (c exrChannel) size() int {
	if c.pixelType == exrPixelHalf {
		return 2
	}
	return 4
}

type exrHeader struct {
	channels    []exrChannel
	window      image.Rectangle
	compression byte
}

// DecodeEXR reads a scanline OpenEXR image (NONE, ZIPS or ZIP compression) into a
// linear float image. Luminance-only files are expanded to gray RGB.
func DecodeEXR(r io.Reader) (*hdr.RGB, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read exr")
	}
	br := bytes.NewReader(data)

	var head [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &head); err != nil {
		return nil, errors.Wrap(err, "exr magic")
	}
	if head[0] != exrMagic {
		return nil, errors.New("not an OpenEXR file")
	}
	if head[1]&(exrFlagTiled|exrFlagDeep|exrFlagMultipart) != 0 {
		return nil, errors.Errorf("OpenEXR flags %#x not supported", head[1])
	}

	h, err := readEXRHeader(br)
	if err != nil {
		return nil, err
	}

	width, height := h.window.Dx(), h.window.Dy()
	if width <= 0 || height <= 0 || width > maxEXRPixels/height {
		return nil, errors.Errorf("OpenEXR data window %v too large", h.window)
	}
	blockLines := 1
	if h.compression == exrCompressionZip {
		blockLines = 16
	}
	blocks := (height + blockLines - 1) / blockLines
	if blocks > br.Len()/8 {
		return nil, errors.Errorf("OpenEXR offset table of %d blocks exceeds file size", blocks)
	}
	offsets := make([]uint64, blocks)
	if err := binary.Read(br, binary.LittleEndian, offsets); err != nil {
		return nil, errors.Wrap(err, "exr offset table")
	}

	out := hdr.NewRGB(image.Rect(0, 0, width, height))
	planes := make([][]float32, 4)
	for _, ch := range h.channels {
		if ch.plane >= 0 && planes[ch.plane] == nil {
			planes[ch.plane] = make([]float32, width*height)
		}
	}

	for _, off := range offsets {
		if off == 0 {
			continue
		}
		if _, err := br.Seek(int64(off), io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "exr block")
		}
		var blockHead [2]int32
		if err := binary.Read(br, binary.LittleEndian, &blockHead); err != nil {
			return nil, errors.Wrap(err, "exr block header")
		}
		y0 := int(blockHead[0]) - h.window.Min.Y
		if y0 < 0 || y0 >= height || blockHead[1] < 0 {
			return nil, errors.Errorf("OpenEXR block at line %d out of bounds", blockHead[0])
		}
		if int64(blockHead[1]) > int64(br.Len()) {
			return nil, errors.Errorf("OpenEXR block at line %d is truncated", blockHead[0])
		}
		raw := make([]byte, blockHead[1])
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, errors.Wrap(err, "exr block data")
		}
		lines := min(blockLines, height-y0)

		pix, err := exrInflate(h.compression, raw, exrBlockSize(width, lines, h.channels))
		if err != nil {
			return nil, err
		}
		if err := exrScatter(planes, h.channels, pix, y0, width, lines); err != nil {
			return nil, err
		}
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			var c [3]float64
			for p := 0; p < 3; p++ {
				switch {
				case planes[p] != nil:
					c[p] = float64(planes[p][i])
				case planes[3] != nil:
					c[p] = float64(planes[3][i])
				}
			}
			out.SetRGB(x, y, hdrcolor.RGB{R: c[0], G: c[1], B: c[2]})
		}
	}
	return out, nil
}

func readEXRHeader(r *bytes.Reader) (exrHeader, error) {
	h := exrHeader{compression: exrCompressionNone}
	hasWindow := false
	for {
		name, err := readCString(r)
		if err != nil {
			return h, err
		}
		if name == "" {
			break
		}
		typ, err := readCString(r)
		if err != nil {
			return h, err
		}
		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return h, errors.Wrap(err, "exr attribute size")
		}
		if size < 0 || int64(size) > int64(r.Len()) {
			return h, errors.Errorf("invalid EXR attribute %s size %d", name, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return h, errors.Wrap(err, "exr attribute")
		}

		switch name {
		case "channels":
			if typ != "chlist" {
				return h, errors.Errorf("unexpected channels type %q", typ)
			}
			if h.channels, err = parseEXRChannels(payload); err != nil {
				return h, err
			}
		case "dataWindow":
			if typ != "box2i" || len(payload) != 16 {
				return h, errors.New("invalid dataWindow attribute")
			}
			var box [4]int32
			_ = binary.Read(bytes.NewReader(payload), binary.LittleEndian, &box)
			h.window = image.Rect(int(box[0]), int(box[1]), int(box[2])+1, int(box[3])+1)
			hasWindow = true
		case "compression":
			if len(payload) < 1 {
				return h, errors.New("invalid compression attribute")
			}
			h.compression = payload[0]
		case "tiles":
			return h, errors.New("tiled OpenEXR not supported")
		}
	}

	if !hasWindow || h.window.Empty() {
		return h, errors.New("OpenEXR missing or empty dataWindow")
	}
	hasColor := false
	for _, ch := range h.channels {
		if ch.xSampling != 1 || ch.ySampling != 1 {
			return h, errors.Errorf("OpenEXR channel %s is subsampled", ch.name)
		}
		if ch.plane >= 0 {
			hasColor = true
		}
	}
	if !hasColor {
		return h, errors.New("OpenEXR has no R, G, B or Y channel")
	}
	switch h.compression {
	case exrCompressionNone, exrCompressionZips, exrCompressionZip:
	default:
		return h, errors.Errorf("unsupported OpenEXR compression %d", h.compression)
	}
	return h, nil
}

func parseEXRChannels(data []byte) ([]exrChannel, error) {
	r := bytes.NewReader(data)
	var channels []exrChannel
	for {
		name, err := readCString(r)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return channels, nil
		}
		// pixel type, pLinear + 3 reserved bytes, x and y sampling
		var rec struct {
			PixelType int32
			Linear    [4]byte
			XSampling int32
			YSampling int32
		}
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, errors.Wrap(err, "exr channel list")
		}
		if rec.PixelType != exrPixelHalf && rec.PixelType != exrPixelFloat && rec.PixelType != exrPixelUint {
			return nil, errors.Errorf("unsupported OpenEXR pixel type %d", rec.PixelType)
		}
		plane := -1
		switch strings.ToUpper(name) {
		case "R":
			plane = 0
		case "G":
			plane = 1
		case "B":
			plane = 2
		case "Y":
			plane = 3
		}
		channels = append(channels, exrChannel{
			name:      name,
			pixelType: rec.PixelType,
			xSampling: rec.XSampling,
			ySampling: rec.YSampling,
			plane:     plane,
		})
	}
}

func exrBlockSize(width, lines int, channels []exrChannel) int {
	n := 0
	for _, ch := range channels {
		n += width * lines * ch.size()
	}
	return n
}

func exrInflate(compression byte, data []byte, expected int) ([]byte, error) {
	if compression == exrCompressionNone || len(data) == expected {
		// Blocks that do not shrink are stored raw.
		if len(data) != expected {
			return nil, errors.Errorf("OpenEXR block holds %d bytes, %d expected", len(data), expected)
		}
		return data, nil
	}

	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "exr zip block")
	}
	defer zr.Close()
	buf, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "exr zip block")
	}
	if len(buf) != expected {
		return nil, errors.Errorf("OpenEXR block inflates to %d bytes, %d expected", len(buf), expected)
	}

	for i := 1; i < len(buf); i++ {
		buf[i] = byte(int(buf[i]) + int(buf[i-1]) - 128)
	}
	half := (len(buf) + 1) / 2
	out := make([]byte, len(buf))
	for i := range out {
		if i%2 == 0 {
			out[i] = buf[i/2]
		} else {
			out[i] = buf[half+i/2]
		}
	}
	return out, nil
}

// exrScatter copies channel rows of a block into per-plane buffers. Within a
// scanline, channels are stored one after another in header order.
func exrScatter(planes [][]float32, channels []exrChannel, pix []byte, y0, width, lines int) error {
	pos := 0
	for row := 0; row < lines; row++ {
		y := y0 + row
		for _, ch := range channels {
			n := width * ch.size()
			if pos+n > len(pix) {
				return errors.New("OpenEXR block truncated")
			}
			line := pix[pos : pos+n]
			pos += n
			if ch.plane < 0 {
				continue
			}
			dst := planes[ch.plane][y*width : (y+1)*width]
			for x := range dst {
				switch ch.pixelType {
				case exrPixelHalf:
					dst[x] = float16.Frombits(binary.LittleEndian.Uint16(line[x*2:])).Float32()
				case exrPixelFloat:
					dst[x] = math.Float32frombits(binary.LittleEndian.Uint32(line[x*4:]))
				case exrPixelUint:
					dst[x] = float32(binary.LittleEndian.Uint32(line[x*4:]))
				}
			}
		}
	}
	return nil
}

func readCString(r *bytes.Reader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", errors.Wrap(err, "exr string")
		}
		if b == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}
