package gainmap

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ISO 21496-1 flag bits.
const (
	isoMultiChannel    = 1 << 7
	isoUseBaseColor    = 1 << 6
	isoCommonDenom     = 1 << 3
	isoBackwardDirFlag = 1 << 2
)

// isoFraction is a rational number as stored in the binary metadata.
type isoFraction struct {
	N int64
	D uint32
}

func (f isoFraction) float() float32 {
	if f.D == 0 {
		return float32(math.NaN())
	}
	return float32(float64(f.N) / float64(f.D))
}

// isoChannel holds the per-channel fractions. Boosts are stored as log2 values.
type isoChannel struct {
	Min, Max, Gamma, BaseOffset, AltOffset isoFraction
}

type isoRecord struct {
	BaseHeadroom      isoFraction
	AltHeadroom       isoFraction
	Channels          [3]isoChannel
	UseBaseColorSpace bool
	Backward          bool
}

// MarshalISO serializes metadata in the ISO 21496-1 binary layout. A single channel
// is written when all channels are identical.
func MarshalISO(m *GainmapMetadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	rec, err := toISORecord(m)
	if err != nil {
		return nil, err
	}

	channels := 3
	if m.AllChannelsIdentical() {
		channels = 1
	}

	flags := uint8(0)
	if channels == 3 {
		flags |= isoMultiChannel
	}
	if rec.UseBaseColorSpace {
		flags |= isoUseBaseColor
	}

	denom := rec.BaseHeadroom.D
	common := rec.AltHeadroom.D == denom
	for c := 0; c < channels && common; c++ {
		ch := rec.Channels[c]
		for _, f := range []isoFraction{ch.Min, ch.Max, ch.Gamma, ch.BaseOffset, ch.AltOffset} {
			if f.D != denom {
				common = false
			}
		}
	}
	if common {
		flags |= isoCommonDenom
	}

	w := &isoWriter{buf: make([]byte, 0, 128)}
	w.u16(0) // minimum version
	w.u16(0) // writer version
	w.u8(flags)

	if common {
		w.u32(denom)
		w.u32(uint32(rec.BaseHeadroom.N))
		w.u32(uint32(rec.AltHeadroom.N))
		for c := 0; c < channels; c++ {
			ch := rec.Channels[c]
			w.s32(int32(ch.Min.N))
			w.s32(int32(ch.Max.N))
			w.u32(uint32(ch.Gamma.N))
			w.s32(int32(ch.BaseOffset.N))
			w.s32(int32(ch.AltOffset.N))
		}
		return w.buf, nil
	}

	w.unsigned(rec.BaseHeadroom)
	w.unsigned(rec.AltHeadroom)
	for c := 0; c < channels; c++ {
		ch := rec.Channels[c]
		w.signed(ch.Min)
		w.signed(ch.Max)
		w.unsigned(ch.Gamma)
		w.signed(ch.BaseOffset)
		w.signed(ch.AltOffset)
	}
	return w.buf, nil
}

// UnmarshalISO parses ISO 21496-1 binary metadata and validates the result.
func UnmarshalISO(data []byte) (*GainmapMetadata, error) {
	r := &isoReader{buf: data}
	if v := r.u16(); r.err == nil && v != 0 {
		return nil, errors.Wrapf(ErrInvalidMetadata, "unsupported iso minimum version %d", v)
	}
	r.u16()
	flags := r.u8()
	if r.err != nil {
		return nil, r.err
	}

	channels := 1
	if flags&isoMultiChannel != 0 {
		channels = 3
	}
	rec := isoRecord{
		UseBaseColorSpace: flags&isoUseBaseColor != 0,
		Backward:          flags&isoBackwardDirFlag != 0,
	}

	if flags&isoCommonDenom != 0 {
		denom := r.u32()
		rec.BaseHeadroom = isoFraction{N: int64(r.u32()), D: denom}
		rec.AltHeadroom = isoFraction{N: int64(r.u32()), D: denom}
		for c := 0; c < channels; c++ {
			ch := &rec.Channels[c]
			ch.Min = isoFraction{N: int64(r.s32()), D: denom}
			ch.Max = isoFraction{N: int64(r.s32()), D: denom}
			ch.Gamma = isoFraction{N: int64(r.u32()), D: denom}
			ch.BaseOffset = isoFraction{N: int64(r.s32()), D: denom}
			ch.AltOffset = isoFraction{N: int64(r.s32()), D: denom}
		}
	} else {
		rec.BaseHeadroom = r.unsigned()
		rec.AltHeadroom = r.unsigned()
		for c := 0; c < channels; c++ {
			ch := &rec.Channels[c]
			ch.Min = r.signed()
			ch.Max = r.signed()
			ch.Gamma = r.unsigned()
			ch.BaseOffset = r.signed()
			ch.AltOffset = r.signed()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	if rec.Backward {
		return nil, errors.Wrap(ErrInvalidMetadata, "backward direction gain maps are not supported")
	}
	for c := channels; c < 3; c++ {
		rec.Channels[c] = rec.Channels[0]
	}

	m := &GainmapMetadata{
		Version:           metadataVersion,
		UseBaseColorSpace: rec.UseBaseColorSpace,
		HDRCapacityMin:    exp2f(rec.BaseHeadroom.float()),
		HDRCapacityMax:    exp2f(rec.AltHeadroom.float()),
	}
	for c, ch := range rec.Channels {
		m.MinContentBoost[c] = exp2f(ch.Min.float())
		m.MaxContentBoost[c] = exp2f(ch.Max.float())
		m.Gamma[c] = ch.Gamma.float()
		m.OffsetSDR[c] = ch.BaseOffset.float()
		m.OffsetHDR[c] = ch.AltOffset.float()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func toISORecord(m *GainmapMetadata) (isoRecord, error) {
	rec := isoRecord{UseBaseColorSpace: m.UseBaseColorSpace}
	var err error
	if rec.BaseHeadroom, err = unsignedFraction(log2f(m.HDRCapacityMin)); err != nil {
		return rec, errors.Wrap(err, "hdr capacity min")
	}
	if rec.AltHeadroom, err = unsignedFraction(log2f(m.HDRCapacityMax)); err != nil {
		return rec, errors.Wrap(err, "hdr capacity max")
	}
	for c := 0; c < 3; c++ {
		ch := &rec.Channels[c]
		if ch.Min, err = signedFraction(log2f(m.MinContentBoost[c])); err != nil {
			return rec, errors.Wrapf(err, "min content boost[%d]", c)
		}
		if ch.Max, err = signedFraction(log2f(m.MaxContentBoost[c])); err != nil {
			return rec, errors.Wrapf(err, "max content boost[%d]", c)
		}
		if ch.Gamma, err = unsignedFraction(m.Gamma[c]); err != nil {
			return rec, errors.Wrapf(err, "gamma[%d]", c)
		}
		if ch.BaseOffset, err = signedFraction(m.OffsetSDR[c]); err != nil {
			return rec, errors.Wrapf(err, "offset sdr[%d]", c)
		}
		if ch.AltOffset, err = signedFraction(m.OffsetHDR[c]); err != nil {
			return rec, errors.Wrapf(err, "offset hdr[%d]", c)
		}
	}
	return rec, nil
}

func signedFraction(v float32) (isoFraction, error) {
	num, den, ok := continuedFraction(math.Abs(float64(v)), math.MaxInt32)
	if !ok {
		return isoFraction{}, errors.Wrapf(ErrInvalidMetadata, "%v does not fit a signed fraction", v)
	}
	n := int64(num)
	if v < 0 {
		n = -n
	}
	return isoFraction{N: n, D: den}, nil
}

func unsignedFraction(v float32) (isoFraction, error) {
	num, den, ok := continuedFraction(float64(v), math.MaxUint32)
	if !ok {
		return isoFraction{}, errors.Wrapf(ErrInvalidMetadata, "%v does not fit an unsigned fraction", v)
	}
	return isoFraction{N: int64(num), D: den}, nil
}

// continuedFraction approximates v by num/den with num <= maxNum.
func continuedFraction(v float64, maxNum uint32) (uint32, uint32, bool) {
	if math.IsNaN(v) || v < 0 || v > float64(maxNum) {
		return 0, 0, false
	}
	maxDen := float64(math.MaxUint32)
	if v > 1 {
		maxDen = math.Floor(float64(maxNum) / v)
	}

	den, prevDen := uint32(1), uint32(0)
	rem := v - math.Floor(v)
	for i := 0; i < 39; i++ {
		exact := float64(den) * v
		if exact > float64(maxNum) {
			return 0, 0, false
		}
		num := uint32(math.Round(exact))
		if exact == float64(num) || rem == 0 {
			return num, den, true
		}
		rem = 1 / rem
		next := float64(prevDen) + math.Floor(rem)*float64(den)
		if next > maxDen {
			return num, den, true
		}
		prevDen, den = den, uint32(next)
		rem -= math.Floor(rem)
	}
	return uint32(math.Round(float64(den) * v)), den, true
}

type isoWriter struct {
	buf []byte
}

func (w *isoWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *isoWriter) u16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *isoWriter) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *isoWriter) s32(v int32)  { w.u32(uint32(v)) }

func (w *isoWriter) signed(f isoFraction) {
	w.s32(int32(f.N))
	w.u32(f.D)
}

func (w *isoWriter) unsigned(f isoFraction) {
	w.u32(uint32(f.N))
	w.u32(f.D)
}

// isoReader reads big-endian fields, the first short read sticks in err.
type isoReader struct {
	buf []byte
	pos int
	err error
}

func (r *isoReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.buf) {
		r.err = errors.Wrapf(ErrInvalidMetadata, "iso metadata truncated at byte %d", r.pos)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *isoReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *isoReader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *isoReader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *isoReader) s32() int32 { return int32(r.u32()) }

func (r *isoReader) signed() isoFraction {
	n := r.s32()
	return isoFraction{N: int64(n), D: r.u32()}
}

func (r *isoReader) unsigned() isoFraction {
	n := r.u32()
	return isoFraction{N: int64(n), D: r.u32()}
}
