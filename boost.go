package gainmap

// Boost holds the per-channel content boost range of a gain buffer in linear scale.
type Boost struct {
	Min [3]float32
	Max [3]float32
}

// NewBoost returns the identity of the boost reduction: minimum seeded with PQMax,
// maximum seeded with 0.
func NewBoost() Boost {
	return Boost{
		Min: [3]float32{PQMax, PQMax, PQMax},
		Max: [3]float32{0, 0, 0},
	}
}

// Merge folds two partial reductions with element-wise min/max.
func (b Boost) Merge(o Boost) Boost {
	for c := 0; c < 3; c++ {
		b.Min[c] = min(b.Min[c], o.Min[c])
		b.Max[c] = max(b.Max[c], o.Max[c])
	}
	return b
}

// HDRCapacityMax derives the capacity at which the map applies fully:
// the largest channel boost, at least 1+CapacityEpsilon, moved off integer values.
func (b Boost) HDRCapacityMax() float32 {
	c := max(max3(b.Max[0], b.Max[1], b.Max[2]), 1+CapacityEpsilon)
	if c == float32(int64(c)) {
		c += CapacityEpsilon
	}
	return c
}

// Bounded returns b with every channel that saw no samples, where max is still
// below min, reset to the identity range [1, 1].
func (b Boost) Bounded() Boost {
	for c := 0; c < 3; c++ {
		if b.Max[c] < b.Min[c] {
			b.Min[c], b.Max[c] = 1, 1
		}
	}
	return b
}

type reduceConfig struct {
	workers   int
	laneWidth int
	chunkRows int
}

// ReduceOption configures ReduceBoost. None of the options change the result.
type ReduceOption func(*reduceConfig)

// WithWorkers limits the number of goroutines scanning chunks.
func WithWorkers(n int) ReduceOption {
	return func(c *reduceConfig) { c.workers = n }
}

// WithLaneWidth sets how many RGBA pixels the kernel compares per step, 1 is scalar.
func WithLaneWidth(n int) ReduceOption {
	return func(c *reduceConfig) { c.laneWidth = n }
}

// WithChunkRows sets the number of rows per independently reduced chunk.
func WithChunkRows(n int) ReduceOption {
	return func(c *reduceConfig) { c.chunkRows = n }
}

// ReduceBoost scans a linear gain buffer and returns the per-channel minimum and
// maximum gain. Alpha is ignored. Rows are split into chunks reduced in parallel
// and folded with Boost.Merge.
func ReduceBoost(gain *Image, opts ...ReduceOption) (Boost, error) {
	if err := gain.Validate(); err != nil {
		return NewBoost(), err
	}
	cfg := reduceConfig{laneWidth: defaultLaneWidth, chunkRows: defaultChunkRows}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.laneWidth < 1 {
		cfg.laneWidth = 1
	}
	if cfg.chunkRows < 1 {
		cfg.chunkRows = defaultChunkRows
	}

	partial := make([]Boost, bandCount(gain.Height, cfg.chunkRows))
	direct := gain.Format == FormatFloat32 && gain.Channels == 4

	forEachBand(gain.Height, cfg.chunkRows, cfg.workers, func(band, y0, y1 int) {
		k := newLaneKernel(cfg.laneWidth)
		var row []float32
		if !direct {
			row = make([]float32, gain.Width*4)
		}
		for y := y0; y < y1; y++ {
			if direct {
				off := y * gain.Stride
				k.scan(gain.Pix32[off : off+gain.Width*4])
				continue
			}
			gain.loadRow(y, 0, gain.Width, row)
			k.scan(row)
		}
		partial[band] = k.result()
	})

	b := NewBoost()
	for _, p := range partial {
		b = b.Merge(p)
	}
	return b, nil
}

// laneKernel keeps running min/max over interleaved RGBA samples, laneWidth pixels per step.
// The alpha lane is accumulated like the others and dropped when lanes are folded.
type laneKernel struct {
	mins []float32
	maxs []float32
	tail Boost
}

func newLaneKernel(laneWidth int) *laneKernel {
	k := &laneKernel{
		mins: make([]float32, laneWidth*4),
		maxs: make([]float32, laneWidth*4),
		tail: NewBoost(),
	}
	for i := range k.mins {
		k.mins[i] = PQMax
	}
	return k
}

func (k *laneKernel) scan(px []float32) {
	w := len(k.mins)
	n := len(px) - len(px)%w
	for i := 0; i < n; i += w {
		v := px[i : i+w]
		for j, s := range v {
			if s < k.mins[j] {
				k.mins[j] = s
			}
			if s > k.maxs[j] {
				k.maxs[j] = s
			}
		}
	}
	for i := n; i+3 < len(px); i += 4 {
		for c := 0; c < 3; c++ {
			s := px[i+c]
			if s < k.tail.Min[c] {
				k.tail.Min[c] = s
			}
			if s > k.tail.Max[c] {
				k.tail.Max[c] = s
			}
		}
	}
}

func (k *laneKernel) result() Boost {
	b := k.tail
	for j := 0; j < len(k.mins); j += 4 {
		for c := 0; c < 3; c++ {
			b.Min[c] = min(b.Min[c], k.mins[j+c])
			b.Max[c] = max(b.Max[c], k.maxs[j+c])
		}
	}
	return b
}
