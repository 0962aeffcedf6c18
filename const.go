package gainmap

const (
	sdrWhiteNits = 203.0
	pqMaxNits    = 10000.0
)

// PQMax is the practical ceiling of the PQ transfer function relative to SDR white.
// BoostReducer seeds its per-channel minimum with it.
const PQMax = float32(pqMaxNits / sdrWhiteNits)

// CapacityEpsilon nudges HDR capacity off integer values.
const CapacityEpsilon = 1e-4

const (
	defaultOffset      = 1.0 / 64.0
	defaultGamma       = 1.0
	defaultLaneWidth   = 4
	defaultChunkRows   = 64
	defaultHDRCapacity = 1.0
)

const (
	metadataVersion = "1.0"
)
