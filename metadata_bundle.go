package gainmap

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// MetadataBundleFormat identifies the JSON sidecar layout written next to a gain map.
const MetadataBundleFormat = "gainmap-meta-1"

// MetadataBundle is a JSON sidecar carrying gain map metadata in all supported forms.
// Byte fields are base64-encoded in JSON.
type MetadataBundle struct {
	Format   string           `json:"format"`
	Metadata *GainmapMetadata `json:"metadata,omitempty"`
	ISO      []byte           `json:"iso,omitempty"`
	XMP      []byte           `json:"xmp,omitempty"`
}

// NewMetadataBundle serializes m into every supported representation.
func NewMetadataBundle(m *GainmapMetadata) (*MetadataBundle, error) {
	iso, err := MarshalISO(m)
	if err != nil {
		return nil, errors.Wrap(err, "iso")
	}
	xmp, err := MarshalXMP(m)
	if err != nil {
		return nil, errors.Wrap(err, "xmp")
	}
	return &MetadataBundle{
		Format:   MetadataBundleFormat,
		Metadata: m,
		ISO:      iso,
		XMP:      xmp,
	}, nil
}

// Validate ensures the bundle carries usable metadata.
func (b *MetadataBundle) Validate() error {
	if b == nil {
		return errors.New("metadata bundle is nil")
	}
	if b.Format != MetadataBundleFormat {
		return errors.Errorf("unsupported metadata bundle format %q", b.Format)
	}
	if b.Metadata == nil && len(b.ISO) == 0 && len(b.XMP) == 0 {
		return errors.Wrap(ErrInvalidMetadata, "metadata bundle is empty")
	}
	return nil
}

// GainmapMetadata returns the gain map metadata, preferring the structured form,
// then ISO 21496-1, then XMP.
func (b *MetadataBundle) GainmapMetadata() (*GainmapMetadata, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	switch {
	case b.Metadata != nil:
		if err := b.Metadata.Validate(); err != nil {
			return nil, err
		}
		return b.Metadata, nil
	case len(b.ISO) > 0:
		return UnmarshalISO(b.ISO)
	default:
		return ParseXMP(b.XMP)
	}
}

// MarshalBundle encodes the bundle as indented JSON.
func MarshalBundle(b *MetadataBundle) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(b, "", "  ")
}

// UnmarshalBundle decodes and validates a JSON bundle.
func UnmarshalBundle(data []byte) (*MetadataBundle, error) {
	var b MetadataBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(err, "decode metadata bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// MarshalBundleCBOR encodes the bundle as CBOR, a compact binary sidecar.
func MarshalBundleCBOR(b *MetadataBundle) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return cbor.Marshal(b)
}

// UnmarshalBundleCBOR decodes and validates a CBOR bundle.
func UnmarshalBundleCBOR(data []byte) (*MetadataBundle, error) {
	var b MetadataBundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(err, "decode metadata bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
