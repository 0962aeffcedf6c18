// Package gainmap implements the gain map photometric codec in pure Go.
//
// Encode derives a per-pixel gain map and metadata from an SDR base image and an
// HDR rendition of the same scene. Decode reconstructs the linear HDR image from the
// base, the gain map and the metadata, optionally limited to a display's headroom.
// Metadata serializes to ISO 21496-1 binary, XMP hdrgm and a JSON or CBOR bundle.
// Container bitstreams such as JPEG/R are left to the caller.
package gainmap
