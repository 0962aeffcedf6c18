package gainmap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const xmpNamespace = "http://ns.adobe.com/hdr-gain-map/1.0/"

var (
	reXMPAttr = regexp.MustCompile(`hdrgm:(\w+)="([^"]*)"`)
	reXMPSeq  = regexp.MustCompile(`(?s)<hdrgm:(\w+)>\s*<rdf:Seq>(.*?)</rdf:Seq>\s*</hdrgm:\w+>`)
	reXMPLi   = regexp.MustCompile(`<rdf:li>([^<]*)</rdf:li>`)
)

// ParseXMP reads hdrgm gain map properties from an XMP packet. Values may be given
// as single attributes or as three-element rdf:Seq lists.
func ParseXMP(packet []byte) (*GainmapMetadata, error) {
	xml := string(packet)
	if !strings.Contains(xml, xmpNamespace) {
		return nil, errors.Wrap(ErrInvalidMetadata, "xmp lacks the hdrgm namespace")
	}

	props := map[string][]string{}
	for _, m := range reXMPAttr.FindAllStringSubmatch(xml, -1) {
		props[m[1]] = []string{m[2]}
	}
	for _, m := range reXMPSeq.FindAllStringSubmatch(xml, -1) {
		var vals []string
		for _, li := range reXMPLi.FindAllStringSubmatch(m[2], -1) {
			vals = append(vals, strings.TrimSpace(li[1]))
		}
		if len(vals) == 0 {
			return nil, errors.Wrapf(ErrInvalidMetadata, "xmp %s has an empty rdf:Seq", m[1])
		}
		props[m[1]] = vals
	}

	if v, ok := props["BaseRenditionIsHDR"]; ok && strings.EqualFold(v[0], "true") {
		return nil, errors.Wrap(ErrInvalidMetadata, "hdr base rendition is not supported")
	}

	meta := NewGainmapMetadata()
	version, ok := props["Version"]
	if !ok {
		return nil, errors.Wrap(ErrInvalidMetadata, "xmp missing Version")
	}
	meta.Version = version[0]

	for _, name := range []string{"GainMapMax", "HDRCapacityMax"} {
		if _, ok := props[name]; !ok {
			return nil, errors.Wrapf(ErrInvalidMetadata, "xmp missing %s", name)
		}
	}

	channels := []struct {
		name string
		dst  *[3]float32
		log  bool
	}{
		{"GainMapMin", &meta.MinContentBoost, true},
		{"GainMapMax", &meta.MaxContentBoost, true},
		{"Gamma", &meta.Gamma, false},
		{"OffsetSDR", &meta.OffsetSDR, false},
		{"OffsetHDR", &meta.OffsetHDR, false},
	}
	for _, ch := range channels {
		vals, ok := props[ch.name]
		if !ok {
			continue
		}
		if len(vals) != 1 && len(vals) != 3 {
			return nil, errors.Wrapf(ErrInvalidMetadata, "xmp %s has %d values", ch.name, len(vals))
		}
		for c := 0; c < 3; c++ {
			s := vals[0]
			if len(vals) == 3 {
				s = vals[c]
			}
			v, err := parseXMPFloat(ch.name, s)
			if err != nil {
				return nil, err
			}
			if ch.log {
				v = exp2f(v)
			}
			ch.dst[c] = v
		}
	}

	for _, hc := range []struct {
		name string
		dst  *float32
	}{
		{"HDRCapacityMin", &meta.HDRCapacityMin},
		{"HDRCapacityMax", &meta.HDRCapacityMax},
	} {
		vals, ok := props[hc.name]
		if !ok {
			continue
		}
		v, err := parseXMPFloat(hc.name, vals[0])
		if err != nil {
			return nil, err
		}
		*hc.dst = exp2f(v)
	}

	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

func parseXMPFloat(name, s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidMetadata, "xmp %s: %v", name, err)
	}
	return float32(v), nil
}

// MarshalXMP renders metadata as a standalone XMP packet in the hdrgm namespace.
// Boosts and capacities are written as log2 values.
func MarshalXMP(m *GainmapMetadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	version := m.Version
	if version == "" {
		version = metadataVersion
	}

	single := m.AllChannelsIdentical()
	logMin := [3]float32{log2f(m.MinContentBoost[0]), log2f(m.MinContentBoost[1]), log2f(m.MinContentBoost[2])}
	logMax := [3]float32{log2f(m.MaxContentBoost[0]), log2f(m.MaxContentBoost[1]), log2f(m.MaxContentBoost[2])}

	var attrs, seqs strings.Builder
	fmt.Fprintf(&attrs, "\n      hdrgm:Version=%q", version)
	fmt.Fprintf(&attrs, "\n      hdrgm:BaseRenditionIsHDR=%q", "False")
	fmt.Fprintf(&attrs, "\n      hdrgm:HDRCapacityMin=%q", formatXMPFloat(log2f(m.HDRCapacityMin)))
	fmt.Fprintf(&attrs, "\n      hdrgm:HDRCapacityMax=%q", formatXMPFloat(log2f(m.HDRCapacityMax)))

	for _, p := range []struct {
		name string
		v    [3]float32
	}{
		{"GainMapMin", logMin},
		{"GainMapMax", logMax},
		{"Gamma", m.Gamma},
		{"OffsetSDR", m.OffsetSDR},
		{"OffsetHDR", m.OffsetHDR},
	} {
		if single {
			fmt.Fprintf(&attrs, "\n      hdrgm:%s=%q", p.name, formatXMPFloat(p.v[0]))
			continue
		}
		fmt.Fprintf(&seqs, "\n      <hdrgm:%s>\n        <rdf:Seq>", p.name)
		for _, v := range p.v {
			fmt.Fprintf(&seqs, "\n          <rdf:li>%s</rdf:li>", formatXMPFloat(v))
		}
		fmt.Fprintf(&seqs, "\n        </rdf:Seq>\n      </hdrgm:%s>", p.name)
	}

	var b strings.Builder
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/">` + "\n")
	b.WriteString(`  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`    <rdf:Description rdf:about=""` + "\n")
	b.WriteString(`      xmlns:hdrgm="` + xmpNamespace + `"`)
	b.WriteString(attrs.String())
	b.WriteString(">")
	b.WriteString(seqs.String())
	b.WriteString("\n    </rdf:Description>\n  </rdf:RDF>\n</x:xmpmeta>\n")
	return []byte(b.String()), nil
}

func formatXMPFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
