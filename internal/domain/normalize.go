package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MissingValuePolicy decides what a recognized record with a missing
// coordinate becomes.
type MissingValuePolicy string

const (
	// MissingAsZero folds a missing coordinate to 0, as the reference client does.
	MissingAsZero MissingValuePolicy = "zero"

	// MissingRejected treats a missing coordinate as ErrMalformedSchema.
	MissingRejected MissingValuePolicy = "reject"
)

// ParseMissingValuePolicy validates a policy name. Empty selects MissingAsZero.
func ParseMissingValuePolicy(s string) (MissingValuePolicy, error) {
	switch MissingValuePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MissingAsZero:
		return MissingAsZero, nil
	case MissingRejected:
		return MissingRejected, nil
	default:
		return "", fmt.Errorf("unknown missing value policy %q", s)
	}
}

// rawSite is the shape-independent result of decoding one upstream record.
type rawSite struct {
	ID   string
	Name string
	Lat  Number
	Lng  Number

	// Origin and Enrichment are only set when the record is already canonical.
	Origin     Origin
	Enrichment *Enrichment
}

// shapeDecoder reports matched=false when the record does not carry the
// shape's coordinate keys at all.
type shapeDecoder func(fields map[string]json.RawMessage) (site rawSite, matched bool, err error)

// shapes lists the accepted upstream record shapes in priority order.
var shapes = []struct {
	name   string
	decode shapeDecoder
}{
	{"flat", flatShape("id", "name", "latitude", "longitude")},
	{"capitalized", flatShape("ID", "Name", "Latitude", "Longitude")},
	{"nested", nestedShape},
}

// Normalizer converts upstream location records into canonical Locations.
type Normalizer struct {
	policy MissingValuePolicy
}

// NewNormalizer creates a Normalizer. An empty policy selects MissingAsZero.
func NewNormalizer(policy MissingValuePolicy) Normalizer {
	if policy == "" {
		policy = MissingAsZero
	}
	return Normalizer{policy: policy}
}

// Normalize decodes a single record. position is the record's 1-based index
// in its upstream list and is used for default ids and names.
func (n Normalizer) Normalize(record json.RawMessage, origin Origin, position int) (Location, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil || fields == nil {
		return Location{}, fmt.Errorf("record %d: %w: not an object", position, ErrMalformedSchema)
	}

	for _, shape := range shapes {
		site, matched, err := shape.decode(fields)
		if !matched {
			continue
		}
		if err != nil {
			return Location{}, fmt.Errorf("record %d (%s shape): %w: %w", position, shape.name, ErrMalformedSchema, err)
		}
		if err := decodeCanonicalFields(fields, &site); err != nil {
			return Location{}, fmt.Errorf("record %d: %w: %w", position, ErrMalformedSchema, err)
		}
		return n.canonical(site, origin, position)
	}

	return Location{}, fmt.Errorf("record %d: %w: no coordinate fields", position, ErrMalformedSchema)
}

// NormalizeAll decodes an upstream list payload. A single JSON object is
// treated as a one-element list and null as an empty list. Records that fail
// to normalize are skipped and reported in rejected; err is set only when the
// payload itself is unusable.
func (n Normalizer) NormalizeAll(payload []byte, origin Origin) (locations []Location, rejected []error, err error) {
	records, err := splitRecords(payload)
	if err != nil {
		return nil, nil, err
	}

	locations = make([]Location, 0, len(records))
	for i, rec := range records {
		loc, err := n.Normalize(rec, origin, i+1)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		locations = append(locations, loc)
	}
	return locations, rejected, nil
}

func (n Normalizer) canonical(site rawSite, origin Origin, position int) (Location, error) {
	if n.policy == MissingRejected && (!site.Lat.Valid || !site.Lng.Valid) {
		return Location{}, fmt.Errorf("record %d: %w: missing coordinate", position, ErrMalformedSchema)
	}

	lat, lng := site.Lat.Or(0), site.Lng.Or(0)
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return Location{}, fmt.Errorf("record %d: %w: non-finite coordinate", position, ErrMalformedSchema)
	}

	if site.Origin.Valid() {
		origin = site.Origin
	}

	id := site.ID
	if id == "" {
		id = fmt.Sprintf("%s-%d", origin, position)
	}

	name := site.Name
	if name == "" && origin == OriginExisting {
		name = fmt.Sprintf("Location %d", position)
	}

	return Location{
		ID:          id,
		Name:        name,
		Coordinates: Coordinates{Latitude: lat, Longitude: lng},
		Origin:      origin,
		Enrichment:  site.Enrichment,
	}, nil
}

// decodeCanonicalFields carries over the origin and enrichment of a record
// that was marshaled from a Location. An unknown origin is ignored and the
// endpoint's origin applies. Enrichment decodes whole or not at all.
func decodeCanonicalFields(fields map[string]json.RawMessage, site *rawSite) error {
	site.Origin = Origin(decodeString(fields["origin"]))
	if !present(fields, "enrichment") {
		return nil
	}
	var e Enrichment
	if err := json.Unmarshal(fields["enrichment"], &e); err != nil {
		return fmt.Errorf("field enrichment: %w", err)
	}
	site.Enrichment = &e
	return nil
}

func splitRecords(payload []byte) ([]json.RawMessage, error) {
	payload = bytes.TrimSpace(payload)
	switch {
	case len(payload) == 0, bytes.Equal(payload, []byte("null")):
		return nil, nil
	case payload[0] == '[':
		var records []json.RawMessage
		if err := json.Unmarshal(payload, &records); err != nil {
			return nil, fmt.Errorf("%w: decode list: %w", ErrMalformedSchema, err)
		}
		return records, nil
	case payload[0] == '{':
		return []json.RawMessage{payload}, nil
	default:
		return nil, fmt.Errorf("%w: payload is neither a list nor an object", ErrMalformedSchema)
	}
}

func flatShape(idKey, nameKey, latKey, lngKey string) shapeDecoder {
	return func(fields map[string]json.RawMessage) (rawSite, bool, error) {
		if !present(fields, latKey) && !present(fields, lngKey) {
			return rawSite{}, false, nil
		}

		var site rawSite
		var err error
		if site.Lat, err = decodeNumber(fields, latKey); err != nil {
			return rawSite{}, true, err
		}
		if site.Lng, err = decodeNumber(fields, lngKey); err != nil {
			return rawSite{}, true, err
		}
		site.ID = decodeIdentifier(fields[idKey])
		site.Name = decodeString(fields[nameKey])
		return site, true, nil
	}
}

func nestedShape(fields map[string]json.RawMessage) (rawSite, bool, error) {
	if !present(fields, "position") {
		return rawSite{}, false, nil
	}

	var pos map[string]json.RawMessage
	if err := json.Unmarshal(fields["position"], &pos); err != nil || pos == nil {
		return rawSite{}, false, nil
	}
	if !present(pos, "lat") && !present(pos, "lng") {
		return rawSite{}, false, nil
	}

	var site rawSite
	var err error
	if site.Lat, err = decodeNumber(pos, "lat"); err != nil {
		return rawSite{}, true, err
	}
	if site.Lng, err = decodeNumber(pos, "lng"); err != nil {
		return rawSite{}, true, err
	}
	site.ID = decodeIdentifier(fields["id"])
	site.Name = decodeString(fields["name"])
	return site, true, nil
}

// present reports whether key exists with a non-null value. Keys match
// exactly; encoding/json's case-insensitive field matching would blur the
// distinction between the flat and capitalized shapes.
func present(fields map[string]json.RawMessage, key string) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	return !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeNumber(fields map[string]json.RawMessage, key string) (Number, error) {
	raw, ok := fields[key]
	if !ok {
		return Number{}, nil
	}
	var n Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return Number{}, fmt.Errorf("field %s: %w", key, err)
	}
	return n, nil
}

// decodeIdentifier accepts string or numeric ids.
func decodeIdentifier(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

func decodeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
