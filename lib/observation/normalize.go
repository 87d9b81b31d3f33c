package observation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Schema is a field table: for every canonical field it lists the source
// keys that may carry it. The first key holding a non-empty value wins.
// A field with no keys always takes its default.
type Schema struct {
	Name string

	SpeciesCode     []string
	CommonName      []string
	ScientificName  []string
	LocationID      []string
	LocationName    []string
	Count           []string
	Latitude        []string
	Longitude       []string
	LocationPrivate []string
	Reviewed        []string
	Valid           []string
	ObserverName    []string
	SubmissionID    []string

	// every non-empty part is joined with a space
	ObservedAtParts []string
	// has_media is true when any of these flags is true
	Media []string
}

// SchemaAPI is the eBird API 2.0 observation format.
var SchemaAPI = Schema{
	Name:            "ebird-api",
	SpeciesCode:     []string{"speciesCode"},
	CommonName:      []string{"comName"},
	ScientificName:  []string{"sciName"},
	LocationID:      []string{"locId"},
	LocationName:    []string{"locName"},
	ObservedAtParts: []string{"obsDt"},
	Count:           []string{"howMany"},
	Latitude:        []string{"lat"},
	Longitude:       []string{"lng"},
	LocationPrivate: []string{"locationPrivate"},
	Reviewed:        []string{"obsReviewed"},
	Valid:           []string{"obsValid"},
	ObserverName:    []string{"userDisplayName"},
	SubmissionID:    []string{"subId"},
	Media:           []string{"hasComments", "hasRichMedia"},
}

// SchemaAlert is the format produced by the alert page scraper.
var SchemaAlert = Schema{
	Name:            "ebird-alert",
	CommonName:      []string{"species", "common_name"},
	LocationName:    []string{"location"},
	ObservedAtParts: []string{"date", "time"},
	Count:           []string{"count"},
	Latitude:        []string{"latitude"},
	Longitude:       []string{"longitude"},
	ObserverName:    []string{"observer"},
}

// SchemaCanonical reads records that already use canonical field names.
var SchemaCanonical = Schema{
	Name:            "canonical",
	SpeciesCode:     []string{"species_code"},
	CommonName:      []string{"common_name"},
	ScientificName:  []string{"scientific_name"},
	LocationID:      []string{"location_id"},
	LocationName:    []string{"location_name"},
	ObservedAtParts: []string{"observed_at"},
	Count:           []string{"count"},
	Latitude:        []string{"latitude"},
	Longitude:       []string{"longitude"},
	LocationPrivate: []string{"location_private"},
	Reviewed:        []string{"reviewed"},
	Valid:           []string{"valid"},
	ObserverName:    []string{"observer_name"},
	SubmissionID:    []string{"submission_id"},
	Media:           []string{"has_media"},
}

// Normalize maps one raw record onto the canonical Observation. It never
// fails: missing or unusable values fall back to the field default.
func Normalize(s Schema, fields map[string]any) Observation {
	o := Default()

	o.SpeciesCode = firstString(fields, s.SpeciesCode)
	o.CommonName = firstString(fields, s.CommonName)
	o.ScientificName = firstString(fields, s.ScientificName)
	o.LocationID = firstString(fields, s.LocationID)
	o.LocationName = firstString(fields, s.LocationName)
	o.ObserverName = firstString(fields, s.ObserverName)
	o.SubmissionID = firstString(fields, s.SubmissionID)

	var parts []string
	for _, k := range s.ObservedAtParts {
		v := stringValue(fields[k])
		if v != "" {
			parts = append(parts, v)
		}
	}
	o.ObservedAt = strings.Join(parts, " ")

	if v, ok := first(fields, s.Count); ok {
		o.Count = countValue(v)
	}
	o.Latitude = firstFloat(fields, s.Latitude)
	o.Longitude = firstFloat(fields, s.Longitude)

	o.LocationPrivate = firstBool(fields, s.LocationPrivate, false)
	o.Reviewed = firstBool(fields, s.Reviewed, false)
	o.Valid = firstBool(fields, s.Valid, true)

	for _, k := range s.Media {
		if boolValue(fields[k], false) {
			o.HasMedia = true
			break
		}
	}

	return o
}

// NormalizeRaws normalizes every record of a batch with the same schema.
func NormalizeRaws(s Schema, raws []Raw) []Observation {
	out := make([]Observation, len(raws))
	for i, r := range raws {
		out[i] = Normalize(s, r.Fields)
	}
	return out
}

func first(fields map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func firstString(fields map[string]any, keys []string) string {
	v, _ := first(fields, keys)
	return stringValue(v)
}

func firstFloat(fields map[string]any, keys []string) *float64 {
	for _, k := range keys {
		if f, ok := floatValue(fields[k]); ok {
			return floatPtr(f)
		}
	}
	return nil
}

func firstBool(fields map[string]any, keys []string, def bool) bool {
	v, ok := first(fields, keys)
	if !ok {
		return def
	}
	return boolValue(v, def)
}

func stringValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func countValue(v any) Count {
	switch v := v.(type) {
	case int:
		return KnownCount(v)
	case int64:
		return KnownCount(int(v))
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return KnownCount(int(v))
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return KnownCount(int(n))
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return KnownCount(n)
		}
	}
	return UnknownCount()
}

func floatValue(v any) (float64, bool) {
	var (
		f   float64
		err error
	)
	switch v := v.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func boolValue(v any, def bool) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}
