// Package observation holds the canonical Observation record and the
// normalizer that maps raw API and scraped records onto it.
package observation

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const UnknownCountText = "unknown"

// Count is an individual count, or "unknown" when the observer only
// reported presence.
type Count struct {
	value int
	known bool
}

func KnownCount(n int) Count {
	return Count{value: n, known: true}
}

func UnknownCount() Count {
	return Count{}
}

func (c Count) Value() (int, bool) {
	return c.value, c.known
}

func (c Count) String() string {
	if !c.known {
		return UnknownCountText
	}
	return strconv.Itoa(c.value)
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.known {
		return json.Marshal(UnknownCountText)
	}
	return json.Marshal(c.value)
}

func (c *Count) UnmarshalJSON(data []byte) error {
	var v any
	err := json.Unmarshal(data, &v)
	if err != nil {
		return err
	}
	*c = countValue(v)
	return nil
}

// Observation is the canonical record produced regardless of source.
type Observation struct {
	SpeciesCode     string   `json:"species_code"`
	CommonName      string   `json:"common_name"`
	ScientificName  string   `json:"scientific_name"`
	LocationID      string   `json:"location_id"`
	LocationName    string   `json:"location_name"`
	ObservedAt      string   `json:"observed_at"`
	Count           Count    `json:"count"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	LocationPrivate bool     `json:"location_private"`
	Reviewed        bool     `json:"reviewed"`
	Valid           bool     `json:"valid"`
	ObserverName    string   `json:"observer_name"`
	SubmissionID    string   `json:"submission_id"`
	HasMedia        bool     `json:"has_media"`
}

// Default is the observation every missing field falls back to.
func Default() Observation {
	return Observation{
		Count: UnknownCount(),
		Valid: true,
	}
}

// Fields returns the observation keyed by canonical field names, it is
// the inverse of Normalize(SchemaCanonical, ...).
func (o Observation) Fields() map[string]any {
	var count any = UnknownCountText
	if n, ok := o.Count.Value(); ok {
		count = n
	}
	var lat, lng any
	if o.Latitude != nil {
		lat = *o.Latitude
	}
	if o.Longitude != nil {
		lng = *o.Longitude
	}
	return map[string]any{
		"species_code":     o.SpeciesCode,
		"common_name":      o.CommonName,
		"scientific_name":  o.ScientificName,
		"location_id":      o.LocationID,
		"location_name":    o.LocationName,
		"observed_at":      o.ObservedAt,
		"count":            count,
		"latitude":         lat,
		"longitude":        lng,
		"location_private": o.LocationPrivate,
		"reviewed":         o.Reviewed,
		"valid":            o.Valid,
		"observer_name":    o.ObserverName,
		"submission_id":    o.SubmissionID,
		"has_media":        o.HasMedia,
	}
}

// Row renders every canonical field as a CSV cell.
func (o Observation) Row() map[string]string {
	row := make(map[string]string, 15)
	for k, v := range o.Fields() {
		row[k] = cell(v)
	}
	return row
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
