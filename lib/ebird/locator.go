package ebird

import (
	"fmt"
	"net/url"
	"strconv"
)

// DefaultDistance is the radius in km used by geo queries without one.
const DefaultDistance = 25

type locatorKind int

const (
	kindUnknown locatorKind = iota
	kindRegion
	kindHotspot
	kindSpecies
	kindGeo
)

// Locator names what to query. The zero value is not a recognized locator.
type Locator struct {
	kind    locatorKind
	code    string
	species string
	lat     float64
	lng     float64
	dist    float64
}

// Region locates observations in a region code such as US-NY or US-NY-061.
func Region(code string) Locator {
	return Locator{kind: kindRegion, code: code}
}

// Hotspot locates observations at a single eBird location (L-prefixed id).
func Hotspot(locID string) Locator {
	return Locator{kind: kindHotspot, code: locID}
}

// Species locates observations of one species within a region.
func Species(region, speciesCode string) Locator {
	return Locator{kind: kindSpecies, code: region, species: speciesCode}
}

// Geo locates observations within distKm of a point, distKm <= 0 means
// DefaultDistance.
func Geo(lat, lng, distKm float64) Locator {
	if distKm <= 0 {
		distKm = DefaultDistance
	}
	return Locator{kind: kindGeo, lat: lat, lng: lng, dist: distKm}
}

func (l Locator) String() string {
	switch l.kind {
	case kindRegion:
		return "region:" + l.code
	case kindHotspot:
		return "hotspot:" + l.code
	case kindSpecies:
		return fmt.Sprintf("species:%s/%s", l.code, l.species)
	case kindGeo:
		return fmt.Sprintf("geo:%s,%s/%skm", formatFloat(l.lat), formatFloat(l.lng), formatFloat(l.dist))
	}
	return "unknown"
}

// endpoint resolves the locator into a path relative to the base url plus
// any locator specific query params. notable only applies to regions.
func (l Locator) endpoint(notable bool) (string, url.Values, bool) {
	params := url.Values{}
	switch l.kind {
	case kindRegion:
		if l.code == "" {
			return "", nil, false
		}
		path := "/data/obs/" + url.PathEscape(l.code) + "/recent"
		if notable {
			path += "/notable"
		}
		return path, params, true
	case kindHotspot:
		if l.code == "" {
			return "", nil, false
		}
		return "/data/obs/" + url.PathEscape(l.code) + "/recent", params, true
	case kindSpecies:
		if l.code == "" || l.species == "" {
			return "", nil, false
		}
		return "/data/obs/" + url.PathEscape(l.code) + "/recent/" + url.PathEscape(l.species), params, true
	case kindGeo:
		params.Set("lat", formatFloat(l.lat))
		params.Set("lng", formatFloat(l.lng))
		params.Set("dist", formatFloat(l.dist))
		return "/data/obs/geo/recent", params, true
	}
	return "", nil, false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
