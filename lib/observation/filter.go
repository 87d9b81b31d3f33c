package observation

import "rarebird/lib/textutil"

// FilterByLocation keeps observations whose location name contains any of
// the needles, ignoring case. No needles keeps everything.
func FilterByLocation(obs []Observation, needles []string) []Observation {
	if len(needles) == 0 {
		return obs
	}
	var out []Observation
	for _, o := range obs {
		if textutil.MatchAny(o.LocationName, needles) {
			out = append(out, o)
		}
	}
	return out
}

// FilterRawByLocation is FilterByLocation over raw records, reading the
// location name through the given schema.
func FilterRawByLocation(s Schema, raws []Raw, needles []string) []Raw {
	if len(needles) == 0 {
		return raws
	}
	var out []Raw
	for _, r := range raws {
		if textutil.MatchAny(firstString(r.Fields, s.LocationName), needles) {
			out = append(out, r)
		}
	}
	return out
}
