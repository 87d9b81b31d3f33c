package observation

// ScrapedAlert is one alert entry read off the rendered alert page.
// Every field defaults to "". RawText is only set when none of the
// structured fields could be read.
type ScrapedAlert struct {
	Species    string `json:"species"`
	CommonName string `json:"common_name"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Location   string `json:"location"`
	Observer   string `json:"observer"`
	Count      string `json:"count"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
	RawText    string `json:"raw_text,omitempty"`
}

// Populated reports whether any structured field carries a value.
func (a ScrapedAlert) Populated() bool {
	return a.Species != "" ||
		a.CommonName != "" ||
		a.Date != "" ||
		a.Time != "" ||
		a.Location != "" ||
		a.Observer != "" ||
		a.Count != "" ||
		a.Latitude != "" ||
		a.Longitude != ""
}

// Empty reports whether the alert carries nothing at all, raw text included.
func (a ScrapedAlert) Empty() bool {
	return !a.Populated() && a.RawText == ""
}

// Row renders the alert for CSV export, raw_text only appears when set.
func (a ScrapedAlert) Row() map[string]string {
	row := map[string]string{
		"species":     a.Species,
		"common_name": a.CommonName,
		"date":        a.Date,
		"time":        a.Time,
		"location":    a.Location,
		"observer":    a.Observer,
		"count":       a.Count,
		"latitude":    a.Latitude,
		"longitude":   a.Longitude,
	}
	if a.RawText != "" {
		row["raw_text"] = a.RawText
	}
	return row
}

// Fields is Row as a field map, suitable for Normalize(SchemaAlert, ...).
func (a ScrapedAlert) Fields() map[string]any {
	row := a.Row()
	fields := make(map[string]any, len(row))
	for k, v := range row {
		fields[k] = v
	}
	return fields
}

// NormalizeAlerts maps scraped alerts onto canonical observations.
func NormalizeAlerts(alerts []ScrapedAlert) []Observation {
	out := make([]Observation, len(alerts))
	for i, a := range alerts {
		out[i] = Normalize(SchemaAlert, a.Fields())
	}
	return out
}
