package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"rarebird/lib/observation"
	"sort"
	"testing"
	"time"

	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, time.January, 5, 8, 30, 15, 0, time.UTC)

func newExporter(t testing.TB) Exporter {
	return Exporter{
		Dir:    t.TempDir(),
		Prefix: "ebird_observations",
		Now:    func() time.Time { return fixedTime },
	}
}

func readCSV(t testing.TB, path string) [][]string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestFilename(t *testing.T) {
	e := newExporter(t)
	require.Equal(t, "ebird_observations_20240105_083015.csv", e.Filename("csv"))
	require.Equal(t, "ebird_observations_20240105_083015.json", e.Filename("json"))
}

func TestBatchSharesTimestamp(t *testing.T) {
	tick := fixedTime
	e := Exporter{Prefix: "ny_rare_birds", Now: func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}}

	batch := e.Batch()
	require.Equal(t, "ny_rare_birds_20240105_083016.csv", batch.Filename("csv"))
	require.Equal(t, "ny_rare_birds_20240105_083016.json", batch.Filename("json"))
	require.Equal(t, "ny_rare_birds_20240105_083017.csv", e.Filename("csv"))
}

func TestCSVHeaderIsSortedUnion(t *testing.T) {
	e := newExporter(t)
	rows := []map[string]string{
		{"a": "1", "b": "2"},
		{"a": "3", "c": "4"},
	}

	path, err := e.SaveCSV(context.Background(), rows, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(e.Dir, "ebird_observations_20240105_083015.csv"), path)

	records := readCSV(t, path)
	require.Equal(t, [][]string{
		{"a", "b", "c"},
		{"1", "2", ""},
		{"3", "", "4"},
	}, records)
}

func TestCSVRaggedRandomKeys(t *testing.T) {
	e := newExporter(t)

	var rows []map[string]string
	union := map[string]bool{}
	for i := 0; i < 5; i++ {
		row := map[string]string{}
		for j := 0; j < 3; j++ {
			key, err := random.String(6)
			require.NoError(t, err)
			row[key] = "v"
			union[key] = true
		}
		rows = append(rows, row)
	}

	path, err := e.SaveCSV(context.Background(), rows, "ragged.csv")
	require.NoError(t, err)

	var expect []string
	for k := range union {
		expect = append(expect, k)
	}
	sort.Strings(expect)

	records := readCSV(t, path)
	require.Equal(t, expect, records[0])
	require.Len(t, records, len(rows)+1)
	for _, record := range records[1:] {
		require.Len(t, record, len(expect))
	}
}

func TestEmptyBatchWritesNothing(t *testing.T) {
	e := newExporter(t)

	path, err := e.SaveCSV(context.Background(), nil, "")
	require.NoError(t, err)
	require.Equal(t, "", path)

	path, err = SaveJSON[observation.Raw](context.Background(), e, nil, "")
	require.NoError(t, err)
	require.Equal(t, "", path)

	entries, err := os.ReadDir(e.Dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestJSONRoundTrip(t *testing.T) {
	e := newExporter(t)
	input := `[{"speciesCode":"snoowl1","comName":"Snowy Owl","howMany":2,"lat":40.7,"lng":-73.9,"locName":"Jones Beach <West End> & Marina"},{"comName":"Ivory Gull","obsValid":true,"zzz":null}]`

	raws, err := observation.DecodeRaws([]byte(input))
	require.NoError(t, err)

	path, err := SaveJSON(context.Background(), e, raws, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(e.Dir, "ebird_observations_20240105_083015.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  {\n    \"speciesCode\": \"snoowl1\",")
	require.Contains(t, string(data), "<West End> & Marina")

	reread, err := observation.DecodeRaws(data)
	require.NoError(t, err)
	require.Len(t, reread, len(raws))
	for i := range raws {
		require.Equal(t, raws[i].Fields, reread[i].Fields)
	}

	// re-encoding the reread artifact reproduces the original compact input
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	require.NoError(t, enc.Encode(reread))
	require.Equal(t, input+"\n", buf.String())
}

func TestSaveWithExplicitFilename(t *testing.T) {
	e := newExporter(t)
	path, err := SaveJSON(context.Background(), e, []observation.ScrapedAlert{{Species: "Snowy Owl"}}, "alerts.json")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(e.Dir, "alerts.json"), path)

	abs := filepath.Join(t.TempDir(), "abs.csv")
	path, err = e.SaveCSV(context.Background(), []map[string]string{{"a": "1"}}, abs)
	require.NoError(t, err)
	require.Equal(t, abs, path)
}

func TestSnowyOwlEndToEnd(t *testing.T) {
	raws, err := observation.DecodeRaws([]byte(`[{"comName":"Snowy Owl","obsDt":"2024-01-05 08:00","howMany":2,"lat":40.7,"lng":-73.9}]`))
	require.NoError(t, err)
	obs := observation.NormalizeRaws(observation.SchemaAPI, raws)

	e := newExporter(t)
	path, err := e.SaveCSV(context.Background(), Rows(obs), "")
	require.NoError(t, err)

	records := readCSV(t, path)
	require.Len(t, records, 2)
	require.Equal(t, []string{
		"common_name",
		"count",
		"has_media",
		"latitude",
		"location_id",
		"location_name",
		"location_private",
		"longitude",
		"observed_at",
		"observer_name",
		"reviewed",
		"scientific_name",
		"species_code",
		"submission_id",
		"valid",
	}, records[0])

	row := map[string]string{}
	for i, k := range records[0] {
		row[k] = records[1][i]
	}
	require.Equal(t, "Snowy Owl", row["common_name"])
	require.Equal(t, "2", row["count"])
	require.Equal(t, "40.7", row["latitude"])
	require.Equal(t, "-73.9", row["longitude"])
	require.Equal(t, "2024-01-05 08:00", row["observed_at"])
	require.Equal(t, "false", row["reviewed"])
	require.Equal(t, "true", row["valid"])
	require.Equal(t, "false", row["has_media"])
	require.Equal(t, "", row["species_code"])
}
