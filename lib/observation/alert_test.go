package observation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScrapedAlertRow(t *testing.T) {
	a := ScrapedAlert{Species: "Snowy Owl", Location: "Jones Beach"}
	row := a.Row()
	require.Len(t, row, 9)
	require.NotContains(t, row, "raw_text")
	require.Equal(t, "Snowy Owl", row["species"])
	require.Equal(t, "", row["observer"])

	raw := ScrapedAlert{RawText: "Snowy Owl seen at the beach"}
	require.False(t, raw.Populated())
	require.False(t, raw.Empty())
	require.Equal(t, "Snowy Owl seen at the beach", raw.Row()["raw_text"])

	require.True(t, ScrapedAlert{}.Empty())
}

func TestNormalizeAlerts(t *testing.T) {
	obs := NormalizeAlerts([]ScrapedAlert{
		{Species: "Snowy Owl", Date: "Jan 5, 2024", Time: "08:00", Location: "Jones Beach", Observer: "A Birder", Count: "2"},
		{RawText: "unstructured"},
	})
	require.Len(t, obs, 2)

	require.Equal(t, "Snowy Owl", obs[0].CommonName)
	require.Equal(t, "Jan 5, 2024 08:00", obs[0].ObservedAt)
	require.Equal(t, "Jones Beach", obs[0].LocationName)
	require.Equal(t, "A Birder", obs[0].ObserverName)
	require.Equal(t, "2", obs[0].Count.String())
	require.True(t, obs[0].Valid)

	require.Equal(t, Default(), obs[1])
}

func TestFilterByLocation(t *testing.T) {
	obs := []Observation{
		{LocationName: "Central Park, Manhattan"},
		{LocationName: "Jones Beach SP, Nassau"},
		{LocationName: "Fort Tilden, QUEENS"},
	}

	require.Len(t, FilterByLocation(obs, nil), 3)

	filtered := FilterByLocation(obs, []string{"manhattan", "queens"})
	require.Len(t, filtered, 2)
	require.Equal(t, "Central Park, Manhattan", filtered[0].LocationName)
	require.Equal(t, "Fort Tilden, QUEENS", filtered[1].LocationName)

	require.Empty(t, FilterByLocation(obs, []string{"Bronx"}))
}

func TestFilterRawByLocation(t *testing.T) {
	raws := []Raw{
		NewRaw(map[string]any{"locName": "Central Park, Manhattan"}),
		NewRaw(map[string]any{"locName": "Jones Beach"}),
		NewRaw(map[string]any{}),
	}
	filtered := FilterRawByLocation(SchemaAPI, raws, []string{"MANHATTAN"})
	require.Len(t, filtered, 1)
	require.Equal(t, "Central Park, Manhattan", filtered[0].String("locName"))
}
