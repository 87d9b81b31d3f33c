package commands

import (
	"fmt"
	"os"
	"rarebird/lib/ebird"
	"rarebird/lib/observation"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const summaryLimit = 10

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func printQuery(o fetchOptions, loc ebird.Locator, counties []string) {
	title := o.title
	if title == "" {
		title = "EBIRD OBSERVATIONS"
	}
	t := newTable()
	t.SetTitle(title)
	t.AppendRow(table.Row{"Query", loc.String()})
	t.AppendRow(table.Row{"Looking back", fmt.Sprintf("%d days", o.back)})
	t.AppendRow(table.Row{"Max results", o.max})
	if o.notable {
		t.AppendRow(table.Row{"Notable only", "yes"})
	}
	if len(counties) > 0 {
		t.AppendRow(table.Row{"Filtering by", strings.Join(counties, ", ")})
	}
	t.Render()
}

type speciesCount struct {
	name  string
	count int
}

func displayName(o observation.Observation) string {
	if o.CommonName != "" {
		return o.CommonName
	}
	if o.SpeciesCode != "" {
		return o.SpeciesCode
	}
	return "Unknown"
}

// topSpecies ranks species by how many observations report them, ties are
// ordered by name.
func topSpecies(obs []observation.Observation, n int) ([]speciesCount, int) {
	counts := map[string]int{}
	for _, o := range obs {
		counts[displayName(o)]++
	}
	ranked := make([]speciesCount, 0, len(counts))
	for name, count := range counts {
		ranked = append(ranked, speciesCount{name: name, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].name < ranked[j].name
	})
	unique := len(ranked)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, unique
}

func individuals(c observation.Count) string {
	n, ok := c.Value()
	if !ok {
		return "? individuals"
	}
	if n == 1 {
		return "1 individual"
	}
	return fmt.Sprintf("%d individuals", n)
}

func printSummary(obs []observation.Observation) {
	ranked, unique := topSpecies(obs, summaryLimit)

	t := newTable()
	t.SetTitle(fmt.Sprintf("SUMMARY: %d observations, %d unique species", len(obs), unique))
	t.AppendHeader(table.Row{"#", "Most frequently reported", "Observations"})
	for i, s := range ranked {
		t.AppendRow(table.Row{i + 1, s.name, s.count})
	}
	t.Render()

	recent := obs
	if len(recent) > summaryLimit {
		recent = recent[:summaryLimit]
	}
	t = newTable()
	t.SetTitle(fmt.Sprintf("RECENT SIGHTINGS (Last %d)", len(recent)))
	t.AppendHeader(table.Row{"#", "Species", "Count", "Location", "Date"})
	for i, o := range recent {
		t.AppendRow(table.Row{i + 1, displayName(o), individuals(o.Count), o.LocationName, o.ObservedAt})
	}
	t.Render()
}

func printSaved(paths ...string) {
	t := newTable()
	t.SetTitle("Data saved to")
	for _, p := range paths {
		if p != "" {
			t.AppendRow(table.Row{p})
		}
	}
	t.Render()
}
