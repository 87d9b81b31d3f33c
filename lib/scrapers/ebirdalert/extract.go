package ebirdalert

import (
	"context"
	"errors"
	"log/slog"
	"rarebird/lib/htmlutil"
	"rarebird/lib/observation"

	"github.com/PuerkitoBio/goquery"
)

// strategy pairs a matcher that finds candidate alert elements with the
// extractor run over each of them. The first strategy to match anything
// wins.
type strategy struct {
	name    string
	match   func(doc *goquery.Document) *goquery.Selection
	extract func(ctx context.Context, el *goquery.Selection) (observation.ScrapedAlert, bool)
}

func matchSelector(selector string) func(doc *goquery.Document) *goquery.Selection {
	return func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(selector)
	}
}

var strategies = []strategy{
	{name: "div[class*='Alert']", match: matchSelector("div[class*='Alert']"), extract: extractAlert},
	{name: "tr[class*='alert']", match: matchSelector("tr[class*='alert']"), extract: extractAlert},
	{name: "div[class*='sighting']", match: matchSelector("div[class*='sighting']"), extract: extractAlert},
	{name: "div[class*='observation']", match: matchSelector("div[class*='observation']"), extract: extractAlert},
}

const (
	speciesSelector  = "span[class*='species'], a[class*='species']"
	dateSelector     = "span[class*='date'], time"
	locationSelector = "span[class*='location'], a[class*='location']"
	observerSelector = "span[class*='observer'], a[class*='observer']"
)

var errFieldMissing = errors.New("field missing")

func fieldText(el *goquery.Selection, selector string) (string, error) {
	match := el.Find(selector).First()
	if match.Length() == 0 {
		return "", errFieldMissing
	}
	return htmlutil.SelectionText(match), nil
}

// extractOr reads one field, a miss is logged and leaves def in place.
func extractOr(ctx context.Context, el *goquery.Selection, field, selector, def string) string {
	text, err := fieldText(el, selector)
	if err != nil {
		slog.DebugContext(ctx, "field not found", "field", field, "selector", selector)
		return def
	}
	return text
}

func extractAlert(ctx context.Context, el *goquery.Selection) (observation.ScrapedAlert, bool) {
	alert := observation.ScrapedAlert{
		Species:  extractOr(ctx, el, "species", speciesSelector, ""),
		Date:     extractOr(ctx, el, "date", dateSelector, ""),
		Location: extractOr(ctx, el, "location", locationSelector, ""),
		Observer: extractOr(ctx, el, "observer", observerSelector, ""),
	}
	if !alert.Populated() {
		alert.RawText = htmlutil.SelectionText(el)
	}
	if alert.Empty() {
		return alert, false
	}
	return alert, true
}

// extractFromPageSource is where parsing for an unrecognized page layout
// goes once one has been identified from the debug dump. It finds nothing.
func extractFromPageSource(ctx context.Context, doc *goquery.Document) []observation.ScrapedAlert {
	slog.InfoContext(ctx, "inspect the saved page source to identify the correct selectors")
	return nil
}
