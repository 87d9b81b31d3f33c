package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	cases := []struct {
		in     string
		expect string
	}{
		{in: "  Snowy Owl \n", expect: "Snowy Owl"},
		{in: "Central\n\t  Park", expect: "Central Park"},
		{in: "a\u0000b", expect: "ab"},
		{in: "", expect: ""},
		{in: " \n\t ", expect: ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expect, CleanText(test.in), "input %q", test.in)
	}
}

func TestSelectionText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div class="Alert">
			<script>var x = 1;</script>
			<span class="species">Snowy   Owl</span>
			<span class="location">Jones Beach</span>
		</div>`))
	require.NoError(t, err)

	require.Equal(t, "Snowy Owl Jones Beach", SelectionText(doc.Find("div.Alert")))
	require.Equal(t, "", SelectionText(doc.Find("span.missing")))
}
