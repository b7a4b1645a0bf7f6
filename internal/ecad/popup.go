package ecad

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

const popupDateLayout = "2006-01-02"

// BuildPopup renders the map marker popup of a station from its resolved
// source files.
func BuildPopup(st domain.Station, files map[string]*SourceFile, p domain.Provider) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Station: %d - %s - %s - Height: %d<br/>",
		st.ID, html.EscapeString(st.Name), html.EscapeString(st.Country), st.Height)
	b.WriteString(sourceSummary(files, p))
	fmt.Fprintf(&b, `<br/><br/><a class="popup-button" href="/station/%d">Show Station Data</a>`, st.ID)
	return b.String()
}

// sourceSummary lists each magnitude with the validity window of every
// measurement, in measurement name order. Magnitude groups are separated by
// a line break.
func sourceSummary(files map[string]*SourceFile, p domain.Provider) string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	type group struct {
		name  string
		lines []string
	}
	var groups []*group
	byID := make(map[int]*group)

	for _, name := range names {
		sf := files[name]
		mag, ok := p.Magnitude(sf.MagnitudeID)
		if !ok {
			continue
		}
		g, ok := byID[mag.ID]
		if !ok {
			g = &group{name: mag.Name}
			byID[mag.ID] = g
			groups = append(groups, g)
		}
		g.lines = append(g.lines, fmt.Sprintf("<br/>&nbsp;&nbsp;%s: %s to: %s",
			sf.Measurement.Name, sf.Start.Format(popupDateLayout), sf.End.Format(popupDateLayout)))
	}
	if len(groups) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<br/>Magnitudes:<br/>")
	for i, g := range groups {
		if i > 0 {
			b.WriteString("<br/>")
		}
		b.WriteString("- " + g.name)
		for _, l := range g.lines {
			b.WriteString(l)
		}
	}
	return b.String()
}
