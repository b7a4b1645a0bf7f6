package pipeline

import (
	"fmt"
	"math"
	"sort"

	"github.com/couchcryptid/station-climate-etl/internal/average"
	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/couchcryptid/station-climate-etl/internal/ecad"
)

// legends translates measurement names for the chart legend.
var legends = map[string]map[string]string{
	"es": {"mean": "Media", "max": "Máxima", "min": "Mínima"},
}

// LegendFor returns the legend label of a measurement in lang, falling back
// to the measurement name.
func LegendFor(lang, measurement string) string {
	if l, ok := legends[lang][measurement]; ok {
		return l
	}
	return measurement
}

// lineName returns the chart line name of the i-th series: a, b, c...
func lineName(i int) string {
	name := ""
	for {
		name = string(rune('a'+i%26)) + name
		i = i/26 - 1
		if i < 0 {
			return name
		}
	}
}

// BuildStationSeries reads every resolved file of a station into one
// date-aligned artifact with its decade means. files is keyed by measurement
// name and must share a common window.
func BuildStationSeries(st domain.Station, files map[string]*ecad.SourceFile, legendLang string) (domain.StationSeries, error) {
	out := domain.StationSeries{
		StationID:   st.ID,
		StationCode: st.Code,
		Name:        st.Name,
		Country:     st.Country,
		Lines:       make(map[string]domain.Values, len(files)),
		ProcessedAt: domain.Now(),
	}
	if len(files) == 0 {
		return out, fmt.Errorf("station %d: no source files", st.Code)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	agg := average.New()
	lineNames := make([]string, 0, len(names))
	for i, meas := range names {
		sf := files[meas]
		agg.StartSeries()
		s, err := sf.Read(agg)
		if err != nil {
			return out, fmt.Errorf("station %d %s: %w", st.Code, meas, err)
		}
		line := lineName(i)
		if out.XAxis == nil {
			out.XAxis = s.Dates
		}
		if len(s.Values) != len(out.XAxis) {
			return out, fmt.Errorf("station %d %s: %d values for %d dates", st.Code, meas, len(s.Values), len(out.XAxis))
		}
		out.Lines[line] = s.Values
		out.Legend = append(out.Legend, LegendFor(legendLang, meas))
		out.Sources = append(out.Sources, sf.Source())
		agg.Merge(s.Averages, line)
		lineNames = append(lineNames, line)
	}
	out.Decades = domain.DecadeTable(agg.Normalize())

	trimEmptyEdges(&out, lineNames)
	return out, nil
}

// trimEmptyEdges drops leading and trailing days on which every line is
// missing. Interior gaps are kept.
func trimEmptyEdges(s *domain.StationSeries, lines []string) {
	empty := func(i int) bool {
		for _, l := range lines {
			if !math.IsNaN(s.Lines[l][i]) {
				return false
			}
		}
		return true
	}

	lo, hi := 0, len(s.XAxis)
	for lo < hi && empty(lo) {
		lo++
	}
	for hi > lo && empty(hi-1) {
		hi--
	}
	s.XAxis = s.XAxis[lo:hi]
	for _, l := range lines {
		s.Lines[l] = s.Lines[l][lo:hi]
	}
}
