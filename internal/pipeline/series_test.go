package pipeline

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/couchcryptid/station-climate-etl/internal/ecad"
	"github.com/couchcryptid/station-climate-etl/internal/store"
)

func removeFile(path string) error {
	return os.Remove(path)
}

func assertValues(t *testing.T, want []float64, got domain.Values) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}

func TestLineName(t *testing.T) {
	tests := map[int]string{0: "a", 1: "b", 25: "z", 26: "aa", 27: "ab", 52: "ba"}
	for i, want := range tests {
		assert.Equal(t, want, lineName(i), "index %d", i)
	}
}

func TestLegendFor(t *testing.T) {
	assert.Equal(t, "Media", LegendFor("es", "mean"))
	assert.Equal(t, "Máxima", LegendFor("es", "max"))
	assert.Equal(t, "Mínima", LegendFor("es", "min"))
	assert.Equal(t, "max", LegendFor("en", "max"))
	assert.Equal(t, "precip", LegendFor("es", "precip"))
}

func TestTrimEmptyEdges(t *testing.T) {
	nan := math.NaN()
	day := func(d int) time.Time { return time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC) }
	s := domain.StationSeries{
		XAxis: []time.Time{day(1), day(2), day(3), day(4), day(5), day(6)},
		Lines: map[string]domain.Values{
			"a": {nan, nan, 1, nan, 3, nan},
			"b": {nan, 2, nan, nan, nan, nan},
		},
	}

	trimEmptyEdges(&s, []string{"a", "b"})

	if diff := cmp.Diff([]time.Time{day(2), day(3), day(4), day(5)}, s.XAxis); diff != "" {
		t.Fatalf("x axis mismatch (-want +got):\n%s", diff)
	}
	assertValues(t, []float64{nan, 1, nan, 3}, s.Lines["a"])
	assertValues(t, []float64{2, nan, nan, nan}, s.Lines["b"])
}

func TestTrimEmptyEdges_AllMissing(t *testing.T) {
	nan := math.NaN()
	s := domain.StationSeries{
		XAxis: []time.Time{time.Unix(0, 0), time.Unix(86400, 0)},
		Lines: map[string]domain.Values{"a": {nan, nan}},
	}
	trimEmptyEdges(&s, []string{"a"})
	assert.Empty(t, s.XAxis)
	assert.Empty(t, s.Lines["a"])
}

func resolvedFiles(t *testing.T, policy ecad.WindowPolicy) (domain.Station, map[string]*ecad.SourceFile) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ECAD")
	writeTree(t, dir)

	ctx := context.Background()
	mem := store.NewMemory(testProvider())
	p := ecad.WithDefaultPreferences(testProvider())
	for _, meas := range p.Magnitudes[0].Measurements {
		_, err := ecad.LoadElements(ctx, mem, filepath.Join(dir, "temperature", meas.Name, elementsFileName), 1, 1, meas, discardLogger())
		require.NoError(t, err)
	}
	coll, err := ecad.NewResolver(mem, discardLogger()).Parse(ctx, dir, p)
	require.NoError(t, err)

	st := domain.Station{ID: 9, ProviderID: 1, Code: 1, Name: "DE BILT", Country: "NL"}
	return st, coll.SourceFiles(1, policy)
}

func TestBuildStationSeries(t *testing.T) {
	st, files := resolvedFiles(t, ecad.MaxStartMaxEnd)
	require.Len(t, files, 2)

	s, err := BuildStationSeries(st, files, "es")
	require.NoError(t, err)

	assert.Equal(t, 9, s.StationID)
	assert.Equal(t, 1, s.StationCode)
	assert.Equal(t, []string{"Máxima", "Mínima"}, s.Legend)
	require.Len(t, s.XAxis, 4)
	assertValues(t, []float64{11, 12.1, math.NaN(), 12.4}, s.Lines["a"])
	assertValues(t, []float64{-1, -2, math.NaN(), -0.5}, s.Lines["b"])
	require.Len(t, s.Sources, 2)
	assert.Equal(t, "max", s.Sources[0].Measurement)
	assert.Equal(t, "KNMI", s.Sources[0].ParticipantName)

	want := domain.DecadeTable{2020: {"a": 11.84, "b": -1.16}}
	if diff := cmp.Diff(want, s.Decades); diff != "" {
		t.Fatalf("decades mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildStationSeries_EnglishFallsBackToNames(t *testing.T) {
	st, files := resolvedFiles(t, ecad.MaxStartMaxEnd)
	s, err := BuildStationSeries(st, files, "en")
	require.NoError(t, err)
	assert.Equal(t, []string{"max", "min"}, s.Legend)
}

func TestBuildStationSeries_JSONEncodesMissingAsNull(t *testing.T) {
	st, files := resolvedFiles(t, ecad.MaxStartMaxEnd)
	s, err := BuildStationSeries(st, files, "es")
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded struct {
		Lines map[string][]*float64 `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Lines["a"][2])
	require.NotNil(t, decoded.Lines["a"][0])
	assert.InDelta(t, 11, *decoded.Lines["a"][0], 1e-9)
}

func TestBuildStationSeries_NoFiles(t *testing.T) {
	_, err := BuildStationSeries(domain.Station{Code: 5}, nil, "es")
	assert.Error(t, err)
}
