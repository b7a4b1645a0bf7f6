package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/station-climate-etl/internal/acquire"
	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/couchcryptid/station-climate-etl/internal/ecad"
)

var publishDate = time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProvider() domain.Provider {
	return domain.Provider{
		ID:   1,
		Name: "ECAD",
		Magnitudes: []domain.Magnitude{{
			ID:   1,
			Name: "temperature",
			Measurements: []domain.Measurement{
				{ID: 1, MagnitudeID: 1, Name: "max"},
				{ID: 2, MagnitudeID: 1, Name: "min"},
			},
		}},
	}
}

// preamble returns n non-blank header lines, the first carrying the
// publish date.
func preamble(n int) string {
	var b strings.Builder
	b.WriteString("EUROPEAN CLIMATE ASSESSMENT & DATASET (ECA&D), file created on 20-09-2024\n\n")
	for i := 1; i < n; i++ {
		fmt.Fprintf(&b, "header %d\n", i)
	}
	b.WriteString("\n")
	return b.String()
}

func writeFile(t *testing.T, path, content string, latin1 bool) {
	t.Helper()
	if latin1 {
		enc, err := charmap.ISO8859_1.NewEncoder().String(content)
		require.NoError(t, err)
		content = enc
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type reading struct {
	date           string
	value, quality int
}

// writeTree lays out a provider tree with one station holding a max and a
// min series and a second station without series.
func writeTree(t *testing.T, dir string) {
	t.Helper()
	pairs := []struct {
		meas, alias, element string
		source               int
		readings             []reading
	}{
		{"max", "TX", "TX1", 11, []reading{{"20200101", 110, 0}, {"20200102", 121, 0}, {"20200103", 0, 9}, {"20200104", 124, 0}}},
		{"min", "TN", "TN1", 21, []reading{{"20200101", -10, 0}, {"20200102", -20, 0}, {"20200104", -5, 0}}},
	}

	for _, p := range pairs {
		measDir := filepath.Join(dir, "temperature", p.meas)

		writeFile(t, filepath.Join(measDir, elementsFileName),
			preamble(10)+
				fmt.Sprintf("%-5s %-150s  %-11s\n", "ELEID", "DESC", "UNIT")+
				fmt.Sprintf("%-5s %-150s  %-11s\n", p.element, "Temperature, manual", "0.1 °C"),
			true)

		writeFile(t, filepath.Join(measDir, stationsFileName),
			preamble(13)+
				"STAID,STANAME                                 ,CN,      LAT,       LON,HGHT\n"+
				"    1,DE BILT                                 ,NL,+52:06:00,+005:10:48,   2\n"+
				"    2,ESTACION <SUR>                          ,ES,+38:53:00,-006:48:50, 185\n",
			false)

		writeFile(t, filepath.Join(measDir, ecad.SourcesFileName),
			preamble(18)+
				"STAID, SOUID,SOUNAME                                 ,CN,      LAT,       LON,HGHT,ELEID,  START,   STOP,PARID,PARNAME\n"+
				fmt.Sprintf("    1,%6d,DE BILT                                 ,NL,+52:06:00,+005:10:48,   2,%s,18600101,20240831,  100,KNMI\n", p.source, p.element),
			true)

		var b strings.Builder
		b.WriteString(preamble(13))
		fmt.Fprintf(&b, "STAID, SOUID,    DATE,   %s, Q_%s\n", p.alias, p.alias)
		for _, r := range p.readings {
			fmt.Fprintf(&b, "%6d,%6d,%s,%5d,%5d\n", 1, p.source, r.date, r.value, r.quality)
		}
		writeFile(t, filepath.Join(measDir, p.alias+"_STAID000001.txt"), b.String(), true)
	}
}

// fakeAcquirer returns a fixed plan for every provider.
type fakeAcquirer struct {
	dir  string
	plan acquire.Plan
	err  error
}

func (f *fakeAcquirer) Run(_ context.Context, p domain.Provider) (acquire.Plan, error) {
	plan := f.plan
	plan.Provider = p.Name
	return plan, f.err
}

func (f *fakeAcquirer) CurrentDir(p domain.Provider) string {
	return filepath.Join(f.dir, p.Name)
}

func changedPlan() acquire.Plan {
	all := acquire.Flags{Stations: true, Elements: true}
	return acquire.Plan{
		Pairs:       map[int]map[string]acquire.Flags{1: {"max": all, "min": all}},
		NeedSave:    true,
		PublishDate: publishDate,
	}
}

// countingResolver wraps a resolver and counts Parse calls.
type countingResolver struct {
	inner SourceResolver
	calls int
}

func (c *countingResolver) Parse(ctx context.Context, dir string, p domain.Provider) (*ecad.Collection, error) {
	c.calls++
	return c.inner.Parse(ctx, dir, p)
}

// captureSink records published series.
type captureSink struct {
	mu     sync.Mutex
	series []domain.StationSeries
	runIDs []string
	err    error
}

func (c *captureSink) Publish(_ context.Context, runID string, s domain.StationSeries) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.series = append(c.series, s)
	c.runIDs = append(c.runIDs, runID)
	return nil
}
