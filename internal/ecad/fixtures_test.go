package ecad

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const testPublishDate = "20-09-2024"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// preamble returns n non-blank ECA&D header lines with a blank line mixed in.
func preamble(n int) string {
	var b strings.Builder
	b.WriteString("EUROPEAN CLIMATE ASSESSMENT & DATASET (ECA&D), file created on " + testPublishDate + "\n")
	b.WriteString("\n")
	for i := 1; i < n; i++ {
		fmt.Fprintf(&b, "Header line %d\n", i)
	}
	b.WriteString("\n")
	return b.String()
}

func writeLatin1(t *testing.T, path, content string) {
	t.Helper()
	enc, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(enc), 0o644))
}

func elementLine(code, descr, factorUnit string) string {
	return fmt.Sprintf("%-5s %-150s  %-11s\n", code, descr, factorUnit)
}

func writeElements(t *testing.T, path string, lines ...string) {
	t.Helper()
	content := preamble(elementsHeaderLine) + elementLine("ELEID", "DESC", "UNIT") + strings.Join(lines, "")
	writeLatin1(t, path, content)
}

func writeStations(t *testing.T, path string, rows ...string) {
	t.Helper()
	content := preamble(stationsHeaderLine) + "STAID,STANAME                                 ,CN,      LAT,       LON,HGHT\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// seriesRow formats one data row: station, source, date, value, quality.
type seriesRow struct {
	station, source int
	date            string
	value, quality  int
}

func writeSeries(t *testing.T, path, alias string, rows ...seriesRow) {
	t.Helper()
	var b strings.Builder
	b.WriteString(preamble(seriesHeaderLine))
	fmt.Fprintf(&b, "STAID, SOUID,    DATE,   %s, Q_%s\n", alias, alias)
	for _, r := range rows {
		fmt.Fprintf(&b, "%6d,%6d,%s,%5d,%5d\n", r.station, r.source, r.date, r.value, r.quality)
	}
	writeLatin1(t, path, b.String())
}

type sourceRow struct {
	souid   int
	eleid   string
	parname string
}

func writeSources(t *testing.T, dir string, rows ...sourceRow) {
	t.Helper()
	var b strings.Builder
	b.WriteString(preamble(sourcesHeaderLine))
	b.WriteString("STAID, SOUID,SOUNAME                                 ,CN,      LAT,       LON,HGHT,ELEID,  START,   STOP,PARID,PARNAME\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "    1,%6d,SOURCE %-33d,NL,+52:06:00,+005:10:48,   2,%s,18600101,20240831,  100,%s\n", r.souid, r.souid, r.eleid, r.parname)
	}
	writeLatin1(t, filepath.Join(dir, SourcesFileName), b.String())
}

// fakeCatalog is an in-memory ElementStore, StationStore and FactorLookup.
type fakeCatalog struct {
	elements map[domain.ElementKey]domain.Element
	stations map[[2]int]domain.Station
	factors  map[string]domain.UnitFactor
	inserts  int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		elements: make(map[domain.ElementKey]domain.Element),
		stations: make(map[[2]int]domain.Station),
		factors:  make(map[string]domain.UnitFactor),
	}
}

func (f *fakeCatalog) Element(_ context.Context, key domain.ElementKey) (domain.Element, bool, error) {
	e, ok := f.elements[key]
	return e, ok, nil
}

func (f *fakeCatalog) InsertElement(_ context.Context, e domain.Element) error {
	f.elements[e.ElementKey] = e
	f.inserts++
	return nil
}

func (f *fakeCatalog) Station(_ context.Context, providerID, code int) (domain.Station, bool, error) {
	s, ok := f.stations[[2]int{providerID, code}]
	return s, ok, nil
}

func (f *fakeCatalog) InsertStation(_ context.Context, s domain.Station) error {
	s.ID = len(f.stations) + 1
	f.stations[[2]int{s.ProviderID, s.Code}] = s
	f.inserts++
	return nil
}

func (f *fakeCatalog) UnitFactor(_ context.Context, _ int, code string) (domain.UnitFactor, bool, error) {
	uf, ok := f.factors[code]
	return uf, ok, nil
}
