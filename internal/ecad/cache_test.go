package ecad

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCollection() *Collection {
	f := 0.1
	u := UnitCelsius
	c := NewCollection()
	c.Processed = 3
	c.Offer(&SourceFile{
		Path:        "/data/current/ECAD/temperature/max/TX_STAID000001.txt",
		ProviderID:  1,
		MagnitudeID: 1,
		Measurement: domain.MeasurementRef{ID: 1, Name: "max", Alias: "TX"},
		StationID:   1,
		SourceID:    11,
		ElementType: "TX2",
		Participant: "KNMI",
		Start:       date(1950, 1, 1),
		End:         date(2024, 8, 31),
		Factor:      &f,
		Unit:        &u,
		Processed:   true,
	}, nil)
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	published := date(2024, 9, 20)
	path := CachePath(t.TempDir(), published, "sources.json.gz")
	assert.Equal(t, "2024_09_20_sources.json.gz", filepath.Base(path))

	want := sampleCollection()
	require.NoError(t, SaveCache(path, want, published))

	got, err := LoadCache(path, published)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("collection mismatch (-want +got):\n%s", diff)
	}
}

func TestCache_Stale(t *testing.T) {
	published := date(2024, 9, 20)
	path := filepath.Join(t.TempDir(), "cache.json.gz")
	require.NoError(t, SaveCache(path, sampleCollection(), published))

	_, err := LoadCache(path, date(2024, 10, 1))
	assert.ErrorIs(t, err, ErrStaleCache)
}

func TestCache_Missing(t *testing.T) {
	_, err := LoadCache(filepath.Join(t.TempDir(), "none.json.gz"), date(2024, 9, 20))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))

	_, err := LoadCache(path, date(2024, 9, 20))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStaleCache)
}
