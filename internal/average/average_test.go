package average

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDecade(t *testing.T) {
	assert.Equal(t, 1990, Decade(day(1990, 1, 1)))
	assert.Equal(t, 1990, Decade(day(1999, 12, 31)))
	assert.Equal(t, 2020, Decade(day(2024, 6, 1)))
}

func TestFinalize_CeilingRounding(t *testing.T) {
	a := New()
	a.Record(day(1991, 1, 1), 1.111)
	a.Record(day(1995, 1, 1), 1.119)

	means := a.Finalize()
	require.Contains(t, means, 1990)
	assert.Equal(t, 1.12, means[1990])
}

func TestFinalize_SeparatesDecades(t *testing.T) {
	a := New()
	a.Record(day(1989, 12, 31), 10)
	a.Record(day(1990, 1, 1), 20)
	a.Record(day(1990, 1, 2), 30)

	assert.Equal(t, map[int]float64{1980: 10, 1990: 25}, a.Finalize())
}

func TestFinalize_EmptyBucketIsNaN(t *testing.T) {
	a := New()
	a.buckets[2000] = &bucket{}

	means := a.Finalize()
	assert.True(t, math.IsNaN(means[2000]))
}

func TestCeilHundredths(t *testing.T) {
	assert.Equal(t, 21.5, CeilHundredths(21.5))
	assert.Equal(t, 3.13, CeilHundredths(3.125))
	assert.Equal(t, -1.25, CeilHundredths(-1.255))
}

func TestMerge_SkipsNonFinite(t *testing.T) {
	a := New()
	a.Merge(map[int]float64{1990: 1.5, 2000: math.NaN(), 2010: math.Inf(1)}, "a")

	assert.Equal(t, []int{1990}, a.Decades())
}

func TestNormalize_FillsMissingLabels(t *testing.T) {
	a := New()
	a.Merge(map[int]float64{1990: 10, 2000: 11}, "a")
	a.Merge(map[int]float64{2000: 5}, "b")

	got := a.Normalize()
	want := Table{
		1990: {"a": 10, "b": math.NaN()},
		2000: {"a": 11, "b": 5},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	a := New()
	a.Merge(map[int]float64{1980: 1, 1990: 2}, "a")
	a.Merge(map[int]float64{1990: 3}, "b")
	a.Merge(map[int]float64{2000: 4}, "c")

	once := a.Normalize()
	twice := a.Normalize()

	if diff := cmp.Diff(once, twice, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("second Normalize() changed the table (-once +twice):\n%s", diff)
	}
	for d, row := range twice {
		assert.Len(t, row, 3, "decade %d", d)
	}
}

func TestNormalize_EmptyTable(t *testing.T) {
	a := New()
	assert.Empty(t, a.Normalize())
}

func TestStartSeries_KeepsMergedTable(t *testing.T) {
	a := New()
	a.Record(day(2001, 1, 1), 4)
	a.Merge(a.Finalize(), "a")

	a.StartSeries()
	a.Record(day(2002, 1, 1), 8)
	assert.Equal(t, map[int]float64{2000: 8}, a.Finalize())

	a.Merge(a.Finalize(), "b")
	assert.Equal(t, Table{2000: {"a": 4, "b": 8}}, a.Table())
}

func TestTable_ReturnsCopy(t *testing.T) {
	a := New()
	a.Merge(map[int]float64{1990: 1}, "a")

	tbl := a.Table()
	tbl[1990]["a"] = 99

	assert.Equal(t, 1.0, a.Table()[1990]["a"])
}

func TestReset(t *testing.T) {
	a := New()
	a.Record(day(2001, 1, 1), 4)
	a.Merge(a.Finalize(), "a")

	a.Reset()

	assert.Empty(t, a.Finalize())
	assert.Empty(t, a.Table())
}
