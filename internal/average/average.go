// Package average accumulates daily readings into decade buckets and builds
// the per-station decade table consumed by the rendering stage.
//
// An Aggregator is not safe for concurrent use. Give each station its own.
package average

import (
	"math"
	"sort"
	"time"
)

// Table maps decade -> series label -> mean.
type Table map[int]map[string]float64

type bucket struct {
	sum   float64
	count int
}

// Aggregator holds the running buckets of the series being read and the
// merged table of every series finalized so far.
type Aggregator struct {
	buckets map[int]*bucket
	merged  Table
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		buckets: make(map[int]*bucket),
		merged:  make(Table),
	}
}

// Decade returns the decade a date falls in, e.g. 1994 -> 1990.
func Decade(t time.Time) int {
	year := t.Year()
	return year - year%10
}

// Record adds one value to the bucket of the decade t falls in.
func (a *Aggregator) Record(t time.Time, value float64) {
	d := Decade(t)
	b, ok := a.buckets[d]
	if !ok {
		b = &bucket{}
		a.buckets[d] = b
	}
	b.sum += value
	b.count++
}

// Finalize returns the mean of every bucket, ceiling-rounded to hundredths.
// Buckets without values yield NaN.
func (a *Aggregator) Finalize() map[int]float64 {
	out := make(map[int]float64, len(a.buckets))
	for d, b := range a.buckets {
		if b.count == 0 {
			out[d] = math.NaN()
			continue
		}
		out[d] = CeilHundredths(b.sum / float64(b.count))
	}
	return out
}

// CeilHundredths rounds up to two decimals: 1.115 -> 1.12.
func CeilHundredths(v float64) float64 {
	c := math.Ceil(v*100) / 100
	return math.Round(c*100) / 100
}

// StartSeries clears the running buckets so the next series is averaged on
// its own. The merged table is kept.
func (a *Aggregator) StartSeries() {
	a.buckets = make(map[int]*bucket)
}

// Merge folds one series' decade means into the table under label.
// Non-finite means are skipped.
func (a *Aggregator) Merge(means map[int]float64, label string) {
	for d, mean := range means {
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			continue
		}
		row, ok := a.merged[d]
		if !ok {
			row = make(map[string]float64)
			a.merged[d] = row
		}
		row[label] = mean
	}
}

// Normalize fills every decade with NaN for each label it lacks so the table
// is rectangular, and returns a copy of it. Calling it again is a no-op.
func (a *Aggregator) Normalize() Table {
	labels := a.labels()
	for _, row := range a.merged {
		for _, l := range labels {
			if _, ok := row[l]; !ok {
				row[l] = math.NaN()
			}
		}
	}
	return a.Table()
}

// labels returns the label set of the fullest decade, extended with any label
// seen elsewhere so no series can be dropped from the table.
func (a *Aggregator) labels() []string {
	decades := a.Decades()
	best := -1
	for _, d := range decades {
		if best == -1 || len(a.merged[d]) > len(a.merged[best]) {
			best = d
		}
	}
	seen := make(map[string]bool)
	var out []string
	if best != -1 {
		for l := range a.merged[best] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, d := range decades {
		for l := range a.merged[d] {
			if !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Decades returns the merged decades in ascending order.
func (a *Aggregator) Decades() []int {
	out := make([]int, 0, len(a.merged))
	for d := range a.merged {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// Table returns a deep copy of the merged table.
func (a *Aggregator) Table() Table {
	out := make(Table, len(a.merged))
	for d, row := range a.merged {
		r := make(map[string]float64, len(row))
		for l, v := range row {
			r[l] = v
		}
		out[d] = r
	}
	return out
}

// Reset drops all buckets and the merged table.
func (a *Aggregator) Reset() {
	a.buckets = make(map[int]*bucket)
	a.merged = make(Table)
}
