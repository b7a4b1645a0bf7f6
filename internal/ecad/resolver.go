package ecad

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

// measurementAliases maps measurement names to ECA&D file prefixes.
var measurementAliases = map[string]string{
	"mean": "TG",
	"max":  "TX",
	"min":  "TN",
}

// DefaultPreference holds the built-in element preference lists, most
// preferred first.
var DefaultPreference = map[string][]string{
	"max":  {"TX21", "TX14", "TX2", "TX3", "TX12", "TX13", "TX15", "TX16", "TX17", "TX18", "TX19", "TX20", "TX5", "TX6", "TX8", "TX10", "TX7", "TX9", "TX11", "TX1"},
	"mean": {"TG24", "TG21", "TG22", "TG20", "TG15", "TG17", "TG18", "TG12", "TG13", "TG14", "TG19", "TG16", "TG6", "TG7", "TG8", "TG10", "TG3", "TG9", "TG11", "TG23", "TG5", "TG1"},
	"min":  {"TN19", "TN13", "TN2", "TN3", "TN11", "TN12", "TN14", "TN15", "TN16", "TN17", "TN18", "TN5", "TN6", "TN8", "TN9", "TN10", "TN1"},
}

// Alias returns the file prefix of a measurement name.
func Alias(measurement string) (string, bool) {
	a, ok := measurementAliases[measurement]
	return a, ok
}

// WithDefaultPreferences fills empty preference lists from DefaultPreference.
func WithDefaultPreferences(p domain.Provider) domain.Provider {
	mags := make([]domain.Magnitude, len(p.Magnitudes))
	for i, mag := range p.Magnitudes {
		meas := make([]domain.Measurement, len(mag.Measurements))
		for j, m := range mag.Measurements {
			if len(m.Preference) == 0 {
				m.Preference = DefaultPreference[m.Name]
			}
			meas[j] = m
		}
		mag.Measurements = meas
		mags[i] = mag
	}
	p.Magnitudes = mags
	return p
}

// Collection holds the single retained source file per station and
// measurement.
type Collection struct {
	Processed int                            `json:"processed"`
	Added     int                            `json:"added"`
	Stations  map[int]map[string]*SourceFile `json:"stations"`
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{Stations: make(map[int]map[string]*SourceFile)}
}

// Offer retains sf unless a file already held for its station and
// measurement ranks at least as well in preference. It reports whether sf was
// kept.
func (c *Collection) Offer(sf *SourceFile, preference []string) bool {
	byMeas, ok := c.Stations[sf.StationID]
	if !ok {
		byMeas = make(map[string]*SourceFile)
		c.Stations[sf.StationID] = byMeas
	}
	if held, ok := byMeas[sf.Measurement.Name]; ok {
		candidate := domain.RankIn(preference, sf.ElementType)
		retained := domain.RankIn(preference, held.ElementType)
		if !candidate.Beats(retained) {
			return false
		}
	}
	byMeas[sf.Measurement.Name] = sf
	c.Added++
	return true
}

// StationIDs returns the stations with at least one source, ascending.
func (c *Collection) StationIDs() []int {
	out := make([]int, 0, len(c.Stations))
	for id := range c.Stations {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// SourceFiles returns copies of the station's retained files with their
// windows replaced by the common window chosen by policy. The collection
// itself is not modified. It returns nil for unknown stations.
func (c *Collection) SourceFiles(stationID int, policy WindowPolicy) map[string]*SourceFile {
	held, ok := c.Stations[stationID]
	if !ok || len(held) == 0 {
		return nil
	}
	if policy == nil {
		policy = MaxStartMaxEnd
	}

	starts := make([]time.Time, 0, len(held))
	ends := make([]time.Time, 0, len(held))
	out := make(map[string]*SourceFile, len(held))
	for name, sf := range held {
		cp := *sf
		out[name] = &cp
		starts = append(starts, sf.Start)
		ends = append(ends, sf.End)
	}

	start, end := policy(starts, ends)
	for _, sf := range out {
		if !start.IsZero() {
			sf.Start = start
		}
		if !end.IsZero() {
			sf.End = end
		}
	}
	return out
}

// Resolver discovers series files and keeps the best source per station and
// measurement.
type Resolver struct {
	lookup FactorLookup
	logger *slog.Logger
}

// NewResolver creates a Resolver that scales readings via lookup.
func NewResolver(lookup FactorLookup, logger *slog.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: logger}
}

// Parse walks <providerDir>/<magnitude>/<measurement>/<alias>_*.txt for every
// measurement of p and resolves conflicts by element preference.
func (r *Resolver) Parse(ctx context.Context, providerDir string, p domain.Provider) (*Collection, error) {
	coll := NewCollection()

	for _, mag := range p.SortedMagnitudes() {
		for _, meas := range mag.SortedMeasurements() {
			if err := ctx.Err(); err != nil {
				return coll, err
			}
			alias, ok := Alias(meas.Name)
			if !ok {
				r.logger.Warn("no file alias for measurement", "magnitude", mag.Name, "measurement", meas.Name)
				continue
			}
			dir := filepath.Join(providerDir, mag.Name, meas.Name)
			files, err := filepath.Glob(filepath.Join(dir, alias+"_*.txt"))
			if err != nil {
				return coll, fmt.Errorf("glob %s: %w", dir, err)
			}
			if len(files) == 0 {
				continue
			}

			index, err := LoadSourceIndex(dir)
			if err != nil {
				r.logger.Error("sources file not readable", "dir", dir, "error", err)
				index = SourceIndex{}
			}

			ref := domain.MeasurementRef{ID: meas.ID, Name: meas.Name, Alias: alias}
			for _, path := range files {
				sf := NewSourceFile(path, p.ID, mag.ID, ref)
				if err := sf.Process(ctx, r.lookup, index, r.logger); err != nil {
					r.logger.Warn("source file discarded", "path", path, "error", err)
				}
				coll.Processed++
				if sf.Processed {
					coll.Offer(sf, meas.Preference)
				}
			}
		}
	}
	return coll, nil
}
