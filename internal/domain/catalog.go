package domain

import (
	"sort"
	"time"
)

// Provider extra keys read by the pipeline.
const (
	ExtraMarkerFileName = "ecad_date_file_name"
	ExtraCacheFileName  = "sources_cache_file_name"
)

const (
	defaultMarkerFileName = "elements.txt"
	defaultCacheFileName  = "sources.json.gz"
)

// Provider identifies an upstream data source and the magnitudes it publishes.
type Provider struct {
	ID             int               `yaml:"id" json:"id"`
	Name           string            `yaml:"name" json:"name"`
	Description    string            `yaml:"description" json:"description,omitempty"`
	URL            string            `yaml:"url" json:"url,omitempty"`
	UpdatePeriod   int               `yaml:"update_data_period" json:"update_data_period,omitempty"` // days
	Acknowledgment string            `yaml:"acknowledgment" json:"acknowledgment,omitempty"`
	Extra          map[string]string `yaml:"extra" json:"extra,omitempty"`
	Magnitudes     []Magnitude       `yaml:"magnitudes" json:"magnitudes,omitempty"`
}

// ExtraOr returns the extra attribute for key, or def when unset.
func (p Provider) ExtraOr(key, def string) string {
	if v, ok := p.Extra[key]; ok && v != "" {
		return v
	}
	return def
}

// MarkerFileName is the file whose first line carries the publish date.
func (p Provider) MarkerFileName() string {
	return p.ExtraOr(ExtraMarkerFileName, defaultMarkerFileName)
}

// CacheFileName is the base name of the dated source cache artifact.
func (p Provider) CacheFileName() string {
	return p.ExtraOr(ExtraCacheFileName, defaultCacheFileName)
}

// Magnitude looks up a magnitude by id.
func (p Provider) Magnitude(id int) (Magnitude, bool) {
	for _, m := range p.Magnitudes {
		if m.ID == id {
			return m, true
		}
	}
	return Magnitude{}, false
}

// SortedMagnitudes returns the magnitudes ordered by id.
func (p Provider) SortedMagnitudes() []Magnitude {
	out := append([]Magnitude(nil), p.Magnitudes...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Magnitude is a physical quantity category such as temperature.
type Magnitude struct {
	ID           int           `yaml:"id" json:"id"`
	Name         string        `yaml:"name" json:"name"`
	Measurements []Measurement `yaml:"measurements" json:"measurements,omitempty"`
}

// Measurement looks up a measurement by name.
func (m Magnitude) Measurement(name string) (Measurement, bool) {
	for _, meas := range m.Measurements {
		if meas.Name == name {
			return meas, true
		}
	}
	return Measurement{}, false
}

// SortedMeasurements returns the measurements ordered by id.
func (m Magnitude) SortedMeasurements() []Measurement {
	out := append([]Measurement(nil), m.Measurements...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Measurement is one computable series within a magnitude, e.g. "max".
type Measurement struct {
	ID           int        `yaml:"id" json:"id"`
	MagnitudeID  int        `yaml:"-" json:"magnitude_id"`
	Name         string     `yaml:"name" json:"name"`
	Preference   []string   `yaml:"preference" json:"preference,omitempty"`
	LastDownload *time.Time `yaml:"-" json:"last_download,omitempty"`
	LastTry      *time.Time `yaml:"-" json:"last_try,omitempty"`
}

// RankOf returns the position of code in the preference list.
func (m Measurement) RankOf(code string) Rank {
	return RankIn(m.Preference, code)
}

// MeasurementRef carries the identity of a measurement through parsing.
type MeasurementRef struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

// ElementKey identifies an element within a provider measurement.
type ElementKey struct {
	ProviderID    int
	MagnitudeID   int
	MeasurementID int
	Code          string
}

// Element is a raw instrument code with its scale and unit.
type Element struct {
	ElementKey
	Description string
	Unit        *string
	Factor      *float64
	Priority    Rank
}

// UnitFactor is the scale applied to raw readings of an element.
type UnitFactor struct {
	Factor float64
	Unit   string
}

// Station is a physical measuring location.
type Station struct {
	ID         int     `json:"id"`
	ProviderID int     `json:"provider_id"`
	Code       int     `json:"station_id"`
	Name       string  `json:"name"`
	Country    string  `json:"cn"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Height     int     `json:"height"`
	Popup      string  `json:"-"`
}

// Source is the element chosen as authoritative for a station measurement.
type Source struct {
	ProviderID      int       `json:"provider_id"`
	MagnitudeID     int       `json:"magnitude_id"`
	MeasurementID   int       `json:"measurement_id"`
	Measurement     string    `json:"measurement"`
	StationID       int       `json:"station_id"`
	SourceID        int       `json:"source_id"`
	ElementCode     string    `json:"element_id"`
	Start           time.Time `json:"start_date"`
	End             time.Time `json:"end_date"`
	ParticipantName string    `json:"participant_name,omitempty"`
}

// DataFile holds the download locations of one (magnitude, measurement) pair.
type DataFile struct {
	URL     string
	DateURL string
	Updated *time.Time
}
