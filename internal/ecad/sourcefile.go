package ecad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/station-climate-etl/internal/average"
	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

// QualityValid is the quality code of a usable reading.
const QualityValid = 0

const (
	seriesDateLayout = "20060102"
	day              = 24 * time.Hour
)

// FactorLookup resolves the scale of an element code.
type FactorLookup interface {
	UnitFactor(ctx context.Context, providerID int, code string) (domain.UnitFactor, bool, error)
}

// SourceFile is one parsed series file. Process fills the identity and
// validity window; Read materializes the daily values.
type SourceFile struct {
	Path        string                `json:"path"`
	ProviderID  int                   `json:"provider_id"`
	MagnitudeID int                   `json:"magnitude_id"`
	Measurement domain.MeasurementRef `json:"measurement"`
	StationID   int                   `json:"station_id"`
	SourceID    int                   `json:"source_id"`
	ElementType string                `json:"element_type"`
	Participant string                `json:"participant,omitempty"`
	Start       time.Time             `json:"start"`
	End         time.Time             `json:"end"`
	Factor      *float64              `json:"factor,omitempty"`
	Unit        *string               `json:"unit,omitempty"`
	Processed   bool                  `json:"processed"`
}

// Series is the daily value sequence of a source file over its window.
type Series struct {
	Dates    []time.Time
	Values   domain.Values
	Averages map[int]float64
}

// NewSourceFile returns an unprocessed source file.
func NewSourceFile(path string, providerID, magnitudeID int, meas domain.MeasurementRef) *SourceFile {
	return &SourceFile{
		Path:        path,
		ProviderID:  providerID,
		MagnitudeID: magnitudeID,
		Measurement: meas,
	}
}

// Source returns the persisted binding this file represents.
func (sf *SourceFile) Source() domain.Source {
	return domain.Source{
		ProviderID:      sf.ProviderID,
		MagnitudeID:     sf.MagnitudeID,
		MeasurementID:   sf.Measurement.ID,
		Measurement:     sf.Measurement.Name,
		StationID:       sf.StationID,
		SourceID:        sf.SourceID,
		ElementCode:     sf.ElementType,
		Start:           sf.Start,
		End:             sf.End,
		ParticipantName: sf.Participant,
	}
}

// Process parses the file identity and validity window, then resolves the
// element type from index (loaded from the file's directory when nil) and the
// scale factor from lookup. A missing or unusable file is logged and left
// unprocessed. Only lookup failures are returned.
func (sf *SourceFile) Process(ctx context.Context, lookup FactorLookup, index SourceIndex, logger *slog.Logger) error {
	log := logger.With("path", sf.Path, "measurement", sf.Measurement.Name)

	if _, err := os.Stat(sf.Path); err != nil {
		log.Error("source file does not exist", "error", err)
		return nil
	}
	if err := sf.scanWindow(); err != nil {
		log.Warn("source file not usable", "error", err)
		return nil
	}

	if index == nil {
		var err error
		index, err = LoadSourceIndex(filepath.Dir(sf.Path))
		if err != nil {
			log.Warn("sources file not readable", "error", err)
		}
	}
	if info, ok := index[sf.SourceID]; ok {
		sf.ElementType = info.ElementType
		sf.Participant = info.Participant
	} else {
		log.Warn("source id not listed in sources file", "source_id", sf.SourceID)
	}

	if sf.ElementType != "" {
		uf, ok, err := lookup.UnitFactor(ctx, sf.ProviderID, sf.ElementType)
		if err != nil {
			return fmt.Errorf("resolve factor for %s: %w", sf.ElementType, err)
		}
		if ok {
			f, u := uf.Factor, uf.Unit
			sf.Factor, sf.Unit = &f, &u
		}
	}
	if sf.Factor == nil {
		log.Warn("no unit factor for element", "element", sf.ElementType)
	}

	sf.Processed = true
	return nil
}

// scanWindow reads station and source ids from the first data row and the
// first and last dates with a valid quality code.
func (sf *SourceFile) scanWindow() error {
	var first, last time.Time
	var sawRow bool

	err := sf.eachRow(func(r row) error {
		if !sawRow {
			sf.StationID, sf.SourceID = r.station, r.source
			sawRow = true
		}
		if r.quality != QualityValid {
			return nil
		}
		if first.IsZero() {
			first = r.date
		}
		last = r.date
		return nil
	})
	if err != nil {
		return err
	}
	if !sawRow {
		return errors.New("no data rows")
	}
	if first.IsZero() {
		return errors.New("no valid readings")
	}
	sf.Start, sf.End = first, last
	return nil
}

// Read builds the daily series over [Start, End]. Every valid reading inside
// the window is scaled and recorded in agg. Days without one stay NaN.
func (sf *SourceFile) Read(agg *average.Aggregator) (Series, error) {
	if sf.Start.IsZero() || sf.End.Before(sf.Start) {
		return Series{}, fmt.Errorf("read %s: empty window", sf.Path)
	}

	n := int(sf.End.Sub(sf.Start)/day) + 1
	dates := make([]time.Time, n)
	values := make(domain.Values, n)
	for i := range dates {
		dates[i] = sf.Start.Add(time.Duration(i) * day)
		values[i] = math.NaN()
	}

	if sf.Factor != nil {
		factor := *sf.Factor
		err := sf.eachRow(func(r row) error {
			if r.quality != QualityValid || r.date.Before(sf.Start) || r.date.After(sf.End) {
				return nil
			}
			v := float64(r.value) * factor
			values[int(r.date.Sub(sf.Start)/day)] = v
			agg.Record(r.date, v)
			return nil
		})
		if err != nil {
			return Series{}, fmt.Errorf("read %s: %w", sf.Path, err)
		}
	}

	return Series{Dates: dates, Values: values, Averages: agg.Finalize()}, nil
}

type row struct {
	station int
	source  int
	date    time.Time
	value   int
	quality int
}

// eachRow streams the data rows of the series file. Rows that fail to parse
// are skipped.
func (sf *SourceFile) eachRow(fn func(row) error) error {
	tf, err := openText(sf.Path, true, seriesHeaderLine)
	if err != nil {
		return err
	}
	defer tf.Close()

	r, cols, err := tf.csv()
	if err != nil {
		return err
	}
	alias := sf.Measurement.Alias
	idx, err := columns(cols, "STAID", "SOUID", "DATE", alias, "Q_"+alias)
	if err != nil {
		return err
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		parsed, ok := parseRow(rec, idx)
		if !ok {
			continue
		}
		if err := fn(parsed); err != nil {
			return err
		}
	}
}

func parseRow(rec []string, idx []int) (row, bool) {
	var r row
	var err error
	if r.station, err = strconv.Atoi(field(rec, idx[0])); err != nil {
		return r, false
	}
	if r.source, err = strconv.Atoi(field(rec, idx[1])); err != nil {
		return r, false
	}
	if r.date, err = time.ParseInLocation(seriesDateLayout, field(rec, idx[2]), time.UTC); err != nil {
		return r, false
	}
	if r.value, err = strconv.Atoi(field(rec, idx[3])); err != nil {
		return r, false
	}
	if r.quality, err = strconv.Atoi(field(rec, idx[4])); err != nil {
		return r, false
	}
	return r, true
}
