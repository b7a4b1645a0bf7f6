package ecad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

// UnitCelsius is the only unit family recognized in the element catalog.
const UnitCelsius = "C"

// ElementStore is the catalog access needed to load elements.
type ElementStore interface {
	Element(ctx context.Context, key domain.ElementKey) (domain.Element, bool, error)
	InsertElement(ctx context.Context, e domain.Element) error
}

// LoadResult counts what a catalog load did.
type LoadResult struct {
	Read     int
	Inserted int
	Skipped  int
}

// LoadElements reads an elements.txt file and inserts every element of
// measurement that the store does not hold yet. Existing rows are never
// updated.
func LoadElements(ctx context.Context, st ElementStore, path string, providerID, magnitudeID int, meas domain.Measurement, logger *slog.Logger) (LoadResult, error) {
	var res LoadResult

	tf, err := openText(path, true, elementsHeaderLine)
	if err != nil {
		return res, fmt.Errorf("open elements file: %w", err)
	}
	defer tf.Close()

	// column titles
	if _, err := nextNonBlank(tf); err != nil {
		return res, fmt.Errorf("read elements header: %w", err)
	}

	for {
		line, err := nextNonBlank(tf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read elements file: %w", err)
		}
		res.Read++

		runes := []rune(line)
		code := fixed(runes, 0, 5)
		descr := fixed(runes, 6, 156)
		factor, unit, err := ParseFactorUnit(fixed(runes, 158, 169))
		if code == "" || err != nil {
			logger.Warn("skipping malformed element row", "path", path, "line", line, "error", err)
			res.Skipped++
			continue
		}

		e := domain.Element{
			ElementKey: domain.ElementKey{
				ProviderID:    providerID,
				MagnitudeID:   magnitudeID,
				MeasurementID: meas.ID,
				Code:          code,
			},
			Description: descr,
			Unit:        unit,
			Factor:      factor,
			Priority:    meas.RankOf(code),
		}

		_, exists, err := st.Element(ctx, e.ElementKey)
		if err != nil {
			return res, fmt.Errorf("check element %s: %w", code, err)
		}
		if exists {
			res.Skipped++
			continue
		}
		if err := st.InsertElement(ctx, e); err != nil {
			return res, fmt.Errorf("insert element %s: %w", code, err)
		}
		res.Inserted++
	}

	return res, nil
}

// ParseFactorUnit splits a "0.1 °C" column into its factor and unit. The unit
// is set only for the Celsius family. An empty column yields nil values.
func ParseFactorUnit(s string) (*float64, *string, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return nil, nil, nil
	}
	f, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, nil, fmt.Errorf("parse factor %q: %w", parts[0], err)
	}
	var unit *string
	if len(parts) > 1 && strings.Contains(parts[1], UnitCelsius) {
		u := UnitCelsius
		unit = &u
	}
	return &f, unit, nil
}

func nextNonBlank(tf *textFile) (string, error) {
	for {
		line, err := tf.readLine()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(line) != "" {
			return line, nil
		}
	}
}
