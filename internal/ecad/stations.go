package ecad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

// StationStore is the catalog access needed to load stations.
type StationStore interface {
	Station(ctx context.Context, providerID, code int) (domain.Station, bool, error)
	InsertStation(ctx context.Context, s domain.Station) error
}

// LoadStations reads a stations.txt file and inserts every station the
// provider does not hold yet.
func LoadStations(ctx context.Context, st StationStore, path string, providerID int, logger *slog.Logger) (LoadResult, error) {
	var res LoadResult

	tf, err := openText(path, false, stationsHeaderLine)
	if err != nil {
		return res, fmt.Errorf("open stations file: %w", err)
	}
	defer tf.Close()

	r, cols, err := tf.csv()
	if err != nil {
		return res, fmt.Errorf("stations file %s: %w", path, err)
	}
	idx, err := columns(cols, "STAID", "STANAME", "CN", "LAT", "LON", "HGHT")
	if err != nil {
		return res, fmt.Errorf("stations file %s: %w", path, err)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read stations file: %w", err)
		}
		res.Read++

		s, err := parseStation(rec, idx)
		if err != nil {
			logger.Warn("skipping malformed station row", "path", path, "error", err)
			res.Skipped++
			continue
		}
		s.ProviderID = providerID

		_, exists, err := st.Station(ctx, providerID, s.Code)
		if err != nil {
			return res, fmt.Errorf("check station %d: %w", s.Code, err)
		}
		if exists {
			res.Skipped++
			continue
		}
		if err := st.InsertStation(ctx, s); err != nil {
			return res, fmt.Errorf("insert station %d: %w", s.Code, err)
		}
		res.Inserted++
	}
	return res, nil
}

func parseStation(rec []string, idx []int) (domain.Station, error) {
	code, err := strconv.Atoi(field(rec, idx[0]))
	if err != nil {
		return domain.Station{}, fmt.Errorf("parse STAID: %w", err)
	}
	lat, err := DMSToDecimal(field(rec, idx[3]))
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %d LAT: %w", code, err)
	}
	lon, err := DMSToDecimal(field(rec, idx[4]))
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %d LON: %w", code, err)
	}
	height, err := strconv.Atoi(field(rec, idx[5]))
	if err != nil {
		return domain.Station{}, fmt.Errorf("station %d HGHT: %w", code, err)
	}
	return domain.Station{
		Code:    code,
		Name:    field(rec, idx[1]),
		Country: field(rec, idx[2]),
		Lat:     lat,
		Lon:     lon,
		Height:  height,
	}, nil
}

// DMSToDecimal converts "±D:M:S" to decimal degrees. The sign of the degree
// part applies to the whole angle.
func DMSToDecimal(dms string) (float64, error) {
	dms = strings.TrimSpace(dms)
	parts := strings.Split(dms, ":")
	if len(parts) != 3 || parts[0] == "" {
		return 0, fmt.Errorf("invalid sexagesimal value %q", dms)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid sexagesimal value %q: %w", dms, err)
		}
		vals[i] = v
	}
	deg, minutes, seconds := vals[0], vals[1], vals[2]
	if strings.HasPrefix(parts[0], "-") {
		minutes, seconds = -minutes, -seconds
	}
	dd := deg + minutes/60 + seconds/3600
	if math.IsNaN(dd) {
		return 0, fmt.Errorf("invalid sexagesimal value %q", dms)
	}
	return dd, nil
}
