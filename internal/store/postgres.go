package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

// Postgres is the catalog backed by a pgx connection pool. The schema is
// managed outside this service.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping reports whether the database is reachable.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const listProvidersSQL = `
    SELECT id, name, COALESCE(description, ''), COALESCE(url, ''),
           COALESCE(update_data_period, 0), COALESCE(acknowledgment, '')
    FROM providers
    ORDER BY id
`

const listMagnitudesSQL = `
    SELECT m.id, m.name
    FROM magnitudes m
    JOIN providers_magnitudes pm ON pm.magnitude_id = m.id
    WHERE pm.provider_id = $1
    ORDER BY m.id
`

const listMeasurementsSQL = `
    SELECT id, name, last_download, last_try
    FROM measurements
    WHERE magnitude_id = $1
    ORDER BY id
`

// Providers loads every provider with its extras, magnitudes and
// measurements. Preference lists come from the ranked element catalog.
func (s *Postgres) Providers(ctx context.Context) ([]domain.Provider, error) {
	rows, err := s.pool.Query(ctx, listProvidersSQL)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	providers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Provider, error) {
		var p domain.Provider
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.URL, &p.UpdatePeriod, &p.Acknowledgment)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan providers: %w", err)
	}

	for i := range providers {
		p := &providers[i]
		if p.Extra, err = s.providerExtra(ctx, p.ID); err != nil {
			return nil, err
		}
		prefs, err := s.PreferredElements(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if p.Magnitudes, err = s.magnitudes(ctx, p.ID, prefs); err != nil {
			return nil, err
		}
	}
	return providers, nil
}

func (s *Postgres) providerExtra(ctx context.Context, providerID int) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM providers_extra_data WHERE provider_id = $1`, providerID)
	if err != nil {
		return nil, fmt.Errorf("query provider extra data: %w", err)
	}
	defer rows.Close()

	extra := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan provider extra data: %w", err)
		}
		extra[k] = v
	}
	return extra, rows.Err()
}

func (s *Postgres) magnitudes(ctx context.Context, providerID int, prefs map[int][]string) ([]domain.Magnitude, error) {
	rows, err := s.pool.Query(ctx, listMagnitudesSQL, providerID)
	if err != nil {
		return nil, fmt.Errorf("query magnitudes: %w", err)
	}
	mags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Magnitude, error) {
		var m domain.Magnitude
		err := row.Scan(&m.ID, &m.Name)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan magnitudes: %w", err)
	}

	for i := range mags {
		rows, err := s.pool.Query(ctx, listMeasurementsSQL, mags[i].ID)
		if err != nil {
			return nil, fmt.Errorf("query measurements: %w", err)
		}
		magID := mags[i].ID
		meas, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Measurement, error) {
			m := domain.Measurement{MagnitudeID: magID}
			err := row.Scan(&m.ID, &m.Name, &m.LastDownload, &m.LastTry)
			m.Preference = prefs[m.ID]
			return m, err
		})
		if err != nil {
			return nil, fmt.Errorf("scan measurements: %w", err)
		}
		mags[i].Measurements = meas
	}
	return mags, nil
}

// PreferredElements returns the ranked element codes of each measurement,
// most preferred first.
func (s *Postgres) PreferredElements(ctx context.Context, providerID int) (map[int][]string, error) {
	rows, err := s.pool.Query(ctx, `
    SELECT measurement_id, element_id
    FROM ecad_elements
    WHERE provider_id = $1 AND priority IS NOT NULL
    ORDER BY measurement_id, priority`, providerID)
	if err != nil {
		return nil, fmt.Errorf("query preferred elements: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]string)
	for rows.Next() {
		var measID int
		var code string
		if err := rows.Scan(&measID, &code); err != nil {
			return nil, fmt.Errorf("scan preferred elements: %w", err)
		}
		out[measID] = append(out[measID], code)
	}
	return out, rows.Err()
}

func (s *Postgres) DataFile(ctx context.Context, providerID, magnitudeID, measurementID int) (domain.DataFile, bool, error) {
	var df domain.DataFile
	err := s.pool.QueryRow(ctx, `
    SELECT url, COALESCE(date_url, ''), updated
    FROM data_files
    WHERE provider_id = $1 AND magnitude_id = $2 AND measurement_id = $3`,
		providerID, magnitudeID, measurementID).Scan(&df.URL, &df.DateURL, &df.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return df, false, nil
	}
	if err != nil {
		return df, false, fmt.Errorf("query data file: %w", err)
	}
	return df, true, nil
}

func (s *Postgres) SetDataFileUpdated(ctx context.Context, providerID, magnitudeID, measurementID int, updated time.Time) error {
	_, err := s.pool.Exec(ctx, `
    UPDATE data_files SET updated = $1
    WHERE provider_id = $2 AND magnitude_id = $3 AND measurement_id = $4`,
		updated, providerID, magnitudeID, measurementID)
	if err != nil {
		return fmt.Errorf("update data file date: %w", err)
	}
	return nil
}

func (s *Postgres) SetLastDownload(ctx context.Context, magnitudeID int, measurement string, t time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE measurements SET last_download = $1 WHERE magnitude_id = $2 AND name = $3`,
		t, magnitudeID, measurement)
	if err != nil {
		return fmt.Errorf("update last download: %w", err)
	}
	return nil
}

func (s *Postgres) SetLastTry(ctx context.Context, magnitudeID int, measurement string, t time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE measurements SET last_try = $1 WHERE magnitude_id = $2 AND name = $3`,
		t, magnitudeID, measurement)
	if err != nil {
		return fmt.Errorf("update last try: %w", err)
	}
	return nil
}

func (s *Postgres) CountStations(ctx context.Context, providerID int) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(id) FROM stations WHERE provider_id = $1`, providerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count stations: %w", err)
	}
	return n, nil
}

func (s *Postgres) CountElements(ctx context.Context, providerID int) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ecad_elements WHERE provider_id = $1`, providerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count elements: %w", err)
	}
	return n, nil
}

func (s *Postgres) Element(ctx context.Context, key domain.ElementKey) (domain.Element, bool, error) {
	e := domain.Element{ElementKey: key}
	var priority *int
	err := s.pool.QueryRow(ctx, `
    SELECT COALESCE(description, ''), unit, factor, priority
    FROM ecad_elements
    WHERE provider_id = $1 AND magnitude_id = $2 AND measurement_id = $3 AND element_id = $4`,
		key.ProviderID, key.MagnitudeID, key.MeasurementID, key.Code).Scan(&e.Description, &e.Unit, &e.Factor, &priority)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, false, nil
	}
	if err != nil {
		return e, false, fmt.Errorf("query element %s: %w", key.Code, err)
	}
	e.Priority = domain.RankFromPtr(priority)
	return e, true, nil
}

func (s *Postgres) InsertElement(ctx context.Context, e domain.Element) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO ecad_elements (provider_id, magnitude_id, measurement_id, element_id, description, unit, factor, priority)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT DO NOTHING`,
		e.ProviderID, e.MagnitudeID, e.MeasurementID, e.Code, e.Description, e.Unit, e.Factor, e.Priority.Ptr())
	if err != nil {
		return fmt.Errorf("insert element %s: %w", e.Code, err)
	}
	return nil
}

func (s *Postgres) UnitFactor(ctx context.Context, providerID int, code string) (domain.UnitFactor, bool, error) {
	var uf domain.UnitFactor
	err := s.pool.QueryRow(ctx, `
    SELECT factor, COALESCE(unit, '')
    FROM ecad_elements
    WHERE provider_id = $1 AND element_id = $2 AND factor IS NOT NULL
    ORDER BY magnitude_id, measurement_id
    LIMIT 1`, providerID, code).Scan(&uf.Factor, &uf.Unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return uf, false, nil
	}
	if err != nil {
		return uf, false, fmt.Errorf("query unit factor %s: %w", code, err)
	}
	return uf, true, nil
}

const stationColumns = `id, provider_id, station_id, name, cn, lat, lon, height, COALESCE(popup, '')`

func scanStation(row pgx.CollectableRow) (domain.Station, error) {
	var st domain.Station
	err := row.Scan(&st.ID, &st.ProviderID, &st.Code, &st.Name, &st.Country, &st.Lat, &st.Lon, &st.Height, &st.Popup)
	return st, err
}

func (s *Postgres) Station(ctx context.Context, providerID, code int) (domain.Station, bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stationColumns+` FROM stations WHERE provider_id = $1 AND station_id = $2`, providerID, code)
	if err != nil {
		return domain.Station{}, false, fmt.Errorf("query station %d: %w", code, err)
	}
	st, err := pgx.CollectOneRow(rows, scanStation)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Station{}, false, nil
	}
	if err != nil {
		return domain.Station{}, false, fmt.Errorf("scan station %d: %w", code, err)
	}
	return st, true, nil
}

func (s *Postgres) InsertStation(ctx context.Context, st domain.Station) error {
	_, err := s.pool.Exec(ctx, `
    INSERT INTO stations (provider_id, station_id, name, cn, lat, lon, height)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT DO NOTHING`,
		st.ProviderID, st.Code, st.Name, st.Country, st.Lat, st.Lon, st.Height)
	if err != nil {
		return fmt.Errorf("insert station %d: %w", st.Code, err)
	}
	return nil
}

func (s *Postgres) Stations(ctx context.Context, providerID int) ([]domain.Station, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+stationColumns+` FROM stations WHERE provider_id = $1 ORDER BY station_id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	stations, err := pgx.CollectRows(rows, scanStation)
	if err != nil {
		return nil, fmt.Errorf("scan stations: %w", err)
	}
	return stations, nil
}

func (s *Postgres) Popup(ctx context.Context, stationID int) (string, error) {
	var popup *string
	err := s.pool.QueryRow(ctx, `SELECT popup FROM stations WHERE id = $1`, stationID).Scan(&popup)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query popup: %w", err)
	}
	if popup == nil {
		return "", nil
	}
	return *popup, nil
}

func (s *Postgres) UpdatePopup(ctx context.Context, stationID int, popup string) error {
	if _, err := s.pool.Exec(ctx, `UPDATE stations SET popup = $1 WHERE id = $2`, popup, stationID); err != nil {
		return fmt.Errorf("update popup: %w", err)
	}
	return nil
}

// SaveSource updates the station measurement binding in place or inserts
// it, inside one transaction.
func (s *Postgres) SaveSource(ctx context.Context, src domain.Source) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var dataStationID int
		err := tx.QueryRow(ctx, `SELECT id FROM stations WHERE provider_id = $1 AND station_id = $2`,
			src.ProviderID, src.StationID).Scan(&dataStationID)
		if err != nil {
			return fmt.Errorf("find station %d: %w", src.StationID, err)
		}

		tag, err := tx.Exec(ctx, `
    UPDATE ecad_sources
    SET source_id = $1, element_id = $2, start_date = $3, end_date = $4, participant_name = $5
    WHERE provider_id = $6 AND magnitude_id = $7 AND measurement_id = $8 AND data_station_id = $9`,
			src.SourceID, src.ElementCode, src.Start, src.End, src.ParticipantName,
			src.ProviderID, src.MagnitudeID, src.MeasurementID, dataStationID)
		if err != nil {
			return fmt.Errorf("update source: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `
    INSERT INTO ecad_sources (provider_id, magnitude_id, measurement_id, data_station_id, source_id, element_id, start_date, end_date, participant_name)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			src.ProviderID, src.MagnitudeID, src.MeasurementID, dataStationID,
			src.SourceID, src.ElementCode, src.Start, src.End, src.ParticipantName)
		if err != nil {
			return fmt.Errorf("insert source: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save source for station %d: %w", src.StationID, err)
	}
	return nil
}
