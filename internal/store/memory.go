// Package store persists the provider, element and station catalogs.
//
// Memory backs tests and the inspect command; Postgres backs deployments.
// Both satisfy the narrow interfaces declared by their consumers.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

type pairKey struct {
	provider, magnitude, measurement int
}

type measKey struct {
	magnitude int
	name      string
}

type stationKey struct {
	provider, code int
}

type sourceKey struct {
	provider, magnitude, measurement, station int
}

// Memory is a mutex-guarded in-memory catalog.
type Memory struct {
	mu        sync.RWMutex
	providers []domain.Provider
	dataFiles map[pairKey]domain.DataFile
	downloads map[measKey]time.Time
	tries     map[measKey]time.Time
	elements  map[domain.ElementKey]domain.Element
	stations  map[stationKey]*domain.Station
	sources   map[sourceKey]domain.Source
	nextID    int
}

// NewMemory returns an empty store holding providers.
func NewMemory(providers ...domain.Provider) *Memory {
	return &Memory{
		providers: providers,
		dataFiles: make(map[pairKey]domain.DataFile),
		downloads: make(map[measKey]time.Time),
		tries:     make(map[measKey]time.Time),
		elements:  make(map[domain.ElementKey]domain.Element),
		stations:  make(map[stationKey]*domain.Station),
		sources:   make(map[sourceKey]domain.Source),
	}
}

// SetDataFile registers the download locations of a pair.
func (m *Memory) SetDataFile(providerID, magnitudeID, measurementID int, df domain.DataFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataFiles[pairKey{providerID, magnitudeID, measurementID}] = df
}

func (m *Memory) Providers(_ context.Context) ([]domain.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Provider, len(m.providers))
	for i, p := range m.providers {
		mags := make([]domain.Magnitude, len(p.Magnitudes))
		for j, mag := range p.Magnitudes {
			meas := make([]domain.Measurement, len(mag.Measurements))
			for k, ms := range mag.Measurements {
				ms.MagnitudeID = mag.ID
				ms.Preference = append([]string(nil), ms.Preference...)
				key := measKey{mag.ID, ms.Name}
				if t, ok := m.downloads[key]; ok {
					ms.LastDownload = &t
				}
				if t, ok := m.tries[key]; ok {
					ms.LastTry = &t
				}
				meas[k] = ms
			}
			mag.Measurements = meas
			mags[j] = mag
		}
		p.Magnitudes = mags
		out[i] = p
	}
	return out, nil
}

func (m *Memory) DataFile(_ context.Context, providerID, magnitudeID, measurementID int) (domain.DataFile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	df, ok := m.dataFiles[pairKey{providerID, magnitudeID, measurementID}]
	return df, ok, nil
}

func (m *Memory) SetDataFileUpdated(_ context.Context, providerID, magnitudeID, measurementID int, updated time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{providerID, magnitudeID, measurementID}
	df := m.dataFiles[key]
	df.Updated = &updated
	m.dataFiles[key] = df
	return nil
}

func (m *Memory) SetLastDownload(_ context.Context, magnitudeID int, measurement string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[measKey{magnitudeID, measurement}] = t
	return nil
}

func (m *Memory) SetLastTry(_ context.Context, magnitudeID int, measurement string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tries[measKey{magnitudeID, measurement}] = t
	return nil
}

func (m *Memory) CountStations(_ context.Context, providerID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.stations {
		if k.provider == providerID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountElements(_ context.Context, providerID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.elements {
		if k.ProviderID == providerID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Element(_ context.Context, key domain.ElementKey) (domain.Element, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.elements[key]
	return e, ok, nil
}

// InsertElement adds e unless its key is already present.
func (m *Memory) InsertElement(_ context.Context, e domain.Element) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.elements[e.ElementKey]; !ok {
		m.elements[e.ElementKey] = e
	}
	return nil
}

// UnitFactor returns the factor of the first element with code that has one.
func (m *Memory) UnitFactor(_ context.Context, providerID int, code string) (domain.UnitFactor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]domain.ElementKey, 0)
	for k, e := range m.elements {
		if k.ProviderID == providerID && k.Code == code && e.Factor != nil {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return domain.UnitFactor{}, false, nil
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].MagnitudeID != keys[j].MagnitudeID {
			return keys[i].MagnitudeID < keys[j].MagnitudeID
		}
		return keys[i].MeasurementID < keys[j].MeasurementID
	})
	e := m.elements[keys[0]]
	uf := domain.UnitFactor{Factor: *e.Factor}
	if e.Unit != nil {
		uf.Unit = *e.Unit
	}
	return uf, true, nil
}

func (m *Memory) Station(_ context.Context, providerID, code int) (domain.Station, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stations[stationKey{providerID, code}]
	if !ok {
		return domain.Station{}, false, nil
	}
	return *s, true, nil
}

// InsertStation adds s with a fresh id unless (provider, code) exists.
func (m *Memory) InsertStation(_ context.Context, s domain.Station) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stationKey{s.ProviderID, s.Code}
	if _, ok := m.stations[key]; ok {
		return nil
	}
	m.nextID++
	s.ID = m.nextID
	m.stations[key] = &s
	return nil
}

// Stations lists the provider's stations by code.
func (m *Memory) Stations(_ context.Context, providerID int) ([]domain.Station, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Station, 0)
	for k, s := range m.stations {
		if k.provider == providerID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *Memory) Popup(_ context.Context, stationID int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.stations {
		if s.ID == stationID {
			return s.Popup, nil
		}
	}
	return "", nil
}

func (m *Memory) UpdatePopup(_ context.Context, stationID int, popup string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stations {
		if s.ID == stationID {
			s.Popup = popup
			return nil
		}
	}
	return nil
}

// SaveSource records src as the binding of its station measurement,
// replacing any earlier one.
func (m *Memory) SaveSource(_ context.Context, src domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[sourceKey{src.ProviderID, src.MagnitudeID, src.MeasurementID, src.StationID}] = src
	return nil
}

// Sources lists the bindings of a station code.
func (m *Memory) Sources(_ context.Context, providerID, stationCode int) ([]domain.Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Source, 0)
	for k, s := range m.sources {
		if k.provider == providerID && k.station == stationCode {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeasurementID < out[j].MeasurementID })
	return out, nil
}
