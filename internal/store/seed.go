package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

type seedFile struct {
	Providers []seedProvider `yaml:"providers"`
}

type seedProvider struct {
	ID             int               `yaml:"id"`
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	URL            string            `yaml:"url"`
	UpdatePeriod   int               `yaml:"update_data_period"`
	Acknowledgment string            `yaml:"acknowledgment"`
	Extra          map[string]string `yaml:"extra"`
	Magnitudes     []seedMagnitude   `yaml:"magnitudes"`
}

type seedMagnitude struct {
	ID           int               `yaml:"id"`
	Name         string            `yaml:"name"`
	Measurements []seedMeasurement `yaml:"measurements"`
}

type seedMeasurement struct {
	domain.Measurement `yaml:",inline"`
	URL                string `yaml:"url"`
	DateURL            string `yaml:"date_url"`
}

// LoadSeed builds a Memory store from a YAML provider catalog.
func LoadSeed(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed builds a Memory store from YAML seed data.
func ParseSeed(data []byte) (*Memory, error) {
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	m := NewMemory()
	seen := make(map[int]bool)
	for _, sp := range sf.Providers {
		if sp.Name == "" {
			return nil, fmt.Errorf("seed provider %d: name is required", sp.ID)
		}
		if seen[sp.ID] {
			return nil, fmt.Errorf("seed provider %d: duplicate id", sp.ID)
		}
		seen[sp.ID] = true

		p := domain.Provider{
			ID:             sp.ID,
			Name:           sp.Name,
			Description:    sp.Description,
			URL:            sp.URL,
			UpdatePeriod:   sp.UpdatePeriod,
			Acknowledgment: sp.Acknowledgment,
			Extra:          sp.Extra,
		}
		for _, sm := range sp.Magnitudes {
			mag := domain.Magnitude{ID: sm.ID, Name: sm.Name}
			for _, meas := range sm.Measurements {
				ms := meas.Measurement
				ms.MagnitudeID = sm.ID
				mag.Measurements = append(mag.Measurements, ms)
				if meas.URL != "" {
					m.dataFiles[pairKey{p.ID, sm.ID, ms.ID}] = domain.DataFile{URL: meas.URL, DateURL: meas.DateURL}
				}
			}
			p.Magnitudes = append(p.Magnitudes, mag)
		}
		m.providers = append(m.providers, p)
	}
	return m, nil
}
