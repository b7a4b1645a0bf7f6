// Package filesink writes station series as JSON files, one per station.
package filesink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

// Sink writes <dir>/<provider>/STA_<code>.json. It implements pipeline.Sink.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// New creates a Sink rooted at dir.
func New(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

// Path returns the artifact path of a station.
func (s *Sink) Path(provider string, stationCode int) string {
	return filepath.Join(s.dir, provider, "STA_"+strconv.Itoa(stationCode)+".json")
}

// Publish replaces the station's artifact. The file is written beside its
// final path and renamed into place, so readers never see a partial file.
func (s *Sink) Publish(ctx context.Context, runID string, series domain.StationSeries) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(series.Provider, series.StationCode)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("serialize station series: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".sta-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}

	s.logger.Debug("station series written", "path", path, "run_id", runID)
	return nil
}

// Close satisfies io.Closer. Nothing is held open between writes.
func (s *Sink) Close() error { return nil }
