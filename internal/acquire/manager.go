// Package acquire decides whether upstream data changed and refreshes the
// extracted data tree when it did.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/couchcryptid/station-climate-etl/internal/ecad"
)

// Catalog is the persistence the manager reads and updates.
type Catalog interface {
	DataFile(ctx context.Context, providerID, magnitudeID, measurementID int) (domain.DataFile, bool, error)
	SetDataFileUpdated(ctx context.Context, providerID, magnitudeID, measurementID int, updated time.Time) error
	SetLastDownload(ctx context.Context, magnitudeID int, measurement string, t time.Time) error
	SetLastTry(ctx context.Context, magnitudeID int, measurement string, t time.Time) error
	CountStations(ctx context.Context, providerID int) (int, error)
	CountElements(ctx context.Context, providerID int) (int, error)
}

// Fetcher downloads a URL to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, kind, rawURL, dest string) (int64, error)
}

// Flags tell which catalogs of a pair must be (re)loaded.
type Flags struct {
	Stations bool
	Elements bool
}

// Any reports whether any catalog must be loaded.
func (f Flags) Any() bool { return f.Stations || f.Elements }

// Plan is the outcome of one acquisition run for a provider.
type Plan struct {
	Provider    string
	Pairs       map[int]map[string]Flags
	NeedSave    bool
	PublishDate time.Time
}

// Flags returns the flags of a (magnitude, measurement) pair.
func (p Plan) Flags(magnitudeID int, measurement string) Flags {
	return p.Pairs[magnitudeID][measurement]
}

func (p *Plan) set(magnitudeID int, measurement string, f Flags) {
	if p.Pairs[magnitudeID] == nil {
		p.Pairs[magnitudeID] = make(map[string]Flags)
	}
	p.Pairs[magnitudeID][measurement] = f
	if f.Any() {
		p.NeedSave = true
	}
}

// Options locate the data trees.
type Options struct {
	CurrentDir      string
	TmpDir          string
	DownloadEnabled bool
}

// Manager runs the acquisition state machine for each provider pair.
type Manager struct {
	catalog Catalog
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger
}

// NewManager creates an acquisition manager.
func NewManager(catalog Catalog, fetcher Fetcher, opts Options, logger *slog.Logger) *Manager {
	return &Manager{catalog: catalog, fetcher: fetcher, opts: opts, logger: logger}
}

// CurrentDir returns the live data directory of a provider.
func (m *Manager) CurrentDir(p domain.Provider) string {
	return filepath.Join(m.opts.CurrentDir, p.Name)
}

// Run checks every (magnitude, measurement) pair of p in id order. Download
// failures abort the run and are returned; nothing is retried.
func (m *Manager) Run(ctx context.Context, p domain.Provider) (Plan, error) {
	plan := Plan{Provider: p.Name, Pairs: make(map[int]map[string]Flags)}

	for _, mag := range p.SortedMagnitudes() {
		for _, meas := range mag.SortedMeasurements() {
			if err := ctx.Err(); err != nil {
				return plan, err
			}
			log := m.logger.With("provider", p.Name, "magnitude", mag.Name, "measurement", meas.Name)
			if err := m.runPair(ctx, p, mag, meas, &plan, log); err != nil {
				return plan, fmt.Errorf("acquire %s/%s/%s: %w", p.Name, mag.Name, meas.Name, err)
			}
		}
	}
	return plan, nil
}

func (m *Manager) runPair(ctx context.Context, p domain.Provider, mag domain.Magnitude, meas domain.Measurement, plan *Plan, log *slog.Logger) error {
	df, ok, err := m.catalog.DataFile(ctx, p.ID, mag.ID, meas.ID)
	if err != nil {
		return fmt.Errorf("look up data file: %w", err)
	}
	if !ok || df.URL == "" {
		log.Info("no download url configured, skipping")
		return nil
	}

	if !m.opts.DownloadEnabled {
		log.Info("download disabled in config")
		return m.selfHeal(ctx, p, mag, meas, plan, false, log)
	}

	tmpDir := filepath.Join(m.opts.TmpDir, p.Name, mag.Name)
	stem := fmt.Sprintf("%s_%s_%s_%s", domain.Today().Format("20060102"), p.Name, mag.Name, meas.Name)
	archivePath := filepath.Join(tmpDir, stem+urlExt(df.URL))

	// Locate and fetch the marker. Without a date url the archive carries it.
	// An extensionless date url takes the archive's extension.
	markerExt := urlExt(df.DateURL)
	if markerExt == "" {
		markerExt = urlExt(df.URL)
	}
	markerURL, markerPath := df.DateURL, filepath.Join(tmpDir, stem+"_date"+markerExt)
	if markerURL == "" {
		markerURL, markerPath = df.URL, archivePath
	}
	if _, err := m.fetcher.Fetch(ctx, "marker", markerURL, markerPath); err != nil {
		return err
	}
	newDate, dated := ecad.MarkerDate(markerPath, p.MarkerFileName())
	if markerPath != archivePath {
		os.Remove(markerPath)
	}
	if dated && newDate.After(plan.PublishDate) {
		plan.PublishDate = newDate
	}

	// Compare.
	switch {
	case !dated:
		log.Warn("publish date not found in marker, fetching", "marker", p.MarkerFileName())
	case df.Updated == nil:
		log.Info("no previous publish date, fetching", "publish_date", newDate.Format(ecad.PublishDateLayout))
	case domain.Day(newDate).After(domain.Day(*df.Updated)):
		log.Info("newer data published, fetching",
			"publish_date", newDate.Format(ecad.PublishDateLayout),
			"previous", df.Updated.Format(ecad.PublishDateLayout))
	default:
		log.Info("upstream unchanged, skipping download", "publish_date", newDate.Format(ecad.PublishDateLayout))
		if markerPath == archivePath {
			os.Remove(archivePath)
		}
		return m.selfHeal(ctx, p, mag, meas, plan, true, log)
	}

	// Fetch archive.
	if markerPath != archivePath {
		if _, err := m.fetcher.Fetch(ctx, "archive", df.URL, archivePath); err != nil {
			return err
		}
	}
	defer os.Remove(archivePath)

	// Reconcile against the live tree.
	live := filepath.Join(m.CurrentDir(p), mag.Name, meas.Name)
	if curDate, ok := ecad.MarkerDate(filepath.Join(live, p.MarkerFileName()), p.MarkerFileName()); ok && dated && !curDate.Before(newDate) {
		log.Info("current data is up to date, discarding download", "current_date", curDate.Format(ecad.PublishDateLayout))
		if err := m.markUpdated(ctx, p, mag, meas, newDate); err != nil {
			return err
		}
		return m.selfHeal(ctx, p, mag, meas, plan, true, log)
	}

	log.Info("extracting archive", "dir", live)
	if err := ReplaceDir(archivePath, live); err != nil {
		return fmt.Errorf("replace %s: %w", live, err)
	}

	downloaded := newDate
	if !dated {
		downloaded = domain.Now()
	}
	if err := m.catalog.SetLastDownload(ctx, mag.ID, meas.Name, downloaded); err != nil {
		return fmt.Errorf("record last download: %w", err)
	}
	if dated {
		if err := m.markUpdated(ctx, p, mag, meas, newDate); err != nil {
			return err
		}
	}
	plan.set(mag.ID, meas.Name, Flags{Stations: true, Elements: true})
	return nil
}

func (m *Manager) markUpdated(ctx context.Context, p domain.Provider, mag domain.Magnitude, meas domain.Measurement, date time.Time) error {
	if err := m.catalog.SetDataFileUpdated(ctx, p.ID, mag.ID, meas.ID, date); err != nil {
		return fmt.Errorf("record publish date: %w", err)
	}
	return nil
}

// selfHeal flags catalogs for loading when the store holds no stations or
// no elements for the provider, which repairs an earlier partial run.
func (m *Manager) selfHeal(ctx context.Context, p domain.Provider, mag domain.Magnitude, meas domain.Measurement, plan *Plan, tried bool, log *slog.Logger) error {
	if tried {
		if err := m.catalog.SetLastTry(ctx, mag.ID, meas.Name, domain.Now()); err != nil {
			return fmt.Errorf("record last try: %w", err)
		}
	}
	stations, err := m.catalog.CountStations(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("count stations: %w", err)
	}
	elements, err := m.catalog.CountElements(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("count elements: %w", err)
	}

	flags := Flags{Stations: stations == 0, Elements: elements == 0}
	if flags.Any() {
		var missing []string
		if flags.Stations {
			missing = append(missing, "stations")
		}
		if flags.Elements {
			missing = append(missing, "elements")
		}
		log.Warn("data not stored", "missing", strings.Join(missing, ", "))
	}
	plan.set(mag.ID, meas.Name, flags)
	return nil
}

func urlExt(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return path.Ext(rawURL)
}
