// Package pipeline runs the provider refresh: acquisition, catalog loading,
// source resolution and publishing of the per-station series.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/station-climate-etl/internal/acquire"
	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/couchcryptid/station-climate-etl/internal/ecad"
	"github.com/couchcryptid/station-climate-etl/internal/observability"
)

const (
	stationsFileName = "stations.txt"
	elementsFileName = "elements.txt"
)

// Store is the persistence the pipeline reads and writes.
type Store interface {
	ecad.ElementStore
	ecad.StationStore
	Providers(ctx context.Context) ([]domain.Provider, error)
	Stations(ctx context.Context, providerID int) ([]domain.Station, error)
	UpdatePopup(ctx context.Context, stationID int, popup string) error
	SaveSource(ctx context.Context, src domain.Source) error
}

// Acquirer refreshes the data tree of a provider.
type Acquirer interface {
	Run(ctx context.Context, p domain.Provider) (acquire.Plan, error)
	CurrentDir(p domain.Provider) string
}

// SourceResolver builds the source collection of a provider data tree.
type SourceResolver interface {
	Parse(ctx context.Context, providerDir string, p domain.Provider) (*ecad.Collection, error)
}

// Sink receives the finished station series.
type Sink interface {
	Publish(ctx context.Context, runID string, s domain.StationSeries) error
}

// Options tune how series are built.
type Options struct {
	Policy     ecad.WindowPolicy
	LegendLang string
}

// Pipeline orchestrates one refresh of every provider.
type Pipeline struct {
	store    Store
	acquirer Acquirer
	resolver SourceResolver
	sink     Sink
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
	lastRun  atomic.Int64
}

// New creates a Pipeline with the given stages and observability.
func New(store Store, acq Acquirer, resolver SourceResolver, sink Sink, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Policy == nil {
		opts.Policy = ecad.MaxStartMaxEnd
	}
	return &Pipeline{
		store:    store,
		acquirer: acq,
		resolver: resolver,
		sink:     sink,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns when the last run completed, or the zero time.
func (p *Pipeline) LastRun() time.Time {
	ns := p.lastRun.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// RunOnce refreshes every provider in turn. A failing provider is logged
// and counted, and the run moves on to the next one. Only listing the
// providers or cancellation end the run early.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	providers, err := p.store.Providers(ctx)
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}
	log.Info("run started", "providers", len(providers))

	for _, prov := range providers {
		if err := ctx.Err(); err != nil {
			return err
		}
		prov = ecad.WithDefaultPreferences(prov)
		plog := log.With("provider", prov.Name)

		start := time.Now()
		err := p.runProvider(ctx, runID, prov, plog)
		p.metrics.RunDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.metrics.RunsTotal.WithLabelValues("error").Inc()
			plog.Error("provider run failed", "error", err)
			continue
		}
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
	}

	p.ready.Store(true)
	p.lastRun.Store(domain.Now().UnixNano())
	log.Info("run finished")
	return nil
}

func (p *Pipeline) runProvider(ctx context.Context, runID string, prov domain.Provider, log *slog.Logger) error {
	plan, err := p.acquirer.Run(ctx, prov)
	if err != nil {
		return err
	}

	dir := p.acquirer.CurrentDir(prov)
	if err := p.loadCatalogs(ctx, prov, dir, plan, log); err != nil {
		return err
	}

	publishDate := p.publishDate(prov, dir, plan)
	coll, err := p.collection(ctx, prov, dir, plan, publishDate, log)
	if err != nil {
		return err
	}

	return p.publishStations(ctx, runID, prov, coll, log)
}

// loadCatalogs loads the station and element catalogs of every pair the plan
// flags. A missing catalog file is logged and skipped.
func (p *Pipeline) loadCatalogs(ctx context.Context, prov domain.Provider, dir string, plan acquire.Plan, log *slog.Logger) error {
	for _, mag := range prov.SortedMagnitudes() {
		for _, meas := range mag.SortedMeasurements() {
			flags := plan.Flags(mag.ID, meas.Name)
			measDir := filepath.Join(dir, mag.Name, meas.Name)

			if flags.Stations {
				path := filepath.Join(measDir, stationsFileName)
				if exists(path) {
					res, err := ecad.LoadStations(ctx, p.store, path, prov.ID, log)
					if err != nil {
						return fmt.Errorf("load stations %s: %w", path, err)
					}
					p.metrics.CatalogInserted.WithLabelValues("stations").Add(float64(res.Inserted))
					log.Info("stations loaded", "path", path, "read", res.Read, "inserted", res.Inserted, "skipped", res.Skipped)
				} else {
					log.Error("stations file not found", "path", path)
				}
			}

			if flags.Elements {
				path := filepath.Join(measDir, elementsFileName)
				if exists(path) {
					res, err := ecad.LoadElements(ctx, p.store, path, prov.ID, mag.ID, meas, log)
					if err != nil {
						return fmt.Errorf("load elements %s: %w", path, err)
					}
					p.metrics.CatalogInserted.WithLabelValues("elements").Add(float64(res.Inserted))
					log.Info("elements loaded", "path", path, "read", res.Read, "inserted", res.Inserted, "skipped", res.Skipped)
				} else {
					log.Error("elements file not found", "path", path)
				}
			}
		}
	}
	return nil
}

// publishDate reads the marker of the first pair in the live tree, falling
// back to the date seen during acquisition.
func (p *Pipeline) publishDate(prov domain.Provider, dir string, plan acquire.Plan) time.Time {
	mags := prov.SortedMagnitudes()
	if len(mags) == 0 || len(mags[0].Measurements) == 0 {
		return plan.PublishDate
	}
	mag := mags[0]
	meas := mag.SortedMeasurements()[0]
	marker := filepath.Join(dir, mag.Name, meas.Name, prov.MarkerFileName())
	if d, ok := ecad.MarkerDate(marker, prov.MarkerFileName()); ok {
		return d
	}
	return plan.PublishDate
}

// collection loads the cached sources of publishDate when nothing changed,
// and otherwise resolves the tree again and caches the result.
func (p *Pipeline) collection(ctx context.Context, prov domain.Provider, dir string, plan acquire.Plan, publishDate time.Time, log *slog.Logger) (*ecad.Collection, error) {
	cachePath := ""
	if !publishDate.IsZero() {
		cachePath = ecad.CachePath(dir, publishDate, prov.CacheFileName())
	}

	if cachePath != "" && !plan.NeedSave {
		coll, err := ecad.LoadCache(cachePath, publishDate)
		if err == nil {
			log.Info("sources loaded from cache", "path", cachePath, "stations", len(coll.Stations))
			return coll, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, ecad.ErrStaleCache) {
			log.Warn("sources cache unreadable, rebuilding", "path", cachePath, "error", err)
		}
	}

	start := time.Now()
	coll, err := p.resolver.Parse(ctx, dir, prov)
	if err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}
	p.metrics.FilesProcessed.Add(float64(coll.Processed))
	p.metrics.FilesAdded.Add(float64(coll.Added))
	log.Info("sources resolved",
		"processed", coll.Processed,
		"added", coll.Added,
		"elapsed", time.Since(start).Round(time.Millisecond).String())

	if cachePath != "" {
		if err := ecad.SaveCache(cachePath, coll, publishDate); err != nil {
			log.Warn("sources cache not saved", "path", cachePath, "error", err)
		}
	}
	return coll, nil
}

// publishStations hands every stored station with sources to the sink and
// records its popup and chosen sources.
func (p *Pipeline) publishStations(ctx context.Context, runID string, prov domain.Provider, coll *ecad.Collection, log *slog.Logger) error {
	stations, err := p.store.Stations(ctx, prov.ID)
	if err != nil {
		return fmt.Errorf("list stations: %w", err)
	}

	published := 0
	for _, st := range stations {
		if err := ctx.Err(); err != nil {
			return err
		}
		files := coll.SourceFiles(st.Code, p.opts.Policy)
		if files == nil {
			continue
		}

		series, err := BuildStationSeries(st, files, p.opts.LegendLang)
		if err != nil {
			log.Warn("station series skipped", "station", st.Code, "error", err)
			continue
		}
		series.Provider = prov.Name
		if err := p.sink.Publish(ctx, runID, series); err != nil {
			return fmt.Errorf("publish station %d: %w", st.Code, err)
		}
		p.metrics.SeriesPublished.Inc()
		published++

		if err := p.store.UpdatePopup(ctx, st.ID, ecad.BuildPopup(st, files, prov)); err != nil {
			return fmt.Errorf("update popup of station %d: %w", st.Code, err)
		}
		for _, sf := range files {
			if err := p.store.SaveSource(ctx, sf.Source()); err != nil {
				return fmt.Errorf("save source of station %d: %w", st.Code, err)
			}
		}
	}
	log.Info("station series published", "stations", len(stations), "published", published)
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
