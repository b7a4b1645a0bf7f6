// Command inspect resolves an extracted ECA&D tree offline and prints what
// the pipeline would publish. It uses an in-memory catalog seeded from a
// providers file and never downloads anything.
//
// Usage:
//
//	go run ./cmd/inspect \
//	  -seed providers.yaml \
//	  -current-dir data/current \
//	  -station 229 \
//	  -policy max-max
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
	"github.com/couchcryptid/station-climate-etl/internal/ecad"
	"github.com/couchcryptid/station-climate-etl/internal/pipeline"
	"github.com/couchcryptid/station-climate-etl/internal/store"
)

type options struct {
	seed       string
	currentDir string
	station    int
	policy     string
	lang       string
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.seed, "seed", "providers.yaml", "providers seed file")
	flag.StringVar(&opts.currentDir, "current-dir", "data/current", "directory holding <provider>/<magnitude>/<measurement> trees")
	flag.IntVar(&opts.station, "station", 0, "station code (STAID) to print in detail")
	flag.StringVar(&opts.policy, "policy", ecad.PolicyMaxMax, "window policy: max-max, overlap or union")
	flag.StringVar(&opts.lang, "lang", "es", "legend language")
	flag.BoolVar(&opts.verbose, "v", false, "log parser warnings to stderr")
	flag.Parse()

	if code := run(context.Background(), os.Stdout, opts); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, w io.Writer, opts options) int {
	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	policy, err := ecad.ParseWindowPolicy(opts.policy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	mem, err := store.LoadSeed(opts.seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load seed: %v\n", err)
		return 1
	}
	providers, err := mem.Providers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list providers: %v\n", err)
		return 1
	}

	found := opts.station == 0
	for _, p := range providers {
		p = ecad.WithDefaultPreferences(p)
		dir := filepath.Join(opts.currentDir, p.Name)
		fmt.Fprintf(w, "=== %s (%s) ===\n", p.Name, dir)

		if err := loadCatalogs(ctx, w, mem, p, dir, logger); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", p.Name, err)
			return 1
		}

		coll, err := ecad.NewResolver(mem, logger).Parse(ctx, dir, p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: resolve sources: %v\n", p.Name, err)
			return 1
		}
		fmt.Fprintf(w, "Files: %d processed, %d added, %d stations with sources\n\n",
			coll.Processed, coll.Added, len(coll.StationIDs()))

		stations, err := mem.Stations(ctx, p.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: list stations: %v\n", p.Name, err)
			return 1
		}
		for _, st := range stations {
			files := coll.SourceFiles(st.Code, policy)
			if files == nil {
				continue
			}
			printSummary(w, st, files)
			if st.Code != opts.station {
				continue
			}
			found = true
			series, err := pipeline.BuildStationSeries(st, files, opts.lang)
			if err != nil {
				fmt.Fprintf(os.Stderr, "FATAL: station %d: %v\n", st.Code, err)
				return 1
			}
			printSeries(w, series)
		}
	}

	if !found {
		fmt.Fprintf(os.Stderr, "station %d has no sources\n", opts.station)
		return 1
	}
	return 0
}

func loadCatalogs(ctx context.Context, w io.Writer, mem *store.Memory, p domain.Provider, dir string, logger *slog.Logger) error {
	for _, mag := range p.SortedMagnitudes() {
		for _, meas := range mag.SortedMeasurements() {
			measDir := filepath.Join(dir, mag.Name, meas.Name)
			if path := filepath.Join(measDir, "stations.txt"); fileExists(path) {
				res, err := ecad.LoadStations(ctx, mem, path, p.ID, logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "  %-24s stations: %d read, %d inserted, %d skipped\n", mag.Name+"/"+meas.Name, res.Read, res.Inserted, res.Skipped)
			}
			if path := filepath.Join(measDir, "elements.txt"); fileExists(path) {
				res, err := ecad.LoadElements(ctx, mem, path, p.ID, mag.ID, meas, logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "  %-24s elements: %d read, %d inserted, %d skipped\n", mag.Name+"/"+meas.Name, res.Read, res.Inserted, res.Skipped)
			}
		}
	}
	return nil
}

func printSummary(w io.Writer, st domain.Station, files map[string]*ecad.SourceFile) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	var window string
	for _, name := range names {
		sf := files[name]
		parts = append(parts, fmt.Sprintf("%s=%s", name, sf.ElementType))
		window = sf.Start.Format("2006-01-02") + ".." + sf.End.Format("2006-01-02")
	}
	fmt.Fprintf(w, "%6d  %-40s %-2s  %s  %s\n", st.Code, st.Name, st.Country, window, strings.Join(parts, " "))
}

func printSeries(w io.Writer, s domain.StationSeries) {
	fmt.Fprintf(w, "\n--- station %d: %s ---\n", s.StationCode, s.Name)
	fmt.Fprintf(w, "  days: %d\n", len(s.XAxis))
	if len(s.XAxis) > 0 {
		fmt.Fprintf(w, "  from %s to %s\n", s.XAxis[0].Format("2006-01-02"), s.XAxis[len(s.XAxis)-1].Format("2006-01-02"))
	}

	lines := make([]string, 0, len(s.Lines))
	for name := range s.Lines {
		lines = append(lines, name)
	}
	sort.Strings(lines)
	for i, name := range lines {
		missing := 0
		for _, v := range s.Lines[name] {
			if math.IsNaN(v) {
				missing++
			}
		}
		fmt.Fprintf(w, "  line %s (%s): %d missing days\n", name, s.Legend[i], missing)
	}

	decades := make([]int, 0, len(s.Decades))
	for d := range s.Decades {
		decades = append(decades, d)
	}
	sort.Ints(decades)
	fmt.Fprintf(w, "\n  %-8s", "decade")
	for i := range lines {
		fmt.Fprintf(w, " %10s", s.Legend[i])
	}
	fmt.Fprintln(w)
	for _, d := range decades {
		fmt.Fprintf(w, "  %-8d", d)
		for _, name := range lines {
			v := s.Decades[d][name]
			if math.IsNaN(v) {
				fmt.Fprintf(w, " %10s", "-")
				continue
			}
			fmt.Fprintf(w, " %10.2f", v)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
