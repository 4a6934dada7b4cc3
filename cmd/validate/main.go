// Command validate performs integrity checks over a data directory and its
// reference datasets before an analysis run: it counts usable and malformed
// rows per parameter, flags observation station ids missing from the
// reference file, and flags reference stations that fall outside every
// administrative polygon.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir demo/dane_meteo \
//	  -stations demo/reference/effacility.geojson \
//	  -regions demo/reference/regions.geojson \
//	  -districts demo/reference/districts.geojson
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/paulmach/orb"

	"github.com/meteosight/imgw-analytics/internal/adapter/geodata"
	"github.com/meteosight/imgw-analytics/internal/config"
	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/loader"
	"github.com/meteosight/imgw-analytics/internal/observability"
	"github.com/meteosight/imgw-analytics/internal/spatial"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "dane_meteo", "directory containing observation CSV files")
	stationsPath := flag.String("stations", "reference/effacility.geojson", "station reference GeoJSON")
	regionsPath := flag.String("regions", "reference/regions.geojson", "region layer GeoJSON")
	districtsPath := flag.String("districts", "reference/districts.geojson", "district layer GeoJSON")
	flag.Parse()

	if code := run(*dataDir, *stationsPath, *regionsPath, *districtsPath); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, stationsPath, regionsPath, districtsPath string) int {
	logger := observability.NewLogger("error", "text")
	metrics := observability.NewMetricsForTesting()

	fmt.Println("=== Observation Data Integrity Validation ===")
	fmt.Println()

	stations, err := geodata.LoadStations(stationsPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load stations: %v\n", err)
		return 1
	}

	var layers []spatial.Layer
	for _, ref := range []struct{ path, name string }{
		{regionsPath, "region"},
		{districtsPath, "district"},
	} {
		layer, err := geodata.LoadLayer(ref.path, ref.name, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s layer: %v\n", ref.name, err)
			return 1
		}
		layers = append(layers, layer)
	}

	sources, err := loader.DirSources(dataDir)
	if err != nil || len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no observation sources under %s\n", dataDir)
		return 1
	}

	rowsPhase, stationIDs := validateRows(sources, logger, metrics)
	phases := []*phase{
		rowsPhase,
		validateStationCoverage(stationIDs, stations),
		validateSpatialCoverage(stations, layers),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

// validateRows loads every configured parameter and reports per-parameter row
// and drop counts. It also collects the distinct station ids seen in the
// data.
func validateRows(sources []loader.Source, logger *slog.Logger, metrics *observability.Metrics) (*phase, map[string]bool) {
	p := &phase{name: "observation rows"}
	stationIDs := map[string]bool{}

	codes := make([]string, 0, len(config.DefaultParameters))
	for code := range config.DefaultParameters {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	l := loader.New(logger, metrics)
	for _, code := range codes {
		res, err := l.Load(sources, code)
		if err != nil {
			p.errorf("%s: %v", code, err)
			continue
		}
		if len(res.Observations) == 0 && res.Dropped == 0 {
			continue // parameter absent from this dataset
		}
		fmt.Printf("  %-10s %-22s rows=%-8d dropped=%d\n",
			code, config.DefaultParameters[code], len(res.Observations), res.Dropped)
		if res.Dropped > len(res.Observations) {
			p.errorf("%s: more rows dropped (%d) than kept (%d)", code, res.Dropped, len(res.Observations))
		}
		for _, obs := range res.Observations {
			stationIDs[obs.StationID] = true
		}
	}

	if len(stationIDs) == 0 {
		p.errorf("no usable observation rows for any known parameter")
	}
	return p, stationIDs
}

// validateStationCoverage flags observation station ids that are absent from
// the reference file; their rows would classify as UNKNOWN.
func validateStationCoverage(seen map[string]bool, stations map[string]domain.Station) *phase {
	p := &phase{name: "station reference coverage"}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, ok := stations[id]; !ok {
			p.errorf("station %s appears in observations but not in reference data", id)
		}
	}
	return p
}

// validateSpatialCoverage flags located reference stations that no polygon of
// a layer contains; their statistics would be excluded from that layer's
// aggregates.
func validateSpatialCoverage(stations map[string]domain.Station, layers []spatial.Layer) *phase {
	p := &phase{name: "spatial coverage"}

	ids := make([]string, 0, len(stations))
	for id := range stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, layer := range layers {
		for _, id := range ids {
			st := stations[id]
			if st.Location == nil {
				continue
			}
			point := orb.Point{st.Location.Lon, st.Location.Lat}
			if _, ok := layer.Locate(point); !ok {
				p.errorf("station %s (%s) outside every %s polygon", st.ID, st.Name, layer.Name)
			}
		}
	}
	return p
}
