// Command genmock generates a deterministic demo dataset: one month of
// per-parameter observation CSVs for a handful of Polish stations, plus the
// station and administrative-layer GeoJSON reference files. The output is
// sized for local runs and for the validate command.
//
// Usage:
//
//	go run ./cmd/genmock -out demo
//	DATA_DIR=demo/dane_meteo STATIONS_PATH=demo/reference/effacility.geojson \
//	  REGIONS_PATH=demo/reference/regions.geojson \
//	  DISTRICTS_PATH=demo/reference/districts.geojson go run ./cmd/analyze
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var monthStart = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

type demoStation struct {
	id, name   string
	lat, lon   float64
	regionID   string
	districtID string
	baseTemp   float64
}

var demoStations = []demoStation{
	{"249200180", "Warszawa-Bielany", 52.28, 20.96, "14", "1465", 18},
	{"250190390", "Krakow-Balice", 50.08, 19.80, "12", "1261", 17},
	{"251170090", "Wroclaw-Strachowice", 51.10, 16.89, "02", "0264", 17.5},
	{"254180010", "Gdansk-Swibno", 54.33, 18.93, "22", "2261", 15},
}

// Parameters with a plausible value model: a daily sinusoid around the
// station base plus a slow weekly drift, so the change series is non-trivial.
type demoParameter struct {
	code      string
	base      func(s demoStation) float64
	amplitude float64
	drift     float64 // added per elapsed week
}

var demoParameters = []demoParameter{
	{"B00300S", func(s demoStation) float64 { return s.baseTemp }, 6, 0.8},
	{"B00702A", func(demoStation) float64 { return 4 }, 2, 0.3},
	{"B00802A", func(demoStation) float64 { return 70 }, 15, -1.5},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "demo", "output directory for the demo dataset")
	days := flag.Int("days", 28, "number of days to generate")
	flag.Parse()

	dataDir := filepath.Join(*out, "dane_meteo", monthStart.Format("2006-01"))
	refDir := filepath.Join(*out, "reference")
	for _, dir := range []string{dataDir, refDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	for _, param := range demoParameters {
		path := filepath.Join(dataDir, fmt.Sprintf("%s_%s.csv", param.code, monthStart.Format("2006_01")))
		if err := writeObservations(path, param, *days); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s", path)
	}

	refs := map[string]string{
		"effacility.geojson": stationsGeoJSON(),
		"regions.geojson":    layerGeoJSON(regionPolygons()),
		"districts.geojson":  layerGeoJSON(districtPolygons()),
	}
	for name, content := range refs {
		path := filepath.Join(refDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

// writeObservations emits hourly rows in the IMGW telemetry CSV layout:
// station;parameter;timestamp;value with a comma decimal separator.
func writeObservations(path string, param demoParameter, days int) error {
	var b strings.Builder
	for day := 0; day < days; day++ {
		for hour := 0; hour < 24; hour++ {
			ts := monthStart.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
			week := float64(day) / 7
			for _, st := range demoStations {
				// Peak at 14:00, trough at 02:00.
				phase := 2 * math.Pi * (float64(hour) - 14) / 24
				value := param.base(st) + param.amplitude*math.Cos(phase) + param.drift*week
				fmt.Fprintf(&b, "%s;%s;%s;%s\n",
					st.id, param.code, ts.Format("2006-01-02 15:04"),
					strings.ReplaceAll(fmt.Sprintf("%.1f", value), ".", ","))
			}
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func stationsGeoJSON() string {
	var features []string
	for _, st := range demoStations {
		features = append(features, fmt.Sprintf(`    {"type": "Feature",
     "properties": {"ifcid": "%s", "name1": "%s"},
     "geometry": {"type": "Point", "coordinates": [%.4f, %.4f]}}`,
			st.id, st.name, st.lon, st.lat))
	}
	return fmt.Sprintf("{\"type\": \"FeatureCollection\",\n  \"features\": [\n%s\n  ]}\n",
		strings.Join(features, ",\n"))
}

type demoPolygon struct {
	id, name               string
	minLon, minLat, maxLon float64
	maxLat                 float64
}

// Bounding boxes sized so each demo station falls inside exactly one region
// and one district.
func regionPolygons() []demoPolygon {
	return []demoPolygon{
		{"14", "mazowieckie", 19.5, 51.0, 23.2, 53.5},
		{"12", "malopolskie", 19.0, 49.0, 21.5, 50.6},
		{"02", "dolnoslaskie", 14.8, 50.0, 17.9, 51.9},
		{"22", "pomorskie", 16.7, 53.5, 19.7, 54.9},
	}
}

func districtPolygons() []demoPolygon {
	return []demoPolygon{
		{"1465", "Warszawa", 20.7, 52.0, 21.3, 52.4},
		{"1261", "Krakow", 19.6, 49.9, 20.2, 50.2},
		{"0264", "Wroclaw", 16.7, 50.9, 17.2, 51.3},
		{"2261", "Gdansk", 18.4, 54.2, 19.0, 54.5},
	}
}

func layerGeoJSON(polys []demoPolygon) string {
	var features []string
	for _, p := range polys {
		features = append(features, fmt.Sprintf(`    {"type": "Feature",
     "properties": {"id": "%s", "name": "%s"},
     "geometry": {"type": "Polygon", "coordinates": [[[%[3]f,%[4]f],[%[5]f,%[4]f],[%[5]f,%[6]f],[%[3]f,%[6]f],[%[3]f,%[4]f]]]}}`,
			p.id, p.name, p.minLon, p.minLat, p.maxLon, p.maxLat))
	}
	return fmt.Sprintf("{\"type\": \"FeatureCollection\",\n  \"features\": [\n%s\n  ]}\n",
		strings.Join(features, ",\n"))
}
