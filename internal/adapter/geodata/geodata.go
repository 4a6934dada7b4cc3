// Package geodata loads the reference datasets: station points and
// administrative polygon layers, both RFC 7946 GeoJSON in WGS-84.
//
// Identifier and name properties vary between dataset exports, so each loader
// resolves the property once, from an explicit ordered candidate list, and
// fails with a configuration error when no candidate matches. It never
// guesses by picking the first textual column.
package geodata

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/spatial"
)

// Accepted property names, in resolution order.
var (
	stationIDFields   = []string{"ifcid", "KodSH", "kod", "station_id", "id_localid", "id"}
	stationNameFields = []string{"name1", "name", "nazwa"}
	adminIDFields     = []string{"id", "admin_id", "JPT_KOD_JE", "kod"}
	adminNameFields   = []string{"name", "nazwa", "JPT_NAZWA_"}
)

// LoadStations reads the station point dataset and returns stations keyed by
// identifier. Stations without point geometry are kept with a nil location so
// the classifier reports them as unknown rather than losing their
// observations. Returns domain.ErrNoStations for an empty collection and
// domain.ErrNoIDField when no accepted identifier property exists.
func LoadStations(path string, logger *slog.Logger) (map[string]domain.Station, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNoStations)
	}

	idField, err := resolveField(fc, stationIDFields, path)
	if err != nil {
		return nil, err
	}

	stations := make(map[string]domain.Station, len(fc.Features))
	var unlocated int
	for _, f := range fc.Features {
		id := propertyString(f, idField)
		if id == "" {
			continue
		}

		station := domain.Station{ID: id, Name: firstProperty(f, stationNameFields)}
		if point, ok := f.Geometry.(orb.Point); ok {
			if err := validateWGS84(point); err != nil {
				return nil, fmt.Errorf("%s: station %s: %w", path, id, err)
			}
			station.Location = &domain.Geo{Lat: point.Lat(), Lon: point.Lon()}
		} else {
			unlocated++
		}
		stations[station.ID] = station
	}

	if len(stations) == 0 {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNoStations)
	}

	logger.Info("stations loaded", "path", path, "count", len(stations),
		"id_field", idField, "without_location", unlocated)
	return stations, nil
}

// LoadLayer reads one administrative polygon layer. Returns
// domain.ErrNoPolygons for an empty collection and domain.ErrNoIDField when
// no accepted identifier property exists.
func LoadLayer(path, name string, logger *slog.Logger) (spatial.Layer, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return spatial.Layer{}, err
	}
	if len(fc.Features) == 0 {
		return spatial.Layer{}, fmt.Errorf("%s: %w", path, domain.ErrNoPolygons)
	}

	idField, err := resolveField(fc, adminIDFields, path)
	if err != nil {
		return spatial.Layer{}, err
	}

	layer := spatial.Layer{Name: name}
	for _, f := range fc.Features {
		id := propertyString(f, idField)
		if id == "" {
			continue
		}
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		layer.Polygons = append(layer.Polygons, spatial.Polygon{
			ID:       id,
			Name:     firstProperty(f, adminNameFields),
			Geometry: f.Geometry,
		})
	}

	if len(layer.Polygons) == 0 {
		return spatial.Layer{}, fmt.Errorf("%s: %w", path, domain.ErrNoPolygons)
	}

	logger.Info("admin layer loaded", "path", path, "layer", name,
		"polygons", len(layer.Polygons), "id_field", idField)
	return layer, nil
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// resolveField picks the first candidate property present in the collection,
// checked against the first feature carrying any properties at all.
func resolveField(fc *geojson.FeatureCollection, candidates []string, path string) (string, error) {
	for _, f := range fc.Features {
		if len(f.Properties) == 0 {
			continue
		}
		for _, candidate := range candidates {
			if _, ok := f.Properties[candidate]; ok {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%s: tried %v: %w", path, candidates, domain.ErrNoIDField)
	}
	return "", fmt.Errorf("%s: features carry no properties: %w", path, domain.ErrNoIDField)
}

// propertyString renders a property as a string; numeric identifiers are
// common in these exports and must not round-trip through float formatting
// with an exponent.
func propertyString(f *geojson.Feature, field string) string {
	v, ok := f.Properties[field]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	default:
		return ""
	}
}

func firstProperty(f *geojson.Feature, fields []string) string {
	for _, field := range fields {
		if s := propertyString(f, field); s != "" {
			return s
		}
	}
	return ""
}

func validateWGS84(p orb.Point) error {
	if p.Lon() < -180 || p.Lon() > 180 || p.Lat() < -90 || p.Lat() > 90 {
		return fmt.Errorf("coordinates (%f, %f) outside WGS-84 range; reproject the dataset to EPSG:4326", p.Lon(), p.Lat())
	}
	return nil
}
