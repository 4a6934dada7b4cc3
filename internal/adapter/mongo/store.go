// Package mongo persists analysis relations and reference data to a MongoDB
// database. All writes are idempotent upserts on the natural key of each
// collection, so re-running an analysis replaces that run's documents instead
// of duplicating them.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/meteosight/imgw-analytics/internal/domain"
	"github.com/meteosight/imgw-analytics/internal/spatial"
)

const (
	collStations     = "stations"
	collAdminUnits   = "admin_units"
	collStationStats = "station_stats"
	collStatistics   = "statistics"
	collChangeSeries = "change_series"
)

// Store implements domain.RelationSink on top of a Mongo database.
type Store struct {
	db     *mongo.Database
	logger *slog.Logger
}

// Connect dials Mongo and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("mongo connected", "database", database)
	return &Store{db: client.Database(database), logger: logger}, nil
}

// NewStore wraps an existing database handle; used by tests.
func NewStore(db *mongo.Database, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// ImportStations upserts the station reference documents.
func (s *Store) ImportStations(ctx context.Context, stations map[string]domain.Station) error {
	models := make([]mongo.WriteModel, 0, len(stations))
	for _, st := range stations {
		doc := bson.M{
			"station_id": st.ID,
			"name":       st.Name,
			"updated_at": domain.Timestamp(),
		}
		if st.Location != nil {
			doc["location"] = bson.M{
				"type":        "Point",
				"coordinates": bson.A{st.Location.Lon, st.Location.Lat},
			}
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"station_id": st.ID}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collStations, models)
}

// ImportAdminUnits upserts one layer's administrative unit documents. The
// geometry itself stays in the GeoJSON files; only identity is stored.
func (s *Store) ImportAdminUnits(ctx context.Context, layer spatial.Layer) error {
	models := make([]mongo.WriteModel, 0, len(layer.Polygons))
	for _, p := range layer.Polygons {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"admin_id": p.ID, "layer": layer.Name}).
			SetUpdate(bson.M{"$set": bson.M{
				"admin_id":   p.ID,
				"layer":      layer.Name,
				"name":       p.Name,
				"updated_at": domain.Timestamp(),
			}}).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collAdminUnits, models)
}

// SaveStationStats implements domain.RelationSink.
func (s *Store) SaveStationStats(ctx context.Context, parameter string, rows []domain.StationDayStat) error {
	models := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		filter := bson.M{
			"parameter":  parameter,
			"station_id": row.StationID,
			"date":       row.Date,
			"period":     string(row.Period),
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$set": stationStatDoc(parameter, row)}).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collStationStats, models)
}

// SaveAdminAggregates implements domain.RelationSink.
func (s *Store) SaveAdminAggregates(ctx context.Context, parameter, layer string, rows []domain.AdminAggregateStat) error {
	models := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		filter := bson.M{
			"parameter": parameter,
			"layer":     layer,
			"admin_id":  row.AdminID,
			"date":      row.Date,
			"period":    string(row.Period),
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$set": aggregateDoc(parameter, row)}).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collStatistics, models)
}

// SaveChangeSeries implements domain.RelationSink.
func (s *Store) SaveChangeSeries(ctx context.Context, parameter, layer string, rows []domain.ChangeRecord) error {
	models := make([]mongo.WriteModel, 0, len(rows))
	for _, row := range rows {
		filter := bson.M{
			"parameter":    parameter,
			"layer":        layer,
			"admin_id":     row.AdminID,
			"period":       string(row.Period),
			"window_start": row.WindowStart,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$set": changeDoc(parameter, row)}).
			SetUpsert(true))
	}
	return s.bulkWrite(ctx, collChangeSeries, models)
}

func stationStatDoc(parameter string, row domain.StationDayStat) bson.M {
	return bson.M{
		"parameter":    parameter,
		"station_id":   row.StationID,
		"date":         row.Date,
		"period":       string(row.Period),
		"count":        row.Count,
		"mean":         row.Mean,
		"median":       row.Median,
		"trimmed_mean": row.TrimmedMean,
		"updated_at":   domain.Timestamp(),
	}
}

func aggregateDoc(parameter string, row domain.AdminAggregateStat) bson.M {
	return bson.M{
		"parameter":             parameter,
		"layer":                 row.Layer,
		"admin_id":              row.AdminID,
		"date":                  row.Date,
		"period":                string(row.Period),
		"mean_of_means":         row.MeanOfMeans,
		"mean_of_medians":       row.MeanOfMedians,
		"mean_of_trimmed_means": row.MeanOfTrimmedMeans,
		"total_count":           row.TotalCount,
		"updated_at":            domain.Timestamp(),
	}
}

func changeDoc(parameter string, row domain.ChangeRecord) bson.M {
	doc := bson.M{
		"parameter":    parameter,
		"layer":        row.Layer,
		"admin_id":     row.AdminID,
		"period":       string(row.Period),
		"window_start": row.WindowStart,
		"mean":         row.Mean,
		"median":       row.Median,
		"updated_at":   domain.Timestamp(),
	}
	if row.MeanDelta != nil {
		doc["mean_delta"] = *row.MeanDelta
	}
	if row.MedianDelta != nil {
		doc["median_delta"] = *row.MedianDelta
	}
	return doc
}

func (s *Store) bulkWrite(ctx context.Context, collection string, models []mongo.WriteModel) error {
	if len(models) == 0 {
		return nil
	}
	start := time.Now()
	res, err := s.db.Collection(collection).BulkWrite(ctx, models,
		options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("bulk write %s: %w", collection, err)
	}
	s.logger.Debug("relations persisted", "collection", collection,
		"upserted", res.UpsertedCount, "modified", res.ModifiedCount,
		"duration", time.Since(start))
	return nil
}
