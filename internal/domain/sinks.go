package domain

import "context"

// RelationSink receives the relations a parameter run produces. Implemented
// by the document-store adapter and by the optional Kafka exporter; the core
// depends only on this interface.
type RelationSink interface {
	SaveStationStats(ctx context.Context, parameter string, rows []StationDayStat) error
	SaveAdminAggregates(ctx context.Context, parameter, layer string, rows []AdminAggregateStat) error
	SaveChangeSeries(ctx context.Context, parameter, layer string, rows []ChangeRecord) error
}

// AggregateCache holds short-lived per-aggregate query results for the
// presentation collaborator. Implemented by the Redis adapter.
type AggregateCache interface {
	CacheAggregate(ctx context.Context, parameter string, agg AdminAggregateStat) error
}
