// Package kafka exports analysis relations as JSON messages for downstream
// consumers. The exporter is optional and feature-flagged; the pipeline works
// the same with or without it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/meteosight/imgw-analytics/internal/domain"
)

// Relation kinds carried in the message header.
const (
	kindStationStats = "station_stats"
	kindAggregate    = "admin_aggregate"
	kindChange       = "change_record"
)

// Writer publishes relations to a Kafka topic.
// It implements domain.RelationSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the export topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// SaveStationStats implements domain.RelationSink.
func (w *Writer) SaveStationStats(ctx context.Context, parameter string, rows []domain.StationDayStat) error {
	msgs := make([]kafkago.Message, 0, len(rows))
	for _, row := range rows {
		key := fmt.Sprintf("%s:%s:%s:%s",
			parameter, row.StationID, row.Date.Format(time.DateOnly), row.Period)
		msg, err := serialize(kindStationStats, parameter, key, row)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return w.publish(ctx, msgs)
}

// SaveAdminAggregates implements domain.RelationSink.
func (w *Writer) SaveAdminAggregates(ctx context.Context, parameter, layer string, rows []domain.AdminAggregateStat) error {
	msgs := make([]kafkago.Message, 0, len(rows))
	for _, row := range rows {
		key := fmt.Sprintf("%s:%s:%s:%s:%s",
			parameter, layer, row.AdminID, row.Date.Format(time.DateOnly), row.Period)
		msg, err := serialize(kindAggregate, parameter, key, row)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return w.publish(ctx, msgs)
}

// SaveChangeSeries implements domain.RelationSink.
func (w *Writer) SaveChangeSeries(ctx context.Context, parameter, layer string, rows []domain.ChangeRecord) error {
	msgs := make([]kafkago.Message, 0, len(rows))
	for _, row := range rows {
		key := fmt.Sprintf("%s:%s:%s:%s:%s",
			parameter, layer, row.AdminID, row.WindowStart.Format(time.DateOnly), row.Period)
		msg, err := serialize(kindChange, parameter, key, row)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return w.publish(ctx, msgs)
}

func (w *Writer) publish(ctx context.Context, msgs []kafkago.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish relations: %w", err)
	}
	w.logger.Debug("relations published", "topic", w.writer.Topic, "messages", len(msgs))
	return nil
}

// serialize marshals one relation row into a keyed Kafka message.
func serialize(kind, parameter, key string, row any) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s: %w", kind, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(kind)},
			{Key: "parameter", Value: []byte(parameter)},
			{Key: "produced_at", Value: []byte(domain.Timestamp().Format(time.RFC3339))},
		},
	}, nil
}
