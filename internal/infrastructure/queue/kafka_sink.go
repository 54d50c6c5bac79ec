// Package queue implements the metric sink over Kafka.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/benzaiten/metrics-gate/internal/config"
	"github.com/benzaiten/metrics-gate/internal/domain/models"
	"github.com/benzaiten/metrics-gate/internal/domain/service"
	"github.com/benzaiten/metrics-gate/pkg/logger"
)

// KafkaSink publishes accepted metrics to a Kafka topic. Messages are keyed
// by the metric system key so one series lands on one partition; payloads are
// idempotent by content and duplicate delivery is acceptable downstream.
type KafkaSink struct {
	writer *kafka.Writer
	logger logger.Logger
	now    func() time.Time
}

// NewKafkaSink builds the sink from config.
func NewKafkaSink(cfg *config.KafkaConfig, log logger.Logger) service.MetricSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchTimeout: time.Duration(cfg.BatchTimeout) * time.Millisecond,
	}
	return &KafkaSink{
		writer: writer,
		logger: log.WithComponent("kafka_sink"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish writes one metric message, stamped with the receive time.
func (s *KafkaSink) Publish(ctx context.Context, m models.Metric) error {
	payload, err := m.Message(s.now())
	if err != nil {
		return fmt.Errorf("encode metric message: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.SystemKey()),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", s.writer.Topic, err)
	}

	s.logger.Debug(ctx, "metric published", logger.Fields{"metric": m.SystemKey()})
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
