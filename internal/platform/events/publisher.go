package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published",
		},
		[]string{"topic"},
	)

	publishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_publish_errors_total",
			Help: "Total number of event publish failures",
		},
		[]string{"topic"},
	)
)

// Publisher delivers events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, e *Event) error
	Close() error
}

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, *Event) error { return nil }
func (Nop) Close() error                                  { return nil }

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers      []string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration

	// Async makes Publish return without waiting for the broker. Delivery
	// failures are then only counted and logged.
	Async bool
}

// DefaultKafkaConfig returns defaults for the given brokers.
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:      brokers,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		Async:        true,
	}
}

// KafkaPublisher writes events with kafka-go.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
	async  bool
}

func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        cfg.Async,
	}
	if cfg.Async {
		w.Completion = func(messages []kafka.Message, err error) {
			for _, m := range messages {
				if err != nil {
					publishErrorsTotal.WithLabelValues(m.Topic).Inc()
					continue
				}
				publishedTotal.WithLabelValues(m.Topic).Inc()
			}
			if err != nil {
				logger.Error("async event delivery failed", slog.Int("messages", len(messages)), slog.String("error", err.Error()))
			}
		}
	}
	return &KafkaPublisher{writer: w, logger: logger, async: cfg.Async}
}

// Publish writes e to topic keyed by its aggregate id, so events for one
// aggregate stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, e *Event) error {
	data, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(e.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "source", Value: []byte(e.Source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		publishErrorsTotal.WithLabelValues(topic).Inc()
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("event_type", e.EventType),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("publish event to %s: %w", topic, err)
	}

	if !p.async {
		publishedTotal.WithLabelValues(topic).Inc()
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
