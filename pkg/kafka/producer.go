package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Producer publishes contact events
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

// NewProducer builds a hash-balanced writer for cfg.Topic. Compression defaults to snappy.
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			BatchSize:              cfg.BatchSize,
			BatchTimeout:           cfg.BatchTimeout,
			RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:            compressionCodec(cfg.Compression),
			AllowAutoTopicCreation: true,
		},
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// ContactEvent describes a change to a contact cluster
type ContactEvent struct {
	EventType      string    `json:"event_type"`
	SchemaVersion  string    `json:"schema_version"`
	PrimaryID      int64     `json:"primary_id"`
	ContactID      int64     `json:"contact_id,omitempty"`
	LinkPrecedence string    `json:"link_precedence,omitempty"`
	Email          *string   `json:"email,omitempty"`
	PhoneNumber    *string   `json:"phone_number,omitempty"`
	Demoted        []int64   `json:"demoted,omitempty"`
	Relinked       []int64   `json:"relinked,omitempty"`
	SecondaryIDs   []int64   `json:"secondary_ids"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e *ContactEvent) message(traceParent string) (kafka.Message, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.SchemaVersion == "" {
		e.SchemaVersion = SchemaVersion
	}

	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(e.EventType)},
		{Key: "schema_version", Value: []byte(e.SchemaVersion)},
	}
	if traceParent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceParent)})
	}

	return kafka.Message{
		Key:     []byte(strconv.FormatInt(e.PrimaryID, 10)),
		Value:   data,
		Headers: headers,
	}, nil
}

// PublishContactEvents writes events as one batch keyed by primary id, so a cluster's events stay on one partition in order
func (p *Producer) PublishContactEvents(ctx context.Context, events []*ContactEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishContactEvents",
		attribute.String("messaging.destination", p.topic),
		attribute.Int("messaging.batch_size", len(events)),
	)
	defer span.End()

	traceParent := tracing.GetTraceParent(ctx)
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := event.message(traceParent)
		if err != nil {
			tracing.Fail(span, err)
			return err
		}
		messages = append(messages, msg)
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, messages...)
	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":      p.topic,
		"batch_size": len(events),
	})
	if err != nil {
		metrics.RecordKafkaPublish(p.topic, metrics.StatusError, time.Since(start).Seconds())
		tracing.Fail(span, err)
		log.WithError(err).Error("Failed to publish contact events")
		return err
	}

	metrics.RecordKafkaPublish(p.topic, metrics.StatusSuccess, time.Since(start).Seconds())
	log.Debug("Published contact events")
	return nil
}
