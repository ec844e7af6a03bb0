package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	clovercontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MessageHandler processes an observation. Returning an error leaves the message uncommitted so it is
// redelivered, unless the error wraps ErrSkip.
type MessageHandler func(ctx context.Context, msg *IncomingMessage) error

// ErrSkip marks a message that can never be processed. It is committed and dropped.
var ErrSkip = errors.New("skip message")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads observations from Kafka
type Consumer struct {
	reader  messageReader
	topic   string
	logger  ectologger.Logger
	handler MessageHandler
	backoff time.Duration
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, logger ectologger.Logger, handler MessageHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})

	return newConsumer(reader, cfg.Topic, logger, handler)
}

func newConsumer(reader messageReader, topic string, logger ectologger.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  reader,
		topic:   topic,
		logger:  logger,
		handler: handler,
		backoff: time.Second,
	}
}

// Start begins consuming messages in the background
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).WithField("topic", c.topic).Info("Kafka consumer started")
	return nil
}

// Stop stops the loop and closes the reader
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			c.logger.Info("Consumer loop stopping")
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch message")
			c.wait(ctx)
			continue
		}

		if !c.processMessage(ctx, msg) {
			// the group redelivers uncommitted messages after a rebalance; pause so a failing store is not hammered
			c.wait(ctx)
		}
	}
}

func (c *Consumer) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.backoff):
	}
}

// processMessage reports whether the message was committed
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) bool {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
	ctx = clovercontext.SetSource(ctx, clovercontext.SourceKafka)
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	incoming := &IncomingMessage{
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		Partition:   msg.Partition,
		Offset:      msg.Offset,
		Timestamp:   msg.Time,
		Topic:       msg.Topic,
		TraceParent: headers["traceparent"],
	}

	if err := incoming.ParseObservation(); err != nil {
		metrics.RecordObservation(metrics.StatusInvalid)
		log.WithError(err).Warn("Skipping unparseable observation")
		return c.commit(ctx, log, msg)
	}

	if err := c.handler(ctx, incoming); err != nil {
		if errors.Is(err, ErrSkip) {
			metrics.RecordObservation(metrics.StatusInvalid)
			log.WithError(err).Warn("Skipping invalid observation")
			return c.commit(ctx, log, msg)
		}
		metrics.RecordObservation(metrics.StatusError)
		log.WithError(err).Error("Failed to process observation (not committing)")
		return false
	}

	metrics.RecordObservation(metrics.StatusSuccess)
	return c.commit(ctx, log, msg)
}

func (c *Consumer) commit(ctx context.Context, log ectologger.Logger, msg kafka.Message) bool {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to commit message")
		return false
	}
	return true
}
