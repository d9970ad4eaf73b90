package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"github.com/rs/xid"
)

type producerConfig interface {
	Brokers() []string
	Topic() string
	SendTimeout() time.Duration
}

// Envelope is the JSON value of every Kafka record. Downstream mailers and SMS
// gateways consume it; the record key is the recipient's user ID.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt int64     `json:"occurredAt"`
	Recipient  Recipient `json:"recipient"`
	Message    Message   `json:"message"`
	Payload    any       `json:"payload"`
}

// KafkaSender publishes rendered notifications to a Kafka topic.
type KafkaSender struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

var _ Sender = (*KafkaSender)(nil)

// NewKafkaSender connects a synchronous producer to the configured brokers.
func NewKafkaSender(cfg producerConfig) (*KafkaSender, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers(), saramaConfig(cfg.SendTimeout()))
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return NewKafkaSenderWithProducer(producer, cfg.Topic()), nil
}

// saramaConfig waits for all in-sync replicas and bounds every network step by timeout,
// so a stalled broker cannot hold a publish past its caller's deadline for long.
func saramaConfig(timeout time.Duration) *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_5_0_0
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Timeout = timeout
	config.Producer.Retry.Max = 1
	config.Net.DialTimeout = timeout
	config.Net.ReadTimeout = timeout
	config.Net.WriteTimeout = timeout
	config.Metadata.Timeout = timeout
	return config
}

// NewKafkaSenderWithProducer wraps an existing producer.
func NewKafkaSenderWithProducer(producer sarama.SyncProducer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic, now: time.Now}
}

func (s *KafkaSender) NotifyExpense(ctx context.Context, event ExpenseEvent) error {
	var records []*sarama.ProducerMessage
	for _, r := range event.Recipients {
		for _, msg := range ExpenseMessagesFor(event, r) {
			record, err := s.record(TypeExpenseCreated, r, msg, event)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
	}
	return s.send(ctx, records)
}

func (s *KafkaSender) NotifyWeeklySummary(ctx context.Context, event SummaryEvent) error {
	msg, ok := SummaryMessage(event)
	if !ok {
		return nil
	}
	record, err := s.record(TypeWeeklySummary, event.Recipient, msg, event)
	if err != nil {
		return err
	}
	return s.send(ctx, []*sarama.ProducerMessage{record})
}

// Close flushes and closes the producer.
func (s *KafkaSender) Close() {
	if err := s.producer.Close(); err != nil {
		slog.Error("Failed to close kafka producer", "error", err)
	}
}

func (s *KafkaSender) record(eventType string, r Recipient, msg Message, payload any) (*sarama.ProducerMessage, error) {
	value, err := json.Marshal(Envelope{
		ID:         xid.New().String(),
		Type:       eventType,
		OccurredAt: s.now().Unix(),
		Recipient:  r,
		Message:    msg,
		Payload:    payload,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal notification")
	}
	return &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(r.UserID),
		Value: sarama.ByteEncoder(value),
	}, nil
}

// send publishes records and returns early when ctx ends. A publish already handed to
// the producer keeps running in the background until the sarama timeouts end it.
func (s *KafkaSender) send(ctx context.Context, records []*sarama.ProducerMessage) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "publish notifications")
	}

	done := make(chan error, 1)
	go func() {
		done <- s.producer.SendMessages(records)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrapf(err, "publish %d notifications to %s", len(records), s.topic)
		}
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "publish %d notifications to %s", len(records), s.topic)
	}
	slog.Debug("Published notifications", "topic", s.topic, "count", len(records))
	return nil
}
