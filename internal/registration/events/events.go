// Package events publishes accepted registrations to Kafka for downstream
// processing (receipt delivery, back-office indexing).
//
// Publication is best-effort. The record is already persisted when an event is
// sent, so a broker outage must never fail a submission; the circuit breaker
// keeps an unreachable broker from adding latency to every request.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"formintake/internal/registration/models"
	"formintake/pkg/platform/circuit"
	"formintake/pkg/requestcontext"
)

// TypeAccepted is the event type header value.
const TypeAccepted = "registration.accepted"

// ErrCircuitOpen is returned when publishing is skipped because the broker has
// been failing.
var ErrCircuitOpen = errors.New("event publishing circuit open")

// Accepted is the event payload. Contact details are deliberately excluded.
type Accepted struct {
	Type              string                    `json:"type"`
	ID                string                    `json:"id"`
	ReferenceNumber   models.ReferenceCode      `json:"referenceNumber"`
	FormType          models.FormType           `json:"formType"`
	ReceiptPreference *models.ReceiptPreference `json:"receiptPreference"`
	CreatedAt         time.Time                 `json:"createdAt"`
}

// NewAccepted builds the payload for a persisted record.
func NewAccepted(reg *models.Registration) Accepted {
	return Accepted{
		Type:              TypeAccepted,
		ID:                reg.ID.String(),
		ReferenceNumber:   reg.ReferenceNumber,
		FormType:          reg.FormType,
		ReceiptPreference: reg.ReceiptPreference,
		CreatedAt:         reg.CreatedAt,
	}
}

// producer is the subset of *kgo.Client used for publishing.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes one record per accepted registration, keyed by id.
type KafkaPublisher struct {
	client  producer
	topic   string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *KafkaPublisher) {
		p.breaker = b
	}
}

// NewKafkaPublisher connects to brokers and makes sure the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, opts ...Option) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := ensureTopic(ctx, kadm.NewClient(client), topic); err != nil {
		client.Close()
		return nil, err
	}
	return newPublisher(client, topic, opts...), nil
}

func newPublisher(client producer, topic string, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		client:  client,
		topic:   topic,
		breaker: circuit.New("kafka", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func ensureTopic(ctx context.Context, adm *kadm.Client, topic string) error {
	resp, err := adm.CreateTopics(ctx, 1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if r, ok := resp[topic]; ok && r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, r.Err)
	}
	return nil
}

// PublishAccepted sends the event and waits for the broker acknowledgement.
func (p *KafkaPublisher) PublishAccepted(ctx context.Context, reg *models.Registration) error {
	if !p.breaker.Allow() {
		return ErrCircuitOpen
	}
	value, err := json.Marshal(NewAccepted(reg))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(reg.ID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(TypeAccepted)},
		},
	}
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: "request_id", Value: []byte(reqID)})
	}

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "event publishing circuit opened", "topic", p.topic, "error", err)
		}
		return fmt.Errorf("produce event: %w", err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "event publishing circuit closed", "topic", p.topic)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
