package eventsink

import (
	"bytes"
	"context"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/live-match/internal/platform/events"
	"github.com/riskibarqy/live-match/internal/platform/logging"
	"github.com/segmentio/kafka-go"
	"github.com/valyala/bytebufferpool"
)

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink mirrors bus events to a kafka topic keyed by match id, so every
// event of one match lands on the same partition in publish order.
type KafkaSink struct {
	writer  MessageWriter
	topic   string
	timeout time.Duration
	logger  *logging.Logger
}

type envelope struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	MatchID    string         `json:"match_id"`
	Source     string         `json:"source,omitempty"`
	Fields     []string       `json:"fields,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func NewKafkaSink(cfg Config, logger *logging.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaSinkWithWriter(writer, cfg, logger)
}

func NewKafkaSinkWithWriter(writer MessageWriter, cfg Config, logger *logging.Logger) *KafkaSink {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &KafkaSink{
		writer:  writer,
		topic:   cfg.Topic,
		timeout: cfg.WriteTimeout,
		logger:  logger.Named("eventsink"),
	}
}

// Handle is an events.Handler.
func (s *KafkaSink) Handle(ctx context.Context, evt events.Event) error {
	msg, err := buildMessage(evt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return crerr.Wrapf(err, "publish %s for match %s to %s", evt.Name, evt.MatchID, s.topic)
	}
	s.logger.DebugContext(ctx, "event exported", "event", evt.Name, "event_id", evt.ID, "match_id", evt.MatchID, "topic", s.topic)
	return nil
}

func (s *KafkaSink) Close() error {
	if err := s.writer.Close(); err != nil {
		return crerr.Wrap(err, "close kafka writer")
	}
	return nil
}

func buildMessage(evt events.Event) (kafka.Message, error) {
	value, err := encodeEnvelope(envelope{
		ID:         evt.ID,
		Type:       string(evt.Name),
		MatchID:    evt.MatchID,
		Source:     evt.Source,
		Fields:     evt.Fields,
		Data:       evt.Payload,
		OccurredAt: evt.OccurredAt,
	})
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(evt.MatchID),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(evt.ID)},
			{Key: "event-type", Value: []byte(evt.Name)},
			{Key: "source", Value: []byte(evt.Source)},
		},
	}, nil
}

func encodeEnvelope(env envelope) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(env); err != nil {
		return nil, crerr.Wrapf(err, "encode event %s", env.Type)
	}
	// The pooled buffer is reused, so the message gets its own copy.
	return append([]byte(nil), bytes.TrimSuffix(buf.B, []byte("\n"))...), nil
}
