// Package kafkanotify is a fire-and-forget publisher that announces
// enrichment task events on a Kafka topic (in this module only
// "task_enqueued", sent by EnrichmentCoordinator.Enqueue), so an external
// worker fleet can wake on push instead of polling
// TaskQueue.Claim. It is additive: the Postgres-backed queue in
// internal/store/postgres remains the system of record, and a publish
// failure here is logged, never propagated to the caller.
//
// Grounded on the teacher's internal/tools/kafka.Writer/sendMessageTool
// pattern: a narrow Writer interface over *kafka.Writer so tests can swap
// in a fake without a live broker.
package kafkanotify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ragengine/internal/obs"
)

// Writer is the narrow publish surface kafkanotify needs from a Kafka
// producer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Event is the JSON payload published for an enrichment task event.
type Event struct {
	Type       string    `json:"type"` // task_enqueued is the only type published in this module
	Collection string    `json:"collection"`
	BaseID     string    `json:"baseId"`
	At         time.Time `json:"at"`
}

// Notifier publishes Events to a fixed topic. A nil Notifier (or one built
// with an empty broker list) is a valid no-op value.
type Notifier struct {
	writer Writer
	topic  string
	logger obs.Logger
}

// New constructs a Notifier backed by a kafka.Writer addressed at the
// given brokers. Returns nil when brokers is empty, so callers can wire it
// unconditionally and skip nil-checking at call sites other than the
// constructor.
func New(brokers []string, topic string, logger obs.Logger) *Notifier {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	if logger == nil {
		logger = obs.NoopLogger{}
	}
	return &Notifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topic:  topic,
		logger: logger,
	}
}

// NewWithWriter builds a Notifier around an already-constructed Writer,
// used by tests to inject a fake producer.
func NewWithWriter(w Writer, topic string, logger obs.Logger) *Notifier {
	if logger == nil {
		logger = obs.NoopLogger{}
	}
	return &Notifier{writer: w, topic: topic, logger: logger}
}

// Publish announces one lifecycle event. Errors are logged and swallowed:
// notification is best-effort, never a request-path dependency.
func (n *Notifier) Publish(ctx context.Context, evt Event) {
	if n == nil || n.writer == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		n.logger.Warn("kafkanotify_marshal_failed", map[string]any{"error": err.Error()})
		return
	}
	msg := kafka.Message{Topic: n.topic, Key: []byte(evt.BaseID), Value: payload}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.logger.Warn("kafkanotify_publish_failed", map[string]any{"error": err.Error(), "type": evt.Type})
	}
}

// Close releases the underlying producer connection, if any.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	if w, ok := n.writer.(*kafka.Writer); ok {
		return w.Close()
	}
	return nil
}
