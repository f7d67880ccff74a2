package audit

import (
	"context"
	"encoding/json"
	"time"

	"custodia/internal/platform/kafka"
)

// Sink receives a copy of every persisted audit event. Delivery is
// best-effort; a failing sink never blocks or fails the emitting operation.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// StreamSink publishes audit events to a Kafka topic for downstream
// compliance tooling (SIEM ingestion, long-term archival).
type StreamSink struct {
	producer *kafka.Producer
	topic    string
}

func NewStreamSink(producer *kafka.Producer, topic string) *StreamSink {
	return &StreamSink{producer: producer, topic: topic}
}

// streamEvent is the wire form of an audit event. Field names are stable;
// downstream consumers depend on them.
type streamEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	ActorID      string    `json:"actorId,omitempty"`
	CaseID       string    `json:"caseId,omitempty"`
	EvidenceID   string    `json:"evidenceId,omitempty"`
	Action       string    `json:"action"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
}

func (s *StreamSink) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(streamEvent(event))
	if err != nil {
		return err
	}

	// Key by case so one case's trail lands in one partition, in order.
	key := []byte(event.CaseID)
	if len(key) == 0 {
		key = []byte(event.ActorID)
	}

	return s.producer.Produce(ctx, &kafka.Message{
		Topic: s.topic,
		Key:   key,
		Value: value,
		Headers: map[string]string{
			"action": event.Action,
		},
	})
}
