package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type WriterConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NoteWriter publishes note records as JSON messages keyed by MRN, so all
// notes of one patient land on the same partition.
type NoteWriter struct {
	w messageWriter
}

func NewNoteWriter(cfg WriterConfig) (*NoteWriter, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}
	return &NoteWriter{w: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}, nil
}

// Publish encodes each record and writes the batch in one call.
func (n *NoteWriter) Publish(ctx context.Context, key func(v any) string, records ...any) error {
	msgs := make([]kafka.Message, 0, len(records))
	for i, rec := range records {
		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
		msg := kafka.Message{Value: value}
		if key != nil {
			msg.Key = []byte(key(rec))
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := n.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d messages: %w", len(msgs), err)
	}
	return nil
}

func (n *NoteWriter) Close() error {
	return n.w.Close()
}
