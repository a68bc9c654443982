// Package stream carries clinical note records over Kafka.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultIdleTimeout = 10 * time.Second
	// minBytes/maxBytes bound a single broker fetch.
	minBytes = 10e3
	maxBytes = 10e6
)

type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// IdleTimeout ends consumption when no message arrives within it.
	IdleTimeout time.Duration
	// MaxMessages ends consumption after that many messages; 0 means no cap.
	MaxMessages int
}

type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NoteReader consumes a bounded run of note messages as part of a consumer
// group. Offsets are committed only after the handler accepted a message, so
// a failed batch is redelivered on the next run.
type NoteReader struct {
	r           fetcher
	idleTimeout time.Duration
	maxMessages int
}

func NewNoteReader(cfg ReaderConfig) (*NoteReader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka topic and group id are required")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: minBytes,
		MaxBytes: maxBytes,
	})
	return newNoteReader(r, cfg.IdleTimeout, cfg.MaxMessages), nil
}

func newNoteReader(r fetcher, idle time.Duration, max int) *NoteReader {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &NoteReader{r: r, idleTimeout: idle, maxMessages: max}
}

// Consume hands each message value to fn and returns how many were consumed.
// It stops cleanly on idle timeout or the message cap; a handler or commit
// error stops it with that error.
func (n *NoteReader) Consume(ctx context.Context, fn func(ctx context.Context, value []byte) error) (int, error) {
	count := 0
	for n.maxMessages == 0 || count < n.maxMessages {
		fetchCtx, cancel := context.WithTimeout(ctx, n.idleTimeout)
		msg, err := n.r.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return count, nil
			}
			return count, fmt.Errorf("fetch message: %w", err)
		}

		if err := fn(ctx, msg.Value); err != nil {
			return count, fmt.Errorf("handle message at offset %d: %w", msg.Offset, err)
		}
		if err := n.r.CommitMessages(ctx, msg); err != nil {
			return count, fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
		count++
	}
	return count, nil
}

func (n *NoteReader) Close() error {
	return n.r.Close()
}
