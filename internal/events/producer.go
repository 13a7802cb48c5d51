package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"nexus-storefront/internal/logging"
)

// ErrClosed is returned by Publish after the producer stopped.
var ErrClosed = errors.New("event producer closed")

// ErrBufferFull is returned when the producer cannot keep up.
var ErrBufferFull = errors.New("event buffer full")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type publishRecorder interface {
	EventPublished(eventType string)
}

// Producer buffers events and writes them to a single topic from one
// goroutine.
type Producer struct {
	name    string
	w       messageWriter
	metrics publishRecorder
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic, name string, buf int, metrics publishRecorder, logger *zap.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newProducer(w, name, buf, metrics, logger)
}

func newProducer(w messageWriter, name string, buf int, metrics publishRecorder, logger *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return &Producer{
		name:    name,
		w:       w,
		metrics: metrics,
		logger:  logging.Or(logger),
		now:     time.Now,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Run drains the buffer until ctx is cancelled, then flushes what is left
// and closes the writer.
func (p *Producer) Run(ctx context.Context) error {
	defer close(p.closeCh)
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.closed = true
			close(p.inbox)
			p.mu.Unlock()
			for m := range p.inbox {
				p.write(context.Background(), m)
			}
			return p.w.Close()
		case m := <-p.inbox:
			p.write(ctx, m)
		}
	}
}

func (p *Producer) write(ctx context.Context, m kafka.Message) {
	eventType := headerValue(m.Headers, "event_type")
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Error("write event", zap.String("type", eventType), zap.ByteString("key", m.Key), zap.Error(err))
		return
	}
	if p.metrics != nil {
		p.metrics.EventPublished(eventType)
	}
}

// Publish enqueues the event without waiting for the broker.
func (p *Producer) Publish(ctx context.Context, eventType, key string, payload any) error {
	env, err := NewEnvelope(p.name, eventType, key, payload, p.now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Time:    env.OccurredAt,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// WaitClosed blocks until Run has flushed and returned.
func (p *Producer) WaitClosed() { <-p.closeCh }

func headerValue(hs []kafka.Header, key string) string {
	for _, h := range hs {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
