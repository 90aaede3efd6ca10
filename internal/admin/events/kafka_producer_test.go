package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func newTestProducer(t *testing.T, writer KafkaWriter, buffer int) *Producer {
	t.Helper()
	p := &Producer{
		writer:    writer,
		events:    make(chan Event, buffer),
		logger:    zaptest.NewLogger(t),
		closeChan: make(chan struct{}),
	}
	go p.eventLoop()
	return p
}

func TestProduceDeliversEvent(t *testing.T) {
	writer := &mockWriter{}
	p := newTestProducer(t, writer, 10)
	defer p.Close()

	entityID := uuid.New()
	p.Produce(CompanyArchived, uuid.New(), entityID, map[string]interface{}{"slug": "acme"})

	require.Eventually(t, func() bool { return writer.count() == 1 }, time.Second, 10*time.Millisecond)

	msg := writer.messages[0]
	assert.Equal(t, entityID.String(), string(msg.Key))

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, CompanyArchived, event.Type)
	assert.Equal(t, entityID, event.EntityID)
	assert.False(t, event.At.IsZero())
}

func TestProduceDropsWhenQueueFull(t *testing.T) {
	// A writer that blocks forever keeps the event loop busy so the
	// queue fills up.
	blocked := make(chan struct{})
	writer := &blockingWriter{release: blocked}
	p := newTestProducer(t, writer, 1)
	defer func() {
		close(blocked)
		p.Close()
	}()

	// First event occupies the loop, second fills the buffer, third is
	// dropped. None of the calls block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			p.Produce(UserCreated, uuid.Nil, uuid.New(), nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Produce blocked on a full queue")
	}
}

type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) WriteMessages(_ context.Context, _ ...kafka.Message) error {
	<-w.release
	return nil
}

func (w *blockingWriter) Close() error { return nil }

func TestSendEventSerializationFailure(t *testing.T) {
	orig := jsonMarshal
	jsonMarshal = func(interface{}) ([]byte, error) { return nil, errors.New("boom") }
	defer func() { jsonMarshal = orig }()

	writer := &mockWriter{}
	p := newTestProducer(t, writer, 10)
	defer p.Close()

	p.Produce(UserDeleted, uuid.Nil, uuid.New(), nil)

	// The event is consumed but nothing reaches the writer.
	assert.Never(t, func() bool { return writer.count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestCloseStopsLoopAndWriter(t *testing.T) {
	writer := &mockWriter{}
	p := newTestProducer(t, writer, 10)

	p.Close()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	assert.True(t, writer.closed)
}
