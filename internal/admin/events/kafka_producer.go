// Package events publishes administrative audit events to Kafka. The
// producer is fire-and-forget: events are queued on a buffered channel
// and dropped with a warning when the queue is full, so a slow broker
// never blocks an admin action.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyCreated  EventType = "company_created"
	CompanyUpdated  EventType = "company_updated"
	CompanyArchived EventType = "company_archived"
	CompanyRestored EventType = "company_restored"
	CompanyDeleted  EventType = "company_deleted"

	DepartmentCreated EventType = "department_created"
	DepartmentUpdated EventType = "department_updated"
	DepartmentDeleted EventType = "department_deleted"

	UserCreated     EventType = "user_created"
	UserUpdated     EventType = "user_updated"
	UserDeleted     EventType = "user_deleted"
	PasswordChanged EventType = "password_changed"
)

// Event is the audit record for one administrative action. ActorID is
// the operator who performed it, EntityID the record acted upon.
// Payload never carries credentials.
type Event struct {
	Type     EventType   `json:"type"`
	ActorID  uuid.UUID   `json:"actor_id"`
	EntityID uuid.UUID   `json:"entity_id"`
	Payload  interface{} `json:"payload,omitempty"`
	At       time.Time   `json:"at"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
}

func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	// Create topic if it doesn't exist
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}

	err = conn.CreateTopics(topicConfigs...)
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}
	p := &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
			Topic:    topic,
		},
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}

	go p.eventLoop()
	return p, nil
}

func (p *Producer) Produce(eventType EventType, actorID, entityID uuid.UUID, payload interface{}) {
	event := Event{
		Type:     eventType,
		ActorID:  actorID,
		EntityID: entityID,
		Payload:  payload,
		At:       time.Now().UTC(),
	}
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(eventType)),
			zap.String("entity_id", entityID.String()),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("entity_id", event.EntityID.String()),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EntityID.String()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("entity_id", event.EntityID.String()),
		)
		return
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}
