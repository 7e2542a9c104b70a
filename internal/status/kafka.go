package status

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/uncmorfi/reservation-service/internal/models"
	"github.com/uncmorfi/reservation-service/pkg/logger"
)

// Topic names
const (
	TopicReservationStatus  = "RESERVATION_STATUS"
	TopicReservationAttempt = "RESERVATION_ATTEMPT"
)

// KafkaPublisher mirrors status updates onto Kafka so other services can
// follow reservation progress. Publish failures are logged and swallowed;
// the controller's timeline never depends on the broker.
type KafkaPublisher struct {
	prod sarama.SyncProducer
	l    logger.Logger
}

func NewKafkaPublisher(prod sarama.SyncProducer, l logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		prod: prod,
		l:    l,
	}
}

func (p *KafkaPublisher) State(ctx context.Context, card string, st models.ReserveStatus) {
	p.send(ctx, TopicReservationStatus, Event{Card: card, Type: EventState, State: st})
}

func (p *KafkaPublisher) Attempt(ctx context.Context, card string, n int) {
	p.send(ctx, TopicReservationAttempt, Event{Card: card, Type: EventAttempt, Attempt: n})
}

func (p *KafkaPublisher) Code(ctx context.Context, card string, code models.StatusCode) {
	p.send(ctx, TopicReservationStatus, Event{Card: card, Type: EventCode, Code: code})
}

func (p *KafkaPublisher) send(ctx context.Context, topic string, ev Event) {
	ev.Timestamp = time.Now()
	val, err := json.Marshal(ev)
	if err != nil {
		p.l.Errorf(ctx, "status.KafkaPublisher.send: %v", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		// Partition by card so updates for one card stay ordered.
		Key:   sarama.StringEncoder(ev.Card),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("timestamp"),
				Value: []byte(ev.Timestamp.Format(time.RFC3339)),
			},
		},
	}

	if _, _, err := p.prod.SendMessage(msg); err != nil {
		p.l.Errorf(ctx, "status.KafkaPublisher.send: %v", err)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.prod.Close()
}
