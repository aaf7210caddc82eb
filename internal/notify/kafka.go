package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mmeshcher/orderflow/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaListener публикует события смены статуса в топик Kafka.
// Ключом сообщения служит номер заказа, поэтому события одного заказа попадают в одну партицию.
type KafkaListener struct {
	writer messageWriter
}

// NewKafkaListener создаёт подписчика, публикующего события в указанный топик.
func NewKafkaListener(brokers []string, topic string) *KafkaListener {
	return &KafkaListener{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Name возвращает имя подписчика.
func (l *KafkaListener) Name() string {
	return "kafka"
}

// Handle публикует событие.
func (l *KafkaListener) Handle(ctx context.Context, evt model.StatusChangedEvent) error {
	msg, err := buildMessage(evt)
	if err != nil {
		return err
	}

	if err := l.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close закрывает продюсера.
func (l *KafkaListener) Close() error {
	return l.writer.Close()
}

func buildMessage(evt model.StatusChangedEvent) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(evt.OrderNumber),
		Value: value,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(evt.EventID)},
			{Key: "event-type", Value: []byte("order.status_changed")},
		},
	}, nil
}
