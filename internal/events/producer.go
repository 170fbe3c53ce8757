package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaProducer publishes order lifecycle events. Writes are asynchronous;
// delivery failures are only logged.
type KafkaProducer struct {
	writer  *kafka.Writer
	brokers []string
	logger  *zap.Logger
}

func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  10,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range messages {
				logger.Error("Failed to deliver order event",
					zap.String("key", string(m.Key)),
					zap.Error(err))
			}
		},
	}

	return &KafkaProducer{writer: writer, brokers: brokers, logger: logger}, nil
}

func orderKey(orderID string) string {
	return fmt.Sprintf("ORDER#%s", orderID)
}

func newMessage(key string, payload any) (kafka.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()}, nil
}

func (p *KafkaProducer) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	msg, err := newMessage(orderKey(event.OrderID), event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// HealthCheck dials the brokers until one answers.
func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	var err error
	for _, broker := range p.brokers {
		var conn *kafka.Conn
		if conn, err = kafka.DialContext(ctx, "tcp", broker); err == nil {
			return conn.Close()
		}
	}
	return err
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
