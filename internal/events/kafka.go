package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func DialKafka(brokers []string, topic string) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Producer.RequiredAcks = sarama.WaitForAll
	prod, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return NewKafkaPublisher(prod, topic), nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish keys every message by order id so one order's events stay on one
// partition in emission order.
func (p *KafkaPublisher) Publish(_ context.Context, batch []Event) error {
	msgs := make([]*sarama.ProducerMessage, 0, len(batch))
	for _, ev := range batch {
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(ev.OrderID),
			Value: sarama.ByteEncoder(body),
			Headers: []sarama.RecordHeader{
				{Key: []byte("type"), Value: []byte(ev.Type)},
			},
		})
	}
	if err := p.producer.SendMessages(msgs); err != nil {
		log.Printf("[EVENTS] [ERROR] kafka send to %s failed: %v", p.topic, err)
		return err
	}
	log.Printf("[EVENTS] [INFO] %d events stored in topic(%s)", len(msgs), p.topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
