package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"
	"github.com/developia-II/slang-translator-backend/internal/config"
	"github.com/developia-II/slang-translator-backend/internal/models"
)

// Notifier publishes lifecycle and analytics events. Publishing never fails the caller.
type Notifier interface {
	Publish(ctx context.Context, ev models.Event)
	Close() error
}

// KafkaNotifier sends events through a sarama async producer keyed by Event.Key, so all
// events of one submission land on one partition in order.
type KafkaNotifier struct {
	producer sarama.AsyncProducer
	topic    string
	done     chan struct{}
}

func NewKafkaNotifier(cfg config.KafkaConfig) (*KafkaNotifier, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.ClientID = "slang-translator"
	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Errors = true
	sc.Producer.Return.Successes = false

	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}
	return NewKafkaNotifierWithProducer(p, cfg.Topic), nil
}

func NewKafkaNotifierWithProducer(p sarama.AsyncProducer, topic string) *KafkaNotifier {
	n := &KafkaNotifier{producer: p, topic: topic, done: make(chan struct{})}
	go n.drainErrors()
	return n
}

func (n *KafkaNotifier) drainErrors() {
	defer close(n.done)
	for perr := range n.producer.Errors() {
		log.Printf("notifier: kafka publish failed topic=%s err=%v", n.topic, perr.Err)
	}
}

func (n *KafkaNotifier) Publish(ctx context.Context, ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notifier: encode event type=%s err=%v", ev.Type, err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(ev.Key()),
		Value: sarama.ByteEncoder(payload),
	}
	select {
	case n.producer.Input() <- msg:
	case <-ctx.Done():
		log.Printf("notifier: dropped event type=%s key=%s: %v", ev.Type, ev.Key(), ctx.Err())
	}
}

// Close flushes buffered messages and waits for the error drain to finish.
func (n *KafkaNotifier) Close() error {
	n.producer.AsyncClose()
	<-n.done
	return nil
}

// LogNotifier writes events to the log when no broker is configured.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, ev models.Event) {
	log.Printf("notifier: event type=%s key=%s status=%s", ev.Type, ev.Key(), ev.Status)
}

func (LogNotifier) Close() error { return nil }

func NewNotifier(cfg config.KafkaConfig) Notifier {
	if len(cfg.Brokers) == 0 {
		log.Println("notifier: KAFKA_BROKERS not set, logging events only")
		return LogNotifier{}
	}
	n, err := NewKafkaNotifier(cfg)
	if err != nil {
		log.Printf("notifier: kafka unavailable (%v), logging events only", err)
		return LogNotifier{}
	}
	return n
}
