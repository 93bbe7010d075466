package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"skedit/pkg/kafka"
	kafka_config "skedit/pkg/kafka/config"
	kafka_middleware "skedit/pkg/kafka/middleware"
	"skedit/pkg/logger"

	"github.com/google/uuid"
)

const eventTypePresence = "presence.push"

// KafkaTransport publishes envelopes to one topic. Each process consumes
// with its own group id so every instance sees every envelope.
type KafkaTransport struct {
	producer *kafka.Producer
	consumer *kafka.Consumer
	cfg      *kafka_config.Config
	topic    string
	groupID  string
	log      *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewKafkaTransport(cfg *kafka_config.Config, topic string, log *logger.Logger) (*KafkaTransport, error) {
	producer, err := kafka.NewProducer(cfg, topic, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create presence producer: %w", err)
	}
	if cfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
	}

	return &KafkaTransport{
		producer: producer,
		cfg:      cfg,
		topic:    topic,
		groupID:  cfg.ConsumerGroupPrefix + "-" + uuid.NewString(),
		log:      log,
	}, nil
}

func (t *KafkaTransport) Name() string {
	return "kafka"
}

func (t *KafkaTransport) Publish(ctx context.Context, env Envelope) error {
	msg, err := kafka.NewMessage().
		WithKey(env.Key).
		WithValue(env).
		WithEventType(eventTypePresence).
		WithSource(env.Origin).
		Build()
	if err != nil {
		return err
	}
	return t.producer.Publish(ctx, msg)
}

func (t *KafkaTransport) Start(ctx context.Context, deliver func(Envelope)) error {
	handler := func(ctx context.Context, msg kafka.Message) error {
		var env Envelope
		if err := msg.DecodeValue(&env); err != nil {
			return fmt.Errorf("failed to decode presence envelope: %w", err)
		}
		deliver(env)
		return nil
	}

	consumer, err := kafka.NewConsumer(t.cfg, t.topic, t.groupID, handler, t.log)
	if err != nil {
		return fmt.Errorf("failed to create presence consumer: %w", err)
	}
	if t.cfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(t.log))
	}
	t.consumer = consumer

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		err := consumer.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrConsumerClosed) {
			t.log.Error("Presence consumer stopped", "topic", t.topic, "error", err)
		}
	}()
	return nil
}

func (t *KafkaTransport) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	var errs []error
	if t.consumer != nil {
		if err := t.consumer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.wg.Wait()
	if err := t.producer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
