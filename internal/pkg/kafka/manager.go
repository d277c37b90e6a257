package kafka

import (
	"Mesdo/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理所有 Kafka 消费者
type ConsumerManager struct {
	topic            string
	identityConsumer sarama.ConsumerGroup
	identityHandler  sarama.ConsumerGroupHandler
}

// NewConsumerManager 未启用身份消费者时返回 nil
func NewConsumerManager(cfg *config.Config, identities IdentityEvictor) (*ConsumerManager, error) {
	if !cfg.KafkaIdentityConsumer.Enable {
		return nil, nil
	}
	saramaCfg := newSaramaConfig(cfg.Kafka)

	identityConsumer, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.KafkaIdentityConsumer.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		topic:            cfg.KafkaIdentityConsumer.Topic,
		identityConsumer: identityConsumer,
		identityHandler:  NewIdentityHandler(identities),
	}, nil
}

// Start 启动所有消费者, 阻塞到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	if m == nil {
		<-ctx.Done()
		return nil
	}

	go func() {
		for err := range m.identityConsumer.Errors() {
			log.Error("Error from identity consumer", "err", err)
		}
	}()

	go func() {
		log.Info("Identity consumer started", "topic", m.topic)
		for {
			if err := m.identityConsumer.Consume(ctx, []string{m.topic}, m.identityHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.identityConsumer.Close(); err != nil {
		log.Error("Failed to close identity consumer", "err", err)
	}
	return nil
}
