package app

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/edupay/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer для публикации событий покупок.
// Пустой список брокеров — штатный режим без Kafka: возвращается nil
// без ошибки, outbox копит записи до появления брокеров.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	if brokers == "" {
		logger.Info("kafka brokers are not configured, event publishing is disabled")
		return nil, nil
	}

	list := strings.Split(brokers, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}

	producer, err := kafka.NewProducer(list)
	if err != nil {
		return nil, fmt.Errorf("init kafka producer: %w", err)
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Error("close kafka producer failed")
	}
}
