package config

import (
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

var RabbitMQ *amqp.Connection

// InitRabbitMQ dials the broker, retrying while it comes up.
func InitRabbitMQ(cfg RabbitMQConfig) error {
	maxRetries := 10
	retryDelay := 3 * time.Second

	var err error
	for i := 0; i < maxRetries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(cfg.URL())
		if err == nil {
			RabbitMQ = conn
			log.Infof("connected to RabbitMQ at %s", cfg.Host)
			return nil
		}
		if i < maxRetries-1 {
			log.Warnf("failed to connect to RabbitMQ (attempt %d/%d): %v, retrying in %v", i+1, maxRetries, err, retryDelay)
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

// PurgeQueue removes all messages from a queue without deleting it.
func PurgeQueue(queueName string) (int, error) {
	if RabbitMQ == nil {
		return 0, errors.New("RabbitMQ connection not initialized")
	}
	ch, err := RabbitMQ.Channel()
	if err != nil {
		return 0, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	n, err := ch.QueuePurge(queueName, false)
	if err != nil {
		return 0, fmt.Errorf("purge queue %s: %w", queueName, err)
	}
	log.Infof("purged %d messages from queue %s", n, queueName)
	return n, nil
}
