package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"yieldvault/internal/events"
	"yieldvault/pkg/config"
)

// The worker drains the vault event queue into the vault_events table.
func main() {
	app, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	app.LogJSON = true
	app.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.InitDB(app.Database); err != nil {
		log.Fatal(err)
	}
	defer config.CloseDB()

	if err := config.InitRabbitMQ(app.RabbitMQ); err != nil {
		log.Fatal(err)
	}
	defer config.RabbitMQ.Close()

	consumer, err := config.NewConsumer(app.EventsQueue)
	if err != nil {
		log.Fatal("Failed to create consumer: ", err)
	}
	defer consumer.Close()

	store := events.NewGormSink(config.DB)
	log.WithField("queue", app.EventsQueue).Info("event worker started, waiting for messages...")

	err = consumer.Consume(ctx, func(msg []byte) error {
		var evt events.Event
		if err := json.Unmarshal(msg, &evt); err != nil {
			log.WithError(err).Error("dropping malformed event message")
			return nil
		}
		if evt.ID == "" {
			log.Error("dropping event message without id")
			return nil
		}
		if err := store.Emit(ctx, evt); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"event_id": evt.ID,
			"type":     evt.Type,
			"vault":    evt.Vault,
		}).Info("event stored")
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Info("event worker stopped")
}
