package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogSink writes events to a logrus entry.
type LogSink struct {
	Logger *log.Entry
}

func (s LogSink) Emit(_ context.Context, evt Event) error {
	logger := s.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	logger.WithFields(log.Fields{
		"event_id": evt.ID,
		"type":     evt.Type,
		"vault":    evt.Vault,
	}).WithFields(log.Fields(evt.Fields)).Info("vault event")
	return nil
}

// Multi fans an event out to every sink. A failing sink is logged and does not
// stop the others.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, evt Event) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, evt); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"event_id": evt.ID,
				"type":     evt.Type,
			}).Warn("event sink failed")
		}
	}
	return nil
}
