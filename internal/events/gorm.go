package events

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yieldvault/internal/models"
)

// GormSink appends events to the vault_events table. Redelivered events are
// ignored.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Emit(ctx context.Context, evt Event) error {
	row := ToModel(evt)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("store event %s: %w", evt.ID, err)
	}
	return nil
}

// ToModel maps an event to its persisted row.
func ToModel(evt Event) models.VaultEvent {
	return models.VaultEvent{
		EventID:    evt.ID,
		Vault:      evt.Vault,
		EventType:  string(evt.Type),
		Fields:     models.JSONMap(evt.Fields),
		OccurredAt: evt.At,
	}
}
