package models

import "time"

// VaultEvent is the audit trail of committed vault operations.
type VaultEvent struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	EventID    string    `gorm:"column:event_id;size:36;uniqueIndex;not null" json:"event_id"`
	Vault      string    `gorm:"column:vault;size:64;index;not null" json:"vault"`
	EventType  string    `gorm:"column:event_type;size:64;index;not null" json:"event_type"`
	Fields     JSONMap   `gorm:"column:fields;type:jsonb" json:"fields"`
	OccurredAt time.Time `gorm:"column:occurred_at;index" json:"occurred_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (VaultEvent) TableName() string {
	return "vault_events"
}
