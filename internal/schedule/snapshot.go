package schedule

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"yieldvault/internal/models"
	"yieldvault/internal/vault"
)

// SummaryReader is the vault read a snapshot is taken from.
type SummaryReader interface {
	Summary(ctx context.Context) (vault.Summary, error)
}

// Snapshotter records the vault's accounting into vault_snapshots.
type Snapshotter struct {
	vault SummaryReader
	gate  *vault.Gate
	db    *gorm.DB
}

func NewSnapshotter(v SummaryReader, gate *vault.Gate, db *gorm.DB) *Snapshotter {
	return &Snapshotter{vault: v, gate: gate, db: db}
}

func (s *Snapshotter) Name() string { return "vault-snapshot" }

func (s *Snapshotter) Run(ctx context.Context) error {
	var summary vault.Summary
	err := s.gate.Shared(ctx, func(ctx context.Context) error {
		var err error
		summary, err = s.vault.Summary(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("read vault summary: %w", err)
	}
	row := BuildSnapshot(summary)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// BuildSnapshot maps a summary onto its persisted rows.
func BuildSnapshot(s vault.Summary) models.VaultSnapshot {
	row := models.VaultSnapshot{
		Vault:             s.Address.String(),
		TotalAssets:       models.Amount(s.TotalAssets),
		Idle:              models.Amount(s.Idle),
		FreeFunds:         models.Amount(s.FreeFunds),
		LockedProfit:      models.Amount(s.LockedProfit),
		TotalSupply:       models.Amount(s.TotalSupply),
		PricePerFullShare: models.Amount(s.PricePerFullShare),
		TotalAllocated:    models.Amount(s.TotalAllocated),
		TotalAllocBPS:     s.TotalAllocBPS,
		EmergencyShutdown: s.EmergencyShutdown,
		TakenAt:           s.At,
	}
	for _, rec := range s.Strategies {
		row.Strategies = append(row.Strategies, models.StrategySnapshot{
			Strategy:       rec.Address.String(),
			AllocBPS:       rec.AllocBPS,
			FeeBPS:         rec.FeeBPS,
			Allocated:      models.Amount(rec.Allocated),
			Gains:          models.Amount(rec.Gains),
			Losses:         models.Amount(rec.Losses),
			LastReportTime: rec.LastReportTime,
		})
	}
	return row
}
