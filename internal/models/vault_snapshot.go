package models

import (
	"time"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

type VaultSnapshot struct {
	ID                uint            `gorm:"primarykey" json:"id"`
	Vault             string          `gorm:"size:64;index;not null" json:"vault"`
	TotalAssets       decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"total_assets"`
	Idle              decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"idle"`
	FreeFunds         decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"free_funds"`
	LockedProfit      decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"locked_profit"`
	TotalSupply       decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"total_supply"`
	PricePerFullShare decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"price_per_full_share"`
	TotalAllocated    decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"total_allocated"`
	TotalAllocBPS     uint64          `json:"total_alloc_bps"`
	EmergencyShutdown bool            `json:"emergency_shutdown"`
	TakenAt           time.Time       `gorm:"index" json:"taken_at"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`

	Strategies []StrategySnapshot `gorm:"foreignKey:SnapshotID" json:"strategies"`
}

type StrategySnapshot struct {
	ID             uint            `gorm:"primarykey" json:"id"`
	SnapshotID     uint            `gorm:"index;not null" json:"snapshot_id"`
	Strategy       string          `gorm:"size:64;not null" json:"strategy"`
	AllocBPS       uint64          `json:"alloc_bps"`
	FeeBPS         uint64          `json:"fee_bps"`
	Allocated      decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"allocated"`
	Gains          decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"gains"`
	Losses         decimal.Decimal `gorm:"type:numeric(78,0);not null" json:"losses"`
	LastReportTime time.Time       `json:"last_report_time"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (VaultSnapshot) TableName() string {
	return "vault_snapshots"
}

func (StrategySnapshot) TableName() string {
	return "strategy_snapshots"
}

// Amount converts an integer token amount to a decimal column value.
func Amount(i math.Int) decimal.Decimal {
	if i.IsNil() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(i.BigInt(), 0)
}
