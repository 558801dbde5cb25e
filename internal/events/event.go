package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an observable vault event.
type Type string

const (
	Deposit                        Type = "deposit"
	Withdraw                       Type = "withdraw"
	Transfer                       Type = "transfer"
	StrategyAdded                  Type = "strategy_added"
	StrategyRevoked                Type = "strategy_revoked"
	StrategyAllocBPSUpdated        Type = "strategy_alloc_bps_updated"
	StrategyFeeBPSUpdated          Type = "strategy_fee_bps_updated"
	StrategyReported               Type = "strategy_reported"
	WithdrawalQueueUpdated         Type = "withdrawal_queue_updated"
	WithdrawMaxLossUpdated         Type = "withdraw_max_loss_updated"
	TvlCapUpdated                  Type = "tvl_cap_updated"
	EmergencyShutdown              Type = "emergency_shutdown"
	LockedProfitDegradationUpdated Type = "locked_profit_degradation_updated"
	TreasuryUpdated                Type = "treasury_updated"
	InCaseTokensGetStuck           Type = "in_case_tokens_get_stuck"
)

// Event is an audit record of a committed vault operation.
type Event struct {
	ID     string         `json:"id"`
	Type   Type           `json:"type"`
	Vault  string         `json:"vault"`
	Fields map[string]any `json:"fields"`
	At     time.Time      `json:"at"`
}

// New builds an event with a fresh id.
func New(typ Type, vault string, at time.Time, fields map[string]any) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   typ,
		Vault:  vault,
		Fields: fields,
		At:     at,
	}
}

// Sink receives committed events.
type Sink interface {
	Emit(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, evt Event) error

func (f SinkFunc) Emit(ctx context.Context, evt Event) error { return f(ctx, evt) }
