package vault

import (
	"context"
	"sort"
	"time"

	"cosmossdk.io/math"
)

// Summary is a consistent read of the vault's accounting at one instant.
type Summary struct {
	Address                 Address          `json:"address"`
	Asset                   Address          `json:"asset"`
	Name                    string           `json:"name"`
	Symbol                  string           `json:"symbol"`
	Decimals                uint8            `json:"decimals"`
	TotalAssets             math.Int         `json:"total_assets"`
	Idle                    math.Int         `json:"idle"`
	FreeFunds               math.Int         `json:"free_funds"`
	LockedProfit            math.Int         `json:"locked_profit"`
	TotalSupply             math.Int         `json:"total_supply"`
	PricePerFullShare       math.Int         `json:"price_per_full_share"`
	TotalAllocated          math.Int         `json:"total_allocated"`
	TotalAllocBPS           uint64           `json:"total_alloc_bps"`
	TVLCap                  math.Int         `json:"tvl_cap"`
	WithdrawMaxLossBPS      uint64           `json:"withdraw_max_loss_bps"`
	LockedProfitDegradation math.Int         `json:"locked_profit_degradation"`
	EmergencyShutdown       bool             `json:"emergency_shutdown"`
	Treasury                Address          `json:"treasury"`
	LastReport              time.Time        `json:"last_report"`
	WithdrawalQueue         []Address        `json:"withdrawal_queue"`
	Strategies              []StrategyRecord `json:"strategies"`
	At                      time.Time        `json:"at"`
}

// Summary reads every accounting figure under one hold of the vault.
func (v *Vault) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := v.view(ctx, func() {
		unit := math.NewIntWithDecimal(1, int(v.Decimals()))
		s = Summary{
			Address:                 v.address,
			Asset:                   v.asset.ID(),
			Name:                    v.Name(),
			Symbol:                  v.Symbol(),
			Decimals:                v.Decimals(),
			TotalAssets:             v.totalManagedValue(),
			Idle:                    v.idle(),
			FreeFunds:               v.freeFunds(),
			LockedProfit:            v.currentLockedProfit(),
			TotalSupply:             v.shares.TotalSupply(),
			PricePerFullShare:       v.convertToAssets(unit, false),
			TotalAllocated:          v.st.totalAllocated,
			TotalAllocBPS:           v.st.totalAllocBPS,
			TVLCap:                  v.st.tvlCap,
			WithdrawMaxLossBPS:      v.st.withdrawMaxLossBPS,
			LockedProfitDegradation: v.st.lockedProfitDegradation,
			EmergencyShutdown:       v.st.emergencyShutdown,
			Treasury:                v.st.treasury,
			LastReport:              v.st.lastReport,
			WithdrawalQueue:         append([]Address(nil), v.st.withdrawalQueue...),
			Strategies:              v.strategyRecords(),
			At:                      v.now(),
		}
	})
	return s, err
}

// Strategy returns the record of a registered strategy.
func (v *Vault) Strategy(ctx context.Context, addr Address) (StrategyRecord, bool, error) {
	var (
		rec StrategyRecord
		ok  bool
	)
	err := v.view(ctx, func() { rec, ok = v.st.strategies[addr] })
	return rec, ok, err
}

// Strategies returns every registered strategy, oldest first.
func (v *Vault) Strategies(ctx context.Context) ([]StrategyRecord, error) {
	var out []StrategyRecord
	err := v.view(ctx, func() { out = v.strategyRecords() })
	return out, err
}

// StrategyHandle returns the capability handle a strategy was registered with.
func (v *Vault) StrategyHandle(ctx context.Context, addr Address) (Strategy, bool, error) {
	var (
		s  Strategy
		ok bool
	)
	err := v.view(ctx, func() { s, ok = v.st.handles[addr] })
	return s, ok, err
}

// WithdrawalQueue returns the current withdrawal order.
func (v *Vault) WithdrawalQueue(ctx context.Context) ([]Address, error) {
	var out []Address
	err := v.view(ctx, func() { out = append([]Address(nil), v.st.withdrawalQueue...) })
	return out, err
}

func (v *Vault) strategyRecords() []StrategyRecord {
	out := make([]StrategyRecord, 0, len(v.st.strategies))
	for _, rec := range v.st.strategies {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActivationTime.Equal(out[j].ActivationTime) {
			return out[i].Address.String() < out[j].Address.String()
		}
		return out[i].ActivationTime.Before(out[j].ActivationTime)
	})
	return out
}
