package vault

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	log "github.com/sirupsen/logrus"

	"yieldvault/internal/access"
	"yieldvault/internal/events"
)

// AddStrategy registers s with the given fee and weight and appends it to the
// withdrawal queue.
func (v *Vault) AddStrategy(ctx context.Context, caller Address, s Strategy, feeBPS, allocBPS uint64) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.DefaultAdmin); err != nil {
			return err
		}
		if v.st.emergencyShutdown {
			return stateConflict("vault is shut down")
		}
		if s == nil || s.Address().IsZero() {
			return invalidInput("strategy is required")
		}
		addr := s.Address()
		if rec, ok := v.st.strategies[addr]; ok && rec.Active() {
			return stateConflict("strategy %s already added", addr)
		}
		if s.Vault() != v.address {
			return invalidInput("strategy %s belongs to vault %s", addr, s.Vault())
		}
		if s.Want() != v.asset.ID() {
			return invalidInput("strategy %s wants %s, vault holds %s", addr, s.Want(), v.asset.ID())
		}
		if feeBPS > MaxFeeBPS {
			return invalidInput("fee %d bps above maximum %d", feeBPS, MaxFeeBPS)
		}
		if v.st.totalAllocBPS+allocBPS > PercentDivisor {
			return capacityExceeded("total allocation would reach %d bps", v.st.totalAllocBPS+allocBPS)
		}

		now := v.now()
		v.st.strategies[addr] = StrategyRecord{
			Address:        addr,
			ActivationTime: now,
			FeeBPS:         feeBPS,
			AllocBPS:       allocBPS,
			Allocated:      math.ZeroInt(),
			Gains:          math.ZeroInt(),
			Losses:         math.ZeroInt(),
			LastReportTime: now,
		}
		v.st.handles[addr] = s
		v.st.totalAllocBPS += allocBPS
		v.st.withdrawalQueue = append(v.st.withdrawalQueue, addr)

		v.emit(events.StrategyAdded, map[string]any{
			"strategy":  addr.String(),
			"fee_bps":   feeBPS,
			"alloc_bps": allocBPS,
		})
		v.logger.WithFields(log.Fields{"strategy": addr.String(), "alloc_bps": allocBPS}).Info("strategy added")
		return nil
	})
}

// UpdateStrategyFeeBPS changes the performance fee charged on a strategy's gains.
func (v *Vault) UpdateStrategyFeeBPS(ctx context.Context, caller, strategy Address, feeBPS uint64) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Admin); err != nil {
			return err
		}
		rec, err := v.activeStrategy(strategy)
		if err != nil {
			return err
		}
		if feeBPS > MaxFeeBPS {
			return invalidInput("fee %d bps above maximum %d", feeBPS, MaxFeeBPS)
		}
		rec.FeeBPS = feeBPS
		v.st.strategies[strategy] = rec
		v.emit(events.StrategyFeeBPSUpdated, map[string]any{"strategy": strategy.String(), "fee_bps": feeBPS})
		return nil
	})
}

// UpdateStrategyAllocBPS changes a strategy's target weight.
func (v *Vault) UpdateStrategyAllocBPS(ctx context.Context, caller, strategy Address, allocBPS uint64) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Strategist); err != nil {
			return err
		}
		rec, err := v.activeStrategy(strategy)
		if err != nil {
			return err
		}
		total := v.st.totalAllocBPS - rec.AllocBPS + allocBPS
		if total > PercentDivisor {
			return capacityExceeded("total allocation would reach %d bps", total)
		}
		rec.AllocBPS = allocBPS
		v.st.totalAllocBPS = total
		v.st.strategies[strategy] = rec
		v.emit(events.StrategyAllocBPSUpdated, map[string]any{"strategy": strategy.String(), "alloc_bps": allocBPS})
		return nil
	})
}

// RevokeStrategy zeroes a strategy's weight so its next report repays
// everything. A strategy may revoke itself.
func (v *Vault) RevokeStrategy(ctx context.Context, caller, strategy Address) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if caller != strategy {
			if err := v.require(caller, access.Guardian); err != nil {
				return err
			}
		}
		rec, err := v.activeStrategy(strategy)
		if err != nil {
			return err
		}
		if rec.AllocBPS == 0 {
			return nil
		}
		v.st.totalAllocBPS -= rec.AllocBPS
		rec.AllocBPS = 0
		v.st.strategies[strategy] = rec
		v.emit(events.StrategyRevoked, map[string]any{"strategy": strategy.String()})
		v.logger.WithField("strategy", strategy.String()).Warn("strategy revoked")
		return nil
	})
}

// SetWithdrawalQueue replaces the order in which strategies fund withdrawals.
func (v *Vault) SetWithdrawalQueue(ctx context.Context, caller Address, queue []Address) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Admin); err != nil {
			return err
		}
		if len(queue) == 0 {
			return invalidInput("withdrawal queue cannot be empty")
		}
		seen := make(map[Address]struct{}, len(queue))
		names := make([]string, 0, len(queue))
		for _, addr := range queue {
			if _, dup := seen[addr]; dup {
				return invalidInput("strategy %s listed twice", addr)
			}
			seen[addr] = struct{}{}
			if _, err := v.activeStrategy(addr); err != nil {
				return err
			}
			names = append(names, addr.String())
		}
		v.st.withdrawalQueue = append([]Address(nil), queue...)
		v.emit(events.WithdrawalQueueUpdated, map[string]any{"queue": names})
		return nil
	})
}

// UpdateWithdrawMaxLoss sets the loss tolerated on withdrawals, in bps.
func (v *Vault) UpdateWithdrawMaxLoss(ctx context.Context, caller Address, bps uint64) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Strategist); err != nil {
			return err
		}
		if bps > PercentDivisor {
			return invalidInput("withdraw max loss %d above %d", bps, PercentDivisor)
		}
		v.st.withdrawMaxLossBPS = bps
		v.emit(events.WithdrawMaxLossUpdated, map[string]any{"withdraw_max_loss_bps": bps})
		return nil
	})
}

// UpdateTvlCap sets the most the vault will manage before refusing deposits.
func (v *Vault) UpdateTvlCap(ctx context.Context, caller Address, tvlCap math.Int) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Admin); err != nil {
			return err
		}
		if tvlCap.IsNil() || tvlCap.IsNegative() {
			return invalidInput("tvl cap must be non-negative")
		}
		v.setTvlCap(tvlCap)
		return nil
	})
}

// RemoveTvlCap lifts the deposit ceiling.
func (v *Vault) RemoveTvlCap(ctx context.Context, caller Address) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Admin); err != nil {
			return err
		}
		v.setTvlCap(UnlimitedTVL)
		return nil
	})
}

func (v *Vault) setTvlCap(tvlCap math.Int) {
	v.st.tvlCap = tvlCap
	v.emit(events.TvlCapUpdated, map[string]any{"tvl_cap": tvlCap.String()})
}

// SetEmergencyShutdown toggles shutdown. Guardians may engage it, only admins
// may lift it. While shut down deposits fail and every strategy is asked to
// repay its whole allocation.
func (v *Vault) SetEmergencyShutdown(ctx context.Context, caller Address, active bool) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		role := access.Guardian
		if !active {
			role = access.Admin
		}
		if err := v.require(caller, role); err != nil {
			return err
		}
		v.st.emergencyShutdown = active
		v.emit(events.EmergencyShutdown, map[string]any{"active": active})
		v.logger.WithField("active", active).Warn("emergency shutdown toggled")
		return nil
	})
}

// SetLockedProfitDegradation sets how fast reported gains unlock, as a fraction
// of DegradationCoefficient per second.
func (v *Vault) SetLockedProfitDegradation(ctx context.Context, caller Address, degradation math.Int) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Admin); err != nil {
			return err
		}
		if degradation.IsNil() || degradation.IsNegative() || degradation.GT(DegradationCoefficient) {
			return invalidInput("degradation must be within [0, %s]", DegradationCoefficient)
		}
		v.st.lockedProfitDegradation = degradation
		v.emit(events.LockedProfitDegradationUpdated, map[string]any{"degradation": degradation.String()})
		return nil
	})
}

// UpdateTreasury sets the account performance fees are minted to.
func (v *Vault) UpdateTreasury(ctx context.Context, caller, treasury Address) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.DefaultAdmin); err != nil {
			return err
		}
		if treasury.IsZero() {
			return invalidInput("treasury is required")
		}
		v.st.treasury = treasury
		v.emit(events.TreasuryUpdated, map[string]any{"treasury": treasury.String()})
		return nil
	})
}

// InCaseTokensGetStuck sends the vault's whole balance of a foreign token to
// the caller. The vault's own asset cannot be rescued.
func (v *Vault) InCaseTokensGetStuck(ctx context.Context, caller Address, token Token) (math.Int, error) {
	amount := math.ZeroInt()
	err := v.atomic(ctx, func(ctx context.Context) error {
		if err := v.require(caller, access.Admin); err != nil {
			return err
		}
		if token == nil {
			return invalidInput("token is required")
		}
		if token.ID() == v.asset.ID() {
			return invalidInput("cannot rescue the vault asset")
		}
		amount = orZero(token.BalanceOf(v.address))
		if amount.IsPositive() {
			if err := token.Transfer(ctx, v.address, caller, amount); err != nil {
				return fmt.Errorf("rescue %s: %w", token.ID(), err)
			}
		}
		v.emit(events.InCaseTokensGetStuck, map[string]any{
			"token":  token.ID().String(),
			"to":     caller.String(),
			"amount": amount.String(),
		})
		return nil
	})
	return amount, err
}

func (v *Vault) activeStrategy(addr Address) (StrategyRecord, error) {
	rec, ok := v.st.strategies[addr]
	if !ok || !rec.Active() {
		return StrategyRecord{}, stateConflict("strategy %s is not active", addr)
	}
	return rec, nil
}
