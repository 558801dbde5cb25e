package vault

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	log "github.com/sirupsen/logrus"

	"yieldvault/internal/events"
)

// Report reconciles a strategy with the vault. The strategy declares its
// return since the last report and how much debt it repays; the vault books
// the gain or loss, charges the performance fee, settles credit or debt with a
// single net transfer and locks the gain. It returns the debt the strategy
// still owes, or its whole allocation once it should wind down.
//
// When the vault pulls funds the strategy must have approved the vault as
// spender on the asset.
func (v *Vault) Report(ctx context.Context, strategy Address, roi ROI, repayment math.Int) (math.Int, error) {
	out := math.ZeroInt()
	err := v.atomic(ctx, func(ctx context.Context) error {
		var err error
		out, err = v.report(ctx, strategy, roi, orZero(repayment))
		return err
	})
	return out, err
}

func (v *Vault) report(ctx context.Context, addr Address, roi ROI, repayment math.Int) (math.Int, error) {
	rec, ok := v.st.strategies[addr]
	if !ok || !rec.Active() {
		return math.ZeroInt(), unauthorized("%s is not a registered strategy", addr)
	}
	if roi.Amount().IsNegative() || repayment.IsNegative() {
		return math.ZeroInt(), invalidInput("report amounts must be non-negative")
	}

	gain, loss := math.ZeroInt(), math.ZeroInt()
	fees := math.ZeroInt()
	if roi.IsLoss() {
		loss = roi.Amount()
		if err := v.reportLoss(addr, loss); err != nil {
			return math.ZeroInt(), err
		}
	} else {
		gain = roi.Amount()
		var err error
		if fees, err = v.chargeFees(addr, gain); err != nil {
			return math.ZeroInt(), err
		}
		rec = v.st.strategies[addr]
		rec.Gains = rec.Gains.Add(gain)
		v.st.strategies[addr] = rec
	}

	debt, credit := math.ZeroInt(), math.ZeroInt()
	available := v.availableCapital(addr)
	rec = v.st.strategies[addr]
	if available.IsNegative() {
		debt = available.Neg()
		repayment = math.MinInt(debt, repayment)
		if repayment.IsPositive() {
			rec.Allocated = rec.Allocated.Sub(repayment)
			v.st.totalAllocated = v.st.totalAllocated.Sub(repayment)
			debt = debt.Sub(repayment)
		}
	} else {
		// nothing is owed, so nothing is accepted as repayment
		repayment = math.ZeroInt()
		credit = available
		rec.Allocated = rec.Allocated.Add(credit)
		v.st.totalAllocated = v.st.totalAllocated.Add(credit)
	}
	v.st.strategies[addr] = rec

	freeWant := repayment.Add(gain)
	switch {
	case credit.GT(freeWant):
		amount := credit.Sub(freeWant)
		if err := v.asset.Transfer(ctx, v.address, addr, amount); err != nil {
			return math.ZeroInt(), fmt.Errorf("send credit to strategy %s: %w", addr, err)
		}
	case credit.LT(freeWant):
		amount := freeWant.Sub(credit)
		before := v.idle()
		if err := v.asset.TransferFrom(ctx, v.address, addr, v.address, amount); err != nil {
			return math.ZeroInt(), fmt.Errorf("%w: pull %s from strategy %s: %w", ErrInvariantViolation, amount, addr, err)
		}
		if received := v.idle().Sub(before); !received.Equal(amount) {
			return math.ZeroInt(), invariantViolation("strategy %s delivered %s of %s", addr, received, amount)
		}
	}

	locked := v.currentLockedProfit().Add(gain)
	if locked.GT(loss) {
		v.st.lockedProfit = locked.Sub(loss)
	} else {
		v.st.lockedProfit = math.ZeroInt()
	}

	now := v.now()
	v.st.lastReport = now
	rec = v.st.strategies[addr]
	rec.LastReportTime = now
	v.st.strategies[addr] = rec

	v.emit(events.StrategyReported, map[string]any{
		"strategy":        addr.String(),
		"gain":            gain.String(),
		"loss":            loss.String(),
		"fees":            fees.String(),
		"debt_paid":       repayment.String(),
		"credit":          credit.String(),
		"debt":            debt.String(),
		"gains":           rec.Gains.String(),
		"losses":          rec.Losses.String(),
		"allocated":       rec.Allocated.String(),
		"alloc_bps":       rec.AllocBPS,
		"locked_profit":   v.st.lockedProfit.String(),
		"total_allocated": v.st.totalAllocated.String(),
	})
	v.logger.WithFields(log.Fields{
		"strategy": addr.String(),
		"gain":     gain.String(),
		"loss":     loss.String(),
		"credit":   credit.String(),
		"debt":     debt.String(),
	}).Info("strategy reported")

	// A wound-down strategy is asked for its whole recorded allocation, not
	// only the debt left after this report's repayment.
	if rec.AllocBPS == 0 || v.st.emergencyShutdown {
		return rec.Allocated, nil
	}
	return debt, nil
}

// chargeFees mints the strategy's performance fee on gain to the treasury as
// shares priced at the current free funds.
func (v *Vault) chargeFees(addr Address, gain math.Int) (math.Int, error) {
	rec := v.st.strategies[addr]
	fee := gain.Mul(math.NewIntFromUint64(rec.FeeBPS)).QuoRaw(PercentDivisor)
	if fee.IsZero() || v.st.treasury.IsZero() {
		return math.ZeroInt(), nil
	}
	supply := v.shares.TotalSupply()
	free := v.freeFunds()
	shares := fee
	if !supply.IsZero() && !free.IsZero() {
		shares = fee.Mul(supply).Quo(free)
	}
	if shares.IsZero() {
		return math.ZeroInt(), nil
	}
	if err := v.shares.Mint(v.st.treasury, shares); err != nil {
		return math.ZeroInt(), fmt.Errorf("mint fee shares: %w", err)
	}
	return fee, nil
}
