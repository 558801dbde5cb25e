package vault

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	log "github.com/sirupsen/logrus"
)

// withdrawFromStrategies pulls the shortfall between value and the idle
// balance out of the withdrawal queue, in order. Losses realized along the way
// reduce value. It returns the amount the vault can pay and the total loss.
func (v *Vault) withdrawFromStrategies(ctx context.Context, value math.Int) (math.Int, math.Int, error) {
	totalLoss := math.ZeroInt()
	queue := append([]Address(nil), v.st.withdrawalQueue...)

	for _, addr := range queue {
		vaultBalance := v.idle()
		if value.LTE(vaultBalance) {
			break
		}
		rec := v.st.strategies[addr]
		if rec.Allocated.IsZero() {
			continue
		}
		handle, ok := v.st.handles[addr]
		if !ok {
			return value, totalLoss, invariantViolation("strategy %s in queue has no handle", addr)
		}

		request := math.MinInt(value.Sub(vaultBalance), rec.Allocated)
		loss, err := handle.Withdraw(ctx, request)
		if err != nil {
			return value, totalLoss, fmt.Errorf("withdraw %s from strategy %s: %w", request, addr, err)
		}
		loss = orZero(loss)
		if loss.IsNegative() {
			return value, totalLoss, invariantViolation("strategy %s reported negative loss", addr)
		}

		after := v.idle()
		if after.LT(vaultBalance) {
			return value, totalLoss, invariantViolation("vault balance fell while withdrawing from %s", addr)
		}
		actual := after.Sub(vaultBalance)

		if !loss.IsZero() {
			if loss.GT(value) {
				return value, totalLoss, invariantViolation("strategy %s loss %s exceeds withdrawal %s", addr, loss, value)
			}
			value = value.Sub(loss)
			totalLoss = totalLoss.Add(loss)
			if err := v.reportLoss(addr, loss); err != nil {
				return value, totalLoss, err
			}
		}

		rec = v.st.strategies[addr]
		if actual.GT(rec.Allocated) {
			return value, totalLoss, invariantViolation("strategy %s returned %s with %s allocated", addr, actual, rec.Allocated)
		}
		rec.Allocated = rec.Allocated.Sub(actual)
		v.st.totalAllocated = v.st.totalAllocated.Sub(actual)
		v.st.strategies[addr] = rec

		v.logger.WithFields(log.Fields{
			"strategy":  addr.String(),
			"requested": request.String(),
			"received":  actual.String(),
			"loss":      loss.String(),
		}).Debug("withdrew from strategy")
	}

	if vaultBalance := v.idle(); value.GT(vaultBalance) {
		value = vaultBalance
	}

	// totalLoss <= (value + totalLoss) * maxLoss / divisor
	bound := value.Add(totalLoss).MulRaw(int64(v.st.withdrawMaxLossBPS)).QuoRaw(PercentDivisor)
	if totalLoss.GT(bound) {
		return value, totalLoss, fmt.Errorf("%w: lost %s paying %s, limit %d bps",
			ErrSlippageExceeded, totalLoss, value, v.st.withdrawMaxLossBPS)
	}
	return value, totalLoss, nil
}

// reportLoss writes loss off a strategy's allocation and shrinks its weight in
// proportion to the share of total allocation that was lost.
func (v *Vault) reportLoss(addr Address, loss math.Int) error {
	if loss.IsZero() {
		return nil
	}
	rec := v.st.strategies[addr]
	if loss.GT(rec.Allocated) {
		return invariantViolation("strategy %s lost %s with only %s allocated", addr, loss, rec.Allocated)
	}

	if v.st.totalAllocBPS != 0 && v.st.totalAllocated.IsPositive() {
		// rounded up so a loss always costs weight
		change := mulDiv(loss, math.NewIntFromUint64(v.st.totalAllocBPS), v.st.totalAllocated, true)
		bps := rec.AllocBPS
		if change.LT(math.NewIntFromUint64(bps)) {
			bps = change.Uint64()
		}
		rec.AllocBPS -= bps
		v.st.totalAllocBPS -= bps
	}

	rec.Losses = rec.Losses.Add(loss)
	rec.Allocated = rec.Allocated.Sub(loss)
	v.st.totalAllocated = v.st.totalAllocated.Sub(loss)
	v.st.strategies[addr] = rec
	return nil
}
