package vault

import (
	"context"

	"cosmossdk.io/math"
)

// AvailableCapital tells a strategy how far it is from its target allocation.
// A positive result is credit it may draw on its next report, a negative
// result is debt it should repay. Only registered strategies may ask.
func (v *Vault) AvailableCapital(ctx context.Context, strategy Address) (math.Int, error) {
	out := math.ZeroInt()
	var err error
	verr := v.view(ctx, func() {
		if rec, ok := v.st.strategies[strategy]; !ok || !rec.Active() {
			err = unauthorized("%s is not a registered strategy", strategy)
			return
		}
		out = v.availableCapital(strategy)
	})
	if verr != nil {
		return out, verr
	}
	return out, err
}

func (v *Vault) availableCapital(addr Address) math.Int {
	rec := v.st.strategies[addr]
	if v.st.totalAllocBPS == 0 || v.st.emergencyShutdown {
		return rec.Allocated.Neg()
	}

	tmv := v.totalManagedValue()
	target := tmv.Mul(math.NewIntFromUint64(rec.AllocBPS)).QuoRaw(PercentDivisor)
	vaultTarget := tmv.Mul(math.NewIntFromUint64(v.st.totalAllocBPS)).QuoRaw(PercentDivisor)

	switch {
	case rec.Allocated.GT(target):
		return rec.Allocated.Sub(target).Neg()
	case rec.Allocated.LT(target):
		if v.st.totalAllocated.GTE(vaultTarget) {
			return math.ZeroInt()
		}
		out := math.MinInt(target.Sub(rec.Allocated), vaultTarget.Sub(v.st.totalAllocated))
		return math.MinInt(out, v.idle())
	default:
		return math.ZeroInt()
	}
}

// StrategyPosition reads a strategy's record together with its available
// capital, both at the same instant.
func (v *Vault) StrategyPosition(ctx context.Context, strategy Address) (StrategyRecord, math.Int, error) {
	var (
		rec StrategyRecord
		ok  bool
	)
	out := math.ZeroInt()
	err := v.view(ctx, func() {
		if rec, ok = v.st.strategies[strategy]; ok && rec.Active() {
			out = v.availableCapital(strategy)
		}
	})
	if err != nil {
		return StrategyRecord{}, out, err
	}
	if !ok || !rec.Active() {
		return StrategyRecord{}, out, unauthorized("%s is not a registered strategy", strategy)
	}
	return rec, out, nil
}
