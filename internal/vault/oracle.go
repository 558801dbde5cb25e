package vault

import (
	"context"

	"cosmossdk.io/math"
)

// idle is the asset balance sitting in the vault, observed fresh.
func (v *Vault) idle() math.Int {
	return orZero(v.asset.BalanceOf(v.address))
}

// totalManagedValue is idle balance plus capital extended to strategies.
func (v *Vault) totalManagedValue() math.Int {
	return v.idle().Add(v.st.totalAllocated)
}

// currentLockedProfit decays the last reported locked profit linearly: after
// coefficient/degradation seconds nothing remains locked.
func (v *Vault) currentLockedProfit() math.Int {
	elapsed := int64(v.now().Sub(v.st.lastReport).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	ratio := v.st.lockedProfitDegradation.MulRaw(elapsed)
	if ratio.LT(DegradationCoefficient) {
		return v.st.lockedProfit.Sub(v.st.lockedProfit.Mul(ratio).Quo(DegradationCoefficient))
	}
	return math.ZeroInt()
}

func (v *Vault) freeFunds() math.Int {
	tmv := v.totalManagedValue()
	locked := v.currentLockedProfit()
	if locked.GTE(tmv) {
		return math.ZeroInt()
	}
	return tmv.Sub(locked)
}

func (v *Vault) convertToShares(assets math.Int) math.Int {
	supply := v.shares.TotalSupply()
	free := v.freeFunds()
	if supply.IsZero() || free.IsZero() {
		return assets
	}
	return assets.Mul(supply).Quo(free)
}

func (v *Vault) convertToAssets(shares math.Int, roundUp bool) math.Int {
	supply := v.shares.TotalSupply()
	if supply.IsZero() {
		return shares
	}
	return mulDiv(shares, v.freeFunds(), supply, roundUp)
}

// previewWithdraw is the shares burned to withdraw assets, rounded up. While
// shares exist but nothing is free every share prices at zero, so no amount
// of shares can pay out assets and the result is zero.
func (v *Vault) previewWithdraw(assets math.Int) math.Int {
	supply := v.shares.TotalSupply()
	if supply.IsZero() {
		return assets
	}
	free := v.freeFunds()
	if free.IsZero() {
		return math.ZeroInt()
	}
	return mulDiv(assets, supply, free, true)
}

func (v *Vault) maxDeposit() math.Int {
	tmv := v.totalManagedValue()
	if v.st.emergencyShutdown || tmv.GTE(v.st.tvlCap) {
		return math.ZeroInt()
	}
	return v.st.tvlCap.Sub(tmv)
}

func (v *Vault) maxMint() math.Int {
	room := v.maxDeposit()
	if room.IsZero() {
		return room
	}
	if v.st.tvlCap.Equal(UnlimitedTVL) {
		return UnlimitedTVL
	}
	return v.convertToShares(room)
}

// mulDiv computes a*b/d rounded down, or up when roundUp is set.
func mulDiv(a, b, d math.Int, roundUp bool) math.Int {
	p := a.Mul(b)
	q := p.Quo(d)
	if roundUp && !p.Mod(d).IsZero() {
		q = q.AddRaw(1)
	}
	return q
}

func (v *Vault) viewInt(ctx context.Context, fn func() math.Int) (math.Int, error) {
	out := math.ZeroInt()
	err := v.view(ctx, func() { out = fn() })
	return out, err
}

// TotalAssets returns idle balance plus total allocated capital.
func (v *Vault) TotalAssets(ctx context.Context) (math.Int, error) {
	return v.viewInt(ctx, v.totalManagedValue)
}

// FreeFunds returns total assets minus the profit still locked.
func (v *Vault) FreeFunds(ctx context.Context) (math.Int, error) {
	return v.viewInt(ctx, v.freeFunds)
}

// LockedProfit returns the profit not yet recognized in the share price.
func (v *Vault) LockedProfit(ctx context.Context) (math.Int, error) {
	return v.viewInt(ctx, v.currentLockedProfit)
}

// TotalSupply returns the number of shares in existence.
func (v *Vault) TotalSupply() math.Int {
	return v.shares.TotalSupply()
}

// BalanceOf returns the shares held by holder.
func (v *Vault) BalanceOf(holder Address) math.Int {
	return v.shares.BalanceOf(holder)
}

// Allowance returns the shares spender may still withdraw or move for owner.
func (v *Vault) Allowance(owner, spender Address) math.Int {
	return v.shares.Allowance(owner, spender)
}

// Holders lists every account holding shares.
func (v *Vault) Holders() []Address {
	return v.shares.Holders()
}

// ConvertToShares returns the shares assets would buy, rounded down.
func (v *Vault) ConvertToShares(ctx context.Context, assets math.Int) (math.Int, error) {
	return v.viewInt(ctx, func() math.Int { return v.convertToShares(assets) })
}

// ConvertToAssets returns the assets shares are worth, rounded down.
func (v *Vault) ConvertToAssets(ctx context.Context, shares math.Int) (math.Int, error) {
	return v.viewInt(ctx, func() math.Int { return v.convertToAssets(shares, false) })
}

// PreviewDeposit returns the shares a deposit of assets would mint.
func (v *Vault) PreviewDeposit(ctx context.Context, assets math.Int) (math.Int, error) {
	return v.ConvertToShares(ctx, assets)
}

// PreviewMint returns the assets required to mint shares, rounded up.
func (v *Vault) PreviewMint(ctx context.Context, shares math.Int) (math.Int, error) {
	return v.viewInt(ctx, func() math.Int { return v.mintCost(shares) })
}

// PreviewWithdraw returns the shares burned to withdraw assets, rounded up.
func (v *Vault) PreviewWithdraw(ctx context.Context, assets math.Int) (math.Int, error) {
	return v.viewInt(ctx, func() math.Int { return v.previewWithdraw(assets) })
}

// PreviewRedeem returns the assets shares redeem for, rounded down.
func (v *Vault) PreviewRedeem(ctx context.Context, shares math.Int) (math.Int, error) {
	return v.ConvertToAssets(ctx, shares)
}

// MaxDeposit returns the largest deposit currently accepted.
func (v *Vault) MaxDeposit(ctx context.Context, _ Address) (math.Int, error) {
	return v.viewInt(ctx, v.maxDeposit)
}

// MaxMint returns the largest number of shares currently mintable.
func (v *Vault) MaxMint(ctx context.Context, _ Address) (math.Int, error) {
	return v.viewInt(ctx, v.maxMint)
}

// MaxWithdraw returns the assets owner's shares are worth.
func (v *Vault) MaxWithdraw(ctx context.Context, owner Address) (math.Int, error) {
	return v.viewInt(ctx, func() math.Int { return v.convertToAssets(v.shares.BalanceOf(owner), false) })
}

// MaxRedeem returns owner's share balance.
func (v *Vault) MaxRedeem(_ context.Context, owner Address) (math.Int, error) {
	return v.shares.BalanceOf(owner), nil
}

// PricePerFullShare returns the assets one whole share (10^decimals units) is worth.
func (v *Vault) PricePerFullShare(ctx context.Context) (math.Int, error) {
	unit := math.NewIntWithDecimal(1, int(v.Decimals()))
	return v.ConvertToAssets(ctx, unit)
}

// mintCost is the asset price of shares, rounded up, at parity while nothing
// is free to price against.
func (v *Vault) mintCost(shares math.Int) math.Int {
	if v.freeFunds().IsZero() {
		return shares
	}
	return v.convertToAssets(shares, true)
}
