package vault

import (
	"context"
	"fmt"

	"cosmossdk.io/math"

	"yieldvault/internal/events"
)

// Settlement is the outcome of a deposit, mint, withdraw or redeem.
type Settlement struct {
	Shares math.Int `json:"shares"`
	Assets math.Int `json:"assets"`
	// Loss realized by strategies while funding a withdrawal
	Loss math.Int `json:"loss"`
}

// Deposit pulls assets from caller and mints the matching shares to receiver.
func (v *Vault) Deposit(ctx context.Context, caller Address, assets math.Int, receiver Address) (Settlement, error) {
	var out Settlement
	err := v.atomic(ctx, func(ctx context.Context) error {
		var err error
		out, err = v.deposit(ctx, caller, assets, receiver)
		return err
	})
	return out, err
}

// DepositAll deposits caller's entire asset balance for caller.
func (v *Vault) DepositAll(ctx context.Context, caller Address) (Settlement, error) {
	var out Settlement
	err := v.atomic(ctx, func(ctx context.Context) error {
		var err error
		out, err = v.deposit(ctx, caller, orZero(v.asset.BalanceOf(caller)), caller)
		return err
	})
	return out, err
}

// Mint mints exactly shares to receiver, pulling their up-rounded asset price
// from caller.
func (v *Vault) Mint(ctx context.Context, caller Address, shares math.Int, receiver Address) (Settlement, error) {
	var out Settlement
	err := v.atomic(ctx, func(ctx context.Context) error {
		if v.st.emergencyShutdown {
			return stateConflict("vault is shut down")
		}
		if shares.IsNil() || !shares.IsPositive() {
			return invalidInput("shares must be positive")
		}
		if receiver.IsZero() {
			return invalidInput("receiver is required")
		}
		assets := v.mintCost(shares)
		if err := v.checkCapacity(assets); err != nil {
			return err
		}
		received, err := v.pull(ctx, caller, assets)
		if err != nil {
			return err
		}
		if received.LT(assets) {
			return invalidInput("asset delivered %s, mint requires %s", received, assets)
		}
		if err := v.shares.Mint(receiver, shares); err != nil {
			return fmt.Errorf("mint shares: %w", err)
		}
		out = Settlement{Shares: shares, Assets: received, Loss: math.ZeroInt()}
		v.emitDeposit(caller, receiver, out)
		return nil
	})
	return out, err
}

// Withdraw burns owner's shares worth assets and pays receiver. The amount
// paid can be lower when strategies realize a loss or under-deliver.
func (v *Vault) Withdraw(ctx context.Context, caller Address, assets math.Int, receiver, owner Address) (Settlement, error) {
	var out Settlement
	err := v.atomic(ctx, func(ctx context.Context) error {
		if assets.IsNil() || !assets.IsPositive() {
			return invalidInput("assets must be positive")
		}
		shares := v.previewWithdraw(assets)
		var err error
		out, err = v.withdraw(ctx, caller, shares, assets, receiver, owner)
		return err
	})
	return out, err
}

// Redeem burns shares from owner and pays receiver their asset value.
func (v *Vault) Redeem(ctx context.Context, caller Address, shares math.Int, receiver, owner Address) (Settlement, error) {
	var out Settlement
	err := v.atomic(ctx, func(ctx context.Context) error {
		var err error
		out, err = v.redeem(ctx, caller, shares, receiver, owner)
		return err
	})
	return out, err
}

// RedeemAll redeems caller's entire share balance to caller.
func (v *Vault) RedeemAll(ctx context.Context, caller Address) (Settlement, error) {
	var out Settlement
	err := v.atomic(ctx, func(ctx context.Context) error {
		var err error
		out, err = v.redeem(ctx, caller, v.shares.BalanceOf(caller), caller, caller)
		return err
	})
	return out, err
}

// Transfer moves shares between holders.
func (v *Vault) Transfer(ctx context.Context, caller, to Address, shares math.Int) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if shares.IsNil() || !shares.IsPositive() {
			return invalidInput("shares must be positive")
		}
		if err := v.shares.Transfer(ctx, caller, to, shares); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		v.emit(events.Transfer, map[string]any{
			"from":   caller.String(),
			"to":     to.String(),
			"shares": shares.String(),
		})
		return nil
	})
}

// Approve lets spender withdraw, redeem or move up to shares of caller's shares.
func (v *Vault) Approve(ctx context.Context, caller, spender Address, shares math.Int) error {
	return v.atomic(ctx, func(ctx context.Context) error {
		if err := v.shares.Approve(caller, spender, shares); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil
	})
}

func (v *Vault) deposit(ctx context.Context, caller Address, assets math.Int, receiver Address) (Settlement, error) {
	if v.st.emergencyShutdown {
		return Settlement{}, stateConflict("vault is shut down")
	}
	if assets.IsNil() || !assets.IsPositive() {
		return Settlement{}, invalidInput("assets must be positive")
	}
	if receiver.IsZero() {
		return Settlement{}, invalidInput("receiver is required")
	}
	if err := v.checkCapacity(assets); err != nil {
		return Settlement{}, err
	}

	// price against the pool as it stood before the transfer
	supply := v.shares.TotalSupply()
	free := v.freeFunds()

	received, err := v.pull(ctx, caller, assets)
	if err != nil {
		return Settlement{}, err
	}
	if !received.IsPositive() {
		return Settlement{}, invalidInput("no assets received")
	}

	shares := received
	if !supply.IsZero() && !free.IsZero() {
		shares = received.Mul(supply).Quo(free)
	}
	if shares.IsZero() {
		return Settlement{}, invalidInput("deposit of %s mints no shares", received)
	}
	if err := v.shares.Mint(receiver, shares); err != nil {
		return Settlement{}, fmt.Errorf("mint shares: %w", err)
	}

	out := Settlement{Shares: shares, Assets: received, Loss: math.ZeroInt()}
	v.emitDeposit(caller, receiver, out)
	return out, nil
}

func (v *Vault) redeem(ctx context.Context, caller Address, shares math.Int, receiver, owner Address) (Settlement, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return Settlement{}, invalidInput("shares must be positive")
	}
	value := v.convertToAssets(shares, false)
	if value.IsZero() {
		return Settlement{}, invalidInput("%s shares redeem for nothing", shares)
	}
	return v.withdraw(ctx, caller, shares, value, receiver, owner)
}

// withdraw burns shares first, then funds value from idle balance and, on a
// shortfall, from the withdrawal queue.
func (v *Vault) withdraw(ctx context.Context, caller Address, shares, value math.Int, receiver, owner Address) (Settlement, error) {
	if shares.IsZero() {
		return Settlement{}, invalidInput("withdrawal burns no shares")
	}
	if receiver.IsZero() {
		return Settlement{}, invalidInput("receiver is required")
	}
	if caller != owner {
		if err := v.shares.SpendAllowance(owner, caller, shares); err != nil {
			return Settlement{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
	}
	if err := v.shares.Burn(owner, shares); err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	loss := math.ZeroInt()
	if value.GT(v.idle()) {
		var err error
		value, loss, err = v.withdrawFromStrategies(ctx, value)
		if err != nil {
			return Settlement{}, err
		}
	}

	if value.IsPositive() {
		if err := v.asset.Transfer(ctx, v.address, receiver, value); err != nil {
			return Settlement{}, fmt.Errorf("pay withdrawal: %w", err)
		}
	}

	out := Settlement{Shares: shares, Assets: value, Loss: loss}
	v.emit(events.Withdraw, map[string]any{
		"caller":   caller.String(),
		"receiver": receiver.String(),
		"owner":    owner.String(),
		"assets":   value.String(),
		"shares":   shares.String(),
		"loss":     loss.String(),
	})
	return out, nil
}

func (v *Vault) checkCapacity(assets math.Int) error {
	tmv := v.totalManagedValue()
	if tmv.GTE(v.st.tvlCap) || assets.GT(v.st.tvlCap.Sub(tmv)) {
		return capacityExceeded("deposit of %s exceeds tvl cap %s (managed %s)", assets, v.st.tvlCap, tmv)
	}
	return nil
}

// pull moves assets from caller into the vault and returns the balance
// increase actually observed.
func (v *Vault) pull(ctx context.Context, caller Address, assets math.Int) (math.Int, error) {
	before := v.idle()
	if err := v.asset.TransferFrom(ctx, v.address, caller, v.address, assets); err != nil {
		return math.ZeroInt(), fmt.Errorf("%w: pull assets: %w", ErrInvalidInput, err)
	}
	after := v.idle()
	if after.LT(before) {
		return math.ZeroInt(), invariantViolation("vault balance fell during deposit")
	}
	return after.Sub(before), nil
}

func (v *Vault) emitDeposit(caller, receiver Address, s Settlement) {
	v.emit(events.Deposit, map[string]any{
		"caller":   caller.String(),
		"receiver": receiver.String(),
		"assets":   s.Assets.String(),
		"shares":   s.Shares.String(),
	})
}
