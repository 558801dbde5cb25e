package strategy

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	log "github.com/sirupsen/logrus"

	"yieldvault/internal/vault"
)

// Reporter is the part of the vault a strategy talks to.
type Reporter interface {
	Address() vault.Address
	StrategyPosition(ctx context.Context, strategy vault.Address) (vault.StrategyRecord, math.Int, error)
	Report(ctx context.Context, strategy vault.Address, roi vault.ROI, repayment math.Int) (math.Int, error)
}

// Asset is an in-process token a Passive strategy can hold, approve and
// simulate yield on.
type Asset interface {
	vault.Asset
	Approve(owner, spender vault.Address, amount math.Int) error
	Mint(to vault.Address, amount math.Int) error
	Burn(from vault.Address, amount math.Int) error
}

// Passive keeps its capital as a plain balance of the asset. Its return comes
// from SimulateYield and SimulateLoss.
type Passive struct {
	mu sync.Mutex

	address vault.Address
	vault   Reporter
	asset   Asset
	logger  *log.Entry

	lastDebt math.Int
}

// NewPassive creates a strategy holding its funds at address.
func NewPassive(address vault.Address, v Reporter, asset Asset) *Passive {
	return &Passive{
		address:  address,
		vault:    v,
		asset:    asset,
		logger:   log.WithField("strategy", address.String()),
		lastDebt: math.ZeroInt(),
	}
}

func (p *Passive) Address() vault.Address { return p.address }
func (p *Passive) Vault() vault.Address   { return p.vault.Address() }
func (p *Passive) Want() vault.Address    { return p.asset.ID() }

// BalanceOf returns the asset the strategy holds.
func (p *Passive) BalanceOf(_ context.Context) (math.Int, error) {
	return p.asset.BalanceOf(p.address), nil
}

// LastDebt is the debt the vault returned on the latest harvest.
func (p *Passive) LastDebt() math.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDebt
}

// Withdraw sends up to amount to the vault. Whatever it cannot cover is
// reported as loss.
func (p *Passive) Withdraw(ctx context.Context, amount math.Int) (math.Int, error) {
	if amount.IsNil() || amount.IsNegative() {
		return math.ZeroInt(), fmt.Errorf("withdraw: invalid amount %v", amount)
	}
	balance := p.asset.BalanceOf(p.address)
	send := math.MinInt(amount, balance)
	if send.IsPositive() {
		if err := p.asset.Transfer(ctx, p.address, p.vault.Address(), send); err != nil {
			return math.ZeroInt(), fmt.Errorf("withdraw: %w", err)
		}
	}
	return amount.Sub(send), nil
}

// Harvest books the strategy's return with the vault, repays what it owes and
// takes whatever credit the vault extends.
func (p *Passive) Harvest(ctx context.Context) (math.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, available, err := p.vault.StrategyPosition(ctx, p.address)
	if err != nil {
		return math.ZeroInt(), fmt.Errorf("harvest: %w", err)
	}

	balance := p.asset.BalanceOf(p.address)
	roi := vault.ROIFromSigned(balance.Sub(rec.Allocated))

	repayment := math.ZeroInt()
	if available.IsNegative() {
		free := balance
		if !roi.IsLoss() {
			free = balance.Sub(roi.Amount())
		}
		repayment = math.MinInt(available.Neg(), free)
	}

	// the vault pulls at most repayment plus gain
	allowance := repayment
	if !roi.IsLoss() {
		allowance = allowance.Add(roi.Amount())
	}
	if err := p.asset.Approve(p.address, p.vault.Address(), allowance); err != nil {
		return math.ZeroInt(), fmt.Errorf("harvest: approve vault: %w", err)
	}
	debt, err := p.vault.Report(ctx, p.address, roi, repayment)
	if rerr := p.asset.Approve(p.address, p.vault.Address(), math.ZeroInt()); rerr != nil {
		p.logger.WithError(rerr).Warn("failed to reset vault allowance")
	}
	if err != nil {
		return math.ZeroInt(), fmt.Errorf("harvest: %w", err)
	}
	p.lastDebt = debt

	p.logger.WithFields(log.Fields{
		"roi":       roi.Signed().String(),
		"repayment": repayment.String(),
		"debt":      debt.String(),
	}).Info("harvested")
	return math.ZeroInt(), nil
}

// SimulateYield credits the strategy with amount of new asset.
func (p *Passive) SimulateYield(amount math.Int) error {
	return p.asset.Mint(p.address, amount)
}

// SimulateLoss destroys amount of the strategy's asset.
func (p *Passive) SimulateLoss(amount math.Int) error {
	return p.asset.Burn(p.address, amount)
}
