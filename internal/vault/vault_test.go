package vault_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldvault/internal/access"
	"yieldvault/internal/events"
	"yieldvault/internal/ledger"
	"yieldvault/internal/strategy"
	"yieldvault/internal/vault"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func key(seed byte) vault.Address {
	var k vault.Address
	k[0] = seed
	k[31] = 0xAA
	return k
}

func n(v int64) math.Int { return math.NewInt(v) }

type fixture struct {
	t      *testing.T
	ctx    context.Context
	asset  *ledger.Ledger
	vault  *vault.Vault
	grants *access.Grants
	clock  *clock

	mu     sync.Mutex
	events []events.Event

	admin, guardian, strategist, treasury, alice, bob vault.Address
}

func newFixture(t *testing.T, tvlCap math.Int) *fixture {
	t.Helper()
	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		clock:      &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		admin:      key(1),
		guardian:   key(2),
		strategist: key(3),
		treasury:   key(4),
		alice:      key(10),
		bob:        key(11),
	}
	f.asset = ledger.New(key(100), "USD Coin", "USDC", 6)
	f.grants = access.NewGrants()
	f.grants.Grant(access.DefaultAdmin, f.admin)
	f.grants.Grant(access.Guardian, f.guardian)
	f.grants.Grant(access.Strategist, f.strategist)

	v, err := vault.New(vault.Config{
		Address:    key(200),
		Name:       "Yield USDC",
		Symbol:     "yvUSDC",
		Asset:      f.asset,
		Treasury:   f.treasury,
		TVLCap:     tvlCap,
		Authorizer: f.grants,
		Events: events.SinkFunc(func(_ context.Context, evt events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, evt)
			return nil
		}),
		Clock: f.clock.Now,
	})
	require.NoError(t, err)
	f.vault = v
	return f
}

// fund mints assets to who and approves the vault to pull them.
func (f *fixture) fund(who vault.Address, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.asset.Mint(who, n(amount)))
	require.NoError(f.t, f.asset.Approve(who, f.vault.Address(), f.asset.BalanceOf(who)))
}

func (f *fixture) deposit(who vault.Address, amount int64) vault.Settlement {
	f.t.Helper()
	f.fund(who, amount)
	out, err := f.vault.Deposit(f.ctx, who, n(amount), who)
	require.NoError(f.t, err)
	return out
}

func (f *fixture) addPassive(seed byte, feeBPS, allocBPS uint64) *strategy.Passive {
	f.t.Helper()
	s := strategy.NewPassive(key(seed), f.vault, f.asset)
	require.NoError(f.t, f.vault.AddStrategy(f.ctx, f.admin, s, feeBPS, allocBPS))
	return s
}

func (f *fixture) record(addr vault.Address) vault.StrategyRecord {
	f.t.Helper()
	rec, ok, err := f.vault.Strategy(f.ctx, addr)
	require.NoError(f.t, err)
	require.True(f.t, ok)
	return rec
}

func (f *fixture) summary() vault.Summary {
	f.t.Helper()
	s, err := f.vault.Summary(f.ctx)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) eventTypes() []events.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Type, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

// assertSolvent checks that every holder's redeemable value together never
// exceeds what the vault manages.
func (f *fixture) assertSolvent() {
	f.t.Helper()
	total := math.ZeroInt()
	for _, h := range f.vault.Holders() {
		v, err := f.vault.ConvertToAssets(f.ctx, f.vault.BalanceOf(h))
		require.NoError(f.t, err)
		total = total.Add(v)
	}
	assets, err := f.vault.TotalAssets(f.ctx)
	require.NoError(f.t, err)
	assert.True(f.t, total.LTE(assets), "holders can claim %s of %s", total, assets)
}

func TestDeposit(t *testing.T) {
	t.Run("Bootstrap deposit mints at parity", func(t *testing.T) {
		f := newFixture(t, n(1000))
		out := f.deposit(f.alice, 1000)
		assert.Equal(t, n(1000), out.Shares)
		assert.Equal(t, n(1000), f.vault.BalanceOf(f.alice))
		assert.Equal(t, n(1000), f.vault.TotalSupply())

		f.fund(f.bob, 1)
		_, err := f.vault.Deposit(f.ctx, f.bob, n(1), f.bob)
		assert.ErrorIs(t, err, vault.ErrCapacityExceeded)
	})

	t.Run("Deposit above remaining capacity fails", func(t *testing.T) {
		f := newFixture(t, n(500))
		f.deposit(f.alice, 300)
		f.fund(f.bob, 201)
		_, err := f.vault.Deposit(f.ctx, f.bob, n(201), f.bob)
		assert.ErrorIs(t, err, vault.ErrCapacityExceeded)

		room, err := f.vault.MaxDeposit(f.ctx, f.bob)
		require.NoError(t, err)
		assert.Equal(t, n(200), room)
	})

	t.Run("Zero amount is rejected", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		_, err := f.vault.Deposit(f.ctx, f.alice, n(0), f.alice)
		assert.ErrorIs(t, err, vault.ErrInvalidInput)
	})

	t.Run("Deposit during shutdown is rejected", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		require.NoError(t, f.vault.SetEmergencyShutdown(f.ctx, f.guardian, true))
		f.fund(f.alice, 10)
		_, err := f.vault.Deposit(f.ctx, f.alice, n(10), f.alice)
		assert.ErrorIs(t, err, vault.ErrStateConflict)
	})

	t.Run("Failed pull changes nothing", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		require.NoError(t, f.asset.Mint(f.alice, n(100)))
		_, err := f.vault.Deposit(f.ctx, f.alice, n(100), f.alice)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrInsufficientAllowance))
		assert.True(t, f.vault.TotalSupply().IsZero())
		assert.Equal(t, n(100), f.asset.BalanceOf(f.alice))
		assert.Empty(t, f.eventTypes())
	})

	t.Run("DepositAll uses the whole balance", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.fund(f.alice, 250)
		out, err := f.vault.DepositAll(f.ctx, f.alice)
		require.NoError(t, err)
		assert.Equal(t, n(250), out.Shares)
		assert.True(t, f.asset.BalanceOf(f.alice).IsZero())
		assert.Equal(t, []events.Type{events.Deposit}, f.eventTypes())
	})

	t.Run("Mint pulls the rounded-up price", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := f.addPassive(50, 0, 10_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)
		require.NoError(t, s.SimulateYield(n(50)))
		_, err = s.Harvest(f.ctx)
		require.NoError(t, err)
		f.clock.Advance(7 * time.Hour)

		// 150 assets back 100 shares
		cost, err := f.vault.PreviewMint(f.ctx, n(3))
		require.NoError(t, err)
		assert.Equal(t, n(5), cost)

		f.fund(f.bob, 5)
		out, err := f.vault.Mint(f.ctx, f.bob, n(3), f.bob)
		require.NoError(t, err)
		assert.Equal(t, n(3), out.Shares)
		assert.Equal(t, n(5), out.Assets)
		f.assertSolvent()
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("Waterfall skips empty strategies and pulls the shortfall", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 60)
		empty := f.addPassive(50, 0, 0)
		full := f.addPassive(51, 0, 8334)
		_, err := full.Harvest(f.ctx)
		require.NoError(t, err)
		require.Equal(t, n(50), f.record(full.Address()).Allocated)
		require.Equal(t, n(10), f.asset.BalanceOf(f.vault.Address()))

		out, err := f.vault.Withdraw(f.ctx, f.alice, n(40), f.alice, f.alice)
		require.NoError(t, err)
		assert.Equal(t, n(40), out.Assets)
		assert.Equal(t, n(40), out.Shares)
		assert.True(t, out.Loss.IsZero())
		assert.Equal(t, n(40), f.asset.BalanceOf(f.alice))
		assert.True(t, f.record(empty.Address()).Allocated.IsZero())
		assert.Equal(t, n(20), f.record(full.Address()).Allocated)
		assert.Equal(t, n(20), f.summary().TotalAllocated)
		assert.True(t, f.asset.BalanceOf(f.vault.Address()).IsZero())
	})

	t.Run("Loss beyond tolerance fails and rolls back", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := &lossyStrategy{addr: key(60), vault: f.vault.Address(), asset: f.asset}
		require.NoError(t, f.vault.AddStrategy(f.ctx, f.admin, s, 0, 10_000))
		_, err := f.vault.Report(f.ctx, s.addr, vault.Gain(n(0)), n(0))
		require.NoError(t, err)
		require.Equal(t, n(100), f.record(s.addr).Allocated)

		_, err = f.vault.Redeem(f.ctx, f.alice, n(50), f.alice, f.alice)
		assert.ErrorIs(t, err, vault.ErrSlippageExceeded)
		assert.Equal(t, n(100), f.vault.BalanceOf(f.alice))
		rec := f.record(s.addr)
		assert.Equal(t, n(100), rec.Allocated)
		assert.Equal(t, uint64(10_000), rec.AllocBPS)
		assert.True(t, rec.Losses.IsZero())

		// accepting total loss lets the same redemption through with nothing paid
		require.NoError(t, f.vault.UpdateWithdrawMaxLoss(f.ctx, f.strategist, 10_000))
		out, err := f.vault.Redeem(f.ctx, f.alice, n(50), f.alice, f.alice)
		require.NoError(t, err)
		assert.True(t, out.Assets.IsZero())
		assert.Equal(t, n(50), out.Loss)
		assert.Equal(t, n(50), f.record(s.addr).Allocated)
		f.assertSolvent()
	})

	t.Run("Under-delivering strategy pays what is available", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := f.addPassive(50, 0, 10_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)
		require.NoError(t, s.SimulateLoss(n(10)))
		require.NoError(t, f.vault.UpdateWithdrawMaxLoss(f.ctx, f.strategist, 1_000))

		out, err := f.vault.Redeem(f.ctx, f.alice, n(100), f.alice, f.alice)
		require.NoError(t, err)
		assert.Equal(t, n(90), out.Assets)
		assert.Equal(t, n(10), out.Loss)
		assert.True(t, f.vault.TotalSupply().IsZero())
		assert.True(t, f.summary().TotalAllocated.IsZero())
	})

	t.Run("Third party withdraw spends allowance", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)

		_, err := f.vault.Withdraw(f.ctx, f.bob, n(10), f.bob, f.alice)
		assert.ErrorIs(t, err, vault.ErrUnauthorized)

		require.NoError(t, f.vault.Approve(f.ctx, f.alice, f.bob, n(30)))
		out, err := f.vault.Withdraw(f.ctx, f.bob, n(10), f.bob, f.alice)
		require.NoError(t, err)
		assert.Equal(t, n(10), out.Assets)
		assert.Equal(t, n(10), f.asset.BalanceOf(f.bob))
		assert.Equal(t, n(20), f.vault.Allowance(f.alice, f.bob))
		assert.Equal(t, n(90), f.vault.BalanceOf(f.alice))
	})

	t.Run("Withdraw more than owned fails", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		_, err := f.vault.Withdraw(f.ctx, f.alice, n(101), f.alice, f.alice)
		assert.ErrorIs(t, err, vault.ErrInvalidInput)
		assert.Equal(t, n(100), f.vault.BalanceOf(f.alice))
	})

	t.Run("RedeemAll empties the holder", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 75)
		out, err := f.vault.RedeemAll(f.ctx, f.alice)
		require.NoError(t, err)
		assert.Equal(t, n(75), out.Assets)
		assert.True(t, f.vault.BalanceOf(f.alice).IsZero())
	})
}

func TestNoFreeMint(t *testing.T) {
	f := newFixture(t, vault.UnlimitedTVL)
	f.deposit(f.alice, 1_000)
	s := f.addPassive(50, 0, 5_000)
	_, err := s.Harvest(f.ctx)
	require.NoError(t, err)
	require.NoError(t, s.SimulateYield(n(333)))
	_, err = s.Harvest(f.ctx)
	require.NoError(t, err)

	for _, amount := range []int64{1, 7, 99, 1_000} {
		f.clock.Advance(17 * time.Minute)
		f.fund(f.bob, amount)
		dep, err := f.vault.Deposit(f.ctx, f.bob, n(amount), f.bob)
		if errors.Is(err, vault.ErrInvalidInput) {
			continue
		}
		require.NoError(t, err)
		red, err := f.vault.Redeem(f.ctx, f.bob, dep.Shares, f.bob, f.bob)
		require.NoError(t, err)
		assert.True(t, red.Assets.LTE(n(amount)), "deposited %d, redeemed %s", amount, red.Assets)
		f.assertSolvent()
	}
}

func TestWithdrawWhileFreeFundsAreZero(t *testing.T) {
	f := newFixture(t, vault.UnlimitedTVL)
	f.deposit(f.alice, 100)
	f.deposit(f.bob, 100)
	s := f.addPassive(50, 0, 10_000)
	_, err := s.Harvest(f.ctx)
	require.NoError(t, err)
	require.NoError(t, s.SimulateLoss(n(200)))
	_, err = s.Harvest(f.ctx)
	require.NoError(t, err)
	require.NoError(t, s.SimulateYield(n(100)))
	_, err = s.Harvest(f.ctx)
	require.NoError(t, err)

	sum := f.summary()
	require.Equal(t, n(100), sum.TotalAssets)
	require.Equal(t, n(100), sum.LockedProfit)
	require.True(t, sum.FreeFunds.IsZero())
	require.Equal(t, n(200), f.vault.TotalSupply())

	shares, err := f.vault.PreviewWithdraw(f.ctx, n(100))
	require.NoError(t, err)
	assert.True(t, shares.IsZero())

	_, err = f.vault.Withdraw(f.ctx, f.alice, n(100), f.alice, f.alice)
	assert.ErrorIs(t, err, vault.ErrInvalidInput)
	_, err = f.vault.Withdraw(f.ctx, f.alice, n(1), f.alice, f.alice)
	assert.ErrorIs(t, err, vault.ErrInvalidInput)
	assert.Equal(t, n(100), f.vault.BalanceOf(f.alice))
	assert.True(t, f.asset.BalanceOf(f.alice).IsZero())

	f.clock.Advance(7 * time.Hour)
	for _, holder := range []vault.Address{f.alice, f.bob} {
		most, err := f.vault.MaxWithdraw(f.ctx, holder)
		require.NoError(t, err)
		assert.Equal(t, n(50), most)
	}
	f.assertSolvent()
}

func TestReport(t *testing.T) {
	t.Run("Loss shrinks weight and allocation", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := f.addPassive(50, 0, 10_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)
		require.Equal(t, n(100), f.record(s.Address()).Allocated)

		require.NoError(t, s.SimulateLoss(n(20)))
		debt, err := f.vault.Report(f.ctx, s.Address(), vault.Loss(n(20)), n(0))
		require.NoError(t, err)
		assert.Equal(t, n(16), debt)

		rec := f.record(s.Address())
		assert.Equal(t, uint64(8_000), rec.AllocBPS)
		assert.Equal(t, n(80), rec.Allocated)
		assert.Equal(t, n(20), rec.Losses)
		sum := f.summary()
		assert.Equal(t, n(80), sum.TotalAllocated)
		assert.Equal(t, uint64(8_000), sum.TotalAllocBPS)
		f.assertSolvent()
	})

	t.Run("Any loss costs weight", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 1_000_000)
		s := f.addPassive(50, 0, 10_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)

		_, err = f.vault.Report(f.ctx, s.Address(), vault.Loss(n(1)), n(0))
		require.NoError(t, err)
		assert.Equal(t, uint64(9_999), f.record(s.Address()).AllocBPS)
	})

	t.Run("Loss above allocation is an invariant violation", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := f.addPassive(50, 0, 5_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)
		_, err = f.vault.Report(f.ctx, s.Address(), vault.Loss(n(51)), n(0))
		assert.ErrorIs(t, err, vault.ErrInvariantViolation)
		assert.Equal(t, n(50), f.record(s.Address()).Allocated)
	})

	t.Run("Only registered strategies report", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		_, err := f.vault.Report(f.ctx, f.alice, vault.Gain(n(1)), n(0))
		assert.ErrorIs(t, err, vault.ErrUnauthorized)
		_, err = f.vault.AvailableCapital(f.ctx, f.alice)
		assert.ErrorIs(t, err, vault.ErrUnauthorized)
		_, _, err = f.vault.StrategyPosition(f.ctx, f.alice)
		assert.ErrorIs(t, err, vault.ErrUnauthorized)
	})

	t.Run("Gain is locked then released over time", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 1_000)
		s := f.addPassive(50, 0, 10_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)
		require.NoError(t, s.SimulateYield(n(100)))
		_, err = s.Harvest(f.ctx)
		require.NoError(t, err)

		sum := f.summary()
		assert.Equal(t, n(1_100), sum.TotalAssets)
		assert.Equal(t, n(100), sum.LockedProfit)
		assert.Equal(t, n(1_000), sum.FreeFunds)

		prev := sum.LockedProfit
		for i := 0; i < 8; i++ {
			f.clock.Advance(time.Hour)
			locked, err := f.vault.LockedProfit(f.ctx)
			require.NoError(t, err)
			assert.True(t, locked.LTE(prev))
			prev = locked
		}
		assert.True(t, prev.IsZero())
		value, err := f.vault.ConvertToAssets(f.ctx, n(1_000))
		require.NoError(t, err)
		assert.Equal(t, n(1_100), value)
	})

	t.Run("Performance fee mints shares to the treasury", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 1_000)
		s := f.addPassive(50, 1_000, 10_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)
		require.NoError(t, s.SimulateYield(n(100)))
		_, err = s.Harvest(f.ctx)
		require.NoError(t, err)

		assert.Equal(t, n(10), f.vault.BalanceOf(f.treasury))
		assert.Equal(t, n(100), f.record(s.Address()).Gains)
		f.assertSolvent()
	})

	t.Run("Shutdown calls back all capital", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := f.addPassive(50, 0, 6_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)
		require.Equal(t, n(60), f.record(s.Address()).Allocated)

		require.NoError(t, f.vault.SetEmergencyShutdown(f.ctx, f.guardian, true))
		available, err := f.vault.AvailableCapital(f.ctx, s.Address())
		require.NoError(t, err)
		assert.Equal(t, n(-60), available)

		_, err = s.Harvest(f.ctx)
		require.NoError(t, err)
		assert.True(t, s.LastDebt().IsZero())
		assert.True(t, f.record(s.Address()).Allocated.IsZero())
		assert.Equal(t, n(100), f.asset.BalanceOf(f.vault.Address()))
	})

	t.Run("Revoked strategy repays on harvest", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := f.addPassive(50, 0, 4_000)
		_, err := s.Harvest(f.ctx)
		require.NoError(t, err)

		require.NoError(t, f.vault.RevokeStrategy(f.ctx, s.Address(), s.Address()))
		assert.Zero(t, f.summary().TotalAllocBPS)
		_, err = s.Harvest(f.ctx)
		require.NoError(t, err)
		assert.True(t, f.record(s.Address()).Allocated.IsZero())
	})
}

func TestAvailableCapital(t *testing.T) {
	f := newFixture(t, vault.UnlimitedTVL)
	f.deposit(f.alice, 1_000)
	a := f.addPassive(50, 0, 3_000)
	b := f.addPassive(51, 0, 5_000)

	tests := []struct {
		name     string
		strategy vault.Address
		want     math.Int
	}{
		{"Under target draws up to its weight", a.Address(), n(300)},
		{"Second strategy draws its own weight", b.Address(), n(500)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.vault.AvailableCapital(f.ctx, tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("At target nothing is available", func(t *testing.T) {
		_, err := a.Harvest(f.ctx)
		require.NoError(t, err)
		got, err := f.vault.AvailableCapital(f.ctx, a.Address())
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("Lowered weight turns into debt", func(t *testing.T) {
		require.NoError(t, f.vault.UpdateStrategyAllocBPS(f.ctx, f.strategist, a.Address(), 1_000))
		got, err := f.vault.AvailableCapital(f.ctx, a.Address())
		require.NoError(t, err)
		assert.Equal(t, n(-200), got)

		rec, available, err := f.vault.StrategyPosition(f.ctx, a.Address())
		require.NoError(t, err)
		assert.Equal(t, n(300), rec.Allocated)
		assert.Equal(t, uint64(1_000), rec.AllocBPS)
		assert.Equal(t, got, available)
	})
}

func TestAdmin(t *testing.T) {
	t.Run("Roles are enforced", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		s := f.addPassive(50, 0, 1_000)
		other := strategy.NewPassive(key(51), f.vault, f.asset)

		calls := []struct {
			name string
			call func(caller vault.Address) error
		}{
			{"AddStrategy", func(c vault.Address) error { return f.vault.AddStrategy(f.ctx, c, other, 0, 0) }},
			{"UpdateStrategyFeeBPS", func(c vault.Address) error { return f.vault.UpdateStrategyFeeBPS(f.ctx, c, s.Address(), 10) }},
			{"UpdateStrategyAllocBPS", func(c vault.Address) error { return f.vault.UpdateStrategyAllocBPS(f.ctx, c, s.Address(), 10) }},
			{"RevokeStrategy", func(c vault.Address) error { return f.vault.RevokeStrategy(f.ctx, c, s.Address()) }},
			{"SetWithdrawalQueue", func(c vault.Address) error {
				return f.vault.SetWithdrawalQueue(f.ctx, c, []vault.Address{s.Address()})
			}},
			{"UpdateWithdrawMaxLoss", func(c vault.Address) error { return f.vault.UpdateWithdrawMaxLoss(f.ctx, c, 5) }},
			{"UpdateTvlCap", func(c vault.Address) error { return f.vault.UpdateTvlCap(f.ctx, c, n(5)) }},
			{"RemoveTvlCap", func(c vault.Address) error { return f.vault.RemoveTvlCap(f.ctx, c) }},
			{"SetEmergencyShutdown", func(c vault.Address) error { return f.vault.SetEmergencyShutdown(f.ctx, c, true) }},
			{"SetLockedProfitDegradation", func(c vault.Address) error {
				return f.vault.SetLockedProfitDegradation(f.ctx, c, n(1))
			}},
			{"UpdateTreasury", func(c vault.Address) error { return f.vault.UpdateTreasury(f.ctx, c, c) }},
			{"InCaseTokensGetStuck", func(c vault.Address) error {
				_, err := f.vault.InCaseTokensGetStuck(f.ctx, c, ledger.New(key(101), "Other", "OTH", 6))
				return err
			}},
		}
		for _, tc := range calls {
			t.Run(tc.name, func(t *testing.T) {
				assert.ErrorIs(t, tc.call(f.alice), vault.ErrUnauthorized)
			})
		}
	})

	t.Run("Role cascade lets admins act as strategists", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		s := f.addPassive(50, 0, 1_000)
		require.NoError(t, f.vault.UpdateStrategyAllocBPS(f.ctx, f.admin, s.Address(), 2_000))
		assert.ErrorIs(t, f.vault.SetEmergencyShutdown(f.ctx, f.strategist, true), vault.ErrUnauthorized)
		require.NoError(t, f.vault.SetEmergencyShutdown(f.ctx, f.guardian, true))
		assert.ErrorIs(t, f.vault.SetEmergencyShutdown(f.ctx, f.guardian, false), vault.ErrUnauthorized)
		require.NoError(t, f.vault.SetEmergencyShutdown(f.ctx, f.admin, false))
	})

	t.Run("AddStrategy validation", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		s := f.addPassive(50, 0, 9_000)

		err := f.vault.AddStrategy(f.ctx, f.admin, s, 0, 0)
		assert.ErrorIs(t, err, vault.ErrStateConflict)

		over := strategy.NewPassive(key(51), f.vault, f.asset)
		err = f.vault.AddStrategy(f.ctx, f.admin, over, 0, 1_001)
		assert.ErrorIs(t, err, vault.ErrCapacityExceeded)

		err = f.vault.AddStrategy(f.ctx, f.admin, over, vault.MaxFeeBPS+1, 0)
		assert.ErrorIs(t, err, vault.ErrInvalidInput)

		foreign := ledger.New(key(101), "Other", "OTH", 6)
		wrongWant := strategy.NewPassive(key(52), f.vault, foreign)
		err = f.vault.AddStrategy(f.ctx, f.admin, wrongWant, 0, 0)
		assert.ErrorIs(t, err, vault.ErrInvalidInput)

		require.NoError(t, f.vault.AddStrategy(f.ctx, f.admin, over, 0, 1_000))
		queue, err := f.vault.WithdrawalQueue(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, []vault.Address{s.Address(), over.Address()}, queue)
		assert.Equal(t, uint64(10_000), f.summary().TotalAllocBPS)

		require.NoError(t, f.vault.SetEmergencyShutdown(f.ctx, f.guardian, true))
		late := strategy.NewPassive(key(53), f.vault, f.asset)
		assert.ErrorIs(t, f.vault.AddStrategy(f.ctx, f.admin, late, 0, 0), vault.ErrStateConflict)
	})

	t.Run("Withdrawal queue validation", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		a := f.addPassive(50, 0, 0)
		b := f.addPassive(51, 0, 0)

		assert.ErrorIs(t, f.vault.SetWithdrawalQueue(f.ctx, f.admin, nil), vault.ErrInvalidInput)
		assert.ErrorIs(t, f.vault.SetWithdrawalQueue(f.ctx, f.admin, []vault.Address{a.Address(), a.Address()}), vault.ErrInvalidInput)
		assert.ErrorIs(t, f.vault.SetWithdrawalQueue(f.ctx, f.admin, []vault.Address{key(99)}), vault.ErrStateConflict)

		require.NoError(t, f.vault.SetWithdrawalQueue(f.ctx, f.admin, []vault.Address{b.Address(), a.Address()}))
		queue, err := f.vault.WithdrawalQueue(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, []vault.Address{b.Address(), a.Address()}, queue)
	})

	t.Run("Parameter bounds", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		assert.ErrorIs(t, f.vault.UpdateWithdrawMaxLoss(f.ctx, f.admin, 10_001), vault.ErrInvalidInput)
		assert.ErrorIs(t, f.vault.SetLockedProfitDegradation(f.ctx, f.admin, vault.DegradationCoefficient.AddRaw(1)), vault.ErrInvalidInput)
		assert.ErrorIs(t, f.vault.UpdateTreasury(f.ctx, f.admin, vault.Address{}), vault.ErrInvalidInput)

		require.NoError(t, f.vault.UpdateTvlCap(f.ctx, f.admin, n(10)))
		assert.Equal(t, n(10), f.summary().TVLCap)
		require.NoError(t, f.vault.RemoveTvlCap(f.ctx, f.admin))
		assert.Equal(t, vault.UnlimitedTVL, f.summary().TVLCap)
	})

	t.Run("Stuck tokens are rescued but never the asset", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		other := ledger.New(key(101), "Other", "OTH", 6)
		require.NoError(t, other.Mint(f.vault.Address(), n(42)))

		_, err := f.vault.InCaseTokensGetStuck(f.ctx, f.admin, f.asset)
		assert.ErrorIs(t, err, vault.ErrInvalidInput)

		amount, err := f.vault.InCaseTokensGetStuck(f.ctx, f.admin, other)
		require.NoError(t, err)
		assert.Equal(t, n(42), amount)
		assert.Equal(t, n(42), other.BalanceOf(f.admin))
	})

	t.Run("Events follow committed admin changes", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.addPassive(50, 0, 1_000)
		require.NoError(t, f.vault.UpdateTvlCap(f.ctx, f.admin, n(10)))
		_ = f.vault.UpdateTvlCap(f.ctx, f.alice, n(20))
		assert.Equal(t, []events.Type{events.StrategyAdded, events.TvlCapUpdated}, f.eventTypes())
	})
}

func TestReentrancy(t *testing.T) {
	t.Run("Asset callback cannot reenter the vault", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		f.fund(f.bob, 50)

		var reentryErr, viewErr error
		f.asset.OnTransfer(func(ctx context.Context, from, to vault.Address, _ math.Int) error {
			if from != f.vault.Address() || to != f.alice {
				return nil
			}
			_, viewErr = f.vault.TotalAssets(ctx)
			_, reentryErr = f.vault.Deposit(ctx, f.bob, n(50), f.bob)
			return reentryErr
		})

		_, err := f.vault.Withdraw(f.ctx, f.alice, n(30), f.alice, f.alice)
		require.Error(t, err)
		assert.True(t, vault.IsReentrant(err))
		assert.NoError(t, viewErr)
		assert.ErrorIs(t, reentryErr, vault.ErrReentrantCall)

		assert.Equal(t, n(100), f.vault.BalanceOf(f.alice))
		assert.True(t, f.asset.BalanceOf(f.alice).IsZero())
		assert.Equal(t, n(100), f.asset.BalanceOf(f.vault.Address()))
		assert.Equal(t, []events.Type{events.Deposit}, f.eventTypes())
	})

	t.Run("Reentry with a fresh context is rejected without waiting", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		f.fund(f.bob, 50)

		var reentryErr, viewErr error
		f.asset.OnTransfer(func(_ context.Context, from, to vault.Address, _ math.Int) error {
			if from != f.vault.Address() || to != f.alice {
				return nil
			}
			_, viewErr = f.vault.TotalAssets(context.Background())
			_, reentryErr = f.vault.Deposit(context.Background(), f.bob, n(50), f.bob)
			return reentryErr
		})

		done := make(chan error, 1)
		go func() {
			_, err := f.vault.Withdraw(f.ctx, f.alice, n(30), f.alice, f.alice)
			done <- err
		}()
		select {
		case err := <-done:
			assert.True(t, vault.IsReentrant(err))
		case <-time.After(5 * time.Second):
			t.Fatal("withdraw blocked on its own reentrant call")
		}
		assert.ErrorIs(t, viewErr, vault.ErrReentrantCall)
		assert.ErrorIs(t, reentryErr, vault.ErrReentrantCall)

		assert.Equal(t, n(100), f.vault.BalanceOf(f.alice))
		assert.Equal(t, n(50), f.asset.BalanceOf(f.bob))
		assert.Equal(t, n(100), f.asset.BalanceOf(f.vault.Address()))
	})

	t.Run("Strategy harvesting from inside a withdrawal is rejected", func(t *testing.T) {
		f := newFixture(t, vault.UnlimitedTVL)
		f.deposit(f.alice, 100)
		s := &lossyStrategy{addr: key(60), vault: f.vault.Address(), asset: f.asset, reenter: f.vault}
		require.NoError(t, f.vault.AddStrategy(f.ctx, f.admin, s, 0, 10_000))
		_, err := f.vault.Report(f.ctx, s.addr, vault.Gain(n(0)), n(0))
		require.NoError(t, err)

		_, err = f.vault.Redeem(f.ctx, f.alice, n(10), f.alice, f.alice)
		assert.True(t, vault.IsReentrant(err))
		assert.Equal(t, n(100), f.vault.BalanceOf(f.alice))
	})
}

func TestRollbackKeepsOtherAssetChanges(t *testing.T) {
	f := newFixture(t, vault.UnlimitedTVL)
	f.deposit(f.alice, 100)

	parked := make(chan struct{})
	resume := make(chan struct{})
	f.asset.OnTransfer(func(_ context.Context, from, to vault.Address, _ math.Int) error {
		if from != f.vault.Address() || to != f.alice {
			return nil
		}
		close(parked)
		<-resume
		return errors.New("receiver rejected the transfer")
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.vault.Withdraw(f.ctx, f.alice, n(40), f.alice, f.alice)
		done <- err
	}()
	<-parked

	require.NoError(t, f.asset.Approve(f.bob, f.vault.Address(), n(77)))
	require.NoError(t, f.asset.Mint(f.bob, n(5)))
	require.NoError(t, f.asset.Transfer(context.Background(), f.bob, f.treasury, n(2)))
	close(resume)
	require.Error(t, <-done)

	assert.Equal(t, n(77), f.asset.Allowance(f.bob, f.vault.Address()))
	assert.Equal(t, n(3), f.asset.BalanceOf(f.bob))
	assert.Equal(t, n(2), f.asset.BalanceOf(f.treasury))
	assert.Equal(t, n(105), f.asset.TotalSupply())

	assert.Equal(t, n(100), f.vault.BalanceOf(f.alice))
	assert.True(t, f.asset.BalanceOf(f.alice).IsZero())
	assert.Equal(t, n(100), f.asset.BalanceOf(f.vault.Address()))
	f.assertSolvent()
}

func TestConcurrentDeposits(t *testing.T) {
	f := newFixture(t, vault.UnlimitedTVL)
	holders := make([]vault.Address, 16)
	for i := range holders {
		holders[i] = key(byte(120 + i))
		f.fund(holders[i], 1_000)
	}

	gate := vault.NewGate()
	var wg sync.WaitGroup
	for _, h := range holders {
		wg.Add(1)
		go func(h vault.Address) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				err := gate.Exclusive(f.ctx, func(ctx context.Context) error {
					_, err := f.vault.Deposit(ctx, h, n(100), h)
					return err
				})
				assert.NoError(t, err)
			}
			err := gate.Shared(f.ctx, func(ctx context.Context) error {
				_, err := f.vault.Summary(ctx)
				return err
			})
			assert.NoError(t, err)
		}(h)
	}
	wg.Wait()

	assert.Equal(t, n(16_000), f.vault.TotalSupply())
	assert.Equal(t, n(16_000), f.asset.BalanceOf(f.vault.Address()))
	f.assertSolvent()
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t, vault.UnlimitedTVL)
	ctx, cancel := context.WithCancel(context.Background())
	hold := make(chan struct{})
	release := make(chan struct{})

	// park an operation inside the vault via the asset hook
	f.asset.OnTransfer(func(context.Context, vault.Address, vault.Address, math.Int) error {
		close(hold)
		<-release
		return nil
	})
	f.fund(f.alice, 10)
	done := make(chan error)
	go func() {
		_, err := f.vault.Deposit(f.ctx, f.alice, n(10), f.alice)
		done <- err
	}()
	<-hold

	cancel()
	_, err := f.vault.Deposit(ctx, f.bob, n(1), f.bob)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = f.vault.Deposit(f.ctx, f.bob, n(1), f.bob)
	assert.ErrorIs(t, err, vault.ErrReentrantCall)

	close(release)
	require.NoError(t, <-done)
}

// lossyStrategy loses everything it is asked to withdraw. With reenter set
// it instead tries to report back into the vault mid-withdrawal.
type lossyStrategy struct {
	addr    vault.Address
	vault   vault.Address
	asset   *ledger.Ledger
	reenter *vault.Vault
}

func (s *lossyStrategy) Address() vault.Address { return s.addr }
func (s *lossyStrategy) Vault() vault.Address   { return s.vault }
func (s *lossyStrategy) Want() vault.Address    { return s.asset.ID() }

func (s *lossyStrategy) Withdraw(ctx context.Context, amount math.Int) (math.Int, error) {
	if s.reenter != nil {
		_, err := s.reenter.Report(ctx, s.addr, vault.Gain(n(0)), n(0))
		return math.ZeroInt(), err
	}
	return amount, nil
}

func (s *lossyStrategy) Harvest(context.Context) (math.Int, error) { return math.ZeroInt(), nil }

func (s *lossyStrategy) BalanceOf(context.Context) (math.Int, error) {
	return s.asset.BalanceOf(s.addr), nil
}
