package vault

import (
	"context"
	"errors"
	"sync"
	"time"

	"cosmossdk.io/math"
	log "github.com/sirupsen/logrus"

	"yieldvault/internal/access"
	"yieldvault/internal/events"
	"yieldvault/internal/ledger"
)

// Config describes a vault at construction time.
type Config struct {
	Address  Address
	Name     string
	Symbol   string
	Asset    Asset
	Treasury Address
	TVLCap   math.Int

	// Optional; zero values select the defaults.
	WithdrawMaxLossBPS      *uint64
	LockedProfitDegradation *math.Int

	Authorizer access.Authorizer
	Events     events.Sink
	Logger     *log.Entry
	Clock      func() time.Time
}

// state is everything an operation may mutate besides the share ledger. It is
// copied before each operation and restored if the operation fails.
type state struct {
	totalAllocated          math.Int
	totalAllocBPS           uint64
	lockedProfit            math.Int
	lockedProfitDegradation math.Int
	lastReport              time.Time
	tvlCap                  math.Int
	withdrawMaxLossBPS      uint64
	emergencyShutdown       bool
	treasury                Address
	withdrawalQueue         []Address
	strategies              map[Address]StrategyRecord
	handles                 map[Address]Strategy
}

func (s state) clone() state {
	out := s
	out.withdrawalQueue = append([]Address(nil), s.withdrawalQueue...)
	out.strategies = make(map[Address]StrategyRecord, len(s.strategies))
	for k, v := range s.strategies {
		out.strategies[k] = v
	}
	out.handles = make(map[Address]Strategy, len(s.handles))
	for k, v := range s.handles {
		out.handles[k] = v
	}
	return out
}

// Vault pools a single asset, issues shares against it and allocates the pool
// across strategies. Every operation runs as one indivisible unit.
type Vault struct {
	address Address
	asset   Asset
	shares  *ledger.Ledger
	auth    access.Authorizer
	sink    events.Sink
	logger  *log.Entry
	now     func() time.Time

	// mu is held by the operation in progress. It is only ever tried, never
	// waited on.
	mu sync.RWMutex

	st      state
	pending []events.Event
}

type guardKey struct{ v *Vault }

// New constructs a vault. The share token takes the asset's decimals.
func New(cfg Config) (*Vault, error) {
	if cfg.Address.IsZero() {
		return nil, invalidInput("vault address is required")
	}
	if cfg.Asset == nil {
		return nil, invalidInput("asset is required")
	}
	if cfg.Authorizer == nil {
		return nil, invalidInput("authorizer is required")
	}
	if cfg.TVLCap.IsNil() || cfg.TVLCap.IsNegative() {
		return nil, invalidInput("tvl cap must be non-negative")
	}

	v := &Vault{
		address: cfg.Address,
		asset:   cfg.Asset,
		shares:  ledger.New(cfg.Address, cfg.Name, cfg.Symbol, cfg.Asset.Decimals()),
		auth:    cfg.Authorizer,
		sink:    cfg.Events,
		logger:  cfg.Logger,
		now:     cfg.Clock,
	}
	if v.logger == nil {
		v.logger = log.WithField("vault", cfg.Address.String())
	}
	if v.now == nil {
		v.now = time.Now
	}

	withdrawMaxLoss := uint64(DefaultWithdrawMaxLossBPS)
	if cfg.WithdrawMaxLossBPS != nil {
		if *cfg.WithdrawMaxLossBPS > PercentDivisor {
			return nil, invalidInput("withdraw max loss %d above %d", *cfg.WithdrawMaxLossBPS, PercentDivisor)
		}
		withdrawMaxLoss = *cfg.WithdrawMaxLossBPS
	}
	degradation := DefaultLockedProfitDegradation
	if cfg.LockedProfitDegradation != nil {
		if cfg.LockedProfitDegradation.IsNegative() || cfg.LockedProfitDegradation.GT(DegradationCoefficient) {
			return nil, invalidInput("locked profit degradation out of range")
		}
		degradation = *cfg.LockedProfitDegradation
	}

	v.st = state{
		totalAllocated:          math.ZeroInt(),
		lockedProfit:            math.ZeroInt(),
		lockedProfitDegradation: degradation,
		lastReport:              v.now(),
		tvlCap:                  cfg.TVLCap,
		withdrawMaxLossBPS:      withdrawMaxLoss,
		treasury:                cfg.Treasury,
		strategies:              make(map[Address]StrategyRecord),
		handles:                 make(map[Address]Strategy),
	}
	return v, nil
}

func (v *Vault) Address() Address { return v.address }
func (v *Vault) Asset() Asset     { return v.asset }
func (v *Vault) Name() string     { return v.shares.Name() }
func (v *Vault) Symbol() string   { return v.shares.Symbol() }
func (v *Vault) Decimals() uint8  { return v.shares.Decimals() }

// enter acquires the vault for one operation. A call arriving while another
// operation holds the vault is rejected whatever context it carries.
func (v *Vault) enter(ctx context.Context) (context.Context, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if ctx.Value(guardKey{v}) != nil || !v.mu.TryLock() {
		return nil, nil, ErrReentrantCall
	}
	inner := context.WithValue(ctx, guardKey{v}, true)
	return inner, v.mu.Unlock, nil
}

// atomic runs fn with the vault held. On error every change fn made to the
// vault state, the share ledger and (if checkpointable) the asset is undone
// and its events are dropped. Events of a successful fn are emitted after the
// vault is released.
func (v *Vault) atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	inner, release, err := v.enter(ctx)
	if err != nil {
		return err
	}

	snapshot := v.st.clone()
	shareCP := v.shares.Checkpoint()
	assetCP, hasAssetCP := v.asset.(Checkpointer)
	var assetID int
	if hasAssetCP {
		inner, assetID = assetCP.CheckpointContext(inner)
	}
	v.pending = v.pending[:0]

	if err := fn(inner); err != nil {
		v.st = snapshot
		v.shares.RevertTo(shareCP)
		if hasAssetCP {
			assetCP.RevertContext(inner, assetID)
		}
		v.pending = v.pending[:0]
		release()
		return err
	}

	v.shares.Commit(shareCP)
	if hasAssetCP {
		assetCP.CommitContext(inner, assetID)
	}
	committed := append([]events.Event(nil), v.pending...)
	v.pending = v.pending[:0]
	release()

	v.flush(ctx, committed)
	return nil
}

// view runs a read-only fn. From inside a callout of an operation in progress
// the state is read directly, as that operation owns the vault.
func (v *Vault) view(ctx context.Context, fn func()) error {
	if ctx.Value(guardKey{v}) != nil {
		fn()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !v.mu.TryRLock() {
		return ErrReentrantCall
	}
	defer v.mu.RUnlock()
	fn()
	return nil
}

func (v *Vault) emit(typ events.Type, fields map[string]any) {
	v.pending = append(v.pending, events.New(typ, v.address.String(), v.now(), fields))
}

func (v *Vault) flush(ctx context.Context, evts []events.Event) {
	if v.sink == nil {
		return
	}
	for _, evt := range evts {
		if err := v.sink.Emit(context.WithoutCancel(ctx), evt); err != nil {
			v.logger.WithError(err).WithField("event", evt.Type).Warn("failed to emit vault event")
		}
	}
}

func (v *Vault) require(caller Address, role access.Role) error {
	if !v.auth.Authorized(caller, role) {
		return unauthorized("%s lacks role %s", caller, role)
	}
	return nil
}

// IsReentrant reports whether err is a rejected reentrant call.
func IsReentrant(err error) bool {
	return errors.Is(err, ErrReentrantCall)
}
