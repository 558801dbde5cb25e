package vault

import (
	"context"
	"math/big"
	"time"

	"cosmossdk.io/math"

	"yieldvault/internal/ledger"
)

type Address = ledger.Address

const (
	// PercentDivisor is the basis point denominator
	PercentDivisor = 10_000

	// MaxFeeBPS caps the performance fee a strategy can be charged
	MaxFeeBPS = PercentDivisor / 5

	// DefaultWithdrawMaxLossBPS tolerates 0.01% realized loss on withdrawals
	DefaultWithdrawMaxLossBPS = 1
)

var (
	// DegradationCoefficient represents 100% decay of locked profit
	DegradationCoefficient = math.NewIntWithDecimal(1, 18)

	// DefaultLockedProfitDegradation unlocks harvested profit over ~6 hours
	DefaultLockedProfitDegradation = DegradationCoefficient.MulRaw(46).QuoRaw(1_000_000)

	// UnlimitedTVL is the cap installed by RemoveTvlCap: 2^256 - 1
	UnlimitedTVL = func() math.Int {
		m := new(big.Int).Lsh(big.NewInt(1), 256)
		return math.NewIntFromBigInt(m.Sub(m, big.NewInt(1)))
	}()
)

// Asset is the fungible unit the vault accepts and pays out.
type Asset interface {
	ID() Address
	Decimals() uint8
	BalanceOf(holder Address) math.Int
	Transfer(ctx context.Context, from, to Address, amount math.Int) error
	TransferFrom(ctx context.Context, spender, from, to Address, amount math.Int) error
}

// Token is any token the vault may hold by accident and rescue.
type Token interface {
	ID() Address
	BalanceOf(holder Address) math.Int
	Transfer(ctx context.Context, from, to Address, amount math.Int) error
}

// Checkpointer is implemented by assets whose balances can be rolled back
// together with a failed vault operation. Only changes made through the
// context returned by CheckpointContext are rolled back.
type Checkpointer interface {
	CheckpointContext(ctx context.Context) (context.Context, int)
	RevertContext(ctx context.Context, id int)
	CommitContext(ctx context.Context, id int)
}

// Strategy is the capability set every registered strategy implements.
type Strategy interface {
	Address() Address
	Vault() Address
	Want() Address
	// Withdraw liquidates up to amount and sends it to the vault, returning the
	// realized loss.
	Withdraw(ctx context.Context, amount math.Int) (loss math.Int, err error)
	// Harvest reconciles with the vault through StrategyPosition and Report.
	Harvest(ctx context.Context) (callerFee math.Int, err error)
	// BalanceOf is the total value managed by the strategy.
	BalanceOf(ctx context.Context) (math.Int, error)
}

// StrategyRecord is the vault's view of a registered strategy.
type StrategyRecord struct {
	Address        Address   `json:"address"`
	ActivationTime time.Time `json:"activation_time"`
	FeeBPS         uint64    `json:"fee_bps"`
	AllocBPS       uint64    `json:"alloc_bps"`
	Allocated      math.Int  `json:"allocated"`
	Gains          math.Int  `json:"gains"`
	Losses         math.Int  `json:"losses"`
	LastReportTime time.Time `json:"last_report_time"`
}

// Active reports whether the strategy was ever registered.
func (r StrategyRecord) Active() bool {
	return !r.ActivationTime.IsZero()
}

type roiKind int

const (
	roiGain roiKind = iota
	roiLoss
)

// ROI is a strategy's return since its last report: either a gain or a loss.
type ROI struct {
	kind   roiKind
	amount math.Int
}

// Gain builds a non-negative return.
func Gain(amount math.Int) ROI { return ROI{kind: roiGain, amount: amount} }

// Loss builds a negative return of the given magnitude.
func Loss(amount math.Int) ROI { return ROI{kind: roiLoss, amount: amount} }

// ROIFromSigned maps a signed amount onto Gain or Loss.
func ROIFromSigned(v math.Int) ROI {
	if v.IsNegative() {
		return Loss(v.Neg())
	}
	return Gain(v)
}

func (r ROI) IsLoss() bool     { return r.kind == roiLoss }
func (r ROI) Amount() math.Int { return orZero(r.amount) }

// Signed returns the gain as a positive and the loss as a negative amount.
func (r ROI) Signed() math.Int {
	if r.IsLoss() {
		return r.Amount().Neg()
	}
	return r.Amount()
}

func orZero(v math.Int) math.Int {
	if v.IsNil() {
		return math.ZeroInt()
	}
	return v
}
