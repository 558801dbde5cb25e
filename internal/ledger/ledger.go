package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
)

// Address identifies every account that can hold a balance: holders, strategies,
// the vault itself and token mints.
type Address = solana.PublicKey

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrZeroAddress           = errors.New("zero address")
)

// TransferHook is invoked after a balance moved between two accounts. A non-nil
// error undoes the transfer and is returned to the caller.
type TransferHook func(ctx context.Context, from, to Address, amount math.Int) error

type entryKind int

const (
	entryBalance entryKind = iota
	entrySupply
	entryAllowance
)

type journalEntry struct {
	kind    entryKind
	owner   Address
	spender Address
	delta   math.Int
}

// Ledger is a fungible token ledger: total supply, balances and allowances.
// It backs both the vault's share token and the in-process underlying asset.
type Ledger struct {
	mu sync.Mutex

	id       Address
	name     string
	symbol   string
	decimals uint8

	supply     math.Int
	balances   map[Address]math.Int
	allowances map[Address]map[Address]math.Int

	hook TransferHook

	// ledger-wide undo journal, recorded while a Checkpoint is open
	global journal
}

// New creates an empty ledger.
func New(id Address, name, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		id:         id,
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		supply:     math.ZeroInt(),
		balances:   make(map[Address]math.Int),
		allowances: make(map[Address]map[Address]math.Int),
	}
}

func (l *Ledger) ID() Address     { return l.id }
func (l *Ledger) Name() string    { return l.name }
func (l *Ledger) Symbol() string  { return l.symbol }
func (l *Ledger) Decimals() uint8 { return l.decimals }

// OnTransfer installs a hook called after every Transfer/TransferFrom.
func (l *Ledger) OnTransfer(hook TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hook = hook
}

// TotalSupply returns the amount of tokens in existence.
func (l *Ledger) TotalSupply() math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

// BalanceOf returns the balance held by holder.
func (l *Ledger) BalanceOf(holder Address) math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(holder)
}

// Allowance returns how much spender may still move out of owner's account.
func (l *Ledger) Allowance(owner, spender Address) math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowanceLocked(owner, spender)
}

// Approve sets the allowance of spender over owner's tokens.
func (l *Ledger) Approve(owner, spender Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	if owner.IsZero() || spender.IsZero() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addAllowanceLocked(nil, owner, spender, amount.Sub(l.allowanceLocked(owner, spender)))
	return nil
}

// SpendAllowance consumes amount of spender's allowance over owner's tokens.
func (l *Ledger) SpendAllowance(owner, spender Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowanceLocked(owner, spender).LT(amount) {
		return fmt.Errorf("%w: %s may not spend %s of %s", ErrInsufficientAllowance, spender, amount, owner)
	}
	l.addAllowanceLocked(nil, owner, spender, amount.Neg())
	return nil
}

// Mint creates amount tokens in the to account.
func (l *Ledger) Mint(to Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.addBalanceLocked(nil, to, amount)
	l.addSupplyLocked(nil, amount)
	return nil
}

// Burn destroys amount tokens from the from account.
func (l *Ledger) Burn(from Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balanceLocked(from).LT(amount) {
		return fmt.Errorf("%w: burn %s from %s", ErrInsufficientBalance, amount, from)
	}
	l.addBalanceLocked(nil, from, amount.Neg())
	l.addSupplyLocked(nil, amount.Neg())
	return nil
}

// Transfer moves amount from one account to another on behalf of from.
func (l *Ledger) Transfer(ctx context.Context, from, to Address, amount math.Int) error {
	return l.TransferFrom(ctx, from, from, to, amount)
}

// TransferFrom moves amount out of from's account on behalf of spender. When
// spender differs from from, the allowance is consumed.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to Address, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrZeroAddress
	}

	j := l.scope(ctx)
	l.mu.Lock()
	if spender != from {
		if l.allowanceLocked(from, spender).LT(amount) {
			l.mu.Unlock()
			return fmt.Errorf("%w: %s may not move %s from %s", ErrInsufficientAllowance, spender, amount, from)
		}
		l.addAllowanceLocked(j, from, spender, amount.Neg())
	}
	if l.balanceLocked(from).LT(amount) {
		if spender != from {
			l.addAllowanceLocked(j, from, spender, amount)
		}
		l.mu.Unlock()
		return fmt.Errorf("%w: %s holds less than %s", ErrInsufficientBalance, from, amount)
	}
	l.addBalanceLocked(j, from, amount.Neg())
	l.addBalanceLocked(j, to, amount)
	hook := l.hook
	l.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, from, to, amount); err != nil {
		l.mu.Lock()
		l.addBalanceLocked(j, to, amount.Neg())
		l.addBalanceLocked(j, from, amount)
		if spender != from {
			l.addAllowanceLocked(j, from, spender, amount)
		}
		l.mu.Unlock()
		return err
	}
	return nil
}

// Holders returns every account with a non-zero balance.
func (l *Ledger) Holders() []Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Address, 0, len(l.balances))
	for h, b := range l.balances {
		if !b.IsZero() {
			out = append(out, h)
		}
	}
	return out
}

func (l *Ledger) balanceLocked(holder Address) math.Int {
	if b, ok := l.balances[holder]; ok {
		return b
	}
	return math.ZeroInt()
}

func (l *Ledger) allowanceLocked(owner, spender Address) math.Int {
	if m, ok := l.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a
		}
	}
	return math.ZeroInt()
}

func (l *Ledger) addBalanceLocked(j *journal, holder Address, delta math.Int) {
	l.balances[holder] = l.balanceLocked(holder).Add(delta)
	l.record(j, journalEntry{kind: entryBalance, owner: holder, delta: delta})
}

func (l *Ledger) addSupplyLocked(j *journal, delta math.Int) {
	l.supply = l.supply.Add(delta)
	l.record(j, journalEntry{kind: entrySupply, delta: delta})
}

func (l *Ledger) addAllowanceLocked(j *journal, owner, spender Address, delta math.Int) {
	m, ok := l.allowances[owner]
	if !ok {
		m = make(map[Address]math.Int)
		l.allowances[owner] = m
	}
	m[spender] = l.allowanceLocked(owner, spender).Add(delta)
	l.record(j, journalEntry{kind: entryAllowance, owner: owner, spender: spender, delta: delta})
}
