package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"yieldvault/internal/access"
	"yieldvault/internal/events"
	"yieldvault/internal/ledger"
	"yieldvault/internal/strategy"
	"yieldvault/internal/vault"
	"yieldvault/pkg/config"
)

// Options carries the runtime collaborators of a deployment.
type Options struct {
	// DB, when set, supplies persisted role grants and stores the file's grants
	DB     *gorm.DB
	Events events.Sink
	Logger *log.Entry
	Clock  func() time.Time
}

// Deployment is a vault with its in-process asset, roles and strategies.
type Deployment struct {
	Vault  *vault.Vault
	Asset  *ledger.Ledger
	Grants *access.Grants
	Tokens []*ledger.Ledger
	// Gate is shared by every concurrent caller of Vault
	Gate *vault.Gate

	mu         sync.Mutex
	strategies map[vault.Address]*strategy.Passive
}

// Build creates the deployment described by vf and registers its strategies.
func Build(ctx context.Context, vf *config.VaultFile, opts Options) (*Deployment, error) {
	vaultAddr, err := solana.PublicKeyFromBase58(vf.Vault.Address)
	if err != nil {
		return nil, fmt.Errorf("vault.address: %w", err)
	}
	assetID, err := solana.PublicKeyFromBase58(vf.Asset.ID)
	if err != nil {
		return nil, fmt.Errorf("asset.id: %w", err)
	}
	tvlCap, err := ParseTVLCap(vf.Vault.TVLCap)
	if err != nil {
		return nil, err
	}

	var degradation *math.Int
	if vf.Vault.LockedProfitDegradation != "" {
		d, ok := math.NewIntFromString(vf.Vault.LockedProfitDegradation)
		if !ok {
			return nil, fmt.Errorf("vault.locked_profit_degradation: invalid integer %q", vf.Vault.LockedProfitDegradation)
		}
		degradation = &d
	}

	grants, err := loadGrants(opts.DB, vf)
	if err != nil {
		return nil, err
	}
	admin, hasAdmin := firstHolder(vf, access.DefaultAdmin)

	treasury := admin
	if vf.Vault.Treasury != "" {
		if treasury, err = solana.PublicKeyFromBase58(vf.Vault.Treasury); err != nil {
			return nil, fmt.Errorf("vault.treasury: %w", err)
		}
	}
	if treasury.IsZero() {
		return nil, fmt.Errorf("vault.treasury is required when no %s is configured", access.DefaultAdmin)
	}

	asset := ledger.New(assetID, vf.Asset.Name, vf.Asset.Symbol, vf.Asset.Decimals)
	if err := seed(asset, vf.Asset.Balances); err != nil {
		return nil, fmt.Errorf("asset.balances: %w", err)
	}

	d := &Deployment{
		Asset:      asset,
		Grants:     grants,
		Gate:       vault.NewGate(),
		strategies: make(map[vault.Address]*strategy.Passive),
	}
	for i, tok := range vf.Tokens {
		l, err := foreignToken(tok, vaultAddr)
		if err != nil {
			return nil, fmt.Errorf("tokens[%d]: %w", i, err)
		}
		d.Tokens = append(d.Tokens, l)
	}

	d.Vault, err = vault.New(vault.Config{
		Address:                 vaultAddr,
		Name:                    vf.Vault.Name,
		Symbol:                  vf.Vault.Symbol,
		Asset:                   asset,
		Treasury:                treasury,
		TVLCap:                  tvlCap,
		WithdrawMaxLossBPS:      vf.Vault.WithdrawMaxLossBPS,
		LockedProfitDegradation: degradation,
		Authorizer:              grants,
		Events:                  opts.Events,
		Logger:                  opts.Logger,
		Clock:                   opts.Clock,
	})
	if err != nil {
		return nil, err
	}

	if len(vf.Strategies) > 0 && !hasAdmin {
		return nil, fmt.Errorf("strategies require a %s role holder", access.DefaultAdmin)
	}
	for i, entry := range vf.Strategies {
		addr, err := solana.PublicKeyFromBase58(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("strategies[%d].address: %w", i, err)
		}
		s, _ := d.NewStrategy(addr)
		if err := d.Vault.AddStrategy(ctx, admin, s, entry.FeeBPS, entry.AllocBPS); err != nil {
			return nil, fmt.Errorf("strategies[%d]: %w", i, err)
		}
	}

	log.WithFields(log.Fields{
		"vault":      vaultAddr.String(),
		"asset":      asset.Symbol(),
		"strategies": len(vf.Strategies),
	}).Info("vault deployed")
	return d, nil
}

// NewStrategy returns the passive strategy holding funds at addr, creating it
// on first use.
func (d *Deployment) NewStrategy(addr vault.Address) (vault.Strategy, error) {
	return d.passive(addr), nil
}

// Strategy returns the passive strategy created for addr.
func (d *Deployment) Strategy(addr vault.Address) (*strategy.Passive, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.strategies[addr]
	return p, ok
}

func (d *Deployment) passive(addr vault.Address) *strategy.Passive {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.strategies[addr]; ok {
		return p
	}
	p := strategy.NewPassive(addr, d.Vault, d.Asset)
	d.strategies[addr] = p
	return p
}

// ParseTVLCap reads a cap amount; "unlimited" selects vault.UnlimitedTVL.
func ParseTVLCap(s string) (math.Int, error) {
	if s == "" || strings.EqualFold(s, "unlimited") {
		return vault.UnlimitedTVL, nil
	}
	v, ok := math.NewIntFromString(s)
	if !ok || v.IsNegative() {
		return math.Int{}, fmt.Errorf("vault.tvl_cap: invalid amount %q", s)
	}
	return v, nil
}

func loadGrants(db *gorm.DB, vf *config.VaultFile) (*access.Grants, error) {
	grants := access.NewGrants()
	if db != nil {
		var err error
		if grants, err = access.LoadGrants(db, vf.Vault.Address); err != nil {
			return nil, err
		}
	}
	for i, entry := range vf.Roles {
		role, err := access.ParseRole(entry.Role)
		if err != nil {
			return nil, fmt.Errorf("roles[%d]: %w", i, err)
		}
		holder, err := solana.PublicKeyFromBase58(entry.Address)
		if err != nil {
			return nil, fmt.Errorf("roles[%d].address: %w", i, err)
		}
		grants.Grant(role, holder)
		if db != nil {
			if err := access.SaveGrant(db, vf.Vault.Address, role, holder); err != nil {
				return nil, fmt.Errorf("roles[%d]: save grant: %w", i, err)
			}
		}
	}
	return grants, nil
}

func firstHolder(vf *config.VaultFile, want access.Role) (vault.Address, bool) {
	for _, entry := range vf.Roles {
		role, err := access.ParseRole(entry.Role)
		if err != nil || role != want {
			continue
		}
		if pk, err := solana.PublicKeyFromBase58(entry.Address); err == nil {
			return pk, true
		}
	}
	return vault.Address{}, false
}

func seed(l *ledger.Ledger, balances map[string]string) error {
	for holder, raw := range balances {
		pk, err := solana.PublicKeyFromBase58(holder)
		if err != nil {
			return fmt.Errorf("holder %s: %w", holder, err)
		}
		amount, ok := math.NewIntFromString(raw)
		if !ok {
			return fmt.Errorf("holder %s: invalid amount %q", holder, raw)
		}
		if err := l.Mint(pk, amount); err != nil {
			return fmt.Errorf("holder %s: %w", holder, err)
		}
	}
	return nil
}

func foreignToken(tok config.TokenEntry, vaultAddr vault.Address) (*ledger.Ledger, error) {
	id, err := solana.PublicKeyFromBase58(tok.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	l := ledger.New(id, tok.Name, tok.Symbol, tok.Decimals)
	if tok.VaultBalance == "" {
		return l, nil
	}
	if err := seed(l, map[string]string{vaultAddr.String(): tok.VaultBalance}); err != nil {
		return nil, err
	}
	return l, nil
}
