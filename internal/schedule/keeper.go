package schedule

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"yieldvault/internal/vault"
)

// StrategyRegistry is what the keeper needs from the vault.
type StrategyRegistry interface {
	WithdrawalQueue(ctx context.Context) ([]vault.Address, error)
	Strategy(ctx context.Context, addr vault.Address) (vault.StrategyRecord, bool, error)
	StrategyHandle(ctx context.Context, addr vault.Address) (vault.Strategy, bool, error)
}

// Keeper harvests every queued strategy. A failed harvest is logged and left
// for the next run.
type Keeper struct {
	vault StrategyRegistry
	gate  *vault.Gate
}

// NewKeeper creates a keeper queuing its vault calls through gate.
func NewKeeper(v StrategyRegistry, gate *vault.Gate) *Keeper {
	return &Keeper{vault: v, gate: gate}
}

func (k *Keeper) Name() string { return "keeper-harvest" }

func (k *Keeper) Run(ctx context.Context) error {
	_, _, err := k.HarvestAll(ctx)
	return err
}

// HarvestAll harvests the queue in order. Strategies that are wound down
// (no weight, nothing allocated) are skipped.
func (k *Keeper) HarvestAll(ctx context.Context) (harvested, failed int, err error) {
	var queue []vault.Address
	err = k.gate.Shared(ctx, func(ctx context.Context) error {
		var err error
		queue, err = k.vault.WithdrawalQueue(ctx)
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("read withdrawal queue: %w", err)
	}
	for _, addr := range queue {
		if ctx.Err() != nil {
			return harvested, failed, ctx.Err()
		}
		entry := log.WithField("strategy", addr.String())

		var (
			s  vault.Strategy
			ok bool
		)
		err := k.gate.Shared(ctx, func(ctx context.Context) error {
			rec, found, err := k.vault.Strategy(ctx, addr)
			if err != nil || !found || (rec.AllocBPS == 0 && rec.Allocated.IsZero()) {
				return err
			}
			s, ok, err = k.vault.StrategyHandle(ctx, addr)
			return err
		})
		if err != nil {
			return harvested, failed, err
		}
		if !ok {
			continue
		}
		err = k.gate.Exclusive(ctx, func(ctx context.Context) error {
			_, err := s.Harvest(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return harvested, failed, ctx.Err()
			}
			entry.WithError(err).Warn("harvest failed")
			failed++
			continue
		}
		harvested++
	}
	return harvested, failed, nil
}
