// Package aggregator assembles the dashboard's KPI list from two places:
// KPIs derived live from the Cardano chain and KPIs kept in the backend store.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/web3-frozen/kpi-dashboard/internal/blockfrost"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

// ChainSource is the read-only chain data API (*blockfrost.Client).
type ChainSource interface {
	LatestEpochParameters(ctx context.Context) (*blockfrost.EpochParameters, error)
	LatestEpoch(ctx context.Context) (*blockfrost.Epoch, error)
	LatestBlock(ctx context.Context) (*blockfrost.Block, error)
}

// Store is the backend KPI store (*kpiclient.Client).
type Store interface {
	ListKPIs(ctx context.Context, token string) ([]kpi.KPI, error)
	GetKPI(ctx context.Context, token, id string) (*kpi.KPI, error)
	CreateKPI(ctx context.Context, token string, d kpi.Draft) (*kpi.KPI, error)
	UpdateKPI(ctx context.Context, token, id string, p kpi.Patch) (*kpi.KPI, error)
	DeleteKPI(ctx context.Context, token, id string) error
}

type deriveFunc func(ctx context.Context) (kpi.KPI, error)

type Aggregator struct {
	chain   ChainSource
	store   Store
	logger  *slog.Logger
	derived map[string]deriveFunc
}

func New(chain ChainSource, store Store, logger *slog.Logger) *Aggregator {
	a := &Aggregator{
		chain:  chain,
		store:  store,
		logger: logger,
	}
	a.derived = map[string]deriveFunc{
		kpi.TVL:             a.deriveTVL,
		kpi.ActiveAddresses: a.deriveActiveAddresses,
		kpi.Transactions:    a.deriveTransactions,
	}
	return a
}

// fetch resolves one identifier without memoization. Reserved identifiers
// never reach the store; all others never reach the chain source.
func (a *Aggregator) fetch(ctx context.Context, token, id string) (kpi.KPI, error) {
	if derive, ok := a.derived[id]; ok {
		k, err := derive(ctx)
		if err != nil {
			a.logger.Error("derive kpi failed", "kpi", id, "error", err)
			return kpi.KPI{}, fmt.Errorf("fetch kpi %s: %w", id, err)
		}
		return k, nil
	}

	if id == "" {
		return kpi.KPI{}, fmt.Errorf("fetch kpi: %w: empty identifier", kpi.ErrNotFound)
	}
	if token == "" {
		return kpi.KPI{}, fmt.Errorf("fetch kpi %s: %w: missing session token", id, kpi.ErrUnauthorized)
	}
	k, err := a.store.GetKPI(ctx, token, id)
	if err != nil {
		a.logger.Error("fetch stored kpi failed", "kpi", id, "error", err)
		return kpi.KPI{}, fmt.Errorf("fetch kpi %s: %w", id, err)
	}
	return *k, nil
}

func (a *Aggregator) CreateKPI(ctx context.Context, token string, d kpi.Draft) (*kpi.KPI, error) {
	if token == "" {
		return nil, fmt.Errorf("create kpi: %w: missing session token", kpi.ErrUnauthorized)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("create kpi: %w", err)
	}
	k, err := a.store.CreateKPI(ctx, token, d)
	if err != nil {
		a.logger.Error("create kpi failed", "error", err)
		return nil, fmt.Errorf("create kpi: %w", err)
	}
	return k, nil
}

func (a *Aggregator) UpdateKPI(ctx context.Context, token, id string, p kpi.Patch) (*kpi.KPI, error) {
	if token == "" {
		return nil, fmt.Errorf("update kpi %s: %w: missing session token", id, kpi.ErrUnauthorized)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("update kpi %s: %w", id, err)
	}
	k, err := a.store.UpdateKPI(ctx, token, id, p)
	if err != nil {
		a.logger.Error("update kpi failed", "kpi", id, "error", err)
		return nil, fmt.Errorf("update kpi %s: %w", id, err)
	}
	return k, nil
}

func (a *Aggregator) DeleteKPI(ctx context.Context, token, id string) error {
	if token == "" {
		return fmt.Errorf("delete kpi %s: %w: missing session token", id, kpi.ErrUnauthorized)
	}
	if err := a.store.DeleteKPI(ctx, token, id); err != nil {
		a.logger.Error("delete kpi failed", "kpi", id, "error", err)
		return fmt.Errorf("delete kpi %s: %w", id, err)
	}
	return nil
}
