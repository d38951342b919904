package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Session is a short-lived view over the aggregator bound to one caller's
// token. Lookups are memoized per identifier for the life of the session, so
// one page render or API request never fetches the same KPI twice. Sessions
// must not be reused across requests.
type Session struct {
	agg   *Aggregator
	token string

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]result
}

type result struct {
	kpi kpi.KPI
	err error
}

// NewSession starts a memoization scope for token. An empty token can still
// resolve the derived KPIs.
func (a *Aggregator) NewSession(token string) *Session {
	return &Session{
		agg:   a,
		token: token,
		memo:  make(map[string]result),
	}
}

func (s *Session) cached(id string) (result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.memo[id]
	return r, ok
}

// FetchKPI returns the KPI for id. Failures are memoized too.
func (s *Session) FetchKPI(ctx context.Context, id string) (kpi.KPI, error) {
	if r, ok := s.cached(id); ok {
		return r.kpi, r.err
	}
	v, _, _ := s.group.Do(id, func() (any, error) {
		if r, ok := s.cached(id); ok {
			return r, nil
		}
		k, err := s.agg.fetch(ctx, s.token, id)
		r := result{kpi: k, err: err}
		s.mu.Lock()
		s.memo[id] = r
		s.mu.Unlock()
		return r, nil
	})
	r := v.(result)
	return r.kpi, r.err
}

// FetchAll returns the derived KPIs in kpi.DerivedIDs order followed by the
// stored KPIs in store order. The four fetches run concurrently and the
// first failure fails the whole call.
func (s *Session) FetchAll(ctx context.Context) ([]kpi.KPI, error) {
	if s.token == "" {
		return nil, fmt.Errorf("fetch all kpis: %w: missing session token", kpi.ErrUnauthorized)
	}

	g, gctx := errgroup.WithContext(ctx)

	derived := make([]kpi.KPI, len(kpi.DerivedIDs))
	for i, id := range kpi.DerivedIDs {
		i, id := i, id
		g.Go(func() error {
			k, err := s.FetchKPI(gctx, id)
			if err != nil {
				return err
			}
			derived[i] = k
			return nil
		})
	}

	var stored []kpi.KPI
	g.Go(func() error {
		list, err := s.agg.store.ListKPIs(gctx, s.token)
		if err != nil {
			s.agg.logger.Error("list stored kpis failed", "error", err)
			return fmt.Errorf("list stored kpis: %w", err)
		}
		stored = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch all kpis: %w", err)
	}

	out := make([]kpi.KPI, 0, len(derived)+len(stored))
	out = append(out, derived...)
	for _, k := range stored {
		// A stored KPI under a reserved id is shadowed by the derived one.
		if kpi.IsDerived(k.ID) {
			s.agg.logger.Warn("stored kpi shadowed by derived kpi", "kpi", k.ID)
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

// FetchDerived resolves only the chain-derived KPIs. It needs no token.
func (s *Session) FetchDerived(ctx context.Context) ([]kpi.KPI, error) {
	g, gctx := errgroup.WithContext(ctx)
	out := make([]kpi.KPI, len(kpi.DerivedIDs))
	for i, id := range kpi.DerivedIDs {
		i, id := i, id
		g.Go(func() error {
			k, err := s.FetchKPI(gctx, id)
			if err != nil {
				return err
			}
			out[i] = k
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
