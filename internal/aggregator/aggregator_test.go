package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/web3-frozen/kpi-dashboard/internal/blockfrost"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

type fakeChain struct {
	params, epochs, blocks atomic.Int32

	eMax        string
	activeStake *string
	txCount     *int64
	err         error
	delay       time.Duration
}

func (f *fakeChain) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeChain) LatestEpochParameters(ctx context.Context) (*blockfrost.EpochParameters, error) {
	f.params.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &blockfrost.EpochParameters{Epoch: 500, EMax: json.Number(f.eMax)}, nil
}

func (f *fakeChain) LatestEpoch(ctx context.Context) (*blockfrost.Epoch, error) {
	f.epochs.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &blockfrost.Epoch{Epoch: 500, ActiveStake: f.activeStake}, nil
}

func (f *fakeChain) LatestBlock(ctx context.Context) (*blockfrost.Block, error) {
	f.blocks.Add(1)
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return &blockfrost.Block{Hash: "abc", TxCount: f.txCount}, nil
}

func (f *fakeChain) calls() int32 { return f.params.Load() + f.epochs.Load() + f.blocks.Load() }

type fakeStore struct {
	mu     sync.Mutex
	calls  int
	tokens []string

	kpis    map[string]kpi.KPI
	list    []kpi.KPI
	listErr error
}

func (f *fakeStore) record(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, token)
}

func (f *fakeStore) ListKPIs(_ context.Context, token string) ([]kpi.KPI, error) {
	f.record(token)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeStore) GetKPI(_ context.Context, token, id string) (*kpi.KPI, error) {
	f.record(token)
	k, ok := f.kpis[id]
	if !ok {
		return nil, fmt.Errorf("%w: KPI not found", kpi.ErrNotFound)
	}
	return &k, nil
}

func (f *fakeStore) CreateKPI(_ context.Context, token string, d kpi.Draft) (*kpi.KPI, error) {
	f.record(token)
	return &kpi.KPI{ID: "10", Title: d.Title, Value: d.Value, Change: *d.Change, Category: d.Category}, nil
}

func (f *fakeStore) UpdateKPI(_ context.Context, token, id string, p kpi.Patch) (*kpi.KPI, error) {
	f.record(token)
	k, ok := f.kpis[id]
	if !ok {
		return nil, fmt.Errorf("%w: KPI not found", kpi.ErrNotFound)
	}
	if p.Title != nil {
		k.Title = *p.Title
	}
	return &k, nil
}

func (f *fakeStore) DeleteKPI(_ context.Context, token, id string) error {
	f.record(token)
	if _, ok := f.kpis[id]; !ok {
		return fmt.Errorf("%w: KPI not found", kpi.ErrNotFound)
	}
	return nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func ptr[T any](v T) *T { return &v }

func newFixture() (*fakeChain, *fakeStore, *Aggregator) {
	chain := &fakeChain{
		eMax:        "123450000",
		activeStake: ptr("21700000000000000"),
		txCount:     ptr(int64(17)),
	}
	store := &fakeStore{
		kpis: map[string]kpi.KPI{
			"7": {ID: "7", Title: "DEX Volume", Value: "$4.2M", Change: -1.5, Category: kpi.CategoryLiquidity},
		},
		list: []kpi.KPI{
			{ID: "9", Title: "Smart Contracts", Value: "3000", Category: kpi.CategoryDeveloper},
			{ID: "7", Title: "DEX Volume", Value: "$4.2M", Change: -1.5, Category: kpi.CategoryLiquidity},
		},
	}
	return chain, store, New(chain, store, slog.Default())
}

func TestFetchDerivedKPIs(t *testing.T) {
	chain, store, agg := newFixture()
	s := agg.NewSession("token")
	ctx := context.Background()

	tests := []struct {
		id       string
		title    string
		value    kpi.Value
		category kpi.Category
	}{
		{kpi.TVL, "Total Value Locked", "$123.45M", kpi.CategoryLiquidity},
		{kpi.ActiveAddresses, "Active Addresses", "21700000000000000", kpi.CategoryUser},
		{kpi.Transactions, "Daily Transactions", "17", kpi.CategoryDeveloper},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := s.FetchKPI(ctx, tt.id)
			if err != nil {
				t.Fatalf("FetchKPI: %v", err)
			}
			if got.ID != tt.id || got.Title != tt.title || got.Value != tt.value || got.Category != tt.category {
				t.Errorf("FetchKPI(%q) = %+v", tt.id, got)
			}
			if got.Change != 0 {
				t.Errorf("Change = %v, want 0", got.Change)
			}
			if got.Data == nil || len(got.Data) != 0 {
				t.Errorf("Data = %v, want empty series", got.Data)
			}
		})
	}

	if n := store.callCount(); n != 0 {
		t.Errorf("store contacted %d times for derived KPIs, want 0", n)
	}
	if n := chain.calls(); n != 3 {
		t.Errorf("chain calls = %d, want 3", n)
	}
}

func TestFetchStoredKPI(t *testing.T) {
	chain, store, agg := newFixture()
	s := agg.NewSession("token-abc")

	got, err := s.FetchKPI(context.Background(), "7")
	if err != nil {
		t.Fatalf("FetchKPI: %v", err)
	}
	if got.Title != "DEX Volume" || got.Value != "$4.2M" || got.Change != -1.5 {
		t.Errorf("FetchKPI = %+v", got)
	}
	if n := chain.calls(); n != 0 {
		t.Errorf("chain contacted %d times for stored KPI, want 0", n)
	}
	if len(store.tokens) != 1 || store.tokens[0] != "token-abc" {
		t.Errorf("token not threaded through: %v", store.tokens)
	}
}

func TestFetchKPIErrors(t *testing.T) {
	_, store, agg := newFixture()
	ctx := context.Background()

	_, err := agg.NewSession("token").FetchKPI(ctx, "404")
	if !errors.Is(err, kpi.ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}

	_, err = agg.NewSession("token").FetchKPI(ctx, "")
	if !errors.Is(err, kpi.ErrNotFound) {
		t.Errorf("empty id: got %v, want ErrNotFound", err)
	}

	before := store.callCount()
	_, err = agg.NewSession("").FetchKPI(ctx, "7")
	if !errors.Is(err, kpi.ErrUnauthorized) {
		t.Errorf("no token: got %v, want ErrUnauthorized", err)
	}
	if store.callCount() != before {
		t.Error("store should not be contacted without a token")
	}

	// Derived KPIs resolve without a token.
	if _, err := agg.NewSession("").FetchKPI(ctx, kpi.Transactions); err != nil {
		t.Errorf("derived without token: %v", err)
	}
}

func TestFetchKPIUpstreamErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *fakeChain)
		id    string
	}{
		{"unreachable", func(c *fakeChain) { c.err = fmt.Errorf("%w: dial tcp", kpi.ErrUpstream) }, kpi.TVL},
		{"e_max not a number", func(c *fakeChain) { c.eMax = "lots" }, kpi.TVL},
		{"e_max missing", func(c *fakeChain) { c.eMax = "" }, kpi.TVL},
		{"active_stake missing", func(c *fakeChain) { c.activeStake = nil }, kpi.ActiveAddresses},
		{"tx_count missing", func(c *fakeChain) { c.txCount = nil }, kpi.Transactions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, _, agg := newFixture()
			tt.setup(chain)
			_, err := agg.NewSession("token").FetchKPI(context.Background(), tt.id)
			if !errors.Is(err, kpi.ErrUpstream) {
				t.Errorf("got %v, want ErrUpstream", err)
			}
		})
	}
}

func TestFormatTVL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"18", "$0.00M"},
		{"1000000", "$1.00M"},
		{"45000000000000000", "$45000000000.00M"},
		{"123456789", "$123.46M"},
		{"1999999.9", "$2.00M"},
	}
	for _, tt := range tests {
		got, err := formatTVL(tt.in)
		if err != nil {
			t.Fatalf("formatTVL(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("formatTVL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionMemoizes(t *testing.T) {
	chain, store, agg := newFixture()
	chain.delay = 20 * time.Millisecond
	s := agg.NewSession("token")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.FetchKPI(ctx, kpi.TVL); err != nil {
				t.Errorf("FetchKPI: %v", err)
			}
		}()
	}
	wg.Wait()
	if _, err := s.FetchKPI(ctx, "7"); err != nil {
		t.Fatalf("FetchKPI: %v", err)
	}
	if _, err := s.FetchKPI(ctx, "7"); err != nil {
		t.Fatalf("FetchKPI: %v", err)
	}

	if n := chain.params.Load(); n != 1 {
		t.Errorf("epoch parameter calls = %d, want 1", n)
	}
	if n := store.callCount(); n != 1 {
		t.Errorf("store calls = %d, want 1", n)
	}

	// A new session does not share the memo.
	if _, err := agg.NewSession("token").FetchKPI(ctx, kpi.TVL); err != nil {
		t.Fatalf("FetchKPI: %v", err)
	}
	if n := chain.params.Load(); n != 2 {
		t.Errorf("epoch parameter calls after new session = %d, want 2", n)
	}
}

func TestSessionMemoizesAcrossFetchAll(t *testing.T) {
	chain, _, agg := newFixture()
	s := agg.NewSession("token")
	ctx := context.Background()

	if _, err := s.FetchKPI(ctx, kpi.TVL); err != nil {
		t.Fatalf("FetchKPI: %v", err)
	}
	if _, err := s.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if n := chain.params.Load(); n != 1 {
		t.Errorf("tvl fetched %d times within one session, want 1", n)
	}
}

func TestFetchAllOrder(t *testing.T) {
	_, _, agg := newFixture()
	got, err := agg.NewSession("token").FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	want := []string{"tvl", "active_addresses", "transactions", "9", "7"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestFetchAllShadowsReservedStoredIDs(t *testing.T) {
	_, store, agg := newFixture()
	store.list = append(store.list, kpi.KPI{ID: "tvl", Title: "Imposter"})

	got, err := agg.NewSession("token").FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	seen := map[string]bool{}
	for _, k := range got {
		if seen[k.ID] {
			t.Errorf("duplicate id %q", k.ID)
		}
		seen[k.ID] = true
	}
	if got[0].Title != "Total Value Locked" {
		t.Errorf("tvl should be the derived KPI, got %q", got[0].Title)
	}
}

func TestFetchAllFailFast(t *testing.T) {
	t.Run("store list fails", func(t *testing.T) {
		_, store, agg := newFixture()
		store.listErr = fmt.Errorf("%w: token expired", kpi.ErrUnauthorized)
		got, err := agg.NewSession("token").FetchAll(context.Background())
		if !errors.Is(err, kpi.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
		if got != nil {
			t.Errorf("partial result returned: %+v", got)
		}
	})

	t.Run("chain fails", func(t *testing.T) {
		chain, _, agg := newFixture()
		chain.err = fmt.Errorf("%w: blockfrost down", kpi.ErrUpstream)
		got, err := agg.NewSession("token").FetchAll(context.Background())
		if !errors.Is(err, kpi.ErrUpstream) {
			t.Errorf("got %v, want ErrUpstream", err)
		}
		if got != nil {
			t.Errorf("partial result returned: %+v", got)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		_, _, agg := newFixture()
		if _, err := agg.NewSession("").FetchAll(context.Background()); !errors.Is(err, kpi.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})
}

func TestFetchDerived(t *testing.T) {
	_, store, agg := newFixture()
	got, err := agg.NewSession("").FetchDerived(context.Background())
	if err != nil {
		t.Fatalf("FetchDerived: %v", err)
	}
	if len(got) != 3 || got[0].ID != kpi.TVL || got[1].ID != kpi.ActiveAddresses || got[2].ID != kpi.Transactions {
		t.Errorf("FetchDerived = %+v", got)
	}
	if store.callCount() != 0 {
		t.Error("FetchDerived must not contact the store")
	}
}

func TestWritePassThrough(t *testing.T) {
	_, store, agg := newFixture()
	ctx := context.Background()

	_, err := agg.CreateKPI(ctx, "token", kpi.Draft{Value: "1", Change: ptr(0.0), Category: kpi.CategoryUser})
	if !errors.Is(err, kpi.ErrValidation) {
		t.Errorf("create without title: got %v, want ErrValidation", err)
	}
	if store.callCount() != 0 {
		t.Error("invalid draft should not reach the store")
	}

	created, err := agg.CreateKPI(ctx, "token", kpi.Draft{Title: "Pools", Value: "1", Change: ptr(0.0), Category: kpi.CategoryUser})
	if err != nil {
		t.Fatalf("CreateKPI: %v", err)
	}
	if created.Title != "Pools" {
		t.Errorf("created = %+v", created)
	}

	if _, err := agg.CreateKPI(ctx, "", kpi.Draft{Title: "Pools"}); !errors.Is(err, kpi.ErrUnauthorized) {
		t.Errorf("create without token: got %v, want ErrUnauthorized", err)
	}

	if _, err := agg.UpdateKPI(ctx, "token", "404", kpi.Patch{Title: ptr("x")}); !errors.Is(err, kpi.ErrNotFound) {
		t.Errorf("update missing: got %v, want ErrNotFound", err)
	}
	updated, err := agg.UpdateKPI(ctx, "token", "7", kpi.Patch{Title: ptr("Volume")})
	if err != nil {
		t.Fatalf("UpdateKPI: %v", err)
	}
	if updated.Title != "Volume" {
		t.Errorf("updated title = %q", updated.Title)
	}
	bad := kpi.Category("whales")
	if _, err := agg.UpdateKPI(ctx, "token", "7", kpi.Patch{Category: &bad}); !errors.Is(err, kpi.ErrValidation) {
		t.Errorf("update bad category: got %v, want ErrValidation", err)
	}

	if err := agg.DeleteKPI(ctx, "token", "404"); !errors.Is(err, kpi.ErrNotFound) {
		t.Errorf("delete missing: got %v, want ErrNotFound", err)
	}
	if err := agg.DeleteKPI(ctx, "token", "7"); err != nil {
		t.Errorf("DeleteKPI: %v", err)
	}
	if err := agg.DeleteKPI(ctx, "", "7"); !errors.Is(err, kpi.ErrUnauthorized) {
		t.Errorf("delete without token: got %v, want ErrUnauthorized", err)
	}
}
