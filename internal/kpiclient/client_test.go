package kpiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

// fakeStore mimics the backend store's HTTP surface for a single token.
func fakeStore(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"Token is not valid"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/kpis":
			_, _ = w.Write([]byte(`[{"id":"1","title":"DEX Volume","value":12.5,"change":1,"category":"liquidity","data":[]},
				{"id":"2","title":"Wallets","value":"300","change":-1,"category":"user","data":[{"date":"2024-01-01","value":3}]}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/kpis/1":
			_, _ = w.Write([]byte(`{"id":"1","title":"DEX Volume","value":"12.5","change":1,"category":"liquidity","data":[]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/kpis":
			var d kpi.Draft
			if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.Title == "" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"msg":"validation failed: missing title"}`))
				return
			}
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(kpi.KPI{ID: "3", Title: d.Title, Value: d.Value, Change: *d.Change, Category: d.Category})
		case r.Method == http.MethodPut && r.URL.Path == "/api/kpis/1":
			_, _ = w.Write([]byte(`{"id":"1","title":"Renamed","value":"12.5","change":1,"category":"liquidity","data":[]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/kpis/1":
			_, _ = w.Write([]byte(`{"msg":"KPI removed"}`))
		case r.URL.Path == "/api/kpis/boom":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"msg":"KPI not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListAndGet(t *testing.T) {
	c := New(fakeStore(t).URL)
	ctx := context.Background()

	list, err := c.ListKPIs(ctx, "good")
	if err != nil {
		t.Fatalf("ListKPIs: %v", err)
	}
	if len(list) != 2 || list[0].ID != "1" || list[1].ID != "2" {
		t.Fatalf("ListKPIs = %+v", list)
	}
	if list[0].Value != "12.5" {
		t.Errorf("numeric value = %q, want %q", list[0].Value, "12.5")
	}
	if len(list[1].Data) != 1 {
		t.Errorf("data points = %d, want 1", len(list[1].Data))
	}

	got, err := c.GetKPI(ctx, "good", "1")
	if err != nil {
		t.Fatalf("GetKPI: %v", err)
	}
	if got.Title != "DEX Volume" {
		t.Errorf("Title = %q", got.Title)
	}
}

func TestWrites(t *testing.T) {
	c := New(fakeStore(t).URL)
	ctx := context.Background()
	change := 0.0

	created, err := c.CreateKPI(ctx, "good", kpi.Draft{Title: "Pools", Value: "9", Change: &change, Category: kpi.CategoryLiquidity})
	if err != nil {
		t.Fatalf("CreateKPI: %v", err)
	}
	if created.ID != "3" || created.Title != "Pools" {
		t.Errorf("created = %+v", created)
	}

	title := "Renamed"
	updated, err := c.UpdateKPI(ctx, "good", "1", kpi.Patch{Title: &title})
	if err != nil {
		t.Fatalf("UpdateKPI: %v", err)
	}
	if updated.Title != "Renamed" {
		t.Errorf("updated title = %q", updated.Title)
	}

	if err := c.DeleteKPI(ctx, "good", "1"); err != nil {
		t.Fatalf("DeleteKPI: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	c := New(fakeStore(t).URL)
	ctx := context.Background()
	change := 0.0
	title := "x"

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no token", func() error { _, err := c.ListKPIs(ctx, ""); return err }(), kpi.ErrUnauthorized},
		{"bad token", func() error { _, err := c.GetKPI(ctx, "bad", "1"); return err }(), kpi.ErrUnauthorized},
		{"get missing", func() error { _, err := c.GetKPI(ctx, "good", "99"); return err }(), kpi.ErrNotFound},
		{"update missing", func() error { _, err := c.UpdateKPI(ctx, "good", "99", kpi.Patch{Title: &title}); return err }(), kpi.ErrNotFound},
		{"delete missing", c.DeleteKPI(ctx, "good", "99"), kpi.ErrNotFound},
		{"create invalid", func() error { _, err := c.CreateKPI(ctx, "good", kpi.Draft{Change: &change}); return err }(), kpi.ErrValidation},
		{"server error", func() error { _, err := c.GetKPI(ctx, "good", "boom"); return err }(), kpi.ErrUpstream},
		{"unreachable", func() error { _, err := New("http://127.0.0.1:1").ListKPIs(ctx, "good"); return err }(), kpi.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("got %v, want %v", tt.err, tt.want)
			}
		})
	}
}
