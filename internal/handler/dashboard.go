package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/web3-frozen/kpi-dashboard/internal/aggregator"
	"github.com/web3-frozen/kpi-dashboard/internal/alert"
	"github.com/web3-frozen/kpi-dashboard/internal/auth"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

// DashboardKPIs lists every KPI, optionally narrowed by ?category=.
func DashboardKPIs(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kpis, err := agg.NewSession(auth.TokenFromRequest(r)).FetchAll(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, kpi.FilterByCategory(kpis, r.URL.Query().Get("category")))
	}
}

func DashboardKPI(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := agg.NewSession(auth.TokenFromRequest(r)).FetchKPI(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, k)
	}
}

func DashboardAlerts(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kpis, err := agg.NewSession(auth.TokenFromRequest(r)).FetchAll(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"alerts": alert.CheckThresholds(kpis)})
	}
}

func DashboardCreateKPI(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d kpi.Draft
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		k, err := agg.CreateKPI(r.Context(), auth.TokenFromRequest(r), d)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, k)
	}
}

func DashboardUpdateKPI(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p kpi.Patch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		k, err := agg.UpdateKPI(r.Context(), auth.TokenFromRequest(r), chi.URLParam(r, "id"), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, k)
	}
}

func DashboardDeleteKPI(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := agg.DeleteKPI(r.Context(), auth.TokenFromRequest(r), chi.URLParam(r, "id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
