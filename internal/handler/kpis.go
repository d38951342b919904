package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

// KPIStore is satisfied by *store.Store. Implementations validate drafts
// and patches, reporting failures as kpi.ErrValidation.
type KPIStore interface {
	ListKPIs(ctx context.Context) ([]kpi.KPI, error)
	GetKPI(ctx context.Context, id string) (*kpi.KPI, error)
	CreateKPI(ctx context.Context, d kpi.Draft) (*kpi.KPI, error)
	UpdateKPI(ctx context.Context, id string, p kpi.Patch) (*kpi.KPI, error)
	DeleteKPI(ctx context.Context, id string) error
}

// storeError answers the backend store's error conventions: {"msg": ...} for
// client errors and a generic 500 otherwise.
func storeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, kpi.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"msg": "KPI not found"})
	case errors.Is(err, kpi.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
	default:
		logger.Error(op+" failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func ListKPIs(s KPIStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kpis, err := s.ListKPIs(r.Context())
		if err != nil {
			storeError(w, logger, "list kpis", err)
			return
		}
		if kpis == nil {
			kpis = []kpi.KPI{}
		}
		writeJSON(w, http.StatusOK, kpis)
	}
}

func GetKPI(s KPIStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		k, err := s.GetKPI(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			storeError(w, logger, "get kpi", err)
			return
		}
		writeJSON(w, http.StatusOK, k)
	}
}

func CreateKPI(s KPIStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var d kpi.Draft
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "invalid request body"})
			return
		}
		k, err := s.CreateKPI(r.Context(), d)
		if err != nil {
			storeError(w, logger, "create kpi", err)
			return
		}
		writeJSON(w, http.StatusCreated, k)
	}
}

func UpdateKPI(s KPIStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p kpi.Patch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "invalid request body"})
			return
		}

		k, err := s.UpdateKPI(r.Context(), chi.URLParam(r, "id"), p)
		if err != nil {
			storeError(w, logger, "update kpi", err)
			return
		}
		writeJSON(w, http.StatusOK, k)
	}
}

func DeleteKPI(s KPIStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.DeleteKPI(r.Context(), chi.URLParam(r, "id")); err != nil {
			storeError(w, logger, "delete kpi", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"msg": "KPI removed"})
	}
}
