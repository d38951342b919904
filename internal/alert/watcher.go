package alert

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
	"github.com/web3-frozen/kpi-dashboard/internal/metrics"
)

const keyPrefix = "kpi_alert:"

// FetchFunc loads the KPIs to check on each tick.
type FetchFunc func(ctx context.Context) ([]kpi.KPI, error)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Dedup is satisfied by *dedup.Deduplicator.
type Dedup interface {
	AlreadySent(ctx context.Context, key string) bool
	Record(ctx context.Context, key string) error
	Clear(ctx context.Context, key string)
}

// Watcher periodically checks thresholds and notifies once per breach. A
// breach re-arms after the KPI recovers.
type Watcher struct {
	fetch    FetchFunc
	notifier Notifier
	dedup    Dedup
	logger   *slog.Logger
	interval time.Duration
}

func NewWatcher(fetch FetchFunc, notifier Notifier, dd Dedup, logger *slog.Logger, interval time.Duration) *Watcher {
	return &Watcher{
		fetch:    fetch,
		notifier: notifier,
		dedup:    dd,
		logger:   logger,
		interval: interval,
	}
}

// Run checks immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("alert watcher started", "interval", w.interval.String())
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs one evaluation pass.
func (w *Watcher) Check(ctx context.Context) {
	kpis, err := w.fetch(ctx)
	if err != nil {
		w.logger.Error("alert check: fetch kpis failed", "error", err)
		return
	}

	for _, k := range kpis {
		if _, ok := Thresholds[k.ID]; !ok {
			continue
		}
		if v := ParseDisplayValue(string(k.Value)); !math.IsNaN(v) {
			metrics.KPIValue.WithLabelValues(k.ID).Set(v)
		}
	}

	firing := make(map[string]bool)
	for _, a := range Evaluate(kpis) {
		firing[a.KPIID] = true
		key := keyPrefix + a.KPIID
		if w.dedup.AlreadySent(ctx, key) {
			metrics.AlertsDeduplicatedTotal.WithLabelValues(a.KPIID).Inc()
			continue
		}
		if err := w.notifier.Notify(ctx, "⚠️ "+a.Message); err != nil {
			metrics.AlertsFailedTotal.WithLabelValues(a.KPIID).Inc()
			w.logger.Error("send alert failed", "kpi", a.KPIID, "error", err)
			continue
		}
		if err := w.dedup.Record(ctx, key); err != nil {
			w.logger.Warn("record alert failed", "kpi", a.KPIID, "error", err)
		}
		metrics.AlertsSentTotal.WithLabelValues(a.KPIID).Inc()
		w.logger.Info("alert sent", "kpi", a.KPIID, "value", a.Value, "threshold", a.Threshold)
	}

	// Re-arm alerts for KPIs that were checked and are healthy again.
	for _, k := range kpis {
		if _, ok := Thresholds[k.ID]; ok && !firing[k.ID] {
			w.dedup.Clear(ctx, keyPrefix+k.ID)
		}
	}
}
