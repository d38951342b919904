package handler

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/web3-frozen/kpi-dashboard/internal/aggregator"
	"github.com/web3-frozen/kpi-dashboard/internal/auth"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

var csvHeader = []string{"id", "title", "value", "change", "category", "data"}

// ExportCSV serves every KPI as a CSV attachment.
func ExportCSV(agg *aggregator.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kpis, err := agg.NewSession(auth.TokenFromRequest(r)).FetchAll(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		var buf bytes.Buffer
		if err := writeCSV(&buf, kpis); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=kpi_data.csv")
		_, _ = w.Write(buf.Bytes())
	}
}

// writeCSV writes a header row and one row per KPI. The chart series is
// JSON-encoded into the data column.
func writeCSV(w io.Writer, kpis []kpi.KPI) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, k := range kpis {
		points := k.Data
		if points == nil {
			points = []kpi.DataPoint{}
		}
		data, err := json.Marshal(points)
		if err != nil {
			return err
		}
		row := []string{
			k.ID,
			k.Title,
			string(k.Value),
			strconv.FormatFloat(k.Change, 'f', -1, 64),
			string(k.Category),
			string(data),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
