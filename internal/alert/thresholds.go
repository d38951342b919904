package alert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

// Thresholds is the minimum healthy value per KPI identifier.
var Thresholds = map[string]float64{
	kpi.TVL:             1e9,
	kpi.ActiveAddresses: 200000,
	kpi.Transactions:    80000,
}

// Alert is one KPI found below its threshold.
type Alert struct {
	KPIID     string
	Title     string
	Value     float64
	Threshold float64
	Message   string
}

// CheckThresholds returns a human-readable alert for every KPI below its
// threshold, in input order.
func CheckThresholds(kpis []kpi.KPI) []string {
	alerts := Evaluate(kpis)
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Message)
	}
	return out
}

// Evaluate is CheckThresholds in structured form. KPIs without a threshold
// are skipped, and so are values that do not parse: NaN never compares below.
func Evaluate(kpis []kpi.KPI) []Alert {
	var alerts []Alert
	for _, k := range kpis {
		threshold, ok := Thresholds[k.ID]
		if !ok {
			continue
		}
		v := ParseDisplayValue(string(k.Value))
		if v < threshold {
			alerts = append(alerts, Alert{
				KPIID:     k.ID,
				Title:     k.Title,
				Value:     v,
				Threshold: threshold,
				Message:   fmt.Sprintf("%s is below the threshold of %s", k.Title, formatThousands(threshold)),
			})
		}
	}
	return alerts
}

var suffixes = map[byte]float64{
	'k': 1e3,
	'm': 1e6,
	'b': 1e9,
}

// ParseDisplayValue reads a display value such as "$123.45M" or "21,000".
// Everything except digits, '.' and '-' is dropped before parsing; a trailing
// K/M/B scales the result. Unparseable input yields NaN.
func ParseDisplayValue(s string) float64 {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return math.NaN()
	}
	if s != "" {
		if mult, ok := suffixes[strings.ToLower(s[len(s)-1:])[0]]; ok {
			v *= mult
		}
	}
	return v
}

// formatThousands renders an integral threshold with comma grouping.
func formatThousands(v float64) string {
	digits := strconv.FormatFloat(math.Trunc(v), 'f', 0, 64)
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
