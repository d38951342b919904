package kpi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Reserved identifiers of KPIs derived live from the Cardano chain.
const (
	TVL             = "tvl"
	ActiveAddresses = "active_addresses"
	Transactions    = "transactions"
)

// DerivedIDs lists the derived KPIs in the order the dashboard shows them.
var DerivedIDs = []string{TVL, ActiveAddresses, Transactions}

// IsDerived reports whether id is reserved for a chain-derived KPI.
func IsDerived(id string) bool {
	for _, d := range DerivedIDs {
		if d == id {
			return true
		}
	}
	return false
}

type Category string

const (
	CategoryUser      Category = "user"
	CategoryDeveloper Category = "developer"
	CategoryLiquidity Category = "liquidity"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryUser, CategoryDeveloper, CategoryLiquidity:
		return true
	}
	return false
}

// Value is a display-formatted KPI value. It accepts either a JSON string
// or a bare JSON number and always encodes as a string.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("kpi value must be a string or number: %w", err)
	}
	*v = Value(n.String())
	return nil
}

func (v Value) String() string { return string(v) }

// DataPoint is one entry of a KPI chart series.
type DataPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type KPI struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Value     Value       `json:"value"`
	Change    float64     `json:"change"`
	Category  Category    `json:"category"`
	Data      []DataPoint `json:"data"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// MarshalJSON keeps an absent series as [] rather than null.
func (k KPI) MarshalJSON() ([]byte, error) {
	type alias KPI
	a := alias(k)
	if a.Data == nil {
		a.Data = []DataPoint{}
	}
	return json.Marshal(a)
}

// FilterByCategory returns the KPIs in category. An empty category or "all"
// returns kpis unchanged.
func FilterByCategory(kpis []KPI, category string) []KPI {
	if category == "" || category == "all" {
		return kpis
	}
	out := make([]KPI, 0, len(kpis))
	for _, k := range kpis {
		if string(k.Category) == category {
			out = append(out, k)
		}
	}
	return out
}
