package kpi

import (
	"fmt"
	"strings"
)

// Draft is the payload for creating a stored KPI.
type Draft struct {
	Title    string      `json:"title"`
	Value    Value       `json:"value"`
	Change   *float64    `json:"change"`
	Category Category    `json:"category"`
	Data     []DataPoint `json:"data"`
}

func (d Draft) Validate() error {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(string(d.Value)) == "" {
		missing = append(missing, "value")
	}
	if d.Change == nil {
		missing = append(missing, "change")
	}
	if d.Category == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if !d.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, d.Category)
	}
	return nil
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title    *string      `json:"title,omitempty"`
	Value    *Value       `json:"value,omitempty"`
	Change   *float64     `json:"change,omitempty"`
	Category *Category    `json:"category,omitempty"`
	Data     *[]DataPoint `json:"data,omitempty"`
}

func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if p.Value != nil && strings.TrimSpace(string(*p.Value)) == "" {
		return fmt.Errorf("%w: value must not be empty", ErrValidation)
	}
	if p.Category != nil && !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, *p.Category)
	}
	return nil
}
