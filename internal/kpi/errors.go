package kpi

import "errors"

// Error kinds surfaced by every KPI operation. Callers match them with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("kpi not found")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream error")
)
