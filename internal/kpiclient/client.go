// Package kpiclient talks to the backend KPI store over HTTP. Every call
// takes the caller's session token explicitly.
package kpiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
	"github.com/web3-frozen/kpi-dashboard/internal/metrics"
)

const source = "kpi_store"

type Client struct {
	client  *http.Client
	baseURL string
}

func New(baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) ListKPIs(ctx context.Context, token string) ([]kpi.KPI, error) {
	var out []kpi.KPI
	if err := c.do(ctx, "list", http.MethodGet, "/api/kpis", token, nil, &out); err != nil {
		return nil, err
	}
	metrics.KPIsStored.Set(float64(len(out)))
	return out, nil
}

func (c *Client) GetKPI(ctx context.Context, token, id string) (*kpi.KPI, error) {
	var out kpi.KPI
	if err := c.do(ctx, "get", http.MethodGet, kpiPath(id), token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateKPI(ctx context.Context, token string, d kpi.Draft) (*kpi.KPI, error) {
	var out kpi.KPI
	if err := c.do(ctx, "create", http.MethodPost, "/api/kpis", token, d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateKPI(ctx context.Context, token, id string, p kpi.Patch) (*kpi.KPI, error) {
	var out kpi.KPI
	if err := c.do(ctx, "update", http.MethodPut, kpiPath(id), token, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteKPI(ctx context.Context, token, id string) error {
	return c.do(ctx, "delete", http.MethodDelete, kpiPath(id), token, nil, nil)
}

func kpiPath(id string) string {
	return "/api/kpis/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(source, op, start, err) }()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: kpi store %s %s: %v", kpi.ErrUpstream, method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: kpi store %s %s: %v", kpi.ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode kpi store response: %v", kpi.ErrUpstream, err)
	}
	return nil
}

// statusError maps a non-2xx store response to the matching error kind,
// keeping the store's message.
func statusError(resp *http.Response) error {
	var msg struct {
		Msg   string `json:"msg"`
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &msg)
	detail := msg.Msg
	if detail == "" {
		detail = msg.Error
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", kpi.ErrUnauthorized, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", kpi.ErrNotFound, detail)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", kpi.ErrValidation, detail)
	default:
		return fmt.Errorf("%w: kpi store status %d: %s", kpi.ErrUpstream, resp.StatusCode, detail)
	}
}
