// Package blockfrost wraps the Blockfrost Cardano SDK, covering the
// endpoints the dashboard derives KPIs from.
package blockfrost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	bf "github.com/blockfrost/blockfrost-go"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
	"github.com/web3-frozen/kpi-dashboard/internal/metrics"
)

const (
	DefaultURL = bf.CardanoMainNet
	source     = "blockfrost"
)

type Client struct {
	api bf.APIClient
}

func New(baseURL, projectID string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		api: bf.NewAPIClient(bf.APIClientOptions{
			ProjectID: projectID,
			Server:    strings.TrimRight(baseURL, "/"),
			Client:    &http.Client{Timeout: 15 * time.Second},
		}),
	}
}

// EpochParameters holds the protocol parameters of an epoch. Only the
// fields the dashboard consumes are kept.
type EpochParameters struct {
	Epoch int         `json:"epoch"`
	EMax  json.Number `json:"e_max"`
}

type Epoch struct {
	Epoch       int     `json:"epoch"`
	ActiveStake *string `json:"active_stake"`
}

type Block struct {
	Hash    string `json:"hash"`
	TxCount *int64 `json:"tx_count"`
}

func (c *Client) LatestEpochParameters(ctx context.Context) (*EpochParameters, error) {
	var p EpochParameters
	err := c.call("epochs_latest_parameters", &p, func() (any, error) {
		return c.api.LatestEpochParameters(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) LatestEpoch(ctx context.Context) (*Epoch, error) {
	var e Epoch
	err := c.call("epochs_latest", &e, func() (any, error) {
		return c.api.EpochLatest(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) LatestBlock(ctx context.Context) (*Block, error) {
	var b Block
	err := c.call("blocks_latest", &b, func() (any, error) {
		return c.api.BlockLatest(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// call runs one SDK request and copies the consumed fields into out by JSON
// name. All failures are reported as kpi.ErrUpstream.
func (c *Client) call(op string, out any, fn func() (any, error)) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(source, op, start, err) }()

	resp, err := fn()
	if err != nil {
		return fmt.Errorf("%w: blockfrost %s: %v", kpi.ErrUpstream, op, err)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("%w: encode blockfrost %s: %v", kpi.ErrUpstream, op, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode blockfrost %s: %v", kpi.ErrUpstream, op, err)
	}
	return nil
}
