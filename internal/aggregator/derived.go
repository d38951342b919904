package aggregator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

var lovelacePerADA = decimal.NewFromInt(1_000_000)

func (a *Aggregator) deriveTVL(ctx context.Context) (kpi.KPI, error) {
	params, err := a.chain.LatestEpochParameters(ctx)
	if err != nil {
		return kpi.KPI{}, err
	}
	value, err := formatTVL(params.EMax.String())
	if err != nil {
		return kpi.KPI{}, err
	}
	return kpi.KPI{
		ID:       kpi.TVL,
		Title:    "Total Value Locked",
		Value:    kpi.Value(value),
		Change:   0,
		Category: kpi.CategoryLiquidity,
		Data:     []kpi.DataPoint{},
	}, nil
}

// formatTVL converts a lovelace amount into the "$<ada>M" display form.
// Fractional lovelace is truncated.
func formatTVL(lovelace string) (string, error) {
	if lovelace == "" {
		return "", fmt.Errorf("%w: e_max missing from epoch parameters", kpi.ErrUpstream)
	}
	d, err := decimal.NewFromString(lovelace)
	if err != nil {
		return "", fmt.Errorf("%w: e_max %q is not a number", kpi.ErrUpstream, lovelace)
	}
	return "$" + d.Truncate(0).Div(lovelacePerADA).StringFixed(2) + "M", nil
}

func (a *Aggregator) deriveActiveAddresses(ctx context.Context) (kpi.KPI, error) {
	epoch, err := a.chain.LatestEpoch(ctx)
	if err != nil {
		return kpi.KPI{}, err
	}
	if epoch.ActiveStake == nil {
		return kpi.KPI{}, fmt.Errorf("%w: active_stake missing from epoch %d", kpi.ErrUpstream, epoch.Epoch)
	}
	return kpi.KPI{
		ID:       kpi.ActiveAddresses,
		Title:    "Active Addresses",
		Value:    kpi.Value(*epoch.ActiveStake),
		Change:   0,
		Category: kpi.CategoryUser,
		Data:     []kpi.DataPoint{},
	}, nil
}

func (a *Aggregator) deriveTransactions(ctx context.Context) (kpi.KPI, error) {
	block, err := a.chain.LatestBlock(ctx)
	if err != nil {
		return kpi.KPI{}, err
	}
	if block.TxCount == nil {
		return kpi.KPI{}, fmt.Errorf("%w: tx_count missing from block %s", kpi.ErrUpstream, block.Hash)
	}
	return kpi.KPI{
		ID:       kpi.Transactions,
		Title:    "Daily Transactions",
		Value:    kpi.Value(strconv.FormatInt(*block.TxCount, 10)),
		Change:   0,
		Category: kpi.CategoryDeveloper,
		Data:     []kpi.DataPoint{},
	}, nil
}
