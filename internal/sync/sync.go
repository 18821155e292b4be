// Package sync sequences one reconciliation run: fetch broker state,
// convert to yen, scrape the ledger, reconcile, actuate. Cash first,
// then positions, fully sequential. The browser page is the only
// shared resource and every mutation must settle before the next.
package sync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/RetroHazard/ibkr-mf-sync/internal/asset"
	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
	"github.com/RetroHazard/ibkr-mf-sync/internal/moneyforward"
	"github.com/RetroHazard/ibkr-mf-sync/internal/normalize"
	"github.com/RetroHazard/ibkr-mf-sync/internal/reconcile"
)

// ReportFetcher hands back allow-listed attribute records for one
// report kind, plus a count of rows dropped for unsupported categories.
type ReportFetcher interface {
	Fetch(ctx context.Context, kind model.ReportKind) ([]map[string]string, int, error)
}

// RateConverter converts a native-currency amount to integer yen.
type RateConverter interface {
	ConvertJPY(ctx context.Context, amount decimal.NullDecimal, currency string) (decimal.NullDecimal, error)
}

// LedgerUI is the authenticated MoneyForward session the run mutates
// through. Satisfied by *moneyforward.Session.
type LedgerUI interface {
	HTML() (string, error)
	LookupAssetID(table model.LedgerTable, rowPosition int) (string, error)
	UpdateAsset(table model.LedgerTable, assetID, name string, valueJPY int64, costJPY decimal.NullDecimal, updateCost bool) error
	CreateAsset(subclass asset.Subclass, name string, valueJPY int64, costJPY decimal.NullDecimal) error
}

// Options narrows or defangs a run.
type Options struct {
	CashOnly      bool
	PositionsOnly bool
	DryRun        bool // classify and log, mutate nothing
}

// DomainSummary counts what one domain's reconciliation did.
type DomainSummary struct {
	None     int
	Modified int
	Zeroed   int
	Added    int

	DroppedCategories int
	DuplicateKeys     int
}

// Summary is the outcome of one full run. Every count at zero is a
// valid no-op run.
type Summary struct {
	Cash   DomainSummary
	Equity DomainSummary
}

// Orchestrator wires the collaborators together.
type Orchestrator struct {
	reports ReportFetcher
	rates   RateConverter
	ui      LedgerUI
	opts    Options
	log     zerolog.Logger
}

// New creates an orchestrator.
func New(reports ReportFetcher, rates RateConverter, ui LedgerUI, opts Options, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		reports: reports,
		rates:   rates,
		ui:      ui,
		opts:    opts,
		log:     log.With().Str("component", "sync").Logger(),
	}
}

// Run executes the sync once. No retries: a failure after the first
// mutation leaves the ledger partially updated, and the recovery is to
// rerun. Classification depends only on current state, so a rerun
// re-derives exactly the remaining actions.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	var err error

	if !o.opts.PositionsOnly {
		if sum.Cash, err = o.syncCash(ctx); err != nil {
			return sum, fmt.Errorf("cash sync: %w", err)
		}
	}
	if !o.opts.CashOnly {
		if sum.Equity, err = o.syncEquity(ctx); err != nil {
			return sum, fmt.Errorf("equity sync: %w", err)
		}
	}
	return sum, nil
}

func (o *Orchestrator) syncCash(ctx context.Context) (DomainSummary, error) {
	var sum DomainSummary

	rows, _, err := o.reports.Fetch(ctx, model.CashReport)
	if err != nil {
		return sum, fmt.Errorf("fetch cash report: %w", err)
	}
	broker := normalize.BrokerCashRows(rows, o.log)
	if err := o.convert(ctx, broker); err != nil {
		return sum, err
	}

	ledger, err := o.scrapeLedger(model.TableCashDeposit)
	if err != nil {
		return sum, err
	}

	res := reconcile.Reconcile(broker, ledger)
	o.noteDiagnostics(&sum, res, 0)

	modify, zero, add := res.ByAction()
	sum.None = len(res.Rows) - len(modify) - len(zero) - len(add)

	for _, row := range modify {
		// The display name for a cash row is its currency.
		if err := o.update(model.TableCashDeposit, row, row.JoinKey, jpyInt(row.Broker.AmountJPY)); err != nil {
			return sum, err
		}
		sum.Modified++
	}
	for _, row := range zero {
		if err := o.update(model.TableCashDeposit, row, zeroName(row), 0); err != nil {
			return sum, err
		}
		sum.Zeroed++
	}
	for _, row := range add {
		if err := o.create(row, asset.SubclassCashDeposit, row.JoinKey, decimal.NullDecimal{}); err != nil {
			return sum, err
		}
		sum.Added++
	}

	o.logSummary("cash", sum)
	return sum, nil
}

func (o *Orchestrator) syncEquity(ctx context.Context) (DomainSummary, error) {
	var sum DomainSummary

	rows, dropped, err := o.reports.Fetch(ctx, model.OpenPositions)
	if err != nil {
		return sum, fmt.Errorf("fetch open positions: %w", err)
	}
	broker := normalize.BrokerPositionRows(rows, o.log)
	if err := o.convert(ctx, broker); err != nil {
		return sum, err
	}

	ledger, err := o.scrapeLedger(model.TableEquity)
	if err != nil {
		return sum, err
	}

	res := reconcile.Reconcile(broker, ledger)
	o.noteDiagnostics(&sum, res, dropped)

	modify, zero, add := res.ByAction()
	sum.None = len(res.Rows) - len(modify) - len(zero) - len(add)

	for _, row := range modify {
		if err := o.update(model.TableEquity, row, asset.FormatName(*row.Broker), jpyInt(row.Broker.AmountJPY)); err != nil {
			return sum, err
		}
		sum.Modified++
	}
	for _, row := range zero {
		// Keep the name the row already has: it is all that identifies
		// a closed position once the value reads zero.
		if err := o.update(model.TableEquity, row, zeroName(row), 0); err != nil {
			return sum, err
		}
		sum.Zeroed++
	}
	for _, row := range add {
		subclass := asset.MapType(row.Broker.Currency, row.Broker.Category, row.Broker.SubCategory)
		if err := o.create(row, subclass, asset.FormatName(*row.Broker), row.Broker.CostBasisJPY); err != nil {
			return sum, err
		}
		sum.Added++
	}

	o.logSummary("equity", sum)
	return sum, nil
}

// convert fills AmountJPY and CostBasisJPY on every record. A rate
// failure here is fatal by design: it happens before any mutation.
func (o *Orchestrator) convert(ctx context.Context, records []model.BrokerRecord) error {
	for i := range records {
		var err error
		if records[i].AmountJPY, err = o.rates.ConvertJPY(ctx, records[i].Amount, records[i].Currency); err != nil {
			return fmt.Errorf("convert %s: %w", records[i].JoinKey, err)
		}
		if records[i].CostBasisJPY, err = o.rates.ConvertJPY(ctx, records[i].CostBasis, records[i].Currency); err != nil {
			return fmt.Errorf("convert %s cost basis: %w", records[i].JoinKey, err)
		}
	}
	return nil
}

// scrapeLedger reads the current document, parses one table, and
// resolves asset ids for rows whose change-button href was not already
// captured. Positions are re-derived freshly on every scrape.
func (o *Orchestrator) scrapeLedger(table model.LedgerTable) ([]model.LedgerRecord, error) {
	html, err := o.ui.HTML()
	if err != nil {
		return nil, err
	}
	rows, err := moneyforward.ParseTable(html, table)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", table, err)
	}
	for i := range rows {
		if rows[i].AssetID != "" {
			continue
		}
		id, err := o.ui.LookupAssetID(table, rows[i].Position)
		if err != nil {
			o.log.Warn().Err(err).Int("row", rows[i].Position).Str("table", string(table)).
				Msg("asset id lookup failed")
			continue
		}
		rows[i].AssetID = id
	}
	return normalize.LedgerRows(table, rows, o.log), nil
}

func (o *Orchestrator) update(table model.LedgerTable, row model.ReconciledRow, name string, valueJPY int64) error {
	if o.opts.DryRun {
		o.log.Info().Str("action", row.Action.String()).Str("key", row.JoinKey).
			Int64("value_jpy", valueJPY).Msg("dry-run: would update")
		return nil
	}
	if row.Ledger.AssetID == "" {
		return fmt.Errorf("update %s %q: no asset id resolved", table, row.JoinKey)
	}
	// Value-only update. The purchase price stays untouched so the
	// ledger keeps tracking gains against the original cost.
	return o.ui.UpdateAsset(table, row.Ledger.AssetID, name, valueJPY, decimal.NullDecimal{}, false)
}

func (o *Orchestrator) create(row model.ReconciledRow, subclass asset.Subclass, name string, costJPY decimal.NullDecimal) error {
	value := jpyInt(row.Broker.AmountJPY)
	if !row.Broker.AmountJPY.Valid {
		o.log.Warn().Str("key", row.JoinKey).Msg("creating row without a reported value")
	}
	if o.opts.DryRun {
		o.log.Info().Str("action", "ADD").Str("key", row.JoinKey).Str("subclass", subclass.Label()).
			Int64("value_jpy", value).Msg("dry-run: would create")
		return nil
	}
	return o.ui.CreateAsset(subclass, name, value, costJPY)
}

func (o *Orchestrator) noteDiagnostics(sum *DomainSummary, res reconcile.Result, dropped int) {
	sum.DroppedCategories = dropped
	sum.DuplicateKeys = res.DuplicateBroker + res.DuplicateLedger
	if dropped > 0 {
		o.log.Warn().Int("dropped", dropped).Msg("broker rows skipped for unsupported categories")
	}
	if sum.DuplicateKeys > 0 {
		o.log.Warn().Int("broker", res.DuplicateBroker).Int("ledger", res.DuplicateLedger).
			Msg("duplicate join keys collapsed, first occurrence kept")
	}
}

func (o *Orchestrator) logSummary(domain string, sum DomainSummary) {
	o.log.Info().Str("domain", domain).
		Int("none", sum.None).Int("modified", sum.Modified).
		Int("zeroed", sum.Zeroed).Int("added", sum.Added).
		Msg("domain synced")
}

// zeroName keeps the existing display name when zeroing a row out,
// falling back to the join key when the scrape produced none.
func zeroName(row model.ReconciledRow) string {
	if row.Ledger != nil && row.Ledger.Name != "" {
		return row.Ledger.Name
	}
	return row.JoinKey
}

func jpyInt(d decimal.NullDecimal) int64 {
	if !d.Valid {
		return 0
	}
	return d.Decimal.IntPart()
}
