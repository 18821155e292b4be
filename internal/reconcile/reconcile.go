// Package reconcile joins normalized broker records against normalized
// ledger records and classifies every joined row into the action the
// orchestrator must take. Classification is purely a function of the
// two inputs, so re-running after a partial failure re-derives exactly
// the remaining work.
package reconcile

import (
	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

// Result is the output of one reconciliation: the fully classified
// joined rows plus duplicate-key diagnostics. Rows keep ledger input
// order first, then broker-only keys in broker input order, so runs
// over identical inputs produce identical output.
type Result struct {
	Rows []model.ReconciledRow

	// Duplicate join keys found within one side. First occurrence wins;
	// later rows are dropped and counted here. Broker symbols already
	// embed option terms, so a nonzero count means a malformed report
	// or hand-entered ledger rows colliding with synced ones.
	DuplicateBroker int
	DuplicateLedger int
}

// Reconcile outer-joins broker rows against ledger rows on the join key
// and assigns exactly one action per key present on either side.
func Reconcile(broker []model.BrokerRecord, ledger []model.LedgerRecord) Result {
	var res Result

	brokerByKey := make(map[string]*model.BrokerRecord, len(broker))
	for i := range broker {
		if _, dup := brokerByKey[broker[i].JoinKey]; dup {
			res.DuplicateBroker++
			continue
		}
		brokerByKey[broker[i].JoinKey] = &broker[i]
	}

	ledgerByKey := make(map[string]*model.LedgerRecord, len(ledger))
	var ledgerKeys []string
	for i := range ledger {
		if _, dup := ledgerByKey[ledger[i].JoinKey]; dup {
			res.DuplicateLedger++
			continue
		}
		ledgerByKey[ledger[i].JoinKey] = &ledger[i]
		ledgerKeys = append(ledgerKeys, ledger[i].JoinKey)
	}

	seen := make(map[string]bool, len(ledgerKeys))
	for _, key := range ledgerKeys {
		seen[key] = true
		row := model.ReconciledRow{
			JoinKey: key,
			Broker:  brokerByKey[key],
			Ledger:  ledgerByKey[key],
		}
		row.Action = classify(row.Broker, row.Ledger)
		res.Rows = append(res.Rows, row)
	}
	for i := range broker {
		key := broker[i].JoinKey
		if seen[key] || brokerByKey[key] != &broker[i] {
			continue
		}
		seen[key] = true
		row := model.ReconciledRow{
			JoinKey: key,
			Broker:  &broker[i],
			Action:  classify(&broker[i], nil),
		}
		res.Rows = append(res.Rows, row)
	}

	return res
}

// classify assigns the action for one joined row. Values compare as
// integer yen; an absent value is unequal to every concrete value, so
// a broker row that stopped reporting a number zeroes out rather than
// modifying. A ledger-only row already sitting at zero needs nothing.
func classify(b *model.BrokerRecord, l *model.LedgerRecord) model.Action {
	switch {
	case b != nil && l != nil:
		if !b.AmountJPY.Valid {
			return model.ActionModifyToZero
		}
		if l.ValueJPY.Valid && b.AmountJPY.Decimal.IntPart() == l.ValueJPY.Decimal.IntPart() {
			return model.ActionNone
		}
		return model.ActionModify
	case l != nil:
		if l.ValueJPY.Valid && l.ValueJPY.Decimal.IsZero() {
			return model.ActionNone
		}
		return model.ActionModifyToZero
	default:
		return model.ActionAdd
	}
}

// ByAction groups the result rows in actuation order: MODIFY first,
// then MODIFY_TO_ZERO, then ADD. NONE rows are not returned.
func (r Result) ByAction() (modify, zero, add []model.ReconciledRow) {
	for _, row := range r.Rows {
		switch row.Action {
		case model.ActionModify:
			modify = append(modify, row)
		case model.ActionModifyToZero:
			zero = append(zero, row)
		case model.ActionAdd:
			add = append(add, row)
		}
	}
	return
}
