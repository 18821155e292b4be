// Package normalize adapts raw attribute rows from the two sources,
// Flex report attribute records and scraped ledger cell text, into the
// typed records the reconciliation engine joins.
package normalize

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/RetroHazard/ibkr-mf-sync/internal/asset"
	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

// MoneyForward column headers the ledger tables are keyed by.
const (
	HeaderCashName    = "種類・名称"
	HeaderCashBalance = "残高"
	HeaderEquityName  = "銘柄名"
	HeaderEquityValue = "評価額"
)

// ParseAmount coerces a display or attribute string to a decimal.
// Thousands separators and currency suffixes are stripped first.
// Missing or unparsable input yields Valid=false, never an error:
// "value not reported" must survive as a distinct state so the join
// can tell it apart from zero.
func ParseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "円")
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimSpace(s)
	if s == "" || s == "NONE" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// BrokerCashRows converts CashReport attribute records. Join key is the
// currency; the authoritative value is endingCash in native currency.
func BrokerCashRows(rows []map[string]string, log zerolog.Logger) []model.BrokerRecord {
	records := make([]model.BrokerRecord, 0, len(rows))
	for _, row := range rows {
		currency := row["currency"]
		if currency == "" {
			log.Warn().Msg("cash row without currency attribute, skipping")
			continue
		}
		rec := model.BrokerRecord{
			JoinKey:  currency,
			Currency: currency,
			Amount:   ParseAmount(row["endingCash"]),
		}
		if !rec.Amount.Valid {
			log.Debug().Str("currency", currency).Msg("cash row without parsable endingCash")
		}
		records = append(records, rec)
	}
	return records
}

// NameKey derives the join key from a rendered display name: the part
// before MoneyForward's "|" separator, minus the trailing " (qty)"
// suffix the name formatter appends. Position records on both sides
// run through this so the join round-trips through the 20-char name.
// For options the surviving prefix encodes symbol, expiry, strike and
// side, which disambiguates contracts sharing a symbol.
func NameKey(name string) string {
	s := strings.TrimSpace(strings.SplitN(name, "|", 2)[0])
	if idx := strings.LastIndex(s, " ("); idx > 0 && strings.HasSuffix(s, ")") {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// BrokerPositionRows converts OpenPositions attribute records. The join
// key is derived from the record's rendered display name (see NameKey);
// the authoritative value is positionValue in native currency, with
// costBasisMoney carried for newly created rows.
func BrokerPositionRows(rows []map[string]string, log zerolog.Logger) []model.BrokerRecord {
	records := make([]model.BrokerRecord, 0, len(rows))
	for _, row := range rows {
		symbol := row["symbol"]
		if symbol == "" {
			log.Warn().Str("description", row["description"]).Msg("position row without symbol attribute, skipping")
			continue
		}
		category, ok := model.ParseAssetCategory(row["assetCategory"])
		if !ok {
			log.Warn().Str("symbol", symbol).Str("assetCategory", row["assetCategory"]).
				Msg("position row with unrecognized asset category")
		}
		rec := model.BrokerRecord{
			Currency:    row["currency"],
			Category:    category,
			SubCategory: row["subCategory"],
			Symbol:      symbol,
			Description: row["description"],
			Position:    ParseAmount(row["position"]),
			Amount:      ParseAmount(row["positionValue"]),
			CostBasis:   ParseAmount(row["costBasisMoney"]),
			Strike:      ParseAmount(row["strike"]),
			StrikeRaw:   row["strike"],
			Expiry:      row["expiry"],
			Side:        model.OptionSide(row["putCall"]),
		}
		rec.JoinKey = NameKey(asset.FormatName(rec))
		records = append(records, rec)
	}
	return records
}

// LedgerRows converts scraped table rows for either ledger table. For
// the cash table the join key is the currency shown in the name column;
// for the equity table it is derived from the display name via NameKey
// so it matches the broker-side key by construction.
func LedgerRows(table model.LedgerTable, rows []model.ScrapedRow, log zerolog.Logger) []model.LedgerRecord {
	nameHeader, valueHeader := HeaderCashName, HeaderCashBalance
	if table == model.TableEquity {
		nameHeader, valueHeader = HeaderEquityName, HeaderEquityValue
	}

	records := make([]model.LedgerRecord, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Cells[nameHeader])
		joinKey := name
		if table == model.TableEquity {
			joinKey = NameKey(name)
		}
		if joinKey == "" {
			log.Warn().Int("row", row.Position).Str("table", string(table)).
				Msg("ledger row without a name cell, skipping")
			continue
		}
		rec := model.LedgerRecord{
			RowPosition: row.Position,
			AssetID:     row.AssetID,
			JoinKey:     joinKey,
			Name:        name,
			ValueJPY:    ParseAmount(row.Cells[valueHeader]),
		}
		if !rec.ValueJPY.Valid {
			log.Debug().Str("name", name).Msg("ledger row without parsable value")
		}
		records = append(records, rec)
	}
	return records
}
