package asset

import (
	"fmt"
	"time"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

// MaxNameLen is MoneyForward's limit on the asset name input field.
const MaxNameLen = 20

// FormatName builds the display name for a broker record.
//
// Stocks (and everything that is not an option) render as
// "AAPL (100)"; when symbol plus quantity overflow the limit the
// symbol is cut, never the quantity.
//
// Options render as "AAPL Jan24$150C (10)". If the assembled name
// overflows and the symbol is longer than 4 characters, the symbol is
// shortened to its first 3 characters and the name rebuilt once; the
// result is hard-capped at MaxNameLen regardless. A bad expiry or
// strike degrades to a raw substring; formatting never fails.
func FormatName(r model.BrokerRecord) string {
	symbol := r.Symbol
	if symbol == "" {
		symbol = "UNKNOWN"
	}
	qty := "0"
	if r.Position.Valid {
		qty = r.Position.Decimal.String()
	}

	if r.Category == model.CategoryOption {
		return formatOptionName(symbol, r, qty)
	}
	return formatStockName(symbol, qty)
}

func formatStockName(symbol, qty string) string {
	suffix := " (" + qty + ")"
	if len(symbol)+len(suffix) <= MaxNameLen {
		return symbol + suffix
	}
	keep := MaxNameLen - len(suffix)
	if keep < 1 {
		// Quantity alone overflows the field; fall back to a plain cut.
		return truncate(symbol+suffix, MaxNameLen)
	}
	return symbol[:keep] + suffix
}

func formatOptionName(symbol string, r model.BrokerRecord, qty string) string {
	expiry := formatExpiry(r.Expiry)
	strike := formatStrike(r)
	side := r.Side.Letter()

	name := fmt.Sprintf("%s %s%s%s (%s)", symbol, expiry, strike, side, qty)
	if len(name) > MaxNameLen && len(symbol) > 4 {
		name = fmt.Sprintf("%s %s%s%s (%s)", symbol[:3], expiry, strike, side, qty)
	}
	return truncate(name, MaxNameLen)
}

// formatExpiry renders an 8-digit date as a 3-letter month plus 2-digit
// year ("20240119" → "Jan24"). Unparsable input degrades to its first
// 6 characters.
func formatExpiry(expiry string) string {
	if expiry == "" {
		return ""
	}
	if len(expiry) == 8 {
		if d, err := time.Parse("20060102", expiry); err == nil {
			return d.Format("Jan") + d.Format("06")
		}
	}
	return truncate(expiry, 6)
}

// formatStrike renders "150.0" as "$150" and "152.5" as "$152.5".
// An unparsed strike degrades to the raw attribute text.
func formatStrike(r model.BrokerRecord) string {
	if r.Strike.Valid {
		d := r.Strike.Decimal
		if d.IsInteger() {
			return "$" + d.Truncate(0).String()
		}
		return "$" + d.StringFixed(1)
	}
	if r.StrikeRaw != "" {
		return "$" + r.StrikeRaw
	}
	return ""
}

// truncate cuts s to at most n runes. MoneyForward counts characters,
// not bytes, and zeroed-out rows can carry Japanese names.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
