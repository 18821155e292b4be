package asset

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

func num(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func stock(symbol, qty string) model.BrokerRecord {
	return model.BrokerRecord{
		Category: model.CategoryStock,
		Symbol:   symbol,
		Position: num(qty),
	}
}

func option(symbol, expiry, strike, side, qty string) model.BrokerRecord {
	r := model.BrokerRecord{
		Category:  model.CategoryOption,
		Symbol:    symbol,
		Expiry:    expiry,
		StrikeRaw: strike,
		Side:      model.OptionSide(side),
		Position:  num(qty),
	}
	if d, err := decimal.NewFromString(strike); err == nil {
		r.Strike = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	return r
}

func TestFormatName(t *testing.T) {
	tests := []struct {
		name string
		rec  model.BrokerRecord
		want string
	}{
		{"stock", stock("AAPL", "100"), "AAPL (100)"},
		{"stock long symbol keeps quantity", stock("VERYLONGSYMBOLXYZ", "100"), "VERYLONGSYMBOL (100)"},
		{"option call", option("AAPL", "20240119", "150.0", "CALL", "10"), "AAPL Jan24$150C (10)"},
		{"option put", option("SPY", "20251219", "480.0", "P", "1"), "SPY Dec25$480P (1)"},
		{"option fractional strike", option("TM", "20240920", "152.5", "C", "2"), "TM Sep24$152.5C (2)"},
		{"option long symbol shortened", option("GOOGL", "20240119", "150.0", "CALL", "10"), "GOO Jan24$150C (10)"},
		{"option bad expiry degrades", option("AAPL", "2024-01", "150.0", "C", "1"), "AAPL 2024-0$150C (1)"},
		{"option bad strike degrades", option("SPY", "20240119", "x50", "C", "1"), "SPY Jan24$x50C (1)"},
		{"missing symbol", stock("", "5"), "UNKNOWN (5)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatName(tt.rec)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), MaxNameLen)
		})
	}
}

// A full option name lands exactly at the field limit.
func TestFormatNameOptionAtLimit(t *testing.T) {
	got := FormatName(option("AAPL", "20240119", "150.0", "CALL", "10"))
	assert.Equal(t, "AAPL Jan24$150C (10)", got)
	assert.LessOrEqual(t, len(got), 20)
}

// Length bound holds for every input, including junk.
func TestFormatNameNeverExceedsLimit(t *testing.T) {
	symbols := []string{"", "A", "AAPL", "GOOGL", "ANEXTREMELYLONGSYMBOL"}
	expiries := []string{"", "20240119", "garbage-date-string"}
	strikes := []string{"", "150.0", "152.5", "not-a-number", "123456789.75"}
	sides := []string{"", "C", "P", "CALL", "PUT"}
	quantities := []string{"1", "100", "1000000"}

	for _, sym := range symbols {
		for _, exp := range expiries {
			for _, str := range strikes {
				for _, side := range sides {
					for _, qty := range quantities {
						rec := option(sym, exp, str, side, qty)
						got := FormatName(rec)
						assert.LessOrEqual(t, len([]rune(got)), MaxNameLen,
							"symbol=%q expiry=%q strike=%q side=%q qty=%q -> %q", sym, exp, str, side, qty, got)

						rec.Category = model.CategoryStock
						got = FormatName(rec)
						assert.LessOrEqual(t, len([]rune(got)), MaxNameLen)
					}
				}
			}
		}
	}
}

func TestFormatNameAbsentQuantity(t *testing.T) {
	rec := model.BrokerRecord{Category: model.CategoryStock, Symbol: "AAPL"}
	assert.Equal(t, "AAPL (0)", FormatName(rec))
}
