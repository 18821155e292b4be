package model

import "github.com/shopspring/decimal"

// ReportKind selects which section of a Flex statement to extract.
type ReportKind string

const (
	CashReport    ReportKind = "CashReport"
	OpenPositions ReportKind = "OpenPositions"
)

// AssetCategory is IBKR's instrument classification. Only stocks and
// options are fetched from the broker today; the remaining categories
// exist so the asset-type mapping stays total if the report allow-list
// is ever widened.
type AssetCategory string

const (
	CategoryStock       AssetCategory = "STK"
	CategoryOption      AssetCategory = "OPT"
	CategoryFuture      AssetCategory = "FUT"
	CategoryCFD         AssetCategory = "CFD"
	CategoryWarrant     AssetCategory = "WAR"
	CategoryForex       AssetCategory = "SWP"
	CategoryFund        AssetCategory = "FND"
	CategoryBond        AssetCategory = "BND"
	CategorySpread      AssetCategory = "ICS"
	CategoryUnsupported AssetCategory = ""
)

// ParseAssetCategory maps a raw assetCategory attribute to the closed
// enumeration. Unknown strings come back as CategoryUnsupported with
// ok=false instead of being silently dropped.
func ParseAssetCategory(s string) (AssetCategory, bool) {
	switch AssetCategory(s) {
	case CategoryStock, CategoryOption, CategoryFuture, CategoryCFD,
		CategoryWarrant, CategoryForex, CategoryFund, CategoryBond, CategorySpread:
		return AssetCategory(s), true
	}
	return CategoryUnsupported, false
}

// OptionSide is the put/call side of an option contract, as reported
// in the putCall attribute ("C"/"P" or "CALL"/"PUT").
type OptionSide string

// Letter returns the single upper-cased side indicator used in display
// names ("C" or "P"), or "" when the side is absent.
func (s OptionSide) Letter() string {
	if s == "" {
		return ""
	}
	c := s[0]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return string(c)
}

// LedgerTable identifies one of the two MoneyForward manual-asset
// tables the sync operates on. The value is the table's CSS class.
type LedgerTable string

const (
	TableCashDeposit LedgerTable = "table-depo"
	TableEquity      LedgerTable = "table-eq"
)

// BrokerRecord is one normalized row from a Flex report: a cash balance
// per currency, or one open position. Immutable for the duration of a
// sync run. Absent numeric fields carry Valid=false; "not reported" and
// "zero" must stay distinguishable through the join.
type BrokerRecord struct {
	JoinKey     string // currency for cash, symbol for positions
	Currency    string
	Category    AssetCategory
	SubCategory string
	Symbol      string
	Description string

	Position  decimal.NullDecimal // quantity held
	Amount    decimal.NullDecimal // endingCash / positionValue, native currency
	CostBasis decimal.NullDecimal // costBasisMoney, native currency

	AmountJPY    decimal.NullDecimal // converted, integer-valued
	CostBasisJPY decimal.NullDecimal // converted, integer-valued

	// Option terms. StrikeRaw keeps the unparsed attribute so name
	// formatting can degrade instead of failing on a bad strike.
	Strike    decimal.NullDecimal
	StrikeRaw string
	Expiry    string // 8-digit YYYYMMDD as reported
	Side      OptionSide
}

// ScrapedRow is one raw row of a rendered ledger table: cell text keyed
// by column header, plus the 1-based position in the table as currently
// rendered. The position is not stable across mutations; it is only
// valid for asset-id lookup before the next mutating actuation.
type ScrapedRow struct {
	Position int
	AssetID  string
	Cells    map[string]string
}

// LedgerRecord is one normalized MoneyForward manual-asset row.
type LedgerRecord struct {
	RowPosition int
	AssetID     string // stable id assigned by MoneyForward, required for updates
	JoinKey     string
	Name        string              // raw display name as rendered
	ValueJPY    decimal.NullDecimal // integer-valued
}

// Action is the reconciliation verdict for one joined row.
type Action int

const (
	ActionNone Action = iota
	ActionModify
	ActionModifyToZero
	ActionAdd
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionModify:
		return "MODIFY"
	case ActionModifyToZero:
		return "MODIFY_TO_ZERO"
	case ActionAdd:
		return "ADD"
	}
	return "UNKNOWN"
}

// ReconciledRow is the outer join of a broker record and a ledger
// record sharing a join key. At least one side is always present.
type ReconciledRow struct {
	JoinKey string
	Broker  *BrokerRecord
	Ledger  *LedgerRecord
	Action  Action
}
