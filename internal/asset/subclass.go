package asset

import (
	"strings"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

// Subclass is a MoneyForward manual-asset subclass id (the value of the
// asset_subclass_id select in the manual entry form). The taxonomy is
// closed: MoneyForward assigns these ids, we only pick from them.
type Subclass string

// Subclasses the mapper can select.
const (
	SubclassCashDeposit   Subclass = "51" // 保証金・証拠金
	SubclassDomesticStock Subclass = "14" // 国内株
	SubclassUSStock       Subclass = "15" // 米国株
	SubclassChinaStock    Subclass = "16" // 中国株
	SubclassForeignStock  Subclass = "55" // 外国株
	SubclassOtherStock    Subclass = "17" // その他株式
	SubclassIndexOption   Subclass = "23" // 指数OP
	SubclassIndexFuture   Subclass = "22" // 指数先物
	SubclassCommodityFut  Subclass = "26" // 商品先物
	SubclassCFD           Subclass = "24" // CFD
	SubclassOTCForex      Subclass = "18" // 店頭FX
	SubclassDomesticFund  Subclass = "12" // 投資信託
	SubclassForeignFund   Subclass = "52" // 外国投資信託
	SubclassGovtBond      Subclass = "7"  // 国債
	SubclassCorporateBond Subclass = "8"  // 社債
	SubclassForeignBond   Subclass = "9"  // 外債
	SubclassOtherBond     Subclass = "11" // その他債券
)

// subclassLabels is the complete id→label table from MoneyForward's
// manual asset entry form, kept whole so logs can name any id.
var subclassLabels = map[Subclass]string{
	// 預金・現金・暗号資産
	"49": "現金",
	"50": "電子マネー",
	"1":  "普通預金",
	"2":  "定期預金",
	"69": "積立定期預金",
	"3":  "外貨預金",
	"5":  "預り金・MRF",
	"51": "保証金・証拠金",
	"66": "暗号資産",
	"6":  "その他預金",
	// 株式(現物)
	"14": "国内株",
	"15": "米国株",
	"16": "中国株",
	"55": "外国株",
	"56": "未公開株式",
	"17": "その他株式",
	// 株式(信用)
	"62": "保証金・証拠金(信用)",
	"57": "国内株(信用)",
	"58": "米国株(信用)",
	"59": "中国株(信用)",
	"60": "外国株(信用)",
	"61": "その他株式(信用)",
	// 投資信託
	"12": "投資信託",
	"52": "外国投資信託",
	"53": "中期国債ファンド",
	"54": "MMF",
	"4":  "外貨MMF",
	"13": "その他投信",
	// 債券
	"7":  "国債",
	"8":  "社債",
	"9":  "外債",
	"10": "仕組み債",
	"11": "その他債券",
	"67": "ソーシャルレンディング",
	// FX
	"64": "証拠金(FX)",
	"18": "店頭FX",
	"19": "くりっく365",
	"20": "大証FX",
	"21": "その他FX",
	// 先物OP
	"63": "証拠金(先物OP)",
	"22": "指数先物",
	"23": "指数OP",
	"24": "CFD",
	"25": "くりっく株365",
	"26": "商品先物",
	"27": "その他先物OP",
	// ストックオプション
	"70": "国内株(ストックオプション)",
	// 保険
	"32": "積立型保険",
	// 不動産
	"28": "建物(自宅)",
	"29": "建物(投資・事業用)",
	"30": "土地(自宅)",
	"31": "土地(投資・事業用)",
	// 年金
	"33": "国民年金",
	"34": "厚生年金",
	"35": "共済年金",
	"36": "企業年金",
	"37": "厚生年金基金",
	"38": "国民年金基金",
	"39": "確定拠出年金",
	"40": "私的年金",
	// ポイント
	"48": "ポイント・マイル",
	// その他の資産
	"41": "自動車",
	"42": "貴金属・宝石類",
	"43": "その他",
}

// Label returns the Japanese form label for a subclass id, or the id
// itself when unknown.
func (s Subclass) Label() string {
	if l, ok := subclassLabels[s]; ok {
		return l
	}
	return string(s)
}

// MapType picks the MoneyForward subclass for an instrument. Total over
// the whole category enumeration: every input maps to something, with
// "other stock" as the final fallback. Subcategory checks take
// precedence over currency checks where both apply (bonds, futures).
func MapType(currency string, category model.AssetCategory, subCategory string) Subclass {
	switch category {
	case model.CategoryOption:
		return SubclassIndexOption
	case model.CategoryCFD:
		return SubclassCFD
	case model.CategorySpread:
		return SubclassCommodityFut
	case model.CategoryForex:
		return SubclassOTCForex
	case model.CategoryFuture:
		if strings.Contains(strings.ToUpper(subCategory), "COMMODITY") {
			return SubclassCommodityFut
		}
		return SubclassIndexFuture
	case model.CategoryFund:
		if currency == "JPY" {
			return SubclassDomesticFund
		}
		return SubclassForeignFund
	case model.CategoryBond:
		sub := strings.ToUpper(subCategory)
		switch {
		case strings.Contains(sub, "GOVT") || strings.Contains(sub, "GOVERNMENT"):
			return SubclassGovtBond
		case strings.Contains(sub, "CORP"):
			return SubclassCorporateBond
		case currency != "JPY":
			return SubclassForeignBond
		default:
			return SubclassOtherBond
		}
	}

	// Stocks, warrants, and anything unrecognized map by listing currency.
	switch currency {
	case "JPY":
		return SubclassDomesticStock
	case "USD":
		return SubclassUSStock
	case "CNY", "HKD":
		return SubclassChinaStock
	case "CAD", "GBP", "EUR", "AUD", "NZD", "SGD":
		return SubclassForeignStock
	default:
		return SubclassOtherStock
	}
}
