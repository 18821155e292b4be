package flexquery

import (
	"encoding/xml"
	"fmt"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

// attributesToKeep is the allow-list of statement attributes that
// survive extraction. Everything else the report carries is discarded
// at this boundary.
var attributesToKeep = []string{
	"accountId",
	"currency",
	"fromDate",
	"toDate",
	"reportDate",
	"endingCash",
	"assetCategory",
	"subCategory",
	"symbol",
	"description",
	"listingExchange",
	"openPrice",
	"costBasisPrice",
	"costBasisMoney",
	"side",
	"positionValue",
	"fifoPnlUnrealized",
	"position",
	"strike",
	"expiry",
	"putCall",
}

// supportedCategories are the instrument categories the sync handles
// today. Positions in other categories are dropped with a diagnostic
// count rather than an error.
var supportedCategories = map[string]bool{
	string(model.CategoryStock):  true,
	string(model.CategoryOption): true,
}

// attrElement captures every XML attribute of a statement row.
type attrElement struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type flexStatement struct {
	CashRows     []attrElement `xml:"CashReport>CashReportCurrency"`
	PositionRows []attrElement `xml:"OpenPositions>OpenPosition"`
}

type flexQueryResponse struct {
	XMLName    xml.Name        `xml:"FlexQueryResponse"`
	Statements []flexStatement `xml:"FlexStatements>FlexStatement"`
}

// extractRows pulls the allow-listed attribute records for one report
// kind out of a FlexQueryResponse document. dropped counts position
// rows skipped for an unsupported instrument category.
func extractRows(body []byte, kind model.ReportKind) (rows []map[string]string, dropped int, err error) {
	var doc flexQueryResponse
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("parse flex statement: %w", err)
	}

	for _, stmt := range doc.Statements {
		switch kind {
		case model.CashReport:
			for _, el := range stmt.CashRows {
				row := keepAttrs(el)
				// BASE_SUMMARY is the report's own aggregate, not a balance.
				if row["currency"] == "BASE_SUMMARY" {
					continue
				}
				rows = append(rows, row)
			}
		case model.OpenPositions:
			for _, el := range stmt.PositionRows {
				row := keepAttrs(el)
				if !supportedCategories[row["assetCategory"]] {
					dropped++
					continue
				}
				rows = append(rows, row)
			}
		default:
			return nil, 0, fmt.Errorf("unknown report kind %q", kind)
		}
	}
	return rows, dropped, nil
}

func keepAttrs(el attrElement) map[string]string {
	byName := make(map[string]string, len(el.Attrs))
	for _, a := range el.Attrs {
		byName[a.Name.Local] = a.Value
	}
	row := make(map[string]string, len(attributesToKeep))
	for _, name := range attributesToKeep {
		if v, ok := byName[name]; ok {
			row[name] = v
		}
	}
	return row
}
