// Package moneyforward drives the MoneyForward ME manual-asset pages:
// scraping the two ledger tables out of rendered HTML and actuating
// create/update/delete through a headless Chrome session.
package moneyforward

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

// assetIDPrefix is the fragment the per-row change button links to;
// the stable asset id is whatever follows it.
const assetIDPrefix = "#modal_asset"

// ParseTable extracts one ledger table from a rendered document: cell
// text keyed by column header, 1-based row position, and the stable
// asset id taken from the row's change-button href. An absent table
// yields an empty result, not an error, since an empty ledger side is a
// legitimate state. A data row with fewer cells than the header row is
// structural corruption and does error.
func ParseTable(html string, table model.LedgerTable) ([]model.ScrapedRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	sel := doc.Find(fmt.Sprintf("table.table.table-bordered.%s", table)).First()
	if sel.Length() == 0 {
		return nil, nil
	}

	trs := sel.Find("tr")
	if trs.Length() == 0 {
		return nil, nil
	}

	var headers []string
	trs.First().Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(th.Text()))
	})

	var rows []model.ScrapedRow
	var parseErr error
	trs.Slice(1, trs.Length()).Each(func(i int, tr *goquery.Selection) {
		if parseErr != nil {
			return
		}
		tds := tr.Find("td")
		if tds.Length() < len(headers) {
			parseErr = fmt.Errorf("table %s row %d has %d cells for %d headers", table, i+1, tds.Length(), len(headers))
			return
		}

		cells := make(map[string]string, len(headers))
		for c, h := range headers {
			cells[h] = strings.TrimSpace(tds.Eq(c).Text())
		}

		row := model.ScrapedRow{
			Position: i + 1,
			Cells:    cells,
		}
		if href, ok := tr.Find(`a[href^="` + assetIDPrefix + `"]`).First().Attr("href"); ok {
			row.AssetID = strings.TrimPrefix(href, assetIDPrefix)
		}
		rows = append(rows, row)
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}
