package moneyforward

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"

	"github.com/RetroHazard/ibkr-mf-sync/internal/asset"
	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

// maxValueLen is MoneyForward's limit on the value and purchase-price
// input fields.
const maxValueLen = 12

// changeButtonColumn is the 1-based column of the per-row change button,
// used when resolving a row position to its stable asset id.
var changeButtonColumn = map[model.LedgerTable]int{
	model.TableCashDeposit: 3,
	model.TableEquity:      11,
}

// LookupAssetID resolves the stable asset id for a row position in the
// currently rendered table. Positions shift on every mutation, so ids
// must be resolved before the first mutating actuation of a run and
// never cached across one.
func (s *Session) LookupAssetID(table model.LedgerTable, rowPosition int) (string, error) {
	col, ok := changeButtonColumn[table]
	if !ok {
		return "", fmt.Errorf("unknown ledger table %q", table)
	}
	xpath := fmt.Sprintf(`//*[@class="table table-bordered %s"]/tbody/tr[%d]/td[%d]/a`, table, rowPosition, col)

	var href string
	var found bool
	if err := chromedp.Run(s.ctx,
		chromedp.AttributeValue(xpath, "href", &href, &found, chromedp.BySearch),
	); err != nil {
		return "", fmt.Errorf("lookup asset id %s row %d: %w", table, rowPosition, err)
	}
	if !found || !strings.HasPrefix(href, assetIDPrefix) {
		return "", fmt.Errorf("lookup asset id %s row %d: no change button", table, rowPosition)
	}
	return strings.TrimPrefix(href, assetIDPrefix), nil
}

// UpdateAsset opens the row's change modal and rewrites name and
// current value. The purchase price is only touched when updateCost is
// set: leaving it alone is what keeps MoneyForward's gain/loss history
// meaningful for rows that merely changed value.
func (s *Session) UpdateAsset(table model.LedgerTable, assetID, name string, valueJPY int64, costJPY decimal.NullDecimal, updateCost bool) error {
	openBtn := fmt.Sprintf(`.table.table-bordered.%s .btn-asset-action[data-toggle="modal"][href="%s%s"]`,
		table, assetIDPrefix, assetID)
	modal := fmt.Sprintf(`//div[@id="modal_asset%s"]`, assetID)

	tasks := chromedp.Tasks{
		chromedp.Click(openBtn, chromedp.ByQuery),
		chromedp.WaitVisible(modal+`//input[@id="user_asset_det_name"]`, chromedp.BySearch),
		chromedp.SetValue(modal+`//input[@id="user_asset_det_name"]`, clampName(name), chromedp.BySearch),
		chromedp.SetValue(modal+`//input[@id="user_asset_det_value"]`, clampValue(valueJPY), chromedp.BySearch),
	}
	if updateCost && costJPY.Valid {
		tasks = append(tasks,
			chromedp.SetValue(modal+`//input[@id="user_asset_det_entried_price"]`, clampValue(costJPY.Decimal.IntPart()), chromedp.BySearch),
		)
	}
	tasks = append(tasks,
		chromedp.Click(modal+`//input[@name="commit"]`, chromedp.BySearch),
		s.settle(),
	)

	if err := chromedp.Run(s.ctx, tasks); err != nil && !isBenignDialogError(err) {
		return fmt.Errorf("update asset %s/%s: %w", table, assetID, err)
	}
	s.log.Info().Str("table", string(table)).Str("asset_id", assetID).
		Str("name", name).Int64("value_jpy", valueJPY).Bool("cost_updated", updateCost).
		Msg("asset updated")
	return nil
}

// CreateAsset fills the manual entry form and registers a new row with
// both current value and purchase price.
func (s *Session) CreateAsset(subclass asset.Subclass, name string, valueJPY int64, costJPY decimal.NullDecimal) error {
	cost := ""
	if costJPY.Valid {
		cost = clampValue(costJPY.Decimal.IntPart())
	}

	form := `//form[@id="new_user_asset_det"]`
	err := chromedp.Run(s.ctx,
		chromedp.Click(`//button[contains(., "手入力で資産を追加")]`, chromedp.BySearch),
		chromedp.WaitVisible(form+`//input[@id="user_asset_det_name"]`, chromedp.BySearch),
		chromedp.SetValue(form+`//select[@name="user_asset_det[asset_subclass_id]"]`, string(subclass), chromedp.BySearch),
		chromedp.SetValue(form+`//input[@id="user_asset_det_name"]`, clampName(name), chromedp.BySearch),
		chromedp.SetValue(form+`//input[@id="user_asset_det_value"]`, clampValue(valueJPY), chromedp.BySearch),
		chromedp.SetValue(form+`//input[@id="user_asset_det_entried_price"]`, cost, chromedp.BySearch),
		chromedp.Click(form+`//input[@name="commit"]`, chromedp.BySearch),
		s.settle(),
	)
	if err != nil && !isBenignDialogError(err) {
		return fmt.Errorf("create asset %q: %w", name, err)
	}
	s.log.Info().Str("subclass", subclass.Label()).Str("name", name).Int64("value_jpy", valueJPY).
		Msg("asset created")
	return nil
}

// DeleteAsset removes one row for good. Reconciliation never calls
// this; it exists for the explicit delete commands only.
func (s *Session) DeleteAsset(table model.LedgerTable, assetID string) error {
	sel := fmt.Sprintf(`.table.table-bordered.%s .btn-asset-action[data-method="delete"][href*="%s"]`, table, assetID)
	err := chromedp.Run(s.ctx,
		chromedp.Click(sel, chromedp.ByQuery),
		s.settle(),
	)
	if err != nil && !isBenignDialogError(err) {
		return fmt.Errorf("delete asset %s/%s: %w", table, assetID, err)
	}
	s.log.Info().Str("table", string(table)).Str("asset_id", assetID).Msg("asset deleted")
	return nil
}

// DeleteAllCashDeposits clicks delete buttons in the cash table until
// none remain. Explicit command only.
func (s *Session) DeleteAllCashDeposits() error {
	sel := fmt.Sprintf(`.table.table-bordered.%s .btn-asset-action[data-method="delete"]`, model.TableCashDeposit)
	for {
		var nodes []*cdp.Node
		if err := chromedp.Run(s.ctx,
			chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
		); err != nil {
			return fmt.Errorf("find delete buttons: %w", err)
		}
		if len(nodes) == 0 {
			return nil
		}

		err := chromedp.Run(s.ctx,
			chromedp.MouseClickNode(nodes[0]),
			s.settle(),
		)
		if err != nil && !isBenignDialogError(err) {
			return fmt.Errorf("delete cash deposit: %w", err)
		}
		s.log.Info().Int("remaining", len(nodes)-1).Msg("cash deposit deleted")
	}
}

func clampName(name string) string {
	runes := []rune(name)
	if len(runes) > asset.MaxNameLen {
		return string(runes[:asset.MaxNameLen])
	}
	return name
}

func clampValue(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) > maxValueLen {
		return s[:maxValueLen]
	}
	return s
}
