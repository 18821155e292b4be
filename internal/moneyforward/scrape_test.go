package moneyforward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

const portfolioHTML = `<!DOCTYPE html>
<html><body>
<table class="table table-bordered table-depo">
  <tr><th>種類・名称</th><th>残高</th><th>変更</th><th>削除</th></tr>
  <tr>
    <td>USD</td><td>150,000円</td>
    <td><a class="btn-asset-action" data-toggle="modal" href="#modal_asset7">変更</a></td>
    <td><a class="btn-asset-action" data-method="delete" href="/assets/7">削除</a></td>
  </tr>
  <tr>
    <td>EUR</td><td>80,000円</td>
    <td><a class="btn-asset-action" data-toggle="modal" href="#modal_asset9">変更</a></td>
    <td><a class="btn-asset-action" data-method="delete" href="/assets/9">削除</a></td>
  </tr>
</table>
<table class="table table-bordered table-eq">
  <tr><th>銘柄名</th><th>評価額</th><th>変更</th><th>削除</th></tr>
  <tr>
    <td>AAPL (100)</td><td>2,850,000円</td>
    <td><a class="btn-asset-action" data-toggle="modal" href="#modal_asset42">変更</a></td>
    <td><a class="btn-asset-action" data-method="delete" href="/assets/42">削除</a></td>
  </tr>
</table>
</body></html>`

func TestParseTableCash(t *testing.T) {
	rows, err := ParseTable(portfolioHTML, model.TableCashDeposit)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, "7", rows[0].AssetID)
	assert.Equal(t, "USD", rows[0].Cells["種類・名称"])
	assert.Equal(t, "150,000円", rows[0].Cells["残高"])

	assert.Equal(t, 2, rows[1].Position)
	assert.Equal(t, "9", rows[1].AssetID)
}

func TestParseTableEquity(t *testing.T) {
	rows, err := ParseTable(portfolioHTML, model.TableEquity)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "42", rows[0].AssetID)
	assert.Equal(t, "AAPL (100)", rows[0].Cells["銘柄名"])
	assert.Equal(t, "2,850,000円", rows[0].Cells["評価額"])
}

func TestParseTableAbsentIsEmpty(t *testing.T) {
	rows, err := ParseTable(`<html><body><p>no assets yet</p></body></html>`, model.TableEquity)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseTableShortRowErrors(t *testing.T) {
	html := `<table class="table table-bordered table-depo">
  <tr><th>種類・名称</th><th>残高</th><th>変更</th><th>削除</th></tr>
  <tr><td>USD</td><td>1円</td></tr>
</table>`
	_, err := ParseTable(html, model.TableCashDeposit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cells")
}

func TestParseTableRowWithoutChangeButton(t *testing.T) {
	html := `<table class="table table-bordered table-depo">
  <tr><th>種類・名称</th><th>残高</th></tr>
  <tr><td>USD</td><td>1円</td></tr>
</table>`
	rows, err := ParseTable(html, model.TableCashDeposit)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].AssetID, "missing change button degrades to empty id")
}
