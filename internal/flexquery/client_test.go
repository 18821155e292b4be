package flexquery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

const sampleStatement = `<FlexQueryResponse queryName="mf-sync" type="AF">
  <FlexStatements count="1">
    <FlexStatement accountId="U1234567" fromDate="20240101" toDate="20240131">
      <CashReport>
        <CashReportCurrency accountId="U1234567" currency="BASE_SUMMARY" endingCash="99999"/>
        <CashReportCurrency accountId="U1234567" currency="USD" endingCash="1052.33" secret="drop-me"/>
        <CashReportCurrency accountId="U1234567" currency="JPY" endingCash="150000"/>
      </CashReport>
      <OpenPositions>
        <OpenPosition assetCategory="STK" symbol="AAPL" currency="USD" position="100"
          positionValue="19000.50" costBasisMoney="15000"/>
        <OpenPosition assetCategory="OPT" symbol="AAPL" currency="USD" position="10"
          positionValue="5000" costBasisMoney="3000" strike="150.0" expiry="20240119" putCall="C"/>
        <OpenPosition assetCategory="FUT" symbol="ESH4" currency="USD" position="1" positionValue="240000"/>
        <OpenPosition assetCategory="BND" symbol="T 4.25" currency="USD" position="10" positionValue="9800"/>
      </OpenPositions>
    </FlexStatement>
  </FlexStatements>
</FlexQueryResponse>`

// newFlexServer serves the two-step protocol: SendRequest at /send,
// GetStatement at /stmt, returning "in progress" pendingPolls times.
func newFlexServer(t *testing.T, pendingPolls int) *httptest.Server {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()

	var srv *httptest.Server
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("t"))
		assert.Equal(t, "q1", r.URL.Query().Get("q"))
		fmt.Fprintf(w, `<FlexStatementResponse timestamp="now">
  <Status>Success</Status>
  <ReferenceCode>ref-42</ReferenceCode>
  <Url>%s/stmt</Url>
</FlexStatementResponse>`, srv.URL)
	})
	mux.HandleFunc("/stmt", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ref-42", r.URL.Query().Get("q"))
		if int(polls.Add(1)) <= pendingPolls {
			fmt.Fprint(w, `<FlexStatementResponse>
  <Status>Warn</Status>
  <ErrorCode>1019</ErrorCode>
  <ErrorMessage>Statement generation in progress</ErrorMessage>
</FlexStatementResponse>`)
			return
		}
		fmt.Fprint(w, sampleStatement)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return New("tok", "q1", zerolog.Nop(),
		WithSendRequestURL(srv.URL+"/send"),
		WithPolling(time.Millisecond, 5),
	)
}

func TestFetchCashReport(t *testing.T) {
	c := newTestClient(newFlexServer(t, 0))

	rows, dropped, err := c.Fetch(context.Background(), model.CashReport)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, rows, 2, "BASE_SUMMARY must be skipped")

	assert.Equal(t, "USD", rows[0]["currency"])
	assert.Equal(t, "1052.33", rows[0]["endingCash"])
	_, leaked := rows[0]["secret"]
	assert.False(t, leaked, "attributes outside the allow-list must not survive")
}

func TestFetchOpenPositions(t *testing.T) {
	c := newTestClient(newFlexServer(t, 0))

	rows, dropped, err := c.Fetch(context.Background(), model.OpenPositions)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped, "FUT and BND rows are unsupported")
	require.Len(t, rows, 2)

	assert.Equal(t, "STK", rows[0]["assetCategory"])
	assert.Equal(t, "OPT", rows[1]["assetCategory"])
	assert.Equal(t, "20240119", rows[1]["expiry"])
}

func TestFetchPollsUntilReady(t *testing.T) {
	c := newTestClient(newFlexServer(t, 2))

	rows, _, err := c.Fetch(context.Background(), model.CashReport)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestFetchGivesUpAfterMaxPolls(t *testing.T) {
	c := newTestClient(newFlexServer(t, 100))

	_, _, err := c.Fetch(context.Background(), model.CashReport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}

func TestFetchSendRequestRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<FlexStatementResponse>
  <Status>Fail</Status>
  <ErrorCode>1012</ErrorCode>
  <ErrorMessage>Token has expired.</ErrorMessage>
</FlexStatementResponse>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(srv)
	_, _, err := c.Fetch(context.Background(), model.CashReport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1012")
}

func TestExtractRowsUnknownKind(t *testing.T) {
	_, _, err := extractRows([]byte(sampleStatement), model.ReportKind("Trades"))
	require.Error(t, err)
}
