// Package flexquery fetches account snapshots from the IBKR Flex Web
// Service. A fetch is two HTTP round trips: SendRequest hands back a
// reference code, GetStatement is polled with it until the generated
// statement is ready.
package flexquery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/RetroHazard/ibkr-mf-sync/internal/model"
)

const (
	defaultSendRequestURL = "https://gdcdyn.interactivebrokers.com/Universal/servlet/FlexStatementService.SendRequest"
	apiVersion            = "3"

	// 1019 = statement generation in progress, keep polling.
	errCodeInProgress = "1019"
)

// Client talks to the Flex Web Service for one token/query pair.
type Client struct {
	httpClient     *http.Client
	sendRequestURL string
	token          string
	queryID        string
	pollInterval   time.Duration
	maxPolls       int
	log            zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSendRequestURL overrides the service endpoint (tests).
func WithSendRequestURL(u string) Option {
	return func(c *Client) { c.sendRequestURL = u }
}

// WithPolling overrides the GetStatement poll interval and attempt cap.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxPolls = maxPolls
	}
}

// New creates a Flex Web Service client.
func New(token, queryID string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		sendRequestURL: defaultSendRequestURL,
		token:          token,
		queryID:        queryID,
		pollInterval:   5 * time.Second,
		maxPolls:       12,
		log:            log.With().Str("component", "flexquery").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statementResponse is the envelope SendRequest and a not-yet-ready
// GetStatement both answer with.
type statementResponse struct {
	XMLName       xml.Name `xml:"FlexStatementResponse"`
	Status        string   `xml:"Status"`
	ReferenceCode string   `xml:"ReferenceCode"`
	URL           string   `xml:"Url"`
	ErrorCode     string   `xml:"ErrorCode"`
	ErrorMessage  string   `xml:"ErrorMessage"`
}

// Fetch downloads the statement and extracts the rows for one report
// kind. It returns the allow-listed attribute records plus the number
// of rows dropped for carrying an unsupported instrument category.
func (c *Client) Fetch(ctx context.Context, kind model.ReportKind) ([]map[string]string, int, error) {
	body, err := c.download(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, dropped, err := extractRows(body, kind)
	if err != nil {
		return nil, 0, err
	}
	c.log.Info().Str("report", string(kind)).Int("rows", len(rows)).Int("dropped", dropped).
		Msg("flex report fetched")
	return rows, dropped, nil
}

// download runs the SendRequest/GetStatement exchange and returns the
// raw FlexQueryResponse document.
func (c *Client) download(ctx context.Context) ([]byte, error) {
	ref, stmtURL, err := c.sendRequest(ctx)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}

		body, ready, err := c.getStatement(ctx, stmtURL, ref)
		if err != nil {
			return nil, err
		}
		if ready {
			return body, nil
		}
		c.log.Debug().Int("attempt", attempt+1).Msg("statement generation in progress")
	}
	return nil, fmt.Errorf("flex statement not ready after %d polls", c.maxPolls)
}

func (c *Client) sendRequest(ctx context.Context) (ref, stmtURL string, err error) {
	q := url.Values{}
	q.Set("t", c.token)
	q.Set("q", c.queryID)
	q.Set("v", apiVersion)

	body, err := c.get(ctx, c.sendRequestURL, q)
	if err != nil {
		return "", "", fmt.Errorf("flex send request: %w", err)
	}

	var resp statementResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", "", fmt.Errorf("parse send request response: %w", err)
	}
	if resp.Status != "Success" {
		return "", "", fmt.Errorf("flex send request rejected: code=%s %s", resp.ErrorCode, resp.ErrorMessage)
	}
	if resp.ReferenceCode == "" || resp.URL == "" {
		return "", "", fmt.Errorf("flex send request response missing reference code or statement url")
	}
	return resp.ReferenceCode, resp.URL, nil
}

// getStatement fetches once; ready=false means generation is still in
// progress and the caller should poll again.
func (c *Client) getStatement(ctx context.Context, stmtURL, ref string) (body []byte, ready bool, err error) {
	q := url.Values{}
	q.Set("t", c.token)
	q.Set("q", ref)
	q.Set("v", apiVersion)

	body, err = c.get(ctx, stmtURL, q)
	if err != nil {
		return nil, false, fmt.Errorf("flex get statement: %w", err)
	}

	// A pending or failed statement answers with the envelope instead
	// of the statement document.
	var resp statementResponse
	if err := xml.Unmarshal(body, &resp); err == nil && resp.XMLName.Local == "FlexStatementResponse" {
		if resp.ErrorCode == errCodeInProgress {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flex get statement failed: code=%s %s", resp.ErrorCode, resp.ErrorMessage)
	}
	return body, true, nil
}

func (c *Client) get(ctx context.Context, rawURL string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
