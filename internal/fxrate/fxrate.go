// Package fxrate resolves conversion rates into the reporting currency.
// Rates are cached for an hour; when a refresh fails, the last known
// rate is served instead so a flaky rate source cannot abort a sync
// that already has a usable number.
package fxrate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReportingCurrency is the fixed target currency of every conversion.
const ReportingCurrency = "JPY"

const defaultBaseURL = "https://api.frankfurter.app"

// Service fetches and caches latest rates against ReportingCurrency.
type Service struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.Cache
	log        zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.httpClient = hc }
}

// WithBaseURL overrides the rate source endpoint (tests).
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = u }
}

// WithTTL overrides how long a fetched rate is considered fresh.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cache = cache.New(ttl, 2*ttl) }
}

// New creates a rate service with a 1-hour fresh window.
func New(log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		cache:      cache.New(time.Hour, 2*time.Hour),
		log:        log.With().Str("component", "fxrate").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rate returns the latest rate from currency into ReportingCurrency.
// The reporting currency itself short-circuits to 1 without a lookup.
func (s *Service) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	if currency == ReportingCurrency {
		return decimal.NewFromInt(1), nil
	}

	if v, ok := s.cache.Get(currency); ok {
		return v.(decimal.Decimal), nil
	}

	rate, err := s.fetch(ctx, currency)
	if err != nil {
		// Stale fallback: a previously fetched rate outlives its fresh
		// window under the "stale:" key and covers source outages.
		if v, ok := s.cache.Get("stale:" + currency); ok {
			s.log.Warn().Err(err).Str("currency", currency).Msg("rate fetch failed, using last known rate")
			return v.(decimal.Decimal), nil
		}
		return decimal.Decimal{}, fmt.Errorf("fx rate %s/%s: %w", currency, ReportingCurrency, err)
	}

	s.cache.Set(currency, rate, cache.DefaultExpiration)
	s.cache.Set("stale:"+currency, rate, cache.NoExpiration)
	s.log.Debug().Str("currency", currency).Str("rate", rate.String()).Msg("rate fetched")
	return rate, nil
}

type ratesResponse struct {
	Rates map[string]json.Number `json:"rates"`
}

func (s *Service) fetch(ctx context.Context, currency string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/latest?from=%s&to=%s", s.baseURL, currency, ReportingCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse rate response: %w", err)
	}
	raw, ok := body.Rates[ReportingCurrency]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("rate response missing %s", ReportingCurrency)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse rate %q: %w", raw, err)
	}
	return rate, nil
}

// ConvertJPY converts a native-currency amount to integer yen using the
// latest rate for the currency. Fractional yen is truncated: the target
// ledger cannot represent it.
func (s *Service) ConvertJPY(ctx context.Context, amount decimal.NullDecimal, currency string) (decimal.NullDecimal, error) {
	if !amount.Valid {
		return decimal.NullDecimal{}, nil
	}
	rate, err := s.Rate(ctx, currency)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{
		Decimal: amount.Decimal.Mul(rate).Truncate(0),
		Valid:   true,
	}, nil
}
