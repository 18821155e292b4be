package fxrate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateReportingCurrencyShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("JPY must not hit the rate source")
	}))
	t.Cleanup(srv.Close)

	s := New(zerolog.Nop(), WithBaseURL(srv.URL))
	rate, err := s.Rate(context.Background(), "JPY")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestRateFetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("from"))
		assert.Equal(t, "JPY", r.URL.Query().Get("to"))
		fmt.Fprint(w, `{"amount":1.0,"base":"USD","date":"2026-08-28","rates":{"JPY":156.23}}`)
	}))
	t.Cleanup(srv.Close)

	s := New(zerolog.Nop(), WithBaseURL(srv.URL))

	for i := 0; i < 3; i++ {
		rate, err := s.Rate(context.Background(), "USD")
		require.NoError(t, err)
		assert.Equal(t, "156.23", rate.String())
	}
	assert.Equal(t, int32(1), calls.Load(), "repeat lookups must come from cache")
}

func TestRateStaleFallback(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"rates":{"JPY":150.0}}`)
	}))
	t.Cleanup(srv.Close)

	// TTL short enough that the fresh entry expires mid-test.
	s := New(zerolog.Nop(), WithBaseURL(srv.URL), WithTTL(10*time.Millisecond))

	rate, err := s.Rate(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "150", rate.String())

	fail.Store(true)
	time.Sleep(20 * time.Millisecond)

	rate, err = s.Rate(context.Background(), "USD")
	require.NoError(t, err, "expired cache plus failing source must fall back to last known rate")
	assert.Equal(t, "150", rate.String())
}

func TestRateErrorWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	s := New(zerolog.Nop(), WithBaseURL(srv.URL))
	_, err := s.Rate(context.Background(), "USD")
	require.Error(t, err)
}

func TestConvertJPY(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"rates":{"JPY":150.5}}`)
	}))
	t.Cleanup(srv.Close)

	s := New(zerolog.Nop(), WithBaseURL(srv.URL))

	in := decimal.NullDecimal{Decimal: decimal.RequireFromString("1052.33"), Valid: true}
	got, err := s.ConvertJPY(context.Background(), in, "USD")
	require.NoError(t, err)
	require.True(t, got.Valid)
	// 1052.33 * 150.5 = 158375.665 → truncated, never rounded up.
	assert.Equal(t, int64(158375), got.Decimal.IntPart())
	assert.True(t, got.Decimal.IsInteger())

	absent, err := s.ConvertJPY(context.Background(), decimal.NullDecimal{}, "USD")
	require.NoError(t, err)
	assert.False(t, absent.Valid, "absent stays absent through conversion")
}
