package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/quotedesk/internal/observability"
	"github.com/odyssey-erp/quotedesk/internal/quotes"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, MailModeQueue, cfg.MailMode)
	assert.Equal(t, []string{"EUR", "USD", "GBP", "CHF", "IDR", "JPY"}, cfg.Currencies)

	defaults, err := cfg.QuoteDefaults()
	require.NoError(t, err)
	assert.Equal(t, "EUR", defaults.Currency)
	assert.True(t, decimal.NewFromInt(22).Equal(defaults.TaxRate))
	assert.Equal(t, 30, defaults.ValidityDays)
	assert.Equal(t, quotes.PriorityMedium, defaults.Priority)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("DEFAULT_TAX_RATE", "7.5")
	t.Setenv("MAIL_MODE", "direct")
	t.Setenv("CURRENCIES", "USD,EUR")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, MailModeDirect, cfg.MailMode)
	assert.Equal(t, []string{"USD", "EUR"}, cfg.Currencies)
	defaults, err := cfg.QuoteDefaults()
	require.NoError(t, err)
	assert.Equal(t, "USD", defaults.Currency)
	assert.Equal(t, "7.5", defaults.TaxRate.String())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"mail mode": {"MAIL_MODE", "carrier-pigeon"},
		"tax rate":  {"DEFAULT_TAX_RATE", "abc"},
		"negative":  {"DEFAULT_TAX_RATE", "-1"},
		"priority":  {"DEFAULT_PRIORITY", "whenever"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "quotedesk", line["service"])
}

func newTestRouter(db Pinger) http.Handler {
	return NewRouter(RouterParams{
		Logger:   newLogger(nil, &bytes.Buffer{}),
		Config:   &Config{AppEnv: "test", RateLimit: 1000},
		Metrics:  observability.NewMetrics(),
		Database: db,
	})
}

func TestRouterHealthAndReadiness(t *testing.T) {
	router := newTestRouter(stubPinger{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Ratelimit-Limit"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	down := newTestRouter(stubPinger{err: errors.New("connection refused")})
	rr = httptest.NewRecorder()
	down.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouterMetricsAndNotFound(t *testing.T) {
	router := newTestRouter(nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "quotedesk_http_requests_total")
}

func TestRateKeyPrefersAccount(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	req.Header.Set("X-Account-ID", "5")
	key, err := rateKey(req)
	require.NoError(t, err)
	assert.Equal(t, "account:5", key)

	req = httptest.NewRequest(http.MethodGet, "/api/quotes", nil)
	key, err = rateKey(req)
	require.NoError(t, err)
	assert.Contains(t, key, "ip:")
}

func TestInTestModeReadsEnvironment(t *testing.T) {
	t.Setenv(TestModeEnv, "1")
	assert.True(t, InTestMode())
	t.Setenv(TestModeEnv, "false")
	assert.False(t, InTestMode())
	t.Setenv(TestModeEnv, "")
	assert.False(t, InTestMode())
}

func TestVersionIsNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, Version())
}
