package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ayasync/backend/internal/config"
	"github.com/ayasync/backend/internal/database"
	"github.com/ayasync/backend/internal/realtime"
	"github.com/ayasync/backend/internal/services"
	"github.com/ayasync/backend/pkg/logger"
	"github.com/ayasync/backend/pkg/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			CORSOrigins:    []string{"http://localhost:3000"},
			BodyLimitBytes: 1024 * 1024,
		},
		RateLimit: config.RateLimitConfig{
			AuthMax:    2,
			AuthWindow: time.Minute,
		},
		Realtime: config.RealtimeConfig{
			SendBuffer:   8,
			PingInterval: time.Second,
		},
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger.InitWithOutput(io.Discard)
	utils.ConfigureJWT("server-test-secret", time.Hour)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db, config.AdminConfig{}))

	audit := services.NewAuditService(db, nil, 10)
	t.Cleanup(func() {
		audit.Close()
		_ = sqlDB.Close()
	})

	return New(Options{
		Config: testConfig(),
		DB:     db,
		Audit:  audit,
		Hub:    realtime.NewHub(8),
	})
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp, decoded
}

func TestHealthThroughAssembledApp(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["db"])
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["ok"])
	assert.NotEmpty(t, body["error"])
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	app := newTestApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
	assert.Equal(t, "websocket upgrade required", body["error"])
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	app := newTestApp(t)

	payload := map[string]any{"email": "nobody@example.com", "password": "password123"}
	for i := 0; i < 2; i++ {
		resp, _ := doRequest(t, app, http.MethodPost, "/api/auth/login", payload)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := doRequest(t, app, http.MethodPost, "/api/auth/login", payload)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too many requests, try again later", body["error"])

	resp, _ = doRequest(t, app, http.MethodGet, "/api/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "limiter must only cover auth routes")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	doRequest(t, app, http.MethodGet, "/api/version", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(raw), `ayasync_http_requests_total{method="GET",route="/api/version",status="200"}`))
}
