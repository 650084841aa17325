package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/health", "200").Inc()
	RealtimeEventsPublished.WithLabelValues("ping").Inc()

	app := fiber.New()
	app.Get("/metrics", Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "ayasync_http_requests_total"))
	assert.True(t, strings.Contains(string(body), "ayasync_realtime_events_published_total"))
}

func TestRealtimeGauge(t *testing.T) {
	before := testutil.ToFloat64(RealtimeSessions)
	RealtimeSessions.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RealtimeSessions))
	RealtimeSessions.Dec()
	assert.Equal(t, before, testutil.ToFloat64(RealtimeSessions))
}
