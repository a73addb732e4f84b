package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updates, "expected updates channel to be initialized")

	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler registered for GET /debug/vars")
}

func TestStatsUpdaterApplyUpdates(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric("ActiveSessions")

	su.Incr("ActiveSessions")
	su.Incr("ActiveSessions")
	su.Decr("ActiveSessions")

	// Stop closes the channel so the drain below terminates
	su.Stop()
	su.applyUpdates()

	counter, ok := su.vars.Get("ActiveSessions").(*expvar.Int)
	require.True(t, ok, "expected a registered counter")
	assert.Equal(t, int64(1), counter.Value(), "expected increments and decrements applied in order")
}

func TestStatsUpdaterUnregisteredMetric(t *testing.T) {
	su := NewStatsUpdater(http.NewServeMux())
	su.RegisterMetric("ActiveSessions")

	su.Incr("NoSuchMetric")
	su.Incr("ActiveSessions")

	su.Stop()
	su.applyUpdates()

	counter := su.vars.Get("ActiveSessions").(*expvar.Int)
	assert.Equal(t, int64(1), counter.Value(), "expected the unknown update dropped, not fatal")
}

func TestExpvarHandler(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric("MessagesDelivered")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "expected ok")

	var data map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&data))
	assert.Contains(t, data, "MessagesDelivered", "expected the registered metric exposed")
	assert.Contains(t, data, "Uptime", "expected the uptime gauge exposed")
}
