package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument(t *testing.T) {
	t.Parallel()
	m := New()
	e := echo.New()
	e.Use(m.Instrument())
	e.GET("/members/profile/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusForbidden, "no") })

	for _, path := range []string{"/members/profile/1", "/members/profile/2", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/members/profile/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/boom", "403")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestAuthEvent(t *testing.T) {
	t.Parallel()
	m := New()
	m.AuthEvent("sign_in", nil)
	m.AuthEvent("sign_in", errors.New("bad"))
	m.AuthEvent("sign_in", nil)
	m.GateRejected("verify")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authEvents.WithLabelValues("sign_in", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authEvents.WithLabelValues("sign_in", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateRejections.WithLabelValues("verify")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.AuthEvent("sign_in", nil) })
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New()
	m.AuthEvent("refresh", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `auth_events_total{event="refresh",outcome="success"} 1`))
}
