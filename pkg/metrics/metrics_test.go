package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Millisecond)
		m.SetLifecycleState("Listening")
		m.ObserveStorageConnect(time.Second, nil)
		m.IncStorageCloseErrors()
	})
	assert.Nil(t, m.Registry())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("GET", "/health", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "/health", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestSetLifecycleState_OnlyOneActive(t *testing.T) {
	m := New()

	m.SetLifecycleState("ConnectingStorage")
	m.SetLifecycleState("Listening")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.lifecycleState.WithLabelValues("Listening")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lifecycleState))
}

func TestStorageMetrics(t *testing.T) {
	m := New()

	m.ObserveStorageConnect(100*time.Millisecond, nil)
	m.ObserveStorageConnect(time.Second, errors.New("refused"))
	m.IncStorageCloseErrors()

	assert.Equal(t, 2, testutil.CollectAndCount(m.storageConnect))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageCloseErrors))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.SetLifecycleState("Listening")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `onchain_agent_lifecycle_state{state="Listening"} 1`))
}
