package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics("test")

	m.ObserveTrade("buy", "success", 2*time.Second)
	m.ObserveTrade("buy", "success", time.Second)
	m.ObserveTrade("sell", "simulation_failed", time.Second)
	m.ObserveContention()
	m.ObserveFee("skipped")
	m.ObserveStoreOp("get", time.Millisecond, nil)
	m.ObserveStoreOp("get", time.Millisecond, errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues("buy", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues("sell", "simulation_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockContention))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeeTransfers.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpErrors.WithLabelValues("get")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTrade("buy", "success", time.Second)
		m.ObserveContention()
		m.ObserveFee("sent")
		m.ObserveRefetch()
		m.ObserveInput("buy", "awaiting_amount")
		m.ObserveStoreOp("set", time.Millisecond, nil)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("")
	m.ObserveContention()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "flashsol_lock_contention_total 1"))
}
