package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCountAndServe(t *testing.T) {
	m := NewMetrics("aide_test")
	m.ObserveDispatch("joke", 3*time.Millisecond)
	m.ObserveDispatch("joke", time.Millisecond)
	m.StoreError("insert_task")
	m.ReminderDelivered()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `aide_test_intents_total{intent="joke"} 2`)
	assert.Contains(t, string(body), `aide_test_store_errors_total{op="insert_task"} 1`)
	assert.Contains(t, string(body), `aide_test_reminders_delivered_total 1`)
	assert.Contains(t, string(body), `aide_test_dispatch_duration_seconds_count 2`)

	snap := m.Latency()
	require.Len(t, snap.Intents, 1)
	assert.Equal(t, "joke", snap.Intents[0].Intent)
	assert.Equal(t, 2, snap.Intents[0].Samples)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "store_error:insert_task", snap.Events[0].Name)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch("x", time.Second)
		m.ReminderSet()
		m.ReminderFailed()
		m.ServiceError("weather")
		m.SilencePrompt()
		m.SetBridgeClients(2)
		_ = m.Latency()
	})
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = NewMetrics("aide")
		_ = NewMetrics("aide")
	})
}
