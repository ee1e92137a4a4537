package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilServiceIsNoop(t *testing.T) {
	var s *metrics.Service

	assert.NotPanics(t, func() {
		s.ObserveRPC("tol_getNonce", time.Millisecond, nil)
		s.Submission("self-signed", "accepted")
		s.PollAttempt()
		s.PollOutcome("confirmed")
		s.GroupOutcome("add", "sent")
	})
}

func TestCounters(t *testing.T) {
	s := metrics.New()

	s.Submission("self-signed", "accepted")
	s.Submission("self-signed", "accepted")
	s.Submission("delegated", "error")
	s.PollAttempt()
	s.GroupOutcome("add", "lock_failed")

	assert.InDelta(t, 2, testutil.ToFloat64(s.Submissions().WithLabelValues("self-signed", "accepted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.Submissions().WithLabelValues("delegated", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.PollAttempts()), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.GroupOutcomes().WithLabelValues("add", "lock_failed")), 0)
}

func TestHandler(t *testing.T) {
	s := metrics.New()
	s.ObserveRPC("tol_getNonce", time.Millisecond, nil)
	s.ObserveRPC("tol_getNonce", time.Millisecond, errors.New("boom"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rpc_calls_total{method="tol_getNonce",result="ok"} 1`)
	assert.Contains(t, string(body), `rpc_calls_total{method="tol_getNonce",result="error"} 1`)
}
