package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveAccepted()
	m.ObserveRejected("arity")
	m.ObserveRejected("arity")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptsValidated.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReceiptsValidated.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("arity")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveAccepted()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `receipts_validated_total{outcome="accepted"} 1`)
}
