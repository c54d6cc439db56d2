package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.SetConnections(3)
	r.SetOnlineIdentities(2)
	r.ObserveRPC("Login", "ok", 5*time.Millisecond)
	r.MessageSent()
	r.PushEvent("SecureMessage", "delivered")
	r.PushEvent("SecureMessage", "delivered")

	assert.Equal(t, 3.0, testutil.ToFloat64(r.connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.identities))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rpcRequests.WithLabelValues("Login", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.messagesSent))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.pushEvents.WithLabelValues("SecureMessage", "delivered")))

	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rr.Body.String(), "uchat_messages_sent_total 1")
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.SetConnections(1)
		r.SetOnlineIdentities(1)
		r.ObserveRPC("x", "ok", time.Second)
		r.MessageSent()
		r.PushEvent("x", "offline")
	})
	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rr.Code)
}
