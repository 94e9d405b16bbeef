package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.MessageStored("user")
	m.MessageStored("user")
	m.BotDecision("silenced")
	m.ObserveHub(func() int { return 3 }, func() int { return 1 }, func() int64 { return 5 })

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.botReplies.WithLabelValues("silenced")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `supportchat_messages_stored_total{sender="user"} 2`)
	assert.Contains(t, string(body), "supportchat_ws_clients 3")
	assert.Contains(t, string(body), "supportchat_ws_events_dropped_total 5")
}
