package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"medbattle-backend/internal/metrics"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := metrics.New()
	m.RoomCreated()
	m.RoomCreated()
	m.RoomRemoved()
	m.BattleCompleted("host", false)
	m.MessageReceived("answer")

	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("%v", err)
	}
	for _, want := range []string{
		"medbattle_active_rooms 1",
		"medbattle_rooms_created_total 2",
		`medbattle_battles_completed_total{forfeit="false",winner="host"} 1`,
		`medbattle_messages_received_total{type="answer"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output lacks %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	m.RoomCreated()
	m.RoomRemoved()
	m.RoomReaped()
	m.BattleCompleted("draw", true)
	m.MessageReceived("ping")
	m.MessageRateLimited()
}
