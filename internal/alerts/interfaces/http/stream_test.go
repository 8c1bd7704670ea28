package http

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	alertapp "andon-cloud/internal/alerts/application"
	alerts "andon-cloud/internal/alerts/domain"
)

func readEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestStreamHandler_SendsSnapshotThenAlerts(t *testing.T) {
	broker := NewSSEBroker()
	snapshot := func(context.Context, time.Time) (alerts.State, error) {
		return alerts.IdleState(), nil
	}
	server := httptest.NewServer(NewStreamHandler(broker, snapshot, WithHeartbeat(time.Hour)))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type got=%q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	name, data := readEvent(t, reader)
	if name != "ready" || !strings.Contains(data, `"phase":"idle"`) {
		t.Fatalf("unexpected ready event name=%s data=%s", name, data)
	}

	at := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	broker.Notify(context.Background(), alertapp.AlertEvent{
		Type: string(alerts.TransitionTriggered),
		State: alerts.State{
			Phase:       alerts.PhaseActive,
			TriggeredAt: at,
			ExpiresAt:   at.Add(10 * time.Minute),
			Reason:      "Health and Safety",
		},
		At: at,
	})
	name, data = readEvent(t, reader)
	if name != "alert" || !strings.Contains(data, `"type":"triggered"`) || !strings.Contains(data, `"phase":"active"`) {
		t.Fatalf("unexpected alert event name=%s data=%s", name, data)
	}
}

func TestStreamHandler_RejectsNonGet(t *testing.T) {
	rec := httptest.NewRecorder()
	NewStreamHandler(NewSSEBroker(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/alert/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestSSEBroker_UnsubscribeIsIdempotent(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	if broker.Clients() != 1 {
		t.Fatalf("clients got=%d want=1", broker.Clients())
	}
	broker.Unsubscribe(ch)
	broker.Unsubscribe(ch)
	if broker.Clients() != 0 {
		t.Fatalf("clients got=%d want=0", broker.Clients())
	}
	broker.Notify(context.Background(), alertapp.AlertEvent{Type: "expired"})
}
