package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

func TestDigestJSON(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatalf("empty payload should have empty digest")
	}
	first := DigestJSON([]byte(`{"events":3}`))
	second := DigestJSON([]byte(`{"events":3}`))
	if first == "" || first != second || len(first) != 64 {
		t.Fatalf("digest not stable: %s %s", first, second)
	}
}

func TestStdLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLogger(log.New(&buf, "", 0))
	err := logger.Log(context.Background(), Entry{
		Actor:        "lead-7",
		Role:         "admin",
		Action:       ActionLogReset,
		ResourceType: "event_log",
		Metadata:     json.RawMessage(`{"events":3}`),
	})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "action=log.reset") || !strings.Contains(out, `actor="lead-7"`) || !strings.Contains(out, "id=audit-") {
		t.Fatalf("unexpected audit line: %s", out)
	}
}

func TestRepository_NilDB(t *testing.T) {
	if NewRepository(nil) != nil {
		t.Fatalf("expected nil repository for nil db")
	}
	var repo *Repository
	if err := repo.Log(context.Background(), Entry{}); err == nil {
		t.Fatalf("expected error for nil repository")
	}
}
