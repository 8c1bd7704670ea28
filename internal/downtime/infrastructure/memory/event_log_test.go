package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	downtime "andon-cloud/internal/downtime/domain"
)

func TestEventLog_ReadAllReturnsCopy(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	event, err := downtime.NewDowntimeEvent("Ana", "Quality", 10, time.Now())
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if err := log.Append(ctx, event); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, _ := log.ReadAll(ctx)
	events[0].DurationMinutes = 99
	again, _ := log.ReadAll(ctx)
	if again[0].DurationMinutes != 10 {
		t.Fatalf("log mutated through snapshot: %+v", again[0])
	}
}

func TestEventLog_RejectsInvalidEvent(t *testing.T) {
	log := NewEventLog()
	err := log.Append(context.Background(), downtime.DowntimeEvent{ReasonCode: "Quality", DurationMinutes: -1})
	if !errors.Is(err, downtime.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
