package domain

import (
	"testing"
	"time"
)

func TestSlotAtTruncatesToMinute(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 8, 31, 8, 0, 42, 999, time.UTC)
	slot := SlotAt(ts)
	if slot.Date != "2026-08-31" || slot.Time != "08:00" {
		t.Fatalf("SlotAt = %v, want 2026-08-31 08:00", slot)
	}
	// Seconds never distinguish slots.
	if SlotAt(ts.Add(10*time.Second)) != slot {
		t.Fatal("same minute must map to the same slot")
	}
	if SlotAt(ts.Add(time.Minute)) == slot {
		t.Fatal("different minutes must map to different slots")
	}
}

func TestSlotString(t *testing.T) {
	t.Parallel()
	s := Slot{Date: "2026-08-31", Time: "08:00"}
	if got := s.String(); got != "2026-08-31 08:00" {
		t.Fatalf("String() = %q", got)
	}
}
