package escalation

import (
	"os"
	"testing"
)

func TestRequestWritesPendingMarker(t *testing.T) {
	gate := NewGate(t.TempDir())
	path, err := gate.Request("A1")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected pending marker at %s: %v", path, err)
	}
}

func TestPollRequiresMatchingAck(t *testing.T) {
	gate := NewGate(t.TempDir())
	if _, err := gate.Request("A1"); err != nil {
		t.Fatalf("request: %v", err)
	}

	result, err := gate.Poll("A1")
	if err != nil {
		t.Fatalf("poll without ack: %v", err)
	}
	if result != PollStillPending {
		t.Fatalf("expected still pending before ack, got %s", result)
	}

	// An ack naming a different attempt must not acknowledge this one.
	if err := os.WriteFile(gate.AckPath("A1"), []byte("A2\n"), 0o644); err != nil {
		t.Fatalf("write mismatched ack: %v", err)
	}
	result, err = gate.Poll("A1")
	if err != nil {
		t.Fatalf("poll with mismatched ack: %v", err)
	}
	if result != PollStillPending {
		t.Fatalf("expected mismatched ack to stay pending, got %s", result)
	}

	if err := os.WriteFile(gate.AckPath("A1"), []byte("A1\n"), 0o644); err != nil {
		t.Fatalf("write ack: %v", err)
	}
	result, err = gate.Poll("A1")
	if err != nil {
		t.Fatalf("poll with ack: %v", err)
	}
	if result != PollAcknowledged {
		t.Fatalf("expected acknowledged, got %s", result)
	}
}

func TestConsumeIsSingleUse(t *testing.T) {
	gate := NewGate(t.TempDir())
	if _, err := gate.Request("A1"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := os.WriteFile(gate.AckPath("A1"), []byte("A1"), 0o644); err != nil {
		t.Fatalf("write ack: %v", err)
	}

	if err := gate.Consume("A1"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	result, err := gate.Poll("A1")
	if err != nil {
		t.Fatalf("poll after consume: %v", err)
	}
	if result != PollStillPending {
		t.Fatalf("expected consumed ack to no longer acknowledge, got %s", result)
	}
	if err := gate.Consume("A1"); err == nil {
		t.Fatalf("expected second consume to fail")
	}
}
