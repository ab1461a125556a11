package store

import (
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"ghostforge/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	if _, err := exec.LookPath("sqlite3"); err != nil {
		t.Skip("sqlite3 not available")
	}
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "index.sqlite"))
	if err := s.Init(); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

func TestAttemptRoundTrip(t *testing.T) {
	s := newTestStore(t)

	attempt := model.RepairAttempt{
		ID:        "attempt-1",
		Strategy:  "lint",
		Status:    model.AttemptStatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.CreateAttempt(attempt); err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	if err := s.UpdateAttemptStatus(attempt.ID, model.AttemptStatusApplied, "", true); err != nil {
		t.Fatalf("update attempt: %v", err)
	}

	got, err := s.GetAttempt(attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if got.Status != model.AttemptStatusApplied {
		t.Fatalf("expected applied status, got %s", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Fatalf("expected resolved_at to be set")
	}
	// All store timestamps are UTC; resolved_at must not drift to local time.
	if _, offset := got.ResolvedAt.Zone(); offset != 0 {
		t.Fatalf("expected UTC resolved_at, got offset %d", offset)
	}
}

func TestPendingAttemptForStrategy(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateAttempt(model.RepairAttempt{
		ID:        "attempt-old",
		Strategy:  "rewrite",
		Status:    model.AttemptStatusAwaitingAck,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("create old attempt: %v", err)
	}
	if err := s.CreateAttempt(model.RepairAttempt{
		ID:        "attempt-new",
		Strategy:  "rewrite",
		Status:    model.AttemptStatusAwaitingAck,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create new attempt: %v", err)
	}

	attempt, found, err := s.PendingAttemptForStrategy("rewrite")
	if err != nil {
		t.Fatalf("pending attempt lookup: %v", err)
	}
	if !found {
		t.Fatalf("expected pending attempt")
	}
	if attempt.ID != "attempt-new" {
		t.Fatalf("expected most recent pending attempt, got %s", attempt.ID)
	}

	_, found, err = s.PendingAttemptForStrategy("lint")
	if err != nil {
		t.Fatalf("pending attempt lookup for lint: %v", err)
	}
	if found {
		t.Fatalf("expected no pending lint attempt")
	}
}

func TestSnapshotIndexRoundTrip(t *testing.T) {
	s := newTestStore(t)

	snapshot := model.Snapshot{
		Label:      "boot",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		ContentRef: "/tmp/snapshots/boot.zip",
		Included:   []string{"core/registry.go", "commands/core.repair.yaml"},
	}
	if err := s.InsertSnapshot(snapshot); err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}

	got, found, err := s.GetSnapshot("boot")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !found {
		t.Fatalf("expected snapshot boot")
	}
	if got.ContentRef != snapshot.ContentRef {
		t.Fatalf("expected content ref %q, got %q", snapshot.ContentRef, got.ContentRef)
	}
	if len(got.Included) != 2 {
		t.Fatalf("expected manifest with 2 entries, got %v", got.Included)
	}

	count, err := s.CountSnapshots()
	if err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 snapshot, got %d", count)
	}
}

func TestSnapshotLabelReuseKeepsHistory(t *testing.T) {
	s := newTestStore(t)

	first := model.Snapshot{
		Label:      "pre-restore-boot",
		CreatedAt:  time.Now().UTC().Add(-time.Minute).Truncate(time.Second),
		ContentRef: "/tmp/snapshots/one.zip",
	}
	second := model.Snapshot{
		Label:      "pre-restore-boot",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		ContentRef: "/tmp/snapshots/two.zip",
	}
	if err := s.InsertSnapshot(first); err != nil {
		t.Fatalf("insert first snapshot: %v", err)
	}
	if err := s.InsertSnapshot(second); err != nil {
		t.Fatalf("insert second snapshot: %v", err)
	}

	count, err := s.CountSnapshots()
	if err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both index rows to survive label reuse, got %d", count)
	}

	got, found, err := s.GetSnapshot("pre-restore-boot")
	if err != nil || !found {
		t.Fatalf("get snapshot: found=%v err=%v", found, err)
	}
	if got.ContentRef != second.ContentRef {
		t.Fatalf("expected latest snapshot for reused label, got %q", got.ContentRef)
	}
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddEvent("warden", "block", `{"patterns":["socket"]}`); err != nil {
		t.Fatalf("add event: %v", err)
	}
	count, err := s.CountEvents()
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 audit event, got %d", count)
	}
}
