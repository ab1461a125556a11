package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ghostforge/internal/model"
)

const DefaultDBPath = ".forge/index.sqlite"

// SQLiteStore persists repair attempts, audit events, and the snapshot index
// by shelling out to the sqlite3 binary. No cgo driver, no open handles to
// manage across CLI invocations.
type SQLiteStore struct {
	DBPath     string
	SQLitePath string
}

func NewSQLiteStore(dbPath string) *SQLiteStore {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = DefaultDBPath
	}
	return &SQLiteStore{
		DBPath:     dbPath,
		SQLitePath: "sqlite3",
	}
}

func (s *SQLiteStore) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.DBPath), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS attempts (
  attempt_id TEXT PRIMARY KEY,
  strategy TEXT NOT NULL,
  status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  resolved_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS audit_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts TEXT NOT NULL,
  actor TEXT NOT NULL,
  action TEXT NOT NULL,
  detail TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  label TEXT NOT NULL,
  created_at TEXT NOT NULL,
  content_ref TEXT NOT NULL,
  manifest TEXT NOT NULL DEFAULT ''
);`

	return s.execSQL(schema)
}

func (s *SQLiteStore) CreateAttempt(attempt model.RepairAttempt) error {
	sql := fmt.Sprintf(
		`INSERT INTO attempts (attempt_id, strategy, status, reason, created_at, resolved_at)
VALUES (%s, %s, %s, %s, %s, %s);`,
		quote(attempt.ID),
		quote(attempt.Strategy),
		quote(string(attempt.Status)),
		quote(attempt.Reason),
		quote(attempt.CreatedAt.Format(time.RFC3339)),
		quote(formatTime(attempt.ResolvedAt)),
	)
	return s.execSQL(sql)
}

func (s *SQLiteStore) UpdateAttemptStatus(attemptID string, status model.AttemptStatus, reason string, markResolved bool) error {
	resolved := ""
	if markResolved {
		resolved = time.Now().UTC().Format(time.RFC3339)
	}
	sql := fmt.Sprintf(
		`UPDATE attempts
SET status=%s,
    reason=%s,
    resolved_at=CASE WHEN %s != '' THEN %s ELSE resolved_at END
WHERE attempt_id=%s;`,
		quote(string(status)),
		quote(reason),
		quote(resolved),
		quote(resolved),
		quote(attemptID),
	)
	return s.execSQL(sql)
}

func (s *SQLiteStore) GetAttempt(attemptID string) (model.RepairAttempt, error) {
	sql := fmt.Sprintf(
		`SELECT attempt_id, strategy, status, reason, created_at, resolved_at FROM attempts WHERE attempt_id=%s;`,
		quote(attemptID),
	)
	rows, err := s.queryJSON(sql)
	if err != nil {
		return model.RepairAttempt{}, err
	}
	if len(rows) == 0 {
		return model.RepairAttempt{}, fmt.Errorf("attempt %s not found", attemptID)
	}
	return parseAttempt(rows[0])
}

// PendingAttemptForStrategy returns the most recent non-terminal attempt for
// the strategy, so a re-invocation can resume an escalation wait instead of
// opening a new attempt.
func (s *SQLiteStore) PendingAttemptForStrategy(strategy string) (model.RepairAttempt, bool, error) {
	sql := fmt.Sprintf(
		`SELECT attempt_id, strategy, status, reason, created_at, resolved_at
FROM attempts
WHERE strategy=%s AND status=%s
ORDER BY created_at DESC LIMIT 1;`,
		quote(strategy), quote(string(model.AttemptStatusAwaitingAck)),
	)
	rows, err := s.queryJSON(sql)
	if err != nil {
		return model.RepairAttempt{}, false, err
	}
	if len(rows) == 0 {
		return model.RepairAttempt{}, false, nil
	}
	attempt, err := parseAttempt(rows[0])
	if err != nil {
		return model.RepairAttempt{}, false, err
	}
	return attempt, true, nil
}

func (s *SQLiteStore) ListAttempts(limit int) ([]model.RepairAttempt, error) {
	if limit <= 0 {
		limit = 10
	}
	sql := fmt.Sprintf(
		`SELECT attempt_id, strategy, status, reason, created_at, resolved_at
FROM attempts ORDER BY created_at DESC LIMIT %d;`,
		limit,
	)
	rows, err := s.queryJSON(sql)
	if err != nil {
		return nil, err
	}
	out := make([]model.RepairAttempt, 0, len(rows))
	for _, row := range rows {
		attempt, err := parseAttempt(row)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, nil
}

func (s *SQLiteStore) LatestAttempt() (model.RepairAttempt, bool, error) {
	attempts, err := s.ListAttempts(1)
	if err != nil {
		return model.RepairAttempt{}, false, err
	}
	if len(attempts) == 0 {
		return model.RepairAttempt{}, false, nil
	}
	return attempts[0], true, nil
}

func (s *SQLiteStore) AddEvent(actor string, action string, detail string) error {
	sql := fmt.Sprintf(
		`INSERT INTO audit_log (ts, actor, action, detail) VALUES (%s, %s, %s, %s);`,
		quote(time.Now().UTC().Format(time.RFC3339)), quote(actor), quote(action), quote(detail),
	)
	return s.execSQL(sql)
}

func (s *SQLiteStore) CountEvents() (int, error) {
	rows, err := s.queryJSON(`SELECT COUNT(*) AS n FROM audit_log;`)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return asInt(rows[0]["n"]), nil
}

// InsertSnapshot appends an index row. Labels are not unique: reusing one
// records a new snapshot and never touches an earlier row, so captured
// archives stay immutable.
func (s *SQLiteStore) InsertSnapshot(snapshot model.Snapshot) error {
	manifest, err := json.Marshal(snapshot.Included)
	if err != nil {
		return fmt.Errorf("marshal snapshot manifest: %w", err)
	}
	sql := fmt.Sprintf(
		`INSERT INTO snapshots (label, created_at, content_ref, manifest)
VALUES (%s, %s, %s, %s);`,
		quote(snapshot.Label),
		quote(snapshot.CreatedAt.Format(time.RFC3339)),
		quote(snapshot.ContentRef),
		quote(string(manifest)),
	)
	return s.execSQL(sql)
}

func (s *SQLiteStore) GetSnapshot(label string) (model.Snapshot, bool, error) {
	sql := fmt.Sprintf(
		`SELECT label, created_at, content_ref, manifest FROM snapshots
WHERE label=%s ORDER BY id DESC LIMIT 1;`,
		quote(label),
	)
	rows, err := s.queryJSON(sql)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	if len(rows) == 0 {
		return model.Snapshot{}, false, nil
	}
	snapshot, err := parseSnapshot(rows[0])
	if err != nil {
		return model.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *SQLiteStore) ListSnapshots(limit int) ([]model.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := fmt.Sprintf(
		`SELECT label, created_at, content_ref, manifest FROM snapshots ORDER BY id DESC LIMIT %d;`,
		limit,
	)
	rows, err := s.queryJSON(sql)
	if err != nil {
		return nil, err
	}
	out := make([]model.Snapshot, 0, len(rows))
	for _, row := range rows {
		snapshot, err := parseSnapshot(row)
		if err != nil {
			return nil, err
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func (s *SQLiteStore) CountSnapshots() (int, error) {
	rows, err := s.queryJSON(`SELECT COUNT(*) AS n FROM snapshots;`)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return asInt(rows[0]["n"]), nil
}

func (s *SQLiteStore) execSQL(sql string) error {
	cmd := exec.Command(s.SQLitePath, s.DBPath, sql)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sqlite exec failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (s *SQLiteStore) queryJSON(sql string) ([]map[string]any, error) {
	cmd := exec.Command(s.SQLitePath, "-json", s.DBPath, sql)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("sqlite query failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return []map[string]any{}, nil
	}
	rows := []map[string]any{}
	if err := json.Unmarshal(stdout.Bytes(), &rows); err != nil {
		return nil, fmt.Errorf("parse sqlite json output: %w", err)
	}
	return rows, nil
}

func parseAttempt(row map[string]any) (model.RepairAttempt, error) {
	createdAt, err := time.Parse(time.RFC3339, asString(row["created_at"]))
	if err != nil {
		return model.RepairAttempt{}, fmt.Errorf("parse attempt created_at: %w", err)
	}
	return model.RepairAttempt{
		ID:         asString(row["attempt_id"]),
		Strategy:   asString(row["strategy"]),
		Status:     model.AttemptStatus(asString(row["status"])),
		Reason:     asString(row["reason"]),
		CreatedAt:  createdAt,
		ResolvedAt: parseTimePtr(asString(row["resolved_at"])),
	}, nil
}

func parseSnapshot(row map[string]any) (model.Snapshot, error) {
	createdAt, err := time.Parse(time.RFC3339, asString(row["created_at"]))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse snapshot created_at: %w", err)
	}
	var included []string
	if manifest := strings.TrimSpace(asString(row["manifest"])); manifest != "" {
		if err := json.Unmarshal([]byte(manifest), &included); err != nil {
			return model.Snapshot{}, fmt.Errorf("parse snapshot manifest: %w", err)
		}
	}
	return model.Snapshot{
		Label:      asString(row["label"]),
		CreatedAt:  createdAt,
		ContentRef: asString(row["content_ref"]),
		Included:   included,
	}, nil
}

func quote(s string) string {
	s = strings.ReplaceAll(s, "'", "''")
	return "'" + s + "'"
}

func asString(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		if typed {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}

func asInt(v any) int {
	switch typed := v.(type) {
	case float64:
		return int(typed)
	case string:
		n, _ := strconv.Atoi(typed)
		return n
	case int:
		return typed
	default:
		return 0
	}
}

func parseTimePtr(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
