package escalation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultAckDir = "runs/acks"

type PollResult string

const (
	PollAcknowledged PollResult = "acknowledged"
	PollStillPending PollResult = "still_pending"
)

// Gate implements the ack-file protocol. A pending marker names the attempt
// waiting for a human; the human authors `<attempt-id>.ack` containing the
// attempt id; Consume invalidates the ack so it cannot authorize a second
// attempt. The gate never blocks: callers poll and exit.
type Gate struct {
	Dir string
}

func NewGate(dir string) *Gate {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultAckDir
	}
	return &Gate{Dir: dir}
}

func (g *Gate) Request(attemptID string) (string, error) {
	attemptID = strings.TrimSpace(attemptID)
	if attemptID == "" {
		return "", fmt.Errorf("attempt id is required")
	}
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create ack dir %s: %w", g.Dir, err)
	}
	path := g.pendingPath(attemptID)
	payload := fmt.Sprintf("attempt=%s requested_at=%s\n", attemptID, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		return "", fmt.Errorf("write pending marker %s: %w", path, err)
	}
	return path, nil
}

// Poll checks for an ack artifact whose content names the attempt id exactly.
// An ack authored for a different attempt never acknowledges this one.
func (g *Gate) Poll(attemptID string) (PollResult, error) {
	attemptID = strings.TrimSpace(attemptID)
	path := g.AckPath(attemptID)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PollStillPending, nil
		}
		return PollStillPending, fmt.Errorf("read ack %s: %w", path, err)
	}
	if strings.TrimSpace(string(b)) != attemptID {
		return PollStillPending, nil
	}
	return PollAcknowledged, nil
}

// Consume invalidates the ack artifact. The file is renamed rather than
// deleted so the audit trail keeps what the human authored.
func (g *Gate) Consume(attemptID string) error {
	attemptID = strings.TrimSpace(attemptID)
	ackPath := g.AckPath(attemptID)
	usedPath := ackPath + ".used"
	if err := os.Rename(ackPath, usedPath); err != nil {
		return fmt.Errorf("consume ack %s: %w", ackPath, err)
	}
	_ = os.Remove(g.pendingPath(attemptID))
	return nil
}

func (g *Gate) AckPath(attemptID string) string {
	return filepath.Join(g.Dir, sanitizeToken(attemptID)+".ack")
}

func (g *Gate) pendingPath(attemptID string) string {
	return filepath.Join(g.Dir, sanitizeToken(attemptID)+".pending")
}

func sanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var out strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			out.WriteRune(r)
		default:
			out.WriteRune('_')
		}
	}
	return out.String()
}
