package repair

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AcquireProjectLock takes the advisory lock shared by repair execution and
// snapshot create/restore on one project. Contention fails fast with
// BusyError; there is no queue and no backoff.
func AcquireProjectLock(lockDir string, operation string) (func(), error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lockPath := filepath.Join(lockDir, "kernel.lock")
	payload := fmt.Sprintf("pid=%d operation=%s at=%s", os.Getpid(), strings.TrimSpace(operation), time.Now().Format(time.RFC3339))
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			holderBytes, _ := os.ReadFile(lockPath)
			return nil, &BusyError{
				Operation: operation,
				LockPath:  lockPath,
				Holder:    strings.TrimSpace(string(holderBytes)),
			}
		}
		return nil, fmt.Errorf("acquire project lock %s: %w", lockPath, err)
	}
	if _, err := lockFile.WriteString(payload + "\n"); err != nil {
		_ = lockFile.Close()
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("write project lock %s: %w", lockPath, err)
	}
	if err := lockFile.Close(); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("close project lock %s: %w", lockPath, err)
	}
	return func() {
		_ = os.Remove(lockPath)
	}, nil
}
