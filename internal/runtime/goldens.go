package runtime

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// GoldenDir holds the project's validation scripts. Every `test_*.sh` in it
// is one check; a check passes when the script exits zero.
const GoldenDir = "tests"

type CheckResult struct {
	Name   string
	Passed bool
	Output string
}

type TestReport struct {
	Checks []CheckResult
}

func (r TestReport) Green() bool {
	return r.FailedCount() == 0
}

func (r TestReport) FailedCount() int {
	failed := 0
	for _, check := range r.Checks {
		if !check.Passed {
			failed++
		}
	}
	return failed
}

// RunGoldens executes the validation suite sequentially. A missing suite is
// green: projects without checks never block repair on require_green.
func RunGoldens(ctx context.Context, root string) (TestReport, error) {
	pattern := filepath.Join(root, GoldenDir, "test_*.sh")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return TestReport{}, fmt.Errorf("glob validation scripts %s: %w", pattern, err)
	}
	sort.Strings(paths)

	report := TestReport{}
	for _, path := range paths {
		cmd := exec.CommandContext(ctx, "sh", path)
		cmd.Dir = root
		output, runErr := cmd.CombinedOutput()
		report.Checks = append(report.Checks, CheckResult{
			Name:   strings.TrimSuffix(filepath.Base(path), ".sh"),
			Passed: runErr == nil,
			Output: strings.TrimSpace(string(output)),
		})
	}
	return report, nil
}
