package policy

import (
	"os"
	"path/filepath"
	"testing"

	"ghostforge/internal/model"
)

func TestDefaultPolicyIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default policy to validate: %v", err)
	}
}

func TestLoadPolicyFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "policy.json")
	if err := SaveDefault(path); err != nil {
		t.Fatalf("save default policy: %v", err)
	}

	cfg, loadedPath, err := Load(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if loadedPath != path {
		t.Fatalf("expected loaded path %q, got %q", path, loadedPath)
	}
	if len(cfg.Repair.StrategyOrder) == 0 {
		t.Fatalf("expected non-empty strategy order")
	}
}

func TestLoadPolicyMissingFileUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "missing-policy.json")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected missing test policy file")
	}

	cfg, loadedPath, err := Load(path)
	if err != nil {
		t.Fatalf("load policy with missing file: %v", err)
	}
	if loadedPath != path {
		t.Fatalf("expected loaded path %q, got %q", path, loadedPath)
	}
	if !cfg.Network.OfflineOnly {
		t.Fatalf("expected default policy to be offline-only")
	}
}

func TestAuthorizeAllowlist(t *testing.T) {
	cfg := Default()
	cfg.Repair.AllowedStrategies = []string{"lint"}
	cfg.Repair.EscalationRequiredFor = []string{}
	guard := NewGuard(cfg)

	if decision := guard.Authorize("lint", AuthorizeContext{}); decision.Kind != model.DecisionAuthorized {
		t.Fatalf("expected lint to be authorized, got %s (%s)", decision.Kind, decision.Reason)
	}
	decision := guard.Authorize("rewrite", AuthorizeContext{})
	if decision.Kind != model.DecisionDenied {
		t.Fatalf("expected rewrite to be denied, got %s", decision.Kind)
	}
	if decision.Reason != "strategy not permitted" {
		t.Fatalf("expected allowlist denial reason, got %q", decision.Reason)
	}
}

func TestAuthorizeEscalation(t *testing.T) {
	cfg := Default()
	cfg.Repair.AllowedStrategies = []string{"lint", "rewrite"}
	cfg.Repair.EscalationRequiredFor = []string{"rewrite"}
	guard := NewGuard(cfg)

	if decision := guard.Authorize("rewrite", AuthorizeContext{}); decision.Kind != model.DecisionRequiresAck {
		t.Fatalf("expected rewrite to require ack, got %s", decision.Kind)
	}
}

func TestOfflineRailBeatsAllowlist(t *testing.T) {
	cfg := Default()
	cfg.Repair.AllowedStrategies = []string{"fetch"}
	cfg.Network.OfflineOnly = true
	cfg.Network.NetworkStrategies = []string{"fetch"}
	guard := NewGuard(cfg)

	if decision := guard.Authorize("fetch", AuthorizeContext{}); decision.Kind != model.DecisionDenied {
		t.Fatalf("expected network strategy to be denied under offline policy, got %s", decision.Kind)
	}

	// The context flag alone is enough; the strategy need not be listed.
	if decision := guard.Authorize("lint", AuthorizeContext{NetworkUsing: true}); decision.Kind != model.DecisionDenied {
		t.Fatalf("expected network-flagged context to be denied under offline policy, got %s", decision.Kind)
	}
}

func TestAuthorizeIsDeterministic(t *testing.T) {
	cfg := Default()
	cfg.Repair.AllowedStrategies = []string{"lint", "rewrite"}
	cfg.Repair.EscalationRequiredFor = []string{"rewrite"}
	guard := NewGuard(cfg)

	first := guard.Authorize("rewrite", AuthorizeContext{})
	for i := 0; i < 10; i++ {
		if got := guard.Authorize("rewrite", AuthorizeContext{}); got != first {
			t.Fatalf("expected identical decision on repeat, got %+v then %+v", first, got)
		}
	}
}

func TestScanTextSkipsInvalidPatterns(t *testing.T) {
	cfg := Default()
	cfg.Warden.BlockedPatterns = []string{`forbidden_token`, `([unclosed`}
	guard := NewGuard(cfg)

	hits, skipped := guard.ScanText("a forbidden_token appears here")
	if len(hits) != 1 || hits[0] != "forbidden_token" {
		t.Fatalf("expected one hit on forbidden_token, got %v", hits)
	}
	if len(skipped) != 1 {
		t.Fatalf("expected one skipped invalid pattern, got %v", skipped)
	}
}

func TestScanTextHardRails(t *testing.T) {
	guard := NewGuard(Default())
	hits, _ := guard.ScanText("import socket")
	if len(hits) == 0 {
		t.Fatalf("expected hard rail hit on socket import")
	}
}
