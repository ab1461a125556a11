package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultPolicyPath = ".forge/policy.json"

type Config struct {
	Version int `json:"version"`
	Repair  struct {
		AllowedStrategies     []string `json:"allowed_strategies"`
		EscalationRequiredFor []string `json:"escalation_required_for"`
		StrategyOrder         []string `json:"strategy_order"`
		ChangeBudgetPct       int      `json:"change_budget_pct"`
		RequireGreenTests     bool     `json:"require_green_tests"`
	} `json:"repair"`
	Network struct {
		OfflineOnly       bool     `json:"offline_only"`
		NetworkStrategies []string `json:"network_strategies"`
	} `json:"network"`
	Warden struct {
		BlockedPatterns []string `json:"blocked_patterns"`
	} `json:"warden"`
}

func Default() Config {
	cfg := Config{
		Version: 1,
	}
	cfg.Repair.AllowedStrategies = []string{"lint", "rewrite"}
	cfg.Repair.EscalationRequiredFor = []string{}
	cfg.Repair.StrategyOrder = []string{"lint", "rewrite", "regen"}
	cfg.Repair.ChangeBudgetPct = 5
	cfg.Repair.RequireGreenTests = true
	cfg.Network.OfflineOnly = true
	cfg.Network.NetworkStrategies = []string{"fetch"}
	cfg.Warden.BlockedPatterns = []string{}
	return cfg
}

// HardRailPatterns are always appended to the configured blocked patterns.
// Matching any of them blocks an apply no matter what the policy file says.
func HardRailPatterns() []string {
	return []string{
		`(eval\()`,
		`(exec\()`,
		`\b(requests|httpx|socket)\b`,
	}
}

func Load(path string) (Config, string, error) {
	cfg := Default()
	finalPath := path
	if strings.TrimSpace(finalPath) == "" {
		finalPath = DefaultPolicyPath
	}
	if _, err := os.Stat(finalPath); os.IsNotExist(err) {
		return cfg, finalPath, nil
	}

	b, err := os.ReadFile(finalPath)
	if err != nil {
		return cfg, finalPath, fmt.Errorf("read policy %s: %w", finalPath, err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, finalPath, fmt.Errorf("parse policy %s: %w", finalPath, err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, finalPath, fmt.Errorf("validate policy %s: %w", finalPath, err)
	}
	return cfg, finalPath, nil
}

func SaveDefault(path string) error {
	cfg := Default()
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func Validate(cfg Config) error {
	if cfg.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}
	if cfg.Repair.ChangeBudgetPct < 0 || cfg.Repair.ChangeBudgetPct > 100 {
		return fmt.Errorf("repair.change_budget_pct must be within 0..100")
	}
	if len(cfg.Repair.StrategyOrder) == 0 {
		return fmt.Errorf("repair.strategy_order must contain at least one entry")
	}
	for _, name := range cfg.Repair.StrategyOrder {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("repair.strategy_order cannot contain empty names")
		}
	}
	for _, name := range cfg.Repair.AllowedStrategies {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("repair.allowed_strategies cannot contain empty names")
		}
	}
	for _, name := range cfg.Repair.EscalationRequiredFor {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("repair.escalation_required_for cannot contain empty names")
		}
	}
	return nil
}
