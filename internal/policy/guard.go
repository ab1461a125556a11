package policy

import (
	"fmt"
	"regexp"
	"strings"

	"ghostforge/internal/model"
)

// Guard makes permit/deny/escalate decisions over a loaded policy. It holds
// no mutable state; the same policy, strategy, and context always yield the
// same decision.
type Guard struct {
	cfg Config
}

type AuthorizeContext struct {
	// NetworkUsing marks the strategy as reaching the network. The offline
	// rail denies such strategies even when the allowlist admits them.
	NetworkUsing bool
}

func NewGuard(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

func (g *Guard) Authorize(strategy string, ctx AuthorizeContext) model.Decision {
	strategy = strings.TrimSpace(strategy)
	if strategy == "" {
		return model.Decision{Kind: model.DecisionDenied, Reason: "strategy name is required"}
	}
	if g.cfg.Network.OfflineOnly && (ctx.NetworkUsing || containsToken(g.cfg.Network.NetworkStrategies, strategy)) {
		return model.Decision{Kind: model.DecisionDenied, Reason: fmt.Sprintf("strategy %q uses the network; policy is offline-only", strategy)}
	}
	if !containsToken(g.cfg.Repair.AllowedStrategies, strategy) {
		return model.Decision{Kind: model.DecisionDenied, Reason: "strategy not permitted"}
	}
	if containsToken(g.cfg.Repair.EscalationRequiredFor, strategy) {
		return model.Decision{Kind: model.DecisionRequiresAck}
	}
	return model.Decision{Kind: model.DecisionAuthorized}
}

// ScanText checks staged text against the policy's blocked patterns plus the
// hard rails. Invalid regexes from the policy file are skipped and reported
// in the second return value rather than failing the scan.
func (g *Guard) ScanText(text string) (hits []string, skipped []string) {
	patterns := append([]string{}, g.cfg.Warden.BlockedPatterns...)
	patterns = append(patterns, HardRailPatterns()...)
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			skipped = append(skipped, pattern)
			continue
		}
		if re.MatchString(text) {
			hits = append(hits, pattern)
		}
	}
	return hits, skipped
}

// WithinChangeBudget reports whether a change of the given size percentage is
// allowed without escalation.
func (g *Guard) WithinChangeBudget(pct int) bool {
	return pct <= g.cfg.Repair.ChangeBudgetPct
}

func containsToken(tokens []string, wanted string) bool {
	for _, token := range tokens {
		if strings.EqualFold(strings.TrimSpace(token), wanted) {
			return true
		}
	}
	return false
}
