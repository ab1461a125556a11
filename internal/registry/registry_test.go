package registry

import (
	"bytes"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestScanAcceptsValidAndRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	// Valid candidate.
	good := filepath.Join(dir, "Cyberpunk")
	if err := os.MkdirAll(good, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(good, "manifest.yaml"), []byte("name: Cyberpunk\nkind: game\nentry: run.sh\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(good, "run.sh"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write entry: %v", err)
	}

	// Candidate missing its runnable entry.
	bad := filepath.Join(dir, "Broken")
	if err := os.MkdirAll(bad, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bad, "manifest.yaml"), []byte("name: Broken\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	reg := New(dir, logger)
	if err := reg.Scan(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	agents := reg.Agents()
	if len(agents) != 1 || agents[0].Name != "Cyberpunk" {
		t.Fatalf("expected only the valid agent, got %v", agents)
	}
	if !strings.Contains(logBuf.String(), "agent rejected") {
		t.Fatalf("expected rejection to be logged, got %q", logBuf.String())
	}
}

func TestScanMissingDirIsNotFatal(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "absent"), nil)
	if err := reg.Scan(); err != nil {
		t.Fatalf("expected missing agent dir to be tolerated: %v", err)
	}
	if len(reg.Agents()) != 0 {
		t.Fatalf("expected no agents")
	}
}

func TestScaffoldSatisfiesContract(t *testing.T) {
	root := t.TempDir()
	reg := New(filepath.Join(root, "agents"), nil)
	agentDir, err := reg.Scaffold("TVPlotter", "tv")
	if err != nil {
		t.Fatalf("scaffold: %v", err)
	}
	if err := reg.Scan(); err != nil {
		t.Fatalf("scan after scaffold: %v", err)
	}
	agent, found := reg.Lookup("TVPlotter")
	if !found {
		t.Fatalf("expected scaffolded agent to be discovered")
	}
	if agent.Kind != "tv" {
		t.Fatalf("expected kind tv, got %q", agent.Kind)
	}
	if agent.Path != agentDir {
		t.Fatalf("expected path %q, got %q", agentDir, agent.Path)
	}

	golden := filepath.Join(root, "tests", "test_agent_tvplotter.sh")
	info, err := os.Stat(golden)
	if err != nil {
		t.Fatalf("expected golden check alongside the agent: %v", err)
	}
	if info.Mode()&0o100 == 0 {
		t.Fatalf("expected golden check to be executable, got mode %v", info.Mode())
	}
}

func TestScaffoldedGoldenCheckPasses(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	root := t.TempDir()
	reg := New(filepath.Join(root, "agents"), nil)
	if _, err := reg.Scaffold("Sorter", "generic"); err != nil {
		t.Fatalf("scaffold: %v", err)
	}

	golden := filepath.Join(root, "tests", "test_agent_sorter.sh")
	out, err := exec.Command("sh", golden).CombinedOutput()
	if err != nil {
		t.Fatalf("expected scaffolded golden check to pass: %v (%s)", err, out)
	}
}

func TestInferAgentSpec(t *testing.T) {
	cases := []struct {
		prompt string
		name   string
		kind   string
	}{
		{"roguelike dungeon crawler", "Roguelike", "game"},
		{"episode tracker for a show", "Episode", "tv"},
		{"song catalog helper", "Song", "music"},
		{"spreadsheet cleanup", "Spreadsheet", "generic"},
		{"", "Agent", "generic"},
		{"supercalifragilisticexpialidocious band", "Supercalifragilistic", "music"},
	}
	for _, tc := range cases {
		spec := InferAgentSpec(tc.prompt)
		if spec.Name != tc.name || spec.Kind != tc.kind {
			t.Fatalf("prompt %q: expected %s/%s, got %s/%s", tc.prompt, tc.name, tc.kind, spec.Name, spec.Kind)
		}
	}
}

func TestScaffoldRejectsUnknownKind(t *testing.T) {
	reg := New(t.TempDir(), nil)
	if _, err := reg.Scaffold("X", "quantum"); err == nil {
		t.Fatalf("expected unknown kind to be rejected")
	}
}
