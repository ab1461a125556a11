package main

import (
	"errors"
	"fmt"
	"testing"

	"ghostforge/internal/manifest"
	"ghostforge/internal/runtime"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"generic failure", errors.New("disk on fire"), 1},
		{"cobra unknown verb", fmt.Errorf("unknown command %q for %q", "zap", "forge"), 2},
		{"unknown manifest command", &manifest.UnknownCommandError{Name: "zap"}, 2},
		{"denied", &runtime.ExitError{Code: runtime.ExitDenied, Message: "no"}, 3},
		{"awaiting ack", &runtime.ExitError{Code: runtime.ExitAwaitingAck, Message: "parked"}, 4},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("%s: expected exit %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestRootCommandRegistersVerbs(t *testing.T) {
	rootCmd, err := newRootCommand()
	if err != nil {
		t.Fatalf("new root command: %v", err)
	}
	expected := []string{
		"status", "list-commands", "history", "run", "test", "repair",
		"freeze", "thaw", "snapshot", "restore", "agents", "make-agent", "create", "policy-init",
	}
	registered := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		if !registered[name] {
			t.Fatalf("expected verb %q to be registered", name)
		}
	}
}
