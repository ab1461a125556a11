package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
)

type statusGlazedCommand struct {
	*cmds.CommandDescription
}

func newStatusGlazedCommand() (cmds.Command, error) {
	return &statusGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"status",
			cmds.WithShort("Show kernel state"),
			cmds.WithLong("Print freeze state, policy location, and counts of commands, agents, snapshots, and audit events."),
			cmds.WithFlags(kernelFlags()...),
		),
	}, nil
}

func (c *statusGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	settings := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	rt, closeLog, err := openRuntime(settings)
	if err != nil {
		return err
	}
	defer closeLog()

	report, err := rt.Status()
	if err != nil {
		return err
	}

	fmt.Printf("Root:      %s\n", report.Root)
	fmt.Printf("Policy:    %s\n", report.PolicyPath)
	fmt.Printf("Frozen:    %t\n", report.Frozen)
	fmt.Printf("Commands:  %d\n", report.Commands)
	fmt.Printf("Agents:    %d\n", report.Agents)
	fmt.Printf("Snapshots: %d\n", report.Snapshots)
	fmt.Printf("Events:    %d\n", report.Events)
	if report.LatestAttempt != nil {
		attempt := report.LatestAttempt
		fmt.Printf("Last attempt: %s strategy=%s status=%s", attempt.ID, attempt.Strategy, attempt.Status)
		if strings.TrimSpace(attempt.Reason) != "" {
			fmt.Printf(" reason=%q", attempt.Reason)
		}
		fmt.Println("")
	}
	return nil
}

var _ cmds.BareCommand = &statusGlazedCommand{}

type listCommandsGlazedCommand struct {
	*cmds.CommandDescription
}

func newListCommandsGlazedCommand() (cmds.Command, error) {
	return &listCommandsGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"list-commands",
			cmds.WithShort("List loaded manifest commands"),
			cmds.WithFlags(kernelFlags()...),
		),
	}, nil
}

func (c *listCommandsGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	settings := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	rt, closeLog, err := openRuntime(settings)
	if err != nil {
		return err
	}
	defer closeLog()

	entries := rt.ListCommands()
	if len(entries) == 0 {
		fmt.Println("No commands loaded.")
		return nil
	}
	for _, entry := range entries {
		elevated := ""
		if entry.RequiresElevated {
			elevated = " [elevated]"
		}
		args := "-"
		if len(entry.AllowedArgs) > 0 {
			args = strings.Join(entry.AllowedArgs, ",")
		}
		fmt.Printf("  %-20s action=%-10s args=%s%s\n", entry.Name, entry.Action, args, elevated)
	}
	return nil
}

var _ cmds.BareCommand = &listCommandsGlazedCommand{}

type historyGlazedCommand struct {
	*cmds.CommandDescription
}

type historySettings struct {
	Limit int `glazed.parameter:"limit"`
}

func newHistoryGlazedCommand() (cmds.Command, error) {
	flags := append(kernelFlags(),
		parameters.NewParameterDefinition(
			"limit",
			parameters.ParameterTypeInteger,
			parameters.WithHelp("Maximum attempts to list"),
			parameters.WithDefault(10),
		),
	)
	return &historyGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"history",
			cmds.WithShort("List recent repair attempts"),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *historyGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	settings := historySettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	attempts, err := rt.History(settings.Limit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Println("No repair attempts recorded.")
		return nil
	}
	for _, attempt := range attempts {
		resolved := "-"
		if attempt.ResolvedAt != nil {
			resolved = attempt.ResolvedAt.Format(time.RFC3339)
		}
		fmt.Printf("  %s  %-8s %-12s created=%s resolved=%s",
			attempt.ID, attempt.Strategy, attempt.Status,
			attempt.CreatedAt.Format(time.RFC3339), resolved)
		if strings.TrimSpace(attempt.Reason) != "" {
			fmt.Printf(" reason=%q", attempt.Reason)
		}
		fmt.Println("")
	}
	return nil
}

var _ cmds.BareCommand = &historyGlazedCommand{}
