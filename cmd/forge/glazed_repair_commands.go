package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"

	"ghostforge/internal/model"
	"ghostforge/internal/runtime"
)

type repairGlazedCommand struct {
	*cmds.CommandDescription
}

type repairSettings struct {
	Strategy string `glazed.parameter:"strategy"`
	TryAll   bool   `glazed.parameter:"try-all"`
}

func newRepairGlazedCommand() (cmds.Command, error) {
	flags := append(kernelFlags(),
		parameters.NewParameterDefinition(
			"strategy",
			parameters.ParameterTypeString,
			parameters.WithHelp("Repair strategy: lint|rewrite|regen"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"try-all",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Walk the policy's strategy order, stopping at the first applied repair"),
			parameters.WithDefault(false),
		),
	)
	return &repairGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"repair",
			cmds.WithShort("Run a policy-guarded repair attempt"),
			cmds.WithLong("Authorize one strategy against the policy, checkpoint the project, and apply the staged change. Escalated attempts park until their ack file is authored."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *repairGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	settings := repairSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	if !settings.TryAll && strings.TrimSpace(settings.Strategy) == "" {
		return fmt.Errorf("--strategy is required unless --try-all is set")
	}

	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	result, err := rt.Repair(ctx, settings.Strategy, settings.TryAll)
	if err != nil {
		return err
	}
	printRepairResult(rt, result.Attempt, result.Checkpoint, result.WardenHits)
	return runtime.AttemptExit(result.Attempt)
}

func printRepairResult(rt *runtime.Runtime, attempt model.RepairAttempt, checkpoint string, wardenHits []string) {
	fmt.Printf("Attempt:  %s\n", attempt.ID)
	fmt.Printf("Strategy: %s\n", attempt.Strategy)
	fmt.Printf("Status:   %s\n", attempt.Status)
	if strings.TrimSpace(attempt.Reason) != "" {
		fmt.Printf("Reason:   %s\n", attempt.Reason)
	}
	if checkpoint != "" {
		fmt.Printf("Checkpoint: %s\n", checkpoint)
	}
	if len(wardenHits) > 0 {
		fmt.Printf("Blocked patterns: %s\n", strings.Join(wardenHits, ", "))
	}
	if attempt.Status == model.AttemptStatusAwaitingAck {
		fmt.Printf("Acknowledge by writing the attempt id to %s and re-running.\n", rt.Gate.AckPath(attempt.ID))
	}
}

var _ cmds.BareCommand = &repairGlazedCommand{}

type testGlazedCommand struct {
	*cmds.CommandDescription
}

func newTestGlazedCommand() (cmds.Command, error) {
	return &testGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"test",
			cmds.WithShort("Run the validation suite"),
			cmds.WithLong("Execute every tests/test_*.sh script and report per-check results."),
			cmds.WithFlags(kernelFlags()...),
		),
	}, nil
}

func (c *testGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	report, err := rt.Test(ctx)
	if err != nil {
		return err
	}
	if len(report.Checks) == 0 {
		fmt.Println("No validation scripts found.")
		return nil
	}
	for _, check := range report.Checks {
		mark := "PASS"
		if !check.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  [%s] %s\n", mark, check.Name)
		if !check.Passed && strings.TrimSpace(check.Output) != "" {
			fmt.Printf("        %s\n", check.Output)
		}
	}
	if !report.Green() {
		return &runtime.ExitError{
			Code:    runtime.ExitFailure,
			Message: fmt.Sprintf("%d of %d checks red", report.FailedCount(), len(report.Checks)),
		}
	}
	fmt.Printf("All %d checks green.\n", len(report.Checks))
	return nil
}

var _ cmds.BareCommand = &testGlazedCommand{}

type runGlazedCommand struct {
	*cmds.CommandDescription
}

type runSettings struct {
	Name     string   `glazed.parameter:"name"`
	Args     []string `glazed.parameter:"arg"`
	Elevated bool     `glazed.parameter:"elevated"`
}

func newRunGlazedCommand() (cmds.Command, error) {
	flags := append(kernelFlags(),
		parameters.NewParameterDefinition(
			"name",
			parameters.ParameterTypeString,
			parameters.WithHelp("Manifest command name"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"arg",
			parameters.ParameterTypeStringList,
			parameters.WithHelp("Argument from the command's allowed set (repeatable)"),
			parameters.WithDefault([]string{}),
		),
		parameters.NewParameterDefinition(
			"elevated",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Allow commands marked requires_elevated"),
			parameters.WithDefault(false),
		),
	)
	return &runGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"run",
			cmds.WithShort("Run a manifest command"),
			cmds.WithLong("Resolve a command from the loaded manifests, validate its arguments, and dispatch its action."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *runGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	settings := runSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	if strings.TrimSpace(settings.Name) == "" {
		return fmt.Errorf("--name is required")
	}

	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	outcome, err := rt.RunCommand(ctx, settings.Name, settings.Args, settings.Elevated)
	if outcome.Repair != nil {
		printRepairResult(rt, outcome.Repair.Attempt, outcome.Repair.Checkpoint, outcome.Repair.WardenHits)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Command %s (%s): %s\n", outcome.Entry.Name, outcome.Entry.Action, outcome.Detail)
	if outcome.Repair != nil {
		return runtime.AttemptExit(outcome.Repair.Attempt)
	}
	return nil
}

var _ cmds.BareCommand = &runGlazedCommand{}

type freezeGlazedCommand struct {
	*cmds.CommandDescription
}

func newFreezeGlazedCommand() (cmds.Command, error) {
	return &freezeGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"freeze",
			cmds.WithShort("Disable repair execution"),
			cmds.WithFlags(kernelFlags()...),
		),
	}, nil
}

func (c *freezeGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := rt.Freeze(); err != nil {
		return err
	}
	fmt.Println("Kernel frozen. Repair is disabled until `forge thaw`.")
	return nil
}

var _ cmds.BareCommand = &freezeGlazedCommand{}

type thawGlazedCommand struct {
	*cmds.CommandDescription
}

func newThawGlazedCommand() (cmds.Command, error) {
	return &thawGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"thaw",
			cmds.WithShort("Re-enable repair execution"),
			cmds.WithFlags(kernelFlags()...),
		),
	}, nil
}

func (c *thawGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := rt.Thaw(); err != nil {
		return err
	}
	fmt.Println("Kernel thawed.")
	return nil
}

var _ cmds.BareCommand = &thawGlazedCommand{}
