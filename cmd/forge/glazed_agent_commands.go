package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"

	"ghostforge/internal/policy"
)

type agentsGlazedCommand struct {
	*cmds.CommandDescription
}

func newAgentsGlazedCommand() (cmds.Command, error) {
	return &agentsGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"agents",
			cmds.WithShort("List registered agents"),
			cmds.WithFlags(kernelFlags()...),
		),
	}, nil
}

func (c *agentsGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
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

	agents := rt.AgentList()
	if len(agents) == 0 {
		fmt.Println("No agents registered.")
		return nil
	}
	for _, agent := range agents {
		version := agent.Version
		if strings.TrimSpace(version) == "" {
			version = "-"
		}
		fmt.Printf("  %-20s kind=%-8s version=%-8s entry=%s\n", agent.Name, agent.Kind, version, agent.Entry)
	}
	return nil
}

var _ cmds.BareCommand = &agentsGlazedCommand{}

type makeAgentGlazedCommand struct {
	*cmds.CommandDescription
}

type makeAgentSettings struct {
	Name string `glazed.parameter:"name"`
	Kind string `glazed.parameter:"kind"`
}

func newMakeAgentGlazedCommand() (cmds.Command, error) {
	flags := append(kernelFlags(),
		parameters.NewParameterDefinition(
			"name",
			parameters.ParameterTypeString,
			parameters.WithHelp("Agent name"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"kind",
			parameters.ParameterTypeString,
			parameters.WithHelp("Agent kind: generic|game|tv|music"),
			parameters.WithDefault("generic"),
		),
	)
	return &makeAgentGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"make-agent",
			cmds.WithShort("Scaffold a new agent"),
			cmds.WithLong("Write an agent folder with a manifest, runnable entry, and README, then re-scan the registry."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *makeAgentGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	settings := makeAgentSettings{}
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

	dir, err := rt.MakeAgent(settings.Name, settings.Kind)
	if err != nil {
		return err
	}
	fmt.Printf("Agent %s scaffolded at %s\n", settings.Name, dir)
	return nil
}

var _ cmds.BareCommand = &makeAgentGlazedCommand{}

type createGlazedCommand struct {
	*cmds.CommandDescription
}

type createSettings struct {
	Prompt string `glazed.parameter:"prompt"`
}

func newCreateGlazedCommand() (cmds.Command, error) {
	flags := append(kernelFlags(),
		parameters.NewParameterDefinition(
			"prompt",
			parameters.ParameterTypeString,
			parameters.WithHelp("Free-form description of the agent to create"),
			parameters.WithDefault(""),
		),
	)
	return &createGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"create",
			cmds.WithShort("Create an agent from a prompt"),
			cmds.WithLong("Infer an agent name and kind from a free-form prompt, then scaffold it like make-agent."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *createGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	settings := createSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	if strings.TrimSpace(settings.Prompt) == "" {
		return fmt.Errorf("--prompt is required")
	}

	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	spec, dir, err := rt.CreateAgent(settings.Prompt)
	if err != nil {
		return err
	}
	fmt.Printf("Agent %s (kind=%s) scaffolded at %s\n", spec.Name, spec.Kind, dir)
	return nil
}

var _ cmds.BareCommand = &createGlazedCommand{}

type policyInitGlazedCommand struct {
	*cmds.CommandDescription
}

type policyInitSettings struct {
	Path string `glazed.parameter:"path"`
}

func newPolicyInitGlazedCommand() (cmds.Command, error) {
	return &policyInitGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"policy-init",
			cmds.WithShort("Write a default policy file"),
			cmds.WithLong("Create a default forge policy file at the target path."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"path",
					parameters.ParameterTypeString,
					parameters.WithHelp("Path to policy file"),
					parameters.WithDefault(policy.DefaultPolicyPath),
				),
			),
		),
	}, nil
}

func (c *policyInitGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	settings := policyInitSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	if err := policy.SaveDefault(settings.Path); err != nil {
		return err
	}
	fmt.Printf("Wrote default policy to %s\n", settings.Path)
	return nil
}

var _ cmds.BareCommand = &policyInitGlazedCommand{}
