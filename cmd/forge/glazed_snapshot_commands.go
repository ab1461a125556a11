package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
)

type snapshotGlazedCommand struct {
	*cmds.CommandDescription
}

type snapshotSettings struct {
	Label string `glazed.parameter:"label"`
}

func newSnapshotGlazedCommand() (cmds.Command, error) {
	flags := append(kernelFlags(),
		parameters.NewParameterDefinition(
			"label",
			parameters.ParameterTypeString,
			parameters.WithHelp("Snapshot label"),
			parameters.WithDefault(""),
		),
	)
	return &snapshotGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"snapshot",
			cmds.WithShort("Capture a project snapshot"),
			cmds.WithLong("Archive the project root to a zip under runs/snapshots and record it in the index."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *snapshotGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	settings := snapshotSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	if strings.TrimSpace(settings.Label) == "" {
		return fmt.Errorf("--label is required")
	}

	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	snap, err := rt.Snapshot(settings.Label)
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot %s captured: %s (%d files)\n", snap.Label, snap.ContentRef, len(snap.Included))
	return nil
}

var _ cmds.BareCommand = &snapshotGlazedCommand{}

type restoreGlazedCommand struct {
	*cmds.CommandDescription
}

type restoreSettings struct {
	Label      string `glazed.parameter:"label"`
	SkipSafety bool   `glazed.parameter:"skip-safety"`
}

func newRestoreGlazedCommand() (cmds.Command, error) {
	flags := append(kernelFlags(),
		parameters.NewParameterDefinition(
			"label",
			parameters.ParameterTypeString,
			parameters.WithHelp("Snapshot label to restore"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"skip-safety",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Skip the implicit pre-restore snapshot"),
			parameters.WithDefault(false),
		),
	)
	return &restoreGlazedCommand{
		CommandDescription: cmds.NewCommandDescription(
			"restore",
			cmds.WithShort("Restore the project from a snapshot"),
			cmds.WithLong("Replace the project tree with a snapshot's content. A safety snapshot is captured first unless --skip-safety is set."),
			cmds.WithFlags(flags...),
		),
	}, nil
}

func (c *restoreGlazedCommand) Run(ctx context.Context, parsedLayers *layers.ParsedLayers) error {
	_ = ctx
	kernel := kernelSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &kernel); err != nil {
		return err
	}
	settings := restoreSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, &settings); err != nil {
		return err
	}
	if strings.TrimSpace(settings.Label) == "" {
		return fmt.Errorf("--label is required")
	}

	rt, closeLog, err := openRuntime(kernel)
	if err != nil {
		return err
	}
	defer closeLog()

	snap, err := rt.Restore(settings.Label, settings.SkipSafety)
	if err != nil {
		return err
	}
	fmt.Printf("Restored snapshot %s (%d files) from %s\n", snap.Label, len(snap.Included), snap.ContentRef)
	return nil
}

var _ cmds.BareCommand = &restoreGlazedCommand{}
