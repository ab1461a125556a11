package main

import (
	"fmt"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/spf13/cobra"
)

func executeCLI(args []string) error {
	rootCmd, err := newRootCommand()
	if err != nil {
		return err
	}
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func newRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "forge",
		Short:         "policy-guarded repair kernel",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			printUsage()
			return fmt.Errorf("command is required")
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	defaultHelpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd == rootCmd {
			printUsage()
			return
		}
		defaultHelpFunc(cmd, args)
	})

	builders := []func() (cmds.Command, error){
		newStatusGlazedCommand,
		newListCommandsGlazedCommand,
		newHistoryGlazedCommand,
		newRunGlazedCommand,
		newTestGlazedCommand,
		newRepairGlazedCommand,
		newFreezeGlazedCommand,
		newThawGlazedCommand,
		newSnapshotGlazedCommand,
		newRestoreGlazedCommand,
		newAgentsGlazedCommand,
		newMakeAgentGlazedCommand,
		newCreateGlazedCommand,
		newPolicyInitGlazedCommand,
	}
	for _, build := range builders {
		command, err := build()
		if err != nil {
			return nil, err
		}
		cobraCommand, err := buildGlazedCobraCommand(command)
		if err != nil {
			return nil, err
		}
		rootCmd.AddCommand(cobraCommand)
	}

	return rootCmd, nil
}

func buildGlazedCobraCommand(command cmds.Command) (*cobra.Command, error) {
	return cli.BuildCobraCommand(
		command,
		cli.WithParserConfig(cli.CobraParserConfig{
			ShortHelpLayers: []string{layers.DefaultSlug},
			MiddlewaresFunc: cli.CobraCommandDefaultMiddlewares,
		}),
		cli.WithCobraMiddlewaresFunc(cli.CobraCommandDefaultMiddlewares),
		cli.WithCobraShortHelpLayers(layers.DefaultSlug),
	)
}
