package main

import (
	"log/slog"
	"path/filepath"

	"github.com/go-go-golems/glazed/pkg/cmds/parameters"

	"ghostforge/internal/logging"
	"ghostforge/internal/runtime"
)

// kernelSettings are the flags every verb shares: where the project lives and
// where its state is kept.
type kernelSettings struct {
	Root    string `glazed.parameter:"root"`
	DBPath  string `glazed.parameter:"db"`
	Policy  string `glazed.parameter:"policy"`
	Verbose bool   `glazed.parameter:"verbose"`
}

func kernelFlags() []*parameters.ParameterDefinition {
	return []*parameters.ParameterDefinition{
		parameters.NewParameterDefinition(
			"root",
			parameters.ParameterTypeString,
			parameters.WithHelp("Project root directory"),
			parameters.WithDefault("."),
		),
		parameters.NewParameterDefinition(
			"db",
			parameters.ParameterTypeString,
			parameters.WithHelp("Path to SQLite index (defaults to <root>/.forge/index.sqlite)"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"policy",
			parameters.ParameterTypeString,
			parameters.WithHelp("Path to policy file (defaults to <root>/.forge/policy.json)"),
			parameters.WithDefault(""),
		),
		parameters.NewParameterDefinition(
			"verbose",
			parameters.ParameterTypeBool,
			parameters.WithHelp("Enable debug logging"),
			parameters.WithDefault(false),
		),
	}
}

// openRuntime wires the kernel for one invocation. The returned close func
// flushes the JSON log file.
func openRuntime(settings kernelSettings) (*runtime.Runtime, func() error, error) {
	if settings.Verbose {
		logging.SetLevel(slog.LevelDebug)
	}
	logger, closeLog, err := logging.New(logging.Options{
		LogDir: filepath.Join(settings.Root, ".forge", "logs"),
	})
	if err != nil {
		return nil, nil, err
	}
	rt, err := runtime.New(runtime.Options{
		Root:       settings.Root,
		PolicyPath: settings.Policy,
		DBPath:     settings.DBPath,
		Logger:     logger,
	})
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	return rt, closeLog, nil
}
