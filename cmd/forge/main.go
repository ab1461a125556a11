package main

import (
	"fmt"
	"os"
	"strings"

	"ghostforge/internal/runtime"
)

func main() {
	err := executeCLI(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	code := runtime.ExitCodeFor(err)
	// Cobra reports unknown subcommands as plain errors; they are usage
	// mistakes, same as unknown manifest commands.
	if code == runtime.ExitFailure && strings.Contains(err.Error(), "unknown command") {
		return runtime.ExitUsage
	}
	return code
}

func printUsage() {
	fmt.Println("forge - policy-guarded repair kernel")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  forge status")
	fmt.Println("  forge list-commands")
	fmt.Println("  forge run --name CMD [--arg VALUE] [--elevated]")
	fmt.Println("  forge test")
	fmt.Println("  forge repair --strategy lint|rewrite|regen [--try-all]")
	fmt.Println("  forge snapshot --label LABEL")
	fmt.Println("  forge restore --label LABEL [--skip-safety]")
	fmt.Println("  forge history [--limit 10]")
	fmt.Println("  forge freeze | forge thaw")
	fmt.Println("  forge agents")
	fmt.Println("  forge make-agent --name NAME [--kind generic|game|tv|music]")
	fmt.Println("  forge create --prompt DESCRIPTION")
	fmt.Println("  forge policy-init [--path .forge/policy.json]")
}
