// Command orcruntime is a demonstration CLI for the orchestration
// core: it wires SmartPlanner, DAGExecutor, the cache tiers,
// DecisionMemory, ContextWindowManager, and the risk/insight/triage
// domain expansion into a single EnhancedAgent and exposes it as a
// couple of subcommands.
//
// Examples:
//
//	orcruntime run --config orcruntime.yaml "what's on my calendar tomorrow?"
//	orcruntime triage --config orcruntime.yaml items.json
//	orcruntime version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "orcruntime",
		Short:         "Multi-agent orchestration runtime",
		Long:          "orcruntime wires a planner, a DAG executor, a tiered cache, decision memory, and a context window manager into a single streaming agent.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an orcruntime config file (defaults built in if omitted)")

	root.AddCommand(buildRunCmd())
	root.AddCommand(buildTriageCmd())
	root.AddCommand(buildVersionCmd())
	return root
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "orcruntime %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}

