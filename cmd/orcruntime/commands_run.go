package main

import (
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var sessionID string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Send a single request through the agent and print its streamed events",
		Args:  cobra.ExactArgs(1),
		Example: `  orcruntime run "what's on my calendar tomorrow?"
  orcruntime run --config orcruntime.yaml --session demo-1 "check my inbox"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], sessionID, quiet)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id to attach this request to (generated if omitted)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the streamed event log and print only the final answer")
	return cmd
}
