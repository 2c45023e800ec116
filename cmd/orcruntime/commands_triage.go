package main

import (
	"github.com/spf13/cobra"
)

func buildTriageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triage [items.json]",
		Short: "Classify a batch of inbox-style items (deadline, scam, noise, ...)",
		Args:  cobra.ExactArgs(1),
		Example: `  orcruntime triage items.json
  orcruntime triage --config orcruntime.yaml inbox-sample.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriage(cmd, args[0])
		},
	}
	return cmd
}
