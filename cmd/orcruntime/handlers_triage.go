package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexuscore/orcruntime/internal/triage"
)

// triageItemFile is the on-disk shape `orcruntime triage` reads: a
// JSON array of inbox-style items to classify.
type triageItemFile struct {
	ID         string `json:"id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	From       string `json:"from"`
	ReceivedAt string `json:"received_at"`
}

func runTriage(cmd *cobra.Command, path string) error {
	ctx := cmd.Context()
	logger := runtimeLogger()

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}

	llm, err := buildLanguageModel(ctx, cfg.Provider)
	if err != nil {
		return fmt.Errorf("building language model: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var files []triageItemFile
	if err := json.Unmarshal(raw, &files); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	items := make([]triage.Item, 0, len(files))
	for _, f := range files {
		receivedAt := time.Now()
		if f.ReceivedAt != "" {
			if t, err := time.Parse(time.RFC3339, f.ReceivedAt); err == nil {
				receivedAt = t
			} else {
				logger.Warn("ignoring unparseable received_at, using now", "item_id", f.ID, "value", f.ReceivedAt)
			}
		}
		items = append(items, triage.Item{
			ID:         f.ID,
			Subject:    f.Subject,
			Body:       f.Body,
			From:       f.From,
			ReceivedAt: receivedAt,
		})
	}

	agentTriage := triage.New(llm)
	result, err := agentTriage.Run(ctx, items)
	if err != nil {
		return fmt.Errorf("triage run: %w", err)
	}

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
