package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscore/orcruntime/internal/telemetry"
	"github.com/nexuscore/orcruntime/pkg/models"
)

func runQuery(cmd *cobra.Command, query, sessionID string, quiet bool) error {
	ctx := cmd.Context()
	logger := runtimeLogger()

	cfg, err := resolveConfig(configPath)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}

	startMetricsServer(cfg.Telemetry.MetricsAddr, logger)
	sink := telemetry.NewPrometheusSink(telemetry.NewCallbackSink(func(e models.Event) { printEvent(cmd, e) }))

	var unsubscribe func()
	var events <-chan models.Event
	if !quiet {
		subscribeID := sessionID
		if subscribeID == "" {
			// HandleRequest generates a session id when none is supplied;
			// subscribing before the call would race it, so in that case
			// fall back to printing only the final history below.
		} else {
			events, unsubscribe = rt.bus.Subscribe(subscribeID)
			defer unsubscribe()
			go printEvents(sink, events)
		}
	}

	session := rt.agent.HandleRequest(ctx, models.Query{
		Text:    query,
		Context: models.SessionContext{SessionID: sessionID},
	})

	if sessionID == "" || quiet {
		for _, e := range session.History() {
			if quiet && e.Type != models.EventMessage && e.Type != models.EventError {
				continue
			}
			sink.Emit(e)
		}
	}

	return nil
}

func printEvents(sink telemetry.EventSink, events <-chan models.Event) {
	for e := range events {
		sink.Emit(e)
	}
}

func printEvent(cmd *cobra.Command, e models.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed to encode event: %v\n", err)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
