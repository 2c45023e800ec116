package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nexuscore/orcruntime/internal/agent"
)

// registerSampleTools wires the demo catalog this binary ships with:
// synthetic calendar, email, and weather lookups standing in for the
// integrations a real deployment would register (Google Calendar,
// Gmail, a weather API). Each produces data shaped the way
// internal/insight's rules expect, so `orcruntime run` can exercise
// the insight engine end to end without live credentials.
func registerSampleTools(registry *agent.ToolRegistry) {
	registry.Register(agent.HandleFunc{
		Desc: agent.ToolDescriptor{
			Name:        "get_upcoming_events",
			Description: "List the user's upcoming calendar events",
			ArgsSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"limit": map[string]any{"type": "integer", "minimum": 1}},
			},
		},
		Handle: getUpcomingEvents,
	})
	registry.Register(agent.HandleFunc{
		Desc: agent.ToolDescriptor{
			Name:        "search_emails",
			Description: "Search the user's inbox",
			ArgsSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []any{"query"},
			},
		},
		Handle: searchEmails,
	})
	registry.Register(agent.HandleFunc{
		Desc: agent.ToolDescriptor{
			Name:        "get_weather",
			Description: "Get today's weather forecast",
			ArgsSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"location": map[string]any{"type": "string"}},
				"required":   []any{"location"},
			},
		},
		Handle: getWeather,
	})
	registry.Register(agent.HandleFunc{
		Desc: agent.ToolDescriptor{
			Name:        "create_calendar_event",
			Description: "Create a new calendar event",
			ArgsSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":      map[string]any{"type": "string"},
					"start_time": map[string]any{"type": "string"},
				},
				"required": []any{"title", "start_time"},
			},
			RequiresApproval: true,
		},
		Handle: createCalendarEvent,
	})
	registry.Register(agent.HandleFunc{
		Desc: agent.ToolDescriptor{
			Name:        "send_email",
			Description: "Send an email on the user's behalf",
			ArgsSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to":   map[string]any{"type": "string"},
					"body": map[string]any{"type": "string"},
				},
				"required": []any{"to", "body"},
			},
			RequiresApproval: true,
		},
		Handle: sendEmail,
	})
}

func getUpcomingEvents(_ context.Context, _ map[string]any) (any, error) {
	tomorrow := time.Now().Add(24 * time.Hour).Format(time.RFC3339)
	return []map[string]any{
		{
			"title":            "Team offsite",
			"start_time":       tomorrow,
			"date":             tomorrow[:10],
			"location":         "Rooftop patio",
			"location_changed": true,
			"outdoor":          true,
		},
	}, nil
}

func searchEmails(_ context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	return []map[string]any{
		{"from": "billing@vendor.example", "subject": "Invoice overdue", "unread": true},
		{"from": "billing@vendor.example", "subject": "Second reminder", "unread": true},
		{"from": "billing@vendor.example", "subject": "Final notice: " + query, "unread": true},
	}, nil
}

func getWeather(_ context.Context, args map[string]any) (any, error) {
	location, _ := args["location"].(string)
	if location == "" {
		location = "default"
	}
	return map[string]any{
		"location":             location,
		"condition":            "thunderstorms likely",
		"precipitation_chance": 70,
		"date":                 time.Now().Add(24 * time.Hour).Format("2006-01-02"),
	}, nil
}

func createCalendarEvent(_ context.Context, args map[string]any) (any, error) {
	title, _ := args["title"].(string)
	return map[string]any{"status": "created", "title": title}, nil
}

func sendEmail(_ context.Context, args map[string]any) (any, error) {
	to, _ := args["to"].(string)
	if to == "" {
		return nil, fmt.Errorf("send_email: \"to\" is required")
	}
	return map[string]any{"status": "sent", "to": to}, nil
}
