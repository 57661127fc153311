// Package mcp provides a Model Context Protocol server for doula.
//
// It exposes the chat agent and the tracking data (appointments, symptom
// log, weight log, guideline search) as MCP tools over stdio transport,
// so assistant frontends can drive the pregnancy tracker directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lunahealth/doula/internal/agent"
	"github.com/lunahealth/doula/internal/guide"
	"github.com/lunahealth/doula/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store   store.Store
	Version string         // version string for MCP server info
	Guide   *guide.Service // optional, for guideline search
}

// dbMu serializes all MCP tool calls that touch the database.
// The mcp-go library dispatches handlers concurrently via goroutines.
// SQLite (even with WAL) supports only one writer at a time, and concurrent
// reads during writes can return stale results. A global mutex ensures
// correct ordering: chat writes complete before listings see their data.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all doula tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Doula",
		ver,
		server.WithToolCapabilities(false),
	)

	chatAgent := agent.New(cfg.Store)

	registerChatTool(s, chatAgent)
	registerAppointmentsTool(s, cfg.Store)
	registerSymptomsTool(s, cfg.Store)
	registerWeightTool(s, cfg.Store)
	registerGuidelinesTool(s, cfg.Guide)

	return s
}

func registerChatTool(s *server.MCPServer, chatAgent *agent.Agent) {
	tool := mcp.NewTool("doula_chat",
		mcp.WithDescription("Send a natural-language utterance to the pregnancy tracker: schedule appointments, log symptoms, log weight, or list records. Returns the agent's reply text."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("utterance",
			mcp.Required(),
			mcp.Description("The chat message, e.g. 'book appointment for ultrasound on 9/2 at 2pm'"),
		),
		mcp.WithNumber("current_week",
			mcp.Description("The user's current pregnancy week. Used when the utterance names no week."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		utterance, err := req.RequireString("utterance")
		if err != nil {
			return mcp.NewToolResultError("utterance is required"), nil
		}

		var uc *agent.UserContext
		if week, err := req.RequireFloat("current_week"); err == nil && week > 0 {
			uc = &agent.UserContext{CurrentWeek: int(week)}
		}

		return mcp.NewToolResultText(chatAgent.Handle(ctx, utterance, uc)), nil
	})
}

func registerAppointmentsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("doula_appointments",
		mcp.WithDescription("List all appointments ordered by date, with time, location, and status."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		rows, err := st.ListAppointments(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing appointments: %v", err)), nil
		}
		if len(rows) == 0 {
			return mcp.NewToolResultText("No appointments found."), nil
		}

		data, _ := json.MarshalIndent(rows, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSymptomsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("doula_symptoms",
		mcp.WithDescription("List the weekly symptom log ordered by week number."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		rows, err := st.ListSymptoms(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing symptoms: %v", err)), nil
		}
		if len(rows) == 0 {
			return mcp.NewToolResultText("No symptoms found."), nil
		}

		data, _ := json.MarshalIndent(rows, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerWeightTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("doula_weight",
		mcp.WithDescription("List the weekly weight log ordered by week number."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		rows, err := st.ListWeights(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing weights: %v", err)), nil
		}
		if len(rows) == 0 {
			return mcp.NewToolResultText("No weight records available."), nil
		}

		data, _ := json.MarshalIndent(rows, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerGuidelinesTool(s *server.MCPServer, svc *guide.Service) {
	tool := mcp.NewTool("doula_guidelines",
		mcp.WithDescription("Semantic search over the pregnancy guidelines by week and topic. Requires an embedding provider to be configured."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What to look up, e.g. 'nausea in the first trimester'"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of guidelines to return (default: 5, max: 20)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		if svc == nil {
			return mcp.NewToolResultError("guideline search requires an embedding provider (--embed or DOULA_EMBED)"), nil
		}

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := guide.DefaultSearchLimit
		if l, err := req.RequireFloat("limit"); err == nil && l > 0 {
			limit = int(l)
			if limit > 20 {
				limit = 20
			}
		}

		results, err := svc.Search(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("guideline search: %v", err)), nil
		}
		if len(results) == 0 {
			return mcp.NewToolResultText("No matching guidelines found."), nil
		}

		data, _ := json.MarshalIndent(results, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
