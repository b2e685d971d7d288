// Package mcpserver exposes tracked activity to assistants as Model Context
// Protocol tools served over stdio. Every tool reads the shared store; only
// add_correction writes to it.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/sadopc/toki/internal/classifier"
	"github.com/sadopc/toki/internal/detector"
	"github.com/sadopc/toki/internal/ipc"
	"github.com/sadopc/toki/internal/store"
)

// DaemonStatus is the part of the IPC client the status tool needs.
type DaemonStatus interface {
	Status(ctx context.Context) (ipc.Status, error)
}

type Server struct {
	st     *store.Store
	daemon DaemonStatus
	cls    *classifier.Classifier
	det    *detector.Detector
	log    zerolog.Logger
	now    func() time.Time
}

func New(st *store.Store, daemon DaemonStatus, cls *classifier.Classifier, det *detector.Detector, log zerolog.Logger) *Server {
	return &Server{
		st:     st,
		daemon: daemon,
		cls:    cls,
		det:    det,
		log:    log.With().Str("component", "mcp").Logger(),
		now:    time.Now,
	}
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP(version string) *server.MCPServer {
	ms := server.NewMCPServer("toki", version, server.WithToolCapabilities(true))

	ms.AddTool(mcp.NewTool("tracking_status",
		mcp.WithDescription("Report whether the toki daemon is tracking, the focused window, the current issue, and the open session."),
	), s.handleStatus)

	ms.AddTool(mcp.NewTool("work_summary",
		mcp.WithDescription("Summarize tracked time by category and by project for a period."),
		mcp.WithString("period", mcp.Description("today, yesterday, or week (default today)"), mcp.Enum("today", "yesterday", "week")),
		mcp.WithString("project", mcp.Description("Optional project name to filter by")),
	), s.handleWorkSummary)

	ms.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List tracked projects with their paths, descriptions, and last activity."),
	), s.handleListProjects)

	ms.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List recent work sessions, newest first, with active and idle time and interruptions."),
		mcp.WithNumber("limit", mcp.Description("Number of sessions to return (1-100, default 10)")),
	), s.handleListSessions)

	ms.AddTool(mcp.NewTool("list_rules",
		mcp.WithDescription("List classification rules in evaluation order with their hit counts."),
	), s.handleListRules)

	ms.AddTool(mcp.NewTool("add_correction",
		mcp.WithDescription("Teach toki a category for an application id or window title pattern. The rule outranks every existing rule."),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Regular expression")),
		mcp.WithString("target", mcp.Required(), mcp.Description("app_id or window_title"), mcp.Enum(string(store.TargetAppID), string(store.TargetWindowTitle))),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category to assign")),
	), s.handleAddCorrection)

	ms.AddTool(mcp.NewTool("detect_issue",
		mcp.WithDescription("Find the issue reference for a git checkout and/or a window title, using the branch, the last commit, the path, and the title in that order."),
		mcp.WithString("path", mcp.Description("Directory inside a git checkout")),
		mcp.WithString("title", mcp.Description("Window title")),
	), s.handleDetectIssue)

	return ms
}

// Serve runs the tools over stdin and stdout until the client disconnects.
func (s *Server) Serve(version string) error {
	s.log.Info().Msg("serving mcp over stdio")
	return server.ServeStdio(s.MCP(version))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}
