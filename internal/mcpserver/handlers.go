package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/sadopc/toki/internal/store"
)

const statusTimeout = 2 * time.Second

type statusResult struct {
	Running        bool    `json:"running"`
	Window         string  `json:"window,omitempty"`
	Issue          string  `json:"issue,omitempty"`
	SessionID      string  `json:"session_id,omitempty"`
	SessionSeconds int64   `json:"session_seconds"`
	DaemonError    *string `json:"daemon_error,omitempty"`
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.daemon == nil {
		msg := "no daemon client"
		return jsonResult(statusResult{DaemonError: &msg})
	}
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	st, err := s.daemon.Status(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("status unavailable")
		msg := "toki is not running"
		return jsonResult(statusResult{DaemonError: &msg})
	}
	return jsonResult(statusResult{
		Running:        st.Running,
		Window:         st.CurrentWindow,
		Issue:          st.CurrentIssue,
		SessionID:      st.SessionID,
		SessionSeconds: st.SessionDurationSeconds,
	})
}

// periodRange maps a period name to UTC day bounds [from, to).
func periodRange(period string, now time.Time) (time.Time, time.Time, error) {
	t := now.UTC()
	today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case "", "today":
		return today, today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), today, nil
	case "week":
		return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
}

type categoryTotal struct {
	Category string `json:"category"`
	Seconds  int64  `json:"seconds"`
	Spans    int    `json:"spans"`
}

type projectTotal struct {
	Date    string `json:"date"`
	Project string `json:"project"`
	Seconds int64  `json:"seconds"`
}

type summaryResult struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	TotalSeconds int64           `json:"total_seconds"`
	Categories   []categoryTotal `json:"categories"`
	Projects     []projectTotal  `json:"projects"`
}

func (s *Server) handleWorkSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, to, err := periodRange(req.GetString("period", "today"), s.now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	project := strings.TrimSpace(req.GetString("project", ""))

	res := summaryResult{
		From:       from.Format("2006-01-02"),
		To:         to.AddDate(0, 0, -1).Format("2006-01-02"),
		Categories: []categoryTotal{},
		Projects:   []projectTotal{},
	}

	daily, err := s.st.GetDailySummary(from, to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("daily summary: %v", err)), nil
	}
	var projectID string
	for _, d := range daily {
		if project != "" && !strings.EqualFold(d.ProjectName, project) {
			continue
		}
		projectID = d.ProjectID
		res.Projects = append(res.Projects, projectTotal{Date: d.Date, Project: d.ProjectName, Seconds: d.TotalSeconds})
	}

	if project == "" {
		cats, err := s.st.GetCategorySummary(from, to)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("category summary: %v", err)), nil
		}
		for _, c := range cats {
			res.Categories = append(res.Categories, categoryTotal{Category: c.Category, Seconds: c.TotalSeconds, Spans: c.SpanCount})
			res.TotalSeconds += c.TotalSeconds
		}
		return jsonResult(res)
	}

	if projectID == "" {
		return jsonResult(res)
	}
	spans, err := s.st.ListSpans(store.SpanFilter{ProjectID: projectID, From: &from, To: &to})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list spans: %v", err)), nil
	}
	idx := map[string]int{}
	for _, sp := range spans {
		i, ok := idx[sp.Category]
		if !ok {
			i = len(res.Categories)
			idx[sp.Category] = i
			res.Categories = append(res.Categories, categoryTotal{Category: sp.Category})
		}
		res.Categories[i].Seconds += sp.DurationSeconds
		res.Categories[i].Spans++
		res.TotalSeconds += sp.DurationSeconds
	}
	return jsonResult(res)
}

type projectInfo struct {
	Name        string `json:"name"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description,omitempty"`
	LastActive  string `json:"last_active"`
	Embedded    bool   `json:"embedded"`
}

func (s *Server) handleListProjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.st.ListProjects()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list projects: %v", err)), nil
	}
	out := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectInfo{
			Name:        p.Name,
			Path:        p.Path,
			Description: p.Description,
			LastActive:  p.LastActive.UTC().Format(time.RFC3339),
			Embedded:    len(p.Embedding) > 0,
		})
	}
	return jsonResult(out)
}

type sessionInfo struct {
	ID            string   `json:"id"`
	StartedAt     string   `json:"started_at"`
	EndedAt       string   `json:"ended_at,omitempty"`
	ActiveSeconds int64    `json:"active_seconds"`
	IdleSeconds   int64    `json:"idle_seconds"`
	Interruptions int64    `json:"interruptions"`
	Categories    []string `json:"categories,omitempty"`
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 10
	if v, ok := req.GetArguments()["limit"].(float64); ok && v >= 1 && v <= 100 {
		limit = int(v)
	}
	sessions, err := s.st.ListSessions(limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions: %v", err)), nil
	}
	out := make([]sessionInfo, 0, len(sessions))
	for _, ss := range sessions {
		info := sessionInfo{
			ID:            ss.ID,
			StartedAt:     ss.StartedAt.UTC().Format(time.RFC3339),
			ActiveSeconds: ss.ActiveSeconds,
			IdleSeconds:   ss.IdleSeconds,
			Interruptions: ss.Interruptions,
			Categories:    ss.Categories,
		}
		if ss.EndedAt != nil {
			info.EndedAt = ss.EndedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, info)
	}
	return jsonResult(out)
}

type ruleInfo struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Target   string `json:"target"`
	Pattern  string `json:"pattern"`
	Category string `json:"category"`
	Hits     int64  `json:"hits"`
}

func toRuleInfo(r store.Rule) ruleInfo {
	return ruleInfo{
		ID:       r.ID,
		Class:    string(r.Class),
		Target:   string(r.Target),
		Pattern:  r.Pattern,
		Category: r.Category,
		Hits:     r.HitCount,
	}
}

func (s *Server) handleListRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.cls.Reload(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load rules: %v", err)), nil
	}
	rules := s.cls.Rules()
	out := make([]ruleInfo, 0, len(rules))
	for _, r := range rules {
		out = append(out, toRuleInfo(r))
	}
	return jsonResult(out)
}

func (s *Server) handleAddCorrection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	r, err := s.cls.AddCorrection(pattern, store.PatternTarget(target), strings.TrimSpace(category))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Info().Str("pattern", r.Pattern).Str("category", r.Category).Msg("correction added")
	return jsonResult(toRuleInfo(*r))
}

type issueResult struct {
	Found  bool   `json:"found"`
	ID     string `json:"id,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Source string `json:"source,omitempty"`
}

func (s *Server) handleDetectIssue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	title := req.GetString("title", "")
	if path == "" && title == "" {
		return mcp.NewToolResultError("path or title is required"), nil
	}
	ref := s.det.Detect(ctx, path, title)
	if ref == nil {
		return jsonResult(issueResult{})
	}
	return jsonResult(issueResult{Found: true, ID: ref.ID, Prefix: ref.Prefix, Source: string(ref.Source)})
}
