// Package mcp provides the stdio MCP server exposing campaign vault tools to
// AI assistants.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/lazyvault/internal/aggregate"
	"github.com/go-ports/lazyvault/internal/buildinfo"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/prompt"
	"github.com/go-ports/lazyvault/internal/service"
)

const contextDescription = `Load the campaign context for prep or live play: world framework, truths, fronts, player characters, recent session summaries and, in session mode, the linked items and unrevealed secrets. Call this before generating content so new material fits the campaign. Pass ` + "`query`" + ` to also receive the rendered assistant prompt.` //nolint:lll

const createDescription = `Add a reusable item (npc, location, secret, scene, character, ...) to the campaign vault. New items start in reserve. Check vault_search first so you do not duplicate an existing item.` //nolint:lll

const updateSessionDescription = `Update a session. Supplying linked_items replaces the session's link set and moves vault items between reserve and active to match; archived items are never touched.` //nolint:lll

const finalizeDescription = `Close a session after play: merge the used items, mark the session completed, archive used items, return unused linked items to reserve and clear the campaign's active session.` //nolint:lll

// NewServer creates and registers all vault tools on a new MCP server.
// It is separate from Serve so that tests can obtain a fully configured
// server without committing to the stdio transport.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("lazyvault", buildinfo.Resolved())
	registerTools(s, svc)
	return s
}

// Serve starts the stdio MCP server on the vault at home, blocking until
// stdin closes.
func Serve(_ context.Context, home string) error {
	svc, err := service.New(home)
	if err != nil {
		return fmt.Errorf("mcp: init service: %w", err)
	}
	defer svc.Close()

	return mcpserver.ServeStdio(NewServer(svc))
}

type handler func(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

func bind(svc *service.Service, h handler) mcpserver.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return h(svc, req)
	}
}

func campaignArg() mcp.ToolOption {
	return mcp.WithString("campaign_id", mcp.Description("Campaign ID."), mcp.Required())
}

// registerTools wires all vault tools into the server.
func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("campaign_list",
		mcp.WithDescription("List campaigns with their IDs, pitches and active session."),
	), bind(svc, handleCampaignList))

	s.AddTool(mcp.NewTool("campaign_context",
		mcp.WithDescription(contextDescription),
		campaignArg(),
		mcp.WithString("mode",
			mcp.Description("prep (default from config) or session."),
			mcp.Enum("prep", "session"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to load in session mode. Falls back to prep when missing."),
		),
		mcp.WithNumber("rolling_limit",
			mcp.Description("Completed-session summaries to include (default from config)."),
		),
		mcp.WithString("query",
			mcp.Description("GM request to render into the assistant prompt."),
		),
	), bind(svc, handleContext))

	s.AddTool(mcp.NewTool("vault_list",
		mcp.WithDescription("List vault items of a campaign."),
		campaignArg(),
		mcp.WithString("type", mcp.Description("Only items of this type.")),
	), bind(svc, handleVaultList))

	s.AddTool(mcp.NewTool("vault_create",
		mcp.WithDescription(createDescription),
		campaignArg(),
		mcp.WithString("type",
			mcp.Description("Item type, e.g. npc, location, secret, scene, character."),
			mcp.Required(),
		),
		mcp.WithObject("content",
			mcp.Description("Freeform item body. Use a name or title key so the item can be listed."),
			mcp.Required(),
		),
		mcp.WithArray("tags", mcp.Description("Tags."), mcp.WithStringItems()),
	), bind(svc, handleVaultCreate))

	s.AddTool(mcp.NewTool("vault_update",
		mcp.WithDescription("Update a vault item. Only the supplied fields change."),
		campaignArg(),
		mcp.WithString("id", mcp.Description("Item ID."), mcp.Required()),
		mcp.WithString("status",
			mcp.Description("New status."),
			mcp.Enum(string(models.StatusReserve), string(models.StatusActive), string(models.StatusArchived)),
		),
		mcp.WithObject("content", mcp.Description("Replacement item body.")),
		mcp.WithArray("tags", mcp.Description("Replacement tags."), mcp.WithStringItems()),
		mcp.WithNumber("usage_count", mcp.Description("Times the item was used in play.")),
	), bind(svc, handleVaultUpdate))

	s.AddTool(mcp.NewTool("vault_search",
		mcp.WithDescription("Full-text search over a campaign's vault items, ranked by relevance."),
		campaignArg(),
		mcp.WithString("query", mcp.Description("Search terms."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Max results (default 10).")),
		mcp.WithString("type", mcp.Description("Only items of this type.")),
	), bind(svc, handleVaultSearch))

	s.AddTool(mcp.NewTool("session_list",
		mcp.WithDescription("List a campaign's sessions in play order."),
		campaignArg(),
	), bind(svc, handleSessionList))

	s.AddTool(mcp.NewTool("session_create",
		mcp.WithDescription("Plan the next session. It is numbered after the highest existing session."),
		campaignArg(),
		mcp.WithString("title", mcp.Description("Session title.")),
		mcp.WithString("strong_start", mcp.Description("Opening scene.")),
		mcp.WithString("recap", mcp.Description("Recap of the previous session.")),
		mcp.WithString("notes", mcp.Description("GM notes.")),
	), bind(svc, handleSessionCreate))

	s.AddTool(mcp.NewTool("session_update",
		mcp.WithDescription(updateSessionDescription),
		campaignArg(),
		mcp.WithString("id", mcp.Description("Session ID."), mcp.Required()),
		mcp.WithString("title", mcp.Description("Session title.")),
		mcp.WithString("strong_start", mcp.Description("Opening scene.")),
		mcp.WithString("recap", mcp.Description("Recap of the previous session.")),
		mcp.WithString("summary", mcp.Description("What happened in play.")),
		mcp.WithString("notes", mcp.Description("GM notes.")),
		mcp.WithString("status",
			mcp.Description("New status."),
			mcp.Enum(string(models.SessionPlanned), string(models.SessionActive), string(models.SessionCompleted)),
		),
		mcp.WithArray("linked_items", mcp.Description("Vault item IDs prepared for this session."), mcp.WithStringItems()),
		mcp.WithArray("used_items", mcp.Description("Vault item IDs used in play."), mcp.WithStringItems()),
	), bind(svc, handleSessionUpdate))

	s.AddTool(mcp.NewTool("session_finalize",
		mcp.WithDescription(finalizeDescription),
		campaignArg(),
		mcp.WithString("id", mcp.Description("Session ID."), mcp.Required()),
		mcp.WithArray("used", mcp.Description("Additional vault item IDs used in play."), mcp.WithStringItems()),
		mcp.WithString("summary", mcp.Description("Replacement session summary.")),
	), bind(svc, handleSessionFinalize))
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleCampaignList(svc *service.Service, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := svc.ListCampaigns()
	if err != nil {
		return toolError(err), nil
	}
	out := make([]map[string]any, 0, len(all))
	for _, camp := range all {
		out = append(out, map[string]any{
			"id":             camp.ID,
			"title":          camp.Title,
			"elevator_pitch": camp.ElevatorPitch,
			"active_session": camp.ActiveSession,
		})
	}
	return jsonResult(out)
}

func handleContext(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var mode aggregate.Mode
	if raw := req.GetString("mode", ""); raw != "" {
		m, err := aggregate.ParseMode(raw)
		if err != nil {
			return toolError(err), nil
		}
		mode = m
	}
	r := aggregate.Request{
		Mode:         mode,
		SessionID:    req.GetString("session_id", ""),
		RollingLimit: req.GetInt("rolling_limit", 0),
	}
	campaignID := req.GetString("campaign_id", "")

	query := req.GetString("query", "")
	if query == "" {
		ctx, err := svc.Context(campaignID, r)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]any{"context": ctx})
	}

	msgs, ctx, err := svc.Prompt(campaignID, r, query)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"context": ctx,
		"prompt":  prompt.Render(msgs),
	})
}

func handleVaultList(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := svc.ListItems(req.GetString("campaign_id", ""), req.GetString("type", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(items)
}

func handleVaultCreate(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, _ := req.GetArguments()["content"].(map[string]any)
	item, err := svc.CreateItem(
		req.GetString("campaign_id", ""),
		req.GetString("type", ""),
		req.GetStringSlice("tags", make([]string, 0)),
		content,
	)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(item)
}

func handleVaultUpdate(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	p := &models.ItemPatch{Tags: optStrings(req, "tags")}
	if s := optString(req, "status"); s != nil {
		p.Status = models.Ptr(models.ItemStatus(*s))
	}
	if content, ok := args["content"].(map[string]any); ok {
		p.Content = &content
	}
	if _, ok := args["usage_count"]; ok {
		p.UsageCount = models.Ptr(req.GetInt("usage_count", 0))
	}

	item, err := svc.UpdateItem(req.GetString("campaign_id", ""), req.GetString("id", ""), p)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(item)
}

func handleVaultSearch(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	hits, err := svc.SearchVault(
		req.GetString("campaign_id", ""),
		req.GetString("query", ""),
		limit,
		req.GetString("type", ""),
	)
	if err != nil {
		return toolError(err), nil
	}
	for i := range hits {
		hits[i].Score = roundTwo(hits[i].Score)
	}
	return jsonResult(hits)
}

func handleSessionList(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := svc.ListSessions(req.GetString("campaign_id", ""))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(all)
}

func handleSessionCreate(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := svc.CreateSession(req.GetString("campaign_id", ""), &models.SessionSeed{
		Title:       req.GetString("title", ""),
		StrongStart: req.GetString("strong_start", ""),
		Recap:       req.GetString("recap", ""),
		Notes:       req.GetString("notes", ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(sess)
}

func handleSessionUpdate(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := &models.SessionPatch{
		Title:       optString(req, "title"),
		StrongStart: optString(req, "strong_start"),
		Recap:       optString(req, "recap"),
		Summary:     optString(req, "summary"),
		Notes:       optString(req, "notes"),
		LinkedItems: optStrings(req, "linked_items"),
		UsedItems:   optStrings(req, "used_items"),
	}
	if s := optString(req, "status"); s != nil {
		p.Status = models.Ptr(models.SessionStatus(*s))
	}

	sess, res, err := svc.UpdateSession(req.GetString("campaign_id", ""), req.GetString("id", ""), p)
	if sess == nil {
		return toolError(err), nil
	}
	out := map[string]any{"session": sess, "reconcile": res}
	if err != nil {
		// The session was saved; only part of the vault sweep failed.
		out["warning"] = err.Error()
	}
	return jsonResult(out)
}

func handleSessionFinalize(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := svc.FinalizeSession(req.GetString("campaign_id", ""), req.GetString("id", ""), &models.FinalizeInput{
		Used:    req.GetStringSlice("used", nil),
		Summary: optString(req, "summary"),
	})
	if res == nil {
		return toolError(err), nil
	}
	out := map[string]any{
		"session":  res.Session,
		"archived": res.Archived,
		"released": res.Released,
	}
	if err != nil {
		out["warning"] = err.Error()
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// toolError renders err as a tool-level error with a category prefix the
// assistant can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, models.ErrValidation):
		return mcp.NewToolResultError("invalid request: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

// optString returns a pointer to the string argument key, or nil when the
// caller did not supply it.
func optString(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &v
}

// optStrings returns a pointer to the string-array argument key, or nil when
// the caller did not supply it. Non-string elements are dropped.
func optStrings(req mcp.CallToolRequest, key string) *[]string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return &out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// roundTwo rounds f to 2 decimal places.
func roundTwo(f float64) float64 {
	return math.Round(f*100) / 100
}
