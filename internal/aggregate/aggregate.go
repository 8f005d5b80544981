// Package aggregate assembles the narrative context handed to the assistant:
// framework text, truths, fronts, player characters, the rolling memory of
// recent completed sessions, and either the items in play (session mode) or
// the names already in the vault (prep mode).
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-ports/lazyvault/internal/campaigns"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/sessions"
	"github.com/go-ports/lazyvault/internal/vault"
)

// Mode selects which part of the vault feeds the context.
type Mode string

const (
	// ModePrep is used between sessions to grow the vault.
	ModePrep Mode = "prep"
	// ModeSession is used at the table, scoped to one session.
	ModeSession Mode = "session"
)

// DefaultRollingLimit is the number of completed sessions in rolling memory.
const DefaultRollingLimit = 3

// DefaultFramework stands in when a campaign has no framework text at all.
const DefaultFramework = "A generic fantasy world."

// ParseMode maps user input to a Mode. Empty input and "vault" mean prep;
// "scene" is accepted for session.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prep", "vault":
		return ModePrep, nil
	case "session", "scene":
		return ModeSession, nil
	default:
		return "", models.Invalid("mode", fmt.Sprintf("%q is not one of prep, session", s))
	}
}

// Request parameterizes Build.
type Request struct {
	Mode      Mode
	SessionID string
	// RollingLimit caps rolling memory; zero or less uses DefaultRollingLimit.
	RollingLimit int
}

// MemoryEntry is one completed session in rolling memory.
type MemoryEntry struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Context is the structured result of Build. It is not a prompt; see package
// prompt for rendering.
type Context struct {
	CampaignID    string `json:"campaign_id"`
	CampaignTitle string `json:"campaign_title"`
	// Mode is the effective mode. It is prep when a session-mode request named
	// a session that does not exist, in which case Fallback is set.
	Mode          Mode             `json:"mode"`
	Fallback      bool             `json:"fallback,omitempty"`
	SessionID     string           `json:"session_id,omitempty"`
	FrameworkText string           `json:"framework_text"`
	Truths        []string         `json:"truths"`
	Fronts        []models.Front   `json:"fronts"`
	Characters    []map[string]any `json:"characters"`
	RollingMemory []MemoryEntry    `json:"rolling_memory"`

	// ActiveItems and AvailableSecrets belong to session mode and
	// ExistingItemNames to prep mode. The encoded form always carries the
	// keys of the effective mode, empty or not, and never the others.
	ActiveItems      []map[string]any `json:"active_items"`
	AvailableSecrets []map[string]any `json:"available_secrets"`
	// ExistingItemNames holds one entry per vault item; nil when the item has
	// neither a name nor a title.
	ExistingItemNames []*string `json:"existing_item_names"`
}

// MarshalJSON implements json.Marshaler.
func (c Context) MarshalJSON() ([]byte, error) {
	type plain Context
	out := struct {
		plain
		ActiveItems       *[]map[string]any `json:"active_items,omitempty"`
		AvailableSecrets  *[]map[string]any `json:"available_secrets,omitempty"`
		ExistingItemNames *[]*string        `json:"existing_item_names,omitempty"`
	}{plain: plain(c)}

	if c.Mode == ModeSession {
		active, secrets := nonNil(c.ActiveItems), nonNil(c.AvailableSecrets)
		out.ActiveItems, out.AvailableSecrets = &active, &secrets
	} else {
		names := c.ExistingItemNames
		if names == nil {
			names = make([]*string, 0)
		}
		out.ExistingItemNames = &names
	}
	return json.Marshal(out)
}

// Builder reads the campaign, its vault and its sessions.
type Builder struct {
	campaigns *campaigns.Manager
	registry  *vault.Registry
	ledger    *sessions.Ledger
}

// New returns a Builder.
func New(cm *campaigns.Manager, reg *vault.Registry, l *sessions.Ledger) *Builder {
	return &Builder{campaigns: cm, registry: reg, ledger: l}
}

// Build assembles the context for a campaign. It fails with a NotFoundError
// only when the campaign itself is missing.
func (b *Builder) Build(campaignID string, req Request) (*Context, error) {
	camp, err := b.campaigns.Get(campaignID)
	if err != nil {
		return nil, err
	}
	items, err := b.registry.List(campaignID, "")
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}
	all, err := b.ledger.List(campaignID)
	if err != nil {
		return nil, fmt.Errorf("Build: %w", err)
	}

	limit := req.RollingLimit
	if limit <= 0 {
		limit = DefaultRollingLimit
	}
	ctx := &Context{
		CampaignID:    camp.ID,
		CampaignTitle: camp.Title,
		Mode:          ModePrep,
		FrameworkText: FrameworkText(camp),
		Truths:        Truths(camp.Truths),
		Fronts:        camp.Fronts,
		Characters:    contents(items, func(it *models.VaultItem) bool { return it.Type == models.TypeCharacter }),
		RollingMemory: RollingMemory(all, limit),
	}
	if ctx.Fronts == nil {
		ctx.Fronts = make([]models.Front, 0)
	}

	if req.Mode == ModeSession {
		sess, err := b.ledger.Get(campaignID, req.SessionID)
		switch {
		case err == nil:
			ctx.Mode = ModeSession
			ctx.SessionID = sess.ID
			linked := make(map[string]struct{}, len(sess.LinkedItems))
			for _, id := range sess.LinkedItems {
				linked[id] = struct{}{}
			}
			ctx.ActiveItems = contents(items, func(it *models.VaultItem) bool {
				_, ok := linked[it.ID]
				return ok
			})
			ctx.AvailableSecrets = contents(items, func(it *models.VaultItem) bool {
				return it.Type == models.TypeSecret && it.Status == models.StatusReserve
			})
			return ctx, nil
		case errors.Is(err, models.ErrNotFound):
			ctx.Fallback = true
		default:
			return nil, fmt.Errorf("Build: %w", err)
		}
	}

	ctx.ExistingItemNames = make([]*string, 0, len(items))
	for _, it := range items {
		if name, ok := it.Name(); ok {
			ctx.ExistingItemNames = append(ctx.ExistingItemNames, &name)
		} else {
			ctx.ExistingItemNames = append(ctx.ExistingItemNames, nil)
		}
	}
	return ctx, nil
}

// FrameworkText picks the world text: the full framework when the campaign
// asks for it, otherwise the summary, then the framework, then
// DefaultFramework.
func FrameworkText(camp *models.Campaign) string {
	if camp.UseFullFramework && camp.Framework != "" {
		return camp.Framework
	}
	if camp.FrameworkSummary != "" {
		return camp.FrameworkSummary
	}
	if camp.Framework != "" {
		return camp.Framework
	}
	return DefaultFramework
}

// Truths drops empty entries and keeps order. Whitespace-only entries are
// kept as written.
func Truths(truths []string) []string {
	out := make([]string, 0, len(truths))
	for _, t := range truths {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// RollingMemory selects the limit highest-numbered completed sessions with a
// non-empty summary and returns them in ascending number order.
func RollingMemory(all []*models.Session, limit int) []MemoryEntry {
	qualifying := make([]*models.Session, 0, len(all))
	for _, s := range all {
		if s.Status == models.SessionCompleted && strings.TrimSpace(s.Summary) != "" {
			qualifying = append(qualifying, s)
		}
	}
	sort.SliceStable(qualifying, func(i, j int) bool { return qualifying[i].Number > qualifying[j].Number })
	if limit >= 0 && len(qualifying) > limit {
		qualifying = qualifying[:limit]
	}

	out := make([]MemoryEntry, 0, len(qualifying))
	for i := len(qualifying) - 1; i >= 0; i-- {
		s := qualifying[i]
		out = append(out, MemoryEntry{
			Number:  s.Number,
			Title:   sessions.DisplayTitle(s),
			Summary: s.Summary,
		})
	}
	return out
}

func contents(items []*models.VaultItem, keep func(*models.VaultItem) bool) []map[string]any {
	out := make([]map[string]any, 0)
	for _, it := range items {
		if keep(it) {
			out = append(out, it.Content)
		}
	}
	return out
}

func nonNil(items []map[string]any) []map[string]any {
	if items == nil {
		return make([]map[string]any, 0)
	}
	return items
}
