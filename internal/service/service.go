// Package service implements the vault orchestrator that wires together
// configuration, the record store, the campaign modules, redaction and the
// search index.
package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-ports/lazyvault/internal/aggregate"
	"github.com/go-ports/lazyvault/internal/campaigns"
	"github.com/go-ports/lazyvault/internal/config"
	"github.com/go-ports/lazyvault/internal/index"
	"github.com/go-ports/lazyvault/internal/journal"
	"github.com/go-ports/lazyvault/internal/linking"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/prompt"
	"github.com/go-ports/lazyvault/internal/redaction"
	"github.com/go-ports/lazyvault/internal/sessions"
	"github.com/go-ports/lazyvault/internal/store"
	"github.com/go-ports/lazyvault/internal/vault"
)

// Service orchestrates all vault operations for one home directory.
type Service struct {
	Home   string
	Config *config.Config

	store      *store.Store
	campaigns  *campaigns.Manager
	registry   *vault.Registry
	reconciler *linking.Reconciler
	ledger     *sessions.Ledger
	builder    *aggregate.Builder
	index      *index.Index // nil when the index is disabled

	ignorePatterns []*regexp.Regexp
	mu             sync.Mutex
	locks          map[string]*sync.Mutex
}

// ReindexResult reports a search index rebuild.
type ReindexResult struct {
	Campaigns int `json:"campaigns"`
	Items     int `json:"items"`
}

// New initialises a Service rooted at home.
// If home is empty it is resolved via config.ResolveHome.
func New(home string) (*Service, error) {
	if home == "" {
		home, _ = config.ResolveHome("")
	}

	root := filepath.Join(home, "campaigns")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("service.New: create campaigns dir: %w", err)
	}

	cfg, err := config.Load(filepath.Join(home, "config.yaml"))
	if err != nil {
		return nil, fmt.Errorf("service.New: load config: %w", err)
	}

	st := store.New(root)
	cm := campaigns.New(st)
	reg := vault.New(st)
	rc := linking.New(reg)
	ledger := sessions.New(st, cm, reg, rc)

	s := &Service{
		Home:       home,
		Config:     cfg,
		store:      st,
		campaigns:  cm,
		registry:   reg,
		reconciler: rc,
		ledger:     ledger,
		builder:    aggregate.New(cm, reg, ledger),
		locks:      make(map[string]*sync.Mutex),
	}

	if cfg.Index.Enabled {
		// Search falls back to scanning the documents without an index.
		ix, err := index.Open(filepath.Join(home, "index.db"))
		if err != nil {
			slog.Warn("search index unavailable, continuing without it", "err", err)
		} else {
			s.index = ix
		}
	}
	return s, nil
}

// Close releases all resources held by the service.
func (s *Service) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

// IndexEnabled reports whether writes maintain the search index.
func (s *Service) IndexEnabled() bool { return s.index != nil }

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// lock serializes mutating operations on one campaign within this process.
// The returned func releases the lock.
func (s *Service) lock(campaignID string) func() {
	s.mu.Lock()
	m, ok := s.locks[campaignID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[campaignID] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// getIgnorePatterns returns redaction patterns, lazily loaded from .vaultignore.
func (s *Service) getIgnorePatterns() []*regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignorePatterns != nil {
		return s.ignorePatterns
	}
	patterns, err := redaction.LoadIgnore(filepath.Join(s.Home, ".vaultignore"))
	if err != nil {
		slog.Warn("failed to load .vaultignore", "err", err)
	}
	if patterns == nil {
		patterns = make([]*regexp.Regexp, 0)
	}
	s.ignorePatterns = patterns
	return patterns
}

// indexItem refreshes one item in the search index. Failures are logged only;
// the JSON documents stay authoritative.
func (s *Service) indexItem(campaignID string, item *models.VaultItem) {
	if s.index == nil || item == nil {
		return
	}
	if err := s.index.UpsertItem(campaignID, item); err != nil {
		slog.Warn("index upsert failed", "campaign", campaignID, "item", item.ID, "err", err)
	}
}

// refreshItems re-reads ids from disk and refreshes their index rows.
func (s *Service) refreshItems(campaignID string, ids ...[]string) {
	if s.index == nil {
		return
	}
	v, err := s.registry.Open(campaignID)
	if err != nil {
		slog.Warn("index refresh skipped", "campaign", campaignID, "err", err)
		return
	}
	for _, group := range ids {
		for _, id := range group {
			if !v.Has(id) {
				continue
			}
			item, err := v.Get(id)
			if err != nil {
				slog.Warn("index refresh skipped item", "campaign", campaignID, "item", id, "err", err)
				continue
			}
			s.indexItem(campaignID, item)
		}
	}
}

// ---------------------------------------------------------------------------
// Campaigns
// ---------------------------------------------------------------------------

// CreateCampaign creates a campaign and its empty vault and session folders.
func (s *Service) CreateCampaign(in *models.CampaignInput) (*models.Campaign, error) {
	return s.campaigns.Create(in)
}

// ListCampaigns returns every campaign sorted by title.
func (s *Service) ListCampaigns() ([]*models.Campaign, error) {
	return s.campaigns.List()
}

// GetCampaign returns one campaign.
func (s *Service) GetCampaign(id string) (*models.Campaign, error) {
	return s.campaigns.Get(id)
}

// UpdateCampaign merges p into the campaign metadata.
func (s *Service) UpdateCampaign(id string, p *models.CampaignPatch) (*models.Campaign, error) {
	defer s.lock(id)()
	return s.campaigns.Update(id, p)
}

// DeleteCampaign removes the campaign with all its items and sessions and
// drops its index rows.
func (s *Service) DeleteCampaign(id string) (bool, error) {
	defer s.lock(id)()
	existed, err := s.campaigns.Delete(id)
	if err != nil {
		return false, err
	}
	if s.index != nil {
		if _, err := s.index.DeleteCampaign(id); err != nil {
			slog.Warn("index campaign delete failed", "campaign", id, "err", err)
		}
	}
	return existed, nil
}

// ActivateSession points the campaign at sessionID. An empty sessionID
// clears the pointer.
func (s *Service) ActivateSession(campaignID, sessionID string) (*models.Campaign, error) {
	defer s.lock(campaignID)()
	return s.campaigns.SetActiveSession(campaignID, sessionID)
}

// ---------------------------------------------------------------------------
// Vault items
// ---------------------------------------------------------------------------

// CreateItem stores a new reserve item.
func (s *Service) CreateItem(campaignID, itemType string, tags []string, content map[string]any) (*models.VaultItem, error) {
	defer s.lock(campaignID)()
	item, err := s.registry.Create(campaignID, itemType, tags, content)
	if err != nil {
		return nil, err
	}
	s.indexItem(campaignID, item)
	return item, nil
}

// ListItems returns the campaign's items, optionally filtered by type.
func (s *Service) ListItems(campaignID, itemType string) ([]*models.VaultItem, error) {
	return s.registry.List(campaignID, itemType)
}

// GetItem returns one item.
func (s *Service) GetItem(campaignID, id string) (*models.VaultItem, error) {
	return s.registry.Get(campaignID, id)
}

// UpdateItem merges p into an item.
func (s *Service) UpdateItem(campaignID, id string, p *models.ItemPatch) (*models.VaultItem, error) {
	defer s.lock(campaignID)()
	item, err := s.registry.Update(campaignID, id, p)
	if err != nil {
		return nil, err
	}
	s.indexItem(campaignID, item)
	return item, nil
}

// DeleteItem removes an item. Sessions that still link it keep the dangling
// ID; the reconciler skips unknown IDs.
func (s *Service) DeleteItem(campaignID, id string) (bool, error) {
	defer s.lock(campaignID)()
	existed, err := s.registry.Delete(campaignID, id)
	if err != nil {
		return false, err
	}
	if s.index != nil {
		if _, err := s.index.DeleteItem(campaignID, id); err != nil {
			slog.Warn("index delete failed", "campaign", campaignID, "item", id, "err", err)
		}
	}
	return existed, nil
}

// SearchVault runs a full-text search over one campaign's items. Without an
// index it falls back to a term scan over the JSON documents.
func (s *Service) SearchVault(campaignID, query string, limit int, itemType string) ([]index.Hit, error) {
	if !s.campaigns.Exists(campaignID) {
		return nil, models.NotFound("campaign", campaignID)
	}
	if s.index != nil {
		hits, err := s.index.Search(campaignID, query, limit, itemType)
		if err == nil {
			return hits, nil
		}
		slog.Warn("SearchVault: index search failed, scanning documents", "err", err)
	}
	items, err := s.registry.List(campaignID, itemType)
	if err != nil {
		return nil, err
	}
	return scan(campaignID, items, query, limit), nil
}

// scan scores items by how many query terms their flattened text contains.
func scan(campaignID string, items []*models.VaultItem, query string, limit int) []index.Hit {
	terms := strings.Fields(strings.ToLower(query))
	if limit <= 0 {
		limit = 10
	}
	hits := make([]index.Hit, 0)
	if len(terms) == 0 {
		return hits
	}
	for _, it := range items {
		body := strings.ToLower(index.Flatten(it.Content) + " " + strings.Join(it.Tags, " ") + " " + it.Type)
		var score float64
		for _, t := range terms {
			if strings.Contains(body, t) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		name, _ := it.Name()
		hits = append(hits, index.Hit{
			CampaignID: campaignID,
			ID:         it.ID,
			Type:       it.Type,
			Status:     it.Status,
			Name:       name,
			Tags:       it.Tags,
			UsageCount: it.UsageCount,
			Score:      score,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// CreateSession appends a planned session.
func (s *Service) CreateSession(campaignID string, seed *models.SessionSeed) (*models.Session, error) {
	defer s.lock(campaignID)()
	return s.ledger.Create(campaignID, seed)
}

// ListSessions returns the campaign's sessions by number.
func (s *Service) ListSessions(campaignID string) ([]*models.Session, error) {
	return s.ledger.List(campaignID)
}

// GetSession returns one session.
func (s *Service) GetSession(campaignID, id string) (*models.Session, error) {
	return s.ledger.Get(campaignID, id)
}

// UpdateSession merges p into a session and reconciles the vault when the
// link set was supplied.
func (s *Service) UpdateSession(campaignID, id string, p *models.SessionPatch) (*models.Session, *linking.Result, error) {
	defer s.lock(campaignID)()
	sess, res, err := s.ledger.Update(campaignID, id, p)
	if res != nil {
		s.refreshItems(campaignID, res.Activated, res.Reserved)
	}
	return sess, res, err
}

// DeleteSession removes a session and releases its links.
func (s *Service) DeleteSession(campaignID, id string) (bool, error) {
	defer s.lock(campaignID)()
	var linked []string
	if sess, err := s.ledger.Get(campaignID, id); err == nil {
		linked = sess.LinkedItems
	}
	existed, err := s.ledger.Delete(campaignID, id)
	s.refreshItems(campaignID, linked)
	return existed, err
}

// FinalizeSession closes a session after play.
func (s *Service) FinalizeSession(campaignID, id string, in *models.FinalizeInput) (*models.FinalizeResult, error) {
	defer s.lock(campaignID)()
	res, err := s.ledger.Finalize(campaignID, id, in)
	if res != nil {
		s.refreshItems(campaignID, res.Archived, res.Released)
	}
	return res, err
}

// ---------------------------------------------------------------------------
// Context, prompt and journal
// ---------------------------------------------------------------------------

// Context builds the aggregation context. An empty mode and a zero rolling
// limit fall back to the configured defaults.
func (s *Service) Context(campaignID string, req aggregate.Request) (*aggregate.Context, error) {
	if req.Mode == "" {
		mode, err := aggregate.ParseMode(s.Config.Context.DefaultMode)
		if err != nil {
			slog.Warn("invalid context.default_mode, using prep", "value", s.Config.Context.DefaultMode)
			mode = aggregate.ModePrep
		}
		req.Mode = mode
	}
	if req.RollingLimit <= 0 {
		req.RollingLimit = s.Config.Context.RollingMemory
	}
	return s.builder.Build(campaignID, req)
}

// Prompt builds the context and renders the assistant conversation for query.
func (s *Service) Prompt(campaignID string, req aggregate.Request, query string) ([]prompt.Message, *aggregate.Context, error) {
	ctx, err := s.Context(campaignID, req)
	if err != nil {
		return nil, nil, err
	}
	return prompt.Build(ctx, query, s.getIgnorePatterns()), ctx, nil
}

// ExportJournal writes the campaign's session journal under <home>/exports
// and returns the file path.
func (s *Service) ExportJournal(campaignID string) (string, error) {
	camp, err := s.campaigns.Get(campaignID)
	if err != nil {
		return "", err
	}
	all, err := s.ledger.List(campaignID)
	if err != nil {
		return "", err
	}
	return journal.Write(filepath.Join(s.Home, "exports"), camp, all)
}

// ---------------------------------------------------------------------------
// Reindex
// ---------------------------------------------------------------------------

// Reindex rebuilds the search index from the JSON documents for one campaign,
// or for every campaign when campaignID is empty.
// progress is called with (current, total) after each campaign; may be nil.
func (s *Service) Reindex(campaignID string, progress func(current, total int)) (*ReindexResult, error) {
	if s.index == nil {
		return nil, fmt.Errorf("Reindex: the search index is disabled (index.enabled: false)")
	}

	ids := []string{campaignID}
	if campaignID == "" {
		var err error
		if ids, err = s.store.ListCampaignIDs(); err != nil {
			return nil, fmt.Errorf("Reindex: list campaigns: %w", err)
		}
	} else if !s.campaigns.Exists(campaignID) {
		return nil, models.NotFound("campaign", campaignID)
	}

	res := &ReindexResult{}
	for i, id := range ids {
		items, err := s.registry.List(id, "")
		if err != nil {
			return nil, fmt.Errorf("Reindex: %w", err)
		}
		if err := s.index.ReplaceCampaign(id, items); err != nil {
			return nil, fmt.Errorf("Reindex: %w", err)
		}
		res.Campaigns++
		res.Items += len(items)
		if progress != nil {
			progress(i+1, len(ids))
		}
	}
	return res, nil
}
