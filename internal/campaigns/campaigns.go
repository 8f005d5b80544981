// Package campaigns manages campaign metadata documents.
package campaigns

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/store"
)

// Manager reads and writes campaign metadata.
type Manager struct {
	store *store.Store
}

// New returns a Manager backed by s.
func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Create assigns a fresh ID, lays out the campaign directory and writes the
// metadata document. Title is required.
func (m *Manager) Create(in *models.CampaignInput) (*models.Campaign, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, models.Invalid("title", "is required")
	}

	camp := &models.Campaign{
		ID:               models.NewID(),
		Title:            in.Title,
		ElevatorPitch:    in.ElevatorPitch,
		Moods:            in.Moods,
		SafetyTools:      in.SafetyTools,
		Truths:           nonNil(in.Truths),
		Fronts:           nonNilFronts(in.Fronts),
		Framework:        in.Framework,
		FrameworkSummary: in.FrameworkSummary,
	}

	if err := m.store.EnsureCampaign(camp.ID); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	if err := store.SaveJSON(m.store.MetadataPath(camp.ID), camp); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return camp, nil
}

// Get loads the campaign metadata. Returns a NotFoundError when absent.
func (m *Manager) Get(id string) (*models.Campaign, error) {
	var camp models.Campaign
	found, err := store.LoadJSON(m.store.MetadataPath(id), &camp)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.NotFound("campaign", id)
	}
	// The directory name is authoritative for the ID.
	camp.ID = id
	return &camp, nil
}

// Exists reports whether the campaign metadata exists.
func (m *Manager) Exists(id string) bool {
	return m.store.CampaignExists(id)
}

// List returns every campaign sorted by title, then ID. Unreadable documents
// are skipped with a warning.
func (m *Manager) List() ([]*models.Campaign, error) {
	ids, err := m.store.ListCampaignIDs()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Campaign, 0, len(ids))
	for _, id := range ids {
		camp, err := m.Get(id)
		if err != nil {
			slog.Warn("campaigns.List: skipping unreadable campaign", "id", id, "err", err)
			continue
		}
		out = append(out, camp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := strings.ToLower(out[i].Title), strings.ToLower(out[j].Title)
		if ti != tj {
			return ti < tj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update merges the supplied fields into the campaign and persists it.
// The ID never changes.
func (m *Manager) Update(id string, p *models.CampaignPatch) (*models.Campaign, error) {
	camp, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, models.Invalid("title", "must not be empty")
		}
		camp.Title = *p.Title
	}
	if p.ElevatorPitch != nil {
		camp.ElevatorPitch = *p.ElevatorPitch
	}
	if p.Moods != nil {
		camp.Moods = *p.Moods
	}
	if p.SafetyTools != nil {
		camp.SafetyTools = *p.SafetyTools
	}
	if p.Truths != nil {
		camp.Truths = nonNil(*p.Truths)
	}
	if p.Fronts != nil {
		camp.Fronts = nonNilFronts(*p.Fronts)
	}
	if p.Framework != nil {
		camp.Framework = *p.Framework
	}
	if p.FrameworkSummary != nil {
		camp.FrameworkSummary = *p.FrameworkSummary
	}
	if p.UseFullFramework != nil {
		camp.UseFullFramework = *p.UseFullFramework
	}
	if p.ActiveSession != nil {
		if *p.ActiveSession == "" {
			camp.ActiveSession = nil
		} else {
			camp.ActiveSession = models.Ptr(*p.ActiveSession)
		}
	}

	if err := store.SaveJSON(m.store.MetadataPath(id), camp); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	return camp, nil
}

// Delete removes the campaign with all of its sessions and vault items.
func (m *Manager) Delete(id string) (bool, error) {
	return m.store.RemoveCampaign(id)
}

// SetActiveSession points the campaign at sessionID, or clears the pointer
// when sessionID is empty. The session must exist in the campaign.
func (m *Manager) SetActiveSession(id, sessionID string) (*models.Campaign, error) {
	if sessionID != "" {
		ix, err := store.BuildIndex(m.store.SessionsDir(id))
		if err != nil {
			return nil, err
		}
		if _, ok := ix.Path(sessionID); !ok {
			return nil, models.NotFound("session", sessionID)
		}
	}
	return m.Update(id, &models.CampaignPatch{ActiveSession: &sessionID})
}

// Fronts returns the campaign's current fronts.
func (m *Manager) Fronts(id string) ([]models.Front, error) {
	camp, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return camp.Fronts, nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return make([]string, 0)
	}
	return ss
}

func nonNilFronts(fs []models.Front) []models.Front {
	if fs == nil {
		return make([]models.Front, 0)
	}
	return fs
}
