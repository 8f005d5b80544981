// Package vault owns a campaign's pool of reusable narrative items and their
// status transitions.
package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/store"
)

// Registry is the entry point for vault item CRUD.
type Registry struct {
	store *store.Store
}

// New returns a Registry backed by s.
func New(s *store.Store) *Registry {
	return &Registry{store: s}
}

// Open scans the campaign's vault directory once and returns a handle that
// resolves item IDs without further scans. Returns a NotFoundError when the
// campaign does not exist.
func (r *Registry) Open(campaignID string) (*Vault, error) {
	if !r.store.CampaignExists(campaignID) {
		return nil, models.NotFound("campaign", campaignID)
	}
	ix, err := store.BuildIndex(r.store.VaultDir(campaignID))
	if err != nil {
		return nil, err
	}
	return &Vault{index: ix}, nil
}

// Create persists a new item in reserve with a zero usage count.
// Nothing is written when validation fails.
func (r *Registry) Create(campaignID, itemType string, tags []string, content map[string]any) (*models.VaultItem, error) {
	if strings.TrimSpace(itemType) == "" {
		return nil, models.Invalid("type", "is required")
	}
	v, err := r.Open(campaignID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = make(map[string]any)
	}
	item := &models.VaultItem{
		ID:         models.NewID(),
		Type:       itemType,
		Status:     models.StatusReserve,
		UsageCount: 0,
		Tags:       models.Unique(tags),
		Content:    content,
	}
	if err := v.Save(item); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return item, nil
}

// List returns the campaign's items, restricted to typeFilter when it is
// non-empty. Order follows the directory listing and is not guaranteed.
// Unreadable documents are skipped with a warning.
func (r *Registry) List(campaignID, typeFilter string) ([]*models.VaultItem, error) {
	v, err := r.Open(campaignID)
	if err != nil {
		return nil, err
	}
	items, loadErr := v.Items()
	if loadErr != nil {
		slog.Warn("vault.List: skipping unreadable items", "campaign", campaignID, "err", loadErr)
	}
	if typeFilter == "" {
		return items, nil
	}
	out := make([]*models.VaultItem, 0, len(items))
	for _, it := range items {
		if it.Type == typeFilter {
			out = append(out, it)
		}
	}
	return out, nil
}

// Get returns a single item.
func (r *Registry) Get(campaignID, id string) (*models.VaultItem, error) {
	v, err := r.Open(campaignID)
	if err != nil {
		return nil, err
	}
	return v.Get(id)
}

// Update merges the supplied fields into the item and persists it.
func (r *Registry) Update(campaignID, id string, p *models.ItemPatch) (*models.VaultItem, error) {
	v, err := r.Open(campaignID)
	if err != nil {
		return nil, err
	}
	item, err := v.Get(id)
	if err != nil {
		return nil, err
	}
	if err := Apply(item, p); err != nil {
		return nil, err
	}
	if err := v.Save(item); err != nil {
		return nil, fmt.Errorf("Update: %w", err)
	}
	return item, nil
}

// Delete removes the item. Returns false when it did not exist.
func (r *Registry) Delete(campaignID, id string) (bool, error) {
	v, err := r.Open(campaignID)
	if err != nil {
		return false, err
	}
	return v.Delete(id)
}

// Apply merges p into item after validating it.
func Apply(item *models.VaultItem, p *models.ItemPatch) error {
	if p.Status != nil && !p.Status.Valid() {
		return models.Invalid("status", fmt.Sprintf("%q is not one of reserve, active, archived", *p.Status))
	}
	if p.UsageCount != nil && *p.UsageCount < 0 {
		return models.Invalid("usage_count", "must not be negative")
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
	if p.Tags != nil {
		item.Tags = models.Unique(*p.Tags)
	}
	if p.Content != nil {
		item.Content = *p.Content
		if item.Content == nil {
			item.Content = make(map[string]any)
		}
	}
	if p.UsageCount != nil {
		item.UsageCount = *p.UsageCount
	}
	return nil
}

// ---------------------------------------------------------------------------
// Vault handle
// ---------------------------------------------------------------------------

// Vault is one campaign's vault directory resolved through a single scan.
// It is scoped to one operation.
type Vault struct {
	index *store.Index
}

// IDs returns every indexed item ID in directory order.
func (v *Vault) IDs() []string { return v.index.IDs() }

// Has reports whether an item with id exists.
func (v *Vault) Has(id string) bool {
	_, ok := v.index.Path(id)
	return ok
}

// Get loads the item with id.
func (v *Vault) Get(id string) (*models.VaultItem, error) {
	path, ok := v.index.Path(id)
	if !ok {
		return nil, models.NotFound("item", id)
	}
	var item models.VaultItem
	found, err := store.LoadJSON(path, &item)
	if err != nil {
		return nil, err
	}
	if !found {
		v.index.Forget(id)
		return nil, models.NotFound("item", id)
	}
	normalize(&item, id)
	return &item, nil
}

// Items loads every item. Items that fail to load are left out and their
// errors are joined into the returned error.
func (v *Vault) Items() ([]*models.VaultItem, error) {
	ids := v.index.IDs()
	items := make([]*models.VaultItem, 0, len(ids))
	var errs []error
	for _, id := range ids {
		item, err := v.Get(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}
	return items, errors.Join(errs...)
}

// Save replaces the item's document, creating it when new.
func (v *Vault) Save(item *models.VaultItem) error {
	path, ok := v.index.Path(item.ID)
	if !ok {
		path = v.index.Add(item.ID, store.ItemFilename(item.Type, item.ID))
	}
	return store.SaveJSON(path, item)
}

// Delete removes the item's document.
func (v *Vault) Delete(id string) (bool, error) {
	path, ok := v.index.Path(id)
	if !ok {
		return false, nil
	}
	existed, err := store.Remove(path)
	if err != nil {
		return false, err
	}
	v.index.Forget(id)
	return existed, nil
}

// normalize fills read-side defaults for documents written by older versions.
// usage_count already decodes to 0 when absent.
func normalize(item *models.VaultItem, id string) {
	if item.ID == "" {
		item.ID = id
	}
	if item.Status == "" {
		item.Status = models.StatusReserve
	}
	if item.Tags == nil {
		item.Tags = make([]string, 0)
	}
	if item.Content == nil {
		item.Content = make(map[string]any)
	}
}
