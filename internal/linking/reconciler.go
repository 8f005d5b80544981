// Package linking keeps vault item status consistent with session linking.
//
// Status "active" is a projection of exactly one session's link set: each
// Reconcile call treats the supplied set as the only active one, so two
// sessions that link distinct items will evict each other's active items
// back to reserve. Archived items are never touched by a reconcile or a
// release.
package linking

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/vault"
)

// Result lists the item IDs written by a pass, grouped by the new status.
type Result struct {
	Activated []string `json:"activated"`
	Reserved  []string `json:"reserved"`
	Archived  []string `json:"archived"`
}

// Changed reports whether any item was written.
func (r *Result) Changed() bool {
	return len(r.Activated)+len(r.Reserved)+len(r.Archived) > 0
}

// Reconciler applies link-driven status transitions to a campaign's vault.
type Reconciler struct {
	registry *vault.Registry
}

// New returns a Reconciler operating through registry.
func New(registry *vault.Registry) *Reconciler {
	return &Reconciler{registry: registry}
}

// Reconcile sweeps every item in the campaign: linked items that are not
// active become active, active items that are not linked become reserve.
// Items already in the right state are not rewritten. A failure on one item
// does not stop the sweep; all failures are joined into the returned error.
func (rc *Reconciler) Reconcile(campaignID string, linked []string) (*Result, error) {
	v, err := rc.registry.Open(campaignID)
	if err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(linked))
	for _, id := range linked {
		want[id] = struct{}{}
	}

	res := &Result{}
	items, loadErr := v.Items()
	errs := []error{loadErr}
	for _, item := range items {
		if item.Status == models.StatusArchived {
			continue
		}
		_, isLinked := want[item.ID]
		var next models.ItemStatus
		switch {
		case isLinked && item.Status != models.StatusActive:
			next = models.StatusActive
		case !isLinked && item.Status == models.StatusActive:
			next = models.StatusReserve
		default:
			continue
		}
		item.Status = next
		if err := v.Save(item); err != nil {
			errs = append(errs, fmt.Errorf("Reconcile: item %s: %w", item.ID, err))
			continue
		}
		if next == models.StatusActive {
			res.Activated = append(res.Activated, item.ID)
		} else {
			res.Reserved = append(res.Reserved, item.ID)
		}
	}
	return res, report("Reconcile", campaignID, errors.Join(errs...))
}

// Release forces each existing, non-archived item in ids back to reserve,
// whatever its current status. Missing IDs are ignored.
func (rc *Reconciler) Release(campaignID string, ids []string) (*Result, error) {
	v, err := rc.registry.Open(campaignID)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	var errs []error
	for _, id := range models.Unique(ids) {
		if !v.Has(id) {
			continue
		}
		item, err := v.Get(id)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if item.Status == models.StatusArchived || item.Status == models.StatusReserve {
			continue
		}
		item.Status = models.StatusReserve
		if err := v.Save(item); err != nil {
			errs = append(errs, fmt.Errorf("Release: item %s: %w", id, err))
			continue
		}
		res.Reserved = append(res.Reserved, id)
	}
	return res, report("Release", campaignID, errors.Join(errs...))
}

// Archive retires each existing item in ids and increments its usage count.
// Items that are already archived are left alone, which makes repeated calls
// with the same IDs no-ops.
func (rc *Reconciler) Archive(campaignID string, ids []string) (*Result, error) {
	v, err := rc.registry.Open(campaignID)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	var errs []error
	for _, id := range models.Unique(ids) {
		if !v.Has(id) {
			continue
		}
		item, err := v.Get(id)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if item.Status == models.StatusArchived {
			continue
		}
		item.Status = models.StatusArchived
		item.UsageCount++
		if err := v.Save(item); err != nil {
			errs = append(errs, fmt.Errorf("Archive: item %s: %w", id, err))
			continue
		}
		res.Archived = append(res.Archived, id)
	}
	return res, report("Archive", campaignID, errors.Join(errs...))
}

func report(op, campaignID string, err error) error {
	if err != nil {
		slog.Warn("linking: partial failure", "op", op, "campaign", campaignID, "err", err)
	}
	return err
}
