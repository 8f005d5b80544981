// Package sessions owns a campaign's ordered sequence of play sessions:
// numbering, the completion snapshot of fronts, link reconciliation on save,
// and the finalize step that archives what was used at the table.
package sessions

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-ports/lazyvault/internal/campaigns"
	"github.com/go-ports/lazyvault/internal/linking"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/store"
	"github.com/go-ports/lazyvault/internal/vault"
)

// Ledger is the entry point for session operations.
type Ledger struct {
	store      *store.Store
	campaigns  *campaigns.Manager
	registry   *vault.Registry
	reconciler *linking.Reconciler
}

// New wires a Ledger. All collaborators must share the same store.
func New(s *store.Store, cm *campaigns.Manager, reg *vault.Registry, rc *linking.Reconciler) *Ledger {
	return &Ledger{store: s, campaigns: cm, registry: reg, reconciler: rc}
}

// entry is a session paired with the path it was loaded from.
type entry struct {
	session *models.Session
	path    string
}

// load reads every session document of the campaign in filename order.
// Unreadable documents are skipped; the second result is the highest number
// found in their filenames, so numbering never collides with them.
func (l *Ledger) load(campaignID string) ([]entry, int, error) {
	if !l.campaigns.Exists(campaignID) {
		return nil, 0, models.NotFound("campaign", campaignID)
	}
	ix, err := store.BuildIndex(l.store.SessionsDir(campaignID))
	if err != nil {
		return nil, 0, err
	}
	entries := make([]entry, 0, ix.Len())
	skippedMax := 0
	for _, id := range ix.IDs() {
		path, _ := ix.Path(id)
		var sess models.Session
		found, err := store.LoadJSON(path, &sess)
		if err != nil {
			slog.Warn("sessions: skipping unreadable session", "campaign", campaignID, "path", path, "err", err)
			if n, ok := store.SessionNumberFromFilename(filepath.Base(path)); ok && n > skippedMax {
				skippedMax = n
			}
			continue
		}
		if !found {
			continue
		}
		normalize(&sess, id)
		entries = append(entries, entry{session: &sess, path: path})
	}
	return entries, skippedMax, nil
}

func (l *Ledger) find(campaignID, id string) (entry, error) {
	if !l.campaigns.Exists(campaignID) {
		return entry{}, models.NotFound("campaign", campaignID)
	}
	ix, err := store.BuildIndex(l.store.SessionsDir(campaignID))
	if err != nil {
		return entry{}, err
	}
	path, ok := ix.Path(id)
	if !ok {
		return entry{}, models.NotFound("session", id)
	}
	var sess models.Session
	found, err := store.LoadJSON(path, &sess)
	if err != nil {
		return entry{}, err
	}
	if !found {
		return entry{}, models.NotFound("session", id)
	}
	normalize(&sess, id)
	return entry{session: &sess, path: path}, nil
}

// Create appends a new planned session numbered one past the current maximum,
// or 1 for the first session. Numbers freed by deletes are never reused, and
// documents that fail to decode still count through their filename number.
func (l *Ledger) Create(campaignID string, seed *models.SessionSeed) (*models.Session, error) {
	entries, skippedMax, err := l.load(campaignID)
	if err != nil {
		return nil, err
	}
	next := skippedMax + 1
	for _, e := range entries {
		if e.session.Number >= next {
			next = e.session.Number + 1
		}
	}
	if seed == nil {
		seed = &models.SessionSeed{}
	}
	sess := &models.Session{
		ID:          models.NewID(),
		Number:      next,
		Title:       seed.Title,
		Date:        models.Now(),
		StrongStart: seed.StrongStart,
		Recap:       seed.Recap,
		Notes:       seed.Notes,
		Status:      models.SessionPlanned,
		LinkedItems: make([]string, 0),
		UsedItems:   make([]string, 0),
	}
	path := filepath.Join(l.store.SessionsDir(campaignID), store.SessionFilename(sess.Number, sess.ID))
	if err := store.SaveJSON(path, sess); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return sess, nil
}

// List returns the campaign's sessions ascending by number. Sessions that
// share a number are ordered by creation date (insertion order), then by
// filename; a missing date sorts first.
func (l *Ledger) List(campaignID string) ([]*models.Session, error) {
	entries, _, err := l.load(campaignID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Session, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.session)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Number != out[j].Number {
			return out[i].Number < out[j].Number
		}
		return out[i].Date < out[j].Date
	})
	return out, nil
}

// Get returns one session.
func (l *Ledger) Get(campaignID, id string) (*models.Session, error) {
	e, err := l.find(campaignID, id)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

// Update merges the supplied fields, applies the completion snapshot rule and
// persists the session. When the patch supplies linked_items the vault is then
// reconciled against the saved link set. A reconcile failure is returned
// alongside the saved session, which is not rolled back.
func (l *Ledger) Update(campaignID, id string, p *models.SessionPatch) (*models.Session, *linking.Result, error) {
	if p == nil {
		p = &models.SessionPatch{}
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, nil, models.Invalid("status", fmt.Sprintf("%q is not one of planned, active, completed", *p.Status))
	}
	e, err := l.find(campaignID, id)
	if err != nil {
		return nil, nil, err
	}
	sess := e.session
	prior := sess.Status

	if p.Title != nil {
		sess.Title = *p.Title
	}
	if p.StrongStart != nil {
		sess.StrongStart = *p.StrongStart
	}
	if p.Recap != nil {
		sess.Recap = *p.Recap
	}
	if p.Summary != nil {
		sess.Summary = *p.Summary
	}
	if p.Notes != nil {
		sess.Notes = *p.Notes
	}
	if p.LinkedItems != nil {
		sess.LinkedItems = models.Unique(*p.LinkedItems)
	}
	if p.UsedItems != nil {
		sess.UsedItems = models.Unique(*p.UsedItems)
	}
	if p.Status != nil {
		sess.Status = *p.Status
	}
	if err := l.snapshot(campaignID, sess, prior); err != nil {
		return nil, nil, err
	}

	if err := store.SaveJSON(e.path, sess); err != nil {
		return nil, nil, fmt.Errorf("Update: %w", err)
	}

	if p.LinkedItems == nil {
		return sess, &linking.Result{}, nil
	}
	res, err := l.reconciler.Reconcile(campaignID, sess.LinkedItems)
	if err != nil {
		return sess, res, fmt.Errorf("Update: reconcile: %w", err)
	}
	return sess, res, nil
}

// snapshot copies the campaign's current fronts into the session on its
// transition into completed. A snapshot, once taken, is never replaced.
func (l *Ledger) snapshot(campaignID string, sess *models.Session, prior models.SessionStatus) error {
	if sess.Status != models.SessionCompleted || prior == models.SessionCompleted || sess.FrontsSnapshot != nil {
		return nil
	}
	fronts, err := l.campaigns.Fronts(campaignID)
	if err != nil {
		return err
	}
	snap := make([]models.Front, 0, len(fronts))
	for _, f := range fronts {
		cp := make(models.Front, len(f))
		for k, v := range f {
			cp[k] = v
		}
		snap = append(snap, cp)
	}
	sess.FrontsSnapshot = snap
	return nil
}

// Delete releases the session's linked items back to reserve (archived items
// excepted) and removes the record. Returns false when the session did not
// exist. The campaign's active session pointer is cleared if it named this
// session.
func (l *Ledger) Delete(campaignID, id string) (bool, error) {
	e, err := l.find(campaignID, id)
	if errors.Is(err, models.ErrNotFound) && l.campaigns.Exists(campaignID) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, releaseErr := l.reconciler.Release(campaignID, e.session.LinkedItems)

	existed, err := store.Remove(e.path)
	if err != nil {
		return false, fmt.Errorf("Delete: %w", err)
	}
	l.clearActive(campaignID, id)
	if releaseErr != nil {
		return existed, fmt.Errorf("Delete: release: %w", releaseErr)
	}
	return existed, nil
}

// Finalize closes a session after play:
//
//  1. in.Used is merged into used_items (unknown item IDs are dropped),
//  2. the session becomes completed, taking its fronts snapshot if it has none,
//  3. every used item is archived and its usage count incremented,
//  4. linked items that were not used go back to reserve,
//  5. the campaign's active session pointer is cleared if it named this session.
//
// Calling Finalize again archives nothing new and keeps the snapshot.
func (l *Ledger) Finalize(campaignID, id string, in *models.FinalizeInput) (*models.FinalizeResult, error) {
	if in == nil {
		in = &models.FinalizeInput{}
	}
	e, err := l.find(campaignID, id)
	if err != nil {
		return nil, err
	}
	v, err := l.registry.Open(campaignID)
	if err != nil {
		return nil, err
	}

	sess := e.session
	used := append([]string{}, sess.UsedItems...)
	for _, itemID := range in.Used {
		if v.Has(itemID) {
			used = append(used, itemID)
		}
	}
	sess.UsedItems = models.Unique(used)
	if in.Summary != nil {
		sess.Summary = *in.Summary
	}
	prior := sess.Status
	sess.Status = models.SessionCompleted
	if err := l.snapshot(campaignID, sess, prior); err != nil {
		return nil, err
	}
	if err := store.SaveJSON(e.path, sess); err != nil {
		return nil, fmt.Errorf("Finalize: %w", err)
	}

	usedSet := make(map[string]struct{}, len(sess.UsedItems))
	for _, itemID := range sess.UsedItems {
		usedSet[itemID] = struct{}{}
	}
	unused := make([]string, 0, len(sess.LinkedItems))
	for _, itemID := range sess.LinkedItems {
		if _, ok := usedSet[itemID]; !ok {
			unused = append(unused, itemID)
		}
	}

	res := &models.FinalizeResult{Session: sess, Archived: make([]string, 0), Released: make([]string, 0)}
	archived, archiveErr := l.reconciler.Archive(campaignID, sess.UsedItems)
	if archived != nil {
		res.Archived = append(res.Archived, archived.Archived...)
	}
	released, releaseErr := l.reconciler.Release(campaignID, unused)
	if released != nil {
		res.Released = append(res.Released, released.Reserved...)
	}
	l.clearActive(campaignID, id)

	if err := errors.Join(archiveErr, releaseErr); err != nil {
		return res, fmt.Errorf("Finalize: %w", err)
	}
	return res, nil
}

func (l *Ledger) clearActive(campaignID, sessionID string) {
	camp, err := l.campaigns.Get(campaignID)
	if err != nil || camp.ActiveSession == nil || *camp.ActiveSession != sessionID {
		return
	}
	if _, err := l.campaigns.SetActiveSession(campaignID, ""); err != nil {
		slog.Warn("sessions: could not clear active session", "campaign", campaignID, "session", sessionID, "err", err)
	}
}

// normalize fills read-side defaults for documents written by older versions.
func normalize(sess *models.Session, id string) {
	if sess.ID == "" {
		sess.ID = id
	}
	if sess.Status == "" {
		sess.Status = models.SessionPlanned
	}
	if sess.LinkedItems == nil {
		sess.LinkedItems = make([]string, 0)
	}
	if sess.UsedItems == nil {
		sess.UsedItems = make([]string, 0)
	}
}

// DisplayTitle returns the session title or a placeholder when it is blank.
func DisplayTitle(sess *models.Session) string {
	if t := strings.TrimSpace(sess.Title); t != "" {
		return t
	}
	return "Untitled"
}
