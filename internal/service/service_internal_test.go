package service

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/lazyvault/internal/aggregate"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/prompt"
)

// newTestService opens a Service on a fresh home. yaml, when non-empty, is
// written as the home's config.yaml first.
func newTestService(t *testing.T, yaml string) *Service {
	t.Helper()
	home := t.TempDir()
	if yaml != "" {
		if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o600); err != nil {
			t.Fatalf("newTestService: %v", err)
		}
	}
	svc, err := New(home)
	if err != nil {
		t.Fatalf("newTestService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func seedCampaign(c *qt.C, svc *Service) *models.Campaign {
	camp, err := svc.CreateCampaign(&models.CampaignInput{
		Title:  "Drowned Coast",
		Truths: []string{"The sea remembers"},
		Fronts: []models.Front{{"name": "Tide Cult"}},
	})
	c.Assert(err, qt.IsNil)
	return camp
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew_HappyPath(t *testing.T) {
	c := qt.New(t)

	svc := newTestService(t, "")
	c.Assert(svc.IndexEnabled(), qt.IsTrue)
	c.Assert(svc.Config.Context.RollingMemory, qt.Equals, 3)

	_, err := os.Stat(filepath.Join(svc.Home, "campaigns"))
	c.Assert(err, qt.IsNil)
	_, err = os.Stat(filepath.Join(svc.Home, "index.db"))
	c.Assert(err, qt.IsNil)
}

func TestNew_IndexDisabled(t *testing.T) {
	c := qt.New(t)

	svc := newTestService(t, "index:\n  enabled: false\n")
	c.Assert(svc.IndexEnabled(), qt.IsFalse)
	c.Assert(svc.Close(), qt.IsNil)

	_, err := svc.Reindex("", nil)
	c.Assert(err, qt.ErrorMatches, "Reindex: .*disabled.*")
}

func TestNew_FailurePath(t *testing.T) {
	c := qt.New(t)

	home := t.TempDir()
	c.Assert(os.WriteFile(filepath.Join(home, "config.yaml"), []byte("index: [\n"), 0o600), qt.IsNil)
	_, err := New(home)
	c.Assert(err, qt.ErrorMatches, "service.New: load config: .*")
}

func TestNew_IndexOpenFailureDegrades(t *testing.T) {
	c := qt.New(t)

	home := t.TempDir()
	// A directory where the database file belongs cannot be opened.
	c.Assert(os.MkdirAll(filepath.Join(home, "index.db", "x"), 0o755), qt.IsNil)

	svc, err := New(home)
	c.Assert(err, qt.IsNil)
	defer svc.Close()
	c.Assert(svc.IndexEnabled(), qt.IsFalse)

	camp, err := svc.CreateCampaign(&models.CampaignInput{Title: "Eldmoor"})
	c.Assert(err, qt.IsNil)
	_, err = svc.CreateItem(camp.ID, "npc", nil, map[string]any{"name": "Mara"})
	c.Assert(err, qt.IsNil)

	hits, err := svc.SearchVault(camp.ID, "mara", 5, "")
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 1)
}

// ---------------------------------------------------------------------------
// lock
// ---------------------------------------------------------------------------

func TestLock_SerializesPerCampaign(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "index:\n  enabled: false\n")

	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := svc.lock("c1")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	c.Assert(counter, qt.Equals, 50)

	// Distinct campaigns get distinct mutexes.
	unlockA := svc.lock("a")
	unlockB := svc.lock("b")
	unlockB()
	unlockA()
	c.Assert(svc.locks, qt.HasLen, 3)
}

// ---------------------------------------------------------------------------
// Vault + index
// ---------------------------------------------------------------------------

func TestItemLifecycle_KeepsIndexCurrent(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "")
	camp := seedCampaign(c, svc)

	item, err := svc.CreateItem(camp.ID, "npc", []string{"harbor"}, map[string]any{"name": "Mirabel"})
	c.Assert(err, qt.IsNil)

	hits, err := svc.SearchVault(camp.ID, "mira", 10, "")
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 1)
	c.Assert(hits[0].Status, qt.Equals, models.StatusReserve)

	sess, err := svc.CreateSession(camp.ID, &models.SessionSeed{Title: "Landfall"})
	c.Assert(err, qt.IsNil)
	_, res, err := svc.UpdateSession(camp.ID, sess.ID, &models.SessionPatch{LinkedItems: &[]string{item.ID}})
	c.Assert(err, qt.IsNil)
	c.Assert(res.Activated, qt.DeepEquals, []string{item.ID})

	hits, err = svc.SearchVault(camp.ID, "mirabel", 10, "")
	c.Assert(err, qt.IsNil)
	c.Assert(hits[0].Status, qt.Equals, models.StatusActive)

	fin, err := svc.FinalizeSession(camp.ID, sess.ID, &models.FinalizeInput{Used: []string{item.ID}})
	c.Assert(err, qt.IsNil)
	c.Assert(fin.Archived, qt.DeepEquals, []string{item.ID})

	hits, err = svc.SearchVault(camp.ID, "mirabel", 10, "")
	c.Assert(err, qt.IsNil)
	c.Assert(hits[0].Status, qt.Equals, models.StatusArchived)
	c.Assert(hits[0].UsageCount, qt.Equals, 1)

	deleted, err := svc.DeleteItem(camp.ID, item.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(deleted, qt.IsTrue)
	hits, err = svc.SearchVault(camp.ID, "mirabel", 10, "")
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 0)
}

func TestDeleteSession_RefreshesReleasedItems(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "")
	camp := seedCampaign(c, svc)

	item, err := svc.CreateItem(camp.ID, "location", nil, map[string]any{"name": "Lighthouse"})
	c.Assert(err, qt.IsNil)
	sess, err := svc.CreateSession(camp.ID, nil)
	c.Assert(err, qt.IsNil)
	_, _, err = svc.UpdateSession(camp.ID, sess.ID, &models.SessionPatch{LinkedItems: &[]string{item.ID}})
	c.Assert(err, qt.IsNil)

	existed, err := svc.DeleteSession(camp.ID, sess.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(existed, qt.IsTrue)

	hits, err := svc.SearchVault(camp.ID, "lighthouse", 10, "")
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 1)
	c.Assert(hits[0].Status, qt.Equals, models.StatusReserve)
}

func TestSearchVault_ScanFallback(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "index:\n  enabled: false\n")
	camp := seedCampaign(c, svc)

	_, err := svc.CreateItem(camp.ID, "npc", []string{"smuggler"}, map[string]any{"name": "Mira"})
	c.Assert(err, qt.IsNil)
	_, err = svc.CreateItem(camp.ID, "npc", nil, map[string]any{"name": "Mira", "note": "smuggler queen"})
	c.Assert(err, qt.IsNil)
	_, err = svc.CreateItem(camp.ID, "secret", nil, map[string]any{"title": "Bell"})
	c.Assert(err, qt.IsNil)

	hits, err := svc.SearchVault(camp.ID, "mira queen", 10, "")
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 2)
	c.Assert(hits[0].Score, qt.Equals, float64(2))

	hits, err = svc.SearchVault(camp.ID, "bell", 10, "npc")
	c.Assert(err, qt.IsNil)
	c.Assert(hits, qt.HasLen, 0)

	_, err = svc.SearchVault("missing", "bell", 10, "")
	c.Assert(err, qt.ErrorIs, models.ErrNotFound)
}

func TestReindex_HappyPath(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "")
	camp := seedCampaign(c, svc)
	other, err := svc.CreateCampaign(&models.CampaignInput{Title: "Ashfall"})
	c.Assert(err, qt.IsNil)

	for _, id := range []string{camp.ID, other.ID} {
		_, err := svc.CreateItem(id, "npc", nil, map[string]any{"name": "Warden"})
		c.Assert(err, qt.IsNil)
	}

	var calls int
	res, err := svc.Reindex("", func(current, total int) {
		calls++
		c.Assert(total, qt.Equals, 2)
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res, qt.DeepEquals, &ReindexResult{Campaigns: 2, Items: 2})
	c.Assert(calls, qt.Equals, 2)

	res, err = svc.Reindex(camp.ID, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Campaigns, qt.Equals, 1)

	_, err = svc.Reindex("missing", nil)
	c.Assert(err, qt.ErrorIs, models.ErrNotFound)

	deleted, err := svc.DeleteCampaign(other.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(deleted, qt.IsTrue)
	n, err := svc.index.Count(other.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 0)
}

// ---------------------------------------------------------------------------
// Context / Prompt / Journal
// ---------------------------------------------------------------------------

func TestContext_UsesConfiguredDefaults(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "context:\n  rolling_memory: 1\n  default_mode: session\n")
	camp := seedCampaign(c, svc)

	for _, summary := range []string{"first", "second"} {
		sess, err := svc.CreateSession(camp.ID, nil)
		c.Assert(err, qt.IsNil)
		_, err = svc.FinalizeSession(camp.ID, sess.ID, &models.FinalizeInput{Summary: &summary})
		c.Assert(err, qt.IsNil)
	}

	// Session mode without a session falls back to prep.
	ctx, err := svc.Context(camp.ID, aggregate.Request{})
	c.Assert(err, qt.IsNil)
	c.Assert(ctx.Mode, qt.Equals, aggregate.ModePrep)
	c.Assert(ctx.Fallback, qt.IsTrue)
	c.Assert(ctx.RollingMemory, qt.HasLen, 1)
	c.Assert(ctx.RollingMemory[0].Summary, qt.Equals, "second")

	ctx, err = svc.Context(camp.ID, aggregate.Request{Mode: aggregate.ModePrep, RollingLimit: 5})
	c.Assert(err, qt.IsNil)
	c.Assert(ctx.Fallback, qt.IsFalse)
	c.Assert(ctx.RollingMemory, qt.HasLen, 2)
}

func TestPrompt_AppliesVaultIgnore(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "")
	c.Assert(os.WriteFile(filepath.Join(svc.Home, ".vaultignore"), []byte("# names\nTide Cult\n"), 0o600), qt.IsNil)
	camp := seedCampaign(c, svc)

	msgs, ctx, err := svc.Prompt(camp.ID, aggregate.Request{Mode: aggregate.ModePrep}, "Plan the next raid")
	c.Assert(err, qt.IsNil)
	c.Assert(ctx.CampaignID, qt.Equals, camp.ID)
	c.Assert(msgs, qt.HasLen, 3)
	c.Assert(msgs[0].Text, qt.Not(qt.Contains), "Tide Cult")
	c.Assert(msgs[2], qt.DeepEquals, prompt.Message{Role: prompt.RoleUser, Text: "Plan the next raid"})
}

func TestExportJournal_HappyPath(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(t, "")
	camp := seedCampaign(c, svc)

	sess, err := svc.CreateSession(camp.ID, &models.SessionSeed{Title: "Landfall"})
	c.Assert(err, qt.IsNil)
	summary := "They reached the shore."
	_, err = svc.FinalizeSession(camp.ID, sess.ID, &models.FinalizeInput{Summary: &summary})
	c.Assert(err, qt.IsNil)

	path, err := svc.ExportJournal(camp.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(path, qt.Equals, filepath.Join(svc.Home, "exports", "drowned-coast-journal.md"))
	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, "## Session 1: Landfall")
	c.Assert(string(data), qt.Contains, "**Fronts at close:** Tide Cult")

	_, err = svc.ExportJournal("missing")
	c.Assert(err, qt.ErrorIs, models.ErrNotFound)
}
