package vault_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/lazyvault/internal/checkers"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/store"
	"github.com/go-ports/lazyvault/internal/vault"
)

const campaignID = "c1"

func newRegistry(c *qt.C) (*vault.Registry, *store.Store) {
	s := store.New(c.TB.TempDir())
	c.Assert(s.EnsureCampaign(campaignID), qt.IsNil)
	c.Assert(store.SaveJSON(s.MetadataPath(campaignID), map[string]any{"id": campaignID, "title": "T"}), qt.IsNil)
	return vault.New(s), s
}

func TestCreate_HappyPath(t *testing.T) {
	c := qt.New(t)
	r, s := newRegistry(c)

	item, err := r.Create(campaignID, "npc", []string{"sea", "sea", "cult"}, map[string]any{"name": "Mira"})
	c.Assert(err, qt.IsNil)
	c.Assert(item.Status, qt.Equals, models.StatusReserve)
	c.Assert(item.UsageCount, qt.Equals, 0)
	c.Assert(item.Tags, qt.DeepEquals, []string{"sea", "cult"})

	data, err := os.ReadFile(filepath.Join(s.VaultDir(campaignID), "npc_"+item.ID+".json"))
	c.Assert(err, qt.IsNil)
	c.Assert(data, checkers.JSONPathEquals("$.status"), "reserve")
	c.Assert(data, checkers.JSONPathEquals("$.usage_count"), 0)
	c.Assert(data, checkers.JSONPathEquals("$.content.name"), "Mira")
}

func TestCreate_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("missing type persists nothing", func(c *qt.C) {
		r, s := newRegistry(c)
		_, err := r.Create(campaignID, "", nil, map[string]any{"name": "x"})
		c.Assert(err, qt.ErrorIs, models.ErrValidation)

		var verr *models.ValidationError
		c.Assert(err, qt.ErrorAs, &verr)
		c.Assert(verr.Field, qt.Equals, "type")

		names, err := store.ListJSON(s.VaultDir(campaignID))
		c.Assert(err, qt.IsNil)
		c.Assert(names, qt.HasLen, 0)
	})

	c.Run("unknown campaign", func(c *qt.C) {
		r, _ := newRegistry(c)
		_, err := r.Create("nope", "npc", nil, nil)
		c.Assert(err, qt.ErrorIs, models.ErrNotFound)
	})
}

func TestCreate_OpenTypeUsedVerbatim(t *testing.T) {
	c := qt.New(t)
	r, s := newRegistry(c)

	item, err := r.Create(campaignID, "plot hook", nil, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(item.Type, qt.Equals, "plot hook")

	_, err = os.Stat(filepath.Join(s.VaultDir(campaignID), "plot hook_"+item.ID+".json"))
	c.Assert(err, qt.IsNil)

	list, err := r.List(campaignID, "plot hook")
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
}

func TestList_TypeFilter(t *testing.T) {
	c := qt.New(t)
	r, _ := newRegistry(c)

	for _, typ := range []string{"npc", "secret", "npc", "location"} {
		_, err := r.Create(campaignID, typ, nil, nil)
		c.Assert(err, qt.IsNil)
	}

	all, err := r.List(campaignID, "")
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 4)

	npcs, err := r.List(campaignID, "npc")
	c.Assert(err, qt.IsNil)
	c.Assert(npcs, qt.HasLen, 2)

	none, err := r.List(campaignID, "scene")
	c.Assert(err, qt.IsNil)
	c.Assert(none, qt.HasLen, 0)
}

func TestList_SkipsCorruptDocuments(t *testing.T) {
	c := qt.New(t)
	r, s := newRegistry(c)

	_, err := r.Create(campaignID, "npc", nil, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(os.WriteFile(filepath.Join(s.VaultDir(campaignID), "npc_broken.json"), []byte("{"), 0o600), qt.IsNil)

	list, err := r.List(campaignID, "")
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 1)
}

func TestGet_LegacyDefaults(t *testing.T) {
	c := qt.New(t)
	r, s := newRegistry(c)

	path := filepath.Join(s.VaultDir(campaignID), "secret_old1.json")
	raw := []byte(`{"id":"old1","type":"secret","content":{"title":"The heir lives"}}`)
	c.Assert(os.WriteFile(path, raw, 0o600), qt.IsNil)

	item, err := r.Get(campaignID, "old1")
	c.Assert(err, qt.IsNil)
	c.Assert(item.UsageCount, qt.Equals, 0)
	c.Assert(item.Status, qt.Equals, models.StatusReserve)

	// Reading never writes the defaults back.
	after, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(after, qt.DeepEquals, raw)
}

func TestUpdate_HappyPath(t *testing.T) {
	c := qt.New(t)
	r, _ := newRegistry(c)

	item, err := r.Create(campaignID, "npc", []string{"a"}, map[string]any{"name": "Mira"})
	c.Assert(err, qt.IsNil)

	got, err := r.Update(campaignID, item.ID, &models.ItemPatch{
		Status:     models.Ptr(models.StatusArchived),
		UsageCount: models.Ptr(3),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, models.StatusArchived)
	c.Assert(got.UsageCount, qt.Equals, 3)
	c.Assert(got.Tags, qt.DeepEquals, []string{"a"})
	c.Assert(got.Content["name"], qt.Equals, "Mira")

	reloaded, err := r.Get(campaignID, item.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(reloaded, qt.DeepEquals, got)
}

func TestUpdate_FailurePath(t *testing.T) {
	c := qt.New(t)
	r, _ := newRegistry(c)

	item, err := r.Create(campaignID, "npc", nil, nil)
	c.Assert(err, qt.IsNil)

	cases := []struct {
		name  string
		id    string
		patch *models.ItemPatch
		want  error
	}{
		{"missing item", "ghost", &models.ItemPatch{}, models.ErrNotFound},
		{"bad status", item.ID, &models.ItemPatch{Status: models.Ptr(models.ItemStatus("lost"))}, models.ErrValidation},
		{"negative usage", item.ID, &models.ItemPatch{UsageCount: models.Ptr(-1)}, models.ErrValidation},
	}
	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			_, err := r.Update(campaignID, tc.id, tc.patch)
			c.Assert(err, qt.ErrorIs, tc.want)
		})
	}

	reloaded, err := r.Get(campaignID, item.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(reloaded.Status, qt.Equals, models.StatusReserve)
}

func TestDelete(t *testing.T) {
	c := qt.New(t)
	r, _ := newRegistry(c)

	item, err := r.Create(campaignID, "scene", nil, nil)
	c.Assert(err, qt.IsNil)

	existed, err := r.Delete(campaignID, item.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(existed, qt.IsTrue)

	existed, err = r.Delete(campaignID, item.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(existed, qt.IsFalse)

	_, err = r.Get(campaignID, item.ID)
	c.Assert(err, qt.ErrorIs, models.ErrNotFound)
}
