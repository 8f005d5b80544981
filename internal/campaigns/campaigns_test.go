package campaigns_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/lazyvault/internal/campaigns"
	"github.com/go-ports/lazyvault/internal/checkers"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/store"
)

func newManager(c *qt.C) (*campaigns.Manager, *store.Store) {
	s := store.New(c.TB.TempDir())
	return campaigns.New(s), s
}

func TestCreate_HappyPath(t *testing.T) {
	c := qt.New(t)
	m, s := newManager(c)

	camp, err := m.Create(&models.CampaignInput{
		Title:  "The Drowned Coast",
		Truths: []string{"The sea remembers", "", "Gods are dead"},
		Fronts: []models.Front{{"name": "Tide Cult", "goal": "Wake the bell"}},
	})
	c.Assert(err, qt.IsNil)
	c.Assert(camp.ID, qt.Not(qt.Equals), "")
	c.Assert(camp.ActiveSession, qt.IsNil)

	data, err := os.ReadFile(s.MetadataPath(camp.ID))
	c.Assert(err, qt.IsNil)
	c.Assert(data, checkers.JSONPathEquals("$.title"), "The Drowned Coast")
	c.Assert(data, checkers.JSONPathEquals("$.fronts[0].name"), "Tide Cult")
	c.Assert(data, checkers.JSONPathEquals("$.safety_tools"), "")
	c.Assert(data, checkers.JSONPathEquals("$.active_session"), nil)
	c.Assert(data, checkers.JSONPathEquals("$.moods"), "")
	c.Assert(data, checkers.JSONPathEquals("$.framework"), "")
	c.Assert(data, checkers.JSONPathEquals("$.use_full_framework"), false)

	_, err = os.Stat(s.VaultDir(camp.ID))
	c.Assert(err, qt.IsNil)
	_, err = os.Stat(s.SessionsDir(camp.ID))
	c.Assert(err, qt.IsNil)

	got, err := m.Get(camp.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Truths, qt.DeepEquals, []string{"The sea remembers", "", "Gods are dead"})
}

func TestCreate_FailurePath(t *testing.T) {
	c := qt.New(t)
	m, s := newManager(c)

	_, err := m.Create(&models.CampaignInput{Title: "  "})
	c.Assert(err, qt.ErrorIs, models.ErrValidation)

	ids, err := s.ListCampaignIDs()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 0)
}

func TestGet_FailurePath(t *testing.T) {
	c := qt.New(t)
	m, _ := newManager(c)

	_, err := m.Get("missing")
	c.Assert(err, qt.ErrorIs, models.ErrNotFound)
}

func TestList_SortedByTitle(t *testing.T) {
	c := qt.New(t)
	m, _ := newManager(c)

	for _, title := range []string{"zeta", "Alpha", "midway"} {
		_, err := m.Create(&models.CampaignInput{Title: title})
		c.Assert(err, qt.IsNil)
	}
	list, err := m.List()
	c.Assert(err, qt.IsNil)
	c.Assert(list, qt.HasLen, 3)
	c.Assert(list[0].Title, qt.Equals, "Alpha")
	c.Assert(list[1].Title, qt.Equals, "midway")
	c.Assert(list[2].Title, qt.Equals, "zeta")
}

func TestUpdate_HappyPath(t *testing.T) {
	c := qt.New(t)
	m, _ := newManager(c)

	camp, err := m.Create(&models.CampaignInput{Title: "Old", ElevatorPitch: "pitch"})
	c.Assert(err, qt.IsNil)

	c.Run("only supplied fields change", func(c *qt.C) {
		got, err := m.Update(camp.ID, &models.CampaignPatch{
			Title:            models.Ptr("New"),
			UseFullFramework: models.Ptr(true),
			Fronts:           &[]models.Front{{"name": "Storm"}},
		})
		c.Assert(err, qt.IsNil)
		c.Assert(got.ID, qt.Equals, camp.ID)
		c.Assert(got.Title, qt.Equals, "New")
		c.Assert(got.ElevatorPitch, qt.Equals, "pitch")
		c.Assert(got.UseFullFramework, qt.IsTrue)

		fronts, err := m.Fronts(camp.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(fronts, qt.HasLen, 1)
		c.Assert(fronts[0]["name"], qt.Equals, "Storm")
	})

	c.Run("active session set and cleared", func(c *qt.C) {
		got, err := m.Update(camp.ID, &models.CampaignPatch{ActiveSession: models.Ptr("s1")})
		c.Assert(err, qt.IsNil)
		c.Assert(*got.ActiveSession, qt.Equals, "s1")

		got, err = m.Update(camp.ID, &models.CampaignPatch{ActiveSession: models.Ptr("")})
		c.Assert(err, qt.IsNil)
		c.Assert(got.ActiveSession, qt.IsNil)
	})

	c.Run("empty title rejected", func(c *qt.C) {
		_, err := m.Update(camp.ID, &models.CampaignPatch{Title: models.Ptr("")})
		c.Assert(err, qt.ErrorIs, models.ErrValidation)
	})

	c.Run("missing campaign", func(c *qt.C) {
		_, err := m.Update("nope", &models.CampaignPatch{})
		c.Assert(err, qt.ErrorIs, models.ErrNotFound)
	})
}

func TestSetActiveSession(t *testing.T) {
	c := qt.New(t)
	m, s := newManager(c)

	camp, err := m.Create(&models.CampaignInput{Title: "Pointer"})
	c.Assert(err, qt.IsNil)

	c.Run("unknown session rejected", func(c *qt.C) {
		_, err := m.SetActiveSession(camp.ID, "ghost")
		c.Assert(err, qt.ErrorIs, models.ErrNotFound)
	})

	c.Run("existing session accepted then cleared", func(c *qt.C) {
		path := filepath.Join(s.SessionsDir(camp.ID), store.SessionFilename(1, "s1"))
		c.Assert(store.SaveJSON(path, map[string]any{"id": "s1", "number": 1}), qt.IsNil)

		got, err := m.SetActiveSession(camp.ID, "s1")
		c.Assert(err, qt.IsNil)
		c.Assert(*got.ActiveSession, qt.Equals, "s1")

		got, err = m.SetActiveSession(camp.ID, "")
		c.Assert(err, qt.IsNil)
		c.Assert(got.ActiveSession, qt.IsNil)

		data, err := os.ReadFile(s.MetadataPath(camp.ID))
		c.Assert(err, qt.IsNil)
		c.Assert(data, checkers.JSONPathEquals("$.active_session"), nil)
	})
}

func TestDelete_CascadesDirectory(t *testing.T) {
	c := qt.New(t)
	m, s := newManager(c)

	camp, err := m.Create(&models.CampaignInput{Title: "Gone"})
	c.Assert(err, qt.IsNil)

	deleted, err := m.Delete(camp.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(deleted, qt.IsTrue)
	c.Assert(m.Exists(camp.ID), qt.IsFalse)

	_, err = os.Stat(s.CampaignDir(camp.ID))
	c.Assert(os.IsNotExist(err), qt.IsTrue)

	deleted, err = m.Delete(camp.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(deleted, qt.IsFalse)
}
