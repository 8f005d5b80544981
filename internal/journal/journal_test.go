package journal_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"gopkg.in/yaml.v3"

	"github.com/go-ports/lazyvault/internal/journal"
	"github.com/go-ports/lazyvault/internal/models"
)

func sampleSessions() []*models.Session {
	return []*models.Session{
		{
			Number: 1, Title: "Ashfall", Date: "2026-01-03T18:00:00Z", Status: models.SessionCompleted,
			Summary:        "The party fled the burning archive.",
			FrontsSnapshot: []models.Front{{"name": "Ember Court"}, {"goal": "nameless"}},
		},
		{Number: 2, Status: models.SessionPlanned, Summary: "not yet"},
		{Number: 3, Status: models.SessionCompleted},
	}
}

func TestRenderSection_HappyPath(t *testing.T) {
	c := qt.New(t)

	got := journal.RenderSection(sampleSessions()[0])
	c.Assert(got, qt.Equals, "## Session 1: Ashfall\n"+
		"**Date:** 2026-01-03T18:00:00Z\n"+
		"\nThe party fled the burning archive.\n"+
		"\n**Fronts at close:** Ember Court\n")

	untitled := journal.RenderSection(sampleSessions()[2])
	c.Assert(untitled, qt.Contains, "## Session 3: Untitled")
	c.Assert(untitled, qt.Contains, "_No summary recorded._")
}

func TestRender_HappyPath(t *testing.T) {
	c := qt.New(t)

	camp := &models.Campaign{ID: "c1", Title: "Embers: A Tale", ElevatorPitch: "Fire remembers."}
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	got := journal.Render(camp, sampleSessions(), now)

	c.Assert(strings.HasPrefix(got, "---\n"), qt.IsTrue)
	parts := strings.SplitN(got, "---\n", 3)
	c.Assert(parts, qt.HasLen, 3)

	var fm map[string]any
	c.Assert(yaml.Unmarshal([]byte(parts[1]), &fm), qt.IsNil)
	c.Assert(fm["campaign"], qt.Equals, "Embers: A Tale")
	c.Assert(fm["sessions"], qt.Equals, 2)
	c.Assert(fm["tags"], qt.DeepEquals, []any{"lazyvault", "journal"})

	c.Assert(got, qt.Contains, "# Embers: A Tale Journal")
	c.Assert(got, qt.Contains, "> Fire remembers.")
	c.Assert(got, qt.Contains, "## Session 1: Ashfall")
	c.Assert(got, qt.Not(qt.Contains), "not yet")
	c.Assert(strings.Index(got, "Session 1:") < strings.Index(got, "Session 3:"), qt.IsTrue)
}

func TestRender_NoCompletedSessions(t *testing.T) {
	c := qt.New(t)

	got := journal.Render(&models.Campaign{ID: "c1", Title: "Quiet"}, nil, time.Now())
	c.Assert(got, qt.Contains, "sessions: 0")
	c.Assert(got, qt.Contains, "_No completed sessions yet._")
}

func TestRender_FrontmatterSurvivesAwkwardTitles(t *testing.T) {
	c := qt.New(t)

	for _, title := range []string{
		"- Ashes",
		"Night\nfall",
		"? what",
		"123",
		"key: value",
		"# not a comment",
		`"quoted" \ slash`,
		" padded ",
	} {
		c.Run(title, func(c *qt.C) {
			got := journal.Render(&models.Campaign{ID: "c1", Title: title}, nil, time.Now())
			parts := strings.SplitN(got, "---\n", 3)
			c.Assert(parts, qt.HasLen, 3)

			var fm struct {
				Campaign string `yaml:"campaign"`
				Sessions int    `yaml:"sessions"`
			}
			c.Assert(yaml.Unmarshal([]byte(parts[1]), &fm), qt.IsNil)
			c.Assert(fm.Campaign, qt.Equals, title)
			c.Assert(fm.Sessions, qt.Equals, 0)

			heading := strings.SplitN(strings.TrimPrefix(parts[2], "\n"), "\n", 2)[0]
			c.Assert(heading, qt.Equals, "# "+strings.Join(strings.Fields(title), " ")+" Journal")
		})
	}
}

func TestWrite_HappyPath(t *testing.T) {
	c := qt.New(t)

	dir := filepath.Join(t.TempDir(), "exports")
	camp := &models.Campaign{ID: "c1", Title: "The Drowned Coast"}

	path, err := journal.Write(dir, camp, sampleSessions())
	c.Assert(err, qt.IsNil)
	c.Assert(path, qt.Equals, filepath.Join(dir, "the-drowned-coast-journal.md"))

	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, "## Session 1: Ashfall")

	// A second export replaces the first.
	_, err = journal.Write(dir, camp, nil)
	c.Assert(err, qt.IsNil)
	data, err = os.ReadFile(path)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Not(qt.Contains), "Ashfall")
}

func TestSlug(t *testing.T) {
	c := qt.New(t)

	for in, want := range map[string]string{
		"The Drowned Coast": "the-drowned-coast",
		"  Embers: A Tale!": "embers-a-tale",
		"???":               "campaign",
	} {
		c.Assert(journal.Slug(in), qt.Equals, want)
	}
}
