// Package journal writes an Obsidian-compatible markdown log of a campaign's
// completed sessions.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/sessions"
)

// RenderSection produces the ## block for one session.
func RenderSection(sess *models.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Session %d: %s\n", sess.Number, oneLine(sessions.DisplayTitle(sess)))
	if sess.Date != "" {
		sb.WriteString("**Date:** ")
		sb.WriteString(sess.Date)
		sb.WriteString("\n")
	}
	if sess.StrongStart != "" {
		sb.WriteString("**Strong start:** ")
		sb.WriteString(sess.StrongStart)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	if s := strings.TrimSpace(sess.Summary); s != "" {
		sb.WriteString(s)
	} else {
		sb.WriteString("_No summary recorded._")
	}
	sb.WriteString("\n")

	if names := frontNames(sess.FrontsSnapshot); len(names) > 0 {
		sb.WriteString("\n**Fronts at close:** ")
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}

type frontmatter struct {
	Campaign   string   `yaml:"campaign"`
	CampaignID string   `yaml:"campaign_id"`
	Exported   string   `yaml:"exported"`
	Sessions   int      `yaml:"sessions"`
	Tags       []string `yaml:"tags,flow"`
}

// Render produces the whole journal: YAML frontmatter, a title and one
// section per completed session in ascending number order. all must already
// be sorted, as returned by the session ledger.
func Render(camp *models.Campaign, all []*models.Session, now time.Time) string {
	completed := make([]*models.Session, 0, len(all))
	for _, s := range all {
		if s.Status == models.SessionCompleted {
			completed = append(completed, s)
		}
	}

	fm := frontmatter{
		Campaign:   camp.Title,
		CampaignID: camp.ID,
		Exported:   now.UTC().Format(time.RFC3339),
		Sessions:   len(completed),
		Tags:       []string{"lazyvault", "journal"},
	}
	// A flat struct of scalars always marshals.
	head, _ := yaml.Marshal(fm)

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(head)
	sb.WriteString("---\n\n# ")
	sb.WriteString(oneLine(camp.Title))
	sb.WriteString(" Journal\n")

	if pitch := strings.TrimSpace(camp.ElevatorPitch); pitch != "" {
		sb.WriteString("\n> ")
		sb.WriteString(strings.ReplaceAll(pitch, "\n", "\n> "))
		sb.WriteString("\n")
	}

	if len(completed) == 0 {
		sb.WriteString("\n_No completed sessions yet._\n")
		return sb.String()
	}
	for _, s := range completed {
		sb.WriteString("\n")
		sb.WriteString(RenderSection(s))
	}
	return sb.String()
}

// Write renders the journal into <dir>/<slug>-journal.md, replacing any
// previous export, and returns the file path.
func Write(dir string, camp *models.Campaign, all []*models.Session) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("journal.Write: %w", err)
	}
	path := filepath.Join(dir, Slug(camp.Title)+"-journal.md")
	content := Render(camp, all, time.Now())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { // #nosec G306 -- journal exports are meant to be shared
		return "", fmt.Errorf("journal.Write: %w", err)
	}
	return path, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases title and joins its alphanumeric runs with dashes.
func Slug(title string) string {
	s := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if s == "" {
		return "campaign"
	}
	return s
}

func frontNames(fronts []models.Front) []string {
	names := make([]string, 0, len(fronts))
	for _, f := range fronts {
		if n, ok := f["name"].(string); ok && n != "" {
			names = append(names, n)
		}
	}
	return names
}

// oneLine collapses whitespace runs, newlines included, so s fits a heading.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
