package buildinfo_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/lazyvault/internal/buildinfo"
)

func TestSummary(t *testing.T) {
	c := qt.New(t)

	c.Run("ldflags version wins", func(c *qt.C) {
		c.Patch(&buildinfo.Version, "v1.2.3")
		c.Patch(&buildinfo.GitCommit, "0123456789abcdef")
		c.Patch(&buildinfo.GitBranch, "main")
		c.Patch(&buildinfo.BuildDate, "2026-01-02")

		c.Assert(buildinfo.Resolved(), qt.Equals, "v1.2.3")
		c.Assert(buildinfo.Summary(), qt.Equals, "lazyvault v1.2.3 (commit 0123456789ab, branch main, built 2026-01-02)")
	})

	c.Run("short commit is kept whole", func(c *qt.C) {
		c.Patch(&buildinfo.Version, "v1.0.0")
		c.Patch(&buildinfo.GitCommit, "abc")
		c.Assert(buildinfo.Summary(), qt.Contains, "commit abc,")
	})
}
