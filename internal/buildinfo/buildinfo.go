// Package buildinfo holds build-time variables injected via ldflags.
//
//	go build -ldflags "-X github.com/go-ports/lazyvault/internal/buildinfo.Version=v0.3.0 ..."
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Populated by -ldflags at build time; defaults used for local dev.
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

// Resolved returns Version, or the module version recorded by `go install`
// when no ldflags were given.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return Version
}

// Summary is the one-line `lazyvault --version` output.
func Summary() string {
	commit := GitCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("lazyvault %s (commit %s, branch %s, built %s)", Resolved(), commit, GitBranch, BuildDate)
}
