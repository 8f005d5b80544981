// Package setup installs and uninstalls the lazyvault MCP server entry for
// supported AI assistants (Claude Code, Cursor).
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

// ServerName is the key of the lazyvault entry under mcpServers.
const ServerName = "lazyvault"

// Result is the return value from all Setup/Uninstall functions.
type Result struct {
	Status  string // always "ok"
	Message string
}

func ok(msg string) Result          { return Result{Status: "ok", Message: msg} }
func okf(f string, a ...any) Result { return ok(fmt.Sprintf(f, a...)) }

// ---------------------------------------------------------------------------
// MCP config entry
// ---------------------------------------------------------------------------

// mcpConfig returns the stdio server entry. A non-empty vaultHome pins the
// server to that home instead of the resolved default.
func mcpConfig(vaultHome string) map[string]any {
	args := []any{"mcp"}
	if vaultHome != "" {
		args = append(args, "--home", vaultHome)
	}
	return map[string]any{
		"command": "lazyvault",
		"args":    args,
		"type":    "stdio",
	}
}

// ---------------------------------------------------------------------------
// Default path helpers
// ---------------------------------------------------------------------------

// DefaultClaudeHome returns the default ~/.claude directory.
func DefaultClaudeHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// DefaultCursorHome returns the default ~/.cursor directory.
func DefaultCursorHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cursor")
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func readJSON(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		return make(map[string]any)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return make(map[string]any)
	}
	return m
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644) // #nosec G306 -- assistant config files (MCP server entries) do not contain secrets
}

// ---------------------------------------------------------------------------
// mcpServers helpers
// ---------------------------------------------------------------------------

// installMCPServers writes the lazyvault entry into path. It reports false
// when an identical entry is already present; a differing entry (for example
// one pinned to another home) is replaced.
func installMCPServers(path, vaultHome string) (bool, error) {
	data := readJSON(path)
	servers, _ := data["mcpServers"].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data["mcpServers"] = servers
	}
	want := mcpConfig(vaultHome)
	if existing, exists := servers[ServerName]; exists && sameEntry(existing, want) {
		return false, nil
	}
	servers[ServerName] = want
	return true, writeJSON(path, data)
}

func uninstallMCPServers(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data := readJSON(path)
	servers, _ := data["mcpServers"].(map[string]any)
	if _, exists := servers[ServerName]; !exists {
		return false, nil
	}
	delete(servers, ServerName)
	if len(servers) == 0 {
		delete(data, "mcpServers")
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

// sameEntry compares an entry read from disk with a freshly built one by
// their JSON form.
func sameEntry(existing any, want map[string]any) bool {
	a, err := json.Marshal(existing)
	if err != nil {
		return false
	}
	var normalized any
	if err := json.Unmarshal(a, &normalized); err != nil {
		return false
	}
	b, _ := json.Marshal(want)
	var wantNormalized any
	_ = json.Unmarshal(b, &wantNormalized)
	return reflect.DeepEqual(normalized, wantNormalized)
}

// ---------------------------------------------------------------------------
// Claude Code
// ---------------------------------------------------------------------------

//revive:disable:flag-parameter
func claudeMCPPath(claudeHome string, project bool) string {
	if project {
		return filepath.Join(filepath.Dir(claudeHome), ".mcp.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude.json")
}

func claudeScope(project bool) string {
	if project {
		return ".mcp.json"
	}
	return "~/.claude.json"
}

// SetupClaudeCode registers the lazyvault MCP server with Claude Code.
// claudeHome defaults to ~/.claude when empty. With project set the entry
// goes into the project's .mcp.json, otherwise into ~/.claude.json.
func SetupClaudeCode(claudeHome string, project bool, vaultHome string) Result {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	mcpPath := claudeMCPPath(claudeHome, project)
	added, err := installMCPServers(mcpPath, vaultHome)
	if err != nil {
		return okf("Could not write %s: %v", claudeScope(project), err)
	}
	if added {
		return okf("Installed: mcpServers in %s", claudeScope(project))
	}
	return ok("Already installed")
}

// UninstallClaudeCode removes the lazyvault entry from Claude Code.
func UninstallClaudeCode(claudeHome string, project bool) Result {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	mcpPath := claudeMCPPath(claudeHome, project)
	if done, err := uninstallMCPServers(mcpPath); err == nil && done {
		return okf("Removed: mcpServers from %s", filepath.Base(mcpPath))
	}
	return ok("Nothing to remove")
}

//revive:enable:flag-parameter

// ---------------------------------------------------------------------------
// Cursor
// ---------------------------------------------------------------------------

// SetupCursor registers the lazyvault MCP server with Cursor.
// cursorHome defaults to ~/.cursor when empty.
func SetupCursor(cursorHome, vaultHome string) Result {
	if cursorHome == "" {
		cursorHome = DefaultCursorHome()
	}
	added, err := installMCPServers(filepath.Join(cursorHome, "mcp.json"), vaultHome)
	if err != nil {
		return okf("Could not write mcp.json: %v", err)
	}
	if added {
		return ok("Installed: mcpServers")
	}
	return ok("Already installed")
}

// UninstallCursor removes the lazyvault entry from Cursor.
func UninstallCursor(cursorHome string) Result {
	if cursorHome == "" {
		cursorHome = DefaultCursorHome()
	}
	if done, err := uninstallMCPServers(filepath.Join(cursorHome, "mcp.json")); err == nil && done {
		return ok("Removed: mcpServers")
	}
	return ok("Nothing to remove")
}

// ---------------------------------------------------------------------------
// Targets
// ---------------------------------------------------------------------------

// Targets lists the assistant names accepted by Setup and Uninstall.
var Targets = []string{"claude-code", "cursor"}

// Setup dispatches to the installer for target. home overrides the
// assistant's config directory; vaultHome pins the served vault.
//
//revive:disable:flag-parameter
func Setup(target, home string, project bool, vaultHome string) (Result, error) {
	switch strings.ToLower(target) {
	case "claude-code", "claude":
		return SetupClaudeCode(home, project, vaultHome), nil
	case "cursor":
		return SetupCursor(home, vaultHome), nil
	default:
		return Result{}, fmt.Errorf("unknown target %q (want one of %s)", target, strings.Join(Targets, ", "))
	}
}

// Uninstall dispatches to the uninstaller for target.
func Uninstall(target, home string, project bool) (Result, error) {
	switch strings.ToLower(target) {
	case "claude-code", "claude":
		return UninstallClaudeCode(home, project), nil
	case "cursor":
		return UninstallCursor(home), nil
	default:
		return Result{}, fmt.Errorf("unknown target %q (want one of %s)", target, strings.Join(Targets, ", "))
	}
}

//revive:enable:flag-parameter
