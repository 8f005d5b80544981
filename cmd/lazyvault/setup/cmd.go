// Package setupcmd implements the `lazyvault setup` command group.
package setupcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	"github.com/go-ports/lazyvault/internal/setup"
)

// Command implements `lazyvault setup`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the setup command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "setup",
		Short: "Register the lazyvault MCP server with an assistant",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		c.newTarget("claude-code", ".claude"),
		c.newTarget("cursor", ".cursor"),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) newTarget(target, dotDir string) *cobra.Command {
	var configDir string
	var project bool
	var pin bool
	cmd := &cobra.Command{
		Use:   target,
		Short: fmt.Sprintf("Install the lazyvault MCP server into %s", target),
		RunE: func(cmd *cobra.Command, _ []string) error {
			vaultHome := ""
			if pin {
				vaultHome, _ = c.ctx.ResolveHome()
			}
			result, err := setup.Setup(target, ResolveConfigDir(dotDir, configDir, project), project, vaultHome)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", fmt.Sprintf("Path to %s directory", dotDir))
	cmd.Flags().BoolVar(&project, "project", false, "Install in current project instead of globally")
	cmd.Flags().BoolVar(&pin, "pin-home", false, "Pin the server to the current vault home")
	return cmd
}

// ResolveConfigDir picks the assistant config directory: an explicit
// configDir, the project-local dotDir, or the one under the user's home.
//
//revive:disable:flag-parameter
func ResolveConfigDir(dotDir, configDir string, project bool) string {
	if configDir != "" {
		return configDir
	}
	if project {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, dotDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dotDir)
}

//revive:enable:flag-parameter
