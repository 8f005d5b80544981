// Package uninstallcmd implements the `lazyvault uninstall` command group.
package uninstallcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	setupcmd "github.com/go-ports/lazyvault/cmd/lazyvault/setup"
	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	"github.com/go-ports/lazyvault/internal/setup"
)

// Command implements `lazyvault uninstall`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the uninstall command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the lazyvault MCP server from an assistant",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		newTarget("claude-code", ".claude"),
		newTarget("cursor", ".cursor"),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newTarget(target, dotDir string) *cobra.Command {
	var configDir string
	var project bool
	cmd := &cobra.Command{
		Use:   target,
		Short: fmt.Sprintf("Remove lazyvault from %s", target),
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := setup.Uninstall(target, setupcmd.ResolveConfigDir(dotDir, configDir, project), project)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", fmt.Sprintf("Path to %s directory", dotDir))
	cmd.Flags().BoolVar(&project, "project", false, "Uninstall from current project instead of globally")
	return cmd
}
