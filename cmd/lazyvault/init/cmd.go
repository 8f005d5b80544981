// Package initcmd implements the `lazyvault init` command.
package initcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	"github.com/go-ports/lazyvault/internal/config"
)

// Command implements `lazyvault init`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the init command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize the vault home",
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	home, _ := c.ctx.ResolveHome()
	if err := os.MkdirAll(filepath.Join(home, "campaigns"), 0o755); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	out := cmd.OutOrStdout()
	cfgPath := filepath.Join(home, "config.yaml")
	wrote, err := config.WriteTemplate(cfgPath)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Fprintf(out, "Vault initialized at %s\n", home)
	if wrote {
		fmt.Fprintf(out, "Created %s\n", cfgPath)
	}
	return nil
}
