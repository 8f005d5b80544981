// Package journalcmd implements the `lazyvault journal` command.
package journalcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
)

// Command implements `lazyvault journal`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	campaign string
}

// New creates the journal command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "journal",
		Short: "Export completed sessions as a markdown journal",
		Long:  "Writes <home>/exports/<campaign-slug>-journal.md with one section per completed session.",
		RunE:  c.run,
	}
	shared.CampaignFlag(c.cmd, &c.campaign)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	path, err := svc.ExportJournal(c.campaign)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Journal written to %s\n", path)
	return nil
}
