// Package reindexcmd implements the `lazyvault reindex` command.
package reindexcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
)

// Command implements `lazyvault reindex`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	campaign string
}

// New creates the reindex command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the vault documents",
		RunE:  c.run,
	}
	c.cmd.Flags().StringVarP(&c.campaign, "campaign", "c", "", "Only rebuild this campaign (default: all)")
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

	out := cmd.OutOrStdout()
	result, err := svc.Reindex(c.campaign, func(current, total int) {
		fmt.Fprintf(out, "\r  %d/%d", current, total)
		if current == total {
			fmt.Fprintln(out)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Re-indexed %d items across %d campaigns\n", result.Items, result.Campaigns)
	return nil
}
