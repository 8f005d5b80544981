// Package contextcmd implements the `lazyvault context` command.
package contextcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	"github.com/go-ports/lazyvault/internal/aggregate"
	"github.com/go-ports/lazyvault/internal/prompt"
)

// Command implements `lazyvault context`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	campaign string
	mode     string
	session  string
	rolling  int
	query    string
}

// New creates the context command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "context",
		Short: "Print the assistant context for a campaign",
		Long: `Print the context an assistant sees for a campaign.

Without --query the aggregated context is printed as JSON. With --query the
full redacted conversation (system turn, acknowledgement, question) is
rendered as text.`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	shared.CampaignFlag(c.cmd, &c.campaign)

	f := c.cmd.Flags()
	f.StringVar(&c.mode, "mode", "", "prep or session (default from config)")
	f.StringVar(&c.session, "session", "", "Session ID for session mode (defaults to the active session)")
	f.IntVar(&c.rolling, "rolling", 0, "Number of completed sessions in rolling memory (default from config)")
	f.StringVar(&c.query, "query", "", "Render the full prompt for this question")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	req := aggregate.Request{SessionID: c.session, RollingLimit: c.rolling}
	if c.mode != "" {
		mode, err := aggregate.ParseMode(c.mode)
		if err != nil {
			return err
		}
		req.Mode = mode
	}

	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	if c.query == "" {
		agg, err := svc.Context(c.campaign, req)
		if err != nil {
			return err
		}
		return shared.PrintJSON(out, agg)
	}

	messages, _, err := svc.Prompt(c.campaign, req, c.query)
	if err != nil {
		return err
	}
	fmt.Fprint(out, prompt.Render(messages))
	return nil
}
