// Package sessioncmd implements the `lazyvault session` command group.
package sessioncmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	"github.com/go-ports/lazyvault/internal/models"
	"github.com/go-ports/lazyvault/internal/sessions"
)

// Command implements `lazyvault session`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	campaign string
}

// New creates the session command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Plan, run and close game sessions",
		RunE:    func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	shared.CampaignFlag(c.cmd, &c.campaign)
	c.cmd.AddCommand(
		c.newCreate(),
		c.newList(),
		c.newShow(),
		c.newUpdate(),
		c.newDelete(),
		c.newFinalize(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func sessionLine(s *models.Session) string {
	return fmt.Sprintf("%s  #%-3d %-9s %s (%d linked)", s.ID, s.Number, s.Status, sessions.DisplayTitle(s), len(s.LinkedItems))
}

// ---------------------------------------------------------------------------
// session new
// ---------------------------------------------------------------------------

func (c *Command) newCreate() *cobra.Command {
	var seed models.SessionSeed
	cmd := &cobra.Command{
		Use:     "new",
		Aliases: []string{"create"},
		Short:   "Plan the next session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			sess, err := svc.CreateSession(c.campaign, &seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", sessionLine(sess))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&seed.Title, "title", "", "Session title")
	f.StringVar(&seed.StrongStart, "strong-start", "", "Opening scene")
	f.StringVar(&seed.Recap, "recap", "", "Recap of the previous session")
	f.StringVar(&seed.Notes, "notes", "", "Free-form prep notes")
	return cmd
}

// ---------------------------------------------------------------------------
// session list
// ---------------------------------------------------------------------------

func (c *Command) newList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions by number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			all, err := svc.ListSessions(c.campaign)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			for _, s := range all {
				fmt.Fprintln(out, sessionLine(s))
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// session show
// ---------------------------------------------------------------------------

func (c *Command) newShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			sess, err := svc.GetSession(c.campaign, args[0])
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), sess)
		},
	}
}

// ---------------------------------------------------------------------------
// session update
// ---------------------------------------------------------------------------

func (c *Command) newUpdate() *cobra.Command {
	var title, strongStart, recap, summary, notes, status, link, used string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a session; --link replaces the linked items and reconciles the vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			p := &models.SessionPatch{}
			if changed("title") {
				p.Title = &title
			}
			if changed("strong-start") {
				p.StrongStart = &strongStart
			}
			if changed("recap") {
				p.Recap = &recap
			}
			if changed("summary") {
				p.Summary = &summary
			}
			if changed("notes") {
				p.Notes = &notes
			}
			if changed("status") {
				st := models.SessionStatus(status)
				p.Status = &st
			}
			if changed("link") {
				ids := csvOrEmpty(link)
				p.LinkedItems = &ids
			}
			if changed("used") {
				ids := csvOrEmpty(used)
				p.UsedItems = &ids
			}

			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			sess, res, err := svc.UpdateSession(c.campaign, args[0], p)
			if err != nil && sess == nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Updated %s\n", sessionLine(sess))
			if p.LinkedItems != nil && res != nil {
				fmt.Fprintf(out, "  activated: %s\n", joinOrNone(res.Activated))
				fmt.Fprintf(out, "  reserved:  %s\n", joinOrNone(res.Reserved))
			}
			// The session is saved even when reconciling some items failed.
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "Session title")
	f.StringVar(&strongStart, "strong-start", "", "Opening scene")
	f.StringVar(&recap, "recap", "", "Recap of the previous session")
	f.StringVar(&summary, "summary", "", "What happened")
	f.StringVar(&notes, "notes", "", "Free-form notes")
	f.StringVar(&status, "status", "", "planned, active or completed")
	f.StringVar(&link, "link", "", "Comma-separated item IDs to link (replaces the set)")
	f.StringVar(&used, "used", "", "Comma-separated item IDs used at the table")
	return cmd
}

// ---------------------------------------------------------------------------
// session delete
// ---------------------------------------------------------------------------

func (c *Command) newDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and release its linked items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			existed, err := svc.DeleteSession(c.campaign, args[0])
			if err != nil {
				return err
			}
			if !existed {
				return models.NotFound("session", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// session finalize
// ---------------------------------------------------------------------------

func (c *Command) newFinalize() *cobra.Command {
	var used, summary string
	cmd := &cobra.Command{
		Use:   "finalize <id>",
		Short: "Close a session: archive used items and release the rest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := &models.FinalizeInput{Used: shared.SplitCSV(used)}
			if cmd.Flags().Changed("summary") {
				in.Summary = &summary
			}

			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			res, err := svc.FinalizeSession(c.campaign, args[0], in)
			if err != nil && res == nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Finalized %s\n", sessionLine(res.Session))
			fmt.Fprintf(out, "  archived: %s\n", joinOrNone(res.Archived))
			fmt.Fprintf(out, "  released: %s\n", joinOrNone(res.Released))
			return err
		},
	}
	cmd.Flags().StringVar(&used, "used", "", "Comma-separated item IDs used at the table")
	cmd.Flags().StringVar(&summary, "summary", "", "What happened")
	return cmd
}

func csvOrEmpty(s string) []string {
	ids := shared.SplitCSV(s)
	if ids == nil {
		return []string{}
	}
	return ids
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
