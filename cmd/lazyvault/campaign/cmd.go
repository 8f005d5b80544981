// Package campaigncmd implements the `lazyvault campaign` command group.
package campaigncmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	"github.com/go-ports/lazyvault/internal/models"
)

// Command implements `lazyvault campaign`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the campaign command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:     "campaign",
		Aliases: []string{"campaigns"},
		Short:   "Create, inspect and edit campaigns",
		RunE:    c.runList,
	}
	c.cmd.AddCommand(
		c.newCreate(),
		&cobra.Command{Use: "list", Short: "List campaigns", Args: cobra.NoArgs, RunE: c.runList},
		c.newShow(),
		c.newUpdate(),
		c.newDelete(),
		c.newActivate(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

// fields holds the flag targets shared by create and update.
type fields struct {
	title            string
	pitch            string
	moods            string
	safety           string
	truths           []string
	fronts           string
	frontsFile       string
	framework        string
	frameworkSummary string
}

func (f *fields) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.title, "title", "", "Campaign title")
	fl.StringVar(&f.pitch, "pitch", "", "Elevator pitch")
	fl.StringVar(&f.moods, "moods", "", "Moods and tone")
	fl.StringVar(&f.safety, "safety", "", "Safety tools in use")
	fl.StringArrayVar(&f.truths, "truth", nil, "Campaign truth (repeatable)")
	fl.StringVar(&f.fronts, "fronts", "", "Fronts as a JSON array")
	fl.StringVar(&f.frontsFile, "fronts-file", "", "Read fronts JSON from a file (- for stdin)")
	fl.StringVar(&f.framework, "framework", "", "Full world framework text")
	fl.StringVar(&f.frameworkSummary, "framework-summary", "", "Short framework summary")
}

func (f *fields) readFronts(cmd *cobra.Command) ([]models.Front, error) {
	data := []byte(f.fronts)
	if f.frontsFile != "" {
		if f.fronts != "" {
			return nil, fmt.Errorf("use either --fronts or --fronts-file, not both")
		}
		var err error
		if f.frontsFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(f.frontsFile)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", f.frontsFile, err)
		}
	}
	if len(data) == 0 {
		return nil, nil
	}
	var fronts []models.Front
	if err := json.Unmarshal(data, &fronts); err != nil {
		return nil, models.Invalid("fronts", "must be a JSON array of objects")
	}
	return fronts, nil
}

// ---------------------------------------------------------------------------
// campaign create
// ---------------------------------------------------------------------------

func (c *Command) newCreate() *cobra.Command {
	var f fields
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fronts, err := f.readFronts(cmd)
			if err != nil {
				return err
			}
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			camp, err := svc.CreateCampaign(&models.CampaignInput{
				Title:            f.title,
				ElevatorPitch:    f.pitch,
				Moods:            f.moods,
				SafetyTools:      f.safety,
				Truths:           f.truths,
				Fronts:           fronts,
				Framework:        f.framework,
				FrameworkSummary: f.frameworkSummary,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %q (%s)\n", camp.Title, camp.ID)
			return nil
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// ---------------------------------------------------------------------------
// campaign list
// ---------------------------------------------------------------------------

func (c *Command) runList(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Service()
	if err != nil {
		return err
	}
	defer svc.Close()

	camps, err := svc.ListCampaigns()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(camps) == 0 {
		fmt.Fprintln(out, "No campaigns found.")
		return nil
	}
	for _, camp := range camps {
		active := ""
		if camp.ActiveSession != nil {
			active = " [active session: " + *camp.ActiveSession + "]"
		}
		fmt.Fprintf(out, "%s  %s%s\n", camp.ID, camp.Title, active)
	}
	return nil
}

// ---------------------------------------------------------------------------
// campaign show
// ---------------------------------------------------------------------------

func (c *Command) newShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print campaign metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			camp, err := svc.GetCampaign(args[0])
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), camp)
		},
	}
}

// ---------------------------------------------------------------------------
// campaign update
// ---------------------------------------------------------------------------

func (c *Command) newUpdate() *cobra.Command {
	var f fields
	var useFull bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update campaign metadata; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			p := &models.CampaignPatch{}
			if changed("title") {
				p.Title = &f.title
			}
			if changed("pitch") {
				p.ElevatorPitch = &f.pitch
			}
			if changed("moods") {
				p.Moods = &f.moods
			}
			if changed("safety") {
				p.SafetyTools = &f.safety
			}
			if changed("truth") {
				p.Truths = &f.truths
			}
			if changed("fronts") || changed("fronts-file") {
				fronts, err := f.readFronts(cmd)
				if err != nil {
					return err
				}
				if fronts == nil {
					fronts = []models.Front{}
				}
				p.Fronts = &fronts
			}
			if changed("framework") {
				p.Framework = &f.framework
			}
			if changed("framework-summary") {
				p.FrameworkSummary = &f.frameworkSummary
			}
			if changed("use-full-framework") {
				p.UseFullFramework = &useFull
			}

			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			camp, err := svc.UpdateCampaign(args[0], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated campaign %q (%s)\n", camp.Title, camp.ID)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&useFull, "use-full-framework", false, "Send the full framework text instead of the summary")
	return cmd
}

// ---------------------------------------------------------------------------
// campaign delete
// ---------------------------------------------------------------------------

func (c *Command) newDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a campaign with all its items and sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			existed, err := svc.DeleteCampaign(args[0])
			if err != nil {
				return err
			}
			if !existed {
				return models.NotFound("campaign", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted campaign %s\n", args[0])
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// campaign activate
// ---------------------------------------------------------------------------

func (c *Command) newActivate() *cobra.Command {
	var clearActive bool
	cmd := &cobra.Command{
		Use:   "activate <id> [session-id]",
		Short: "Set or clear the campaign's active session",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := ""
			switch {
			case clearActive && len(args) == 2:
				return fmt.Errorf("--clear takes no session id")
			case !clearActive && len(args) == 1:
				return fmt.Errorf("a session id is required unless --clear is given")
			case len(args) == 2:
				sessionID = args[1]
			}

			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			camp, err := svc.ActivateSession(args[0], sessionID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if camp.ActiveSession == nil {
				fmt.Fprintf(out, "Cleared active session for %s\n", camp.ID)
			} else {
				fmt.Fprintf(out, "Active session for %s is now %s\n", camp.ID, *camp.ActiveSession)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearActive, "clear", false, "Clear the active session")
	return cmd
}
