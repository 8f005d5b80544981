// Package vaultcmd implements the `lazyvault vault` command group.
package vaultcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	"github.com/go-ports/lazyvault/internal/models"
)

// Command implements `lazyvault vault`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	campaign string
}

// New creates the vault command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "vault",
		Short: "Manage a campaign's prepared material",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	shared.CampaignFlag(c.cmd, &c.campaign)
	c.cmd.AddCommand(
		c.newAdd(),
		c.newList(),
		c.newShow(),
		c.newUpdate(),
		c.newDelete(),
		c.newSearch(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func itemLine(item *models.VaultItem) string {
	name, ok := item.Name()
	if !ok {
		name = "(unnamed)"
	}
	tags := ""
	if len(item.Tags) > 0 {
		tags = " [" + strings.Join(item.Tags, ", ") + "]"
	}
	return fmt.Sprintf("%s  %-9s %-8s %s%s", item.ID, item.Type, item.Status, name, tags)
}

// ---------------------------------------------------------------------------
// vault add
// ---------------------------------------------------------------------------

func (c *Command) newAdd() *cobra.Command {
	var itemType, tags, content, contentFile, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an item to the vault in reserve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			obj, err := shared.ReadObject(content, contentFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if name != "" {
				if obj == nil {
					obj = map[string]any{}
				}
				obj["name"] = name
			}

			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			item, err := svc.CreateItem(c.campaign, itemType, shared.SplitCSV(tags), obj)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", itemLine(item))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&itemType, "type", "", "Item type (npc, location, secret, scene, character, ...)")
	f.StringVar(&tags, "tags", "", "Comma-separated tags")
	f.StringVar(&content, "content", "", "Item content as a JSON object")
	f.StringVar(&contentFile, "content-file", "", "Read content JSON from a file (- for stdin)")
	f.StringVar(&name, "name", "", "Shorthand for content.name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// ---------------------------------------------------------------------------
// vault list
// ---------------------------------------------------------------------------

func (c *Command) newList() *cobra.Command {
	var itemType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vault items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			items, err := svc.ListItems(c.campaign, itemType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No items found.")
				return nil
			}
			for _, item := range items {
				fmt.Fprintln(out, itemLine(item))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&itemType, "type", "", "Only list items of this type")
	return cmd
}

// ---------------------------------------------------------------------------
// vault show
// ---------------------------------------------------------------------------

func (c *Command) newShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a vault item as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			item, err := svc.GetItem(c.campaign, args[0])
			if err != nil {
				return err
			}
			return shared.PrintJSON(cmd.OutOrStdout(), item)
		},
	}
}

// ---------------------------------------------------------------------------
// vault update
// ---------------------------------------------------------------------------

func (c *Command) newUpdate() *cobra.Command {
	var status, tags, content, contentFile string
	var usage int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a vault item; content keys are merged",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			p := &models.ItemPatch{}
			if changed("status") {
				st := models.ItemStatus(status)
				p.Status = &st
			}
			if changed("tags") {
				t := shared.SplitCSV(tags)
				if t == nil {
					t = []string{}
				}
				p.Tags = &t
			}
			if changed("content") || changed("content-file") {
				obj, err := shared.ReadObject(content, contentFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				if obj == nil {
					obj = map[string]any{}
				}
				p.Content = &obj
			}
			if changed("usage-count") {
				p.UsageCount = &usage
			}

			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			item, err := svc.UpdateItem(c.campaign, args[0], p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", itemLine(item))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&status, "status", "", "New status (reserve, active, archived)")
	f.StringVar(&tags, "tags", "", "Replace tags (comma-separated)")
	f.StringVar(&content, "content", "", "Content keys to merge, as a JSON object")
	f.StringVar(&contentFile, "content-file", "", "Read content JSON from a file (- for stdin)")
	f.IntVar(&usage, "usage-count", 0, "Set the usage count")
	return cmd
}

// ---------------------------------------------------------------------------
// vault delete
// ---------------------------------------------------------------------------

func (c *Command) newDelete() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a vault item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			existed, err := svc.DeleteItem(c.campaign, args[0])
			if err != nil {
				return err
			}
			if !existed {
				return models.NotFound("item", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// vault search
// ---------------------------------------------------------------------------

func (c *Command) newSearch() *cobra.Command {
	var limit int
	var itemType string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search vault items by keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.ctx.Service()
			if err != nil {
				return err
			}
			defer svc.Close()

			hits, err := svc.SearchVault(c.campaign, args[0], limit, itemType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			fmt.Fprintf(out, "\n Results (%d found) \n\n", len(hits))
			for i, h := range hits {
				name := h.Name
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Fprintf(out, " [%d] %s (score: %.2f)\n", i+1, name, h.Score)
				fmt.Fprintf(out, "     %s | %s | %s\n", h.ID, h.Type, h.Status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.Flags().StringVar(&itemType, "type", "", "Only search items of this type")
	return cmd
}
