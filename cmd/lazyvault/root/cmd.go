// Package rootcmd wires the root cobra.Command for the lazyvault CLI binary.
package rootcmd

import (
	"github.com/spf13/cobra"

	campaigncmd "github.com/go-ports/lazyvault/cmd/lazyvault/campaign"
	configcmd "github.com/go-ports/lazyvault/cmd/lazyvault/config"
	contextcmd "github.com/go-ports/lazyvault/cmd/lazyvault/context"
	initcmd "github.com/go-ports/lazyvault/cmd/lazyvault/init"
	journalcmd "github.com/go-ports/lazyvault/cmd/lazyvault/journal"
	mcpcmd "github.com/go-ports/lazyvault/cmd/lazyvault/mcp"
	reindexcmd "github.com/go-ports/lazyvault/cmd/lazyvault/reindex"
	sessioncmd "github.com/go-ports/lazyvault/cmd/lazyvault/session"
	setupcmd "github.com/go-ports/lazyvault/cmd/lazyvault/setup"
	"github.com/go-ports/lazyvault/cmd/lazyvault/shared"
	uninstallcmd "github.com/go-ports/lazyvault/cmd/lazyvault/uninstall"
	vaultcmd "github.com/go-ports/lazyvault/cmd/lazyvault/vault"
	"github.com/go-ports/lazyvault/internal/buildinfo"
)

// New creates and returns the root cobra.Command for the lazyvault CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "lazyvault",
		Short:         "lazyvault: a local campaign vault for lazy game masters",
		Version:       buildinfo.Resolved(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	root.SetVersionTemplate(buildinfo.Summary() + "\n")

	root.PersistentFlags().StringVar(
		&ctx.Home, "home", "",
		"Override vault home directory (default: $LAZYVAULT_HOME env → persisted config → ~/.lazyvault)",
	)

	root.AddCommand(
		initcmd.New(ctx).Cmd(),
		campaigncmd.New(ctx).Cmd(),
		vaultcmd.New(ctx).Cmd(),
		sessioncmd.New(ctx).Cmd(),
		contextcmd.New(ctx).Cmd(),
		journalcmd.New(ctx).Cmd(),
		reindexcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		setupcmd.New(ctx).Cmd(),
		uninstallcmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
	)

	return root
}
