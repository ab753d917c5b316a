package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/cmd/rsm-admin/internal/output"
	"github.com/redseamarket/adminkit/route"
)

func (a *app) sessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and maintain the stored session",
	}
	cmd.AddCommand(
		a.sessionHealthCommand(),
		&cobra.Command{
			Use:   "purge",
			Short: "Delete all persisted state and any orphaned token",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
					if err := c.PurgePersist(cmd.Context()); err != nil {
						return err
					}
					a.printer.Success("Persisted state purged")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Write pending state changes now",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
					if err := c.Flush(cmd.Context()); err != nil {
						return err
					}
					a.printer.Success("State flushed")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "expire",
			Short: "Force the expired-session teardown",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withClient(cmd.Context(), func(c *adminkit.Client, h *route.History) error {
					if err := c.ExpireSession(cmd.Context()); err != nil {
						return err
					}
					a.printer.Info("Now at %s", h.Current())
					return nil
				})
			},
		},
	)
	return cmd
}

func (a *app) sessionHealthCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show lifecycle and consistency flags",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
				h := c.Health(cmd.Context())
				if asJSON {
					enc := json.NewEncoder(a.stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(h)
				}
				p := a.printer
				tbl := output.NewTable(p.Out(), "Check", "Value")
				tbl.AddRow("started", p.Flag(h.Started))
				tbl.AddRow("bootstrapped", p.Flag(h.Persist.IsBootstrapped))
				tbl.AddRow("rehydrated", p.Flag(h.Persist.IsRehydrated))
				tbl.AddRow("persistence paused", p.Flag(h.PersistPaused))
				tbl.AddRow("authenticated", p.Flag(h.Authenticated))
				tbl.AddRow("user", h.UserID)
				tbl.AddRow("token stored", p.Flag(h.TokenStored))
				tbl.AddRow("header set", p.Flag(h.HeaderSet))
				tbl.AddRow("invalidation", h.Invalidation)
				tbl.AddRow("path", h.Path)
				tbl.AddRow("stored keys", strings.Join(h.StoredKeys, ", "))
				if h.StorageError != "" {
					tbl.AddRow("storage error", h.StorageError)
				}
				if err := tbl.Render(); err != nil {
					return err
				}
				if h.Authenticated != h.TokenStored {
					p.Warning("session and stored token disagree")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
