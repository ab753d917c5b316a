package cli

import (
	"github.com/spf13/cobra"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/route"
)

func (a *app) navigateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "navigate <path>",
		Aliases: []string{"route"},
		Short:   "Show where the route guard sends the session for a path",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *adminkit.Client, h *route.History) error {
				d, err := c.Navigate(args[0])
				if err != nil {
					return err
				}
				if d.Redirect {
					a.printer.Warning("%s redirects to %s (%s)", route.Clean(args[0]), d.Path, d.Reason)
				} else {
					a.printer.Success("%s renders", d.Path)
				}
				a.printer.Info("history: %v", h.Entries())
				return nil
			})
		},
	}
}
