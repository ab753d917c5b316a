package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/cmd/rsm-admin/internal/output"
	"github.com/redseamarket/adminkit/route"
	"github.com/redseamarket/adminkit/state"
)

func (a *app) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in with email and password. Without flags the demo account from
demo.email / demo.password is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				email = a.settings.Demo.Email
			}
			if password == "" {
				password = a.settings.Demo.Password
			}
			return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
				user, err := c.Login(cmd.Context(), adminkit.Credentials{Email: email, Password: password})
				if err != nil {
					return err
				}
				a.printer.Success("Signed in as %s <%s>", user.FullName(), user.Email)
				a.printer.Info("Now at %s", c.Path())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
				if !c.Session().IsAuthenticated {
					a.printer.Info("Not signed in")
					return nil
				}
				return c.Logout(cmd.Context())
			})
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
				sess := c.Session()
				if !sess.IsAuthenticated {
					return adminkit.ErrNotAuthenticated
				}
				user := sess.User
				if remote {
					var err error
					if user, err = c.Me(cmd.Context()); err != nil {
						return err
					}
				}
				return renderUser(a.printer, user)
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "refresh the profile from the API")
	return cmd
}

func renderUser(p *output.Printer, u *state.User) error {
	if u == nil {
		return errors.New("session has no user")
	}
	tbl := output.NewTable(p.Out(), "Field", "Value")
	tbl.AddRow("ID", u.ID)
	tbl.AddRow("Name", u.FullName())
	tbl.AddRow("Email", u.Email)
	if u.Phone != "" {
		tbl.AddRow("Phone", u.Phone)
	}
	tbl.AddRow("Verified", p.Flag(u.IsVerified))
	if u.Role != nil {
		tbl.AddRow("Role", u.Role.Name)
		tbl.AddRow("Permissions", strings.Join(u.Role.Permissions.Sorted(), ", "))
	}
	return tbl.Render()
}
