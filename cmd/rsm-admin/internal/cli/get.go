package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/route"
)

func (a *app) getCommand() *cobra.Command {
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET and print the JSON response",
		Example: `  rsm-admin get /auth/me
  rsm-admin get /orders --query status=pending`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, v)
			}
			return a.withClient(cmd.Context(), func(c *adminkit.Client, _ *route.History) error {
				var raw json.RawMessage
				if err := c.API().Get(cmd.Context(), args[0], q, &raw); err != nil {
					return err
				}
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, raw, "", "  "); err != nil {
					pretty.Reset()
					pretty.Write(raw)
				}
				fmt.Fprintln(a.stdout, pretty.String())
				return nil
			})
		},
	}
	cmd.Flags().StringToStringVar(&params, "query", nil, "query parameters (key=value)")
	return cmd
}
