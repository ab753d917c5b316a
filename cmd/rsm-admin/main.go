// Command rsm-admin drives the Red Sea Market admin session from a terminal:
// login, logout, whoami, authenticated GETs, the product list, session
// maintenance and metrics.
package main

import (
	"os"

	"github.com/redseamarket/adminkit/cmd/rsm-admin/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
