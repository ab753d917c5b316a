// Package cli holds the rsm-admin cobra commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/redseamarket/adminkit"
	"github.com/redseamarket/adminkit/cmd/rsm-admin/internal/config"
	"github.com/redseamarket/adminkit/cmd/rsm-admin/internal/output"
	"github.com/redseamarket/adminkit/route"
	"github.com/redseamarket/adminkit/state"
)

// app is the state shared by every command of one invocation.
type app struct {
	cfgFile  string
	verbose  bool
	noColor  bool
	events   bool
	version  string
	settings *config.Settings
	logger   *slog.Logger
	printer  *output.Printer

	// transport overrides the HTTP transport in tests.
	transport http.RoundTripper
	stdout    io.Writer
	stderr    io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version, stdout: os.Stdout, stderr: os.Stderr}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rsm-admin",
		Short: "Red Sea Market admin session CLI",
		Long: `rsm-admin manages an admin console session against the Red Sea Market API.

The session (token and persisted preferences) lives in the configured storage
driver, so it survives between invocations.

Example usage:
  rsm-admin login                       # sign in with the demo account
  rsm-admin whoami                      # show the signed-in operator
  rsm-admin products --search coffee    # list products
  rsm-admin session health              # consistency flags
  rsm-admin logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .rsm-admin.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&a.events, "events", false, "print session lifecycle events as JSON on stderr")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.getCommand(),
		a.productsCommand(),
		a.sessionCommand(),
		a.navigateCommand(),
		a.metricsCommand(),
		a.watchCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) init() error {
	settings, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = settings

	level, _ := config.ParseLevel(settings.Log.Level)
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	a.printer = output.NewPrinterWithWriters(a.stdout, a.stderr, !a.noColor && output.ResolveColors(settings.Output.Colors))

	a.logger.Debug("configuration loaded",
		"base_url", settings.API.BaseURL,
		"storage", settings.Storage.Driver,
	)
	return nil
}

// withClient opens storage, starts a client on the landing path, runs fn and
// closes the client so pending state is flushed.
func (a *app) withClient(ctx context.Context, fn func(*adminkit.Client, *route.History) error) (err error) {
	store, release, err := a.settings.OpenStorage(ctx)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer release()

	history := route.NewHistory(a.settings.Routes.Landing)
	b := adminkit.New().
		WithConfig(a.settings.ClientConfig()).
		WithStorage(store).
		WithLogger(a.logger).
		WithNavigator(history)
	if a.events {
		b = b.WithEventSink(adminkit.NewJSONWriterSink(a.stderr))
	}
	if a.transport != nil {
		b = b.WithHTTPTransport(a.transport)
	}
	client, err := b.Build()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := client.Start(ctx); err != nil {
		a.printer.Warning("session restore incomplete: %v", err)
	}
	err = fn(client, history)
	a.reportNotifications(client.State())
	return err
}

// reportNotifications prints what the session raised during this run,
// oldest first. Success toasts are left to the command output.
func (a *app) reportNotifications(s *state.Store) {
	notes := s.UI().Notifications
	for i := len(notes) - 1; i >= 0; i-- {
		n := notes[i]
		text := n.Title
		if n.Message != "" {
			text += ": " + n.Message
		}
		switch n.Kind {
		case state.NotifyError:
			a.printer.Error("%s", text)
		case state.NotifyWarning:
			a.printer.Warning("%s", text)
		case state.NotifyInfo:
			a.printer.Info("%s", text)
		}
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "rsm-admin", a.version)
		},
	}
}
