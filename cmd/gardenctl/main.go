// Command gardenctl is the operator CLI for an incident-garden backend: it
// shows grouped effective statuses and event timelines, and reconciles event
// updates before submitting them.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bissquit/garden-console/internal/config"
	"github.com/bissquit/garden-console/internal/upstream"
	"github.com/bissquit/garden-console/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultBackendURL = "http://localhost:8080"

// cliOptions holds the flags shared by every command. backend is resolved
// before a command runs: flags set on the command line win over GARDEN_
// variables and the CONFIG_PATH file.
type cliOptions struct {
	backendURL string
	token      string
	output     string
	timeout    time.Duration
	verbose    bool

	backend config.BackendConfig
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "gardenctl",
		Short: "Operator CLI for incident-garden",
		Long: `gardenctl reads services, groups and events from an incident-garden backend.

It resolves effective service statuses, prints the grouped status page and
event timelines, and turns service edits into a reconciled event update.
Updates are previewed with --dry-run or submitted with your bearer token.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			if _, err := parseFormat(opts.output); err != nil {
				return err
			}
			return opts.resolveBackend(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.backendURL, "backend", "", "backend base url (default backend.url, or "+defaultBackendURL+")")
	flags.StringVar(&opts.token, "token", "", "bearer token (default backend.token)")
	flags.StringVarP(&opts.output, "output", "o", string(formatTable), "output format: table, json or yaml")
	flags.DurationVar(&opts.timeout, "timeout", 0, "backend request timeout (default backend.timeout)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log backend requests to stderr")

	root.AddCommand(
		newStatusCmd(opts),
		newTimelineCmd(opts),
		newUpdateCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// resolveBackend reads the backend section through internal/config and lays
// explicitly set flags over it.
func (o *cliOptions) resolveBackend(flags *pflag.FlagSet) error {
	cfg, err := config.Read()
	if err != nil {
		return err
	}

	backend := cfg.Backend
	if flags.Changed("backend") {
		backend.URL = o.backendURL
	}
	if flags.Changed("token") {
		backend.Token = o.token
	}
	if flags.Changed("timeout") {
		backend.Timeout = o.timeout
	}
	if backend.URL == "" {
		backend.URL = defaultBackendURL
	}
	if err := backend.Validate(); err != nil {
		return err
	}

	o.backend = backend
	return nil
}

func (o *cliOptions) client() (*upstream.Client, error) {
	client, err := upstream.NewClient(upstream.Config{
		BaseURL:   o.backend.URL,
		Token:     o.backend.Token,
		Timeout:   o.backend.Timeout,
		RateLimit: o.backend.RateLimit,
		RateBurst: o.backend.RateBurst,
		CacheTTL:  o.backend.CacheTTL,
		CacheSize: o.backend.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	return client, nil
}

func (o *cliOptions) format() outputFormat {
	f, _ := parseFormat(o.output)
	return f
}

func newVersionCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Info()
			if f := opts.format(); f != formatTable {
				return writeStructured(cmd.OutOrStdout(), f, info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "gardenctl %s (commit %s, built %s)\n",
				info["version"], info["commit"], info["build_date"])
			return err
		},
	}
}
