package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/veloxdb"
	"github.com/syssam/veloxdb/view"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config   string
	LogLevel string
}

// NewRootCommand creates the root command for the veloxdb CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "veloxdb",
		Short:         "Manage veloxdb views and encryption keys",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts.LogLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Config, "config", "veloxdb.yaml", "path to the configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewViewsCommand(opts))
	cmd.AddCommand(NewKeygenCommand())

	return cmd
}

func setupLogging(level string) error {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// load reads and validates the configuration file.
func (o *RootOptions) load() (*veloxdb.Config, error) {
	return veloxdb.LoadConfig(o.Config)
}

// syncer opens the configured database and builds a view syncer over it.
// The returned closer releases the connection.
func (o *RootOptions) syncer() (*view.Syncer, func() error, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}
	drv, err := cfg.Open()
	if err != nil {
		return nil, nil, err
	}
	return view.NewSyncer(drv, reg), drv.Close, nil
}
