package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// RootConfig holds the persistent flags shared by every subcommand.
type RootConfig struct {
	ConfigPath string
	DBPath     string
	PGDSN      string
	LogLevel   string
	NoColor    bool

	Log zerolog.Logger
}

// envOverrides maps environment variables onto persistent flags. A flag
// given on the command line wins over the environment.
var envOverrides = map[string]string{
	"TURTLE_CONFIG":    "config",
	"TURTLE_LOG_LEVEL": "log-level",
	"TURTLE_DB":        "db",
	"TURTLE_PG_DSN":    "pg-dsn",
}

func NewRootCmd() *cobra.Command {
	rc := &RootConfig{Log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "turtle",
		Short:         "Turtle: channel breakout portfolio backtester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&rc.DBPath, "db", "./turtle.sqlite", "SQLite journal database")
	cmd.PersistentFlags().StringVar(&rc.PGDSN, "pg-dsn", "", "Postgres journal DSN (overrides --db for journal queries)")
	cmd.PersistentFlags().StringVar(&rc.LogLevel, "log-level", "info", "Log level: debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&rc.NoColor, "no-color", false, "Disable colored output")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		flags := cmd.Flags()
		for env, name := range envOverrides {
			v, ok := os.LookupEnv(env)
			if !ok || flags.Changed(name) {
				continue
			}
			if err := flags.Set(name, v); err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
		}

		level, err := zerolog.ParseLevel(rc.LogLevel)
		if err != nil {
			return fmt.Errorf("log-level: %w", err)
		}
		rc.Log = zerolog.New(zerolog.ConsoleWriter{
			Out:        cmd.ErrOrStderr(),
			TimeFormat: time.RFC3339,
			NoColor:    rc.NoColor,
		}).Level(level).With().Timestamp().Logger()
		return nil
	}

	// Subcommands
	cmd.AddCommand(
		newBacktestCmd(rc),
		newConfigCmd(rc),
		newJournalCmd(rc),
		newVersionCmd(),
	)

	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
