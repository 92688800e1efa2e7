// Package main provides the graph schema migration CLI tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MacJediWizard/orggraph/internal/config"
	"github.com/MacJediWizard/orggraph/internal/db"
	"github.com/MacJediWizard/orggraph/internal/maintenance"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	uri      string
	username string
	password string
	database string
	timeout  time.Duration
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	rootCmd := &cobra.Command{
		Use:   "orggraph-migrate",
		Short: "Manage the orggraph Neo4j schema",
		Long: `Manage the orggraph Neo4j schema.

Connection flags default to the server configuration (CONFIG_FILE and
NEO4J_* environment variables).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.applyDefaults(cmd)
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.uri, "uri", "", "Neo4j URI (or set NEO4J_URI)")
	flags.StringVar(&opts.username, "username", "", "Neo4j user (or set NEO4J_USERNAME)")
	flags.StringVar(&opts.password, "password", "", "Neo4j password (or set NEO4J_PASSWORD)")
	flags.StringVar(&opts.database, "database", "", "Neo4j database (or set NEO4J_DATABASE)")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Overall command timeout")

	rootCmd.AddCommand(
		newApplyCmd(opts, logger),
		newListCmd(),
		newVersionCmd(opts, logger),
		newAuditCmd(opts, logger),
	)
	return rootCmd
}

// applyDefaults fills unset connection flags from the server configuration.
func (o *options) applyDefaults(cmd *cobra.Command) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("uri") {
		o.uri = cfg.Neo4j.URI
	}
	if !cmd.Flags().Changed("username") {
		o.username = cfg.Neo4j.Username
	}
	if !cmd.Flags().Changed("password") {
		o.password = cfg.Neo4j.Password
	}
	if !cmd.Flags().Changed("database") {
		o.database = cfg.Neo4j.Database
	}
	return nil
}

func (o *options) connect(ctx context.Context, logger zerolog.Logger) (*db.DB, error) {
	if o.uri == "" {
		return nil, fmt.Errorf("neo4j URI required: use --uri or set NEO4J_URI")
	}
	cfg := db.DefaultConfig(o.uri)
	cfg.Username = o.username
	cfg.Password = o.password
	cfg.Database = o.database
	cfg.MaxConnectionPoolSize = 5

	database, err := db.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return database, nil
}

func newApplyCmd(opts *options, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			database, err := opts.connect(ctx, logger)
			if err != nil {
				return err
			}
			defer database.Close()

			logger.Info().Msg("running schema migrations")
			if err := database.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, err := database.CurrentVersion(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("could not get current version")
				return nil
			}
			logger.Info().Int("version", version).Msg("migrations complete")
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all migrations",
		// Listing needs no connection or configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			return listMigrations(cmd.OutOrStdout())
		},
	}
}

func listMigrations(out io.Writer) error {
	migrations, err := db.GetMigrations()
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	if len(migrations) == 0 {
		fmt.Fprintln(out, "No migrations found")
		return nil
	}

	fmt.Fprintln(out, "Available migrations:")
	for _, m := range migrations {
		fmt.Fprintf(out, "  %03d: %s\n", m.Version, m.Name)
	}
	return nil
}

func newVersionCmd(opts *options, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			database, err := opts.connect(ctx, logger)
			if err != nil {
				return err
			}
			defer database.Close()

			version, err := database.CurrentVersion(ctx)
			if err != nil {
				return fmt.Errorf("get schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current schema version: %d\n", version)
			return nil
		},
	}
}

func newAuditCmd(opts *options, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report users on supervision cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			database, err := opts.connect(ctx, logger)
			if err != nil {
				return err
			}
			defer database.Close()

			audit := maintenance.NewSupervisionAudit(database, nil, "", logger)
			ids, err := audit.RunNow(ctx)
			if err != nil {
				return err
			}
			return printCycles(cmd.OutOrStdout(), ids)
		},
	}
}

func printCycles(out io.Writer, ids []string) error {
	if len(ids) == 0 {
		_, err := fmt.Fprintln(out, "No supervision cycles found")
		return err
	}
	fmt.Fprintf(out, "%d users on supervision cycles:\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}
