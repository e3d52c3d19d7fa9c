package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/BaSui01/sunyadvisor/internal/migration"

	"github.com/spf13/cobra"
)

var migrateFlags struct {
	dbType string
	dbURL  string
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the relational schema",
}

func init() {
	f := migrateCmd.PersistentFlags()
	f.StringVar(&migrateFlags.dbType, "db-type", "", "database type (postgres, mysql, sqlite); used with --url")
	f.StringVar(&migrateFlags.dbURL, "url", "", "database URL, instead of the database config section")

	migrateCmd.AddCommand(
		migrateSub("up", "Apply all pending migrations", cobra.NoArgs, func(ctx context.Context, c *migration.CLI, _ []string) error {
			return c.RunUp(ctx)
		}),
		migrateDownCmd,
		migrateSub("steps N", "Apply N migrations, or roll back when N is negative", cobra.ExactArgs(1), func(ctx context.Context, c *migration.CLI, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return c.RunSteps(ctx, n)
		}),
		migrateSub("force VERSION", "Set the version without running migrations", cobra.ExactArgs(1), func(ctx context.Context, c *migration.CLI, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return c.RunForce(ctx, v)
		}),
		migrateSub("version", "Print the current schema version", cobra.NoArgs, func(ctx context.Context, c *migration.CLI, _ []string) error {
			return c.RunVersion(ctx)
		}),
		migrateSub("status", "List applied and pending migrations", cobra.NoArgs, func(ctx context.Context, c *migration.CLI, _ []string) error {
			return c.RunStatus(ctx)
		}),
		migrateSub("info", "Print migration summary", cobra.NoArgs, func(ctx context.Context, c *migration.CLI, _ []string) error {
			return c.RunInfo(ctx)
		}),
	)
	migrateDownCmd.Flags().BoolVar(&migrateDownAll, "all", false, "roll back every migration")
	rootCmd.AddCommand(migrateCmd)
}

var migrateDownAll bool

var migrateDownCmd = migrateSub("down", "Roll back the last migration, or all with --all", cobra.NoArgs, func(ctx context.Context, c *migration.CLI, _ []string) error {
	if migrateDownAll {
		return c.RunDownAll(ctx)
	}
	return c.RunDown(ctx)
})

func migrateSub(use, short string, args cobra.PositionalArgs, run func(context.Context, *migration.CLI, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, a []string) error {
			m, err := newMigrator()
			if err != nil {
				return err
			}
			defer m.Close()

			c := migration.NewCLI(m)
			c.SetOutput(cmd.OutOrStdout())
			return run(cmd.Context(), c, a)
		},
	}
}

func newMigrator() (*migration.DefaultMigrator, error) {
	if migrateFlags.dbURL != "" {
		if migrateFlags.dbType == "" {
			return nil, fmt.Errorf("--db-type is required with --url")
		}
		return migration.NewMigratorFromURL(migrateFlags.dbType, migrateFlags.dbURL)
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}
