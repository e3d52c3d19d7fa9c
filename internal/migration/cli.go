package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI renders migrator results for the migrate command.
type CLI struct {
	migrator Migrator
	out      io.Writer
}

func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, out: os.Stdout}
}

// SetOutput redirects output, which defaults to stdout.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// change runs op and reports the schema version before and after it.
func (c *CLI) change(ctx context.Context, what string, op func(context.Context) error) error {
	from, _, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if err := op(ctx); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	to, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case from == to:
		fmt.Fprintf(c.out, "%s: nothing to do. Current version: %d\n", what, to)
	default:
		fmt.Fprintf(c.out, "%s: version %d -> %d. Current version: %d\n", what, from, to, to)
	}
	if dirty {
		fmt.Fprintf(c.out, "schema is dirty; fix it by hand, then run: sunyadvisor migrate force %d\n", to)
	}
	return nil
}

// RunUp applies every pending migration.
func (c *CLI) RunUp(ctx context.Context) error {
	return c.change(ctx, "migrate up", c.migrator.Up)
}

// RunDown rolls back one migration.
func (c *CLI) RunDown(ctx context.Context) error {
	return c.change(ctx, "migrate down", c.migrator.Down)
}

func (c *CLI) RunDownAll(ctx context.Context) error {
	return c.change(ctx, "migrate down --all", c.migrator.DownAll)
}

// RunSteps applies n migrations, or rolls back -n.
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	return c.change(ctx, fmt.Sprintf("migrate steps %d", n), func(ctx context.Context) error {
		return c.migrator.Steps(ctx, n)
	})
}

// RunForce records version and clears the dirty flag.
func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.migrator.Force(ctx, version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	fmt.Fprintf(c.out, "Version forced to %d\n", version)
	return nil
}

func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == 0 {
		fmt.Fprintln(c.out, "No migrations applied yet.")
		return nil
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(c.out, "Current version: %d (%s)\n", version, state)
	return nil
}

// RunStatus prints one row per migration file and a summary line.
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, s := range statuses {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.Name, stateOf(s))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return c.summary(ctx)
}

func stateOf(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return "dirty"
	case s.Applied:
		return "applied"
	default:
		return "pending"
	}
}

func (c *CLI) summary(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("summarize migrations: %w", err)
	}
	fmt.Fprintf(c.out, "Total: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return nil
}

// RunInfo prints the version and the summary line.
func (c *CLI) RunInfo(ctx context.Context) error {
	if err := c.RunVersion(ctx); err != nil {
		return err
	}
	return c.summary(ctx)
}
