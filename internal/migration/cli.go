package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI prints migration results for the agentchat migrate command.
type CLI struct {
	m   *Migrator
	out io.Writer
}

// NewCLI writes to stdout until SetOutput is called.
func NewCLI(m *Migrator) *CLI {
	return &CLI{m: m, out: os.Stdout}
}

// SetOutput redirects CLI messages.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// RunUp applies all pending migrations.
func (c *CLI) RunUp(ctx context.Context) error {
	return c.step(ctx, "applying pending migrations", "up to date", c.m.Up)
}

// RunDown rolls back the last migration.
func (c *CLI) RunDown(ctx context.Context) error {
	return c.step(ctx, "rolling back one migration", "rolled back", c.m.Down)
}

// RunDownAll rolls back every migration.
func (c *CLI) RunDownAll(ctx context.Context) error {
	return c.step(ctx, "rolling back all migrations", "schema removed", c.m.DownAll)
}

// RunGoto migrates up or down to version.
func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	return c.step(ctx, fmt.Sprintf("migrating to version %d", version), "migrated",
		func(ctx context.Context) error { return c.m.Goto(ctx, version) })
}

// RunForce records version without running migrations. Used to clear a
// dirty flag after fixing a failed migration by hand.
func (c *CLI) RunForce(ctx context.Context, version int) error {
	return c.step(ctx, fmt.Sprintf("forcing version %d", version), "forced",
		func(ctx context.Context) error { return c.m.Force(ctx, version) })
}

// RunVersion prints the applied version.
func (c *CLI) RunVersion(ctx context.Context) error {
	return c.report(ctx, "")
}

// RunStatus prints one row per embedded migration and a summary line.
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.m.Status(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "no migrations embedded")
		return nil
	}

	applied := 0
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, s := range statuses {
		if s.Applied {
			applied++
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", s.Version, s.Name, stateLabel(s))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d migrations, %d applied, %d pending\n",
		len(statuses), applied, len(statuses)-applied)
	return nil
}

// step prints what is about to happen, runs fn and reports the version it
// left behind.
func (c *CLI) step(ctx context.Context, doing, done string, fn func(context.Context) error) error {
	fmt.Fprintln(c.out, doing+"...")
	if err := fn(ctx); err != nil {
		return err
	}
	return c.report(ctx, done)
}

func (c *CLI) report(ctx context.Context, label string) error {
	version, dirty, err := c.m.Version(ctx)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("schema version %d", version)
	if version == 0 {
		line = "schema version none"
	}
	if dirty {
		line += " (dirty)"
	}
	if label != "" {
		line = label + ": " + line
	}
	fmt.Fprintln(c.out, line)
	return nil
}

func stateLabel(s Status) string {
	switch {
	case s.Dirty:
		return "dirty"
	case s.Applied:
		return "applied"
	default:
		return "pending"
	}
}
