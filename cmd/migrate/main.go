package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"taskhub.dev/internal/migrate"
	"taskhub.dev/internal/obs"
	"taskhub.dev/ops/migrations"
)

type options struct {
	dsn            string
	migrationsPath string
	seedsPath      string
	timeout        time.Duration
	logLevel       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the taskhub PostgreSQL schema and seeds",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.dsn, "dsn", os.Getenv("TASKHUB_STORE_POSTGRES_DSN"), "PostgreSQL DSN (env TASKHUB_STORE_POSTGRES_DSN)")
	flags.StringVar(&opts.migrationsPath, "migrations", "", "directory of *.up.sql/*.down.sql files (default: embedded)")
	flags.StringVar(&opts.seedsPath, "seeds", "", "directory of seed *.sql files (default: embedded)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall deadline")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), opts, func(ctx context.Context, m *migrate.Manager) error {
					applied, err := m.Up(ctx)
					printNames(cmd, "applied", applied)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), opts, func(ctx context.Context, m *migrate.Manager) error {
					name, err := m.Down(ctx)
					if errors.Is(err, migrate.ErrNothingApplied) {
						cmd.Println("nothing to roll back")
						return nil
					}
					if err == nil {
						cmd.Printf("rolled back %s\n", name)
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), opts, func(ctx context.Context, m *migrate.Manager) error {
					entries, err := m.Status(ctx)
					if err != nil {
						return err
					}
					for _, e := range entries {
						if e.Applied {
							cmd.Printf("applied  %s  %s\n", e.AppliedAt.UTC().Format(time.RFC3339), e.Name)
							continue
						}
						cmd.Printf("pending  %-20s  %s\n", "", e.Name)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Apply seed files that have not run yet",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), opts, func(ctx context.Context, m *migrate.Manager) error {
					applied, err := m.Seed(ctx)
					printNames(cmd, "seeded", applied)
					return err
				})
			},
		},
	)
	return root
}

func run(parent context.Context, opts *options, fn func(context.Context, *migrate.Manager) error) error {
	if strings.TrimSpace(opts.dsn) == "" {
		return errors.New("missing DSN: provide via --dsn or TASKHUB_STORE_POSTGRES_DSN")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, opts.timeout)
	defer cancel()

	db, err := sql.Open("pgx", opts.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	logger := obs.NewLogger(opts.logLevel, "text", os.Stderr)
	m := migrate.NewManager(db,
		source(opts.migrationsPath, migrations.SQL),
		source(opts.seedsPath, migrations.Seeds),
		migrate.WithLogger(logger),
	)
	return fn(ctx, m)
}

// source prefers a directory on disk over the embedded files.
func source(dir string, embedded fs.FS) fs.FS {
	if strings.TrimSpace(dir) != "" {
		return os.DirFS(dir)
	}
	return embedded
}

func printNames(cmd *cobra.Command, verb string, names []string) {
	if len(names) == 0 {
		cmd.Printf("nothing %s\n", verb)
		return
	}
	for _, n := range names {
		cmd.Printf("%s %s\n", verb, n)
	}
}
