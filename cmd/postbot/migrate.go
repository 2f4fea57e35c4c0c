package main

import (
	"context"
	"fmt"
	"io"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/abdulachik/postbot/internal/db"
	"github.com/spf13/cobra"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the post database",
	Long: `Apply any pending schema migrations to the post database and list
every migration with its state. Other commands migrate on startup as well,
so this is mainly for preparing a database ahead of time.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "List migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open post database %s: %w", cfg.DatabasePath, err)
	}
	defer store.Close()

	return migrate(ctx, store, cmd.OutOrStdout(), !migrateStatusOnly)
}

func migrate(ctx context.Context, store *db.Store, out io.Writer, apply bool) error {
	if apply {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	list, err := store.Migrations(ctx)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	pending := 0
	for _, m := range list {
		state := "applied"
		if !m.Applied {
			state = "pending"
			pending++
		}
		fmt.Fprintf(out, "  %-8s %s\n", state, m.Version)
	}
	if pending == 0 {
		fmt.Fprintln(out, "Post database is up to date.")
	} else {
		fmt.Fprintf(out, "%d migrations pending.\n", pending)
	}
	return nil
}
