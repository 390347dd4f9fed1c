package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/report-zone/mfe-demo-sub000/internal/db/bunx"
	"github.com/report-zone/mfe-demo-sub000/internal/migrations"
	"github.com/report-zone/mfe-demo-sub000/internal/repository"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the session and channel store schema.`,
}

// withMigrator connects to the database and runs fn with a migrator on it.
func withMigrator(fn func(ctx context.Context, db *bun.DB, m *migrate.Migrator) error) error {
	ctx := context.Background()
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer bunx.Close(db)

	m := migrate.NewMigrator(db, migrations.Migrations)
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return fn(ctx, db, m)
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Applies all pending migrations under the migration lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(ctx context.Context, db *bun.DB, _ *migrate.Migrator) error {
			group, err := migrations.Apply(ctx, db)
			if err != nil {
				return err
			}
			if group == 0 {
				cmd.Println("No new migrations to apply")
			} else {
				cmd.Printf("Applied migration group %d\n", group)
			}
			return nil
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
			ms, err := m.MigrationsWithStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			cmd.Println("Migrations:")
			for _, mig := range ms {
				status := "pending"
				if mig.GroupID > 0 {
					status = fmt.Sprintf("applied (group %d)", mig.GroupID)
				}
				cmd.Printf("  %s: %s\n", mig.Name, status)
			}
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback last migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
			if err := m.Lock(ctx); err != nil {
				return fmt.Errorf("failed to acquire migration lock: %w", err)
			}
			defer func() {
				if err := m.Unlock(ctx); err != nil {
					logger.Warn().Err(err).Msg("failed to release migration lock")
				}
			}()

			group, err := m.Rollback(ctx)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if group.ID == 0 {
				cmd.Println("No migrations to rollback")
			} else {
				cmd.Printf("Rolled back migration group %d\n", group.ID)
			}
			return nil
		})
	},
}

var dbUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force release migration lock",
	Long:  `Force releases the migration lock. Use this if a migration crashed while holding the lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(ctx context.Context, _ *bun.DB, m *migrate.Migrator) error {
			if err := m.Unlock(ctx); err != nil {
				return fmt.Errorf("failed to release migration lock: %w", err)
			}
			cmd.Println("Migration lock released")
			return nil
		})
	},
}

var pruneGrace time.Duration

var dbPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired confirmation codes and revoked token records",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(ctx context.Context, db *bun.DB, _ *migrate.Migrator) error {
			cutoff := time.Now().Add(-pruneGrace)
			codes, err := repository.NewBunCodeRepository(db).DeleteExpired(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune codes: %w", err)
			}
			tokens, err := repository.NewBunRevokedJTIRepository(db).DeleteExpired(ctx, cutoff)
			if err != nil {
				return fmt.Errorf("failed to prune revoked tokens: %w", err)
			}
			cmd.Printf("Pruned %d confirmation code(s) and %d revoked token record(s)\n", codes, tokens)
			return nil
		})
	},
}

func init() {
	dbPruneCmd.Flags().DurationVar(&pruneGrace, "grace", time.Hour, "Keep records that expired less than this long ago")

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	dbCmd.AddCommand(dbUnlockCmd)
	dbCmd.AddCommand(dbPruneCmd)
}
