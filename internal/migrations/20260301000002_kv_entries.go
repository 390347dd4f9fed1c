package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/report-zone/mfe-demo-sub000/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260301000002, down_20260301000002)
}

// up_20260301000002 creates the persistent cross-module key/value store
func up_20260301000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating kv_entries table...")
	if _, err := db.NewCreateTable().Model((*models.KVEntry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create kv_entries table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

// down_20260301000002 drops kv_entries
func down_20260301000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping kv_entries table...")
	if _, err := db.NewDropTable().Model((*models.KVEntry)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop kv_entries table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
