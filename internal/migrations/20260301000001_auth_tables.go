package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/report-zone/mfe-demo-sub000/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260301000001, down_20260301000001)
}

// up_20260301000001 creates the local session provider tables
func up_20260301000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	if _, err := db.NewCreateTable().Model((*models.User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating verification_codes table...")
	if _, err := db.NewCreateTable().
		Model((*models.VerificationCode)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create verification_codes table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_verification_codes_user ON verification_codes(user_id, purpose)`); err != nil {
		return fmt.Errorf("failed to create verification_codes index: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating revoked_jti table...")
	if _, err := db.NewCreateTable().Model((*models.RevokedJTI)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create revoked_jti table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_revoked_jti_exp ON revoked_jti(exp)`); err != nil {
		return fmt.Errorf("failed to create revoked_jti exp index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260301000001 drops the local session provider tables
func down_20260301000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping auth tables...")
	for _, model := range []any{
		(*models.RevokedJTI)(nil),
		(*models.VerificationCode)(nil),
		(*models.User)(nil),
	} {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	fmt.Println(" OK")
	return nil
}
