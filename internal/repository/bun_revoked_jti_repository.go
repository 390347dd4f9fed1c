package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/report-zone/mfe-demo-sub000/internal/db/models"
)

// BunRevokedJTIRepository keeps the signed-out session token denylist in the database.
type BunRevokedJTIRepository struct {
	db *bun.DB
}

func NewBunRevokedJTIRepository(db *bun.DB) *BunRevokedJTIRepository {
	return &BunRevokedJTIRepository{db: db}
}

// Create records a signed-out token. Signing the same token out twice keeps the first record.
func (r *BunRevokedJTIRepository) Create(ctx context.Context, entry *models.RevokedJTI) error {
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = time.Now().UTC()
	}
	entry.Exp = entry.Exp.UTC()

	if _, err := r.db.NewInsert().Model(entry).On("CONFLICT (jti) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("revoke session token %s: %w", entry.JTI, err)
	}
	return nil
}

// IsRevoked reports whether the token with this JTI was signed out.
func (r *BunRevokedJTIRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := r.db.NewSelect().
		Model((*models.RevokedJTI)(nil)).
		Where("jti = ?", jti).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("lookup session token %s: %w", jti, err)
	}
	return revoked, nil
}

// DeleteExpired drops records of tokens that stopped being valid before the
// cutoff; such tokens fail verification on their own.
func (r *BunRevokedJTIRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.RevokedJTI)(nil)).
		Where("exp < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune revoked session tokens: %w", err)
	}
	return res.RowsAffected()
}
