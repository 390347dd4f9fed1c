package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/report-zone/mfe-demo-sub000/internal/db/bunx"
	"github.com/report-zone/mfe-demo-sub000/internal/db/models"
)

// BunCodeRepository implements CodeRepository using Bun ORM
type BunCodeRepository struct {
	db *bun.DB
}

// NewBunCodeRepository creates a new Bun-based code repository
func NewBunCodeRepository(db *bun.DB) *BunCodeRepository {
	return &BunCodeRepository{db: db}
}

// Create stores a code, assigning an id when none is set
func (r *BunCodeRepository) Create(ctx context.Context, code *models.VerificationCode) error {
	if code.ID == "" {
		code.ID = bunx.NewUUIDv7()
	}
	code.CreatedAt = time.Now().UTC()
	code.ExpiresAt = code.ExpiresAt.UTC()
	if _, err := r.db.NewInsert().Model(code).Exec(ctx); err != nil {
		return fmt.Errorf("create verification code: %w", err)
	}
	return nil
}

// Consume marks the matching live code as used. An unknown, consumed or
// expired code yields ErrNotFound.
func (r *BunCodeRepository) Consume(ctx context.Context, userID, purpose, codeHash string) (*models.VerificationCode, error) {
	code := new(models.VerificationCode)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(code).
			Where("user_id = ?", userID).
			Where("purpose = ?", purpose).
			Where("code_hash = ?", codeHash).
			Where("consumed_at IS NULL").
			Where("expires_at > ?", time.Now().UTC()).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		code.ConsumedAt = &now
		_, err = tx.NewUpdate().
			Model(code).
			Column("consumed_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification code: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("consume verification code: %w", err)
	}
	return code, nil
}

// GetLive returns a live code by purpose and hash.
func (r *BunCodeRepository) GetLive(ctx context.Context, purpose, codeHash string) (*models.VerificationCode, error) {
	code := new(models.VerificationCode)
	err := r.db.NewSelect().
		Model(code).
		Where("purpose = ?", purpose).
		Where("code_hash = ?", codeHash).
		Where("consumed_at IS NULL").
		Where("expires_at > ?", time.Now().UTC()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification code: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get verification code: %w", err)
	}
	return code, nil
}

// Invalidate consumes every live code of userID for purpose
func (r *BunCodeRepository) Invalidate(ctx context.Context, userID, purpose string) error {
	_, err := r.db.NewUpdate().
		Model((*models.VerificationCode)(nil)).
		Set("consumed_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("purpose = ?", purpose).
		Where("consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("invalidate verification codes: %w", err)
	}
	return nil
}

// DeleteExpired removes codes that expired before the cutoff and returns how many were removed.
func (r *BunCodeRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*models.VerificationCode)(nil)).
		Where("expires_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired verification codes: %w", err)
	}
	return res.RowsAffected()
}
