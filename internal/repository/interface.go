package repository

import (
	"context"
	"errors"
	"time"

	"github.com/report-zone/mfe-demo-sub000/internal/db/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// UserRepository persists local provider users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, id, passwordHash string, mustRotate bool) error
	Confirm(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.User, error)
}

// CodeRepository persists verification codes and rotation challenges.
type CodeRepository interface {
	Create(ctx context.Context, code *models.VerificationCode) error
	// Consume marks the live code matching hash as used and returns it.
	Consume(ctx context.Context, userID, purpose, codeHash string) (*models.VerificationCode, error)
	// GetLive returns the live code matching hash without consuming it.
	GetLive(ctx context.Context, purpose, codeHash string) (*models.VerificationCode, error)
	// Invalidate consumes every live code of a user for purpose.
	Invalidate(ctx context.Context, userID, purpose string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RevokedJTIRepository manages the token revocation denylist.
type RevokedJTIRepository interface {
	Create(ctx context.Context, revokedJTI *models.RevokedJTI) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
