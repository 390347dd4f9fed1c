package cmd

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/report-zone/mfe-demo-sub000/internal/auth"
	"github.com/report-zone/mfe-demo-sub000/internal/db/bunx"
	"github.com/report-zone/mfe-demo-sub000/internal/migrations"
	"github.com/report-zone/mfe-demo-sub000/internal/repository"
)

// openDB connects to the configured database and applies pending migrations.
func openDB(ctx context.Context) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	group, err := migrations.Apply(ctx, db)
	if err != nil {
		bunx.Close(db)
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if group != 0 {
		logger.Info().Int64("group", group).Msg("database migrated")
	}
	return db, nil
}

// newProvider builds the local session provider on db.
func newProvider(db *bun.DB) (*auth.LocalProvider, error) {
	secret := []byte(cfg.Session.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		logger.Warn().Msg("session.jwt_secret not set, sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.Session.TTL)
	if err != nil {
		return nil, err
	}

	authLog := logger.With().Str("component", "auth").Logger()
	return auth.NewLocalProvider(auth.Dependencies{
		Users:       repository.NewBunUserRepository(db),
		Codes:       repository.NewBunCodeRepository(db),
		RevokedJTIs: repository.NewBunRevokedJTIRepository(db),
	}, auth.Options{
		Tokens: tokens,
		Logger: &authLog,
	})
}
