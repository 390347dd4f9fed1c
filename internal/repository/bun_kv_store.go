package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/report-zone/mfe-demo-sub000/internal/channel"
	"github.com/report-zone/mfe-demo-sub000/internal/db/models"
)

// BunKVStore is a channel.Store backed by the kv_entries table.
type BunKVStore struct {
	db *bun.DB
}

var _ channel.Store = (*BunKVStore)(nil)

// NewBunKVStore creates a database backed store
func NewBunKVStore(db *bun.DB) *BunKVStore {
	return &BunKVStore{db: db}
}

// Get returns the value of key
func (s *BunKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	entry := new(models.KVEntry)
	err := s.db.NewSelect().
		Model(entry).
		Where("? = ?", bun.Ident("key"), key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set upserts key
func (s *BunKVStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return channel.ErrEmptyKey
	}
	entry := &models.KVEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key; a missing key is not an error
func (s *BunKVStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*models.KVEntry)(nil)).
		Where("? = ?", bun.Ident("key"), key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in order.
func (s *BunKVStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.NewSelect().
		Model((*models.KVEntry)(nil)).
		Column("key").
		Order("key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}
