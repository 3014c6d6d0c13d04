// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketlist/cartsync/model"
)

const productColumns = `id, name, original_name, emoji, tag_id, category, nfc, favorite`

// CacheProducts bulk-upserts products returned by a successful remote search
// so that subsequent searches can be served offline.
func (s *Store) CacheProducts(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range products {
		p := &products[i]
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO product_cache (`+productColumns+`, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.OriginalName, p.Emoji, p.TagID, p.Category, p.NFC, p.Favorite, now)
		if err != nil {
			return fmt.Errorf("cache product %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cache tx: %w", err)
	}
	return nil
}

// SearchCachedProducts performs a case-insensitive substring search over
// cached product names. Used when the remote search is unreachable.
func (s *Store) SearchCachedProducts(ctx context.Context, query string, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+productColumns+` FROM product_cache
		WHERE name LIKE '%' || ? || '%' OR original_name LIKE '%' || ? || '%'
		ORDER BY name LIMIT ?
	`, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search cached products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// FavoriteProducts returns cached products flagged as favorites.
func (s *Store) FavoriteProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+productColumns+` FROM product_cache
		WHERE favorite = 1 ORDER BY name LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query favorite products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

type rowScanner interface {
	Next() bool
	Scan(...any) error
	Err() error
}

func collectProducts(rows rowScanner) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.OriginalName, &p.Emoji, &p.TagID,
			&p.Category, &p.NFC, &p.Favorite); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}
