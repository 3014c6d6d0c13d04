// Package localstore provides durable SQLite-backed storage for shopping
// lists, list items and the product search cache. Every record is addressable
// by its local identifier; server identifiers are carried alongside but are
// never required for local operations.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/pocketlist/cartsync/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is the durable local store. The underlying *sql.DB is exported so
// collaborators operating on the same database file (the outbox queue) can
// share the single write connection.
type Store struct {
	DB     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// A single write connection is enforced to avoid SQLite locking issues.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{DB: db, logger: logger}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.DB.Close() }

const listColumns = `local_id, server_id, name, status, total_items, checked_items,
	created_at, updated_at, completed_at, sync_status, last_synced_at`

func scanList(row interface{ Scan(...any) error }) (*model.ShoppingList, error) {
	var l model.ShoppingList
	var completedAt, lastSyncedAt sql.NullTime
	err := row.Scan(&l.LocalID, &l.ID, &l.Name, &l.Status, &l.TotalItems, &l.CheckedItems,
		&l.CreatedAt, &l.UpdatedAt, &completedAt, &l.SyncStatus, &lastSyncedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		l.CompletedAt = &t
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		l.LastSyncedAt = &t
	}
	return &l, nil
}

// Lists returns all locally stored lists, most recently updated first.
func (s *Store) Lists(ctx context.Context) ([]model.ShoppingList, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+listColumns+` FROM lists ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	var lists []model.ShoppingList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}
	return lists, nil
}

// GetList returns the list with the given local id, or nil if absent.
func (s *Store) GetList(ctx context.Context, localID string) (*model.ShoppingList, error) {
	l, err := scanList(s.DB.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM lists WHERE local_id = ?`, localID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list %s: %w", localID, err)
	}
	return l, nil
}

// FindListByServerID returns the list carrying the given server id, or nil.
func (s *Store) FindListByServerID(ctx context.Context, id int64) (*model.ShoppingList, error) {
	l, err := scanList(s.DB.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM lists WHERE server_id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find list by server id %d: %w", id, err)
	}
	return l, nil
}

// upsertListSQL updates in place on conflict. REPLACE is not an option here:
// deleting the old row would cascade to the list's items.
const upsertListSQL = `
	INSERT INTO lists
		(` + listColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(local_id) DO UPDATE SET
		server_id = excluded.server_id,
		name = excluded.name,
		status = excluded.status,
		total_items = excluded.total_items,
		checked_items = excluded.checked_items,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		completed_at = excluded.completed_at,
		sync_status = excluded.sync_status,
		last_synced_at = excluded.last_synced_at
`

// SaveList inserts or updates a list keyed by its local id.
func (s *Store) SaveList(ctx context.Context, l *model.ShoppingList) error {
	_, err := s.DB.ExecContext(ctx, upsertListSQL,
		l.LocalID, l.ID, l.Name, l.Status, l.TotalItems, l.CheckedItems,
		l.CreatedAt, l.UpdatedAt, nullTime(l.CompletedAt), l.SyncStatus, nullTime(l.LastSyncedAt))
	if err != nil {
		return fmt.Errorf("save list %s: %w", l.LocalID, err)
	}
	return nil
}

// DeleteList removes a list and, via the FK cascade, its items.
func (s *Store) DeleteList(ctx context.Context, localID string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM lists WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete list %s: %w", localID, err)
	}
	return nil
}

// SyncListsFromServer bulk-upserts server-confirmed lists in one transaction.
// Used only after a successful server fetch; callers pass the resolver output.
func (s *Store) SyncListsFromServer(ctx context.Context, lists []model.ShoppingList) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync tx: %w", err)
	}
	defer tx.Rollback()

	for i := range lists {
		l := &lists[i]
		_, err := tx.ExecContext(ctx, upsertListSQL,
			l.LocalID, l.ID, l.Name, l.Status, l.TotalItems, l.CheckedItems,
			l.CreatedAt, l.UpdatedAt, nullTime(l.CompletedAt), l.SyncStatus, nullTime(l.LastSyncedAt))
		if err != nil {
			return fmt.Errorf("upsert list %s: %w", l.LocalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync tx: %w", err)
	}
	return nil
}

const itemColumns = `local_id, server_id, list_local_id, product_id, name, emoji, category,
	quantity, is_checked, checked_at, sort_order, last_price, price_date, sync_status`

func scanItem(row interface{ Scan(...any) error }) (*model.ShoppingListItem, error) {
	var it model.ShoppingListItem
	var quantity, lastPrice sql.NullFloat64
	var checkedAt, priceDate sql.NullTime
	err := row.Scan(&it.LocalID, &it.ID, &it.ListLocalID, &it.ProductID, &it.Name, &it.Emoji,
		&it.Category, &quantity, &it.IsChecked, &checkedAt, &it.SortOrder,
		&lastPrice, &priceDate, &it.SyncStatus)
	if err != nil {
		return nil, err
	}
	if quantity.Valid {
		q := quantity.Float64
		it.Quantity = &q
	}
	if checkedAt.Valid {
		t := checkedAt.Time
		it.CheckedAt = &t
	}
	if lastPrice.Valid {
		p := lastPrice.Float64
		it.LastPrice = &p
	}
	if priceDate.Valid {
		t := priceDate.Time
		it.PriceDate = &t
	}
	return &it, nil
}

// ItemsForList returns the items of a list ordered by sort order.
func (s *Store) ItemsForList(ctx context.Context, listLocalID string) ([]model.ShoppingListItem, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE list_local_id = ? ORDER BY sort_order, local_id`, listLocalID)
	if err != nil {
		return nil, fmt.Errorf("query items for %s: %w", listLocalID, err)
	}
	defer rows.Close()

	var items []model.ShoppingListItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// GetItem returns the item with the given local id, or nil if absent.
func (s *Store) GetItem(ctx context.Context, localID string) (*model.ShoppingListItem, error) {
	it, err := scanItem(s.DB.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE local_id = ?`, localID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", localID, err)
	}
	return it, nil
}

// SaveItem inserts or replaces an item keyed by its local id.
func (s *Store) SaveItem(ctx context.Context, it *model.ShoppingListItem) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT OR REPLACE INTO items
			(`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.LocalID, it.ID, it.ListLocalID, it.ProductID, it.Name, it.Emoji, it.Category,
		nullFloat(it.Quantity), it.IsChecked, nullTime(it.CheckedAt), it.SortOrder,
		nullFloat(it.LastPrice), nullTime(it.PriceDate), it.SyncStatus)
	if err != nil {
		return fmt.Errorf("save item %s: %w", it.LocalID, err)
	}
	return nil
}

// DeleteItem removes a single item.
func (s *Store) DeleteItem(ctx context.Context, localID string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM items WHERE local_id = ?`, localID); err != nil {
		return fmt.Errorf("delete item %s: %w", localID, err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
