// Package outbox implements the durable pending-change queue. Every mutation
// that must eventually reach the remote service is appended here regardless
// of connectivity; an external drain loop replays entries in FIFO order and
// removes each one only after the remote service acknowledged it.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketlist/cartsync/metrics"
	"github.com/pocketlist/cartsync/model"
)

// Queue is the durable outbox over the shared local database. The queue does
// not deduplicate: the remote service contract guarantees that replaying a
// toggle or delete the server already converged to is a no-op.
type Queue struct {
	db     *sql.DB
	logger *slog.Logger
}

// Entry is a queued change together with its queue bookkeeping.
type Entry struct {
	ID       int64
	Change   model.PendingChange
	Attempts int
	QueuedAt time.Time
}

// New creates a queue over an already-migrated database.
func New(db *sql.DB, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{db: db, logger: logger}
}

// Enqueue appends a change to the queue. It must succeed while offline, so it
// touches only local storage.
func (q *Queue) Enqueue(ctx context.Context, change model.PendingChange) error {
	var payload any
	if len(change.Payload) > 0 {
		payload = string(change.Payload)
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO pending_changes (change_type, entity_type, entity_id, parent_id, payload, queued_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, change.Type, change.EntityType, change.EntityID, change.ParentID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue change: %w", err)
	}

	metrics.OutboxEnqueued.WithLabelValues(string(change.EntityType), string(change.Type)).Inc()
	q.logger.Debug("change enqueued",
		"type", change.Type, "entity", change.EntityType, "entity_id", change.EntityID)
	return nil
}

// Pending returns up to limit queued changes in enqueue order.
func (q *Queue) Pending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, change_type, entity_type, entity_id, parent_id, payload, attempts, queued_at
		FROM pending_changes ORDER BY id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending changes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.Change.Type, &e.Change.EntityType, &e.Change.EntityID,
			&e.Change.ParentID, &payload, &e.Attempts, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scan pending change: %w", err)
		}
		if payload.Valid {
			e.Change.Payload = []byte(payload.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending changes: %w", err)
	}
	return entries, nil
}

// PendingForEntity returns the queued changes targeting one entity, in order.
func (q *Queue) PendingForEntity(ctx context.Context, entityID string) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, change_type, entity_type, entity_id, parent_id, payload, attempts, queued_at
		FROM pending_changes WHERE entity_id = ? ORDER BY id
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query pending changes for %s: %w", entityID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.Change.Type, &e.Change.EntityType, &e.Change.EntityID,
			&e.Change.ParentID, &payload, &e.Attempts, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scan pending change: %w", err)
		}
		if payload.Valid {
			e.Change.Payload = []byte(payload.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending changes: %w", err)
	}
	return entries, nil
}

// Ack removes an entry after successful remote acknowledgment.
func (q *Queue) Ack(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_changes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("ack change %d: %w", id, err)
	}
	return nil
}

// Fail records a failed replay attempt, leaving the entry (and the order of
// its neighbors) untouched.
func (q *Queue) Fail(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `UPDATE pending_changes SET attempts = attempts + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark change %d failed: %w", id, err)
	}
	metrics.OutboxRetries.Inc()
	return nil
}

// Discard drops all queued changes for an entity. Used when a never-synced
// entity is deleted locally: nothing about it should ever reach the server.
func (q *Queue) Discard(ctx context.Context, entityID string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_changes WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("discard changes for %s: %w", entityID, err)
	}
	return nil
}

// Len reports the number of queued changes.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_changes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending changes: %w", err)
	}
	return n, nil
}
