// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package localstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateLocalID produces a globally unique identifier for entities created
// before any server round-trip. The timestamp prefix keeps ids roughly sortable
// by creation time; the UUID suffix guarantees uniqueness across the lifetime
// of the database.
func GenerateLocalID() string {
	return fmt.Sprintf("local_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// ServerLocalID derives the canonical local id for a list first seen through
// the server.
func ServerLocalID(serverID int64) string {
	return fmt.Sprintf("server_%d", serverID)
}

// ItemLocalID derives the canonical local id for an item first seen through
// the server.
func ItemLocalID(serverID int64) string {
	return fmt.Sprintf("item_%d", serverID)
}
