// Package metrics exposes Prometheus instrumentation for the sync engine.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutboxEnqueued counts pending changes appended to the outbox queue.
	OutboxEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_outbox_enqueued_total",
			Help: "Pending changes appended to the outbox queue",
		},
		[]string{"entity", "type"},
	)

	// OutboxDrained counts pending changes acknowledged by the remote service.
	OutboxDrained = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_outbox_drained_total",
			Help: "Pending changes successfully replayed against the remote service",
		},
		[]string{"entity", "type"},
	)

	// OutboxRetries counts replay failures that left the change queued.
	OutboxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartsync_outbox_retries_total",
			Help: "Replay failures that left the pending change in the queue",
		},
	)

	// ResolverMerges counts records merged by the conflict resolver.
	ResolverMerges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_resolver_merges_total",
			Help: "Records reconciled between local and server snapshots",
		},
		[]string{"entity"},
	)

	// RemoteErrors counts failed remote service calls by operation.
	RemoteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_remote_errors_total",
			Help: "Remote service calls that returned an error",
		},
		[]string{"op"},
	)
)
